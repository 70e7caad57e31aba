package api

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/smazurov/camrelay/internal/api/models"
	"github.com/smazurov/camrelay/internal/events"
	"github.com/smazurov/camrelay/internal/logging"
	"github.com/smazurov/camrelay/internal/version"
)

const authRealm = `Basic realm="camrelay API"`

// StateProvider returns the current pipeline state.
type StateProvider interface {
	State() events.StreamStateEvent
}

// Options configures the API server.
type Options struct {
	AuthUsername      string
	AuthPassword      string
	State             StateProvider
	EventBus          *events.Bus
	PrometheusHandler http.Handler // Optional Prometheus metrics handler
}

// Server is the status API.
type Server struct {
	api        huma.API
	mux        *http.ServeMux
	httpServer *http.Server
	options    *Options
	logger     *slog.Logger
}

// NewServer creates the API server with huma on the stdlib mux.
func NewServer(opts *Options) *Server {
	mux := http.NewServeMux()

	config := huma.DefaultConfig("camrelay API", version.String())
	config.Info.Description = "Status and control of the webcam H.264 relay"
	config.Servers = []*huma.Server{}
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"basicAuth": {
			Type:   "http",
			Scheme: "basic",
		},
	}

	api := humago.New(mux, config)

	server := &Server{
		api:     api,
		mux:     mux,
		options: opts,
		logger:  logging.GetLogger("api"),
	}

	api.UseMiddleware(HTTPLoggingMiddleware)
	if opts.AuthUsername != "" && opts.AuthPassword != "" {
		api.UseMiddleware(server.basicAuthMiddleware(opts.AuthUsername, opts.AuthPassword))
	}

	// Metrics stay unauthenticated for scrapers.
	if opts.PrometheusHandler != nil {
		mux.Handle("GET /metrics", opts.PrometheusHandler)
	}

	server.registerRoutes()
	return server
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start serves on addr until Stop. Returns http.ErrServerClosed after Stop.
func (s *Server) Start(addr string) error {
	s.logger.Info("Starting API server", "addr", addr)
	s.logger.Info("OpenAPI documentation available", "url", "http://"+addr+"/docs")

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.mux,
	}
	return s.httpServer.ListenAndServe()
}

// Stop closes the server without waiting for SSE clients.
func (s *Server) Stop() error {
	s.logger.Info("Stopping API server")
	if s.httpServer != nil {
		return s.httpServer.Close()
	}
	return nil
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Check API health status",
		Tags:        []string{"health"},
		Security:    []map[string][]string{},
	}, func(_ context.Context, _ *struct{}) (*models.HealthResponse, error) {
		return &models.HealthResponse{
			Body: models.HealthData{
				Status:  "ok",
				Message: "API is healthy",
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Description: "Get application version information",
		Tags:        []string{"system"},
		Security:    []map[string][]string{},
	}, func(_ context.Context, _ *struct{}) (*models.VersionResponse, error) {
		info := version.Get()
		return &models.VersionResponse{
			Body: models.VersionData{
				Version:   info.Version,
				GitCommit: info.GitCommit,
				BuildDate: info.BuildDate,
				BuildID:   info.BuildID,
				GoVersion: info.GoVersion,
				Compiler:  info.Compiler,
				Platform:  info.Platform,
			},
		}, nil
	})

	s.registerStreamRoutes()

	if s.options.EventBus != nil {
		s.registerSSERoutes()
	}
}

// basicAuthMiddleware enforces HTTP basic auth on operations that declare
// a security requirement.
func (s *Server) basicAuthMiddleware(username, password string) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		op := ctx.Operation()
		if op != nil && len(op.Security) == 0 {
			next(ctx)
			return
		}

		credentials, err := requestCredentials(ctx)
		if err != nil || credentials == "" {
			ctx.SetHeader("WWW-Authenticate", authRealm)
			huma.WriteErr(s.api, ctx, http.StatusUnauthorized, "Authentication required")
			return
		}

		user, pass, ok := strings.Cut(credentials, ":")
		if !ok || user != username || pass != password {
			ctx.SetHeader("WWW-Authenticate", authRealm)
			huma.WriteErr(s.api, ctx, http.StatusUnauthorized, "Invalid credentials")
			return
		}

		next(ctx)
	}
}

// requestCredentials decodes "user:pass" from the Authorization header, or
// from the auth query parameter for EventSource clients that cannot set
// headers.
func requestCredentials(ctx huma.Context) (string, error) {
	encoded := ctx.Query("auth")
	if header := ctx.Header("Authorization"); header != "" {
		const prefix = "Basic "
		if !strings.HasPrefix(header, prefix) {
			return "", nil
		}
		encoded = header[len(prefix):]
	}
	if encoded == "" {
		return "", nil
	}
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

// withAuth returns security requirement for basic auth
func withAuth() []map[string][]string {
	return []map[string][]string{
		{"basicAuth": {}},
	}
}
