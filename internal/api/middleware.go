package api

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/smazurov/camrelay/internal/logging"
)

const requestIDHeader = "X-Request-ID"

// HTTPLoggingMiddleware tags each request with an ID and logs it once it
// completes. Reads are routine status polling and log at debug.
func HTTPLoggingMiddleware(ctx huma.Context, next func(huma.Context)) {
	start := time.Now()
	logger := logging.GetLogger("api")

	requestID := ctx.Header(requestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	ctx.SetHeader(requestIDHeader, requestID)

	method := ctx.Method()
	reqURL := ctx.URL()
	attrs := []slog.Attr{
		slog.String("request_id", requestID),
		slog.String("method", method),
		slog.String("path", reqURL.Path),
		slog.String("remote_addr", ctx.RemoteAddr()),
	}
	if query := redactQuery(reqURL.Query()); query != "" {
		attrs = append(attrs, slog.String("query", query))
	}
	if userAgent := ctx.Header("User-Agent"); userAgent != "" {
		attrs = append(attrs, slog.String("user_agent", userAgent))
	}

	next(ctx)

	status := ctx.Status()
	attrs = append(attrs,
		slog.Int("status", status),
		slog.Duration("duration", time.Since(start)),
	)

	level := slog.LevelInfo
	switch {
	case status >= 500:
		level = slog.LevelError
	case status >= 400:
		level = slog.LevelWarn
	case method == http.MethodGet:
		level = slog.LevelDebug
	}
	logger.LogAttrs(ctx.Context(), level, "HTTP request completed", attrs...)
}

// redactQuery hides the auth parameter, which carries credentials.
func redactQuery(q url.Values) string {
	if len(q) == 0 {
		return ""
	}
	if q.Has("auth") {
		q.Set("auth", "REDACTED")
	}
	return q.Encode()
}
