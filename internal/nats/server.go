package nats

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

// DefaultPort is the standard NATS client port.
const DefaultPort = 4222

const (
	loopback     = "127.0.0.1"
	readyTimeout = 5 * time.Second

	// An alert carries the encoder's diagnostic window.
	maxPayload = 1024 * 1024
)

// Server is a loopback-only NATS broker so agents on the same device
// receive alerts and state without a remote server.
type Server struct {
	port   int
	logger *slog.Logger
	ns     *server.Server
}

// NewServer creates an embedded broker on port, DefaultPort when zero.
func NewServer(port int, logger *slog.Logger) *Server {
	if port == 0 {
		port = DefaultPort
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{port: port, logger: logger.With("component", "nats-server")}
}

// Start runs the broker and waits until it accepts clients.
func (s *Server) Start() error {
	ns, err := server.NewServer(&server.Options{
		Host:       loopback,
		Port:       s.port,
		ServerName: "camrelay",
		NoLog:      true,
		NoSigs:     true,
		MaxPayload: maxPayload,
	})
	if err != nil {
		return fmt.Errorf("failed to create NATS server: %w", err)
	}

	go ns.Start()
	if !ns.ReadyForConnections(readyTimeout) {
		ns.Shutdown()
		return fmt.Errorf("NATS server not ready after %s", readyTimeout)
	}

	s.ns = ns
	s.logger.Info("NATS server started", "url", s.ClientURL())
	return nil
}

// Stop shuts the broker down. Safe to call when not started.
func (s *Server) Stop() {
	if s.ns == nil {
		return
	}
	s.logger.Info("Stopping NATS server")
	s.ns.Shutdown()
	s.ns.WaitForShutdown()
	s.ns = nil
}

// ClientURL returns the URL local publishers connect to.
func (s *Server) ClientURL() string {
	return fmt.Sprintf("nats://%s:%d", loopback, s.port)
}

// Running reports whether the broker accepts clients.
func (s *Server) Running() bool {
	return s.ns != nil && s.ns.Running()
}
