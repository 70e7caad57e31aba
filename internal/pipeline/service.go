package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/camrelay/internal/config"
	"github.com/smazurov/camrelay/internal/events"
)

// Factory builds a pipeline for the given webcam settings.
type Factory func(webcam config.Webcam) *Pipeline

// Service keeps one pipeline running in the background and replaces it on
// configuration changes and restart requests. It never restarts a pipeline
// on its own after an unexpected exit.
type Service struct {
	build  Factory
	bus    *events.Bus
	logger *slog.Logger

	mu      sync.Mutex
	webcam  config.Webcam
	current *Pipeline
	cancel  context.CancelFunc
	done    chan struct{}
	closed  bool
	unsub   func()
}

// NewService creates a service. bus may be nil.
func NewService(webcam config.Webcam, build Factory, bus *events.Bus, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		build:  build,
		bus:    bus,
		logger: logger,
		webcam: webcam,
	}
}

// Start launches the first pipeline and begins honouring
// events.RestartRequestedEvent from the bus.
func (s *Service) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.current != nil {
		return
	}
	if s.bus != nil && s.unsub == nil {
		s.unsub = s.bus.Subscribe(func(ev events.RestartRequestedEvent) {
			// Restart blocks on teardown; keep the dispatcher free.
			go s.Restart(ev.Source, ev.Reason)
		})
	}
	s.launchLocked()
}

// Restart tears down the current pipeline and starts a fresh one.
func (s *Service) Restart(source, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.logger.Info("Restarting video pipeline", "source", source, "reason", reason)
	s.stopLocked()
	s.launchLocked()
}

// UpdateWebcam applies new webcam settings, restarting the pipeline when
// they differ from the running ones. Reports whether a restart happened.
func (s *Service) UpdateWebcam(next config.Webcam) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || !s.webcam.Changed(next) {
		return false
	}
	s.webcam = next
	s.logger.Info("Webcam settings changed, restarting video pipeline")
	s.stopLocked()
	s.launchLocked()
	return true
}

// State returns the current pipeline state.
func (s *Service) State() events.StreamStateEvent {
	s.mu.Lock()
	p := s.current
	s.mu.Unlock()

	if p == nil {
		return events.StreamStateEvent{State: events.StateStopped, Timestamp: time.Now()}
	}
	return p.State()
}

// Stop tears down the current pipeline. The service cannot be restarted.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	if s.unsub != nil {
		s.unsub()
		s.unsub = nil
	}
	s.stopLocked()
}

func (s *Service) launchLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	p := s.build(s.webcam)
	done := make(chan struct{})
	s.current, s.cancel, s.done = p, cancel, done

	go func() {
		defer close(done)
		if _, err := p.Run(ctx); err != nil && ctx.Err() == nil {
			s.logger.Warn("Video pipeline did not start", "error", err)
		}
	}()
}

// stopLocked cancels an in-flight run, stops the encoder and waits for the
// run goroutine. The pipeline keeps its final state for State callers.
func (s *Service) stopLocked() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.current.Stop()
	<-s.done
	s.cancel = nil
}
