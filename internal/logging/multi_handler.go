package logging

import (
	"context"
	"errors"
	"log/slog"
)

// MultiHandler writes each record to the console and, under systemd, to the
// journal. Every handler applies its own level.
type MultiHandler struct {
	handlers []slog.Handler
}

// NewMultiHandler fans records out to handlers. Nil handlers are skipped.
func NewMultiHandler(handlers ...slog.Handler) *MultiHandler {
	m := &MultiHandler{handlers: make([]slog.Handler, 0, len(handlers))}
	for _, h := range handlers {
		if h != nil {
			m.handlers = append(m.handlers, h)
		}
	}
	return m
}

// Enabled implements slog.Handler.
func (m *MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle implements slog.Handler. A failing sink does not stop the others;
// their errors are joined.
func (m *MultiHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range m.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WithAttrs implements slog.Handler.
func (m *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return m.each(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

// WithGroup implements slog.Handler.
func (m *MultiHandler) WithGroup(name string) slog.Handler {
	return m.each(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (m *MultiHandler) each(fn func(slog.Handler) slog.Handler) *MultiHandler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = fn(h)
	}
	return &MultiHandler{handlers: handlers}
}
