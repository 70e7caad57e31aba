package led

import "log/slog"

// noop implements Controller for boards without a usable LED.
type noop struct {
	logger *slog.Logger
}

func newNoop(logger *slog.Logger) *noop {
	return &noop{logger: logger}
}

func (n *noop) Set(pattern string) error {
	n.logger.Debug("LED control not available (no-op)", "pattern", pattern)
	return nil
}

func (n *noop) Restore() error { return nil }

func (n *noop) Name() string { return "none" }
