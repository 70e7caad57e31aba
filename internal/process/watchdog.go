package process

import (
	"context"
	"log/slog"
	"time"

	psprocess "github.com/shirou/gopsutil/process"

	"github.com/smazurov/camrelay/internal/events"
	"github.com/smazurov/camrelay/internal/metrics"
	"github.com/smazurov/camrelay/internal/notify"
	"github.com/smazurov/camrelay/internal/streamerr"
)

// Defaults for WatchdogOptions.
const (
	DefaultWatchInterval = 20 * time.Second
	DefaultMaxCPUPercent = 80.0
)

const (
	excessiveCPUTitle   = "Webcam Streaming Using Excessive CPU"
	excessiveCPUMessage = "The webcam streaming uses excessive CPU. This may negatively impact your print quality, or cause webcam streaming issues."
)

// Sampler reads the resource usage of one process.
type Sampler interface {
	// Percent returns CPU utilisation since the previous call when
	// interval is zero.
	Percent(interval time.Duration) (float64, error)
	IsRunning() (bool, error)
}

// SamplerFactory opens a Sampler for a pid.
type SamplerFactory func(pid int) (Sampler, error)

// ProcessSampler samples a live process through gopsutil.
func ProcessSampler(pid int) (Sampler, error) {
	return psprocess.NewProcess(int32(pid))
}

// WatchdogOptions configures the CPU watchdog. Zero values select the defaults.
type WatchdogOptions struct {
	Interval   time.Duration
	MaxPercent float64
	Sampler    SamplerFactory
}

// Watchdog samples the encoder's CPU usage and warns when it is excessive.
// It never throttles or kills the process.
type Watchdog struct {
	opts     WatchdogOptions
	reporter notify.Reporter
	logger   *slog.Logger
}

// NewWatchdog creates a watchdog.
func NewWatchdog(opts WatchdogOptions, reporter notify.Reporter, logger *slog.Logger) *Watchdog {
	if opts.Interval <= 0 {
		opts.Interval = DefaultWatchInterval
	}
	if opts.MaxPercent <= 0 {
		opts.MaxPercent = DefaultMaxCPUPercent
	}
	if opts.Sampler == nil {
		opts.Sampler = ProcessSampler
	}
	if reporter == nil {
		reporter = notify.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watchdog{opts: opts, reporter: reporter, logger: logger}
}

// Watch samples until the process is gone, the handle's process exits,
// or ctx is cancelled.
func (w *Watchdog) Watch(ctx context.Context, h *Handle) {
	sampler, err := w.opts.Sampler(h.PID)
	if err != nil {
		w.logger.Warn("CPU watchdog disabled", "pid", h.PID, "error", err)
		return
	}

	// The first call only establishes the baseline.
	_, _ = sampler.Percent(0)

	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.Done():
			return
		case <-ticker.C:
		}

		if running, err := sampler.IsRunning(); err != nil || !running {
			return
		}

		pct, err := sampler.Percent(0)
		if err != nil {
			w.logger.Debug("CPU sample failed", "pid", h.PID, "error", err)
			continue
		}
		metrics.ObserveCPU(pct)

		if pct > w.opts.MaxPercent {
			metrics.IncExcessiveCPU()
			w.logger.Warn("Encoder CPU above threshold", "pid", h.PID, "cpu_percent", pct,
				"max_percent", w.opts.MaxPercent,
				"error", streamerr.New(streamerr.CodeExcessiveResourceUsage, "excessive CPU", nil))
			w.reporter.ReportEvent(excessiveCPUTitle, excessiveCPUMessage,
				events.SeverityWarning, notify.InfoURLResolutionFramerate)
		}
	}
}
