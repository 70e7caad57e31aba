// Package notify delivers user-facing alerts about the stream.
package notify

import (
	"log/slog"
	"time"

	"github.com/smazurov/camrelay/internal/events"
)

// Info pages linked from alerts.
const (
	InfoURLResolutionFramerate = "https://obico.io/docs/user-guides/webcam-streaming-resolution-framerate-klipper/"
	InfoURLStreamStuck         = "https://www.obico.io/docs/user-guides/webcam-stream-stuck-at-1-10-fps/"
)

// Reporter is the notification collaborator. Implementations must return
// quickly and must not surface delivery failures to the caller.
type Reporter interface {
	ReportEvent(title, message string, severity events.Severity, infoURL string)
}

// BusReporter publishes alerts on the in-process event bus.
type BusReporter struct {
	bus    *events.Bus
	logger *slog.Logger
	now    func() time.Time
}

// NewBusReporter creates a reporter backed by the event bus.
func NewBusReporter(bus *events.Bus, logger *slog.Logger) *BusReporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &BusReporter{bus: bus, logger: logger, now: time.Now}
}

// ReportEvent implements Reporter.
func (r *BusReporter) ReportEvent(title, message string, severity events.Severity, infoURL string) {
	r.logger.Info("Reporting event", "title", title, "severity", severity)
	r.bus.Publish(events.AlertEvent{
		Title:     title,
		Message:   message,
		Severity:  severity,
		InfoURL:   infoURL,
		Timestamp: r.now(),
	})
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(title, message string, severity events.Severity, infoURL string)

// ReportEvent implements Reporter.
func (f ReporterFunc) ReportEvent(title, message string, severity events.Severity, infoURL string) {
	f(title, message, severity, infoURL)
}

// Discard drops all events.
var Discard Reporter = ReporterFunc(func(string, string, events.Severity, string) {})
