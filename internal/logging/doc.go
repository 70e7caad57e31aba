// Package logging provides structured logging with per-module log levels.
//
// Initialize once at startup, then fetch module loggers:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"supervisor": "debug",
//			"ffmpeg":     "warn",
//		},
//	})
//
//	logger := logging.GetLogger("supervisor").With("run_id", runID)
//	logger.Info("Encoder started", "pid", pid)
//
// Records go to stdout when it is a terminal, pipe, socket or file, and to the
// systemd journal when journald is reachable (see
// [github.com/coreos/go-systemd/v22/journal.Enabled]). Journal entries carry
// SYSLOG_IDENTIFIER=camrelay and upper-cased attribute fields:
//
//	journalctl -t camrelay MODULE=supervisor
//	journalctl -t camrelay -p err
package logging
