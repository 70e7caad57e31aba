package led

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/smazurov/camrelay/internal/platform"
)

// RaspberryPiLED is the activity LED on every Raspberry Pi model.
const RaspberryPiLED = "ACT"

// New returns a controller for the host's status LED. Hosts other than a
// Raspberry Pi, or a Pi without the LED exposed, get a no-op controller.
func New(host platform.Host, logger *slog.Logger) Controller {
	if logger == nil {
		logger = slog.Default()
	}

	if !host.IsRaspberryPi() {
		logger.Info("No LED support detected, using no-op controller", "board_model", host.Model())
		return newNoop(logger)
	}

	root := host.Root
	if root == "" {
		root = "/"
	}
	ctrl := newSysfs(root, RaspberryPiLED)
	if _, err := os.Stat(filepath.Join(ctrl.dir, "trigger")); err != nil {
		logger.Info("Status LED not exposed, using no-op controller", "led", RaspberryPiLED, "error", err)
		return newNoop(logger)
	}

	logger.Info("Using sysfs LED controller", "board_model", host.Model(), "led", RaspberryPiLED)
	return ctrl
}
