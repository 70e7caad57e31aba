package main

import (
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/gofrs/flock"
	"github.com/smazurov/camrelay/cmd"
	"github.com/smazurov/camrelay/internal/api"
	"github.com/smazurov/camrelay/internal/config"
	"github.com/smazurov/camrelay/internal/events"
	"github.com/smazurov/camrelay/internal/led"
	"github.com/smazurov/camrelay/internal/logging"
	"github.com/smazurov/camrelay/internal/metrics"
	"github.com/smazurov/camrelay/internal/nats"
	"github.com/smazurov/camrelay/internal/notify"
	"github.com/smazurov/camrelay/internal/pipeline"
	"github.com/smazurov/camrelay/internal/platform"
)

const configDebounce = 1500 * time.Millisecond

func main() {
	var cli humacli.CLI

	// Create Huma CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *config.Options) {
		// Flags set on the command line win over the config file and env.
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			logging.GetLogger("main").Warn("Failed to load config", "error", loadErr)
		}

		logging.Initialize(opts.Logging())
		logger := logging.GetLogger("main")

		// Create event bus for in-process event handling
		eventBus := events.New()
		reporter := notify.NewBusReporter(eventBus, logging.GetLogger("pipeline"))

		service := pipeline.NewService(
			opts.Webcam(),
			cmd.PipelineFactory(opts, reporter, eventBus),
			eventBus,
			logging.GetLogger("pipeline"),
		)

		server := api.NewServer(&api.Options{
			AuthUsername:      opts.AuthUsername,
			AuthPassword:      opts.AuthPassword,
			State:             service,
			EventBus:          eventBus,
			PrometheusHandler: metrics.HTTPHandler(),
		})

		// Initialize LED control if enabled
		var ledManager *led.Manager
		if opts.FeaturesStatusLED {
			ledLogger := logging.GetLogger("led")
			ledManager = led.NewManager(led.New(platform.System, ledLogger), eventBus, ledLogger)
		}

		// Reload webcam settings when the config file changes.
		watcher := config.NewConfigWatcher(
			opts.Config,
			config.LoadWebcam,
			logger,
			config.WithDebounce[config.Webcam](configDebounce),
		)
		watcher.OnReload(func(webcam config.Webcam) {
			if service.UpdateWebcam(webcam) {
				logger.Info("Webcam settings changed, pipeline restarted")
			}
		})

		var (
			lock        *flock.Flock
			natsServer  *nats.Server
			publisher   *nats.Publisher
			natsBridge  *nats.Bridge
			watcherOpen bool
		)

		hooks.OnStart(func() {
			var lockErr error
			lock, lockErr = cmd.AcquireLock(opts.LockPath())
			if lockErr != nil {
				logger.Error("Failed to acquire instance lock", "error", lockErr)
				os.Exit(1)
			}

			natsURL := opts.NATSURL
			if opts.NATSEmbedded {
				natsServer = nats.NewServer(opts.NATSPort, logging.GetLogger("nats"))
				if startErr := natsServer.Start(); startErr != nil {
					logger.Warn("Failed to start embedded NATS server", "error", startErr)
					natsServer = nil
				} else if natsURL == "" {
					natsURL = natsServer.ClientURL()
				}
			}

			if natsURL != "" {
				publisher = nats.NewPublisher(natsURL, opts.StreamDevice, logging.GetLogger("nats"))
				if connErr := publisher.Connect(); connErr != nil {
					logger.Warn("NATS unavailable, alerts stay local", "error", connErr)
				}
				natsBridge = nats.NewBridge(eventBus, publisher, logging.GetLogger("nats"))
				natsBridge.Start()
			}

			if startErr := watcher.Start(); startErr != nil {
				logger.Warn("Failed to start config watcher, hot-reload disabled", "error", startErr)
			} else {
				watcherOpen = true
			}

			// Subscribe before the first state change.
			if ledManager != nil {
				ledManager.Start()
			}
			service.Start()

			if _, notifyErr := daemon.SdNotify(false, daemon.SdNotifyReady); notifyErr != nil {
				logger.Debug("sd_notify failed", "error", notifyErr)
			}

			logger.Info("Starting HTTP server", "port", opts.Port)
			if startErr := server.Start(opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				service.Stop()
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down")
			_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

			if stopErr := server.Stop(); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}
			if watcherOpen {
				_ = watcher.Stop()
			}

			// Stop the encoder before the alert path goes away.
			service.Stop()

			if ledManager != nil {
				ledManager.Stop()
			}
			if natsBridge != nil {
				natsBridge.Stop()
			}
			if publisher != nil {
				publisher.Close()
			}
			if natsServer != nil {
				natsServer.Stop()
			}
			_ = eventBus.Close()

			if lock != nil {
				if unlockErr := lock.Unlock(); unlockErr != nil {
					logger.Warn("Failed to release instance lock", "error", unlockErr)
				}
			}
		})
	})

	cli.Root().Use = "camrelay"
	cli.Root().Short = "Webcam MJPEG to H.264 RTP relay"
	cli.Root().AddCommand(cmd.CreateProbeEncoderCmd())
	cli.Root().AddCommand(cmd.CreateStreamCmd())
	cli.Root().AddCommand(cmd.CreatePresetsCmd())

	// Run the CLI
	cli.Run()
}
