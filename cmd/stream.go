package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/smazurov/camrelay/internal/events"
	"github.com/smazurov/camrelay/internal/logging"
	"github.com/smazurov/camrelay/internal/nats"
	"github.com/smazurov/camrelay/internal/notify"
	"github.com/spf13/cobra"
)

// CreateStreamCmd creates the stream command.
func CreateStreamCmd() *cobra.Command {
	var configFile string
	var logJSON bool

	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Run one webcam streaming pipeline in the foreground",
		Long: `Probes the encoder and the webcam, then supervises a single ffmpeg ` +
			`H.264 RTP encode until interrupted or until the encoder exits. ` +
			`No status API and no restarts; use the default command for the service.`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			os.Exit(runStream(cmd, configFile, logJSON))
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "camrelay.toml", "Path to configuration file")
	cmd.Flags().BoolVar(&logJSON, "log-json", false, "Use JSON log format")

	return cmd
}

// runStream returns the process exit code. Deferred cleanup runs before
// the caller exits.
func runStream(cmd *cobra.Command, configFile string, logJSON bool) int {
	opts, err := LoadOptions(cmd, configFile)
	if err != nil {
		logging.GetLogger("main").Error("Failed to load config", "error", err)
		return 1
	}

	loggingConfig := opts.Logging()
	if logJSON {
		loggingConfig.Format = "json"
	}
	logging.Initialize(loggingConfig)
	logger := logging.GetLogger("pipeline").With("device", opts.StreamDevice)

	lock, err := AcquireLock(opts.LockPath())
	if err != nil {
		logger.Error("Failed to acquire instance lock", "error", err)
		return 1
	}
	defer func() { _ = lock.Unlock() }()

	bus := events.New()
	defer func() { _ = bus.Close() }()

	if opts.NATSURL != "" {
		publisher := nats.NewPublisher(opts.NATSURL, opts.StreamDevice, logging.GetLogger("nats"))
		if connErr := publisher.Connect(); connErr != nil {
			logger.Warn("NATS unavailable, alerts stay local", "error", connErr)
		}
		bridge := nats.NewBridge(bus, publisher, logging.GetLogger("nats"))
		bridge.Start()
		defer func() {
			bridge.Stop()
			publisher.Close()
		}()
	}

	reporter := notify.NewBusReporter(bus, logger)
	p := PipelineFactory(opts, reporter, bus)(opts.Webcam())
	defer p.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h, err := p.Run(ctx)
	switch {
	case err != nil && ctx.Err() != nil:
		logger.Info("Interrupted during startup")
		return 0
	case err != nil:
		return 1
	case h == nil:
		return 0
	}

	select {
	case <-ctx.Done():
		logger.Info("Signal received, stopping encoder")
		return 0
	case <-h.Exited():
	}

	code := h.Info().ExitCode
	if err := h.Err(); err != nil {
		logger.Error("Encoder exited", "error", err, "exit_code", code)
		if code <= 0 {
			code = 1
		}
	}
	logger.Info("Stream command exiting", "exit_code", code)
	return code
}
