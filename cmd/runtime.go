// Package cmd holds the camrelay subcommands and the wiring they share with
// the service.
package cmd

import (
	"fmt"

	"github.com/gofrs/flock"
	"github.com/smazurov/camrelay/internal/capture"
	"github.com/smazurov/camrelay/internal/config"
	"github.com/smazurov/camrelay/internal/encoders"
	"github.com/smazurov/camrelay/internal/events"
	"github.com/smazurov/camrelay/internal/logging"
	"github.com/smazurov/camrelay/internal/notify"
	"github.com/smazurov/camrelay/internal/pipeline"
	"github.com/smazurov/camrelay/internal/platform"
	"github.com/smazurov/camrelay/internal/process"
	"github.com/smazurov/camrelay/internal/resolution"
	"github.com/spf13/cobra"
)

// LoadOptions builds Options for a subcommand: defaults, then the config
// file named by --config, then env, with flags set on cmd winning.
func LoadOptions(cmd *cobra.Command, configPath string) (*config.Options, error) {
	opts := &config.Options{}
	config.ApplyDefaults(opts)
	if configPath != "" {
		opts.Config = configPath
	}
	if err := config.LoadConfig(opts, cmd); err != nil {
		return nil, fmt.Errorf("load config %s: %w", opts.Config, err)
	}
	return opts, nil
}

// ResolveBinary returns the ffmpeg executable for this host.
func ResolveBinary(opts *config.Options) string {
	return platform.System.ResolveFFmpeg(opts.FfmpegBinary, opts.FfmpegDataDir)
}

// NewDetector creates the encoder detector used by the pipeline and the
// probe-encoder command.
func NewDetector(opts *config.Options, binary string) *encoders.Detector {
	logger := logging.GetLogger("encoders")
	trial := &encoders.FFmpegTrial{
		Binary:    binary,
		Sample:    opts.EncoderSample,
		VerifyRTP: opts.EncoderVerifyRTP,
		Logger:    logger,
	}
	return encoders.NewDetector(trial, config.Seconds(opts.EncoderTrialTimeout), logger)
}

// PipelineFactory returns a factory that builds a pipeline from the current
// webcam settings and the static options.
func PipelineFactory(opts *config.Options, reporter notify.Reporter, bus *events.Bus) pipeline.Factory {
	binary := ResolveBinary(opts)
	detector := NewDetector(opts, binary)
	prober := resolution.NewProber(
		resolution.Options{MaxAttempts: opts.ProbeMaxAttempts},
		capture.Dimensions,
		logging.GetLogger("resolution"),
	)
	client := capture.NewClient(config.Seconds(opts.WebcamCaptureTimeout), logging.GetLogger("capture"))

	supervisor := process.Options{
		GraceWindow:     config.Seconds(opts.SupervisorGrace),
		GracefulTimeout: config.Seconds(opts.SupervisorStopTimeout),
		Nice:            opts.SupervisorNice,
		WindowSize:      opts.SupervisorWindowSize,
		Watchdog: process.WatchdogOptions{
			Interval:   config.Seconds(opts.WatchdogInterval),
			MaxPercent: float64(opts.WatchdogMaxPercent),
		},
		Reporter:     reporter,
		Logger:       logging.GetLogger("supervisor"),
		OutputLogger: logging.GetLogger("ffmpeg"),
	}

	return func(webcam config.Webcam) *pipeline.Pipeline {
		return pipeline.New(pipeline.Options{
			Webcam:     webcam,
			Binary:     binary,
			Encoders:   detector,
			Resolution: prober,
			Capture:    client,
			Supervisor: supervisor,
			Reporter:   reporter,
			Bus:        bus,
			Logger:     logging.GetLogger("pipeline"),
		})
	}
}

// AcquireLock takes the per-device instance lock without blocking.
func AcquireLock(path string) (*flock.Flock, error) {
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("another camrelay instance holds %s", path)
	}
	return lock, nil
}
