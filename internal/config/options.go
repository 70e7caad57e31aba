package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/smazurov/camrelay/internal/logging"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"camrelay.toml"`

	// Server settings
	Port string `help:"Status API listen address" short:"p" default:":8091" toml:"server.port" env:"SERVER_PORT"`

	// Auth settings, empty disables
	AuthUsername string `help:"Basic auth username" default:"" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Webcam settings
	WebcamSnapshotURL    string `help:"Snapshot URL returning a single JPEG" default:"" toml:"webcam.snapshot_url" env:"WEBCAM_SNAPSHOT_URL"`
	WebcamStreamURL      string `help:"MJPEG stream URL fed to the encoder" default:"" toml:"webcam.stream_url" env:"WEBCAM_STREAM_URL"`
	WebcamForceStreamURL bool   `help:"Probe the resolution from the stream URL instead of the snapshot URL" default:"true" toml:"webcam.force_stream_url" env:"WEBCAM_FORCE_STREAM_URL"`
	WebcamCaptureTimeout int    `help:"Frame capture timeout in seconds" default:"5" toml:"webcam.capture_timeout" env:"WEBCAM_CAPTURE_TIMEOUT"`

	// Stream settings
	StreamDevice    string `help:"Device name used for NATS subjects and the instance lock" default:"webcam" toml:"stream.device" env:"STREAM_DEVICE"`
	StreamPro       bool   `help:"Pro tier: full framerate and bitrate" default:"false" toml:"stream.pro" env:"STREAM_PRO"`
	StreamRelayHost string `help:"Relay host receiving RTP" default:"127.0.0.1" toml:"stream.relay_host" env:"STREAM_RELAY_HOST"`

	// FFmpeg settings
	FfmpegBinary  string `help:"FFmpeg binary override" default:"" toml:"ffmpeg.binary" env:"FFMPEG_BINARY"`
	FfmpegDataDir string `help:"Directory holding the bundled ffmpeg builds" default:"/opt/camrelay" toml:"ffmpeg.data_dir" env:"FFMPEG_DATA_DIR"`

	// Encoder probe settings
	EncoderSample       string `help:"Sample clip used for trial encodes" default:"/opt/camrelay/test-video.mp4" toml:"encoder.sample" env:"ENCODER_SAMPLE"`
	EncoderVerifyRTP    bool   `help:"Require RTP packets from trial encodes" default:"false" toml:"encoder.verify_rtp" env:"ENCODER_VERIFY_RTP"`
	EncoderTrialTimeout int    `help:"Trial encode timeout in seconds" default:"20" toml:"encoder.trial_timeout" env:"ENCODER_TRIAL_TIMEOUT"`

	// Resolution probe settings
	ProbeMaxAttempts int `help:"Frame capture attempts before giving up" default:"20" toml:"probe.max_attempts" env:"PROBE_MAX_ATTEMPTS"`

	// Supervisor settings
	SupervisorNice        int `help:"Niceness the encoder starts with, 0 to inherit" default:"10" toml:"supervisor.nice" env:"SUPERVISOR_NICE"`
	SupervisorGrace       int `help:"Startup grace window in seconds" default:"10" toml:"supervisor.grace" env:"SUPERVISOR_GRACE"`
	SupervisorStopTimeout int `help:"Seconds to wait after SIGINT before killing" default:"5" toml:"supervisor.stop_timeout" env:"SUPERVISOR_STOP_TIMEOUT"`
	SupervisorWindowSize  int `help:"Encoder output lines kept for reports" default:"50" toml:"supervisor.window_size" env:"SUPERVISOR_WINDOW_SIZE"`

	// Watchdog settings
	WatchdogInterval   int `help:"CPU sampling interval in seconds" default:"20" toml:"watchdog.interval" env:"WATCHDOG_INTERVAL"`
	WatchdogMaxPercent int `help:"CPU percent above which a warning is reported" default:"80" toml:"watchdog.max_percent" env:"WATCHDOG_MAX_PERCENT"`

	// NATS settings
	NATSURL      string `help:"NATS server URL (empty disables)" default:"" toml:"nats.url" env:"NATS_URL"`
	NATSEmbedded bool   `help:"Run an embedded NATS server" default:"false" toml:"nats.embedded" env:"NATS_EMBEDDED"`
	NATSPort     int    `help:"Embedded NATS server port" default:"4222" toml:"nats.port" env:"NATS_PORT"`

	// Features settings
	FeaturesStatusLED bool `help:"Mirror the pipeline state on the board status LED" default:"false" toml:"features.status_led" env:"FEATURES_STATUS_LED"`

	// Lock settings
	LockFile string `help:"Instance lock file (default: <tmp>/camrelay-<device>.lock)" default:"" toml:"lock.file" env:"LOCK_FILE"`

	// Logging settings
	LoggingLevel      string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat     string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingPipeline   string `help:"Pipeline logging level" default:"info" toml:"logging.pipeline" env:"LOGGING_PIPELINE"`
	LoggingEncoders   string `help:"Encoder probe logging level" default:"info" toml:"logging.encoders" env:"LOGGING_ENCODERS"`
	LoggingResolution string `help:"Resolution probe logging level" default:"info" toml:"logging.resolution" env:"LOGGING_RESOLUTION"`
	LoggingCapture    string `help:"Capture logging level" default:"info" toml:"logging.capture" env:"LOGGING_CAPTURE"`
	LoggingSupervisor string `help:"Supervisor logging level" default:"info" toml:"logging.supervisor" env:"LOGGING_SUPERVISOR"`
	LoggingFfmpeg     string `help:"FFmpeg output logging level" default:"info" toml:"logging.ffmpeg" env:"LOGGING_FFMPEG"`
	LoggingWatchdog   string `help:"Watchdog logging level" default:"info" toml:"logging.watchdog" env:"LOGGING_WATCHDOG"`
	LoggingNATS       string `help:"NATS logging level" default:"info" toml:"logging.nats" env:"LOGGING_NATS"`
	LoggingAPI        string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
}

// Logging returns the logging configuration described by the options.
func (o *Options) Logging() logging.Config {
	return logging.Config{
		Level:  o.LoggingLevel,
		Format: o.LoggingFormat,
		Modules: map[string]string{
			"pipeline":   o.LoggingPipeline,
			"encoders":   o.LoggingEncoders,
			"resolution": o.LoggingResolution,
			"capture":    o.LoggingCapture,
			"supervisor": o.LoggingSupervisor,
			"ffmpeg":     o.LoggingFfmpeg,
			"watchdog":   o.LoggingWatchdog,
			"nats":       o.LoggingNATS,
			"api":        o.LoggingAPI,
		},
	}
}

// Webcam returns the settings that require a pipeline restart when changed.
func (o *Options) Webcam() Webcam {
	return Webcam{
		SnapshotURL:    o.WebcamSnapshotURL,
		StreamURL:      o.WebcamStreamURL,
		ForceStreamURL: o.WebcamForceStreamURL,
		Pro:            o.StreamPro,
		RelayHost:      o.StreamRelayHost,
	}
}

// LockPath returns the instance lock file path.
func (o *Options) LockPath() string {
	if o.LockFile != "" {
		return o.LockFile
	}
	return filepath.Join(os.TempDir(), "camrelay-"+o.StreamDevice+".lock")
}

// Seconds converts an integer seconds setting to a duration.
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// Webcam holds the camera and stream settings a running pipeline depends on.
type Webcam struct {
	SnapshotURL    string
	StreamURL      string
	ForceStreamURL bool
	Pro            bool
	RelayHost      string
}

// Changed reports whether a restart is needed to apply next.
func (w Webcam) Changed(next Webcam) bool {
	return w != next
}

// LoadWebcam reads the webcam settings from path with defaults and env
// overrides applied. Unlike LoadConfig a missing file is an error, so a
// file caught mid-rewrite never resets the settings to defaults.
func LoadWebcam(path string) (Webcam, error) {
	if _, err := os.Stat(path); err != nil {
		return Webcam{}, fmt.Errorf("stat config: %w", err)
	}

	opts := &Options{}
	ApplyDefaults(opts)
	opts.Config = path
	if err := LoadConfig(opts, nil); err != nil {
		return Webcam{}, err
	}
	return opts.Webcam(), nil
}
