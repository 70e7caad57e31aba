// Package pipeline wires the probes, the bitrate policy and the process
// supervisor into one webcam streaming run.
//
// A run gates on the host platform, picks a working hardware encoder,
// discovers the camera resolution, derives framerate and bitrate and hands
// the resulting command to a fresh process.Supervisor. State transitions are
// published on the event bus as events.StreamStateEvent.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/camrelay/internal/capture"
	"github.com/smazurov/camrelay/internal/config"
	"github.com/smazurov/camrelay/internal/events"
	"github.com/smazurov/camrelay/internal/ffmpeg"
	"github.com/smazurov/camrelay/internal/notify"
	"github.com/smazurov/camrelay/internal/platform"
	"github.com/smazurov/camrelay/internal/policy"
	"github.com/smazurov/camrelay/internal/process"
	"github.com/smazurov/camrelay/internal/resolution"
	"github.com/smazurov/camrelay/internal/streamerr"
)

// Startup failure alert.
const (
	FailedTitle   = "Webcam Streaming Failed"
	FailedMessage = "The webcam streaming failed to start. Obico is now streaming at 0.1 FPS."
)

// Platform gates the pipeline on supported hardware.
type Platform interface {
	IsRaspberryPi() bool
}

// EncoderDetector picks a working H.264 encoder.
type EncoderDetector interface {
	Detect(ctx context.Context) (string, error)
}

// ResolutionProber discovers the camera frame size.
type ResolutionProber interface {
	Discover(ctx context.Context, capture resolution.CaptureFunc) (resolution.Sample, error)
}

// FrameSource captures single JPEG frames.
type FrameSource interface {
	CaptureJPEG(ctx context.Context, src capture.Source) ([]byte, error)
}

// Options configures a Pipeline.
type Options struct {
	Webcam     config.Webcam
	Binary     string // resolved ffmpeg executable
	Platform   Platform
	Encoders   EncoderDetector
	Resolution ResolutionProber
	Capture    FrameSource
	Supervisor process.Options
	Reporter   notify.Reporter
	Bus        *events.Bus // optional
	Logger     *slog.Logger
}

// Pipeline is a single streaming run. Like the supervisor it owns, it is
// single-use: a restart builds a new Pipeline.
type Pipeline struct {
	opts     Options
	logger   *slog.Logger
	reporter notify.Reporter
	now      func() time.Time

	mu      sync.Mutex
	sup     *process.Supervisor
	stopped bool
	state   events.StreamStateEvent
}

// New creates a pipeline.
func New(opts Options) *Pipeline {
	if opts.Platform == nil {
		opts.Platform = platform.System
	}
	if opts.Reporter == nil {
		opts.Reporter = notify.Discard
	}
	if opts.Supervisor.Reporter == nil {
		opts.Supervisor.Reporter = opts.Reporter
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	p := &Pipeline{
		opts:     opts,
		logger:   opts.Logger,
		reporter: opts.Reporter,
		now:      time.Now,
	}
	p.state = events.StreamStateEvent{State: events.StateIdle, Timestamp: p.now()}
	return p
}

// Run probes the hardware and camera and launches the encoder. It returns
// once the encoder has survived the startup grace window. On hosts other
// than a Raspberry Pi it logs a warning and returns a nil handle and nil
// error. Startup failures are reported before being returned.
func (p *Pipeline) Run(ctx context.Context) (*process.Handle, error) {
	if !p.opts.Platform.IsRaspberryPi() {
		p.logger.Warn("Not running on a Raspberry Pi, skipping video pipeline")
		return nil, nil
	}

	h, err := p.run(ctx)
	if err != nil {
		return nil, p.fail(ctx, err)
	}
	return h, nil
}

func (p *Pipeline) run(ctx context.Context) (*process.Handle, error) {
	p.setState(events.StreamStateEvent{State: events.StateProbing})

	encoder, err := p.opts.Encoders.Detect(ctx)
	if err != nil {
		return nil, err
	}

	src := capture.Source{
		SnapshotURL:    p.opts.Webcam.SnapshotURL,
		StreamURL:      p.opts.Webcam.StreamURL,
		ForceStreamURL: p.opts.Webcam.ForceStreamURL,
	}
	sample, err := p.opts.Resolution.Discover(ctx, func(ctx context.Context) ([]byte, error) {
		return p.opts.Capture.CaptureJPEG(ctx, src)
	})
	if err != nil {
		return nil, err
	}

	if p.opts.Webcam.StreamURL == "" {
		return nil, streamerr.New(streamerr.CodeStreamURLMissing,
			"stream_url not configured, unable to stream the webcam", nil)
	}

	stream := policy.Select(sample.Width, sample.Height, p.opts.Webcam.Pro)
	params := ffmpeg.StreamParams{
		Binary:     p.opts.Binary,
		Source:     p.opts.Webcam.StreamURL,
		Framerate:  stream.Framerate,
		BitrateBps: stream.BitrateBps,
		Width:      sample.Width,
		Height:     sample.Height,
		Encoder:    encoder,
		RelayHost:  p.opts.Webcam.RelayHost,
	}
	p.logger.Info("Stream parameters selected", "encoder", encoder, "size", sample.String(),
		"policy", stream.String(), "pro", p.opts.Webcam.Pro)

	sup, err := p.supervisor()
	if err != nil {
		return nil, err
	}

	p.setState(stateFor(events.StateStarting, params))

	h, err := sup.Start(ctx, params)
	if err != nil {
		return nil, err
	}

	running := stateFor(events.StateRunning, params)
	running.RunID = h.RunID
	running.PID = h.PID
	p.setState(running)

	go p.follow(h)
	return h, nil
}

// supervisor creates the run's supervisor unless Stop got there first.
func (p *Pipeline) supervisor() (*process.Supervisor, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return nil, process.ErrShutdown
	}
	p.sup = process.NewSupervisor(p.opts.Supervisor)
	return p.sup, nil
}

// follow records an unexpected exit. The monitor has already reported it.
func (p *Pipeline) follow(h *process.Handle) {
	<-h.Exited()
	if err := h.Err(); err != nil {
		info := h.Info()
		failed := stateFor(events.StateFailed, info.Params)
		failed.RunID = info.RunID
		failed.Error = err.Error()
		p.setState(failed)
	}
}

func (p *Pipeline) fail(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, process.ErrShutdown) {
		p.logger.Info("Video pipeline cancelled", "error", err)
		p.setState(events.StreamStateEvent{State: events.StateStopped})
		return err
	}

	p.logger.Error("Video pipeline failed", "error", err)
	p.setState(events.StreamStateEvent{State: events.StateFailed, Error: err.Error()})
	p.reporter.ReportEvent(FailedTitle, FailedMessage, events.SeverityWarning, notify.InfoURLStreamStuck)
	return err
}

// Stop stops the encoder, if any, and marks the pipeline stopped. Safe to
// call at any point and more than once. Callers abort an in-flight Run by
// cancelling its context.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	already := p.stopped
	p.stopped = true
	sup := p.sup
	p.mu.Unlock()

	if sup != nil {
		sup.Stop()
	}
	if !already {
		p.setState(events.StreamStateEvent{State: events.StateStopped})
	}
}

// State returns the last published state.
func (p *Pipeline) State() events.StreamStateEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pipeline) setState(ev events.StreamStateEvent) {
	ev.Timestamp = p.now()

	p.mu.Lock()
	// Once Stop has published stopped, late transitions from the run
	// goroutine are dropped.
	if p.stopped && p.state.State == events.StateStopped {
		p.mu.Unlock()
		return
	}
	p.state = ev
	p.mu.Unlock()

	p.logger.Debug("Stream state changed", "state", ev.State)
	if p.opts.Bus != nil {
		p.opts.Bus.Publish(ev)
	}
}

func stateFor(state events.StreamState, params ffmpeg.StreamParams) events.StreamStateEvent {
	return events.StreamStateEvent{
		State:      state,
		Encoder:    params.Encoder,
		Width:      params.Width,
		Height:     params.Height,
		Framerate:  params.Framerate,
		BitrateBps: params.BitrateBps,
	}
}
