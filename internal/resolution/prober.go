// Package resolution discovers the webcam's frame size by sampling a
// snapshot, retrying while the camera service comes up.
package resolution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/smazurov/camrelay/internal/metrics"
	"github.com/smazurov/camrelay/internal/streamerr"
)

// Defaults for Options.
const (
	DefaultMaxAttempts = 20
	DefaultBaseDelay   = time.Second
	DefaultMultiplier  = 2.0
	DefaultMaxInterval = 60 * time.Second
)

// Sample is a discovered frame size.
type Sample struct {
	Width  int
	Height int
}

// String formats the sample as WxH.
func (s Sample) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// CaptureFunc returns one JPEG frame.
type CaptureFunc func(ctx context.Context) ([]byte, error)

// DimensionsFunc decodes the frame size of a JPEG.
type DimensionsFunc func(jpeg []byte) (width, height int, err error)

// Options configures the retry schedule. Zero values select the defaults.
type Options struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	MaxInterval time.Duration
	Jitter      float64 // randomization factor, 0 disables
}

// Prober discovers the frame size.
type Prober struct {
	opts       Options
	dimensions DimensionsFunc
	logger     *slog.Logger
}

// NewProber creates a prober.
func NewProber(opts Options, dimensions DimensionsFunc, logger *slog.Logger) *Prober {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = DefaultBaseDelay
	}
	if opts.Multiplier < 1 {
		opts.Multiplier = DefaultMultiplier
	}
	if opts.MaxInterval <= 0 {
		opts.MaxInterval = DefaultMaxInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Prober{opts: opts, dimensions: dimensions, logger: logger}
}

func (p *Prober) schedule(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.opts.BaseDelay
	b.Multiplier = p.opts.Multiplier
	b.MaxInterval = p.opts.MaxInterval
	b.RandomizationFactor = p.opts.Jitter
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.opts.MaxAttempts-1)), ctx)
}

// Discover captures frames until one decodes, for at most MaxAttempts
// attempts. Every failure is treated as transient.
func (p *Prober) Discover(ctx context.Context, capture CaptureFunc) (Sample, error) {
	attempt := 0
	op := func() (Sample, error) {
		attempt++
		s, err := p.sample(ctx, capture)
		metrics.ObserveResolutionAttempt(err == nil)
		return s, err
	}
	notify := func(err error, next time.Duration) {
		p.logger.Warn("Webcam snapshot failed, retrying",
			"attempt", attempt, "max_attempts", p.opts.MaxAttempts, "retry_in", next, "error", err)
	}

	s, err := backoff.RetryNotifyWithData(op, p.schedule(ctx), notify)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return Sample{}, ctxErr
		}
		return Sample{}, streamerr.New(streamerr.CodeSourceUnavailable,
			fmt.Sprintf("no valid jpeg after %d attempts", attempt), err)
	}

	p.logger.Info("Discovered webcam resolution", "size", s.String(), "attempts", attempt)
	return s, nil
}

var errEmptyFrame = errors.New("not a valid jpeg source: empty frame")

func (p *Prober) sample(ctx context.Context, capture CaptureFunc) (Sample, error) {
	jpeg, err := capture(ctx)
	if err != nil {
		return Sample{}, fmt.Errorf("capture failed: %w", err)
	}
	if len(jpeg) == 0 {
		return Sample{}, errEmptyFrame
	}
	w, h, err := p.dimensions(jpeg)
	if err != nil {
		return Sample{}, fmt.Errorf("failed to decode frame: %w", err)
	}
	if w <= 0 || h <= 0 {
		return Sample{}, fmt.Errorf("invalid frame size %dx%d", w, h)
	}
	return Sample{Width: w, Height: h}, nil
}
