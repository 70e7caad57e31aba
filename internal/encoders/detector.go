// Package encoders detects which hardware H.264 encoder the local ffmpeg
// can actually drive.
package encoders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/smazurov/camrelay/internal/metrics"
	"github.com/smazurov/camrelay/internal/streamerr"
)

// Candidates in priority order.
var Candidates = []string{"h264_omx", "h264_v4l2m2m"}

// DefaultTrialTimeout bounds each trial encode.
const DefaultTrialTimeout = 20 * time.Second

// TrialRunner runs one trial encode. A nil error means the encoder works.
type TrialRunner interface {
	Trial(ctx context.Context, codec string) error
}

// TrialFunc adapts a function to TrialRunner.
type TrialFunc func(ctx context.Context, codec string) error

// Trial implements TrialRunner.
func (f TrialFunc) Trial(ctx context.Context, codec string) error {
	return f(ctx, codec)
}

// Result is the outcome of one trial.
type Result struct {
	Codec    string
	OK       bool
	Err      error
	Duration time.Duration
}

// Detector picks the first working candidate.
type Detector struct {
	candidates []string
	runner     TrialRunner
	timeout    time.Duration
	logger     *slog.Logger
}

// NewDetector creates a detector over Candidates. A zero timeout selects
// DefaultTrialTimeout.
func NewDetector(runner TrialRunner, timeout time.Duration, logger *slog.Logger) *Detector {
	return NewDetectorWithCandidates(Candidates, runner, timeout, logger)
}

// NewDetectorWithCandidates creates a detector over an explicit list.
func NewDetectorWithCandidates(candidates []string, runner TrialRunner, timeout time.Duration, logger *slog.Logger) *Detector {
	if timeout <= 0 {
		timeout = DefaultTrialTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		candidates: append([]string(nil), candidates...),
		runner:     runner,
		timeout:    timeout,
		logger:     logger,
	}
}

// Detect returns the first candidate whose trial succeeds. Later
// candidates are not tried.
func (d *Detector) Detect(ctx context.Context) (string, error) {
	var errs []error
	for _, codec := range d.candidates {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		r := d.try(ctx, codec)
		if r.OK {
			d.logger.Info("Selected encoder", "encoder", codec, "duration", r.Duration)
			return codec, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", codec, r.Err))
	}

	return "", streamerr.New(streamerr.CodeEncoderUnavailable,
		fmt.Sprintf("ffmpeg does not support %s encoding", strings.Join(d.candidates, "/")),
		errors.Join(errs...))
}

// ProbeAll runs every candidate and returns each result in order.
func (d *Detector) ProbeAll(ctx context.Context) []Result {
	results := make([]Result, 0, len(d.candidates))
	for _, codec := range d.candidates {
		if ctx.Err() != nil {
			results = append(results, Result{Codec: codec, Err: ctx.Err()})
			continue
		}
		results = append(results, d.try(ctx, codec))
	}
	return results
}

func (d *Detector) try(ctx context.Context, codec string) Result {
	trialCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	d.logger.Debug("Testing encoder", "encoder", codec, "timeout", d.timeout)
	start := time.Now()
	err := d.runner.Trial(trialCtx, codec)
	r := Result{Codec: codec, OK: err == nil, Err: err, Duration: time.Since(start)}

	metrics.ObserveEncoderTrial(codec, r.OK)
	if err != nil {
		d.logger.Debug("Encoder trial failed", "encoder", codec, "error", err)
	}
	return r
}
