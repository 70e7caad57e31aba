package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smazurov/camrelay/internal/capture"
	"github.com/smazurov/camrelay/internal/config"
	"github.com/smazurov/camrelay/internal/events"
	"github.com/smazurov/camrelay/internal/process"
	"github.com/smazurov/camrelay/internal/resolution"
	"github.com/smazurov/camrelay/internal/streamerr"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakePlatform bool

func (f fakePlatform) IsRaspberryPi() bool { return bool(f) }

type fakeDetector struct {
	codec string
	err   error
	calls atomic.Int32
}

func (d *fakeDetector) Detect(ctx context.Context) (string, error) {
	d.calls.Add(1)
	return d.codec, d.err
}

// fakeProber calls capture once and returns a fixed sample.
type fakeProber struct {
	sample resolution.Sample
	err    error
}

func (p *fakeProber) Discover(ctx context.Context, capture resolution.CaptureFunc) (resolution.Sample, error) {
	if _, err := capture(ctx); err != nil {
		return resolution.Sample{}, streamerr.New(streamerr.CodeSourceUnavailable, "capture failed", err)
	}
	return p.sample, p.err
}

type fakeCapture struct {
	mu   sync.Mutex
	srcs []capture.Source
}

func (c *fakeCapture) CaptureJPEG(_ context.Context, src capture.Source) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.srcs = append(c.srcs, src)
	return []byte{0xff, 0xd8}, nil
}

type recordingReporter struct {
	mu     sync.Mutex
	titles []string
}

func (r *recordingReporter) ReportEvent(title, _ string, _ events.Severity, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.titles = append(r.titles, title)
}

func (r *recordingReporter) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.titles...)
}

type fakeSampler struct{}

func (fakeSampler) Percent(time.Duration) (float64, error) { return 1, nil }
func (fakeSampler) IsRunning() (bool, error)               { return true, nil }

// fakeEncoder writes a shell script standing in for ffmpeg. It records its
// arguments in args.txt next to the script.
func fakeEncoder(t *testing.T, body string) (bin, argsFile string) {
	t.Helper()
	dir := t.TempDir()
	bin = filepath.Join(dir, "ffmpeg")
	argsFile = filepath.Join(dir, "args.txt")
	script := "#!/bin/sh\necho \"$@\" > " + argsFile + "\n" + body + "\n"
	if err := os.WriteFile(bin, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake encoder: %v", err)
	}
	return bin, argsFile
}

const runForever = `trap 'exit 0' INT TERM; while :; do sleep 0.05; done`

type harness struct {
	detector *fakeDetector
	prober   *fakeProber
	capture  *fakeCapture
	reporter *recordingReporter
	bus      *events.Bus
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	bus := events.New()
	t.Cleanup(func() { _ = bus.Close() })
	return &harness{
		detector: &fakeDetector{codec: "h264_v4l2m2m"},
		prober:   &fakeProber{sample: resolution.Sample{Width: 1640, Height: 1232}},
		capture:  &fakeCapture{},
		reporter: &recordingReporter{},
		bus:      bus,
	}
}

func (h *harness) options(binary string, webcam config.Webcam) Options {
	return Options{
		Webcam:     webcam,
		Binary:     binary,
		Platform:   fakePlatform(true),
		Encoders:   h.detector,
		Resolution: h.prober,
		Capture:    h.capture,
		Reporter:   h.reporter,
		Bus:        h.bus,
		Logger:     testLogger(),
		Supervisor: process.Options{
			GraceWindow:     200 * time.Millisecond,
			GracefulTimeout: 500 * time.Millisecond,
			KillTimeout:     500 * time.Millisecond,
			Logger:          testLogger(),
			Watchdog: process.WatchdogOptions{
				Interval: time.Hour,
				Sampler:  func(int) (process.Sampler, error) { return fakeSampler{}, nil },
			},
		},
	}
}

var testWebcam = config.Webcam{
	SnapshotURL:    "http://127.0.0.1:8080/?action=snapshot",
	StreamURL:      "http://127.0.0.1:8080/?action=stream",
	ForceStreamURL: true,
	RelayHost:      "127.0.0.1",
}

func TestRunSkipsOffRaspberryPi(t *testing.T) {
	h := newHarness(t)
	opts := h.options("ffmpeg", testWebcam)
	opts.Platform = fakePlatform(false)

	handle, err := New(opts).Run(context.Background())
	if err != nil || handle != nil {
		t.Fatalf("Run() = %v, %v; want nil, nil", handle, err)
	}
	if h.detector.calls.Load() != 0 {
		t.Error("encoder probe ran on unsupported platform")
	}
	if len(h.reporter.all()) != 0 {
		t.Error("no alert expected on unsupported platform")
	}
}

func TestRunStartsEncoder(t *testing.T) {
	h := newHarness(t)
	bin, argsFile := fakeEncoder(t, runForever)

	states := make(chan events.StreamStateEvent, 16)
	h.bus.Subscribe(func(ev events.StreamStateEvent) { states <- ev })

	p := New(h.options(bin, testWebcam))
	handle, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	defer p.Stop()

	if got := p.State(); got.State != events.StateRunning || got.PID != handle.PID || got.RunID != handle.RunID {
		t.Errorf("state = %+v", got)
	}

	args, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatal(err)
	}
	// 1640x1232 restricted tier: 5 fps at a quarter of 3 Mbps.
	for _, want := range []string{
		"-i http://127.0.0.1:8080/?action=stream",
		"-filter:v fps=5",
		"-b:v 750000",
		"-s 1640x1232",
		"-vcodec h264_v4l2m2m",
		"rtp://127.0.0.1:8004?pkt_size=1300",
	} {
		if !strings.Contains(string(args), want) {
			t.Errorf("command line %q missing %q", args, want)
		}
	}

	h.capture.mu.Lock()
	srcs := append([]capture.Source(nil), h.capture.srcs...)
	h.capture.mu.Unlock()
	if len(srcs) != 1 || !srcs[0].ForceStreamURL {
		t.Errorf("capture sources = %+v, want one forced stream capture", srcs)
	}

	seen := map[events.StreamState]bool{}
	deadline := time.After(2 * time.Second)
	for !seen[events.StateRunning] {
		select {
		case ev := <-states:
			seen[ev.State] = true
		case <-deadline:
			t.Fatalf("states seen %v, want running", seen)
		}
	}
	if !seen[events.StateProbing] || !seen[events.StateStarting] {
		t.Errorf("states seen %v, want probing and starting", seen)
	}
}

func TestRunProTierUsesFullRate(t *testing.T) {
	h := newHarness(t)
	h.prober.sample = resolution.Sample{Width: 960, Height: 540}
	bin, argsFile := fakeEncoder(t, runForever)

	webcam := testWebcam
	webcam.Pro = true
	p := New(h.options(bin, webcam))
	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	defer p.Stop()

	args, _ := os.ReadFile(argsFile)
	if !strings.Contains(string(args), "fps=25") || !strings.Contains(string(args), "-b:v 1300000") {
		t.Errorf("command line %q, want 25 fps at 1300000", args)
	}
}

func TestRunEncoderUnavailable(t *testing.T) {
	h := newHarness(t)
	h.detector.err = streamerr.New(streamerr.CodeEncoderUnavailable, "no encoder", nil)

	p := New(h.options("ffmpeg", testWebcam))
	_, err := p.Run(context.Background())
	if !streamerr.Is(err, streamerr.CodeEncoderUnavailable) {
		t.Fatalf("err = %v, want ENCODER_UNAVAILABLE", err)
	}
	if got := h.reporter.all(); len(got) != 1 || got[0] != FailedTitle {
		t.Errorf("reports = %v, want one %q", got, FailedTitle)
	}
	if st := p.State(); st.State != events.StateFailed || st.Error == "" {
		t.Errorf("state = %+v, want failed with error", st)
	}
	if len(h.capture.srcs) != 0 {
		t.Error("resolution probe ran after encoder probe failed")
	}
}

func TestRunStreamURLMissing(t *testing.T) {
	h := newHarness(t)
	webcam := testWebcam
	webcam.StreamURL = ""

	_, err := New(h.options("ffmpeg", webcam)).Run(context.Background())
	if !streamerr.Is(err, streamerr.CodeStreamURLMissing) {
		t.Fatalf("err = %v, want STREAM_URL_MISSING", err)
	}
	if got := h.reporter.all(); len(got) != 1 {
		t.Errorf("reports = %v, want one", got)
	}
}

func TestRunStartupFailure(t *testing.T) {
	h := newHarness(t)
	bin, _ := fakeEncoder(t, `echo "Unknown encoder" >&2; exit 1`)

	p := New(h.options(bin, testWebcam))
	_, err := p.Run(context.Background())
	if !streamerr.Is(err, streamerr.CodeEncoderStartupFailed) {
		t.Fatalf("err = %v, want ENCODER_STARTUP_FAILED", err)
	}
	if got := h.reporter.all(); len(got) != 1 || got[0] != FailedTitle {
		t.Errorf("reports = %v", got)
	}
}

func TestRunCancelledIsNotReported(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h.detector.err = context.Canceled

	p := New(h.options("ffmpeg", testWebcam))
	if _, err := p.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if got := h.reporter.all(); len(got) != 0 {
		t.Errorf("reports = %v, want none", got)
	}
	if st := p.State(); st.State != events.StateStopped {
		t.Errorf("state = %s, want stopped", st.State)
	}
}

func TestUnexpectedExitMarksFailed(t *testing.T) {
	h := newHarness(t)
	bin, _ := fakeEncoder(t, `sleep 0.4; echo "Connection reset" >&2; exit 1`)

	p := New(h.options(bin, testWebcam))
	handle, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	defer p.Stop()

	select {
	case <-handle.Exited():
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for exit")
	}

	deadline := time.Now().Add(time.Second)
	for p.State().State != events.StateFailed {
		if time.Now().After(deadline) {
			t.Fatalf("state = %s, want failed", p.State().State)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if got := h.reporter.all(); len(got) != 1 || got[0] == FailedTitle {
		t.Errorf("reports = %v, want only the unexpected exit report", got)
	}
}

func TestStopBeforeRun(t *testing.T) {
	h := newHarness(t)
	bin, _ := fakeEncoder(t, runForever)

	p := New(h.options(bin, testWebcam))
	p.Stop()

	if _, err := p.Run(context.Background()); !errors.Is(err, process.ErrShutdown) {
		t.Fatalf("err = %v, want ErrShutdown", err)
	}
	if got := h.reporter.all(); len(got) != 0 {
		t.Errorf("reports = %v, want none", got)
	}
	if st := p.State(); st.State != events.StateStopped {
		t.Errorf("state = %s, want stopped", st.State)
	}
}
