package resolution

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/smazurov/camrelay/internal/streamerr"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastOptions(max int) Options {
	return Options{MaxAttempts: max, BaseDelay: time.Millisecond, MaxInterval: 4 * time.Millisecond}
}

func fixedDims(w, h int) DimensionsFunc {
	return func(b []byte) (int, int, error) {
		if string(b) == "garbage" {
			return 0, 0, errors.New("invalid JPEG format")
		}
		return w, h, nil
	}
}

// failingCapture fails the first n-1 calls and succeeds on call n.
func failingCapture(n int, calls *int) CaptureFunc {
	return func(context.Context) ([]byte, error) {
		*calls++
		if *calls < n {
			return nil, errors.New("connection refused")
		}
		return []byte("jpeg"), nil
	}
}

func TestDiscoverSucceedsOnAttemptN(t *testing.T) {
	for _, n := range []int{1, 3, 20} {
		calls := 0
		p := NewProber(fastOptions(20), fixedDims(1640, 1232), testLogger())

		got, err := p.Discover(context.Background(), failingCapture(n, &calls))
		if err != nil {
			t.Fatalf("n=%d: Discover() failed: %v", n, err)
		}
		if got != (Sample{Width: 1640, Height: 1232}) {
			t.Errorf("n=%d: Discover() = %v", n, got)
		}
		if calls != n {
			t.Errorf("n=%d: capture called %d times", n, calls)
		}
	}
}

func TestDiscoverExhaustsBudget(t *testing.T) {
	calls := 0
	p := NewProber(fastOptions(5), fixedDims(640, 480), testLogger())

	_, err := p.Discover(context.Background(), func(context.Context) ([]byte, error) {
		calls++
		return nil, errors.New("connection refused")
	})
	if !streamerr.Is(err, streamerr.CodeSourceUnavailable) {
		t.Fatalf("expected SOURCE_UNAVAILABLE, got %v", err)
	}
	if calls != 5 {
		t.Errorf("capture called %d times, want exactly 5", calls)
	}
}

func TestDiscoverTreatsBadFramesAsTransient(t *testing.T) {
	frames := [][]byte{nil, []byte("garbage"), []byte("jpeg")}
	i := 0
	p := NewProber(fastOptions(5), fixedDims(960, 540), testLogger())

	got, err := p.Discover(context.Background(), func(context.Context) ([]byte, error) {
		f := frames[i]
		i++
		return f, nil
	})
	if err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}
	if got.String() != "960x540" || i != 3 {
		t.Errorf("Discover() = %v after %d attempts", got, i)
	}
}

func TestDiscoverWrapsLastCause(t *testing.T) {
	cause := errors.New("no route to host")
	p := NewProber(fastOptions(2), fixedDims(1, 1), testLogger())

	_, err := p.Discover(context.Background(), func(context.Context) ([]byte, error) { return nil, cause })
	if !errors.Is(err, cause) {
		t.Errorf("expected last cause in chain, got %v", err)
	}
}

func TestDiscoverCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := NewProber(Options{MaxAttempts: 20, BaseDelay: time.Hour}, fixedDims(1, 1), testLogger())

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := p.Discover(ctx, func(context.Context) ([]byte, error) { return nil, errors.New("down") })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("cancellation did not interrupt the backoff wait")
	}
}

func TestBackoffScheduleIsExponential(t *testing.T) {
	p := NewProber(Options{BaseDelay: time.Second, MaxInterval: 8 * time.Second, MaxAttempts: 10}, nil, testLogger())
	b := p.schedule(context.Background())

	want := []time.Duration{1, 2, 4, 8, 8}
	for i, w := range want {
		if got := b.NextBackOff(); got != w*time.Second {
			t.Errorf("interval %d = %v, want %v", i, got, w*time.Second)
		}
	}
}
