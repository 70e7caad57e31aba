package pipeline

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/camrelay/internal/config"
	"github.com/smazurov/camrelay/internal/events"
)

// serviceFixture counts built pipelines and remembers their settings.
type serviceFixture struct {
	h   *harness
	bin string

	mu    sync.Mutex
	built []config.Webcam
}

func (f *serviceFixture) build(webcam config.Webcam) *Pipeline {
	f.mu.Lock()
	f.built = append(f.built, webcam)
	f.mu.Unlock()
	return New(f.h.options(f.bin, webcam))
}

func (f *serviceFixture) builds() []config.Webcam {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]config.Webcam(nil), f.built...)
}

// blockingDetector holds the probe until the run is cancelled.
type blockingDetector chan struct{}

func (b blockingDetector) Detect(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-b:
		return "", errors.New("unblocked")
	}
}

func waitForState(t *testing.T, s *Service, want events.StreamState) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for s.State().State != want {
		if time.Now().After(deadline) {
			t.Fatalf("state = %s, want %s", s.State().State, want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func newServiceFixture(t *testing.T) (*serviceFixture, string) {
	t.Helper()
	bin, argsFile := fakeEncoder(t, runForever)
	return &serviceFixture{h: newHarness(t), bin: bin}, argsFile
}

func TestServiceStartAndStop(t *testing.T) {
	f, _ := newServiceFixture(t)
	s := NewService(testWebcam, f.build, f.h.bus, testLogger())

	s.Start()
	waitForState(t, s, events.StateRunning)

	s.Stop()
	if st := s.State(); st.State != events.StateStopped {
		t.Errorf("state after Stop = %s", st.State)
	}

	// Stop is terminal.
	s.Restart("test", "after stop")
	if n := len(f.builds()); n != 1 {
		t.Errorf("built %d pipelines, want 1", n)
	}
}

func TestServiceUpdateWebcam(t *testing.T) {
	f, argsFile := newServiceFixture(t)
	s := NewService(testWebcam, f.build, f.h.bus, testLogger())
	s.Start()
	defer s.Stop()
	waitForState(t, s, events.StateRunning)

	if s.UpdateWebcam(testWebcam) {
		t.Error("unchanged settings triggered a restart")
	}

	next := testWebcam
	next.StreamURL = "http://127.0.0.1:8080/?action=stream&cam=2"
	if !s.UpdateWebcam(next) {
		t.Fatal("changed settings did not trigger a restart")
	}
	waitForState(t, s, events.StateRunning)

	builds := f.builds()
	if len(builds) != 2 || builds[1].StreamURL != next.StreamURL {
		t.Fatalf("builds = %+v", builds)
	}
	args, _ := os.ReadFile(argsFile)
	if !strings.Contains(string(args), "cam=2") {
		t.Errorf("restarted encoder args %q missing new stream url", args)
	}
}

func TestServiceRestartOnBusRequest(t *testing.T) {
	f, _ := newServiceFixture(t)
	s := NewService(testWebcam, f.build, f.h.bus, testLogger())
	s.Start()
	defer s.Stop()
	waitForState(t, s, events.StateRunning)
	first := s.State().RunID

	f.h.bus.Publish(events.RestartRequestedEvent{Source: "api", Reason: "test", Timestamp: time.Now()})

	deadline := time.Now().Add(3 * time.Second)
	for {
		st := s.State()
		if st.State == events.StateRunning && st.RunID != first {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("no new run after restart request, state = %+v", st)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if n := len(f.builds()); n != 2 {
		t.Errorf("built %d pipelines, want 2", n)
	}
}

func TestServiceStopDuringProbe(t *testing.T) {
	f, _ := newServiceFixture(t)
	block := make(chan struct{})

	s := NewService(testWebcam, func(webcam config.Webcam) *Pipeline {
		opts := f.h.options(f.bin, webcam)
		opts.Encoders = blockingDetector(block)
		return New(opts)
	}, nil, testLogger())
	s.Start()

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not abort the probe")
	}
	close(block)
	if got := f.h.reporter.all(); len(got) != 0 {
		t.Errorf("reports = %v, want none for a cancelled probe", got)
	}
}
