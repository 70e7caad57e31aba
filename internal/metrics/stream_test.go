package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSnapshotCache(t *testing.T) {
	ClearEncoder()

	SetEncoderRunning("h264_omx", 1280, 720, 25, 2000000)
	ObserveCPU(42.5)

	s := Current()
	if !s.Running {
		t.Error("expected running")
	}
	if s.CPUPercent != 42.5 {
		t.Errorf("CPUPercent = %v, want 42.5", s.CPUPercent)
	}
	if s.SampledAt.IsZero() {
		t.Error("expected sample time")
	}

	ClearEncoder()
	s = Current()
	if s.Running || s.CPUPercent != 0 {
		t.Errorf("expected cleared snapshot, got %+v", s)
	}
}

func TestCounters(t *testing.T) {
	before := Current()
	IncStartupFailure()
	IncUnexpectedExit(1)

	after := Current()
	if after.StartupFails != before.StartupFails+1 {
		t.Errorf("StartupFails = %d, want %d", after.StartupFails, before.StartupFails+1)
	}
	if after.Unexpected != before.Unexpected+1 {
		t.Errorf("Unexpected = %d, want %d", after.Unexpected, before.Unexpected+1)
	}
}

func TestHTTPHandler(t *testing.T) {
	SetEncoderRunning("h264_v4l2m2m", 640, 480, 5, 325000)
	ObserveEncoderTrial("h264_v4l2m2m", true)
	defer ClearEncoder()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	HTTPHandler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	body := w.Body.String()
	for _, want := range []string{
		"camrelay_encoder_running 1",
		`camrelay_encoder_info{bitrate_bps="325000",codec="h264_v4l2m2m",framerate="5",height="480",width="640"} 1`,
		`camrelay_probe_encoder_trials_total{codec="h264_v4l2m2m",result="ok"}`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in metrics output", want)
		}
	}
}
