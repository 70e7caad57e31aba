package streamerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	cause := errors.New("boom")
	err := New(CodeEncoderUnavailable, "no encoder", cause)

	if got, want := err.Error(), "ENCODER_UNAVAILABLE: no encoder: boom"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}

	bare := New(CodeAlreadyRunning, "busy", nil)
	if got, want := bare.Error(), "ALREADY_RUNNING: busy"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestIsThroughWrapping(t *testing.T) {
	err := fmt.Errorf("pipeline: %w", New(CodeSourceUnavailable, "webcam", nil))

	if !Is(err, CodeSourceUnavailable) {
		t.Error("expected wrapped code to match")
	}
	if Is(err, CodeEncoderUnavailable) {
		t.Error("unexpected match for different code")
	}
	if Is(errors.New("plain"), CodeSourceUnavailable) {
		t.Error("plain error must not match")
	}
}

func TestFatal(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"resource warning", New(CodeExcessiveResourceUsage, "cpu", nil), false},
		{"startup", New(CodeEncoderStartupFailed, "exit", nil), true},
		{"plain", errors.New("x"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Fatal(tt.err); got != tt.want {
				t.Errorf("Fatal() = %v, want %v", got, tt.want)
			}
		})
	}
}
