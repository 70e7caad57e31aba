package ffmpeg

import (
	"log/slog"
	"slices"
	"strings"
	"testing"
)

func testStreamParams() StreamParams {
	return StreamParams{
		Binary:     "ffmpeg",
		Source:     "http://127.0.0.1:8080/?action=stream",
		Framerate:  25,
		BitrateBps: 2000000,
		Width:      1280,
		Height:     720,
		Encoder:    "h264_v4l2m2m",
		RelayHost:  "127.0.0.1",
	}
}

func TestStreamArgs(t *testing.T) {
	got := CommandLine("ffmpeg", StreamArgs(testStreamParams()))
	want := "ffmpeg -loglevel error -re -i http://127.0.0.1:8080/?action=stream -filter:v fps=25 -b:v 2000000" +
		" -pix_fmt yuv420p -s 1280x720 -flags:v +global_header -vcodec h264_v4l2m2m -bsf dump_extra -an" +
		" -f rtp rtp://127.0.0.1:8004?pkt_size=1300"
	if got != want {
		t.Errorf("StreamArgs() =\n%s\nwant\n%s", got, want)
	}
}

func TestStreamArgsKeepsSourceAsOneArgument(t *testing.T) {
	p := testStreamParams()
	p.Source = "http://cam/stream?a=1&b=two words"
	args := StreamArgs(p)
	if !slices.Contains(args, p.Source) {
		t.Errorf("source not passed verbatim: %v", args)
	}
}

func TestStreamOutputURLCustomPort(t *testing.T) {
	p := testStreamParams()
	p.RelayHost = "::1"
	p.RelayPort = 9004
	if got := p.OutputURL(); got != "rtp://[::1]:9004?pkt_size=1300" {
		t.Errorf("OutputURL() = %s", got)
	}
}

func TestTrialArgs(t *testing.T) {
	got := CommandLine("/opt/ffmpeg", TrialArgs(TrialParams{Sample: "/usr/share/camrelay/test-video.mp4", Encoder: "h264_omx"}))
	want := "/opt/ffmpeg -re -i /usr/share/camrelay/test-video.mp4 -pix_fmt yuv420p -vcodec h264_omx -an -f rtp rtp://localhost:8014?pkt_size=1300"
	if got != want {
		t.Errorf("TrialArgs() = %s, want %s", got, want)
	}
}

func TestStreamParamsValidate(t *testing.T) {
	if err := testStreamParams().Validate(); err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*StreamParams)
		want   string
	}{
		{"missing source", func(p *StreamParams) { p.Source = "" }, "source is required"},
		{"zero framerate", func(p *StreamParams) { p.Framerate = 0 }, "invalid framerate"},
		{"zero bitrate", func(p *StreamParams) { p.BitrateBps = 0 }, "invalid bitrate"},
		{"zero size", func(p *StreamParams) { p.Width = 0 }, "invalid size"},
		{"missing encoder", func(p *StreamParams) { p.Encoder = "" }, "encoder is required"},
		{"missing relay", func(p *StreamParams) { p.RelayHost = "" }, "relay host is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testStreamParams()
			tt.mutate(&p)
			err := p.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.want)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		line      string
		wantLevel string
		wantMsg   string
	}{
		{"[warning] deprecated pixel format", "warning", "deprecated pixel format"},
		{"[h264_v4l2m2m @ 0x55d5] [error] Could not find a valid device", "error", "[h264_v4l2m2m @ 0x55d5] Could not find a valid device"},
		{"Connection refused", "error", "Connection refused"},
		{"[http @ 0x1] no level here", "error", "[http @ 0x1] no level here"},
		{"[]", "error", "[]"},
	}
	for _, tt := range tests {
		level, msg := ParseLogLevel(tt.line, "error")
		if level != tt.wantLevel || msg != tt.wantMsg {
			t.Errorf("ParseLogLevel(%q) = (%q, %q), want (%q, %q)", tt.line, level, msg, tt.wantLevel, tt.wantMsg)
		}
	}
}

func TestSlogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"fatal":   slog.LevelError,
		"error":   slog.LevelError,
		"warning": slog.LevelWarn,
		"info":    slog.LevelInfo,
		"debug":   slog.LevelDebug,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := SlogLevel(in); got != want {
			t.Errorf("SlogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
