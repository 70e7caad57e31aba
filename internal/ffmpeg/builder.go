// Package ffmpeg builds encoder command lines and parses encoder output.
package ffmpeg

import (
	"fmt"
	"strconv"
	"strings"
)

// StreamArgs builds the argument list (without the binary) for a stream
// encode. Arguments are passed directly to exec, never through a shell.
func StreamArgs(p StreamParams) []string {
	return []string{
		"-loglevel", "error",
		"-re",
		"-i", p.Source,
		"-filter:v", "fps=" + strconv.Itoa(p.Framerate),
		"-b:v", strconv.Itoa(p.BitrateBps),
		"-pix_fmt", "yuv420p",
		"-s", fmt.Sprintf("%dx%d", p.Width, p.Height),
		"-flags:v", "+global_header",
		"-vcodec", p.Encoder,
		"-bsf", "dump_extra",
		"-an",
		"-f", "rtp", p.OutputURL(),
	}
}

// TrialArgs builds the argument list for a trial encode.
func TrialArgs(p TrialParams) []string {
	return []string{
		"-re",
		"-i", p.Sample,
		"-pix_fmt", "yuv420p",
		"-vcodec", p.Encoder,
		"-an",
		"-f", "rtp", p.OutputURL(),
	}
}

// CommandLine renders binary and args for logging.
func CommandLine(binary string, args []string) string {
	return binary + " " + strings.Join(args, " ")
}
