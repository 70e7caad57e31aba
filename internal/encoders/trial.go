package encoders

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/smazurov/camrelay/internal/ffmpeg"
	"github.com/smazurov/camrelay/internal/ringbuf"
)

const stderrTailLines = 20

// FFmpegTrial encodes a short sample file to a throwaway RTP port.
type FFmpegTrial struct {
	Binary    string
	Sample    string
	Port      int  // 0 means ffmpeg.TrialPort
	VerifyRTP bool // also require RTP packets on Port
	Logger    *slog.Logger
}

// Trial implements TrialRunner.
func (t *FFmpegTrial) Trial(ctx context.Context, codec string) error {
	logger := t.Logger
	if logger == nil {
		logger = slog.Default()
	}

	params := ffmpeg.TrialParams{Binary: t.Binary, Sample: t.Sample, Encoder: codec, Port: t.Port}
	port := t.Port
	if port == 0 {
		port = ffmpeg.TrialPort
	}

	var listener *rtpListener
	if t.VerifyRTP {
		var err error
		listener, err = listenRTP(port)
		if err != nil {
			return fmt.Errorf("failed to listen for trial RTP: %w", err)
		}
		defer listener.Close()
	}

	args := ffmpeg.TrialArgs(params)
	cmd := exec.CommandContext(ctx, t.Binary, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = time.Second

	tail := newTailWriter(stderrTailLines)
	cmd.Stdout = io.Discard
	cmd.Stderr = tail

	logger.Debug("Running trial encode", "command", ffmpeg.CommandLine(t.Binary, args))

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("trial encode timed out: %w", ctxErr)
		}
		if out := tail.String(); out != "" {
			logger.Debug("Trial encode stderr", "encoder", codec, "stderr", out)
		}
		return fmt.Errorf("trial encode failed: %w", err)
	}

	if listener != nil {
		if n := listener.Packets(); n == 0 {
			return errors.New("trial encode produced no RTP packets")
		}
	}
	return nil
}

// tailWriter keeps the last lines written to it.
type tailWriter struct {
	lines   *ringbuf.Buffer[string]
	partial bytes.Buffer
}

func newTailWriter(n int) *tailWriter {
	return &tailWriter{lines: ringbuf.New[string](n)}
}

func (w *tailWriter) Write(p []byte) (int, error) {
	w.partial.Write(p)
	for {
		line, err := w.partial.ReadString('\n')
		if err != nil {
			// Keep the unterminated remainder for the next write.
			rest := []byte(line)
			w.partial.Reset()
			w.partial.Write(rest)
			break
		}
		w.lines.Push(strings.TrimRight(line, "\r\n"))
	}
	return len(p), nil
}

func (w *tailWriter) String() string {
	lines := w.lines.Snapshot()
	if w.partial.Len() > 0 {
		lines = append(lines, w.partial.String())
	}
	return strings.Join(lines, "\n")
}

// Version returns the ffmpeg version string, or "unknown".
func Version(ctx context.Context, binary string) string {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, binary, "-version").Output()
	if err != nil {
		return "unknown"
	}

	// First line looks like "ffmpeg version 7.1.1 Copyright..."
	first, _, _ := strings.Cut(string(output), "\n")
	if parts := strings.Fields(first); len(parts) >= 3 {
		return parts[2]
	}
	return "unknown"
}
