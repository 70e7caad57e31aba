package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/smazurov/camrelay/internal/events"
	"github.com/smazurov/camrelay/internal/ffmpeg"
	"github.com/smazurov/camrelay/internal/metrics"
	"github.com/smazurov/camrelay/internal/streamerr"
)

const (
	unexpectedExitTitle = "Webcam Streaming Stopped"

	// Longer lines are truncated in the window; the rest of the line is
	// still read and discarded.
	maxLineLength = 4096
)

// monitor drains the encoder's diagnostic output into the handle's window
// until EOF, then classifies the exit. Draining must never stop early: a
// full pipe blocks the encoder.
func (s *Supervisor) monitor(h *Handle) {
	defer h.wg.Done()
	defer close(h.exited)

	reader := bufio.NewReaderSize(h.stderr, maxLineLength)
	line := make([]byte, 0, 256)
	for {
		chunk, err := reader.ReadSlice('\n')
		if room := maxLineLength - len(line); room > 0 {
			line = append(line, chunk[:min(len(chunk), room)]...)
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if err == nil || len(line) > 0 {
			s.logLine(h, line)
		}
		line = line[:0]
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				s.logger.Warn("Error reading encoder output", "pid", h.PID, "error", err)
			}
			break
		}
	}

	if s.shutdown.Load() {
		return
	}

	select {
	case <-h.done:
	case <-h.ctx.Done():
		return
	}

	// Stop may have started between EOF and the exit status.
	if s.shutdown.Load() {
		return
	}

	s.reportUnexpectedExit(h)
}

func (s *Supervisor) logLine(h *Handle, raw []byte) {
	line := strings.ToValidUTF8(strings.TrimRight(string(raw), "\r\n"), "\uFFFD")
	h.window.Push(line)

	level, msg := ffmpeg.ParseLogLevel(line, "error")
	s.output.Log(context.Background(), ffmpeg.SlogLevel(level), msg, "pid", h.PID)
}

func (s *Supervisor) reportUnexpectedExit(h *Handle) {
	window := h.window.Snapshot()
	err := streamerr.New(streamerr.CodeUnexpectedExit,
		fmt.Sprintf("encoder quit with exit code %d", h.exitCode), h.waitErr)
	h.setErr(err)

	metrics.IncUnexpectedExit(h.exitCode)
	metrics.ClearEncoder()

	s.logger.Error("Encoder quit unexpectedly", "pid", h.PID, "run_id", h.RunID,
		"exit_code", h.exitCode, "stderr", strings.Join(window, "\n"))

	s.reporter.ReportEvent(unexpectedExitTitle, unexpectedExitMessage(h.exitCode, window),
		events.SeverityError, "")
}

func unexpectedExitMessage(exitCode int, window []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The webcam streaming process quit unexpectedly. Exit code: %d.", exitCode)
	if len(window) > 0 {
		b.WriteString("\n\nSTDERR:\n")
		b.WriteString(strings.Join(window, "\n"))
	}
	return b.String()
}
