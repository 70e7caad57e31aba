package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/smazurov/camrelay/internal/ffmpeg"
	"github.com/smazurov/camrelay/internal/metrics"
	"github.com/smazurov/camrelay/internal/notify"
	"github.com/smazurov/camrelay/internal/ringbuf"
	"github.com/smazurov/camrelay/internal/streamerr"
)

// Defaults for Options.
const (
	DefaultGraceWindow     = 10 * time.Second
	DefaultGracefulTimeout = 5 * time.Second
	DefaultKillTimeout     = 5 * time.Second
	DefaultWindowSize      = 50
)

// ErrShutdown is returned by Start once Stop has been called.
var ErrShutdown = errors.New("supervisor is shut down")

// Options configures a Supervisor. Zero values select the defaults.
type Options struct {
	GraceWindow     time.Duration // exit inside this window is a startup failure
	GracefulTimeout time.Duration // SIGINT to SIGKILL delay
	KillTimeout     time.Duration // wait after SIGKILL before giving up
	Nice            int           // niceness of the encoder; 0 inherits ours
	WindowSize      int           // diagnostic lines retained by the monitor
	Watchdog        WatchdogOptions

	Reporter     notify.Reporter
	Logger       *slog.Logger // supervisor events
	OutputLogger *slog.Logger // encoder output lines
}

func (o Options) withDefaults() Options {
	if o.GraceWindow <= 0 {
		o.GraceWindow = DefaultGraceWindow
	}
	if o.GracefulTimeout <= 0 {
		o.GracefulTimeout = DefaultGracefulTimeout
	}
	if o.KillTimeout <= 0 {
		o.KillTimeout = DefaultKillTimeout
	}
	if o.WindowSize <= 0 {
		o.WindowSize = DefaultWindowSize
	}
	if o.Reporter == nil {
		o.Reporter = notify.Discard
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.OutputLogger == nil {
		o.OutputLogger = o.Logger
	}
	return o
}

// Supervisor launches the encoder and owns its lifecycle.
type Supervisor struct {
	opts     Options
	logger   *slog.Logger
	output   *slog.Logger
	reporter notify.Reporter
	watchdog *Watchdog

	shutdown atomic.Bool
	stopOnce sync.Once

	mu     sync.Mutex
	handle *Handle
}

// NewSupervisor creates a supervisor. It is single-use: after Stop every
// Start fails with ErrShutdown.
func NewSupervisor(opts Options) *Supervisor {
	opts = opts.withDefaults()
	return &Supervisor{
		opts:     opts,
		logger:   opts.Logger,
		output:   opts.OutputLogger,
		reporter: opts.Reporter,
		watchdog: NewWatchdog(opts.Watchdog, opts.Reporter, opts.Logger),
	}
}

// ShuttingDown reports whether Stop has been called.
func (s *Supervisor) ShuttingDown() bool {
	return s.shutdown.Load()
}

// Handle returns the current handle, or nil.
func (s *Supervisor) Handle() *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle
}

// Start launches the encoder and blocks for the startup grace window.
func (s *Supervisor) Start(ctx context.Context, p ffmpeg.StreamParams) (*Handle, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid stream parameters: %w", err)
	}

	h, err := s.launch(p)
	if err != nil {
		return nil, err
	}

	grace := time.NewTimer(s.opts.GraceWindow)
	defer grace.Stop()

	select {
	case <-h.done:
		if s.shutdown.Load() {
			close(h.exited)
			return nil, ErrShutdown
		}
		return nil, s.startupFailed(h)

	case <-ctx.Done():
		s.logger.Info("Start cancelled, stopping encoder", "pid", h.PID)
		s.release(h)
		s.terminate(h)
		h.closeOutput()
		h.cancel()
		close(h.exited)
		return nil, ctx.Err()

	case <-grace.C:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Stop won the race against the grace timer and owns the teardown.
	if s.shutdown.Load() {
		close(h.exited)
		return nil, ErrShutdown
	}

	h.wg.Add(2)
	go s.monitor(h)
	go func() {
		defer h.wg.Done()
		s.watchdog.Watch(h.ctx, h)
	}()

	metrics.SetEncoderRunning(p.Encoder, p.Width, p.Height, p.Framerate, p.BitrateBps)
	s.logger.Info("Encoder running", "pid", h.PID, "run_id", h.RunID, "grace", s.opts.GraceWindow)
	return h, nil
}

// launch starts the subprocess and registers it as the current handle.
func (s *Supervisor) launch(p ffmpeg.StreamParams) (*Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.shutdown.Load() {
		return nil, ErrShutdown
	}
	if s.handle != nil {
		select {
		case <-s.handle.exited:
		default:
			return nil, streamerr.New(streamerr.CodeAlreadyRunning,
				fmt.Sprintf("encoder already running with pid %d", s.handle.PID), nil)
		}
	}

	args := ffmpeg.StreamArgs(p)
	cmd := exec.Command(p.Binary, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	// The read end is left unread during the grace window; the kernel pipe
	// buffer holds the output of an encoder running with -loglevel error.
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}
	cmd.Stderr = pw

	s.logger.Debug("Launching encoder", "command", ffmpeg.CommandLine(p.Binary, args))

	if err := s.startNiced(cmd); err != nil {
		_ = pr.Close()
		_ = pw.Close()
		_ = stdin.Close()
		metrics.IncStartupFailure()
		s.logger.Error("Failed to launch encoder", "error", err, "binary", p.Binary)
		return nil, streamerr.New(streamerr.CodeEncoderStartupFailed, "failed to launch encoder", err)
	}
	_ = pw.Close()

	h := newHandle(cmd.Process.Pid, p, pr, s.opts.WindowSize)
	h.cmd = cmd
	h.stdin = stdin
	go h.wait()

	s.handle = h
	s.logger.Info("Encoder started", "pid", h.PID, "run_id", h.RunID, "encoder", p.Encoder,
		"size", fmt.Sprintf("%dx%d", p.Width, p.Height), "fps", p.Framerate, "bitrate", p.BitrateBps)
	return h, nil
}

// startNiced starts cmd from a thread carrying the configured niceness so
// the encoder and every thread it creates inherit it. On Linux the
// priority of a running process applies per thread, so renicing the PID
// after start would miss threads ffmpeg has already spawned.
func (s *Supervisor) startNiced(cmd *exec.Cmd) error {
	if s.opts.Nice == 0 {
		return cmd.Start()
	}

	errc := make(chan error, 1)
	go func() {
		// Never unlocked: the thread exits with the goroutine, since an
		// unprivileged process cannot lower its niceness back.
		runtime.LockOSThread()
		if err := unix.Setpriority(unix.PRIO_PROCESS, 0, s.opts.Nice); err != nil {
			s.logger.Warn("Failed to set encoder priority", "nice", s.opts.Nice, "error", err)
		}
		errc <- cmd.Start()
	}()
	return <-errc
}

// startupFailed drains the captured output of a process that died inside
// the grace window and releases its handle.
func (s *Supervisor) startupFailed(h *Handle) error {
	s.release(h)
	defer h.cancel()
	defer close(h.exited)

	_ = h.stderr.SetReadDeadline(time.Now().Add(time.Second))
	out, _ := io.ReadAll(h.stderr)
	h.closeOutput()

	metrics.IncStartupFailure()
	s.logger.Error("Encoder quit during startup", "pid", h.PID, "exit_code", h.exitCode,
		"grace", s.opts.GraceWindow, "stderr", string(out))

	return streamerr.New(streamerr.CodeEncoderStartupFailed,
		fmt.Sprintf("encoder exited with code %d within %s", h.exitCode, s.opts.GraceWindow), h.waitErr)
}

// release drops h as the current handle if it still is.
func (s *Supervisor) release(h *Handle) {
	s.mu.Lock()
	if s.handle == h {
		s.handle = nil
	}
	s.mu.Unlock()
}

// Stop sets the shutdown flag, terminates the encoder and joins the
// background tasks. Idempotent; safe without a process.
func (s *Supervisor) Stop() {
	s.shutdown.Store(true)

	s.stopOnce.Do(func() {
		s.mu.Lock()
		h := s.handle
		s.handle = nil
		s.mu.Unlock()

		if h == nil {
			return
		}

		exitCode := s.terminate(h)
		h.closeOutput()
		h.cancel()
		h.wg.Wait()
		metrics.ClearEncoder()
		s.logger.Info("Encoder stopped", "pid", h.PID, "run_id", h.RunID, "exit_code", exitCode)
	})
}

// terminate sends SIGINT to the encoder's process group and escalates to
// SIGKILL after the graceful timeout. Returns the exit code.
func (s *Supervisor) terminate(h *Handle) int {
	select {
	case <-h.done:
		return h.exitCode
	default:
	}

	s.logger.Info("Sending SIGINT to encoder", "pid", h.PID)
	if err := unix.Kill(-h.PID, unix.SIGINT); err != nil && !errors.Is(err, unix.ESRCH) {
		s.logger.Warn("Failed to send SIGINT", "error", err)
	}

	select {
	case <-h.done:
		return h.exitCode
	case <-time.After(s.opts.GracefulTimeout):
	}

	s.logger.Warn("Graceful shutdown timeout, forcing kill", "timeout", s.opts.GracefulTimeout)
	if err := unix.Kill(-h.PID, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
		s.logger.Error("Failed to kill encoder", "error", err)
	}

	select {
	case <-h.done:
	case <-time.After(s.opts.KillTimeout):
		s.logger.Error("Encoder did not exit after kill signal", "pid", h.PID)
	}
	return 137
}

// Handle is one supervised encoder process. It is never reused.
type Handle struct {
	RunID     string
	PID       int
	StartedAt time.Time
	Params    ffmpeg.StreamParams

	cmd    *exec.Cmd
	stdin  io.WriteCloser // held open so the encoder never reads a terminal
	stderr *os.File
	window *ringbuf.Buffer[string]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	done     chan struct{} // process exited
	exitCode int
	waitErr  error

	exited  chan struct{} // exit classified
	errMu   sync.Mutex
	exitErr error

	closeOnce sync.Once
}

func newHandle(pid int, p ffmpeg.StreamParams, stderr *os.File, window int) *Handle {
	ctx, cancel := context.WithCancel(context.Background())
	return &Handle{
		RunID:     uuid.NewString(),
		PID:       pid,
		StartedAt: time.Now(),
		Params:    p,
		stderr:    stderr,
		window:    ringbuf.New[string](window),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		exited:    make(chan struct{}),
	}
}

func (h *Handle) wait() {
	err := h.cmd.Wait()
	h.waitErr = err
	h.exitCode = exitCodeFromError(err)
	close(h.done)
}

// Done is closed when the process has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Exited is closed once the exit has been classified: after an
// unexpected exit has been reported, or after Stop.
func (h *Handle) Exited() <-chan struct{} {
	return h.exited
}

// Err returns the UNEXPECTED_EXIT error once Exited is closed, or nil
// when the process was stopped intentionally.
func (h *Handle) Err() error {
	h.errMu.Lock()
	defer h.errMu.Unlock()
	return h.exitErr
}

func (h *Handle) setErr(err error) {
	h.errMu.Lock()
	h.exitErr = err
	h.errMu.Unlock()
}

// Output returns the retained diagnostic lines, oldest first.
func (h *Handle) Output() []string {
	return h.window.Snapshot()
}

// Info returns a snapshot of the handle.
func (h *Handle) Info() Info {
	info := Info{
		RunID:     h.RunID,
		PID:       h.PID,
		StartedAt: h.StartedAt,
		Params:    h.Params,
		Running:   true,
	}
	select {
	case <-h.done:
		info.Running = false
		info.ExitCode = h.exitCode
	default:
	}
	return info
}

func (h *Handle) closeOutput() {
	h.closeOnce.Do(func() {
		_ = h.stderr.Close()
	})
}

// exitCodeFromError extracts exit code from process error.
// Signalled processes report 128+signal like a shell does.
func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			return 128 + int(status.Signal())
		}
		return exitErr.ExitCode()
	}
	return 1
}
