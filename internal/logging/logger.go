package logging

import (
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
)

// Logger is a duck-typed interface satisfied by *slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

var (
	moduleLoggers   = make(map[string]*slog.Logger)
	moduleLevelVars = make(map[string]*slog.LevelVar)
	globalConfig    Config
	globalLevelVar  = &slog.LevelVar{}
	isInitialized   bool
	mutex           sync.RWMutex
)

// Config represents logging configuration.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"`
	Modules map[string]string `toml:"modules"`
}

// Initialize sets up the logging system.
func Initialize(config Config) {
	mutex.Lock()
	defer mutex.Unlock()

	globalConfig = config
	isInitialized = true

	globalLevel := parseLevel(config.Level)
	if globalLevel == nil {
		defaultLevel := slog.LevelInfo
		globalLevel = &defaultLevel
	}
	globalLevelVar.Set(*globalLevel)

	// Loggers handed out before Initialize keep their pointer; refresh level and handler.
	for module, levelVar := range moduleLevelVars {
		levelVar.Set(moduleLevel(config, *globalLevel, module))
		moduleLoggers[module] = slog.New(createHandler(config.Format, levelVar)).With("module", module)
	}

	slog.SetDefault(slog.New(createHandler(config.Format, globalLevelVar)))
}

// GetLogger returns a logger for the specified module, creating it if needed.
func GetLogger(module string) *slog.Logger {
	mutex.RLock()
	if logger, exists := moduleLoggers[module]; exists {
		mutex.RUnlock()
		return logger
	}
	mutex.RUnlock()

	mutex.Lock()
	defer mutex.Unlock()

	if logger, exists := moduleLoggers[module]; exists {
		return logger
	}

	levelVar := &slog.LevelVar{}
	format := "text"
	if isInitialized {
		global := slog.LevelInfo
		if parsed := parseLevel(globalConfig.Level); parsed != nil {
			global = *parsed
		}
		levelVar.Set(moduleLevel(globalConfig, global, module))
		format = globalConfig.Format
	} else {
		levelVar.Set(slog.LevelInfo)
	}

	logger := slog.New(createHandler(format, levelVar)).With("module", module)
	moduleLoggers[module] = logger
	moduleLevelVars[module] = levelVar
	return logger
}

// SetModuleLevel changes a module's level at runtime.
func SetModuleLevel(module, level string) bool {
	parsed := parseLevel(level)
	if parsed == nil {
		return false
	}
	GetLogger(module)

	mutex.Lock()
	defer mutex.Unlock()
	moduleLevelVars[module].Set(*parsed)
	return true
}

func moduleLevel(config Config, global slog.Level, module string) slog.Level {
	if levelStr, exists := config.Modules[module]; exists {
		if parsed := parseLevel(levelStr); parsed != nil {
			return *parsed
		}
	}
	return global
}

// createHandler builds the handler chain: stdout when attached, plus the
// systemd journal when available.
func createHandler(format string, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}

	var stdoutHandler slog.Handler
	if format == "json" {
		stdoutHandler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		stdoutHandler = slog.NewTextHandler(os.Stdout, opts)
	}

	var handlers []slog.Handler
	if isStdoutAvailable() {
		handlers = append(handlers, stdoutHandler)
	}
	if IsJournalAvailable() {
		handlers = append(handlers, NewJournalHandler(level))
	}

	switch len(handlers) {
	case 0:
		return stdoutHandler
	case 1:
		return handlers[0]
	default:
		return NewMultiHandler(handlers...)
	}
}

// isStdoutAvailable checks if stdout is a terminal, pipe, socket or regular
// file. /dev/null is a character device but not a terminal, so it is skipped.
func isStdoutAvailable() bool {
	fd := os.Stdout.Fd()
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		return true
	}
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	mode := fi.Mode()
	return (mode&os.ModeNamedPipe) != 0 || (mode&os.ModeSocket) != 0 || mode.IsRegular()
}

// parseLevel converts string level to slog.Level.
func parseLevel(level string) *slog.Level {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "info":
		l = slog.LevelInfo
	case "warn", "warning":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		return nil
	}
	return &l
}
