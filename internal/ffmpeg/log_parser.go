package ffmpeg

import (
	"log/slog"
	"strings"
)

// ParseLogLevel extracts the log level from ffmpeg output.
// Lines look like "[info] message" or "[component @ 0x...] [level] message".
// Lines without a level tag default to defaultLevel; the stream runs with
// -loglevel error so untagged output is an error.
// Returns the level and the message with level stripped but component preserved.
func ParseLogLevel(line, defaultLevel string) (level, msg string) {
	if len(line) < 3 || line[0] != '[' {
		return defaultLevel, line
	}

	end := strings.Index(line, "] ")
	if end == -1 {
		return defaultLevel, line
	}

	bracket := line[1:end]

	if isLogLevel(bracket) {
		return bracket, line[end+2:]
	}

	// Check for component prefix: [component @ 0x...] [level] message
	// Keep the component, strip only the [level]
	component := line[:end+2]
	rest := line[end+2:]
	if len(rest) > 2 && rest[0] == '[' {
		if nextEnd := strings.Index(rest, "] "); nextEnd != -1 {
			nextBracket := rest[1:nextEnd]
			if isLogLevel(nextBracket) {
				return nextBracket, component + rest[nextEnd+2:]
			}
		}
	}

	return defaultLevel, line
}

func isLogLevel(s string) bool {
	switch s {
	case "quiet", "panic", "fatal", "error", "warning", "info", "verbose", "debug", "trace":
		return true
	}
	return false
}

// SlogLevel maps an ffmpeg log level to a slog level.
func SlogLevel(level string) slog.Level {
	switch level {
	case "quiet", "panic", "fatal", "error":
		return slog.LevelError
	case "warning":
		return slog.LevelWarn
	case "verbose", "debug", "trace":
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}
