package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/coreos/go-systemd/v22/journal"
)

const journalIdentifier = "camrelay"

// JournalHandler is a slog.Handler that sends records to the systemd journal.
type JournalHandler struct {
	level  slog.Leveler
	attrs  []slog.Attr
	groups []string
}

// NewJournalHandler creates a journal handler. The level is consulted on every
// record so a *slog.LevelVar can be changed at runtime.
func NewJournalHandler(level slog.Leveler) *JournalHandler {
	return &JournalHandler{level: level}
}

// Enabled implements slog.Handler.
func (h *JournalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle implements slog.Handler.
func (h *JournalHandler) Handle(_ context.Context, r slog.Record) error {
	priority := mapLevelToPriority(r.Level)

	fields := map[string]string{
		"PRIORITY":          strconv.Itoa(int(priority)),
		"SYSLOG_IDENTIFIER": journalIdentifier,
	}
	for _, attr := range h.attrs {
		addAttrToFields(fields, attr, h.groups)
	}
	r.Attrs(func(attr slog.Attr) bool {
		addAttrToFields(fields, attr, h.groups)
		return true
	})

	if err := journal.Send(r.Message, priority, fields); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to send to journal: %v\n", err)
		return err
	}
	return nil
}

// WithAttrs implements slog.Handler.
func (h *JournalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &JournalHandler{
		level:  h.level,
		attrs:  append(slices.Clone(h.attrs), attrs...),
		groups: h.groups,
	}
}

// WithGroup implements slog.Handler.
func (h *JournalHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &JournalHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: append(slices.Clone(h.groups), name),
	}
}

func mapLevelToPriority(level slog.Level) journal.Priority {
	switch {
	case level >= slog.LevelError:
		return journal.PriErr
	case level >= slog.LevelWarn:
		return journal.PriWarning
	case level >= slog.LevelInfo:
		return journal.PriInfo
	default:
		return journal.PriDebug
	}
}

// addAttrToFields flattens an attribute into upper-cased journal fields,
// joining groups with underscores.
func addAttrToFields(fields map[string]string, attr slog.Attr, groups []string) {
	if attr.Equal(slog.Attr{}) {
		return
	}

	key := attr.Key
	if len(groups) > 0 {
		key = strings.Join(groups, "_") + "_" + key
	}
	key = strings.ToUpper(key)

	v := attr.Value.Resolve()
	switch v.Kind() {
	case slog.KindTime:
		fields[key] = v.Time().Format("2006-01-02T15:04:05.000Z07:00")
	case slog.KindGroup:
		nested := append(slices.Clone(groups), attr.Key)
		for _, a := range v.Group() {
			addAttrToFields(fields, a, nested)
		}
	default:
		fields[key] = v.String()
	}
}

// IsJournalAvailable checks if systemd journal is available.
func IsJournalAvailable() bool {
	return journal.Enabled()
}
