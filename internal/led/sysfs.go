package led

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// sysfs drives an LED through /sys/class/leds/<name>.
type sysfs struct {
	dir  string
	name string

	mu       sync.Mutex
	original string // trigger before the first Set
}

func newSysfs(root, name string) *sysfs {
	return &sysfs{
		dir:  filepath.Join(root, "sys", "class", "leds", name),
		name: name,
	}
}

func (s *sysfs) Name() string { return s.name }

// Set implements Controller.
func (s *sysfs) Set(pattern string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.original == "" {
		current, err := s.trigger()
		if err != nil {
			return err
		}
		s.original = current
	}

	switch pattern {
	case PatternOff:
		if err := s.write("trigger", "none"); err != nil {
			return err
		}
		return s.write("brightness", "0")
	case PatternSolid:
		if err := s.write("trigger", "none"); err != nil {
			return err
		}
		return s.write("brightness", "1")
	case PatternPulse:
		return s.write("trigger", "heartbeat")
	case PatternBlink:
		if err := s.write("trigger", "timer"); err != nil {
			return err
		}
		if err := s.write("delay_on", "100"); err != nil {
			return err
		}
		return s.write("delay_off", "100")
	default:
		return fmt.Errorf("unknown LED pattern %q", pattern)
	}
}

// Restore implements Controller.
func (s *sysfs) Restore() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.original == "" {
		return nil
	}
	err := s.write("trigger", s.original)
	s.original = ""
	return err
}

// trigger returns the active trigger. The kernel lists every trigger and
// brackets the active one: "none [mmc0] timer heartbeat".
func (s *sysfs) trigger() (string, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, "trigger"))
	if err != nil {
		return "", fmt.Errorf("read LED %s trigger: %w", s.name, err)
	}
	for _, field := range strings.Fields(string(data)) {
		if strings.HasPrefix(field, "[") && strings.HasSuffix(field, "]") {
			return strings.Trim(field, "[]"), nil
		}
	}
	return "none", nil
}

func (s *sysfs) write(attr, value string) error {
	if err := os.WriteFile(filepath.Join(s.dir, attr), []byte(value), 0o644); err != nil {
		return fmt.Errorf("set LED %s %s: %w", s.name, attr, err)
	}
	return nil
}
