// Package platform detects the host hardware and resolves the encoder binary.
package platform

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultFFmpeg is used when no bundled or configured binary applies.
const DefaultFFmpeg = "ffmpeg"

// BundledFFmpegPath is the patched binary location relative to the data
// directory. Debian 11 on the Pi ships an ffmpeg whose h264_v4l2m2m is broken.
var BundledFFmpegPath = filepath.Join("bin", "rpi_os.11", "32bits", "ffmpeg")

// Host reads identification files from a root directory. Tests point Root
// at a temp dir; production uses "/".
type Host struct {
	Root string
}

// System is the running host.
var System = Host{Root: "/"}

func (h Host) read(path string) ([]byte, error) {
	root := h.Root
	if root == "" {
		root = "/"
	}
	return os.ReadFile(filepath.Join(root, path))
}

// Model returns the board model string, or "" if unknown.
func (h Host) Model() string {
	if data, err := h.read("proc/device-tree/model"); err == nil {
		return strings.TrimSpace(string(bytes.TrimRight(data, "\x00")))
	}
	if data, err := h.read("proc/cpuinfo"); err == nil {
		for _, line := range strings.Split(string(data), "\n") {
			key, value, ok := strings.Cut(line, ":")
			if ok && strings.TrimSpace(key) == "Model" {
				return strings.TrimSpace(value)
			}
		}
	}
	return ""
}

// IsRaspberryPi reports whether the host is a Raspberry Pi.
func (h Host) IsRaspberryPi() bool {
	return strings.Contains(h.Model(), "Raspberry Pi")
}

// DebianMajor returns the major Debian release, or 0 if not Debian.
func (h Host) DebianMajor() int {
	data, err := h.read("etc/debian_version")
	if err != nil {
		return 0
	}
	major, _, _ := strings.Cut(strings.TrimSpace(string(data)), ".")
	n, err := strconv.Atoi(major)
	if err != nil {
		return 0
	}
	return n
}

// ResolveFFmpeg picks the encoder binary. An explicit override wins;
// otherwise Debian 11 and later use the bundled patched binary under
// dataDir when it exists.
func (h Host) ResolveFFmpeg(override, dataDir string) string {
	if override != "" {
		return override
	}
	if dataDir != "" && h.DebianMajor() >= 11 {
		bundled := filepath.Join(dataDir, BundledFFmpegPath)
		if info, err := os.Stat(bundled); err == nil && !info.IsDir() {
			return bundled
		}
	}
	return DefaultFFmpeg
}
