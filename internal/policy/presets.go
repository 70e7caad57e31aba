package policy

import (
	"fmt"
	"strings"
)

// Aspect selects between the 4:3 and 16:9 variant of a preset.
type Aspect string

// Supported aspects.
const (
	Aspect4x3  Aspect = "4:3"
	Aspect16x9 Aspect = "16:9"
)

// Resolution is a width/height pair in pixels.
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// Named camera resolutions, 4:3 first.
var presets = map[string][2]Resolution{
	"low":        {{320, 240}, {480, 270}},
	"medium":     {{640, 480}, {960, 540}},
	"high":       {{1296, 972}, {1640, 922}},
	"ultra_high": {{1640, 1232}, {1920, 1080}},
}

// PresetNames lists the known preset names from smallest to largest.
func PresetNames() []string {
	return []string{"low", "medium", "high", "ultra_high"}
}

// Preset returns the resolution for a named preset and aspect.
func Preset(name string, aspect Aspect) (Resolution, error) {
	p, ok := presets[strings.ToLower(name)]
	if !ok {
		return Resolution{}, fmt.Errorf("unknown resolution preset %q", name)
	}
	switch aspect {
	case Aspect4x3:
		return p[0], nil
	case Aspect16x9:
		return p[1], nil
	default:
		return Resolution{}, fmt.Errorf("unknown aspect %q", aspect)
	}
}
