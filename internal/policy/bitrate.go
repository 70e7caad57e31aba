// Package policy maps webcam resolutions to encoding framerate and bitrate.
package policy

import "fmt"

// Framerates.
const (
	FullFramerate       = 25
	RestrictedFramerate = 5
)

// Stream is the derived encoding policy for a resolution.
type Stream struct {
	Framerate  int
	BitrateBps int
}

// String renders the policy for logs.
func (s Stream) String() string {
	return fmt.Sprintf("%dfps@%dbps", s.Framerate, s.BitrateBps)
}

type bitrateStep struct {
	maxArea    int
	bitrateBps int
}

// Steps are keyed by pixel area so odd aspect ratios land on the nearest tier.
var bitrateSteps = []bitrateStep{
	{maxArea: 480 * 270, bitrateBps: 400_000},
	{maxArea: 960 * 540, bitrateBps: 1_300_000},
	{maxArea: 1280 * 720, bitrateBps: 2_000_000},
}

const maxBitrateBps = 3_000_000

// BitrateForArea returns the full-tier bitrate for a frame of the given size.
func BitrateForArea(width, height int) int {
	area := width * height
	for _, step := range bitrateSteps {
		if area <= step.maxArea {
			return step.bitrateBps
		}
	}
	return maxBitrateBps
}

// Select returns the framerate and bitrate for a resolution. Without the pro
// tier the stream is throttled to RestrictedFramerate at a quarter bitrate.
func Select(width, height int, pro bool) Stream {
	s := Stream{
		Framerate:  FullFramerate,
		BitrateBps: BitrateForArea(width, height),
	}
	if !pro {
		s.Framerate = RestrictedFramerate
		s.BitrateBps /= 4
	}
	return s
}
