// Package led mirrors the pipeline state on a board status LED.
package led

// Patterns understood by Controller.Set.
const (
	PatternOff   = "off"
	PatternSolid = "solid"
	PatternBlink = "blink"     // fast blink: failed
	PatternPulse = "heartbeat" // probing and starting
)

// Controller drives a single status LED.
type Controller interface {
	// Set switches the LED to pattern.
	Set(pattern string) error
	// Restore returns the LED to the trigger it had before the first Set.
	Restore() error
	// Name identifies the LED for logs.
	Name() string
}
