package events

import "time"

// Event type constants for kelindar/event.
const (
	TypeAlert uint32 = iota + 1
	TypeStreamState
	TypeRestartRequested
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// Severity of an alert, matching the remote server's event classes.
type Severity string

// Alert severities.
const (
	SeverityInfo    Severity = "INFO"
	SeverityWarning Severity = "WARNING"
	SeverityError   Severity = "ERROR"
)

// AlertEvent is a user-facing notification destined for the remote server.
type AlertEvent struct {
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
	InfoURL   string    `json:"info_url,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Type returns the event type identifier for AlertEvent.
func (e AlertEvent) Type() uint32 { return TypeAlert }

// StreamState is a pipeline lifecycle state.
type StreamState string

// Pipeline states.
const (
	StateIdle     StreamState = "idle"
	StateProbing  StreamState = "probing"
	StateStarting StreamState = "starting"
	StateRunning  StreamState = "running"
	StateStopped  StreamState = "stopped"
	StateFailed   StreamState = "failed"
)

// StreamStateEvent reports a pipeline state transition.
type StreamStateEvent struct {
	State      StreamState `json:"state"`
	RunID      string      `json:"run_id,omitempty"`
	PID        int         `json:"pid,omitempty"`
	Encoder    string      `json:"encoder,omitempty"`
	Width      int         `json:"width,omitempty"`
	Height     int         `json:"height,omitempty"`
	Framerate  int         `json:"framerate,omitempty"`
	BitrateBps int         `json:"bitrate_bps,omitempty"`
	Error      string      `json:"error,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}

// Type returns the event type identifier for StreamStateEvent.
func (e StreamStateEvent) Type() uint32 { return TypeStreamState }

// RestartRequestedEvent asks the service to rebuild the pipeline.
type RestartRequestedEvent struct {
	Source    string    `json:"source"` // config, api, nats
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Type returns the event type identifier for RestartRequestedEvent.
func (e RestartRequestedEvent) Type() uint32 { return TypeRestartRequested }
