package nats

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/smazurov/camrelay/internal/events"
)

// SubjectPrefix is the root of every camrelay subject.
const SubjectPrefix = "camrelay"

// ActionRestart is the only control action understood by the publisher.
const ActionRestart = "restart"

// SubjectAlerts returns the subject user-facing alerts are published on.
func SubjectAlerts(device string) string {
	return fmt.Sprintf("%s.%s.alerts", SubjectPrefix, device)
}

// SubjectState returns the subject pipeline state changes are published on.
func SubjectState(device string) string {
	return fmt.Sprintf("%s.%s.state", SubjectPrefix, device)
}

// SubjectControl returns the subject control commands are received on.
func SubjectControl(device string) string {
	return fmt.Sprintf("%s.%s.control", SubjectPrefix, device)
}

// AlertMessage is an alert sent over NATS.
type AlertMessage struct {
	Device    string `json:"device"`
	Timestamp string `json:"timestamp"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Severity  string `json:"severity"` // INFO, WARNING, ERROR
	InfoURL   string `json:"info_url,omitempty"`
}

// Marshal serializes the message to JSON.
func (m AlertMessage) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// AlertFromEvent converts a bus alert into its wire form.
func AlertFromEvent(device string, e events.AlertEvent) AlertMessage {
	return AlertMessage{
		Device:    device,
		Timestamp: e.Timestamp.UTC().Format(time.RFC3339),
		Title:     e.Title,
		Message:   e.Message,
		Severity:  string(e.Severity),
		InfoURL:   e.InfoURL,
	}
}

// StateMessage is a pipeline state change sent over NATS.
type StateMessage struct {
	Device     string `json:"device"`
	Timestamp  string `json:"timestamp"`
	State      string `json:"state"`
	RunID      string `json:"run_id,omitempty"`
	PID        int    `json:"pid,omitempty"`
	Encoder    string `json:"encoder,omitempty"`
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
	Framerate  int    `json:"framerate,omitempty"`
	BitrateBps int    `json:"bitrate_bps,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Marshal serializes the message to JSON.
func (m StateMessage) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// StateFromEvent converts a bus state event into its wire form.
func StateFromEvent(device string, e events.StreamStateEvent) StateMessage {
	return StateMessage{
		Device:     device,
		Timestamp:  e.Timestamp.UTC().Format(time.RFC3339),
		State:      string(e.State),
		RunID:      e.RunID,
		PID:        e.PID,
		Encoder:    e.Encoder,
		Width:      e.Width,
		Height:     e.Height,
		Framerate:  e.Framerate,
		BitrateBps: e.BitrateBps,
		Error:      e.Error,
	}
}

// ControlMessage is a command sent to the device.
type ControlMessage struct {
	Action    string `json:"action"`
	Device    string `json:"device"`
	Timestamp string `json:"timestamp"`
	Reason    string `json:"reason,omitempty"`
}

// Marshal serializes the message to JSON.
func (m ControlMessage) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// UnmarshalAlert deserializes an AlertMessage from JSON.
func UnmarshalAlert(data []byte) (AlertMessage, error) {
	var m AlertMessage
	err := json.Unmarshal(data, &m)
	return m, err
}

// UnmarshalState deserializes a StateMessage from JSON.
func UnmarshalState(data []byte) (StateMessage, error) {
	var m StateMessage
	err := json.Unmarshal(data, &m)
	return m, err
}

// UnmarshalControl deserializes a ControlMessage from JSON.
func UnmarshalControl(data []byte) (ControlMessage, error) {
	var m ControlMessage
	err := json.Unmarshal(data, &m)
	return m, err
}
