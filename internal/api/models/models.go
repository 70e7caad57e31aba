package models

import "time"

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"1.0.0" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit hash"`
	BuildDate string `json:"build_date" example:"2025-01-01T00:00:00Z" doc:"Build timestamp"`
	BuildID   string `json:"build_id" example:"42" doc:"Build identifier"`
	GoVersion string `json:"go_version" example:"go1.24.11" doc:"Go version"`
	Compiler  string `json:"compiler" example:"gc" doc:"Go compiler"`
	Platform  string `json:"platform" example:"linux/arm" doc:"OS/architecture"`
}

type VersionResponse struct {
	Body VersionData
}

// Stream models
type EncoderStats struct {
	CPUPercent   float64    `json:"cpu_percent" example:"42.5" doc:"Last CPU sample of the encoder process"`
	SampledAt    *time.Time `json:"sampled_at,omitempty" doc:"Time of the last CPU sample"`
	StartupFails int        `json:"startup_failures" example:"0" doc:"Encoder startup failures since boot"`
	Unexpected   int        `json:"unexpected_exits" example:"0" doc:"Unexpected encoder exits since boot"`
}

type StreamData struct {
	State      string       `json:"state" example:"running" doc:"Pipeline state" enum:"idle,probing,starting,running,stopped,failed"`
	RunID      string       `json:"run_id,omitempty" example:"4b0c6a5e-0d1f-4c1e-9d7e-2f0b8c1a9e11" doc:"Encoder run identifier"`
	PID        int          `json:"pid,omitempty" example:"1234" doc:"Encoder process ID"`
	Encoder    string       `json:"encoder,omitempty" example:"h264_v4l2m2m" doc:"Hardware encoder in use"`
	Width      int          `json:"width,omitempty" example:"1640" doc:"Frame width"`
	Height     int          `json:"height,omitempty" example:"1232" doc:"Frame height"`
	Framerate  int          `json:"framerate,omitempty" example:"5" doc:"Output framerate"`
	BitrateBps int          `json:"bitrate_bps,omitempty" example:"750000" doc:"Output bitrate"`
	Error      string       `json:"error,omitempty" doc:"Last pipeline error"`
	UpdatedAt  time.Time    `json:"updated_at" doc:"Time of the last state change"`
	Stats      EncoderStats `json:"stats" doc:"Encoder statistics"`
}

type StreamResponse struct {
	Body StreamData
}

// Restart models
type RestartRequestData struct {
	Reason string `json:"reason,omitempty" maxLength:"200" example:"camera replugged" doc:"Why the restart was requested"`
}

type RestartRequest struct {
	Body *RestartRequestData
}

type RestartData struct {
	Status  string `json:"status" example:"accepted" doc:"Request status"`
	Message string `json:"message" example:"Restart requested" doc:"Status message"`
}

type RestartResponse struct {
	Body RestartData
}

// Preset models
type PresetData struct {
	Name          string `json:"name" example:"ultra_high" doc:"Preset name"`
	Aspect        string `json:"aspect" example:"4:3" doc:"Aspect ratio" enum:"4:3,16:9"`
	Width         int    `json:"width" example:"1640" doc:"Frame width"`
	Height        int    `json:"height" example:"1232" doc:"Frame height"`
	Framerate     int    `json:"framerate" example:"5" doc:"Framerate on the standard tier"`
	BitrateBps    int    `json:"bitrate_bps" example:"750000" doc:"Bitrate on the standard tier"`
	ProFramerate  int    `json:"pro_framerate" example:"25" doc:"Framerate on the pro tier"`
	ProBitrateBps int    `json:"pro_bitrate_bps" example:"3000000" doc:"Bitrate on the pro tier"`
}

type PresetsResponse struct {
	Body struct {
		Presets []PresetData `json:"presets" doc:"Named camera resolutions"`
	}
}
