package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/camrelay/internal/api/models"
	"github.com/smazurov/camrelay/internal/events"
	"github.com/smazurov/camrelay/internal/metrics"
	"github.com/smazurov/camrelay/internal/policy"
)

func (s *Server) registerStreamRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-stream",
		Method:      http.MethodGet,
		Path:        "/api/stream",
		Summary:     "Stream Status",
		Description: "Get the pipeline state, the selected encoding parameters and encoder statistics",
		Tags:        []string{"stream"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.StreamResponse, error) {
		var state events.StreamStateEvent
		if s.options.State != nil {
			state = s.options.State.State()
		} else {
			state = events.StreamStateEvent{State: events.StateIdle}
		}
		return &models.StreamResponse{Body: streamData(state, metrics.Current())}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "list-presets",
		Method:      http.MethodGet,
		Path:        "/api/stream/presets",
		Summary:     "Resolution Presets",
		Description: "List named camera resolutions with the framerate and bitrate each tier selects",
		Tags:        []string{"stream"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.PresetsResponse, error) {
		resp := &models.PresetsResponse{}
		resp.Body.Presets = presetData()
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "restart-stream",
		Method:        http.MethodPost,
		Path:          "/api/stream/restart",
		Summary:       "Restart Stream",
		Description:   "Tear down the running pipeline and start a new probe and encode",
		Tags:          []string{"stream"},
		Security:      withAuth(),
		DefaultStatus: http.StatusAccepted,
		Errors:        []int{401, 503},
	}, func(_ context.Context, input *models.RestartRequest) (*models.RestartResponse, error) {
		if s.options.EventBus == nil {
			return nil, huma.Error503ServiceUnavailable("restart is not available")
		}

		var reason string
		if input.Body != nil {
			reason = input.Body.Reason
		}
		s.options.EventBus.Publish(events.RestartRequestedEvent{
			Source:    "api",
			Reason:    reason,
			Timestamp: time.Now(),
		})
		s.logger.Info("Restart requested via API", "reason", reason)

		return &models.RestartResponse{
			Body: models.RestartData{
				Status:  "accepted",
				Message: "Restart requested",
			},
		}, nil
	})
}

func streamData(state events.StreamStateEvent, snap metrics.Snapshot) models.StreamData {
	data := models.StreamData{
		State:      string(state.State),
		RunID:      state.RunID,
		PID:        state.PID,
		Encoder:    state.Encoder,
		Width:      state.Width,
		Height:     state.Height,
		Framerate:  state.Framerate,
		BitrateBps: state.BitrateBps,
		Error:      state.Error,
		UpdatedAt:  state.Timestamp,
		Stats: models.EncoderStats{
			CPUPercent:   snap.CPUPercent,
			StartupFails: snap.StartupFails,
			Unexpected:   snap.Unexpected,
		},
	}
	if !snap.SampledAt.IsZero() {
		sampled := snap.SampledAt
		data.Stats.SampledAt = &sampled
	}
	return data
}

func presetData() []models.PresetData {
	var out []models.PresetData
	for _, name := range policy.PresetNames() {
		for _, aspect := range []policy.Aspect{policy.Aspect4x3, policy.Aspect16x9} {
			res, err := policy.Preset(name, aspect)
			if err != nil {
				continue
			}
			std := policy.Select(res.Width, res.Height, false)
			pro := policy.Select(res.Width, res.Height, true)
			out = append(out, models.PresetData{
				Name:          name,
				Aspect:        string(aspect),
				Width:         res.Width,
				Height:        res.Height,
				Framerate:     std.Framerate,
				BitrateBps:    std.BitrateBps,
				ProFramerate:  pro.Framerate,
				ProBitrateBps: pro.BitrateBps,
			})
		}
	}
	return out
}
