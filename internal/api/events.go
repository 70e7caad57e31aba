package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/camrelay/internal/events"
)

// sseBuffer bounds the per-connection queue; a slow client loses events
// rather than stalling the bus.
const sseBuffer = 16

// registerSSERoutes registers the live event stream.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time pipeline state changes and alerts",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"stream-state": events.StreamStateEvent{},
		"alert":        events.AlertEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, sseBuffer)
		forward := func(ev any) {
			select {
			case eventCh <- ev:
			default:
			}
		}

		unsubscribers := []func(){
			s.options.EventBus.Subscribe(func(e events.StreamStateEvent) { forward(e) }),
			s.options.EventBus.Subscribe(func(e events.AlertEvent) { forward(e) }),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		// Current state first so clients need no separate fetch.
		if s.options.State != nil {
			if err := send.Data(s.options.State.State()); err != nil {
				return
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-eventCh:
				if err := send.Data(ev); err != nil {
					return
				}
			}
		}
	})
}
