package api

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/qhynode/internal/events"
)

// registerSSERoutes registers the native Huma SSE endpoint.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time event stream for capture progress, capture results, camera hotplug and SDK library state",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"capture-started":       events.CaptureStartedEvent{},
		"capture-success":       events.CaptureSuccessEvent{},
		"capture-error":         events.CaptureErrorEvent{},
		"capture-state-changed": events.CaptureStateChangedEvent{},
		"device-discovery":      events.DeviceDiscoveryEvent{},
		"library-state":         events.LibraryStateEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 32)
		var dropped atomic.Uint64

		unsubscribers := []func(){
			events.SubscribeToChannel[events.CaptureStartedEvent](s.eventBus, eventCh, &dropped),
			events.SubscribeToChannel[events.CaptureSuccessEvent](s.eventBus, eventCh, &dropped),
			events.SubscribeToChannel[events.CaptureErrorEvent](s.eventBus, eventCh, &dropped),
			events.SubscribeToChannel[events.CaptureStateChangedEvent](s.eventBus, eventCh, &dropped),
			events.SubscribeToChannel[events.DeviceDiscoveryEvent](s.eventBus, eventCh, &dropped),
			events.SubscribeToChannel[events.LibraryStateEvent](s.eventBus, eventCh, &dropped),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
			if n := dropped.Load(); n > 0 {
				s.logger.Warn("SSE client fell behind, events dropped", "dropped", n)
			}
		}()

		// The current library state doubles as the connection confirmation.
		status := s.libraryStatus()
		if err := send.Data(events.LibraryStateEvent{
			Loaded:    status.Loaded,
			Path:      status.Path,
			Error:     status.LastError,
			Timestamp: time.Now().Format(time.RFC3339),
		}); err != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
