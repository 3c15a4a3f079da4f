package api

import (
	"context"
	"net/http"
	"slices"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/qhynode/internal/api/models"
)

// LEDRequest sets one LED.
type LEDRequest struct {
	Body models.LEDSetting
}

// registerLEDRoutes registers LED control endpoints.
func (s *Server) registerLEDRoutes() {
	ctrl := s.options.LEDController
	if ctrl == nil {
		s.logger.Debug("LED controller not available, skipping LED routes")
		return
	}

	huma.Register(s.api, huma.Operation{
		OperationID: "control-led",
		Method:      http.MethodPost,
		Path:        "/api/leds",
		Summary:     "Control LED",
		Description: "Set an LED's state and optional pattern. The LED used as capture indicator cannot be set by hand.",
		Tags:        []string{"leds"},
		Errors:      []int{400, 401, 409, 500},
		Security:    withAuth(),
	}, func(_ context.Context, input *LEDRequest) (*struct{}, error) {
		req := input.Body
		if !slices.Contains(ctrl.Available(), req.Type) {
			return nil, huma.Error400BadRequest("Unknown LED type " + req.Type)
		}
		if req.Pattern != "" && !slices.Contains(ctrl.Patterns(), req.Pattern) {
			return nil, huma.Error400BadRequest("Unsupported LED pattern " + req.Pattern)
		}
		if req.Type == s.options.LEDIndicator {
			return nil, huma.Error409Conflict("LED " + req.Type + " is driven by the capture indicator")
		}

		if err := ctrl.Set(req.Type, req.Enabled, req.Pattern); err != nil {
			return nil, huma.Error500InternalServerError("Failed to control LED", err)
		}
		return &struct{}{}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-led-capabilities",
		Method:      http.MethodGet,
		Path:        "/api/leds/capabilities",
		Summary:     "Get LED Capabilities",
		Description: "List the LED types and patterns of this board and the LED used as capture indicator",
		Tags:        []string{"leds"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(_ context.Context, _ *struct{}) (*models.LEDCapabilitiesResponse, error) {
		return &models.LEDCapabilitiesResponse{
			Body: models.LEDCapabilitiesData{
				AvailableTypes:    ctrl.Available(),
				AvailablePatterns: ctrl.Patterns(),
				Indicator:         s.options.LEDIndicator,
			},
		}, nil
	})
}
