package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/qhynode/internal/api/models"
	"github.com/smazurov/qhynode/internal/capture"
	"github.com/smazurov/qhynode/internal/metrics"
)

func (s *Server) libraryStatus() capture.LibraryStatus {
	if s.capture == nil {
		return capture.LibraryStatus{}
	}
	return s.capture.LibraryStatus()
}

func toLibraryData(st capture.LibraryStatus) models.LibraryData {
	symbols := make([]models.SymbolData, 0, len(st.Symbols))
	for _, sym := range st.Symbols {
		symbols = append(symbols, models.SymbolData{Name: sym.Name, Required: sym.Required, Bound: sym.Bound})
	}
	return models.LibraryData{
		Path:      st.Path,
		Loaded:    st.Loaded,
		Simulated: st.Simulated,
		Version:   st.Version,
		LastError: st.LastError,
		Symbols:   symbols,
	}
}

// registerCameraRoutes registers SDK library and camera status endpoints.
func (s *Server) registerCameraRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-library",
		Method:      http.MethodGet,
		Path:        "/api/camera/library",
		Summary:     "SDK Library Status",
		Description: "Report the SDK library path, load state and symbol bindings",
		Tags:        []string{"camera"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(_ context.Context, _ *struct{}) (*models.LibraryResponse, error) {
		return &models.LibraryResponse{Body: toLibraryData(s.capture.LibraryStatus())}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "unload-library",
		Method:      http.MethodDelete,
		Path:        "/api/camera/library",
		Summary:     "Unload SDK Library",
		Description: "Unbind the SDK symbol table. The next capture loads it again. Waits for a running capture to finish.",
		Tags:        []string{"camera"},
		Errors:      []int{401, 500},
		Security:    withAuth(),
	}, func(_ context.Context, _ *struct{}) (*models.LibraryResponse, error) {
		if err := s.capture.UnloadLibrary(); err != nil {
			return nil, huma.Error500InternalServerError("Failed to unload SDK library", err)
		}
		return &models.LibraryResponse{Body: toLibraryData(s.capture.LibraryStatus())}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-camera-status",
		Method:      http.MethodGet,
		Path:        "/api/camera/status",
		Summary:     "Camera Status",
		Description: "Report whether a capture is running, capture counters and the defaults in effect",
		Tags:        []string{"camera"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(_ context.Context, _ *struct{}) (*models.CameraStatusResponse, error) {
		stats := metrics.GetCaptureStats()
		d := s.capture.Defaults()
		data := models.CameraStatusData{
			Busy:           s.capture.Busy(),
			Total:          stats.Total,
			Succeeded:      stats.Succeeded,
			Failed:         stats.Failed,
			Rejected:       stats.Rejected,
			LastDurationMs: stats.LastDuration.Milliseconds(),
			LastErrorKind:  stats.LastErrorKind,
			Defaults: models.CaptureDefaultsData{
				ExposureMs:  d.ExposureMs,
				ExposureUs:  d.ExposureUs,
				Gain:        d.Gain,
				Offset:      d.Offset,
				Width:       d.Width,
				Height:      d.Height,
				DeviceIndex: d.DeviceIndex,
			},
		}
		if !stats.LastCaptureAt.IsZero() {
			at := stats.LastCaptureAt
			data.LastCaptureAt = &at
		}
		return &models.CameraStatusResponse{Body: data}, nil
	})
}
