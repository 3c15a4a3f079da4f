package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/qhynode/internal/api/models"
	"github.com/smazurov/qhynode/internal/camera"
	"github.com/smazurov/qhynode/internal/capture"
)

// CaptureRequest triggers a single-frame capture.
type CaptureRequest struct {
	IncludeData bool            `query:"include_data" doc:"Return the pixel data base64 encoded in the response"`
	Body        capture.Options `required:"false"`
}

// CaptureIDInput addresses a stored capture.
type CaptureIDInput struct {
	ID string `path:"id" doc:"Capture identifier" example:"6f1c2a9e-5d4b-4a8e-9c1f-2b3d4e5f6a7b"`
}

// captureError maps a capture failure onto an HTTP status. The body carries
// only the collapsed message.
func captureError(err error) error {
	msg := capture.Message(err)
	switch {
	case errors.Is(err, capture.ErrBusy):
		return huma.Error409Conflict(msg)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return huma.NewError(http.StatusGatewayTimeout, msg)
	}
	switch camera.KindOf(err) {
	case camera.KindInvalidRequest:
		return huma.Error400BadRequest(msg)
	case camera.KindDeviceNotFound:
		return huma.Error404NotFound(msg)
	}
	return huma.Error500InternalServerError(msg)
}

func toCaptureData(res *capture.Result, includeData bool) models.CaptureData {
	data := models.CaptureData{
		ID:         res.ID,
		CameraID:   res.CameraID,
		Width:      res.Width,
		Height:     res.Height,
		BPP:        res.BPP,
		Channels:   res.Channels,
		Bytes:      len(res.Data),
		ExposureUs: res.ExposureUs,
		DurationMs: res.Duration.Milliseconds(),
		CapturedAt: res.CapturedAt,
		Stored:     res.Stored,
	}
	if includeData {
		data.Data = res.Data
	}
	return data
}

func toCaptureRecord(rec capture.Record) models.CaptureRecord {
	return models.CaptureRecord{
		ID:          rec.ID,
		CameraID:    rec.CameraID,
		Width:       rec.Width,
		Height:      rec.Height,
		BPP:         rec.BPP,
		Channels:    rec.Channels,
		Bytes:       rec.Bytes,
		ExposureUs:  rec.ExposureUs,
		Gain:        rec.Gain,
		Offset:      rec.Offset,
		DeviceIndex: rec.DeviceIndex,
		DurationMs:  rec.DurationMs,
		CapturedAt:  rec.CapturedAt,
	}
}

func storeError(err error, action string) error {
	if errors.Is(err, capture.ErrNotFound) {
		return huma.Error404NotFound("Capture not found")
	}
	return huma.Error500InternalServerError(fmt.Sprintf("Failed to %s capture", action))
}

// registerCaptureRoutes registers capture and stored frame endpoints.
func (s *Server) registerCaptureRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "capture-frame",
		Method:      http.MethodPost,
		Path:        "/api/capture",
		Summary:     "Capture Frame",
		Description: "Capture a single frame. Omitted fields take the configured defaults; exposureUs wins over exposureMs when positive.",
		Tags:        []string{"capture"},
		Errors:      []int{400, 401, 404, 409, 500, 504},
		Security:    withAuth(),
	}, func(ctx context.Context, input *CaptureRequest) (*models.CaptureResponse, error) {
		if timeout := s.options.CaptureTimeout; timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		res, err := s.capture.Capture(ctx, input.Body)
		if err != nil {
			return nil, captureError(err)
		}
		return &models.CaptureResponse{Body: toCaptureData(res, input.IncludeData)}, nil
	})

	if s.capture.Store() == nil {
		s.logger.Debug("Frame store disabled, skipping stored capture routes")
		return
	}
	store := s.capture.Store()

	huma.Register(s.api, huma.Operation{
		OperationID: "list-captures",
		Method:      http.MethodGet,
		Path:        "/api/captures",
		Summary:     "List Captures",
		Description: "List stored captures, newest first",
		Tags:        []string{"capture"},
		Errors:      []int{401, 500},
		Security:    withAuth(),
	}, func(_ context.Context, _ *struct{}) (*models.CaptureListResponse, error) {
		records, err := store.List()
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to list captures", err)
		}
		out := make([]models.CaptureRecord, 0, len(records))
		for _, rec := range records {
			out = append(out, toCaptureRecord(rec))
		}
		return &models.CaptureListResponse{
			Body: models.CaptureListData{Captures: out, Count: len(out)},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-capture",
		Method:      http.MethodGet,
		Path:        "/api/captures/{id}",
		Summary:     "Get Capture",
		Description: "Get the metadata of a stored capture",
		Tags:        []string{"capture"},
		Errors:      []int{401, 404, 500},
		Security:    withAuth(),
	}, func(_ context.Context, input *CaptureIDInput) (*models.CaptureRecordResponse, error) {
		rec, err := store.Get(input.ID)
		if err != nil {
			return nil, storeError(err, "read")
		}
		return &models.CaptureRecordResponse{Body: toCaptureRecord(rec)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-capture-raw",
		Method:      http.MethodGet,
		Path:        "/api/captures/{id}/raw",
		Summary:     "Download Raw Frame",
		Description: "Download the raw pixel data of a stored capture",
		Tags:        []string{"capture"},
		Errors:      []int{401, 404, 500},
		Security:    withAuth(),
	}, func(_ context.Context, input *CaptureIDInput) (*models.BinaryResponse, error) {
		data, err := store.ReadRaw(input.ID)
		if err != nil {
			return nil, storeError(err, "read")
		}
		return &models.BinaryResponse{
			ContentType:        "application/octet-stream",
			ContentDisposition: fmt.Sprintf("attachment; filename=%q", input.ID+".raw"),
			Body:               data,
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-capture-preview",
		Method:      http.MethodGet,
		Path:        "/api/captures/{id}/preview",
		Summary:     "Preview Frame",
		Description: "Render a stored capture as an 8-bit PNG, stretched to its sample range",
		Tags:        []string{"capture"},
		Errors:      []int{401, 404, 422, 500},
		Security:    withAuth(),
	}, func(_ context.Context, input *CaptureIDInput) (*models.BinaryResponse, error) {
		rec, err := store.Get(input.ID)
		if err != nil {
			return nil, storeError(err, "read")
		}
		data, err := store.ReadRaw(input.ID)
		if err != nil {
			return nil, storeError(err, "read")
		}
		var buf bytes.Buffer
		if err := capture.WritePNG(&buf, rec, data); err != nil {
			return nil, huma.Error422UnprocessableEntity("Capture cannot be rendered", err)
		}
		return &models.BinaryResponse{
			ContentType:        "image/png",
			ContentDisposition: fmt.Sprintf("inline; filename=%q", input.ID+".png"),
			Body:               buf.Bytes(),
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "delete-capture",
		Method:        http.MethodDelete,
		Path:          "/api/captures/{id}",
		Summary:       "Delete Capture",
		Description:   "Delete a stored capture",
		Tags:          []string{"capture"},
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{401, 404, 500},
		Security:      withAuth(),
	}, func(_ context.Context, input *CaptureIDInput) (*struct{}, error) {
		if err := store.Delete(input.ID); err != nil {
			return nil, storeError(err, "delete")
		}
		return &struct{}{}, nil
	})
}
