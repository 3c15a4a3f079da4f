// Package capture exposes single-frame capture to the host process: it
// resolves caller options against the configured defaults, serializes access
// to the camera, publishes capture events and stores frames.
package capture

import (
	"fmt"
	"math"

	"github.com/smazurov/qhynode/internal/camera"
	"github.com/smazurov/qhynode/internal/config"
)

// Options are the per-request capture settings. Nil fields take the
// service defaults.
type Options struct {
	ExposureMs  *int64   `json:"exposureMs,omitempty" doc:"Exposure in milliseconds, used when exposureUs is not positive" example:"1000"`
	ExposureUs  *float64 `json:"exposureUs,omitempty" doc:"Exposure in microseconds, wins over exposureMs when positive" example:"250000"`
	Gain        *float64 `json:"gain,omitempty" doc:"Sensor gain, negative leaves the camera setting untouched" example:"10"`
	Offset      *float64 `json:"offset,omitempty" doc:"Sensor offset, negative leaves the camera setting untouched" example:"30"`
	Width       *uint32  `json:"width,omitempty" doc:"ROI width at origin" example:"1920"`
	Height      *uint32  `json:"height,omitempty" doc:"ROI height at origin" example:"1080"`
	DeviceIndex *uint32  `json:"deviceIndex,omitempty" doc:"Camera index among those found by scan" example:"0"`
}

// Apply overlays the set fields of o on d. An explicit exposureMs without
// exposureUs clears a configured exposureUs, so the caller's millisecond
// value is the one used.
func (o Options) Apply(d config.CaptureDefaults) config.CaptureDefaults {
	out := d
	if o.ExposureMs != nil {
		out.ExposureMs = *o.ExposureMs
		if o.ExposureUs == nil {
			out.ExposureUs = 0
		}
	}
	if o.ExposureUs != nil {
		out.ExposureUs = *o.ExposureUs
	}
	if o.Gain != nil {
		out.Gain = *o.Gain
	}
	if o.Offset != nil {
		out.Offset = *o.Offset
	}
	if o.Width != nil {
		out.Width = *o.Width
	}
	if o.Height != nil {
		out.Height = *o.Height
	}
	if o.DeviceIndex != nil {
		out.DeviceIndex = *o.DeviceIndex
	}
	return out
}

// Request resolves o against d into a validated camera request.
func (o Options) Request(d config.CaptureDefaults) (camera.Request, error) {
	return RequestFrom(o.Apply(d))
}

// RequestFrom converts flat settings into a camera request.
//
// Exposure is exposureUs when it is positive, otherwise exposureMs*1000 when
// exposureMs is positive. Any other combination, including a NaN or infinite
// exposureUs, is rejected. Negative gain or offset means unset.
func RequestFrom(s config.CaptureDefaults) (camera.Request, error) {
	if math.IsNaN(s.ExposureUs) || math.IsInf(s.ExposureUs, 0) {
		return camera.Request{}, invalidOptions(fmt.Sprintf("exposureUs must be finite, got %v", s.ExposureUs))
	}

	var exposureUs float64
	switch {
	case s.ExposureUs > 0:
		exposureUs = s.ExposureUs
	case s.ExposureMs > 0:
		exposureUs = float64(s.ExposureMs) * 1000
	default:
		return camera.Request{}, invalidOptions(fmt.Sprintf(
			"no positive exposure: exposureUs=%v exposureMs=%d", s.ExposureUs, s.ExposureMs))
	}

	req := camera.Request{
		ExposureUs:  exposureUs,
		Gain:        optionalParam(s.Gain),
		Offset:      optionalParam(s.Offset),
		Width:       s.Width,
		Height:      s.Height,
		DeviceIndex: s.DeviceIndex,
	}
	if err := req.Validate(); err != nil {
		return camera.Request{}, err
	}
	return req, nil
}

// optionalParam maps negative values to unset. NaN is passed through so
// validation rejects it.
func optionalParam(v float64) *float64 {
	if v < 0 {
		return nil
	}
	return &v
}

func invalidOptions(msg string) error {
	return &camera.CaptureError{Kind: camera.KindInvalidRequest, Message: msg}
}
