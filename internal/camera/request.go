package camera

import (
	"fmt"
	"math"
	"time"
)

// Defaults applied by callers that build a Request from partial input.
const (
	DefaultExposure = time.Second
	DefaultWidth    = 1920
	DefaultHeight   = 1080
)

// Request is an immutable description of one capture.
type Request struct {
	// ExposureUs is the exposure time in microseconds, passed to the SDK
	// unchanged.
	ExposureUs float64
	// Gain and Offset are applied only when non-nil.
	Gain   *float64
	Offset *float64
	// Width and Height set the region of interest at origin (0,0).
	Width  uint32
	Height uint32
	// DeviceIndex selects the camera among those found by Scan.
	DeviceIndex uint32
}

// DefaultRequest returns a request with the default exposure and ROI.
func DefaultRequest() Request {
	return Request{
		ExposureUs: float64(DefaultExposure / time.Microsecond),
		Width:      DefaultWidth,
		Height:     DefaultHeight,
	}
}

// Exposure returns the exposure as a duration, rounded to the microsecond.
func (r Request) Exposure() time.Duration {
	return time.Duration(math.Round(r.ExposureUs)) * time.Microsecond
}

// Validate checks the request before any SDK call is made.
func (r Request) Validate() error {
	if math.IsNaN(r.ExposureUs) || math.IsInf(r.ExposureUs, 0) || r.ExposureUs <= 0 {
		return invalidRequest(fmt.Sprintf("exposure must be a positive number of microseconds, got %v", r.ExposureUs))
	}
	if r.Width == 0 || r.Height == 0 {
		return invalidRequest(fmt.Sprintf("region of interest must be non-empty, got %dx%d", r.Width, r.Height))
	}
	if r.Gain != nil && !validParam(*r.Gain) {
		return invalidRequest(fmt.Sprintf("gain must be a non-negative number, got %v", *r.Gain))
	}
	if r.Offset != nil && !validParam(*r.Offset) {
		return invalidRequest(fmt.Sprintf("offset must be a non-negative number, got %v", *r.Offset))
	}
	return nil
}

func validParam(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

func invalidRequest(msg string) *CaptureError {
	return &CaptureError{Kind: KindInvalidRequest, Message: msg}
}
