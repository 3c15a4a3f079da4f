package capture

import (
	"context"
	"errors"
	"time"

	"github.com/smazurov/qhynode/internal/camera"
	"github.com/smazurov/qhynode/pkg/qhyccd"
)

// ErrBusy is returned when a capture is already holding the camera.
var ErrBusy = errors.New("capture already in progress")

// Result is one captured frame handed to callers.
type Result struct {
	ID         string
	CameraID   string
	Data       []byte
	Width      uint32
	Height     uint32
	BPP        uint32
	Channels   uint32
	ExposureUs float64
	Duration   time.Duration
	CapturedAt time.Time
	Stored     bool
}

// Messages returned to clients. Failures after the camera is open are
// reported as one generic capture failure.
const (
	MsgLibraryLoad    = "Failed to load QHYCCD SDK library"
	MsgLibrarySymbols = "QHYCCD SDK library is missing required functions"
	MsgResourceInit   = "InitQHYCCDResource failed"
	MsgNoCamera       = "No QHYCCD camera found"
	MsgIdentification = "GetQHYCCDId failed"
	MsgOpen           = "OpenQHYCCD failed"
	MsgCaptureFailed  = "QHYCCD capture failed"
	MsgInvalidOptions = "Invalid capture options"
	MsgBusy           = "A capture is already in progress"
	MsgTimeout        = "Timed out waiting for the capture to finish"
)

// Message collapses err to a client-facing message.
func Message(err error) string {
	if err == nil {
		return ""
	}

	var symErr *qhyccd.SymbolError
	var loadErr *qhyccd.LoadError
	switch {
	case errors.As(err, &symErr):
		return MsgLibrarySymbols
	case errors.As(err, &loadErr):
		return MsgLibraryLoad
	case errors.Is(err, ErrBusy):
		return MsgBusy
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return MsgTimeout
	}

	switch camera.KindOf(err) {
	case camera.KindInvalidRequest:
		return MsgInvalidOptions
	case camera.KindResourceInit:
		return MsgResourceInit
	case camera.KindDeviceNotFound:
		return MsgNoCamera
	case camera.KindDeviceIdentification:
		return MsgIdentification
	case camera.KindDeviceOpen:
		return MsgOpen
	default:
		return MsgCaptureFailed
	}
}

// Kind returns a stable label for err, used for metrics and events.
func Kind(err error) string {
	var symErr *qhyccd.SymbolError
	var loadErr *qhyccd.LoadError
	switch {
	case errors.As(err, &symErr):
		return "SYMBOL_RESOLUTION"
	case errors.As(err, &loadErr):
		return "LIBRARY_LOAD"
	case errors.Is(err, ErrBusy):
		return "BUSY"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "TIMEOUT"
	}
	if k := camera.KindOf(err); k != "" {
		return string(k)
	}
	return "UNKNOWN"
}
