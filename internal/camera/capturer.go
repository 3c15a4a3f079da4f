package camera

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/smazurov/qhynode/internal/logging"
)

// Capturer runs complete single-frame captures against an SDK.
type Capturer struct {
	sdk      SDK
	logger   logging.Logger
	observer func(StateChange)
}

// Option configures a Capturer.
type Option func(*Capturer)

// WithLogger sets the logger used by the capturer and its sessions.
func WithLogger(logger logging.Logger) Option {
	return func(c *Capturer) {
		c.logger = logger
	}
}

// WithObserver registers a callback for every session state change.
func WithObserver(fn func(StateChange)) Option {
	return func(c *Capturer) {
		c.observer = fn
	}
}

// NewCapturer creates a capturer bound to sdk.
func NewCapturer(sdk SDK, opts ...Option) *Capturer {
	c := &Capturer{
		sdk:    sdk,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Capture performs one capture. On any failure the session has been torn
// down by the time the error is returned.
func (c *Capturer) Capture(req Request) (*FrameBuffer, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	sess := NewSession(c.sdk, WithSessionLogger(c.logger), WithStateObserver(c.observer))
	defer func() {
		if err := sess.Close(); err != nil {
			c.logger.Warn("Camera teardown reported errors", "error", err)
		}
	}()

	if err := sess.InitResource(); err != nil {
		return nil, err
	}
	count, err := sess.Scan()
	if err != nil {
		return nil, err
	}
	id, err := sess.Identify(req.DeviceIndex, count)
	if err != nil {
		return nil, err
	}
	if err := sess.Open(); err != nil {
		return nil, err
	}
	c.logger.Debug("Camera opened", "camera_id", id, "index", req.DeviceIndex, "found", count)

	if err := sess.Configure(req); err != nil {
		return nil, err
	}

	start := time.Now()
	if err := sess.Expose(); err != nil {
		return nil, err
	}
	c.logger.Debug("Exposure complete", "camera_id", id, "exposure", req.Exposure(), "elapsed", time.Since(start))

	memLength := sess.MemLength()
	size := AllocationSize(memLength, req.Width, req.Height)
	if size == 0 || size > MaxFrameBytes || size > math.MaxInt {
		return nil, sess.Abort(&CaptureError{
			Kind:    KindAllocation,
			Step:    StepAllocate,
			Message: fmt.Sprintf("cannot allocate frame buffer of %d bytes", size),
		})
	}
	buf := make([]byte, int(size))

	info, err := sess.ReadFrame(buf)
	if err != nil {
		return nil, err
	}
	if !validMetadata(info) {
		return nil, sess.Abort(&CaptureError{
			Kind:    KindInvalidFrameMetadata,
			Step:    StepValidate,
			Message: fmt.Sprintf("frame reported %dx%d at %d bpp", info.Width, info.Height, info.BitDepth),
		})
	}

	used := UsedBytes(info, len(buf))
	frame := &FrameBuffer{
		CameraID: id,
		Data:     buf[:used],
		Capacity: len(buf),
		Width:    info.Width,
		Height:   info.Height,
		BitDepth: info.BitDepth,
		Channels: info.Channels,
	}
	c.logger.Info("Frame captured",
		"camera_id", id,
		"width", frame.Width,
		"height", frame.Height,
		"bpp", frame.BitDepth,
		"channels", frame.Channels,
		"bytes", used,
		"mem_length", memLength)
	return frame, nil
}
