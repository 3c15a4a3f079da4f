package camera

import (
	"errors"
	"io"
	"log/slog"
	"reflect"
	"testing"

	"github.com/smazurov/qhynode/internal/camera/sim"
	"github.com/smazurov/qhynode/pkg/qhyccd"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func smallRequest() Request {
	return Request{ExposureUs: 2000, Width: 64, Height: 48}
}

func ptr(v float64) *float64 { return &v }

func TestCaptureNormal(t *testing.T) {
	cam := sim.New(sim.WithSensor(64, 48))
	var changes []StateChange
	c := NewCapturer(cam, WithLogger(quietLogger()), WithObserver(func(sc StateChange) {
		changes = append(changes, sc)
	}))

	req := smallRequest()
	req.Gain = ptr(10)
	req.Offset = ptr(30)

	frame, err := c.Capture(req)
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}

	if frame.Width != 64 || frame.Height != 48 {
		t.Errorf("Expected 64x48 frame, got %dx%d", frame.Width, frame.Height)
	}
	if frame.BitDepth != 16 || frame.Channels != 1 {
		t.Errorf("Expected 16-bit mono, got %d bpp %d channels", frame.BitDepth, frame.Channels)
	}
	if want := 64 * 48 * 2; len(frame.Data) != want || frame.Capacity != want {
		t.Errorf("Expected %d bytes in a %d byte buffer, got %d in %d", want, want, len(frame.Data), frame.Capacity)
	}

	wantCalls := []string{
		sim.CallInitResource,
		sim.CallScan,
		sim.CallGetID,
		sim.CallOpen,
		sim.CallSetStreamMode,
		sim.CallInit,
		sim.CallSetBinMode,
		sim.CallSetResolution,
		sim.CallSetParam,
		sim.CallSetParam,
		sim.CallSetParam,
		sim.CallExpose,
		sim.CallMemLength,
		sim.CallGetSingleFrame,
		sim.CallClose,
		sim.CallReleaseResource,
	}
	if got := cam.CallNames(); !reflect.DeepEqual(got, wantCalls) {
		t.Errorf("Unexpected call sequence:\n got: %v\nwant: %v", got, wantCalls)
	}

	if v, _ := cam.Param(qhyccd.ControlExposure); v != 2000 {
		t.Errorf("Expected exposure 2000us, got %v", v)
	}
	if v, _ := cam.Param(qhyccd.ControlGain); v != 10 {
		t.Errorf("Expected gain 10, got %v", v)
	}
	if v, _ := cam.Param(qhyccd.ControlOffset); v != 30 {
		t.Errorf("Expected offset 30, got %v", v)
	}

	wantStates := []SessionState{
		StateResourceReady, StateScanned, StateOpened, StateConfigured,
		StateExposed, StateCaptured, StateClosed,
	}
	if len(changes) != len(wantStates) {
		t.Fatalf("Expected %d state changes, got %d: %v", len(wantStates), len(changes), changes)
	}
	for i, st := range wantStates {
		if changes[i].To != st {
			t.Errorf("state change %d = %s, want %s", i, changes[i].To, st)
		}
	}
}

func TestCaptureOptionalParamsSkipped(t *testing.T) {
	cam := sim.New(sim.WithSensor(64, 48))
	c := NewCapturer(cam, WithLogger(quietLogger()))

	if _, err := c.Capture(smallRequest()); err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	if n := cam.Count(sim.CallSetParam); n != 1 {
		t.Errorf("Expected only the exposure SetParam, got %d calls", n)
	}
	if _, ok := cam.Param(qhyccd.ControlGain); ok {
		t.Error("Gain must not be set when absent from the request")
	}
}

func TestCaptureNoCamera(t *testing.T) {
	cam := sim.New(sim.WithCameras())
	c := NewCapturer(cam, WithLogger(quietLogger()))

	frame, err := c.Capture(smallRequest())
	if frame != nil {
		t.Fatal("Expected no frame")
	}
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Fatalf("Expected ErrDeviceNotFound, got %v", err)
	}

	want := []string{sim.CallInitResource, sim.CallScan, sim.CallReleaseResource}
	if got := cam.CallNames(); !reflect.DeepEqual(got, want) {
		t.Errorf("Unexpected call sequence: got %v, want %v", got, want)
	}
}

func TestCaptureDeviceIndexOutOfRange(t *testing.T) {
	cam := sim.New(sim.WithSensor(64, 48))
	c := NewCapturer(cam, WithLogger(quietLogger()))

	req := smallRequest()
	req.DeviceIndex = 3
	_, err := c.Capture(req)
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Fatalf("Expected ErrDeviceNotFound, got %v", err)
	}
	if cam.Count(sim.CallGetID) != 0 {
		t.Error("GetQHYCCDId must not be called for an out of range index")
	}
	if cam.Count(sim.CallReleaseResource) != 1 {
		t.Error("Expected resource released once")
	}
}

func TestCaptureExposureFailureTearsDown(t *testing.T) {
	cam := sim.New(sim.WithSensor(64, 48))
	cam.FailParam(qhyccd.ControlExposure, qhyccd.Error)
	c := NewCapturer(cam, WithLogger(quietLogger()))

	_, err := c.Capture(smallRequest())

	var ce *CaptureError
	if !errors.As(err, &ce) {
		t.Fatalf("Expected *CaptureError, got %v", err)
	}
	if ce.Kind != KindConfiguration || ce.Step != StepSetExposure {
		t.Errorf("Expected CONFIGURATION at set_exposure, got %s at %s", ce.Kind, ce.Step)
	}
	if ce.Code != qhyccd.Error {
		t.Errorf("Expected native code to be kept, got %#x", ce.Code)
	}
	if n := cam.Count(sim.CallClose); n != 1 {
		t.Errorf("Expected CloseQHYCCD once, got %d", n)
	}
	if n := cam.Count(sim.CallReleaseResource); n != 1 {
		t.Errorf("Expected ReleaseQHYCCDResource once, got %d", n)
	}
	names := cam.CallNames()
	if names[len(names)-2] != sim.CallClose || names[len(names)-1] != sim.CallReleaseResource {
		t.Errorf("Expected close then release at the end, got %v", names)
	}
}

func TestCaptureFailureAtEveryStep(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(*sim.Camera)
		wantKind    ErrorKind
		wantStep    Step
		wantOpen    bool
		wantRelease int
	}{
		{
			name:     "init resource",
			setup:    func(c *sim.Camera) { c.Fail(sim.CallInitResource, qhyccd.Error) },
			wantKind: KindResourceInit,
			wantStep: StepInitResource,
		},
		{
			name:        "scan",
			setup:       func(c *sim.Camera) { c.Fail(sim.CallScan, 0) },
			wantKind:    KindDeviceNotFound,
			wantStep:    StepScan,
			wantRelease: 1,
		},
		{
			name:        "get id",
			setup:       func(c *sim.Camera) { c.Fail(sim.CallGetID, qhyccd.Error) },
			wantKind:    KindDeviceIdentification,
			wantStep:    StepIdentify,
			wantRelease: 1,
		},
		{
			name:        "open",
			setup:       func(c *sim.Camera) { c.Fail(sim.CallOpen, qhyccd.Error) },
			wantKind:    KindDeviceOpen,
			wantStep:    StepOpen,
			wantRelease: 1,
		},
		{
			name:        "stream mode",
			setup:       func(c *sim.Camera) { c.Fail(sim.CallSetStreamMode, qhyccd.Error) },
			wantKind:    KindConfiguration,
			wantStep:    StepSetStreamMode,
			wantOpen:    true,
			wantRelease: 1,
		},
		{
			name:        "init camera",
			setup:       func(c *sim.Camera) { c.Fail(sim.CallInit, qhyccd.Error) },
			wantKind:    KindConfiguration,
			wantStep:    StepInit,
			wantOpen:    true,
			wantRelease: 1,
		},
		{
			name:        "bin mode",
			setup:       func(c *sim.Camera) { c.Fail(sim.CallSetBinMode, qhyccd.Error) },
			wantKind:    KindConfiguration,
			wantStep:    StepSetBinMode,
			wantOpen:    true,
			wantRelease: 1,
		},
		{
			name:        "resolution",
			setup:       func(c *sim.Camera) { c.Fail(sim.CallSetResolution, qhyccd.Error) },
			wantKind:    KindConfiguration,
			wantStep:    StepSetResolution,
			wantOpen:    true,
			wantRelease: 1,
		},
		{
			name:        "gain",
			setup:       func(c *sim.Camera) { c.FailParam(qhyccd.ControlGain, qhyccd.Error) },
			wantKind:    KindConfiguration,
			wantStep:    StepSetGain,
			wantOpen:    true,
			wantRelease: 1,
		},
		{
			name:        "offset",
			setup:       func(c *sim.Camera) { c.FailParam(qhyccd.ControlOffset, qhyccd.Error) },
			wantKind:    KindConfiguration,
			wantStep:    StepSetOffset,
			wantOpen:    true,
			wantRelease: 1,
		},
		{
			name:        "expose",
			setup:       func(c *sim.Camera) { c.Fail(sim.CallExpose, qhyccd.Error) },
			wantKind:    KindCaptureTrigger,
			wantStep:    StepExpose,
			wantOpen:    true,
			wantRelease: 1,
		},
		{
			name:        "read frame",
			setup:       func(c *sim.Camera) { c.Fail(sim.CallGetSingleFrame, qhyccd.Error) },
			wantKind:    KindFrameRead,
			wantStep:    StepReadFrame,
			wantOpen:    true,
			wantRelease: 1,
		},
		{
			name:        "invalid metadata",
			setup:       func(c *sim.Camera) { c.SetFrameInfo(qhyccd.FrameInfo{Width: 64, Height: 0, BitDepth: 16}) },
			wantKind:    KindInvalidFrameMetadata,
			wantStep:    StepValidate,
			wantOpen:    true,
			wantRelease: 1,
		},
		{
			name:        "zero bit depth",
			setup:       func(c *sim.Camera) { c.SetFrameInfo(qhyccd.FrameInfo{Width: 64, Height: 48}) },
			wantKind:    KindInvalidFrameMetadata,
			wantStep:    StepValidate,
			wantOpen:    true,
			wantRelease: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cam := sim.New(sim.WithSensor(64, 48))
			tt.setup(cam)
			var last StateChange
			c := NewCapturer(cam, WithLogger(quietLogger()), WithObserver(func(sc StateChange) { last = sc }))

			req := smallRequest()
			req.Gain = ptr(5)
			req.Offset = ptr(10)
			frame, err := c.Capture(req)
			if frame != nil {
				t.Fatal("Expected no frame on failure")
			}

			var ce *CaptureError
			if !errors.As(err, &ce) {
				t.Fatalf("Expected *CaptureError, got %T: %v", err, err)
			}
			if ce.Kind != tt.wantKind {
				t.Errorf("Expected kind %s, got %s", tt.wantKind, ce.Kind)
			}
			if ce.Step != tt.wantStep {
				t.Errorf("Expected step %s, got %s", tt.wantStep, ce.Step)
			}

			wantClose := 0
			if tt.wantOpen {
				wantClose = 1
			}
			if n := cam.Count(sim.CallClose); n != wantClose {
				t.Errorf("Expected %d CloseQHYCCD calls, got %d", wantClose, n)
			}
			if n := cam.Count(sim.CallReleaseResource); n != tt.wantRelease {
				t.Errorf("Expected %d ReleaseQHYCCDResource calls, got %d", tt.wantRelease, n)
			}
			if last.To != StateFailed {
				t.Errorf("Expected final state failed, got %s", last.To)
			}
		})
	}
}

func TestCaptureCloseFailureStillReleases(t *testing.T) {
	cam := sim.New(sim.WithSensor(64, 48))
	cam.Fail(sim.CallClose, qhyccd.Error)
	c := NewCapturer(cam, WithLogger(quietLogger()))

	frame, err := c.Capture(smallRequest())
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	if frame == nil {
		t.Fatal("Expected a frame when only teardown fails")
	}
	if n := cam.Count(sim.CallReleaseResource); n != 1 {
		t.Errorf("Expected ReleaseQHYCCDResource once after failed close, got %d", n)
	}
}

func TestCaptureCloseFailureOnErrorPath(t *testing.T) {
	cam := sim.New(sim.WithSensor(64, 48))
	cam.Fail(sim.CallExpose, qhyccd.Error)
	cam.Fail(sim.CallClose, qhyccd.Error)
	c := NewCapturer(cam, WithLogger(quietLogger()))

	_, err := c.Capture(smallRequest())
	if !errors.Is(err, ErrCaptureTrigger) {
		t.Fatalf("Expected ErrCaptureTrigger, got %v", err)
	}
	if n := cam.Count(sim.CallReleaseResource); n != 1 {
		t.Errorf("Expected ReleaseQHYCCDResource once, got %d", n)
	}
}

func TestCaptureMissingMetadataChannels(t *testing.T) {
	cam := sim.New(sim.WithSensor(64, 48), sim.WithBitDepth(8), sim.WithChannels(0))
	c := NewCapturer(cam, WithLogger(quietLogger()))

	frame, err := c.Capture(smallRequest())
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	if want := 64 * 48; len(frame.Data) != want {
		t.Errorf("Expected %d bytes, got %d", want, len(frame.Data))
	}
	if frame.Channels != 0 {
		t.Errorf("Expected reported channels 0, got %d", frame.Channels)
	}
}

func TestCaptureReportedGeometryUnchanged(t *testing.T) {
	cam := sim.New(sim.WithSensor(64, 48))
	cam.SetFrameInfo(qhyccd.FrameInfo{Width: 64, Height: 48, BitDepth: 8, Channels: 0})
	c := NewCapturer(cam, WithLogger(quietLogger()))

	frame, err := c.Capture(smallRequest())
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	if frame.Width != 64 || frame.Height != 48 || frame.BitDepth != 8 || frame.Channels != 0 {
		t.Errorf("Expected 64x48 8 bpp 0 channels, got %dx%d %d bpp %d channels",
			frame.Width, frame.Height, frame.BitDepth, frame.Channels)
	}
	if want := 64 * 48; len(frame.Data) != want {
		t.Errorf("Expected %d used bytes, got %d", want, len(frame.Data))
	}
}

func TestCaptureScenarios(t *testing.T) {
	memLength := func(n uint32) *uint32 { return &n }
	tests := []struct {
		name         string
		width        uint32
		height       uint32
		bitDepth     uint32
		memLength    *uint32
		wantCapacity int
		wantUsed     int
	}{
		{
			name:         "8-bit full HD with SDK size hint",
			width:        1920,
			height:       1080,
			bitDepth:     8,
			memLength:    memLength(2073600),
			wantCapacity: 2073600,
			wantUsed:     2073600,
		},
		{
			name:         "no SDK size hint falls back to two bytes per pixel",
			width:        1920,
			height:       1080,
			bitDepth:     16,
			memLength:    memLength(0),
			wantCapacity: 4147200,
			wantUsed:     4147200,
		},
		{
			name:         "16-bit VGA",
			width:        640,
			height:       480,
			bitDepth:     16,
			wantCapacity: 614400,
			wantUsed:     614400,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cam := sim.New(sim.WithSensor(tt.width, tt.height), sim.WithBitDepth(tt.bitDepth), sim.WithChannels(1))
			if tt.memLength != nil {
				cam.SetMemLength(*tt.memLength)
			}
			c := NewCapturer(cam, WithLogger(quietLogger()))

			frame, err := c.Capture(Request{ExposureUs: 1000, Width: tt.width, Height: tt.height})
			if err != nil {
				t.Fatalf("Capture failed: %v", err)
			}
			if frame.Capacity != tt.wantCapacity {
				t.Errorf("Expected capacity %d, got %d", tt.wantCapacity, frame.Capacity)
			}
			if len(frame.Data) != tt.wantUsed {
				t.Errorf("Expected %d used bytes, got %d", tt.wantUsed, len(frame.Data))
			}
			if frame.Width != tt.width || frame.Height != tt.height || frame.BitDepth != tt.bitDepth || frame.Channels != 1 {
				t.Errorf("Expected %dx%d %d bpp 1 channel, got %dx%d %d bpp %d channels",
					tt.width, tt.height, tt.bitDepth, frame.Width, frame.Height, frame.BitDepth, frame.Channels)
			}
			if n := cam.Count(sim.CallReleaseResource); n != 1 {
				t.Errorf("Expected ReleaseQHYCCDResource once, got %d", n)
			}
		})
	}
}

func TestCaptureClampsToBuffer(t *testing.T) {
	cam := sim.New(sim.WithSensor(64, 48))
	cam.SetMemLength(1000)
	c := NewCapturer(cam, WithLogger(quietLogger()))

	frame, err := c.Capture(smallRequest())
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	if len(frame.Data) != 1000 || frame.Capacity != 1000 {
		t.Errorf("Expected data clamped to 1000 bytes, got %d (capacity %d)", len(frame.Data), frame.Capacity)
	}
}

func TestCaptureFallbackAllocation(t *testing.T) {
	cam := sim.New(sim.WithSensor(64, 48))
	cam.SetMemLength(0)
	c := NewCapturer(cam, WithLogger(quietLogger()))

	frame, err := c.Capture(smallRequest())
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	if want := 64 * 48 * 2; frame.Capacity != want {
		t.Errorf("Expected fallback capacity %d, got %d", want, frame.Capacity)
	}
	calls := cam.Calls()
	for _, call := range calls {
		if call.Name == sim.CallGetSingleFrame {
			if got := call.Args[1].(int); got != 64*48*2 {
				t.Errorf("Expected SDK to receive %d byte buffer, got %d", 64*48*2, got)
			}
		}
	}
}

func TestCaptureAllocationTooLarge(t *testing.T) {
	cam := sim.New(sim.WithSensor(70000, 70000))
	cam.SetMemLength(0)
	c := NewCapturer(cam, WithLogger(quietLogger()))

	_, err := c.Capture(Request{ExposureUs: 1000, Width: 70000, Height: 70000})
	if !errors.Is(err, ErrAllocation) {
		t.Fatalf("Expected ErrAllocation, got %v", err)
	}
	if cam.Count(sim.CallGetSingleFrame) != 0 {
		t.Error("Frame must not be read without a buffer")
	}
	if cam.Count(sim.CallClose) != 1 || cam.Count(sim.CallReleaseResource) != 1 {
		t.Error("Expected close and release after allocation failure")
	}
}

func TestCaptureRejectsInvalidRequest(t *testing.T) {
	cam := sim.New()
	c := NewCapturer(cam, WithLogger(quietLogger()))

	_, err := c.Capture(Request{ExposureUs: 0, Width: 10, Height: 10})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("Expected ErrInvalidRequest, got %v", err)
	}
	if len(cam.Calls()) != 0 {
		t.Errorf("Expected no SDK calls for an invalid request, got %v", cam.CallNames())
	}
}

func TestCaptureRepeatable(t *testing.T) {
	cam := sim.New(sim.WithSensor(64, 48))
	c := NewCapturer(cam, WithLogger(quietLogger()))

	for i := 0; i < 3; i++ {
		if _, err := c.Capture(smallRequest()); err != nil {
			t.Fatalf("Capture %d failed: %v", i+1, err)
		}
	}
	if cam.Count(sim.CallInitResource) != 3 || cam.Count(sim.CallReleaseResource) != 3 {
		t.Errorf("Expected balanced init/release, got %d/%d",
			cam.Count(sim.CallInitResource), cam.Count(sim.CallReleaseResource))
	}
}
