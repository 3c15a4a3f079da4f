package capture

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/smazurov/qhynode/internal/camera"
	"github.com/smazurov/qhynode/internal/camera/sim"
	"github.com/smazurov/qhynode/internal/config"
	"github.com/smazurov/qhynode/internal/events"
	"github.com/smazurov/qhynode/pkg/qhyccd"
)

// gatedCamera blocks the exposure until release is closed.
type gatedCamera struct {
	*sim.Camera
	started chan struct{}
	release chan struct{}
}

func newGatedCamera() *gatedCamera {
	return &gatedCamera{
		Camera:  sim.New(),
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (g *gatedCamera) ExposeSingleFrame(h qhyccd.Handle) uint32 {
	close(g.started)
	<-g.release
	return g.Camera.ExposeSingleFrame(h)
}

func waitIdle(t *testing.T, s *Service) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for s.Busy() {
		if time.Now().After(deadline) {
			t.Fatal("timeout waiting for capture to finish")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestServiceCaptureSuccess(t *testing.T) {
	cam := sim.New()
	store, err := NewFrameStore(filepath.Join(t.TempDir(), "frames"))
	if err != nil {
		t.Fatal(err)
	}
	bus := events.New()
	success := make(chan events.CaptureSuccessEvent, 1)
	unsub := bus.Subscribe(func(e events.CaptureSuccessEvent) {
		success <- e
	})
	defer unsub()

	svc := NewService(Fixed{SDK: cam, Name: "sim"}, WithStore(store), WithBus(bus))

	res, err := svc.Capture(context.Background(), Options{ExposureMs: ptr(int64(5))})
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	if res.Width != 1920 || res.Height != 1080 || res.BPP != 16 || res.Channels != 1 {
		t.Errorf("Unexpected geometry %dx%d bpp=%d ch=%d", res.Width, res.Height, res.BPP, res.Channels)
	}
	if len(res.Data) != 1920*1080*2 {
		t.Errorf("Expected %d bytes, got %d", 1920*1080*2, len(res.Data))
	}
	if res.ExposureUs != 5000 {
		t.Errorf("Expected exposure 5000us, got %v", res.ExposureUs)
	}
	if res.CameraID != "QHY178M-sim0001" {
		t.Errorf("Expected camera id, got %q", res.CameraID)
	}
	if !res.Stored {
		t.Error("Expected frame to be stored")
	}

	rec, err := store.Get(res.ID)
	if err != nil {
		t.Fatalf("Expected stored record, got %v", err)
	}
	if rec.Bytes != len(res.Data) || rec.ExposureUs != 5000 {
		t.Errorf("Unexpected stored record %+v", rec)
	}

	select {
	case ev := <-success:
		if ev.CaptureID != res.ID {
			t.Errorf("Expected event for %s, got %s", res.ID, ev.CaptureID)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for success event")
	}

	if got := cam.Count(sim.CallReleaseResource); got != 1 {
		t.Errorf("Expected resource released once, got %d", got)
	}
	if svc.Busy() {
		t.Error("Expected service idle after capture")
	}
}

func TestServiceCaptureErrors(t *testing.T) {
	tests := []struct {
		name    string
		cam     *sim.Camera
		opts    Options
		wantErr error
		wantMsg string
	}{
		{"no camera", sim.New(sim.WithCameras()), Options{}, camera.ErrDeviceNotFound, MsgNoCamera},
		{"open fails", sim.New().Fail(sim.CallOpen, 0), Options{}, camera.ErrDeviceOpen, MsgOpen},
		{"expose fails", sim.New().Fail(sim.CallExpose, qhyccd.Error), Options{}, camera.ErrCaptureTrigger, MsgCaptureFailed},
		{"invalid options", sim.New(), Options{ExposureMs: ptr(int64(0))}, camera.ErrInvalidRequest, MsgInvalidOptions},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := events.New()
			errCh := make(chan events.CaptureErrorEvent, 1)
			unsub := bus.Subscribe(func(e events.CaptureErrorEvent) {
				errCh <- e
			})
			defer unsub()

			svc := NewService(Fixed{SDK: tt.cam}, WithBus(bus))
			res, err := svc.Capture(context.Background(), tt.opts)
			if res != nil {
				t.Error("Expected no result on failure")
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Expected %v, got %v", tt.wantErr, err)
			}
			if got := Message(err); got != tt.wantMsg {
				t.Errorf("Expected message %q, got %q", tt.wantMsg, got)
			}

			select {
			case ev := <-errCh:
				if ev.Message != tt.wantMsg {
					t.Errorf("Expected event message %q, got %q", tt.wantMsg, ev.Message)
				}
			case <-time.After(time.Second):
				t.Fatal("timeout waiting for error event")
			}

			if tt.cam.Count(sim.CallInitResource) != tt.cam.Count(sim.CallReleaseResource) {
				t.Errorf("Expected balanced init/release, got %v", tt.cam.CallNames())
			}
		})
	}
}

func TestServiceLibraryLoadFailure(t *testing.T) {
	loader := NewLibraryLoader("missing.so", withLoadFunc(func(path string) (*qhyccd.Library, error) {
		return nil, &qhyccd.LoadError{Path: path, Err: errors.New("no such file")}
	}))
	svc := NewService(loader)

	_, err := svc.Capture(context.Background(), Options{})
	var loadErr *qhyccd.LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("Expected LoadError, got %v", err)
	}
	if Message(err) != MsgLibraryLoad {
		t.Errorf("Expected %q, got %q", MsgLibraryLoad, Message(err))
	}
}

func TestServiceRejectsConcurrentCapture(t *testing.T) {
	cam := newGatedCamera()
	svc := NewService(Fixed{SDK: cam})

	first := make(chan error, 1)
	go func() {
		_, err := svc.Capture(context.Background(), Options{ExposureMs: ptr(int64(1))})
		first <- err
	}()
	<-cam.started

	if !svc.Busy() {
		t.Error("Expected service busy during exposure")
	}
	if _, err := svc.Capture(context.Background(), Options{}); !errors.Is(err, ErrBusy) {
		t.Errorf("Expected ErrBusy, got %v", err)
	}

	close(cam.release)
	if err := <-first; err != nil {
		t.Fatalf("Expected first capture to succeed, got %v", err)
	}
	if cam.Count(sim.CallInitResource) != 1 {
		t.Errorf("Expected the rejected request never to reach the SDK, got %v", cam.CallNames())
	}
}

func TestServiceCallerTimeoutStillTearsDown(t *testing.T) {
	cam := newGatedCamera()
	svc := NewService(Fixed{SDK: cam})

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() {
		_, err := svc.Capture(ctx, Options{ExposureMs: ptr(int64(1))})
		result <- err
	}()
	<-cam.started
	cancel()

	select {
	case err := <-result:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Expected Capture to return when the caller gave up")
	}

	if !svc.Busy() {
		t.Error("Expected the camera to stay locked until the exposure completes")
	}
	close(cam.release)
	waitIdle(t, svc)

	if got := cam.Count(sim.CallClose); got != 1 {
		t.Errorf("Expected camera closed once, got %d", got)
	}
	if got := cam.Count(sim.CallReleaseResource); got != 1 {
		t.Errorf("Expected resource released once, got %d", got)
	}
}

func TestServiceCaptureWithDoneContext(t *testing.T) {
	cam := sim.New()
	svc := NewService(Fixed{SDK: cam})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := svc.Capture(ctx, Options{}); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if len(cam.Calls()) != 0 {
		t.Errorf("Expected no SDK calls, got %v", cam.CallNames())
	}
}

func TestServiceDefaultsReload(t *testing.T) {
	cam := sim.New()
	svc := NewService(Fixed{SDK: cam})

	d := config.DefaultCaptureDefaults()
	d.ExposureUs = 750
	d.Gain = 5
	d.Width, d.Height = 640, 480
	svc.SetDefaults(d)

	if got := svc.Defaults(); got.ExposureUs != 750 {
		t.Errorf("Expected updated defaults, got %+v", got)
	}

	res, err := svc.Capture(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	if res.ExposureUs != 750 || res.Width != 640 || res.Height != 480 {
		t.Errorf("Expected reloaded defaults applied, got exposure=%v %dx%d", res.ExposureUs, res.Width, res.Height)
	}
	if gain, ok := cam.Param(qhyccd.ControlGain); !ok || gain != 5 {
		t.Errorf("Expected gain 5 applied, got %v %v", gain, ok)
	}
}

func TestServicePublishesStateChanges(t *testing.T) {
	bus := events.New()
	states := make(chan events.CaptureStateChangedEvent, 32)
	unsub := bus.Subscribe(func(e events.CaptureStateChangedEvent) {
		states <- e
	})
	defer unsub()

	svc := NewService(Fixed{SDK: sim.New()}, WithBus(bus))
	if _, err := svc.Capture(context.Background(), Options{ExposureMs: ptr(int64(1))}); err != nil {
		t.Fatal(err)
	}

	seen := make(map[string]bool)
	deadline := time.After(time.Second)
	for !seen[string(camera.StateClosed)] {
		select {
		case ev := <-states:
			seen[ev.To] = true
		case <-deadline:
			t.Fatalf("timeout waiting for closed state, saw %v", seen)
		}
	}
	for _, st := range []camera.SessionState{camera.StateOpened, camera.StateExposed, camera.StateCaptured} {
		if !seen[string(st)] {
			t.Errorf("Expected state %s to be published", st)
		}
	}
}

func TestServiceUnloadLibraryWaitsForCapture(t *testing.T) {
	cam := newGatedCamera()
	svc := NewService(Fixed{SDK: cam})

	go svc.Capture(context.Background(), Options{ExposureMs: ptr(int64(1))})
	<-cam.started

	unloaded := make(chan error, 1)
	go func() {
		unloaded <- svc.UnloadLibrary()
	}()

	select {
	case <-unloaded:
		t.Fatal("Expected unload to wait for the running capture")
	case <-time.After(50 * time.Millisecond):
	}

	close(cam.release)
	select {
	case err := <-unloaded:
		if err != nil {
			t.Errorf("Expected unload to succeed, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for unload")
	}
}
