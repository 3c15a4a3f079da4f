package camera

import (
	"errors"
	"testing"

	"github.com/smazurov/qhynode/internal/camera/sim"
	"github.com/smazurov/qhynode/pkg/qhyccd"
)

func TestSessionOutOfOrderStep(t *testing.T) {
	cam := sim.New()
	sess := NewSession(cam, WithSessionLogger(quietLogger()))

	if _, err := sess.Scan(); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("Expected ErrInvalidRequest for Scan before InitResource, got %v", err)
	}
	if sess.State() != StateUninitialized {
		t.Errorf("Misuse must not change state, got %s", sess.State())
	}
	if len(cam.Calls()) != 0 {
		t.Errorf("Expected no SDK calls, got %v", cam.CallNames())
	}
}

func TestSessionCloseIdempotent(t *testing.T) {
	cam := sim.New()
	sess := NewSession(cam, WithSessionLogger(quietLogger()))

	if err := sess.InitResource(); err != nil {
		t.Fatalf("InitResource failed: %v", err)
	}
	count, err := sess.Scan()
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if _, err := sess.Identify(0, count); err != nil {
		t.Fatalf("Identify failed: %v", err)
	}
	if err := sess.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if !sess.Handle().Valid() {
		t.Fatal("Expected a valid handle after Open")
	}

	for i := 0; i < 3; i++ {
		if err := sess.Close(); err != nil {
			t.Fatalf("Close #%d failed: %v", i+1, err)
		}
	}
	if sess.State() != StateClosed {
		t.Errorf("Expected closed, got %s", sess.State())
	}
	if cam.Count(sim.CallClose) != 1 || cam.Count(sim.CallReleaseResource) != 1 {
		t.Errorf("Expected one close and one release, got %v", cam.CallNames())
	}
	if sess.Handle().Valid() {
		t.Error("Expected handle cleared after close")
	}
}

func TestSessionAbortAfterFailureIsNoop(t *testing.T) {
	cam := sim.New().Fail(sim.CallOpen, qhyccd.Error)
	sess := NewSession(cam, WithSessionLogger(quietLogger()))

	_ = sess.InitResource()
	count, _ := sess.Scan()
	_, _ = sess.Identify(0, count)
	err := sess.Open()
	if !errors.Is(err, ErrDeviceOpen) {
		t.Fatalf("Expected ErrDeviceOpen, got %v", err)
	}
	if sess.State() != StateFailed {
		t.Fatalf("Expected failed, got %s", sess.State())
	}

	again := errors.New("later failure")
	if got := sess.Abort(again); got != again {
		t.Errorf("Abort should return its argument, got %v", got)
	}
	if err := sess.Close(); err != nil {
		t.Errorf("Close after failure should be a no-op, got %v", err)
	}
	if n := cam.Count(sim.CallReleaseResource); n != 1 {
		t.Errorf("Expected a single release, got %d", n)
	}
	if n := cam.Count(sim.CallClose); n != 0 {
		t.Errorf("Close must not run when Open failed, got %d", n)
	}
}

func TestSessionTeardownOrder(t *testing.T) {
	cam := sim.New().Fail(sim.CallInit, qhyccd.Error)
	sess := NewSession(cam, WithSessionLogger(quietLogger()))

	_ = sess.InitResource()
	count, _ := sess.Scan()
	_, _ = sess.Identify(0, count)
	_ = sess.Open()
	if err := sess.Configure(smallRequest()); !errors.Is(err, &CaptureError{Kind: KindConfiguration, Step: StepInit}) {
		t.Fatalf("Expected configuration error at init, got %v", err)
	}

	names := cam.CallNames()
	tail := names[len(names)-2:]
	if tail[0] != sim.CallClose || tail[1] != sim.CallReleaseResource {
		t.Errorf("Expected close before release, got %v", tail)
	}
}

func TestSessionReleaseFailureReported(t *testing.T) {
	cam := sim.New().Fail(sim.CallReleaseResource, qhyccd.Error)
	sess := NewSession(cam, WithSessionLogger(quietLogger()))

	if err := sess.InitResource(); err != nil {
		t.Fatalf("InitResource failed: %v", err)
	}
	err := sess.Close()
	if !errors.Is(err, ErrTeardown) {
		t.Errorf("Expected ErrTeardown from Close, got %v", err)
	}
	if sess.State() != StateClosed {
		t.Errorf("Expected closed even when release fails, got %s", sess.State())
	}
}

func TestSessionExposeReadDirectly(t *testing.T) {
	sdk := &readDirectlySDK{Camera: sim.New(sim.WithSensor(64, 48))}
	c := NewCapturer(sdk, WithLogger(quietLogger()))

	if _, err := c.Capture(smallRequest()); err != nil {
		t.Fatalf("Expected READ_DIRECTLY to count as success, got %v", err)
	}
}

type readDirectlySDK struct {
	*sim.Camera
}

func (r *readDirectlySDK) ExposeSingleFrame(h qhyccd.Handle) uint32 {
	if code := r.Camera.ExposeSingleFrame(h); code != qhyccd.Success {
		return code
	}
	return qhyccd.ReadDirectly
}
