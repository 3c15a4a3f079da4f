package camera

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/smazurov/qhynode/internal/logging"
	"github.com/smazurov/qhynode/pkg/qhyccd"
)

// teardownAction releases one acquired resource.
type teardownAction struct {
	step Step
	run  func() error
}

// Session drives one pass through the SDK capture protocol.
//
// Every successful acquisition pushes its release onto a teardown stack.
// Entering the failed state, or calling Close, pops the stack in reverse
// order, so the device handle is closed before the resource context is
// released and each release runs at most once.
//
// A Session is single-use and not safe for concurrent use.
type Session struct {
	sdk      SDK
	logger   logging.Logger
	observer func(StateChange)

	state    SessionState
	handle   qhyccd.Handle
	cameraID string
	teardown []teardownAction
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithSessionLogger sets the session logger.
func WithSessionLogger(logger logging.Logger) SessionOption {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithStateObserver registers a callback invoked on every transition.
func WithStateObserver(fn func(StateChange)) SessionOption {
	return func(s *Session) {
		s.observer = fn
	}
}

// NewSession creates a session in the uninitialized state.
func NewSession(sdk SDK, opts ...SessionOption) *Session {
	s := &Session{
		sdk:    sdk,
		state:  StateUninitialized,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current state.
func (s *Session) State() SessionState {
	return s.state
}

// CameraID returns the identifier obtained by Identify.
func (s *Session) CameraID() string {
	return s.cameraID
}

// Handle returns the open device handle, or 0.
func (s *Session) Handle() qhyccd.Handle {
	return s.handle
}

func (s *Session) transition(next SessionState, step Step) {
	if !s.state.CanTransition(next) {
		panic(fmt.Sprintf("camera: invalid session transition %s -> %s", s.state, next))
	}
	change := StateChange{From: s.state, To: next, Step: step}
	s.state = next
	s.logger.Debug("Session state changed", "from", change.From, "to", change.To, "step", step)
	if s.observer != nil {
		s.observer(change)
	}
}

func (s *Session) require(step Step, states ...SessionState) error {
	for _, st := range states {
		if s.state == st {
			return nil
		}
	}
	return &CaptureError{
		Kind:    KindInvalidRequest,
		Step:    step,
		Message: fmt.Sprintf("step not allowed in state %s", s.state),
	}
}

func (s *Session) push(step Step, run func() error) {
	s.teardown = append(s.teardown, teardownAction{step: step, run: run})
}

// unwind pops the teardown stack. Every action runs even if an earlier one
// fails; the failures are joined.
func (s *Session) unwind() error {
	var errs []error
	for len(s.teardown) > 0 {
		last := len(s.teardown) - 1
		action := s.teardown[last]
		s.teardown = s.teardown[:last]
		if err := action.run(); err != nil {
			s.logger.Warn("Teardown step failed", "step", action.step, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Abort moves the session to failed, runs teardown and returns err.
func (s *Session) Abort(err error) error {
	if s.state.Terminal() {
		return err
	}
	var step Step
	var ce *CaptureError
	if errors.As(err, &ce) {
		step = ce.Step
	}
	s.transition(StateFailed, step)
	if tdErr := s.unwind(); tdErr != nil {
		s.logger.Warn("Teardown after failure incomplete", "error", tdErr)
	}
	return err
}

// InitResource acquires the SDK resource context.
func (s *Session) InitResource() error {
	if err := s.require(StepInitResource, StateUninitialized); err != nil {
		return err
	}
	if code := s.sdk.InitResource(); code != qhyccd.Success {
		return s.Abort(sdkError(KindResourceInit, StepInitResource, code, "SDK resource initialization failed"))
	}
	s.push(StepReleaseResource, func() error {
		if code := s.sdk.ReleaseResource(); code != qhyccd.Success {
			return sdkError(KindTeardown, StepReleaseResource, code, "release resource failed")
		}
		return nil
	})
	s.transition(StateResourceReady, StepInitResource)
	return nil
}

// Scan returns the number of connected cameras. Zero is a failure.
func (s *Session) Scan() (uint32, error) {
	if err := s.require(StepScan, StateResourceReady); err != nil {
		return 0, err
	}
	count := s.sdk.Scan()
	if count == 0 {
		return 0, s.Abort(sdkError(KindDeviceNotFound, StepScan, 0, "no camera found"))
	}
	s.logger.Debug("Cameras found", "count", count)
	s.transition(StateScanned, StepScan)
	return count, nil
}

// Identify fetches the identifier of the camera at index.
func (s *Session) Identify(index, count uint32) (string, error) {
	if err := s.require(StepIdentify, StateScanned); err != nil {
		return "", err
	}
	if index >= count {
		return "", s.Abort(sdkError(KindDeviceNotFound, StepIdentify, 0,
			fmt.Sprintf("camera index %d out of range, %d found", index, count)))
	}
	id, code := s.sdk.CameraID(index)
	if code != qhyccd.Success {
		return "", s.Abort(sdkError(KindDeviceIdentification, StepIdentify, code, "get camera id failed"))
	}
	if id == "" {
		return "", s.Abort(sdkError(KindDeviceIdentification, StepIdentify, code, "camera id is empty"))
	}
	s.cameraID = id
	return id, nil
}

// Open opens the identified camera.
func (s *Session) Open() error {
	if err := s.require(StepOpen, StateScanned); err != nil {
		return err
	}
	if s.cameraID == "" {
		return &CaptureError{Kind: KindInvalidRequest, Step: StepOpen, Message: "camera not identified"}
	}
	h := s.sdk.Open(s.cameraID)
	if !h.Valid() {
		return s.Abort(sdkError(KindDeviceOpen, StepOpen, 0, "open camera failed"))
	}
	s.handle = h
	s.push(StepClose, func() error {
		code := s.sdk.Close(h)
		s.handle = 0
		if code != qhyccd.Success {
			return sdkError(KindTeardown, StepClose, code, "close camera failed")
		}
		return nil
	})
	s.transition(StateOpened, StepOpen)
	return nil
}

type configStep struct {
	step Step
	call func() uint32
}

// Configure applies stream mode, init, binning, ROI, exposure and the
// optional gain and offset, in that order.
func (s *Session) Configure(req Request) error {
	if err := s.require(StepSetStreamMode, StateOpened); err != nil {
		return err
	}
	h := s.handle

	steps := []configStep{
		{StepSetStreamMode, func() uint32 { return s.sdk.SetStreamMode(h, qhyccd.StreamSingle) }},
		{StepInit, func() uint32 { return s.sdk.Init(h) }},
		{StepSetBinMode, func() uint32 { return s.sdk.SetBinMode(h, 1, 1) }},
		{StepSetResolution, func() uint32 { return s.sdk.SetResolution(h, 0, 0, req.Width, req.Height) }},
		{StepSetExposure, func() uint32 { return s.sdk.SetParam(h, qhyccd.ControlExposure, req.ExposureUs) }},
	}
	if req.Gain != nil {
		gain := *req.Gain
		steps = append(steps, configStep{StepSetGain, func() uint32 { return s.sdk.SetParam(h, qhyccd.ControlGain, gain) }})
	}
	if req.Offset != nil {
		offset := *req.Offset
		steps = append(steps, configStep{StepSetOffset, func() uint32 { return s.sdk.SetParam(h, qhyccd.ControlOffset, offset) }})
	}

	for _, st := range steps {
		if code := st.call(); code != qhyccd.Success {
			return s.Abort(sdkError(KindConfiguration, st.step, code, "camera configuration failed"))
		}
	}
	s.transition(StateConfigured, StepSetExposure)
	return nil
}

// Expose triggers the exposure and blocks until the SDK returns.
func (s *Session) Expose() error {
	if err := s.require(StepExpose, StateConfigured); err != nil {
		return err
	}
	code := s.sdk.ExposeSingleFrame(s.handle)
	if code != qhyccd.Success && code != qhyccd.ReadDirectly {
		return s.Abort(sdkError(KindCaptureTrigger, StepExpose, code, "exposure failed"))
	}
	s.transition(StateExposed, StepExpose)
	return nil
}

// MemLength returns the SDK's buffer size hint, 0 when it has none.
func (s *Session) MemLength() uint32 {
	if s.state != StateExposed {
		return 0
	}
	return s.sdk.MemLength(s.handle)
}

// ReadFrame reads the exposed frame into buf.
func (s *Session) ReadFrame(buf []byte) (qhyccd.FrameInfo, error) {
	if err := s.require(StepReadFrame, StateExposed); err != nil {
		return qhyccd.FrameInfo{}, err
	}
	info, code := s.sdk.SingleFrame(s.handle, buf)
	if code != qhyccd.Success {
		return info, s.Abort(sdkError(KindFrameRead, StepReadFrame, code, "frame readout failed"))
	}
	s.transition(StateCaptured, StepReadFrame)
	return info, nil
}

// Close runs the remaining teardown and moves the session to closed. It is a
// no-op on a session that already reached a terminal state.
func (s *Session) Close() error {
	if s.state.Terminal() {
		return nil
	}
	err := s.unwind()
	s.transition(StateClosed, StepClose)
	return err
}
