package camera

import (
	"errors"
	"fmt"
)

// Step identifies the SDK call a session was executing.
type Step string

// Protocol steps.
const (
	StepInitResource    Step = "init_resource"
	StepScan            Step = "scan"
	StepIdentify        Step = "get_id"
	StepOpen            Step = "open"
	StepSetStreamMode   Step = "set_stream_mode"
	StepInit            Step = "init"
	StepSetBinMode      Step = "set_bin_mode"
	StepSetResolution   Step = "set_resolution"
	StepSetExposure     Step = "set_exposure"
	StepSetGain         Step = "set_gain"
	StepSetOffset       Step = "set_offset"
	StepExpose          Step = "expose"
	StepMemLength       Step = "mem_length"
	StepAllocate        Step = "allocate"
	StepReadFrame       Step = "read_frame"
	StepValidate        Step = "validate"
	StepClose           Step = "close"
	StepReleaseResource Step = "release_resource"
)

// ErrorKind classifies capture failures.
type ErrorKind string

// Capture failure kinds.
const (
	KindInvalidRequest       ErrorKind = "INVALID_REQUEST"
	KindResourceInit         ErrorKind = "RESOURCE_INIT"
	KindDeviceNotFound       ErrorKind = "DEVICE_NOT_FOUND"
	KindDeviceIdentification ErrorKind = "DEVICE_IDENTIFICATION"
	KindDeviceOpen           ErrorKind = "DEVICE_OPEN"
	KindConfiguration        ErrorKind = "CONFIGURATION"
	KindCaptureTrigger       ErrorKind = "CAPTURE_TRIGGER"
	KindFrameRead            ErrorKind = "FRAME_READ"
	KindInvalidFrameMetadata ErrorKind = "INVALID_FRAME_METADATA"
	KindAllocation           ErrorKind = "ALLOCATION"
	KindTeardown             ErrorKind = "TEARDOWN"
)

// CaptureError is returned by Session and Capturer. Code holds the native
// return code when the failure came from an SDK call.
type CaptureError struct {
	Kind    ErrorKind
	Step    Step
	Code    uint32
	Message string
	Cause   error
}

func (e *CaptureError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Step != "" {
		msg = fmt.Sprintf("%s: %s", e.Step, msg)
	}
	if e.Code != 0 {
		msg = fmt.Sprintf("%s (code %#x)", msg, e.Code)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *CaptureError) Unwrap() error {
	return e.Cause
}

// Is matches another *CaptureError of the same kind. A target with a Step
// also has to match the step.
func (e *CaptureError) Is(target error) bool {
	var t *CaptureError
	if !errors.As(target, &t) || t.Kind != e.Kind {
		return false
	}
	return t.Step == "" || t.Step == e.Step
}

// Sentinels for errors.Is.
var (
	ErrInvalidRequest       = &CaptureError{Kind: KindInvalidRequest}
	ErrResourceInit         = &CaptureError{Kind: KindResourceInit}
	ErrDeviceNotFound       = &CaptureError{Kind: KindDeviceNotFound}
	ErrDeviceIdentification = &CaptureError{Kind: KindDeviceIdentification}
	ErrDeviceOpen           = &CaptureError{Kind: KindDeviceOpen}
	ErrConfiguration        = &CaptureError{Kind: KindConfiguration}
	ErrCaptureTrigger       = &CaptureError{Kind: KindCaptureTrigger}
	ErrFrameRead            = &CaptureError{Kind: KindFrameRead}
	ErrInvalidFrameMetadata = &CaptureError{Kind: KindInvalidFrameMetadata}
	ErrAllocation           = &CaptureError{Kind: KindAllocation}
	ErrTeardown             = &CaptureError{Kind: KindTeardown}
)

// KindOf returns the kind of a capture error, or "" for other errors.
func KindOf(err error) ErrorKind {
	var ce *CaptureError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

func sdkError(kind ErrorKind, step Step, code uint32, msg string) *CaptureError {
	return &CaptureError{Kind: kind, Step: step, Code: code, Message: msg}
}
