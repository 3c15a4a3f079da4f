package nats

import (
	"encoding/json"
	"fmt"
)

// Subject prefixes for NATS topics.
const (
	SubjectPrefix        = "qhynode"
	SubjectCapturePrefix = SubjectPrefix + ".capture"
	SubjectDevicesPrefix = SubjectPrefix + ".devices"
	SubjectLibraryState  = SubjectPrefix + ".library.state"
	SubjectControlPrefix = SubjectPrefix + ".control"
)

// SubjectCaptureStarted returns the subject for an accepted capture.
func SubjectCaptureStarted(captureID string) string {
	return fmt.Sprintf("%s.%s.started", SubjectCapturePrefix, subjectToken(captureID))
}

// SubjectCaptureSuccess returns the subject for a completed capture.
func SubjectCaptureSuccess(captureID string) string {
	return fmt.Sprintf("%s.%s.success", SubjectCapturePrefix, subjectToken(captureID))
}

// SubjectCaptureError returns the subject for a failed capture.
func SubjectCaptureError(captureID string) string {
	return fmt.Sprintf("%s.%s.error", SubjectCapturePrefix, subjectToken(captureID))
}

// SubjectDevice returns the subject for a hotplug action (add, remove).
func SubjectDevice(action string) string {
	return fmt.Sprintf("%s.%s", SubjectDevicesPrefix, subjectToken(action))
}

// SubjectControlCapture is the request/reply subject that triggers a capture.
func SubjectControlCapture() string {
	return SubjectControlPrefix + ".capture"
}

// subjectToken keeps ids usable as a single subject token. Captures rejected
// before an id was assigned publish under "none".
func subjectToken(s string) string {
	if s == "" {
		return "none"
	}
	out := []byte(s)
	for i, c := range out {
		switch c {
		case '.', '*', '>', ' ', '\t':
			out[i] = '_'
		}
	}
	return string(out)
}

// CaptureMessage reports capture progress and results.
type CaptureMessage struct {
	CaptureID  string  `json:"capture_id"`
	Timestamp  string  `json:"timestamp"`
	Status     string  `json:"status"` // started, success
	CameraID   string  `json:"camera_id,omitempty"`
	Width      uint32  `json:"width,omitempty"`
	Height     uint32  `json:"height,omitempty"`
	BPP        uint32  `json:"bpp,omitempty"`
	Channels   uint32  `json:"channels,omitempty"`
	Bytes      int     `json:"bytes,omitempty"`
	ExposureUs float64 `json:"exposure_us,omitempty"`
	DurationMs int64   `json:"duration_ms,omitempty"`
	Stored     bool    `json:"stored,omitempty"`
}

// Marshal serializes the message to JSON.
func (m CaptureMessage) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// ErrorMessage reports a failed capture.
type ErrorMessage struct {
	CaptureID string `json:"capture_id"`
	Timestamp string `json:"timestamp"`
	Kind      string `json:"kind"`
	Step      string `json:"step,omitempty"`
	Message   string `json:"message"`
}

// Marshal serializes the message to JSON.
func (m ErrorMessage) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// DeviceMessage reports a camera plugged in or removed.
type DeviceMessage struct {
	Action    string `json:"action"` // add, remove
	Timestamp string `json:"timestamp"`
	VendorID  string `json:"vendor_id"`
	ProductID string `json:"product_id"`
	DevPath   string `json:"dev_path"`
}

// Marshal serializes the message to JSON.
func (m DeviceMessage) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// LibraryMessage reports the SDK library load state.
type LibraryMessage struct {
	Timestamp string `json:"timestamp"`
	Loaded    bool   `json:"loaded"`
	Path      string `json:"path"`
	Error     string `json:"error,omitempty"`
}

// Marshal serializes the message to JSON.
func (m LibraryMessage) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// CaptureCommand is the request body on the control subject. Omitted fields
// take the service defaults.
type CaptureCommand struct {
	ExposureMs  *int64   `json:"exposure_ms,omitempty"`
	ExposureUs  *float64 `json:"exposure_us,omitempty"`
	Gain        *float64 `json:"gain,omitempty"`
	Offset      *float64 `json:"offset,omitempty"`
	Width       *uint32  `json:"width,omitempty"`
	Height      *uint32  `json:"height,omitempty"`
	DeviceIndex *uint32  `json:"device_index,omitempty"`
}

// Marshal serializes the message to JSON.
func (m CaptureCommand) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// CaptureReply answers a CaptureCommand.
type CaptureReply struct {
	OK        bool            `json:"ok"`
	Error     string          `json:"error,omitempty"`
	Kind      string          `json:"kind,omitempty"`
	Capture   *CaptureMessage `json:"capture,omitempty"`
	Timestamp string          `json:"timestamp"`
}

// Marshal serializes the message to JSON.
func (m CaptureReply) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// UnmarshalCapture deserializes a CaptureMessage from JSON.
func UnmarshalCapture(data []byte) (CaptureMessage, error) {
	var m CaptureMessage
	err := json.Unmarshal(data, &m)
	return m, err
}

// UnmarshalError deserializes an ErrorMessage from JSON.
func UnmarshalError(data []byte) (ErrorMessage, error) {
	var m ErrorMessage
	err := json.Unmarshal(data, &m)
	return m, err
}

// UnmarshalDevice deserializes a DeviceMessage from JSON.
func UnmarshalDevice(data []byte) (DeviceMessage, error) {
	var m DeviceMessage
	err := json.Unmarshal(data, &m)
	return m, err
}

// UnmarshalCommand deserializes a CaptureCommand. An empty payload is a
// command with every field defaulted.
func UnmarshalCommand(data []byte) (CaptureCommand, error) {
	var m CaptureCommand
	if len(data) == 0 {
		return m, nil
	}
	err := json.Unmarshal(data, &m)
	return m, err
}

// UnmarshalReply deserializes a CaptureReply from JSON.
func UnmarshalReply(data []byte) (CaptureReply, error) {
	var m CaptureReply
	err := json.Unmarshal(data, &m)
	return m, err
}
