package events

// Event type constants for kelindar/event.
const (
	TypeCaptureStarted uint32 = iota + 1
	TypeCaptureSuccess
	TypeCaptureError
	TypeCaptureStateChanged
	TypeDeviceDiscovery
	TypeLibraryState
	TypeLogEntry
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// CaptureStartedEvent is published when a capture is accepted.
type CaptureStartedEvent struct {
	CaptureID   string  `json:"capture_id" example:"6f1c2a9e-5d4b-4a8e-9c1f-2b3d4e5f6a7b" doc:"Capture identifier"`
	DeviceIndex uint32  `json:"device_index" example:"0" doc:"Camera index on the bus"`
	ExposureUs  float64 `json:"exposure_us" example:"1000000" doc:"Exposure time in microseconds"`
	Width       uint32  `json:"width" example:"1920" doc:"Requested ROI width"`
	Height      uint32  `json:"height" example:"1080" doc:"Requested ROI height"`
	Timestamp   string  `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Start timestamp"`
}

// Type returns the event type identifier for CaptureStartedEvent.
func (e CaptureStartedEvent) Type() uint32 { return TypeCaptureStarted }

// CaptureSuccessEvent represents a completed capture.
type CaptureSuccessEvent struct {
	CaptureID  string `json:"capture_id" example:"6f1c2a9e-5d4b-4a8e-9c1f-2b3d4e5f6a7b" doc:"Capture identifier"`
	CameraID   string `json:"camera_id" example:"QHY178M-0a1b2c" doc:"Camera identifier reported by the SDK"`
	Width      uint32 `json:"width" example:"3072" doc:"Frame width"`
	Height     uint32 `json:"height" example:"2048" doc:"Frame height"`
	BitDepth   uint32 `json:"bpp" example:"16" doc:"Bits per sample"`
	Channels   uint32 `json:"channels" example:"1" doc:"Samples per pixel"`
	Bytes      int    `json:"bytes" example:"12582912" doc:"Pixel data size"`
	DurationMs int64  `json:"duration_ms" example:"1042" doc:"Wall time of the capture"`
	Stored     bool   `json:"stored" doc:"Whether the frame was written to the frame store"`
	Message    string `json:"message" example:"Frame captured" doc:"Message"`
	Timestamp  string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Capture timestamp"`
}

// Type returns the event type identifier for CaptureSuccessEvent.
func (e CaptureSuccessEvent) Type() uint32 { return TypeCaptureSuccess }

// CaptureErrorEvent represents a failed capture.
type CaptureErrorEvent struct {
	CaptureID string `json:"capture_id" example:"6f1c2a9e-5d4b-4a8e-9c1f-2b3d4e5f6a7b" doc:"Capture identifier"`
	Kind      string `json:"kind" example:"DEVICE_NOT_FOUND" doc:"Error category"`
	Step      string `json:"step,omitempty" example:"scan" doc:"Protocol step that failed"`
	Message   string `json:"message" example:"No QHYCCD camera found" doc:"Client-facing message"`
	Error     string `json:"error" example:"scan: no camera found" doc:"Detailed error description"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Error timestamp"`
}

// Type returns the event type identifier for CaptureErrorEvent.
func (e CaptureErrorEvent) Type() uint32 { return TypeCaptureError }

// CaptureStateChangedEvent reports a device session transition.
// Used for LED control and other reactive subsystems.
type CaptureStateChangedEvent struct {
	CaptureID string `json:"capture_id" doc:"Capture identifier"`
	From      string `json:"from" example:"configured" doc:"Previous session state"`
	To        string `json:"to" example:"exposed" doc:"New session state"`
	Step      string `json:"step" example:"expose" doc:"Step that caused the transition"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for CaptureStateChangedEvent.
func (e CaptureStateChangedEvent) Type() uint32 { return TypeCaptureStateChanged }

// DeviceDiscoveryEvent represents USB hotplug of a camera.
type DeviceDiscoveryEvent struct {
	Action    string `json:"action" example:"add" doc:"Action type: add, remove, change"`
	VendorID  string `json:"vendor_id" example:"1618" doc:"USB vendor id"`
	ProductID string `json:"product_id" example:"c179" doc:"USB product id"`
	DevPath   string `json:"devpath" example:"/devices/pci0000:00/0000:00:14.0/usb1/1-2" doc:"Kernel device path"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for DeviceDiscoveryEvent.
func (e DeviceDiscoveryEvent) Type() uint32 { return TypeDeviceDiscovery }

// LibraryStateEvent reports a load or unload of the vendor library.
type LibraryStateEvent struct {
	Loaded    bool   `json:"loaded" doc:"Whether the symbol table is bound"`
	Path      string `json:"path" example:"/opt/qhynode/sdk/x64/libqhyccd.so" doc:"Library path"`
	Error     string `json:"error,omitempty" doc:"Load failure, if any"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for LibraryStateEvent.
func (e LibraryStateEvent) Type() uint32 { return TypeLibraryState }

// LogEntryEvent represents a log entry for SSE streaming.
type LogEntryEvent struct {
	Seq        uint64         `json:"seq" example:"42" doc:"Monotonic sequence number for deduplication"`
	Timestamp  string         `json:"timestamp" example:"2026-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"capture" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }
