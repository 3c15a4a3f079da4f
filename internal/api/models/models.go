// Package models holds the request and response bodies of the HTTP API.
package models

import "time"

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"1.2.0" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit hash"`
	BuildDate string `json:"build_date" example:"2026-01-27T10:30:00Z" doc:"Build timestamp"`
	BuildID   string `json:"build_id" example:"42" doc:"Build identifier"`
	GoVersion string `json:"go_version" example:"go1.24.0" doc:"Go runtime version"`
	Compiler  string `json:"compiler" example:"gc" doc:"Go compiler"`
	Platform  string `json:"platform" example:"linux/amd64" doc:"Target platform"`
}

type VersionResponse struct {
	Body VersionData
}

// Capture models
type CaptureData struct {
	ID         string    `json:"id" example:"6f1c2a9e-5d4b-4a8e-9c1f-2b3d4e5f6a7b" doc:"Capture identifier"`
	CameraID   string    `json:"camera_id" example:"QHY178M-0a1b2c" doc:"Camera identifier"`
	Width      uint32    `json:"width" example:"1920" doc:"Frame width"`
	Height     uint32    `json:"height" example:"1080" doc:"Frame height"`
	BPP        uint32    `json:"bpp" example:"16" doc:"Bits per sample"`
	Channels   uint32    `json:"channels" example:"1" doc:"Samples per pixel"`
	Bytes      int       `json:"bytes" example:"4147200" doc:"Pixel data size"`
	ExposureUs float64   `json:"exposure_us" example:"1000000" doc:"Exposure in microseconds"`
	DurationMs int64     `json:"duration_ms" example:"1042" doc:"Capture wall time"`
	CapturedAt time.Time `json:"captured_at" doc:"Completion time"`
	Stored     bool      `json:"stored" doc:"Whether the frame was written to the frame store"`
	Data       []byte    `json:"data,omitempty" doc:"Base64 pixel data, little-endian samples, when include_data is set"`
}

type CaptureResponse struct {
	Body CaptureData
}

// Stored capture models
type CaptureRecord struct {
	ID          string    `json:"id" doc:"Capture identifier"`
	CameraID    string    `json:"camera_id" doc:"Camera identifier"`
	Width       uint32    `json:"width" doc:"Frame width"`
	Height      uint32    `json:"height" doc:"Frame height"`
	BPP         uint32    `json:"bpp" doc:"Bits per sample"`
	Channels    uint32    `json:"channels" doc:"Samples per pixel"`
	Bytes       int       `json:"bytes" doc:"Raw file size"`
	ExposureUs  float64   `json:"exposure_us" doc:"Exposure in microseconds"`
	Gain        *float64  `json:"gain,omitempty" doc:"Gain, when set"`
	Offset      *float64  `json:"offset,omitempty" doc:"Offset, when set"`
	DeviceIndex uint32    `json:"device_index" doc:"Camera index"`
	DurationMs  int64     `json:"duration_ms" doc:"Capture wall time"`
	CapturedAt  time.Time `json:"captured_at" doc:"Completion time"`
}

type CaptureListData struct {
	Captures []CaptureRecord `json:"captures" doc:"Stored captures, newest first"`
	Count    int             `json:"count" example:"3" doc:"Number of stored captures"`
}

type CaptureListResponse struct {
	Body CaptureListData
}

type CaptureRecordResponse struct {
	Body CaptureRecord
}

// BinaryResponse carries raw bytes with their media type.
type BinaryResponse struct {
	ContentType        string `header:"Content-Type"`
	ContentDisposition string `header:"Content-Disposition"`
	Body               []byte
}

// Camera models
type SymbolData struct {
	Name     string `json:"name" example:"ScanQHYCCD" doc:"Exported symbol"`
	Required bool   `json:"required" doc:"Whether loading fails without it"`
	Bound    bool   `json:"bound" doc:"Whether the symbol is bound"`
}

type LibraryData struct {
	Path      string       `json:"path" example:"/opt/qhynode/sdk/x64/libqhyccd.so" doc:"Library path"`
	Loaded    bool         `json:"loaded" doc:"Whether the symbol table is bound"`
	Simulated bool         `json:"simulated" doc:"Whether the built-in simulator is used"`
	Version   string       `json:"version,omitempty" example:"24.1.15.0" doc:"SDK build version"`
	LastError string       `json:"last_error,omitempty" doc:"Most recent load failure"`
	Symbols   []SymbolData `json:"symbols" doc:"Binding state of each SDK symbol"`
}

type LibraryResponse struct {
	Body LibraryData
}

type CaptureDefaultsData struct {
	ExposureMs  int64   `json:"exposure_ms" example:"1000" doc:"Default exposure in milliseconds"`
	ExposureUs  float64 `json:"exposure_us" example:"0" doc:"Default exposure in microseconds, wins when positive"`
	Gain        float64 `json:"gain" example:"-1" doc:"Default gain, negative means unset"`
	Offset      float64 `json:"offset" example:"-1" doc:"Default offset, negative means unset"`
	Width       uint32  `json:"width" example:"1920" doc:"Default ROI width"`
	Height      uint32  `json:"height" example:"1080" doc:"Default ROI height"`
	DeviceIndex uint32  `json:"device_index" example:"0" doc:"Default camera index"`
}

type CameraStatusData struct {
	Busy           bool                `json:"busy" doc:"Whether a capture holds the camera"`
	Total          uint64              `json:"total" doc:"Captures attempted"`
	Succeeded      uint64              `json:"succeeded" doc:"Captures completed"`
	Failed         uint64              `json:"failed" doc:"Captures failed"`
	Rejected       uint64              `json:"rejected" doc:"Requests rejected while busy"`
	LastDurationMs int64               `json:"last_duration_ms" doc:"Wall time of the most recent capture"`
	LastErrorKind  string              `json:"last_error_kind,omitempty" doc:"Error kind of the most recent failure"`
	LastCaptureAt  *time.Time          `json:"last_capture_at,omitempty" doc:"Time of the most recent capture"`
	Defaults       CaptureDefaultsData `json:"defaults" doc:"Capture defaults in effect"`
}

type CameraStatusResponse struct {
	Body CameraStatusData
}

// LED models
type LEDSetting struct {
	Type    string `json:"type" example:"user" doc:"LED type (board-specific: user, act, pwr, blue, ...)"`
	Enabled bool   `json:"enabled" example:"true" doc:"Whether the LED should be on"`
	Pattern string `json:"pattern,omitempty" example:"solid" doc:"Optional pattern (solid, blink, heartbeat)"`
}

type LEDCapabilitiesData struct {
	AvailableTypes    []string `json:"available_types" doc:"LED types on this board"`
	AvailablePatterns []string `json:"available_patterns" doc:"Patterns the board supports"`
	Indicator         string   `json:"indicator,omitempty" example:"user" doc:"LED that mirrors capture activity"`
}

type LEDCapabilitiesResponse struct {
	Body LEDCapabilitiesData
}
