package qhyccd

import "fmt"

// Return codes shared by most SDK calls.
const (
	Success      uint32 = 0
	ReadDirectly uint32 = 0x2001
	Error        uint32 = 0xFFFFFFFF
)

// IDBufferSize is the size of the buffer GetQHYCCDId writes the camera id into.
const IDBufferSize = 64

// ControlID selects a camera parameter for SetQHYCCDParam.
type ControlID int32

// Control identifiers from the vendor CONTROL_ID enumeration.
const (
	ControlBrightness  ControlID = 0
	ControlContrast    ControlID = 1
	ControlGain        ControlID = 6
	ControlOffset      ControlID = 7
	ControlExposure    ControlID = 8
	ControlSpeed       ControlID = 9
	ControlTransferBit ControlID = 10
	ControlUSBTraffic  ControlID = 12
)

var controlNames = map[ControlID]string{
	ControlBrightness:  "brightness",
	ControlContrast:    "contrast",
	ControlGain:        "gain",
	ControlOffset:      "offset",
	ControlExposure:    "exposure",
	ControlSpeed:       "speed",
	ControlTransferBit: "transfer_bit",
	ControlUSBTraffic:  "usb_traffic",
}

func (c ControlID) String() string {
	if name, ok := controlNames[c]; ok {
		return name
	}
	return fmt.Sprintf("control(%d)", int32(c))
}

// Stream modes for SetQHYCCDStreamMode.
const (
	StreamSingle uint8 = 0
	StreamLive   uint8 = 1
)

// Handle is an opaque open-camera handle returned by OpenQHYCCD.
type Handle uintptr

// Valid reports whether the handle is non-null.
func (h Handle) Valid() bool { return h != 0 }

// FrameInfo is the geometry reported by GetQHYCCDSingleFrame.
type FrameInfo struct {
	Width    uint32
	Height   uint32
	BitDepth uint32
	Channels uint32
}

// ChipInfo describes the sensor as reported by GetQHYCCDChipInfo.
type ChipInfo struct {
	ChipWidthMM   float64 `json:"chip_width_mm" toml:"chip_width_mm"`
	ChipHeightMM  float64 `json:"chip_height_mm" toml:"chip_height_mm"`
	ImageWidth    uint32  `json:"image_width" toml:"image_width"`
	ImageHeight   uint32  `json:"image_height" toml:"image_height"`
	PixelWidthUM  float64 `json:"pixel_width_um" toml:"pixel_width_um"`
	PixelHeightUM float64 `json:"pixel_height_um" toml:"pixel_height_um"`
	BitDepth      uint32  `json:"bit_depth" toml:"bit_depth"`
}

// SDKVersion is the vendor library build date.
type SDKVersion struct {
	Year, Month, Day, Subday uint32
}

func (v SDKVersion) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", v.Year, v.Month, v.Day, v.Subday)
}
