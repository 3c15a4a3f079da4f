package camera

import "github.com/smazurov/qhynode/pkg/qhyccd"

// MaxFrameBytes caps a single frame allocation.
const MaxFrameBytes = 2 << 30

// fallbackBytesPerPixel sizes the buffer when the SDK gives no hint.
const fallbackBytesPerPixel = 2

// FrameBuffer is a captured frame. Data holds exactly the bytes that carry
// pixel data; Capacity is the size of the buffer the SDK wrote into. The
// geometry fields are the values the device reported, unmodified.
type FrameBuffer struct {
	CameraID string
	Data     []byte
	Capacity int
	Width    uint32
	Height   uint32
	BitDepth uint32
	Channels uint32
}

// BytesPerPixel returns the per-channel sample size of the frame.
func (f *FrameBuffer) BytesPerPixel() int {
	return BytesPerPixel(f.BitDepth)
}

// AllocationSize returns the read buffer size: the SDK's hint when it has
// one, otherwise two bytes per pixel of the requested ROI.
func AllocationSize(memLength, width, height uint32) uint64 {
	if memLength > 0 {
		return uint64(memLength)
	}
	return uint64(width) * uint64(height) * fallbackBytesPerPixel
}

// BytesPerPixel rounds a bit depth up to whole bytes, minimum one.
func BytesPerPixel(bitDepth uint32) int {
	n := int((uint64(bitDepth) + 7) / 8)
	if n < 1 {
		return 1
	}
	return n
}

// UsedBytes returns how many bytes of a capacity-sized buffer hold pixel
// data for the reported geometry. The result never exceeds capacity.
func UsedBytes(info qhyccd.FrameInfo, capacity int) int {
	channels := uint64(info.Channels)
	if channels == 0 {
		channels = 1
	}
	used := uint64(info.Width) * uint64(info.Height) * uint64(BytesPerPixel(info.BitDepth)) * channels
	if capacity < 0 {
		return 0
	}
	if used > uint64(capacity) {
		return capacity
	}
	return int(used)
}

func validMetadata(info qhyccd.FrameInfo) bool {
	return info.Width > 0 && info.Height > 0 && info.BitDepth > 0
}
