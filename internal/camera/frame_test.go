package camera

import (
	"testing"

	"github.com/smazurov/qhynode/pkg/qhyccd"
)

func TestAllocationSize(t *testing.T) {
	tests := []struct {
		name          string
		memLength     uint32
		width, height uint32
		want          uint64
	}{
		{"sdk hint", 4147200, 1920, 1080, 4147200},
		{"hint smaller than roi", 100, 1920, 1080, 100},
		{"no hint", 0, 1920, 1080, 1920 * 1080 * 2},
		{"no hint no roi", 0, 0, 1080, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AllocationSize(tt.memLength, tt.width, tt.height); got != tt.want {
				t.Errorf("AllocationSize() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestBytesPerPixel(t *testing.T) {
	tests := map[uint32]int{0: 1, 1: 1, 8: 1, 10: 2, 12: 2, 16: 2, 24: 3, 32: 4}
	for bpp, want := range tests {
		if got := BytesPerPixel(bpp); got != want {
			t.Errorf("BytesPerPixel(%d) = %d, want %d", bpp, got, want)
		}
	}
}

func TestUsedBytes(t *testing.T) {
	tests := []struct {
		name     string
		info     qhyccd.FrameInfo
		capacity int
		want     int
	}{
		{"mono 16", qhyccd.FrameInfo{Width: 100, Height: 50, BitDepth: 16, Channels: 1}, 10000, 10000},
		{"mono 8 zero channels", qhyccd.FrameInfo{Width: 100, Height: 50, BitDepth: 8}, 10000, 5000},
		{"rgb 8", qhyccd.FrameInfo{Width: 10, Height: 10, BitDepth: 8, Channels: 3}, 1000, 300},
		{"clamped", qhyccd.FrameInfo{Width: 100, Height: 50, BitDepth: 16, Channels: 1}, 1234, 1234},
		{"overflowing geometry", qhyccd.FrameInfo{Width: 0xFFFFFFFF, Height: 0xFFFFFFFF, BitDepth: 32, Channels: 4}, 4096, 4096},
		{"12 bit rounds up", qhyccd.FrameInfo{Width: 4, Height: 4, BitDepth: 12, Channels: 1}, 64, 32},
		{"zero capacity", qhyccd.FrameInfo{Width: 4, Height: 4, BitDepth: 8}, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := UsedBytes(tt.info, tt.capacity)
			if got != tt.want {
				t.Errorf("UsedBytes() = %d, want %d", got, tt.want)
			}
			if got > tt.capacity {
				t.Errorf("UsedBytes() = %d exceeds capacity %d", got, tt.capacity)
			}
		})
	}
}
