package capture

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/png"
	"io"

	"github.com/smazurov/qhynode/internal/camera"
)

// RenderPreview converts a raw frame to an 8-bit image for display.
//
// Samples wider than 8 bits are little-endian and are stretched linearly
// from the frame minimum to its maximum. 8-bit samples are copied. One
// channel renders as gray, three as RGB and four as RGBA.
func RenderPreview(data []byte, width, height, bpp, channels uint32) (image.Image, error) {
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("empty frame %dx%d", width, height)
	}
	if channels == 0 {
		channels = 1
	}
	if channels != 1 && channels != 3 && channels != 4 {
		return nil, fmt.Errorf("unsupported channel count %d", channels)
	}

	bytesPer := camera.BytesPerPixel(bpp)
	if bytesPer > 2 {
		return nil, fmt.Errorf("unsupported bit depth %d", bpp)
	}
	samples := int(width) * int(height) * int(channels)
	if len(data) < samples*bytesPer {
		return nil, fmt.Errorf("frame has %d bytes, need %d", len(data), samples*bytesPer)
	}

	values := make([]uint8, samples)
	if bytesPer == 1 {
		copy(values, data[:samples])
	} else {
		stretch16(values, data)
	}

	rect := image.Rect(0, 0, int(width), int(height))
	switch channels {
	case 1:
		img := image.NewGray(rect)
		copy(img.Pix, values)
		return img, nil
	default:
		img := image.NewRGBA(rect)
		for i, p := 0, 0; i < samples; i, p = i+int(channels), p+4 {
			img.Pix[p] = values[i]
			img.Pix[p+1] = values[i+1]
			img.Pix[p+2] = values[i+2]
			if channels == 4 {
				img.Pix[p+3] = values[i+3]
			} else {
				img.Pix[p+3] = 0xff
			}
		}
		return img, nil
	}
}

// stretch16 maps len(out) little-endian 16-bit samples onto 0..255.
func stretch16(out []uint8, data []byte) {
	lo, hi := uint16(0xffff), uint16(0)
	for i := range out {
		v := binary.LittleEndian.Uint16(data[2*i:])
		lo = min(lo, v)
		hi = max(hi, v)
	}
	span := float64(hi) - float64(lo)
	if span <= 0 {
		span = 1
	}
	for i := range out {
		v := binary.LittleEndian.Uint16(data[2*i:])
		out[i] = uint8((float64(v) - float64(lo)) * 255 / span)
	}
}

// WritePNG renders a stored frame as PNG.
func WritePNG(w io.Writer, rec Record, data []byte) error {
	img, err := RenderPreview(data, rec.Width, rec.Height, rec.BPP, rec.Channels)
	if err != nil {
		return err
	}
	return png.Encode(w, img)
}
