// Package sim provides a simulated QHYCCD SDK.
//
// Camera records every call it receives and can be told to fail any of them
// with a chosen return code. It backs the capture tests and the --simulate
// mode, where it renders a synthetic star field instead of talking to
// hardware.
package sim

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/smazurov/qhynode/pkg/qhyccd"
)

// SDK call names, matching the vendor exports.
const (
	CallInitResource    = "InitQHYCCDResource"
	CallReleaseResource = "ReleaseQHYCCDResource"
	CallScan            = "ScanQHYCCD"
	CallGetID           = "GetQHYCCDId"
	CallOpen            = "OpenQHYCCD"
	CallClose           = "CloseQHYCCD"
	CallSetStreamMode   = "SetQHYCCDStreamMode"
	CallInit            = "InitQHYCCD"
	CallSetBinMode      = "SetQHYCCDBinMode"
	CallSetResolution   = "SetQHYCCDResolution"
	CallSetParam        = "SetQHYCCDParam"
	CallExpose          = "ExpQHYCCDSingleFrame"
	CallMemLength       = "GetQHYCCDMemLength"
	CallGetSingleFrame  = "GetQHYCCDSingleFrame"
)

// Call is one recorded SDK invocation.
type Call struct {
	Name string
	Args []any
}

func (c Call) String() string {
	return fmt.Sprintf("%s%v", c.Name, c.Args)
}

const simHandle qhyccd.Handle = 0x51

// Camera is a scriptable SDK implementation. The zero value is not usable;
// construct it with New.
type Camera struct {
	mu sync.Mutex

	ids      []string
	bitDepth uint32
	channels uint32
	chipW    uint32
	chipH    uint32

	failures     map[string]uint32
	paramFailure map[qhyccd.ControlID]uint32
	memLength    *uint32
	frameInfo    *qhyccd.FrameInfo
	expose       func(time.Duration)

	calls   []Call
	roiW    uint32
	roiH    uint32
	params  map[qhyccd.ControlID]float64
	opened  bool
	inited  int
	seed    uint64
	exposed bool
}

// Option configures a simulated camera.
type Option func(*Camera)

// WithCameras sets the identifiers reported by Scan and GetQHYCCDId. An empty
// list simulates no connected camera.
func WithCameras(ids ...string) Option {
	return func(c *Camera) {
		c.ids = ids
	}
}

// WithBitDepth sets the reported bit depth.
func WithBitDepth(bpp uint32) Option {
	return func(c *Camera) {
		c.bitDepth = bpp
	}
}

// WithChannels sets the reported channel count.
func WithChannels(n uint32) Option {
	return func(c *Camera) {
		c.channels = n
	}
}

// WithSensor sets the full sensor size used when no ROI is configured.
func WithSensor(width, height uint32) Option {
	return func(c *Camera) {
		c.chipW, c.chipH = width, height
	}
}

// WithRealtimeExposure makes ExpQHYCCDSingleFrame sleep for the configured
// exposure time.
func WithRealtimeExposure() Option {
	return func(c *Camera) {
		c.expose = time.Sleep
	}
}

// WithSeed fixes the noise seed of rendered frames.
func WithSeed(seed uint64) Option {
	return func(c *Camera) {
		c.seed = seed
	}
}

// New creates a simulated camera with one connected QHY178M.
func New(opts ...Option) *Camera {
	c := &Camera{
		ids:          []string{"QHY178M-sim0001"},
		bitDepth:     16,
		channels:     1,
		chipW:        3072,
		chipH:        2048,
		failures:     make(map[string]uint32),
		paramFailure: make(map[qhyccd.ControlID]uint32),
		params:       make(map[qhyccd.ControlID]float64),
		seed:         1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fail makes every later call named call return code. For OpenQHYCCD any
// code yields a null handle; for ScanQHYCCD the code is returned as the
// count.
func (c *Camera) Fail(call string, code uint32) *Camera {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[call] = code
	return c
}

// FailParam makes SetQHYCCDParam fail only for one control.
func (c *Camera) FailParam(control qhyccd.ControlID, code uint32) *Camera {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paramFailure[control] = code
	return c
}

// SetMemLength overrides the GetQHYCCDMemLength result.
func (c *Camera) SetMemLength(n uint32) *Camera {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.memLength = &n
	return c
}

// SetFrameInfo overrides the geometry reported by GetQHYCCDSingleFrame.
// Pixel data is still rendered for the configured ROI.
func (c *Camera) SetFrameInfo(info qhyccd.FrameInfo) *Camera {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frameInfo = &info
	return c
}

// Calls returns a copy of the recorded calls.
func (c *Camera) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Call, len(c.calls))
	copy(out, c.calls)
	return out
}

// CallNames returns the names of the recorded calls in order.
func (c *Camera) CallNames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.calls))
	for i, call := range c.calls {
		out[i] = call.Name
	}
	return out
}

// Count returns how many times call was made.
func (c *Camera) Count(call string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, rec := range c.calls {
		if rec.Name == call {
			n++
		}
	}
	return n
}

// Param returns the last value set for a control.
func (c *Camera) Param(control qhyccd.ControlID) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.params[control]
	return v, ok
}

// Reset clears recorded calls and camera state but keeps failures.
func (c *Camera) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = nil
	c.params = make(map[qhyccd.ControlID]float64)
	c.roiW, c.roiH = 0, 0
	c.opened = false
	c.inited = 0
	c.exposed = false
}

func (c *Camera) record(name string, args ...any) (uint32, bool) {
	c.calls = append(c.calls, Call{Name: name, Args: args})
	code, failed := c.failures[name]
	return code, failed
}

// InitResource implements camera.SDK.
func (c *Camera) InitResource() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if code, failed := c.record(CallInitResource); failed {
		return code
	}
	c.inited++
	return qhyccd.Success
}

// ReleaseResource implements camera.SDK.
func (c *Camera) ReleaseResource() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if code, failed := c.record(CallReleaseResource); failed {
		return code
	}
	if c.inited == 0 {
		return qhyccd.Error
	}
	c.inited--
	return qhyccd.Success
}

// Scan implements camera.SDK.
func (c *Camera) Scan() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if code, failed := c.record(CallScan); failed {
		return code
	}
	return uint32(len(c.ids))
}

// CameraID implements camera.SDK.
func (c *Camera) CameraID(index uint32) (string, uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if code, failed := c.record(CallGetID, index); failed {
		return "", code
	}
	if int(index) >= len(c.ids) {
		return "", qhyccd.Error
	}
	return c.ids[index], qhyccd.Success
}

// Open implements camera.SDK.
func (c *Camera) Open(id string) qhyccd.Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, failed := c.record(CallOpen, id); failed {
		return 0
	}
	for _, known := range c.ids {
		if known == id {
			c.opened = true
			return simHandle
		}
	}
	return 0
}

// Close implements camera.SDK.
func (c *Camera) Close(h qhyccd.Handle) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	code, failed := c.record(CallClose, h)
	c.opened = false
	if failed {
		return code
	}
	if h != simHandle {
		return qhyccd.Error
	}
	return qhyccd.Success
}

// SetStreamMode implements camera.SDK.
func (c *Camera) SetStreamMode(h qhyccd.Handle, mode uint8) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if code, failed := c.record(CallSetStreamMode, h, mode); failed {
		return code
	}
	return c.checkHandle(h)
}

// Init implements camera.SDK.
func (c *Camera) Init(h qhyccd.Handle) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if code, failed := c.record(CallInit, h); failed {
		return code
	}
	return c.checkHandle(h)
}

// SetBinMode implements camera.SDK.
func (c *Camera) SetBinMode(h qhyccd.Handle, wbin, hbin uint32) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if code, failed := c.record(CallSetBinMode, h, wbin, hbin); failed {
		return code
	}
	return c.checkHandle(h)
}

// SetResolution implements camera.SDK.
func (c *Camera) SetResolution(h qhyccd.Handle, x, y, width, height uint32) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if code, failed := c.record(CallSetResolution, h, x, y, width, height); failed {
		return code
	}
	if code := c.checkHandle(h); code != qhyccd.Success {
		return code
	}
	if x+width > c.chipW || y+height > c.chipH {
		return qhyccd.Error
	}
	c.roiW, c.roiH = width, height
	return qhyccd.Success
}

// SetParam implements camera.SDK.
func (c *Camera) SetParam(h qhyccd.Handle, control qhyccd.ControlID, value float64) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if code, failed := c.record(CallSetParam, h, control, value); failed {
		return code
	}
	if code, failed := c.paramFailure[control]; failed {
		return code
	}
	if code := c.checkHandle(h); code != qhyccd.Success {
		return code
	}
	c.params[control] = value
	return qhyccd.Success
}

// ExposeSingleFrame implements camera.SDK.
func (c *Camera) ExposeSingleFrame(h qhyccd.Handle) uint32 {
	c.mu.Lock()
	code, failed := c.record(CallExpose, h)
	exposure := time.Duration(c.params[qhyccd.ControlExposure]) * time.Microsecond
	wait := c.expose
	c.mu.Unlock()

	if failed {
		return code
	}
	if wait != nil {
		wait(exposure)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if code := c.checkHandle(h); code != qhyccd.Success {
		return code
	}
	c.exposed = true
	return qhyccd.Success
}

// MemLength implements camera.SDK.
func (c *Camera) MemLength(h qhyccd.Handle) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record(CallMemLength, h)
	if c.memLength != nil {
		return *c.memLength
	}
	w, ht := c.geometry()
	return w * ht * uint32(bytesPerSample(c.bitDepth)) * max(c.channels, 1)
}

// SingleFrame implements camera.SDK.
func (c *Camera) SingleFrame(h qhyccd.Handle, buf []byte) (qhyccd.FrameInfo, uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if code, failed := c.record(CallGetSingleFrame, h, len(buf)); failed {
		return qhyccd.FrameInfo{}, code
	}
	if code := c.checkHandle(h); code != qhyccd.Success {
		return qhyccd.FrameInfo{}, code
	}
	if !c.exposed {
		return qhyccd.FrameInfo{}, qhyccd.Error
	}
	c.exposed = false

	w, ht := c.geometry()
	c.render(buf, w, ht)

	if c.frameInfo != nil {
		return *c.frameInfo, qhyccd.Success
	}
	return qhyccd.FrameInfo{Width: w, Height: ht, BitDepth: c.bitDepth, Channels: c.channels}, qhyccd.Success
}

func (c *Camera) checkHandle(h qhyccd.Handle) uint32 {
	if h != simHandle || !c.opened {
		return qhyccd.Error
	}
	return qhyccd.Success
}

func (c *Camera) geometry() (uint32, uint32) {
	if c.roiW > 0 && c.roiH > 0 {
		return c.roiW, c.roiH
	}
	return c.chipW, c.chipH
}

func bytesPerSample(bpp uint32) int {
	n := int((bpp + 7) / 8)
	if n < 1 {
		return 1
	}
	return n
}

// render writes a dark-frame background with gaussian stars, scaled by gain
// and exposure, into buf. It stops at the end of buf.
func (c *Camera) render(buf []byte, width, height uint32) {
	bps := bytesPerSample(c.bitDepth)
	channels := int(max(c.channels, 1))
	maxValue := math.Pow(2, float64(min(c.bitDepth, 16))) - 1

	exposureSec := c.params[qhyccd.ControlExposure] / 1e6
	gain := 1 + c.params[qhyccd.ControlGain]/10
	offset := c.params[qhyccd.ControlOffset]

	rng := rand.New(rand.NewPCG(c.seed, uint64(width)<<32|uint64(height)))
	type star struct{ x, y, flux float64 }
	stars := make([]star, 24)
	for i := range stars {
		stars[i] = star{
			x:    rng.Float64() * float64(width),
			y:    rng.Float64() * float64(height),
			flux: 2000 + rng.Float64()*20000,
		}
	}

	const sigma = 2.0
	pos := 0
	for y := 0; y < int(height); y++ {
		for x := 0; x < int(width); x++ {
			v := offset*16 + 200 + rng.NormFloat64()*8
			for _, s := range stars {
				dx, dy := float64(x)-s.x, float64(y)-s.y
				if d2 := dx*dx + dy*dy; d2 < 36*sigma*sigma {
					v += s.flux * exposureSec * math.Exp(-d2/(2*sigma*sigma))
				}
			}
			v = math.Min(math.Max(v*gain, 0), maxValue)
			for ch := 0; ch < channels; ch++ {
				if pos+bps > len(buf) {
					return
				}
				if bps == 1 {
					buf[pos] = uint8(v)
				} else {
					binary.LittleEndian.PutUint16(buf[pos:], uint16(v))
				}
				pos += bps
			}
		}
	}
}
