package qhyccd

import (
	"reflect"
	"runtime"
	"sync"

	"github.com/ebitengine/purego"
)

// module is an opened native library.
type module interface {
	Symbol(name string) (uintptr, error)
	Close() error
}

// Library is the resolved symbol table of a loaded QHYCCD SDK.
//
// Every required slot is bound before Load returns. After that the table is
// only read, except by Unload, which must not run concurrently with calls.
type Library struct {
	path string

	mu       sync.Mutex
	mod      module
	resolved map[string]bool

	initResource    func() uint32
	releaseResource func() uint32
	scan            func() uint32
	getID           func(index uint32, id *byte) uint32
	open            func(id *byte) uintptr
	closeCamera     func(h uintptr) uint32
	setStreamMode   func(h uintptr, mode uint8) uint32
	initCamera      func(h uintptr) uint32
	setBinMode      func(h uintptr, wbin, hbin uint32) uint32
	setResolution   func(h uintptr, x, y, width, height uint32) uint32
	setParam        func(h uintptr, control int32, value float64) uint32
	expSingleFrame  func(h uintptr) uint32
	memLength       func(h uintptr) uint32
	getSingleFrame  func(h uintptr, width, height, bpp, channels *uint32, data *byte) uint32

	getChipInfo        func(h uintptr, chipW, chipH *float64, imageW, imageH *uint32, pixelW, pixelH *float64, bpp *uint32) uint32
	getSDKVersion      func(year, month, day, subday *uint32) uint32
	isControlAvailable func(h uintptr, control int32) uint32
}

type binding struct {
	name     string
	fn       any
	required bool
}

// bindings lists every symbol the library knows about, required ones first
// and in resolution order.
func (l *Library) bindings() []binding {
	return []binding{
		{"InitQHYCCDResource", &l.initResource, true},
		{"ReleaseQHYCCDResource", &l.releaseResource, true},
		{"ScanQHYCCD", &l.scan, true},
		{"GetQHYCCDId", &l.getID, true},
		{"OpenQHYCCD", &l.open, true},
		{"CloseQHYCCD", &l.closeCamera, true},
		{"SetQHYCCDStreamMode", &l.setStreamMode, true},
		{"InitQHYCCD", &l.initCamera, true},
		{"SetQHYCCDBinMode", &l.setBinMode, true},
		{"SetQHYCCDResolution", &l.setResolution, true},
		{"SetQHYCCDParam", &l.setParam, true},
		{"ExpQHYCCDSingleFrame", &l.expSingleFrame, true},
		{"GetQHYCCDMemLength", &l.memLength, true},
		{"GetQHYCCDSingleFrame", &l.getSingleFrame, true},
		{"GetQHYCCDChipInfo", &l.getChipInfo, false},
		{"GetQHYCCDSDKVersion", &l.getSDKVersion, false},
		{"IsQHYCCDControlAvailable", &l.isControlAvailable, false},
	}
}

// RequiredSymbols returns the entry points Load must resolve, in order.
func RequiredSymbols() []string {
	return symbolNames(true)
}

// OptionalSymbols returns entry points that are bound when present.
func OptionalSymbols() []string {
	return symbolNames(false)
}

func symbolNames(required bool) []string {
	var names []string
	for _, b := range (&Library{}).bindings() {
		if b.required == required {
			names = append(names, b.name)
		}
	}
	return names
}

// SymbolStatus reports whether a symbol was bound.
type SymbolStatus struct {
	Name     string `json:"name"`
	Required bool   `json:"required"`
	Bound    bool   `json:"bound"`
}

// Load opens the native library at path and binds the SDK entry points.
//
// The first required symbol that cannot be resolved aborts the load: the
// module is closed and a *SymbolError naming it is returned.
func Load(path string) (*Library, error) {
	return load(path, openModule)
}

func load(path string, open func(string) (module, error)) (*Library, error) {
	mod, err := open(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	l := &Library{path: path, resolved: make(map[string]bool)}
	bindings := l.bindings()
	addrs := make([]uintptr, len(bindings))

	for i, b := range bindings {
		addr, symErr := mod.Symbol(b.name)
		if symErr != nil || addr == 0 {
			if b.required {
				_ = mod.Close()
				return nil, &SymbolError{Name: b.name, Path: path, Err: symErr}
			}
			continue
		}
		addrs[i] = addr
	}

	for i, b := range bindings {
		if addrs[i] == 0 {
			continue
		}
		purego.RegisterFunc(b.fn, addrs[i])
		l.resolved[b.name] = true
	}

	l.mod = mod
	return l, nil
}

// Path returns the path the library was loaded from.
func (l *Library) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Loaded reports whether the module is still open.
func (l *Library) Loaded() bool {
	if l == nil {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.mod != nil
}

// Symbols reports the binding state of every known symbol.
func (l *Library) Symbols() []SymbolStatus {
	var resolved map[string]bool
	if l != nil {
		l.mu.Lock()
		resolved = l.resolved
		l.mu.Unlock()
	}
	var out []SymbolStatus
	for _, b := range (&Library{}).bindings() {
		out = append(out, SymbolStatus{Name: b.name, Required: b.required, Bound: resolved[b.name]})
	}
	return out
}

// Unload clears every slot and closes the module. It is safe to call more
// than once and on a nil *Library.
func (l *Library) Unload() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.mod == nil {
		return nil
	}
	for _, b := range l.bindings() {
		clearSlot(b.fn)
	}
	l.resolved = nil

	err := l.mod.Close()
	l.mod = nil
	return err
}

func clearSlot(fn any) {
	slot := reflect.ValueOf(fn).Elem()
	slot.Set(reflect.Zero(slot.Type()))
}

// InitResource calls InitQHYCCDResource.
func (l *Library) InitResource() uint32 {
	if l.initResource == nil {
		return Error
	}
	return l.initResource()
}

// ReleaseResource calls ReleaseQHYCCDResource.
func (l *Library) ReleaseResource() uint32 {
	if l.releaseResource == nil {
		return Error
	}
	return l.releaseResource()
}

// Scan returns the number of connected cameras.
func (l *Library) Scan() uint32 {
	if l.scan == nil {
		return 0
	}
	return l.scan()
}

// CameraID returns the identifier of the camera at index.
func (l *Library) CameraID(index uint32) (string, uint32) {
	if l.getID == nil {
		return "", Error
	}
	buf := make([]byte, IDBufferSize)
	code := l.getID(index, &buf[0])
	return cString(buf), code
}

// Open opens the camera with the given identifier. A zero Handle means the
// SDK refused.
func (l *Library) Open(id string) Handle {
	if l.open == nil {
		return 0
	}
	cid := append([]byte(id), 0)
	h := l.open(&cid[0])
	runtime.KeepAlive(cid)
	return Handle(h)
}

// Close calls CloseQHYCCD.
func (l *Library) Close(h Handle) uint32 {
	if l.closeCamera == nil {
		return Error
	}
	return l.closeCamera(uintptr(h))
}

// SetStreamMode selects single-frame or live mode.
func (l *Library) SetStreamMode(h Handle, mode uint8) uint32 {
	if l.setStreamMode == nil {
		return Error
	}
	return l.setStreamMode(uintptr(h), mode)
}

// Init calls InitQHYCCD.
func (l *Library) Init(h Handle) uint32 {
	if l.initCamera == nil {
		return Error
	}
	return l.initCamera(uintptr(h))
}

// SetBinMode sets horizontal and vertical binning.
func (l *Library) SetBinMode(h Handle, wbin, hbin uint32) uint32 {
	if l.setBinMode == nil {
		return Error
	}
	return l.setBinMode(uintptr(h), wbin, hbin)
}

// SetResolution sets the region of interest.
func (l *Library) SetResolution(h Handle, x, y, width, height uint32) uint32 {
	if l.setResolution == nil {
		return Error
	}
	return l.setResolution(uintptr(h), x, y, width, height)
}

// SetParam sets a control value. Exposure is in microseconds.
func (l *Library) SetParam(h Handle, control ControlID, value float64) uint32 {
	if l.setParam == nil {
		return Error
	}
	return l.setParam(uintptr(h), int32(control), value)
}

// ExposeSingleFrame starts a single exposure. It blocks for the exposure time.
func (l *Library) ExposeSingleFrame(h Handle) uint32 {
	if l.expSingleFrame == nil {
		return Error
	}
	return l.expSingleFrame(uintptr(h))
}

// MemLength returns the buffer size the SDK recommends for a frame, or 0.
func (l *Library) MemLength(h Handle) uint32 {
	if l.memLength == nil {
		return 0
	}
	return l.memLength(uintptr(h))
}

// SingleFrame reads the exposed frame into buf.
func (l *Library) SingleFrame(h Handle, buf []byte) (FrameInfo, uint32) {
	var info FrameInfo
	if l.getSingleFrame == nil || len(buf) == 0 {
		return info, Error
	}
	code := l.getSingleFrame(uintptr(h), &info.Width, &info.Height, &info.BitDepth, &info.Channels, &buf[0])
	return info, code
}

// ChipInfo reads sensor geometry. It returns ErrUnsupported when the library
// does not export GetQHYCCDChipInfo.
func (l *Library) ChipInfo(h Handle) (ChipInfo, uint32, error) {
	var ci ChipInfo
	if l.mod == nil {
		return ci, Error, ErrUnloaded
	}
	if l.getChipInfo == nil {
		return ci, Error, ErrUnsupported
	}
	code := l.getChipInfo(uintptr(h),
		&ci.ChipWidthMM, &ci.ChipHeightMM,
		&ci.ImageWidth, &ci.ImageHeight,
		&ci.PixelWidthUM, &ci.PixelHeightUM,
		&ci.BitDepth)
	return ci, code, nil
}

// Version reads the SDK build date.
func (l *Library) Version() (SDKVersion, error) {
	var v SDKVersion
	if l.mod == nil {
		return v, ErrUnloaded
	}
	if l.getSDKVersion == nil {
		return v, ErrUnsupported
	}
	if code := l.getSDKVersion(&v.Year, &v.Month, &v.Day, &v.Subday); code != Success {
		return v, &CallError{Name: "GetQHYCCDSDKVersion", Code: code}
	}
	return v, nil
}

// ControlAvailable reports whether the camera supports a control. Libraries
// without IsQHYCCDControlAvailable report every control as available.
func (l *Library) ControlAvailable(h Handle, control ControlID) bool {
	if l.isControlAvailable == nil {
		return true
	}
	return l.isControlAvailable(uintptr(h), int32(control)) == Success
}

func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
