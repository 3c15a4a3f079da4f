package capture

import (
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/qhynode/internal/camera"
	"github.com/smazurov/qhynode/internal/camera/sim"
	"github.com/smazurov/qhynode/internal/events"
	"github.com/smazurov/qhynode/internal/metrics"
	"github.com/smazurov/qhynode/pkg/qhyccd"
)

// SDKSource supplies the SDK used by a capture.
type SDKSource interface {
	Acquire() (camera.SDK, error)
	Status() LibraryStatus
	Unload() error
}

// LibraryStatus describes the SDK behind a source.
type LibraryStatus struct {
	Path      string                `json:"path" doc:"Library path"`
	Loaded    bool                  `json:"loaded" doc:"Whether the symbol table is bound"`
	Simulated bool                  `json:"simulated" doc:"Whether captures use the built-in simulator"`
	Version   string                `json:"version,omitempty" doc:"SDK build version when exported"`
	LastError string                `json:"last_error,omitempty" doc:"Most recent load failure"`
	Symbols   []qhyccd.SymbolStatus `json:"symbols" doc:"Binding state of each SDK symbol"`
}

// LibraryLoader loads the vendor library on first use and keeps it bound
// until Unload. A failed load is not cached; the next Acquire tries again.
type LibraryLoader struct {
	path   string
	load   func(string) (*qhyccd.Library, error)
	bus    *events.Bus
	logger *slog.Logger

	mu      sync.Mutex
	lib     *qhyccd.Library
	lastErr error
}

// LoaderOption configures a LibraryLoader.
type LoaderOption func(*LibraryLoader)

// WithLoaderBus publishes LibraryStateEvents on bus.
func WithLoaderBus(bus *events.Bus) LoaderOption {
	return func(l *LibraryLoader) {
		l.bus = bus
	}
}

// WithLoaderLogger sets the loader logger.
func WithLoaderLogger(logger *slog.Logger) LoaderOption {
	return func(l *LibraryLoader) {
		l.logger = logger
	}
}

// withLoadFunc replaces qhyccd.Load in tests.
func withLoadFunc(fn func(string) (*qhyccd.Library, error)) LoaderOption {
	return func(l *LibraryLoader) {
		l.load = fn
	}
}

// NewLibraryLoader creates a loader for the library at path. It does not
// touch the filesystem until Acquire.
func NewLibraryLoader(path string, opts ...LoaderOption) *LibraryLoader {
	l := &LibraryLoader{
		path:   path,
		load:   qhyccd.Load,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Acquire returns the bound library, loading it if needed.
func (l *LibraryLoader) Acquire() (camera.SDK, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.lib != nil {
		return l.lib, nil
	}

	lib, err := l.load(l.path)
	if err != nil {
		l.lastErr = err
		l.logger.Error("Failed to load SDK library", "path", l.path, "error", err)
		l.publish(false, err)
		return nil, err
	}

	l.lib = lib
	l.lastErr = nil
	metrics.SetLibraryLoaded(true)
	l.logger.Info("SDK library loaded", "path", l.path)
	l.publish(true, nil)
	return lib, nil
}

// Status reports the loader state without loading anything.
func (l *LibraryLoader) Status() LibraryStatus {
	l.mu.Lock()
	defer l.mu.Unlock()

	st := LibraryStatus{
		Path:    l.path,
		Loaded:  l.lib != nil,
		Symbols: l.lib.Symbols(),
	}
	if l.lastErr != nil {
		st.LastError = l.lastErr.Error()
	}
	if l.lib != nil {
		if v, err := l.lib.Version(); err == nil {
			st.Version = v.String()
		}
	}
	return st
}

// Unload releases the library. A later Acquire loads it again.
func (l *LibraryLoader) Unload() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.lib == nil {
		return nil
	}
	err := l.lib.Unload()
	l.lib = nil
	metrics.SetLibraryLoaded(false)
	if err != nil {
		l.logger.Warn("SDK library unload reported an error", "error", err)
	} else {
		l.logger.Info("SDK library unloaded", "path", l.path)
	}
	l.publish(false, err)
	return err
}

func (l *LibraryLoader) publish(loaded bool, err error) {
	if l.bus == nil {
		return
	}
	ev := events.LibraryStateEvent{
		Loaded:    loaded,
		Path:      l.path,
		Timestamp: time.Now().Format(time.RFC3339),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	l.bus.Publish(ev)
}

// SimulatorName is the library path reported by the simulator source.
const SimulatorName = "simulator"

// NewSimulator returns a source backed by a simulated camera whose
// exposures take real time.
func NewSimulator() Fixed {
	return Fixed{SDK: sim.New(sim.WithRealtimeExposure()), Name: SimulatorName}
}

// Fixed is an SDKSource backed by an in-process SDK such as the simulator.
type Fixed struct {
	SDK  camera.SDK
	Name string
}

// Acquire returns the fixed SDK.
func (f Fixed) Acquire() (camera.SDK, error) {
	return f.SDK, nil
}

// Status reports the fixed SDK as loaded and simulated.
func (f Fixed) Status() LibraryStatus {
	return LibraryStatus{
		Path:      f.Name,
		Loaded:    true,
		Simulated: true,
		Symbols:   []qhyccd.SymbolStatus{},
	}
}

// Unload is a no-op.
func (f Fixed) Unload() error {
	return nil
}
