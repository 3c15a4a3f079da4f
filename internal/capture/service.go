package capture

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/smazurov/qhynode/internal/camera"
	"github.com/smazurov/qhynode/internal/config"
	"github.com/smazurov/qhynode/internal/events"
	"github.com/smazurov/qhynode/internal/metrics"
)

// Service runs captures one at a time on behalf of the API and CLI.
type Service struct {
	source SDKSource
	store  *FrameStore
	bus    *events.Bus
	logger *slog.Logger
	newID  func() string

	// lock is held for the whole capture, including the part that runs
	// after a caller stopped waiting.
	lock    sync.Mutex
	running atomic.Bool

	defaultsMu sync.RWMutex
	defaults   config.CaptureDefaults
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithStore persists every successful frame.
func WithStore(store *FrameStore) ServiceOption {
	return func(s *Service) {
		s.store = store
	}
}

// WithBus publishes capture events on bus.
func WithBus(bus *events.Bus) ServiceOption {
	return func(s *Service) {
		s.bus = bus
	}
}

// WithServiceLogger sets the service logger.
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithDefaults sets the initial capture defaults.
func WithDefaults(d config.CaptureDefaults) ServiceOption {
	return func(s *Service) {
		s.defaults = d
	}
}

// NewService creates a capture service over source.
func NewService(source SDKSource, opts ...ServiceOption) *Service {
	s := &Service{
		source:   source,
		logger:   slog.Default(),
		newID:    uuid.NewString,
		defaults: config.DefaultCaptureDefaults(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Defaults returns the current capture defaults.
func (s *Service) Defaults() config.CaptureDefaults {
	s.defaultsMu.RLock()
	defer s.defaultsMu.RUnlock()
	return s.defaults
}

// SetDefaults replaces the capture defaults. Captures already running keep
// the values they started with.
func (s *Service) SetDefaults(d config.CaptureDefaults) {
	s.defaultsMu.Lock()
	s.defaults = d
	s.defaultsMu.Unlock()
	s.logger.Info("Capture defaults updated",
		"exposure_ms", d.ExposureMs,
		"exposure_us", d.ExposureUs,
		"gain", d.Gain,
		"offset", d.Offset,
		"width", d.Width,
		"height", d.Height,
		"device_index", d.DeviceIndex)
}

// Store returns the frame store, or nil.
func (s *Service) Store() *FrameStore {
	return s.store
}

// LibraryStatus reports the SDK source state.
func (s *Service) LibraryStatus() LibraryStatus {
	return s.source.Status()
}

type outcome struct {
	result *Result
	err    error
}

// Capture resolves opts against the defaults and runs one capture.
//
// It returns ErrBusy when another capture holds the camera. The native calls
// run on their own goroutine: when ctx ends first Capture returns ctx.Err(),
// while the capture finishes in the background and still tears the device
// down, publishes its events and releases the lock.
func (s *Service) Capture(ctx context.Context, opts Options) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	req, err := opts.Request(s.Defaults())
	if err != nil {
		s.publishError("", err)
		metrics.CaptureFailed(Kind(err), 0)
		return nil, err
	}

	if !s.lock.TryLock() {
		metrics.CaptureRejected()
		s.logger.Warn("Capture rejected, camera busy")
		return nil, ErrBusy
	}

	s.running.Store(true)
	id := s.newID()
	metrics.CaptureStarted()
	s.publish(events.CaptureStartedEvent{
		CaptureID:   id,
		DeviceIndex: req.DeviceIndex,
		ExposureUs:  req.ExposureUs,
		Width:       req.Width,
		Height:      req.Height,
		Timestamp:   time.Now().Format(time.RFC3339),
	})

	done := make(chan outcome, 1)
	go func() {
		defer s.lock.Unlock()
		defer s.running.Store(false)
		res, runErr := s.run(id, req)
		done <- outcome{result: res, err: runErr}
	}()

	select {
	case o := <-done:
		return o.result, o.err
	case <-ctx.Done():
		s.logger.Warn("Caller stopped waiting, capture continues in background",
			"capture_id", id, "error", ctx.Err())
		return nil, ctx.Err()
	}
}

func (s *Service) run(id string, req camera.Request) (*Result, error) {
	start := time.Now()
	logger := s.logger.With("capture_id", id)

	sdk, err := s.source.Acquire()
	if err != nil {
		s.fail(id, err, time.Since(start))
		return nil, err
	}

	capturer := camera.NewCapturer(sdk,
		camera.WithLogger(logger),
		camera.WithObserver(func(ch camera.StateChange) {
			s.publish(events.CaptureStateChangedEvent{
				CaptureID: id,
				From:      string(ch.From),
				To:        string(ch.To),
				Step:      string(ch.Step),
				Timestamp: time.Now().Format(time.RFC3339),
			})
		}))

	frame, err := capturer.Capture(req)
	elapsed := time.Since(start)
	if err != nil {
		s.fail(id, err, elapsed)
		return nil, err
	}

	res := &Result{
		ID:         id,
		CameraID:   frame.CameraID,
		Data:       frame.Data,
		Width:      frame.Width,
		Height:     frame.Height,
		BPP:        frame.BitDepth,
		Channels:   frame.Channels,
		ExposureUs: req.ExposureUs,
		Duration:   elapsed,
		CapturedAt: time.Now(),
	}

	if s.store != nil {
		rec := recordFor(res, req)
		if saveErr := s.store.Save(rec, res.Data); saveErr != nil {
			logger.Error("Failed to store frame", "error", saveErr)
		} else {
			res.Stored = true
		}
	}

	metrics.CaptureSucceeded(elapsed, len(res.Data))
	s.publish(events.CaptureSuccessEvent{
		CaptureID:  id,
		CameraID:   res.CameraID,
		Width:      res.Width,
		Height:     res.Height,
		BitDepth:   res.BPP,
		Channels:   res.Channels,
		Bytes:      len(res.Data),
		DurationMs: elapsed.Milliseconds(),
		Stored:     res.Stored,
		Message:    "Frame captured",
		Timestamp:  res.CapturedAt.Format(time.RFC3339),
	})
	return res, nil
}

func (s *Service) fail(id string, err error, elapsed time.Duration) {
	kind := Kind(err)
	s.logger.Error("Capture failed", "capture_id", id, "kind", kind, "error", err)
	metrics.CaptureFailed(kind, elapsed)
	s.publishError(id, err)
}

func (s *Service) publishError(id string, err error) {
	var step string
	var ce *camera.CaptureError
	if errors.As(err, &ce) {
		step = string(ce.Step)
	}
	s.publish(events.CaptureErrorEvent{
		CaptureID: id,
		Kind:      Kind(err),
		Step:      step,
		Message:   Message(err),
		Error:     err.Error(),
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

func (s *Service) publish(ev events.Event) {
	if s.bus != nil {
		s.bus.Publish(ev)
	}
}

// UnloadLibrary waits for any running capture and unloads the SDK library.
func (s *Service) UnloadLibrary() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.source.Unload()
}

// Busy reports whether a capture currently holds the camera.
func (s *Service) Busy() bool {
	return s.running.Load()
}

func recordFor(res *Result, req camera.Request) Record {
	return Record{
		ID:          res.ID,
		CameraID:    res.CameraID,
		Width:       res.Width,
		Height:      res.Height,
		BPP:         res.BPP,
		Channels:    res.Channels,
		ExposureUs:  req.ExposureUs,
		Gain:        req.Gain,
		Offset:      req.Offset,
		DeviceIndex: req.DeviceIndex,
		DurationMs:  res.Duration.Milliseconds(),
		CapturedAt:  res.CapturedAt,
	}
}
