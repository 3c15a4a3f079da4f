// Package metrics provides Prometheus metrics for camera captures.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Capture results used as the result label.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultBusy    = "busy"
)

var (
	captureTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "qhynode",
		Subsystem: "capture",
		Name:      "total",
		Help:      "Captures attempted, by result",
	}, []string{"result"})

	captureErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "qhynode",
		Subsystem: "capture",
		Name:      "errors_total",
		Help:      "Failed captures, by error kind",
	}, []string{"kind"})

	captureDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "qhynode",
		Subsystem: "capture",
		Name:      "duration_seconds",
		Help:      "Wall time of completed captures including exposure",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
	})

	lastFrameBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "qhynode",
		Subsystem: "capture",
		Name:      "last_frame_bytes",
		Help:      "Pixel data size of the most recent frame",
	})

	inFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "qhynode",
		Subsystem: "capture",
		Name:      "in_flight",
		Help:      "1 while a capture holds the camera",
	})

	libraryLoaded = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "qhynode",
		Subsystem: "sdk",
		Name:      "library_loaded",
		Help:      "1 when the vendor symbol table is bound",
	})

	// Local snapshot for the status API.
	statsMu sync.RWMutex
	stats   CaptureStats
)

// CaptureStats is a point-in-time summary of capture activity.
type CaptureStats struct {
	Total          uint64
	Succeeded      uint64
	Failed         uint64
	Rejected       uint64
	InFlight       bool
	LastDuration   time.Duration
	LastFrameBytes int
	LastErrorKind  string
	LastCaptureAt  time.Time
}

// CaptureStarted marks a capture as holding the camera.
func CaptureStarted() {
	inFlight.Set(1)
	statsMu.Lock()
	stats.InFlight = true
	statsMu.Unlock()
}

// CaptureSucceeded records a completed capture.
func CaptureSucceeded(d time.Duration, frameBytes int) {
	captureTotal.WithLabelValues(ResultSuccess).Inc()
	captureDuration.Observe(d.Seconds())
	lastFrameBytes.Set(float64(frameBytes))
	inFlight.Set(0)

	statsMu.Lock()
	defer statsMu.Unlock()
	stats.Total++
	stats.Succeeded++
	stats.InFlight = false
	stats.LastDuration = d
	stats.LastFrameBytes = frameBytes
	stats.LastCaptureAt = time.Now()
}

// CaptureFailed records a failed capture with its error kind.
func CaptureFailed(kind string, d time.Duration) {
	captureTotal.WithLabelValues(ResultError).Inc()
	captureErrors.WithLabelValues(kind).Inc()
	inFlight.Set(0)

	statsMu.Lock()
	defer statsMu.Unlock()
	stats.Total++
	stats.Failed++
	stats.InFlight = false
	stats.LastDuration = d
	stats.LastErrorKind = kind
	stats.LastCaptureAt = time.Now()
}

// CaptureRejected records a request turned away because the camera was busy.
// It does not touch the in-flight gauge, which belongs to the running capture.
func CaptureRejected() {
	captureTotal.WithLabelValues(ResultBusy).Inc()
	statsMu.Lock()
	stats.Rejected++
	statsMu.Unlock()
}

// SetLibraryLoaded updates the library gauge.
func SetLibraryLoaded(loaded bool) {
	if loaded {
		libraryLoaded.Set(1)
		return
	}
	libraryLoaded.Set(0)
}

// GetCaptureStats returns a copy of the current capture summary.
func GetCaptureStats() CaptureStats {
	statsMu.RLock()
	defer statsMu.RUnlock()
	return stats
}

// resetStats clears the snapshot. Prometheus collectors keep their values.
func resetStats() {
	statsMu.Lock()
	stats = CaptureStats{}
	statsMu.Unlock()
}
