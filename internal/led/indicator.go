package led

import (
	"log/slog"
	"sync"

	"github.com/smazurov/qhynode/internal/events"
)

// Indicator mirrors capture session state on one LED: blinking while the
// camera is configured, solid while the frame is read out, off when the
// session closes and heartbeat after a failure.
type Indicator struct {
	controller  Controller
	eventBus    *events.Bus
	ledType     string
	logger      *slog.Logger
	mu          sync.Mutex
	unsubscribe func()
	last        *ledState
}

type ledState struct {
	enabled bool
	pattern string
}

// NewIndicator creates an indicator for ledType. An empty ledType picks the
// first LED the controller offers.
func NewIndicator(controller Controller, eventBus *events.Bus, ledType string, logger *slog.Logger) *Indicator {
	if logger == nil {
		logger = slog.Default()
	}
	if ledType == "" {
		if available := controller.Available(); len(available) > 0 {
			ledType = available[0]
		}
	}
	return &Indicator{
		controller: controller,
		eventBus:   eventBus,
		ledType:    ledType,
		logger:     logger,
	}
}

// LEDType returns the LED the indicator drives.
func (i *Indicator) LEDType() string {
	return i.ledType
}

// Start turns the LED off and begins listening for session transitions.
func (i *Indicator) Start() {
	i.apply("off", false, "")
	i.mu.Lock()
	i.unsubscribe = i.eventBus.Subscribe(func(e events.CaptureStateChangedEvent) {
		i.handleEvent(e)
	})
	i.mu.Unlock()
	i.logger.Info("LED indicator started", "led", i.ledType)
}

// Stop unsubscribes and turns the LED off.
func (i *Indicator) Stop() {
	i.mu.Lock()
	unsub := i.unsubscribe
	i.unsubscribe = nil
	i.mu.Unlock()
	if unsub != nil {
		unsub()
	}
	i.apply("off", false, "")
	i.logger.Info("LED indicator stopped")
}

func (i *Indicator) handleEvent(event events.CaptureStateChangedEvent) {
	switch event.To {
	case "configured":
		i.apply(event.To, true, PatternBlink)
	case "exposed":
		i.apply(event.To, true, PatternSolid)
	case "closed":
		i.apply(event.To, false, "")
	case "failed":
		i.apply(event.To, true, PatternHeartbeat)
	}
}

func (i *Indicator) apply(state string, enabled bool, pattern string) {
	if i.ledType == "" {
		return
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	next := ledState{enabled: enabled, pattern: pattern}
	if i.last != nil && *i.last == next {
		return
	}
	if err := i.controller.Set(i.ledType, enabled, pattern); err != nil {
		i.logger.Warn("Failed to set LED", "led", i.ledType, "state", state, "error", err)
		return
	}
	i.last = &next
	i.logger.Debug("LED updated", "led", i.ledType, "state", state, "pattern", pattern)
}
