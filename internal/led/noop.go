package led

import (
	"cmp"
	"log/slog"
	"sync"
)

// noop accepts every request without touching hardware, so the indicator
// runs the same on boards without sysfs LEDs. State changes are logged once.
type noop struct {
	logger *slog.Logger
	mu     sync.Mutex
	last   map[string]string
}

func newNoop(logger *slog.Logger) *noop {
	if logger == nil {
		logger = slog.Default()
	}
	return &noop{logger: logger, last: make(map[string]string)}
}

func (n *noop) Set(ledType string, enabled bool, pattern string) error {
	state := "off"
	if enabled {
		state = cmp.Or(pattern, PatternSolid)
	}

	n.mu.Lock()
	changed := n.last[ledType] != state
	n.last[ledType] = state
	n.mu.Unlock()

	if changed {
		n.logger.Debug("LED state not applied, no LED support", "led_type", ledType, "state", state)
	}
	return nil
}

func (n *noop) Available() []string {
	return []string{}
}

func (n *noop) Patterns() []string {
	return []string{}
}
