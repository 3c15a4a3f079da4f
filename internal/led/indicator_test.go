package led

import (
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/qhynode/internal/events"
)

type mockController struct {
	mu       sync.Mutex
	setCalls []setCall
}

type setCall struct {
	ledType string
	enabled bool
	pattern string
}

func (m *mockController) Set(ledType string, enabled bool, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setCalls = append(m.setCalls, setCall{ledType, enabled, pattern})
	return nil
}

func (m *mockController) Available() []string {
	return []string{"system", "user"}
}

func (m *mockController) Patterns() []string {
	return []string{PatternSolid, PatternBlink, PatternHeartbeat}
}

func (m *mockController) calls() []setCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.setCalls)
}

// waitCalls polls until n Set calls were recorded.
func waitCalls(t *testing.T, ctrl *mockController, n int) []setCall {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if calls := ctrl.calls(); len(calls) >= n {
			return calls
		}
		time.Sleep(5 * time.Millisecond)
	}
	calls := ctrl.calls()
	t.Fatalf("Expected %d LED calls, got %d: %v", n, len(calls), calls)
	return nil
}

func publishState(bus *events.Bus, to string) {
	bus.Publish(events.CaptureStateChangedEvent{
		CaptureID: "c1",
		To:        to,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

func TestIndicator_SuccessfulCapture(t *testing.T) {
	ctrl := &mockController{}
	bus := events.New()

	ind := NewIndicator(ctrl, bus, "user", nil)
	ind.Start()
	defer ind.Stop()

	for _, to := range []string{"resource_ready", "scanned", "opened", "configured", "exposed", "captured", "closed"} {
		publishState(bus, to)
	}

	calls := waitCalls(t, ctrl, 4)
	want := []setCall{
		{"user", false, ""},
		{"user", true, PatternBlink},
		{"user", true, PatternSolid},
		{"user", false, ""},
	}
	if !slices.Equal(calls[:4], want) {
		t.Errorf("Expected %v, got %v", want, calls)
	}
}

func TestIndicator_FailedCapture(t *testing.T) {
	ctrl := &mockController{}
	bus := events.New()

	ind := NewIndicator(ctrl, bus, "", nil)
	if ind.LEDType() != "system" {
		t.Fatalf("Expected first available LED, got %q", ind.LEDType())
	}
	ind.Start()
	defer ind.Stop()

	publishState(bus, "configured")
	publishState(bus, "failed")

	calls := waitCalls(t, ctrl, 3)
	if last := calls[2]; last.pattern != PatternHeartbeat || !last.enabled {
		t.Errorf("Expected heartbeat after failure, got %+v", last)
	}
}

func TestIndicator_StopUnsubscribes(t *testing.T) {
	ctrl := &mockController{}
	bus := events.New()

	ind := NewIndicator(ctrl, bus, "user", nil)
	ind.Start()
	ind.Stop()

	before := len(ctrl.calls())
	publishState(bus, "configured")
	time.Sleep(50 * time.Millisecond)

	if after := len(ctrl.calls()); after != before {
		t.Errorf("Expected no LED calls after Stop, got %d new", after-before)
	}
}
