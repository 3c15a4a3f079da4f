package camera

// SessionState is the position of a Session in the capture protocol.
type SessionState string

// Session states in protocol order.
const (
	StateUninitialized SessionState = "uninitialized"
	StateResourceReady SessionState = "resource_ready"
	StateScanned       SessionState = "scanned"
	StateOpened        SessionState = "opened"
	StateConfigured    SessionState = "configured"
	StateExposed       SessionState = "exposed"
	StateCaptured      SessionState = "captured"
	StateClosed        SessionState = "closed"
	StateFailed        SessionState = "failed"
)

var stateOrder = map[SessionState]int{
	StateUninitialized: 0,
	StateResourceReady: 1,
	StateScanned:       2,
	StateOpened:        3,
	StateConfigured:    4,
	StateExposed:       5,
	StateCaptured:      6,
	StateClosed:        7,
}

// Terminal reports whether no further transitions are possible.
func (s SessionState) Terminal() bool {
	return s == StateClosed || s == StateFailed
}

// CanTransition reports whether a session may move from s to next.
// Transitions only move forward; failed is reachable from any
// non-terminal state.
func (s SessionState) CanTransition(next SessionState) bool {
	if s.Terminal() {
		return false
	}
	if next == StateFailed {
		return true
	}
	from, ok := stateOrder[s]
	if !ok {
		return false
	}
	to, ok := stateOrder[next]
	return ok && to > from
}

// StateChange describes a single session transition.
type StateChange struct {
	From SessionState
	To   SessionState
	Step Step
}
