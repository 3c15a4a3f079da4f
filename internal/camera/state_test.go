package camera

import "testing"

func TestSessionStateTransitions(t *testing.T) {
	tests := []struct {
		from, to SessionState
		want     bool
	}{
		{StateUninitialized, StateResourceReady, true},
		{StateResourceReady, StateScanned, true},
		{StateScanned, StateOpened, true},
		{StateOpened, StateConfigured, true},
		{StateConfigured, StateExposed, true},
		{StateExposed, StateCaptured, true},
		{StateCaptured, StateClosed, true},
		{StateUninitialized, StateClosed, true},
		{StateOpened, StateScanned, false},
		{StateCaptured, StateExposed, false},
		{StateOpened, StateOpened, false},
		{StateClosed, StateFailed, false},
		{StateFailed, StateClosed, false},
		{StateFailed, StateFailed, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestFailedReachableFromEveryNonTerminalState(t *testing.T) {
	for st := range stateOrder {
		want := !st.Terminal()
		if got := st.CanTransition(StateFailed); got != want {
			t.Errorf("%s -> failed = %v, want %v", st, got, want)
		}
	}
}
