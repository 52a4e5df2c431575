package checkin

import "testing"

func TestStateTransitions(t *testing.T) {
	tests := []struct {
		from, to State
		ok       bool
	}{
		{StatePending, StateStatusChecked, true},
		{StatePending, StateSignedIn, false},
		{StateStatusChecked, StateAlreadySigned, true},
		{StateStatusChecked, StateRewardDetermined, true},
		{StateStatusChecked, StateSignedIn, false},
		{StateRewardDetermined, StateSignedIn, true},
		{StateRewardDetermined, StateAlreadySigned, true},
		{StateSignedIn, StateLoggedSuccess, true},
		{StateLoggedSuccess, StateFailed, false},
		{StateAlreadySigned, StateSignedIn, false},
		{StateFailed, StatePending, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.ok {
			t.Errorf("%s -> %s: expected %v, got %v", tt.from, tt.to, tt.ok, got)
		}
	}
}

func TestStateTerminal(t *testing.T) {
	for _, s := range []State{StateAlreadySigned, StateLoggedSuccess, StateFailed} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []State{StatePending, StateStatusChecked, StateRewardDetermined, StateSignedIn} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestMachineRefusesIllegalMove(t *testing.T) {
	m := newMachine()
	if err := m.advance(StateSignedIn); err == nil {
		t.Fatal("expected illegal transition error")
	}
	if m.state != StatePending {
		t.Fatalf("state must not change on refusal, got %s", m.state)
	}
}
