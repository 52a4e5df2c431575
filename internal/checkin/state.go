package checkin

import "fmt"

// State is a step of the per-account check-in state machine.
type State string

const (
	StatePending          State = "PENDING"
	StateStatusChecked    State = "STATUS_CHECKED"
	StateAlreadySigned    State = "ALREADY_SIGNED"
	StateRewardDetermined State = "REWARD_DETERMINED"
	StateSignedIn         State = "SIGNED_IN"
	StateLoggedSuccess    State = "LOGGED_SUCCESS"
	StateFailed           State = "FAILED"
)

var transitions = map[State][]State{
	StatePending:          {StateStatusChecked, StateFailed},
	StateStatusChecked:    {StateAlreadySigned, StateRewardDetermined, StateFailed},
	StateRewardDetermined: {StateSignedIn, StateAlreadySigned, StateFailed},
	StateSignedIn:         {StateLoggedSuccess, StateFailed},
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateAlreadySigned || s == StateLoggedSuccess || s == StateFailed
}

// CanTransition reports whether next directly follows s.
func (s State) CanTransition(next State) bool {
	for _, candidate := range transitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// machine tracks one account's progress and refuses illegal moves.
type machine struct {
	state State
}

func newMachine() *machine {
	return &machine{state: StatePending}
}

func (m *machine) advance(next State) error {
	if !m.state.CanTransition(next) {
		return fmt.Errorf("illegal transition %s -> %s", m.state, next)
	}
	m.state = next
	return nil
}
