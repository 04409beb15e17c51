package engine

import (
	"fmt"
	"time"
)

// validTransitions encodes the state diagram exactly. "any" -> SHUTDOWN is
// modeled by checking State == StateShutdown as a wildcard destination in
// CanTransition below, rather than repeating it per row.
var validTransitions = map[State][]State{
	StateIdle:      {StateAnalyzing},
	StateAnalyzing: {StateOpening, StateWaiting},
	StateOpening:   {StateHolding, StateError},
	StateHolding:   {StateClosing},
	StateClosing:   {StateWaiting, StateError},
	StateWaiting:   {StateIdle},
	StateError:     {StateIdle},
	StateShutdown:  {},
}

// CanTransition reports whether from -> to is a legal edge. Every state can
// transition to SHUTDOWN (termination signal), modeled as a wildcard here
// rather than duplicated in the table above.
func CanTransition(from, to State) bool {
	if to == StateShutdown {
		return from != StateShutdown
	}
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Transition validates and applies from -> to on state, stamping
// EnteredStateAt and emitting a metric. Returns an error on an illegal
// edge instead of mutating state.
func Transition(state *BotState, to State) error {
	if !CanTransition(state.State, to) {
		return fmt.Errorf("illegal state transition %s -> %s", state.State, to)
	}
	state.State = to
	state.EnteredStateAt = time.Now().UTC()
	IncStateTransition(string(to))
	return nil
}
