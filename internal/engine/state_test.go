package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allStates = []State{
	StateIdle, StateAnalyzing, StateOpening, StateHolding,
	StateClosing, StateWaiting, StateError, StateShutdown,
}

func TestCanTransition_ExactDiagram(t *testing.T) {
	legal := map[State]map[State]bool{
		StateIdle:      {StateAnalyzing: true},
		StateAnalyzing: {StateOpening: true, StateWaiting: true},
		StateOpening:   {StateHolding: true, StateError: true},
		StateHolding:   {StateClosing: true},
		StateClosing:   {StateWaiting: true, StateError: true},
		StateWaiting:   {StateIdle: true},
		StateError:     {StateIdle: true},
		StateShutdown:  {},
	}

	for _, from := range allStates {
		for _, to := range allStates {
			want := legal[from][to] || (to == StateShutdown && from != StateShutdown)
			got := CanTransition(from, to)
			assert.Equalf(t, want, got, "CanTransition(%s, %s)", from, to)
		}
	}
}

func TestTransition_IllegalEdgeReturnsErrorWithoutMutating(t *testing.T) {
	state := &BotState{State: StateIdle}
	err := Transition(state, StateHolding)
	require.Error(t, err)
	assert.Equal(t, StateIdle, state.State, "state must not mutate on an illegal transition")
}

func TestTransition_LegalEdgeStampsEnteredStateAt(t *testing.T) {
	state := &BotState{State: StateIdle}
	before := state.EnteredStateAt
	err := Transition(state, StateAnalyzing)
	require.NoError(t, err)
	assert.Equal(t, StateAnalyzing, state.State)
	assert.True(t, state.EnteredStateAt.After(before))
}

func TestTransition_ShutdownReachableFromEveryOtherState(t *testing.T) {
	for _, from := range allStates {
		if from == StateShutdown {
			continue
		}
		state := &BotState{State: from}
		require.NoError(t, Transition(state, StateShutdown), "from %s", from)
	}
}
