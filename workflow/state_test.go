package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestCanTransition_Table(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateInitialized, StateContextRetrieved, true},
		{StateInitialized, StateFailed, true},
		{StateInitialized, StateResponseGenerated, false},
		{StateContextRetrieved, StateResponseGenerated, true},
		{StateResponseGenerated, StateResponseVerified, true},
		{StateResponseVerified, StateConsensusReached, true},
		{StateResponseVerified, StateResponseReformed, true},
		{StateResponseVerified, StateHumanValidation, true},
		{StateResponseVerified, StateCompleted, false},
		{StateConsensusReached, StateTranslationCompleted, true},
		{StateConsensusReached, StateHumanValidation, true},
		{StateConsensusReached, StateCompleted, true},
		{StateConsensusReached, StateFailed, false},
		{StateResponseReformed, StateResponseVerified, true},
		{StateResponseReformed, StateConsensusReached, true},
		{StateHumanValidation, StateCompleted, true},
		{StateHumanValidation, StateTranslationCompleted, true},
		{StateTranslationCompleted, StateCompleted, true},
		{StateTranslationCompleted, StateFailed, false},
		{StateCompleted, StateInitialized, false},
		{StateFailed, StateInitialized, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(StateCompleted))
	assert.True(t, IsTerminal(StateFailed))
	assert.False(t, IsTerminal(StateInitialized))
	assert.False(t, IsTerminal(StateHumanValidation))
}

// Terminal states never permit an outgoing edge, whatever the target.
func TestProperty_TerminalStatesHaveNoEdges(t *testing.T) {
	all := []State{
		StateInitialized, StateContextRetrieved, StateResponseGenerated,
		StateResponseVerified, StateConsensusReached, StateResponseReformed,
		StateHumanValidation, StateTranslationCompleted, StateCompleted, StateFailed,
	}
	rapid.Check(t, func(rt *rapid.T) {
		from := rapid.SampledFrom([]State{StateCompleted, StateFailed}).Draw(rt, "from")
		to := rapid.SampledFrom(all).Draw(rt, "to")
		assert.False(rt, CanTransition(from, to))
	})
}
