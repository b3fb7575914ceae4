package workflow

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritas-ai/veritas/types"
)

func TestNewInstance(t *testing.T) {
	inst := NewInstance("hash-1")

	assert.NotEmpty(t, inst.ID())
	assert.Equal(t, "hash-1", inst.QueryHash())
	assert.Equal(t, StateInitialized, inst.State())
	assert.Zero(t, inst.Iterations())
	require.Len(t, inst.Steps(), 1)
	assert.Equal(t, "initialized", inst.Steps()[0].Name)
}

func TestInstance_Transition_HappyPath(t *testing.T) {
	inst := NewInstance("hash-1")

	require.NoError(t, inst.Transition(StateContextRetrieved, "retrieval", nil))
	require.NoError(t, inst.Transition(StateResponseGenerated, "generate", nil))
	require.NoError(t, inst.Transition(StateResponseVerified, "verify", nil))
	require.NoError(t, inst.Transition(StateConsensusReached, "consensus", nil))
	require.NoError(t, inst.Transition(StateCompleted, "done", nil))

	assert.Equal(t, StateCompleted, inst.State())
	assert.Equal(t, []string{"initialized", "retrieval", "generate", "verify", "consensus", "done"}, inst.StepNames())
	assert.Zero(t, inst.Iterations())
	assert.Zero(t, inst.HumanInterventions())
}

func TestInstance_Transition_IllegalEdgeLeavesStateUnchanged(t *testing.T) {
	inst := NewInstance("hash-1")

	err := inst.Transition(StateResponseVerified, "skip ahead", nil)
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidTransition, types.GetErrorCode(err))
	assert.Equal(t, StateInitialized, inst.State())
	assert.Len(t, inst.Steps(), 1)
}

func TestInstance_Counters(t *testing.T) {
	inst := NewInstance("hash-1")
	require.NoError(t, inst.Transition(StateContextRetrieved, "retrieval", nil))
	require.NoError(t, inst.Transition(StateResponseGenerated, "generate", nil))
	require.NoError(t, inst.Transition(StateResponseVerified, "verify", nil))

	// Two reform rounds.
	require.NoError(t, inst.Transition(StateResponseReformed, "reform", nil))
	require.NoError(t, inst.Transition(StateResponseVerified, "re-verify", nil))
	require.NoError(t, inst.Transition(StateResponseReformed, "reform", nil))
	require.NoError(t, inst.Transition(StateResponseVerified, "re-verify", nil))
	assert.Equal(t, 2, inst.Iterations())

	require.NoError(t, inst.Transition(StateHumanValidation, "escalate", nil))
	assert.Equal(t, 1, inst.HumanInterventions())
}

func TestInstance_Snapshot(t *testing.T) {
	inst := NewInstance("hash-1")
	require.NoError(t, inst.Transition(StateContextRetrieved, "retrieval", map[string]any{"results": 3}))

	snap := inst.Snapshot()
	assert.Equal(t, inst.ID(), snap.ID)
	assert.Equal(t, StateContextRetrieved, snap.State)
	require.Len(t, snap.Steps, 2)
	assert.Equal(t, 3, snap.Steps[1].Data["results"])
}

func TestHistory_Bounded(t *testing.T) {
	h := NewHistory(3)

	var ids []string
	for i := 0; i < 5; i++ {
		inst := NewInstance(fmt.Sprintf("hash-%d", i))
		require.NoError(t, inst.Transition(StateFailed, "failed", nil))
		h.Add(inst)
		ids = append(ids, inst.ID())
	}

	assert.Equal(t, 3, h.Len())

	// Newest first; oldest fell off.
	recent := h.Recent(0)
	require.Len(t, recent, 3)
	assert.Equal(t, "hash-4", recent[0].QueryHash)

	_, ok := h.Get(ids[0])
	assert.False(t, ok)
	got, ok := h.Get(ids[4])
	require.True(t, ok)
	assert.Equal(t, "hash-4", got.QueryHash)
}
