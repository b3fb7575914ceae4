package workflow

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/veritas-ai/veritas/types"
)

// StepRecord is one timestamped entry in an instance's step log.
type StepRecord struct {
	Name      string         `json:"name"`
	State     State          `json:"state"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// Instance tracks one query's path through the state machine. All
// mutation goes through Transition, which validates the edge first.
type Instance struct {
	mu sync.RWMutex

	id                 string
	queryHash          string
	state              State
	steps              []StepRecord
	iterations         int
	humanInterventions int
	startedAt          time.Time
	completedAt        time.Time
}

// NewInstance creates an instance in StateInitialized.
func NewInstance(queryHash string) *Instance {
	now := time.Now()
	inst := &Instance{
		id:        uuid.NewString(),
		queryHash: queryHash,
		state:     StateInitialized,
		startedAt: now,
	}
	inst.steps = append(inst.steps, StepRecord{
		Name:      "initialized",
		State:     StateInitialized,
		Timestamp: now,
	})
	return inst
}

// ID returns the instance identifier.
func (i *Instance) ID() string { return i.id }

// QueryHash returns the normalized hash of the query this instance tracks.
func (i *Instance) QueryHash() string { return i.queryHash }

// State returns the current state.
func (i *Instance) State() State {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.state
}

// Iterations returns how many reform rounds have run.
func (i *Instance) Iterations() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.iterations
}

// HumanInterventions returns how many times the instance entered
// human validation.
func (i *Instance) HumanInterventions() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.humanInterventions
}

// Steps returns a copy of the step log.
func (i *Instance) Steps() []StepRecord {
	i.mu.RLock()
	defer i.mu.RUnlock()
	out := make([]StepRecord, len(i.steps))
	copy(out, i.steps)
	return out
}

// StepNames returns the step log names in order.
func (i *Instance) StepNames() []string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	names := make([]string, len(i.steps))
	for idx, s := range i.steps {
		names[idx] = s.Name
	}
	return names
}

// Duration returns the wall time from start to completion, or to now
// for a live instance.
func (i *Instance) Duration() time.Duration {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if !i.completedAt.IsZero() {
		return i.completedAt.Sub(i.startedAt)
	}
	return time.Since(i.startedAt)
}

// Transition moves the instance to the target state, appending a step
// record. Illegal edges return INVALID_TRANSITION and leave the
// instance untouched. The iteration counter bumps only on entering
// ResponseReformed; the human-intervention counter only on entering
// HumanValidation.
func (i *Instance) Transition(to State, name string, data map[string]any) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if !CanTransition(i.state, to) {
		return types.NewError(types.ErrInvalidTransition,
			fmt.Sprintf("illegal transition %s -> %s", i.state, to))
	}

	i.state = to
	switch to {
	case StateResponseReformed:
		i.iterations++
	case StateHumanValidation:
		i.humanInterventions++
	case StateCompleted, StateFailed:
		i.completedAt = time.Now()
	}

	i.steps = append(i.steps, StepRecord{
		Name:      name,
		State:     to,
		Timestamp: time.Now(),
		Data:      data,
	})
	return nil
}

// Snapshot is an immutable view of an instance for external surfaces.
type Snapshot struct {
	ID                 string       `json:"id"`
	QueryHash          string       `json:"query_hash"`
	State              State        `json:"state"`
	Steps              []StepRecord `json:"steps"`
	Iterations         int          `json:"iterations"`
	HumanInterventions int          `json:"human_interventions"`
	StartedAt          time.Time    `json:"started_at"`
	CompletedAt        time.Time    `json:"completed_at,omitempty"`
}

// Snapshot captures the instance state at this instant.
func (i *Instance) Snapshot() Snapshot {
	i.mu.RLock()
	defer i.mu.RUnlock()
	steps := make([]StepRecord, len(i.steps))
	copy(steps, i.steps)
	return Snapshot{
		ID:                 i.id,
		QueryHash:          i.queryHash,
		State:              i.state,
		Steps:              steps,
		Iterations:         i.iterations,
		HumanInterventions: i.humanInterventions,
		StartedAt:          i.startedAt,
		CompletedAt:        i.completedAt,
	}
}
