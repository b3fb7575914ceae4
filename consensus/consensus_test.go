package consensus

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/veritas-ai/veritas/agents"
)

func verified(vote agents.Vote, confidence float64, issues, safety []string) *agents.Verified {
	return &agents.Verified{Vote: vote, Confidence: confidence, Issues: issues, SafetyConcerns: safety}
}

func TestClassify(t *testing.T) {
	assert.Equal(t, LevelRejected, Classify(verified(agents.VoteReject, 0.95, nil, nil)))
	assert.Equal(t, LevelHigh, Classify(verified(agents.VoteApprove, 0.8, nil, nil)))
	assert.Equal(t, LevelHigh, Classify(verified(agents.VoteApprove, 0.99, nil, nil)))
	assert.Equal(t, LevelMedium, Classify(verified(agents.VoteApprove, 0.79, nil, nil)))
	assert.Equal(t, LevelMedium, Classify(verified(agents.VoteApprove, 0.5, nil, nil)))
	assert.Equal(t, LevelLow, Classify(verified(agents.VoteApprove, 0.49, nil, nil)))
}

func TestEvaluate_SafetyOverridesEverything(t *testing.T) {
	m := NewManager(3)

	// Even a high-confidence approval goes to review on safety concerns.
	d := m.Evaluate(verified(agents.VoteApprove, 0.95, nil, []string{"dosage advice"}), 0, true)
	assert.Equal(t, DecisionHumanReview, d.Decision)
	assert.Equal(t, LevelHigh, d.Level)

	// With the human loop off the safety rule does not apply.
	d = m.Evaluate(verified(agents.VoteApprove, 0.95, nil, []string{"dosage advice"}), 0, false)
	assert.Equal(t, DecisionApprove, d.Decision)
}

func TestEvaluate_Rejected(t *testing.T) {
	m := NewManager(3)

	d := m.Evaluate(verified(agents.VoteReject, 0.9, nil, nil), 1, false)
	assert.Equal(t, DecisionReform, d.Decision)
	assert.Equal(t, 1, d.Iteration)

	d = m.Evaluate(verified(agents.VoteReject, 0.9, nil, nil), 3, false)
	assert.Equal(t, DecisionReject, d.Decision)
}

func TestEvaluate_High(t *testing.T) {
	m := NewManager(3)
	d := m.Evaluate(verified(agents.VoteApprove, 0.85, []string{"minor"}, nil), 2, true)
	assert.Equal(t, DecisionApprove, d.Decision)
	assert.Equal(t, LevelHigh, d.Level)
}

func TestEvaluate_Medium(t *testing.T) {
	m := NewManager(3)

	// Open issues with budget remaining reform.
	d := m.Evaluate(verified(agents.VoteApprove, 0.6, []string{"missing citation"}, nil), 1, true)
	assert.Equal(t, DecisionReform, d.Decision)

	// No issues, shaky confidence, human loop on: review.
	d = m.Evaluate(verified(agents.VoteApprove, 0.6, nil, nil), 1, true)
	assert.Equal(t, DecisionHumanReview, d.Decision)

	// No issues, shaky confidence, human loop off: approve.
	d = m.Evaluate(verified(agents.VoteApprove, 0.6, nil, nil), 1, false)
	assert.Equal(t, DecisionApprove, d.Decision)

	// Confidence at or above 0.7 approves even with the loop on.
	d = m.Evaluate(verified(agents.VoteApprove, 0.75, nil, nil), 1, true)
	assert.Equal(t, DecisionApprove, d.Decision)

	// Issues remaining but budget spent falls through to the review check.
	d = m.Evaluate(verified(agents.VoteApprove, 0.6, []string{"x"}, nil), 3, true)
	assert.Equal(t, DecisionHumanReview, d.Decision)
}

func TestEvaluate_Low(t *testing.T) {
	m := NewManager(3)

	d := m.Evaluate(verified(agents.VoteApprove, 0.3, nil, nil), 0, false)
	assert.Equal(t, DecisionReform, d.Decision)

	d = m.Evaluate(verified(agents.VoteApprove, 0.3, nil, nil), 3, true)
	assert.Equal(t, DecisionHumanReview, d.Decision)

	d = m.Evaluate(verified(agents.VoteApprove, 0.3, nil, nil), 3, false)
	assert.Equal(t, DecisionReject, d.Decision)
}

func TestShouldRetry(t *testing.T) {
	m := NewManager(3)
	assert.True(t, m.ShouldRetry(2, DecisionReform))
	assert.False(t, m.ShouldRetry(3, DecisionReform))
	assert.False(t, m.ShouldRetry(1, DecisionApprove))
	assert.False(t, m.ShouldRetry(1, DecisionReject))
	assert.False(t, m.ShouldRetry(1, DecisionHumanReview))
}
