package consensus

import (
	"fmt"

	"github.com/veritas-ai/veritas/agents"
)

// Level classifies verification confidence.
type Level string

const (
	LevelHigh     Level = "high"
	LevelMedium   Level = "medium"
	LevelLow      Level = "low"
	LevelRejected Level = "rejected"
)

// DecisionKind is the action the pipeline takes next.
type DecisionKind string

const (
	DecisionApprove     DecisionKind = "approve"
	DecisionReform      DecisionKind = "reform"
	DecisionReject      DecisionKind = "reject"
	DecisionHumanReview DecisionKind = "human_review"
)

// Confidence thresholds for level classification.
const (
	highConfidence   = 0.8
	mediumConfidence = 0.5
	reviewConfidence = 0.7
)

// Decision is the immutable output of one evaluation.
type Decision struct {
	Level     Level        `json:"level"`
	Decision  DecisionKind `json:"decision"`
	Reasoning string       `json:"reasoning"`
	Iteration int          `json:"iteration"`
}

// Manager evaluates verification results against the decision policy.
type Manager struct {
	maxIterations int
}

// NewManager creates a consensus manager. maxIterations bounds the
// reform loop (defaults to 3 when non-positive).
func NewManager(maxIterations int) *Manager {
	if maxIterations <= 0 {
		maxIterations = 3
	}
	return &Manager{maxIterations: maxIterations}
}

// MaxIterations returns the reform loop bound.
func (m *Manager) MaxIterations() int { return m.maxIterations }

// Classify maps a verification result to a confidence level.
func Classify(v *agents.Verified) Level {
	switch {
	case v.Vote == agents.VoteReject:
		return LevelRejected
	case v.Confidence >= highConfidence:
		return LevelHigh
	case v.Confidence >= mediumConfidence:
		return LevelMedium
	default:
		return LevelLow
	}
}

// Evaluate applies the decision policy, in priority order:
//
//  1. safety concerns with the human loop enabled always go to review
//  2. a rejected vote reforms while iterations remain, else rejects
//  3. high confidence approves
//  4. medium confidence reforms on open issues, reviews when shaky and
//     the human loop is on, else approves
//  5. low confidence reforms while iterations remain, then reviews or
//     rejects depending on the human loop
func (m *Manager) Evaluate(v *agents.Verified, iteration int, humanLoopEnabled bool) *Decision {
	level := Classify(v)
	d := &Decision{Level: level, Iteration: iteration}

	if len(v.SafetyConcerns) > 0 && humanLoopEnabled {
		d.Decision = DecisionHumanReview
		d.Reasoning = fmt.Sprintf("safety concerns raised: %v", v.SafetyConcerns)
		return d
	}

	switch level {
	case LevelRejected:
		if iteration < m.maxIterations {
			d.Decision = DecisionReform
			d.Reasoning = "verifier rejected the response; reforming"
		} else {
			d.Decision = DecisionReject
			d.Reasoning = "verifier rejected the response and the iteration budget is spent"
		}

	case LevelHigh:
		d.Decision = DecisionApprove
		d.Reasoning = fmt.Sprintf("high confidence (%.2f)", v.Confidence)

	case LevelMedium:
		switch {
		case len(v.Issues) > 0 && iteration < m.maxIterations:
			d.Decision = DecisionReform
			d.Reasoning = fmt.Sprintf("medium confidence with %d open issues; reforming", len(v.Issues))
		case humanLoopEnabled && v.Confidence < reviewConfidence:
			d.Decision = DecisionHumanReview
			d.Reasoning = fmt.Sprintf("medium confidence (%.2f) below review threshold", v.Confidence)
		default:
			d.Decision = DecisionApprove
			d.Reasoning = fmt.Sprintf("medium confidence (%.2f), no blocking issues", v.Confidence)
		}

	case LevelLow:
		switch {
		case iteration < m.maxIterations:
			d.Decision = DecisionReform
			d.Reasoning = fmt.Sprintf("low confidence (%.2f); reforming", v.Confidence)
		case humanLoopEnabled:
			d.Decision = DecisionHumanReview
			d.Reasoning = "low confidence after exhausting iterations; deferring to human review"
		default:
			d.Decision = DecisionReject
			d.Reasoning = "low confidence after exhausting iterations"
		}
	}

	return d
}

// ShouldRetry reports whether another reform round may run.
func (m *Manager) ShouldRetry(iteration int, decision DecisionKind) bool {
	return decision == DecisionReform && iteration < m.maxIterations
}
