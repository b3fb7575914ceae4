package types

import "time"

// SourceRef is a supporting citation attached to an answer.
type SourceRef struct {
	Name    string  `json:"name"`
	Content string  `json:"content,omitempty"`
	Score   float64 `json:"score,omitempty"`
}

// Outcome classifies how the pipeline terminated for one query.
type Outcome string

const (
	OutcomeCompleted              Outcome = "completed"
	OutcomeFailed                 Outcome = "failed"
	OutcomeEthicalFallback        Outcome = "ethical_fallback"
	OutcomePendingHumanValidation Outcome = "pending_human_validation"
)

// Result is the user-visible output of one pipeline execution.
// Failed executions carry Success=false, an error reason, and the query
// hash for correlation with the workflow history.
type Result struct {
	QueryID                 string        `json:"query_id"`
	QueryHash               string        `json:"query_hash"`
	Answer                  string        `json:"answer"`
	Sources                 []SourceRef   `json:"sources,omitempty"`
	Confidence              float64       `json:"confidence"`
	Consensus               string        `json:"consensus,omitempty"`
	Iteration               int           `json:"iteration"`
	Outcome                 Outcome       `json:"outcome"`
	Success                 bool          `json:"success"`
	ErrorReason             string        `json:"error_reason,omitempty"`
	HumanValidationRequired bool          `json:"human_validation_required"`
	ValidationRequestID     string        `json:"validation_request_id,omitempty"`
	AgentWorkflow           []string      `json:"agent_workflow,omitempty"`
	ProcessingTime          time.Duration `json:"processing_time"`
	CachedAt                time.Time     `json:"cached_at,omitempty"`
	FromCache               bool          `json:"from_cache,omitempty"`
}
