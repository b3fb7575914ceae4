package humanloop

import "time"

// Category is one keyword-trigger category.
type Category string

const (
	CategorySafety     Category = "safety"
	CategoryMedical    Category = "medical"
	CategoryRegulatory Category = "regulatory"
	CategoryConfidence Category = "confidence"
	CategoryComplexity Category = "complexity"
)

// RequestType classifies a validation request by its dominant trigger.
type RequestType string

const (
	TypeSafety           RequestType = "safety"
	TypeRegulatory       RequestType = "regulatory"
	TypeMedical          RequestType = "medical"
	TypeQualityAssurance RequestType = "quality_assurance"
)

// Status of a validation request. Transitions are monotonic: a request
// leaves Pending exactly once and never returns.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusModified Status = "modified"
	StatusRejected Status = "rejected"
	StatusExpired  Status = "expired"
)

// Decision is a validator's verdict on a pending request.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionModify  Decision = "modify"
	DecisionReject  Decision = "reject"
)

// NeedAssessment is the outcome of scanning a query/response pair
// against the keyword tables.
type NeedAssessment struct {
	Triggers      map[Category][]string `json:"triggers"`
	TotalTriggers int                   `json:"total_triggers"`
	RequiresHuman bool                  `json:"requires_human"`
}

// Matched returns the matched terms for one category.
func (a *NeedAssessment) Matched(c Category) []string {
	return a.Triggers[c]
}

// ValidationRequest is one queued escalation awaiting a human verdict.
type ValidationRequest struct {
	ID         string                `json:"id" gorm:"primaryKey"`
	QueryID    string                `json:"query_id"`
	QueryHash  string                `json:"query_hash" gorm:"index"`
	Type       RequestType           `json:"type"`
	Priority   int                   `json:"priority"`
	Query      string                `json:"query"`
	Response   string                `json:"response,omitempty"`
	Triggers   map[Category][]string `json:"triggers" gorm:"serializer:json"`
	Status     Status                `json:"status" gorm:"index"`
	Notes      string                `json:"notes,omitempty"`
	Validator  string                `json:"validator,omitempty"`
	CreatedAt  time.Time             `json:"created_at"`
	ExpiresAt  time.Time             `json:"expires_at"`
	ResolvedAt time.Time             `json:"resolved_at,omitempty"`
}

// Expired reports whether the request is past its deadline.
func (r *ValidationRequest) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}
