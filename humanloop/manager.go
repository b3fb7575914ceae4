package humanloop

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/veritas-ai/veritas/types"
)

// typeBasePriority maps a request type to its starting priority.
var typeBasePriority = map[RequestType]int{
	TypeSafety:           5,
	TypeRegulatory:       4,
	TypeMedical:          3,
	TypeQualityAssurance: 2,
}

// priorityBoostThreshold is the trigger count above which priority is
// bumped by one (capped at 5).
const priorityBoostThreshold = 5

// Manager evaluates escalation triggers and owns the validation queue.
type Manager struct {
	cfg    Config
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

// NewManager creates a human-loop manager. A nil store falls back to
// the in-memory implementation.
func NewManager(cfg Config, store Store, logger *zap.Logger) *Manager {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConfig().TTL
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultConfig().SweepInterval
	}
	if len(cfg.Keywords) == 0 {
		cfg.Keywords = DefaultConfig().Keywords
	}
	if store == nil {
		store = NewMemoryStore()
	}
	return &Manager{
		cfg:    cfg,
		store:  store,
		logger: logger.With(zap.String("component", "human_loop")),
		now:    time.Now,
	}
}

// EvaluateNeed scans the combined query and response text against every
// keyword category. Escalation fires when safety or regulatory terms
// match, when medical terms coincide with complexity terms, or when at
// least three confidence-uncertainty terms match.
func (m *Manager) EvaluateNeed(query, response string) *NeedAssessment {
	text := strings.ToLower(query + " " + response)

	assessment := &NeedAssessment{Triggers: make(map[Category][]string)}
	for _, cat := range []Category{
		CategorySafety, CategoryMedical, CategoryRegulatory,
		CategoryConfidence, CategoryComplexity,
	} {
		var matched []string
		for _, term := range m.cfg.table(cat) {
			if strings.Contains(text, strings.ToLower(term)) {
				matched = append(matched, term)
			}
		}
		if len(matched) > 0 {
			assessment.Triggers[cat] = matched
			assessment.TotalTriggers += len(matched)
		}
	}

	safety := len(assessment.Triggers[CategorySafety]) > 0
	regulatory := len(assessment.Triggers[CategoryRegulatory]) > 0
	medical := len(assessment.Triggers[CategoryMedical]) > 0
	complexity := len(assessment.Triggers[CategoryComplexity]) > 0
	confidenceIssues := len(assessment.Triggers[CategoryConfidence])

	assessment.RequiresHuman = safety || regulatory ||
		(medical && complexity) || confidenceIssues >= 3

	return assessment
}

// requestType picks the dominant category, highest priority first.
func requestType(a *NeedAssessment) RequestType {
	switch {
	case len(a.Triggers[CategorySafety]) > 0:
		return TypeSafety
	case len(a.Triggers[CategoryRegulatory]) > 0:
		return TypeRegulatory
	case len(a.Triggers[CategoryMedical]) > 0:
		return TypeMedical
	default:
		return TypeQualityAssurance
	}
}

// CreateValidationRequest enqueues a pending request for the given
// query/response pair and assessment.
func (m *Manager) CreateValidationRequest(ctx context.Context, query types.Query, response string, assessment *NeedAssessment) (*ValidationRequest, error) {
	reqType := requestType(assessment)
	priority := typeBasePriority[reqType]
	if assessment.TotalTriggers > priorityBoostThreshold && priority < 5 {
		priority++
	}

	now := m.now()
	req := &ValidationRequest{
		ID:        uuid.NewString(),
		QueryID:   query.ID,
		QueryHash: query.NormalizedHash,
		Type:      reqType,
		Priority:  priority,
		Query:     query.Text,
		Response:  response,
		Triggers:  assessment.Triggers,
		Status:    StatusPending,
		CreatedAt: now,
		ExpiresAt: now.Add(m.cfg.TTL),
	}

	if err := m.store.Save(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to enqueue validation request: %w", err)
	}

	m.logger.Info("validation request created",
		zap.String("request_id", req.ID),
		zap.String("type", string(reqType)),
		zap.Int("priority", priority),
		zap.Int("triggers", assessment.TotalTriggers),
	)
	return req, nil
}

// SubmitValidation resolves a pending request with a human decision.
// Requests that already left Pending, including expired ones, are not
// writable.
func (m *Manager) SubmitValidation(ctx context.Context, id string, decision Decision, notes, validator string) error {
	req, err := m.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if req.Status != StatusPending {
		return types.NewError(types.ErrInvalidRequest,
			fmt.Sprintf("validation request %s is no longer pending (status: %s)", id, req.Status))
	}
	if req.Expired(m.now()) {
		// Resolve the race in favor of expiry; the sweep will archive it.
		return types.NewError(types.ErrValidationExpired,
			fmt.Sprintf("validation request %s expired", id))
	}

	switch decision {
	case DecisionApprove:
		req.Status = StatusApproved
	case DecisionModify:
		req.Status = StatusModified
	case DecisionReject:
		req.Status = StatusRejected
	default:
		return types.NewError(types.ErrInvalidRequest, "unknown decision: "+string(decision))
	}

	req.Notes = notes
	req.Validator = validator
	req.ResolvedAt = m.now()

	// The store enforces the Pending precondition; a concurrent
	// resolver that got there first wins and this call fails.
	if err := m.store.Transition(ctx, req, StatusPending); err != nil {
		if types.GetErrorCode(err) == types.ErrInvalidRequest {
			return err
		}
		return fmt.Errorf("failed to record validation decision: %w", err)
	}

	m.logger.Info("validation submitted",
		zap.String("request_id", id),
		zap.String("decision", string(decision)),
		zap.String("validator", validator),
	)
	return nil
}

// Get returns one request by ID.
func (m *Manager) Get(ctx context.Context, id string) (*ValidationRequest, error) {
	return m.store.Get(ctx, id)
}

// PendingRequests lists the pending queue, highest priority first.
func (m *Manager) PendingRequests(ctx context.Context) ([]*ValidationRequest, error) {
	return m.store.ListByStatus(ctx, StatusPending, 0)
}

// History lists resolved and expired requests.
func (m *Manager) History(ctx context.Context, limit int) ([]*ValidationRequest, error) {
	all, err := m.store.ListByStatus(ctx, "", 0)
	if err != nil {
		return nil, err
	}
	out := make([]*ValidationRequest, 0, len(all))
	for _, req := range all {
		if req.Status != StatusPending {
			out = append(out, req)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// SweepExpired archives every pending request past its deadline and
// returns how many were moved. Errors on individual requests are
// logged, not propagated; the sweep never blocks request processing.
func (m *Manager) SweepExpired(ctx context.Context) int {
	pending, err := m.store.ListByStatus(ctx, StatusPending, 0)
	if err != nil {
		m.logger.Warn("expiry sweep failed to list pending requests", zap.Error(err))
		return 0
	}

	now := m.now()
	moved := 0
	for _, req := range pending {
		if !req.Expired(now) {
			continue
		}
		req.Status = StatusExpired
		req.ResolvedAt = now
		if err := m.store.Transition(ctx, req, StatusPending); err != nil {
			// A validator resolving the request mid-sweep is fine.
			if types.GetErrorCode(err) == types.ErrInvalidRequest {
				continue
			}
			m.logger.Warn("failed to expire validation request",
				zap.String("request_id", req.ID), zap.Error(err))
			continue
		}
		moved++
	}

	if moved > 0 {
		m.logger.Info("expired validation requests archived", zap.Int("count", moved))
	}
	return moved
}

// StartSweeper runs the expiry sweep on the configured interval until
// the context is cancelled.
func (m *Manager) StartSweeper(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(m.cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.SweepExpired(ctx)
			}
		}
	}()
}
