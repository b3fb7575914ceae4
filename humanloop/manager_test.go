package humanloop

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/veritas-ai/veritas/types"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(DefaultConfig(), NewMemoryStore(), zap.NewNop())
}

func testQuery(text string) types.Query {
	return types.NewQuery(text, "", nil)
}

func TestEvaluateNeed_NoTriggers(t *testing.T) {
	m := newTestManager(t)

	a := m.EvaluateNeed("what year was the telescope invented", "the telescope was invented in 1608")
	assert.False(t, a.RequiresHuman)
	assert.Zero(t, a.TotalTriggers)
	assert.Empty(t, a.Triggers)
}

func TestEvaluateNeed_SafetyTriggers(t *testing.T) {
	m := newTestManager(t)

	a := m.EvaluateNeed("is this compound toxic to humans", "")
	assert.True(t, a.RequiresHuman)
	assert.Contains(t, a.Matched(CategorySafety), "toxic")
}

func TestEvaluateNeed_RegulatoryTriggers(t *testing.T) {
	m := newTestManager(t)

	a := m.EvaluateNeed("does this device need fda approval", "")
	assert.True(t, a.RequiresHuman)
	assert.NotEmpty(t, a.Matched(CategoryRegulatory))
}

func TestEvaluateNeed_MedicalAloneDoesNotEscalate(t *testing.T) {
	m := newTestManager(t)

	a := m.EvaluateNeed("what is the standard treatment protocol", "")
	assert.NotEmpty(t, a.Matched(CategoryMedical))
	assert.False(t, a.RequiresHuman)
}

func TestEvaluateNeed_MedicalPlusComplexityEscalates(t *testing.T) {
	m := newTestManager(t)

	a := m.EvaluateNeed("treatment options given a known drug interaction", "")
	assert.NotEmpty(t, a.Matched(CategoryMedical))
	assert.NotEmpty(t, a.Matched(CategoryComplexity))
	assert.True(t, a.RequiresHuman)
}

func TestEvaluateNeed_ConfidenceThreshold(t *testing.T) {
	m := newTestManager(t)

	// Two uncertainty terms stay below the threshold.
	a := m.EvaluateNeed("", "the answer is possibly correct but unclear")
	assert.Len(t, a.Matched(CategoryConfidence), 2)
	assert.False(t, a.RequiresHuman)

	// Three terms cross it.
	a = m.EvaluateNeed("", "possibly correct, though unclear and uncertain")
	assert.GreaterOrEqual(t, len(a.Matched(CategoryConfidence)), 3)
	assert.True(t, a.RequiresHuman)
}

func TestCreateValidationRequest_TypeAndPriority(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	// Safety wins over medical terms appearing alongside it.
	a := m.EvaluateNeed("is this dosage toxic", "")
	req, err := m.CreateValidationRequest(ctx, testQuery("is this dosage toxic"), "", a)
	require.NoError(t, err)
	assert.Equal(t, TypeSafety, req.Type)
	assert.Equal(t, 5, req.Priority)
	assert.Equal(t, StatusPending, req.Status)
	assert.True(t, req.ExpiresAt.After(req.CreatedAt))

	// Medical-only assessment maps to the medical type at base priority.
	a = m.EvaluateNeed("treatment with a drug interaction", "")
	req, err = m.CreateValidationRequest(ctx, testQuery("q"), "", a)
	require.NoError(t, err)
	assert.Equal(t, TypeMedical, req.Type)
	assert.Equal(t, 3, req.Priority)
}

func TestCreateValidationRequest_PriorityBoost(t *testing.T) {
	m := newTestManager(t)

	// Six medical/complexity trigger hits bump the base priority by one.
	text := "diagnosis treatment dosage prescription symptom interaction"
	a := m.EvaluateNeed(text, "")
	require.Greater(t, a.TotalTriggers, priorityBoostThreshold)

	req, err := m.CreateValidationRequest(context.Background(), testQuery(text), "", a)
	require.NoError(t, err)
	assert.Equal(t, TypeMedical, req.Type)
	assert.Equal(t, 4, req.Priority)
}

func TestSubmitValidation(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	a := m.EvaluateNeed("toxic compound", "")
	req, err := m.CreateValidationRequest(ctx, testQuery("toxic compound"), "answer", a)
	require.NoError(t, err)

	require.NoError(t, m.SubmitValidation(ctx, req.ID, DecisionApprove, "looks fine", "reviewer-1"))

	got, err := m.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, got.Status)
	assert.Equal(t, "reviewer-1", got.Validator)
	assert.False(t, got.ResolvedAt.IsZero())

	// Status transitions are one-way.
	err = m.SubmitValidation(ctx, req.ID, DecisionReject, "", "reviewer-2")
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidRequest, types.GetErrorCode(err))

	pending, err := m.PendingRequests(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	history, err := m.History(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestSubmitValidation_UnknownID(t *testing.T) {
	m := newTestManager(t)
	err := m.SubmitValidation(context.Background(), "missing", DecisionApprove, "", "")
	require.Error(t, err)
	assert.Equal(t, types.ErrValidationNotFound, types.GetErrorCode(err))
}

// rendezvousStore holds every Get until the expected number of readers
// has arrived, forcing concurrent submissions to all observe the
// request as pending before any write lands.
type rendezvousStore struct {
	Store
	gate chan struct{}
	left atomic.Int32
}

func (s *rendezvousStore) Get(ctx context.Context, id string) (*ValidationRequest, error) {
	req, err := s.Store.Get(ctx, id)
	if s.left.Add(-1) == 0 {
		close(s.gate)
	}
	<-s.gate
	return req, err
}

func TestSubmitValidation_ConcurrentResolversOneWins(t *testing.T) {
	store := &rendezvousStore{Store: NewMemoryStore(), gate: make(chan struct{})}
	store.left.Store(2)
	m := NewManager(DefaultConfig(), store, zap.NewNop())
	ctx := context.Background()

	a := m.EvaluateNeed("toxic compound", "")
	req, err := m.CreateValidationRequest(ctx, testQuery("toxic compound"), "answer", a)
	require.NoError(t, err)

	errs := make(chan error, 2)
	go func() { errs <- m.SubmitValidation(ctx, req.ID, DecisionApprove, "", "reviewer-1") }()
	go func() { errs <- m.SubmitValidation(ctx, req.ID, DecisionReject, "", "reviewer-2") }()

	failures := 0
	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			failures++
			assert.Equal(t, types.ErrInvalidRequest, types.GetErrorCode(err))
		}
	}
	assert.Equal(t, 1, failures, "exactly one resolver loses")

	// The stored verdict belongs to the winner; the loser changed nothing.
	got, err := m.Get(ctx, req.ID)
	require.NoError(t, err)
	switch got.Status {
	case StatusApproved:
		assert.Equal(t, "reviewer-1", got.Validator)
	case StatusRejected:
		assert.Equal(t, "reviewer-2", got.Validator)
	default:
		t.Fatalf("request left pending in unexpected status %s", got.Status)
	}

	history, err := m.History(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestSweepExpired(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TTL = time.Hour
	m := NewManager(cfg, NewMemoryStore(), zap.NewNop())
	ctx := context.Background()

	a := m.EvaluateNeed("toxic compound", "")
	req, err := m.CreateValidationRequest(ctx, testQuery("toxic compound"), "", a)
	require.NoError(t, err)

	// Advance the clock past the deadline.
	m.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	moved := m.SweepExpired(ctx)
	assert.Equal(t, 1, moved)

	got, err := m.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, got.Status)

	// Expired requests reject late submissions.
	err = m.SubmitValidation(ctx, req.ID, DecisionApprove, "", "late-reviewer")
	require.Error(t, err)

	// A second sweep finds nothing.
	assert.Zero(t, m.SweepExpired(ctx))
}

func TestPendingRequests_PriorityOrder(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	qa := m.EvaluateNeed("possibly unclear and uncertain result", "")
	_, err := m.CreateValidationRequest(ctx, testQuery("q1"), "", qa)
	require.NoError(t, err)

	safety := m.EvaluateNeed("lethal dose question", "")
	safetyReq, err := m.CreateValidationRequest(ctx, testQuery("q2"), "", safety)
	require.NoError(t, err)

	pending, err := m.PendingRequests(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, safetyReq.ID, pending[0].ID)
}
