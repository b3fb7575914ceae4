package humanloop

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/veritas-ai/veritas/types"
)

func newSQLiteStore(t *testing.T) *GormStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	return store
}

func sampleRequest(id string, priority int) *ValidationRequest {
	now := time.Now()
	return &ValidationRequest{
		ID:        id,
		QueryID:   "query-" + id,
		QueryHash: "hash-" + id,
		Type:      TypeSafety,
		Priority:  priority,
		Query:     "is this toxic",
		Triggers:  map[Category][]string{CategorySafety: {"toxic"}},
		Status:    StatusPending,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
}

func TestGormStore_SaveAndGet(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	req := sampleRequest("req-1", 5)
	require.NoError(t, store.Save(ctx, req))

	got, err := store.Get(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, req.QueryHash, got.QueryHash)
	assert.Equal(t, StatusPending, got.Status)
	assert.Equal(t, []string{"toxic"}, got.Triggers[CategorySafety])
}

func TestGormStore_GetMissing(t *testing.T) {
	store := newSQLiteStore(t)

	_, err := store.Get(context.Background(), "nope")
	require.Error(t, err)
	assert.Equal(t, types.ErrValidationNotFound, types.GetErrorCode(err))
}

func TestGormStore_Transition(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	req := sampleRequest("req-1", 5)
	require.NoError(t, store.Save(ctx, req))

	req.Status = StatusApproved
	req.Validator = "reviewer-1"
	req.ResolvedAt = time.Now()
	require.NoError(t, store.Transition(ctx, req, StatusPending))

	got, err := store.Get(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, got.Status)
	assert.Equal(t, "reviewer-1", got.Validator)

	missing := sampleRequest("ghost", 1)
	err = store.Transition(ctx, missing, StatusPending)
	require.Error(t, err)
	assert.Equal(t, types.ErrValidationNotFound, types.GetErrorCode(err))
}

func TestGormStore_TransitionStalePrecondition(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	req := sampleRequest("req-1", 5)
	require.NoError(t, store.Save(ctx, req))

	first := *req
	first.Status = StatusApproved
	first.Validator = "reviewer-1"
	first.ResolvedAt = time.Now()
	require.NoError(t, store.Transition(ctx, &first, StatusPending))

	second := *req
	second.Status = StatusRejected
	second.Validator = "reviewer-2"
	second.ResolvedAt = time.Now()
	err := store.Transition(ctx, &second, StatusPending)
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidRequest, types.GetErrorCode(err))

	got, err := store.Get(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, got.Status)
	assert.Equal(t, "reviewer-1", got.Validator)
}

func TestGormStore_ListByStatus(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	low := sampleRequest("req-low", 2)
	high := sampleRequest("req-high", 5)
	resolved := sampleRequest("req-done", 4)
	resolved.Status = StatusRejected

	for _, r := range []*ValidationRequest{low, high, resolved} {
		require.NoError(t, store.Save(ctx, r))
	}

	pending, err := store.ListByStatus(ctx, StatusPending, 0)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "req-high", pending[0].ID)

	all, err := store.ListByStatus(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	limited, err := store.ListByStatus(ctx, StatusPending, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestManager_WithGormStore(t *testing.T) {
	m := NewManager(DefaultConfig(), newSQLiteStore(t), zap.NewNop())
	ctx := context.Background()

	a := m.EvaluateNeed("lethal compound handling", "")
	require.True(t, a.RequiresHuman)

	req, err := m.CreateValidationRequest(ctx, testQuery("lethal compound handling"), "", a)
	require.NoError(t, err)

	require.NoError(t, m.SubmitValidation(ctx, req.ID, DecisionModify, "tightened wording", "reviewer-2"))

	got, err := m.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusModified, got.Status)
}
