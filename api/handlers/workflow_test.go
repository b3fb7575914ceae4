package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/veritas-ai/veritas/workflow"
)

func newWorkflowFixture(t *testing.T) (*WorkflowHandler, *workflow.Instance) {
	t.Helper()
	history := workflow.NewHistory(10)
	inst := workflow.NewInstance("hash-1")
	require.NoError(t, inst.Transition(workflow.StateContextRetrieved, "context_retrieved", nil))
	history.Add(inst)
	return NewWorkflowHandler(history, zap.NewNop()), inst
}

func TestWorkflowHandler_Recent(t *testing.T) {
	h, inst := newWorkflowFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/workflows", nil)
	rec := httptest.NewRecorder()
	h.HandleRecent(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), inst.ID())
	assert.Contains(t, rec.Body.String(), "context_retrieved")
}

func TestWorkflowHandler_RecentBadLimit(t *testing.T) {
	h, _ := newWorkflowFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/workflows?limit=-1", nil)
	rec := httptest.NewRecorder()
	h.HandleRecent(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWorkflowHandler_Get(t *testing.T) {
	h, inst := newWorkflowFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/workflows/"+inst.ID(), nil)
	rec := httptest.NewRecorder()
	h.HandleGet(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "hash-1")
}

func TestWorkflowHandler_GetNotFound(t *testing.T) {
	h, _ := newWorkflowFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/workflows/missing", nil)
	rec := httptest.NewRecorder()
	h.HandleGet(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
