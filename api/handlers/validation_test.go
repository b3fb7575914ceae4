package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/veritas-ai/veritas/humanloop"
	"github.com/veritas-ai/veritas/types"
)

func newValidationFixture(t *testing.T) (*ValidationHandler, *humanloop.Manager, *humanloop.ValidationRequest) {
	t.Helper()
	logger := zap.NewNop()
	manager := humanloop.NewManager(humanloop.Config{}, nil, logger)

	query := types.NewQuery("is this dosage of the drug a lethal overdose", "", nil)
	assessment := manager.EvaluateNeed(query.Text, "")
	require.True(t, assessment.RequiresHuman)
	req, err := manager.CreateValidationRequest(context.Background(), query, "draft answer", assessment)
	require.NoError(t, err)

	return NewValidationHandler(manager, nil, logger), manager, req
}

func TestValidationHandler_Queue(t *testing.T) {
	h, _, created := newValidationFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/validations", nil)
	rec := httptest.NewRecorder()
	h.HandleQueue(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), created.ID)
	assert.Contains(t, rec.Body.String(), `"count":1`)
}

func TestValidationHandler_Get(t *testing.T) {
	h, _, created := newValidationFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/validations/"+created.ID, nil)
	rec := httptest.NewRecorder()
	h.HandleGet(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
}

func TestValidationHandler_GetNotFound(t *testing.T) {
	h, _, _ := newValidationFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/validations/nope", nil)
	rec := httptest.NewRecorder()
	h.HandleGet(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestValidationHandler_Submit(t *testing.T) {
	h, manager, created := newValidationFixture(t)

	body := fmt.Sprintf(`{"response_id":%q,"decision":"approve","notes":"checked","validator":"reviewer-1"}`, created.ID)
	req := httptest.NewRequest(http.MethodPost, "/v1/validations/submit", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.HandleSubmit(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	resolved, err := manager.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, humanloop.StatusApproved, resolved.Status)
	assert.Equal(t, "reviewer-1", resolved.Validator)
}

func TestValidationHandler_SubmitTwiceConflicts(t *testing.T) {
	h, _, created := newValidationFixture(t)

	body := fmt.Sprintf(`{"response_id":%q,"decision":"reject"}`, created.ID)
	req := httptest.NewRequest(http.MethodPost, "/v1/validations/submit", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.HandleSubmit(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/v1/validations/submit", strings.NewReader(body))
	rec = httptest.NewRecorder()
	h.HandleSubmit(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestValidationHandler_SubmitBadDecision(t *testing.T) {
	h, _, created := newValidationFixture(t)

	body := fmt.Sprintf(`{"response_id":%q,"decision":"escalate"}`, created.ID)
	req := httptest.NewRequest(http.MethodPost, "/v1/validations/submit", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.HandleSubmit(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestValidationHandler_History(t *testing.T) {
	h, manager, created := newValidationFixture(t)

	require.NoError(t, manager.SubmitValidation(context.Background(),
		created.ID, humanloop.DecisionModify, "edited", "reviewer-2"))

	req := httptest.NewRequest(http.MethodGet, "/v1/validations/history", nil)
	rec := httptest.NewRecorder()
	h.HandleHistory(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), created.ID)
}

func TestValidationHandler_HistoryBadLimit(t *testing.T) {
	h, _, _ := newValidationFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/validations/history?limit=abc", nil)
	rec := httptest.NewRecorder()
	h.HandleHistory(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
