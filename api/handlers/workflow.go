package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/veritas-ai/veritas/types"
	"github.com/veritas-ai/veritas/workflow"
)

// WorkflowHandler exposes the bounded workflow history.
type WorkflowHandler struct {
	history *workflow.History
	logger  *zap.Logger
}

// NewWorkflowHandler creates a workflow handler.
func NewWorkflowHandler(history *workflow.History, logger *zap.Logger) *WorkflowHandler {
	return &WorkflowHandler{
		history: history,
		logger:  logger.With(zap.String("handler", "workflow")),
	}
}

// HandleRecent serves GET /v1/workflows: the most recent instances,
// newest first.
func (h *WorkflowHandler) HandleRecent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrInvalidRequest,
			"method not allowed", h.logger)
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest,
				"limit must be a positive integer", h.logger)
			return
		}
		limit = n
	}

	snapshots := h.history.Recent(limit)
	WriteSuccess(w, map[string]any{
		"workflows": snapshots,
		"count":     len(snapshots),
	})
}

// HandleGet serves GET /v1/workflows/{id}.
func (h *WorkflowHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrInvalidRequest,
			"method not allowed", h.logger)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/workflows/")
	if id == "" || strings.Contains(id, "/") {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest,
			"workflow instance id is required", h.logger)
		return
	}

	snapshot, ok := h.history.Get(id)
	if !ok {
		WriteErrorMessage(w, http.StatusNotFound, types.ErrInvalidRequest,
			"workflow instance not found: "+id, h.logger)
		return
	}
	WriteSuccess(w, snapshot)
}
