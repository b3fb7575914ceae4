package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/veritas-ai/veritas/humanloop"
	"github.com/veritas-ai/veritas/internal/metrics"
	"github.com/veritas-ai/veritas/types"
)

// ValidationSubmission is the payload for resolving a pending request.
type ValidationSubmission struct {
	ResponseID string `json:"response_id"`
	Decision   string `json:"decision"`
	Notes      string `json:"notes,omitempty"`
	Validator  string `json:"validator,omitempty"`
}

// ValidationHandler serves the human validation queue.
type ValidationHandler struct {
	manager *humanloop.Manager
	metrics *metrics.Collector
	logger  *zap.Logger
}

// NewValidationHandler creates a validation handler.
func NewValidationHandler(manager *humanloop.Manager, collector *metrics.Collector, logger *zap.Logger) *ValidationHandler {
	return &ValidationHandler{
		manager: manager,
		metrics: collector,
		logger:  logger.With(zap.String("handler", "validation")),
	}
}

// HandleQueue serves GET /v1/validations: the pending queue, highest
// priority first.
func (h *ValidationHandler) HandleQueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrInvalidRequest,
			"method not allowed", h.logger)
		return
	}

	pending, err := h.manager.PendingRequests(r.Context())
	if err != nil {
		WriteError(w, types.NewError(types.ErrInternalError, "failed to list pending validations").
			WithCause(err), h.logger)
		return
	}
	WriteSuccess(w, map[string]any{
		"pending": pending,
		"count":   len(pending),
	})
}

// HandleHistory serves GET /v1/validations/history.
func (h *ValidationHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrInvalidRequest,
			"method not allowed", h.logger)
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest,
				"limit must be a positive integer", h.logger)
			return
		}
		limit = n
	}

	history, err := h.manager.History(r.Context(), limit)
	if err != nil {
		WriteError(w, types.NewError(types.ErrInternalError, "failed to list validation history").
			WithCause(err), h.logger)
		return
	}
	WriteSuccess(w, map[string]any{
		"history": history,
		"count":   len(history),
	})
}

// HandleGet serves GET /v1/validations/{id}.
func (h *ValidationHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrInvalidRequest,
			"method not allowed", h.logger)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/validations/")
	if id == "" || strings.Contains(id, "/") {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest,
			"validation request id is required", h.logger)
		return
	}

	req, err := h.manager.Get(r.Context(), id)
	if err != nil {
		h.writeManagerError(w, err)
		return
	}
	WriteSuccess(w, req)
}

// HandleSubmit serves POST /v1/validations/submit: a human decision on
// a pending request.
func (h *ValidationHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrInvalidRequest,
			"method not allowed", h.logger)
		return
	}

	var sub ValidationSubmission
	if err := DecodeJSONBody(w, r, &sub, h.logger); err != nil {
		return
	}
	if sub.ResponseID == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest,
			"response_id is required", h.logger)
		return
	}

	var decision humanloop.Decision
	switch sub.Decision {
	case string(humanloop.DecisionApprove):
		decision = humanloop.DecisionApprove
	case string(humanloop.DecisionModify):
		decision = humanloop.DecisionModify
	case string(humanloop.DecisionReject):
		decision = humanloop.DecisionReject
	default:
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest,
			"decision must be approve, modify, or reject", h.logger)
		return
	}

	if err := h.manager.SubmitValidation(r.Context(), sub.ResponseID, decision, sub.Notes, sub.Validator); err != nil {
		h.writeManagerError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.RecordValidationResolved(sub.Decision)
	}
	WriteSuccess(w, map[string]any{"resolved": sub.ResponseID})
}

func (h *ValidationHandler) writeManagerError(w http.ResponseWriter, err error) {
	if typed, ok := err.(*types.Error); ok {
		WriteError(w, typed, h.logger)
		return
	}
	WriteError(w, types.NewError(types.ErrInternalError, "validation store failure").
		WithCause(err), h.logger)
}
