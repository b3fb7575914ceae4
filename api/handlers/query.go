package handlers

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/veritas-ai/veritas/orchestrator"
	"github.com/veritas-ai/veritas/types"
)

// maxQueryLength bounds the accepted query text.
const maxQueryLength = 8192

// QueryRequest is the submission payload.
type QueryRequest struct {
	Query           string `json:"query"`
	EnableHumanLoop bool   `json:"enable_human_loop"`
	TargetLanguage  string `json:"target_language,omitempty"`
}

// QueryResponse is the submission result.
type QueryResponse struct {
	QueryID                 string            `json:"query_id"`
	Answer                  string            `json:"answer"`
	Sources                 []types.SourceRef `json:"sources,omitempty"`
	Confidence              float64           `json:"confidence"`
	Consensus               string            `json:"consensus,omitempty"`
	Iteration               int               `json:"iteration"`
	Outcome                 string            `json:"outcome"`
	Success                 bool              `json:"success"`
	ErrorReason             string            `json:"error_reason,omitempty"`
	HumanValidationRequired bool              `json:"human_validation_required"`
	ValidationRequestID     string            `json:"validation_request_id,omitempty"`
	AgentWorkflow           []string          `json:"agent_workflow,omitempty"`
	ProcessingTimeSeconds   float64           `json:"processing_time_seconds"`
	FromCache               bool              `json:"from_cache"`
}

// QueryHandler serves query submission.
type QueryHandler struct {
	pipeline *orchestrator.Orchestrator
	logger   *zap.Logger
}

// NewQueryHandler creates a query handler.
func NewQueryHandler(pipeline *orchestrator.Orchestrator, logger *zap.Logger) *QueryHandler {
	return &QueryHandler{
		pipeline: pipeline,
		logger:   logger.With(zap.String("handler", "query")),
	}
}

// HandleSubmit serves POST /v1/query.
func (h *QueryHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrInvalidRequest,
			"method not allowed", h.logger)
		return
	}

	var req QueryRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest,
			"query must not be empty", h.logger)
		return
	}
	if len(req.Query) > maxQueryLength {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest,
			"query exceeds maximum length", h.logger)
		return
	}

	result, err := h.pipeline.Process(r.Context(), req.Query, orchestrator.Options{
		EnableHumanLoop: req.EnableHumanLoop,
		TargetLanguage:  req.TargetLanguage,
	})
	if err != nil {
		WriteError(w, types.NewError(types.ErrInternalError, "pipeline execution failed").
			WithCause(err), h.logger)
		return
	}

	WriteSuccess(w, toQueryResponse(result))
}

func toQueryResponse(res *types.Result) QueryResponse {
	return QueryResponse{
		QueryID:                 res.QueryID,
		Answer:                  res.Answer,
		Sources:                 res.Sources,
		Confidence:              res.Confidence,
		Consensus:               res.Consensus,
		Iteration:               res.Iteration,
		Outcome:                 string(res.Outcome),
		Success:                 res.Success,
		ErrorReason:             res.ErrorReason,
		HumanValidationRequired: res.HumanValidationRequired,
		ValidationRequestID:     res.ValidationRequestID,
		AgentWorkflow:           res.AgentWorkflow,
		ProcessingTimeSeconds:   float64(res.ProcessingTime) / float64(time.Second),
		FromCache:               res.FromCache,
	}
}
