// Package orchestrator is the composition root of the pipeline. It
// drives one query through Retrieval, Generate, Verify, the consensus
// policy, the bounded reform loop, human escalation, and optional
// translation, recording every step on a workflow instance.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/veritas-ai/veritas/agents"
	"github.com/veritas-ai/veritas/consensus"
	"github.com/veritas-ai/veritas/humanloop"
	"github.com/veritas-ai/veritas/internal/cache"
	"github.com/veritas-ai/veritas/internal/metrics"
	"github.com/veritas-ai/veritas/internal/retry"
	"github.com/veritas-ai/veritas/retrieval"
	"github.com/veritas-ai/veritas/types"
	"github.com/veritas-ai/veritas/workflow"
)

// noContextMarker replaces retrieved context when the retrieval budget
// is exhausted. Generation continues with this marker so the request
// still reaches a terminal state.
const noContextMarker = "no context available"

// ethicalFallbackAnswer is the fixed refusal returned when the overall
// request deadline elapses. A partial or unverified answer is never
// returned in its place.
const ethicalFallbackAnswer = "I cannot provide a reliable answer to this question right now. " +
	"No verified response could be produced within the allowed time, and an unverified " +
	"answer will not be substituted. Please retry or consult a qualified source."

// Config holds the orchestration knobs.
type Config struct {
	// Reform loop bound
	MaxIterations int
	// Human-loop escalation toggle (service-wide; requests can opt out)
	HumanLoopEnabled bool
	// Per-stage deadlines
	RetrievalTimeout    time.Duration
	GenerationTimeout   time.Duration
	VerificationTimeout time.Duration
	TranslationTimeout  time.Duration
	// Overall request deadline
	RequestTimeout time.Duration
	// Total retrieval attempts
	RetrievalRetries int
	// Result cache TTL
	CacheTTL time.Duration
	// Workflow history bound
	HistorySize int
}

// DefaultConfig returns the default orchestration knobs.
func DefaultConfig() Config {
	return Config{
		MaxIterations:       3,
		HumanLoopEnabled:    true,
		RetrievalTimeout:    15 * time.Second,
		GenerationTimeout:   20 * time.Second,
		VerificationTimeout: 10 * time.Second,
		TranslationTimeout:  10 * time.Second,
		RequestTimeout:      60 * time.Second,
		RetrievalRetries:    3,
		CacheTTL:            time.Hour,
		HistorySize:         100,
	}
}

// Deps are the orchestrator's collaborators. Agent and Retriever are
// required; Cache, HumanLoop, Metrics, and Detector fall back to
// defaults when nil.
type Deps struct {
	Agent     agents.Client
	Retriever retrieval.Retriever
	Cache     cache.Store
	HumanLoop *humanloop.Manager
	Metrics   *metrics.Collector
	Detector  types.LanguageDetector

	// RetryPolicy overrides the retrieval backoff policy. MaxRetries is
	// always derived from Config.RetrievalRetries.
	RetryPolicy *retry.Policy
}

// Options are per-request knobs.
type Options struct {
	EnableHumanLoop bool
	TargetLanguage  string
}

// Orchestrator executes the pipeline for incoming queries. It is safe
// for concurrent use; every agent and retrieval call is issued without
// holding any lock on shared state.
type Orchestrator struct {
	cfg       Config
	agent     agents.Client
	retriever retrieval.Retriever
	consensus *consensus.Manager
	humanLoop *humanloop.Manager
	cache     cache.Store
	retryer   *retry.Retryer
	metrics   *metrics.Collector
	history   *workflow.History
	detector  types.LanguageDetector
	logger    *zap.Logger

	// inflight collapses concurrent executions of equivalent queries
	// onto one pipeline run per normalized hash.
	inflight singleflight.Group
}

// New creates an orchestrator.
func New(cfg Config, deps Deps, logger *zap.Logger) (*Orchestrator, error) {
	if deps.Agent == nil {
		return nil, errors.New("orchestrator: agent client is required")
	}
	if deps.Retriever == nil {
		return nil, errors.New("orchestrator: retriever is required")
	}
	def := DefaultConfig()
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = def.MaxIterations
	}
	if cfg.RetrievalTimeout <= 0 {
		cfg.RetrievalTimeout = def.RetrievalTimeout
	}
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = def.GenerationTimeout
	}
	if cfg.VerificationTimeout <= 0 {
		cfg.VerificationTimeout = def.VerificationTimeout
	}
	if cfg.TranslationTimeout <= 0 {
		cfg.TranslationTimeout = def.TranslationTimeout
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}
	if cfg.RetrievalRetries <= 0 {
		cfg.RetrievalRetries = def.RetrievalRetries
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = def.CacheTTL
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = def.HistorySize
	}

	if deps.Cache == nil {
		deps.Cache = cache.NewMemoryStore(cfg.CacheTTL, logger)
	}
	if deps.Metrics == nil {
		// A private registry keeps repeated construction from colliding
		// on the globally registered vectors.
		deps.Metrics = metrics.NewCollectorWith("veritas", prometheus.NewRegistry(), logger)
	}
	if deps.Detector == nil {
		deps.Detector = types.DefaultLanguageDetector()
	}

	// RetrievalRetries counts total attempts; the retryer counts
	// retries after the first attempt.
	policy := deps.RetryPolicy
	if policy == nil {
		policy = retry.DefaultPolicy()
	}
	policy.MaxRetries = cfg.RetrievalRetries - 1

	return &Orchestrator{
		cfg:       cfg,
		agent:     deps.Agent,
		retriever: deps.Retriever,
		consensus: consensus.NewManager(cfg.MaxIterations),
		humanLoop: deps.HumanLoop,
		cache:     deps.Cache,
		retryer:   retry.New(policy, logger),
		metrics:   deps.Metrics,
		history:   workflow.NewHistory(cfg.HistorySize),
		detector:  deps.Detector,
		logger:    logger.With(zap.String("component", "orchestrator")),
	}, nil
}

// History exposes the bounded workflow history for external surfaces.
func (o *Orchestrator) History() *workflow.History { return o.history }

// Process runs the pipeline for one query. Concurrent calls with
// equivalent (normalized) text share one execution. Process always
// returns a Result; stage failures surface as Result.Success=false
// rather than an error.
func (o *Orchestrator) Process(ctx context.Context, text string, opts Options) (*types.Result, error) {
	query := types.NewQuery(text, opts.TargetLanguage, o.detector)

	v, err, shared := o.inflight.Do(query.NormalizedHash, func() (any, error) {
		return o.run(ctx, query, opts), nil
	})
	if err != nil {
		return nil, err
	}
	res := v.(*types.Result)
	if shared {
		cp := *res
		res = &cp
	}
	return res, nil
}

// run executes the full pipeline for one query.
func (o *Orchestrator) run(ctx context.Context, query types.Query, opts Options) *types.Result {
	start := time.Now()
	log := o.logger.With(
		zap.String("query_id", query.ID),
		zap.String("query_hash", query.NormalizedHash),
	)

	if cached, err := o.cache.Get(ctx, query.NormalizedHash); err == nil {
		o.metrics.RecordCacheHit()
		log.Debug("cache hit")
		cp := *cached
		cp.FromCache = true
		return &cp
	} else if !cache.IsCacheMiss(err) {
		log.Warn("cache read failed", zap.Error(err))
	}
	o.metrics.RecordCacheMiss()

	ctx, cancel := context.WithTimeout(ctx, o.cfg.RequestTimeout)
	defer cancel()

	inst := workflow.NewInstance(query.NormalizedHash)
	defer o.history.Add(inst)

	humanLoopOn := opts.EnableHumanLoop && o.cfg.HumanLoopEnabled && o.humanLoop != nil
	var agentWorkflow []string

	// Escalation check on the original query. When it fires, the
	// pipeline goes straight to pending validation; no agent call runs
	// for this round.
	if humanLoopOn {
		if assessment := o.humanLoop.EvaluateNeed(query.Text, ""); assessment.RequiresHuman {
			return o.escalate(ctx, inst, query, "", assessment, agentWorkflow, start, log)
		}
	}

	// Retrieval. The only stage that retries; on budget exhaustion the
	// pipeline continues with the no-context marker.
	retrievalStart := time.Now()
	contextText, sources, retrieveErr := o.retrieve(ctx, query.Text)
	if retrieveErr != nil {
		if ctx.Err() != nil {
			o.metrics.RecordStage("retrieval", "error", time.Since(retrievalStart))
			return o.ethicalFallback(inst, query, agentWorkflow, start, log)
		}
		o.metrics.RecordStage("retrieval", "error", time.Since(retrievalStart))
		log.Warn("retrieval budget exhausted, continuing without context", zap.Error(retrieveErr))
		contextText = noContextMarker
		sources = nil
	} else {
		o.metrics.RecordStage("retrieval", "ok", time.Since(retrievalStart))
	}
	agentWorkflow = append(agentWorkflow, "retrieval")
	o.step(inst, workflow.StateContextRetrieved, "context_retrieved", map[string]any{
		"sources":  len(sources),
		"fallback": retrieveErr != nil,
	})

	// Generation. Not retried; failure is terminal.
	generated, err := o.generate(ctx, query.Text, contextText)
	if err != nil {
		if ctx.Err() != nil {
			return o.ethicalFallback(inst, query, agentWorkflow, start, log)
		}
		return o.fail(inst, query, agentWorkflow, start, "generation failed", err, log)
	}
	agentWorkflow = append(agentWorkflow, "generate")
	o.step(inst, workflow.StateResponseGenerated, "response_generated", nil)

	// Verify, evaluate, reform loop. Iteration numbers verify rounds
	// starting at 1; the loop cannot exceed the configured bound.
	response := generated.Text
	iteration := 1
	var verified *agents.Verified
	var decision *consensus.Decision
	for {
		verified, err = o.verify(ctx, query.Text, contextText, response)
		if err != nil {
			if ctx.Err() != nil {
				return o.ethicalFallback(inst, query, agentWorkflow, start, log)
			}
			return o.fail(inst, query, agentWorkflow, start, "verification failed", err, log)
		}
		agentWorkflow = append(agentWorkflow, "verify")
		o.step(inst, workflow.StateResponseVerified, "response_verified", map[string]any{
			"vote":       string(verified.Vote),
			"confidence": verified.Confidence,
			"iteration":  iteration,
		})

		decision = o.consensus.Evaluate(verified, iteration, humanLoopOn)
		o.metrics.RecordConsensus(string(decision.Decision), string(decision.Level))
		log.Debug("consensus evaluated",
			zap.String("decision", string(decision.Decision)),
			zap.String("level", string(decision.Level)),
			zap.Int("iteration", iteration),
		)

		if !o.consensus.ShouldRetry(iteration, decision.Decision) {
			break
		}

		reformed, rerr := o.reform(ctx, query.Text, contextText, response, decision.Reasoning, verified)
		if rerr != nil {
			if ctx.Err() != nil {
				return o.ethicalFallback(inst, query, agentWorkflow, start, log)
			}
			return o.fail(inst, query, agentWorkflow, start, "reform failed", rerr, log)
		}
		agentWorkflow = append(agentWorkflow, "reform")
		o.step(inst, workflow.StateResponseReformed, "response_reformed", map[string]any{
			"iteration": iteration,
		})
		response = reformed.Text
		iteration++
	}

	switch decision.Decision {
	case consensus.DecisionReject:
		o.step(inst, workflow.StateFailed, "rejected", map[string]any{"reason": decision.Reasoning})
		result := o.baseResult(query, agentWorkflow, start)
		result.Outcome = types.OutcomeFailed
		result.ErrorReason = decision.Reasoning
		result.Confidence = verified.Confidence
		result.Consensus = "rejected"
		if decision.Level != consensus.LevelRejected {
			result.Consensus = "max_iterations"
		}
		result.Iteration = iteration
		o.metrics.RecordPipeline(string(types.OutcomeFailed), time.Since(start), inst.Iterations())
		log.Info("pipeline rejected the response", zap.String("reason", decision.Reasoning))
		return result

	case consensus.DecisionHumanReview:
		o.step(inst, workflow.StateHumanValidation, "human_validation", map[string]any{
			"reason": decision.Reasoning,
		})
		assessment := o.assess(query.Text, response, humanLoopOn)
		res := o.escalate(ctx, inst, query, response, assessment, agentWorkflow, start, log)
		res.Confidence = verified.Confidence
		res.Iteration = iteration
		res.Consensus = "human_review"
		return res
	}

	// Approved.
	o.step(inst, workflow.StateConsensusReached, "consensus_reached", map[string]any{
		"level":     string(decision.Level),
		"iteration": iteration,
	})
	consensusTag := "approved"
	if iteration > 1 {
		consensusTag = "reformed_approved"
	}

	// Final scan of the accepted answer. Safety terms in the response
	// text escalate even after approval.
	if humanLoopOn {
		if assessment := o.humanLoop.EvaluateNeed(query.Text, response); assessment.RequiresHuman {
			o.step(inst, workflow.StateHumanValidation, "human_validation", map[string]any{
				"triggers": assessment.TotalTriggers,
			})
			res := o.escalate(ctx, inst, query, response, assessment, agentWorkflow, start, log)
			res.Confidence = verified.Confidence
			res.Iteration = iteration
			res.Consensus = consensusTag
			return res
		}
	}

	result := o.baseResult(query, agentWorkflow, start)
	result.Answer = response
	result.Sources = toSourceRefs(sources)
	result.Confidence = verified.Confidence
	result.Consensus = consensusTag
	result.Iteration = iteration
	result.Outcome = types.OutcomeCompleted
	result.Success = true

	// The accepted answer is fixed; the cache write and the optional
	// translation run concurrently.
	needTranslate := query.TargetLanguage != "" && query.TargetLanguage != query.DetectedLanguage
	var translated *agents.Translated
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cached := *result
		cached.AgentWorkflow = append([]string(nil), result.AgentWorkflow...)
		cached.CachedAt = time.Now()
		cached.ProcessingTime = time.Since(start)
		if err := o.cache.Set(ctx, query.NormalizedHash, &cached, o.cfg.CacheTTL); err != nil {
			log.Warn("cache write failed", zap.Error(err))
		}
		return nil
	})
	if needTranslate {
		g.Go(func() error {
			sctx, scancel := context.WithTimeout(gctx, o.cfg.TranslationTimeout)
			defer scancel()
			stageStart := time.Now()
			t, terr := o.agent.Translate(sctx, agents.TranslateInput{
				Text:           response,
				Context:        contextText,
				SourceLanguage: query.DetectedLanguage,
				TargetLanguage: query.TargetLanguage,
			})
			o.recordStage("translate", stageStart, terr)
			if terr != nil {
				return terr
			}
			translated = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return o.ethicalFallback(inst, query, agentWorkflow, start, log)
		}
		return o.fail(inst, query, agentWorkflow, start, "translation failed", err, log)
	}

	if needTranslate {
		result.Answer = translated.Text
		result.AgentWorkflow = append(result.AgentWorkflow, "translate")
		o.step(inst, workflow.StateTranslationCompleted, "translation_completed", map[string]any{
			"target_language": query.TargetLanguage,
		})
	}
	o.step(inst, workflow.StateCompleted, "completed", nil)
	result.AgentWorkflow = append([]string(nil), result.AgentWorkflow...)
	result.ProcessingTime = time.Since(start)
	o.metrics.RecordPipeline(string(types.OutcomeCompleted), result.ProcessingTime, inst.Iterations())
	log.Info("pipeline completed",
		zap.String("consensus", consensusTag),
		zap.Int("iteration", iteration),
		zap.Duration("processing_time", result.ProcessingTime),
	)
	return result
}

// retrieve runs the retrieval stage with its per-attempt deadline and
// the bounded retry policy.
func (o *Orchestrator) retrieve(ctx context.Context, text string) (string, []retrieval.Source, error) {
	var out *retrieval.ContextResult
	err := o.retryer.Do(ctx, func() error {
		sctx, cancel := context.WithTimeout(ctx, o.cfg.RetrievalTimeout)
		defer cancel()
		r, err := o.retriever.Query(sctx, text)
		if err != nil {
			// Per-attempt timeouts are transient unless the overall
			// deadline is gone.
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				return types.NewError(types.ErrTransient, "retrieval attempt timed out").
					WithCause(err).WithRetryable(true)
			}
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		return "", nil, err
	}
	return out.Context, out.Sources, nil
}

func (o *Orchestrator) generate(ctx context.Context, query, contextText string) (*agents.Generated, error) {
	sctx, cancel := context.WithTimeout(ctx, o.cfg.GenerationTimeout)
	defer cancel()
	start := time.Now()
	g, err := o.agent.Generate(sctx, agents.GenerateInput{Query: query, Context: contextText})
	o.recordStage("generate", start, err)
	return g, err
}

func (o *Orchestrator) verify(ctx context.Context, query, contextText, response string) (*agents.Verified, error) {
	sctx, cancel := context.WithTimeout(ctx, o.cfg.VerificationTimeout)
	defer cancel()
	start := time.Now()
	v, err := o.agent.Verify(sctx, agents.VerifyInput{Query: query, Context: contextText, Response: response})
	o.recordStage("verify", start, err)
	return v, err
}

func (o *Orchestrator) reform(ctx context.Context, query, contextText, response, reasoning string, verified *agents.Verified) (*agents.Reformed, error) {
	sctx, cancel := context.WithTimeout(ctx, o.cfg.GenerationTimeout)
	defer cancel()
	start := time.Now()
	r, err := o.agent.Reform(sctx, agents.ReformInput{
		Query:            query,
		Context:          contextText,
		Response:         response,
		VerifierAnalysis: verifierAnalysis(reasoning, verified),
	})
	o.recordStage("reform", start, err)
	return r, err
}

// verifierAnalysis folds the consensus reasoning and the verifier's
// findings into one brief for the reform call.
func verifierAnalysis(reasoning string, v *agents.Verified) string {
	analysis := reasoning
	if len(v.Issues) > 0 {
		analysis += fmt.Sprintf("; issues: %v", v.Issues)
	}
	if len(v.SafetyConcerns) > 0 {
		analysis += fmt.Sprintf("; safety concerns: %v", v.SafetyConcerns)
	}
	return analysis
}

// assess returns a need assessment for escalation bookkeeping. The
// consensus policy can demand review on confidence alone, in which case
// the keyword scan finds nothing and the request files as quality
// assurance.
func (o *Orchestrator) assess(query, response string, humanLoopOn bool) *humanloop.NeedAssessment {
	if humanLoopOn {
		return o.humanLoop.EvaluateNeed(query, response)
	}
	return &humanloop.NeedAssessment{Triggers: map[humanloop.Category][]string{}}
}

// escalate enqueues a validation request and returns the pending result.
func (o *Orchestrator) escalate(ctx context.Context, inst *workflow.Instance, query types.Query, response string, assessment *humanloop.NeedAssessment, agentWorkflow []string, start time.Time, log *zap.Logger) *types.Result {
	result := o.baseResult(query, agentWorkflow, start)
	result.Answer = response
	result.Outcome = types.OutcomePendingHumanValidation
	result.HumanValidationRequired = true

	req, err := o.humanLoop.CreateValidationRequest(ctx, query, response, assessment)
	if err != nil {
		log.Error("failed to enqueue validation request", zap.Error(err))
		o.step(inst, workflow.StateFailed, "validation_enqueue_failed", nil)
		result.Outcome = types.OutcomeFailed
		result.HumanValidationRequired = false
		result.ErrorReason = "failed to enqueue validation request"
		o.metrics.RecordPipeline(string(types.OutcomeFailed), time.Since(start), inst.Iterations())
		return result
	}
	result.ValidationRequestID = req.ID
	o.metrics.RecordValidationCreated(string(req.Type))
	o.metrics.RecordPipeline(string(types.OutcomePendingHumanValidation), time.Since(start), inst.Iterations())
	log.Info("pipeline pending human validation",
		zap.String("request_id", req.ID),
		zap.String("request_type", string(req.Type)),
		zap.Int("priority", req.Priority),
	)
	return result
}

// fail marks the request terminally failed.
func (o *Orchestrator) fail(inst *workflow.Instance, query types.Query, agentWorkflow []string, start time.Time, reason string, err error, log *zap.Logger) *types.Result {
	o.step(inst, workflow.StateFailed, "failed", map[string]any{"reason": reason})
	result := o.baseResult(query, agentWorkflow, start)
	result.Outcome = types.OutcomeFailed
	result.ErrorReason = reason + ": " + err.Error()
	o.metrics.RecordPipeline(string(types.OutcomeFailed), time.Since(start), inst.Iterations())
	log.Error("pipeline failed", zap.String("stage_error", reason), zap.Error(err))
	return result
}

// ethicalFallback returns the fixed refusal for an expired overall
// deadline.
func (o *Orchestrator) ethicalFallback(inst *workflow.Instance, query types.Query, agentWorkflow []string, start time.Time, log *zap.Logger) *types.Result {
	o.step(inst, workflow.StateFailed, "deadline_exceeded", nil)
	result := o.baseResult(query, agentWorkflow, start)
	result.Answer = ethicalFallbackAnswer
	result.Outcome = types.OutcomeEthicalFallback
	result.ErrorReason = "request deadline exceeded"
	o.metrics.RecordPipeline(string(types.OutcomeEthicalFallback), time.Since(start), inst.Iterations())
	log.Warn("request deadline exceeded, returning fallback")
	return result
}

// baseResult seeds the fields every outcome shares.
func (o *Orchestrator) baseResult(query types.Query, agentWorkflow []string, start time.Time) *types.Result {
	return &types.Result{
		QueryID:        query.ID,
		QueryHash:      query.NormalizedHash,
		AgentWorkflow:  append([]string(nil), agentWorkflow...),
		ProcessingTime: time.Since(start),
	}
}

// step applies a workflow transition. An illegal edge is a programming
// error; it is logged and the pipeline continues.
func (o *Orchestrator) step(inst *workflow.Instance, to workflow.State, name string, data map[string]any) {
	if err := inst.Transition(to, name, data); err != nil {
		o.logger.Error("workflow transition rejected",
			zap.String("instance_id", inst.ID()),
			zap.String("from", string(inst.State())),
			zap.String("to", string(to)),
			zap.Error(err),
		)
	}
}

func (o *Orchestrator) recordStage(stage string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	o.metrics.RecordStage(stage, status, time.Since(start))
}

func toSourceRefs(sources []retrieval.Source) []types.SourceRef {
	if len(sources) == 0 {
		return nil
	}
	out := make([]types.SourceRef, len(sources))
	for i, s := range sources {
		out[i] = types.SourceRef{Name: s.Name, Content: s.Content, Score: s.Score}
	}
	return out
}
