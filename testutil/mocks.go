package testutil

import (
	"context"
	"sync"

	"github.com/veritas-ai/veritas/agents"
	"github.com/veritas-ai/veritas/retrieval"
	"github.com/veritas-ai/veritas/types"
)

// MockAgent is a scripted agents.Client. Each capability returns either a
// queued response (consumed in order) or the static fallback. Calls are
// counted so tests can assert how far the pipeline progressed.
type MockAgent struct {
	mu sync.Mutex

	GenerateFunc  func(ctx context.Context, in agents.GenerateInput) (*agents.Generated, error)
	VerifyFunc    func(ctx context.Context, in agents.VerifyInput) (*agents.Verified, error)
	ReformFunc    func(ctx context.Context, in agents.ReformInput) (*agents.Reformed, error)
	TranslateFunc func(ctx context.Context, in agents.TranslateInput) (*agents.Translated, error)

	// VerifyQueue is consumed one result per Verify call before
	// VerifyFunc or the default is consulted.
	VerifyQueue []*agents.Verified

	GenerateCalls  int
	VerifyCalls    int
	ReformCalls    int
	TranslateCalls int
}

// NewApprovingAgent returns a mock whose verifier approves everything
// with high confidence.
func NewApprovingAgent() *MockAgent {
	return &MockAgent{
		VerifyFunc: func(context.Context, agents.VerifyInput) (*agents.Verified, error) {
			return &agents.Verified{Vote: agents.VoteApprove, Confidence: 0.95}, nil
		},
	}
}

func (m *MockAgent) Generate(ctx context.Context, in agents.GenerateInput) (*agents.Generated, error) {
	m.mu.Lock()
	m.GenerateCalls++
	fn := m.GenerateFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, in)
	}
	return &agents.Generated{Text: "generated answer for: " + in.Query}, nil
}

func (m *MockAgent) Verify(ctx context.Context, in agents.VerifyInput) (*agents.Verified, error) {
	m.mu.Lock()
	m.VerifyCalls++
	var queued *agents.Verified
	if len(m.VerifyQueue) > 0 {
		queued = m.VerifyQueue[0]
		m.VerifyQueue = m.VerifyQueue[1:]
	}
	fn := m.VerifyFunc
	m.mu.Unlock()
	if queued != nil {
		return queued, nil
	}
	if fn != nil {
		return fn(ctx, in)
	}
	return &agents.Verified{Vote: agents.VoteApprove, Confidence: 0.9}, nil
}

func (m *MockAgent) Reform(ctx context.Context, in agents.ReformInput) (*agents.Reformed, error) {
	m.mu.Lock()
	m.ReformCalls++
	fn := m.ReformFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, in)
	}
	return &agents.Reformed{Text: "reformed: " + in.Response}, nil
}

func (m *MockAgent) Translate(ctx context.Context, in agents.TranslateInput) (*agents.Translated, error) {
	m.mu.Lock()
	m.TranslateCalls++
	fn := m.TranslateFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, in)
	}
	return &agents.Translated{Text: "[" + in.TargetLanguage + "] " + in.Text}, nil
}

// Calls returns a snapshot of the per-capability call counts.
func (m *MockAgent) Calls() (generate, verify, reform, translate int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.GenerateCalls, m.VerifyCalls, m.ReformCalls, m.TranslateCalls
}

// MockRetriever is a scripted retrieval.Retriever. FailCount makes the
// first N calls fail with a transient error, which exercises the retry
// policy.
type MockRetriever struct {
	mu sync.Mutex

	Result    *retrieval.ContextResult
	Err       error
	FailCount int
	QueryFunc func(ctx context.Context, text string) (*retrieval.ContextResult, error)

	calls int
}

func (m *MockRetriever) Query(ctx context.Context, text string) (*retrieval.ContextResult, error) {
	m.mu.Lock()
	m.calls++
	n := m.calls
	fn := m.QueryFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, text)
	}
	if n <= m.FailCount {
		return nil, types.NewError(types.ErrTransient, "retrieval backend unavailable").WithRetryable(true)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Result != nil {
		return m.Result, nil
	}
	return &retrieval.ContextResult{
		Context:      "[1] docs: context for " + text,
		Sources:      []retrieval.Source{{Name: "docs", Content: "context for " + text, Score: 0.8}},
		TotalResults: 1,
	}, nil
}

// QueryCalls returns the number of Query invocations so far.
func (m *MockRetriever) QueryCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
