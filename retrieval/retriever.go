package retrieval

import "context"

// Source is one retrieved document with its relevance score.
type Source struct {
	Name    string  `json:"name"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// ContextResult is the supporting material returned for a query.
type ContextResult struct {
	Context      string   `json:"context"`
	Sources      []Source `json:"sources"`
	TotalResults int      `json:"total_results"`
}

// Retriever fetches supporting context for a query. Failures carry
// types.ErrTransient so the orchestrator's retry policy applies.
type Retriever interface {
	Query(ctx context.Context, text string) (*ContextResult, error)
}

// Embedder turns text into a fixed-length feature vector. The default
// hash embedder exists for development and tests only; production
// deployments plug in a real embedding backend.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}
