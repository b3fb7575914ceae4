package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/veritas-ai/veritas/types"
)

// Document is one entry in the in-memory store.
type Document struct {
	Name    string
	Content string
}

// MemoryRetriever is a mutex-guarded in-memory document store scored by
// embedding cosine similarity. Index adds documents; Query returns the
// top matches above the score floor, concatenated into one context block.
type MemoryRetriever struct {
	embedder Embedder
	topK     int
	minScore float64
	logger   *zap.Logger

	mu      sync.RWMutex
	docs    []Document
	vectors [][]float32
}

// MemoryRetrieverOption customizes a MemoryRetriever.
type MemoryRetrieverOption func(*MemoryRetriever)

// WithTopK bounds the number of sources returned per query.
func WithTopK(k int) MemoryRetrieverOption {
	return func(r *MemoryRetriever) {
		if k > 0 {
			r.topK = k
		}
	}
}

// WithMinScore drops sources scoring below the floor.
func WithMinScore(score float64) MemoryRetrieverOption {
	return func(r *MemoryRetriever) { r.minScore = score }
}

// NewMemoryRetriever creates an empty in-memory retriever.
func NewMemoryRetriever(embedder Embedder, logger *zap.Logger, opts ...MemoryRetrieverOption) *MemoryRetriever {
	if embedder == nil {
		embedder = NewHashEmbedder(0)
	}
	r := &MemoryRetriever{
		embedder: embedder,
		topK:     5,
		minScore: 0.05,
		logger:   logger.With(zap.String("component", "retrieval")),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var _ Retriever = (*MemoryRetriever)(nil)

// Index adds documents to the store.
func (r *MemoryRetriever) Index(ctx context.Context, docs ...Document) error {
	for _, doc := range docs {
		vec, err := r.embedder.Embed(ctx, doc.Content)
		if err != nil {
			return fmt.Errorf("failed to embed document %q: %w", doc.Name, err)
		}
		r.mu.Lock()
		r.docs = append(r.docs, doc)
		r.vectors = append(r.vectors, vec)
		r.mu.Unlock()
	}
	return nil
}

// Len returns the number of indexed documents.
func (r *MemoryRetriever) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.docs)
}

// Query scores every indexed document against the query text.
func (r *MemoryRetriever) Query(ctx context.Context, text string) (*ContextResult, error) {
	queryVec, err := r.embedder.Embed(ctx, text)
	if err != nil {
		return nil, types.NewError(types.ErrTransient, "failed to embed query").
			WithStage("retrieval").WithRetryable(true).WithCause(err)
	}

	r.mu.RLock()
	scored := make([]Source, 0, len(r.docs))
	for i, doc := range r.docs {
		score := cosine(queryVec, r.vectors[i])
		if score >= r.minScore {
			scored = append(scored, Source{Name: doc.Name, Content: doc.Content, Score: score})
		}
	}
	total := len(scored)
	r.mu.RUnlock()

	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > r.topK {
		scored = scored[:r.topK]
	}

	parts := make([]string, 0, len(scored))
	for i, s := range scored {
		parts = append(parts, fmt.Sprintf("[%d] %s: %s", i+1, s.Name, s.Content))
	}

	r.logger.Debug("retrieval query completed",
		zap.Int("total_results", total),
		zap.Int("returned", len(scored)),
	)

	return &ContextResult{
		Context:      strings.Join(parts, "\n"),
		Sources:      scored,
		TotalResults: total,
	}, nil
}
