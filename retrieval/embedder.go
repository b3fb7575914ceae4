package retrieval

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// hashEmbedder maps tokens into a fixed number of buckets via feature
// hashing and L2-normalizes the result. It gives stable, cheap vectors
// whose cosine similarity tracks token overlap. Not a semantic model.
type hashEmbedder struct {
	dim int
}

// NewHashEmbedder creates a feature-hashing embedder with the given
// dimensionality (defaults to 256 when dim <= 0).
func NewHashEmbedder(dim int) Embedder {
	if dim <= 0 {
		dim = 256
	}
	return &hashEmbedder{dim: dim}
}

func (e *hashEmbedder) Dimension() int { return e.dim }

func (e *hashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dim)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		tok = strings.Trim(tok, ".,!?;:\"'()")
		if tok == "" {
			continue
		}
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		vec[h.Sum32()%uint32(e.dim)]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec, nil
}

// cosine computes the cosine similarity of two vectors of equal
// length. Vectors that are not unit length are normalized here.
func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
