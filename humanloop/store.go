package humanloop

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/veritas-ai/veritas/types"
)

// Store persists validation requests. Implementations must be safe for
// concurrent use.
type Store interface {
	Save(ctx context.Context, req *ValidationRequest) error
	Get(ctx context.Context, id string) (*ValidationRequest, error)
	// Transition writes req only while the stored status still equals
	// from, keeping status changes one-way under concurrent resolvers.
	// A stale precondition fails with ErrInvalidRequest.
	Transition(ctx context.Context, req *ValidationRequest, from Status) error
	ListByStatus(ctx context.Context, status Status, limit int) ([]*ValidationRequest, error)
}

// MemoryStore is a mutex-guarded in-memory Store.
type MemoryStore struct {
	mu       sync.RWMutex
	requests map[string]*ValidationRequest
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{requests: make(map[string]*ValidationRequest)}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) Save(_ context.Context, req *ValidationRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *req
	s.requests[req.ID] = &cp
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*ValidationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[id]
	if !ok {
		return nil, types.NewError(types.ErrValidationNotFound, "validation request not found: "+id)
	}
	cp := *req
	return &cp, nil
}

func (s *MemoryStore) Transition(_ context.Context, req *ValidationRequest, from Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.requests[req.ID]
	if !ok {
		return types.NewError(types.ErrValidationNotFound, "validation request not found: "+req.ID)
	}
	if cur.Status != from {
		return types.NewError(types.ErrInvalidRequest,
			fmt.Sprintf("validation request %s is no longer %s (status: %s)", req.ID, from, cur.Status))
	}
	cp := *req
	s.requests[req.ID] = &cp
	return nil
}

func (s *MemoryStore) ListByStatus(_ context.Context, status Status, limit int) ([]*ValidationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*ValidationRequest, 0)
	for _, req := range s.requests {
		if status == "" || req.Status == status {
			cp := *req
			out = append(out, &cp)
		}
	}

	// Highest priority first, then oldest first.
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
