package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/veritas-ai/veritas/types"
)

// ErrCacheMiss indicates the key is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

// IsCacheMiss reports whether an error is a cache miss.
func IsCacheMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}

// Store maps a normalized query hash to a previously computed result
// for a bounded time window.
type Store interface {
	Get(ctx context.Context, key string) (*types.Result, error)
	Set(ctx context.Context, key string, result *types.Result, ttl time.Duration) error
	Len(ctx context.Context) (int, error)
	Close() error
}

// entry is one in-memory cache slot.
type entry struct {
	result     types.Result
	insertedAt time.Time
	ttl        time.Duration
}

func (e *entry) expired(now time.Time) bool {
	return now.Sub(e.insertedAt) >= e.ttl
}

// MemoryStore is a mutex-guarded map with expiry on access: expired
// entries are treated as absent and evicted by the Get that finds them.
type MemoryStore struct {
	mu         sync.Mutex
	entries    map[string]*entry
	defaultTTL time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

// NewMemoryStore creates an in-memory store. defaultTTL applies when
// Set is called with ttl <= 0.
func NewMemoryStore(defaultTTL time.Duration, logger *zap.Logger) *MemoryStore {
	if defaultTTL <= 0 {
		defaultTTL = time.Hour
	}
	return &MemoryStore{
		entries:    make(map[string]*entry),
		defaultTTL: defaultTTL,
		logger:     logger.With(zap.String("component", "cache")),
		now:        time.Now,
	}
}

var _ Store = (*MemoryStore)(nil)

// Get returns the stored result while it is fresh; an expired entry is
// evicted and reported as a miss.
func (s *MemoryStore) Get(_ context.Context, key string) (*types.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	if e.expired(s.now()) {
		delete(s.entries, key)
		return nil, ErrCacheMiss
	}

	result := e.result
	return &result, nil
}

// Set overwrites the slot unconditionally.
func (s *MemoryStore) Set(_ context.Context, key string, result *types.Result, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = &entry{
		result:     *result,
		insertedAt: s.now(),
		ttl:        ttl,
	}
	return nil
}

// Len counts live entries.
func (s *MemoryStore) Len(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries), nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }
