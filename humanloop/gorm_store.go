package humanloop

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/veritas-ai/veritas/types"
)

// GormStore persists validation requests in a relational database so
// the queue survives process restarts.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an existing gorm handle and migrates the schema.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&ValidationRequest{}); err != nil {
		return nil, fmt.Errorf("failed to migrate validation schema: %w", err)
	}
	return &GormStore{db: db}, nil
}

// NewSQLiteStore opens (or creates) a sqlite-backed store at path.
// Use ":memory:" for an ephemeral database.
func NewSQLiteStore(path string) (*GormStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	return NewGormStore(db)
}

var _ Store = (*GormStore)(nil)

func (s *GormStore) Save(ctx context.Context, req *ValidationRequest) error {
	if err := s.db.WithContext(ctx).Create(req).Error; err != nil {
		return fmt.Errorf("failed to save validation request: %w", err)
	}
	return nil
}

func (s *GormStore) Get(ctx context.Context, id string) (*ValidationRequest, error) {
	var req ValidationRequest
	err := s.db.WithContext(ctx).First(&req, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.NewError(types.ErrValidationNotFound, "validation request not found: "+id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load validation request: %w", err)
	}
	return &req, nil
}

func (s *GormStore) Transition(ctx context.Context, req *ValidationRequest, from Status) error {
	// The status predicate makes the check-and-set one statement, so
	// concurrent resolvers cannot both win.
	res := s.db.WithContext(ctx).Model(&ValidationRequest{}).
		Where("id = ? AND status = ?", req.ID, from).
		Updates(map[string]any{
			"status":      req.Status,
			"notes":       req.Notes,
			"validator":   req.Validator,
			"resolved_at": req.ResolvedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update validation request: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		cur, err := s.Get(ctx, req.ID)
		if err != nil {
			return err
		}
		return types.NewError(types.ErrInvalidRequest,
			fmt.Sprintf("validation request %s is no longer %s (status: %s)", req.ID, from, cur.Status))
	}
	return nil
}

func (s *GormStore) ListByStatus(ctx context.Context, status Status, limit int) ([]*ValidationRequest, error) {
	q := s.db.WithContext(ctx).Model(&ValidationRequest{}).
		Order("priority DESC, created_at ASC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var out []*ValidationRequest
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list validation requests: %w", err)
	}
	return out, nil
}
