package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/gocatalog/internal/domain"
)

// defaultReviewLimit caps List when the caller passes no limit.
const defaultReviewLimit = 100

// ReviewRepository is the manual-review sink: artifacts that fail
// validation, audit, or integrity checks land here for human inspection.
type ReviewRepository struct {
	db *sqlx.DB
}

// NewReviewRepository creates a new review repository.
func NewReviewRepository(db *sqlx.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// Insert records one artifact for manual review. Assigns the id and
// created-at timestamp.
func (r *ReviewRepository) Insert(ctx context.Context, item *domain.ReviewItem) error {
	item.ID = uuid.New().String()
	item.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO manual_review (id, source_id, roaster_id, reason, field_errors, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		item.ID,
		item.SourceID,
		item.RoasterID,
		string(item.Reason),
		item.FieldErrors,
		item.Payload,
		item.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert review item: %w", err)
	}

	return nil
}

// List returns the most recent review items, newest first.
func (r *ReviewRepository) List(ctx context.Context, limit int) ([]domain.ReviewItem, error) {
	if limit <= 0 {
		limit = defaultReviewLimit
	}

	query := `
		SELECT id, source_id, roaster_id, reason, field_errors, payload, created_at
		FROM manual_review
		ORDER BY created_at DESC
		LIMIT $1
	`

	var items []domain.ReviewItem
	if err := r.db.SelectContext(ctx, &items, query, limit); err != nil {
		return nil, fmt.Errorf("list review items: %w", err)
	}

	return items, nil
}
