package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/gocatalog/internal/domain"
)

// ErrSourceNotFound is returned when no source exists for an id.
var ErrSourceNotFound = errors.New("source not found")

// sourceSelectColumns lists columns for SELECT queries on sources.
const sourceSelectColumns = `id, roaster_id, name, base_url, platform, products_path,
	allowed, enabled, last_contact_at, created_at, updated_at`

// SourceRepository reads the per-store fetch configuration table.
type SourceRepository struct {
	db *sqlx.DB
}

// NewSourceRepository creates a new source repository.
func NewSourceRepository(db *sqlx.DB) *SourceRepository {
	return &SourceRepository{db: db}
}

// ListEnabled returns every enabled source, ordered by name for stable
// cycle logs.
func (r *SourceRepository) ListEnabled(ctx context.Context) ([]domain.Source, error) {
	query := `SELECT ` + sourceSelectColumns + ` FROM sources WHERE enabled = true ORDER BY name`

	var sources []domain.Source
	if err := r.db.SelectContext(ctx, &sources, query); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	return sources, nil
}

// List returns every source regardless of enabled state.
func (r *SourceRepository) List(ctx context.Context) ([]domain.Source, error) {
	query := `SELECT ` + sourceSelectColumns + ` FROM sources ORDER BY name`

	var sources []domain.Source
	if err := r.db.SelectContext(ctx, &sources, query); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	return sources, nil
}

// GetByID retrieves one source.
func (r *SourceRepository) GetByID(ctx context.Context, id string) (*domain.Source, error) {
	query := `SELECT ` + sourceSelectColumns + ` FROM sources WHERE id = $1`

	var source domain.Source
	err := r.db.GetContext(ctx, &source, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSourceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query source: %w", err)
	}

	return &source, nil
}

// UpdateLastContact records a successful fetch cycle for the source.
func (r *SourceRepository) UpdateLastContact(ctx context.Context, id string) error {
	query := `UPDATE sources SET last_contact_at = NOW(), updated_at = NOW() WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("update last contact: %w", err)
	}

	rows, rowsErr := result.RowsAffected()
	if rowsErr != nil {
		return fmt.Errorf("rows affected: %w", rowsErr)
	}
	if rows == 0 {
		return ErrSourceNotFound
	}

	return nil
}
