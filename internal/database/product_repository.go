package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/gocatalog/internal/domain"
	"github.com/jonesrussell/gocatalog/internal/persist"
)

// ErrProductNotFound is returned when no persisted product exists for a key.
var ErrProductNotFound = errors.New("product not found")

// ProductRepository is the persistence gateway for product records, keyed by
// (roaster_id, platform_product_id).
type ProductRepository struct {
	db *sqlx.DB
}

// NewProductRepository creates a new product repository.
func NewProductRepository(db *sqlx.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// upsertQuery inserts or rewrites a product in one atomic statement. The
// DO UPDATE branch only fires when the content hash changed, so an unchanged
// artifact produces no row and is reported as skipped. first_seen_at comes
// from the artifact's audit created-at and is never touched on update.
const upsertQuery = `
	INSERT INTO products (
		roaster_id, platform_product_id, raw_artifact, content_hash,
		raw_payload_hash, artifact_id, collected_by, collector_signals,
		first_seen_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
	ON CONFLICT (roaster_id, platform_product_id) DO UPDATE SET
		raw_artifact = EXCLUDED.raw_artifact,
		content_hash = EXCLUDED.content_hash,
		raw_payload_hash = EXCLUDED.raw_payload_hash,
		artifact_id = EXCLUDED.artifact_id,
		collected_by = EXCLUDED.collected_by,
		collector_signals = EXCLUDED.collector_signals,
		updated_at = NOW()
	WHERE products.content_hash IS DISTINCT FROM EXCLUDED.content_hash
	RETURNING (xmax = 0) AS inserted, first_seen_at
`

// firstSeenQuery retrieves the first-seen timestamp for the skipped case.
const firstSeenQuery = `
	SELECT first_seen_at FROM products
	WHERE roaster_id = $1 AND platform_product_id = $2
`

// Upsert performs an idempotent insert-or-update of one product record.
// Returns created on first insert, updated when content changed, and
// skipped when the stored content hash already matches. Safe under
// duplicate or out-of-order delivery.
func (r *ProductRepository) Upsert(
	ctx context.Context,
	roasterID string,
	artifact *domain.Artifact,
	extracted *persist.Extraction,
) (*domain.UpsertResult, error) {
	rawArtifact, marshalErr := json.Marshal(artifact)
	if marshalErr != nil {
		return nil, fmt.Errorf("marshal artifact: %w", marshalErr)
	}

	signals, marshalErr := json.Marshal(extracted.CollectorSignals)
	if marshalErr != nil {
		return nil, fmt.Errorf("marshal collector signals: %w", marshalErr)
	}

	productID := string(artifact.Product.PlatformProductID)

	var row struct {
		Inserted    bool         `db:"inserted"`
		FirstSeenAt sql.NullTime `db:"first_seen_at"`
	}

	err := r.db.QueryRowxContext(ctx, upsertQuery,
		roasterID,
		productID,
		rawArtifact,
		extracted.ContentHash,
		extracted.RawPayloadHash,
		extracted.ArtifactID,
		extracted.CollectedBy,
		signals,
		extracted.CreatedAt,
	).StructScan(&row)

	if errors.Is(err, sql.ErrNoRows) {
		// Conflict hit with an unchanged hash: the DO UPDATE predicate
		// suppressed the write.
		return r.skippedResult(ctx, roasterID, productID)
	}
	if err != nil {
		return nil, fmt.Errorf("upsert product: %w", err)
	}

	outcome := domain.UpsertUpdated
	if row.Inserted {
		outcome = domain.UpsertCreated
	}

	return &domain.UpsertResult{
		Outcome:     outcome,
		FirstSeenAt: row.FirstSeenAt.Time,
	}, nil
}

// skippedResult fetches the preserved first-seen timestamp for a no-op upsert.
func (r *ProductRepository) skippedResult(ctx context.Context, roasterID, productID string) (*domain.UpsertResult, error) {
	var firstSeen sql.NullTime
	err := r.db.QueryRowxContext(ctx, firstSeenQuery, roasterID, productID).Scan(&firstSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query first seen: %w", err)
	}

	return &domain.UpsertResult{
		Outcome:     domain.UpsertSkipped,
		FirstSeenAt: firstSeen.Time,
	}, nil
}

// Get retrieves one persisted product by its upsert key.
func (r *ProductRepository) Get(ctx context.Context, roasterID, productID string) (*domain.PersistedProduct, error) {
	query := `
		SELECT roaster_id, platform_product_id, raw_artifact, content_hash,
		       raw_payload_hash, artifact_id, collected_by, collector_signals,
		       first_seen_at, updated_at
		FROM products
		WHERE roaster_id = $1 AND platform_product_id = $2
	`

	var product domain.PersistedProduct
	err := r.db.GetContext(ctx, &product, query, roasterID, productID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}

	return &product, nil
}

// Ping checks database connectivity.
func (r *ProductRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
