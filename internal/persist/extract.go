// Package persist extracts the audit and integrity fields a valid artifact
// must carry before it may be handed to the persistence gateway.
package persist

import (
	"errors"
	"fmt"
	"time"

	"github.com/jonesrussell/gocatalog/internal/domain"
)

// Sentinel conditions. Both are non-fatal per artifact: callers route the
// artifact to manual review and continue.
var (
	// ErrMissingAuditField is returned when a mandatory audit field is
	// absent. Audit fields are compliance data and are never defaulted.
	ErrMissingAuditField = errors.New("missing mandatory audit field")
	// ErrHashIntegrity is returned when the recomputed content hash of the
	// product block does not match the artifact's declared hash.
	ErrHashIntegrity = errors.New("content hash integrity check failed")
)

// MissingAuditFieldError reports which mandatory audit field was absent.
type MissingAuditFieldError struct {
	Field string
}

func (e *MissingAuditFieldError) Error() string {
	return fmt.Sprintf("missing mandatory audit field %q", e.Field)
}

func (e *MissingAuditFieldError) Unwrap() error {
	return ErrMissingAuditField
}

// HashIntegrityError reports a declared/computed content hash mismatch.
type HashIntegrityError struct {
	Declared string
	Computed string
}

func (e *HashIntegrityError) Error() string {
	return fmt.Sprintf("content hash mismatch: declared %s, computed %s", e.Declared, e.Computed)
}

func (e *HashIntegrityError) Unwrap() error {
	return ErrHashIntegrity
}

// Extraction holds the audit fields and integrity hashes pulled from a
// valid artifact for persistence.
type Extraction struct {
	ContentHash      string
	RawPayloadHash   string
	ArtifactID       string
	CreatedAt        time.Time
	CollectedBy      string
	CollectorSignals map[string]any
}

// Extract pulls audit fields and hashes from the artifact and verifies the
// declared content hash against a recomputation over the product block.
// Artifacts that fail here are never persisted as if valid.
func Extract(a *domain.Artifact) (*Extraction, error) {
	if a.Audit.ArtifactID == "" {
		return nil, &MissingAuditFieldError{Field: "artifact_id"}
	}
	if a.Audit.CreatedAt.IsZero() {
		return nil, &MissingAuditFieldError{Field: "created_at"}
	}
	if a.Audit.CollectedBy == "" {
		return nil, &MissingAuditFieldError{Field: "collected_by"}
	}

	computed, err := domain.ComputeContentHash(a.Product)
	if err != nil {
		return nil, fmt.Errorf("recompute content hash: %w", err)
	}
	if computed != a.Normalization.ContentHash {
		return nil, &HashIntegrityError{
			Declared: a.Normalization.ContentHash,
			Computed: computed,
		}
	}

	return &Extraction{
		ContentHash:      a.Normalization.ContentHash,
		RawPayloadHash:   a.Normalization.RawPayloadHash,
		ArtifactID:       a.Audit.ArtifactID,
		CreatedAt:        a.Audit.CreatedAt,
		CollectedBy:      a.Audit.CollectedBy,
		CollectorSignals: a.CollectorSignals,
	}, nil
}
