package persist

import (
	"errors"
	"testing"
	"time"

	"github.com/jonesrussell/gocatalog/internal/domain"
)

func validArtifact(t *testing.T) *domain.Artifact {
	t.Helper()

	product := domain.Product{
		PlatformProductID: "123",
		Title:             "Kayon Mountain",
	}
	hash, err := domain.ComputeContentHash(product)
	if err != nil {
		t.Fatalf("ComputeContentHash() error = %v", err)
	}

	return &domain.Artifact{
		Source:        domain.PlatformShopify,
		RoasterDomain: "example.com",
		ScrapedAt:     time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
		Product:       product,
		Normalization: domain.Normalization{
			ContentHash:    hash,
			RawPayloadHash: "rawhash",
		},
		CollectorSignals: map[string]any{"page_number": 1},
		Audit: domain.Audit{
			ArtifactID:  "a-1",
			CreatedAt:   time.Date(2026, 3, 1, 8, 0, 1, 0, time.UTC),
			CollectedBy: "gocatalog",
		},
	}
}

func TestExtract_Valid(t *testing.T) {
	t.Parallel()

	artifact := validArtifact(t)
	extracted, err := Extract(artifact)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if extracted.ArtifactID != "a-1" {
		t.Errorf("ArtifactID = %q, want %q", extracted.ArtifactID, "a-1")
	}
	if extracted.CollectedBy != "gocatalog" {
		t.Errorf("CollectedBy = %q, want %q", extracted.CollectedBy, "gocatalog")
	}
	if extracted.ContentHash != artifact.Normalization.ContentHash {
		t.Errorf("ContentHash = %q, want %q", extracted.ContentHash, artifact.Normalization.ContentHash)
	}
	if extracted.RawPayloadHash != "rawhash" {
		t.Errorf("RawPayloadHash = %q, want %q", extracted.RawPayloadHash, "rawhash")
	}
}

func TestExtract_MissingAuditFields(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*domain.Artifact)
		field  string
	}{
		{name: "artifact_id", mutate: func(a *domain.Artifact) { a.Audit.ArtifactID = "" }, field: "artifact_id"},
		{name: "created_at", mutate: func(a *domain.Artifact) { a.Audit.CreatedAt = time.Time{} }, field: "created_at"},
		{name: "collected_by", mutate: func(a *domain.Artifact) { a.Audit.CollectedBy = "" }, field: "collected_by"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			artifact := validArtifact(t)
			tt.mutate(artifact)

			_, err := Extract(artifact)
			if !errors.Is(err, ErrMissingAuditField) {
				t.Fatalf("Extract() error = %v, want ErrMissingAuditField", err)
			}

			var missing *MissingAuditFieldError
			if !errors.As(err, &missing) {
				t.Fatalf("Extract() error type = %T, want *MissingAuditFieldError", err)
			}
			if missing.Field != tt.field {
				t.Errorf("missing field = %q, want %q", missing.Field, tt.field)
			}
		})
	}
}

func TestExtract_HashMismatch(t *testing.T) {
	t.Parallel()

	artifact := validArtifact(t)
	declared := artifact.Normalization.ContentHash
	artifact.Product.Title = "Renamed after hashing"

	_, err := Extract(artifact)
	if !errors.Is(err, ErrHashIntegrity) {
		t.Fatalf("Extract() error = %v, want ErrHashIntegrity", err)
	}

	var mismatch *HashIntegrityError
	if !errors.As(err, &mismatch) {
		t.Fatalf("Extract() error type = %T, want *HashIntegrityError", err)
	}
	if mismatch.Declared != declared {
		t.Errorf("Declared = %q, want %q", mismatch.Declared, declared)
	}
	if mismatch.Computed == declared {
		t.Error("Computed hash unchanged despite content change")
	}
}
