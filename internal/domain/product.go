package domain

import "time"

// UpsertOutcome classifies the result of a product upsert.
type UpsertOutcome string

const (
	// UpsertCreated means a new product record was inserted.
	UpsertCreated UpsertOutcome = "created"
	// UpsertUpdated means an existing record was rewritten with new content.
	UpsertUpdated UpsertOutcome = "updated"
	// UpsertSkipped means the stored content hash matched and nothing changed.
	UpsertSkipped UpsertOutcome = "skipped"
)

// UpsertResult is returned by the persistence gateway for every upsert.
type UpsertResult struct {
	Outcome UpsertOutcome `json:"outcome"`
	// FirstSeenAt is the persisted record's first-seen timestamp. Set on
	// insert from the artifact's audit created-at and never overwritten.
	FirstSeenAt time.Time `json:"first_seen_at"`
}

// PersistedProduct is the destination record keyed by
// (roaster_id, platform_product_id).
type PersistedProduct struct {
	RoasterID         string    `db:"roaster_id"          json:"roaster_id"`
	PlatformProductID string    `db:"platform_product_id" json:"platform_product_id"`
	RawArtifact       []byte    `db:"raw_artifact"        json:"raw_artifact"`
	ContentHash       string    `db:"content_hash"        json:"content_hash"`
	RawPayloadHash    string    `db:"raw_payload_hash"    json:"raw_payload_hash"`
	ArtifactID        string    `db:"artifact_id"         json:"artifact_id"`
	CollectedBy       string    `db:"collected_by"        json:"collected_by"`
	CollectorSignals  []byte    `db:"collector_signals"   json:"collector_signals,omitempty"`
	FirstSeenAt       time.Time `db:"first_seen_at"       json:"first_seen_at"`
	UpdatedAt         time.Time `db:"updated_at"          json:"updated_at"`
}

// ReviewReason classifies why an artifact was routed to manual review.
type ReviewReason string

const (
	// ReviewReasonValidation marks schema validation failures.
	ReviewReasonValidation ReviewReason = "validation"
	// ReviewReasonAudit marks missing mandatory audit fields.
	ReviewReasonAudit ReviewReason = "audit"
	// ReviewReasonIntegrity marks content hash mismatches.
	ReviewReasonIntegrity ReviewReason = "integrity"
	// ReviewReasonPersistence marks storage failures reported by the gateway.
	ReviewReasonPersistence ReviewReason = "persistence"
)

// ReviewItem is one artifact awaiting human inspection.
type ReviewItem struct {
	ID          string       `db:"id"           json:"id"`
	SourceID    string       `db:"source_id"    json:"source_id"`
	RoasterID   string       `db:"roaster_id"   json:"roaster_id"`
	Reason      ReviewReason `db:"reason"       json:"reason"`
	FieldErrors []byte       `db:"field_errors" json:"field_errors,omitempty"`
	Payload     []byte       `db:"payload"      json:"payload,omitempty"`
	CreatedAt   time.Time    `db:"created_at"   json:"created_at"`
}
