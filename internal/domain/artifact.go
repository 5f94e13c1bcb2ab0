package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// RoastLevel is the closed enumeration of roast levels accepted by the
// canonical schema.
type RoastLevel string

const (
	RoastLight       RoastLevel = "light"
	RoastMediumLight RoastLevel = "medium-light"
	RoastMedium      RoastLevel = "medium"
	RoastMediumDark  RoastLevel = "medium-dark"
	RoastDark        RoastLevel = "dark"
	RoastUnknown     RoastLevel = "unknown"
)

var validRoastLevels = map[RoastLevel]bool{
	RoastLight:       true,
	RoastMediumLight: true,
	RoastMedium:      true,
	RoastMediumDark:  true,
	RoastDark:        true,
	RoastUnknown:     true,
}

// IsValid reports whether r is a recognised roast level.
func (r RoastLevel) IsValid() bool {
	return validRoastLevels[r]
}

// ProcessMethod is the closed enumeration of bean process methods.
type ProcessMethod string

const (
	ProcessWashed    ProcessMethod = "washed"
	ProcessNatural   ProcessMethod = "natural"
	ProcessHoney     ProcessMethod = "honey"
	ProcessAnaerobic ProcessMethod = "anaerobic"
	ProcessOther     ProcessMethod = "other"
)

var validProcessMethods = map[ProcessMethod]bool{
	ProcessWashed:    true,
	ProcessNatural:   true,
	ProcessHoney:     true,
	ProcessAnaerobic: true,
	ProcessOther:     true,
}

// IsValid reports whether p is a recognised process method.
func (p ProcessMethod) IsValid() bool {
	return validProcessMethods[p]
}

// Numeric is a float64 that also accepts JSON numeric strings ("12.50").
// Non-numeric strings fail to unmarshal.
type Numeric float64

// UnmarshalJSON implements json.Unmarshaler.
func (n *Numeric) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) >= 2 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("numeric string %q: %w", s, err)
		}
		*n = Numeric(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*n = Numeric(f)
	return nil
}

// FlexID is a string identifier that also accepts JSON numbers, since some
// platforms serialize product and variant ids numerically.
type FlexID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *FlexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) >= 2 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = FlexID(n.String())
	return nil
}

// Artifact is the canonical, schema-validated representation of one product
// record plus its provenance metadata. This shape is the wire contract between
// the validator and all downstream consumers; evolution is additive only.
type Artifact struct {
	Source           Platform       `json:"source"`
	RoasterDomain    string         `json:"roaster_domain"`
	ScrapedAt        time.Time      `json:"scraped_at"`
	Product          Product        `json:"product"`
	Normalization    Normalization  `json:"normalization"`
	CollectorSignals map[string]any `json:"collector_signals,omitempty"`
	Audit            Audit          `json:"audit"`
}

// Product is the product block of the canonical artifact.
type Product struct {
	PlatformProductID FlexID         `json:"platform_product_id"`
	Title             string         `json:"title,omitempty"`
	Handle            string         `json:"handle,omitempty"`
	Description       string         `json:"description,omitempty"`
	SourceURL         string         `json:"source_url,omitempty"`
	RoastLevel        *RoastLevel    `json:"roast_level,omitempty"`
	ProcessMethod     *ProcessMethod `json:"process_method,omitempty"`
	Variants          []Variant      `json:"variants,omitempty"`
	Images            []Image        `json:"images,omitempty"`
}

// Variant is one purchasable variation of a product.
type Variant struct {
	VariantID FlexID   `json:"variant_id"`
	Title     string   `json:"title,omitempty"`
	Price     *Numeric `json:"price,omitempty"`
	Grams     *Numeric `json:"grams,omitempty"`
	InStock   *bool    `json:"in_stock,omitempty"`
}

// Image is one product image reference.
type Image struct {
	URL string `json:"url"`
	Alt string `json:"alt,omitempty"`
}

// Normalization carries the integrity hashes attached to an artifact.
type Normalization struct {
	ContentHash    string `json:"content_hash"`
	RawPayloadHash string `json:"raw_payload_hash"`
}

// Audit is the compliance block of the canonical artifact. All three fields
// are mandatory and never defaulted.
type Audit struct {
	ArtifactID  string    `json:"artifact_id"`
	CreatedAt   time.Time `json:"created_at"`
	CollectedBy string    `json:"collected_by"`
}

// ComputeContentHash returns the hex SHA-256 of the canonical JSON encoding
// of v. The value is round-tripped through a generic map so key order is
// deterministic regardless of whether the caller holds a struct or a map.
func ComputeContentHash(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal for hashing: %w", err)
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return "", fmt.Errorf("canonicalize for hashing: %w", err)
	}

	canonical, err := json.Marshal(generic)
	if err != nil {
		return "", fmt.Errorf("marshal canonical form: %w", err)
	}

	return HashBytes(canonical), nil
}
