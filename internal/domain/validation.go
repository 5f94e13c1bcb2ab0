package domain

// ValidationStatus is the outcome classification of a validation pass.
type ValidationStatus string

const (
	// ValidationValid means the payload conforms to the canonical schema.
	ValidationValid ValidationStatus = "valid"
	// ValidationInvalid means the payload failed one or more schema checks.
	ValidationInvalid ValidationStatus = "invalid"
)

// FieldError is a single itemized validation failure.
type FieldError struct {
	// Path is the dotted field path, e.g. "product.platform_product_id".
	Path string `json:"path"`
	// Message is a human-readable description of the failure.
	Message string `json:"message"`
}

// ValidationResult is produced once per raw product record and is immutable
// after creation. Artifact is set only when Status is valid; Errors only
// when it is invalid.
type ValidationResult struct {
	Status   ValidationStatus `json:"status"`
	Artifact *Artifact        `json:"artifact,omitempty"`
	Errors   []FieldError     `json:"errors,omitempty"`
}

// Valid reports whether the result carries a schema-compliant artifact.
func (r *ValidationResult) Valid() bool {
	return r.Status == ValidationValid
}
