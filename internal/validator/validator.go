// Package validator enforces the canonical artifact schema: required-field
// presence, enum membership, numeric coercion, and null-handling for
// optional fields.
package validator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/jonesrussell/gocatalog/internal/domain"
)

// parseErrorPath is the field path reported when the payload is not
// valid JSON at all.
const parseErrorPath = "$"

// Validator validates raw product records against the canonical artifact
// schema. Stateless and safe for concurrent use.
type Validator struct{}

// New creates a validator.
func New() *Validator {
	return &Validator{}
}

// Validate parses a raw payload into the canonical artifact shape and
// returns a result carrying either the artifact or every field-level error
// found in one pass. It never panics; parse failures convert to an invalid
// result with a single error.
func (v *Validator) Validate(payload []byte) *domain.ValidationResult {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return invalid(domain.FieldError{
			Path:    parseErrorPath,
			Message: fmt.Sprintf("payload is not a JSON object: %v", err),
		})
	}

	c := &checker{}
	c.checkRoot(raw)
	if len(c.errs) > 0 {
		return invalid(c.errs...)
	}

	var artifact domain.Artifact
	if err := json.Unmarshal(payload, &artifact); err != nil {
		return invalid(domain.FieldError{
			Path:    parseErrorPath,
			Message: fmt.Sprintf("decode artifact: %v", err),
		})
	}

	return &domain.ValidationResult{
		Status:   domain.ValidationValid,
		Artifact: &artifact,
	}
}

func invalid(errs ...domain.FieldError) *domain.ValidationResult {
	return &domain.ValidationResult{
		Status: domain.ValidationInvalid,
		Errors: errs,
	}
}

// checker accumulates every field error found in a single validation pass.
type checker struct {
	errs []domain.FieldError
}

func (c *checker) addError(path, format string, args ...any) {
	c.errs = append(c.errs, domain.FieldError{
		Path:    path,
		Message: fmt.Sprintf(format, args...),
	})
}

// checkRoot validates the top-level artifact fields in schema order.
func (c *checker) checkRoot(raw map[string]any) {
	if src, ok := c.requireString(raw, "source"); ok {
		if !domain.Platform(src).IsValid() {
			c.addError("source", "unknown source platform %q", src)
		}
	}

	c.requireString(raw, "roaster_domain")

	if ts, ok := c.requireString(raw, "scraped_at"); ok {
		if _, err := time.Parse(time.RFC3339, ts); err != nil {
			c.addError("scraped_at", "not an RFC3339 timestamp: %q", ts)
		}
	}

	product, ok := raw["product"]
	if !ok || product == nil {
		c.addError("product", "required field is missing")
	} else if obj, isObj := product.(map[string]any); isObj {
		c.checkProduct(obj)
	} else {
		c.addError("product", "expected an object")
	}

	c.checkOptionalObject(raw, "normalization", c.checkNormalization)
	c.checkOptionalObject(raw, "collector_signals", nil)
	c.checkOptionalObject(raw, "audit", nil)
}

// checkProduct validates the product block.
func (c *checker) checkProduct(product map[string]any) {
	id, ok := product["platform_product_id"]
	if !ok || id == nil {
		c.addError("product.platform_product_id", "required field is missing")
	} else if s, isStr := coerceID(id); !isStr || s == "" {
		c.addError("product.platform_product_id", "expected a non-empty string or number")
	}

	for _, field := range []string{"title", "handle", "description", "source_url"} {
		c.optionalString(product, "product."+field, field)
	}

	if roast, present := c.optionalString(product, "product.roast_level", "roast_level"); present {
		if !domain.RoastLevel(roast).IsValid() {
			c.addError("product.roast_level", "unknown roast level %q", roast)
		}
	}

	if process, present := c.optionalString(product, "product.process_method", "process_method"); present {
		if !domain.ProcessMethod(process).IsValid() {
			c.addError("product.process_method", "unknown process method %q", process)
		}
	}

	c.checkVariants(product)
	c.checkImages(product)
}

// checkVariants validates each element of product.variants.
func (c *checker) checkVariants(product map[string]any) {
	rawVariants, ok := product["variants"]
	if !ok || rawVariants == nil {
		return
	}

	variants, isList := rawVariants.([]any)
	if !isList {
		c.addError("product.variants", "expected an array")
		return
	}

	for i, rawVariant := range variants {
		path := "product.variants." + strconv.Itoa(i)

		variant, isObj := rawVariant.(map[string]any)
		if !isObj {
			c.addError(path, "expected an object")
			continue
		}

		vid, present := variant["variant_id"]
		if !present || vid == nil {
			c.addError(path+".variant_id", "required field is missing")
		} else if s, isID := coerceID(vid); !isID || s == "" {
			c.addError(path+".variant_id", "expected a non-empty string or number")
		}

		c.optionalNumeric(variant, path+".price", "price")
		c.optionalNumeric(variant, path+".grams", "grams")

		if stock, has := variant["in_stock"]; has && stock != nil {
			if _, isBool := stock.(bool); !isBool {
				c.addError(path+".in_stock", "expected a boolean")
			}
		}
	}
}

// checkImages validates each element of product.images.
func (c *checker) checkImages(product map[string]any) {
	rawImages, ok := product["images"]
	if !ok || rawImages == nil {
		return
	}

	images, isList := rawImages.([]any)
	if !isList {
		c.addError("product.images", "expected an array")
		return
	}

	for i, rawImage := range images {
		path := "product.images." + strconv.Itoa(i)

		image, isObj := rawImage.(map[string]any)
		if !isObj {
			c.addError(path, "expected an object")
			continue
		}

		u, present := image["url"]
		if !present || u == nil {
			c.addError(path+".url", "required field is missing")
			continue
		}
		if s, isStr := u.(string); !isStr || s == "" {
			c.addError(path+".url", "expected a non-empty string")
		}
	}
}

// checkNormalization validates the normalization block's hash fields.
func (c *checker) checkNormalization(norm map[string]any) {
	c.optionalString(norm, "normalization.content_hash", "content_hash")
	c.optionalString(norm, "normalization.raw_payload_hash", "raw_payload_hash")
}

// requireString records an error unless obj[field] is a non-empty string.
// Absence and null are both failures for required fields.
func (c *checker) requireString(obj map[string]any, field string) (string, bool) {
	v, ok := obj[field]
	if !ok || v == nil {
		c.addError(field, "required field is missing")
		return "", false
	}
	s, isStr := v.(string)
	if !isStr || s == "" {
		c.addError(field, "expected a non-empty string")
		return "", false
	}
	return s, true
}

// optionalString records an error only when obj[field] is present, non-null,
// and not a string. Null is distinct from absent; both are accepted.
// Returns the value and whether a usable string was present.
func (c *checker) optionalString(obj map[string]any, path, field string) (string, bool) {
	v, ok := obj[field]
	if !ok || v == nil {
		return "", false
	}
	s, isStr := v.(string)
	if !isStr {
		c.addError(path, "expected a string")
		return "", false
	}
	return s, true
}

// optionalNumeric records an error when obj[field] is present, non-null, and
// neither a number nor a numeric string.
func (c *checker) optionalNumeric(obj map[string]any, path, field string) {
	v, ok := obj[field]
	if !ok || v == nil {
		return
	}
	if !isNumeric(v) {
		c.addError(path, "expected a number or numeric string")
	}
}

// checkOptionalObject validates that obj[field], when present and non-null,
// is an object, then applies the optional nested check.
func (c *checker) checkOptionalObject(obj map[string]any, field string, nested func(map[string]any)) {
	v, ok := obj[field]
	if !ok || v == nil {
		return
	}
	m, isObj := v.(map[string]any)
	if !isObj {
		c.addError(field, "expected an object")
		return
	}
	if nested != nil {
		nested(m)
	}
}

// coerceID accepts string and JSON number identifiers, returning the
// string form.
func coerceID(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	default:
		return "", false
	}
}

// isNumeric reports whether v is a JSON number or a string parseable as one.
func isNumeric(v any) bool {
	switch t := v.(type) {
	case json.Number:
		return true
	case string:
		_, err := strconv.ParseFloat(t, 64)
		return err == nil
	default:
		return false
	}
}
