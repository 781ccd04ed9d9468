package importer

// validation.go provides structural row validation, independent of duplicates.
//
// Validation happens before any duplicate check:
//  1. Empty row: every value is missing or blank. Required-field checks are
//     skipped because they would only repeat the same problem.
//  2. Required fields: every missing or blank required field is reported,
//     not just the first one.
//
// A row with no reasons passes on to duplicate detection.

import (
	"strings"

	"github.com/welleazyhts/CRM-p360-frontend-sub007/internal/dedupe"
)

// EmptyRowReason is the single reason reported for a row without data.
const EmptyRowReason = "Empty row - no data found"

// ValidationError represents a single structural problem with a row.
type ValidationError struct {
	Field   string // Field name, empty for row-level problems
	Message string // Human-readable message
}

func (e ValidationError) Error() string {
	return e.Message
}

// ValidationResult contains the result of validating a row.
type ValidationResult struct {
	Valid  bool              // True if all checks passed
	Errors []ValidationError // Problems in detection order (empty if Valid)
}

// Reasons returns the messages of all errors.
func (r ValidationResult) Reasons() []string {
	out := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		out[i] = e.Message
	}
	return out
}

// Reason returns all messages joined by "; ".
func (r ValidationResult) Reason() string {
	return strings.Join(r.Reasons(), "; ")
}

// RowValidator checks mapped rows for structural problems.
type RowValidator struct {
	required []string
}

// NewRowValidator creates a validator for the given required field names.
// Blank names are ignored.
func NewRowValidator(requiredFields []string) *RowValidator {
	req := make([]string, 0, len(requiredFields))
	for _, f := range requiredFields {
		if f = strings.TrimSpace(f); f != "" {
			req = append(req, f)
		}
	}
	return &RowValidator{required: req}
}

// RequiredFields returns the configured required field names.
func (v *RowValidator) RequiredFields() []string {
	out := make([]string, len(v.required))
	copy(out, v.required)
	return out
}

// ValidateRow validates a single row and returns every problem found.
func (v *RowValidator) ValidateRow(row dedupe.Record) ValidationResult {
	if row.IsBlank() {
		return ValidationResult{
			Valid:  false,
			Errors: []ValidationError{{Message: EmptyRowReason}},
		}
	}

	result := ValidationResult{Valid: true}
	for _, name := range v.required {
		if _, ok := row.Get(name); ok {
			continue
		}
		result.Valid = false
		result.Errors = append(result.Errors, ValidationError{
			Field:   name,
			Message: "Missing required field: " + name,
		})
	}
	return result
}
