package importer

import (
	"time"

	"github.com/welleazyhts/CRM-p360-frontend-sub007/internal/dedupe"
)

// OutcomeKind is the terminal state of one row.
type OutcomeKind string

const (
	OutcomeValid     OutcomeKind = "valid"
	OutcomeInvalid   OutcomeKind = "invalid"
	OutcomeDuplicate OutcomeKind = "duplicate"
)

// FailureType tells the two failure buckets apart.
type FailureType string

const (
	FailureValidation FailureType = "validation"
	FailureDuplicate  FailureType = "duplicate"
)

// RowOutcome is the classification of one input row.
type RowOutcome struct {
	Row        int                     `json:"row"` // 1-indexed position in the batch
	Kind       OutcomeKind             `json:"kind"`
	Reasons    []string                `json:"reasons,omitempty"`
	Duplicates []dedupe.DuplicateEntry `json:"duplicates,omitempty"`
}

// ValidRow is a row accepted by the batch.
type ValidRow struct {
	Row    int           `json:"row"`
	Record dedupe.Record `json:"record"`
}

// FailedRow is a row rejected by validation or duplicate detection.
type FailedRow struct {
	Row        int                     `json:"row"`
	Record     dedupe.Record           `json:"record"`
	Type       FailureType             `json:"type"`
	Reason     string                  `json:"reason"`
	Duplicates []dedupe.DuplicateEntry `json:"duplicates,omitempty"`
}

// Totals summarizes a batch.
type Totals struct {
	Total      int `json:"total"`
	Valid      int `json:"valid"`
	Invalid    int `json:"invalid"`
	Duplicates int `json:"duplicates"`
}

// Failed returns the number of rows in either failure bucket.
func (t Totals) Failed() int {
	return t.Invalid + t.Duplicates
}

// BatchResult is the complete classification of a batch.
type BatchResult struct {
	BatchID    string        `json:"batchId"`
	Source     string        `json:"source"`
	StrictMode bool          `json:"strictMode"`
	Valid      []ValidRow    `json:"valid"`
	Failed     []FailedRow   `json:"failed"`
	Outcomes   []RowOutcome  `json:"outcomes"`
	Totals     Totals        `json:"totals"`
	Duration   time.Duration `json:"duration"`
}

// FailedRowByNumber returns the failed row with the given row number.
func (r *BatchResult) FailedRowByNumber(row int) (FailedRow, bool) {
	for _, f := range r.Failed {
		if f.Row == row {
			return f, true
		}
	}
	return FailedRow{}, false
}

// ProgressCallback is called after each row is classified.
type ProgressCallback func(done, total int)
