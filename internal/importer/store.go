package importer

import (
	"context"
	"time"

	"github.com/welleazyhts/CRM-p360-frontend-sub007/internal/dedupe"
)

// ReferenceStore holds the records already imported, grouped by source.
// LoadReference with an empty source returns every record, which is what
// duplicate detection compares against.
type ReferenceStore interface {
	LoadReference(ctx context.Context, source string) ([]dedupe.Record, error)
	AppendRecords(ctx context.Context, source string, records []dedupe.Record) error
}

// HistoryStore is the append-only log of import runs.
// ListHistory returns the newest entries first.
type HistoryStore interface {
	AppendHistory(ctx context.Context, entry HistoryEntry) error
	ListHistory(ctx context.Context, limit int) ([]HistoryEntry, error)
}

// HistoryEntry records one completed import run.
type HistoryEntry struct {
	ID         string        `json:"id"`      // ULID, sortable by time
	BatchID    string        `json:"batchId"` // BatchResult.BatchID
	Source     string        `json:"source"`
	FileName   string        `json:"fileName,omitempty"`
	StartedAt  time.Time     `json:"startedAt"`
	Duration   time.Duration `json:"duration"`
	Totals     Totals        `json:"totals"`
	Committed  int           `json:"committed"` // rows written to the reference store
	StrictMode bool          `json:"strictMode"`
	DryRun     bool          `json:"dryRun"`
	IPAddress  string        `json:"ipAddress,omitempty"`
	UserAgent  string        `json:"userAgent,omitempty"`
}
