package importer

// batch.go classifies a whole batch.
//
// Processing has two phases:
//  1. Structural validation of every row, concurrently. Rows are independent
//     here, and results are written by index so order is kept.
//  2. A sequential fold over the rows in order. Each structurally valid row is
//     checked against the reference arena; unique rows are appended to it,
//     duplicate rows are not.
//
// Phase 2 must stay sequential: row N has to see exactly the valid rows
// 1..N-1 of the batch, so [A, B] and [B, A] classify differently when A and B
// duplicate each other.

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/welleazyhts/CRM-p360-frontend-sub007/internal/dedupe"
	"github.com/welleazyhts/CRM-p360-frontend-sub007/internal/logging"
)

// ContextCheckInterval is how often (in rows) the fold checks for cancellation.
var ContextCheckInterval = 100

// referenceArena is the reference set of one batch run: the existing data
// plus the rows accepted so far. Accepted rows are compared exactly as they
// arrived; their batch row number and source only label matches.
type referenceArena struct {
	refs []dedupe.Reference
}

func newReferenceArena(existing []dedupe.Record, capacity int) *referenceArena {
	refs := make([]dedupe.Reference, 0, len(existing)+capacity)
	refs = append(refs, dedupe.ReferencesOf(existing)...)
	return &referenceArena{refs: refs}
}

// view returns the current reference set. The detector only reads it.
func (a *referenceArena) view() []dedupe.Reference {
	return a.refs
}

// accept folds row rowNum into the reference set. A row without its own id
// is labelled "row-<n>"; a row without a source gets the batch source.
func (a *referenceArena) accept(rec dedupe.Record, source string, rowNum int) {
	ref := dedupe.Reference{Record: rec, ID: rec.ID(), Source: rec.Source()}
	if ref.ID == "" {
		ref.ID = fmt.Sprintf("row-%d", rowNum)
	}
	if ref.Source == "" {
		ref.Source = source
	}
	a.refs = append(a.refs, ref)
}

func (a *referenceArena) len() int {
	return len(a.refs)
}

// Processor runs the validation and deduplication pipeline over batches.
// It holds no per-batch state and is safe for concurrent use.
type Processor struct {
	validator  *RowValidator
	workers    int
	onProgress ProgressCallback
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithWorkers sets how many rows are validated in parallel.
// Values below 1 select GOMAXPROCS.
func WithWorkers(n int) ProcessorOption {
	return func(p *Processor) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithProgress registers a callback invoked after each row is classified.
func WithProgress(cb ProgressCallback) ProcessorOption {
	return func(p *Processor) {
		p.onProgress = cb
	}
}

// NewProcessor creates a Processor using validator for structural checks.
func NewProcessor(validator *RowValidator, opts ...ProcessorOption) *Processor {
	p := &Processor{
		validator: validator,
		workers:   runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process classifies records against existing under cfg.
//
// Rows are numbered from 1 in input order. Rows accepted as valid join the
// reference set unchanged; later duplicates point at them by their own id or
// "row-<n>", and by their own source or source. existing and records are
// never modified.
//
// The returned error is non-nil only when ctx is cancelled; no partial result
// is returned in that case.
func (p *Processor) Process(ctx context.Context, records []dedupe.Record, existing []dedupe.Record, source string, cfg dedupe.Config) (*BatchResult, error) {
	start := time.Now()
	cfg = cfg.Clone()

	result := &BatchResult{
		BatchID:    uuid.NewString(),
		Source:     source,
		StrictMode: cfg.StrictMode,
		Valid:      make([]ValidRow, 0, len(records)),
		Failed:     make([]FailedRow, 0),
		Outcomes:   make([]RowOutcome, 0, len(records)),
	}

	logger := logging.WithFields(ctx, "batch_id", result.BatchID, "source", source)
	logger.Debug("batch started",
		"rows", len(records),
		"reference_size", len(existing),
		"enabled_fields", cfg.EnabledCount(),
		"strict_mode", cfg.StrictMode,
	)

	validations, err := p.validateAll(ctx, records)
	if err != nil {
		return nil, err
	}

	arena := newReferenceArena(existing, len(records))

	for i, rec := range records {
		if i%ContextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("%w at row %d: %w", errImportCancelled, i+1, err)
			}
		}

		rowNum := i + 1
		v := validations[i]

		switch {
		case !v.Valid:
			reasons := v.Reasons()
			result.Failed = append(result.Failed, FailedRow{
				Row:    rowNum,
				Record: rec,
				Type:   FailureValidation,
				Reason: v.Reason(),
			})
			result.Outcomes = append(result.Outcomes, RowOutcome{Row: rowNum, Kind: OutcomeInvalid, Reasons: reasons})
			result.Totals.Invalid++

		default:
			det := dedupe.DetectAgainst(rec, arena.view(), cfg)
			if det.IsDuplicate {
				result.Failed = append(result.Failed, FailedRow{
					Row:        rowNum,
					Record:     rec,
					Type:       FailureDuplicate,
					Reason:     dedupe.FormatReason(det.Duplicates),
					Duplicates: det.Duplicates,
				})
				result.Outcomes = append(result.Outcomes, RowOutcome{Row: rowNum, Kind: OutcomeDuplicate, Duplicates: det.Duplicates})
				result.Totals.Duplicates++
				break
			}

			result.Valid = append(result.Valid, ValidRow{Row: rowNum, Record: rec})
			result.Outcomes = append(result.Outcomes, RowOutcome{Row: rowNum, Kind: OutcomeValid})
			result.Totals.Valid++
			arena.accept(rec, source, rowNum)
		}

		if p.onProgress != nil {
			p.onProgress(rowNum, len(records))
		}
	}

	result.Totals.Total = len(records)
	result.Duration = time.Since(start)

	logger.Debug("batch classified",
		"valid", result.Totals.Valid,
		"invalid", result.Totals.Invalid,
		"duplicates", result.Totals.Duplicates,
		"reference_size", arena.len(),
		"duration_ms", result.Duration.Milliseconds(),
	)

	return result, nil
}

// validateAll runs structural validation for every row concurrently.
func (p *Processor) validateAll(ctx context.Context, records []dedupe.Record) ([]ValidationResult, error) {
	results := make([]ValidationResult, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i := range records {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = p.validator.ValidateRow(records[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w during validation: %w", errImportCancelled, err)
	}
	return results, nil
}
