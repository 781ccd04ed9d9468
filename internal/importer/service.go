package importer

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/welleazyhts/CRM-p360-frontend-sub007/internal/dedupe"
	"github.com/welleazyhts/CRM-p360-frontend-sub007/internal/logging"
	"github.com/welleazyhts/CRM-p360-frontend-sub007/internal/settings"
)

var (
	ErrEmptyBatch           = errors.New("no records to import")
	ErrTooManyRows          = errors.New("too many rows in batch")
	ErrInvalidRequest       = errors.New("invalid import request")
	ErrUnknownRow           = errors.New("accepted row number is not in the batch")
	ErrStrictMode           = errors.New("strict mode is on, duplicates cannot be accepted")
	ErrNotDuplicate         = errors.New("accepted row is not a duplicate")
	ErrSettingsUnavailable  = errors.New("settings unavailable")
	ErrReferenceUnavailable = errors.New("reference data unavailable")
	ErrUnknownSource        = errors.New("unknown import source")

	errImportCancelled = errors.New("import cancelled")
)

const (
	DefaultMaxRows      = 10000
	DefaultHistoryLimit = 50
)

// ImportRequest is one batch submitted for import.
type ImportRequest struct {
	Source   string          // Origin label stamped on committed rows
	FileName string          // Informational, kept in history
	Records  []dedupe.Record // Rows in file order, already mapped to field names
	Accept   []int           // Duplicate rows to commit anyway (1-indexed)
	DryRun   bool            // Classify only, commit nothing
}

// ImportResult is the outcome of Service.Run.
type ImportResult struct {
	Batch          *BatchResult  `json:"batch"`
	Settings       dedupe.Config `json:"settings"`
	Committed      int           `json:"committed"`
	Accepted       []int         `json:"accepted,omitempty"`
	HistoryID      string        `json:"historyId,omitempty"`
	DryRun         bool          `json:"dryRun"`
	ConfigFallback bool          `json:"configFallback,omitempty"`
}

// CheckResult is the outcome of checking a single record.
type CheckResult struct {
	Validation ValidationResult `json:"validation"`
	Duplicate  dedupe.Result    `json:"duplicate"`
}

// Service runs imports end to end: settings, reference data, classification,
// commit and history.
type Service struct {
	settings  settings.Repository
	reference ReferenceStore
	history   HistoryStore
	processor *Processor
	limiter   *Limiter
	metrics   *Metrics

	maxRows      int
	historyLimit int
	sources      []string
	now          func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLimiter bounds concurrent runs with l.
func WithLimiter(l *Limiter) ServiceOption {
	return func(s *Service) { s.limiter = l }
}

// WithMetrics records run metrics on m.
func WithMetrics(m *Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// WithMaxRows caps the rows accepted per batch.
func WithMaxRows(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.maxRows = n
		}
	}
}

// WithHistoryLimit caps how many history entries are listed.
func WithHistoryLimit(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.historyLimit = n
		}
	}
}

// WithSources restricts imports to the named sources. Empty allows any.
func WithSources(sources []string) ServiceOption {
	return func(s *Service) { s.sources = slices.Clone(sources) }
}

// NewService creates a Service.
func NewService(repo settings.Repository, ref ReferenceStore, hist HistoryStore, proc *Processor, opts ...ServiceOption) *Service {
	s := &Service{
		settings:     repo,
		reference:    ref,
		history:      hist,
		processor:    proc,
		maxRows:      DefaultMaxRows,
		historyLimit: DefaultHistoryLimit,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.limiter == nil {
		s.limiter = NewLimiter(0, 0)
	}
	return s
}

// Limiter returns the run limiter, for shutdown draining and status.
func (s *Service) Limiter() *Limiter {
	return s.limiter
}

// RequiredFields returns the fields every imported row must carry.
func (s *Service) RequiredFields() []string {
	return s.processor.validator.RequiredFields()
}

// HistoryLimit returns the maximum number of history entries listed.
func (s *Service) HistoryLimit() int {
	return s.historyLimit
}

// Run imports one batch.
//
// The dedupe settings are loaded once and copied, so saving settings while a
// run is in flight does not affect it. Rows that fail validation or duplicate
// detection are reported in the result, not as errors. Errors are reserved for
// rejected requests, an unavailable reference store and cancellation.
func (s *Service) Run(ctx context.Context, req ImportRequest) (*ImportResult, error) {
	if err := s.checkRequest(req); err != nil {
		return nil, err
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		s.metrics.batchDone("rejected")
		return nil, err
	}
	defer s.limiter.Release()

	started := s.now()
	logger := logging.WithFields(ctx, "source", req.Source, "file", req.FileName)

	cfg, fallback := s.loadSettings(ctx)
	if len(req.Accept) > 0 && cfg.StrictMode {
		s.metrics.batchDone("rejected")
		return nil, ErrStrictMode
	}

	existing, err := s.reference.LoadReference(ctx, "")
	if err != nil {
		s.metrics.batchDone("error")
		logger.Error("load reference data", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrReferenceUnavailable, err)
	}

	batch, err := s.processor.Process(ctx, req.Records, existing, req.Source, cfg)
	if err != nil {
		s.metrics.batchDone("cancelled")
		logger.Warn("import cancelled", "error", err)
		return nil, err
	}

	accepted, err := acceptedRows(batch, req.Accept)
	if err != nil {
		s.metrics.batchDone("rejected")
		return nil, err
	}

	result := &ImportResult{
		Batch:          batch,
		Settings:       cfg,
		Accepted:       accepted,
		DryRun:         req.DryRun,
		ConfigFallback: fallback,
	}

	if !req.DryRun {
		toCommit := commitSet(batch, accepted, req.Source)
		if len(toCommit) > 0 {
			if err := s.reference.AppendRecords(ctx, req.Source, toCommit); err != nil {
				s.metrics.batchDone("error")
				logger.Error("commit records", "batch_id", batch.BatchID, "error", err)
				return nil, fmt.Errorf("%w: commit: %w", ErrReferenceUnavailable, err)
			}
		}
		result.Committed = len(toCommit)
		s.metrics.committed(result.Committed)
	}

	entry := HistoryEntry{
		ID:         ulid.Make().String(),
		BatchID:    batch.BatchID,
		Source:     req.Source,
		FileName:   req.FileName,
		StartedAt:  started.UTC(),
		Duration:   s.now().Sub(started),
		Totals:     batch.Totals,
		Committed:  result.Committed,
		StrictMode: batch.StrictMode,
		DryRun:     req.DryRun,
		IPAddress:  IPAddressFromContext(ctx),
		UserAgent:  UserAgentFromContext(ctx),
	}
	if err := s.history.AppendHistory(ctx, entry); err != nil {
		// History is best effort once rows are committed.
		logger.Warn("append import history", "batch_id", batch.BatchID, "error", err)
	} else {
		result.HistoryID = entry.ID
	}

	s.metrics.observeBatch(batch)
	if req.DryRun {
		s.metrics.batchDone("dry_run")
	} else {
		s.metrics.batchDone("committed")
	}

	logger.Info("import completed",
		"batch_id", batch.BatchID,
		"total", batch.Totals.Total,
		"valid", batch.Totals.Valid,
		"invalid", batch.Totals.Invalid,
		"duplicates", batch.Totals.Duplicates,
		"failed", batch.Totals.Failed(),
		"committed", result.Committed,
		"dry_run", req.DryRun,
		"duration_ms", entry.Duration.Milliseconds(),
	)

	return result, nil
}

// Check validates a single record and checks it against the reference data,
// without committing anything.
func (s *Service) Check(ctx context.Context, source string, rec dedupe.Record) (*CheckResult, error) {
	if err := s.checkSource(source); err != nil {
		return nil, err
	}

	cfg, _ := s.loadSettings(ctx)
	existing, err := s.reference.LoadReference(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReferenceUnavailable, err)
	}

	return &CheckResult{
		Validation: s.processor.validator.ValidateRow(rec),
		Duplicate:  dedupe.Detect(rec, existing, cfg),
	}, nil
}

// Settings returns the effective dedupe settings.
func (s *Service) Settings(ctx context.Context) dedupe.Config {
	cfg, _ := s.loadSettings(ctx)
	return cfg
}

// SaveSettings validates and stores cfg, returning the stored form with
// defaults filled in.
func (s *Service) SaveSettings(ctx context.Context, cfg dedupe.Config) (dedupe.Config, error) {
	prepared, err := settings.Prepare(cfg)
	if err != nil {
		return dedupe.Config{}, err
	}
	if err := s.settings.Save(ctx, prepared); err != nil {
		if errors.Is(err, settings.ErrInvalid) {
			return dedupe.Config{}, err
		}
		return dedupe.Config{}, fmt.Errorf("%w: %w", ErrSettingsUnavailable, err)
	}

	logging.FromContext(ctx).Info("dedupe settings saved",
		"enabled_fields", prepared.EnabledCount(),
		"custom_fields", len(prepared.CustomFields),
		"strict_mode", prepared.StrictMode,
	)
	return prepared.Clone(), nil
}

// History returns up to limit recent runs, newest first. Non-positive or
// excessive limits are clamped to the configured history limit.
func (s *Service) History(ctx context.Context, limit int) ([]HistoryEntry, error) {
	if limit <= 0 || limit > s.historyLimit {
		limit = s.historyLimit
	}
	return s.history.ListHistory(ctx, limit)
}

func (s *Service) loadSettings(ctx context.Context) (dedupe.Config, bool) {
	cfg, err := settings.LoadOrDefault(ctx, s.settings)
	if err != nil {
		s.metrics.configFallback()
		return cfg, true
	}
	return cfg, false
}

func (s *Service) checkRequest(req ImportRequest) error {
	if err := s.checkSource(req.Source); err != nil {
		return err
	}
	if len(req.Records) == 0 {
		return ErrEmptyBatch
	}
	if len(req.Records) > s.maxRows {
		return fmt.Errorf("%w: %d rows, limit is %d", ErrTooManyRows, len(req.Records), s.maxRows)
	}
	return nil
}

func (s *Service) checkSource(source string) error {
	if source == "" {
		return ErrUnknownSource
	}
	if len(s.sources) > 0 && !slices.Contains(s.sources, source) {
		return fmt.Errorf("%w: %q", ErrUnknownSource, source)
	}
	return nil
}

// acceptedRows checks the accept list against the batch and returns it sorted
// and without repeats.
func acceptedRows(batch *BatchResult, accept []int) ([]int, error) {
	if len(accept) == 0 {
		return nil, nil
	}
	rows := slices.Clone(accept)
	slices.Sort(rows)
	rows = slices.Compact(rows)

	for _, n := range rows {
		if n < 1 || n > batch.Totals.Total {
			return nil, fmt.Errorf("%w: row %d", ErrUnknownRow, n)
		}
		f, ok := batch.FailedRowByNumber(n)
		if !ok || f.Type != FailureDuplicate {
			return nil, fmt.Errorf("%w: row %d", ErrNotDuplicate, n)
		}
	}
	return rows, nil
}

// commitSet returns the records to write, in row order: every valid row plus
// the accepted duplicates. Records without an id get a generated one.
func commitSet(batch *BatchResult, accepted []int, source string) []dedupe.Record {
	type numbered struct {
		row int
		rec dedupe.Record
	}
	picked := make([]numbered, 0, len(batch.Valid)+len(accepted))
	for _, v := range batch.Valid {
		picked = append(picked, numbered{v.Row, v.Record})
	}
	for _, n := range accepted {
		if f, ok := batch.FailedRowByNumber(n); ok {
			picked = append(picked, numbered{n, f.Record})
		}
	}
	slices.SortFunc(picked, func(a, b numbered) int { return a.row - b.row })

	out := make([]dedupe.Record, len(picked))
	for i, p := range picked {
		rec := p.rec.Clone()
		if rec.ID() == "" {
			rec[dedupe.PropID] = uuid.NewString()
		}
		if rec.Source() == "" && source != "" {
			rec[dedupe.PropSource] = source
		}
		out[i] = rec
	}
	return out
}
