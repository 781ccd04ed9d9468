// Package pgstore provides a PostgreSQL implementation of the importer stores
// and of settings.Repository.
package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/welleazyhts/CRM-p360-frontend-sub007/internal/dedupe"
	"github.com/welleazyhts/CRM-p360-frontend-sub007/internal/importer"
	"github.com/welleazyhts/CRM-p360-frontend-sub007/internal/settings"
)

var tracer = otel.Tracer("github.com/welleazyhts/CRM-p360-frontend-sub007/internal/importer/pgstore")

//go:embed schema.sql
var schema string

// Store persists reference records, import history and dedupe settings in
// PostgreSQL.
type Store struct {
	pool       *pgxpool.Pool
	historyCap int
}

// New connects to PostgreSQL, applies the schema, and returns a ready Store
// keeping at most historyCap history rows. Every query gets an otel span.
func New(ctx context.Context, databaseURL string, historyCap int) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	poolCfg.ConnConfig.Tracer = otelpgx.NewTracer()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.NewWithConfig: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	if historyCap <= 0 {
		historyCap = importer.DefaultHistoryLimit
	}
	return &Store{pool: pool, historyCap: historyCap}, nil
}

// Close shuts down the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping checks database connectivity, for health checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func startSpan(ctx context.Context, name, op string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", op),
	))
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// ============================================================================
// Reference records
// ============================================================================

// LoadReference returns the records of source, or of every source when source
// is empty, in insertion order.
func (s *Store) LoadReference(ctx context.Context, source string) ([]dedupe.Record, error) {
	ctx, span := startSpan(ctx, "pgstore.LoadReference", "SELECT")
	defer span.End()

	var (
		rows pgx.Rows
		err  error
	)
	if source == "" {
		rows, err = s.pool.Query(ctx, `SELECT source, data FROM import_records ORDER BY seq`)
	} else {
		rows, err = s.pool.Query(ctx, `SELECT source, data FROM import_records WHERE source = $1 ORDER BY seq`, source)
	}
	if err != nil {
		return nil, fail(span, fmt.Errorf("query records: %w", err))
	}
	defer rows.Close()

	var out []dedupe.Record
	for rows.Next() {
		var (
			src string
			raw []byte
		)
		if err := rows.Scan(&src, &raw); err != nil {
			return nil, fail(span, fmt.Errorf("scan record: %w", err))
		}
		rec := dedupe.Record{}
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fail(span, fmt.Errorf("decode record: %w", err))
		}
		if rec.Source() == "" {
			rec[dedupe.PropSource] = src
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fail(span, fmt.Errorf("iterate records: %w", err))
	}

	span.SetAttributes(attribute.Int("import.reference_size", len(out)))
	return out, nil
}

// AppendRecords inserts records under source in one transaction.
func (s *Store) AppendRecords(ctx context.Context, source string, records []dedupe.Record) error {
	ctx, span := startSpan(ctx, "pgstore.AppendRecords", "INSERT")
	defer span.End()

	if len(records) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fail(span, fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is harmless

	batch := &pgx.Batch{}
	for _, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			return fail(span, fmt.Errorf("encode record: %w", err))
		}
		batch.Queue(`INSERT INTO import_records (source, data) VALUES ($1, $2::jsonb)`, source, string(data))
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fail(span, fmt.Errorf("insert records: %w", err))
	}

	if err := tx.Commit(ctx); err != nil {
		return fail(span, fmt.Errorf("commit: %w", err))
	}
	span.SetAttributes(attribute.Int("import.rows", len(records)))
	return nil
}

// ============================================================================
// History
// ============================================================================

const historyColumns = `id, batch_id, source, file_name, started_at, duration_ms,
	total, valid, invalid, duplicates, committed, strict_mode, dry_run, ip_address, user_agent`

// AppendHistory inserts entry and trims history to the configured cap.
func (s *Store) AppendHistory(ctx context.Context, e importer.HistoryEntry) error {
	ctx, span := startSpan(ctx, "pgstore.AppendHistory", "INSERT")
	defer span.End()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fail(span, fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is harmless

	_, err = tx.Exec(ctx, `INSERT INTO import_history (`+historyColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		e.ID, e.BatchID, e.Source, e.FileName, e.StartedAt, e.Duration.Milliseconds(),
		e.Totals.Total, e.Totals.Valid, e.Totals.Invalid, e.Totals.Duplicates, e.Committed,
		e.StrictMode, e.DryRun, e.IPAddress, e.UserAgent,
	)
	if err != nil {
		return fail(span, fmt.Errorf("insert history: %w", err))
	}

	// ULIDs sort by creation time.
	_, err = tx.Exec(ctx, `DELETE FROM import_history
		WHERE id NOT IN (SELECT id FROM import_history ORDER BY id DESC LIMIT $1)`, s.historyCap)
	if err != nil {
		return fail(span, fmt.Errorf("trim history: %w", err))
	}

	if err := tx.Commit(ctx); err != nil {
		return fail(span, fmt.Errorf("commit: %w", err))
	}
	return nil
}

// ListHistory returns up to limit entries, newest first.
func (s *Store) ListHistory(ctx context.Context, limit int) ([]importer.HistoryEntry, error) {
	ctx, span := startSpan(ctx, "pgstore.ListHistory", "SELECT")
	defer span.End()

	if limit <= 0 {
		limit = s.historyCap
	}
	rows, err := s.pool.Query(ctx, `SELECT `+historyColumns+` FROM import_history ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fail(span, fmt.Errorf("query history: %w", err))
	}
	defer rows.Close()

	var out []importer.HistoryEntry
	for rows.Next() {
		var (
			e          importer.HistoryEntry
			durationMS int64
		)
		err := rows.Scan(&e.ID, &e.BatchID, &e.Source, &e.FileName, &e.StartedAt, &durationMS,
			&e.Totals.Total, &e.Totals.Valid, &e.Totals.Invalid, &e.Totals.Duplicates, &e.Committed,
			&e.StrictMode, &e.DryRun, &e.IPAddress, &e.UserAgent)
		if err != nil {
			return nil, fail(span, fmt.Errorf("scan history: %w", err))
		}
		e.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fail(span, fmt.Errorf("iterate history: %w", err))
	}
	return out, nil
}

// ============================================================================
// Settings
// ============================================================================

// Settings returns a settings.Repository backed by the dedupe_settings row.
func (s *Store) Settings() *SettingsRepository {
	return &SettingsRepository{pool: s.pool}
}

// SettingsRepository stores the dedupe policy as a single JSONB row.
type SettingsRepository struct {
	pool *pgxpool.Pool
}

var _ settings.Repository = (*SettingsRepository)(nil)

// Load reads the stored settings. It returns settings.ErrNotFound when none
// have been saved.
func (r *SettingsRepository) Load(ctx context.Context) (dedupe.Config, error) {
	ctx, span := startSpan(ctx, "pgstore.LoadSettings", "SELECT")
	defer span.End()

	var raw []byte
	err := r.pool.QueryRow(ctx, `SELECT config FROM dedupe_settings WHERE id = 1`).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return dedupe.Config{}, settings.ErrNotFound
	}
	if err != nil {
		return dedupe.Config{}, fail(span, fmt.Errorf("query settings: %w", err))
	}

	var cfg dedupe.Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return dedupe.Config{}, fail(span, fmt.Errorf("decode settings: %w", err))
	}
	return cfg, nil
}

// Save validates cfg and upserts it.
func (r *SettingsRepository) Save(ctx context.Context, cfg dedupe.Config) error {
	ctx, span := startSpan(ctx, "pgstore.SaveSettings", "UPSERT")
	defer span.End()

	cfg, err := settings.Prepare(cfg)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fail(span, fmt.Errorf("encode settings: %w", err))
	}

	_, err = r.pool.Exec(ctx, `INSERT INTO dedupe_settings (id, config, updated_at)
		VALUES (1, $1::jsonb, now())
		ON CONFLICT (id) DO UPDATE SET config = EXCLUDED.config, updated_at = EXCLUDED.updated_at`,
		string(raw))
	if err != nil {
		return fail(span, fmt.Errorf("upsert settings: %w", err))
	}
	return nil
}
