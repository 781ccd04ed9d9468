// Package settings persists the deduplication policy.
//
// A [Repository] loads and saves a [dedupe.Config]. Loading for a batch run
// goes through [LoadOrDefault], which never fails: missing or unreadable
// settings fall back to [dedupe.DefaultConfig] so that a broken settings file
// can not block imports.
package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/welleazyhts/CRM-p360-frontend-sub007/internal/dedupe"
)

// ErrNotFound is returned by Load when no settings have been saved yet.
var ErrNotFound = errors.New("dedupe settings not found")

// ErrInvalid is wrapped by Save when the settings fail validation.
var ErrInvalid = errors.New("invalid dedupe settings")

// Repository is the persistence interface for deduplication settings.
type Repository interface {
	Load(ctx context.Context) (dedupe.Config, error)
	Save(ctx context.Context, cfg dedupe.Config) error
}

// ConfigError reports persisted settings that could not be used.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid dedupe configuration: %v", e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// LoadOrDefault loads settings from repo and returns a private copy.
//
// When nothing is stored, or the stored settings are corrupt, the default
// configuration is returned instead and the problem is logged. The returned
// error is informational only (nil, or a *ConfigError); callers proceed with
// the returned config either way.
func LoadOrDefault(ctx context.Context, repo Repository) (dedupe.Config, error) {
	cfg, err := repo.Load(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		return dedupe.DefaultConfig(), nil
	default:
		slog.Warn("dedupe settings unreadable, using defaults", "error", err)
		return dedupe.DefaultConfig(), &ConfigError{Err: err}
	}

	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		slog.Warn("dedupe settings invalid, using defaults", "error", err)
		return dedupe.DefaultConfig(), &ConfigError{Err: err}
	}
	return cfg.Clone(), nil
}

// Prepare fills defaults and validates cfg before it is saved.
func Prepare(cfg dedupe.Config) (dedupe.Config, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return dedupe.Config{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return cfg, nil
}
