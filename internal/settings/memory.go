package settings

import (
	"context"
	"sync"

	"github.com/welleazyhts/CRM-p360-frontend-sub007/internal/dedupe"
)

// MemoryRepository holds settings in memory. Suitable for dev/testing.
type MemoryRepository struct {
	mu  sync.RWMutex
	cfg *dedupe.Config
}

// NewMemoryRepository returns an empty repository; Load reports ErrNotFound
// until the first Save.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

// Load returns a copy of the stored settings.
func (r *MemoryRepository) Load(_ context.Context) (dedupe.Config, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.cfg == nil {
		return dedupe.Config{}, ErrNotFound
	}
	return r.cfg.Clone(), nil
}

// Save stores a validated copy of cfg.
func (r *MemoryRepository) Save(_ context.Context, cfg dedupe.Config) error {
	cfg, err := Prepare(cfg)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := cfg.Clone()
	r.cfg = &cp
	return nil
}
