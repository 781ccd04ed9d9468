// Package memstore provides in-memory implementations of importer.ReferenceStore
// and importer.HistoryStore.
package memstore

import (
	"context"
	"slices"
	"sync"

	"github.com/welleazyhts/CRM-p360-frontend-sub007/internal/dedupe"
	"github.com/welleazyhts/CRM-p360-frontend-sub007/internal/importer"
)

// Store holds reference records and import history in memory.
// Suitable for dev/testing.
type Store struct {
	mu         sync.RWMutex
	records    []sourced
	history    []importer.HistoryEntry // oldest first
	historyCap int
}

type sourced struct {
	source string
	rec    dedupe.Record
}

// New initializes an empty Store keeping at most historyCap history entries.
// Non-positive historyCap selects importer.DefaultHistoryLimit.
func New(historyCap int) *Store {
	if historyCap <= 0 {
		historyCap = importer.DefaultHistoryLimit
	}
	return &Store{historyCap: historyCap}
}

// Seed appends records under source. Convenience for tests and demo data.
func (s *Store) Seed(source string, records ...dedupe.Record) {
	_ = s.AppendRecords(context.Background(), source, records)
}

// LoadReference returns copies of the records of source, or of all sources
// when source is empty, in insertion order.
func (s *Store) LoadReference(_ context.Context, source string) ([]dedupe.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]dedupe.Record, 0, len(s.records))
	for _, r := range s.records {
		if source == "" || r.source == source {
			out = append(out, r.rec.Clone())
		}
	}
	return out, nil
}

// AppendRecords stores copies of records under source.
func (s *Store) AppendRecords(_ context.Context, source string, records []dedupe.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		s.records = append(s.records, sourced{source: source, rec: r.Clone()})
	}
	return nil
}

// Len returns the number of stored reference records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// AppendHistory stores entry, dropping the oldest entries beyond the cap.
func (s *Store) AppendHistory(_ context.Context, entry importer.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, entry)
	if over := len(s.history) - s.historyCap; over > 0 {
		s.history = slices.Delete(s.history, 0, over)
	}
	return nil
}

// ListHistory returns up to limit entries, newest first.
func (s *Store) ListHistory(_ context.Context, limit int) ([]importer.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.history)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]importer.HistoryEntry, 0, n)
	for i := len(s.history) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.history[i])
	}
	return out, nil
}
