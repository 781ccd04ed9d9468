package web

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/welleazyhts/CRM-p360-frontend-sub007/internal/dedupe"
	"github.com/welleazyhts/CRM-p360-frontend-sub007/internal/importer"
)

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Settings(r.Context()))
}

func (s *Server) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxBodyBytes)

	var cfg dedupe.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		s.respondError(w, r, fmt.Errorf("%w: %w", importer.ErrInvalidRequest, err))
		return
	}

	saved, err := s.service.SaveSettings(r.Context(), cfg)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

type checkBody struct {
	Record map[string]any `json:"record"`
}

// handleCheckRecord checks one record from an entry form against the
// reference data without storing it.
func (s *Server) handleCheckRecord(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxBodyBytes)

	var body checkBody
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		s.respondError(w, r, fmt.Errorf("%w: %w", importer.ErrInvalidRequest, err))
		return
	}
	if body.Record == nil {
		s.respondError(w, r, fmt.Errorf("%w: record is required", importer.ErrInvalidRequest))
		return
	}

	result, err := s.service.Check(r.Context(), chi.URLParam(r, "source"), dedupe.RecordFromMap(body.Record))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleHealth reports liveness, and readiness when a check is configured.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
