package web

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/welleazyhts/CRM-p360-frontend-sub007/internal/dedupe"
	"github.com/welleazyhts/CRM-p360-frontend-sub007/internal/importer"
	"github.com/welleazyhts/CRM-p360-frontend-sub007/internal/web/templates"
)

// importBody is the JSON form of an import. Either Records or Headers+Rows
// carries the data.
type importBody struct {
	FileName string           `json:"fileName"`
	Records  []map[string]any `json:"records"`
	Headers  []string         `json:"headers"`
	Rows     [][]string       `json:"rows"`
	Accept   []int            `json:"accept"`
}

// handleImport classifies and commits a batch.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	s.runImport(w, r, false)
}

// handlePreview classifies a batch without committing anything.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	s.runImport(w, r, true)
}

func (s *Server) runImport(w http.ResponseWriter, r *http.Request, dryRun bool) {
	req, err := s.decodeImport(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	req.Source = chi.URLParam(r, "source")
	req.DryRun = dryRun

	ctx := WithRequestMetadata(r.Context(), r)
	result, err := s.service.Run(ctx, req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = templates.ImportSummary(result).Render(r.Context(), w)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// decodeImport reads a JSON body or a multipart CSV upload ("file" plus an
// optional comma separated "accept" list).
func (s *Server) decodeImport(w http.ResponseWriter, r *http.Request) (importer.ImportRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxBodyBytes)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return s.decodeCSVUpload(r)
	}

	var body importBody
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		return importer.ImportRequest{}, fmt.Errorf("%w: %w", importer.ErrInvalidRequest, err)
	}

	req := importer.ImportRequest{FileName: body.FileName, Accept: body.Accept}
	switch {
	case len(body.Records) > 0 && len(body.Headers) > 0:
		return req, fmt.Errorf("%w: send records or headers and rows, not both", importer.ErrInvalidRequest)
	case len(body.Records) > 0:
		req.Records = make([]dedupe.Record, len(body.Records))
		for i, m := range body.Records {
			req.Records[i] = dedupe.RecordFromMap(m)
		}
	case len(body.Headers) > 0:
		req.Records = importer.MapRows(body.Headers, body.Rows)
	}
	return req, nil
}

func (s *Server) decodeCSVUpload(r *http.Request) (importer.ImportRequest, error) {
	if err := r.ParseMultipartForm(s.cfg.Server.MaxBodyBytes); err != nil {
		return importer.ImportRequest{}, fmt.Errorf("%w: %w", importer.ErrInvalidRequest, err)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return importer.ImportRequest{}, fmt.Errorf("%w: no file provided", importer.ErrInvalidRequest)
	}
	defer file.Close()

	headers, rows, err := readCSV(file)
	if err != nil {
		return importer.ImportRequest{}, fmt.Errorf("%w: %w", importer.ErrInvalidRequest, err)
	}
	accept, err := parseRowList(r.FormValue("accept"))
	if err != nil {
		return importer.ImportRequest{}, fmt.Errorf("%w: accept: %w", importer.ErrInvalidRequest, err)
	}

	return importer.ImportRequest{
		FileName: header.Filename,
		Records:  importer.MapRows(headers, rows),
		Accept:   accept,
	}, nil
}

// readCSV returns the header line and the data rows. Rows may have any
// number of fields; MapRows ignores extras and treats missing cells as blank.
// Blank lines between records come back as empty rows so row numbers follow
// the file and the rows are reported as empty. Trailing blank lines are
// dropped.
func readCSV(r io.Reader) ([]string, [][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	headers, err := cr.Read()
	if err == io.EOF {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	lastLine := endLine(cr, headers)
	if len(headers) > 0 {
		headers[0] = strings.TrimPrefix(headers[0], "\ufeff")
	}

	var rows [][]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read rows: %w", err)
		}
		start, _ := cr.FieldPos(0)
		for ; lastLine+1 < start; lastLine++ {
			rows = append(rows, nil)
		}
		rows = append(rows, rec)
		lastLine = endLine(cr, rec)
	}
	return headers, rows, nil
}

// endLine is the file line on which the record just read ends. Quoted fields
// may span lines.
func endLine(cr *csv.Reader, rec []string) int {
	line, _ := cr.FieldPos(0)
	for _, f := range rec {
		line += strings.Count(f, "\n")
	}
	return line
}

// parseRowList parses "3, 5,7" into row numbers.
func parseRowList(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []int
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid row number %q", part)
		}
		out = append(out, n)
	}
	return out, nil
}

// handleHistory lists recent import runs, newest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", s.service.HistoryLimit())
	entries, err := s.service.History(r.Context(), limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if entries == nil {
		entries = []importer.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleImportStatus reports how many import slots are in use.
func (s *Server) handleImportStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Limiter().Status())
}

type requiredColumn struct {
	Field string `json:"field"`
	Label string `json:"label"`
}

type columnsResponse struct {
	Columns        []importer.Column  `json:"columns"`
	Required       []requiredColumn   `json:"required"`
	StandardFields []dedupe.FieldSpec `json:"standardFields"`
}

// handleListColumns returns the header catalog used to map spreadsheet
// columns, the required fields, and the standard duplicate fields.
func (s *Server) handleListColumns(w http.ResponseWriter, r *http.Request) {
	resp := columnsResponse{
		Columns:        importer.Columns,
		Required:       []requiredColumn{},
		StandardFields: dedupe.StandardFields(),
	}
	for _, f := range s.service.RequiredFields() {
		resp.Required = append(resp.Required, requiredColumn{Field: f, Label: importer.LabelFor(f)})
	}
	writeJSON(w, http.StatusOK, resp)
}

// parseIntParam parses a positive integer query parameter.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}
