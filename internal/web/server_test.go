package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/welleazyhts/CRM-p360-frontend-sub007/internal/config"
	"github.com/welleazyhts/CRM-p360-frontend-sub007/internal/dedupe"
	"github.com/welleazyhts/CRM-p360-frontend-sub007/internal/importer"
	"github.com/welleazyhts/CRM-p360-frontend-sub007/internal/importer/memstore"
	"github.com/welleazyhts/CRM-p360-frontend-sub007/internal/settings"
)

type testEnv struct {
	srv   *Server
	store *memstore.Store
	repo  *settings.MemoryRepository
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{MaxBodyBytes: 1 << 20},
		Import: config.ImportConfig{Timeout: 5 * time.Second},
	}
}

func newTestEnv(t *testing.T, cfg *config.Config, opts ...Option) *testEnv {
	t.Helper()
	if cfg == nil {
		cfg = testConfig()
	}
	reg := prometheus.NewRegistry()
	store := memstore.New(10)
	repo := settings.NewMemoryRepository()
	svc := importer.NewService(repo, store, store,
		importer.NewProcessor(importer.NewRowValidator([]string{"name"})),
		importer.WithMetrics(importer.NewMetrics(reg)),
	)
	return &testEnv{
		srv:   NewServer(cfg, svc, reg, opts...),
		store: store,
		repo:  repo,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.srv.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func seedExisting(e *testEnv) {
	e.store.Seed("crm", dedupe.Record{"id": "e1", "name": "Existing", "phone": "987-654-3210"})
}

// =============================================================================
// Health and metrics
// =============================================================================

func TestHealth(t *testing.T) {
	e := newTestEnv(t, nil)
	rec := e.do(t, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}
}

func TestHealth_NotReady(t *testing.T) {
	e := newTestEnv(t, nil, WithReadiness(func(context.Context) error {
		return errors.New("db down")
	}))
	rec := e.do(t, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	e := newTestEnv(t, nil)
	e.do(t, http.MethodPost, "/api/import/web", importBody{Records: []map[string]any{{"name": "A"}}})

	rec := e.do(t, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "import_batches_total") {
		t.Error("metrics output missing import_batches_total")
	}
}

// =============================================================================
// Import
// =============================================================================

func TestImport_Records(t *testing.T) {
	e := newTestEnv(t, nil)
	seedExisting(e)

	rec := e.do(t, http.MethodPost, "/api/import/web", importBody{
		FileName: "leads.json",
		Records: []map[string]any{
			{"name": "Dup", "phone": "9876543210"},
			{"name": "New", "phone": json.Number("5551234567")},
			{"phone": "1112223333"},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	res := decode[importer.ImportResult](t, rec)
	want := importer.Totals{Total: 3, Valid: 1, Invalid: 1, Duplicates: 1}
	if res.Batch.Totals != want {
		t.Errorf("totals = %+v, want %+v", res.Batch.Totals, want)
	}
	if res.Committed != 1 {
		t.Errorf("committed = %d, want 1", res.Committed)
	}
	if got := e.store.Len(); got != 2 {
		t.Errorf("store size = %d, want 2", got)
	}
}

func TestImport_HeadersAndRows(t *testing.T) {
	e := newTestEnv(t, nil)
	seedExisting(e)

	rec := e.do(t, http.MethodPost, "/api/import/web", importBody{
		Headers: []string{"Customer Name", "PHONE NUMBER"},
		Rows: [][]string{
			{"Dup", "(987) 654-3210"},
			{"New", "555 000 1111"},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	res := decode[importer.ImportResult](t, rec)
	if res.Batch.Totals.Duplicates != 1 || res.Batch.Totals.Valid != 1 {
		t.Errorf("totals = %+v, want 1 duplicate and 1 valid", res.Batch.Totals)
	}
}

func TestImport_AcceptDuplicate(t *testing.T) {
	e := newTestEnv(t, nil)
	seedExisting(e)

	rec := e.do(t, http.MethodPost, "/api/import/web", importBody{
		Records: []map[string]any{{"name": "Dup", "phone": "9876543210"}},
		Accept:  []int{1},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if res := decode[importer.ImportResult](t, rec); res.Committed != 1 {
		t.Errorf("committed = %d, want 1", res.Committed)
	}
}

func TestImport_CSVUpload(t *testing.T) {
	e := newTestEnv(t, nil)
	seedExisting(e)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "leads.csv")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fw.Write([]byte("\ufeffName,Phone\nDup,9876543210\nNew,5550001111\n"))
	_ = mw.WriteField("accept", "1")
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/import/web", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	e.srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	res := decode[importer.ImportResult](t, rec)
	if res.Batch.Totals.Total != 2 || res.Committed != 2 {
		t.Errorf("total=%d committed=%d, want 2 and 2", res.Batch.Totals.Total, res.Committed)
	}

	hist, _ := e.store.ListHistory(context.Background(), 1)
	if len(hist) != 1 || hist[0].FileName != "leads.csv" {
		t.Errorf("history = %+v, want one entry for leads.csv", hist)
	}
}

func TestImport_CSVBlankLineIsEmptyRow(t *testing.T) {
	e := newTestEnv(t, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "gaps.csv")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fw.Write([]byte("name,phone\na,1\n\nb,2\n"))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/import/web/preview", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	e.srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	res := decode[importer.ImportResult](t, rec)
	if res.Batch.Totals.Total != 3 || res.Batch.Totals.Invalid != 1 {
		t.Fatalf("totals = %+v, want 3 rows with 1 invalid", res.Batch.Totals)
	}
	f := res.Batch.Failed[0]
	if f.Row != 2 || f.Reason != importer.EmptyRowReason {
		t.Errorf("failed row = %d %q, want row 2 empty", f.Row, f.Reason)
	}
}

func TestPreview_CommitsNothing(t *testing.T) {
	e := newTestEnv(t, nil)

	rec := e.do(t, http.MethodPost, "/api/import/web/preview", importBody{
		Records: []map[string]any{{"name": "A", "phone": "1"}},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	res := decode[importer.ImportResult](t, rec)
	if !res.DryRun || res.Committed != 0 {
		t.Errorf("dryRun=%v committed=%d, want true and 0", res.DryRun, res.Committed)
	}
	if e.store.Len() != 0 {
		t.Errorf("store size = %d, want 0", e.store.Len())
	}
}

func TestImport_HTMXFragment(t *testing.T) {
	e := newTestEnv(t, nil)

	rec := e.do(t, http.MethodPost, "/api/import/web", importBody{
		Records: []map[string]any{{"name": "A"}},
	}, "HX-Request", "true")

	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}
	if !strings.Contains(rec.Body.String(), "Import complete") {
		t.Errorf("body missing summary: %s", rec.Body.String())
	}
}

func TestImport_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       any
		strict     bool
		wantStatus int
		wantCode   string
	}{
		{"empty batch", importBody{}, false, http.StatusBadRequest, "IMP001"},
		{"malformed json", "{", false, http.StatusBadRequest, "IMP003"},
		{
			name:       "records and rows together",
			body:       importBody{Records: []map[string]any{{"name": "A"}}, Headers: []string{"Name"}, Rows: [][]string{{"B"}}},
			wantStatus: http.StatusBadRequest,
			wantCode:   "IMP003",
		},
		{
			name:       "accept row outside batch",
			body:       importBody{Records: []map[string]any{{"name": "A"}}, Accept: []int{9}},
			wantStatus: http.StatusBadRequest,
			wantCode:   "IMP004",
		},
		{
			name:       "accept in strict mode",
			body:       importBody{Records: []map[string]any{{"name": "A"}}, Accept: []int{1}},
			strict:     true,
			wantStatus: http.StatusConflict,
			wantCode:   "DUP001",
		},
		{
			name:       "body too large",
			body:       importBody{Records: []map[string]any{{"name": strings.Repeat("x", 2<<20)}}},
			wantStatus: http.StatusRequestEntityTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t, nil)
			if tt.strict {
				cfg := dedupe.DefaultConfig()
				cfg.StrictMode = true
				if err := e.repo.Save(context.Background(), cfg); err != nil {
					t.Fatal(err)
				}
			}

			rec := e.do(t, http.MethodPost, "/api/import/web", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantCode == "" {
				return
			}
			if got := decode[ErrorResponse](t, rec); got.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", got.Code, tt.wantCode)
			}
		})
	}
}

func TestImport_ErrorAsHTMX(t *testing.T) {
	e := newTestEnv(t, nil)
	rec := e.do(t, http.MethodPost, "/api/import/web", importBody{}, "HX-Request", "true")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `class="alert alert-error"`) {
		t.Errorf("body is not an alert fragment: %s", rec.Body.String())
	}
}

// =============================================================================
// History and status
// =============================================================================

func TestHistory(t *testing.T) {
	e := newTestEnv(t, nil)
	for range 3 {
		e.do(t, http.MethodPost, "/api/import/web", importBody{Records: []map[string]any{{"name": "A"}}})
	}

	rec := e.do(t, http.MethodGet, "/api/import/history?limit=2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	entries := decode[[]importer.HistoryEntry](t, rec)
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].ID <= entries[1].ID {
		t.Errorf("history not newest first: %s then %s", entries[0].ID, entries[1].ID)
	}
}

func TestHistory_EmptyIsArray(t *testing.T) {
	e := newTestEnv(t, nil)
	rec := e.do(t, http.MethodGet, "/api/import/history", nil)
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("body = %q, want []", rec.Body.String())
	}
}

func TestImportStatus(t *testing.T) {
	e := newTestEnv(t, nil)
	rec := e.do(t, http.MethodGet, "/api/import/status", nil)
	st := decode[importer.LimiterStatus](t, rec)
	if st.Active != 0 || st.Available != st.MaxConcurrent {
		t.Errorf("status = %+v, want idle limiter", st)
	}
}

func TestListColumns(t *testing.T) {
	e := newTestEnv(t, nil)
	rec := e.do(t, http.MethodGet, "/api/import/columns", nil)
	got := decode[columnsResponse](t, rec)

	if len(got.Columns) != len(importer.Columns) {
		t.Errorf("columns = %d, want %d", len(got.Columns), len(importer.Columns))
	}
	want := []requiredColumn{{Field: "name", Label: "Customer Name"}}
	if len(got.Required) != 1 || got.Required[0] != want[0] {
		t.Errorf("required = %+v, want %+v", got.Required, want)
	}
	if len(got.StandardFields) != len(dedupe.StandardFields()) || got.StandardFields[0].Key != dedupe.FieldPhone {
		t.Errorf("standard fields = %+v", got.StandardFields)
	}
}

func TestRespondError_PlainText(t *testing.T) {
	e := newTestEnv(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/page", nil)
	rec := httptest.NewRecorder()

	e.srv.respondError(rec, req, importer.ErrEmptyBatch)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if body := rec.Body.String(); !strings.Contains(body, "(Code: IMP001)") {
		t.Errorf("body = %q, want formatted user error", body)
	}
}

// =============================================================================
// Settings and single-record check
// =============================================================================

func TestSettings_RoundTrip(t *testing.T) {
	e := newTestEnv(t, nil)

	got := decode[dedupe.Config](t, e.do(t, http.MethodGet, "/api/dedupe/settings", nil))
	if !got.EnabledFields[dedupe.FieldPhone] || got.StrictMode {
		t.Errorf("default settings = %+v", got)
	}

	rec := e.do(t, http.MethodPut, "/api/dedupe/settings", dedupe.Config{
		EnabledFields: map[dedupe.FieldKey]bool{dedupe.FieldEmail: true},
		CustomFields:  []dedupe.CustomField{{Name: "Policy Number", Key: "policyNumber", Enabled: true}},
		StrictMode:    true,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT status = %d: %s", rec.Code, rec.Body.String())
	}
	saved := decode[dedupe.Config](t, rec)
	if len(saved.CustomFields) != 1 || saved.CustomFields[0].ID == "" {
		t.Errorf("custom field id not filled: %+v", saved.CustomFields)
	}

	got = decode[dedupe.Config](t, e.do(t, http.MethodGet, "/api/dedupe/settings", nil))
	if !got.StrictMode || got.EnabledFields[dedupe.FieldPhone] {
		t.Errorf("settings after save = %+v", got)
	}
}

func TestSettings_RejectsInvalid(t *testing.T) {
	e := newTestEnv(t, nil)
	rec := e.do(t, http.MethodPut, "/api/dedupe/settings", `{"enabledFields":{"bogus":true}}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if got := decode[ErrorResponse](t, rec); got.Code != "CFG001" {
		t.Errorf("code = %q, want CFG001", got.Code)
	}
}

func TestCheckRecord(t *testing.T) {
	e := newTestEnv(t, nil)
	seedExisting(e)

	rec := e.do(t, http.MethodPost, "/api/dedupe/check/web", map[string]any{
		"record": map[string]any{"name": "X", "phone": "+98765 43210"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	res := decode[importer.CheckResult](t, rec)
	if !res.Duplicate.IsDuplicate || !res.Validation.Valid {
		t.Errorf("result = %+v, want valid duplicate", res)
	}
	if e.store.Len() != 1 {
		t.Error("check must not store the record")
	}
}

func TestCheckRecord_MissingRecord(t *testing.T) {
	e := newTestEnv(t, nil)
	rec := e.do(t, http.MethodPost, "/api/dedupe/check/web", map[string]any{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

// =============================================================================
// Auth
// =============================================================================

func TestAPIRequiresKey(t *testing.T) {
	cfg := testConfig()
	cfg.Security.RequireAPIKey = true
	cfg.Security.APIKeys = []string{"secret"}
	e := newTestEnv(t, cfg)

	if rec := e.do(t, http.MethodGet, "/api/dedupe/settings", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("no key: status = %d, want 401", rec.Code)
	}
	if rec := e.do(t, http.MethodGet, "/api/dedupe/settings", nil, "X-API-Key", "secret"); rec.Code != http.StatusOK {
		t.Errorf("valid key: status = %d, want 200", rec.Code)
	}
	if rec := e.do(t, http.MethodGet, "/healthz", nil); rec.Code != http.StatusOK {
		t.Errorf("healthz should not need a key, got %d", rec.Code)
	}
}

// =============================================================================
// Error mapping
// =============================================================================

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{importer.ErrEmptyBatch, http.StatusBadRequest},
		{importer.ErrTooManyRows, http.StatusRequestEntityTooLarge},
		{importer.ErrStrictMode, http.StatusConflict},
		{importer.ErrUnknownSource, http.StatusNotFound},
		{importer.ErrTooManyImports, http.StatusServiceUnavailable},
		{importer.ErrReferenceUnavailable, http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{&http.MaxBytesError{Limit: 1}, http.StatusRequestEntityTooLarge},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
