package web

// errors.go turns service errors into HTTP responses.
//
// The technical error is logged with the request id; the client only sees the
// mapped user message. The body is an HTMX fragment, JSON or plain text
// depending on the request.

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/welleazyhts/CRM-p360-frontend-sub007/internal/importer"
	"github.com/welleazyhts/CRM-p360-frontend-sub007/internal/logging"
	"github.com/welleazyhts/CRM-p360-frontend-sub007/internal/settings"
	"github.com/welleazyhts/CRM-p360-frontend-sub007/internal/web/templates"
)

// ErrorResponse is the JSON body of an API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

var statusBySentinel = []struct {
	err    error
	status int
}{
	{importer.ErrTooManyRows, http.StatusRequestEntityTooLarge},
	{importer.ErrEmptyBatch, http.StatusBadRequest},
	{importer.ErrInvalidRequest, http.StatusBadRequest},
	{importer.ErrUnknownRow, http.StatusBadRequest},
	{importer.ErrNotDuplicate, http.StatusBadRequest},
	{settings.ErrInvalid, http.StatusBadRequest},
	{importer.ErrUnknownSource, http.StatusNotFound},
	{importer.ErrStrictMode, http.StatusConflict},
	{importer.ErrTooManyImports, http.StatusServiceUnavailable},
	{importer.ErrReferenceUnavailable, http.StatusServiceUnavailable},
	{importer.ErrSettingsUnavailable, http.StatusServiceUnavailable},
	{context.DeadlineExceeded, http.StatusGatewayTimeout},
	{context.Canceled, http.StatusRequestTimeout},
}

// statusFor picks the HTTP status for err. Unknown errors are 500.
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	for _, s := range statusBySentinel {
		if errors.Is(err, s.err) {
			return s.status
		}
	}
	return http.StatusInternalServerError
}

// respondError logs err and writes the user-facing message. Errors without
// a specific user message are logged at error level.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	ue := importer.NewUserError(err)
	msg := ue.User

	logger := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", ue.Technical.Error(),
		"code", msg.Code,
	}
	if status >= http.StatusInternalServerError || !importer.IsUserFacing(err) {
		logger.Error("request error", attrs...)
	} else {
		logger.Warn("request error", attrs...)
	}

	if errors.Is(err, importer.ErrTooManyImports) {
		w.Header().Set("Retry-After", "5")
	}

	switch {
	case isHTMX(r):
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		_ = templates.ErrorAlert(msg.Message, msg.Action, msg.Code).Render(r.Context(), w)
	case wantsJSON(r):
		writeJSON(w, status, ErrorResponse{
			Error:   msg.Message,
			Message: msg.Message,
			Action:  msg.Action,
			Code:    msg.Code,
		})
	default:
		http.Error(w, importer.FormatUserError(err), status)
	}
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// wantsJSON reports whether the client takes JSON. API routes always do.
func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.Contains(r.Header.Get("Content-Type"), "application/json") ||
		strings.HasPrefix(r.URL.Path, "/api/")
}
