package web

import (
	"context"
	"net/http"

	"github.com/welleazyhts/CRM-p360-frontend-sub007/internal/importer"
)

// WithRequestMetadata adds the client IP and User-Agent to ctx for import
// history. RemoteAddr has already been rewritten by TrustedRealIP.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ctx = importer.ContextWithIPAddress(ctx, r.RemoteAddr)
	ctx = importer.ContextWithUserAgent(ctx, r.UserAgent())
	return ctx
}
