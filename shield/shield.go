// Package shield holds the HTTP middleware placed in front of the upload API:
// security headers, HEAD handling, request IDs with a per-request logger,
// upload body limits and per-client rate limiting.
//
// Usage:
//
//	r := chi.NewRouter()
//	for _, mw := range shield.APIStack(logger) {
//	    r.Use(mw)
//	}
//	r.With(shield.MaxBody(cfg.MaxFileBytes()), limiter.Middleware).Post("/v1/imports", upload)
package shield

import (
	"context"
	"log/slog"
	"net/http"
)

type contextKey string

// LoggerKey is the context key for the per-request structured logger.
const LoggerKey contextKey = "shield_logger"

// APIStack returns the middleware applied to every route, outermost first:
// HeadToGet, SecurityHeaders, RequestID.
func APIStack(logger *slog.Logger) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		HeadToGet,
		SecurityHeaders(DefaultHeaders()),
		RequestID(logger),
	}
}

// GetLogger retrieves the per-request logger from the context, or
// slog.Default() outside a request.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(LoggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}
