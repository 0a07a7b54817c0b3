package shield

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hazyhaar/verbatim/idgen"
	"github.com/hazyhaar/verbatim/kit"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

var newRequestID = idgen.Prefixed("req_", idgen.NanoID(12))

// RequestID tags every request with an ID (the caller's X-Request-ID when it
// sends a short one) stored under kit.RequestIDKey, echoes it in the
// response, and derives a per-request logger stored under LoggerKey.
func RequestID(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if id == "" || len(id) > 64 {
				id = newRequestID()
			}
			w.Header().Set(RequestIDHeader, id)

			ctx := kit.WithRequestID(r.Context(), id)
			ctx = context.WithValue(ctx, LoggerKey, logger.With(
				"request_id", id,
				"method", r.Method,
				"path", r.URL.Path,
			))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
