package shield

import "net/http"

// multipartSlack covers the multipart envelope around an uploaded file.
const multipartSlack = 64 << 10

// MaxBody caps the request body at maxBytes plus room for multipart framing.
// Reads past the cap fail with *http.MaxBytesError, which handlers map to 413.
func MaxBody(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartSlack)
			next.ServeHTTP(w, r)
		})
	}
}
