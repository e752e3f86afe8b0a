package middleware

import (
	"net/http"
)

// DefaultMaxBodySize bounds form submissions.
const DefaultMaxBodySize int64 = 1 << 20

// RequestSize wraps the body in http.MaxBytesReader. Handlers see a read
// error once maxBytes is exceeded and answer 413.
func RequestSize(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// FormRequestSize limits bodies to DefaultMaxBodySize.
func FormRequestSize() func(http.Handler) http.Handler {
	return RequestSize(DefaultMaxBodySize)
}
