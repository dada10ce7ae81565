package middleware

import (
	"net/http"

	"github.com/Togather-Foundation/tsukuyomi/internal/problem"
)

// DefaultMaxBodySize is used when RequestSize is given a non-positive limit.
const DefaultMaxBodySize int64 = 1 << 20 // 1MB

// RequestSize limits the size of incoming request bodies.
//
// Requests declaring a larger Content-Length are rejected up front with 413.
// Other bodies are wrapped with http.MaxBytesReader, so reads past the limit
// fail with *http.MaxBytesError, which body extractors report as 413.
func RequestSize(maxBytes int64, env string) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodySize
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				problem.Write(w, r, http.StatusRequestEntityTooLarge,
					problem.TypeFor(http.StatusRequestEntityTooLarge), "Payload Too Large", nil, env)
				return
			}
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
