package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/Togather-Foundation/tsukuyomi/internal/problem"
)

// Recover turns a panicking handler into a 500 problem response and logs the
// stack trace. http.ErrAbortHandler is re-raised so net/http can abort the
// connection.
func Recover(env string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rw := &responseWriter{ResponseWriter: w}
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				LoggerFromContext(r.Context()).Error().
					Str("panic", fmt.Sprint(rec)).
					Bytes("stack", debug.Stack()).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Msg("handler panicked")

				if rw.status != 0 {
					// Headers are gone; nothing sensible left to write.
					return
				}
				problem.Write(w, r, http.StatusInternalServerError,
					problem.TypeFor(http.StatusInternalServerError),
					http.StatusText(http.StatusInternalServerError),
					fmt.Errorf("panic: %v", rec), env)
			}()
			next.ServeHTTP(rw, r)
		})
	}
}
