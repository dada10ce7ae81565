package app

import (
	"errors"
	"net/http"

	"github.com/Togather-Foundation/tsukuyomi/internal/extractor"
	"github.com/Togather-Foundation/tsukuyomi/internal/problem"
)

var (
	ErrMethodConflict = errors.New("method already registered for this route")
	ErrNilHandler     = errors.New("nil handler")
)

// ErrorHandler renders errors returned by handlers, extractors and the
// dispatcher itself.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// DefaultErrorHandler renders errors as problem+json documents. Validation
// failures list the rejected fields.
func DefaultErrorHandler(env string) ErrorHandler {
	return func(w http.ResponseWriter, r *http.Request, err error) {
		var opts []problem.Option
		if fields := extractor.FieldErrors(err); fields != nil {
			opts = append(opts, problem.WithErrors(fields))
		}
		problem.FromError(w, r, err, env, opts...)
	}
}
