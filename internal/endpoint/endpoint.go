// Package endpoint builds handlers restricted to a set of HTTP methods and
// binds extractors to typed handler functions.
package endpoint

import (
	"net/http"
	"strings"

	"github.com/Togather-Foundation/tsukuyomi/internal/extractor"
	"github.com/Togather-Foundation/tsukuyomi/internal/handler"
	"github.com/Togather-Foundation/tsukuyomi/internal/input"
	"github.com/Togather-Foundation/tsukuyomi/internal/output"
)

// Endpoint is a handler accepting only some methods.
type Endpoint struct {
	methods []string
	handler handler.Handler
}

// AllowOnly restricts h to methods. Method names are upper-cased and
// deduplicated.
func AllowOnly(methods []string, h handler.Handler) *Endpoint {
	seen := make(map[string]bool, len(methods))
	normalized := make([]string, 0, len(methods))
	for _, m := range methods {
		m = strings.ToUpper(strings.TrimSpace(m))
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		normalized = append(normalized, m)
	}
	return &Endpoint{methods: normalized, handler: h}
}

func (e *Endpoint) Handle(in *input.Input) (output.Responder, error) {
	return e.handler.Handle(in)
}

func (e *Endpoint) AllowedMethods() []string {
	return e.methods
}

func Get(h handler.Handler) *Endpoint     { return AllowOnly([]string{http.MethodGet}, h) }
func Post(h handler.Handler) *Endpoint    { return AllowOnly([]string{http.MethodPost}, h) }
func Put(h handler.Handler) *Endpoint     { return AllowOnly([]string{http.MethodPut}, h) }
func Delete(h handler.Handler) *Endpoint  { return AllowOnly([]string{http.MethodDelete}, h) }
func Head(h handler.Handler) *Endpoint    { return AllowOnly([]string{http.MethodHead}, h) }
func Options(h handler.Handler) *Endpoint { return AllowOnly([]string{http.MethodOptions}, h) }
func Patch(h handler.Handler) *Endpoint   { return AllowOnly([]string{http.MethodPatch}, h) }
func Connect(h handler.Handler) *Endpoint { return AllowOnly([]string{http.MethodConnect}, h) }
func Trace(h handler.Handler) *Endpoint   { return AllowOnly([]string{http.MethodTrace}, h) }

// Any accepts every method.
func Any(h handler.Handler) handler.Handler {
	return h
}

// Reply always responds with r.
func Reply(r output.Responder) handler.Handler {
	return handler.HandlerFunc(func(*input.Input) (output.Responder, error) {
		return r, nil
	})
}

// Call runs fn for every request.
func Call(fn func() (output.Responder, error)) handler.Handler {
	return handler.HandlerFunc(func(*input.Input) (output.Responder, error) {
		return fn()
	})
}

// Call1 passes the value extracted by a to fn.
func Call1[A any](a extractor.Extractor[A], fn func(A) (output.Responder, error)) handler.Handler {
	return handler.HandlerFunc(func(in *input.Input) (output.Responder, error) {
		va, err := a.Extract(in)
		if err != nil {
			return nil, err
		}
		return fn(va)
	})
}

// Call2 passes the values extracted by a and b to fn, in that order.
func Call2[A, B any](a extractor.Extractor[A], b extractor.Extractor[B], fn func(A, B) (output.Responder, error)) handler.Handler {
	return handler.HandlerFunc(func(in *input.Input) (output.Responder, error) {
		va, err := a.Extract(in)
		if err != nil {
			return nil, err
		}
		vb, err := b.Extract(in)
		if err != nil {
			return nil, err
		}
		return fn(va, vb)
	})
}

func Call3[A, B, C any](
	a extractor.Extractor[A],
	b extractor.Extractor[B],
	c extractor.Extractor[C],
	fn func(A, B, C) (output.Responder, error),
) handler.Handler {
	return handler.HandlerFunc(func(in *input.Input) (output.Responder, error) {
		va, err := a.Extract(in)
		if err != nil {
			return nil, err
		}
		vb, err := b.Extract(in)
		if err != nil {
			return nil, err
		}
		vc, err := c.Extract(in)
		if err != nil {
			return nil, err
		}
		return fn(va, vb, vc)
	})
}

func Call4[A, B, C, D any](
	a extractor.Extractor[A],
	b extractor.Extractor[B],
	c extractor.Extractor[C],
	d extractor.Extractor[D],
	fn func(A, B, C, D) (output.Responder, error),
) handler.Handler {
	return handler.HandlerFunc(func(in *input.Input) (output.Responder, error) {
		va, err := a.Extract(in)
		if err != nil {
			return nil, err
		}
		vb, err := b.Extract(in)
		if err != nil {
			return nil, err
		}
		vc, err := c.Extract(in)
		if err != nil {
			return nil, err
		}
		vd, err := d.Extract(in)
		if err != nil {
			return nil, err
		}
		return fn(va, vb, vc, vd)
	})
}
