// Package input holds the per-request state handed to handlers and extractors.
package input

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"reflect"

	"github.com/Togather-Foundation/tsukuyomi/internal/httperr"
	"github.com/Togather-Foundation/tsukuyomi/internal/router"
)

// ErrBodyTaken is returned when the request body is requested a second time.
var ErrBodyTaken = httperr.New(http.StatusInternalServerError, "payload already taken")

// StateLookup resolves shared state registered on a scope or its ancestors.
type StateLookup interface {
	Lookup(t reflect.Type) (any, bool)
}

// Input is the context of a single request.
type Input struct {
	Request *http.Request
	Params  router.Params
	Cookies *Cookies

	pattern   string
	state     StateLookup
	locals    map[any]any
	bodyTaken bool
}

type Option func(*Input)

// WithParams sets the captured path parameters.
func WithParams(p router.Params) Option {
	return func(in *Input) {
		in.Params = p
	}
}

// WithPattern sets the pattern of the matched route.
func WithPattern(pattern string) Option {
	return func(in *Input) {
		in.pattern = pattern
	}
}

// WithState sets where State lookups are resolved.
func WithState(s StateLookup) Option {
	return func(in *Input) {
		in.state = s
	}
}

// WithCookieKeys enables the signed and private cookie jars.
func WithCookieKeys(keys *CookieKeys) Option {
	return func(in *Input) {
		in.Cookies.keys = keys
	}
}

// New creates the Input for r.
func New(r *http.Request, opts ...Option) *Input {
	in := &Input{
		Request: r,
		Cookies: newCookies(r),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Context returns the request context.
func (in *Input) Context() context.Context {
	return in.Request.Context()
}

// WithContext replaces the request context.
func (in *Input) WithContext(ctx context.Context) {
	in.Request = in.Request.WithContext(ctx)
}

// Pattern returns the pattern of the matched route, or "" for fallbacks.
func (in *Input) Pattern() string {
	return in.pattern
}

// Method returns the request method.
func (in *Input) Method() string {
	return in.Request.Method
}

// Body takes the request body. It can only be taken once per request.
func (in *Input) Body() (io.ReadCloser, error) {
	if in.bodyTaken {
		return nil, ErrBodyTaken
	}
	in.bodyTaken = true
	if in.Request.Body == nil {
		return http.NoBody, nil
	}
	return in.Request.Body, nil
}

// BodyTaken reports whether Body has already been called.
func (in *Input) BodyTaken() bool {
	return in.bodyTaken
}

// ReadAll takes the request body and reads it to the end.
func (in *Input) ReadAll() ([]byte, error) {
	body, err := in.Body()
	if err != nil {
		return nil, err
	}
	defer func() { _ = body.Close() }()

	data, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, httperr.Wrap(http.StatusRequestEntityTooLarge, err)
		}
		return nil, httperr.BadRequest(err)
	}
	return data, nil
}

// ContentType parses the Content-Type header. A missing header yields "".
func (in *Input) ContentType() (string, map[string]string, error) {
	raw := in.Request.Header.Get("Content-Type")
	if raw == "" {
		return "", nil, nil
	}
	mediaType, params, err := mime.ParseMediaType(raw)
	if err != nil {
		return "", nil, httperr.BadRequest(err)
	}
	return mediaType, params, nil
}

// State returns the value of type t registered on the matched scope or one
// of its ancestors.
func (in *Input) State(t reflect.Type) (any, bool) {
	if in.state == nil {
		return nil, false
	}
	return in.state.Lookup(t)
}

// StateOf is the typed form of Input.State.
func StateOf[T any](in *Input) (T, bool) {
	var zero T
	v, ok := in.State(reflect.TypeOf((*T)(nil)).Elem())
	if !ok {
		return zero, false
	}
	typed, ok := v.(T)
	return typed, ok
}

// SetLocal stores a request-local value.
func (in *Input) SetLocal(key, value any) {
	if in.locals == nil {
		in.locals = make(map[any]any)
	}
	in.locals[key] = value
}

// Local returns a request-local value stored with SetLocal.
func (in *Input) Local(key any) (any, bool) {
	v, ok := in.locals[key]
	return v, ok
}
