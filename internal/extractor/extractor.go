// Package extractor pulls typed values out of a request.
//
// Extraction failures caused by the client are reported as 400 Bad Request.
// Failures caused by a misconfigured application (a parameter the route does
// not declare, state that was never registered) are reported as 500.
package extractor

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Togather-Foundation/tsukuyomi/internal/httperr"
	"github.com/Togather-Foundation/tsukuyomi/internal/input"
)

// Extractor extracts a value of type T from a request.
type Extractor[T any] interface {
	Extract(in *input.Input) (T, error)
}

// Func adapts a function to Extractor.
type Func[T any] func(in *input.Input) (T, error)

func (f Func[T]) Extract(in *input.Input) (T, error) {
	return f(in)
}

// Unit is the result of extractors that only check the request.
type Unit = struct{}

// Pair holds the results of two extractors.
type Pair[A, B any] struct {
	Left  A
	Right B
}

// Both runs a then b.
func Both[A, B any](a Extractor[A], b Extractor[B]) Extractor[Pair[A, B]] {
	return Func[Pair[A, B]](func(in *input.Input) (Pair[A, B], error) {
		left, err := a.Extract(in)
		if err != nil {
			return Pair[A, B]{}, err
		}
		right, err := b.Extract(in)
		if err != nil {
			return Pair[A, B]{}, err
		}
		return Pair[A, B]{Left: left, Right: right}, nil
	})
}

// Optional turns a failed extraction into nil.
func Optional[T any](e Extractor[T]) Extractor[*T] {
	return Func[*T](func(in *input.Input) (*T, error) {
		v, err := e.Extract(in)
		if err != nil {
			return nil, nil
		}
		return &v, nil
	})
}

// Fallible exposes the extraction error to the handler instead of failing
// the request.
func Fallible[T any](e Extractor[T]) Extractor[Result[T]] {
	return Func[Result[T]](func(in *input.Input) (Result[T], error) {
		v, err := e.Extract(in)
		return Result[T]{Value: v, Err: err}, nil
	})
}

// Result is the outcome of a Fallible extraction.
type Result[T any] struct {
	Value T
	Err   error
}

// Map transforms the extracted value. Errors returned by fn without an HTTP
// status are reported as 400.
func Map[T, U any](e Extractor[T], fn func(T) (U, error)) Extractor[U] {
	return Func[U](func(in *input.Input) (U, error) {
		var zero U
		v, err := e.Extract(in)
		if err != nil {
			return zero, err
		}
		u, err := fn(v)
		if err != nil {
			return zero, asBadRequest(err)
		}
		return u, nil
	})
}

// Guard checks the request without extracting anything.
func Guard(fn func(in *input.Input) error) Extractor[Unit] {
	return Func[Unit](func(in *input.Input) (Unit, error) {
		return Unit{}, fn(in)
	})
}

// Before runs guard before e and discards its result.
func Before[G, T any](guard Extractor[G], e Extractor[T]) Extractor[T] {
	return Func[T](func(in *input.Input) (T, error) {
		if _, err := guard.Extract(in); err != nil {
			var zero T
			return zero, err
		}
		return e.Extract(in)
	})
}

// Value always extracts v.
func Value[T any](v T) Extractor[T] {
	return Func[T](func(*input.Input) (T, error) {
		return v, nil
	})
}

// Request extracts the underlying *http.Request.
func Request() Extractor[*http.Request] {
	return Func[*http.Request](func(in *input.Input) (*http.Request, error) {
		return in.Request, nil
	})
}

// Method extracts the request method.
func Method() Extractor[string] {
	return Func[string](func(in *input.Input) (string, error) {
		return in.Method(), nil
	})
}

// State extracts the value of type T registered on the matched scope.
func State[T any]() Extractor[T] {
	return Func[T](func(in *input.Input) (T, error) {
		v, ok := input.StateOf[T](in)
		if !ok {
			var zero T
			return zero, httperr.InternalServerError(fmt.Errorf("state %T is not registered", zero))
		}
		return v, nil
	})
}

// Local extracts a request-local value set by a modifier.
func Local[T any](key any) Extractor[T] {
	return Func[T](func(in *input.Input) (T, error) {
		var zero T
		v, ok := in.Local(key)
		if !ok {
			return zero, httperr.InternalServerError(fmt.Errorf("local value %v is not set", key))
		}
		typed, ok := v.(T)
		if !ok {
			return zero, httperr.InternalServerError(fmt.Errorf("local value %v has type %T", key, v))
		}
		return typed, nil
	})
}

func asBadRequest(err error) error {
	var httpErr *httperr.Error
	if errors.As(err, &httpErr) {
		return err
	}
	return httperr.BadRequest(err)
}
