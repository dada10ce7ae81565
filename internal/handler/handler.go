// Package handler defines request handlers and the modifiers that wrap them.
package handler

import (
	"github.com/Togather-Foundation/tsukuyomi/internal/input"
	"github.com/Togather-Foundation/tsukuyomi/internal/output"
)

// Handler processes a request.
type Handler interface {
	Handle(in *input.Input) (output.Responder, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(in *input.Input) (output.Responder, error)

func (f HandlerFunc) Handle(in *input.Input) (output.Responder, error) {
	return f(in)
}

// Ready returns a handler that never fails.
func Ready(fn func(in *input.Input) output.Responder) Handler {
	return HandlerFunc(func(in *input.Input) (output.Responder, error) {
		return fn(in), nil
	})
}

// MethodRestricted is implemented by handlers that only accept some methods.
// Handlers that do not implement it accept any method.
type MethodRestricted interface {
	AllowedMethods() []string
}

// AllowedMethods returns the methods h accepts, or nil for any method.
func AllowedMethods(h Handler) []string {
	if m, ok := h.(MethodRestricted); ok {
		return m.AllowedMethods()
	}
	return nil
}

// Modifier wraps a handler with additional behavior.
type Modifier interface {
	Modify(h Handler) Handler
}

// ModifierFunc adapts a function to Modifier.
type ModifierFunc func(h Handler) Handler

func (f ModifierFunc) Modify(h Handler) Handler {
	return f(h)
}

// Identity returns the handler unchanged.
var Identity Modifier = ModifierFunc(func(h Handler) Handler { return h })

// Chain composes modifiers. The first modifier is the outermost one.
func Chain(mods ...Modifier) Modifier {
	return ModifierFunc(func(h Handler) Handler {
		for i := len(mods) - 1; i >= 0; i-- {
			if mods[i] != nil {
				h = mods[i].Modify(h)
			}
		}
		return h
	})
}

// Apply wraps h with mods keeping the method restriction of h.
func Apply(h Handler, mods ...Modifier) Handler {
	if len(mods) == 0 {
		return h
	}
	methods := AllowedMethods(h)
	wrapped := Chain(mods...).Modify(h)
	if methods == nil || AllowedMethods(wrapped) != nil {
		return wrapped
	}
	return restricted{Handler: wrapped, methods: methods}
}

type restricted struct {
	Handler
	methods []string
}

func (r restricted) AllowedMethods() []string {
	return r.methods
}

// Around builds a modifier from a function receiving the input and the next
// handler.
func Around(fn func(in *input.Input, next Handler) (output.Responder, error)) Modifier {
	return ModifierFunc(func(next Handler) Handler {
		return HandlerFunc(func(in *input.Input) (output.Responder, error) {
			return fn(in, next)
		})
	})
}
