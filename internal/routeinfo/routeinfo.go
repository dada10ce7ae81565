// Package routeinfo carries the matched route pattern from the dispatcher back
// out to the net/http middleware wrapping it.
package routeinfo

import (
	"context"
	"sync"
)

type contextKey struct{}

// Holder records the pattern of the route that served a request.
type Holder struct {
	mu      sync.RWMutex
	pattern string
}

// Pattern returns the recorded pattern, or "" when no route matched.
func (h *Holder) Pattern() string {
	if h == nil {
		return ""
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.pattern
}

// Ensure returns a context carrying a Holder, reusing one already present.
func Ensure(ctx context.Context) (context.Context, *Holder) {
	if h := FromContext(ctx); h != nil {
		return ctx, h
	}
	h := &Holder{}
	return context.WithValue(ctx, contextKey{}, h), h
}

// FromContext returns the Holder installed by Ensure, or nil.
func FromContext(ctx context.Context) *Holder {
	h, _ := ctx.Value(contextKey{}).(*Holder)
	return h
}

// Set records pattern on the Holder in ctx, if any.
func Set(ctx context.Context, pattern string) {
	h := FromContext(ctx)
	if h == nil {
		return
	}
	h.mu.Lock()
	h.pattern = pattern
	h.mu.Unlock()
}

// PatternOr returns the recorded pattern or fallback when none was recorded.
func PatternOr(h *Holder, fallback string) string {
	if p := h.Pattern(); p != "" {
		return p
	}
	return fallback
}
