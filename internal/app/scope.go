package app

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/Togather-Foundation/tsukuyomi/internal/handler"
	"github.com/Togather-Foundation/tsukuyomi/internal/uri"
)

// scope is the resolved form of a Scope shared by the routes registered in it.
type scope struct {
	parent   *scope
	depth    int
	prefix   uri.URI
	mods     []handler.Modifier
	fallback handler.Handler
	state    map[reflect.Type]any
}

// Lookup resolves state registered on the scope or one of its ancestors.
func (s *scope) Lookup(t reflect.Type) (any, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if v, ok := cur.state[t]; ok {
			return v, true
		}
	}
	return nil, false
}

// modifier composes the modifiers of every ancestor, outermost first.
func (s *scope) modifier() handler.Modifier {
	var chain []handler.Modifier
	for cur := s; cur != nil; cur = cur.parent {
		chain = append(append([]handler.Modifier(nil), cur.mods...), chain...)
	}
	return handler.Chain(chain...)
}

// matchesPrefix reports whether path lies below the scope prefix.
func (s *scope) matchesPrefix(path string) bool {
	if s.prefix.IsRoot() {
		return true
	}
	prefix := strings.Split(strings.TrimSuffix(s.prefix.String()[1:], "/"), "/")
	segments := strings.Split(strings.TrimPrefix(path, "/"), "/")
	for i, p := range prefix {
		if i >= len(segments) {
			return false
		}
		switch p[0] {
		case ':':
			if segments[i] == "" {
				return false
			}
		case '*':
			return strings.Join(segments[i:], "/") != ""
		default:
			if segments[i] != p {
				return false
			}
		}
	}
	return true
}

// Scope registers routes below a common prefix sharing modifiers, state and
// a fallback handler.
type Scope struct {
	b *builder
	s *scope
}

// Prefix returns the full prefix of the scope.
func (sc *Scope) Prefix() string {
	return sc.s.prefix.String()
}

// At registers h at path, relative to the scope prefix. Registering the same
// path again with a disjoint set of methods adds the methods to the route.
func (sc *Scope) At(path string, h handler.Handler, mods ...handler.Modifier) error {
	if h == nil {
		return fmt.Errorf("register %q: %w", path, ErrNilHandler)
	}
	rel, err := uri.Parse(path)
	if err != nil {
		return fmt.Errorf("register %q: %w", path, err)
	}
	full, err := sc.s.prefix.Join(rel)
	if err != nil {
		return fmt.Errorf("register %q: %w", path, err)
	}
	return sc.b.addEndpoint(sc.s, full, h, mods)
}

// Mount creates a child scope at prefix and calls fn to populate it.
func (sc *Scope) Mount(prefix string, fn func(*Scope) error) error {
	rel, err := uri.Parse(prefix)
	if err != nil {
		return fmt.Errorf("mount %q: %w", prefix, err)
	}
	full, err := sc.s.prefix.Join(rel)
	if err != nil {
		return fmt.Errorf("mount %q: %w", prefix, err)
	}
	return sc.child(full, nil, fn)
}

// Modify creates a child scope with the same prefix whose routes are wrapped
// by mod.
func (sc *Scope) Modify(mod handler.Modifier, fn func(*Scope) error) error {
	return sc.child(sc.s.prefix, []handler.Modifier{mod}, fn)
}

func (sc *Scope) child(prefix uri.URI, mods []handler.Modifier, fn func(*Scope) error) error {
	s := sc.b.newScope(sc.s, prefix)
	s.mods = mods
	if fn == nil {
		return nil
	}
	return fn(&Scope{b: sc.b, s: s})
}

// Use adds modifiers applied to every route and the fallback of this scope
// and its children, wherever they are registered in the scope.
func (sc *Scope) Use(mods ...handler.Modifier) {
	sc.s.mods = append(sc.s.mods, mods...)
}

// Fallback sets the handler used for requests below the scope prefix that
// match no route.
func (sc *Scope) Fallback(h handler.Handler) {
	sc.s.fallback = h
}

// Set registers shared state, retrievable by its dynamic type with
// extractor.State or input.StateOf.
func (sc *Scope) Set(state any) {
	if sc.s.state == nil {
		sc.s.state = make(map[reflect.Type]any)
	}
	sc.s.state[reflect.TypeOf(state)] = state
}

// SetAs registers state under the type T, which may be an interface.
func SetAs[T any](sc *Scope, state T) {
	if sc.s.state == nil {
		sc.s.state = make(map[reflect.Type]any)
	}
	sc.s.state[reflect.TypeOf((*T)(nil)).Elem()] = state
}
