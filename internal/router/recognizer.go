// Package router matches request paths against registered route patterns.
package router

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Togather-Foundation/tsukuyomi/internal/uri"
)

// ErrDuplicateRoute is returned when the same pattern is inserted twice.
var ErrDuplicateRoute = errors.New("duplicate route")

// Recognizer is a segment trie mapping route patterns to values.
//
// Matching prefers static segments over parameters and parameters over
// catch-alls, backtracking when a preferred branch does not lead to a route.
// A trailing slash is significant: "/posts" and "/posts/" are different routes.
type Recognizer[T any] struct {
	root node[T]
	size int
}

type node[T any] struct {
	static   map[string]*node[T]
	param    *node[T]
	catchAll *node[T]

	value T
	set   bool
}

// Len returns the number of inserted patterns.
func (r *Recognizer[T]) Len() int {
	return r.size
}

// Insert registers value under pattern.
func (r *Recognizer[T]) Insert(pattern uri.URI, value T) error {
	n := &r.root
	for _, segment := range splitPath(pattern.String()) {
		switch {
		case strings.HasPrefix(segment, ":"):
			if n.param == nil {
				n.param = &node[T]{}
			}
			n = n.param
		case strings.HasPrefix(segment, "*"):
			if n.catchAll == nil {
				n.catchAll = &node[T]{}
			}
			n = n.catchAll
		default:
			if n.static == nil {
				n.static = make(map[string]*node[T])
			}
			child, ok := n.static[segment]
			if !ok {
				child = &node[T]{}
				n.static[segment] = child
			}
			n = child
		}
	}

	if n.set {
		return fmt.Errorf("%w: %s", ErrDuplicateRoute, pattern)
	}
	n.value = value
	n.set = true
	r.size++
	return nil
}

// Recognize finds the route matching path. The returned captures are the raw
// (still percent-encoded) parameter values in declaration order.
func (r *Recognizer[T]) Recognize(path string) (T, []string, bool) {
	if !strings.HasPrefix(path, "/") {
		var zero T
		return zero, nil, false
	}
	return r.root.match(splitPath(path), nil)
}

func (n *node[T]) match(segments []string, captures []string) (T, []string, bool) {
	if len(segments) == 0 {
		if n.set {
			return n.value, captures, true
		}
		var zero T
		return zero, nil, false
	}

	segment := segments[0]
	if child, ok := n.static[segment]; ok {
		if value, caps, ok := child.match(segments[1:], captures); ok {
			return value, caps, true
		}
	}

	if n.param != nil && segment != "" {
		next := append(captures[:len(captures):len(captures)], segment)
		if value, caps, ok := n.param.match(segments[1:], next); ok {
			return value, caps, true
		}
	}

	if n.catchAll != nil && n.catchAll.set {
		if rest := strings.Join(segments, "/"); rest != "" {
			return n.catchAll.value, append(captures[:len(captures):len(captures)], rest), true
		}
	}

	var zero T
	return zero, nil, false
}

// splitPath splits an absolute path into its segments. The root path yields a
// single empty segment and a trailing slash yields a trailing empty segment.
func splitPath(path string) []string {
	return strings.Split(strings.TrimPrefix(path, "/"), "/")
}
