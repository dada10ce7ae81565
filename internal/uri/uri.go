// Package uri parses and joins the path patterns used to register routes.
//
// A pattern is an absolute, ASCII-only path whose segments are either static
// text, a named parameter (":id") or a trailing catch-all ("*path"):
//
//	/
//	/api/v1/posts
//	/api/v1/posts/:id
//	/static/*path
//	/users/
package uri

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotASCII            = errors.New("uri is not ASCII")
	ErrMissingLeadingSlash = errors.New("uri must start with '/'")
	ErrEmptySegment        = errors.New("empty segment")
	ErrInvalidCharacter    = errors.New("invalid character in a segment")
	ErrCatchAllNotLast     = errors.New("the catch-all parameter has already been set")
	ErrEmptyParamName      = errors.New("empty parameter name")
	ErrDuplicateParam      = errors.New("duplicated parameter name")
)

// URI is a validated route pattern. The zero value is the root URI.
type URI struct {
	path  string
	names *CaptureNames
}

// Root returns the URI "/".
func Root() URI {
	return URI{}
}

// MustParse is like Parse but panics on error. Intended for package-level patterns.
func MustParse(s string) URI {
	u, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return u
}

// Parse validates s and returns the corresponding URI.
func Parse(s string) (URI, error) {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return URI{}, fmt.Errorf("parse %q: %w", s, ErrNotASCII)
		}
	}
	if !strings.HasPrefix(s, "/") {
		return URI{}, fmt.Errorf("parse %q: %w", s, ErrMissingLeadingSlash)
	}
	if s == "/" {
		return Root(), nil
	}

	trimmed := strings.TrimSuffix(s, "/")

	var names *CaptureNames
	for _, segment := range strings.Split(trimmed[1:], "/") {
		if names != nil && names.wildcard {
			return URI{}, fmt.Errorf("parse %q: %w", s, ErrCatchAllNotLast)
		}
		if segment == "" {
			return URI{}, fmt.Errorf("parse %q: %w", s, ErrEmptySegment)
		}
		if strings.ContainsAny(segment[1:], ":*") {
			return URI{}, fmt.Errorf("parse %q: %w", s, ErrInvalidCharacter)
		}
		switch segment[0] {
		case ':', '*':
			if names == nil {
				names = &CaptureNames{}
			}
			if err := names.push(segment); err != nil {
				return URI{}, fmt.Errorf("parse %q: %w", s, err)
			}
		}
	}

	if names != nil && names.wildcard && trimmed != s {
		return URI{}, fmt.Errorf("parse %q: %w", s, ErrCatchAllNotLast)
	}

	return URI{path: s, names: names}, nil
}

// String returns the pattern text.
func (u URI) String() string {
	if u.path == "" {
		return "/"
	}
	return u.path
}

// IsRoot reports whether u is "/".
func (u URI) IsRoot() bool {
	return u.path == "" || u.path == "/"
}

// HasTrailingSlash reports whether the pattern ends with '/'. The root URI does not.
func (u URI) HasTrailingSlash() bool {
	return !u.IsRoot() && strings.HasSuffix(u.path, "/")
}

// CaptureNames returns the parameters declared by the pattern, or nil.
func (u URI) CaptureNames() *CaptureNames {
	return u.names
}

// Equal compares two URIs by their pattern text.
func (u URI) Equal(other URI) bool {
	return u.String() == other.String()
}

// Join appends other to u, as done when a route is registered below a scope prefix.
func (u URI) Join(other URI) (URI, error) {
	if u.IsRoot() {
		return other.clone(), nil
	}
	if other.IsRoot() {
		return u.clone(), nil
	}
	if u.names != nil && u.names.wildcard {
		return URI{}, fmt.Errorf("join %q and %q: %w", u, other, ErrCatchAllNotLast)
	}

	path := u.path
	if strings.HasSuffix(path, "/") {
		path += strings.TrimPrefix(other.path, "/")
	} else {
		path += other.path
	}

	names := u.names.clone()
	if other.names != nil {
		if names == nil {
			names = &CaptureNames{}
		}
		for i, name := range other.names.params {
			kind := ":"
			if other.names.wildcard && i == len(other.names.params)-1 {
				kind = "*"
			}
			if err := names.push(kind + name); err != nil {
				return URI{}, fmt.Errorf("join %q and %q: %w", u, other, err)
			}
		}
	}
	return URI{path: path, names: names}, nil
}

func (u URI) clone() URI {
	return URI{path: u.path, names: u.names.clone()}
}

// CaptureNames is the ordered set of parameter names declared by a pattern.
type CaptureNames struct {
	params   []string
	wildcard bool
}

func (c *CaptureNames) push(segment string) error {
	if c.wildcard {
		return ErrCatchAllNotLast
	}
	kind, name := segment[0], segment[1:]
	if name == "" {
		return ErrEmptyParamName
	}
	for _, existing := range c.params {
		if existing == name {
			return fmt.Errorf("%w: %q", ErrDuplicateParam, name)
		}
	}
	c.params = append(c.params, name)
	if kind == '*' {
		c.wildcard = true
	}
	return nil
}

func (c *CaptureNames) clone() *CaptureNames {
	if c == nil {
		return nil
	}
	params := make([]string, len(c.params))
	copy(params, c.params)
	return &CaptureNames{params: params, wildcard: c.wildcard}
}

// Position returns the index of the named parameter.
func (c *CaptureNames) Position(name string) (int, bool) {
	if c == nil {
		return 0, false
	}
	for i, param := range c.params {
		if param == name {
			return i, true
		}
	}
	return 0, false
}

// Names returns the parameter names in declaration order.
func (c *CaptureNames) Names() []string {
	if c == nil {
		return nil
	}
	names := make([]string, len(c.params))
	copy(names, c.params)
	return names
}

// Len returns the number of parameters.
func (c *CaptureNames) Len() int {
	if c == nil {
		return 0
	}
	return len(c.params)
}

// HasCatchAll reports whether the last parameter is a catch-all.
func (c *CaptureNames) HasCatchAll() bool {
	return c != nil && c.wildcard
}
