package router

import "github.com/Togather-Foundation/tsukuyomi/internal/uri"

// Params holds the values captured from the request path.
type Params struct {
	names  *uri.CaptureNames
	values []string
}

// NewParams pairs captured values with the names declared by the route pattern.
func NewParams(names *uri.CaptureNames, values []string) Params {
	return Params{names: names, values: values}
}

// Len returns the number of captured values.
func (p Params) Len() int {
	return len(p.values)
}

// At returns the i-th captured value.
func (p Params) At(i int) (string, bool) {
	if i < 0 || i >= len(p.values) {
		return "", false
	}
	return p.values[i], true
}

// Get returns the value captured for the named parameter.
func (p Params) Get(name string) (string, bool) {
	pos, ok := p.names.Position(name)
	if !ok {
		return "", false
	}
	return p.At(pos)
}

// CatchAll returns the value captured by the trailing catch-all parameter.
func (p Params) CatchAll() (string, bool) {
	if !p.names.HasCatchAll() {
		return "", false
	}
	return p.At(p.names.Len() - 1)
}

// Names returns the declared parameter names.
func (p Params) Names() []string {
	return p.names.Names()
}
