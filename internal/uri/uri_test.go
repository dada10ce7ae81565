package uri

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		params   []string
		catchAll bool
	}{
		{name: "root", input: "/", expected: "/"},
		{name: "static", input: "/path/to/lib", expected: "/path/to/lib"},
		{name: "static with trailing slash", input: "/path/to/lib/", expected: "/path/to/lib/"},
		{name: "param", input: "/posts/:id", expected: "/posts/:id", params: []string{"id"}},
		{
			name:     "param and catch-all",
			input:    "/api/v1/:param/*path",
			expected: "/api/v1/:param/*path",
			params:   []string{"param", "path"},
			catchAll: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got.String())
			assert.Equal(t, tt.params, got.CaptureNames().Names())
			assert.Equal(t, tt.catchAll, got.CaptureNames().HasCatchAll())
		})
	}
}

func TestParse_Failures(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error
	}{
		{name: "empty", input: "", want: ErrMissingLeadingSlash},
		{name: "relative", input: "foo/bar", want: ErrMissingLeadingSlash},
		{name: "leading double slash", input: "//foo/bar/", want: ErrEmptySegment},
		{name: "inner double slash", input: "/foo//bar/", want: ErrEmptySegment},
		{name: "trailing double slash", input: "/foo/bar//", want: ErrEmptySegment},
		{name: "misplaced specifier", input: "/pa:th", want: ErrInvalidCharacter},
		{name: "non ascii", input: "/パス", want: ErrNotASCII},
		{name: "duplicated param", input: "/:id/:id", want: ErrDuplicateParam},
		{name: "segment after catch-all", input: "/path/to/*a/id", want: ErrCatchAllNotLast},
		{name: "slash after catch-all", input: "/files/*a/", want: ErrCatchAllNotLast},
		{name: "empty param name", input: "/posts/:", want: ErrEmptyParamName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v, want %v", err, tt.want)
		})
	}
}

func TestJoin(t *testing.T) {
	tests := []struct {
		name     string
		left     string
		right    string
		expected string
	}{
		{name: "roots", left: "/", right: "/", expected: "/"},
		{name: "root and static", left: "/", right: "/path/to", expected: "/path/to"},
		{name: "trailing slash before root", left: "/path/to/", right: "/", expected: "/path/to/"},
		{name: "static before root", left: "/path/to", right: "/", expected: "/path/to"},
		{name: "static before static", left: "/path", right: "/to", expected: "/path/to"},
		{name: "trailing slash before static", left: "/path/", right: "/to", expected: "/path/to"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MustParse(tt.left).Join(MustParse(tt.right))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got.String())
		})
	}
}

func TestJoin_MergesCaptureNames(t *testing.T) {
	prefix := MustParse("/users/:user")

	got, err := prefix.Join(MustParse("/files/*path"))
	require.NoError(t, err)
	assert.Equal(t, "/users/:user/files/*path", got.String())
	assert.Equal(t, []string{"user", "path"}, got.CaptureNames().Names())
	assert.True(t, got.CaptureNames().HasCatchAll())

	pos, ok := got.CaptureNames().Position("path")
	require.True(t, ok)
	assert.Equal(t, 1, pos)

	// the prefix must not be mutated by the join
	assert.Equal(t, []string{"user"}, prefix.CaptureNames().Names())
}

func TestJoin_Failures(t *testing.T) {
	_, err := MustParse("/users/:id").Join(MustParse("/posts/:id"))
	assert.ErrorIs(t, err, ErrDuplicateParam)

	_, err = MustParse("/static/*path").Join(MustParse("/more"))
	assert.ErrorIs(t, err, ErrCatchAllNotLast)
}
