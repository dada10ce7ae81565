package extractor

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/Togather-Foundation/tsukuyomi/internal/httperr"
	"github.com/Togather-Foundation/tsukuyomi/internal/input"
)

// Converter parses a decoded string into T.
type Converter[T any] func(s string) (T, error)

var (
	ErrDotSegment     = errors.New("path segment starts with '.'")
	ErrBackslash      = errors.New("path segment contains '\\'")
	ErrParentSegment  = errors.New("path contains '..'")
	ErrEmptyPathValue = errors.New("empty path")
)

func String(s string) (string, error) {
	return s, nil
}

func Int(s string) (int, error) {
	return strconv.Atoi(s)
}

func Int64(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

func Uint64(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}

func Float64(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}

func Bool(s string) (bool, error) {
	return strconv.ParseBool(s)
}

func UUID(s string) (uuid.UUID, error) {
	return uuid.Parse(s)
}

// Path accepts a relative file path that cannot escape the directory it is
// resolved against.
func Path(s string) (string, error) {
	var segments []string
	for _, segment := range strings.Split(s, "/") {
		switch {
		case segment == "":
			continue
		case segment == "..":
			return "", ErrParentSegment
		case strings.HasPrefix(segment, "."):
			return "", ErrDotSegment
		case strings.Contains(segment, "\\"):
			return "", ErrBackslash
		}
		segments = append(segments, segment)
	}
	if len(segments) == 0 {
		return "", ErrEmptyPathValue
	}
	return path.Join(segments...), nil
}

// Param extracts the named path parameter.
func Param[T any](name string, conv Converter[T]) Extractor[T] {
	return Func[T](func(in *input.Input) (T, error) {
		var zero T
		raw, ok := in.Params.Get(name)
		if !ok {
			return zero, httperr.InternalServerError(fmt.Errorf("route %q has no parameter %q", in.Pattern(), name))
		}
		return convertSegment(raw, conv, name)
	})
}

// PathParam extracts the named path parameter as a string.
func PathParam(name string) Extractor[string] {
	return Param(name, String)
}

// CatchAll extracts the trailing catch-all parameter.
func CatchAll[T any](conv Converter[T]) Extractor[T] {
	return Func[T](func(in *input.Input) (T, error) {
		var zero T
		raw, ok := in.Params.CatchAll()
		if !ok {
			return zero, httperr.InternalServerError(fmt.Errorf("route %q has no catch-all parameter", in.Pattern()))
		}
		return convertSegment(raw, conv, "*")
	})
}

func convertSegment[T any](raw string, conv Converter[T], name string) (T, error) {
	var zero T
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return zero, httperr.BadRequest(fmt.Errorf("decode parameter %q: %w", name, err))
	}
	v, err := conv(decoded)
	if err != nil {
		return zero, httperr.BadRequest(fmt.Errorf("parameter %q: %w", name, err))
	}
	return v, nil
}
