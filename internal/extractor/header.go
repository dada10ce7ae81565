package extractor

import (
	"fmt"
	"net/http"

	"github.com/Togather-Foundation/tsukuyomi/internal/httperr"
	"github.com/Togather-Foundation/tsukuyomi/internal/input"
)

// Header extracts and converts the named request header.
func Header[T any](name string, conv Converter[T]) Extractor[T] {
	return Func[T](func(in *input.Input) (T, error) {
		var zero T
		values := in.Request.Header.Values(name)
		if len(values) == 0 {
			return zero, httperr.BadRequest(fmt.Errorf("missing header %q", name))
		}
		v, err := conv(values[0])
		if err != nil {
			return zero, httperr.BadRequest(fmt.Errorf("header %q: %w", name, err))
		}
		return v, nil
	})
}

// ExactHeader requires the named header to equal value.
func ExactHeader(name, value string) Extractor[Unit] {
	return Guard(func(in *input.Input) error {
		values := in.Request.Header.Values(name)
		if len(values) == 0 {
			return httperr.BadRequest(fmt.Errorf("missing header %q", name))
		}
		if values[0] != value {
			return httperr.BadRequest(fmt.Errorf("header %q must be %q", name, value))
		}
		return nil
	})
}

// ContentType extracts the media type of the request body.
func ContentType() Extractor[string] {
	return Func[string](func(in *input.Input) (string, error) {
		mediaType, _, err := in.ContentType()
		if err != nil {
			return "", err
		}
		if mediaType == "" {
			return "", httperr.BadRequest(fmt.Errorf("missing header %q", "Content-Type"))
		}
		return mediaType, nil
	})
}

// Cookie extracts the named request cookie.
func Cookie(name string) Extractor[*http.Cookie] {
	return Func[*http.Cookie](func(in *input.Input) (*http.Cookie, error) {
		c, ok := in.Cookies.Get(name)
		if !ok {
			return nil, httperr.BadRequest(fmt.Errorf("missing cookie %q", name))
		}
		return c, nil
	})
}

// Cookies extracts the cookie jar of the request.
func Cookies() Extractor[*input.Cookies] {
	return Func[*input.Cookies](func(in *input.Input) (*input.Cookies, error) {
		return in.Cookies, nil
	})
}
