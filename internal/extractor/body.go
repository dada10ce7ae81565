package extractor

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/gorilla/schema"

	"github.com/Togather-Foundation/tsukuyomi/internal/httperr"
	"github.com/Togather-Foundation/tsukuyomi/internal/input"
)

const (
	mimeTextPlain  = "text/plain"
	mimeJSON       = "application/json"
	mimeURLEncoded = "application/x-www-form-urlencoded"
)

// formDecoder decodes urlencoded bodies and query strings. Field names come
// from the "form" struct tag.
var formDecoder = func() *schema.Decoder {
	d := schema.NewDecoder()
	d.SetAliasTag("form")
	d.IgnoreUnknownKeys(true)
	return d
}()

// checkContentType accepts a missing Content-Type or one matching want.
func checkContentType(in *input.Input, want string, required bool) (map[string]string, error) {
	mediaType, params, err := in.ContentType()
	if err != nil {
		return nil, err
	}
	if mediaType == "" {
		if required {
			return nil, httperr.BadRequest(fmt.Errorf("missing content type, expected %s", want))
		}
		return nil, nil
	}
	if mediaType != want {
		return nil, httperr.BadRequest(fmt.Errorf("unexpected content type %s, expected %s", mediaType, want))
	}
	return params, nil
}

// Plain extracts a UTF-8 text body.
func Plain() Extractor[string] {
	return Func[string](func(in *input.Input) (string, error) {
		params, err := checkContentType(in, mimeTextPlain, false)
		if err != nil {
			return "", err
		}
		if charset, ok := params["charset"]; ok && !strings.EqualFold(charset, "utf-8") {
			return "", httperr.BadRequest(fmt.Errorf("unsupported charset %s", charset))
		}
		data, err := in.ReadAll()
		if err != nil {
			return "", err
		}
		if !utf8.Valid(data) {
			return "", httperr.BadRequest(fmt.Errorf("body is not valid UTF-8"))
		}
		return string(data), nil
	})
}

// JSON decodes an application/json body into T.
func JSON[T any]() Extractor[T] {
	return Func[T](func(in *input.Input) (T, error) {
		var v T
		if _, err := checkContentType(in, mimeJSON, true); err != nil {
			return v, err
		}
		data, err := in.ReadAll()
		if err != nil {
			return v, err
		}
		if err := json.Unmarshal(data, &v); err != nil {
			return v, httperr.BadRequest(fmt.Errorf("decode json body: %w", err))
		}
		return v, nil
	})
}

// Urlencoded decodes an application/x-www-form-urlencoded body into T.
func Urlencoded[T any]() Extractor[T] {
	return Func[T](func(in *input.Input) (T, error) {
		var v T
		if _, err := checkContentType(in, mimeURLEncoded, true); err != nil {
			return v, err
		}
		values, err := formValues(in)
		if err != nil {
			return v, err
		}
		if err := formDecoder.Decode(&v, values); err != nil {
			return v, httperr.BadRequest(fmt.Errorf("decode form body: %w", err))
		}
		return v, nil
	})
}

// formValues parses the body, or reuses the form net/http middleware such as
// CSRF protection already parsed from it.
func formValues(in *input.Input) (url.Values, error) {
	if in.Request.PostForm != nil && !in.BodyTaken() {
		return in.Request.PostForm, nil
	}
	data, err := in.ReadAll()
	if err != nil {
		return nil, err
	}
	values, err := url.ParseQuery(string(data))
	if err != nil {
		return nil, httperr.BadRequest(fmt.Errorf("parse form body: %w", err))
	}
	return values, nil
}

// Query decodes the query string into T.
func Query[T any]() Extractor[T] {
	return Func[T](func(in *input.Input) (T, error) {
		var v T
		values, err := url.ParseQuery(in.Request.URL.RawQuery)
		if err != nil {
			return v, httperr.BadRequest(fmt.Errorf("parse query: %w", err))
		}
		if err := formDecoder.Decode(&v, values); err != nil {
			return v, httperr.BadRequest(fmt.Errorf("decode query: %w", err))
		}
		return v, nil
	})
}

// ReadAll extracts the whole body.
func ReadAll() Extractor[[]byte] {
	return Func[[]byte](func(in *input.Input) ([]byte, error) {
		return in.ReadAll()
	})
}

// Stream extracts the body as a reader. The handler must close it.
func Stream() Extractor[io.ReadCloser] {
	return Func[io.ReadCloser](func(in *input.Input) (io.ReadCloser, error) {
		return in.Body()
	})
}
