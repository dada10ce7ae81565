// Package validation checks URLs supplied through configuration.
package validation

import (
	"fmt"
	"net/url"
	"strings"
)

// URLError describes why a configured URL was rejected.
type URLError struct {
	Field   string
	Message string
	URL     string
}

func (e URLError) Error() string {
	return fmt.Sprintf("%s: %s (url: %s)", e.Field, e.Message, e.URL)
}

// URL accepts absolute http and https URLs. An empty value is allowed.
func URL(raw, field string, requireHTTPS bool) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return URLError{Field: field, Message: "invalid URL format", URL: raw}
	}
	scheme := strings.ToLower(u.Scheme)
	switch {
	case scheme == "":
		return URLError{Field: field, Message: "URL must include a scheme (http:// or https://)", URL: raw}
	case u.Host == "":
		return URLError{Field: field, Message: "URL must include a host", URL: raw}
	case scheme != "http" && scheme != "https":
		return URLError{Field: field, Message: "URL scheme must be http or https", URL: raw}
	case requireHTTPS && scheme != "https":
		return URLError{Field: field, Message: "URL must use HTTPS in production", URL: raw}
	}
	return nil
}

// Origin accepts a URL with no path, query or fragment, the shape of a
// browser Origin header or a public base URL.
func Origin(raw, field string, requireHTTPS bool) error {
	if err := URL(raw, field, requireHTTPS); err != nil || raw == "" {
		return err
	}
	u, _ := url.Parse(raw)
	switch {
	case u.Path != "" && u.Path != "/":
		return URLError{Field: field, Message: "must not contain a path", URL: raw}
	case u.RawQuery != "":
		return URLError{Field: field, Message: "must not contain query parameters", URL: raw}
	case u.Fragment != "":
		return URLError{Field: field, Message: "must not contain a fragment", URL: raw}
	}
	return nil
}
