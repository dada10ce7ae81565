package output

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/Togather-Foundation/tsukuyomi/internal/input"
)

const (
	contentJSON = "application/json"
	contentHTML = "text/html"
)

// Negotiate responds with JSON or HTML depending on the Accept header. The
// ?format= query parameter takes precedence. JSON is the default.
func Negotiate(v any, html func(v any) (string, error)) Responder {
	return ResponderFunc(func(in *input.Input) (*Response, error) {
		var res *Response
		if html != nil && NegotiatedContentType(in.Request) == contentHTML {
			body, err := html(v)
			if err != nil {
				return nil, err
			}
			res = HTML(body)
		} else {
			var err error
			res, err = JSON(v).Respond(in)
			if err != nil {
				return nil, err
			}
		}
		res.Header.Set("Vary", "Accept")
		return res, nil
	})
}

// NegotiatedContentType picks between JSON and HTML for r.
func NegotiatedContentType(r *http.Request) string {
	if r == nil {
		return contentJSON
	}

	if format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format"))); format != "" {
		switch format {
		case "json", "application/json":
			return contentJSON
		case "html", "text/html":
			return contentHTML
		}
	}

	accept := r.Header.Get("Accept")
	if strings.TrimSpace(accept) == "" {
		return contentJSON
	}

	bestType := ""
	bestQ := -1.0
	for _, part := range strings.Split(accept, ",") {
		mediaType := strings.TrimSpace(part)
		if mediaType == "" {
			continue
		}

		q := 1.0
		if strings.Contains(mediaType, ";") {
			segments := strings.Split(mediaType, ";")
			mediaType = strings.TrimSpace(segments[0])
			for _, seg := range segments[1:] {
				seg = strings.TrimSpace(seg)
				if strings.HasPrefix(seg, "q=") {
					if parsed, err := strconv.ParseFloat(strings.TrimPrefix(seg, "q="), 64); err == nil {
						q = parsed
					}
				}
			}
		}

		candidate := normalizeMediaType(mediaType)
		if candidate == "" || q <= 0 {
			continue
		}
		if q > bestQ {
			bestQ = q
			bestType = candidate
		}
	}

	if bestType == "" {
		return contentJSON
	}
	return bestType
}

func normalizeMediaType(mediaType string) string {
	switch strings.ToLower(strings.TrimSpace(mediaType)) {
	case "*/*", contentJSON, "application/*":
		return contentJSON
	case contentHTML, "application/xhtml+xml", "text/*":
		return contentHTML
	default:
		return ""
	}
}
