// Package output converts handler results into HTTP responses.
package output

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/Togather-Foundation/tsukuyomi/internal/httperr"
	"github.com/Togather-Foundation/tsukuyomi/internal/input"
)

const (
	ContentTypeText = "text/plain; charset=utf-8"
	ContentTypeHTML = "text/html; charset=utf-8"
	ContentTypeJSON = "application/json"
)

// Responder produces the response for a request.
type Responder interface {
	Respond(in *input.Input) (*Response, error)
}

// ResponderFunc adapts a function to Responder.
type ResponderFunc func(in *input.Input) (*Response, error)

func (f ResponderFunc) Respond(in *input.Input) (*Response, error) {
	return f(in)
}

// Response is a buffered response. When Raw is set it takes over the
// connection and Status, Header and Body are ignored, except for the headers
// which are copied before Raw runs.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
	Raw    func(w http.ResponseWriter, r *http.Request)
}

// Respond lets a *Response be returned where a Responder is expected. It
// returns a copy so a shared Response is never modified by the caller.
func (r *Response) Respond(*input.Input) (*Response, error) {
	clone := *r
	clone.Header = r.Header.Clone()
	return &clone, nil
}

// Write sends the response to w. Response headers replace headers of the
// same name set by middleware, except Set-Cookie which accumulates.
func (r *Response) Write(w http.ResponseWriter, req *http.Request) {
	for key, values := range r.Header {
		if key != "Set-Cookie" {
			w.Header().Del(key)
		}
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	if r.Raw != nil {
		r.Raw(w, req)
		return
	}

	status := r.Status
	if status == 0 {
		status = http.StatusOK
	}
	if bodyAllowed(status) {
		w.Header().Set("Content-Length", strconv.Itoa(len(r.Body)))
	}
	w.WriteHeader(status)
	if req != nil && req.Method == http.MethodHead {
		return
	}
	if len(r.Body) > 0 && bodyAllowed(status) {
		_, _ = w.Write(r.Body)
	}
}

func bodyAllowed(status int) bool {
	switch {
	case status >= 100 && status < 200:
		return false
	case status == http.StatusNoContent, status == http.StatusNotModified:
		return false
	}
	return true
}

func newResponse(status int, contentType string, body []byte) *Response {
	h := http.Header{}
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	return &Response{Status: status, Header: h, Body: body}
}

// Text responds with a UTF-8 plain text body.
func Text(body string) *Response {
	return newResponse(http.StatusOK, ContentTypeText, []byte(body))
}

// HTML responds with an HTML body.
func HTML(body string) *Response {
	return newResponse(http.StatusOK, ContentTypeHTML, []byte(body))
}

// Bytes responds with body and the given content type.
func Bytes(contentType string, body []byte) *Response {
	return newResponse(http.StatusOK, contentType, body)
}

// Status responds with an empty body.
func Status(status int) *Response {
	return newResponse(status, "", nil)
}

// NoContent responds with 204.
func NoContent() *Response {
	return Status(http.StatusNoContent)
}

// JSON serializes v as the response body.
func JSON(v any) Responder {
	return ResponderFunc(func(*input.Input) (*Response, error) {
		body, err := json.Marshal(v)
		if err != nil {
			return nil, httperr.InternalServerError(fmt.Errorf("encode json: %w", err))
		}
		return newResponse(http.StatusOK, ContentTypeJSON, body), nil
	})
}

// JSONPretty is like JSON with indented output.
func JSONPretty(v any) Responder {
	return ResponderFunc(func(*input.Input) (*Response, error) {
		body, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return nil, httperr.InternalServerError(fmt.Errorf("encode json: %w", err))
		}
		return newResponse(http.StatusOK, ContentTypeJSON, body), nil
	})
}

// Redirect responds with status and a Location header.
func Redirect(status int, location string) *Response {
	res := Status(status)
	res.Header.Set("Location", location)
	return res
}

func MovedPermanently(location string) *Response {
	return Redirect(http.StatusMovedPermanently, location)
}

func Found(location string) *Response {
	return Redirect(http.StatusFound, location)
}

func SeeOther(location string) *Response {
	return Redirect(http.StatusSeeOther, location)
}

func TemporaryRedirect(location string) *Response {
	return Redirect(http.StatusTemporaryRedirect, location)
}

func PermanentRedirect(location string) *Response {
	return Redirect(http.StatusPermanentRedirect, location)
}

// Raw hands the connection to fn, used for file serving and protocol upgrades.
func Raw(fn func(w http.ResponseWriter, r *http.Request)) *Response {
	return &Response{Header: http.Header{}, Raw: fn}
}

// Oneshot builds a Responder from a function called once per request.
func Oneshot(fn func(in *input.Input) (Responder, error)) Responder {
	return ResponderFunc(func(in *input.Input) (*Response, error) {
		r, err := fn(in)
		if err != nil {
			return nil, err
		}
		return Respond(in, r)
	})
}

// WithStatus overrides the status of the wrapped responder.
func WithStatus(status int, r Responder) Responder {
	return ResponderFunc(func(in *input.Input) (*Response, error) {
		res, err := Respond(in, r)
		if err != nil {
			return nil, err
		}
		res.Status = status
		return res, nil
	})
}

// WithHeader sets a header on the response of the wrapped responder.
func WithHeader(key, value string, r Responder) Responder {
	return ResponderFunc(func(in *input.Input) (*Response, error) {
		res, err := Respond(in, r)
		if err != nil {
			return nil, err
		}
		if res.Header == nil {
			res.Header = http.Header{}
		}
		res.Header.Set(key, value)
		return res, nil
	})
}

// Respond runs r. A nil responder produces an empty 204 response.
func Respond(in *input.Input, r Responder) (*Response, error) {
	if r == nil {
		return NoContent(), nil
	}
	res, err := r.Respond(in)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return NoContent(), nil
	}
	if res.Header == nil {
		res.Header = http.Header{}
	}
	return res, nil
}
