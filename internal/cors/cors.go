// Package cors implements Cross-Origin Resource Sharing as a handler
// modifier.
//
// A *CORS value answers preflight requests itself and decorates the
// responses of simple requests. It can be used as a scope or route modifier
// and, for "OPTIONS *" requests, as a scope fallback handler.
package cors

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Togather-Foundation/tsukuyomi/internal/config"
	"github.com/Togather-Foundation/tsukuyomi/internal/handler"
	"github.com/Togather-Foundation/tsukuyomi/internal/httperr"
	"github.com/Togather-Foundation/tsukuyomi/internal/input"
	"github.com/Togather-Foundation/tsukuyomi/internal/output"
)

const (
	headerOrigin         = "Origin"
	headerRequestMethod  = "Access-Control-Request-Method"
	headerRequestHeaders = "Access-Control-Request-Headers"
	headerAllowOrigin    = "Access-Control-Allow-Origin"
	headerAllowMethods   = "Access-Control-Allow-Methods"
	headerAllowHeaders   = "Access-Control-Allow-Headers"
	headerAllowCreds     = "Access-Control-Allow-Credentials"
	headerExposeHeaders  = "Access-Control-Expose-Headers"
	headerMaxAge         = "Access-Control-Max-Age"
)

var (
	ErrInvalidOrigin = errors.New("invalid origin")
	ErrInvalidMethod = errors.New("invalid method")
	ErrInvalidHeader = errors.New("invalid header name")

	errDisallowedOrigin = errors.New("origin is not allowed")
	errDisallowedMethod = errors.New("request method is not allowed")
	errDisallowedHeader = errors.New("request header is not allowed")
)

// Builder configures a CORS policy. The first invalid value is reported by
// Build.
type Builder struct {
	origins     map[string]struct{}
	anyOrigin   bool
	methods     map[string]struct{}
	headers     map[string]struct{}
	expose      []string
	credentials bool
	maxAge      time.Duration
	err         error
}

// NewBuilder returns a builder allowing GET, HEAD and POST from no origin.
func NewBuilder() *Builder {
	b := &Builder{
		origins: map[string]struct{}{},
		methods: map[string]struct{}{},
		headers: map[string]struct{}{},
	}
	return b.AllowMethods(http.MethodGet, http.MethodHead, http.MethodPost)
}

func (b *Builder) fail(err error) *Builder {
	if b.err == nil {
		b.err = err
	}
	return b
}

// AllowOrigin allows an origin of the form scheme://host[:port].
func (b *Builder) AllowOrigin(origin string) *Builder {
	normalized, err := normalizeOrigin(origin)
	if err != nil {
		return b.fail(err)
	}
	b.origins[normalized] = struct{}{}
	return b
}

func (b *Builder) AllowOrigins(origins ...string) *Builder {
	for _, o := range origins {
		b.AllowOrigin(o)
	}
	return b
}

// AllowAnyOrigin allows every origin.
func (b *Builder) AllowAnyOrigin() *Builder {
	b.anyOrigin = true
	return b
}

// AllowMethods replaces the allowed methods.
func (b *Builder) AllowMethods(methods ...string) *Builder {
	b.methods = map[string]struct{}{}
	for _, m := range methods {
		if !isToken(m) {
			return b.fail(fmt.Errorf("%w: %q", ErrInvalidMethod, m))
		}
		b.methods[strings.ToUpper(m)] = struct{}{}
	}
	return b
}

// AllowHeaders adds request headers that preflight requests may ask for.
func (b *Builder) AllowHeaders(headers ...string) *Builder {
	for _, h := range headers {
		if !isToken(h) {
			return b.fail(fmt.Errorf("%w: %q", ErrInvalidHeader, h))
		}
		b.headers[strings.ToLower(h)] = struct{}{}
	}
	return b
}

// ExposeHeaders lists response headers scripts may read.
func (b *Builder) ExposeHeaders(headers ...string) *Builder {
	for _, h := range headers {
		if !isToken(h) {
			return b.fail(fmt.Errorf("%w: %q", ErrInvalidHeader, h))
		}
		b.expose = append(b.expose, http.CanonicalHeaderKey(h))
	}
	return b
}

func (b *Builder) AllowCredentials(allow bool) *Builder {
	b.credentials = allow
	return b
}

// MaxAge sets how long preflight results may be cached. Zero omits the header.
func (b *Builder) MaxAge(d time.Duration) *Builder {
	b.maxAge = d
	return b
}

// Build validates the configuration and returns the policy.
func (b *Builder) Build() (*CORS, error) {
	if b.err != nil {
		return nil, b.err
	}
	c := &CORS{
		origins:     make(map[string]struct{}, len(b.origins)),
		anyOrigin:   b.anyOrigin,
		methods:     make(map[string]struct{}, len(b.methods)),
		headers:     make(map[string]struct{}, len(b.headers)),
		credentials: b.credentials,
		expose:      strings.Join(b.expose, ", "),
	}
	for o := range b.origins {
		c.origins[o] = struct{}{}
	}
	for m := range b.methods {
		c.methods[m] = struct{}{}
	}
	for h := range b.headers {
		c.headers[h] = struct{}{}
	}
	c.allowMethods = joinSorted(c.methods)
	c.allowHeaders = joinSorted(c.headers)
	if b.maxAge > 0 {
		c.maxAge = strconv.Itoa(int(b.maxAge / time.Second))
	}
	return c, nil
}

// FromConfig builds a policy from the CORS configuration section.
func FromConfig(cfg config.CORSConfig) (*CORS, error) {
	b := NewBuilder().
		AllowMethods(http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete).
		AllowHeaders("Content-Type", "Authorization", "Accept", "X-Request-ID").
		ExposeHeaders("X-Request-ID", "Retry-After").
		AllowCredentials(cfg.AllowCredentials).
		MaxAge(cfg.MaxAge)
	if cfg.AllowAllOrigins || (len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*") {
		b.AllowAnyOrigin()
	} else {
		b.AllowOrigins(cfg.AllowedOrigins...)
	}
	return b.Build()
}

// CORS is an immutable CORS policy.
type CORS struct {
	origins      map[string]struct{}
	anyOrigin    bool
	methods      map[string]struct{}
	headers      map[string]struct{}
	credentials  bool
	expose       string
	allowMethods string
	allowHeaders string
	maxAge       string
}

var (
	_ handler.Modifier = (*CORS)(nil)
	_ handler.Handler  = (*CORS)(nil)
)

// Modify wraps h so preflight requests are answered here and the responses
// of cross-origin requests carry the allow headers.
func (c *CORS) Modify(h handler.Handler) handler.Handler {
	return handler.Apply(h, handler.Around(func(in *input.Input, next handler.Handler) (output.Responder, error) {
		return c.process(in, next)
	}))
}

// Handle answers preflight requests and rejects everything else with 404,
// for use as the fallback serving "OPTIONS *".
func (c *CORS) Handle(in *input.Input) (output.Responder, error) {
	return c.process(in, nil)
}

func (c *CORS) process(in *input.Input, next handler.Handler) (output.Responder, error) {
	origin := in.Request.Header.Get(headerOrigin)
	if origin == "" {
		if next == nil {
			return nil, httperr.NotFound()
		}
		return next.Handle(in)
	}

	allowOrigin, err := c.checkOrigin(origin)
	if err != nil {
		zerolog.Ctx(in.Context()).Warn().
			Str("origin", origin).
			Str("path", in.Request.URL.Path).
			Str("method", in.Request.Method).
			Msg("CORS request rejected: origin not allowed")
		return nil, httperr.Forbidden(err)
	}

	if in.Request.Method == http.MethodOptions && in.Request.Header.Get(headerRequestMethod) != "" {
		return c.preflight(in, allowOrigin)
	}

	if next == nil {
		return nil, httperr.NotFound()
	}
	res, err := next.Handle(in)
	if err != nil {
		return nil, c.decorateError(err, allowOrigin)
	}
	return output.ResponderFunc(func(in *input.Input) (*output.Response, error) {
		response, err := output.Respond(in, res)
		if err != nil {
			return nil, c.decorateError(err, allowOrigin)
		}
		if response.Header == nil {
			response.Header = http.Header{}
		}
		c.simpleHeaders(response.Header, allowOrigin)
		return response, nil
	}), nil
}

func (c *CORS) preflight(in *input.Input, allowOrigin string) (output.Responder, error) {
	method := in.Request.Header.Get(headerRequestMethod)
	if _, ok := c.methods[strings.ToUpper(strings.TrimSpace(method))]; !ok {
		return nil, httperr.Forbidden(fmt.Errorf("%w: %s", errDisallowedMethod, method))
	}
	for _, raw := range in.Request.Header.Values(headerRequestHeaders) {
		for _, h := range strings.Split(raw, ",") {
			h = strings.ToLower(strings.TrimSpace(h))
			if h == "" {
				continue
			}
			if _, ok := c.headers[h]; !ok {
				return nil, httperr.Forbidden(fmt.Errorf("%w: %s", errDisallowedHeader, h))
			}
		}
	}

	res := output.NoContent()
	res.Header.Set(headerAllowOrigin, allowOrigin)
	res.Header.Set(headerAllowMethods, c.allowMethods)
	if c.allowHeaders != "" {
		res.Header.Set(headerAllowHeaders, c.allowHeaders)
	}
	if c.maxAge != "" {
		res.Header.Set(headerMaxAge, c.maxAge)
	}
	if c.credentials {
		res.Header.Set(headerAllowCreds, "true")
	}
	res.Header.Add("Vary", headerOrigin)
	return res, nil
}

func (c *CORS) simpleHeaders(h http.Header, allowOrigin string) {
	h.Set(headerAllowOrigin, allowOrigin)
	if c.credentials {
		h.Set(headerAllowCreds, "true")
	}
	if c.expose != "" {
		h.Set(headerExposeHeaders, c.expose)
	}
	h.Add("Vary", headerOrigin)
}

// decorateError keeps the allow headers on error responses so browsers can
// read the problem document.
func (c *CORS) decorateError(err error, allowOrigin string) error {
	var herr *httperr.Error
	if !errors.As(err, &herr) {
		herr = httperr.InternalServerError(err)
	} else {
		clone := *herr
		clone.Header = herr.Header.Clone()
		herr = &clone
	}
	if herr.Header == nil {
		herr.Header = http.Header{}
	}
	c.simpleHeaders(herr.Header, allowOrigin)
	return herr
}

// checkOrigin returns the value for Access-Control-Allow-Origin.
func (c *CORS) checkOrigin(origin string) (string, error) {
	if c.anyOrigin {
		if c.credentials {
			// "*" is not honored by browsers for credentialed requests.
			return origin, nil
		}
		return "*", nil
	}
	normalized, err := normalizeOrigin(origin)
	if err != nil {
		return "", errDisallowedOrigin
	}
	if _, ok := c.origins[normalized]; !ok {
		return "", errDisallowedOrigin
	}
	return origin, nil
}

func normalizeOrigin(origin string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(origin))
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidOrigin, origin, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" ||
		(u.Path != "" && u.Path != "/") || u.RawQuery != "" || u.Fragment != "" || u.User != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidOrigin, origin)
	}
	return strings.ToLower(u.Scheme + "://" + u.Host), nil
}

// isToken reports whether s is an RFC 7230 token.
func isToken(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9':
		case strings.IndexByte("!#$%&'*+-.^_`|~", ch) >= 0:
		default:
			return false
		}
	}
	return true
}

func joinSorted(set map[string]struct{}) string {
	list := make([]string, 0, len(set))
	for k := range set {
		list = append(list, k)
	}
	sort.Strings(list)
	return strings.Join(list, ", ")
}
