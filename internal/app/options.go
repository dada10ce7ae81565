package app

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/Togather-Foundation/tsukuyomi/internal/input"
)

type options struct {
	prefix          string
	logger          zerolog.Logger
	errorHandler    ErrorHandler
	middleware      []func(http.Handler) http.Handler
	fallbackHead    bool
	fallbackOptions bool
	env             string
	cookieKeys      *input.CookieKeys
}

func defaultOptions() options {
	return options{
		prefix:          "/",
		logger:          zerolog.Nop(),
		fallbackHead:    true,
		fallbackOptions: true,
		env:             "production",
	}
}

// Option configures Build.
type Option func(*options)

// WithPrefix mounts every route below prefix.
func WithPrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = prefix
	}
}

// WithLogger sets the logger used while building the app.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithErrorHandler replaces DefaultErrorHandler.
func WithErrorHandler(h ErrorHandler) Option {
	return func(o *options) {
		o.errorHandler = h
	}
}

// WithMiddleware wraps the dispatcher with net/http middleware. The first
// middleware is the outermost one.
func WithMiddleware(mw ...func(http.Handler) http.Handler) Option {
	return func(o *options) {
		o.middleware = append(o.middleware, mw...)
	}
}

// WithFallbackHead controls whether HEAD requests are served by GET
// handlers when no HEAD handler is registered. Enabled by default.
func WithFallbackHead(enabled bool) Option {
	return func(o *options) {
		o.fallbackHead = enabled
	}
}

// WithFallbackOptions controls whether OPTIONS requests without a handler
// are answered with 200 and an Allow header. Enabled by default.
func WithFallbackOptions(enabled bool) Option {
	return func(o *options) {
		o.fallbackOptions = enabled
	}
}

// WithEnvironment sets the environment passed to the default error handler.
func WithEnvironment(env string) Option {
	return func(o *options) {
		o.env = env
	}
}

// WithCookieKeys enables signed and private cookies.
func WithCookieKeys(keys *input.CookieKeys) Option {
	return func(o *options) {
		o.cookieKeys = keys
	}
}
