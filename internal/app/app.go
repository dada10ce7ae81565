// Package app assembles scopes, routes and modifiers into an http.Handler.
package app

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/Togather-Foundation/tsukuyomi/internal/handler"
	"github.com/Togather-Foundation/tsukuyomi/internal/httperr"
	"github.com/Togather-Foundation/tsukuyomi/internal/input"
	"github.com/Togather-Foundation/tsukuyomi/internal/output"
	"github.com/Togather-Foundation/tsukuyomi/internal/routeinfo"
	"github.com/Togather-Foundation/tsukuyomi/internal/router"
	"github.com/Togather-Foundation/tsukuyomi/internal/uri"
)

// routeEndpoint is a handler registered at a route, before modifiers are applied.
type routeEndpoint struct {
	scope   *scope
	handler handler.Handler
	mods    []handler.Modifier
	methods []string

	compiled handler.Handler
}

type route struct {
	uri       uri.URI
	pattern   string
	scope     *scope
	endpoints []*routeEndpoint

	byMethod map[string]*routeEndpoint
	any      *routeEndpoint
	allow    string
	// fallback answers methods no endpoint accepts, wrapped with the
	// modifiers of the first endpoint so route-level policies such as CORS
	// also see preflight requests.
	fallback *routeEndpoint
}

// lookup finds the endpoint serving method.
func (rt *route) lookup(method string, fallbackHead bool) (*routeEndpoint, bool) {
	if ep, ok := rt.byMethod[method]; ok {
		return ep, true
	}
	if method == http.MethodHead && fallbackHead {
		if ep, ok := rt.byMethod[http.MethodGet]; ok {
			return ep, true
		}
	}
	if rt.any != nil {
		return rt.any, true
	}
	return nil, false
}

type builder struct {
	opts   options
	scopes []*scope
	routes []*route
	index  map[string]*route
}

func (b *builder) newScope(parent *scope, prefix uri.URI) *scope {
	s := &scope{parent: parent, prefix: prefix}
	if parent != nil {
		s.depth = parent.depth + 1
	}
	b.scopes = append(b.scopes, s)
	return s
}

func (b *builder) addEndpoint(s *scope, full uri.URI, h handler.Handler, mods []handler.Modifier) error {
	ep := &routeEndpoint{scope: s, handler: h, mods: mods, methods: handler.AllowedMethods(h)}

	pattern := full.String()
	rt, ok := b.index[pattern]
	if !ok {
		rt = &route{uri: full, pattern: pattern, scope: s}
		b.index[pattern] = rt
		b.routes = append(b.routes, rt)
	}

	for _, existing := range rt.endpoints {
		if conflict := overlap(existing.methods, ep.methods); conflict != "" {
			return fmt.Errorf("register %q: %w: %s", pattern, ErrMethodConflict, conflict)
		}
	}
	rt.endpoints = append(rt.endpoints, ep)

	b.opts.logger.Debug().
		Str("route", pattern).
		Strs("methods", ep.methods).
		Msg("route registered")
	return nil
}

// overlap returns a method accepted by both sets, where nil accepts any.
func overlap(a, b []string) string {
	switch {
	case a == nil && b == nil:
		return "*"
	case a == nil:
		return b[0]
	case b == nil:
		return a[0]
	}
	for _, m := range a {
		for _, n := range b {
			if m == n {
				return m
			}
		}
	}
	return ""
}

// App is an immutable, concurrency-safe http.Handler built from scopes.
type App struct {
	opts       options
	recognizer *router.Recognizer[*route]
	routes     []*route
	scopes     []*scope
	handler    http.Handler
	errHandler ErrorHandler
}

// Build calls configure with the root scope and compiles the registered
// routes. Invalid patterns, duplicate routes and conflicting methods are
// reported here rather than at request time.
func Build(configure func(*Scope) error, opts ...Option) (*App, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	prefix, err := uri.Parse(o.prefix)
	if err != nil {
		return nil, fmt.Errorf("app prefix: %w", err)
	}

	b := &builder{opts: o, index: make(map[string]*route)}
	root := b.newScope(nil, prefix)
	if configure != nil {
		if err := configure(&Scope{b: b, s: root}); err != nil {
			return nil, err
		}
	}

	a := &App{
		opts:       o,
		recognizer: &router.Recognizer[*route]{},
		routes:     b.routes,
		scopes:     b.scopes,
		errHandler: o.errorHandler,
	}
	if a.errHandler == nil {
		a.errHandler = DefaultErrorHandler(o.env)
	}

	for _, rt := range b.routes {
		a.compile(rt)
		if err := a.recognizer.Insert(rt.uri, rt); err != nil {
			return nil, err
		}
	}
	for _, s := range b.scopes {
		if s.fallback != nil {
			s.fallback = handler.Apply(s.fallback, s.modifier())
		}
	}

	var h http.Handler = http.HandlerFunc(a.dispatch)
	for i := len(o.middleware) - 1; i >= 0; i-- {
		h = o.middleware[i](h)
	}
	a.handler = h

	o.logger.Info().Int("routes", len(a.routes)).Str("prefix", prefix.String()).Msg("app built")
	return a, nil
}

// compile applies modifiers and indexes the route handlers by method.
func (a *App) compile(rt *route) {
	rt.byMethod = make(map[string]*routeEndpoint)
	var methods []string
	for _, ep := range rt.endpoints {
		ep.compiled = handler.Apply(ep.handler, append([]handler.Modifier{ep.scope.modifier()}, ep.mods...)...)
		if ep.methods == nil {
			rt.any = ep
			continue
		}
		for _, m := range ep.methods {
			rt.byMethod[m] = ep
			methods = append(methods, m)
		}
	}
	if rt.any != nil {
		return
	}

	allow := map[string]bool{}
	for _, m := range methods {
		allow[m] = true
	}
	if a.opts.fallbackHead && allow[http.MethodGet] {
		allow[http.MethodHead] = true
	}
	if a.opts.fallbackOptions {
		allow[http.MethodOptions] = true
	}
	list := make([]string, 0, len(allow))
	for m := range allow {
		list = append(list, m)
	}
	sort.Strings(list)
	rt.allow = strings.Join(list, ", ")

	first := rt.endpoints[0]
	rt.fallback = &routeEndpoint{
		scope:    first.scope,
		compiled: handler.Apply(a.methodFallback(rt.allow), append([]handler.Modifier{first.scope.modifier()}, first.mods...)...),
	}
}

// methodFallback answers OPTIONS with the allowed methods when enabled and
// everything else with 405.
func (a *App) methodFallback(allow string) handler.Handler {
	return handler.HandlerFunc(func(in *input.Input) (output.Responder, error) {
		if in.Method() == http.MethodOptions && a.opts.fallbackOptions {
			res := output.Status(http.StatusOK)
			res.Header.Set("Allow", allow)
			return res, nil
		}
		return nil, httperr.MethodNotAllowed().WithHeader("Allow", allow)
	})
}

func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.handler.ServeHTTP(w, r)
}

func (a *App) dispatch(w http.ResponseWriter, r *http.Request) {
	path := r.URL.EscapedPath()
	if path == "" {
		path = "/"
	}

	rt, captures, ok := a.recognizer.Recognize(path)
	if !ok {
		a.serveFallback(w, r, path)
		return
	}
	routeinfo.Set(r.Context(), rt.pattern)

	ep, ok := rt.lookup(r.Method, a.opts.fallbackHead)
	if !ok {
		ep = rt.fallback
	}

	in := input.New(r,
		input.WithParams(router.NewParams(rt.uri.CaptureNames(), captures)),
		input.WithPattern(rt.pattern),
		input.WithState(ep.scope),
		input.WithCookieKeys(a.opts.cookieKeys),
	)
	a.run(w, in, ep.compiled)
}

func (a *App) serveFallback(w http.ResponseWriter, r *http.Request, path string) {
	var best *scope
	for _, s := range a.scopes {
		if s.fallback == nil || !s.matchesPrefix(path) {
			continue
		}
		if best == nil || s.depth > best.depth {
			best = s
		}
	}
	if best == nil {
		a.errHandler(w, r, httperr.NotFound())
		return
	}

	in := input.New(r, input.WithState(best), input.WithCookieKeys(a.opts.cookieKeys))
	a.run(w, in, best.fallback)
}

func (a *App) run(w http.ResponseWriter, in *input.Input, h handler.Handler) {
	res, err := h.Handle(in)
	var response *output.Response
	if err == nil {
		response, err = output.Respond(in, res)
	}
	in.Cookies.WriteTo(w.Header())
	if err != nil {
		for key, values := range httperr.HeaderOf(err) {
			w.Header()[key] = values
		}
		a.errHandler(w, in.Request, err)
		return
	}
	response.Write(w, in.Request)
}

// RouteInfo describes a registered route.
type RouteInfo struct {
	Pattern string
	Methods []string
	Scope   string
}

// Routes lists the registered routes in registration order. Methods is nil
// for routes accepting any method.
func (a *App) Routes() []RouteInfo {
	infos := make([]RouteInfo, 0, len(a.routes))
	for _, rt := range a.routes {
		info := RouteInfo{Pattern: rt.pattern, Scope: rt.scope.prefix.String()}
		if rt.any == nil {
			for _, ep := range rt.endpoints {
				info.Methods = append(info.Methods, ep.methods...)
			}
		}
		infos = append(infos, info)
	}
	return infos
}
