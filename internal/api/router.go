package api

import (
	"fmt"
	"io/fs"
	"net/http"
	"path"

	"github.com/rs/zerolog"

	"github.com/Togather-Foundation/tsukuyomi/internal/api/handlers"
	"github.com/Togather-Foundation/tsukuyomi/internal/app"
	"github.com/Togather-Foundation/tsukuyomi/internal/audit"
	"github.com/Togather-Foundation/tsukuyomi/internal/auth"
	"github.com/Togather-Foundation/tsukuyomi/internal/config"
	"github.com/Togather-Foundation/tsukuyomi/internal/cors"
	"github.com/Togather-Foundation/tsukuyomi/internal/domain/posts"
	"github.com/Togather-Foundation/tsukuyomi/internal/endpoint"
	tfs "github.com/Togather-Foundation/tsukuyomi/internal/fs"
	"github.com/Togather-Foundation/tsukuyomi/internal/graphql"
	"github.com/Togather-Foundation/tsukuyomi/internal/handler"
	"github.com/Togather-Foundation/tsukuyomi/internal/httperr"
	"github.com/Togather-Foundation/tsukuyomi/internal/input"
	"github.com/Togather-Foundation/tsukuyomi/internal/metrics"
	"github.com/Togather-Foundation/tsukuyomi/internal/middleware"
	"github.com/Togather-Foundation/tsukuyomi/internal/output"
	"github.com/Togather-Foundation/tsukuyomi/internal/templates"
	"github.com/Togather-Foundation/tsukuyomi/internal/websocket"
)

// graphiqlPolicy lets the GraphiQL page load its bundle from unpkg.
const graphiqlPolicy = "default-src 'self'; style-src 'self' 'unsafe-inline' https://unpkg.com; " +
	"script-src 'self' 'unsafe-inline' https://unpkg.com; img-src 'self' data:; connect-src 'self'"

// Deps are the services the router wires into handlers.
type Deps struct {
	Config    config.Config
	Logger    zerolog.Logger
	Version   VersionInfo
	JWT       *auth.JWTManager
	Keys      *auth.Keys
	Templates *templates.Engine
	// Static is served below /static when set.
	Static fs.FS
	Posts  *posts.Service
	Health *handlers.HealthChecker
}

// NewRouter builds the application: routes, fallback and the net/http
// middleware chain.
func NewRouter(deps Deps) (*app.App, error) {
	cfg := deps.Config
	env := cfg.Environment

	policy, err := cors.FromConfig(cfg.CORS)
	if err != nil {
		return nil, fmt.Errorf("cors: %w", err)
	}
	schema, err := handlers.NewSchema(deps.Posts)
	if err != nil {
		return nil, fmt.Errorf("graphql schema: %w", err)
	}

	postsHandler := handlers.NewPostsHandler(deps.Posts, deps.JWT, audit.NewLogger(deps.Logger))
	usersHandler := handlers.NewUsersHandler(deps.JWT, cfg.Auth.BasicUsers)
	sessionHandler := handlers.NewSessionHandler(deps.Templates, cfg.Cookies.Secure)
	prefixed := func(p string) string { return path.Join(cfg.Routing.Prefix, p) }

	links := []handlers.Link{
		{Href: prefixed("/hello/world"), Title: "Template page"},
		{Href: prefixed("/api/v1/posts"), Title: "Posts API"},
		{Href: prefixed("/graphiql"), Title: "GraphiQL"},
		{Href: prefixed("/session"), Title: "Cookie session"},
		{Href: prefixed("/healthz"), Title: "Health"},
		{Href: prefixed("/version"), Title: "Version"},
	}

	configure := func(s *app.Scope) error {
		app.SetAs(s, deps.Templates)

		routes := []struct {
			path string
			h    handler.Handler
			mods []handler.Modifier
		}{
			{"/", handlers.Index(deps.Version.Version, links), nil},
			{"/hello/:name", handlers.Hello(), []handler.Modifier{deps.Templates}},
			{"/user/info", usersHandler.Info(), []handler.Modifier{policy}},
			{"/ws", handlers.EchoSocket(websocket.Config{Subprotocols: []string{"echo"}, Env: env}), nil},
			{"/graphql", graphql.Endpoint(schema), nil},
			{"/graphiql", graphql.GraphiQL(prefixed("/graphql")), []handler.Modifier{withHeader("Content-Security-Policy", graphiqlPolicy)}},
			{"/session", sessionHandler.Show(), nil},
			{"/session/login", sessionHandler.Login(), nil},
			{"/session/logout", sessionHandler.Logout(), nil},
			{"/healthz", handlers.Healthz(), nil},
			{"/readyz", deps.Health.Readyz(), nil},
			{"/health", deps.Health.Health(), nil},
			{"/version", VersionHandler(deps.Version), nil},
		}
		for _, rt := range routes {
			if err := s.At(rt.path, rt.h, rt.mods...); err != nil {
				return err
			}
		}

		if cfg.Metrics.Enabled {
			if err := s.At(cfg.Metrics.Path, wrapHTTP(metrics.Handler())); err != nil {
				return err
			}
		}

		if err := s.Mount("/api/v1", func(s *app.Scope) error {
			s.Use(policy)
			for _, rt := range []struct {
				path string
				h    handler.Handler
			}{
				{"/posts", postsHandler.List()},
				{"/posts", postsHandler.Create()},
				{"/posts/:id", postsHandler.Get()},
				{"/posts/:id", postsHandler.Update()},
				{"/posts/:id", postsHandler.Delete()},
				{"/user/auth", usersHandler.Auth()},
			} {
				if err := s.At(rt.path, rt.h); err != nil {
					return err
				}
			}
			return nil
		}); err != nil {
			return err
		}

		if deps.Static != nil {
			static := tfs.NewStaticfiles(deps.Static, tfs.Options{CacheControl: "public, max-age=3600"})
			if err := s.Mount("/static", static.Register); err != nil {
				return err
			}
		}

		s.Fallback(handler.HandlerFunc(func(in *input.Input) (output.Responder, error) {
			return nil, httperr.New(http.StatusNotFound, "no route for "+in.Request.URL.Path)
		}))
		return nil
	}

	csrfKey := deps.Keys.CSRF
	if cfg.Cookies.CSRFKey != "" {
		csrfKey = []byte(cfg.Cookies.CSRFKey)
	}

	a, err := app.Build(configure,
		app.WithPrefix(cfg.Routing.Prefix),
		app.WithLogger(deps.Logger),
		app.WithEnvironment(env),
		app.WithFallbackHead(cfg.Routing.FallbackHead),
		app.WithFallbackOptions(cfg.Routing.FallbackOptions),
		app.WithCookieKeys(cookieKeys(cfg.Cookies, deps.Keys)),
		app.WithMiddleware(
			middleware.CorrelationID(deps.Logger),
			middleware.Recover(env),
			middleware.RequestLogging(deps.Logger),
			middleware.Tracing,
			metrics.HTTPMiddleware,
			middleware.SecurityHeaders(cfg.Server.TLSCertFile != "", ""),
			middleware.RateLimit(cfg.RateLimit, env, prefixed("/healthz"), prefixed("/readyz")),
			middleware.RequestSize(cfg.Server.MaxBodyBytes, env),
			middleware.ForPrefixes(middleware.CSRFProtection(csrfKey, cfg.Cookies.Secure, env), prefixed("/session")),
		),
	)
	if err != nil {
		return nil, err
	}
	metrics.RoutesRegistered.Set(float64(len(a.Routes())))
	return a, nil
}

// cookieKeys prefers configured keys and falls back to derived ones. Secure
// jars stay disabled unless secure cookies are on.
func cookieKeys(cfg config.CookieConfig, derived *auth.Keys) *input.CookieKeys {
	if !cfg.Secure {
		return nil
	}
	keys := &input.CookieKeys{HashKey: []byte(cfg.HashKey), BlockKey: []byte(cfg.BlockKey)}
	if len(keys.HashKey) == 0 {
		keys.HashKey = derived.CookieHash
	}
	if len(keys.BlockKey) == 0 {
		keys.BlockKey = derived.CookieBlock
	}
	return keys
}

// wrapHTTP serves a plain http.Handler on GET.
func wrapHTTP(h http.Handler) handler.Handler {
	return endpoint.Get(endpoint.Call(func() (output.Responder, error) {
		return output.Raw(h.ServeHTTP), nil
	}))
}

func withHeader(key, value string) handler.Modifier {
	return handler.Around(func(in *input.Input, next handler.Handler) (output.Responder, error) {
		res, err := next.Handle(in)
		if err != nil {
			return nil, err
		}
		return output.WithHeader(key, value, res), nil
	})
}
