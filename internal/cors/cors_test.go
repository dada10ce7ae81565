package cors

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Togather-Foundation/tsukuyomi/internal/app"
	"github.com/Togather-Foundation/tsukuyomi/internal/config"
	"github.com/Togather-Foundation/tsukuyomi/internal/endpoint"
	"github.com/Togather-Foundation/tsukuyomi/internal/httperr"
	"github.com/Togather-Foundation/tsukuyomi/internal/input"
	"github.com/Togather-Foundation/tsukuyomi/internal/output"
)

func userInfoApp(t *testing.T, c *CORS) *app.App {
	t.Helper()
	a, err := app.Build(func(s *app.Scope) error {
		s.Fallback(c)
		if err := s.At("/user/info", endpoint.Post(endpoint.Reply(output.Text("saved"))), c); err != nil {
			return err
		}
		return s.At("/fail", endpoint.Get(endpoint.Call(func() (output.Responder, error) {
			return nil, httperr.BadRequest(nil)
		})), c)
	}, app.WithEnvironment("test"))
	require.NoError(t, err)
	return a
}

func policy(t *testing.T) *CORS {
	t.Helper()
	c, err := NewBuilder().
		AllowOrigin("http://127.0.0.1:5000").
		AllowMethods("GET", "POST").
		AllowHeaders("content-type").
		MaxAge(time.Hour).
		Build()
	require.NoError(t, err)
	return c
}

func do(a http.Handler, method, target string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(""))
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	a.ServeHTTP(rec, req)
	return rec
}

func TestBuilder_Validation(t *testing.T) {
	_, err := NewBuilder().AllowOrigin("ftp://example.com").Build()
	assert.ErrorIs(t, err, ErrInvalidOrigin)

	_, err = NewBuilder().AllowOrigin("http://example.com/path").Build()
	assert.ErrorIs(t, err, ErrInvalidOrigin)

	_, err = NewBuilder().AllowMethods("GET", "PO ST").Build()
	assert.ErrorIs(t, err, ErrInvalidMethod)

	_, err = NewBuilder().AllowHeaders("x:y").Build()
	assert.ErrorIs(t, err, ErrInvalidHeader)

	_, err = NewBuilder().AllowOrigin("https://Example.com:8443/").Build()
	assert.NoError(t, err)
}

func TestCORS_Preflight(t *testing.T) {
	a := userInfoApp(t, policy(t))

	rec := do(a, http.MethodOptions, "/user/info",
		"Origin", "http://127.0.0.1:5000",
		"Access-Control-Request-Method", "POST",
		"Access-Control-Request-Headers", "Content-Type")

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://127.0.0.1:5000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, POST", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "content-type", rec.Header().Get("Access-Control-Allow-Headers"))
	assert.Equal(t, "3600", rec.Header().Get("Access-Control-Max-Age"))
	assert.Equal(t, "Origin", rec.Header().Get("Vary"))
}

func TestCORS_PreflightRejections(t *testing.T) {
	a := userInfoApp(t, policy(t))

	tests := []struct {
		name   string
		header []string
	}{
		{"origin", []string{"Origin", "http://evil.example", "Access-Control-Request-Method", "POST"}},
		{"method", []string{"Origin", "http://127.0.0.1:5000", "Access-Control-Request-Method", "DELETE"}},
		{"header", []string{"Origin", "http://127.0.0.1:5000", "Access-Control-Request-Method", "POST", "Access-Control-Request-Headers", "x-secret"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(a, http.MethodOptions, "/user/info", tt.header...)
			assert.Equal(t, http.StatusForbidden, rec.Code)
			assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestCORS_SimpleRequest(t *testing.T) {
	a := userInfoApp(t, policy(t))

	rec := do(a, http.MethodPost, "/user/info", "Origin", "http://127.0.0.1:5000")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "saved", rec.Body.String())
	assert.Equal(t, "http://127.0.0.1:5000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Origin", rec.Header().Get("Vary"))

	// Errors keep the allow headers so scripts can read the problem.
	rec = do(a, http.MethodGet, "/fail", "Origin", "http://127.0.0.1:5000")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "http://127.0.0.1:5000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_NoOriginPassesThrough(t *testing.T) {
	a := userInfoApp(t, policy(t))

	rec := do(a, http.MethodPost, "/user/info")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	// Plain OPTIONS still gets the method fallback.
	rec = do(a, http.MethodOptions, "/user/info")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OPTIONS, POST", rec.Header().Get("Allow"))
}

func TestCORS_AsFallbackHandler(t *testing.T) {
	a := userInfoApp(t, policy(t))

	rec := do(a, http.MethodOptions, "/anything",
		"Origin", "http://127.0.0.1:5000",
		"Access-Control-Request-Method", "GET")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(a, http.MethodGet, "/anything")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORS_AnyOrigin(t *testing.T) {
	c, err := NewBuilder().AllowAnyOrigin().Build()
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://whatever.example")
	res, err := c.Modify(endpoint.Reply(output.Text("ok"))).Handle(input.New(req))
	require.NoError(t, err)
	response, err := output.Respond(input.New(req), res)
	require.NoError(t, err)
	assert.Equal(t, "*", response.Header.Get("Access-Control-Allow-Origin"))

	withCreds, err := NewBuilder().AllowAnyOrigin().AllowCredentials(true).ExposeHeaders("x-request-id").Build()
	require.NoError(t, err)
	res, err = withCreds.Modify(endpoint.Reply(output.Text("ok"))).Handle(input.New(req))
	require.NoError(t, err)
	response, err = output.Respond(input.New(req), res)
	require.NoError(t, err)
	assert.Equal(t, "https://whatever.example", response.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", response.Header.Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, "X-Request-Id", response.Header.Get("Access-Control-Expose-Headers"))
}

func TestFromConfig(t *testing.T) {
	c, err := FromConfig(config.CORSConfig{AllowedOrigins: []string{"https://app.example.com"}, MaxAge: time.Minute})
	require.NoError(t, err)
	_, err = c.checkOrigin("https://app.example.com")
	assert.NoError(t, err)
	_, err = c.checkOrigin("https://other.example.com")
	assert.Error(t, err)
	assert.Equal(t, "60", c.maxAge)

	_, err = FromConfig(config.CORSConfig{AllowedOrigins: []string{"not an origin"}})
	assert.Error(t, err)
}

func TestFromConfig_Wildcard(t *testing.T) {
	c, err := FromConfig(config.CORSConfig{AllowedOrigins: []string{"*"}})
	require.NoError(t, err)
	assert.True(t, c.anyOrigin)
	_, err = c.checkOrigin("https://anything.example.com")
	assert.NoError(t, err)

	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("JWT_SECRET", "12345678901234567890123456789012")
	t.Setenv("CORS_ALLOWED_ORIGINS", "*")
	cfg, err := config.Load()
	require.NoError(t, err)
	_, err = FromConfig(cfg.CORS)
	assert.NoError(t, err)
}
