// Package apptest runs an http.Handler behind a real listener for tests and
// provides client sessions that can keep cookies between requests.
package apptest

import (
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// Server is a test server closed automatically when the test ends.
type Server struct {
	*httptest.Server
	t testing.TB
}

// New starts a server for h.
func New(t testing.TB, h http.Handler) *Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return &Server{Server: srv, t: t}
}

// Session returns a client that does not follow redirects. When saveCookies
// is set, cookies set by responses are sent with later requests.
func (s *Server) Session(saveCookies bool) *Session {
	client := &http.Client{
		Transport: s.Client().Transport,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	sess := &Session{server: s, client: client, header: http.Header{}}
	if saveCookies {
		jar, err := cookiejar.New(nil)
		require.NoError(s.t, err)
		client.Jar = jar
		sess.jar = jar
	}
	return sess
}

// Session issues requests against a Server.
type Session struct {
	server *Server
	client *http.Client
	jar    *cookiejar.Jar
	header http.Header
}

// SetHeader adds a header to every request of the session.
func (s *Session) SetHeader(key, value string) *Session {
	s.header.Set(key, value)
	return s
}

// Bearer authenticates every request of the session with token.
func (s *Session) Bearer(token string) *Session {
	return s.SetHeader("Authorization", "Bearer "+token)
}

// Do sends req. A relative URL is resolved against the server.
func (s *Session) Do(req *http.Request) *http.Response {
	s.server.t.Helper()
	if req.URL.Host == "" {
		base, err := url.Parse(s.server.URL)
		require.NoError(s.server.t, err)
		req.URL = base.ResolveReference(req.URL)
		req.Host = req.URL.Host
	}
	for key, values := range s.header {
		if req.Header.Get(key) == "" {
			req.Header[key] = values
		}
	}
	res, err := s.client.Do(req)
	require.NoError(s.server.t, err)
	s.server.t.Cleanup(func() { _ = res.Body.Close() })
	return res
}

// Request builds and sends a request with an optional body.
func (s *Session) Request(method, path string, body io.Reader, header ...string) *http.Response {
	s.server.t.Helper()
	require.True(s.server.t, len(header)%2 == 0, "header must be key/value pairs")
	req, err := http.NewRequest(method, path, body)
	require.NoError(s.server.t, err)
	for i := 0; i < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	return s.Do(req)
}

func (s *Session) Get(path string) *http.Response {
	s.server.t.Helper()
	return s.Request(http.MethodGet, path, nil)
}

// PostJSON posts body with the application/json content type.
func (s *Session) PostJSON(path, body string) *http.Response {
	s.server.t.Helper()
	return s.Request(http.MethodPost, path, strings.NewReader(body), "Content-Type", "application/json")
}

// PostForm posts urlencoded values.
func (s *Session) PostForm(path string, values url.Values) *http.Response {
	s.server.t.Helper()
	return s.Request(http.MethodPost, path, strings.NewReader(values.Encode()),
		"Content-Type", "application/x-www-form-urlencoded")
}

// Cookie returns the cookie the session would send to path.
func (s *Session) Cookie(path, name string) (*http.Cookie, bool) {
	if s.jar == nil {
		return nil, false
	}
	u, err := url.Parse(s.server.URL + path)
	if err != nil {
		return nil, false
	}
	for _, c := range s.jar.Cookies(u) {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// Body reads the whole response body.
func Body(t testing.TB, res *http.Response) string {
	t.Helper()
	data, err := io.ReadAll(res.Body)
	require.NoError(t, err, fmt.Sprintf("read body of %s", res.Request.URL))
	return string(data)
}
