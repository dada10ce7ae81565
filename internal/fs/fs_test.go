package fs

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Togather-Foundation/tsukuyomi/internal/app"
	"github.com/Togather-Foundation/tsukuyomi/internal/endpoint"
)

var modTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func assets() fstest.MapFS {
	return fstest.MapFS{
		"robots.txt":      {Data: []byte("User-agent: *\n"), ModTime: modTime},
		"app.css":         {Data: []byte("body { margin: 0 }"), ModTime: modTime},
		".env":            {Data: []byte("SECRET=1")},
		"js/app.js":       {Data: []byte("console.log('hi')"), ModTime: modTime},
		"docs/index.html": {Data: []byte("<h1>docs</h1>"), ModTime: modTime},
		"docs/.hidden":    {Data: []byte("nope")},
	}
}

func get(t *testing.T, a *app.App, target string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	a.ServeHTTP(rec, req)
	return rec
}

func TestStaticfiles_Register(t *testing.T) {
	a, err := app.Build(func(s *app.Scope) error {
		return s.Mount("/static", func(s *app.Scope) error {
			return NewStaticfiles(assets(), Options{CacheControl: "public, max-age=60", IndexFile: "index.html"}).Register(s)
		})
	})
	require.NoError(t, err)

	rec := get(t, a, "/static/robots.txt")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "User-agent: *\n", rec.Body.String())
	assert.Equal(t, "public, max-age=60", rec.Header().Get("Cache-Control"))
	assert.Equal(t, modTime.Format(http.TimeFormat), rec.Header().Get("Last-Modified"))

	rec = get(t, a, "/static/app.css")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/css")

	rec = get(t, a, "/static/js/app.js")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "console.log('hi')", rec.Body.String())

	rec = get(t, a, "/static/docs/")
	assert.Equal(t, http.StatusNotFound, rec.Code, "catch-all needs a non-empty path")

	rec = get(t, a, "/static/js/missing.js")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = get(t, a, "/static/.env")
	assert.Equal(t, http.StatusNotFound, rec.Code, "hidden files are not registered")

	rec = get(t, a, "/static/docs/.hidden")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = get(t, a, "/static/js/%2e%2e/robots.txt")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNamedFile_ConditionalAndRange(t *testing.T) {
	a, err := app.Build(func(s *app.Scope) error {
		return s.At("/robots.txt", endpoint.Get(endpoint.Reply(NamedFileFS(assets(), "robots.txt"))))
	})
	require.NoError(t, err)

	rec := get(t, a, "/robots.txt", "If-Modified-Since", modTime.Add(time.Hour).Format(http.TimeFormat))
	assert.Equal(t, http.StatusNotModified, rec.Code)

	rec = get(t, a, "/robots.txt", "Range", "bytes=0-3")
	assert.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, "User", rec.Body.String())

	rec = httptest.NewRecorder()
	a.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/robots.txt", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestNamedFile_LocalFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hello.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o600))

	a, err := app.Build(func(s *app.Scope) error {
		if err := s.At("/hello", endpoint.Get(endpoint.Reply(NamedFile(path)))); err != nil {
			return err
		}
		if err := s.At("/dir", endpoint.Get(endpoint.Reply(NamedFile(dir)))); err != nil {
			return err
		}
		return s.At("/missing", endpoint.Get(endpoint.Reply(NamedFile(filepath.Join(dir, "nope.txt")))))
	})
	require.NoError(t, err)

	rec := get(t, a, "/hello")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")

	assert.Equal(t, http.StatusNotFound, get(t, a, "/dir").Code)
	assert.Equal(t, http.StatusNotFound, get(t, a, "/missing").Code)
}

func TestServeDir_IndexFile(t *testing.T) {
	a, err := app.Build(func(s *app.Scope) error {
		return s.At("/files/*path", ServeDir(assets(), Options{IndexFile: "index.html"}))
	})
	require.NoError(t, err)

	rec := get(t, a, "/files/docs")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<h1>docs</h1>", rec.Body.String())

	rec = get(t, a, "/files/js")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
