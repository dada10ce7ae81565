// Package fs serves files as responders and registers directories of
// static assets on a scope.
package fs

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/Togather-Foundation/tsukuyomi/internal/app"
	"github.com/Togather-Foundation/tsukuyomi/internal/endpoint"
	"github.com/Togather-Foundation/tsukuyomi/internal/extractor"
	"github.com/Togather-Foundation/tsukuyomi/internal/handler"
	"github.com/Togather-Foundation/tsukuyomi/internal/httperr"
	"github.com/Togather-Foundation/tsukuyomi/internal/input"
	"github.com/Togather-Foundation/tsukuyomi/internal/output"
)

// Options control the headers sent with a file.
type Options struct {
	// CacheControl is sent verbatim when set.
	CacheControl string
	// IndexFile is served when a directory is requested. Empty disables it.
	IndexFile string
}

// File is a responder serving a single file with http.ServeContent, which
// handles Last-Modified, conditional requests and byte ranges.
type File struct {
	fsys iofs.FS
	name string
	opts Options
}

// NamedFile serves the file at path on the local filesystem.
func NamedFile(filePath string, opts ...Options) *File {
	dir, name := filepath.Split(filepath.Clean(filePath))
	if dir == "" {
		dir = "."
	}
	return NamedFileFS(os.DirFS(dir), name, opts...)
}

// NamedFileFS serves name from fsys.
func NamedFileFS(fsys iofs.FS, name string, opts ...Options) *File {
	f := &File{fsys: fsys, name: name}
	if len(opts) > 0 {
		f.opts = opts[0]
	}
	return f
}

// Respond opens the file. Missing files and directories without an index
// file are 404s.
func (f *File) Respond(in *input.Input) (*output.Response, error) {
	name := f.name
	file, info, err := open(f.fsys, name)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		_ = file.Close()
		if f.opts.IndexFile == "" {
			return nil, httperr.NotFound()
		}
		name = path.Join(name, f.opts.IndexFile)
		if file, info, err = open(f.fsys, name); err != nil {
			return nil, err
		}
		if info.IsDir() {
			_ = file.Close()
			return nil, httperr.NotFound()
		}
	}

	content, err := seeker(file)
	if err != nil {
		_ = file.Close()
		return nil, httperr.InternalServerError(fmt.Errorf("read %s: %w", name, err))
	}

	res := output.Raw(func(w http.ResponseWriter, r *http.Request) {
		defer func() { _ = file.Close() }()
		http.ServeContent(w, r, info.Name(), info.ModTime(), content)
	})
	if f.opts.CacheControl != "" {
		res.Header.Set("Cache-Control", f.opts.CacheControl)
	}
	return res, nil
}

func open(fsys iofs.FS, name string) (iofs.File, iofs.FileInfo, error) {
	if !iofs.ValidPath(name) {
		return nil, nil, httperr.NotFound()
	}
	file, err := fsys.Open(name)
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) || errors.Is(err, iofs.ErrPermission) {
			return nil, nil, httperr.NotFound()
		}
		return nil, nil, httperr.InternalServerError(err)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, nil, httperr.InternalServerError(err)
	}
	return file, info, nil
}

// seeker returns file itself when it supports seeking, and a buffered copy
// otherwise.
func seeker(file iofs.File) (io.ReadSeeker, error) {
	if rs, ok := file.(io.ReadSeeker); ok {
		return rs, nil
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}

// ServeDir serves files below fsys using the catch-all parameter of the
// route as the relative path. Paths with ".." or hidden segments are
// rejected before touching the filesystem.
func ServeDir(fsys iofs.FS, opts ...Options) handler.Handler {
	return endpoint.Get(endpoint.Call1(
		extractor.CatchAll(extractor.Path),
		func(name string) (output.Responder, error) {
			return NamedFileFS(fsys, name, opts...), nil
		},
	))
}

// Staticfiles registers every entry of a directory: files at "/<name>" and
// subdirectories at "/<name>/*path".
type Staticfiles struct {
	fsys iofs.FS
	opts Options
}

// NewStaticfiles serves the entries of fsys.
func NewStaticfiles(fsys iofs.FS, opts ...Options) *Staticfiles {
	s := &Staticfiles{fsys: fsys}
	if len(opts) > 0 {
		s.opts = opts[0]
	}
	return s
}

// Dir serves the entries of the local directory root.
func Dir(root string, opts ...Options) *Staticfiles {
	return NewStaticfiles(os.DirFS(root), opts...)
}

// Register adds the routes to sc. Hidden entries are skipped.
func (s *Staticfiles) Register(sc *app.Scope) error {
	entries, err := iofs.ReadDir(s.fsys, ".")
	if err != nil {
		return fmt.Errorf("read static directory: %w", err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if entry.IsDir() {
			sub, err := iofs.Sub(s.fsys, name)
			if err != nil {
				return fmt.Errorf("static directory %s: %w", name, err)
			}
			if err := sc.At("/"+name+"/*path", ServeDir(sub, s.opts)); err != nil {
				return err
			}
			continue
		}
		if err := sc.At("/"+name, endpoint.Get(endpoint.Reply(NamedFileFS(s.fsys, name, s.opts)))); err != nil {
			return err
		}
	}
	return nil
}
