// Package templates renders html/template templates as handler output.
package templates

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"mime"
	"path"
	"strings"

	"github.com/Togather-Foundation/tsukuyomi/internal/handler"
	"github.com/Togather-Foundation/tsukuyomi/internal/httperr"
	"github.com/Togather-Foundation/tsukuyomi/internal/input"
	"github.com/Togather-Foundation/tsukuyomi/internal/output"
	"github.com/Togather-Foundation/tsukuyomi/internal/sanitize"
)

var ErrNoEngine = errors.New("no template engine registered for this route")

// Template is a value rendered by the template of the same name.
type Template interface {
	TemplateName() string
}

// Extensioner overrides the extension used to pick the content type.
type Extensioner interface {
	TemplateExtension() string
}

type engineKey struct{}

// Engine holds a parsed template set. It is safe for concurrent use.
type Engine struct {
	tmpl *template.Template
}

// Funcs are available in every template loaded by Load.
func Funcs() template.FuncMap {
	return template.FuncMap{
		// sanitize keeps basic formatting from user supplied HTML.
		"sanitize": func(s string) template.HTML {
			return template.HTML(sanitize.HTML(s)) // #nosec G203 -- sanitized by bluemonday
		},
		"plaintext": sanitize.Text,
		"upper":     strings.ToUpper,
	}
}

// Load parses the templates of fsys matching patterns. Templates are named
// by their base file name.
func Load(fsys fs.FS, patterns ...string) (*Engine, error) {
	if len(patterns) == 0 {
		patterns = []string{"*.html"}
	}
	tmpl, err := template.New("").Funcs(Funcs()).ParseFS(fsys, patterns...)
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Engine{tmpl: tmpl}, nil
}

// Must panics when Load failed. For package level template sets.
func Must(e *Engine, err error) *Engine {
	if err != nil {
		panic(err)
	}
	return e
}

// Lookup reports whether a template called name exists.
func (e *Engine) Lookup(name string) bool {
	return e.tmpl.Lookup(name) != nil
}

// Render executes the template name with data. The content type follows
// the template extension, defaulting to HTML.
func (e *Engine) Render(name string, data any) output.Responder {
	return output.ResponderFunc(func(*input.Input) (*output.Response, error) {
		return e.render(name, path.Ext(name), data)
	})
}

func (e *Engine) render(name, ext string, data any) (*output.Response, error) {
	var buf bytes.Buffer
	if err := e.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, httperr.InternalServerError(fmt.Errorf("render %s: %w", name, err))
	}
	return output.Bytes(contentTypeFor(ext), buf.Bytes()), nil
}

func (e *Engine) renderTemplate(t Template) (*output.Response, error) {
	ext := path.Ext(t.TemplateName())
	if x, ok := t.(Extensioner); ok {
		ext = x.TemplateExtension()
	}
	return e.render(t.TemplateName(), ext, t)
}

// Modify makes the engine available to Of and renders handler outputs that
// implement Template.
func (e *Engine) Modify(h handler.Handler) handler.Handler {
	return handler.Apply(h, handler.Around(func(in *input.Input, next handler.Handler) (output.Responder, error) {
		in.SetLocal(engineKey{}, e)
		res, err := next.Handle(in)
		if err != nil {
			return nil, err
		}
		if t, ok := res.(Template); ok {
			return e.renderTemplate(t)
		}
		return res, nil
	}))
}

var _ handler.Modifier = (*Engine)(nil)

// Of renders t with the engine installed by Engine.Modify, or else the
// *Engine registered as scope state.
func Of(t Template) output.Responder {
	return output.ResponderFunc(func(in *input.Input) (*output.Response, error) {
		e := engineFor(in)
		if e == nil {
			return nil, httperr.InternalServerError(ErrNoEngine)
		}
		return e.renderTemplate(t)
	})
}

func engineFor(in *input.Input) *Engine {
	if v, ok := in.Local(engineKey{}); ok {
		return v.(*Engine)
	}
	if e, ok := input.StateOf[*Engine](in); ok {
		return e
	}
	return nil
}

func contentTypeFor(ext string) string {
	switch ext {
	case "", ".html", ".htm", ".tmpl":
		return output.ContentTypeHTML
	case ".txt":
		return output.ContentTypeText
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
