package handlers

import (
	"github.com/Togather-Foundation/tsukuyomi/internal/endpoint"
	"github.com/Togather-Foundation/tsukuyomi/internal/extractor"
	"github.com/Togather-Foundation/tsukuyomi/internal/handler"
	"github.com/Togather-Foundation/tsukuyomi/internal/output"
	"github.com/Togather-Foundation/tsukuyomi/internal/templates"
)

// Link is an entry of the index page.
type Link struct {
	Href  string
	Title string
}

type indexPage struct {
	Version string
	Links   []Link
}

func (indexPage) TemplateName() string { return "index.html" }

type helloPage struct {
	Name string
}

func (helloPage) TemplateName() string { return "hello.html" }

// Index renders the landing page with the engine installed on the route or
// registered as scope state.
func Index(version string, links []Link) handler.Handler {
	return endpoint.Get(endpoint.Call(func() (output.Responder, error) {
		return templates.Of(indexPage{Version: version, Links: links}), nil
	}))
}

// Hello greets the :name path parameter.
func Hello() handler.Handler {
	return endpoint.Get(endpoint.Call1(extractor.PathParam("name"), func(name string) (output.Responder, error) {
		return templates.Of(helloPage{Name: name}), nil
	}))
}
