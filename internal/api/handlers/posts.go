package handlers

import (
	"errors"
	"net/http"
	"path"

	"github.com/Togather-Foundation/tsukuyomi/internal/audit"
	"github.com/Togather-Foundation/tsukuyomi/internal/auth"
	"github.com/Togather-Foundation/tsukuyomi/internal/domain/ids"
	"github.com/Togather-Foundation/tsukuyomi/internal/domain/posts"
	"github.com/Togather-Foundation/tsukuyomi/internal/endpoint"
	"github.com/Togather-Foundation/tsukuyomi/internal/extractor"
	"github.com/Togather-Foundation/tsukuyomi/internal/handler"
	"github.com/Togather-Foundation/tsukuyomi/internal/httperr"
	"github.com/Togather-Foundation/tsukuyomi/internal/output"
)

var ErrNotAuthor = errors.New("only the author or an editor may change this post")

type PostsHandler struct {
	Service *posts.Service
	JWT     *auth.JWTManager
	Audit   *audit.Logger
}

func NewPostsHandler(service *posts.Service, jwt *auth.JWTManager, auditLogger *audit.Logger) *PostsHandler {
	return &PostsHandler{Service: service, JWT: jwt, Audit: auditLogger}
}

type postListResponse struct {
	Items      []posts.Post `json:"items"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

func postID() extractor.Extractor[string] {
	return extractor.Param("id", ids.ULID)
}

func postBody() extractor.Extractor[posts.CreateParams] {
	return extractor.Validated(extractor.JSON[posts.CreateParams]())
}

// List serves GET /posts with cursor pagination.
func (h *PostsHandler) List() handler.Handler {
	return endpoint.Get(endpoint.Call2(extractor.Query[posts.ListParams](), extractor.Request(),
		func(params posts.ListParams, r *http.Request) (output.Responder, error) {
			filters, page, err := params.Filters()
			if err != nil {
				return nil, httperr.BadRequest(err)
			}
			result, err := h.Service.List(r.Context(), filters, page)
			if err != nil {
				return nil, err
			}
			items := result.Posts
			if items == nil {
				items = []posts.Post{}
			}
			return output.JSON(postListResponse{Items: items, NextCursor: result.NextCursor}), nil
		}))
}

// Get serves GET /posts/:id.
func (h *PostsHandler) Get() handler.Handler {
	return endpoint.Get(endpoint.Call2(postID(), extractor.Request(),
		func(id string, r *http.Request) (output.Responder, error) {
			post, err := h.Service.GetByULID(r.Context(), id)
			if err != nil {
				return nil, notFound(err)
			}
			return output.JSON(post), nil
		}))
}

// Create serves POST /posts for authenticated users.
func (h *PostsHandler) Create() handler.Handler {
	return endpoint.Post(endpoint.Call3(auth.Bearer(h.JWT), postBody(), extractor.Request(),
		func(claims *auth.Claims, params posts.CreateParams, r *http.Request) (output.Responder, error) {
			post, err := h.Service.Create(r.Context(), claims.Subject, params)
			if err != nil {
				return nil, err
			}
			h.Audit.LogFromRequest(r, claims, "post.create", "post", post.ULID, audit.StatusSuccess, nil)
			location := path.Join(r.URL.Path, post.ULID)
			return output.WithHeader("Location", location, output.WithStatus(http.StatusCreated, output.JSON(post))), nil
		}))
}

// Update serves PUT /posts/:id.
func (h *PostsHandler) Update() handler.Handler {
	return endpoint.Put(endpoint.Call4(auth.Bearer(h.JWT), postID(), postBody(), extractor.Request(),
		func(claims *auth.Claims, id string, params posts.CreateParams, r *http.Request) (output.Responder, error) {
			if err := h.authorize(r, claims, "post.update", id); err != nil {
				return nil, err
			}
			post, err := h.Service.Update(r.Context(), id, params)
			if err != nil {
				return nil, notFound(err)
			}
			h.Audit.LogFromRequest(r, claims, "post.update", "post", id, audit.StatusSuccess, nil)
			return output.JSON(post), nil
		}))
}

// Delete serves DELETE /posts/:id.
func (h *PostsHandler) Delete() handler.Handler {
	return endpoint.Delete(endpoint.Call3(auth.Bearer(h.JWT), postID(), extractor.Request(),
		func(claims *auth.Claims, id string, r *http.Request) (output.Responder, error) {
			if err := h.authorize(r, claims, "post.delete", id); err != nil {
				return nil, err
			}
			if err := h.Service.Delete(r.Context(), id); err != nil {
				return nil, notFound(err)
			}
			h.Audit.LogFromRequest(r, claims, "post.delete", "post", id, audit.StatusSuccess, nil)
			return output.NoContent(), nil
		}))
}

// authorize lets authors change their own posts and editors change any.
func (h *PostsHandler) authorize(r *http.Request, claims *auth.Claims, action, id string) error {
	post, err := h.Service.GetByULID(r.Context(), id)
	if err != nil {
		return notFound(err)
	}
	if post.Author != claims.Subject && !auth.HasRole(claims.Role, auth.RoleEditor, auth.RoleAdmin) {
		h.Audit.LogFromRequest(r, claims, action, "post", id, audit.StatusFailure, map[string]string{"author": post.Author})
		return httperr.Forbidden(ErrNotAuthor)
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, posts.ErrNotFound) {
		return httperr.Wrap(http.StatusNotFound, err)
	}
	return err
}
