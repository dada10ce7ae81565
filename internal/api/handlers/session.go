package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/Togather-Foundation/tsukuyomi/internal/endpoint"
	"github.com/Togather-Foundation/tsukuyomi/internal/extractor"
	"github.com/Togather-Foundation/tsukuyomi/internal/handler"
	"github.com/Togather-Foundation/tsukuyomi/internal/input"
	"github.com/Togather-Foundation/tsukuyomi/internal/middleware"
	"github.com/Togather-Foundation/tsukuyomi/internal/output"
	"github.com/Togather-Foundation/tsukuyomi/internal/templates"
)

const (
	visitsCookie = "visits"
	userCookie   = "user"
	sessionPath  = "/session"
)

// SessionHandler demonstrates cookie state. With secure cookies the visit
// counter is signed and the user name is encrypted; otherwise both are
// plain cookies.
type SessionHandler struct {
	Templates *templates.Engine
	Secure    bool
}

func NewSessionHandler(engine *templates.Engine, secure bool) *SessionHandler {
	return &SessionHandler{Templates: engine, Secure: secure}
}

type sessionPage struct {
	Visits    int
	User      string
	Secure    bool
	CSRFField string
	CSRFToken string
}

// LoginForm is the body of POST /session/login.
type LoginForm struct {
	Name string `form:"name" validate:"required,max=64"`
}

// Show renders the session page and counts the visit.
func (h *SessionHandler) Show() handler.Handler {
	return endpoint.Get(endpoint.Call2(extractor.Cookies(), extractor.Request(),
		func(cookies *input.Cookies, r *http.Request) (output.Responder, error) {
			visits, _ := strconv.Atoi(h.get(cookies.Signed(), cookies, visitsCookie))
			visits++
			if err := h.set(cookies.Signed(), cookies, visitsCookie, strconv.Itoa(visits)); err != nil {
				return nil, err
			}
			return h.Templates.Render("session.html", sessionPage{
				Visits:    visits,
				User:      h.get(cookies.Private(), cookies, userCookie),
				Secure:    h.Secure,
				CSRFField: middleware.CSRFFieldName(),
				CSRFToken: middleware.CSRFToken(r),
			}), nil
		}))
}

// Login stores the submitted name and redirects back to the session page.
func (h *SessionHandler) Login() handler.Handler {
	return endpoint.Post(endpoint.Call2(extractor.Cookies(), extractor.Validated(extractor.Urlencoded[LoginForm]()),
		func(cookies *input.Cookies, form LoginForm) (output.Responder, error) {
			if err := h.set(cookies.Private(), cookies, userCookie, form.Name); err != nil {
				return nil, err
			}
			return output.SeeOther(sessionPath), nil
		}))
}

// Logout forgets the user and the visit counter.
func (h *SessionHandler) Logout() handler.Handler {
	return endpoint.Post(endpoint.Call1(extractor.Cookies(), func(cookies *input.Cookies) (output.Responder, error) {
		cookies.Remove(userCookie)
		cookies.Remove(visitsCookie)
		return output.SeeOther(sessionPath), nil
	}))
}

func (h *SessionHandler) get(jar *input.SecureJar, cookies *input.Cookies, name string) string {
	if h.Secure {
		value, err := jar.Get(name)
		if !errors.Is(err, input.ErrSecureCookiesDisabled) {
			// tampered cookies read as absent
			return value
		}
	}
	if c, ok := cookies.Get(name); ok {
		return c.Value
	}
	return ""
}

func (h *SessionHandler) set(jar *input.SecureJar, cookies *input.Cookies, name, value string) error {
	cookie := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.Secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(30 * 24 * time.Hour),
	}
	if !h.Secure {
		cookies.Add(cookie)
		return nil
	}
	if err := jar.Add(cookie); err != nil {
		if errors.Is(err, input.ErrSecureCookiesDisabled) {
			cookies.Add(cookie)
			return nil
		}
		return err
	}
	return nil
}
