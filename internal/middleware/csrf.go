package middleware

import (
	"errors"
	"net/http"

	"github.com/gorilla/csrf"

	"github.com/Togather-Foundation/tsukuyomi/internal/problem"
)

// CSRFProtection protects cookie-authenticated form routes against
// cross-site request forgery using gorilla/csrf's double-submit cookie.
// Safe methods pass through and receive a token; unsafe methods must echo
// it back in the form field or the X-CSRF-Token header. Failures render a
// 403 problem document.
//
// Plain HTTP requests are marked with csrf.PlaintextHTTPRequest when secure
// is false, so the Referer check only applies to TLS deployments.
func CSRFProtection(authKey []byte, secure bool, env string) func(http.Handler) http.Handler {
	protect := csrf.Protect(authKey,
		csrf.Secure(secure),
		csrf.Path("/"),
		csrf.HttpOnly(true),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.ErrorHandler(csrfErrorHandler(env)),
	)
	return func(next http.Handler) http.Handler {
		protected := protect(next)
		if secure {
			return protected
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			protected.ServeHTTP(w, csrf.PlaintextHTTPRequest(r))
		})
	}
}

func csrfErrorHandler(env string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reason := csrf.FailureReason(r)
		if reason == nil {
			reason = errors.New("CSRF token validation failed")
		}
		problem.Write(w, r, http.StatusForbidden, problem.TypeBase+"csrf-failure",
			"CSRF token validation failed", reason, env)
	})
}

// CSRFToken returns the token to embed in forms rendered for r.
func CSRFToken(r *http.Request) string {
	return csrf.Token(r)
}

// CSRFFieldName returns the name attribute for the CSRF token hidden field
func CSRFFieldName() string {
	return "gorilla.csrf.Token"
}
