package handlers

import (
	"errors"

	"github.com/Togather-Foundation/tsukuyomi/internal/auth"
	"github.com/Togather-Foundation/tsukuyomi/internal/endpoint"
	"github.com/Togather-Foundation/tsukuyomi/internal/handler"
	"github.com/Togather-Foundation/tsukuyomi/internal/httperr"
	"github.com/Togather-Foundation/tsukuyomi/internal/input"
	"github.com/Togather-Foundation/tsukuyomi/internal/output"
)

// BasicRealm is the realm of the basic authentication challenge.
const BasicRealm = "tsukuyomi"

var errNoBasicUser = errors.New("basic authentication did not run")

type UsersHandler struct {
	JWT   *auth.JWTManager
	Users map[string]string
}

func NewUsersHandler(jwt *auth.JWTManager, users map[string]string) *UsersHandler {
	return &UsersHandler{JWT: jwt, Users: users}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type userInfoResponse struct {
	Subject   string `json:"sub"`
	Name      string `json:"name,omitempty"`
	Role      string `json:"role"`
	ExpiresAt int64  `json:"exp"`
}

// Auth exchanges basic credentials for a bearer token. Basic users get the
// editor role.
func (h *UsersHandler) Auth() handler.Handler {
	issue := handler.HandlerFunc(func(in *input.Input) (output.Responder, error) {
		name, ok := auth.BasicUser(in)
		if !ok {
			return nil, httperr.InternalServerError(errNoBasicUser)
		}
		token, err := h.JWT.Generate(name, name, auth.RoleEditor)
		if err != nil {
			return nil, err
		}
		return output.WithHeader("Cache-Control", "no-store", output.JSON(tokenResponse{
			AccessToken: token,
			TokenType:   "Bearer",
			ExpiresIn:   int64(h.JWT.ExpiresIn().Seconds()),
		})), nil
	})
	return endpoint.Post(handler.Apply(issue, auth.BasicAuth(BasicRealm, h.Users)))
}

// Info returns the claims of the bearer token.
func (h *UsersHandler) Info() handler.Handler {
	return endpoint.Get(endpoint.Call1(auth.Bearer(h.JWT), func(claims *auth.Claims) (output.Responder, error) {
		res := userInfoResponse{Subject: claims.Subject, Name: claims.Name, Role: string(claims.Role)}
		if claims.ExpiresAt != nil {
			res.ExpiresAt = claims.ExpiresAt.Unix()
		}
		return output.JSON(res), nil
	}))
}
