package auth

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/Togather-Foundation/tsukuyomi/internal/extractor"
	"github.com/Togather-Foundation/tsukuyomi/internal/handler"
	"github.com/Togather-Foundation/tsukuyomi/internal/httperr"
	"github.com/Togather-Foundation/tsukuyomi/internal/input"
	"github.com/Togather-Foundation/tsukuyomi/internal/output"
)

// BcryptCost is the work factor used by HashPassword.
const BcryptCost = 12

var (
	ErrInsufficientRole   = errors.New("insufficient role")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type claimsKey struct{}
type basicUserKey struct{}

// Bearer extracts the claims of the bearer token in the Authorization
// header. Missing or invalid tokens are 401s carrying a WWW-Authenticate
// challenge. Claims are cached in the request locals.
func Bearer(m *JWTManager) extractor.Extractor[*Claims] {
	return extractor.Func[*Claims](func(in *input.Input) (*Claims, error) {
		if claims, ok := ClaimsOf(in); ok {
			return claims, nil
		}
		token, err := TokenFromHeader(in.Request.Header.Get("Authorization"))
		if err != nil {
			return nil, httperr.Unauthorized(err).WithHeader("WWW-Authenticate", `Bearer realm="tsukuyomi"`)
		}
		claims, err := m.Validate(token)
		if err != nil {
			challenge := fmt.Sprintf(`Bearer realm="tsukuyomi", error="invalid_token", error_description=%q`, err.Error())
			return nil, httperr.Unauthorized(err).WithHeader("WWW-Authenticate", challenge)
		}
		in.SetLocal(claimsKey{}, claims)
		return claims, nil
	})
}

// ClaimsOf returns the claims stored by Bearer or RequireRole.
func ClaimsOf(in *input.Input) (*Claims, bool) {
	v, ok := in.Local(claimsKey{})
	if !ok {
		return nil, false
	}
	claims, ok := v.(*Claims)
	return claims, ok
}

// RequireRole rejects requests without a valid bearer token (401) or whose
// token lacks one of roles (403).
func RequireRole(m *JWTManager, roles ...Role) handler.Modifier {
	bearer := Bearer(m)
	return handler.Around(func(in *input.Input, next handler.Handler) (output.Responder, error) {
		claims, err := bearer.Extract(in)
		if err != nil {
			return nil, err
		}
		if !HasRole(claims.Role, roles...) {
			return nil, httperr.Forbidden(fmt.Errorf("%w: %s", ErrInsufficientRole, claims.Role))
		}
		return next.Handle(in)
	})
}

var (
	dummyOnce sync.Once
	dummyHash []byte
)

// BasicAuth checks HTTP basic credentials against bcrypt hashes keyed by
// user name. Unknown users cost as much as wrong passwords.
func BasicAuth(realm string, users map[string]string) handler.Modifier {
	challenge := fmt.Sprintf(`Basic realm=%q, charset="UTF-8"`, realm)
	reject := func(err error) error {
		return httperr.Unauthorized(err).WithHeader("WWW-Authenticate", challenge)
	}
	return handler.Around(func(in *input.Input, next handler.Handler) (output.Responder, error) {
		name, password, ok := in.Request.BasicAuth()
		if !ok {
			return nil, reject(ErrMissingToken)
		}
		hash, known := users[name]
		if !known {
			dummyOnce.Do(func() {
				dummyHash, _ = bcrypt.GenerateFromPassword([]byte("unused"), bcrypt.DefaultCost)
			})
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return nil, reject(ErrInvalidCredentials)
		}
		if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
			return nil, reject(ErrInvalidCredentials)
		}
		in.SetLocal(basicUserKey{}, name)
		return next.Handle(in)
	})
}

// BasicUser returns the user authenticated by BasicAuth.
func BasicUser(in *input.Input) (string, bool) {
	v, ok := in.Local(basicUserKey{})
	if !ok {
		return "", false
	}
	name, ok := v.(string)
	return name, ok
}

// HashPassword returns the bcrypt hash of password for use with BasicAuth.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
