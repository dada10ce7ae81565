package input

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
)

// ErrSecureCookiesDisabled is returned by the signed and private jars when no
// keys were configured.
var ErrSecureCookiesDisabled = errors.New("secure cookies are not enabled")

// CookieKeys are the keys used by the signed and private jars. HashKey
// authenticates values; BlockKey (16, 24 or 32 bytes) encrypts them.
type CookieKeys struct {
	HashKey  []byte
	BlockKey []byte
}

// Cookies is a view over the request cookies plus the changes made while
// handling the request. The changes are sent back as Set-Cookie headers.
type Cookies struct {
	request *http.Request
	delta   []*http.Cookie
	keys    *CookieKeys
}

func newCookies(r *http.Request) *Cookies {
	return &Cookies{request: r}
}

// Get returns the named cookie, taking pending changes into account.
func (c *Cookies) Get(name string) (*http.Cookie, bool) {
	for i := len(c.delta) - 1; i >= 0; i-- {
		if c.delta[i].Name == name {
			if c.delta[i].MaxAge < 0 {
				return nil, false
			}
			return c.delta[i], true
		}
	}
	if c.request == nil {
		return nil, false
	}
	cookie, err := c.request.Cookie(name)
	if err != nil {
		return nil, false
	}
	return cookie, true
}

// Add sets a cookie on the response.
func (c *Cookies) Add(cookie *http.Cookie) {
	c.delta = append(c.delta, cookie)
}

// Remove expires the named cookie on the client.
func (c *Cookies) Remove(name string) {
	c.delta = append(c.delta, &http.Cookie{
		Name:    name,
		Path:    "/",
		MaxAge:  -1,
		Expires: time.Unix(0, 0),
	})
}

// Delta returns the pending changes in the order they were made.
func (c *Cookies) Delta() []*http.Cookie {
	return c.delta
}

// WriteTo appends a Set-Cookie header for every pending change.
func (c *Cookies) WriteTo(h http.Header) {
	for _, cookie := range c.delta {
		if v := cookie.String(); v != "" {
			h.Add("Set-Cookie", v)
		}
	}
}

// Signed returns a jar whose values are authenticated with the hash key.
func (c *Cookies) Signed() *SecureJar {
	if c.keys == nil || len(c.keys.HashKey) == 0 {
		return &SecureJar{parent: c}
	}
	return &SecureJar{parent: c, codec: securecookie.New(c.keys.HashKey, nil)}
}

// Private returns a jar whose values are authenticated and encrypted.
func (c *Cookies) Private() *SecureJar {
	if c.keys == nil || len(c.keys.HashKey) == 0 || len(c.keys.BlockKey) == 0 {
		return &SecureJar{parent: c}
	}
	return &SecureJar{parent: c, codec: securecookie.New(c.keys.HashKey, c.keys.BlockKey)}
}

// SecureJar stores cookie values encoded with securecookie.
type SecureJar struct {
	parent *Cookies
	codec  *securecookie.SecureCookie
}

// Get decodes the named cookie. A missing cookie yields http.ErrNoCookie.
func (j *SecureJar) Get(name string) (string, error) {
	if j.codec == nil {
		return "", ErrSecureCookiesDisabled
	}
	cookie, ok := j.parent.Get(name)
	if !ok {
		return "", http.ErrNoCookie
	}
	var value string
	if err := j.codec.Decode(name, cookie.Value, &value); err != nil {
		return "", fmt.Errorf("decode cookie %q: %w", name, err)
	}
	return value, nil
}

// Add encodes the cookie value and sets it on the response.
func (j *SecureJar) Add(cookie *http.Cookie) error {
	if j.codec == nil {
		return ErrSecureCookiesDisabled
	}
	encoded, err := j.codec.Encode(cookie.Name, cookie.Value)
	if err != nil {
		return fmt.Errorf("encode cookie %q: %w", cookie.Name, err)
	}
	clone := *cookie
	clone.Value = encoded
	j.parent.Add(&clone)
	return nil
}

// Remove expires the named cookie on the client.
func (j *SecureJar) Remove(name string) {
	j.parent.Remove(name)
}
