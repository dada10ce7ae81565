package auth

import (
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	// DerivedKeyLength is the length of derived keys in bytes (32 bytes = 256 bits for HMAC-SHA256)
	DerivedKeyLength = 32

	purposeJWT         = "tsukuyomi-jwt-v1"
	purposeCSRF        = "tsukuyomi-csrf-v1"
	purposeCookieHash  = "tsukuyomi-cookie-hash-v1"
	purposeCookieBlock = "tsukuyomi-cookie-block-v1"
)

// ErrInvalidMasterSecret is returned when the master secret is invalid
var ErrInvalidMasterSecret = errors.New("master secret cannot be empty")

// DeriveKey derives a 32-byte key from a master secret using HKDF-SHA256.
// Keys derived for different purposes are independent of each other.
func DeriveKey(masterSecret []byte, purpose string) ([]byte, error) {
	if len(masterSecret) == 0 {
		return nil, ErrInvalidMasterSecret
	}

	r := hkdf.New(sha256.New, masterSecret, nil, []byte(purpose))
	derivedKey := make([]byte, DerivedKeyLength)
	if _, err := io.ReadFull(r, derivedKey); err != nil {
		return nil, err
	}

	return derivedKey, nil
}

// Keys holds every key the server derives from its master secret.
type Keys struct {
	JWT         []byte
	CSRF        []byte
	CookieHash  []byte
	CookieBlock []byte
}

// DeriveKeys derives the signing and encryption keys used by the server.
func DeriveKeys(masterSecret []byte) (*Keys, error) {
	var keys Keys
	for _, k := range []struct {
		dst     *[]byte
		purpose string
	}{
		{&keys.JWT, purposeJWT},
		{&keys.CSRF, purposeCSRF},
		{&keys.CookieHash, purposeCookieHash},
		{&keys.CookieBlock, purposeCookieBlock},
	} {
		key, err := DeriveKey(masterSecret, k.purpose)
		if err != nil {
			return nil, err
		}
		*k.dst = key
	}
	return &keys, nil
}
