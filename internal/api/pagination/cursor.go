// Package pagination encodes opaque cursors for keyset pagination.
package pagination

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

var ErrInvalidCursor = errors.New("invalid cursor")

// PostCursor encodes a creation timestamp + ULID for stable post ordering.
type PostCursor struct {
	CreatedAt time.Time
	ULID      string
}

// EncodePostCursor encodes the cursor as base64(ts_unix_nano:ULID).
func EncodePostCursor(createdAt time.Time, ulid string) string {
	value := fmt.Sprintf("%d:%s", createdAt.UTC().UnixNano(), strings.ToUpper(strings.TrimSpace(ulid)))
	return base64.RawURLEncoding.EncodeToString([]byte(value))
}

// DecodePostCursor decodes base64(ts_unix_nano:ULID) into a PostCursor.
func DecodePostCursor(cursor string) (PostCursor, error) {
	cursor = strings.TrimSpace(cursor)
	if cursor == "" {
		return PostCursor{}, ErrInvalidCursor
	}
	decoded, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return PostCursor{}, ErrInvalidCursor
	}
	parts := strings.SplitN(string(decoded), ":", 2)
	if len(parts) != 2 {
		return PostCursor{}, ErrInvalidCursor
	}
	unixNano, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return PostCursor{}, ErrInvalidCursor
	}
	if strings.TrimSpace(parts[1]) == "" {
		return PostCursor{}, ErrInvalidCursor
	}
	return PostCursor{CreatedAt: time.Unix(0, unixNano).UTC(), ULID: strings.ToUpper(strings.TrimSpace(parts[1]))}, nil
}

// After reports whether an item sorts after the cursor in ascending
// (created_at, ULID) order.
func (c PostCursor) After(createdAt time.Time, ulid string) bool {
	if !createdAt.Equal(c.CreatedAt) {
		return createdAt.After(c.CreatedAt)
	}
	return ulid > c.ULID
}

// ClampLimit applies the default and maximum page sizes.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}
