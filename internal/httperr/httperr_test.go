package httperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusOf(t *testing.T) {
	cause := errors.New("bad digit")

	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "bad request", err: BadRequest(cause), want: http.StatusBadRequest},
		{name: "not found", err: NotFound(), want: http.StatusNotFound},
		{name: "wrapped", err: fmt.Errorf("extract id: %w", Forbidden(cause)), want: http.StatusForbidden},
		{name: "plain error", err: cause, want: http.StatusInternalServerError},
		{name: "zero status", err: &Error{}, want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusOf(tt.err))
		})
	}
}

func TestError(t *testing.T) {
	cause := errors.New("bad digit")
	err := BadRequest(cause)

	assert.Equal(t, "Bad Request: bad digit", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "Bad Request", Title(err))
	assert.Equal(t, "Method Not Allowed", MethodNotAllowed().Error())
	assert.Equal(t, "Internal Server Error", Title(cause))
	assert.Equal(t, "payload already taken", Title(New(http.StatusInternalServerError, "payload already taken")))
}

func TestHeaderOf(t *testing.T) {
	err := Unauthorized(errors.New("no token")).WithHeader("WWW-Authenticate", `Bearer realm="api"`)
	wrapped := fmt.Errorf("auth: %w", err)

	assert.Equal(t, `Bearer realm="api"`, HeaderOf(wrapped).Get("WWW-Authenticate"))
	assert.Nil(t, HeaderOf(errors.New("plain")))
}

func TestWithHeader_LeavesReceiverUntouched(t *testing.T) {
	sentinel := New(http.StatusConflict, "payload already taken")

	first := sentinel.WithHeader("Retry-After", "1")
	second := first.WithHeader("X-Reason", "taken")

	assert.Nil(t, sentinel.Header, "sentinel must not gain headers")
	assert.Equal(t, "1", first.Header.Get("Retry-After"))
	assert.Empty(t, first.Header.Get("X-Reason"), "chained call must not mutate its receiver")
	assert.Equal(t, "1", second.Header.Get("Retry-After"))
	assert.Equal(t, "taken", second.Header.Get("X-Reason"))

	assert.True(t, errors.Is(second, sentinel))
	assert.True(t, errors.Is(fmt.Errorf("wrap: %w", first), sentinel))
	assert.False(t, errors.Is(sentinel, first))
	assert.Equal(t, http.StatusConflict, StatusOf(second))
}
