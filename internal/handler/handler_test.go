package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Togather-Foundation/tsukuyomi/internal/input"
	"github.com/Togather-Foundation/tsukuyomi/internal/output"
)

type getOnly struct{ Handler }

func (getOnly) AllowedMethods() []string { return []string{http.MethodGet} }

func tracing(name string, log *[]string) Modifier {
	return Around(func(in *input.Input, next Handler) (output.Responder, error) {
		*log = append(*log, "enter "+name)
		res, err := next.Handle(in)
		*log = append(*log, "leave "+name)
		return res, err
	})
}

func TestChain_FirstIsOutermost(t *testing.T) {
	var log []string
	h := Ready(func(*input.Input) output.Responder {
		log = append(log, "handler")
		return output.Text("ok")
	})

	wrapped := Chain(tracing("a", &log), nil, tracing("b", &log)).Modify(h)
	_, err := wrapped.Handle(input.New(httptest.NewRequest(http.MethodGet, "/", nil)))
	require.NoError(t, err)

	assert.Equal(t, "enter a,enter b,handler,leave b,leave a", strings.Join(log, ","))
}

func TestApply_KeepsMethodRestriction(t *testing.T) {
	var log []string
	h := getOnly{Ready(func(*input.Input) output.Responder { return nil })}

	wrapped := Apply(h, tracing("a", &log))
	assert.Equal(t, []string{http.MethodGet}, AllowedMethods(wrapped))

	assert.Nil(t, AllowedMethods(Ready(func(*input.Input) output.Responder { return nil })))
}

func TestIdentity(t *testing.T) {
	h := Ready(func(*input.Input) output.Responder { return output.Text("x") })
	res, err := Identity.Modify(h).Handle(input.New(httptest.NewRequest(http.MethodGet, "/", nil)))
	require.NoError(t, err)
	assert.NotNil(t, res)
}
