package problem

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Togather-Foundation/tsukuyomi/internal/httperr"
)

func TestWrite_DevIncludesDetail(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://example.com/api/v1/resource", nil)
	res := httptest.NewRecorder()

	Write(res, req, http.StatusBadRequest, "https://example.com/problem", "bad request", errors.New("boom"), "development")

	if got := res.Result().Header.Get("Content-Type"); got != "application/problem+json" {
		t.Fatalf("expected content type problem+json, got %s", got)
	}

	var body ProblemDetails
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Detail != "boom" {
		t.Fatalf("expected detail boom, got %s", body.Detail)
	}
	if body.Instance != "/api/v1/resource" {
		t.Fatalf("expected instance /api/v1/resource, got %s", body.Instance)
	}
}

func TestWrite_ProdSanitizesDetail(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://example.com/api/v1/resource", nil)
	res := httptest.NewRecorder()

	Write(res, req, http.StatusBadRequest, "https://example.com/problem", "bad request", errors.New("boom"), "production")

	var body ProblemDetails
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Detail != http.StatusText(http.StatusBadRequest) {
		t.Fatalf("expected sanitized detail, got %s", body.Detail)
	}
}

func TestFromError(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://example.com/posts/abc", nil)
	res := httptest.NewRecorder()

	err := fmt.Errorf("extract id: %w", httperr.BadRequest(errors.New("invalid digit")))
	FromError(res, req, err, "test")

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", res.Code)
	}

	var body ProblemDetails
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Title != "Bad Request" {
		t.Fatalf("expected title Bad Request, got %s", body.Title)
	}
	if body.Type != TypeBase+"bad-request" {
		t.Fatalf("unexpected type %s", body.Type)
	}
}

func TestFromError_PlainErrorIs500(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)
	res := httptest.NewRecorder()

	FromError(res, req, errors.New("database exploded"), "production")

	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", res.Code)
	}

	var body ProblemDetails
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Detail != "Internal Server Error" {
		t.Fatalf("expected hidden detail, got %s", body.Detail)
	}
}

func TestTypeFor_UnknownStatus(t *testing.T) {
	if got := TypeFor(799); got != "about:blank" {
		t.Fatalf("expected about:blank, got %s", got)
	}
}
