package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/Togather-Foundation/tsukuyomi/internal/auth"
	"github.com/Togather-Foundation/tsukuyomi/internal/middleware"
)

// decodeEntry extracts the nested "audit" object from one zerolog line.
func decodeEntry(t *testing.T, output string) Entry {
	t.Helper()
	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal([]byte(strings.TrimSpace(output)), &wrapper); err != nil {
		t.Fatalf("Failed to parse logged JSON: %v\nOutput: %s", err, output)
	}
	auditData, ok := wrapper["audit"]
	if !ok {
		t.Fatal("No 'audit' field found in logged JSON")
	}
	var logged Entry
	if err := json.Unmarshal(auditData, &logged); err != nil {
		t.Fatalf("Failed to parse audit entry: %v\nOutput: %s", err, output)
	}
	return logged
}

func TestLogger_Log(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(zerolog.New(&buf))

	entry := Entry{
		Action:       "post.update",
		Actor:        "alice",
		ResourceType: "post",
		ResourceID:   "01HX12ABC123",
		IPAddress:    "192.168.1.1",
		Status:       StatusSuccess,
	}
	logger.Log(entry)

	if !strings.Contains(buf.String(), `"component":"audit"`) {
		t.Errorf("Expected component field, got %s", buf.String())
	}
	logged := decodeEntry(t, buf.String())
	if logged.Action != entry.Action {
		t.Errorf("Action mismatch: got %s, want %s", logged.Action, entry.Action)
	}
	if logged.Actor != entry.Actor {
		t.Errorf("Actor mismatch: got %s, want %s", logged.Actor, entry.Actor)
	}
	if logged.ResourceID != entry.ResourceID {
		t.Errorf("ResourceID mismatch: got %s, want %s", logged.ResourceID, entry.ResourceID)
	}
	if logged.Status != entry.Status {
		t.Errorf("Status mismatch: got %s, want %s", logged.Status, entry.Status)
	}
	if logged.Timestamp.IsZero() {
		t.Error("Timestamp should be set automatically")
	}
}

func TestLogFromRequest_ClaimsAndRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(zerolog.New(&buf))

	r := httptest.NewRequest(http.MethodDelete, "/api/v1/posts/01HX", nil)
	r.RemoteAddr = "10.0.0.7:51234"
	r = r.WithContext(context.WithValue(r.Context(), middleware.RequestIDKey, "req-42"))
	claims := &auth.Claims{Role: auth.RoleEditor, RegisteredClaims: jwt.RegisteredClaims{Subject: "bob"}}

	logger.LogFromRequest(r, claims, "post.delete", "post", "01HX", StatusSuccess, map[string]string{"reason": "spam"})

	logged := decodeEntry(t, buf.String())
	if logged.Actor != "bob" || logged.Role != "editor" {
		t.Errorf("Unexpected actor %q role %q", logged.Actor, logged.Role)
	}
	if logged.IPAddress != "10.0.0.7" {
		t.Errorf("Expected host without port, got %s", logged.IPAddress)
	}
	if logged.RequestID != "req-42" {
		t.Errorf("Expected request ID req-42, got %s", logged.RequestID)
	}
	if logged.Details["reason"] != "spam" {
		t.Errorf("Expected details to be kept, got %v", logged.Details)
	}
}

func TestLogFromRequest_NoClaims(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(zerolog.New(&buf))

	logger.LogFromRequest(httptest.NewRequest(http.MethodPost, "/", nil), nil, "post.create", "post", "", StatusFailure, nil)

	if logged := decodeEntry(t, buf.String()); logged.Actor != "anonymous" {
		t.Errorf("Expected anonymous actor, got %s", logged.Actor)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded for", map[string]string{"X-Forwarded-For": "203.0.113.1, 10.0.0.1"}, "10.0.0.1:80", "203.0.113.1"},
		{"real ip", map[string]string{"X-Real-IP": "203.0.113.2"}, "10.0.0.1:80", "203.0.113.2"},
		{"prefers forwarded for", map[string]string{"X-Forwarded-For": "203.0.113.3", "X-Real-IP": "203.0.113.4"}, "10.0.0.1:80", "203.0.113.3"},
		{"remote addr", nil, "192.0.2.9:4000", "192.0.2.9"},
		{"remote addr without port", nil, "192.0.2.9", "192.0.2.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := clientIP(r); got != tt.want {
				t.Errorf("clientIP() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestLogger_NilIsNoop(t *testing.T) {
	var logger *Logger
	logger.Log(Entry{Action: "post.create"})
	logger.LogFromRequest(httptest.NewRequest(http.MethodGet, "/", nil), nil, "post.create", "post", "", StatusSuccess, nil)
}
