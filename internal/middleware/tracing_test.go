package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTracing(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := trace.NewTracerProvider(
		trace.WithSyncer(exporter),
		trace.WithSampler(trace.AlwaysSample()),
	)
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(previous)
	})
	return exporter
}

func TestTracing_NamesSpanAfterRoutePattern(t *testing.T) {
	exporter := setupTracing(t)

	handler := CorrelationID(testLogger())(Tracing(routed("/api/v1/posts/:id", http.StatusOK)))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/posts/01HX", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]

	if span.Name != "GET /api/v1/posts/:id" {
		t.Errorf("expected span name %q, got %q", "GET /api/v1/posts/:id", span.Name)
	}

	attrs := map[string]string{}
	for _, attr := range span.Attributes {
		attrs[string(attr.Key)] = attr.Value.Emit()
	}
	if attrs["http.route"] != "/api/v1/posts/:id" {
		t.Errorf("expected http.route attribute, got %q", attrs["http.route"])
	}
	if attrs["http.status_code"] != "200" {
		t.Errorf("expected http.status_code 200, got %q", attrs["http.status_code"])
	}
	if attrs["request_id"] == "" {
		t.Error("expected request_id attribute")
	}
	if span.Status.Code != codes.Ok {
		t.Errorf("expected Ok status, got %v", span.Status.Code)
	}
}

func TestTracing_UnmatchedAndServerError(t *testing.T) {
	exporter := setupTracing(t)

	handler := Tracing(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/raw/path", nil))

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name != "POST /raw/path" {
		t.Errorf("expected raw path span name, got %q", spans[0].Name)
	}
	if spans[0].Status.Code != codes.Error {
		t.Errorf("expected Error status, got %v", spans[0].Status.Code)
	}
}

func TestSchemeFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := schemeFromRequest(req); got != "http" {
		t.Errorf("expected http, got %q", got)
	}
	req.Header.Set("X-Forwarded-Proto", "https")
	if got := schemeFromRequest(req); got != "https" {
		t.Errorf("expected forwarded https, got %q", got)
	}
}
