package output

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNegotiatedContentType_Defaults(t *testing.T) {
	if got := NegotiatedContentType(nil); got != contentJSON {
		t.Fatalf("expected %s, got %s", contentJSON, got)
	}

	req := httptest.NewRequest(http.MethodGet, "http://example.com/resource", nil)
	if got := NegotiatedContentType(req); got != contentJSON {
		t.Fatalf("expected %s, got %s", contentJSON, got)
	}
}

func TestNegotiatedContentType_FormatOverride(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://example.com/resource?format=html", nil)
	req.Header.Set("Accept", "application/json")
	if got := NegotiatedContentType(req); got != contentHTML {
		t.Fatalf("expected %s, got %s", contentHTML, got)
	}
}

func TestNegotiatedContentType_AcceptHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://example.com/resource", nil)
	req.Header.Set("Accept", "application/json;q=0.5, text/html;q=0.9")
	if got := NegotiatedContentType(req); got != contentHTML {
		t.Fatalf("expected %s, got %s", contentHTML, got)
	}
}

func TestNegotiatedContentType_ZeroQuality(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://example.com/resource", nil)
	req.Header.Set("Accept", "text/html;q=0, image/png")
	if got := NegotiatedContentType(req); got != contentJSON {
		t.Fatalf("expected %s, got %s", contentJSON, got)
	}
}

func TestNegotiate(t *testing.T) {
	render := func(v any) (string, error) {
		return "<p>" + v.(string) + "</p>", nil
	}

	req := httptest.NewRequest(http.MethodGet, "http://example.com/resource", nil)
	req.Header.Set("Accept", "text/html")
	rec := respond(t, Negotiate("hi", render), req)
	if got := rec.Body.String(); got != "<p>hi</p>" {
		t.Fatalf("expected html body, got %s", got)
	}
	if vary := rec.Header().Get("Vary"); vary != "Accept" {
		t.Fatalf("expected Vary header Accept, got %s", vary)
	}

	req = httptest.NewRequest(http.MethodGet, "http://example.com/resource", nil)
	rec = respond(t, Negotiate("hi", render), req)
	if got := rec.Body.String(); got != `"hi"` {
		t.Fatalf("expected json body, got %s", got)
	}
}
