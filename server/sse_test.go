package server

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/itsneelabh/gomind/providers"
)

func TestHandleStreamRequiresIPParam(t *testing.T) {
	srv, mr := newTestServer(t, nil, map[string]*providers.Shell{})
	defer mr.Close()
	defer srv.rateLimiter.Close()

	req := httptest.NewRequest("GET", "/api/v1/lookup/stream", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if rec.Code != 400 {
		t.Fatalf("expected 400 without an ip query param, got %d", rec.Code)
	}
}

func TestHandleStreamEmitsSSEFrames(t *testing.T) {
	provider := providers.NewShell(&fakeAdapter{name: "ipinfo", partial: providers.Partial{ASN: "AS1"}},
		providers.Config{Name: "ipinfo", Enabled: true, TimeoutMs: 1000, TrustRank: 7}, nil, nil, nil)
	srv, mr := newTestServer(t, []providers.Provider{provider}, map[string]*providers.Shell{"ipinfo": provider})
	defer mr.Close()
	defer srv.rateLimiter.Close()

	req := httptest.NewRequest("GET", "/api/v1/lookup/stream?ip=8.8.8.8", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected text/event-stream, got %s", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "event: lookup_start") {
		t.Fatalf("expected a lookup_start frame, got body %s", body)
	}
	if !strings.Contains(body, "event: lookup_complete") {
		t.Fatalf("expected a terminal lookup_complete frame, got body %s", body)
	}
}
