package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/itsneelabh/gomind/core"
)

func TestRecoverMiddlewareConvertsPanicToInternalError(t *testing.T) {
	s := &Server{logger: &core.NoOpLogger{}}
	panicking := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/anything", nil)

	s.recoverMiddleware(panicking).ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 after a panic, got %d", rec.Code)
	}
}

func TestLoggingMiddlewareCapturesStatusCode(t *testing.T) {
	s := &Server{logger: &core.NoOpLogger{}}
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/teapot", nil)

	s.loggingMiddleware(handler).ServeHTTP(rec, req)

	if rec.Code != http.StatusTeapot {
		t.Fatalf("expected the wrapped handler's status to pass through, got %d", rec.Code)
	}
}
