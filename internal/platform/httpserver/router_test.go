package httpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

func newTestRouter() *chi.Mux {
	r := chi.NewRouter()
	SetupRouter(r, nil)
	r.Get("/echo-id", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(RequestIDFromContext(r.Context())))
	})
	r.Get("/fail", func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, http.StatusNotFound, "NOT_FOUND", "nothing here")
	})
	return r
}

func TestSetupRouter_health(t *testing.T) {
	r := newTestRouter()
	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}

func TestRequestIDMiddleware_generates_id(t *testing.T) {
	r := newTestRouter()
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/echo-id", nil))

	got := rec.Header().Get(RequestIDHeader)
	if got == "" {
		t.Fatal("expected generated request id header")
	}
	if rec.Body.String() != got {
		t.Errorf("context id %q does not match header %q", rec.Body.String(), got)
	}
}

func TestRequestIDMiddleware_reuses_incoming_id(t *testing.T) {
	r := newTestRouter()
	req := httptest.NewRequest(http.MethodGet, "/echo-id", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Header().Get(RequestIDHeader) != "abc-123" || rec.Body.String() != "abc-123" {
		t.Errorf("expected incoming id to be reused, got header=%q body=%q",
			rec.Header().Get(RequestIDHeader), rec.Body.String())
	}
}

func TestWriteError(t *testing.T) {
	r := newTestRouter()
	req := httptest.NewRequest(http.MethodGet, "/fail", nil)
	req.Header.Set(RequestIDHeader, "rid-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	var body ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != "NOT_FOUND" || body.Error.RequestID != "rid-1" {
		t.Errorf("unexpected error body: %+v", body)
	}
}
