package tracker

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	svc := NewService(NewInMemoryRepository(), 0, nil)
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewHandler(svc, log, nil)
}

func newTestRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()
	h.Routes(r)
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeProgress(t *testing.T, rec *httptest.ResponseRecorder) progressResponse {
	t.Helper()
	var resp progressResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func TestHandler_StartSession(t *testing.T) {
	r := newTestRouter(newTestHandler(t))

	rec := doJSON(t, r, http.MethodPost, "/users/u1/media/m1/session", map[string]interface{}{"video_duration": 300.0})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	resp := decodeProgress(t, rec)
	if resp.UserID != "u1" || resp.MediaID != "m1" {
		t.Errorf("unexpected key %s/%s", resp.UserID, resp.MediaID)
	}
	if resp.VideoDuration == nil || *resp.VideoDuration != 300 {
		t.Errorf("expected duration 300, got %v", resp.VideoDuration)
	}
	if resp.WatchSegments == nil || len(resp.WatchSegments) != 0 {
		t.Errorf("expected empty watch segments, got %v", resp.WatchSegments)
	}
}

func TestHandler_StartSession_unknown_duration(t *testing.T) {
	r := newTestRouter(newTestHandler(t))

	rec := doJSON(t, r, http.MethodPost, "/users/u1/media/live/session", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"video_duration":null`) {
		t.Errorf("expected null duration, got %s", rec.Body.String())
	}
}

func TestHandler_StartSession_bad_request(t *testing.T) {
	r := newTestRouter(newTestHandler(t))

	req := httptest.NewRequest(http.MethodPost, "/users/u1/media/m1/session", strings.NewReader("not json"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestHandler_RecordSample(t *testing.T) {
	r := newTestRouter(newTestHandler(t))
	doJSON(t, r, http.MethodPost, "/users/u1/media/m1/session", map[string]interface{}{"video_duration": 10.0})

	var rec *httptest.ResponseRecorder
	for _, pos := range []float64{0, 1, 2, 3, 4, 5} {
		rec = doJSON(t, r, http.MethodPost, "/users/u1/media/m1/samples", map[string]interface{}{"current_time": pos})
		if rec.Code != http.StatusOK {
			t.Fatalf("sample %v: expected 200, got %d", pos, rec.Code)
		}
	}

	resp := decodeProgress(t, rec)
	if resp.PercentWatched != 50 || resp.TotalWatchTime != 5 {
		t.Errorf("expected 50%% and total 5, got %d and %v", resp.PercentWatched, resp.TotalWatchTime)
	}
	if resp.CurrentStart == nil || *resp.CurrentStart != 0 || resp.LastKnownStopPosition == nil || *resp.LastKnownStopPosition != 5 {
		t.Errorf("expected open run 0..5, got %v..%v", resp.CurrentStart, resp.LastKnownStopPosition)
	}
	if len(resp.Segments) != 1 || resp.Segments[0].Start != 0 || resp.Segments[0].Stop != 5 {
		t.Errorf("expected segments [0,5], got %v", resp.Segments)
	}
	if resp.Completed {
		t.Error("should not be completed at 50%")
	}
}

func TestHandler_RecordSample_completes(t *testing.T) {
	r := newTestRouter(newTestHandler(t))
	doJSON(t, r, http.MethodPost, "/users/u1/media/m1/session", map[string]interface{}{"video_duration": 3.0})

	var rec *httptest.ResponseRecorder
	for _, pos := range []float64{0, 1, 2, 3} {
		rec = doJSON(t, r, http.MethodPost, "/users/u1/media/m1/samples", map[string]interface{}{"current_time": pos})
	}
	resp := decodeProgress(t, rec)
	if !resp.Completed || resp.CompletedAt == nil || resp.PercentWatched != 100 {
		t.Errorf("expected completion, got completed=%v at=%v pct=%d", resp.Completed, resp.CompletedAt, resp.PercentWatched)
	}
}

func TestHandler_RecordSample_errors(t *testing.T) {
	r := newTestRouter(newTestHandler(t))
	doJSON(t, r, http.MethodPost, "/users/u1/media/m1/session", map[string]interface{}{"video_duration": 10.0})

	t.Run("missing_current_time", func(t *testing.T) {
		rec := doJSON(t, r, http.MethodPost, "/users/u1/media/m1/samples", map[string]interface{}{})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("negative_position", func(t *testing.T) {
		rec := doJSON(t, r, http.MethodPost, "/users/u1/media/m1/samples", map[string]interface{}{"current_time": -3.0})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "INVALID_SAMPLE") {
			t.Errorf("expected INVALID_SAMPLE code, got %s", rec.Body.String())
		}
	})

	t.Run("unknown_session", func(t *testing.T) {
		rec := doJSON(t, r, http.MethodPost, "/users/u1/media/other/samples", map[string]interface{}{"current_time": 1.0})
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("conflict_after_end", func(t *testing.T) {
		end := doJSON(t, r, http.MethodPost, "/users/u1/media/m1/end", nil)
		if end.Code != http.StatusOK {
			t.Fatalf("setup: expected 200, got %d", end.Code)
		}
		rec := doJSON(t, r, http.MethodPost, "/users/u1/media/m1/samples", map[string]interface{}{"current_time": 1.0})
		if rec.Code != http.StatusConflict {
			t.Errorf("expected 409, got %d", rec.Code)
		}
	})
}

func TestHandler_GetProgress(t *testing.T) {
	r := newTestRouter(newTestHandler(t))

	rec := doJSON(t, r, http.MethodGet, "/users/u1/media/m1/progress", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 before session start, got %d", rec.Code)
	}

	doJSON(t, r, http.MethodPost, "/users/u1/media/m1/session", map[string]interface{}{"video_duration": 100.0})
	doJSON(t, r, http.MethodPost, "/users/u1/media/m1/samples", map[string]interface{}{"current_time": 20.0})
	doJSON(t, r, http.MethodPost, "/users/u1/media/m1/samples", map[string]interface{}{"current_time": 21.0})

	rec = doJSON(t, r, http.MethodGet, "/users/u1/media/m1/progress", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Content-Type: got %q", ct)
	}
	resp := decodeProgress(t, rec)
	if resp.CurrentPosition != 21 || resp.TotalWatchTime != 1 {
		t.Errorf("expected position 21 and total 1, got %v and %v", resp.CurrentPosition, resp.TotalWatchTime)
	}
	if resp.Ended {
		t.Error("session should not be ended")
	}
}

func TestHandler_EndSession_idempotent(t *testing.T) {
	r := newTestRouter(newTestHandler(t))
	doJSON(t, r, http.MethodPost, "/users/u1/media/m1/session", map[string]interface{}{"video_duration": 100.0})

	for i := 0; i < 2; i++ {
		rec := doJSON(t, r, http.MethodPost, "/users/u1/media/m1/end", nil)
		if rec.Code != http.StatusOK {
			t.Errorf("end %d: expected 200, got %d", i, rec.Code)
		}
	}

	rec := doJSON(t, r, http.MethodGet, "/users/u1/media/m1/progress", nil)
	if resp := decodeProgress(t, rec); !resp.Ended {
		t.Error("expected ended session")
	}
}
