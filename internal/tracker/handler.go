package tracker

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"watch-progress/internal/platform/httpserver"
	"watch-progress/internal/platform/metrics"
	"watch-progress/internal/watch"

	"github.com/go-chi/chi/v5"
)

// Handler exposes watch progress HTTP endpoints using go-chi.
type Handler struct {
	svc     *Service
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewHandler returns a Handler that uses the given Service, Logger, and optional Metrics.
// Metrics may be nil to disable metric recording (e.g. in tests).
func NewHandler(svc *Service, log *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{svc: svc, log: log, metrics: m}
}

// Routes mounts the session endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/users/{user_id}/media/{media_id}", func(r chi.Router) {
		r.Post("/session", h.StartSession)
		r.Post("/samples", h.RecordSample)
		r.Get("/progress", h.GetProgress)
		r.Post("/end", h.EndSession)
	})
}

type startSessionRequest struct {
	// VideoDuration is null or absent for streams of unknown length.
	VideoDuration *float64 `json:"video_duration"`
}

type sampleRequest struct {
	CurrentTime *float64 `json:"current_time"`
}

type progressResponse struct {
	UserID                string          `json:"user_id"`
	MediaID               string          `json:"media_id"`
	WatchSegments         []watch.Segment `json:"watch_segments"`
	Segments              []watch.Segment `json:"segments"`
	CurrentStart          *float64        `json:"current_start"`
	LastKnownStopPosition *float64        `json:"last_known_stop_position"`
	CurrentPosition       float64         `json:"current_position"`
	TotalWatchTime        float64         `json:"total_watch_time"`
	VideoDuration         *float64        `json:"video_duration"`
	PercentWatched        int             `json:"percent_watched"`
	Completed             bool            `json:"completed"`
	CompletedAt           *time.Time      `json:"completed_at,omitempty"`
	Ended                 bool            `json:"ended"`
}

func newProgressResponse(s *Session) progressResponse {
	p := s.Progress
	resp := progressResponse{
		UserID:                string(s.Key.UserID),
		MediaID:               string(s.Key.MediaID),
		WatchSegments:         p.WatchSegments,
		Segments:              p.Segments(),
		CurrentStart:          p.CurrentStart,
		LastKnownStopPosition: p.LastKnownStopPosition,
		CurrentPosition:       p.CurrentPosition,
		TotalWatchTime:        p.TotalWatchTime,
		PercentWatched:        p.PercentWatched,
		Completed:             s.Completed,
		Ended:                 s.Ended,
	}
	if resp.WatchSegments == nil {
		resp.WatchSegments = []watch.Segment{}
	}
	if !math.IsInf(p.VideoDuration, 1) {
		d := p.VideoDuration
		resp.VideoDuration = &d
	}
	if s.Completed {
		at := s.CompletedAt
		resp.CompletedAt = &at
	}
	return resp
}

func keyFromRequest(r *http.Request) (Key, bool) {
	key := Key{
		UserID:  UserID(chi.URLParam(r, "user_id")),
		MediaID: MediaID(chi.URLParam(r, "media_id")),
	}
	return key, key.UserID != "" && key.MediaID != ""
}

// StartSession handles POST /users/{user_id}/media/{media_id}/session.
// Body: { "video_duration": 312.4 }.
func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	key, ok := keyFromRequest(r)
	if !ok {
		httpserver.WriteError(w, r, http.StatusBadRequest, "BAD_REQUEST", "user_id and media_id are required")
		return
	}

	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.log.Debug("invalid session body", slog.String("error", err.Error()))
		httpserver.WriteError(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body")
		return
	}
	duration := 0.0
	if req.VideoDuration != nil {
		duration = *req.VideoDuration
	}

	sess, err := h.svc.StartSession(r.Context(), key, duration)
	if err != nil {
		h.log.Error("start session failed", slog.String("error", err.Error()))
		httpserver.WriteError(w, r, http.StatusInternalServerError, "INTERNAL", "internal server error")
		return
	}

	h.log.Info("session started",
		slog.String("user_id", string(key.UserID)),
		slog.String("media_id", string(key.MediaID)),
		slog.Float64("video_duration", duration))
	if h.metrics != nil {
		h.metrics.IncSessionsStarted()
	}
	httpserver.WriteJSON(w, http.StatusCreated, newProgressResponse(sess))
}

// RecordSample handles POST /users/{user_id}/media/{media_id}/samples.
// Body: { "current_time": 42.7 }.
func (h *Handler) RecordSample(w http.ResponseWriter, r *http.Request) {
	key, ok := keyFromRequest(r)
	if !ok {
		httpserver.WriteError(w, r, http.StatusBadRequest, "BAD_REQUEST", "user_id and media_id are required")
		return
	}

	var req sampleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CurrentTime == nil {
		h.log.Debug("invalid sample body", slog.Any("error", err))
		httpserver.WriteError(w, r, http.StatusBadRequest, "BAD_REQUEST", "current_time is required")
		return
	}

	sess, completed, err := h.svc.RecordSample(r.Context(), key, *req.CurrentTime)
	switch {
	case err == nil:
	case errors.Is(err, ErrEventNotPublished):
		h.log.Warn("completion event not published",
			slog.String("user_id", string(key.UserID)),
			slog.String("media_id", string(key.MediaID)),
			slog.String("error", err.Error()))
	case errors.Is(err, ErrInvalidSample):
		httpserver.WriteError(w, r, http.StatusBadRequest, "INVALID_SAMPLE", err.Error())
		return
	case errors.Is(err, ErrSessionNotFound):
		httpserver.WriteError(w, r, http.StatusNotFound, "NOT_FOUND", err.Error())
		return
	case errors.Is(err, ErrSessionEnded):
		h.log.Info("sample rejected session ended",
			slog.String("user_id", string(key.UserID)),
			slog.String("media_id", string(key.MediaID)),
			slog.Float64("current_time", *req.CurrentTime))
		httpserver.WriteError(w, r, http.StatusConflict, "SESSION_ENDED", err.Error())
		return
	default:
		h.log.Error("record sample failed", slog.String("error", err.Error()))
		httpserver.WriteError(w, r, http.StatusInternalServerError, "INTERNAL", "internal server error")
		return
	}

	h.log.Debug("sample recorded",
		slog.String("user_id", string(key.UserID)),
		slog.String("media_id", string(key.MediaID)),
		slog.Float64("current_time", *req.CurrentTime),
		slog.Int("percent_watched", sess.Progress.PercentWatched))
	if h.metrics != nil {
		h.metrics.IncSamplesRecorded()
	}
	if completed {
		h.log.Info("watch completed",
			slog.String("user_id", string(key.UserID)),
			slog.String("media_id", string(key.MediaID)),
			slog.Int("percent_watched", sess.Progress.PercentWatched))
		if h.metrics != nil {
			h.metrics.IncCompletions()
		}
	}
	httpserver.WriteJSON(w, http.StatusOK, newProgressResponse(sess))
}

// GetProgress handles GET /users/{user_id}/media/{media_id}/progress.
func (h *Handler) GetProgress(w http.ResponseWriter, r *http.Request) {
	key, ok := keyFromRequest(r)
	if !ok {
		httpserver.WriteError(w, r, http.StatusBadRequest, "BAD_REQUEST", "user_id and media_id are required")
		return
	}

	sess, found, err := h.svc.GetProgress(r.Context(), key)
	if err != nil {
		h.log.Error("get progress failed", slog.String("error", err.Error()))
		httpserver.WriteError(w, r, http.StatusInternalServerError, "INTERNAL", "internal server error")
		return
	}
	if !found {
		httpserver.WriteError(w, r, http.StatusNotFound, "NOT_FOUND", ErrSessionNotFound.Error())
		return
	}
	httpserver.WriteJSON(w, http.StatusOK, newProgressResponse(sess))
}

// EndSession handles POST /users/{user_id}/media/{media_id}/end.
func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request) {
	key, ok := keyFromRequest(r)
	if !ok {
		httpserver.WriteError(w, r, http.StatusBadRequest, "BAD_REQUEST", "user_id and media_id are required")
		return
	}

	if err := h.svc.EndSession(r.Context(), key); err != nil {
		h.log.Error("end session failed",
			slog.String("user_id", string(key.UserID)),
			slog.String("media_id", string(key.MediaID)),
			slog.String("error", err.Error()))
		httpserver.WriteError(w, r, http.StatusInternalServerError, "INTERNAL", "internal server error")
		return
	}

	h.log.Info("session ended",
		slog.String("user_id", string(key.UserID)),
		slog.String("media_id", string(key.MediaID)))
	w.WriteHeader(http.StatusOK)
	if h.metrics != nil {
		h.metrics.IncSessionsEnded()
	}
}
