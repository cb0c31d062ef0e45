package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"watch-progress/internal/platform/events"
	"watch-progress/internal/watch"

	"github.com/google/uuid"
)

// DefaultCompletionPercent is the percent watched that earns completion credit.
const DefaultCompletionPercent = 100

var (
	// ErrInvalidSample is returned for playback positions that are negative or not finite.
	ErrInvalidSample = errors.New("invalid playback position")

	// ErrEventNotPublished is returned alongside a valid result when the completion was
	// recorded but the completion event could not be published.
	ErrEventNotPublished = errors.New("completion event not published")
)

// EventPublisher publishes domain events. *events.Publisher satisfies it.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, evt events.Event) error
}

// CompletedEvent is the payload of a watch.completed event.
type CompletedEvent struct {
	UserID         string    `json:"user_id"`
	MediaID        string    `json:"media_id"`
	PercentWatched int       `json:"percent_watched"`
	TotalWatchTime float64   `json:"total_watch_time"`
	CompletedAt    time.Time `json:"completed_at"`
}

// Service applies playback samples to sessions and gates completion credit.
type Service struct {
	repo              Repository
	publisher         EventPublisher
	completionPercent int
}

// NewService returns a Service that stores sessions in repo and marks a session completed once
// it reaches completionPercent. If completionPercent is outside 1..100, DefaultCompletionPercent is
// used. publisher may be nil to disable completion events.
func NewService(repo Repository, completionPercent int, publisher EventPublisher) *Service {
	if completionPercent <= 0 || completionPercent > 100 {
		completionPercent = DefaultCompletionPercent
	}
	return &Service{repo: repo, publisher: publisher, completionPercent: completionPercent}
}

// StartSession begins a new viewing session for key.
func (s *Service) StartSession(_ context.Context, key Key, duration float64) (*Session, error) {
	return s.repo.StartSession(key, duration)
}

// RecordSample folds one playback position into the session for key.
// completed is true only for the sample that first crossed the completion threshold.
func (s *Service) RecordSample(ctx context.Context, key Key, currentTime float64) (sess *Session, completed bool, err error) {
	if currentTime < 0 || math.IsNaN(currentTime) || math.IsInf(currentTime, 0) {
		return nil, false, ErrInvalidSample
	}

	sess, err = s.repo.UpdateSession(key, func(live *Session) error {
		watch.UpdateProgress(live.Progress, currentTime)
		if !live.Completed && s.reachedCompletion(live.Progress) {
			live.Completed = true
			live.CompletedAt = time.Now().UTC()
			completed = true
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if completed {
		if err := s.publishCompleted(ctx, sess); err != nil {
			return sess, true, fmt.Errorf("%w: %v", ErrEventNotPublished, err)
		}
	}
	return sess, completed, nil
}

// GetProgress returns a snapshot of the session for key.
func (s *Service) GetProgress(_ context.Context, key Key) (*Session, bool, error) {
	return s.repo.GetSession(key)
}

// EndSession marks the session as ended; later samples are rejected.
func (s *Service) EndSession(_ context.Context, key Key) error {
	return s.repo.EndSession(key)
}

// reachedCompletion reports whether p qualifies for completion credit.
// Media of unknown length never does.
func (s *Service) reachedCompletion(p *watch.Progress) bool {
	if math.IsInf(p.VideoDuration, 1) {
		return false
	}
	return p.PercentWatched >= s.completionPercent
}

func (s *Service) publishCompleted(ctx context.Context, sess *Session) error {
	if s.publisher == nil {
		return nil
	}
	data, err := json.Marshal(CompletedEvent{
		UserID:         string(sess.Key.UserID),
		MediaID:        string(sess.Key.MediaID),
		PercentWatched: sess.Progress.PercentWatched,
		TotalWatchTime: sess.Progress.TotalWatchTime,
		CompletedAt:    sess.CompletedAt,
	})
	if err != nil {
		return err
	}
	return s.publisher.Publish(ctx, events.SubjectWatchCompleted, events.Event{
		EventID:   uuid.NewString(),
		EventType: events.SubjectWatchCompleted,
		Data:      data,
	})
}
