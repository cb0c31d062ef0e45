package tracker

import (
	"time"

	"watch-progress/internal/watch"
)

// UserID identifies a learner.
type UserID string

// MediaID identifies a video or audio item attached to a skill.
type MediaID string

// Key addresses the single progress record kept per user and media item.
type Key struct {
	UserID  UserID
	MediaID MediaID
}

// Session is one viewing session of a media item by a user.
type Session struct {
	Key      Key
	Progress *watch.Progress

	Ended       bool
	Completed   bool
	StartedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt time.Time // zero until Completed
}

// Clone returns a deep copy so callers never share state with the store.
func (s *Session) Clone() *Session {
	c := *s
	if s.Progress != nil {
		c.Progress = s.Progress.Clone()
	}
	return &c
}
