package tracker

import (
	"errors"
	"sync"
	"time"

	"watch-progress/internal/watch"
)

// Repository defines the concurrency-safe contract for accessing and mutating watch sessions.
type Repository interface {
	// StartSession creates a fresh session for key, replacing any previous one.
	// A duration that is not positive marks the media as having unknown length.
	StartSession(key Key, duration float64) (*Session, error)

	// UpdateSession runs fn on the live session for key and persists the result.
	// Calls for the same repository are serialized, so fn is the only writer while it runs.
	// Returns ErrSessionNotFound or ErrSessionEnded without calling fn.
	UpdateSession(key Key, fn func(*Session) error) (*Session, error)

	// GetSession returns a snapshot of the session for key. ok is false if none exists.
	GetSession(key Key) (sess *Session, ok bool, err error)

	// EndSession marks the session as ended. After this, samples are rejected.
	EndSession(key Key) error

	// ActiveSessionCount returns the number of sessions that are not ended.
	// Used for metrics.
	ActiveSessionCount() (int, error)
}

var (
	// ErrSessionNotFound is returned when no session was started for a key.
	ErrSessionNotFound = errors.New("watch session not found")

	// ErrSessionEnded is returned when recording a sample on a session that has ended.
	ErrSessionEnded = errors.New("watch session has ended")
)

// StoreRepository is a concurrency-safe Repository on top of a Store.
type StoreRepository struct {
	mu    sync.RWMutex
	store Store
	now   func() time.Time
}

// NewInMemoryRepository constructs a new repository with a default in-memory store.
func NewInMemoryRepository() *StoreRepository {
	return NewRepositoryWithStore(NewInMemoryStore())
}

// NewRepositoryWithStore constructs a repository that uses the given Store.
func NewRepositoryWithStore(store Store) *StoreRepository {
	return &StoreRepository{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// StartSession implements Repository.StartSession.
func (r *StoreRepository) StartSession(key Key, duration float64) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	sess := &Session{
		Key:       key,
		Progress:  watch.NewProgress(duration),
		StartedAt: now,
		UpdatedAt: now,
	}
	if err := r.store.SetSession(sess); err != nil {
		return nil, err
	}
	return sess.Clone(), nil
}

// UpdateSession implements Repository.UpdateSession.
func (r *StoreRepository) UpdateSession(key Key, fn func(*Session) error) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok, err := r.store.GetSession(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSessionNotFound
	}
	if sess.Ended {
		return nil, ErrSessionEnded
	}

	if err := fn(sess); err != nil {
		return nil, err
	}
	sess.UpdatedAt = r.now()
	if err := r.store.SetSession(sess); err != nil {
		return nil, err
	}
	return sess.Clone(), nil
}

// GetSession implements Repository.GetSession.
func (r *StoreRepository) GetSession(key Key) (*Session, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok, err := r.store.GetSession(key)
	if err != nil || !ok {
		return nil, false, err
	}
	return sess.Clone(), true, nil
}

// EndSession implements Repository.EndSession.
func (r *StoreRepository) EndSession(key Key) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok, err := r.store.GetSession(key)
	if err != nil {
		return err
	}
	if !ok || sess.Ended {
		// Ending a missing or already ended session is a no-op for idempotency.
		return nil
	}

	sess.Ended = true
	sess.UpdatedAt = r.now()
	return r.store.SetSession(sess)
}

// ActiveSessionCount implements Repository.ActiveSessionCount.
func (r *StoreRepository) ActiveSessionCount() (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys, err := r.store.ListKeys()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, k := range keys {
		sess, ok, err := r.store.GetSession(k)
		if err != nil {
			return 0, err
		}
		if ok && !sess.Ended {
			n++
		}
	}
	return n, nil
}
