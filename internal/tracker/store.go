package tracker

// Store is the persistence abstraction for watch sessions.
// The Repository serializes all access; implementations need not be safe for concurrent use.
// Sessions returned by GetSession may be mutated by the caller and written back with SetSession.
type Store interface {
	GetSession(key Key) (*Session, bool, error)
	SetSession(s *Session) error
	ListKeys() ([]Key, error)
}

// InMemoryStore is an in-memory implementation of Store.
type InMemoryStore struct {
	sessions map[Key]*Session
}

// NewInMemoryStore returns a new empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[Key]*Session),
	}
}

// GetSession implements Store.GetSession.
func (s *InMemoryStore) GetSession(key Key) (*Session, bool, error) {
	sess, ok := s.sessions[key]
	return sess, ok, nil
}

// SetSession implements Store.SetSession.
func (s *InMemoryStore) SetSession(sess *Session) error {
	s.sessions[sess.Key] = sess
	return nil
}

// ListKeys implements Store.ListKeys.
func (s *InMemoryStore) ListKeys() ([]Key, error) {
	keys := make([]Key, 0, len(s.sessions))
	for k := range s.sessions {
		keys = append(keys, k)
	}
	return keys, nil
}
