package store

import (
	"context"
	"sync"
	"time"
)

// DefaultSessionTTL is how long an idle in-memory session is kept.
const DefaultSessionTTL = 2 * time.Hour

type memSession struct {
	conv     *Conversation
	lastUsed time.Time
}

// MemorySessionStore is an ephemeral SessionStore. Idle sessions are evicted
// after the TTL by a background goroutine that exits on Close.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]*memSession
	window   int
	ttl      time.Duration
	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewMemorySessionStore returns a store keeping window turns per session.
// A non-positive ttl selects DefaultSessionTTL.
func NewMemorySessionStore(window int, ttl time.Duration) *MemorySessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	s := &MemorySessionStore{
		sessions: make(map[string]*memSession),
		window:   window,
		ttl:      ttl,
		stopCh:   make(chan struct{}),
	}
	go s.evictLoop()
	return s
}

// Append implements SessionStore.
func (s *MemorySessionStore) Append(_ context.Context, session string, turns ...Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[session]
	if !ok {
		sess = &memSession{conv: NewConversation(s.window)}
		s.sessions[session] = sess
	}
	for _, t := range turns {
		sess.conv.Append(t)
	}
	sess.lastUsed = time.Now()
	return nil
}

// Window implements SessionStore.
func (s *MemorySessionStore) Window(_ context.Context, session string) ([]Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[session]
	if !ok {
		return nil, nil
	}
	sess.lastUsed = time.Now()
	return sess.conv.Window(), nil
}

// Clear implements SessionStore.
func (s *MemorySessionStore) Clear(_ context.Context, session string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, session)
	return nil
}

// Len returns the number of live sessions.
func (s *MemorySessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close stops the eviction goroutine.
func (s *MemorySessionStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	return nil
}

// evictLoop drops idle sessions once per TTL/4, at most once a minute.
func (s *MemorySessionStore) evictLoop() {
	every := s.ttl / 4
	if every > time.Minute {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.evict(time.Now())
		}
	}
}

func (s *MemorySessionStore) evict(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-s.ttl)
	for id, sess := range s.sessions {
		if sess.lastUsed.Before(cutoff) {
			delete(s.sessions, id)
		}
	}
}
