package session

import (
	"sync"
	"time"

	"lookbook-studio/internal/lookbook"
)

type Options struct {
	// New builds a fresh session for a key seen for the first time.
	New func() *lookbook.Session
	// TTL is how long an idle session is kept by Sweep.
	TTL time.Duration
}

// Store maps a user key (Telegram chat, web cookie) to its lookbook session.
type Store[K comparable] struct {
	mu       sync.Mutex
	sessions map[K]*lookbook.Session
	newFn    func() *lookbook.Session
	ttl      time.Duration
}

func NewStore[K comparable](opts Options) *Store[K] {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}

	newFn := opts.New
	if newFn == nil {
		newFn = func() *lookbook.Session { return lookbook.NewSession(lookbook.Options{}) }
	}

	return &Store[K]{
		sessions: make(map[K]*lookbook.Session),
		newFn:    newFn,
		ttl:      ttl,
	}
}

func (s *Store[K]) Get(key K) *lookbook.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[key]; ok {
		return sess
	}
	sess := s.newFn()
	s.sessions[key] = sess
	return sess
}

// Lookup returns the session only if it already exists.
func (s *Store[K]) Lookup(key K) (*lookbook.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[key]
	return sess, ok
}

// Reset drops the session unless a run is in flight. It reports whether the
// session was dropped.
func (s *Store[K]) Reset(key K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[key]
	if !ok {
		return true
	}
	if !sess.Retire() {
		return false
	}
	delete(s.sessions, key)
	return true
}

// Sweep removes idle sessions older than the TTL and returns how many went.
func (s *Store[K]) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, sess := range s.sessions {
		if now.Sub(sess.LastActivity()) <= s.ttl {
			continue
		}
		if sess.Retire() {
			delete(s.sessions, key)
			removed++
		}
	}
	return removed
}

func (s *Store[K]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
