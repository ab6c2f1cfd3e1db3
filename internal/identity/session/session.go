// Package session implements the per-browser-session state this service
// owns: a string-keyed JSON blob, the in-process store holding one blob per
// session, and the scope-aware token cache living inside each blob.
package session

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/skyfold/console/internal/identity/domain"
	"github.com/skyfold/console/pkg/idx"
)

// Well-known keys inside the session blob.
const (
	KeyTokens = "tokens"
	KeyAuth   = "auth"
)

// Session is one browser session's state blob. Values are JSON-encoded so
// the blob round-trips through any session backend that stores strings.
//
// A session belongs to exactly one browser; concurrent requests from the
// same browser (parallel XHR) race with last-write-wins semantics, so each
// Get/Put is made atomic with a mutex but no operation spans two calls.
type Session struct {
	ID idx.ID

	mu       sync.Mutex
	values   map[string]json.RawMessage
	lastSeen time.Time
}

func newSession(id idx.ID, now time.Time) *Session {
	return &Session{
		ID:       id,
		values:   make(map[string]json.RawMessage),
		lastSeen: now,
	}
}

// Get unmarshals the value under key into v. Returns false when the key is
// absent or holds something that does not decode into v.
func (s *Session) Get(key string, v any) bool {
	s.mu.Lock()
	raw, ok := s.values[key]
	s.mu.Unlock()

	if !ok {
		return false
	}
	return json.Unmarshal(raw, v) == nil
}

// Put marshals v under key, replacing any previous value.
func (s *Session) Put(key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		// Session values are plain structs and maps; a marshal failure
		// is a programming error.
		panic("session: unmarshalable value for key " + key)
	}

	s.mu.Lock()
	s.values[key] = raw
	s.mu.Unlock()
}

// Delete removes key from the blob.
func (s *Session) Delete(key string) {
	s.mu.Lock()
	delete(s.values, key)
	s.mu.Unlock()
}

// Auth returns the session's authentication record, zero when absent.
func (s *Session) Auth() domain.AuthSession {
	var a domain.AuthSession
	s.Get(KeyAuth, &a)
	return a
}

// SetAuth replaces the session's authentication record.
func (s *Session) SetAuth(a domain.AuthSession) {
	s.Put(KeyAuth, a)
}

// touch bumps the idle timer.
func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Store holds every live session in process memory. Sessions disappear when
// deleted explicitly (logout) or when the housekeeping sweep finds them idle
// past the TTL.
type Store struct {
	mu       sync.Mutex
	sessions map[idx.ID]*Session
	ttl      time.Duration
	now      func() time.Time
}

// NewStore creates a session store with the given idle TTL. A zero or
// negative ttl defaults to 8 hours.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	return &Store{
		sessions: make(map[idx.ID]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Create allocates a fresh, empty session.
func (st *Store) Create() *Session {
	sess := newSession(idx.New(), st.now())

	st.mu.Lock()
	st.sessions[sess.ID] = sess
	st.mu.Unlock()

	return sess
}

// Get returns the session for id, bumping its idle timer. Sessions idle past
// the TTL are dropped and reported as absent.
func (st *Store) Get(id idx.ID) (*Session, bool) {
	st.mu.Lock()
	sess, ok := st.sessions[id]
	st.mu.Unlock()

	if !ok {
		return nil, false
	}

	now := st.now()
	if now.Sub(sess.idleSince()) > st.ttl {
		st.Delete(id)
		return nil, false
	}

	sess.touch(now)
	return sess, true
}

// Delete removes the session for id, if any.
func (st *Store) Delete(id idx.ID) {
	st.mu.Lock()
	delete(st.sessions, id)
	st.mu.Unlock()
}

// Len reports the number of live sessions.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// Sweep drops sessions idle past the TTL, prunes expired tokens out of the
// surviving ones, and returns how many sessions were removed. Called
// periodically by the housekeeping service.
func (st *Store) Sweep() int {
	now := st.now()

	st.mu.Lock()
	defer st.mu.Unlock()

	removed := 0
	for id, sess := range st.sessions {
		if now.Sub(sess.idleSince()) > st.ttl {
			delete(st.sessions, id)
			removed++
			continue
		}
		NewTokenStoreAt(sess, st.now).EvictExpired()
	}
	return removed
}
