package session

import (
	"sort"
	"time"

	"github.com/skyfold/console/internal/identity/domain"
)

// TokenStore is the session-scoped token cache. It lives under the "tokens"
// key of one session blob as a map keyed by token value, and every operation
// is a full read-modify-write of that sub-map.
//
// Expiry is enforced lazily: a lookup that lands on an expired token evicts
// it and reports a miss. Nothing here refreshes tokens in place; a refreshed
// token arrives as a new value via SetToken.
type TokenStore struct {
	sess *Session
	now  func() time.Time
}

func NewTokenStore(sess *Session) *TokenStore {
	return &TokenStore{sess: sess, now: time.Now}
}

// NewTokenStoreAt is NewTokenStore with an injected clock, for tests and for
// callers that need a consistent "now" across several operations.
func NewTokenStoreAt(sess *Session, now func() time.Time) *TokenStore {
	return &TokenStore{sess: sess, now: now}
}

func (ts *TokenStore) load() map[string]domain.Token {
	m := make(map[string]domain.Token)
	ts.sess.Get(KeyTokens, &m)
	return m
}

func (ts *TokenStore) save(m map[string]domain.Token) {
	ts.sess.Put(KeyTokens, m)
}

// ordered returns the stored tokens in a stable order: oldest issuance
// first, token value as tie-break. The original kept hash insertion order,
// which a serialised JSON map cannot guarantee, so issuance order stands in
// for it deterministically.
func ordered(m map[string]domain.Token) []domain.Token {
	out := make([]domain.Token, 0, len(m))
	for _, t := range m {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IssuedAt != out[j].IssuedAt {
			return out[i].IssuedAt < out[j].IssuedAt
		}
		return out[i].Value < out[j].Value
	})
	return out
}

// SetToken stores t keyed by its value. When a token with the same value
// already exists the stored one is returned unchanged; the call is
// idempotent on value only. Tokens of the same scope but different value
// deliberately coexist; scope-based eviction is the caller's decision.
func (ts *TokenStore) SetToken(t domain.Token) domain.Token {
	m := ts.load()
	if existing, ok := m[t.Value]; ok {
		return existing
	}
	m[t.Value] = t
	ts.save(m)
	return t
}

// FindByValue returns the stored token with the given value. An expired
// match is evicted and reported as a miss.
func (ts *TokenStore) FindByValue(value string) (domain.Token, bool) {
	m := ts.load()
	t, ok := m[value]
	if !ok {
		return domain.Token{}, false
	}
	if !t.Valid(ts.now()) {
		delete(m, value)
		ts.save(m)
		return domain.Token{}, false
	}
	return t, true
}

// FindByScope returns the first stored token matching q, skipping and
// evicting expired matches along the way.
func (ts *TokenStore) FindByScope(q domain.ScopeQuery) (domain.Token, bool) {
	m := ts.load()
	now := ts.now()
	evicted := false

	for _, t := range ordered(m) {
		if !matchesScope(t, q) {
			continue
		}
		if !t.Valid(now) {
			delete(m, t.Value)
			evicted = true
			continue
		}
		if evicted {
			ts.save(m)
		}
		return t, true
	}

	if evicted {
		ts.save(m)
	}
	return domain.Token{}, false
}

// matchesScope is an exhaustive match over the scope query forms. Domain
// criteria match only domain-scoped tokens; a project token's owning domain
// does not satisfy them.
func matchesScope(t domain.Token, q domain.ScopeQuery) bool {
	switch q.Kind {
	case domain.ScopeUnscoped:
		return t.Domain == nil && t.Project == nil
	case domain.ScopeDomainID:
		return t.Domain != nil && t.Domain.ID == q.DomainID
	case domain.ScopeDomainName:
		return t.Domain != nil && t.Domain.Name == q.DomainName
	case domain.ScopeProjectID:
		return t.Project != nil && t.Project.ID == q.ProjectID
	case domain.ScopeDomainProjectNames:
		return t.Project != nil &&
			t.Project.Name == q.ProjectName &&
			t.Project.Domain.Name == q.DomainName
	case domain.ScopeDomainProjectIDs:
		return t.Project != nil &&
			t.Project.ID == q.ProjectID &&
			t.Project.Domain.ID == q.DomainID
	default:
		return false
	}
}

// FindAllByUserDomain returns every stored token issued to a user whose home
// domain has the given id or name, regardless of the token's own scope.
// Expired tokens are included; the point of this lookup is bulk
// invalidation, not use.
func (ts *TokenStore) FindAllByUserDomain(idOrName string) []domain.Token {
	var out []domain.Token
	for _, t := range ordered(ts.load()) {
		if t.MatchesUserDomain(idOrName) {
			out = append(out, t)
		}
	}
	return out
}

// DeleteAllByUserDomain removes every token matching the FindAllByUserDomain
// predicate and returns how many were removed. Tokens belonging to other
// user domains are untouched.
func (ts *TokenStore) DeleteAllByUserDomain(idOrName string) int {
	m := ts.load()
	removed := 0
	for value, t := range m {
		if t.MatchesUserDomain(idOrName) {
			delete(m, value)
			removed++
		}
	}
	if removed > 0 {
		ts.save(m)
	}
	return removed
}

// EvictExpired drops every expired token and reports how many were removed.
// Lookups already evict lazily; this exists for the housekeeping sweep so
// long-lived sessions don't carry dead tokens indefinitely.
func (ts *TokenStore) EvictExpired() int {
	m := ts.load()
	now := ts.now()
	removed := 0
	for value, t := range m {
		if !t.Valid(now) {
			delete(m, value)
			removed++
		}
	}
	if removed > 0 {
		ts.save(m)
	}
	return removed
}

// DeleteToken removes the token with t's value, if present.
func (ts *TokenStore) DeleteToken(t domain.Token) {
	m := ts.load()
	if _, ok := m[t.Value]; !ok {
		return
	}
	delete(m, t.Value)
	ts.save(m)
}

// DeleteAllTokens clears the cache entirely.
func (ts *TokenStore) DeleteAllTokens() {
	ts.sess.Delete(KeyTokens)
}

// Len reports how many tokens are currently stored, expired ones included.
func (ts *TokenStore) Len() int {
	return len(ts.load())
}
