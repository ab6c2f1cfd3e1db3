package domain

import "time"

// Ref is a minimal id/name reference to a backend domain.
type Ref struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// ProjectRef references a project together with its owning domain.
type ProjectRef struct {
	ID     string `json:"id,omitempty"`
	Name   string `json:"name,omitempty"`
	Domain Ref    `json:"domain"`
}

// TokenUser is the identity the token was issued to. Domain here is the
// user's home domain, independent of what the token itself is scoped to.
type TokenUser struct {
	ID     string `json:"id,omitempty"`
	Name   string `json:"name,omitempty"`
	Domain Ref    `json:"domain"`
}

// Token is a bearer credential issued by the identity backend. A token is
// domain-scoped (Domain set), project-scoped (Project set) or unscoped
// (neither). Tokens are immutable once stored; a refresh produces a new
// value, never a mutation.
//
// ExpiresAt and IssuedAt are kept as the backend's RFC3339 strings so that an
// unparsable expiry stays visible and fails closed in Valid.
type Token struct {
	Value     string      `json:"value"`
	ExpiresAt string      `json:"expires_at,omitempty"`
	IssuedAt  string      `json:"issued_at,omitempty"`
	User      TokenUser   `json:"user"`
	Domain    *Ref        `json:"domain,omitempty"`
	Project   *ProjectRef `json:"project,omitempty"`
}

// Valid reports whether the token expires strictly after now. A missing or
// malformed expiry makes the token invalid.
func (t Token) Valid(now time.Time) bool {
	if t.ExpiresAt == "" {
		return false
	}
	exp, err := time.Parse(time.RFC3339, t.ExpiresAt)
	if err != nil {
		return false
	}
	return exp.After(now)
}

// ScopeQuery returns the query matching exactly this token's own scope.
func (t Token) ScopeQuery() ScopeQuery {
	switch {
	case t.Project != nil:
		return ByProjectIDs(t.Project.Domain.ID, t.Project.ID)
	case t.Domain != nil:
		return ByDomainID(t.Domain.ID)
	default:
		return Unscoped()
	}
}

// MatchesUserDomain reports whether the token was issued to a user whose home
// domain has the given id or name.
func (t Token) MatchesUserDomain(idOrName string) bool {
	if idOrName == "" {
		return false
	}
	return t.User.Domain.ID == idOrName || t.User.Domain.Name == idOrName
}
