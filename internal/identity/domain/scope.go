package domain

// ObjectClass identifies which kind of backend record a friendly-id mapping
// or resolution refers to.
type ObjectClass string

const (
	ClassDomain  ObjectClass = "domain"
	ClassProject ObjectClass = "project"
)

// FriendlyIDEntry is a cached mapping between a canonical backend identifier
// and its human-friendly slug and display name. Entries are written by the
// cache populator; the resolver only ever reads them.
//
// (Class, Endpoint, Key) is unique. Scope holds the parent domain id and is
// only set for project entries.
type FriendlyIDEntry struct {
	Class    ObjectClass
	Scope    string
	Key      string
	Slug     string
	Name     string
	Endpoint string
}

// ResolvedScope is the per-request resolution result for one identifier.
// ID is the canonical backend identifier, FID the slug that should appear in
// URLs and Name the display name. Any of the three may be empty depending on
// how much the resolver could determine.
type ResolvedScope struct {
	ID   string `json:"id,omitempty"`
	FID  string `json:"fid,omitempty"`
	Name string `json:"name,omitempty"`
}

// IsZero reports whether nothing at all was resolved.
func (s ResolvedScope) IsZero() bool {
	return s.ID == "" && s.FID == "" && s.Name == ""
}

// URLFragment returns the identifier that belongs in a canonical URL: the
// friendly id when one is known, otherwise the raw backend id.
func (s ResolvedScope) URLFragment() string {
	if s.FID != "" {
		return s.FID
	}
	return s.ID
}

// RequestScope is the outcome of scope determination for one request.
// When MustRedirect is set, CanonicalPath carries the path (including query)
// the request should be permanently redirected to.
type RequestScope struct {
	Domain        ResolvedScope `json:"domain"`
	Project       ResolvedScope `json:"project"`
	MustRedirect  bool          `json:"-"`
	CanonicalPath string        `json:"-"`
}

// ScopeKind enumerates the forms a token scope query can take. Modelling the
// query as a tagged value keeps scope matching exhaustive instead of relying
// on which map keys happen to be present.
type ScopeKind int

const (
	ScopeUnscoped ScopeKind = iota
	ScopeDomainID
	ScopeDomainName
	ScopeProjectID
	ScopeDomainProjectNames
	ScopeDomainProjectIDs
)

// ScopeQuery selects tokens by their domain/project scope.
type ScopeQuery struct {
	Kind        ScopeKind
	DomainID    string
	DomainName  string
	ProjectID   string
	ProjectName string
}

func Unscoped() ScopeQuery { return ScopeQuery{Kind: ScopeUnscoped} }

func ByDomainID(id string) ScopeQuery {
	return ScopeQuery{Kind: ScopeDomainID, DomainID: id}
}

func ByDomainName(name string) ScopeQuery {
	return ScopeQuery{Kind: ScopeDomainName, DomainName: name}
}

func ByProjectID(id string) ScopeQuery {
	return ScopeQuery{Kind: ScopeProjectID, ProjectID: id}
}

func ByProjectNames(domainName, projectName string) ScopeQuery {
	return ScopeQuery{Kind: ScopeDomainProjectNames, DomainName: domainName, ProjectName: projectName}
}

func ByProjectIDs(domainID, projectID string) ScopeQuery {
	return ScopeQuery{Kind: ScopeDomainProjectIDs, DomainID: domainID, ProjectID: projectID}
}
