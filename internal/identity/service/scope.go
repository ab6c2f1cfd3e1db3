package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/skyfold/console/internal/identity/domain"
)

// ErrDomainNotFound reports that domain resolution produced no canonical id
// at all. The web layer renders this as a domain-does-not-exist page; it is
// never downgraded to an unscoped request.
var ErrDomainNotFound = errors.New("domain_not_found")

// ScopeService is the per-request entry point for scope determination. It
// resolves the URL's domain and project identifiers and decides whether the
// request needs a permanent redirect to its canonical form.
type ScopeService struct {
	Resolver *Resolver
}

// Determine resolves domainParam and projectParam for a request to reqURL.
// Domain resolution happens first; the resolved domain id then scopes the
// project lookup. When either literal identifier differs from its resolved
// friendly id the result asks for a 301 to the canonical path, with all
// other path segments and the query string preserved.
func (s *ScopeService) Determine(
	ctx context.Context,
	domainParam, projectParam string,
	reqURL *url.URL,
) (domain.RequestScope, error) {
	dom, err := s.Resolver.Resolve(ctx, domain.ClassDomain, domainParam, "")
	if err != nil {
		return domain.RequestScope{}, err
	}
	if domainParam != "" && dom.ID == "" {
		return domain.RequestScope{}, fmt.Errorf("%w: %q", ErrDomainNotFound, domainParam)
	}

	proj, err := s.Resolver.Resolve(ctx, domain.ClassProject, projectParam, dom.ID)
	if err != nil {
		return domain.RequestScope{}, err
	}

	scope := domain.RequestScope{Domain: dom, Project: proj}

	domainStale := domainParam != "" && dom.FID != "" && dom.FID != domainParam
	projectStale := projectParam != "" && proj.FID != "" && proj.FID != projectParam
	if domainStale || projectStale {
		scope.MustRedirect = true
		scope.CanonicalPath = canonicalPath(reqURL, domainParam, dom.FID, projectParam, proj.FID)
	}

	return scope, nil
}

// canonicalPath rebuilds the request path with friendly ids substituted for
// the literal identifiers. The domain occupies the first matching segment,
// the project the first matching segment after it; everything else,
// including the query string, is preserved as-is.
func canonicalPath(reqURL *url.URL, domainParam, domainFID, projectParam, projectFID string) string {
	segments := strings.Split(reqURL.Path, "/")

	next := 0
	if domainParam != "" {
		for i, seg := range segments {
			if seg == domainParam {
				if domainFID != "" {
					segments[i] = url.PathEscape(domainFID)
				}
				next = i + 1
				break
			}
		}
	}
	if projectParam != "" && projectFID != "" {
		for i := next; i < len(segments); i++ {
			if segments[i] == projectParam {
				segments[i] = url.PathEscape(projectFID)
				break
			}
		}
	}

	path := strings.Join(segments, "/")
	if reqURL.RawQuery != "" {
		path += "?" + reqURL.RawQuery
	}
	return path
}
