package service

import (
	"context"
	"net/url"
	"testing"

	"github.com/skyfold/console/internal/identity/domain"
	"github.com/stretchr/testify/require"
)

func testScopeService(entries ...domain.FriendlyIDEntry) *ScopeService {
	return &ScopeService{Resolver: testResolver(entries...)}
}

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func projectEntry(parent string) domain.FriendlyIDEntry {
	return domain.FriendlyIDEntry{
		Class: domain.ClassProject, Scope: parent,
		Key: "p1", Slug: "alpha", Name: "Alpha", Endpoint: testEndpoint,
	}
}

func TestDetermineCanonicalRedirect(t *testing.T) {
	t.Parallel()

	s := testScopeService(acmeDomainEntry())

	t.Run("raw id redirects to the slug", func(t *testing.T) {
		scope, err := s.Determine(context.Background(), "abc123", "", mustURL(t, "/abc123/home"))
		require.NoError(t, err)
		require.True(t, scope.MustRedirect)
		require.Equal(t, "/acme/home", scope.CanonicalPath)
	})

	t.Run("display name redirects to the slug", func(t *testing.T) {
		scope, err := s.Determine(context.Background(), "ACME Corp", "", mustURL(t, "/ACME Corp/home"))
		require.NoError(t, err)
		require.True(t, scope.MustRedirect)
		require.Equal(t, "/acme/home", scope.CanonicalPath)
	})

	t.Run("canonical slug does not redirect", func(t *testing.T) {
		scope, err := s.Determine(context.Background(), "acme", "", mustURL(t, "/acme/home"))
		require.NoError(t, err)
		require.False(t, scope.MustRedirect)
		require.Equal(t, domain.ResolvedScope{ID: "abc123", FID: "acme", Name: "ACME Corp"}, scope.Domain)
	})

	t.Run("query string is preserved", func(t *testing.T) {
		scope, err := s.Determine(context.Background(), "abc123", "",
			mustURL(t, "/abc123/home?page=2&sort=name"))
		require.NoError(t, err)
		require.Equal(t, "/acme/home?page=2&sort=name", scope.CanonicalPath)
	})
}

func TestDetermineProjectRedirect(t *testing.T) {
	t.Parallel()

	s := testScopeService(acmeDomainEntry(), projectEntry("abc123"))

	t.Run("project id redirects within a canonical domain", func(t *testing.T) {
		scope, err := s.Determine(context.Background(), "acme", "p1", mustURL(t, "/acme/p1/instances"))
		require.NoError(t, err)
		require.True(t, scope.MustRedirect)
		require.Equal(t, "/acme/alpha/instances", scope.CanonicalPath)
	})

	t.Run("both identifiers rewritten at once", func(t *testing.T) {
		scope, err := s.Determine(context.Background(), "abc123", "p1", mustURL(t, "/abc123/p1/instances"))
		require.NoError(t, err)
		require.True(t, scope.MustRedirect)
		require.Equal(t, "/acme/alpha/instances", scope.CanonicalPath)
	})

	t.Run("fully canonical path passes through", func(t *testing.T) {
		scope, err := s.Determine(context.Background(), "acme", "alpha", mustURL(t, "/acme/alpha/instances"))
		require.NoError(t, err)
		require.False(t, scope.MustRedirect)
		require.Equal(t, "p1", scope.Project.ID)
	})
}

func TestDetermineProjectUsesDomainScope(t *testing.T) {
	t.Parallel()

	// Same slug under two domains; resolution must pick the one owned by
	// the resolved domain.
	s := testScopeService(
		acmeDomainEntry(),
		domain.FriendlyIDEntry{
			Class: domain.ClassDomain, Key: "def456", Slug: "umbrella",
			Name: "Umbrella", Endpoint: testEndpoint,
		},
		projectEntry("abc123"),
		domain.FriendlyIDEntry{
			Class: domain.ClassProject, Scope: "def456",
			Key: "p9", Slug: "alpha", Name: "Alpha", Endpoint: testEndpoint,
		},
	)

	scope, err := s.Determine(context.Background(), "umbrella", "alpha", mustURL(t, "/umbrella/alpha"))
	require.NoError(t, err)
	require.Equal(t, "p9", scope.Project.ID)
}

func TestDetermineDomainNotFound(t *testing.T) {
	t.Parallel()

	s := testScopeService()

	// A non-id-shaped identifier with no cache entry resolves to a bare
	// name: no canonical id, so the request must fail loudly.
	_, err := s.Determine(context.Background(), "nowhere", "", mustURL(t, "/nowhere/home"))
	require.ErrorIs(t, err, ErrDomainNotFound)

	// An id-shaped identifier is trusted as-is even when uncached.
	scope, err := s.Determine(context.Background(),
		"0123456789abcdef0123456789abcdef", "",
		mustURL(t, "/0123456789abcdef0123456789abcdef/home"))
	require.NoError(t, err)
	require.False(t, scope.MustRedirect)
	require.Equal(t, "0123456789abcdef0123456789abcdef", scope.Domain.ID)
}

func TestDetermineNoIdentifiers(t *testing.T) {
	t.Parallel()

	s := testScopeService()
	scope, err := s.Determine(context.Background(), "", "", mustURL(t, "/"))
	require.NoError(t, err)
	require.False(t, scope.MustRedirect)
	require.True(t, scope.Domain.IsZero())
	require.True(t, scope.Project.IsZero())
}
