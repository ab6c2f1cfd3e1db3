package service

import (
	"context"
	"testing"
	"time"

	"github.com/skyfold/console/internal/identity/domain"
	"github.com/skyfold/console/internal/identity/keystone"
	"github.com/skyfold/console/internal/identity/session"
	"github.com/stretchr/testify/require"
)

// fakeBackend scripts the identity backend for auth tests.
type fakeBackend struct {
	result    keystone.AuthResult
	lastUser  string
	lastPass  string
	lastScope keystone.Scope
	calls     int
}

func (f *fakeBackend) AuthenticateWithCredentials(
	_ context.Context,
	user, password string,
	scope keystone.Scope,
) keystone.AuthResult {
	f.calls++
	f.lastUser = user
	f.lastPass = password
	f.lastScope = scope
	return f.result
}

func successResult(value string, expiresAt time.Time, project *domain.ProjectRef) keystone.AuthResult {
	data := domain.Token{
		ExpiresAt: expiresAt.Format(time.RFC3339),
		IssuedAt:  time.Now().UTC().Format(time.RFC3339),
		User: domain.TokenUser{
			ID: "u1", Name: "alice",
			Domain: domain.Ref{ID: "ud1", Name: "staff"},
		},
		Project: project,
	}
	return keystone.AuthResult{Success: true, Token: value, TokenData: data}
}

func newAuthFixture(backend *fakeBackend, entries ...domain.FriendlyIDEntry) (*AuthService, *session.Session) {
	svc := &AuthService{
		Backend:  backend,
		Resolver: testResolver(entries...),
	}
	sess := session.NewStore(time.Hour).Create()
	return svc, sess
}

func TestLoginEndToEnd(t *testing.T) {
	t.Parallel()

	expiresAt := time.Now().Add(time.Hour).UTC()
	backend := &fakeBackend{
		result: successResult("tok1", expiresAt, &domain.ProjectRef{
			ID: "p1", Name: "Alpha", Domain: domain.Ref{ID: "abc123", Name: "ACME Corp"},
		}),
	}
	svc, sess := newAuthFixture(backend, acmeDomainEntry(), projectEntry("abc123"))

	target, err := svc.Login(context.Background(), sess, "alice", "hunter2", "acme", "alpha")
	require.NoError(t, err)
	require.Equal(t, "/acme/alpha/home", target)

	// The backend saw the resolved scope, domain before project.
	require.Equal(t, "alice", backend.lastUser)
	require.Equal(t, "hunter2", backend.lastPass)
	require.Equal(t, "abc123", backend.lastScope.DomainID)
	require.Equal(t, "p1", backend.lastScope.ProjectID)

	// Exactly one token landed in the store, findable by scope.
	tokens := session.NewTokenStore(sess)
	require.Equal(t, 1, tokens.Len())

	got, ok := tokens.FindByScope(domain.ByProjectID("p1"))
	require.True(t, ok)
	require.Equal(t, "tok1", got.Value)
	require.Equal(t, "tok1", sess.Auth().TokenValue)

	// Once the expiry passes the same lookup misses and the store is
	// empty again.
	later := session.NewTokenStoreAt(sess, func() time.Time {
		return expiresAt.Add(time.Minute)
	})
	_, ok = later.FindByScope(domain.ByProjectID("p1"))
	require.False(t, ok)
	require.Zero(t, later.Len())
}

func TestLoginReplacesSameScopeToken(t *testing.T) {
	t.Parallel()

	expiresAt := time.Now().Add(time.Hour).UTC()
	project := &domain.ProjectRef{ID: "p1", Name: "Alpha", Domain: domain.Ref{ID: "abc123"}}

	backend := &fakeBackend{result: successResult("tok1", expiresAt, project)}
	svc, sess := newAuthFixture(backend, acmeDomainEntry(), projectEntry("abc123"))

	_, err := svc.Login(context.Background(), sess, "alice", "hunter2", "acme", "alpha")
	require.NoError(t, err)

	// A re-login into the same scope replaces the old token instead of
	// accumulating next to it.
	backend.result = successResult("tok2", expiresAt, project)
	_, err = svc.Login(context.Background(), sess, "alice", "hunter2", "acme", "alpha")
	require.NoError(t, err)

	tokens := session.NewTokenStore(sess)
	require.Equal(t, 1, tokens.Len())
	got, ok := tokens.FindByScope(domain.ByProjectID("p1"))
	require.True(t, ok)
	require.Equal(t, "tok2", got.Value)
}

func TestLoginFailureLeavesSessionUntouched(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{result: keystone.AuthResult{
		Error: "Authentication failed: 401 - invalid credentials",
	}}
	svc, sess := newAuthFixture(backend, acmeDomainEntry())

	_, err := svc.Login(context.Background(), sess, "alice", "wrong", "acme", "")
	require.ErrorIs(t, err, ErrAuthenticationFailed)

	require.Zero(t, session.NewTokenStore(sess).Len())
	require.False(t, sess.Auth().Authenticated())
}

func TestLoginUnscopedLandsOnRoot(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{result: successResult("tok1", time.Now().Add(time.Hour), nil)}
	svc, sess := newAuthFixture(backend)

	target, err := svc.Login(context.Background(), sess, "alice", "hunter2", "", "")
	require.NoError(t, err)
	require.Equal(t, "/", target)
	require.True(t, backend.lastScope.Unscoped())
}

func TestRequireAuth(t *testing.T) {
	t.Parallel()

	t.Run("unauthenticated requests remember their URL", func(t *testing.T) {
		svc, sess := newAuthFixture(&fakeBackend{})

		_, err := svc.RequireAuth(sess, "/acme/alpha/instances?page=2")
		require.ErrorIs(t, err, ErrAuthenticationRequired)
		require.Equal(t, "/acme/alpha/instances?page=2", sess.Auth().AfterLoginURL)
	})

	t.Run("the login page itself is never remembered", func(t *testing.T) {
		svc, sess := newAuthFixture(&fakeBackend{})

		_, err := svc.RequireAuth(sess, DefaultLoginPath)
		require.ErrorIs(t, err, ErrAuthenticationRequired)
		require.Empty(t, sess.Auth().AfterLoginURL)
	})

	t.Run("valid token authenticates and consumes the pending URL", func(t *testing.T) {
		backend := &fakeBackend{result: successResult("tok1", time.Now().Add(time.Hour), nil)}
		svc, sess := newAuthFixture(backend)

		_, err := svc.RequireAuth(sess, "/wanted")
		require.ErrorIs(t, err, ErrAuthenticationRequired)

		target, err := svc.Login(context.Background(), sess, "alice", "hunter2", "", "")
		require.NoError(t, err)
		require.Equal(t, "/wanted", target, "login redirects to the remembered URL")

		token, err := svc.RequireAuth(sess, "/wanted")
		require.NoError(t, err)
		require.Equal(t, "tok1", token.Value)
		require.Empty(t, sess.Auth().AfterLoginURL)
	})

	t.Run("expired token forces a fresh login", func(t *testing.T) {
		backend := &fakeBackend{result: successResult("tok1", time.Now().Add(-time.Minute), nil)}
		svc, sess := newAuthFixture(backend)

		_, err := svc.Login(context.Background(), sess, "alice", "hunter2", "", "")
		require.NoError(t, err)

		_, err = svc.RequireAuth(sess, "/afterwards")
		require.ErrorIs(t, err, ErrAuthenticationRequired)
		require.False(t, sess.Auth().Authenticated())
		require.Equal(t, "/afterwards", sess.Auth().AfterLoginURL)
		require.Zero(t, session.NewTokenStore(sess).Len(), "expired token is evicted")
	})
}

func TestLogout(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{result: successResult("tok1", time.Now().Add(time.Hour), nil)}
	svc, sess := newAuthFixture(backend)

	_, err := svc.Login(context.Background(), sess, "alice", "hunter2", "", "")
	require.NoError(t, err)

	svc.Logout(sess)
	require.False(t, sess.Auth().Authenticated())
	require.Zero(t, session.NewTokenStore(sess).Len())
}

func TestLogoutUserDomain(t *testing.T) {
	t.Parallel()

	svc, sess := newAuthFixture(&fakeBackend{})
	tokens := session.NewTokenStore(sess)

	mine := domain.Token{
		Value:     "tok-mine",
		ExpiresAt: time.Now().Add(time.Hour).Format(time.RFC3339),
		User:      domain.TokenUser{ID: "u1", Domain: domain.Ref{ID: "ud1", Name: "staff"}},
	}
	theirs := domain.Token{
		Value:     "tok-theirs",
		ExpiresAt: time.Now().Add(time.Hour).Format(time.RFC3339),
		User:      domain.TokenUser{ID: "u2", Domain: domain.Ref{ID: "ud2", Name: "contractors"}},
	}
	tokens.SetToken(mine)
	tokens.SetToken(theirs)
	sess.SetAuth(domain.AuthSession{TokenValue: "tok-mine"})

	removed := svc.LogoutUserDomain(sess, "staff")
	require.Equal(t, 1, removed)

	// The auth reference pointed at a removed token, so it was cleared;
	// the other user domain's token is untouched.
	require.False(t, sess.Auth().Authenticated())
	_, ok := tokens.FindByValue("tok-theirs")
	require.True(t, ok)
}
