package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/skyfold/console/internal/identity/domain"
	"github.com/skyfold/console/internal/identity/keystone"
	"github.com/skyfold/console/internal/identity/session"
	"github.com/skyfold/console/pkg/cryptox"
	"github.com/skyfold/console/pkg/slogx"
)

var (
	// ErrAuthenticationRequired means the session has no usable token and
	// the caller should send the user through the login flow.
	ErrAuthenticationRequired = errors.New("authentication_required")

	// ErrAuthenticationFailed means the backend rejected the credentials
	// (or the exchange failed in transit). The login form is re-rendered
	// with the message; nothing in the session changed.
	ErrAuthenticationFailed = errors.New("authentication_failed")
)

// DefaultLoginPath is where unauthenticated requests are pointed at unless
// the config overrides it.
const DefaultLoginPath = "/auth/login"

// AuthBackend is the credential exchange contract the auth service depends
// on. *keystone.Client satisfies it.
type AuthBackend interface {
	AuthenticateWithCredentials(ctx context.Context, user, password string, scope keystone.Scope) keystone.AuthResult
}

// AuthService orchestrates the session authentication lifecycle: checking a
// request's token, running the login exchange, and tearing sessions down.
type AuthService struct {
	Backend   AuthBackend
	Resolver  *Resolver
	LoginPath string
}

func (s *AuthService) loginPath() string {
	if s.LoginPath != "" {
		return s.LoginPath
	}
	return DefaultLoginPath
}

// RequireAuth checks whether sess holds a valid token. On success any
// pending after-login URL is consumed and the token returned. Otherwise the
// current request URL is remembered for the post-login redirect (unless the
// request is the login page itself) and ErrAuthenticationRequired returned.
func (s *AuthService) RequireAuth(sess *session.Session, requestURL string) (domain.Token, error) {
	auth := sess.Auth()
	tokens := session.NewTokenStore(sess)

	if auth.TokenValue == "" {
		s.rememberAfterLogin(sess, auth, requestURL)
		return domain.Token{}, ErrAuthenticationRequired
	}

	token, ok := tokens.FindByValue(auth.TokenValue)
	if !ok {
		// Expired or gone; FindByValue already evicted it.
		auth.TokenValue = ""
		sess.SetAuth(auth)
		s.rememberAfterLogin(sess, auth, requestURL)
		return domain.Token{}, ErrAuthenticationRequired
	}

	if auth.AfterLoginURL != "" {
		auth.AfterLoginURL = ""
		sess.SetAuth(auth)
	}
	return token, nil
}

func (s *AuthService) rememberAfterLogin(sess *session.Session, auth domain.AuthSession, requestURL string) {
	// Never point the post-login redirect back at the login page.
	if requestURL == "" || requestURL == s.loginPath() {
		return
	}
	auth.AfterLoginURL = requestURL
	sess.SetAuth(auth)
}

// Login exchanges credentials for a token scoped to the given domain/project
// identifiers (resolved through the friendly-id cache first, domain before
// project), stores the token, and returns where the browser should go next:
// the remembered after-login URL when one is pending, else the landing path
// of the requested scope.
//
// On failure the session and token store are left untouched.
func (s *AuthService) Login(
	ctx context.Context,
	sess *session.Session,
	user, password string,
	domainParam, projectParam string,
) (string, error) {
	log := slogx.FromContext(ctx)

	dom, err := s.Resolver.Resolve(ctx, domain.ClassDomain, domainParam, "")
	if err != nil {
		return "", err
	}
	proj, err := s.Resolver.Resolve(ctx, domain.ClassProject, projectParam, dom.ID)
	if err != nil {
		return "", err
	}

	result := s.Backend.AuthenticateWithCredentials(ctx, user, password, keystone.Scope{
		DomainID:    dom.ID,
		DomainName:  dom.Name,
		ProjectID:   proj.ID,
		ProjectName: proj.Name,
	})
	if !result.Success {
		// Transport failures read the same to the user but must stay
		// tellable apart in the logs.
		if result.Transport {
			log.Error("identity backend unreachable", "err", result.Error)
		} else {
			log.Info("login rejected", "user", user, slog.String("err", result.Error))
		}
		return "", fmt.Errorf("%w: %s", ErrAuthenticationFailed, result.Error)
	}

	token := result.TokenData
	token.Value = result.Token

	tokens := session.NewTokenStore(sess)

	// Replace-by-scope is explicit here rather than implicit in SetToken:
	// drop the previous token for this exact scope so they don't pile up.
	if prev, ok := tokens.FindByScope(token.ScopeQuery()); ok && prev.Value != token.Value {
		tokens.DeleteToken(prev)
	}
	tokens.SetToken(token)

	auth := sess.Auth()
	target := auth.AfterLoginURL
	auth.AfterLoginURL = ""
	auth.TokenValue = token.Value
	sess.SetAuth(auth)

	if target == "" {
		target = landingPath(dom, proj)
	}

	log.Info("login succeeded",
		"user", user,
		"token_fp", cryptox.FingerprintToken(token.Value),
		"domain_id", dom.ID,
		"project_id", proj.ID,
	)
	return target, nil
}

// Logout drops the session's current token and authentication reference.
func (s *AuthService) Logout(sess *session.Session) {
	auth := sess.Auth()
	if auth.TokenValue != "" {
		tokens := session.NewTokenStore(sess)
		tokens.DeleteToken(domain.Token{Value: auth.TokenValue})
	}
	sess.SetAuth(domain.AuthSession{})
}

// LogoutUserDomain removes every token issued to users of the given home
// domain (id or name) and clears the auth reference when it pointed at one
// of them. Returns how many tokens were removed.
func (s *AuthService) LogoutUserDomain(sess *session.Session, idOrName string) int {
	tokens := session.NewTokenStore(sess)
	removed := tokens.DeleteAllByUserDomain(idOrName)

	auth := sess.Auth()
	if auth.TokenValue != "" {
		if _, ok := tokens.FindByValue(auth.TokenValue); !ok {
			sess.SetAuth(domain.AuthSession{})
		}
	}
	return removed
}

// landingPath derives the default post-login location from the resolved
// scope: /{domain}/{project}/home, /{domain}/home, or / when unscoped.
func landingPath(dom, proj domain.ResolvedScope) string {
	domFrag := dom.URLFragment()
	if domFrag == "" {
		return "/"
	}
	if projFrag := proj.URLFragment(); projFrag != "" {
		return "/" + domFrag + "/" + projFrag + "/home"
	}
	return "/" + domFrag + "/home"
}
