// Package sessionx encodes the browser-facing session cookie. The cookie
// carries nothing but a signed session id; all session state stays server
// side. Signing uses HS256 so a tampered or expired cookie reads as "no
// session" rather than an error.
package sessionx

import (
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/skyfold/console/pkg/idx"
)

// DefaultCookieName is used unless the codec overrides it.
const DefaultCookieName = "console_session"

var ErrInvalidCookie = errors.New("sessionx: invalid session cookie")

type Codec struct {
	secret     []byte
	ttl        time.Duration
	cookieName string
	secure     bool
}

// NewCodec creates a cookie codec signing with secret. ttl bounds how long a
// cookie stays acceptable independent of server-side session state. secure
// marks the cookie Secure; leave it off only in dev.
func NewCodec(secret []byte, ttl time.Duration, secure bool) *Codec {
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	return &Codec{
		secret:     secret,
		ttl:        ttl,
		cookieName: DefaultCookieName,
		secure:     secure,
	}
}

// Issue sets the session cookie for sid on the response.
func (c *Codec) Issue(w http.ResponseWriter, sid idx.ID) error {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   sid.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     c.cookieName,
		Value:    signed,
		Path:     "/",
		MaxAge:   int(c.ttl.Seconds()),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// SessionID extracts and verifies the session id from the request's cookie.
// Any failure (missing cookie, bad signature, expiry, malformed id) reports
// no session.
func (c *Codec) SessionID(r *http.Request) (idx.ID, bool) {
	cookie, err := r.Cookie(c.cookieName)
	if err != nil || cookie.Value == "" {
		return idx.Zero, false
	}

	var claims jwt.RegisteredClaims
	_, err = jwt.ParseWithClaims(cookie.Value, &claims,
		func(t *jwt.Token) (any, error) {
			return c.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return idx.Zero, false
	}

	sid, err := idx.Parse(claims.Subject)
	if err != nil {
		return idx.Zero, false
	}
	return sid, true
}

// Clear expires the session cookie on the response.
func (c *Codec) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
