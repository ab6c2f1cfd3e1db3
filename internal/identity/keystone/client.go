// Package keystone is the thin adapter that exchanges credentials for tokens
// against the identity backend. It owns the wire format of that exchange and
// nothing else; callers see a structured success-or-error result.
package keystone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/skyfold/console/internal/identity/domain"
)

// DefaultTimeout bounds the whole credential exchange. The backend normally
// answers well inside this; anything slower is treated as a failed attempt.
const DefaultTimeout = 2500 * time.Millisecond

// maxErrorBody caps how much of a backend error body ends up in messages.
const maxErrorBody = 4 << 10

// Scope carries the requested token scope. Precedence when building the
// request: project id, then project name (with its domain qualifier), then
// domain id, then domain name, then unscoped.
type Scope struct {
	DomainID    string
	DomainName  string
	ProjectID   string
	ProjectName string
}

// Unscoped reports whether no scope field is set at all.
func (s Scope) Unscoped() bool {
	return s.DomainID == "" && s.DomainName == "" && s.ProjectID == "" && s.ProjectName == ""
}

// AuthResult is the outcome of one credential exchange. Transport marks
// failures that never produced a backend verdict (timeouts, refused
// connections, garbled responses); callers present those the same way as
// rejections but should log them distinctly.
type AuthResult struct {
	Success   bool
	Token     string
	TokenData domain.Token
	Error     string
	Transport bool
}

type Client struct {
	endpoint string // e.g. https://identity.example.net/v3
	http     *http.Client
}

// New creates a client for the identity backend at endpoint. A zero timeout
// falls back to DefaultTimeout. No retries are performed; retrying a failed
// login is the caller's call.
func New(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		http:     &http.Client{Timeout: timeout},
	}
}

// AuthenticateWithCredentials performs the password authentication exchange.
// The bearer token value arrives in the X-Subject-Token response header and
// the token body (expiry, user, scope) in the JSON payload; both are folded
// into TokenData.
func (c *Client) AuthenticateWithCredentials(
	ctx context.Context,
	user, password string,
	scope Scope,
) AuthResult {
	payload, err := json.Marshal(buildAuthRequest(user, password, scope))
	if err != nil {
		return AuthResult{Error: fmt.Sprintf("encoding auth request: %v", err), Transport: true}
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.endpoint+"/auth/tokens",
		bytes.NewReader(payload),
	)
	if err != nil {
		return AuthResult{Error: err.Error(), Transport: true}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return AuthResult{Error: err.Error(), Transport: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return AuthResult{
			Error: fmt.Sprintf("Authentication failed: %d - %s",
				resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	value := resp.Header.Get("X-Subject-Token")
	if value == "" {
		return AuthResult{Error: "backend response missing X-Subject-Token", Transport: true}
	}

	var body struct {
		Token domain.Token `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return AuthResult{Error: fmt.Sprintf("decoding token body: %v", err), Transport: true}
	}

	token := body.Token
	token.Value = value

	return AuthResult{Success: true, Token: value, TokenData: token}
}

// authRequest mirrors the backend's token-issuance body:
// {"auth": {"identity": {...}, "scope": {...}}}.
type authRequest struct {
	Auth authBody `json:"auth"`
}

type authBody struct {
	Identity identityBody `json:"identity"`
	Scope    any          `json:"scope,omitempty"`
}

type identityBody struct {
	Methods  []string     `json:"methods"`
	Password passwordBody `json:"password"`
}

type passwordBody struct {
	User userBody `json:"user"`
}

type userBody struct {
	Name     string         `json:"name"`
	Password string         `json:"password"`
	Domain   map[string]any `json:"domain,omitempty"`
}

func buildAuthRequest(user, password string, scope Scope) authRequest {
	return authRequest{
		Auth: authBody{
			Identity: identityBody{
				Methods: []string{"password"},
				Password: passwordBody{
					User: userBody{
						Name:     user,
						Password: password,
						Domain:   userDomain(scope),
					},
				},
			},
			Scope: scopePayload(scope),
		},
	}
}

// userDomain qualifies the user by the requested domain when one is known.
// Usernames are only unique per domain on the backend.
func userDomain(scope Scope) map[string]any {
	switch {
	case scope.DomainID != "":
		return map[string]any{"id": scope.DomainID}
	case scope.DomainName != "":
		return map[string]any{"name": scope.DomainName}
	default:
		return nil
	}
}

func scopePayload(scope Scope) any {
	switch {
	case scope.ProjectID != "":
		return map[string]any{"project": map[string]any{"id": scope.ProjectID}}
	case scope.ProjectName != "":
		project := map[string]any{"name": scope.ProjectName}
		if d := userDomain(scope); d != nil {
			project["domain"] = d
		}
		return map[string]any{"project": project}
	case scope.DomainID != "":
		return map[string]any{"domain": map[string]any{"id": scope.DomainID}}
	case scope.DomainName != "":
		return map[string]any{"domain": map[string]any{"name": scope.DomainName}}
	default:
		return nil
	}
}
