package http

import (
	"errors"
	"net/http"

	"github.com/skyfold/console/internal/identity/service"
	"github.com/skyfold/console/pkg/httpx"
)

// SessionHandler serves GET /auth/session: the web layer's view of the
// current authentication state. Never caches and never includes the raw
// token value.
type SessionHandler struct {
	AuthService *service.AuthService
}

type sessionResponse struct {
	Authenticated bool   `json:"authenticated"`
	UserID        string `json:"user_id,omitempty"`
	UserName      string `json:"user_name,omitempty"`
	UserDomain    string `json:"user_domain,omitempty"`
	DomainID      string `json:"domain_id,omitempty"`
	ProjectID     string `json:"project_id,omitempty"`
	ExpiresAt     string `json:"expires_at,omitempty"`
}

func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())

	token, err := h.AuthService.RequireAuth(sess, "")
	if err != nil {
		if errors.Is(err, service.ErrAuthenticationRequired) {
			httpx.WriteJSON(w, http.StatusOK, sessionResponse{Authenticated: false})
			return
		}
		httpx.WriteJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "internal error",
		})
		return
	}

	resp := sessionResponse{
		Authenticated: true,
		UserID:        token.User.ID,
		UserName:      token.User.Name,
		UserDomain:    token.User.Domain.Name,
		ExpiresAt:     token.ExpiresAt,
	}
	if token.Domain != nil {
		resp.DomainID = token.Domain.ID
	}
	if token.Project != nil {
		resp.DomainID = token.Project.Domain.ID
		resp.ProjectID = token.Project.ID
	}

	httpx.WriteJSON(w, http.StatusOK, resp)
}
