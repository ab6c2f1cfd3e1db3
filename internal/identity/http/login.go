package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/skyfold/console/internal/identity/service"
	"github.com/skyfold/console/pkg/httpx"
	"github.com/skyfold/console/pkg/slogx"
)

// LoginHandler serves POST /auth/login. Accepts
// application/x-www-form-urlencoded credentials plus optional domain/project
// scope identifiers (raw id, slug or name — they go through friendly-id
// resolution).
type LoginHandler struct {
	AuthService *service.AuthService
}

func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	if ct := r.Header.Get("Content-Type"); ct != "" &&
		!strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		httpx.WriteJSON(w, http.StatusUnsupportedMediaType, map[string]string{
			"error": "unsupported content type",
		})
		return
	}

	if err := r.ParseForm(); err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, map[string]string{
			"error": "malformed form body",
		})
		return
	}

	username := strings.TrimSpace(r.Form.Get("username"))
	password := r.Form.Get("password")
	domainParam := strings.TrimSpace(r.Form.Get("domain"))
	projectParam := strings.TrimSpace(r.Form.Get("project"))

	if username == "" || password == "" {
		httpx.WriteJSON(w, http.StatusBadRequest, map[string]string{
			"error": "username and password are required",
		})
		return
	}

	sess := sessionFrom(ctx)
	target, err := h.AuthService.Login(ctx, sess, username, password, domainParam, projectParam)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAuthenticationFailed):
			httpx.WriteJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "invalid credentials",
			})
		default:
			log.Error("login failed", "err", err)
			httpx.WriteJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "internal error",
			})
		}
		return
	}

	httpx.NoCache(w)
	http.Redirect(w, r, target, http.StatusSeeOther)
}
