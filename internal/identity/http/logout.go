package http

import (
	"net/http"
	"strings"

	"github.com/skyfold/console/internal/identity/service"
	"github.com/skyfold/console/internal/identity/session"
	"github.com/skyfold/console/pkg/httpx"
	"github.com/skyfold/console/pkg/sessionx"
	"github.com/skyfold/console/pkg/slogx"
)

// LogoutHandler serves POST /auth/logout and POST /auth/logout-domain.
type LogoutHandler struct {
	AuthService *service.AuthService
	Sessions    *session.Store
	Cookies     *sessionx.Codec
}

// HandleLogout drops the current token and tears the whole session down.
func (h *LogoutHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := sessionFrom(ctx)

	h.AuthService.Logout(sess)
	h.Sessions.Delete(sess.ID)
	h.Cookies.Clear(w)

	httpx.NoCache(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleLogoutDomain bulk-invalidates every token belonging to users of one
// home domain, given by id or name in the "domain" form field. The session
// itself survives; only its tokens for that user domain go.
func (h *LogoutHandler) HandleLogoutDomain(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	if err := r.ParseForm(); err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, map[string]string{
			"error": "malformed form body",
		})
		return
	}

	idOrName := strings.TrimSpace(r.Form.Get("domain"))
	if idOrName == "" {
		httpx.WriteJSON(w, http.StatusBadRequest, map[string]string{
			"error": "domain is required",
		})
		return
	}

	sess := sessionFrom(ctx)
	removed := h.AuthService.LogoutUserDomain(sess, idOrName)
	log.Info("user-domain logout", "domain", idOrName, "tokens_removed", removed)

	httpx.WriteJSON(w, http.StatusOK, map[string]int{"tokens_removed": removed})
}
