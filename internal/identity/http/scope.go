package http

import (
	"errors"
	"net/http"

	"github.com/skyfold/console/internal/identity/domain"
	"github.com/skyfold/console/internal/identity/service"
	"github.com/skyfold/console/pkg/httpx"
	"github.com/skyfold/console/pkg/slogx"
)

// ScopeHandler serves every scoped path (/{domain}, /{domain}/{project},
// /{domain}/{project}/...). It determines the request's scope, issues the
// canonical-URL redirect when needed, enforces authentication and hands the
// resolved scope to the web layer as JSON.
type ScopeHandler struct {
	ScopeService *service.ScopeService
	AuthService  *service.AuthService
}

type scopeResponse struct {
	Domain  domain.ResolvedScope `json:"domain"`
	Project domain.ResolvedScope `json:"project"`
}

func (h *ScopeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	domainParam := r.PathValue("domain")
	projectParam := r.PathValue("project")

	scope, err := h.ScopeService.Determine(ctx, domainParam, projectParam, r.URL)
	if err != nil {
		if errors.Is(err, service.ErrDomainNotFound) {
			httpx.WriteJSON(w, http.StatusNotFound, map[string]string{
				"error":  "domain does not exist",
				"domain": domainParam,
			})
			return
		}
		log.Error("scope determination failed", "err", err)
		httpx.WriteJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "internal error",
		})
		return
	}

	// Permanent redirect so bookmarks and links migrate to the canonical
	// form. The canonical path differs from the request path, so this
	// cannot loop.
	if scope.MustRedirect {
		http.Redirect(w, r, scope.CanonicalPath, http.StatusMovedPermanently)
		return
	}

	sess := sessionFrom(ctx)
	if _, err := h.AuthService.RequireAuth(sess, r.URL.RequestURI()); err != nil {
		if errors.Is(err, service.ErrAuthenticationRequired) {
			httpx.NoCache(w)
			httpx.WriteJSON(w, http.StatusUnauthorized, map[string]string{
				"error":     "authentication required",
				"login_url": service.DefaultLoginPath,
			})
			return
		}
		log.Error("authentication check failed", "err", err)
		httpx.WriteJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "internal error",
		})
		return
	}

	httpx.WriteJSON(w, http.StatusOK, scopeResponse{
		Domain:  scope.Domain,
		Project: scope.Project,
	})
}
