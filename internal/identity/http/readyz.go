package http

import (
	"net/http"
	"time"

	"github.com/skyfold/console/internal/identity/store"
	"github.com/skyfold/console/pkg/httpx"
)

// ReadyzHandler answers 200 once the friendly-id cache store is reachable,
// 503 otherwise.
func ReadyzHandler(startTime time.Time, version string, st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{
			Status:   "ok",
			Uptime:   time.Since(startTime).String(),
			Version:  version,
			Database: "ok",
		}
		statusCode := http.StatusOK

		if err := st.Ping(r.Context()); err != nil {
			resp.Status = "degraded"
			resp.Database = "error: " + err.Error()
			statusCode = http.StatusServiceUnavailable
		}

		httpx.WriteJSON(w, statusCode, resp)
	}
}
