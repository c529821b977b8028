package http

import (
	"net/http"
	"time"

	"github.com/entradalabs/entrada/internal/gateway/store"
	"github.com/entradalabs/entrada/pkg/httpx"
)

// ReadyzHandler is the readiness probe: it checks the session database on
// every call. The hosted backend is deliberately not probed here; its
// outages surface per-request and must not take the gateway out of the
// load balancer.
func ReadyzHandler(startTime time.Time, version string, st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &healthChecks{Database: "ok"}
		status := "ok"
		code := http.StatusOK

		if err := st.Ping(r.Context()); err != nil {
			checks.Database = "error: " + err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		httpx.WriteJSON(w, code, healthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		})
	}
}
