package httpapi

import (
	"context"
	"net/http"
)

// Pinger reports whether a dependency is reachable.
type Pinger func(ctx context.Context) error

// RegisterHealth adds liveness and readiness endpoints. Readiness fails when
// any pinger fails.
func RegisterHealth(mux *http.ServeMux, pingers map[string]Pinger) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		checks := make(map[string]string, len(pingers))
		status := http.StatusOK
		for name, ping := range pingers {
			if err := ping(r.Context()); err != nil {
				checks[name] = "unavailable"
				status = http.StatusServiceUnavailable
				continue
			}
			checks[name] = "ok"
		}
		WriteJSON(w, status, map[string]any{"checks": checks})
	})
}
