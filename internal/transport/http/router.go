// Package httptransport assembles the public HTTP surface: the REST handlers,
// the websocket endpoint, and the operational endpoints.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"helpdesk/internal/transport/http/shared"
)

// Registrar is implemented by feature handlers that mount their own routes
// and middleware chains.
type Registrar interface {
	Register(r chi.Router)
}

// HealthChecker reports readiness of one backing dependency.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Deps carries everything the router mounts.
type Deps struct {
	Tickets       Registrar
	Notifications Registrar
	Websocket     http.HandlerFunc
	Logger        *slog.Logger

	// Health checks by dependency name; nil values are skipped so wiring
	// without redis or postgres stays valid.
	Health map[string]HealthChecker
}

// NewRouter wires all public endpoints.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	deps.Tickets.Register(r)
	deps.Notifications.Register(r)

	if deps.Websocket != nil {
		r.Get("/ws", deps.Websocket)
	}
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", handleHealth(deps))

	return r
}

func handleHealth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		status := http.StatusOK
		checks := make(map[string]string, len(deps.Health))
		for name, checker := range deps.Health {
			if checker == nil {
				continue
			}
			if err := checker.Health(ctx); err != nil {
				deps.Logger.WarnContext(ctx, "health check failed", "dependency", name, "error", err)
				checks[name] = "down"
				status = http.StatusServiceUnavailable
				continue
			}
			checks[name] = "up"
		}
		statusText := "ok"
		if status != http.StatusOK {
			statusText = "degraded"
		}
		shared.WriteJSON(w, status, map[string]any{
			"status": statusText,
			"checks": checks,
		})
	}
}
