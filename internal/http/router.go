// Package httpapi assembles the HTTP surface: middleware chain, public
// endpoints, and the authenticated API routes.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	platformmw "warden/internal/platform/middleware"
	sessionmw "warden/internal/sessionpolicy/middleware"
	"warden/pkg/platform/httputil"
)

// RouteRegistrar is implemented by feature handlers that mount their routes on
// a chi router.
type RouteRegistrar interface {
	RegisterRoutes(r chi.Router)
}

// Deps carries everything the router needs. HealthChecks run on /healthz; a
// nil check is skipped.
type Deps struct {
	Logger       *slog.Logger
	Validator    platformmw.TokenValidator
	Enforcer     sessionmw.Enforcer
	Verification RouteRegistrar
	Retention    RouteRegistrar
	Sessions     RouteRegistrar
	HealthChecks map[string]func(ctx context.Context) error
}

// New builds the service router.
func New(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(platformmw.Recovery(deps.Logger))
	r.Use(platformmw.RequestID)
	r.Use(platformmw.RequestTime)
	r.Use(platformmw.ClientMetadata)
	r.Use(platformmw.Logger(deps.Logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", healthHandler(deps.HealthChecks))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(platformmw.Timeout(30 * time.Second))
		api.Use(platformmw.ContentTypeJSON)
		api.Use(platformmw.RequireAuth(deps.Validator, deps.Logger))
		api.Use(sessionmw.Enforce(deps.Enforcer))

		deps.Verification.RegisterRoutes(api)
		deps.Retention.RegisterRoutes(api)
		deps.Sessions.RegisterRoutes(api)
	})

	return r
}

func healthHandler(checks map[string]func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if check == nil {
				continue
			}
			if err := check(ctx); err != nil {
				results[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}
		httputil.WriteJSON(w, status, map[string]any{
			"status": http.StatusText(status),
			"checks": results,
		})
	}
}
