// Package http assembles the service's HTTP surface: the public verification
// gateway, the administrator API and the onboarding API.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	jwttoken "careledger/internal/jwt_token"
	registryhandler "careledger/internal/registry/handler"
	verifyhandler "careledger/internal/verify/handler"
	"careledger/pkg/platform/httputil"
	"careledger/pkg/platform/middleware/auth"
	request "careledger/pkg/platform/middleware/request"
	"careledger/pkg/platform/middleware/servicekey"
)

const maxBodyBytes = 1 << 20 // 1 MiB

// HealthChecker reports dependency liveness.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Config carries the router's collaborators.
type Config struct {
	Registry *registryhandler.Handler
	Verify   *verifyhandler.Handler

	TokenValidator auth.TokenValidator
	ServiceKeyHash string

	HealthChecks map[string]HealthChecker

	Logger *slog.Logger
}

// NewRouter builds the full route tree.
func NewRouter(cfg Config) http.Handler {
	r := chi.NewRouter()
	r.Use(request.Metadata)
	r.Use(request.BodyLimit(maxBodyBytes))

	// Public surface.
	cfg.Verify.Routes(r)
	r.Get("/healthz", healthz(cfg.HealthChecks))
	r.Handle("/metrics", promhttp.Handler())

	// Administrator surface.
	r.Route("/admin", func(r chi.Router) {
		r.Use(auth.RequireAdmin(cfg.TokenValidator, jwttoken.RoleRegistryAdmin, cfg.Logger))
		cfg.Registry.AdminRoutes(r)
		cfg.Verify.AdminRoutes(r)
	})

	// Trusted collaborator surface.
	r.Route("/onboarding", func(r chi.Router) {
		r.Use(servicekey.Require(cfg.ServiceKeyHash, cfg.Logger))
		cfg.Registry.OnboardingRoutes(r)
	})

	return r
}

func healthz(checks map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		detail := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check.Health(ctx); err != nil {
				status = http.StatusServiceUnavailable
				detail[name] = err.Error()
				continue
			}
			detail[name] = "ok"
		}
		httputil.WriteJSON(w, status, detail)
	}
}
