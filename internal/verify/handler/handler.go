// Package handler exposes the public verification endpoint.
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"careledger/internal/verify/service"
	dErrors "careledger/pkg/domain-errors"
	"careledger/pkg/platform/httputil"
)

// Handler serves the public verification gateway.
type Handler struct {
	service *service.Service
	logger  *slog.Logger
}

// New creates a verification handler.
func New(svc *service.Service, logger *slog.Logger) *Handler {
	return &Handler{service: svc, logger: logger}
}

// Routes mounts the public endpoint. No authentication: this surface backs
// the public registry lookup page.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/verify", h.verify)
}

// AdminRoutes mounts the abuse-monitoring view. The caller wraps it in the
// admin auth middleware.
func (h *Handler) AdminRoutes(r chi.Router) {
	r.Get("/verification/stats", h.stats)
}

// verify answers a lookup by exactly one of registry_id, certificate_number
// or name. A well-formed query always returns 200; negative, unknown and
// ambiguous lookups all share one response shape.
func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	params := r.URL.Query()

	registryID := params.Get("registry_id")
	certificate := params.Get("certificate_number")
	name := params.Get("name")

	provided := 0
	for _, v := range []string{registryID, certificate, name} {
		if v != "" {
			provided++
		}
	}
	if provided != 1 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation,
			"provide exactly one of registry_id, certificate_number or name"))
		return
	}

	switch {
	case registryID != "":
		httputil.WriteJSON(w, http.StatusOK, h.service.VerifyByRegistryID(ctx, registryID))
	case certificate != "":
		httputil.WriteJSON(w, http.StatusOK, h.service.VerifyByCertificate(ctx, certificate))
	default:
		httputil.WriteJSON(w, http.StatusOK, h.service.VerifyByName(ctx, name))
	}
}

// stats returns query counts per outcome since ?since (RFC 3339), defaulting
// to the last 24 hours.
func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	since := time.Now().Add(-24 * time.Hour)
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "since must be an RFC 3339 timestamp"))
			return
		}
		since = parsed
	}

	counts, err := h.service.QueryStats(ctx, since)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"since":  since,
		"counts": counts,
	})
}
