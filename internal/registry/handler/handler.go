// Package handler exposes registry administration and onboarding over HTTP.
package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"careledger/internal/registry/models"
	"careledger/internal/registry/service"
	id "careledger/pkg/domain"
	"careledger/pkg/platform/httputil"
	request "careledger/pkg/platform/middleware/request"
)

// Handler serves the registry administration API.
type Handler struct {
	service *service.Service
	logger  *slog.Logger
}

// New creates a registry handler.
func New(svc *service.Service, logger *slog.Logger) *Handler {
	return &Handler{service: svc, logger: logger}
}

// AdminRoutes mounts the administrator-facing endpoints. The caller wraps
// them in the admin auth middleware.
func (h *Handler) AdminRoutes(r chi.Router) {
	r.Route("/caregivers/{caregiverID}", func(r chi.Router) {
		r.Get("/", h.getCaregiver)
		r.Get("/actions", h.listCaregiverActions)
		r.Post("/{action}", h.transitionCaregiver)
	})
	r.Route("/facilities/{facilityID}", func(r chi.Router) {
		r.Get("/", h.getFacility)
		r.Get("/actions", h.listFacilityActions)
		r.Post("/{action}", h.transitionFacility)
	})
	r.Get("/actions/recent", h.listRecentActions)
}

// OnboardingRoutes mounts the trusted collaborator endpoints. The caller
// wraps them in the service key middleware.
func (h *Handler) OnboardingRoutes(r chi.Router) {
	r.Post("/caregivers", h.registerCaregiver)
	r.Post("/facilities", h.registerFacility)
}

func (h *Handler) transitionCaregiver(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	caregiverID, err := id.ParseCaregiverID(chi.URLParam(r, "caregiverID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	action, err := models.ParseActionType(chi.URLParam(r, "action"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[transitionRequest](w, r, h.logger, ctx, request.GetRequestID(ctx))
	if !ok {
		return
	}

	m, err := h.service.TransitionCaregiver(ctx, caregiverID, action, req.Reason)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, m)
}

func (h *Handler) transitionFacility(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	facilityID, err := id.ParseFacilityID(chi.URLParam(r, "facilityID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	action, err := models.ParseActionType(chi.URLParam(r, "action"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[transitionRequest](w, r, h.logger, ctx, request.GetRequestID(ctx))
	if !ok {
		return
	}

	f, err := h.service.TransitionFacility(ctx, facilityID, action, req.Reason)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, f)
}

func (h *Handler) getCaregiver(w http.ResponseWriter, r *http.Request) {
	caregiverID, err := id.ParseCaregiverID(chi.URLParam(r, "caregiverID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	m, err := h.service.GetCaregiver(r.Context(), caregiverID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, m)
}

func (h *Handler) getFacility(w http.ResponseWriter, r *http.Request) {
	facilityID, err := id.ParseFacilityID(chi.URLParam(r, "facilityID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	f, err := h.service.GetFacility(r.Context(), facilityID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, f)
}

func (h *Handler) listCaregiverActions(w http.ResponseWriter, r *http.Request) {
	caregiverID, err := id.ParseCaregiverID(chi.URLParam(r, "caregiverID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	actions, err := h.service.ListCaregiverActions(r.Context(), caregiverID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"actions": actions})
}

func (h *Handler) listFacilityActions(w http.ResponseWriter, r *http.Request) {
	facilityID, err := id.ParseFacilityID(chi.URLParam(r, "facilityID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	actions, err := h.service.ListFacilityActions(r.Context(), facilityID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"actions": actions})
}

func (h *Handler) listRecentActions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}
	actions, err := h.service.ListRecentActions(r.Context(), limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"actions": actions})
}

func (h *Handler) registerCaregiver(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.DecodeAndPrepare[registerCaregiverRequest](w, r, h.logger, ctx, request.GetRequestID(ctx))
	if !ok {
		return
	}
	input, err := req.toInput()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	m, err := h.service.RegisterCaregiver(ctx, input)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, m)
}

func (h *Handler) registerFacility(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.DecodeAndPrepare[registerFacilityRequest](w, r, h.logger, ctx, request.GetRequestID(ctx))
	if !ok {
		return
	}
	input, err := req.toInput()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	f, err := h.service.RegisterFacility(ctx, input)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, f)
}
