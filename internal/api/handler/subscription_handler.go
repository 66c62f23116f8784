package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apimw "github.com/aqura-labs/pushrelay/internal/api/middleware"
	"github.com/aqura-labs/pushrelay/internal/domain"
	"github.com/aqura-labs/pushrelay/internal/registry"
)

// SubscriptionHandler exposes the registry surface: device registration,
// logout deactivation, liveness touches, per-user cleanup, and stats.
type SubscriptionHandler struct {
	registry *registry.Registry
	evictor  registry.Evictor
	logger   *zap.Logger
}

func NewSubscriptionHandler(reg *registry.Registry, ev registry.Evictor, logger *zap.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{registry: reg, evictor: ev, logger: logger}
}

// Register handles POST /api/v1/subscriptions
//
// @Summary  Register a push subscription for a device
// @Tags     subscriptions
// @Accept   json
// @Produce  json
// @Param    body  body      domain.RegisterRequest  true  "Subscription payload"
// @Success  201   {object}  domain.Subscription
// @Success  202   {object}  map[string]string  "Storage degraded: push disabled for this session"
// @Failure  422   {object}  map[string]string
// @Router   /api/v1/subscriptions [post]
func (h *SubscriptionHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	sub, err := h.registry.Register(r.Context(), req)
	if err != nil {
		h.logger.Warn("subscription rejected",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}
	if sub == nil {
		// Storage failure absorbed by the registry. The session continues
		// without push rather than failing the login flow.
		respondJSON(w, http.StatusAccepted, map[string]string{
			"status": "push disabled for this session",
		})
		return
	}
	respondJSON(w, http.StatusCreated, sub)
}

// Deactivate handles DELETE /api/v1/subscriptions/{device_id}
//
// @Summary  Deactivate a device's subscription (logout)
// @Tags     subscriptions
// @Param    device_id  path  string  true  "Device ID"
// @Success  204
// @Router   /api/v1/subscriptions/{device_id} [delete]
func (h *SubscriptionHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.registry.Deactivate(r.Context(), chi.URLParam(r, "device_id"))
	w.WriteHeader(http.StatusNoContent)
}

// Touch handles PUT /api/v1/subscriptions/{device_id}/touch
//
// @Summary  Refresh a device subscription's last-seen timestamp
// @Tags     subscriptions
// @Param    device_id  path  string  true  "Device ID"
// @Success  204
// @Router   /api/v1/subscriptions/{device_id}/touch [put]
func (h *SubscriptionHandler) Touch(w http.ResponseWriter, r *http.Request) {
	h.registry.Touch(r.Context(), chi.URLParam(r, "device_id"))
	w.WriteHeader(http.StatusNoContent)
}

// CleanupUser handles POST /api/v1/users/{id}/subscriptions/cleanup
//
// @Summary  Evict a user's superseded subscriptions now
// @Tags     subscriptions
// @Produce  json
// @Param    id   path      string  true  "User ID"
// @Success  200  {object}  map[string]int
// @Router   /api/v1/users/{id}/subscriptions/cleanup [post]
func (h *SubscriptionHandler) CleanupUser(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.evictor.CleanupUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"deleted": deleted})
}

// Stats handles GET /api/v1/subscriptions/stats
//
// @Summary  Registry snapshot for operators
// @Tags     subscriptions
// @Produce  json
// @Success  200  {object}  domain.SubscriptionStats
// @Router   /api/v1/subscriptions/stats [get]
func (h *SubscriptionHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.registry.Stats(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to collect stats")
		return
	}
	respondJSON(w, http.StatusOK, stats)
}
