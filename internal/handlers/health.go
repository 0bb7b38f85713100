package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"mindmap-backend/pkg/api"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	store   Pinger
	version string
	logger  *zap.Logger
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(store Pinger, version string, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{store: store, version: version, logger: logger}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	api.JSON(w, http.StatusOK, map[string]string{"status": "ok", "version": h.version})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.logger.Warn("Readiness check failed", zap.Error(err))
		api.Error(w, http.StatusServiceUnavailable, "row store unavailable")
		return
	}
	api.JSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
