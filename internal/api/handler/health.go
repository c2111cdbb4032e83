package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/nicpaesk/killer-game/internal/api/response"
	"github.com/nicpaesk/killer-game/internal/realtime"
	"github.com/nicpaesk/killer-game/internal/storage"
)

const healthTimeout = 2 * time.Second

// HealthHandler reports whether the server and its storage are reachable
type HealthHandler struct {
	storage  storage.Storage
	registry *realtime.Registry
	logger   *slog.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(store storage.Storage, registry *realtime.Registry, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{storage: store, registry: registry, logger: logger}
}

// Check handles GET /api/v1/health
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	resp := response.Health{Status: "ok", Rooms: h.registry.RoomCount()}

	if p, ok := h.storage.(storage.Pinger); ok {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			h.logger.Warn("storage ping failed", slog.String("error", err.Error()))
			resp.Status = "degraded"
			resp.Storage = "unreachable"
			response.JSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		resp.Storage = "ok"
	}

	response.JSON(w, http.StatusOK, resp)
}
