package health

import (
	"context"
	"net/http"
	"time"

	"rentkar/pkg/client"
	httputil "rentkar/pkg/http"
	"rentkar/pkg/logger"

	"github.com/julienschmidt/httprouter"
)

type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database,omitempty"`
	Redis    string `json:"redis,omitempty"`
}

type Handler struct {
	client *client.Client
	log    *logger.Logger
}

func NewHandler(client *client.Client, log *logger.Logger) *Handler {
	return &Handler{
		client: client,
		log:    log,
	}
}

func (h *Handler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := httputil.WriteJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
	}); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Health", "operation", "WriteJSON", "error", err)
	}
}

// Ready reports whether both backing stores answer within the probe
// budget. Coordination depends on Redis as much as on the database, so
// either one failing makes the process not ready.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	response := HealthResponse{Status: "ready", Database: "ok", Redis: "ok"}
	status := http.StatusOK

	if err := h.client.Mongo.Ping(ctx, nil); err != nil {
		h.log.Error("Database health check failed",
			"error", err,
			"path", r.URL.Path,
		)
		response.Status = "unavailable"
		response.Database = "error"
		status = http.StatusServiceUnavailable
	}

	if err := h.client.Redis.Ping(ctx).Err(); err != nil {
		h.log.Error("Redis health check failed",
			"error", err,
			"path", r.URL.Path,
		)
		response.Status = "unavailable"
		response.Redis = "error"
		status = http.StatusServiceUnavailable
	}

	if err := httputil.WriteJSON(w, status, response); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Ready", "operation", "WriteJSON", "error", err)
	}
}
