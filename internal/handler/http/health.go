package http

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// HealthHandler serves liveness and readiness probes. Readiness includes a
// storage ping so a lost database takes the instance out of rotation.
type HealthHandler struct {
	ping  func() error
	stats func() map[string]interface{}
	log   *zap.Logger
}

func NewHealthHandler(ping func() error, stats func() map[string]interface{}, log *zap.Logger) *HealthHandler {
	return &HealthHandler{
		ping:  ping,
		stats: stats,
		log:   log,
	}
}

// Health handles GET /health.
func (h *HealthHandler) Health(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready handles GET /ready.
func (h *HealthHandler) Ready(w http.ResponseWriter, _ *http.Request) {
	if h.ping != nil {
		if err := h.ping(); err != nil {
			h.log.Warn("readiness check failed", zap.Error(err))
			respondJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
				"status": "unavailable",
				"reason": "storage unreachable",
			})
			return
		}
	}

	resp := map[string]interface{}{"status": "ready"}
	if h.stats != nil {
		resp["analytics"] = h.stats()
	}
	respondJSON(w, http.StatusOK, resp)
}
