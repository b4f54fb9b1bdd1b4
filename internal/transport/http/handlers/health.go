package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	zlog "github.com/rs/zerolog/log"

	"github.com/mosswell/world-service/internal/transport/http/response"
)

const healthCheckTimeout = 2 * time.Second

// Pinger is the slice of *sql.DB the health check needs.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler reports liveness of the process and its backends. Either
// dependency may be nil; dev mode runs with neither.
type HealthHandler struct {
	db  Pinger
	rdb *redis.Client
}

func NewHealthHandler(db Pinger, rdb *redis.Client) *HealthHandler {
	return &HealthHandler{db: db, rdb: rdb}
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	if h.db != nil {
		if err := h.db.PingContext(ctx); err != nil {
			zlog.Error().Err(err).Msg("healthz: database ping failed")
			response.Fail(w, http.StatusServiceUnavailable, "unavailable", "database unreachable", nil, response.RequestIDFromRequest(r))
			return
		}
	}
	if h.rdb != nil {
		if err := h.rdb.Ping(ctx).Err(); err != nil {
			zlog.Error().Err(err).Msg("healthz: redis ping failed")
			response.Fail(w, http.StatusServiceUnavailable, "unavailable", "redis unreachable", nil, response.RequestIDFromRequest(r))
			return
		}
	}

	response.Data(w, http.StatusOK, map[string]string{"status": "ok"})
}
