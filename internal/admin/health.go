package admin

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const healthProbeTimeout = 3 * time.Second

// Health probes the service's backing dependencies. Probes are shallow
// pings, not load tests; a slow dependency reports degraded via the probe
// timeout.
type Health struct {
	pool      *pgxpool.Pool
	cache     *redis.Client
	inspector *asynq.Inspector
	logger    *slog.Logger

	now func() time.Time
}

// NewHealth constructs the health service. Any dependency may be nil and is
// then omitted from the report.
func NewHealth(pool *pgxpool.Pool, cache *redis.Client, inspector *asynq.Inspector, logger *slog.Logger) *Health {
	return &Health{
		pool:      pool,
		cache:     cache,
		inspector: inspector,
		logger:    logger,
		now:       time.Now,
	}
}

// Report checks every configured dependency and aggregates the results. The
// overall status is "ok" only when all components pass.
func (h *Health) Report(ctx context.Context) *HealthReport {
	ctx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()

	components := make(map[string]ComponentHealth)
	if h.pool != nil {
		components["postgres"] = probe(func() error { return h.pool.Ping(ctx) })
	}
	if h.cache != nil {
		components["redis"] = probe(func() error { return h.cache.Ping(ctx).Err() })
	}
	if h.inspector != nil {
		components["queue"] = probe(func() error {
			_, err := h.inspector.GetQueueInfo("default")
			return err
		})
	}

	status := "ok"
	for name, c := range components {
		if c.Status != "ok" {
			status = "degraded"
			h.logger.Warn("health probe failed", "component", name, "error", c.Error)
		}
	}
	return &HealthReport{
		Status:     status,
		Components: components,
		CheckedAt:  h.now().UTC(),
	}
}

func probe(check func() error) ComponentHealth {
	if err := check(); err != nil {
		return ComponentHealth{Status: "error", Error: err.Error()}
	}
	return ComponentHealth{Status: "ok"}
}
