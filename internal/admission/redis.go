package admission

import (
	"context"
	"log/slog"
	"time"
)

import (
	"github.com/google/uuid"
)

import (
	"github.com/LauraMoney42/derrite-go/internal/config"
	"github.com/LauraMoney42/derrite-go/internal/repo"
)

// RedisWindow is the shared admission backend: several client instances
// drawing on one server-side budget coordinate through a single Redis
// window. A Redis failure counts as a rejection, so an unreachable
// coordinator can only slow calls down, never over-admit.
type RedisWindow struct {
	rdb        *repo.Client
	name       string
	capacity   int
	window     time.Duration
	minSpacing time.Duration
	log        *slog.Logger
}

// NewRedisWindow builds a RedisWindow over the named shared window.
func NewRedisWindow(rdb *repo.Client, name string, cfg config.AdmissionCfg, logger *slog.Logger) *RedisWindow {
	if rdb == nil {
		panic("admission: nil redis client")
	}
	if name == "" {
		name = "default"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisWindow{
		rdb:        rdb,
		name:       name,
		capacity:   cfg.CapacityOrDefault(),
		window:     cfg.Window(),
		minSpacing: cfg.MinSpacing(),
		log:        logger,
	}
}

func (r *RedisWindow) TryAdmit(ctx context.Context, now time.Time) (bool, error) {
	member := uuid.NewString()
	ok, _, err := r.rdb.TryAdmit(ctx, r.name, member, now, r.window, r.capacity, r.minSpacing)
	if err != nil {
		r.log.Warn("shared admission check failed, treating as rejection", "window", r.name, "err", err)
		return false, err
	}
	return ok, nil
}
