package repo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

import (
	"github.com/redis/go-redis/v9"
)

import (
	"github.com/LauraMoney42/derrite-go/internal/config"
	"github.com/LauraMoney42/derrite-go/internal/util"
)

// Key templates for better readability and maintainability
const (
	keyAdmWindowTmpl = "%s:adm:{%s}:win"
	keyAdmLastTmpl   = "%s:adm:{%s}:last"
)

// Client wraps the Redis connection used by the shared admission backend.
type Client struct {
	Prefix         string
	Cli            *redis.Client
	logger         *slog.Logger
	defaultTimeout time.Duration
}

// Option pattern for custom configurations
type Option func(*Client)

func WithDefaultTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

// NewClient connects to Redis and verifies the connection with a ping.
func NewClient(cfg config.RedisCfg, logger *slog.Logger, opts ...Option) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Addr == "" {
		return nil, errors.New("no redis address configured")
	}

	c := &Client{
		Prefix:         prefixOrDefault(cfg.Prefix),
		logger:         logger,
		defaultTimeout: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.Cli = redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  durationOrDefault(cfg.DialTimeoutMs, 800),
		ReadTimeout:  durationOrDefault(cfg.ReadTimeoutMs, 800),
		WriteTimeout: durationOrDefault(cfg.WriteTimeoutMs, 800),
		PoolSize:     maxInt(cfg.PoolSize, 10),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Cli.Ping(ctx).Err(); err != nil {
		logger.Error("redis ping failed", "err", err)
		return nil, fmt.Errorf("redis connect failed: %w", err)
	}
	return c, nil
}

// KeyAdmissionWindow returns the sorted-set key holding call-start timestamps.
func (c *Client) KeyAdmissionWindow(name string) string {
	return fmt.Sprintf(keyAdmWindowTmpl, c.Prefix, name)
}

// KeyAdmissionLast returns the key holding the last admitted start time.
func (c *Client) KeyAdmissionLast(name string) string {
	return fmt.Sprintf(keyAdmLastTmpl, c.Prefix, name)
}

// TryAdmit runs the admission script against the named window.
// Returns whether the call may start and the current window occupancy.
func (c *Client) TryAdmit(parentCtx context.Context, name, member string, now time.Time, window time.Duration, capacity int, spacing time.Duration) (bool, int64, error) {
	ctx, cancel := context.WithTimeout(parentCtx, c.scriptTimeout())
	defer cancel()

	res, err := ScriptAdmission.Run(ctx, c.Cli,
		[]string{c.KeyAdmissionWindow(name), c.KeyAdmissionLast(name)},
		now.UnixMilli(), window.Milliseconds(), capacity, spacing.Milliseconds(), member,
	).Result()
	if err != nil {
		return false, 0, fmt.Errorf("admission script failed for %s: %w", name, err)
	}

	results, ok := res.([]interface{})
	if !ok || len(results) < 2 {
		return false, 0, errors.New("invalid admission script response")
	}
	return util.ToInt64(results[0]) == 1, util.ToInt64(results[1]), nil
}

func (c *Client) scriptTimeout() time.Duration {
	if c.defaultTimeout > 0 {
		return 2 * c.defaultTimeout
	}
	return 200 * time.Millisecond
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	return c.Cli.Close()
}

func prefixOrDefault(p string) string {
	if p == "" {
		return "derrite"
	}
	return p
}

func maxInt(val, def int) int {
	if val > def {
		return val
	}
	return def
}

func durationOrDefault(ms int, defMs int) time.Duration {
	if ms <= 0 {
		ms = defMs
	}
	return time.Duration(ms) * time.Millisecond
}
