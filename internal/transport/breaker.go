package transport

import (
	"context"
	"log/slog"
	"net/url"
	"sync"
)

import (
	"github.com/sony/gobreaker"
)

import (
	"github.com/LauraMoney42/derrite-go/internal/config"
	"github.com/LauraMoney42/derrite-go/internal/types"
)

// BreakerExecutor wraps an Executor with one circuit breaker per host.
// Transport failures and 5xx responses count against the breaker; an open
// circuit fails attempts fast as transport failures, so the retry policy
// keeps deciding the call's fate.
//
// Pin rejections count as failures too, but always pass through unchanged.
type BreakerExecutor struct {
	inner Executor
	cfg   config.BreakerCfg
	log   *slog.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

func NewBreakerExecutor(inner Executor, cfg config.BreakerCfg, logger *slog.Logger) *BreakerExecutor {
	if inner == nil {
		panic("transport: nil inner executor")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BreakerExecutor{
		inner:    inner,
		cfg:      cfg,
		log:      logger,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

func (b *BreakerExecutor) Execute(ctx context.Context, p types.Payload) types.Outcome {
	host := hostOf(p.URL)
	cb := b.breakerFor(host)

	res, err := cb.Execute(func() (interface{}, error) {
		out := b.inner.Execute(ctx, p)
		if out.Err != nil {
			return out, out.Err
		}
		if out.StatusCode >= 500 {
			return out, types.NewCallError(types.ErrServer, "server error counted by breaker")
		}
		return out, nil
	})

	if out, ok := res.(types.Outcome); ok {
		// The inner attempt ran; its outcome stands, counted or not.
		return out
	}
	// res is nil: the breaker short-circuited the attempt.
	return types.Outcome{
		Err: types.WrapCallError(types.ErrTransport, "circuit breaker open for "+host, err),
	}
}

func (b *BreakerExecutor) breakerFor(host string) *gobreaker.CircuitBreaker {
	b.mu.Lock()
	defer b.mu.Unlock()

	if cb, ok := b.breakers[host]; ok {
		return cb
	}

	minRequests := uint32(b.cfg.MinRequestsOrDefault())
	failureRatio := b.cfg.FailureRatioOrDefault()
	consecutive := uint32(b.cfg.ConsecutiveFailuresOrDefault())

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        host,
		MaxRequests: 1,
		Interval:    b.cfg.Interval(),
		Timeout:     b.cfg.OpenTimeout(),
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests >= minRequests &&
				float64(counts.TotalFailures)/float64(counts.Requests) >= failureRatio {
				return true
			}
			return counts.ConsecutiveFailures >= consecutive
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.log.Warn("circuit breaker state change", "host", name, "from", from.String(), "to", to.String())
		},
	})
	b.breakers[host] = cb
	return cb
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Host
}
