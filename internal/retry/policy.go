// Package retry classifies completed call attempts and computes backoff.
package retry

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

import (
	"github.com/LauraMoney42/derrite-go/internal/config"
	"github.com/LauraMoney42/derrite-go/internal/types"
)

// Decision is the verdict on one completed attempt. When Terminal is false
// the call must be re-enqueued after Delay.
type Decision struct {
	Terminal bool
	Err      *types.CallError // nil on terminal success
	Delay    time.Duration
}

// Policy holds the retry budget and the two backoff curves. Transport and
// 5xx failures back off exponentially; 429 backs off linearly so the client
// never compounds delays against a server that is already throttling it.
type Policy struct {
	maxRetries    int
	initialDelay  time.Duration
	rateLimitBase time.Duration
	rateLimitStep time.Duration
}

// NewPolicy builds a Policy from config, applying the defaults
// (3 retries, 1s initial, 10s+5s*attempt for 429).
func NewPolicy(cfg config.RetryCfg) *Policy {
	return &Policy{
		maxRetries:    cfg.MaxRetriesOrDefault(),
		initialDelay:  cfg.InitialDelay(),
		rateLimitBase: cfg.RateLimitBase(),
		rateLimitStep: cfg.RateLimitStep(),
	}
}

// Classify maps an attempt's outcome to a decision. attempt is zero-based.
func (p *Policy) Classify(out types.Outcome, attempt int) Decision {
	if out.Err != nil {
		if kind, ok := types.KindOf(out.Err); ok && kind == types.ErrPinningRejected {
			// A trust failure, not a transient one. Retrying against a
			// possibly spoofed endpoint is never useful.
			return Decision{Terminal: true, Err: asCallError(out.Err)}
		}
		return p.retryOrExhaust(out.Err, attempt, p.backoff(attempt))
	}

	switch {
	case out.StatusCode == http.StatusOK || out.StatusCode == http.StatusCreated:
		return Decision{Terminal: true}

	case out.StatusCode == http.StatusTooManyRequests:
		cause := types.NewCallError(types.ErrRateLimited, "rate limit exceeded")
		return p.retryOrExhaust(cause, attempt, p.rateLimitBackoff(attempt))

	case out.StatusCode >= 500 && out.StatusCode <= 599:
		cause := types.NewCallError(types.ErrServer, fmt.Sprintf("server error: %d", out.StatusCode))
		return p.retryOrExhaust(cause, attempt, p.backoff(attempt))

	default:
		return Decision{
			Terminal: true,
			Err:      types.NewCallError(types.ErrClient, fmt.Sprintf("unexpected status: %d", out.StatusCode)),
		}
	}
}

func (p *Policy) retryOrExhaust(cause error, attempt int, delay time.Duration) Decision {
	if attempt < p.maxRetries {
		return Decision{Delay: delay}
	}
	msg := "retries exhausted"
	var ce *types.CallError
	if errors.As(cause, &ce) {
		msg = ce.Message
	} else if cause != nil {
		msg = cause.Error()
	}
	return Decision{
		Terminal: true,
		Err:      types.WrapCallError(types.ErrRetriesExhausted, msg, cause),
	}
}

// backoff is the exponential curve: initial * 2^attempt.
func (p *Policy) backoff(attempt int) time.Duration {
	return p.initialDelay << uint(attempt)
}

// rateLimitBackoff is the linear curve: base + step*attempt.
func (p *Policy) rateLimitBackoff(attempt int) time.Duration {
	return p.rateLimitBase + time.Duration(attempt)*p.rateLimitStep
}

func asCallError(err error) *types.CallError {
	var ce *types.CallError
	if errors.As(err, &ce) {
		return ce
	}
	return types.WrapCallError(types.ErrTransport, "transport failure", err)
}
