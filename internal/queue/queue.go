// Package queue serializes API calls through a single drain loop. One call
// is in flight at a time; the admission window gates every attempt's start,
// and retried calls go back to the head of the line so later submissions
// cannot starve them.
package queue

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

import (
	"github.com/LauraMoney42/derrite-go/internal/config"
	"github.com/LauraMoney42/derrite-go/internal/retry"
	"github.com/LauraMoney42/derrite-go/internal/types"
)

// Admitter decides whether a call may start now. A rejected start must leave
// no trace in the window.
type Admitter interface {
	TryAdmit(ctx context.Context, now time.Time) (bool, error)
}

// Executor runs one attempt.
type Executor interface {
	Execute(ctx context.Context, p types.Payload) types.Outcome
}

// Classifier turns an attempt's outcome into a terminal result or a delay.
type Classifier interface {
	Classify(out types.Outcome, attempt int) retry.Decision
}

// Stats is a point-in-time snapshot of the queue counters.
type Stats struct {
	Depth       int   `json:"depth"`
	Submitted   int64 `json:"submitted"`
	Admitted    int64 `json:"admitted"`
	Retried     int64 `json:"retried"`
	ResolvedOK  int64 `json:"resolvedOk"`
	ResolvedErr int64 `json:"resolvedErr"`
}

// Queue owns the pending calls and the drain loop. All transport activity
// happens on the loop goroutine; Enqueue is safe from any goroutine.
type Queue struct {
	admitter   Admitter
	exec       Executor
	classifier Classifier

	pollDelay      time.Duration
	interCallDelay time.Duration
	log            *slog.Logger

	mu    sync.Mutex
	calls []*Call
	wake  chan struct{}

	submitted   atomic.Int64
	admitted    atomic.Int64
	retried     atomic.Int64
	resolvedOK  atomic.Int64
	resolvedErr atomic.Int64

	done chan struct{}
}

func New(a Admitter, e Executor, c Classifier, admCfg config.AdmissionCfg, qCfg config.QueueCfg, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		admitter:       a,
		exec:           e,
		classifier:     c,
		pollDelay:      admCfg.PollDelay(),
		interCallDelay: qCfg.InterCallDelay(),
		log:            logger,
		wake:           make(chan struct{}, 1),
		done:           make(chan struct{}),
	}
}

// Enqueue appends the call to the tail and wakes the drain loop.
func (q *Queue) Enqueue(c *Call) {
	q.mu.Lock()
	q.calls = append(q.calls, c)
	q.mu.Unlock()
	q.submitted.Add(1)

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Start launches the drain loop. It runs until ctx is cancelled; pending
// calls are then resolved with an error so no caller blocks forever.
func (q *Queue) Start(ctx context.Context) {
	go func() {
		defer close(q.done)
		q.run(ctx)
	}()
}

// Done is closed once the drain loop has exited.
func (q *Queue) Done() <-chan struct{} {
	return q.done
}

// Stats returns the current counters.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	depth := len(q.calls)
	q.mu.Unlock()
	return Stats{
		Depth:       depth,
		Submitted:   q.submitted.Load(),
		Admitted:    q.admitted.Load(),
		Retried:     q.retried.Load(),
		ResolvedOK:  q.resolvedOK.Load(),
		ResolvedErr: q.resolvedErr.Load(),
	}
}

func (q *Queue) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			q.drainRemaining(ctx)
			return
		}

		if q.depth() == 0 {
			select {
			case <-ctx.Done():
				q.drainRemaining(ctx)
				return
			case <-q.wake:
			}
			continue
		}

		// Admission gates the start of every attempt. The call stays at
		// the head while rejected, so nothing overtakes it.
		ok, err := q.admitter.TryAdmit(ctx, time.Now())
		if err != nil {
			q.log.Warn("admission check failed", "error", err)
		}
		if !ok {
			if !sleepCtx(ctx, q.pollDelay) {
				q.drainRemaining(ctx)
				return
			}
			continue
		}

		c := q.popHead()
		if c == nil {
			continue
		}
		q.admitted.Add(1)

		out := q.exec.Execute(ctx, c.Payload)
		d := q.classifier.Classify(out, c.attempt)

		if d.Terminal {
			if d.Err != nil {
				q.resolvedErr.Add(1)
				q.log.Warn("call failed", "call", c.ID, "kind", c.Kind, "attempt", c.attempt, "error", d.Err)
				c.resolve(types.Result{Err: d.Err})
			} else {
				q.resolvedOK.Add(1)
				q.log.Debug("call succeeded", "call", c.ID, "kind", c.Kind, "attempt", c.attempt, "status", out.StatusCode)
				c.resolve(types.Result{Body: out.Body})
			}
			if !sleepCtx(ctx, q.interCallDelay) {
				q.drainRemaining(ctx)
				return
			}
			continue
		}

		c.attempt++
		q.retried.Add(1)
		q.log.Info("retrying call", "call", c.ID, "kind", c.Kind, "attempt", c.attempt, "delay", d.Delay)
		if !sleepCtx(ctx, d.Delay) {
			c.resolve(types.Result{Err: types.WrapCallError(types.ErrTransport, "queue stopped", ctx.Err())})
			q.resolvedErr.Add(1)
			q.drainRemaining(ctx)
			return
		}
		q.pushHead(c)
	}
}

func (q *Queue) drainRemaining(ctx context.Context) {
	q.mu.Lock()
	pending := q.calls
	q.calls = nil
	q.mu.Unlock()

	for _, c := range pending {
		c.resolve(types.Result{Err: types.WrapCallError(types.ErrTransport, "queue stopped", ctx.Err())})
		q.resolvedErr.Add(1)
	}
}

func (q *Queue) depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.calls)
}

func (q *Queue) popHead() *Call {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.calls) == 0 {
		return nil
	}
	c := q.calls[0]
	q.calls = q.calls[1:]
	return c
}

func (q *Queue) pushHead(c *Call) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.calls = append([]*Call{c}, q.calls...)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
