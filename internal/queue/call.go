package queue

import (
	"sync"
)

import (
	"github.com/google/uuid"
)

import (
	"github.com/LauraMoney42/derrite-go/internal/types"
)

// Call is one queued API call. It is resolved exactly once, whatever mix of
// retries and failures it goes through.
type Call struct {
	ID      string
	Kind    types.CallKind
	Payload types.Payload

	attempt int

	once sync.Once
	done chan types.Result
}

func NewCall(kind types.CallKind, payload types.Payload) *Call {
	return &Call{
		ID:      uuid.NewString(),
		Kind:    kind,
		Payload: payload,
		done:    make(chan types.Result, 1),
	}
}

// Result delivers the final outcome. The channel receives exactly one value.
func (c *Call) Result() <-chan types.Result {
	return c.done
}

// Attempt is the zero-based attempt counter, exposed for observability.
func (c *Call) Attempt() int {
	return c.attempt
}

func (c *Call) resolve(r types.Result) {
	c.once.Do(func() {
		c.done <- r
	})
}
