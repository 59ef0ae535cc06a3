// Package admission decides whether a new outbound call may start now,
// holding call starts to a rolling-window budget with a minimum gap
// between successive starts.
package admission

import (
	"context"
	"time"
)

// Admitter is the admission check consumed by the request queue.
// Rejection has no side effects, so callers may probe repeatedly.
type Admitter interface {
	TryAdmit(ctx context.Context, now time.Time) (bool, error)
}
