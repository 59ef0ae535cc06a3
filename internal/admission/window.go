package admission

import (
	"context"
	"time"
)

import (
	"github.com/LauraMoney42/derrite-go/internal/config"
)

// Window is the in-memory admission check. It keeps the start timestamps of
// calls admitted within the trailing window plus the last admitted start.
//
// Window is not safe for concurrent use; it is owned by the queue's drain
// loop, which is already serialized.
type Window struct {
	capacity   int
	window     time.Duration
	minSpacing time.Duration

	stamps   []time.Time
	lastCall time.Time
}

// NewWindow builds a Window from config, applying the defaults
// (capacity 10, 60s window, 2s spacing).
func NewWindow(cfg config.AdmissionCfg) *Window {
	return &Window{
		capacity:   cfg.CapacityOrDefault(),
		window:     cfg.Window(),
		minSpacing: cfg.MinSpacing(),
	}
}

// TryAdmit prunes expired starts, then checks capacity and spacing.
// On acceptance the start is recorded; rejection leaves no trace.
func (w *Window) TryAdmit(_ context.Context, now time.Time) (bool, error) {
	w.prune(now)

	if len(w.stamps) >= w.capacity {
		return false, nil
	}
	if !w.lastCall.IsZero() && now.Sub(w.lastCall) < w.minSpacing {
		return false, nil
	}

	w.stamps = append(w.stamps, now)
	w.lastCall = now
	return true, nil
}

// InWindow reports how many admitted starts remain inside the window at now.
func (w *Window) InWindow(now time.Time) int {
	cutoff := now.Add(-w.window)
	n := 0
	for _, ts := range w.stamps {
		if ts.After(cutoff) {
			n++
		}
	}
	return n
}

func (w *Window) prune(now time.Time) {
	cutoff := now.Add(-w.window)
	keep := w.stamps[:0]
	for _, ts := range w.stamps {
		if ts.After(cutoff) {
			keep = append(keep, ts)
		}
	}
	w.stamps = keep
}
