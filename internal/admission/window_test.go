package admission

import (
	"context"
	"testing"
	"time"
)

import (
	"github.com/LauraMoney42/derrite-go/internal/config"
)

func testWindow() *Window {
	return NewWindow(config.AdmissionCfg{
		Capacity:     10,
		WindowMs:     60_000,
		MinSpacingMs: 2_000,
	})
}

func TestAdmitsUpToCapacity(t *testing.T) {
	w := testWindow()
	ctx := context.Background()
	base := time.Unix(1_700_000_000, 0)

	for i := 0; i < 10; i++ {
		now := base.Add(time.Duration(i) * 3 * time.Second)
		ok, err := w.TryAdmit(ctx, now)
		if err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
		if !ok {
			t.Fatalf("call %d rejected below capacity", i)
		}
	}

	// 11th call inside the same window must be rejected.
	ok, _ := w.TryAdmit(ctx, base.Add(32*time.Second))
	if ok {
		t.Fatal("11th call admitted within the window")
	}
}

func TestWindowRollsForward(t *testing.T) {
	w := testWindow()
	ctx := context.Background()
	base := time.Unix(1_700_000_000, 0)

	for i := 0; i < 10; i++ {
		now := base.Add(time.Duration(i) * 3 * time.Second)
		if ok, _ := w.TryAdmit(ctx, now); !ok {
			t.Fatalf("call %d rejected below capacity", i)
		}
	}

	// The first start (at base) leaves the window just after base+60s.
	if ok, _ := w.TryAdmit(ctx, base.Add(59*time.Second)); ok {
		t.Fatal("admitted while window still full")
	}
	if ok, _ := w.TryAdmit(ctx, base.Add(61*time.Second)); !ok {
		t.Fatal("rejected after window rolled forward")
	}
}

func TestMinimumSpacingEnforced(t *testing.T) {
	w := testWindow()
	ctx := context.Background()
	base := time.Unix(1_700_000_000, 0)

	if ok, _ := w.TryAdmit(ctx, base); !ok {
		t.Fatal("first call rejected")
	}
	if ok, _ := w.TryAdmit(ctx, base.Add(1900*time.Millisecond)); ok {
		t.Fatal("admitted inside the minimum spacing")
	}
	if ok, _ := w.TryAdmit(ctx, base.Add(2100*time.Millisecond)); !ok {
		t.Fatal("rejected beyond the minimum spacing")
	}
}

func TestRejectionHasNoSideEffects(t *testing.T) {
	w := testWindow()
	ctx := context.Background()
	base := time.Unix(1_700_000_000, 0)

	if ok, _ := w.TryAdmit(ctx, base); !ok {
		t.Fatal("first call rejected")
	}

	// Probe repeatedly inside the spacing gap; none of these may be
	// recorded, so the call just past the gap still succeeds.
	for i := 0; i < 50; i++ {
		if ok, _ := w.TryAdmit(ctx, base.Add(time.Duration(i)*10*time.Millisecond)); ok && i > 0 {
			t.Fatalf("probe %d admitted inside the gap", i)
		}
	}
	if got := w.InWindow(base.Add(time.Second)); got != 1 {
		t.Fatalf("rejected probes were recorded: %d starts in window", got)
	}
	if ok, _ := w.TryAdmit(ctx, base.Add(2*time.Second)); !ok {
		t.Fatal("rejected after gap despite idempotent probes")
	}
}

// Property from the admission contract: for any call pattern, no trailing
// 60s window ever holds more than capacity admitted starts, and admitted
// starts are never closer than the minimum spacing.
func TestWindowInvariantsUnderBurstyLoad(t *testing.T) {
	w := testWindow()
	ctx := context.Background()
	base := time.Unix(1_700_000_000, 0)

	var admitted []time.Time
	// Probe every 500ms for 5 simulated minutes.
	for step := 0; step < 600; step++ {
		now := base.Add(time.Duration(step) * 500 * time.Millisecond)
		if ok, _ := w.TryAdmit(ctx, now); ok {
			admitted = append(admitted, now)
		}
	}

	for i := 1; i < len(admitted); i++ {
		if admitted[i].Sub(admitted[i-1]) < 2*time.Second {
			t.Fatalf("starts %d and %d closer than 2s", i-1, i)
		}
	}
	for i := range admitted {
		count := 0
		for j := i; j < len(admitted); j++ {
			if admitted[j].Sub(admitted[i]) < time.Minute {
				count++
			}
		}
		if count > 10 {
			t.Fatalf("window starting at %v holds %d starts", admitted[i], count)
		}
	}
}
