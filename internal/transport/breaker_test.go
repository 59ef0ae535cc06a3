package transport

import (
	"context"
	"strings"
	"testing"
)

import (
	"github.com/LauraMoney42/derrite-go/internal/config"
	"github.com/LauraMoney42/derrite-go/internal/types"
)

type scriptedExecutor struct {
	calls    int
	outcomes []types.Outcome
}

func (s *scriptedExecutor) Execute(ctx context.Context, p types.Payload) types.Outcome {
	out := s.outcomes[s.calls%len(s.outcomes)]
	s.calls++
	return out
}

func breakerCfg() config.BreakerCfg {
	return config.BreakerCfg{
		Enabled:             true,
		ConsecutiveFailures: 3,
		MinRequests:         100, // keep the ratio path out of these tests
		OpenTimeoutMs:       60_000,
		IntervalMs:          60_000,
	}
}

func TestBreakerPassesOutcomesThrough(t *testing.T) {
	inner := &scriptedExecutor{outcomes: []types.Outcome{
		{StatusCode: 200, Body: []byte("ok")},
		{StatusCode: 503},
		{Err: types.NewCallError(types.ErrTransport, "connection refused")},
	}}
	b := NewBreakerExecutor(inner, breakerCfg(), nil)
	p := types.Payload{Method: "GET", URL: "https://api.derrite.app/v1/reports"}

	out := b.Execute(context.Background(), p)
	if out.StatusCode != 200 || string(out.Body) != "ok" {
		t.Fatalf("success outcome mangled: %+v", out)
	}

	out = b.Execute(context.Background(), p)
	if out.StatusCode != 503 || out.Err != nil {
		t.Fatalf("5xx outcome mangled: %+v", out)
	}

	out = b.Execute(context.Background(), p)
	kind, _ := types.KindOf(out.Err)
	if kind != types.ErrTransport {
		t.Fatalf("transport outcome mangled: %+v", out)
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	inner := &scriptedExecutor{outcomes: []types.Outcome{
		{Err: types.NewCallError(types.ErrTransport, "connection refused")},
	}}
	b := NewBreakerExecutor(inner, breakerCfg(), nil)
	p := types.Payload{Method: "GET", URL: "https://api.derrite.app/v1/reports"}

	for i := 0; i < 3; i++ {
		b.Execute(context.Background(), p)
	}
	if inner.calls != 3 {
		t.Fatalf("inner calls = %d, want 3", inner.calls)
	}

	out := b.Execute(context.Background(), p)
	if inner.calls != 3 {
		t.Fatalf("open breaker still reached inner executor, calls = %d", inner.calls)
	}
	kind, ok := types.KindOf(out.Err)
	if !ok || kind != types.ErrTransport {
		t.Fatalf("short-circuit kind = %v, want %v", kind, types.ErrTransport)
	}
	if !strings.Contains(out.Err.Error(), "circuit breaker open") {
		t.Fatalf("short-circuit error = %v", out.Err)
	}
}

func TestBreakerIsolatesHosts(t *testing.T) {
	inner := &scriptedExecutor{outcomes: []types.Outcome{
		{Err: types.NewCallError(types.ErrTransport, "connection refused")},
	}}
	b := NewBreakerExecutor(inner, breakerCfg(), nil)

	bad := types.Payload{Method: "GET", URL: "https://down.derrite.app/v1/reports"}
	for i := 0; i < 4; i++ {
		b.Execute(context.Background(), bad)
	}
	callsAfterBad := inner.calls

	good := types.Payload{Method: "GET", URL: "https://api.derrite.app/v1/reports"}
	b.Execute(context.Background(), good)
	if inner.calls != callsAfterBad+1 {
		t.Fatal("healthy host blocked by another host's open breaker")
	}
}
