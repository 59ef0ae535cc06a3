package retry

import (
	"errors"
	"testing"
	"time"
)

import (
	"github.com/LauraMoney42/derrite-go/internal/config"
	"github.com/LauraMoney42/derrite-go/internal/types"
)

func defaultPolicy() *Policy {
	return NewPolicy(config.RetryCfg{})
}

func TestTransportFailureBackoffCurve(t *testing.T) {
	p := defaultPolicy()
	failure := types.Outcome{Err: errors.New("connection refused")}

	wantDelays := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	for attempt, want := range wantDelays {
		dec := p.Classify(failure, attempt)
		if dec.Terminal {
			t.Fatalf("attempt %d: terminal, want retry", attempt)
		}
		if dec.Delay != want {
			t.Fatalf("attempt %d: delay = %v, want %v", attempt, dec.Delay, want)
		}
	}

	dec := p.Classify(failure, 3)
	if !dec.Terminal || dec.Err == nil {
		t.Fatalf("attempt 3: want terminal error, got %+v", dec)
	}
	if dec.Err.Kind != types.ErrRetriesExhausted {
		t.Fatalf("attempt 3: kind = %s", dec.Err.Kind)
	}
}

func TestRateLimitedBackoffCurve(t *testing.T) {
	p := defaultPolicy()
	limited := types.Outcome{StatusCode: 429}

	wantDelays := []time.Duration{10 * time.Second, 15 * time.Second, 20 * time.Second}
	for attempt, want := range wantDelays {
		dec := p.Classify(limited, attempt)
		if dec.Terminal {
			t.Fatalf("attempt %d: terminal, want retry", attempt)
		}
		if dec.Delay != want {
			t.Fatalf("attempt %d: delay = %v, want %v", attempt, dec.Delay, want)
		}
	}

	dec := p.Classify(limited, 3)
	if !dec.Terminal || dec.Err == nil {
		t.Fatalf("attempt 3: want terminal error, got %+v", dec)
	}
	if dec.Err.Kind != types.ErrRetriesExhausted {
		t.Fatalf("attempt 3: kind = %s", dec.Err.Kind)
	}
	// The exhausted error carries the last underlying message.
	if dec.Err.Message != "rate limit exceeded" {
		t.Fatalf("attempt 3: message = %q", dec.Err.Message)
	}
}

func TestServerErrorsRetryLikeTransportFailures(t *testing.T) {
	p := defaultPolicy()

	for _, status := range []int{500, 502, 503, 599} {
		dec := p.Classify(types.Outcome{StatusCode: status}, 1)
		if dec.Terminal {
			t.Fatalf("status %d: terminal, want retry", status)
		}
		if dec.Delay != 2*time.Second {
			t.Fatalf("status %d: delay = %v, want 2s", status, dec.Delay)
		}
	}
}

func TestSuccessStatusesAreTerminal(t *testing.T) {
	p := defaultPolicy()

	for _, status := range []int{200, 201} {
		dec := p.Classify(types.Outcome{StatusCode: status}, 0)
		if !dec.Terminal || dec.Err != nil {
			t.Fatalf("status %d: got %+v, want terminal success", status, dec)
		}
	}
}

func TestClientErrorsNeverRetry(t *testing.T) {
	p := defaultPolicy()

	for _, status := range []int{400, 401, 403, 404, 418} {
		dec := p.Classify(types.Outcome{StatusCode: status}, 0)
		if !dec.Terminal || dec.Err == nil {
			t.Fatalf("status %d: got %+v, want terminal error", status, dec)
		}
		if dec.Err.Kind != types.ErrClient {
			t.Fatalf("status %d: kind = %s", status, dec.Err.Kind)
		}
	}
}

func TestPinningRejectionIsNeverRetried(t *testing.T) {
	p := defaultPolicy()
	rejected := types.Outcome{
		Err: types.NewCallError(types.ErrPinningRejected, "no pinned key matched"),
	}

	// Even with the whole retry budget remaining.
	dec := p.Classify(rejected, 0)
	if !dec.Terminal || dec.Err == nil {
		t.Fatalf("want terminal error, got %+v", dec)
	}
	if dec.Err.Kind != types.ErrPinningRejected {
		t.Fatalf("kind = %s", dec.Err.Kind)
	}
}

func TestExhaustedErrorCarriesUnderlyingCause(t *testing.T) {
	p := defaultPolicy()
	cause := errors.New("dial tcp: i/o timeout")

	dec := p.Classify(types.Outcome{Err: cause}, 3)
	if !dec.Terminal || dec.Err == nil {
		t.Fatalf("want terminal error, got %+v", dec)
	}
	if !errors.Is(dec.Err, cause) {
		t.Fatalf("exhausted error does not wrap the cause: %v", dec.Err)
	}
}
