package pinning

import (
	"fmt"
	"sort"
	"sync"
)

import (
	"github.com/LauraMoney42/derrite-go/internal/config"
	"github.com/LauraMoney42/derrite-go/internal/rcu"
)

// hostPins is the live pin state for one host. The hash set is immutable
// once published; the failure counter is guarded by its own mutex so that
// concurrent handshakes to the same host never interleave the
// read-modify-write.
type hostPins struct {
	hashes           map[string]struct{}
	failureThreshold int
	fallbackAllowed  bool

	mu           sync.Mutex
	failureCount int
}

// pinTable maps host -> pins. Published through an RCU snapshot so rotation
// swaps the whole table without blocking in-flight handshakes.
type pinTable struct {
	hosts map[string]*hostPins
}

// HostStatus is a read-only view of one host's pin state, for the ops surface.
type HostStatus struct {
	Host             string   `json:"host"`
	Hashes           []string `json:"hashes"`
	FailureCount     int      `json:"failureCount"`
	FailureThreshold int      `json:"failureThreshold"`
	FallbackAllowed  bool     `json:"fallbackAllowed"`
}

// Registry holds the per-host pin sets and the global enablement flag.
// It is process-wide configuration: the validator mutates failure counters,
// rotation replaces hash sets, nothing else touches it.
type Registry struct {
	enabled bool
	snap    *rcu.Snapshot[pinTable]

	// serializes writers (rotation, poller); readers go through the snapshot
	writeMu sync.Mutex
}

// NewRegistry builds a Registry from the startup pin table. Ill-formed hash
// strings are a configuration error.
func NewRegistry(cfg config.PinningCfg) (*Registry, error) {
	hosts := make(map[string]*hostPins, len(cfg.Hosts))
	for _, h := range cfg.Hosts {
		hp, err := newHostPins(h)
		if err != nil {
			return nil, err
		}
		hosts[h.Host] = hp
	}
	return &Registry{
		enabled: cfg.Enabled,
		snap:    rcu.NewSnapshot(&pinTable{hosts: hosts}),
	}, nil
}

func newHostPins(h config.HostPins) (*hostPins, error) {
	if h.Host == "" {
		return nil, fmt.Errorf("pinning: host entry with empty host")
	}
	if len(h.Hashes) == 0 {
		return nil, fmt.Errorf("pinning: host %s has no hashes", h.Host)
	}
	hashes := make(map[string]struct{}, len(h.Hashes))
	for _, s := range h.Hashes {
		if !WellFormed(s) {
			return nil, fmt.Errorf("pinning: host %s has ill-formed hash %q", h.Host, s)
		}
		hashes[s] = struct{}{}
	}
	threshold := h.FailureThreshold
	if threshold <= 0 {
		threshold = 5
	}
	return &hostPins{
		hashes:           hashes,
		failureThreshold: threshold,
		fallbackAllowed:  h.FallbackAllowed,
	}, nil
}

// Enabled reports the global enforcement flag.
func (r *Registry) Enabled() bool {
	return r.enabled
}

// lookup returns the live pin state for host, or nil when the host is unpinned.
func (r *Registry) lookup(host string) *hostPins {
	return r.snap.Load().hosts[host]
}

// UpdateHashes atomically replaces a host's hash set, creating the entry if
// absent. The failure counter starts fresh: a rotated set is a new trust
// decision. Threshold and fallback mode of an existing entry are preserved.
func (r *Registry) UpdateHashes(host string, hashes []string) error {
	if host == "" {
		return fmt.Errorf("pinning: empty host")
	}
	if len(hashes) == 0 {
		return fmt.Errorf("pinning: empty hash set for %s", host)
	}
	set := make(map[string]struct{}, len(hashes))
	for _, s := range hashes {
		if !WellFormed(s) {
			return fmt.Errorf("pinning: ill-formed hash %q", s)
		}
		set[s] = struct{}{}
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	cur := r.snap.Load()
	next := &pinTable{hosts: make(map[string]*hostPins, len(cur.hosts)+1)}
	for h, hp := range cur.hosts {
		next.hosts[h] = hp
	}

	threshold, fallback := 5, false
	if prev, ok := cur.hosts[host]; ok {
		threshold, fallback = prev.failureThreshold, prev.fallbackAllowed
	}
	next.hosts[host] = &hostPins{
		hashes:           set,
		failureThreshold: threshold,
		fallbackAllowed:  fallback,
	}
	r.snap.Replace(next)
	return nil
}

// ResetFailureCount clears a host's breaker, resuming pin enforcement.
func (r *Registry) ResetFailureCount(host string) {
	hp := r.lookup(host)
	if hp == nil {
		return
	}
	hp.mu.Lock()
	hp.failureCount = 0
	hp.mu.Unlock()
}

// ReplaceAll swaps in a whole new pin table (used by the remote pin source).
// Failure counters start fresh for every host.
func (r *Registry) ReplaceAll(hosts []config.HostPins) error {
	next := &pinTable{hosts: make(map[string]*hostPins, len(hosts))}
	for _, h := range hosts {
		hp, err := newHostPins(h)
		if err != nil {
			return err
		}
		next.hosts[h.Host] = hp
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	r.snap.Replace(next)
	return nil
}

// Hosts returns a sorted read-only view of the pin table.
func (r *Registry) Hosts() []HostStatus {
	tbl := r.snap.Load()
	out := make([]HostStatus, 0, len(tbl.hosts))
	for host, hp := range tbl.hosts {
		hashes := make([]string, 0, len(hp.hashes))
		for h := range hp.hashes {
			hashes = append(hashes, h)
		}
		sort.Strings(hashes)

		hp.mu.Lock()
		count := hp.failureCount
		hp.mu.Unlock()

		out = append(out, HostStatus{
			Host:             host,
			Hashes:           hashes,
			FailureCount:     count,
			FailureThreshold: hp.failureThreshold,
			FallbackAllowed:  hp.fallbackAllowed,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Host < out[j].Host })
	return out
}
