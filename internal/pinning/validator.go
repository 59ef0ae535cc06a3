package pinning

import (
	"crypto/x509"
	"log/slog"
)

// Verdict is the validator's decision on a TLS handshake.
type Verdict int

const (
	// Accept: a presented public key matched a configured pin.
	Accept Verdict = iota
	// AcceptWithoutPinning: no pin check applies (or fallback engaged);
	// the connection still rests on standard chain-of-trust validation.
	AcceptWithoutPinning
	// Reject: pins configured, none matched, fallback not allowed.
	Reject
)

func (v Verdict) String() string {
	switch v {
	case Accept:
		return "accept"
	case AcceptWithoutPinning:
		return "accept_without_pinning"
	case Reject:
		return "reject"
	default:
		return "unknown"
	}
}

// Validator decides whether to trust a peer certificate chain for a host.
// It runs synchronously inside the TLS handshake, before any response bytes
// are released.
type Validator struct {
	reg *Registry
	log *slog.Logger
}

// NewValidator wires a Validator to the registry.
func NewValidator(reg *Registry, logger *slog.Logger) *Validator {
	if reg == nil {
		panic("pinning: nil registry")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{reg: reg, log: logger}
}

// Validate checks the presented chain against the host's pins.
//
// AcceptWithoutPinning means only that the extra pin check is skipped;
// standard certificate validation has already run (or must still run) on
// the connection. The failure counter is the per-host breaker: repeated
// mismatches suspend enforcement until an operator resets it.
func (v *Validator) Validate(host string, chain []*x509.Certificate) Verdict {
	if !v.reg.Enabled() {
		return AcceptWithoutPinning
	}
	hp := v.reg.lookup(host)
	if hp == nil {
		return AcceptWithoutPinning
	}

	hp.mu.Lock()
	defer hp.mu.Unlock()

	if hp.failureCount >= hp.failureThreshold {
		v.log.Warn("pin enforcement suspended, breaker tripped",
			"host", host, "failures", hp.failureCount)
		return AcceptWithoutPinning
	}

	for _, fp := range ChainFingerprints(chain) {
		if _, ok := hp.hashes[fp]; ok {
			hp.failureCount = 0
			return Accept
		}
	}

	hp.failureCount++
	if hp.fallbackAllowed {
		v.log.Warn("pin mismatch, falling back to standard TLS trust",
			"host", host, "failures", hp.failureCount, "threshold", hp.failureThreshold)
		return AcceptWithoutPinning
	}
	v.log.Error("pin mismatch, rejecting handshake",
		"host", host, "failures", hp.failureCount)
	return Reject
}
