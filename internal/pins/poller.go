package pins

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

import (
	"github.com/LauraMoney42/derrite-go/internal/config"
)

// Applier is the slice of the pinning registry the poller needs.
type Applier interface {
	ReplaceAll(hosts []config.HostPins) error
}

// PollerConfig controls the pull loop behavior.
type PollerConfig struct {
	Interval   time.Duration
	FailPolicy string // fail-open (keep last-good pins) | fail-closed (clear pins)
}

// Poller periodically pulls the pin table and applies it to the registry.
type Poller struct {
	source     Source
	registry   Applier
	interval   time.Duration
	failPolicy string
	lastVer    string
	log        *slog.Logger
	mu         sync.Mutex
}

func NewPoller(src Source, registry Applier, cfg PollerConfig) *Poller {
	return &Poller{
		source:     src,
		registry:   registry,
		interval:   pollIntervalOrDefault(cfg.Interval),
		failPolicy: strings.ToLower(strings.TrimSpace(cfg.FailPolicy)),
		log:        slog.Default(),
	}
}

// SyncOnce pulls the pin table once and applies it.
func (p *Poller) SyncOnce(ctx context.Context) error {
	_, err := p.pull(ctx)
	return err
}

// Start runs the polling loop until ctx is done.
func (p *Poller) Start(ctx context.Context) {
	if _, err := p.pull(ctx); err != nil {
		p.log.Warn("pin source pull failed on startup", "error", err)
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.pull(ctx); err != nil {
				p.log.Warn("pin source pull failed", "error", err)
			}
		}
	}
}

func (p *Poller) pull(ctx context.Context) (bool, error) {
	table, err := p.source.Fetch(ctx)
	if err != nil {
		p.handleFailure()
		return false, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if table.Version != "" && table.Version == p.lastVer {
		return false, nil
	}

	if err := p.registry.ReplaceAll(table.Hosts); err != nil {
		// A table with ill-formed hashes is rejected wholesale; last-good
		// pins stay in force.
		return false, err
	}
	p.lastVer = table.Version
	p.log.Info("pin table updated", "version", table.Version, "hosts", len(table.Hosts))
	return true, nil
}

func (p *Poller) handleFailure() {
	if p.failPolicy != "fail-closed" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	_ = p.registry.ReplaceAll(nil)
	// Forget the last applied version: the registry no longer holds it, so
	// the next successful pull must re-apply even an unchanged table.
	p.lastVer = ""
}
