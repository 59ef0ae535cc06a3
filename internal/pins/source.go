// Package pins pulls a versioned pin table from an external source and
// applies it to the pinning registry, so key rotations reach running
// clients without a redeploy.
package pins

import (
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

import (
	"gopkg.in/yaml.v3"
)

import (
	"github.com/LauraMoney42/derrite-go/internal/config"
)

// Table is a normalized pin set fetched from an external source.
type Table struct {
	Version string
	Hosts   []config.HostPins
}

// Source fetches the pin table from an external system.
type Source interface {
	Fetch(ctx context.Context) (Table, error)
}

// HTTPSource pulls the pin table from a config endpoint over HTTP.
// The payload is YAML (JSON parses as a YAML subset):
//
//	version: "2024-06-01"
//	hosts:
//	  - host: api.derrite.app
//	    hashes: ["sha256/..."]
//	    failureThreshold: 5
//	    fallbackAllowed: true
type HTTPSource struct {
	cfg    config.PinSourceCfg
	client *http.Client
}

func NewHTTPSource(cfg config.PinSourceCfg) *HTTPSource {
	return &HTTPSource{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout()},
	}
}

type tablePayload struct {
	Version string            `yaml:"version"`
	Hosts   []config.HostPins `yaml:"hosts"`
}

func (s *HTTPSource) Fetch(ctx context.Context) (Table, error) {
	if !s.cfg.Enabled() {
		return Table{}, errors.New("pin source is disabled")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.URL, nil)
	if err != nil {
		return Table{}, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return Table{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Table{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return Table{}, fmt.Errorf("pin source fetch failed: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	version := resp.Header.Get("Content-MD5")
	if version == "" {
		sum := md5.Sum(body)
		version = fmt.Sprintf("%x", sum[:])
	}

	var payload tablePayload
	if err := yaml.Unmarshal(body, &payload); err != nil {
		return Table{}, fmt.Errorf("pin source payload invalid: %w", err)
	}
	if payload.Version != "" {
		version = payload.Version
	}

	return Table{Version: version, Hosts: payload.Hosts}, nil
}

// interval guard shared with the poller
func pollIntervalOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Minute
	}
	return d
}
