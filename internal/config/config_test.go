package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFullConfig(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "client.yaml")

	data := []byte(`
client:
  baseURL: "https://api.derrite.app"
  requestTimeoutMs: 15000
  userAgent: "derrite/1.0"
admission:
  backend: "memory"
  capacity: 10
  windowMs: 60000
  minSpacingMs: 2000
  pollDelayMs: 5000
retry:
  maxRetries: 3
  initialDelayMs: 1000
  rateLimitBaseMs: 10000
  rateLimitStepMs: 5000
queue:
  interCallDelayMs: 2000
pinning:
  enabled: true
  hosts:
    - host: "api.derrite.app"
      hashes:
        - "sha256/AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA="
      failureThreshold: 5
      fallbackAllowed: true
pinSource:
  url: "https://config.derrite.app/pins"
  pollIntervalMs: 30000
  failPolicy: "fail-open"
ops:
  httpAddr: ":9090"
`)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Client.BaseURL != "https://api.derrite.app" {
		t.Fatalf("client.baseURL = %q", cfg.Client.BaseURL)
	}
	if cfg.Admission.CapacityOrDefault() != 10 || cfg.Admission.Window() != time.Minute {
		t.Fatalf("admission not parsed: %+v", cfg.Admission)
	}
	if !cfg.Pinning.Enabled || len(cfg.Pinning.Hosts) != 1 {
		t.Fatalf("pinning not parsed: %+v", cfg.Pinning)
	}
	host := cfg.Pinning.Hosts[0]
	if host.Host != "api.derrite.app" || len(host.Hashes) != 1 || !host.FallbackAllowed {
		t.Fatalf("host pins not parsed: %+v", host)
	}
	if !cfg.PinSource.Enabled() || cfg.PinSource.PollInterval() != 30*time.Second {
		t.Fatalf("pinSource not parsed: %+v", cfg.PinSource)
	}
	if cfg.Ops.HTTPAddr != ":9090" {
		t.Fatalf("ops.httpAddr = %q", cfg.Ops.HTTPAddr)
	}
}

func TestDefaultsApplyWhenUnset(t *testing.T) {
	var cfg Config

	if cfg.Admission.CapacityOrDefault() != 10 {
		t.Fatalf("default capacity = %d", cfg.Admission.CapacityOrDefault())
	}
	if cfg.Admission.Window() != time.Minute {
		t.Fatalf("default window = %v", cfg.Admission.Window())
	}
	if cfg.Admission.MinSpacing() != 2*time.Second {
		t.Fatalf("default min spacing = %v", cfg.Admission.MinSpacing())
	}
	if cfg.Admission.PollDelay() != 5*time.Second {
		t.Fatalf("default poll delay = %v", cfg.Admission.PollDelay())
	}
	if cfg.Retry.MaxRetriesOrDefault() != 3 {
		t.Fatalf("default max retries = %d", cfg.Retry.MaxRetriesOrDefault())
	}
	if cfg.Retry.InitialDelay() != time.Second {
		t.Fatalf("default initial delay = %v", cfg.Retry.InitialDelay())
	}
	if cfg.Retry.RateLimitBase() != 10*time.Second || cfg.Retry.RateLimitStep() != 5*time.Second {
		t.Fatalf("default rate-limit curve = %v/%v", cfg.Retry.RateLimitBase(), cfg.Retry.RateLimitStep())
	}
	if cfg.Queue.InterCallDelay() != 2*time.Second {
		t.Fatalf("default inter-call delay = %v", cfg.Queue.InterCallDelay())
	}
	if cfg.Client.RequestTimeout() != 30*time.Second {
		t.Fatalf("default request timeout = %v", cfg.Client.RequestTimeout())
	}
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("DERRITE_BASE_URL", "https://staging.derrite.app")
	t.Setenv("DERRITE_REDIS_PASS", "s3cret")

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "client.yaml")
	data := []byte(`
client:
  baseURL: "${DERRITE_BASE_URL}"
redis:
  addr: "127.0.0.1:6379"
  password: "${DERRITE_REDIS_PASS}"
`)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Client.BaseURL != "https://staging.derrite.app" {
		t.Fatalf("env not expanded: %q", cfg.Client.BaseURL)
	}
	if cfg.Redis.Password != "s3cret" {
		t.Fatalf("env not expanded: %q", cfg.Redis.Password)
	}
}
