package config

import (
	"os"
	"time"
)

import (
	"gopkg.in/yaml.v3"
)

// ClientCfg — target API and request behavior.
type ClientCfg struct {
	BaseURL          string `yaml:"baseURL"`          // e.g. "https://api.derrite.app"
	RequestTimeoutMs int    `yaml:"requestTimeoutMs"` // per-attempt timeout (ms)
	UserAgent        string `yaml:"userAgent"`        // neutral UA sent on every request
}

func (c ClientCfg) RequestTimeout() time.Duration {
	return durationOrDefault(c.RequestTimeoutMs, 30_000)
}

// AdmissionCfg — client-side rate limiting of call starts.
type AdmissionCfg struct {
	Backend      string `yaml:"backend"`      // "memory" (default) | "redis"
	Capacity     int    `yaml:"capacity"`     // max call starts per window
	WindowMs     int64  `yaml:"windowMs"`     // rolling window (ms)
	MinSpacingMs int64  `yaml:"minSpacingMs"` // min gap between admitted starts (ms)
	PollDelayMs  int64  `yaml:"pollDelayMs"`  // re-check delay after a rejection (ms)
}

func (c AdmissionCfg) CapacityOrDefault() int {
	if c.Capacity <= 0 {
		return 10
	}
	return c.Capacity
}

func (c AdmissionCfg) Window() time.Duration {
	return durationOrDefault64(c.WindowMs, 60_000)
}

func (c AdmissionCfg) MinSpacing() time.Duration {
	return durationOrDefault64(c.MinSpacingMs, 2_000)
}

func (c AdmissionCfg) PollDelay() time.Duration {
	return durationOrDefault64(c.PollDelayMs, 5_000)
}

// RetryCfg — retry budget and backoff curves. Transport and 5xx failures
// back off exponentially from InitialDelayMs; 429 backs off linearly from
// RateLimitBaseMs in RateLimitStepMs increments. The asymmetry is intentional.
type RetryCfg struct {
	MaxRetries      int   `yaml:"maxRetries"`
	InitialDelayMs  int64 `yaml:"initialDelayMs"`
	RateLimitBaseMs int64 `yaml:"rateLimitBaseMs"`
	RateLimitStepMs int64 `yaml:"rateLimitStepMs"`
}

func (c RetryCfg) MaxRetriesOrDefault() int {
	if c.MaxRetries <= 0 {
		return 3
	}
	return c.MaxRetries
}

func (c RetryCfg) InitialDelay() time.Duration {
	return durationOrDefault64(c.InitialDelayMs, 1_000)
}

func (c RetryCfg) RateLimitBase() time.Duration {
	return durationOrDefault64(c.RateLimitBaseMs, 10_000)
}

func (c RetryCfg) RateLimitStep() time.Duration {
	return durationOrDefault64(c.RateLimitStepMs, 5_000)
}

// QueueCfg — drain loop pacing.
type QueueCfg struct {
	InterCallDelayMs int64 `yaml:"interCallDelayMs"` // cool-down after a terminal outcome (ms)
}

func (c QueueCfg) InterCallDelay() time.Duration {
	return durationOrDefault64(c.InterCallDelayMs, 2_000)
}

// HostPins — pinned fingerprints for one host.
type HostPins struct {
	Host             string   `yaml:"host"             json:"host"`
	Hashes           []string `yaml:"hashes"           json:"hashes"` // "sha256/<base64>"
	FailureThreshold int      `yaml:"failureThreshold" json:"failureThreshold"`
	FallbackAllowed  bool     `yaml:"fallbackAllowed"  json:"fallbackAllowed"`
}

// PinningCfg — startup pin table and global enablement.
type PinningCfg struct {
	Enabled bool       `yaml:"enabled"`
	Hosts   []HostPins `yaml:"hosts"`
}

// PinSourceCfg — optional remote pin table pulled over HTTP.
type PinSourceCfg struct {
	URL            string `yaml:"url"`
	PollIntervalMs int    `yaml:"pollIntervalMs"` // default 60000
	TimeoutMs      int    `yaml:"timeoutMs"`      // default 2000
	FailPolicy     string `yaml:"failPolicy"`     // fail-open (keep last-good) | fail-closed (clear pins)
}

func (c PinSourceCfg) Enabled() bool {
	return c.URL != ""
}

func (c PinSourceCfg) PollInterval() time.Duration {
	return durationOrDefault(c.PollIntervalMs, 60_000)
}

func (c PinSourceCfg) Timeout() time.Duration {
	return durationOrDefault(c.TimeoutMs, 2_000)
}

// BreakerCfg — optional per-host circuit breaker around the transport.
type BreakerCfg struct {
	Enabled             bool    `yaml:"enabled"`
	IntervalMs          int64   `yaml:"intervalMs"`          // counter reset interval (ms)
	OpenTimeoutMs       int64   `yaml:"openTimeoutMs"`       // open -> half-open (ms)
	MinRequests         int     `yaml:"minRequests"`         // min samples before ratio trips
	FailureRatio        float64 `yaml:"failureRatio"`        // trip when failures/total >= ratio
	ConsecutiveFailures int     `yaml:"consecutiveFailures"` // trip on this many in a row
}

func (c BreakerCfg) Interval() time.Duration {
	return durationOrDefault64(c.IntervalMs, 30_000)
}

func (c BreakerCfg) OpenTimeout() time.Duration {
	return durationOrDefault64(c.OpenTimeoutMs, 10_000)
}

func (c BreakerCfg) MinRequestsOrDefault() int {
	if c.MinRequests <= 0 {
		return 5
	}
	return c.MinRequests
}

func (c BreakerCfg) FailureRatioOrDefault() float64 {
	if c.FailureRatio <= 0 || c.FailureRatio > 1 {
		return 0.5
	}
	return c.FailureRatio
}

func (c BreakerCfg) ConsecutiveFailuresOrDefault() int {
	if c.ConsecutiveFailures <= 0 {
		return 5
	}
	return c.ConsecutiveFailures
}

// RedisCfg — connection settings for the shared admission backend.
type RedisCfg struct {
	Addr           string `yaml:"addr"`
	Password       string `yaml:"password"`
	DB             int    `yaml:"db"`
	Prefix         string `yaml:"prefix"`
	DialTimeoutMs  int    `yaml:"dialTimeoutMs"`
	ReadTimeoutMs  int    `yaml:"readTimeoutMs"`
	WriteTimeoutMs int    `yaml:"writeTimeoutMs"`
	PoolSize       int    `yaml:"poolSize"`
}

// OpsCfg — operator HTTP surface (pin rotation, stats).
type OpsCfg struct {
	HTTPAddr string `yaml:"httpAddr"` // empty disables the ops server
}

// Config — full client configuration.
type Config struct {
	Client    ClientCfg    `yaml:"client"`
	Admission AdmissionCfg `yaml:"admission"`
	Retry     RetryCfg     `yaml:"retry"`
	Queue     QueueCfg     `yaml:"queue"`
	Pinning   PinningCfg   `yaml:"pinning"`
	PinSource PinSourceCfg `yaml:"pinSource"`
	Breaker   BreakerCfg   `yaml:"breaker"`
	Redis     RedisCfg     `yaml:"redis"`
	Ops       OpsCfg       `yaml:"ops"`
}

// Load reads a YAML config file, expanding ${ENV} references first.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	expanded := os.ExpandEnv(string(b))
	var c Config
	if err := yaml.Unmarshal([]byte(expanded), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func durationOrDefault(ms int, defMs int) time.Duration {
	if ms <= 0 {
		ms = defMs
	}
	return time.Duration(ms) * time.Millisecond
}

func durationOrDefault64(ms int64, defMs int64) time.Duration {
	if ms <= 0 {
		ms = defMs
	}
	return time.Duration(ms) * time.Millisecond
}
