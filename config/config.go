// Package config enumerates the decision orchestration core's
// configuration surface (spec §6.7) as a plain Go struct. decisioncore
// itself never reads a config file — that stays a host responsibility per
// the spec's Non-goals — but the struct carries yaml tags so a host can
// unmarshal a document into it with gopkg.in/yaml.v3, the same way the
// teacher's own config types do.
package config

import "time"

// Config is the full enumerated configuration surface (spec §6.7). Every
// field has a spec-stated default, applied by Default() or by the
// individual component constructors when a zero value is passed through.
type Config struct {
	Reasoning ReasoningConfig `yaml:"reasoning"`
	Dedup     DedupConfig     `yaml:"dedup"`
	Cooldown  CooldownConfig  `yaml:"cooldown"`
	Policy    PolicyConfig    `yaml:"policy"`
	DLQ       DLQConfig       `yaml:"dlq"`
	Notifier  NotifierConfig  `yaml:"notifier"`

	// NotifyLevel is the coarse filter for channel dispatch (spec §6.7):
	// info, warn, or all.
	NotifyLevel string `yaml:"notify_level"`
	// MinWarnConfidence is the threshold for promoting a decision to a
	// channel whose filter is "warn" (spec §6.7).
	MinWarnConfidence float64 `yaml:"min_warn_confidence"`
}

// ReasoningConfig configures the reasoning invoker (C6).
type ReasoningConfig struct {
	// TimeoutMs is the per-call upper bound (default 500, max 5000).
	TimeoutMs int64 `yaml:"timeout_ms"`
	// DefaultMode is used when an event carries no reasoning mode hint.
	DefaultMode string `yaml:"default_mode"`
}

// DedupConfig configures the deduplication cache (C2).
type DedupConfig struct {
	TTLMs      int64 `yaml:"ttl_ms"`
	MaxEntries int   `yaml:"max_entries"`
}

// CooldownConfig configures the cooldown manager (C3).
type CooldownConfig struct {
	// DefaultMs is the fallback cooldown applied when the policy store is
	// silent on a given event type.
	DefaultMs int64 `yaml:"default_ms"`
}

// PolicyConfig configures the policy store (C5) and its circuit breaker.
type PolicyConfig struct {
	CacheTTLMs      int64               `yaml:"cache_ttl_ms"`
	RemoteTimeoutMs int64               `yaml:"remote_timeout_ms"`
	Circuit         PolicyCircuitConfig `yaml:"circuit"`
}

// PolicyCircuitConfig configures the circuit breaker wrapping the remote
// policy backend.
type PolicyCircuitConfig struct {
	FailureThreshold uint32 `yaml:"failure_threshold"`
	CoolOffMs        int64  `yaml:"cool_off_ms"`
}

// DLQConfig configures the dead-letter queue (C9).
type DLQConfig struct {
	MaxSize           int     `yaml:"max_size"`
	MaxAttempts       int     `yaml:"max_attempts"`
	BackoffBaseMs     int64   `yaml:"backoff_base_ms"`
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`
	BackoffMaxMs      int64   `yaml:"backoff_max_ms"`
}

// NotifierConfig configures the notification fanout (C10).
type NotifierConfig struct {
	MaxConcurrency    int64   `yaml:"max_concurrency"`
	TimeoutMs         int64   `yaml:"timeout_ms"`
	Retries           int     `yaml:"retries"`
	BackoffBaseMs     int64   `yaml:"backoff_base_ms"`
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`
	// PacingRPS and PacingBurst bound the steady-state and burst rate of
	// outbound requests to any single channel, independent of
	// MaxConcurrency.
	PacingRPS   float64 `yaml:"pacing_rps"`
	PacingBurst int     `yaml:"pacing_burst"`
}

// Default returns a Config populated with every spec-stated default value
// (spec §4.2-§4.10, §6.7).
func Default() Config {
	return Config{
		Reasoning: ReasoningConfig{
			TimeoutMs:   500,
			DefaultMode: "",
		},
		Dedup: DedupConfig{
			TTLMs:      60_000,
			MaxEntries: 100_000,
		},
		Cooldown: CooldownConfig{
			DefaultMs: 0,
		},
		Policy: PolicyConfig{
			CacheTTLMs:      30_000,
			RemoteTimeoutMs: 5_000,
			Circuit: PolicyCircuitConfig{
				FailureThreshold: 5,
				CoolOffMs:        60_000,
			},
		},
		DLQ: DLQConfig{
			MaxSize:           10_000,
			MaxAttempts:       10,
			BackoffBaseMs:     1_000,
			BackoffMultiplier: 2.0,
			BackoffMaxMs:      60_000,
		},
		Notifier: NotifierConfig{
			MaxConcurrency:    10,
			TimeoutMs:         30_000,
			Retries:           3,
			BackoffBaseMs:     1_000,
			BackoffMultiplier: 2.0,
			PacingRPS:         20.0,
			PacingBurst:       20,
		},
		NotifyLevel:       "all",
		MinWarnConfidence: 0,
	}
}

// Timeout returns the configured reasoning timeout as a time.Duration. Zero
// or negative values are passed through unchanged; reasoning.Invoker.Reason
// replaces them with reasoning.DefaultTimeout.
func (c ReasoningConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}
