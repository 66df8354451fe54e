package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// PolicyConfig holds provider profiles and routing/consensus policy.
type PolicyConfig struct {
	Providers       map[string]ProviderProfile `yaml:"providers"`
	DefaultProvider string                     `yaml:"default_provider"`
	Consensus       ConsensusPolicy            `yaml:"consensus,omitempty"`
	Retry           RetryConfig                `yaml:"retry,omitempty"`
	Pricing         PricingConfig              `yaml:"pricing,omitempty"`
	Timeouts        TimeoutConfig              `yaml:"timeouts,omitempty"`
}

// ProviderProfile describes one configured upstream provider.
type ProviderProfile struct {
	Specialties   []string `yaml:"specialties"`
	QualityWeight float64  `yaml:"quality_weight"`
	Model         string   `yaml:"model"`
	AvgLatencyMs  int      `yaml:"avg_latency_ms,omitempty"`
}

// ConsensusPolicy sets the defaults for consensus invocations.
type ConsensusPolicy struct {
	Algorithm          string  `yaml:"algorithm,omitempty"`
	MinimumAgreement   float64 `yaml:"minimum_agreement,omitempty"`
	ConflictResolution string  `yaml:"conflict_resolution,omitempty"`
}

// RetryConfig defines retry and backoff behavior for sequential calls.
type RetryConfig struct {
	MaxRetries    int `yaml:"max_retries,omitempty"`
	BaseBackoffMs int `yaml:"base_backoff_ms,omitempty"`
	MaxBackoffMs  int `yaml:"max_backoff_ms,omitempty"`
}

// TimeoutConfig holds per-provider and whole-request timeouts.
type TimeoutConfig struct {
	ProviderTimeoutMs  int `yaml:"provider_timeout_ms,omitempty"`
	ConsensusTimeoutMs int `yaml:"consensus_timeout_ms,omitempty"`
}

// ProviderTimeout returns the per-provider call timeout.
func (t TimeoutConfig) ProviderTimeout() time.Duration {
	if t.ProviderTimeoutMs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(t.ProviderTimeoutMs) * time.Millisecond
}

// ConsensusTimeout returns the whole-request timeout covering classification,
// routing, execution, and reconciliation.
func (t TimeoutConfig) ConsensusTimeout() time.Duration {
	if t.ConsensusTimeoutMs <= 0 {
		return 60 * time.Second
	}
	return time.Duration(t.ConsensusTimeoutMs) * time.Millisecond
}

// PricingConfig maps provider -> model -> pricing.
type PricingConfig map[string]map[string]ModelPricing

// ModelPricing defines per-1k token pricing.
type ModelPricing struct {
	PromptPer1K     float64 `yaml:"prompt_per_1k,omitempty"`
	CompletionPer1K float64 `yaml:"completion_per_1k,omitempty"`
}

// LoadPolicyConfig reads policy configuration from a YAML file.
func LoadPolicyConfig(path string) (*PolicyConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg PolicyConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyPolicyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultPolicyConfig returns the default policy configuration.
func DefaultPolicyConfig() *PolicyConfig {
	cfg := &PolicyConfig{
		Providers: map[string]ProviderProfile{
			"anthropic": {
				Specialties:   []string{"code", "refactor", "debug", "architecture", "security"},
				QualityWeight: 1.0,
				Model:         "claude-sonnet-4-20250514",
				AvgLatencyMs:  2500,
			},
			"openai": {
				Specialties:   []string{"reasoning", "math", "plan", "summarize"},
				QualityWeight: 0.95,
				Model:         "gpt-5.2-thinking",
				AvgLatencyMs:  2000,
			},
			"google": {
				Specialties:   []string{"research", "search", "compare", "long context"},
				QualityWeight: 0.9,
				Model:         "gemini-2.0-pro",
				AvgLatencyMs:  1800,
			},
		},
		DefaultProvider: "anthropic",
	}
	applyPolicyDefaults(cfg)
	return cfg
}

func applyPolicyDefaults(cfg *PolicyConfig) {
	if cfg.Consensus.Algorithm == "" {
		cfg.Consensus.Algorithm = "weighted-voting"
	}
	if cfg.Consensus.MinimumAgreement <= 0 {
		cfg.Consensus.MinimumAgreement = 0.66
	}
	if cfg.Consensus.ConflictResolution == "" {
		cfg.Consensus.ConflictResolution = "majority"
	}
	if cfg.Retry.MaxRetries <= 0 {
		cfg.Retry.MaxRetries = 2
	}
	if cfg.Retry.BaseBackoffMs <= 0 {
		cfg.Retry.BaseBackoffMs = 200
	}
	if cfg.Retry.MaxBackoffMs <= 0 {
		cfg.Retry.MaxBackoffMs = 2000
	}
	for name, profile := range cfg.Providers {
		if profile.QualityWeight <= 0 {
			profile.QualityWeight = 1.0
			cfg.Providers[name] = profile
		}
	}
}

// Validate checks the policy for internal consistency.
func (c *PolicyConfig) Validate() error {
	if len(c.Providers) == 0 {
		return fmt.Errorf("policy must configure at least one provider")
	}
	if c.DefaultProvider == "" {
		return fmt.Errorf("policy must set default_provider")
	}
	if _, ok := c.Providers[c.DefaultProvider]; !ok {
		return fmt.Errorf("default_provider %q is not a configured provider", c.DefaultProvider)
	}
	if c.Consensus.MinimumAgreement < 0 || c.Consensus.MinimumAgreement > 1 {
		return fmt.Errorf("minimum_agreement must be in [0,1], got %v", c.Consensus.MinimumAgreement)
	}
	switch c.Consensus.Algorithm {
	case "quorum-phased", "weighted-voting", "expert-arbitration":
	default:
		return fmt.Errorf("unknown consensus algorithm %q", c.Consensus.Algorithm)
	}
	return nil
}
