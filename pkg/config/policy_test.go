package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultPolicyConfig(t *testing.T) {
	cfg := DefaultPolicyConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default policy should validate: %v", err)
	}
	if len(cfg.Providers) != 3 {
		t.Errorf("expected 3 default providers, got %d", len(cfg.Providers))
	}
	if _, ok := cfg.Providers[cfg.DefaultProvider]; !ok {
		t.Errorf("default provider %q not in providers", cfg.DefaultProvider)
	}
	if cfg.Consensus.Algorithm != "weighted-voting" {
		t.Errorf("unexpected default algorithm %q", cfg.Consensus.Algorithm)
	}
	if cfg.Consensus.MinimumAgreement <= 0 || cfg.Consensus.MinimumAgreement > 1 {
		t.Errorf("minimum agreement out of range: %v", cfg.Consensus.MinimumAgreement)
	}
}

func TestTimeoutDefaults(t *testing.T) {
	var timeouts TimeoutConfig
	if got := timeouts.ProviderTimeout(); got != 30*time.Second {
		t.Errorf("default provider timeout = %v, want 30s", got)
	}
	if got := timeouts.ConsensusTimeout(); got != 60*time.Second {
		t.Errorf("default consensus timeout = %v, want 60s", got)
	}

	timeouts = TimeoutConfig{ProviderTimeoutMs: 5000, ConsensusTimeoutMs: 10000}
	if got := timeouts.ProviderTimeout(); got != 5*time.Second {
		t.Errorf("provider timeout = %v, want 5s", got)
	}
	if got := timeouts.ConsensusTimeout(); got != 10*time.Second {
		t.Errorf("consensus timeout = %v, want 10s", got)
	}
}

func TestLoadPolicyConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")

	content := `
providers:
  anthropic:
    specialties: [code, debug]
    quality_weight: 1.0
    model: claude-sonnet-4-20250514
  openai:
    specialties: [reasoning]
    model: gpt-5.2-thinking
default_provider: anthropic
consensus:
  algorithm: quorum-phased
  minimum_agreement: 0.7
timeouts:
  provider_timeout_ms: 15000
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadPolicyConfig(path)
	if err != nil {
		t.Fatalf("LoadPolicyConfig: %v", err)
	}

	if cfg.Consensus.Algorithm != "quorum-phased" {
		t.Errorf("algorithm = %q, want quorum-phased", cfg.Consensus.Algorithm)
	}
	if cfg.Consensus.MinimumAgreement != 0.7 {
		t.Errorf("minimum_agreement = %v, want 0.7", cfg.Consensus.MinimumAgreement)
	}
	// quality_weight omitted for openai should default to 1.0
	if got := cfg.Providers["openai"].QualityWeight; got != 1.0 {
		t.Errorf("openai quality_weight = %v, want 1.0", got)
	}
	if got := cfg.Timeouts.ProviderTimeout(); got != 15*time.Second {
		t.Errorf("provider timeout = %v, want 15s", got)
	}
	// conflict_resolution omitted should default
	if cfg.Consensus.ConflictResolution != "majority" {
		t.Errorf("conflict_resolution = %q, want majority", cfg.Consensus.ConflictResolution)
	}
}

func TestPolicyValidate_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  PolicyConfig
	}{
		{
			name: "no providers",
			cfg:  PolicyConfig{DefaultProvider: "x"},
		},
		{
			name: "default provider not configured",
			cfg: PolicyConfig{
				Providers:       map[string]ProviderProfile{"a": {}},
				DefaultProvider: "b",
			},
		},
		{
			name: "bad algorithm",
			cfg: PolicyConfig{
				Providers:       map[string]ProviderProfile{"a": {}},
				DefaultProvider: "a",
				Consensus:       ConsensusPolicy{Algorithm: "byzantine-deluxe", MinimumAgreement: 0.5},
			},
		},
		{
			name: "agreement out of range",
			cfg: PolicyConfig{
				Providers:       map[string]ProviderProfile{"a": {}},
				DefaultProvider: "a",
				Consensus:       ConsensusPolicy{Algorithm: "weighted-voting", MinimumAgreement: 1.5},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}
