package config

import (
	"os"
	"path/filepath"
	"testing"
)

func validConfig() Config {
	return Config{
		HTTP:    HTTPConfig{Port: 8080},
		Catalog: CatalogConfig{SnapshotPath: "data/snapshot.json"},
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_MissingSnapshotPath(t *testing.T) {
	cfg := validConfig()
	cfg.Catalog.SnapshotPath = ""

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing snapshot path")
	}
}

func TestValidate_InvalidBudgetAction(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.Providers = map[string]ProviderConfig{
		"nebius": {
			APIKey:  "test-key",
			BaseURL: "https://api.example.com/v1/",
			Budget: BudgetConfig{
				DailyTokenLimit: 1000000,
				Action:          "invalid_action",
			},
		},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for invalid budget action")
	}

	expected := `embedding.providers.nebius.budget.action must be "warn" or "reject", got "invalid_action"`
	if err.Error() != expected {
		t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), expected)
	}
}

func TestValidate_ValidBudgetActions(t *testing.T) {
	validActions := []string{"", "warn", "reject"}

	for _, action := range validActions {
		t.Run("action="+action, func(t *testing.T) {
			cfg := validConfig()
			cfg.Embedding.Providers = map[string]ProviderConfig{
				"nebius": {
					APIKey: "test-key",
					Budget: BudgetConfig{Action: action},
				},
			}

			if err := cfg.Validate(); err != nil {
				t.Fatalf("unexpected error for valid action %q: %v", action, err)
			}
		})
	}
}

func TestValidate_InvalidProviderKind(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.Providers = map[string]ProviderConfig{
		"broken": {Kind: "anthropic"},
	}

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown provider kind")
	}
}

func TestValidate_VectorizerUnknownProvider(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.Vectorizers = map[string]VectorizerConfig{
		"default": {Provider: "missing", Model: "text-embedding-004"},
	}

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for vectorizer referencing unknown provider")
	}
}

func TestValidate_ExtractionUnknownProvider(t *testing.T) {
	cfg := validConfig()
	cfg.Extraction.Provider = "missing"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for extraction referencing unknown provider")
	}
}

func TestValidate_DefaultResultsAboveCap(t *testing.T) {
	cfg := validConfig()
	cfg.Recommend.DefaultResults = 60
	cfg.Recommend.MaxResults = 50

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when default_results exceeds max_results")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{
		Embedding: EmbeddingConfig{
			Providers: map[string]ProviderConfig{"gemini": {APIKey: "k", Kind: "gemini"}},
		},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 30 {
		t.Errorf("expected WriteTimeoutSec=30, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.HTTP.ShutdownSec != 10 {
		t.Errorf("expected ShutdownSec=10, got %d", cfg.HTTP.ShutdownSec)
	}
	if cfg.Database.Driver != "valkey" {
		t.Errorf("expected Driver=valkey, got %q", cfg.Database.Driver)
	}
	if cfg.Storage.KeyPrefix != "skillsift:" {
		t.Errorf("expected KeyPrefix='skillsift:', got %q", cfg.Storage.KeyPrefix)
	}
	if cfg.Extraction.TimeoutSec != 5 {
		t.Errorf("expected Extraction.TimeoutSec=5, got %d", cfg.Extraction.TimeoutSec)
	}
	if cfg.Recommend.DefaultResults != 10 {
		t.Errorf("expected DefaultResults=10, got %d", cfg.Recommend.DefaultResults)
	}
	if cfg.Recommend.MaxResults != 50 {
		t.Errorf("expected MaxResults=50, got %d", cfg.Recommend.MaxResults)
	}
	if cfg.Recommend.CandidateMultiplier != 4 {
		t.Errorf("expected CandidateMultiplier=4, got %d", cfg.Recommend.CandidateMultiplier)
	}
	if cfg.Recommend.MinCandidates != 30 {
		t.Errorf("expected MinCandidates=30, got %d", cfg.Recommend.MinCandidates)
	}
	if cfg.Recommend.CategoryBoost != 0.15 {
		t.Errorf("expected CategoryBoost=0.15, got %v", cfg.Recommend.CategoryBoost)
	}
	if got := cfg.Embedding.Providers["gemini"].TimeoutSec; got != 10 {
		t.Errorf("expected provider TimeoutSec=10, got %d", got)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:      HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 60, ShutdownSec: 5},
		Database:  DatabaseConfig{Driver: "redis", ReadinessTimeout: 15},
		Storage:   StorageConfig{KeyPrefix: "custom:"},
		Recommend: RecommendConfig{DefaultResults: 5, MaxResults: 20, CandidateMultiplier: 3, MinCandidates: 10, CategoryBoost: 0.3},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 30 {
		t.Errorf("expected ReadTimeoutSec=30, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.Database.Driver != "redis" {
		t.Errorf("expected Driver=redis, got %q", cfg.Database.Driver)
	}
	if cfg.Storage.KeyPrefix != "custom:" {
		t.Errorf("expected KeyPrefix='custom:', got %q", cfg.Storage.KeyPrefix)
	}
	if cfg.Recommend.MaxResults != 20 {
		t.Errorf("expected MaxResults=20, got %d", cfg.Recommend.MaxResults)
	}
	if cfg.Recommend.CategoryBoost != 0.3 {
		t.Errorf("expected CategoryBoost=0.3, got %v", cfg.Recommend.CategoryBoost)
	}
}

func TestDedupeEnabled(t *testing.T) {
	var c CatalogConfig
	if !c.DedupeEnabled() {
		t.Error("dedupe should default to enabled")
	}

	off := false
	c.DedupeNames = &off
	if c.DedupeEnabled() {
		t.Error("dedupe should be disabled when set to false")
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("SKILLSIFT_TEST_KEY", "secret")

	in := []byte("api_key: ${SKILLSIFT_TEST_KEY}\nbase_url: ${SKILLSIFT_TEST_URL:-https://fallback.example}\n")
	out := string(expandEnvVars(in))

	if out != "api_key: secret\nbase_url: https://fallback.example\n" {
		t.Errorf("unexpected expansion: %q", out)
	}
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "config"), 0o755); err != nil {
		t.Fatal(err)
	}
	raw := `
http:
  port: 9090
catalog:
  snapshot_path: data/snapshot.json
recommend:
  default_results: 5
`
	if err := os.WriteFile(filepath.Join(dir, "config", "test.yaml"), []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(wd) }()

	cfg, err := Load("test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTP.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.HTTP.Port)
	}
	if cfg.Recommend.DefaultResults != 5 {
		t.Errorf("expected default_results 5, got %d", cfg.Recommend.DefaultResults)
	}
	if cfg.Recommend.MaxResults != 50 {
		t.Errorf("expected defaulted max_results 50, got %d", cfg.Recommend.MaxResults)
	}
}
