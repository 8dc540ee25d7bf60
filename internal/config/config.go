package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the skillsift service configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Catalog    CatalogConfig    `yaml:"catalog"`
	Database   DatabaseConfig   `yaml:"database"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Recommend  RecommendConfig  `yaml:"recommend"`
	Auth       AuthConfig       `yaml:"auth"`
	Storage    StorageConfig    `yaml:"storage"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// CatalogConfig holds catalog snapshot settings.
type CatalogConfig struct {
	SnapshotPath string `yaml:"snapshot_path"`
	DedupeNames  *bool  `yaml:"dedupe_names"` // default: true
}

// DedupeEnabled reports whether load-time name deduplication is on.
func (c CatalogConfig) DedupeEnabled() bool {
	return c.DedupeNames == nil || *c.DedupeNames
}

// DatabaseConfig holds cache store connection settings.
// The store is optional: with no addrs the embedding cache and budget
// persistence are disabled and the service runs fully in-memory.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // valkey, redis (default: valkey)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// Enabled reports whether a cache store is configured.
func (c DatabaseConfig) Enabled() bool { return len(c.Addrs) > 0 }

// StorageConfig holds key namespacing for the cache store.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Providers   map[string]ProviderConfig   `yaml:"providers"`
	Vectorizers map[string]VectorizerConfig `yaml:"vectorizers"`
}

// BudgetConfig holds token budget settings.
type BudgetConfig struct {
	DailyTokenLimit   int64  `yaml:"daily_token_limit"`   // 0 = unlimited
	MonthlyTokenLimit int64  `yaml:"monthly_token_limit"` // 0 = unlimited
	Action            string `yaml:"action"`              // "reject" | "warn" (default)
}

// ProviderConfig holds external AI provider settings.
type ProviderConfig struct {
	Kind       string       `yaml:"kind"` // openai, gemini (default: openai)
	APIKey     string       `yaml:"api_key"`
	BaseURL    string       `yaml:"base_url"`
	TimeoutSec int          `yaml:"timeout_sec"` // per-attempt bound (default: 10)
	Budget     BudgetConfig `yaml:"budget"`
}

// VectorizerConfig holds embedding model settings.
type VectorizerConfig struct {
	Provider            string `yaml:"provider"`
	Model               string `yaml:"model"`
	Dimensions          int    `yaml:"dimensions"`
	DocumentInstruction string `yaml:"document_instruction"`
	QueryInstruction    string `yaml:"query_instruction"`
}

// ExtractionConfig holds query constraint extraction settings.
// Provider "" disables the LLM pass; the rule grammar always runs.
type ExtractionConfig struct {
	Provider      string `yaml:"provider"` // name from embedding.providers, or "" = rules only
	Model         string `yaml:"model"`
	TimeoutSec    int    `yaml:"timeout_sec"`    // per-attempt bound (default: 5)
	ExpandQueries bool   `yaml:"expand_queries"` // LLM query expansion before retrieval
}

// RecommendConfig holds ranking pipeline settings.
type RecommendConfig struct {
	DefaultResults      int     `yaml:"default_results"`      // default: 10
	MaxResults          int     `yaml:"max_results"`          // hard cap, default: 50
	CandidateMultiplier int     `yaml:"candidate_multiplier"` // retriever over-fetch, default: 4
	MinCandidates       int     `yaml:"min_candidates"`       // retriever floor, default: 30
	CategoryBoost       float64 `yaml:"category_boost"`       // additive, default: 0.15
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "valkey"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "skillsift:"
	}
	if c.Extraction.TimeoutSec <= 0 {
		c.Extraction.TimeoutSec = 5
	}
	if c.Recommend.DefaultResults <= 0 {
		c.Recommend.DefaultResults = 10
	}
	if c.Recommend.MaxResults <= 0 {
		c.Recommend.MaxResults = 50
	}
	if c.Recommend.CandidateMultiplier <= 0 {
		c.Recommend.CandidateMultiplier = 4
	}
	if c.Recommend.MinCandidates <= 0 {
		c.Recommend.MinCandidates = 30
	}
	if c.Recommend.CategoryBoost <= 0 {
		c.Recommend.CategoryBoost = 0.15
	}
	for name, p := range c.Embedding.Providers {
		if p.Kind == "" {
			p.Kind = "openai"
		}
		if p.TimeoutSec <= 0 {
			p.TimeoutSec = 10
		}
		c.Embedding.Providers[name] = p
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Catalog.SnapshotPath == "" {
		return fmt.Errorf("catalog.snapshot_path is required")
	}
	for name, p := range c.Embedding.Providers {
		switch p.Kind {
		case "", "openai", "gemini":
			// ok
		default:
			return fmt.Errorf(
				"embedding.providers.%s.kind must be \"openai\" or \"gemini\", got %q",
				name, p.Kind,
			)
		}
		switch p.Budget.Action {
		case "", "warn", "reject":
			// ok
		default:
			return fmt.Errorf(
				"embedding.providers.%s.budget.action must be \"warn\" or \"reject\", got %q",
				name, p.Budget.Action,
			)
		}
	}
	for name, v := range c.Embedding.Vectorizers {
		if _, ok := c.Embedding.Providers[v.Provider]; !ok {
			return fmt.Errorf(
				"embedding.vectorizers.%s.provider %q is not defined in embedding.providers",
				name, v.Provider,
			)
		}
	}
	if c.Extraction.Provider != "" {
		if _, ok := c.Embedding.Providers[c.Extraction.Provider]; !ok {
			return fmt.Errorf(
				"extraction.provider %q is not defined in embedding.providers",
				c.Extraction.Provider,
			)
		}
	}
	if c.Recommend.DefaultResults > c.Recommend.MaxResults {
		return fmt.Errorf(
			"recommend.default_results (%d) must not exceed recommend.max_results (%d)",
			c.Recommend.DefaultResults, c.Recommend.MaxResults,
		)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
