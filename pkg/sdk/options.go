package skillsift

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	snapshotPath string
	dimensions   int

	provider         string // "openai" or "gemini"; empty with a custom embedder
	apiKey           string
	baseURL          string
	model            string
	queryInstruction string

	embedder Embedder

	cacheDriver   string // "valkey" or "redis"; empty runs in-memory
	cacheAddrs    []string
	cachePassword string
	keyPrefix     string

	dailyTokenLimit   int64
	monthlyTokenLimit int64

	defaultResults int
	maxResults     int

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithCatalogSnapshot sets the snapshot file the catalog loads during New
// and on every LoadCatalog call.
func WithCatalogSnapshot(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.snapshotPath = path
	})
}

// WithVectorDimensions sets the embedding dimensionality. Defaults to 768.
// Snapshot records whose vectors disagree with it are quarantined.
func WithVectorDimensions(dim int) Option {
	return optionFunc(func(c *clientConfig) {
		c.dimensions = dim
	})
}

// WithOpenAI embeds queries through an OpenAI-compatible endpoint.
func WithOpenAI(apiKey, model string) Option {
	return optionFunc(func(c *clientConfig) {
		c.provider = "openai"
		c.apiKey = apiKey
		c.model = model
	})
}

// WithGemini embeds queries through the Gemini API with the retrieval-query
// task type.
func WithGemini(apiKey, model string) Option {
	return optionFunc(func(c *clientConfig) {
		c.provider = "gemini"
		c.apiKey = apiKey
		c.model = model
	})
}

// WithBaseURL points the OpenAI-compatible provider at a non-default
// endpoint. Gemini ignores it.
func WithBaseURL(url string) Option {
	return optionFunc(func(c *clientConfig) {
		c.baseURL = url
	})
}

// WithQueryInstruction prepends instruction text to every query embedding.
// Only the OpenAI-compatible provider uses it; Gemini steers with its task
// type instead. The text must match the instruction the catalog snapshot
// was embedded with.
func WithQueryInstruction(instruction string) Option {
	return optionFunc(func(c *clientConfig) {
		c.queryInstruction = instruction
	})
}

// WithEmbedder plugs in a custom embedding provider in place of WithOpenAI
// and WithGemini. The retry, cache and budget decorators are skipped: the
// caller owns the full embedding path.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithValkeyCache attaches a Valkey store for embedding cache entries and
// budget counter persistence. Without a cache store the client runs fully
// in-memory.
func WithValkeyCache(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cacheDriver = "valkey"
		c.cacheAddrs = []string{addr}
		c.cachePassword = password
	})
}

// WithRedisCache attaches a Redis store for embedding cache entries and
// budget counter persistence.
func WithRedisCache(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cacheDriver = "redis"
		c.cacheAddrs = []string{addr}
		c.cachePassword = password
	})
}

// WithKeyPrefix namespaces cache and budget keys in a shared store.
// Defaults to "skillsift:".
func WithKeyPrefix(prefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.keyPrefix = prefix
	})
}

// WithTokenBudget caps embedding token spend. Zero disables the
// corresponding limit. Exceeding an active limit fails Recommend with
// ErrEmbeddingQuotaExceeded until the window resets.
func WithTokenBudget(daily, monthly int64) Option {
	return optionFunc(func(c *clientConfig) {
		c.dailyTokenLimit = daily
		c.monthlyTokenLimit = monthly
	})
}

// WithRecommendDefaults sets the result count used when a Recommend call
// does not override it, and the hard cap overrides clamp to.
// Defaults: 10 and 50.
func WithRecommendDefaults(defaultResults, maxResults int) Option {
	return optionFunc(func(c *clientConfig) {
		c.defaultResults = defaultResults
		c.maxResults = maxResults
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
