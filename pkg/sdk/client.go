package skillsift

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/skillsift/internal/catalog"
	"github.com/kailas-cloud/skillsift/internal/db"
	dbRedis "github.com/kailas-cloud/skillsift/internal/db/redis"
	dbValkey "github.com/kailas-cloud/skillsift/internal/db/valkey"
	"github.com/kailas-cloud/skillsift/internal/domain"
	"github.com/kailas-cloud/skillsift/internal/metrics"
	budgetrepo "github.com/kailas-cloud/skillsift/internal/repository/budget"
	"github.com/kailas-cloud/skillsift/internal/repository/embcache"
	"github.com/kailas-cloud/skillsift/internal/retry"
	geminiTransport "github.com/kailas-cloud/skillsift/internal/transport/gemini"
	openaiTransport "github.com/kailas-cloud/skillsift/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/skillsift/internal/usecase/embedding"
	extractuc "github.com/kailas-cloud/skillsift/internal/usecase/extract"
	healthuc "github.com/kailas-cloud/skillsift/internal/usecase/health"
	rankuc "github.com/kailas-cloud/skillsift/internal/usecase/rank"
	recommenduc "github.com/kailas-cloud/skillsift/internal/usecase/recommend"
	retrieveuc "github.com/kailas-cloud/skillsift/internal/usecase/retrieve"
	usageuc "github.com/kailas-cloud/skillsift/internal/usecase/usage"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultKeyPrefix        = "skillsift:"

	budgetDailyTTL   = 48 * time.Hour
	budgetMonthlyTTL = 62 * 24 * time.Hour
)

// Client is the skillsift SDK entry point.
type Client struct {
	store     db.Store
	loader    catalogLoader
	engine    recommendUseCase
	usageSvc  usageUseCase
	healthSvc healthUseCase
	obs       *observer
}

// New creates a skillsift Client, wiring catalog, embedding chain and
// ranking pipeline in-process. The provided context bounds provider
// construction, the cache store readiness check and the initial catalog
// load.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		dimensions: domain.DefaultVectorConfig().Dimensions,
		keyPrefix:  defaultKeyPrefix,
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	if cfg.embedder == nil && cfg.provider == "" {
		return nil, errors.New("skillsift: embedder required (use WithOpenAI, WithGemini or WithEmbedder)")
	}

	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterPipelineMetrics()

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	var store db.Store
	if cfg.cacheDriver != "" {
		store, err = createStore(cfg)
		if err != nil {
			return nil, err
		}
		if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
			store.Close()
			return nil, fmt.Errorf("skillsift: cache store not ready: %w", err)
		}
	}

	c, err := wireClient(ctx, store, cfg, obs)
	if err != nil {
		if store != nil {
			store.Close()
		}
		return nil, err
	}

	if cfg.snapshotPath != "" {
		if _, err := c.LoadCatalog(); err != nil {
			c.Close()
			return nil, err
		}
	}
	return c, nil
}

func createStore(cfg *clientConfig) (db.Store, error) {
	switch cfg.cacheDriver {
	case "valkey":
		s, err := dbValkey.NewStore(dbValkey.Config{
			Addrs:    cfg.cacheAddrs,
			Password: cfg.cachePassword,
		})
		if err != nil {
			return nil, fmt.Errorf("skillsift: create valkey store: %w", err)
		}
		return s, nil
	case "redis":
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.cacheAddrs,
			Password: cfg.cachePassword,
		})
		if err != nil {
			return nil, fmt.Errorf("skillsift: create redis store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("skillsift: unknown cache driver %q", cfg.cacheDriver)
	}
}

func wireClient(ctx context.Context, store db.Store, cfg *clientConfig, obs *observer) (*Client, error) {
	// Internals log through zap; the SDK surface reports via the observer.
	zlog := zap.NewNop()

	catalogStore := catalog.New(cfg.dimensions, true, metrics.CatalogRecords, zlog)
	loader := catalog.NewSnapshotLoader(catalogStore, cfg.snapshotPath, zlog)

	var budget *embeddinguc.BudgetTracker
	if cfg.dailyTokenLimit > 0 || cfg.monthlyTokenLimit > 0 {
		budget = embeddinguc.NewBudgetTracker(
			cfg.provider, cfg.dailyTokenLimit, cfg.monthlyTokenLimit,
			embeddinguc.BudgetActionReject, zlog,
		)
		if store != nil {
			budget = budget.WithStore(ctx, budgetrepo.New(store, budgetDailyTTL, budgetMonthlyTTL), cfg.keyPrefix)
		}
	}

	embedder, embChecker, err := buildEmbedder(ctx, cfg, store, budget, zlog)
	if err != nil {
		return nil, err
	}

	// Rule pass only: no LLM classifier in the embedded client.
	extractor := extractuc.New(nil, extractuc.Config{}, zlog)
	retriever := retrieveuc.New(embedder, catalogStore, nil, retrieveuc.Config{}, zlog)
	ranker := rankuc.New(0)
	engine := recommenduc.New(extractor, retriever, ranker, recommenduc.Config{
		DefaultResults: cfg.defaultResults,
		MaxResults:     cfg.maxResults,
	}, zlog)

	// Go gotcha: (*BudgetTracker)(nil) wrapped in BudgetReader != nil.
	var budgetReader usageuc.BudgetReader
	if budget != nil {
		budgetReader = budget
	}
	usageSvc := usageuc.New(budgetReader, cfg.provider)

	var pinger healthuc.StorePinger
	if store != nil {
		pinger = store
	}
	healthSvc := healthuc.New(catalogStore, pinger, embChecker)

	return &Client{
		store:     store,
		loader:    loader,
		engine:    engine,
		usageSvc:  usageSvc,
		healthSvc: healthSvc,
		obs:       obs,
	}, nil
}

// buildEmbedder assembles the query-side chain:
// provider -> Retrying -> Cached -> Instrumented -> Instruction.
// The health checker is the bare provider transport: decorators do not
// forward probes. A custom Embedder replaces the whole chain and is not
// probed.
func buildEmbedder(
	ctx context.Context, cfg *clientConfig, store db.Store,
	budget *embeddinguc.BudgetTracker, zlog *zap.Logger,
) (domain.Embedder, healthuc.EmbeddingChecker, error) {
	if cfg.embedder != nil {
		return &embedderAdapter{inner: cfg.embedder}, nil, nil
	}

	var base domain.Embedder
	var checker healthuc.EmbeddingChecker
	switch cfg.provider {
	case "gemini":
		ge, err := geminiTransport.NewEmbedder(ctx, &geminiTransport.EmbedderConfig{
			APIKey:     cfg.apiKey,
			Model:      cfg.model,
			Dimensions: cfg.dimensions,
			TaskType:   geminiTransport.TaskTypeQuery,
			Provider:   cfg.provider,
			Logger:     zlog,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("skillsift: create gemini embedder: %w", err)
		}
		base, checker = ge, ge
	default:
		oe := openaiTransport.NewEmbedder(&openaiTransport.Config{
			APIKey:     cfg.apiKey,
			BaseURL:    cfg.baseURL,
			Model:      cfg.model,
			Dimensions: cfg.dimensions,
			Provider:   cfg.provider,
			Logger:     zlog,
		})
		base, checker = oe, oe
	}

	embedder := domain.Embedder(embeddinguc.NewRetryingEmbedder(base, retry.DefaultConfig(), 0, zlog))
	if store != nil {
		embedder = embcache.New(embedder, store, cfg.keyPrefix, metrics.EmbeddingCacheTotal, zlog)
	}

	var budgetChecker embeddinguc.BudgetChecker
	if budget != nil {
		budgetChecker = budget
	}
	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, cfg.provider, cfg.model, budgetChecker, zlog)

	if cfg.provider != "gemini" && cfg.queryInstruction != "" {
		embedder = domain.NewInstructionEmbedder(embedder, cfg.queryInstruction)
	}
	return embedder, checker, nil
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks cache store connectivity. Without a cache store it is a no-op.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", start, err) }()

	if c.store == nil {
		return nil
	}
	if err = c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// embedderAdapter wraps public Embedder to satisfy internal domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

// BatchEmbed uses the inner BatchEmbedder when implemented, otherwise
// embeds one by one.
func (a *embedderAdapter) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	be, ok := a.inner.(BatchEmbedder)
	if !ok {
		return domain.BatchFallback(ctx, a, texts)
	}
	r, err := be.BatchEmbed(ctx, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed: %w", err)
	}
	return domain.BatchEmbeddingResult{
		Embeddings:   r.Embeddings,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

