package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/skillsift/internal/catalog"
	"github.com/kailas-cloud/skillsift/internal/config"
	"github.com/kailas-cloud/skillsift/internal/db"
	dbRedis "github.com/kailas-cloud/skillsift/internal/db/redis"
	dbValkey "github.com/kailas-cloud/skillsift/internal/db/valkey"
	"github.com/kailas-cloud/skillsift/internal/domain"
	logpkg "github.com/kailas-cloud/skillsift/internal/logger"
	"github.com/kailas-cloud/skillsift/internal/metrics"
	budgetrepo "github.com/kailas-cloud/skillsift/internal/repository/budget"
	"github.com/kailas-cloud/skillsift/internal/repository/embcache"
	"github.com/kailas-cloud/skillsift/internal/retry"
	chiTransport "github.com/kailas-cloud/skillsift/internal/transport/chi"
	geminiTransport "github.com/kailas-cloud/skillsift/internal/transport/gemini"
	openaiTransport "github.com/kailas-cloud/skillsift/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/skillsift/internal/usecase/embedding"
	extractuc "github.com/kailas-cloud/skillsift/internal/usecase/extract"
	healthuc "github.com/kailas-cloud/skillsift/internal/usecase/health"
	rankuc "github.com/kailas-cloud/skillsift/internal/usecase/rank"
	recommenduc "github.com/kailas-cloud/skillsift/internal/usecase/recommend"
	retrieveuc "github.com/kailas-cloud/skillsift/internal/usecase/retrieve"
	usageuc "github.com/kailas-cloud/skillsift/internal/usecase/usage"
	"github.com/kailas-cloud/skillsift/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting skillsift API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("snapshot_path", cfg.Catalog.SnapshotPath),
		zap.Bool("cache_store", cfg.Database.Enabled()),
	)

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterPipelineMetrics()

	ctx := context.Background()

	// Cache store is optional: without it the embedding cache and budget
	// persistence are disabled and everything runs in-memory.
	var store db.Store
	if cfg.Database.Enabled() {
		switch cfg.Database.Driver {
		case "valkey":
			store, err = dbValkey.NewStore(dbValkey.Config{
				Addrs:    cfg.Database.Addrs,
				Password: cfg.Database.Password,
			})
		case "redis":
			store, err = dbRedis.NewStore(dbRedis.Config{
				Addrs:    cfg.Database.Addrs,
				Password: cfg.Database.Password,
			})
		default:
			logger.Fatal("Unknown database driver", zap.String("driver", cfg.Database.Driver))
		}
		if err != nil {
			logger.Fatal("Failed to create cache store", zap.Error(err))
		}
		defer store.Close()

		if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
			logger.Fatal("Cache store not ready", zap.Error(err))
		}
		logger.Info("Connected to cache store", zap.String("driver", cfg.Database.Driver))
	} else {
		logger.Info("No cache store configured, running in-memory")
	}

	// Take the first vectorizer config
	var vecCfg config.VectorizerConfig
	var provName string
	for _, vc := range cfg.Embedding.Vectorizers {
		vecCfg = vc
		provName = vc.Provider
		break
	}
	provCfg := cfg.Embedding.Providers[provName]

	vectorDim := vecCfg.Dimensions
	if vectorDim == 0 {
		vectorDim = domain.DefaultVectorConfig().Dimensions
	}

	// Catalog: loaded from snapshot at startup, swapped atomically on SIGHUP.
	catalogStore := catalog.New(vectorDim, cfg.Catalog.DedupeEnabled(), metrics.CatalogRecords, logger)
	loader := catalog.NewSnapshotLoader(catalogStore, cfg.Catalog.SnapshotPath, logger)

	stats, err := loader.Load()
	if err != nil {
		logger.Fatal("Failed to load catalog snapshot", zap.Error(err))
	}
	metrics.CatalogGeneration.Set(float64(stats.Generation))
	logger.Info("Catalog loaded",
		zap.Uint64("generation", stats.Generation),
		zap.Int("loaded", stats.Loaded),
		zap.Int("quarantined", stats.Quarantined),
	)

	// Single BudgetTracker shared across the embedder chain and usage service.
	var budget *embeddinguc.BudgetTracker
	budgetCfg := provCfg.Budget
	if budgetCfg.DailyTokenLimit > 0 || budgetCfg.MonthlyTokenLimit > 0 {
		action := embeddinguc.BudgetActionWarn
		if budgetCfg.Action == "reject" {
			action = embeddinguc.BudgetActionReject
		}
		budget = embeddinguc.NewBudgetTracker(
			provName, budgetCfg.DailyTokenLimit, budgetCfg.MonthlyTokenLimit, action, logger,
		)
		if store != nil {
			// Connect persistence store: loads current counters from DB.
			budgetStore := budgetrepo.New(store, 48*time.Hour, 62*24*time.Hour)
			budget.WithStore(ctx, budgetStore, cfg.Storage.KeyPrefix)
		}
	}

	// Pass nil interface (not typed nil pointer!) if budget is not configured.
	// Go gotcha: (*BudgetTracker)(nil) wrapped in BudgetChecker != nil.
	var budgetChecker embeddinguc.BudgetChecker
	if budget != nil {
		budgetChecker = budget
	}

	queryEmbedder, embChecker, err := buildQueryEmbedder(
		ctx, provName, provCfg, vecCfg, store, budgetChecker, cfg.Storage.KeyPrefix, logger,
	)
	if err != nil {
		logger.Fatal("Failed to create embedder", zap.Error(err))
	}
	logger.Info("Embedder created",
		zap.String("provider", provName),
		zap.String("kind", provCfg.Kind),
		zap.String("model", vecCfg.Model),
		zap.Int("dimensions", vectorDim),
	)

	// Constraint extraction: the rule grammar always runs, a configured
	// classifier refines it.
	classifier, err := buildClassifier(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create extraction classifier", zap.Error(err))
	}
	extractor := extractuc.New(classifier, extractuc.Config{
		Timeout: time.Duration(cfg.Extraction.TimeoutSec) * time.Second,
		Retry:   retry.DefaultConfig(),
	}, logger)

	var expander retrieveuc.Expander
	if cfg.Extraction.ExpandQueries && classifier != nil {
		expander = classifier
	}
	retriever := retrieveuc.New(queryEmbedder, catalogStore, expander, retrieveuc.Config{
		CandidateMultiplier: cfg.Recommend.CandidateMultiplier,
		MinCandidates:       cfg.Recommend.MinCandidates,
	}, logger)

	ranker := rankuc.New(cfg.Recommend.CategoryBoost)

	engine := recommenduc.New(extractor, retriever, ranker, recommenduc.Config{
		DefaultResults: cfg.Recommend.DefaultResults,
		MaxResults:     cfg.Recommend.MaxResults,
	}, logger)

	// Usage service reads from the shared BudgetTracker.
	var budgetReader usageuc.BudgetReader
	if budget != nil {
		budgetReader = budget
	}
	usageSvc := usageuc.New(budgetReader, provName)

	// Health service
	var storePinger healthuc.StorePinger
	if store != nil {
		storePinger = store
	}
	healthSvc := healthuc.New(catalogStore, storePinger, embChecker)

	// Create chi server
	server := chiTransport.NewServer(engine, usageSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.RegisterRoutes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// SIGHUP reloads the snapshot. A failed reload keeps the serving
	// generation untouched.
	reload := make(chan os.Signal, 1)
	signal.Notify(reload, syscall.SIGHUP)
	go func() {
		for range reload {
			stats, err := loader.Load()
			if err != nil {
				logger.Error("Snapshot reload failed, keeping current generation", zap.Error(err))
				continue
			}
			metrics.CatalogGeneration.Set(float64(stats.Generation))
			logger.Info("Catalog reloaded",
				zap.Uint64("generation", stats.Generation),
				zap.Int("loaded", stats.Loaded),
				zap.Int("quarantined", stats.Quarantined),
			)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")
	signal.Stop(reload)
	close(reload)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildQueryEmbedder assembles the decorator chain:
// provider -> Retrying -> Cached -> Instrumented -> Instruction.
// Gemini steers query embeddings with task_type instead of an instruction prefix.
// The returned health checker is the bare provider transport: decorators do
// not forward probes.
func buildQueryEmbedder(
	ctx context.Context,
	provName string,
	provCfg config.ProviderConfig,
	vecCfg config.VectorizerConfig,
	store db.Store,
	budget embeddinguc.BudgetChecker,
	keyPrefix string,
	logger *zap.Logger,
) (domain.Embedder, healthuc.EmbeddingChecker, error) {
	var base domain.Embedder
	var checker healthuc.EmbeddingChecker
	switch provCfg.Kind {
	case "gemini":
		emb, err := geminiTransport.NewEmbedder(ctx, &geminiTransport.EmbedderConfig{
			APIKey:     provCfg.APIKey,
			Model:      vecCfg.Model,
			Dimensions: vecCfg.Dimensions,
			TaskType:   geminiTransport.TaskTypeQuery,
			Provider:   provName,
			Logger:     logger,
		})
		if err != nil {
			return nil, nil, err
		}
		base, checker = emb, emb
	default:
		emb := openaiTransport.NewEmbedder(&openaiTransport.Config{
			APIKey:     provCfg.APIKey,
			BaseURL:    provCfg.BaseURL,
			Model:      vecCfg.Model,
			Dimensions: vecCfg.Dimensions,
			Provider:   provName,
			Logger:     logger,
		})
		base, checker = emb, emb
	}

	// Retrying (directly above the provider, cache hits never retry)
	embedder := domain.Embedder(embeddinguc.NewRetryingEmbedder(
		base, retry.DefaultConfig(),
		time.Duration(provCfg.TimeoutSec)*time.Second, logger,
	))

	// Cached
	if store != nil {
		embedder = embcache.New(embedder, store, keyPrefix, metrics.EmbeddingCacheTotal, logger)
	}

	// Instrumented (budget + logging)
	embedder = embeddinguc.NewInstrumentedEmbedder(
		embedder, provName, vecCfg.Model, budget, logger,
	)

	// Instruction prefix (outermost, so the cache key includes it)
	if provCfg.Kind != "gemini" && vecCfg.QueryInstruction != "" {
		return domain.NewInstructionEmbedder(embedder, vecCfg.QueryInstruction), checker, nil
	}

	return embedder, checker, nil
}

// buildClassifier creates the LLM client for constraint extraction and query
// expansion. Returns nil when extraction.provider is not configured.
func buildClassifier(ctx context.Context, cfg config.Config, logger *zap.Logger) (extractuc.Classifier, error) {
	if cfg.Extraction.Provider == "" {
		return nil, nil
	}
	provCfg := cfg.Embedding.Providers[cfg.Extraction.Provider]

	switch provCfg.Kind {
	case "gemini":
		return geminiTransport.NewClassifier(ctx, &geminiTransport.ClassifierConfig{
			APIKey: provCfg.APIKey,
			Model:  cfg.Extraction.Model,
			Logger: logger,
		})
	default:
		return openaiTransport.NewClassifier(&openaiTransport.ClassifierConfig{
			APIKey:   provCfg.APIKey,
			BaseURL:  provCfg.BaseURL,
			Model:    cfg.Extraction.Model,
			Provider: cfg.Extraction.Provider,
			Logger:   logger,
		}), nil
	}
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line, one per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
