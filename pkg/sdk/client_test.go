package skillsift

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/skillsift/internal/catalog"
)

func TestNew_NoEmbedder(t *testing.T) {
	_, err := New(context.Background(), WithCatalogSnapshot("snapshot.json"))
	if err == nil {
		t.Fatal("expected error when no embedding provider configured")
	}
	if !strings.Contains(err.Error(), "embedder required") {
		t.Errorf("error = %q, want mention of embedder required", err)
	}
}

func TestCreateStore_UnknownDriver(t *testing.T) {
	cfg := &clientConfig{cacheDriver: "memcached", cacheAddrs: []string{"localhost:1234"}}
	_, err := createStore(cfg)
	if err == nil {
		t.Fatal("expected error for unknown cache driver")
	}
}

func TestEmbedderAdapter(t *testing.T) {
	called := false
	mock := &mockEmbedder{
		fn: func(_ context.Context, text string) (EmbeddingResult, error) {
			called = true
			return EmbeddingResult{
				Embedding:    []float32{1, 2, 3},
				PromptTokens: 5,
				TotalTokens:  10,
			}, nil
		},
	}

	adapter := &embedderAdapter{inner: mock}
	result, err := adapter.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("inner embedder was not called")
	}
	if len(result.Embedding) != 3 {
		t.Errorf("embedding len = %d, want 3", len(result.Embedding))
	}
	if result.TotalTokens != 10 {
		t.Errorf("total tokens = %d, want 10", result.TotalTokens)
	}
}

func TestEmbedderAdapter_Error(t *testing.T) {
	mock := &mockEmbedder{
		fn: func(_ context.Context, _ string) (EmbeddingResult, error) {
			return EmbeddingResult{}, errors.New("provider down")
		},
	}

	adapter := &embedderAdapter{inner: mock}
	_, err := adapter.Embed(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected error from adapter")
	}
}

func TestEmbedderAdapter_BatchFallback(t *testing.T) {
	// mockEmbedder does not implement BatchEmbedder: the adapter embeds
	// one by one and sums the usage.
	calls := 0
	mock := &mockEmbedder{
		fn: func(_ context.Context, _ string) (EmbeddingResult, error) {
			calls++
			return EmbeddingResult{Embedding: []float32{1}, TotalTokens: 2}, nil
		},
	}

	adapter := &embedderAdapter{inner: mock}
	res, err := adapter.BatchEmbed(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("inner calls = %d, want 3", calls)
	}
	if len(res.Embeddings) != 3 {
		t.Errorf("embeddings = %d, want 3", len(res.Embeddings))
	}
	if res.TotalTokens != 6 {
		t.Errorf("total tokens = %d, want 6", res.TotalTokens)
	}
}

func TestEmbedderAdapter_BatchPassthrough(t *testing.T) {
	mock := &mockBatchEmbedder{
		batchFn: func(_ context.Context, texts []string) (BatchEmbeddingResult, error) {
			return BatchEmbeddingResult{
				Embeddings:  [][]float32{{1}, {2}},
				TotalTokens: 7,
			}, nil
		},
	}

	adapter := &embedderAdapter{inner: mock}
	res, err := adapter.BatchEmbed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embeddings) != 2 || res.TotalTokens != 7 {
		t.Errorf("got %d embeddings, %d tokens, want 2 and 7", len(res.Embeddings), res.TotalTokens)
	}
}

func TestClientOptions(t *testing.T) {
	cfg := &clientConfig{}

	WithCatalogSnapshot("data/snapshot.json").apply(cfg)
	if cfg.snapshotPath != "data/snapshot.json" {
		t.Errorf("snapshotPath = %q, want data/snapshot.json", cfg.snapshotPath)
	}

	WithVectorDimensions(1536).apply(cfg)
	if cfg.dimensions != 1536 {
		t.Errorf("dimensions = %d, want 1536", cfg.dimensions)
	}

	WithOpenAI("sk-key", "text-embedding-3-small").apply(cfg)
	if cfg.provider != "openai" || cfg.apiKey != "sk-key" || cfg.model != "text-embedding-3-small" {
		t.Errorf("openai opts = (%q, %q, %q)", cfg.provider, cfg.apiKey, cfg.model)
	}

	WithBaseURL("https://llm.internal/v1").apply(cfg)
	if cfg.baseURL != "https://llm.internal/v1" {
		t.Errorf("baseURL = %q", cfg.baseURL)
	}

	WithQueryInstruction("query: ").apply(cfg)
	if cfg.queryInstruction != "query: " {
		t.Errorf("queryInstruction = %q", cfg.queryInstruction)
	}

	cfg2 := &clientConfig{}
	WithGemini("g-key", "gemini-embedding-001").apply(cfg2)
	if cfg2.provider != "gemini" || cfg2.model != "gemini-embedding-001" {
		t.Errorf("gemini opts = (%q, %q)", cfg2.provider, cfg2.model)
	}

	cfg3 := &clientConfig{}
	WithValkeyCache("localhost:6379", "secret").apply(cfg3)
	if cfg3.cacheDriver != "valkey" {
		t.Errorf("cacheDriver = %q, want valkey", cfg3.cacheDriver)
	}
	if cfg3.cacheAddrs[0] != "localhost:6379" || cfg3.cachePassword != "secret" {
		t.Errorf("cache = (%v, %q)", cfg3.cacheAddrs, cfg3.cachePassword)
	}

	WithRedisCache("localhost:6380", "pass").apply(cfg3)
	if cfg3.cacheDriver != "redis" {
		t.Errorf("cacheDriver = %q, want redis", cfg3.cacheDriver)
	}

	WithKeyPrefix("staging:").apply(cfg3)
	if cfg3.keyPrefix != "staging:" {
		t.Errorf("keyPrefix = %q, want staging:", cfg3.keyPrefix)
	}

	WithTokenBudget(10_000, 300_000).apply(cfg3)
	if cfg3.dailyTokenLimit != 10_000 || cfg3.monthlyTokenLimit != 300_000 {
		t.Errorf("budget = (%d, %d)", cfg3.dailyTokenLimit, cfg3.monthlyTokenLimit)
	}

	WithRecommendDefaults(5, 20).apply(cfg3)
	if cfg3.defaultResults != 5 || cfg3.maxResults != 20 {
		t.Errorf("recommend defaults = (%d, %d), want (5, 20)", cfg3.defaultResults, cfg3.maxResults)
	}

	cfg4 := &clientConfig{}
	logger := slog.Default()
	WithLogger(logger).apply(cfg4)
	if cfg4.logger != logger {
		t.Error("expected logger to be set")
	}

	reg := prometheus.NewRegistry()
	WithPrometheus(reg).apply(cfg4)
	if cfg4.metricsReg != reg {
		t.Error("expected metricsReg to be set")
	}
}

func TestWithEmbedder(t *testing.T) {
	mock := &mockEmbedder{
		fn: func(_ context.Context, _ string) (EmbeddingResult, error) {
			return EmbeddingResult{}, nil
		},
	}
	cfg := &clientConfig{}
	WithEmbedder(mock).apply(cfg)
	if cfg.embedder == nil {
		t.Error("expected non-nil embedder")
	}
}

func TestClient_Close_NilStore(t *testing.T) {
	// Close на клиенте с nil store не паникует.
	c := &Client{store: nil}
	c.Close() // не должен упасть
}

func TestObserver_NilSafe(t *testing.T) {
	// nil observer should not panic.
	var obs *observer
	obs.observe("test", time.Now(), nil)
	obs.observe("test", time.Now(), errors.New("err"))
}

func TestObserver_WithPrometheus(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs, err := newObserver(nil, reg)
	if err != nil {
		t.Fatalf("newObserver: %v", err)
	}

	obs.observe("recommend", time.Now().Add(-10*time.Millisecond), nil)
	obs.observe("recommend", time.Now(), errors.New("fail"))

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("expected metrics to be registered")
	}

	// Verify operations counter has both ok and error.
	found := false
	for _, f := range families {
		if f.GetName() == "skillsift_sdk_operations_total" {
			found = true
			if len(f.GetMetric()) != 2 {
				t.Errorf("expected 2 metric samples, got %d",
					len(f.GetMetric()))
			}
		}
	}
	if !found {
		t.Error("skillsift_sdk_operations_total not found")
	}
}

func TestObserver_WithLogger(t *testing.T) {
	// Проверяем что логгер не паникует при вызове.
	logger := slog.Default()
	obs, err := newObserver(logger, nil)
	if err != nil {
		t.Fatalf("newObserver: %v", err)
	}
	obs.observe("test.op", time.Now(), nil)
	obs.observe("test.op", time.Now(), errors.New("test error"))
}

// TestClient_EndToEnd wires a real client over a temp snapshot and a
// deterministic embedder: no network, no cache store.
func TestClient_EndToEnd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	writeTestSnapshot(t, path)

	client, err := New(context.Background(),
		WithCatalogSnapshot(path),
		WithVectorDimensions(4),
		WithEmbedder(axisEmbedder()),
		WithRecommendDefaults(10, 50),
		WithPrometheus(prometheus.NewRegistry()),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer client.Close()

	health := client.Health(context.Background())
	if health.Status != "ok" {
		t.Errorf("health = %q, want ok", health.Status)
	}
	if health.CatalogRecords != 3 {
		t.Errorf("catalog records = %d, want 3", health.CatalogRecords)
	}

	// Duration constraint filters out the 90-minute assessment.
	res, err := client.Recommend(context.Background(), "java coding test under 40 minutes", nil)
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(res.Recommendations) != 2 {
		t.Fatalf("got %d recommendations, want 2", len(res.Recommendations))
	}
	if res.Recommendations[0].ID != "java-core" {
		t.Errorf("top id = %q, want java-core", res.Recommendations[0].ID)
	}
	for _, r := range res.Recommendations {
		if r.ID == "java-advanced" {
			t.Error("java-advanced (90 min) should be filtered by the duration constraint")
		}
	}
	if res.EmbeddingTokens == 0 {
		t.Error("expected embedding tokens from the retriever")
	}
	top := res.Recommendations[0]
	if top.DurationMinutes == nil || *top.DurationMinutes != 35 {
		t.Errorf("top duration = %v, want 35", top.DurationMinutes)
	}
	if top.Kind != "individual" {
		t.Errorf("top kind = %q, want individual", top.Kind)
	}

	// Unconstrained query returns the full ranked set.
	res, err = client.Recommend(context.Background(), "java", nil)
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(res.Recommendations) != 3 {
		t.Fatalf("got %d recommendations, want 3", len(res.Recommendations))
	}
	if res.Recommendations[0].ID != "java-core" {
		t.Errorf("top id = %q, want java-core", res.Recommendations[0].ID)
	}

	// Blank query maps to the public sentinel.
	_, err = client.Recommend(context.Background(), "   ", nil)
	if !errors.Is(err, ErrInvalidQuery) {
		t.Errorf("err = %v, want ErrInvalidQuery", err)
	}

	// Reload bumps the generation.
	stats, err := client.LoadCatalog()
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	if stats.Generation != 2 {
		t.Errorf("generation = %d, want 2", stats.Generation)
	}
	if stats.Loaded != 3 {
		t.Errorf("loaded = %d, want 3", stats.Loaded)
	}
}

func TestClient_EndToEnd_EmptyCatalog(t *testing.T) {
	client, err := New(context.Background(),
		WithVectorDimensions(4),
		WithEmbedder(axisEmbedder()),
		WithPrometheus(prometheus.NewRegistry()),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer client.Close()

	_, err = client.Recommend(context.Background(), "java", nil)
	if !errors.Is(err, ErrEmptyCatalog) {
		t.Errorf("err = %v, want ErrEmptyCatalog", err)
	}

	health := client.Health(context.Background())
	if health.Status != "error" {
		t.Errorf("health = %q, want error", health.Status)
	}
}

func writeTestSnapshot(t *testing.T, path string) {
	t.Helper()
	records := []catalog.SnapshotRecord{
		{
			ID:              "java-core",
			Name:            "Java Core Skills",
			Description:     "Core java programming assessment",
			URL:             "https://example.com/java-core",
			DurationMinutes: intPtr(35),
			Categories:      []string{"K"},
			RemoteTesting:   true,
			AssessmentKind:  "individual",
			Embedding:       []float32{1, 0, 0, 0},
		},
		{
			ID:              "java-advanced",
			Name:            "Java Advanced Architecture",
			Description:     "Advanced java design assessment",
			URL:             "https://example.com/java-advanced",
			DurationMinutes: intPtr(90),
			Categories:      []string{"K"},
			AssessmentKind:  "individual",
			Embedding:       []float32{0.9, 0.1, 0, 0},
		},
		{
			ID:              "sales-profile",
			Name:            "Sales Personality Profile",
			Description:     "Personality profile for sales roles",
			URL:             "https://example.com/sales-profile",
			DurationMinutes: intPtr(25),
			Categories:      []string{"P"},
			AssessmentKind:  "prepackaged",
			Embedding:       []float32{0, 0, 1, 0},
		},
	}
	if err := catalog.WriteSnapshot(path, records); err != nil {
		t.Fatalf("write snapshot: %v", err)
	}
}

func intPtr(v int) *int { return &v }

// axisEmbedder maps keywords onto fixed vector axes so ranking is
// deterministic without a real provider.
func axisEmbedder() *mockEmbedder {
	return &mockEmbedder{
		fn: func(_ context.Context, text string) (EmbeddingResult, error) {
			lower := strings.ToLower(text)
			v := []float32{0, 0, 0, 0}
			if strings.Contains(lower, "java") {
				v[0] = 1
			}
			if strings.Contains(lower, "python") {
				v[1] = 1
			}
			if strings.Contains(lower, "sales") {
				v[2] = 1
			}
			if v[0] == 0 && v[1] == 0 && v[2] == 0 {
				v[3] = 1
			}
			return EmbeddingResult{Embedding: v, PromptTokens: 3, TotalTokens: 3}, nil
		},
	}
}

// --- embedder mocks ---

type mockEmbedder struct {
	fn func(ctx context.Context, text string) (EmbeddingResult, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	return m.fn(ctx, text)
}

type mockBatchEmbedder struct {
	mockEmbedder
	batchFn func(ctx context.Context, texts []string) (BatchEmbeddingResult, error)
}

func (m *mockBatchEmbedder) BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error) {
	return m.batchFn(ctx, texts)
}
