package skillsift

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/skillsift/internal/catalog"
	"github.com/kailas-cloud/skillsift/internal/domain"
	"github.com/kailas-cloud/skillsift/internal/domain/assessment"
	domrec "github.com/kailas-cloud/skillsift/internal/domain/recommend"
	domusage "github.com/kailas-cloud/skillsift/internal/domain/usage"
	healthuc "github.com/kailas-cloud/skillsift/internal/usecase/health"
)

func TestRecommend_MapsItems(t *testing.T) {
	dur := 35
	full := assessment.Reconstruct(assessment.Params{
		ID:              "java-core",
		Name:            "Java Core Skills",
		URL:             "https://example.com/java-core",
		DurationMinutes: &dur,
		Categories:      []assessment.Category{assessment.CategoryKnowledge, assessment.CategoryPersonality},
		RemoteTesting:   true,
		AdaptiveSupport: true,
		Kind:            assessment.KindPrepackaged,
	})
	noDuration := assessment.Reconstruct(assessment.Params{
		ID:   "mystery",
		Name: "Mystery Assessment",
	})

	engine := &mockRecommendUC{
		recommendFn: func(ctx context.Context, queryText string, _ int) (domrec.Result, error) {
			domain.UsageFromContext(ctx).AddTokens(17)
			return domrec.NewResult([]domrec.Item{
				domrec.NewItem(full, 0.95),
				domrec.NewItem(noDuration, 0.4),
			}), nil
		},
	}
	c := testClient(engine, nil, nil, nil)

	res, err := c.Recommend(context.Background(), "java coding test", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Query != "java coding test" {
		t.Errorf("query = %q", res.Query)
	}
	if len(res.Recommendations) != 2 {
		t.Fatalf("got %d recommendations, want 2", len(res.Recommendations))
	}
	if res.EmbeddingTokens != 17 {
		t.Errorf("embedding tokens = %d, want 17", res.EmbeddingTokens)
	}

	top := res.Recommendations[0]
	if top.ID != "java-core" || top.Name != "Java Core Skills" {
		t.Errorf("top = (%q, %q)", top.ID, top.Name)
	}
	if top.URL != "https://example.com/java-core" {
		t.Errorf("url = %q", top.URL)
	}
	if top.Score != 0.95 {
		t.Errorf("score = %v, want 0.95", top.Score)
	}
	if top.DurationMinutes == nil || *top.DurationMinutes != 35 {
		t.Errorf("duration = %v, want 35", top.DurationMinutes)
	}
	if len(top.Categories) != 2 || top.Categories[0] != "K" || top.Categories[1] != "P" {
		t.Errorf("categories = %v, want [K P]", top.Categories)
	}
	if !top.RemoteTesting || !top.AdaptiveSupport {
		t.Errorf("flags = (%v, %v), want both true", top.RemoteTesting, top.AdaptiveSupport)
	}
	if top.Kind != "prepackaged" {
		t.Errorf("kind = %q, want prepackaged", top.Kind)
	}

	second := res.Recommendations[1]
	if second.DurationMinutes != nil {
		t.Errorf("duration = %v, want nil for unknown duration", second.DurationMinutes)
	}
}

func TestRecommend_NilOptions(t *testing.T) {
	var gotOverride int
	engine := &mockRecommendUC{
		recommendFn: func(_ context.Context, _ string, maxResultsOverride int) (domrec.Result, error) {
			gotOverride = maxResultsOverride
			return domrec.NewResult(nil), nil
		},
	}
	c := testClient(engine, nil, nil, nil)

	res, err := c.Recommend(context.Background(), "query", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotOverride != 0 {
		t.Errorf("override = %d, want 0 for nil options", gotOverride)
	}
	if len(res.Recommendations) != 0 {
		t.Errorf("got %d recommendations, want 0", len(res.Recommendations))
	}
	if res.EmbeddingTokens != 0 {
		t.Errorf("embedding tokens = %d, want 0 when untouched", res.EmbeddingTokens)
	}
}

func TestRecommend_MaxResultsOption(t *testing.T) {
	var gotOverride int
	engine := &mockRecommendUC{
		recommendFn: func(_ context.Context, _ string, maxResultsOverride int) (domrec.Result, error) {
			gotOverride = maxResultsOverride
			return domrec.NewResult(nil), nil
		},
	}
	c := testClient(engine, nil, nil, nil)

	_, err := c.Recommend(context.Background(), "query", &RecommendOptions{MaxResults: 7})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotOverride != 7 {
		t.Errorf("override = %d, want 7", gotOverride)
	}
}

func TestRecommend_SentinelError(t *testing.T) {
	engine := &mockRecommendUC{
		recommendFn: func(_ context.Context, _ string, _ int) (domrec.Result, error) {
			return domrec.Result{}, domain.ErrEmptyCatalog
		},
	}
	c := testClient(engine, nil, nil, nil)

	_, err := c.Recommend(context.Background(), "query", nil)
	if !errors.Is(err, ErrEmptyCatalog) {
		t.Errorf("err = %v, want ErrEmptyCatalog through the wrap", err)
	}
	if !strings.Contains(err.Error(), "recommend:") {
		t.Errorf("err = %q, want recommend: prefix", err)
	}
}

func TestUsage_MapsReport(t *testing.T) {
	dayStart := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	var gotPeriod domusage.Period
	svc := &mockUsageUC{
		getReportFn: func(_ context.Context, period domusage.Period) domusage.Report {
			gotPeriod = period
			return domusage.NewReport(
				domusage.PeriodDay,
				dayStart.UnixMilli(),
				dayEnd.UnixMilli(),
				"openai",
				12_500,
				domusage.NewBudget(100_000, 87_500, false, dayEnd.UnixMilli()),
			)
		},
	}
	c := testClient(nil, svc, nil, nil)

	report := c.Usage(context.Background(), PeriodDay)
	if gotPeriod != domusage.PeriodDay {
		t.Errorf("period passed = %q, want day", gotPeriod)
	}
	if report.Period != PeriodDay {
		t.Errorf("period = %q, want day", report.Period)
	}
	if report.Provider != "openai" {
		t.Errorf("provider = %q, want openai", report.Provider)
	}
	if report.Tokens != 12_500 {
		t.Errorf("tokens = %d, want 12500", report.Tokens)
	}
	if !report.PeriodStart.Equal(dayStart) {
		t.Errorf("period start = %v, want %v", report.PeriodStart, dayStart)
	}
	if !report.PeriodEnd.Equal(dayEnd) {
		t.Errorf("period end = %v, want %v", report.PeriodEnd, dayEnd)
	}
	if report.Budget.TokensLimit != 100_000 || report.Budget.TokensRemaining != 87_500 {
		t.Errorf("budget = (%d, %d)", report.Budget.TokensLimit, report.Budget.TokensRemaining)
	}
	if report.Budget.IsExhausted {
		t.Error("budget should not be exhausted")
	}
	if !report.Budget.ResetsAt.Equal(dayEnd) {
		t.Errorf("resets at = %v, want %v", report.Budget.ResetsAt, dayEnd)
	}
}

func TestUsage_TotalOmitsBoundaries(t *testing.T) {
	svc := &mockUsageUC{
		getReportFn: func(_ context.Context, _ domusage.Period) domusage.Report {
			return domusage.NewReport(
				domusage.PeriodTotal, 0, 0, "gemini", 42,
				domusage.NewBudget(0, 0, false, 0),
			)
		},
	}
	c := testClient(nil, svc, nil, nil)

	report := c.Usage(context.Background(), PeriodTotal)
	if !report.PeriodStart.IsZero() || !report.PeriodEnd.IsZero() {
		t.Errorf("boundaries = (%v, %v), want zero for total",
			report.PeriodStart, report.PeriodEnd)
	}
	if !report.Budget.ResetsAt.IsZero() {
		t.Errorf("resets at = %v, want zero without a budget", report.Budget.ResetsAt)
	}
	if report.Tokens != 42 {
		t.Errorf("tokens = %d, want 42", report.Tokens)
	}
}

func TestHealth_MapsReport(t *testing.T) {
	svc := &mockHealthUC{
		checkFn: func(_ context.Context) healthuc.Report {
			return healthuc.Report{
				Status: healthuc.Degraded,
				Checks: map[string]healthuc.CheckResult{
					"catalog":   healthuc.CheckOK,
					"store":     healthuc.CheckError,
					"embedding": healthuc.CheckOK,
				},
				Generation: 4,
				Records:    812,
			}
		},
	}
	c := testClient(nil, nil, svc, nil)

	status := c.Health(context.Background())
	if status.Status != "degraded" {
		t.Errorf("status = %q, want degraded", status.Status)
	}
	if status.CatalogGeneration != 4 || status.CatalogRecords != 812 {
		t.Errorf("catalog = (%d, %d), want (4, 812)",
			status.CatalogGeneration, status.CatalogRecords)
	}
	if status.Checks["store"] != "error" {
		t.Errorf("store check = %q, want error", status.Checks["store"])
	}
	if status.Checks["catalog"] != "ok" || status.Checks["embedding"] != "ok" {
		t.Errorf("checks = %v", status.Checks)
	}
}

func TestLoadCatalog_MapsStats(t *testing.T) {
	loader := &mockLoader{
		loadFn: func() (catalog.LoadStats, error) {
			return catalog.LoadStats{
				Generation:   3,
				Loaded:       12,
				Quarantined:  2,
				Deduplicated: 1,
			}, nil
		},
	}
	c := testClient(nil, nil, nil, loader)

	stats, err := c.LoadCatalog()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Generation != 3 {
		t.Errorf("generation = %d, want 3", stats.Generation)
	}
	if stats.Loaded != 12 || stats.Quarantined != 2 || stats.Deduplicated != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestLoadCatalog_Error(t *testing.T) {
	loader := &mockLoader{
		loadFn: func() (catalog.LoadStats, error) {
			return catalog.LoadStats{}, domain.ErrInvalidSnapshot
		},
	}
	c := testClient(nil, nil, nil, loader)

	_, err := c.LoadCatalog()
	if !errors.Is(err, ErrInvalidSnapshot) {
		t.Errorf("err = %v, want ErrInvalidSnapshot", err)
	}
	if !strings.Contains(err.Error(), "load catalog:") {
		t.Errorf("err = %q, want load catalog: prefix", err)
	}
}
