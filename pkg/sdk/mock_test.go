package skillsift

import (
	"context"

	"github.com/kailas-cloud/skillsift/internal/catalog"
	domrec "github.com/kailas-cloud/skillsift/internal/domain/recommend"
	domusage "github.com/kailas-cloud/skillsift/internal/domain/usage"
	healthuc "github.com/kailas-cloud/skillsift/internal/usecase/health"
)

// --- recommendUseCase mock ---

type mockRecommendUC struct {
	recommendFn func(ctx context.Context, queryText string, maxResultsOverride int) (domrec.Result, error)
}

func (m *mockRecommendUC) Recommend(
	ctx context.Context, queryText string, maxResultsOverride int,
) (domrec.Result, error) {
	return m.recommendFn(ctx, queryText, maxResultsOverride)
}

// --- usageUseCase mock ---

type mockUsageUC struct {
	getReportFn func(ctx context.Context, period domusage.Period) domusage.Report
}

func (m *mockUsageUC) GetReport(ctx context.Context, period domusage.Period) domusage.Report {
	return m.getReportFn(ctx, period)
}

// --- healthUseCase mock ---

type mockHealthUC struct {
	checkFn func(ctx context.Context) healthuc.Report
}

func (m *mockHealthUC) Check(ctx context.Context) healthuc.Report {
	return m.checkFn(ctx)
}

// --- catalogLoader mock ---

type mockLoader struct {
	loadFn func() (catalog.LoadStats, error)
}

func (m *mockLoader) Load() (catalog.LoadStats, error) {
	return m.loadFn()
}

// --- helpers ---

func testClient(
	engine recommendUseCase,
	usageSvc usageUseCase,
	healthSvc healthUseCase,
	loader catalogLoader,
) *Client {
	return &Client{
		loader:    loader,
		engine:    engine,
		usageSvc:  usageSvc,
		healthSvc: healthSvc,
	}
}
