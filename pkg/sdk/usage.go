package skillsift

import (
	"context"
	"time"

	domusage "github.com/kailas-cloud/skillsift/internal/domain/usage"
)

// UsagePeriod is the aggregation granularity for usage reports.
type UsagePeriod string

// UsagePeriod constants.
const (
	PeriodDay   UsagePeriod = "day"
	PeriodMonth UsagePeriod = "month"
	PeriodTotal UsagePeriod = "total"
)

// UsageReport contains embedding token usage for a time period.
type UsageReport struct {
	Period      UsagePeriod
	Provider    string
	PeriodStart time.Time // zero for the total period
	PeriodEnd   time.Time
	Tokens      int64
	Budget      BudgetStatus
}

// BudgetStatus tracks token quota state.
type BudgetStatus struct {
	TokensLimit     int
	TokensRemaining int
	IsExhausted     bool
	ResetsAt        time.Time // zero without an active budget
}

// Usage returns an embedding usage report for the given period. Without
// WithTokenBudget the report carries zero counters and never exhausts.
// Observer always records success: the underlying use-case is in-memory
// and does not produce errors.
func (c *Client) Usage(ctx context.Context, period UsagePeriod) UsageReport {
	start := time.Now()
	defer func() { c.obs.observe("usage", start, nil) }()

	report := c.usageSvc.GetReport(ctx, domusage.Period(period))
	b := report.Budget()

	out := UsageReport{
		Period:   UsagePeriod(report.Period()),
		Provider: report.Provider(),
		Tokens:   report.Tokens(),
		Budget: BudgetStatus{
			TokensLimit:     b.TokensLimit(),
			TokensRemaining: b.TokensRemaining(),
			IsExhausted:     b.IsExhausted(),
		},
	}
	if report.PeriodStart() > 0 {
		out.PeriodStart = time.UnixMilli(report.PeriodStart()).UTC()
	}
	if report.PeriodEnd() > 0 {
		out.PeriodEnd = time.UnixMilli(report.PeriodEnd()).UTC()
	}
	if b.ResetsAt() > 0 {
		out.Budget.ResetsAt = time.UnixMilli(b.ResetsAt()).UTC()
	}
	return out
}

// usageUseCase is the internal interface for usage reports.
type usageUseCase interface {
	GetReport(ctx context.Context, period domusage.Period) domusage.Report
}
