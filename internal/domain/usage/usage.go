package usage

// Period is the aggregation granularity.
type Period string

// Aggregation period constants.
const (
	PeriodDay   Period = "day"
	PeriodMonth Period = "month"
	PeriodTotal Period = "total"
)

// Budget tracks embedding token budget state.
type Budget struct {
	tokensLimit     int
	tokensRemaining int
	isExhausted     bool
	resetsAt        int64 // unix millis, converted to ISO 8601 at transport layer
}

// NewBudget creates a Budget snapshot.
func NewBudget(limit, remaining int, isExhausted bool, resetsAt int64) Budget {
	return Budget{
		tokensLimit:     limit,
		tokensRemaining: remaining,
		isExhausted:     isExhausted,
		resetsAt:        resetsAt,
	}
}

// TokensLimit returns the token cap.
func (b Budget) TokensLimit() int { return b.tokensLimit }

// TokensRemaining returns tokens left.
func (b Budget) TokensRemaining() int { return b.tokensRemaining }

// IsExhausted reports whether the budget is spent.
func (b Budget) IsExhausted() bool { return b.isExhausted }

// ResetsAt returns the reset timestamp (unix millis).
func (b Budget) ResetsAt() int64 { return b.resetsAt }

// Report is an embedding token usage report for a time period.
type Report struct {
	period      Period
	periodStart int64
	periodEnd   int64
	provider    string
	tokens      int64
	budget      Budget
}

// NewReport creates a usage report.
func NewReport(period Period, start, end int64, provider string, tokens int64, b Budget) Report {
	return Report{
		period:      period,
		periodStart: start,
		periodEnd:   end,
		provider:    provider,
		tokens:      tokens,
		budget:      b,
	}
}

// Period returns the aggregation granularity.
func (r *Report) Period() Period { return r.period }

// PeriodStart returns the period start timestamp (unix millis).
func (r *Report) PeriodStart() int64 { return r.periodStart }

// PeriodEnd returns the period end timestamp (unix millis).
func (r *Report) PeriodEnd() int64 { return r.periodEnd }

// Provider returns the embedding provider the report covers.
func (r *Report) Provider() string { return r.provider }

// Tokens returns the tokens consumed in the period.
func (r *Report) Tokens() int64 { return r.tokens }

// Budget returns the budget status.
func (r *Report) Budget() Budget { return r.budget }
