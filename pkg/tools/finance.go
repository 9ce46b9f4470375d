package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ArionMiles/financehub/pkg/engine"
)

// Recent transaction limits.
const (
	DefaultRecentLimit = 10
	MaxRecentLimit     = 100
)

// Budget reduction rules, applied to the utilization of the reference month.
var (
	highUtilization   = int64(90)
	mediumUtilization = int64(75)
	highCut           = decimal.New(85, -2)
	mediumCut         = decimal.New(90, -2)
)

// Priority ranks a budget recommendation.
type Priority string

// Recommendation priorities.
const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

var printer = message.NewPrinter(language.English)

func money(d decimal.Decimal) string {
	return printer.Sprintf("$%.2f", d.InexactFloat64())
}

// Overview is get_financial_overview.
type Overview struct{}

// OverviewResult summarises the reference month.
type OverviewResult struct {
	TotalBalance   decimal.Decimal `json:"totalBalance"`
	MonthlyIncome  decimal.Decimal `json:"monthlyIncome"`
	MonthlyExpense decimal.Decimal `json:"monthlyExpense"`
	SavingsRate    float64         `json:"savingsRate"`
}

// Name returns the tool name.
func (t *Overview) Name() string { return "get_financial_overview" }

// Description returns a human-readable description.
func (t *Overview) Description() string {
	return "Get an overview of the user's financial status: balance, monthly income, monthly expenses and savings rate"
}

// InputSchema returns the tool's argument schema.
func (t *Overview) InputSchema() map[string]any { return emptySchema() }

// Call returns the overview figures of snap.
func (t *Overview) Call(_ context.Context, snap Snapshot, _ json.RawMessage) (any, error) {
	v := snap.View
	return OverviewResult{
		TotalBalance:   v.TotalBalance,
		MonthlyIncome:  v.MonthlyIncome,
		MonthlyExpense: v.MonthlyExpense,
		SavingsRate:    v.SavingsRate,
	}, nil
}

// RecentTransactions is get_recent_transactions.
type RecentTransactions struct{}

type recentArgs struct {
	Limit int `json:"limit"`
}

// Name returns the tool name.
func (t *RecentTransactions) Name() string { return "get_recent_transactions" }

// Description returns a human-readable description.
func (t *RecentTransactions) Description() string {
	return "Retrieve the most recent transactions, newest first"
}

// InputSchema returns the tool's argument schema.
func (t *RecentTransactions) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"limit": map[string]any{
				"type":        "number",
				"description": fmt.Sprintf("Number of transactions to retrieve (default: %d, max: %d)", DefaultRecentLimit, MaxRecentLimit),
			},
		},
		"required": []string{},
	}
}

// Call returns up to limit transactions.
func (t *RecentTransactions) Call(_ context.Context, snap Snapshot, args json.RawMessage) (any, error) {
	var a recentArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	return engine.Recent(snap.Dataset.Transactions, clampLimit(a.Limit)), nil
}

func clampLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultRecentLimit
	case n > MaxRecentLimit:
		return MaxRecentLimit
	default:
		return n
	}
}

// ExpenseAnalysis is get_expense_analysis.
type ExpenseAnalysis struct{}

// ExpenseAnalysisResult breaks down the reference month's expenses.
type ExpenseAnalysisResult struct {
	ExpenseBreakdown []engine.CategoryShare `json:"expenseBreakdown"`
	TotalExpenses    decimal.Decimal        `json:"totalExpenses"`
	Recommendations  []string               `json:"recommendations"`
}

// Name returns the tool name.
func (t *ExpenseAnalysis) Name() string { return "get_expense_analysis" }

// Description returns a human-readable description.
func (t *ExpenseAnalysis) Description() string {
	return "Get a breakdown of this month's expenses by category with recommendations"
}

// InputSchema returns the tool's argument schema.
func (t *ExpenseAnalysis) InputSchema() map[string]any { return emptySchema() }

// Call analyses the expense split of snap.
func (t *ExpenseAnalysis) Call(_ context.Context, snap Snapshot, _ json.RawMessage) (any, error) {
	v := snap.View
	total := decimal.Zero
	for _, s := range v.ExpenseSplit {
		total = total.Add(s.Amount)
	}

	recs := []string{}
	if len(v.ExpenseSplit) > 0 {
		top := v.ExpenseSplit[0]
		recs = append(recs, printer.Sprintf("%s is the largest expense at %d%%; trimming it by 10%% saves %s a month",
			top.Category, top.Percentage, money(top.Amount.Mul(decimal.New(10, -2)))))
	}
	for _, b := range v.Budgets {
		if b.Percentage >= highUtilization {
			recs = append(recs, printer.Sprintf("%s has used %d%% of its %s budget", b.Category, b.Percentage, money(b.Limit)))
		}
	}
	switch {
	case v.MonthlyIncome.IsZero():
		recs = append(recs, "No income recorded this month; savings rate cannot be assessed")
	case v.SavingsRate >= 20:
		recs = append(recs, printer.Sprintf("Current savings rate is healthy at %.2f%%", v.SavingsRate))
	default:
		recs = append(recs, printer.Sprintf("Current savings rate of %.2f%% is below the recommended 20%%", v.SavingsRate))
	}

	return ExpenseAnalysisResult{
		ExpenseBreakdown: v.ExpenseSplit,
		TotalExpenses:    total,
		Recommendations:  recs,
	}, nil
}

// BudgetRecommendations is get_budget_recommendations.
type BudgetRecommendations struct{}

// BudgetRecommendation suggests a new limit for one budget.
type BudgetRecommendation struct {
	Category     string          `json:"category"`
	CurrentLimit decimal.Decimal `json:"currentLimit"`
	Spent        decimal.Decimal `json:"spent"`
	Utilization  int64           `json:"utilization"`
	TargetLimit  decimal.Decimal `json:"targetLimit"`
	Savings      decimal.Decimal `json:"savings"`
	Advice       string          `json:"advice"`
	Priority     Priority        `json:"priority"`
}

// BudgetRecommendationsResult lists recommendations and a summary line.
type BudgetRecommendationsResult struct {
	Recommendations []BudgetRecommendation `json:"recommendations"`
	TotalSavings    decimal.Decimal        `json:"totalSavings"`
	Summary         string                 `json:"summary"`
}

// Name returns the tool name.
func (t *BudgetRecommendations) Name() string { return "get_budget_recommendations" }

// Description returns a human-readable description.
func (t *BudgetRecommendations) Description() string {
	return "Get budget recommendations based on this month's spending against each budget"
}

// InputSchema returns the tool's argument schema.
func (t *BudgetRecommendations) InputSchema() map[string]any { return emptySchema() }

// Call recommends a target limit per budget.
func (t *BudgetRecommendations) Call(_ context.Context, snap Snapshot, _ json.RawMessage) (any, error) {
	recs := make([]BudgetRecommendation, 0, len(snap.View.Budgets))
	total := decimal.Zero
	high := 0
	for _, b := range snap.View.Budgets {
		rec := Recommend(b)
		if rec.Priority == PriorityHigh {
			high++
		}
		total = total.Add(rec.Savings)
		recs = append(recs, rec)
	}

	var summary string
	switch {
	case len(recs) == 0:
		summary = "No budgets defined yet. Set monthly limits to get recommendations."
	case high > 0:
		summary = printer.Sprintf("%d budget(s) are close to their limit. Tightening them frees up %s a month.", high, money(total))
	case total.IsPositive():
		summary = printer.Sprintf("Spending is under control. Small adjustments free up %s a month.", money(total))
	default:
		summary = "All budgets are comfortably within their limits."
	}

	return BudgetRecommendationsResult{
		Recommendations: recs,
		TotalSavings:    total,
		Summary:         summary,
	}, nil
}

// Recommend derives the target limit of one budget: 15% lower at 90% or
// more utilization, 10% lower at 75% or more, unchanged otherwise.
func Recommend(b engine.BudgetUsage) BudgetRecommendation {
	rec := BudgetRecommendation{
		Category:     b.Category,
		CurrentLimit: b.Limit,
		Spent:        b.Spent,
		Utilization:  b.Percentage,
		TargetLimit:  b.Limit,
		Priority:     PriorityLow,
	}

	switch {
	case b.Percentage >= highUtilization:
		rec.TargetLimit = b.Limit.Mul(highCut).Round(2)
		rec.Priority = PriorityHigh
		rec.Advice = printer.Sprintf("Spending is at %d%% of the limit. Reduce to %s a month and review each purchase.", b.Percentage, money(rec.TargetLimit))
	case b.Percentage >= mediumUtilization:
		rec.TargetLimit = b.Limit.Mul(mediumCut).Round(2)
		rec.Priority = PriorityMedium
		rec.Advice = printer.Sprintf("Spending is at %d%% of the limit. Reduce to %s a month to increase savings.", b.Percentage, money(rec.TargetLimit))
	default:
		rec.Advice = printer.Sprintf("Spending is at %d%% of the limit. Maintain the current level.", b.Percentage)
	}
	rec.Savings = rec.CurrentLimit.Sub(rec.TargetLimit)
	return rec
}

// RenderDashboard is render_dashboard.
type RenderDashboard struct{}

// Name returns the tool name.
func (t *RenderDashboard) Name() string { return "render_dashboard" }

// Description returns a human-readable description.
func (t *RenderDashboard) Description() string {
	return "Render the full financial dashboard for the current month"
}

// InputSchema returns the tool's argument schema.
func (t *RenderDashboard) InputSchema() map[string]any { return emptySchema() }

// Call returns the dashboard view.
func (t *RenderDashboard) Call(_ context.Context, snap Snapshot, _ json.RawMessage) (any, error) {
	return snap.View, nil
}
