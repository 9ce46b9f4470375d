package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ArionMiles/financehub/pkg/api"
)

// Defaults for Options fields left at their zero value.
const (
	DefaultRevenueMonths      = 6
	DefaultWeekDays           = 7
	DefaultDonutSegments      = 5
	DefaultDonutCircumference = 2 * 3.14159265358979 * 40
)

// Options parameterise Build.
type Options struct {
	// Reference is the instant the view is computed for; its month is the
	// reference month. Required.
	Reference time.Time
	// Location, when set, moves Reference into that calendar first.
	Location           *time.Location
	RevenueMonths      int
	WeekDays           int
	DonutSegments      int
	DonutCircumference float64
}

func (o Options) withDefaults() Options {
	if o.Location != nil {
		o.Reference = o.Reference.In(o.Location)
	}
	if o.RevenueMonths <= 0 {
		o.RevenueMonths = DefaultRevenueMonths
	}
	if o.WeekDays <= 0 {
		o.WeekDays = DefaultWeekDays
	}
	if o.DonutSegments <= 0 {
		o.DonutSegments = DefaultDonutSegments
	}
	if o.DonutCircumference <= 0 {
		o.DonutCircumference = DefaultDonutCircumference
	}
	return o
}

// DashboardView is the derived dashboard for one reference month. It is
// recomputed on every request and never stored.
type DashboardView struct {
	Year                int               `json:"year"`
	Month               time.Month        `json:"month"`
	TotalBalance        decimal.Decimal   `json:"totalBalance"`
	MonthlyIncome       decimal.Decimal   `json:"monthlyIncome"`
	MonthlyExpense      decimal.Decimal   `json:"monthlyExpense"`
	SavingsRate         float64           `json:"savingsRate"`
	WeeklyIncome        decimal.Decimal   `json:"weeklyIncome"`
	WeeklyExpense       decimal.Decimal   `json:"weeklyExpense"`
	LastMonthNetRevenue decimal.Decimal   `json:"lastMonthNetRevenue"`
	RevenueFlow         []MonthlyNet      `json:"revenueFlow"`
	ExpenseSplit        []CategoryShare   `json:"expenseSplit"`
	Budgets             []BudgetUsage     `json:"budgets"`
	Donut               []DonutSegment    `json:"donut"`
	Transactions        []api.Transaction `json:"transactions"`
}

// Build assembles the dashboard view of ds for the month of opts.Reference.
func Build(ds *api.Dataset, opts Options) DashboardView {
	opts = opts.withDefaults()
	if ds == nil {
		ds = &api.Dataset{}
	}

	ref := opts.Reference
	year, month := ref.Year(), ref.Month()
	txs := ds.Transactions

	monthTxs := FilterByMonth(txs, year, month)
	income := SumByDirection(monthTxs, api.DirectionIncome)
	expense := SumByDirection(monthTxs, api.DirectionExpense)

	week := TrailingWindow(txs, ref, opts.WeekDays)

	prev := time.Date(year, month-1, 1, 0, 0, 0, 0, time.UTC)
	prevTxs := FilterByMonth(txs, prev.Year(), prev.Month())
	lastNet := SumByDirection(prevTxs, api.DirectionIncome).Sub(SumByDirection(prevTxs, api.DirectionExpense))

	split := ExpenseSplit(monthTxs)

	return DashboardView{
		Year:                year,
		Month:               month,
		TotalBalance:        Balance(txs),
		MonthlyIncome:       income,
		MonthlyExpense:      expense,
		SavingsRate:         SavingsRate(income, expense),
		WeeklyIncome:        SumByDirection(week, api.DirectionIncome),
		WeeklyExpense:       SumByDirection(week, api.DirectionExpense),
		LastMonthNetRevenue: lastNet,
		RevenueFlow:         MonthlyNetSeries(txs, year, month, opts.RevenueMonths),
		ExpenseSplit:        split,
		Budgets:             BudgetUtilization(ds.Budgets, monthTxs, ds.Aliases),
		Donut:               DonutSegments(split, opts.DonutSegments, opts.DonutCircumference),
		Transactions:        Newest(txs),
	}
}
