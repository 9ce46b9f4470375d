// Package engine computes dashboard rollups from a list of transactions.
//
// Every function is a pure transformation of its arguments: nothing is
// cached, nothing is fetched, and inputs are never modified. Months are
// 1-based (time.January == 1) and are evaluated in the calendar of each
// transaction's own location, which api.Ingest sets to the configured zone.
package engine

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ArionMiles/financehub/pkg/api"
)

var hundred = decimal.NewFromInt(100)

// CategoryShare is one entry of an expense split.
type CategoryShare struct {
	Category   string          `json:"category"`
	Amount     decimal.Decimal `json:"amount"`
	Percentage int64           `json:"percentage"`
}

// MonthlyNet is one point of the monthly net revenue series.
type MonthlyNet struct {
	Label      string          `json:"label"`
	Year       int             `json:"year"`
	Month      time.Month      `json:"month"`
	Income     decimal.Decimal `json:"income"`
	Expense    decimal.Decimal `json:"expense"`
	Net        decimal.Decimal `json:"net"`
	NetPercent int64           `json:"netPercent"`
}

// BudgetUsage is a budget compared against actual spending.
type BudgetUsage struct {
	Category   string          `json:"category"`
	Limit      decimal.Decimal `json:"limit"`
	Spent      decimal.Decimal `json:"spent"`
	Remaining  decimal.Decimal `json:"remaining"`
	Percentage int64           `json:"percentage"`
}

// SortByDate returns a copy of txs ordered oldest first. Transactions on the
// same instant are ordered by ID so the result does not depend on input order.
func SortByDate(txs []api.Transaction) []api.Transaction {
	sorted := make([]api.Transaction, len(txs))
	copy(sorted, txs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Date.Equal(sorted[j].Date) {
			return sorted[i].Date.Before(sorted[j].Date)
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted
}

// Balance returns the running balance carried by the chronologically last
// transaction, or zero for an empty list. Amounts are not summed: each
// record carries the authoritative balance.
func Balance(txs []api.Transaction) decimal.Decimal {
	if len(txs) == 0 {
		return decimal.Zero
	}
	sorted := SortByDate(txs)
	return sorted[len(sorted)-1].Balance
}

// FilterByMonth returns the transactions dated within the given calendar month.
func FilterByMonth(txs []api.Transaction, year int, month time.Month) []api.Transaction {
	var out []api.Transaction
	for _, tx := range txs {
		if tx.Date.Year() == year && tx.Date.Month() == month {
			out = append(out, tx)
		}
	}
	return out
}

// SumByDirection sums the amounts of the transactions going in direction.
func SumByDirection(txs []api.Transaction, direction api.Direction) decimal.Decimal {
	sum := decimal.Zero
	for _, tx := range txs {
		if tx.Direction == direction {
			sum = sum.Add(tx.Amount)
		}
	}
	return sum
}

// TrailingWindow returns the transactions dated within [ref - days, ref],
// both ends included. Days are calendar days in ref's location.
func TrailingWindow(txs []api.Transaction, ref time.Time, days int) []api.Transaction {
	start := ref.AddDate(0, 0, -days)
	var out []api.Transaction
	for _, tx := range txs {
		if !tx.Date.Before(start) && !tx.Date.After(ref) {
			out = append(out, tx)
		}
	}
	return out
}

// ExpenseSplit groups expenses by category. Percentages are computed against
// one shared total, so they sum to 100 up to rounding drift. Entries are
// ordered by amount, largest first.
func ExpenseSplit(txs []api.Transaction) []CategoryShare {
	totals := make(map[string]decimal.Decimal)
	for _, tx := range txs {
		if tx.Direction != api.DirectionExpense {
			continue
		}
		totals[tx.Category] = totals[tx.Category].Add(tx.Amount)
	}

	total := decimal.Zero
	for _, amount := range totals {
		total = total.Add(amount)
	}

	split := make([]CategoryShare, 0, len(totals))
	for category, amount := range totals {
		split = append(split, CategoryShare{
			Category:   category,
			Amount:     amount,
			Percentage: Percent(amount, total),
		})
	}
	sort.Slice(split, func(i, j int) bool {
		if c := split[i].Amount.Cmp(split[j].Amount); c != 0 {
			return c > 0
		}
		return split[i].Category < split[j].Category
	})
	return split
}

// MonthlyNetSeries returns count points, oldest first, ending at the given
// month. NetPercent scales each |net| against the largest |net| in the series.
func MonthlyNetSeries(txs []api.Transaction, year int, month time.Month, count int) []MonthlyNet {
	if count < 0 {
		count = 0
	}

	series := make([]MonthlyNet, 0, count)
	maxAbs := decimal.Zero
	for i := count - 1; i >= 0; i-- {
		first := time.Date(year, month-time.Month(i), 1, 0, 0, 0, 0, time.UTC)
		monthTxs := FilterByMonth(txs, first.Year(), first.Month())

		income := SumByDirection(monthTxs, api.DirectionIncome)
		expense := SumByDirection(monthTxs, api.DirectionExpense)
		net := income.Sub(expense)
		if net.Abs().GreaterThan(maxAbs) {
			maxAbs = net.Abs()
		}

		series = append(series, MonthlyNet{
			Label:   first.Format("Jan"),
			Year:    first.Year(),
			Month:   first.Month(),
			Income:  income,
			Expense: expense,
			Net:     net,
		})
	}

	for i := range series {
		series[i].NetPercent = Percent(series[i].Net.Abs(), maxAbs)
	}
	return series
}

// BudgetUtilization compares each budget with the expenses whose raw
// category is one of the budget's aliases. Income entries in monthExpenses
// are ignored.
func BudgetUtilization(budgets []api.Budget, monthExpenses []api.Transaction, aliases api.CategoryAliases) []BudgetUsage {
	usage := make([]BudgetUsage, 0, len(budgets))
	for _, b := range budgets {
		labels := make(map[string]struct{})
		for _, label := range aliases.Resolve(b.Category) {
			labels[label] = struct{}{}
		}

		spent := decimal.Zero
		for _, tx := range monthExpenses {
			if tx.Direction != api.DirectionExpense {
				continue
			}
			if _, ok := labels[tx.Category]; ok {
				spent = spent.Add(tx.Amount)
			}
		}

		usage = append(usage, BudgetUsage{
			Category:   b.Category,
			Limit:      b.MonthlyLimit,
			Spent:      spent,
			Remaining:  b.MonthlyLimit.Sub(spent),
			Percentage: Percent(spent, b.MonthlyLimit),
		})
	}
	return usage
}

// Percent returns round(part / whole * 100), or 0 when whole is zero.
func Percent(part, whole decimal.Decimal) int64 {
	if whole.IsZero() {
		return 0
	}
	return part.Div(whole).Mul(hundred).Round(0).IntPart()
}

// SavingsRate returns (income - expense) / income * 100 rounded to two
// decimals, or 0 when there is no income.
func SavingsRate(income, expense decimal.Decimal) float64 {
	if income.IsZero() {
		return 0
	}
	return income.Sub(expense).Div(income).Mul(hundred).Round(2).InexactFloat64()
}
