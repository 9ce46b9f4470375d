package engine

import (
	"sort"

	"github.com/ArionMiles/financehub/pkg/api"
)

// SortOrder selects how ListTransactions orders its result.
type SortOrder string

// Sort orders supported by ListTransactions.
const (
	SortByDateDesc   SortOrder = "date"
	SortByAmountDesc SortOrder = "amount"
)

// ListFilter narrows a transaction listing.
type ListFilter struct {
	// Direction keeps only one direction when set.
	Direction api.Direction
	Sort      SortOrder
	// Limit caps the result when positive.
	Limit int
}

// Newest returns a copy of txs ordered newest first.
func Newest(txs []api.Transaction) []api.Transaction {
	sorted := SortByDate(txs)
	for i, j := 0, len(sorted)-1; i < j; i, j = i+1, j-1 {
		sorted[i], sorted[j] = sorted[j], sorted[i]
	}
	return sorted
}

// Recent returns the n most recent transactions, newest first.
func Recent(txs []api.Transaction, n int) []api.Transaction {
	return ListTransactions(txs, ListFilter{Sort: SortByDateDesc, Limit: n})
}

// ListTransactions filters and orders txs for display.
func ListTransactions(txs []api.Transaction, f ListFilter) []api.Transaction {
	out := Newest(txs)

	if f.Direction != "" {
		filtered := out[:0]
		for _, tx := range out {
			if tx.Direction == f.Direction {
				filtered = append(filtered, tx)
			}
		}
		out = filtered
	}

	if f.Sort == SortByAmountDesc {
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Amount.GreaterThan(out[j].Amount)
		})
	}

	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}
