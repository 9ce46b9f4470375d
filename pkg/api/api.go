// Package api defines the core interfaces and data structures for financehub.
package api

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Amounts travel to the dashboard and the assistant as plain JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// Direction tells whether a transaction increases or decreases the balance.
type Direction string

const (
	// DirectionIncome is money coming in (source direction "credit").
	DirectionIncome Direction = "income"
	// DirectionExpense is money going out (source direction "debit").
	DirectionExpense Direction = "expense"
)

// SourceName returns the bank-style spelling stored by data sources.
func (d Direction) SourceName() string {
	if d == DirectionIncome {
		return "credit"
	}
	return "debit"
}

// Status is the settlement state of a transaction.
type Status string

// Transaction statuses.
const (
	StatusSuccess Status = "success"
	StatusPending Status = "pending"
	StatusFailed  Status = "failed"
)

// Transaction is a validated, immutable transaction record.
type Transaction struct {
	ID          string          `json:"id"`
	UserID      string          `json:"userId,omitempty"`
	Direction   Direction       `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	// Balance is the authoritative running balance after this transaction.
	Balance     decimal.Decimal `json:"currentBalance"`
	Date        time.Time       `json:"date"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Status      Status          `json:"status"`
}

// Budget is a monthly spending limit for a logical category.
type Budget struct {
	Category     string          `json:"category"`
	MonthlyLimit decimal.Decimal `json:"limit"`
}

// CategoryAliases maps a logical budget category to the raw transaction
// category labels it covers, e.g. "Dining" => {"Restaurants", "Fast Food"}.
type CategoryAliases map[string][]string

// Resolve returns the raw labels for a logical category. A category without
// an alias entry resolves to itself.
func (a CategoryAliases) Resolve(category string) []string {
	if labels, ok := a[category]; ok && len(labels) > 0 {
		return labels
	}
	return []string{category}
}

// RawTransaction is a transaction as it appears in a data source, before
// validation. Amount fields are kept raw so that one malformed record does
// not prevent decoding the others.
type RawTransaction struct {
	TransactionID  string          `json:"transaction_id"`
	UserID         string          `json:"user_id"`
	Date           string          `json:"date"`
	Category       string          `json:"category"`
	Direction      string          `json:"direction"`
	Amount         json.RawMessage `json:"amount"`
	CurrentBalance json.RawMessage `json:"current_balance"`
	Description    string          `json:"description"`
	Status         string          `json:"status"`
}

// RawDataset is everything a data source provides.
type RawDataset struct {
	Transactions []RawTransaction `json:"transactions"`
	Budgets      []Budget         `json:"budgets"`
	Aliases      CategoryAliases  `json:"aliases"`
}

// Dataset is a validated RawDataset, ready for aggregation.
type Dataset struct {
	Transactions []Transaction
	Budgets      []Budget
	Aliases      CategoryAliases
}

// Source loads the raw dataset from a backing store.
type Source interface {
	Load(ctx context.Context) (*RawDataset, error)
}

// AmountText wraps a textual amount (a spreadsheet cell, a NUMERIC column
// rendered as text) as a raw amount field. Blank text yields a missing field.
func AmountText(s string) json.RawMessage {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	b, _ := json.Marshal(s)
	return b
}
