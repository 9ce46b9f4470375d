package api

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrMalformed is wrapped by every IntegrityError.
var ErrMalformed = errors.New("malformed record")

// IntegrityError reports a source record that was rejected during ingestion.
type IntegrityError struct {
	RecordID string
	Field    string
	Reason   string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("record %s: %s %s", e.RecordID, e.Field, e.Reason)
}

// Unwrap lets callers match any integrity failure with errors.Is(err, ErrMalformed).
func (e *IntegrityError) Unwrap() error {
	return ErrMalformed
}

// dateLayouts are tried in order. Layouts without a zone are read in the
// ingestion location.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Ingest validates raw transactions and converts their dates to loc, which
// fixes the calendar used for month and week rollups. Rejected records are
// reported as joined *IntegrityError values; the valid records are always
// returned, even when err is non-nil.
func Ingest(raw []RawTransaction, loc *time.Location) ([]Transaction, error) {
	if loc == nil {
		loc = time.Local
	}

	txs := make([]Transaction, 0, len(raw))
	var errs []error
	for i, r := range raw {
		tx, err := ingestOne(r, i, loc)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		txs = append(txs, tx)
	}
	return txs, errors.Join(errs...)
}

func ingestOne(r RawTransaction, index int, loc *time.Location) (Transaction, error) {
	id := strings.TrimSpace(r.TransactionID)
	recordID := id
	if recordID == "" {
		recordID = fmt.Sprintf("#%d", index)
	}
	reject := func(field, reason string) error {
		return &IntegrityError{RecordID: recordID, Field: field, Reason: reason}
	}

	if id == "" {
		return Transaction{}, reject("transaction_id", "is missing")
	}

	date, err := ParseDate(r.Date, loc)
	if err != nil {
		return Transaction{}, reject("date", err.Error())
	}

	amount, ok, err := parseAmount(r.Amount)
	switch {
	case err != nil:
		return Transaction{}, reject("amount", err.Error())
	case !ok:
		return Transaction{}, reject("amount", "is missing")
	case amount.IsNegative():
		return Transaction{}, reject("amount", "is negative")
	}

	balance, ok, err := parseAmount(r.CurrentBalance)
	switch {
	case err != nil:
		return Transaction{}, reject("current_balance", err.Error())
	case !ok:
		return Transaction{}, reject("current_balance", "is missing")
	}

	direction, err := ParseDirection(r.Direction)
	if err != nil {
		return Transaction{}, reject("direction", err.Error())
	}

	status, err := parseStatus(r.Status)
	if err != nil {
		return Transaction{}, reject("status", err.Error())
	}

	return Transaction{
		ID:          id,
		UserID:      r.UserID,
		Direction:   direction,
		Amount:      amount,
		Balance:     balance,
		Date:        date,
		Category:    strings.TrimSpace(r.Category),
		Description: r.Description,
		Status:      status,
	}, nil
}

// ParseDate parses an ISO-8601 date or timestamp and returns it in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("is missing")
	}
	for _, layout := range dateLayouts {
		t, err := time.ParseInLocation(layout, s, loc)
		if err == nil {
			return t.In(loc), nil
		}
	}
	return time.Time{}, fmt.Errorf("is not an ISO-8601 date: %q", s)
}

// ParseDirection maps source directions to Direction. Both the bank-style
// credit/debit and the dashboard-style income/expense spellings are accepted.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "credit", "income":
		return DirectionIncome, nil
	case "debit", "expense":
		return DirectionExpense, nil
	default:
		return "", fmt.Errorf("is not credit or debit: %q", s)
	}
}

func parseStatus(s string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case "", StatusSuccess:
		return StatusSuccess, nil
	case StatusPending:
		return StatusPending, nil
	case StatusFailed:
		return StatusFailed, nil
	default:
		return "", fmt.Errorf("is unknown: %q", s)
	}
}

// parseAmount reports ok=false for an absent or null field.
func parseAmount(raw []byte) (decimal.Decimal, bool, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return decimal.Zero, false, nil
	}
	s = strings.TrimSpace(strings.Trim(s, `"`))
	if s == "" {
		return decimal.Zero, false, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("is not a number: %q", s)
	}
	return d, true, nil
}

// ValidateBudgets rejects budgets with an empty category or a negative limit.
func ValidateBudgets(budgets []Budget) ([]Budget, error) {
	valid := make([]Budget, 0, len(budgets))
	var errs []error
	for _, b := range budgets {
		name := strings.TrimSpace(b.Category)
		switch {
		case name == "":
			errs = append(errs, &IntegrityError{RecordID: "budget", Field: "category", Reason: "is missing"})
		case b.MonthlyLimit.IsNegative():
			errs = append(errs, &IntegrityError{RecordID: "budget " + name, Field: "limit", Reason: "is negative"})
		default:
			valid = append(valid, Budget{Category: name, MonthlyLimit: b.MonthlyLimit})
		}
	}
	return valid, errors.Join(errs...)
}

// Build validates a raw dataset. Like Ingest, it returns the usable part of
// the dataset alongside any integrity errors.
func Build(raw *RawDataset, loc *time.Location) (*Dataset, error) {
	if raw == nil {
		return &Dataset{Aliases: CategoryAliases{}}, nil
	}

	txs, txErr := Ingest(raw.Transactions, loc)
	budgets, budgetErr := ValidateBudgets(raw.Budgets)

	aliases := raw.Aliases
	if aliases == nil {
		aliases = CategoryAliases{}
	}

	return &Dataset{
		Transactions: txs,
		Budgets:      budgets,
		Aliases:      aliases,
	}, errors.Join(txErr, budgetErr)
}
