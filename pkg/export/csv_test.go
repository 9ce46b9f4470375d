package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ArionMiles/financehub/pkg/api"
	"github.com/ArionMiles/financehub/pkg/source/sheets"
)

func TestWriteCSV(t *testing.T) {
	txs := []api.Transaction{
		{
			ID: "t1", UserID: "u1", Direction: api.DirectionIncome,
			Amount: decimal.NewFromInt(8500), Balance: decimal.NewFromInt(8500),
			Date:     time.Date(2025, time.January, 20, 0, 0, 0, 0, time.UTC),
			Category: "Salary", Description: "Salary Deposit", Status: api.StatusSuccess,
		},
		{
			ID: "t2", UserID: "u1", Direction: api.DirectionExpense,
			Amount: decimal.RequireFromString("245.32"), Balance: decimal.RequireFromString("8254.68"),
			Date:     time.Date(2025, time.January, 19, 0, 0, 0, 0, time.UTC),
			Category: "Groceries", Description: `Grocery Store, "bulk"`, Status: api.StatusPending,
		},
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, txs); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	records, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	if err != nil {
		t.Fatalf("reading csv: %v", err)
	}
	if len(records) != 3 || records[1][5] != "8500.00" || records[2][4] != "debit" {
		t.Fatalf("got %v", records)
	}

	// The sheets source reads the exported rows back into the same transactions.
	rows := make([][]any, len(records))
	for i, rec := range records {
		for _, cell := range rec {
			rows[i] = append(rows[i], cell)
		}
	}
	back, err := api.Ingest(sheets.ParseRows(rows), time.UTC)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	for i, got := range back {
		want := txs[i]
		if got.ID != want.ID || got.Direction != want.Direction || !got.Amount.Equal(want.Amount) ||
			!got.Balance.Equal(want.Balance) || !got.Date.Equal(want.Date) ||
			got.Description != want.Description || got.Status != want.Status {
			t.Errorf("row %d: got %+v, want %+v", i, got, want)
		}
	}
}

func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, nil); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	if strings.TrimSpace(buf.String()) != strings.Join(Header, ",") {
		t.Errorf("got %q", buf.String())
	}
}
