package jsonfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/avast/retry-go"

	"github.com/ArionMiles/financehub/pkg/api"
)

const dataset = `{
  "transactions": [
    {"transaction_id": "t1", "user_id": "u1", "date": "2025-01-15", "category": "Salary",
     "direction": "credit", "amount": 8500, "current_balance": 8500, "status": "success"},
    {"transaction_id": "t2", "user_id": "u1", "date": "2025-01-19T10:00:00Z", "category": "Groceries",
     "direction": "debit", "amount": "245.32", "current_balance": 8254.68},
    {"transaction_id": "t3", "date": "2025-01-20", "direction": "debit", "amount": {"oops": true}}
  ],
  "budgets": [{"category": "Groceries", "limit": 500}],
  "aliases": {"Dining": ["Restaurants"]}
}`

func TestSource_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transactions.json")
	if err := os.WriteFile(path, []byte(dataset), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	src, err := New(Config{FilePath: path}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	raw, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(raw.Transactions) != 3 || len(raw.Budgets) != 1 || len(raw.Aliases) != 1 {
		t.Fatalf("got %+v", raw)
	}

	ds, err := api.Build(raw, time.UTC)
	if err == nil {
		t.Error("expected the malformed record to be reported")
	}
	if len(ds.Transactions) != 2 {
		t.Errorf("expected 2 valid transactions, got %d", len(ds.Transactions))
	}
}

func TestSource_LoadEmbedded(t *testing.T) {
	fsys := fstest.MapFS{
		"content/transactions.json": {Data: []byte(`[{"transaction_id":"a","date":"2025-03-01","direction":"credit","amount":1}]`)},
	}
	src, err := New(Config{FilePath: "content/transactions.json", FS: fsys}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	raw, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(raw.Transactions) != 1 || raw.Transactions[0].TransactionID != "a" {
		t.Errorf("got %+v", raw.Transactions)
	}
}

func TestSource_Errors(t *testing.T) {
	if _, err := New(Config{}, nil); err == nil {
		t.Error("expected error for empty path")
	}

	src, _ := New(Config{FilePath: filepath.Join(t.TempDir(), "missing.json")}, nil)
	if _, err := src.Load(context.Background()); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(bad, []byte(`{"transactions": [`), 0o644); err != nil {
		t.Fatal(err)
	}
	src, _ = New(Config{FilePath: bad}, nil)
	_, err := src.Load(context.Background())
	if err == nil {
		t.Fatal("expected decode error")
	}
	if retry.IsRecoverable(err) {
		t.Error("decode error should not be retried")
	}
}

func TestDecode_Empty(t *testing.T) {
	raw, err := Decode([]byte("  \n"))
	if err != nil || len(raw.Transactions) != 0 {
		t.Errorf("got %+v, %v", raw, err)
	}
}
