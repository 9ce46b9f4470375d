// Package export writes transactions as CSV in the column order the sheets
// source reads, so an export can be pasted into a spreadsheet and loaded back.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/ArionMiles/financehub/pkg/api"
)

// Header is the first CSV row.
var Header = []string{
	"transaction_id", "user_id", "date", "category", "direction",
	"amount", "current_balance", "description", "status",
}

// WriteCSV writes a header row and one row per transaction.
func WriteCSV(w io.Writer, txs []api.Transaction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for _, t := range txs {
		record := []string{
			t.ID,
			t.UserID,
			t.Date.Format(time.RFC3339),
			t.Category,
			t.Direction.SourceName(),
			t.Amount.StringFixed(2),
			t.Balance.StringFixed(2),
			t.Description,
			string(t.Status),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing transaction %s: %w", t.ID, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}
	return nil
}
