// Package sheets implements a Source that reads transactions from a Google Sheet.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/ArionMiles/financehub/pkg/api"
)

// Default configuration values.
const (
	DefaultSheetName  = "Transactions"
	DefaultRetryDelay = 30 * time.Second
)

// Columns is the expected column order of the transactions sheet.
var Columns = []string{
	"transaction_id", "user_id", "date", "category", "direction",
	"amount", "current_balance", "description", "status",
}

// Config holds configuration for the Sheets source.
type Config struct {
	// SheetID is the ID of the spreadsheet to read.
	SheetID string
	// SheetName is the name of the sheet holding transactions.
	// Defaults to DefaultSheetName.
	SheetName string
	// BudgetSheetName, when set, names a sheet of category,limit rows.
	BudgetSheetName string
	// RetryDelay is the wait between rate-limited attempts.
	// Defaults to DefaultRetryDelay.
	RetryDelay time.Duration
}

// Source reads the dataset from a spreadsheet on every Load.
type Source struct {
	client      *sheets.Service
	sheetID     string
	sheetName   string
	budgetSheet string
	retryDelay  time.Duration
	logger      *slog.Logger
}

// New creates a new Sheets source.
func New(ctx context.Context, httpClient *http.Client, cfg Config, logger *slog.Logger) (*Source, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SheetID == "" {
		return nil, errors.New("sheet ID is required")
	}

	client, err := sheets.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("creating sheets service: %w", err)
	}

	s := &Source{
		client:      client,
		sheetID:     cfg.SheetID,
		sheetName:   cfg.SheetName,
		budgetSheet: cfg.BudgetSheetName,
		retryDelay:  cfg.RetryDelay,
		logger:      logger.With("component", "sheets_source"),
	}
	if s.sheetName == "" {
		s.sheetName = DefaultSheetName
	}
	if s.retryDelay <= 0 {
		s.retryDelay = DefaultRetryDelay
	}

	s.logger.Info("sheets source initialized", "spreadsheet_id", s.sheetID, "sheet", s.sheetName)
	return s, nil
}

// Load reads the transactions sheet and, if configured, the budget sheet.
func (s *Source) Load(ctx context.Context) (*api.RawDataset, error) {
	rows, err := s.values(ctx, fmt.Sprintf("%s!A:I", s.sheetName))
	if err != nil {
		return nil, fmt.Errorf("reading transactions sheet: %w", err)
	}

	raw := &api.RawDataset{Transactions: ParseRows(rows)}
	if s.budgetSheet != "" {
		rows, err := s.values(ctx, fmt.Sprintf("%s!A:B", s.budgetSheet))
		if err != nil {
			return nil, fmt.Errorf("reading budget sheet: %w", err)
		}
		if raw.Budgets, err = ParseBudgetRows(rows); err != nil {
			return nil, retry.Unrecoverable(err)
		}
	}

	s.logger.Debug("dataset loaded", "transactions", len(raw.Transactions), "budgets", len(raw.Budgets))
	return raw, nil
}

func (s *Source) values(ctx context.Context, readRange string) ([][]any, error) {
	var resp *sheets.ValueRange
	err := retry.Do(
		func() error {
			var err error
			resp, err = s.client.Spreadsheets.Values.Get(s.sheetID, readRange).
				ValueRenderOption("UNFORMATTED_VALUE").
				DateTimeRenderOption("FORMATTED_STRING").
				Context(ctx).
				Do()
			return err
		},
		retry.RetryIf(func(err error) bool {
			var apiErr *googleapi.Error
			if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
				s.logger.Warn("rate limited, will retry", "error", err)
				return true
			}
			return false
		}),
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(s.retryDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

// ParseRows maps sheet rows to raw transactions in Columns order. A leading
// header row and blank rows are skipped; short rows leave trailing fields empty.
func ParseRows(rows [][]any) []api.RawTransaction {
	out := make([]api.RawTransaction, 0, len(rows))
	for i, row := range rows {
		if i == 0 && isHeader(row) {
			continue
		}
		if blank(row) {
			continue
		}
		out = append(out, api.RawTransaction{
			TransactionID:  cell(row, 0),
			UserID:         cell(row, 1),
			Date:           cell(row, 2),
			Category:       cell(row, 3),
			Direction:      cell(row, 4),
			Amount:         api.AmountText(cell(row, 5)),
			CurrentBalance: api.AmountText(cell(row, 6)),
			Description:    cell(row, 7),
			Status:         cell(row, 8),
		})
	}
	return out
}

// ParseBudgetRows maps category,limit rows to budgets.
func ParseBudgetRows(rows [][]any) ([]api.Budget, error) {
	var out []api.Budget
	for i, row := range rows {
		if blank(row) {
			continue
		}
		category, limit := cell(row, 0), cell(row, 1)
		if i == 0 && strings.EqualFold(category, "category") {
			continue
		}
		var b api.Budget
		b.Category = category
		if err := b.MonthlyLimit.UnmarshalText([]byte(limit)); err != nil {
			return nil, fmt.Errorf("budget row %d (%s): parsing limit: %w", i+1, category, err)
		}
		out = append(out, b)
	}
	return out, nil
}

func cell(row []any, i int) string {
	if i >= len(row) || row[i] == nil {
		return ""
	}
	switch v := row[i].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return formatNumber(v)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func formatNumber(v float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.6f", v), "0"), ".")
}

func isHeader(row []any) bool {
	return strings.EqualFold(cell(row, 0), Columns[0])
}

func blank(row []any) bool {
	for i := range row {
		if cell(row, i) != "" {
			return false
		}
	}
	return true
}
