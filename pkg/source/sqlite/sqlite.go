// Package sqlite provides a SQLite-backed transaction source for single-file
// deployments.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/shopspring/decimal"

	"github.com/ArionMiles/financehub/pkg/api"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Source reads the dataset from a SQLite database file.
type Source struct {
	db     *sql.DB
	logger *slog.Logger
}

// New opens (creating if needed) the database at path and migrates it.
func New(path string, logger *slog.Logger) (*Source, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "sqlite_source")

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if err := RunMigrations(path); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("opened SQLite database", "path", path)
	return &Source{db: db, logger: logger}, nil
}

// RunMigrations applies the embedded migrations on a separate connection.
func RunMigrations(path string) error {
	migrateDB, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("opening migration database: %w", err)
	}
	defer migrateDB.Close()

	driver, err := migratesqlite.WithInstance(migrateDB, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("creating sqlite driver: %w", err)
	}

	d, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("creating iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", d, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("creating migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// Load reads the whole dataset.
func (s *Source) Load(ctx context.Context) (*api.RawDataset, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT transaction_id, user_id, date, category, direction,
		       amount, current_balance, description, status
		FROM transactions
		ORDER BY date, transaction_id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying transactions: %w", err)
	}
	defer rows.Close()

	raw := &api.RawDataset{Aliases: api.CategoryAliases{}}
	for rows.Next() {
		var (
			r       api.RawTransaction
			amount  sql.NullString
			balance sql.NullString
		)
		if err := rows.Scan(&r.TransactionID, &r.UserID, &r.Date, &r.Category, &r.Direction,
			&amount, &balance, &r.Description, &r.Status); err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}
		if amount.Valid {
			r.Amount = api.AmountText(amount.String)
		}
		if balance.Valid {
			r.CurrentBalance = api.AmountText(balance.String)
		}
		raw.Transactions = append(raw.Transactions, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading transactions: %w", err)
	}

	if raw.Budgets, err = s.loadBudgets(ctx); err != nil {
		return nil, err
	}
	if err := s.loadAliases(ctx, raw.Aliases); err != nil {
		return nil, err
	}
	return raw, nil
}

func (s *Source) loadBudgets(ctx context.Context) ([]api.Budget, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT category, monthly_limit FROM budgets ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("querying budgets: %w", err)
	}
	defer rows.Close()

	var out []api.Budget
	for rows.Next() {
		var category, limit string
		if err := rows.Scan(&category, &limit); err != nil {
			return nil, fmt.Errorf("scanning budget: %w", err)
		}
		d, err := decimal.NewFromString(limit)
		if err != nil {
			return nil, fmt.Errorf("budget %q: parsing limit: %w", category, err)
		}
		out = append(out, api.Budget{Category: category, MonthlyLimit: d})
	}
	return out, rows.Err()
}

func (s *Source) loadAliases(ctx context.Context, into api.CategoryAliases) error {
	rows, err := s.db.QueryContext(ctx, `SELECT category, label FROM category_aliases ORDER BY category, label`)
	if err != nil {
		return fmt.Errorf("querying category aliases: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var category, label string
		if err := rows.Scan(&category, &label); err != nil {
			return fmt.Errorf("scanning category alias: %w", err)
		}
		into[category] = append(into[category], label)
	}
	return rows.Err()
}

// Seed upserts a validated dataset in one database transaction.
func (s *Source) Seed(ctx context.Context, ds *api.Dataset) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, t := range ds.Transactions {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO transactions (
				transaction_id, user_id, date, category, direction,
				amount, current_balance, description, status
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (transaction_id) DO UPDATE SET
				user_id = excluded.user_id,
				date = excluded.date,
				category = excluded.category,
				direction = excluded.direction,
				amount = excluded.amount,
				current_balance = excluded.current_balance,
				description = excluded.description,
				status = excluded.status
		`, t.ID, t.UserID, t.Date.Format(time.RFC3339Nano), t.Category, t.Direction.SourceName(),
			t.Amount.String(), t.Balance.String(), t.Description, string(t.Status)); err != nil {
			return fmt.Errorf("inserting transaction %s: %w", t.ID, err)
		}
	}
	for _, b := range ds.Budgets {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO budgets (category, monthly_limit) VALUES (?, ?)
			ON CONFLICT (category) DO UPDATE SET monthly_limit = excluded.monthly_limit
		`, b.Category, b.MonthlyLimit.String()); err != nil {
			return fmt.Errorf("inserting budget %s: %w", b.Category, err)
		}
	}
	for category, labels := range ds.Aliases {
		for _, label := range labels {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO category_aliases (category, label) VALUES (?, ?)`,
				category, label); err != nil {
				return fmt.Errorf("inserting alias %s/%s: %w", category, label, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	s.logger.Info("seeded dataset", "transactions", len(ds.Transactions), "budgets", len(ds.Budgets))
	return nil
}

// Close closes the database.
func (s *Source) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
