// Package postgres provides a PostgreSQL-backed transaction source.
package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ArionMiles/financehub/pkg/api"
)

//go:embed 001_create_transactions.sql
var migrationSQL string

// Config holds the PostgreSQL source configuration.
type Config struct {
	// URL, when set, is used instead of the individual connection fields.
	URL      string
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string

	// MaxPoolSize is the maximum number of connections in the pool.
	MaxPoolSize int
}

// Source reads transactions, budgets and category aliases from PostgreSQL.
type Source struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New connects to PostgreSQL, verifies the connection and applies the schema.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Source, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "postgres_source")

	if cfg.Port == 0 {
		cfg.Port = 5432
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}
	if cfg.MaxPoolSize == 0 {
		cfg.MaxPoolSize = 10
	}

	connStr := cfg.URL
	if connStr == "" {
		connStr = fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
		)
	}

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxPoolSize)
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = 1 * time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	logger.Info("connected to PostgreSQL",
		"host", poolConfig.ConnConfig.Host,
		"port", poolConfig.ConnConfig.Port,
		"database", poolConfig.ConnConfig.Database,
	)

	s := &Source{pool: pool, logger: logger}
	if err := s.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

func (s *Source) runMigrations(ctx context.Context) error {
	s.logger.Info("running database migrations")
	if _, err := s.pool.Exec(ctx, migrationSQL); err != nil {
		return fmt.Errorf("executing migration: %w", err)
	}
	s.logger.Info("migrations completed successfully")
	return nil
}

// Load reads the whole dataset. Amounts are read as text so that their
// validation happens in one place, during ingestion.
func (s *Source) Load(ctx context.Context) (*api.RawDataset, error) {
	txs, err := s.loadTransactions(ctx)
	if err != nil {
		return nil, err
	}
	budgets, err := s.loadBudgets(ctx)
	if err != nil {
		return nil, err
	}
	aliases, err := s.loadAliases(ctx)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("dataset loaded", "transactions", len(txs), "budgets", len(budgets))
	return &api.RawDataset{Transactions: txs, Budgets: budgets, Aliases: aliases}, nil
}

func (s *Source) loadTransactions(ctx context.Context) ([]api.RawTransaction, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT transaction_id, user_id, date, category, direction,
		       amount::text, current_balance::text, description, status
		FROM transactions
		ORDER BY date, transaction_id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying transactions: %w", err)
	}
	defer rows.Close()

	var out []api.RawTransaction
	for rows.Next() {
		var (
			r       api.RawTransaction
			date    time.Time
			amount  string
			balance *string
		)
		if err := rows.Scan(&r.TransactionID, &r.UserID, &date, &r.Category, &r.Direction,
			&amount, &balance, &r.Description, &r.Status); err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}
		r.Date = date.Format(time.RFC3339Nano)
		r.Amount = api.AmountText(amount)
		if balance != nil {
			r.CurrentBalance = api.AmountText(*balance)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading transactions: %w", err)
	}
	return out, nil
}

func (s *Source) loadBudgets(ctx context.Context) ([]api.Budget, error) {
	rows, err := s.pool.Query(ctx, `SELECT category, monthly_limit::text FROM budgets ORDER BY category`)
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
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading budgets: %w", err)
	}
	return out, nil
}

func (s *Source) loadAliases(ctx context.Context) (api.CategoryAliases, error) {
	rows, err := s.pool.Query(ctx, `SELECT category, label FROM category_aliases ORDER BY category, label`)
	if err != nil {
		return nil, fmt.Errorf("querying category aliases: %w", err)
	}
	defer rows.Close()

	aliases := api.CategoryAliases{}
	for rows.Next() {
		var category, label string
		if err := rows.Scan(&category, &label); err != nil {
			return nil, fmt.Errorf("scanning category alias: %w", err)
		}
		aliases[category] = append(aliases[category], label)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading category aliases: %w", err)
	}
	return aliases, nil
}

// Seed upserts a validated dataset in a single database transaction.
func (s *Source) Seed(ctx context.Context, ds *api.Dataset) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, t := range ds.Transactions {
		batch.Queue(`
			INSERT INTO transactions (
				transaction_id, user_id, date, category, direction,
				amount, current_balance, description, status
			) VALUES ($1, $2, $3, $4, $5, $6::numeric, $7::numeric, $8, $9)
			ON CONFLICT (transaction_id) DO UPDATE SET
				user_id = EXCLUDED.user_id,
				date = EXCLUDED.date,
				category = EXCLUDED.category,
				direction = EXCLUDED.direction,
				amount = EXCLUDED.amount,
				current_balance = EXCLUDED.current_balance,
				description = EXCLUDED.description,
				status = EXCLUDED.status,
				updated_at = NOW()
		`,
			t.ID, t.UserID, t.Date, t.Category, t.Direction.SourceName(),
			t.Amount.String(), t.Balance.String(), t.Description, string(t.Status),
		)
	}
	for _, b := range ds.Budgets {
		batch.Queue(`
			INSERT INTO budgets (category, monthly_limit) VALUES ($1, $2::numeric)
			ON CONFLICT (category) DO UPDATE SET monthly_limit = EXCLUDED.monthly_limit
		`, b.Category, b.MonthlyLimit.String())
	}
	for category, labels := range ds.Aliases {
		for _, label := range labels {
			batch.Queue(`
				INSERT INTO category_aliases (category, label) VALUES ($1, $2)
				ON CONFLICT DO NOTHING
			`, category, label)
		}
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("seeding dataset: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	s.logger.Info("seeded dataset", "transactions", len(ds.Transactions), "budgets", len(ds.Budgets))
	return nil
}

// Ping checks that the database is reachable.
func (s *Source) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the database connection pool.
func (s *Source) Close() {
	if s.pool != nil {
		s.pool.Close()
		s.logger.Info("closed PostgreSQL connection pool")
	}
}
