package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ArionMiles/financehub/pkg/api"
	"github.com/ArionMiles/financehub/pkg/source/jsonfile"
)

// seeder is implemented by sources that can store a dataset.
type seeder interface {
	Seed(ctx context.Context, ds *api.Dataset) error
}

// runSeed validates a dataset file and upserts it into the configured source.
func runSeed(args []string, logger *slog.Logger) error {
	fs, configPath := commonFlags("seed")
	file := fs.String("file", "", "dataset file to import (defaults to the built-in sample data)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, logger, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(logger)
	defer cancel()

	input, err := jsonfile.New(seedInput(*file), logger)
	if err != nil {
		return err
	}
	raw, err := input.Load(ctx)
	if err != nil {
		return err
	}
	ds, err := api.Build(raw, loc)
	if err != nil {
		logger.Warn("skipping malformed records", "error", err)
	}

	runner, err := newRunner(ctx, cfg, logger)
	if err != nil {
		return err
	}
	src, err := runner.Source(cfg)
	if err != nil {
		return err
	}
	defer closeSource(src)

	target, ok := src.(seeder)
	if !ok {
		return fmt.Errorf("source %q cannot be seeded; use postgres or sqlite", cfg.Source)
	}
	if err := target.Seed(ctx, ds); err != nil {
		return fmt.Errorf("seeding %s: %w", cfg.Source, err)
	}

	logger.Info("seed complete",
		"source", cfg.Source,
		"transactions", len(ds.Transactions),
		"budgets", len(ds.Budgets),
	)
	return nil
}

func seedInput(file string) jsonfile.Config {
	if file != "" {
		return jsonfile.Config{FilePath: file}
	}
	return jsonfile.Config{FilePath: datasetPath, FS: content}
}
