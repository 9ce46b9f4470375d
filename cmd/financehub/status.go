package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/ArionMiles/financehub/pkg/api"
	"github.com/ArionMiles/financehub/pkg/client"
	"github.com/ArionMiles/financehub/pkg/config"
	"github.com/ArionMiles/financehub/pkg/logging"
)

// statusTimeout bounds loading the dataset during a status check.
const statusTimeout = 30 * time.Second

// runStatus checks the configuration, credentials and data source.
func runStatus(args []string, logger *slog.Logger, w io.Writer) error {
	fs, configPath := commonFlags("status")
	if err := fs.Parse(args); err != nil {
		return err
	}

	fmt.Fprintln(w, "=== FinanceHub Status ===")
	fmt.Fprintln(w)

	allGood := true
	check := func(label string, err error, ok string) {
		fmt.Fprintf(w, "%s: ", label)
		if err != nil {
			fmt.Fprintf(w, "✗ %v\n", err)
			allGood = false
			return
		}
		fmt.Fprintf(w, "✓ %s\n", ok)
	}

	cfg, err := config.Load(*configPath)
	check("Configuration", err, fmt.Sprintf("source %q, listening on %s", cfg.Source, cfg.Addr))
	if err != nil {
		printFinalStatus(w, false)
		return nil
	}

	loc, err := cfg.Location()
	check("Timezone", err, loc.String())

	gate, err := loadGate(cfg, logging.Discard())
	users := 0
	if err == nil {
		users = gate.Len()
	}
	check("Users", err, fmt.Sprintf("%d allowed", users))

	if cfg.Source == "sheets" {
		checkToken(w, &allGood)
	}

	ctx, cancel := context.WithTimeout(context.Background(), statusTimeout)
	defer cancel()

	runner, err := newRunner(ctx, cfg, logging.Discard())
	if err != nil {
		check("Data source", err, "")
		printFinalStatus(w, false)
		return nil
	}
	src, err := runner.Source(cfg)
	check("Data source", err, cfg.Source)
	if err != nil {
		printFinalStatus(w, false)
		return nil
	}
	defer closeSource(src)

	if loc == nil {
		loc = time.Local
	}
	raw, err := src.Load(ctx)
	if err != nil {
		check("Dataset", err, "")
		printFinalStatus(w, false)
		return nil
	}
	ds, err := api.Build(raw, loc)
	check("Dataset", nil, fmt.Sprintf("%d transactions, %d budgets", len(ds.Transactions), len(ds.Budgets)))
	if n := countIntegrityErrors(err); n > 0 {
		fmt.Fprintf(w, "Malformed records: ⚠ %d skipped\n", n)
		if logger.Enabled(ctx, slog.LevelDebug) {
			fmt.Fprintf(w, "%v\n", err)
		}
	}

	printFinalStatus(w, allGood)
	return nil
}

// countIntegrityErrors counts the integrity errors joined into err.
func countIntegrityErrors(err error) int {
	if err == nil {
		return 0
	}
	var ie *api.IntegrityError
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		n := 0
		for _, e := range joined.Unwrap() {
			n += countIntegrityErrors(e)
		}
		return n
	}
	if errors.As(err, &ie) {
		return 1
	}
	return 0
}

func closeSource(src api.Source) {
	switch c := src.(type) {
	case io.Closer:
		_ = c.Close()
	case interface{ Close() }:
		c.Close()
	}
}

func checkToken(w io.Writer, allGood *bool) {
	fmt.Fprintf(w, "OAuth token (%s): ", client.DefaultTokenFile)
	token, err := client.LoadToken(client.DefaultTokenFile)
	switch {
	case errors.Is(err, os.ErrNotExist):
		fmt.Fprintln(w, "✗ not found (run 'financehub setup')")
		*allGood = false
	case err != nil:
		fmt.Fprintf(w, "✗ %v\n", err)
		*allGood = false
	case token.Expiry.Before(time.Now()):
		fmt.Fprintln(w, "⚠ Expired (will refresh on next run)")
	default:
		fmt.Fprintf(w, "✓ Valid (expires: %s)\n", token.Expiry.Format(time.RFC3339))
	}
}

func printFinalStatus(w io.Writer, allGood bool) {
	fmt.Fprintln(w)
	if allGood {
		fmt.Fprintln(w, "Status: ✓ Ready to run")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Run 'financehub serve' to start the dashboard.")
	} else {
		fmt.Fprintln(w, "Status: ✗ Configuration issues detected")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Fix the issues above, then run 'financehub status' again.")
	}
}
