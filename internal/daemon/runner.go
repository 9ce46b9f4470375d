// Package daemon provides the core runner for the FinanceHub server.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/avast/retry-go"
	"golang.org/x/sync/errgroup"

	"github.com/ArionMiles/financehub/internal/httpapi"
	"github.com/ArionMiles/financehub/internal/plugins"
	"github.com/ArionMiles/financehub/pkg/api"
	"github.com/ArionMiles/financehub/pkg/auth"
	"github.com/ArionMiles/financehub/pkg/config"
	"github.com/ArionMiles/financehub/pkg/engine"
	"github.com/ArionMiles/financehub/pkg/mcp"
	"github.com/ArionMiles/financehub/pkg/session"
	"github.com/ArionMiles/financehub/pkg/tools"
)

// Timing defaults.
const (
	sweepInterval   = time.Minute
	shutdownTimeout = 10 * time.Second
	loadAttempts    = 3
	loadRetryDelay  = time.Second
)

// localUser owns the single session of a stdio MCP run.
var localUser = auth.User{ID: "local", Name: "Local user"}

// Runner manages the FinanceHub server lifecycle.
type Runner struct {
	registry   *plugins.Registry
	httpClient *http.Client
	version    string
	retryDelay time.Duration
	logger     *slog.Logger
}

// New creates a new runner.
func New(registry *plugins.Registry, httpClient *http.Client, version string, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		registry:   registry,
		httpClient: httpClient,
		version:    version,
		retryDelay: loadRetryDelay,
		logger:     logger,
	}
}

// Source creates the configured source plugin instance.
func (r *Runner) Source(cfg config.Config) (api.Source, error) {
	sourceCfg, err := cfg.DefaultSourceConfig()
	if err != nil {
		return nil, err
	}

	src, err := r.registry.Create(
		cfg.Source,
		r.httpClient,
		sourceCfg,
		r.logger.With("component", "source", "plugin", cfg.Source),
	)
	if err != nil {
		return nil, fmt.Errorf("creating source: %w", err)
	}
	return src, nil
}

// Loader returns a session.Loader reading src. Load failures are retried
// unless the source marks them unrecoverable with retry.Unrecoverable;
// malformed records are logged and skipped.
func (r *Runner) Loader(src api.Source, loc *time.Location) session.Loader {
	return func(ctx context.Context) (*api.Dataset, error) {
		var raw *api.RawDataset
		err := retry.Do(
			func() error {
				var err error
				raw, err = src.Load(ctx)
				return err
			},
			retry.RetryIf(func(err error) bool {
				if !retry.IsRecoverable(err) {
					return false
				}
				return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
			}),
			retry.OnRetry(func(n uint, err error) {
				r.logger.Warn("dataset load failed, retrying", "attempt", n+1, "error", err)
			}),
			retry.Context(ctx),
			retry.Attempts(loadAttempts),
			retry.Delay(r.retryDelay),
			retry.LastErrorOnly(true),
		)
		if err != nil {
			return nil, err
		}

		ds, err := api.Build(raw, loc)
		if err != nil {
			r.logger.Warn("skipped malformed records", "error", err)
		}
		r.logger.Info("dataset loaded",
			"transactions", len(ds.Transactions),
			"budgets", len(ds.Budgets),
		)
		return ds, nil
	}
}

// Run serves the HTTP API until ctx is cancelled.
func (r *Runner) Run(ctx context.Context, cfg config.Config, gate *auth.Gate) error {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	src, err := r.Source(cfg)
	if err != nil {
		return err
	}
	defer closeSource(src, r.logger)

	sessions := session.NewStore(r.Loader(src, loc), session.Options{
		TTL:      cfg.SessionLifetime(),
		Location: loc,
	}, r.logger)

	handler, err := httpapi.New(gate, sessions, tools.NewFinanceRegistry(), httpapi.Config{
		Location:      loc,
		RevenueMonths: cfg.RevenueMonths,
		DonutSegments: cfg.DonutSegments,
		Version:       r.version,
	}, r.logger)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	r.logger.Info("starting financehub server",
		"addr", cfg.Addr,
		"source", cfg.Source,
		"timezone", loc.String(),
		"users", gate.Len(),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		sessions.Run(gctx, sweepInterval)
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	r.logger.Info("server stopped")
	return nil
}

// ServeMCP answers JSON-RPC requests on in/out for a single local session
// until in is closed or ctx is cancelled.
func (r *Runner) ServeMCP(ctx context.Context, cfg config.Config, in io.Reader, out io.Writer) error {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	src, err := r.Source(cfg)
	if err != nil {
		return err
	}
	defer closeSource(src, r.logger)

	sessions := session.NewStore(r.Loader(src, loc), session.Options{
		TTL:      100 * 365 * 24 * time.Hour,
		Location: loc,
	}, r.logger)
	token := sessions.Create(localUser).Token

	snapshot := func(ctx context.Context) (tools.Snapshot, error) {
		ds, err := sessions.Dataset(ctx, token)
		if err != nil {
			return tools.Snapshot{}, err
		}
		view := engine.Build(ds, engine.Options{
			Reference:     time.Now(),
			Location:      loc,
			RevenueMonths: cfg.RevenueMonths,
			DonutSegments: cfg.DonutSegments,
		})
		return tools.Snapshot{Dataset: ds, View: view}, nil
	}

	server, err := mcp.NewServer(mcp.Info{Name: httpapi.ServiceName, Version: r.version}, tools.NewFinanceRegistry(), snapshot, r.logger)
	if err != nil {
		return err
	}
	if err := server.Serve(ctx, in, out); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func closeSource(src api.Source, logger *slog.Logger) {
	switch c := src.(type) {
	case io.Closer:
		if err := c.Close(); err != nil {
			logger.Warn("failed to close source", "error", err)
		}
	case interface{ Close() }:
		c.Close()
	}
}
