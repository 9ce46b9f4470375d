// Command financehub serves the personal finance dashboard, its chat
// assistant and the tool-calling endpoint.
package main

import (
	"context"
	"embed"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ArionMiles/financehub/internal/daemon"
	"github.com/ArionMiles/financehub/internal/plugins"
	"github.com/ArionMiles/financehub/pkg/auth"
	"github.com/ArionMiles/financehub/pkg/client"
	"github.com/ArionMiles/financehub/pkg/config"
	"github.com/ArionMiles/financehub/pkg/logging"
	jsonplugin "github.com/ArionMiles/financehub/pkg/plugins/sources/jsonfile"
	postgresplugin "github.com/ArionMiles/financehub/pkg/plugins/sources/postgres"
	sheetsplugin "github.com/ArionMiles/financehub/pkg/plugins/sources/sheets"
	sqliteplugin "github.com/ArionMiles/financehub/pkg/plugins/sources/sqlite"
)

const version = "1.0.0"

// datasetPath is the built-in sample dataset inside content.
const datasetPath = "content/dataset.json"

var (
	//go:embed content/dataset.json
	content embed.FS
	//go:embed content/users.json
	usersInput string
)

const usage = `Usage: financehub <command> [flags]

Commands:
  serve    Run the HTTP server (default)
  mcp      Serve the finance tools as JSON-RPC on stdin/stdout
  status   Check configuration, credentials and the data source
  setup    Authorize Google Sheets access
  seed     Copy a dataset file into the postgres or sqlite source

Run 'financehub <command> -h' for command flags.
`

func main() {
	// A missing .env file is fine; the environment may be set directly.
	_ = godotenv.Load()

	logger := logging.Setup(logging.DefaultConfig())

	if err := run(os.Args[1:], logger); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		logger.Error("financehub failed", "error", err)
		os.Exit(1)
	}
}

func run(args []string, logger *slog.Logger) error {
	cmd := "serve"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "serve":
		return runServe(args, logger)
	case "mcp":
		return runMCP(args, logger, os.Stdin, os.Stdout)
	case "status":
		return runStatus(args, logger, os.Stdout)
	case "setup":
		return runSetup(args, logger)
	case "seed":
		return runSeed(args, logger)
	case "help", "-h", "--help":
		fmt.Print(usage)
		return nil
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// commonFlags registers the flags every command shares.
func commonFlags(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	configPath := fs.String("config", "config.json", "optional JSON config file; environment variables take precedence")
	return fs, configPath
}

// newRegistry registers every source plugin.
func newRegistry() (*plugins.Registry, error) {
	registry := plugins.NewRegistry()
	for _, p := range []plugins.SourcePlugin{
		&jsonplugin.Plugin{FS: content, DefaultPath: datasetPath},
		&postgresplugin.Plugin{},
		&sqliteplugin.Plugin{},
		&sheetsplugin.Plugin{},
	} {
		if err := registry.Register(p); err != nil {
			return nil, fmt.Errorf("registering %s plugin: %w", p.Name(), err)
		}
	}
	return registry, nil
}

// oauthClient returns a client from the saved token when the source needs
// OAuth scopes, and nil otherwise.
func oauthClient(ctx context.Context, registry *plugins.Registry, source string, logger *slog.Logger) (*http.Client, error) {
	scopes, err := registry.Scopes(source)
	if err != nil {
		return nil, err
	}
	if len(scopes) == 0 {
		return nil, nil
	}

	logger.Info("OAuth scopes required", "scopes", scopes)
	oauthCfg, err := client.Config(config.ClientSecretFile, scopes...)
	if err != nil {
		return nil, err
	}
	return client.NewFlow(logger).Cached(ctx, oauthCfg)
}

// loadConfig reads the configuration and reinstalls the default logger with
// its logging settings.
func loadConfig(configPath string) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, slog.Default(), err
	}
	logger := logging.Setup(logging.Config{
		Level: logging.ParseLevel(cfg.LogLevel),
		JSON:  cfg.LogJSON,
	})
	return cfg, logger, nil
}

// newRunner builds a runner for the configured source.
func newRunner(ctx context.Context, cfg config.Config, logger *slog.Logger) (*daemon.Runner, error) {
	registry, err := newRegistry()
	if err != nil {
		return nil, err
	}

	httpClient, err := oauthClient(ctx, registry, cfg.Source, logger)
	if err != nil {
		return nil, fmt.Errorf("creating http client: %w", err)
	}
	return daemon.New(registry, httpClient, version, logger), nil
}

// loadGate reads the users file, or the built-in demo user when none is set.
func loadGate(cfg config.Config, logger *slog.Logger) (*auth.Gate, error) {
	var r io.Reader = strings.NewReader(usersInput)
	if cfg.UsersFile != "" {
		f, err := os.Open(cfg.UsersFile)
		if err != nil {
			return nil, fmt.Errorf("opening users file: %w", err)
		}
		defer f.Close()
		r = f
	} else {
		logger.Warn("FINANCEHUB_USERS_FILE not set, using the built-in demo user")
	}

	records, err := auth.LoadRecords(r)
	if err != nil {
		return nil, fmt.Errorf("reading users: %w", err)
	}
	return auth.NewGate(records, logger)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received shutdown signal", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()
	return ctx, cancel
}
