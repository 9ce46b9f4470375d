package main

import (
	"fmt"
	"io"
	"log/slog"
)

// runServe starts the HTTP server and blocks until a shutdown signal.
func runServe(args []string, logger *slog.Logger) error {
	fs, configPath := commonFlags("serve")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, logger, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(logger)
	defer cancel()

	runner, err := newRunner(ctx, cfg, logger)
	if err != nil {
		return err
	}
	gate, err := loadGate(cfg, logger)
	if err != nil {
		return err
	}

	logger.Info("configuration loaded",
		"source", cfg.Source,
		"addr", cfg.Addr,
		"session_ttl", cfg.SessionLifetime(),
	)
	if err := runner.Run(ctx, cfg, gate); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// runMCP serves the tools on in/out. Logs stay on stderr so that out carries
// only protocol messages.
func runMCP(args []string, logger *slog.Logger, in io.Reader, out io.Writer) error {
	fs, configPath := commonFlags("mcp")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, logger, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(logger)
	defer cancel()

	runner, err := newRunner(ctx, cfg, logger)
	if err != nil {
		return err
	}
	return runner.ServeMCP(ctx, cfg, in, out)
}
