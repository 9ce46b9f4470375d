// Package jsonfile implements a Source that reads the dataset from a JSON file.
package jsonfile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/avast/retry-go"

	"github.com/ArionMiles/financehub/pkg/api"
)

// Config holds configuration for the JSON file source.
type Config struct {
	// FilePath is the path of the dataset file.
	FilePath string
	// FS, when set, is read instead of the operating system's file system.
	FS fs.FS
}

// Source reads a dataset file on every Load. The file holds either a bare
// array of transactions or an object with transactions, budgets and aliases.
type Source struct {
	filePath string
	fsys     fs.FS
	logger   *slog.Logger
}

// New creates a new JSON file source.
func New(cfg Config, logger *slog.Logger) (*Source, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.FilePath == "" {
		return nil, errors.New("file path is required")
	}

	s := &Source{
		filePath: cfg.FilePath,
		fsys:     cfg.FS,
		logger:   logger.With("component", "jsonfile_source"),
	}
	s.logger.Info("json source initialized", "file", cfg.FilePath, "embedded", cfg.FS != nil)
	return s, nil
}

// Load reads and decodes the dataset file.
func (s *Source) Load(ctx context.Context) (*api.RawDataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := s.read()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.filePath, err)
	}

	raw, err := Decode(data)
	if err != nil {
		// Reading the same bytes again cannot fix them.
		return nil, retry.Unrecoverable(fmt.Errorf("decoding %s: %w", s.filePath, err))
	}
	s.logger.Debug("dataset loaded", "transactions", len(raw.Transactions), "budgets", len(raw.Budgets))
	return raw, nil
}

func (s *Source) read() ([]byte, error) {
	if s.fsys != nil {
		return fs.ReadFile(s.fsys, s.filePath)
	}
	return os.ReadFile(s.filePath)
}

// Decode parses a dataset document. An empty document is an empty dataset.
func Decode(data []byte) (*api.RawDataset, error) {
	data = bytes.TrimSpace(data)
	raw := &api.RawDataset{}
	if len(data) == 0 {
		return raw, nil
	}

	if data[0] == '[' {
		if err := json.Unmarshal(data, &raw.Transactions); err != nil {
			return nil, err
		}
		return raw, nil
	}
	if err := json.Unmarshal(data, raw); err != nil {
		return nil, err
	}
	return raw, nil
}
