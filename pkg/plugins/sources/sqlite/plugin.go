// Package sqlite provides a plugin wrapper for the SQLite source.
package sqlite

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ArionMiles/financehub/pkg/api"
	sqlitesource "github.com/ArionMiles/financehub/pkg/source/sqlite"
)

// DefaultPath is the database file used when none is configured.
const DefaultPath = "data/financehub.db"

// Plugin implements the SourcePlugin interface for SQLite.
type Plugin struct{}

// Name returns the plugin name.
func (p *Plugin) Name() string {
	return "sqlite"
}

// Description returns a human-readable description.
func (p *Plugin) Description() string {
	return "Read transactions, budgets and category aliases from a local SQLite file"
}

// RequiredScopes returns the OAuth scopes needed by this plugin.
func (p *Plugin) RequiredScopes() []string {
	return []string{}
}

// ConfigSchema returns a JSON schema describing the plugin's configuration.
func (p *Plugin) ConfigSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "Path to the database file",
				"default":     DefaultPath,
			},
		},
	}
}

// Config represents the SQLite source configuration.
type Config struct {
	Path string `json:"path"`
}

// NewSource creates a new SQLite source instance.
func (p *Plugin) NewSource(httpClient *http.Client, configData json.RawMessage, logger *slog.Logger) (api.Source, error) {
	var cfg Config
	if len(configData) > 0 {
		if err := json.Unmarshal(configData, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshaling sqlite config: %w", err)
		}
	}
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}
	return sqlitesource.New(cfg.Path, logger)
}
