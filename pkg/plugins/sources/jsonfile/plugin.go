// Package jsonfile provides a plugin wrapper for the JSON file source.
package jsonfile

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/ArionMiles/financehub/pkg/api"
	jsonsource "github.com/ArionMiles/financehub/pkg/source/jsonfile"
)

// Plugin implements the SourcePlugin interface for JSON files.
type Plugin struct {
	// FS and DefaultPath name a built-in dataset read when no filePath is configured.
	FS          fs.FS
	DefaultPath string
}

// Name returns the plugin name.
func (p *Plugin) Name() string {
	return "json"
}

// Description returns a human-readable description.
func (p *Plugin) Description() string {
	return "Read transactions, budgets and category aliases from a JSON file"
}

// RequiredScopes returns the OAuth scopes needed by this plugin.
// JSON source doesn't require OAuth scopes.
func (p *Plugin) RequiredScopes() []string {
	return []string{}
}

// ConfigSchema returns a JSON schema describing the plugin's configuration.
func (p *Plugin) ConfigSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"filePath": map[string]any{
				"type":        "string",
				"description": "Path to the dataset file (defaults to the built-in sample data)",
			},
		},
	}
}

// Config represents the JSON source configuration.
type Config struct {
	FilePath string `json:"filePath"`
}

// NewSource creates a new JSON file source instance.
// Note: httpClient is ignored as a local file doesn't need OAuth.
func (p *Plugin) NewSource(httpClient *http.Client, configData json.RawMessage, logger *slog.Logger) (api.Source, error) {
	var cfg Config
	if len(configData) > 0 {
		if err := json.Unmarshal(configData, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshaling json source config: %w", err)
		}
	}

	if cfg.FilePath != "" {
		return jsonsource.New(jsonsource.Config{FilePath: cfg.FilePath}, logger)
	}
	if p.FS == nil || p.DefaultPath == "" {
		return nil, fmt.Errorf("filePath is required")
	}
	return jsonsource.New(jsonsource.Config{FilePath: p.DefaultPath, FS: p.FS}, logger)
}
