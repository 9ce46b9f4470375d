// Package sheets provides a plugin wrapper for the Google Sheets source.
package sheets

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/ArionMiles/financehub/pkg/api"
	sheetssource "github.com/ArionMiles/financehub/pkg/source/sheets"
)

// Plugin implements the SourcePlugin interface for Google Sheets.
type Plugin struct{}

// Name returns the plugin name.
func (p *Plugin) Name() string {
	return "sheets"
}

// Description returns a human-readable description.
func (p *Plugin) Description() string {
	return "Read transactions and budgets from a Google Sheet"
}

// RequiredScopes returns the OAuth scopes needed by this plugin.
func (p *Plugin) RequiredScopes() []string {
	return []string{
		sheetsapi.SpreadsheetsReadonlyScope,
	}
}

// ConfigSchema returns a JSON schema describing the plugin's configuration.
func (p *Plugin) ConfigSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"sheetId": map[string]any{
				"type":        "string",
				"description": "ID of the spreadsheet to read",
			},
			"sheetName": map[string]any{
				"type":        "string",
				"description": "Name of the sheet/tab holding transactions",
				"default":     sheetssource.DefaultSheetName,
			},
			"budgetSheetName": map[string]any{
				"type":        "string",
				"description": "Name of the sheet/tab holding category,limit rows",
			},
			"retryDelay": map[string]any{
				"type":        "integer",
				"description": "Seconds to wait after a rate-limited request (default: 30)",
				"default":     30,
			},
		},
		"required": []string{"sheetId"},
	}
}

// Config represents the Sheets source configuration.
type Config struct {
	SheetID         string `json:"sheetId"`
	SheetName       string `json:"sheetName,omitempty"`
	BudgetSheetName string `json:"budgetSheetName,omitempty"`
	RetryDelay      int    `json:"retryDelay,omitempty"` // in seconds
}

// NewSource creates a new Sheets source instance.
func (p *Plugin) NewSource(httpClient *http.Client, configData json.RawMessage, logger *slog.Logger) (api.Source, error) {
	var cfg Config
	if err := json.Unmarshal(configData, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling sheets config: %w", err)
	}
	if cfg.SheetID == "" {
		return nil, fmt.Errorf("sheetId is required")
	}
	if httpClient == nil {
		return nil, fmt.Errorf("sheets source requires an OAuth client (run 'financehub setup')")
	}

	return sheetssource.New(context.Background(), httpClient, sheetssource.Config{
		SheetID:         cfg.SheetID,
		SheetName:       cfg.SheetName,
		BudgetSheetName: cfg.BudgetSheetName,
		RetryDelay:      time.Duration(cfg.RetryDelay) * time.Second,
	}, logger)
}
