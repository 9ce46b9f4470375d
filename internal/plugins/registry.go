// Package plugins provides a plugin registry for data sources.
package plugins

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"

	"github.com/ArionMiles/financehub/pkg/api"
)

// SourcePlugin defines the interface for dataset source plugins.
type SourcePlugin interface {
	// Name returns the plugin name (e.g., "json", "postgres").
	Name() string
	// Description returns a human-readable description.
	Description() string
	// RequiredScopes returns the OAuth scopes needed by this plugin.
	RequiredScopes() []string
	// ConfigSchema returns a JSON schema describing the plugin's configuration.
	ConfigSchema() map[string]any
	// NewSource creates a new source instance with the given config.
	NewSource(httpClient *http.Client, config json.RawMessage, logger *slog.Logger) (api.Source, error)
}

// Registry manages available source plugins.
type Registry struct {
	sources map[string]SourcePlugin
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		sources: make(map[string]SourcePlugin),
	}
}

// Register registers a source plugin.
func (r *Registry) Register(plugin SourcePlugin) error {
	name := plugin.Name()
	if _, exists := r.sources[name]; exists {
		return fmt.Errorf("source plugin %q already registered", name)
	}
	r.sources[name] = plugin
	return nil
}

// Get returns a source plugin by name.
func (r *Registry) Get(name string) (SourcePlugin, error) {
	plugin, exists := r.sources[name]
	if !exists {
		return nil, fmt.Errorf("source plugin %q not found", name)
	}
	return plugin, nil
}

// List returns all registered source plugins sorted by name.
func (r *Registry) List() []SourcePlugin {
	plugins := make([]SourcePlugin, 0, len(r.sources))
	for _, plugin := range r.sources {
		plugins = append(plugins, plugin)
	}
	sort.Slice(plugins, func(i, j int) bool { return plugins[i].Name() < plugins[j].Name() })
	return plugins
}

// Scopes returns the deduplicated OAuth scopes required by the named sources.
func (r *Registry) Scopes(names ...string) ([]string, error) {
	scopeSet := make(map[string]struct{})
	for _, name := range names {
		plugin, err := r.Get(name)
		if err != nil {
			return nil, err
		}
		for _, scope := range plugin.RequiredScopes() {
			scopeSet[scope] = struct{}{}
		}
	}

	scopes := make([]string, 0, len(scopeSet))
	for scope := range scopeSet {
		scopes = append(scopes, scope)
	}
	sort.Strings(scopes)
	return scopes, nil
}

// Create creates a source instance from a plugin.
func (r *Registry) Create(name string, httpClient *http.Client, config json.RawMessage, logger *slog.Logger) (api.Source, error) {
	plugin, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	return plugin.NewSource(httpClient, config, logger)
}
