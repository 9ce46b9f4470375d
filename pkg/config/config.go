// Package config loads the FinanceHub configuration from an optional JSON file
// overlaid by environment variables.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	kJson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// ClientSecretFile is the default path to the Google OAuth credentials JSON file.
const ClientSecretFile = "data/client_secret.json"

// Defaults applied by Load for unset keys.
const (
	DefaultAddr          = ":8000"
	DefaultSource        = "json"
	DefaultTimezone      = "Local"
	DefaultSessionTTL    = 3600
	DefaultRevenueMonths = 6
	DefaultDonutSegments = 5
)

const sourceConfigKey = "FINANCEHUB_SOURCE_CONFIG"

// Config holds the application configuration.
type Config struct {
	// Addr is the HTTP listen address.
	// Environment variable: FINANCEHUB_ADDR
	Addr string `koanf:"FINANCEHUB_ADDR"`

	// Source is the name of the source plugin to load the dataset from.
	// Environment variable: FINANCEHUB_SOURCE
	Source string `koanf:"FINANCEHUB_SOURCE"`

	// SourceConfig is the JSON configuration for the source plugin. In a config
	// file it may be given as an object or as a string.
	// Environment variable: FINANCEHUB_SOURCE_CONFIG
	SourceConfig json.RawMessage `koanf:"-"`

	// Timezone names the location months and weeks are evaluated in.
	// Environment variable: FINANCEHUB_TIMEZONE
	Timezone string `koanf:"FINANCEHUB_TIMEZONE"`

	// SessionTTL is the session lifetime in seconds.
	// Environment variable: FINANCEHUB_SESSION_TTL
	SessionTTL int `koanf:"FINANCEHUB_SESSION_TTL"`

	// UsersFile is a JSON file of users allowed to sign in. The built-in demo
	// user is used when empty.
	// Environment variable: FINANCEHUB_USERS_FILE
	UsersFile string `koanf:"FINANCEHUB_USERS_FILE"`

	// RevenueMonths is the length of the revenue-flow series.
	// Environment variable: FINANCEHUB_REVENUE_MONTHS
	RevenueMonths int `koanf:"FINANCEHUB_REVENUE_MONTHS"`

	// DonutSegments is the number of categories drawn in the donut chart.
	// Environment variable: FINANCEHUB_DONUT_SEGMENTS
	DonutSegments int `koanf:"FINANCEHUB_DONUT_SEGMENTS"`

	// LogLevel and LogJSON control logging output.
	// Environment variables: LOG_LEVEL, LOG_JSON
	LogLevel string `koanf:"LOG_LEVEL"`
	LogJSON  bool   `koanf:"LOG_JSON"`

	// Google Sheets configuration (used by the sheets source plugin)
	GSheetsID   string `koanf:"GSHEETS_ID"`
	GSheetsName string `koanf:"GSHEETS_NAME"`

	// PostgreSQL configuration (used by the postgres source plugin)
	Postgres PostgresConfig `koanf:",squash"`
}

// PostgresConfig holds PostgreSQL connection configuration.
type PostgresConfig struct {
	Host     string `koanf:"POSTGRES_HOST"`
	Port     int    `koanf:"POSTGRES_PORT"`
	Database string `koanf:"POSTGRES_DB"`
	User     string `koanf:"POSTGRES_USER"`
	Password string `koanf:"POSTGRES_PASSWORD"`
	SSLMode  string `koanf:"POSTGRES_SSLMODE"`
}

// Load reads configPath (skipped when empty or missing) and then the
// environment, which takes precedence.
func Load(configPath string) (Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if err := k.Load(file.Provider(configPath), kJson.Parser()); err != nil {
				return Config{}, fmt.Errorf("loading config file %s: %w", configPath, err)
			}
		}
	}
	fileSourceConfig := k.Get(sourceConfigKey)

	if err := k.Load(env.Provider("", ".", nil), nil); err != nil {
		return Config{}, fmt.Errorf("loading environment: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf", FlatPaths: true}); err != nil {
		return Config{}, fmt.Errorf("unmarshaling config: %w", err)
	}

	raw, err := sourceConfig(os.Getenv(sourceConfigKey), fileSourceConfig)
	if err != nil {
		return Config{}, err
	}
	cfg.SourceConfig = raw

	cfg.applyDefaults()
	return cfg, nil
}

// sourceConfig prefers the environment value over the file value.
func sourceConfig(envValue string, fileValue any) (json.RawMessage, error) {
	if s := strings.TrimSpace(envValue); s != "" {
		if !json.Valid([]byte(s)) {
			return nil, fmt.Errorf("%s is not valid JSON", sourceConfigKey)
		}
		return json.RawMessage(s), nil
	}

	switch v := fileValue.(type) {
	case nil:
		return nil, nil
	case string:
		if !json.Valid([]byte(v)) {
			return nil, fmt.Errorf("%s is not valid JSON", sourceConfigKey)
		}
		return json.RawMessage(v), nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encoding %s: %w", sourceConfigKey, err)
		}
		return b, nil
	}
}

func (c *Config) applyDefaults() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.Source == "" {
		c.Source = DefaultSource
	}
	if c.Timezone == "" {
		c.Timezone = DefaultTimezone
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = DefaultSessionTTL
	}
	if c.RevenueMonths <= 0 {
		c.RevenueMonths = DefaultRevenueMonths
	}
	if c.DonutSegments <= 0 {
		c.DonutSegments = DefaultDonutSegments
	}
}

// Location resolves Timezone.
func (c Config) Location() (*time.Location, error) {
	switch c.Timezone {
	case "", "Local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// SessionLifetime returns SessionTTL as a duration.
func (c Config) SessionLifetime() time.Duration {
	return time.Duration(c.SessionTTL) * time.Second
}

// DefaultSourceConfig builds the source plugin configuration from the
// dedicated environment variables when SourceConfig is not set.
func (c Config) DefaultSourceConfig() (json.RawMessage, error) {
	if len(c.SourceConfig) > 0 {
		return c.SourceConfig, nil
	}

	switch c.Source {
	case "postgres":
		if c.Postgres.Host == "" {
			return nil, fmt.Errorf("POSTGRES_HOST is required for the postgres source")
		}
		return json.Marshal(map[string]any{
			"host":     c.Postgres.Host,
			"port":     c.Postgres.Port,
			"database": c.Postgres.Database,
			"user":     c.Postgres.User,
			"password": c.Postgres.Password,
			"sslmode":  c.Postgres.SSLMode,
		})
	case "sheets":
		if c.GSheetsID == "" {
			return nil, fmt.Errorf("GSHEETS_ID is required for the sheets source")
		}
		cfg := map[string]any{"sheetId": c.GSheetsID}
		if c.GSheetsName != "" {
			cfg["sheetName"] = c.GSheetsName
		}
		return json.Marshal(cfg)
	default:
		return json.RawMessage(`{}`), nil
	}
}
