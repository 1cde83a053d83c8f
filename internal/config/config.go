// Package config loads and validates application configuration from a
// YAML file overlaid with SERENO_ environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the root application configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	Database  DatabaseConfig  `koanf:"database"`
	Log       LogConfig       `koanf:"log"`
	Incidents IncidentsConfig `koanf:"incidents"`
	Slack     SlackConfig     `koanf:"slack"`
	Jira      JiraConfig      `koanf:"jira"`
	Zoom      ZoomConfig      `koanf:"zoom"`
}

// ServerConfig configures the public HTTP listener.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"required,min=1,max=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// MetricsConfig configures the internal metrics listener.
type MetricsConfig struct {
	Port int `koanf:"port" validate:"required,min=1,max=65535"`
}

// DatabaseConfig configures PostgreSQL access.
type DatabaseConfig struct {
	URL             string        `koanf:"url" validate:"required"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnectAttempts int           `koanf:"connect_attempts"`
	MigrationsPath  string        `koanf:"migrations_path"`
}

// LogConfig configures logging output.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json text"`
}

// IncidentsConfig configures incident policy.
type IncidentsConfig struct {
	// IANA zone name used for "same day" comparisons, e.g. Europe/Berlin.
	// Empty means the server's local zone.
	Timezone string `koanf:"timezone"`
}

// SlackConfig holds the Slack app credentials.
type SlackConfig struct {
	ClientID      string `koanf:"client_id" validate:"required"`
	ClientSecret  string `koanf:"client_secret" validate:"required"`
	SigningSecret string `koanf:"signing_secret" validate:"required"`
	RedirectURL   string `koanf:"redirect_url" validate:"required,url"`
	StateSecret   string `koanf:"state_secret" validate:"required"`
	BaseURL       string `koanf:"base_url"`
}

// JiraConfig holds the Jira OAuth app credentials.
type JiraConfig struct {
	ClientID     string `koanf:"client_id" validate:"required"`
	ClientSecret string `koanf:"client_secret" validate:"required"`
	RedirectURL  string `koanf:"redirect_url" validate:"required,url"`
	AuthBaseURL  string `koanf:"auth_base_url"`
	APIBaseURL   string `koanf:"api_base_url"`
}

// ZoomConfig holds the Zoom OAuth app credentials.
type ZoomConfig struct {
	ClientID     string `koanf:"client_id" validate:"required"`
	ClientSecret string `koanf:"client_secret" validate:"required"`
	RedirectURL  string `koanf:"redirect_url" validate:"required,url"`
	AuthBaseURL  string `koanf:"auth_base_url"`
	APIBaseURL   string `koanf:"api_base_url"`
}

// Load reads configuration from the given YAML file (optional) and the
// environment, applies defaults and validates the result. Environment
// variables use the SERENO_ prefix with underscores as separators, e.g.
// SERENO_DATABASE__URL overrides database.url.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load config file %s: %w", path, err)
			}
		}
	}

	// Double underscore separates nesting levels so single-word keys like
	// client_id survive: SERENO_JIRA__CLIENT_ID -> jira.client_id.
	err := k.Load(env.Provider("SERENO_", ".", func(s string) string {
		key := strings.TrimPrefix(s, "SERENO_")
		return strings.ReplaceAll(strings.ToLower(key), "__", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := defaults()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Timezone resolves the configured incident timezone.
func (c *Config) Timezone() (*time.Location, error) {
	if c.Incidents.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Incidents.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Incidents.Timezone, err)
	}
	return loc, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Metrics: MetricsConfig{
			Port: 9090,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
			ConnectAttempts: 5,
			MigrationsPath:  "migrations",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
