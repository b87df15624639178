// Package config defines the application configuration structures.
//
// Settings live in ~/.paicortex/config.yaml. Every credential can also be
// supplied through environment variables (SNOWFLAKE_ACCOUNT, SNOWFLAKE_USER,
// SNOWFLAKE_PASSWORD, ...), which override the file. When the file and the
// environment together carry a full set of credentials the login form is
// skipped ("implicit" login).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	env "github.com/caarlos0/env/v10"
	"gopkg.in/yaml.v3"
)

// Warehouse drivers.
const (
	DriverSnowflake = "snowflake"
	DriverPostgres  = "postgres"
)

// Analyst modes.
const (
	AnalystCortex      = "cortex"
	AnalystPlaceholder = "placeholder"
)

// Config holds all application settings.
type Config struct {
	Warehouse   WarehouseConfig  `yaml:"warehouse"`
	Analyst     AnalystConfig    `yaml:"analyst"`
	Query       QueryConfig      `yaml:"query"`
	Log         LogConfig        `yaml:"log"`
	Transcripts TranscriptConfig `yaml:"transcripts"`
}

// WarehouseConfig selects the session provider and carries its settings.
type WarehouseConfig struct {
	Driver    string          `yaml:"driver" env:"PAICORTEX_WAREHOUSE_DRIVER"`
	Snowflake SnowflakeConfig `yaml:"snowflake"`
	Postgres  PostgresConfig  `yaml:"postgres"`
}

// SnowflakeConfig holds the account and login settings for a Snowflake session.
type SnowflakeConfig struct {
	Account   string `yaml:"account" env:"SNOWFLAKE_ACCOUNT"`
	User      string `yaml:"user,omitempty" env:"SNOWFLAKE_USER"`
	Password  string `yaml:"password,omitempty" env:"SNOWFLAKE_PASSWORD"`
	Role      string `yaml:"role,omitempty" env:"SNOWFLAKE_ROLE"`
	Warehouse string `yaml:"warehouse,omitempty" env:"SNOWFLAKE_WAREHOUSE"`
	Database  string `yaml:"database,omitempty" env:"SNOWFLAKE_DATABASE"`
	Schema    string `yaml:"schema,omitempty" env:"SNOWFLAKE_SCHEMA"`

	// Host overrides the default <account>.snowflakecomputing.com endpoint,
	// e.g. for privatelink hosts.
	Host string `yaml:"host,omitempty" env:"SNOWFLAKE_HOST"`
}

// PostgresConfig describes a Postgres mirror of the warehouse. SQL runs
// locally while natural-language requests still go to the hosted analyst
// of AnalystAccount, authenticated with AccessToken.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password,omitempty" env:"PGPASSWORD"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`

	// DiscoveryQuery must return (database, schema, name) rows.
	DiscoveryQuery string `yaml:"discovery_query,omitempty"`

	AnalystAccount string `yaml:"analyst_account,omitempty" env:"SNOWFLAKE_ACCOUNT"`
	AccessToken    string `yaml:"access_token,omitempty" env:"SNOWFLAKE_PAT"`

	SSH SSHConfig `yaml:"ssh"`
}

// SSHConfig holds SSH tunnel settings.
type SSHConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Host          string `yaml:"host,omitempty"`
	Port          int    `yaml:"port,omitempty"`
	User          string `yaml:"user,omitempty"`
	KeyPath       string `yaml:"key_path,omitempty"`
	KeyPassphrase string `yaml:"key_passphrase,omitempty" env:"PAICORTEX_SSH_PASSPHRASE"`
}

// AnalystConfig controls the natural-language backend.
type AnalystConfig struct {
	Mode         string `yaml:"mode" env:"PAICORTEX_ANALYST_MODE"`
	SemanticView string `yaml:"semantic_view,omitempty" env:"PAICORTEX_SEMANTIC_VIEW"`
}

// QueryConfig controls SQL execution of analyst-generated statements.
type QueryConfig struct {
	// CacheSize is the number of result tables kept in memory; 0 disables caching.
	CacheSize int `yaml:"cache_size" env:"PAICORTEX_QUERY_CACHE_SIZE"`
}

// LogConfig controls application logging.
type LogConfig struct {
	Level string `yaml:"level" env:"PAICORTEX_LOG_LEVEL"`
	File  string `yaml:"file,omitempty" env:"PAICORTEX_LOG_FILE"`
}

// TranscriptConfig controls the local conversation archive.
type TranscriptConfig struct {
	Enabled bool   `yaml:"enabled" env:"PAICORTEX_TRANSCRIPTS"`
	Path    string `yaml:"path,omitempty"`
}

// Default returns sensible defaults.
func Default() *Config {
	return &Config{
		Warehouse: WarehouseConfig{
			Driver: DriverSnowflake,
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				User:     "postgres",
				Database: "postgres",
				SSLMode:  "disable",
				SSH:      SSHConfig{Port: 22},
			},
		},
		Analyst: AnalystConfig{Mode: AnalystCortex},
		Query:   QueryConfig{CacheSize: 64},
		Log: LogConfig{
			Level: "INFO",
			File:  filepath.Join(Dir(), "logs", "app.log"),
		},
		Transcripts: TranscriptConfig{
			Enabled: true,
			Path:    filepath.Join(Dir(), "transcripts.bolt"),
		},
	}
}

// Dir returns the application directory (~/.paicortex), or ".paicortex"
// relative to the working directory when the home directory is unknown.
func Dir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil || homeDir == "" {
		return ".paicortex"
	}
	return filepath.Join(homeDir, ".paicortex")
}

// DefaultPath is the location of the config file.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Load reads the config file at path (DefaultPath when empty) and applies
// environment overrides. A missing default file is not an error; a missing
// explicit path is.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("apply environment: %w", err)
	}
	cfg.Warehouse.Driver = strings.ToLower(strings.TrimSpace(cfg.Warehouse.Driver))
	cfg.Analyst.Mode = strings.ToLower(strings.TrimSpace(cfg.Analyst.Mode))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks option values that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Warehouse.Driver {
	case DriverSnowflake, DriverPostgres:
	default:
		return fmt.Errorf("unknown warehouse driver %q. Supported: snowflake, postgres", c.Warehouse.Driver)
	}
	switch c.Analyst.Mode {
	case AnalystCortex, AnalystPlaceholder:
	default:
		return fmt.Errorf("unknown analyst mode %q. Supported: cortex, placeholder", c.Analyst.Mode)
	}
	if c.Query.CacheSize < 0 {
		return fmt.Errorf("query.cache_size must not be negative")
	}
	return nil
}

// Implicit reports whether the configuration alone is enough to open a
// warehouse session without asking the user for a password.
func (c *Config) Implicit() bool {
	if c.Warehouse.Driver == DriverPostgres {
		return true
	}
	sf := c.Warehouse.Snowflake
	return sf.Account != "" && sf.User != "" && sf.Password != ""
}

// Save writes the config to path (DefaultPath when empty). Passwords are
// never persisted.
func Save(cfg *Config, path string) error {
	if path == "" {
		path = DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	out := *cfg
	out.Warehouse.Snowflake.Password = ""
	out.Warehouse.Postgres.Password = ""

	data, err := yaml.Marshal(&out)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// DSN builds a pgx-compatible connection string. When an SSH tunnel is
// active the caller overrides Host/Port with the local tunnel endpoint.
func (c PostgresConfig) DSN() string {
	return "host=" + c.Host +
		" port=" + strconv.Itoa(c.Port) +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.Database +
		" sslmode=" + c.SSLMode
}
