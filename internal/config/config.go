package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/cleared-dev/bankrecon/internal/importer"
)

// FileName is the config file looked up in the working directory when no
// path is given.
const FileName = "bankrecon.yaml"

// EnvPrefix prefixes environment overrides, e.g. BANKRECON_DATABASE_URL.
const EnvPrefix = "BANKRECON"

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverRemote   = "remote"
)

// Config represents bankrecon.yaml.
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Database  DatabaseConfig  `yaml:"database" mapstructure:"database"`
	Remote    RemoteConfig    `yaml:"remote" mapstructure:"remote"`
	Parsing   ParsingConfig   `yaml:"parsing" mapstructure:"parsing"`
	Reconcile ReconcileConfig `yaml:"reconcile" mapstructure:"reconcile"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// ServerConfig controls the REST API listener.
type ServerConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// StoreConfig selects the storage backend.
type StoreConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"` // memory, postgres or remote
}

// DatabaseConfig sizes the Postgres pool.
type DatabaseConfig struct {
	URL         string        `yaml:"url" mapstructure:"url"`
	MaxConns    int32         `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32         `yaml:"min_conns" mapstructure:"min_conns"`
	MaxConnIdle time.Duration `yaml:"max_conn_idle" mapstructure:"max_conn_idle"`
}

// RemoteConfig points the remote driver at another bankrecon server.
type RemoteConfig struct {
	BaseURL string        `yaml:"base_url" mapstructure:"base_url"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// ParsingConfig controls statement parsing.
type ParsingConfig struct {
	DefaultBank    string `yaml:"default_bank" mapstructure:"default_bank"`
	FallbackPolicy string `yaml:"fallback_policy" mapstructure:"fallback_policy"` // generic or strict
}

// ReconcileConfig controls reconciliation sessions.
type ReconcileConfig struct {
	CacheTTL        time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
	AuditLog        string        `yaml:"audit_log" mapstructure:"audit_log"` // empty disables
	InvoicePageSize int           `yaml:"invoice_page_size" mapstructure:"invoice_page_size"`
}

// LogConfig sets the log level.
type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
}

// Default returns a Config with sensible defaults for a new project.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":8080"},
		Store:  StoreConfig{Driver: DriverMemory},
		Database: DatabaseConfig{
			MaxConns:    5,
			MinConns:    1,
			MaxConnIdle: 2 * time.Minute,
		},
		Remote: RemoteConfig{Timeout: 15 * time.Second},
		Parsing: ParsingConfig{
			DefaultBank:    "BCA",
			FallbackPolicy: string(importer.FallbackGeneric),
		},
		Reconcile: ReconcileConfig{
			CacheTTL:        5 * time.Minute,
			AuditLog:        "logs/reconcile-audit.csv",
			InvoicePageSize: 20,
		},
		Log: LogConfig{Level: "info"},
	}
}

// flagKeys maps command-line flags to config keys.
var flagKeys = map[string]string{
	"log-level":    "log.level",
	"addr":         "server.addr",
	"driver":       "store.driver",
	"database-url": "database.url",
	"remote-url":   "remote.base_url",
	"audit-log":    "reconcile.audit_log",
}

// Load layers defaults, the YAML file, BANKRECON_* environment variables and
// changed flags, in increasing priority. An empty path uses FileName in the
// working directory when it exists.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	if path == "" {
		if _, err := os.Stat(FileName); err == nil {
			path = FileName
		}
	} else if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("store.driver", d.Store.Driver)
	v.SetDefault("database.url", d.Database.URL)
	v.SetDefault("database.max_conns", d.Database.MaxConns)
	v.SetDefault("database.min_conns", d.Database.MinConns)
	v.SetDefault("database.max_conn_idle", d.Database.MaxConnIdle)
	v.SetDefault("remote.base_url", d.Remote.BaseURL)
	v.SetDefault("remote.timeout", d.Remote.Timeout)
	v.SetDefault("parsing.default_bank", d.Parsing.DefaultBank)
	v.SetDefault("parsing.fallback_policy", d.Parsing.FallbackPolicy)
	v.SetDefault("reconcile.cache_ttl", d.Reconcile.CacheTTL)
	v.SetDefault("reconcile.audit_log", d.Reconcile.AuditLog)
	v.SetDefault("reconcile.invoice_page_size", d.Reconcile.InvoicePageSize)
	v.SetDefault("log.level", d.Log.Level)
}

// Validate checks values that have a fixed set of choices or depend on each
// other.
func (c *Config) Validate() error {
	var errs []error
	switch c.Store.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Database.URL == "" {
			errs = append(errs, errors.New("database.url is required for the postgres driver"))
		}
	case DriverRemote:
		if c.Remote.BaseURL == "" {
			errs = append(errs, errors.New("remote.base_url is required for the remote driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store.driver %q (want memory, postgres or remote)", c.Store.Driver))
	}
	if _, err := importer.ParseFallbackPolicy(c.Parsing.FallbackPolicy); err != nil {
		errs = append(errs, fmt.Errorf("parsing.fallback_policy: %w", err))
	}
	if c.Database.MinConns > c.Database.MaxConns {
		errs = append(errs, fmt.Errorf("database.min_conns %d exceeds max_conns %d", c.Database.MinConns, c.Database.MaxConns))
	}
	if c.Reconcile.InvoicePageSize < 0 {
		errs = append(errs, errors.New("reconcile.invoice_page_size must not be negative"))
	}
	return errors.Join(errs...)
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
