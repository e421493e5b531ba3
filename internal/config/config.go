// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads warden configuration from defaults, an optional YAML
// file and command-line flags, in that order of precedence.
package config

import (
	"errors"
	"io/fs"
	"os"
	"slices"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/holomush/warden/internal/xdg"
)

// Error codes.
const (
	CodeInvalid    = "CONFIG_INVALID"
	CodeLoadFailed = "CONFIG_LOAD_FAILED"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverRedis    = "redis"
)

// Config is the full warden configuration.
type Config struct {
	Log     LogConfig     `koanf:"log"`
	Store   StoreConfig   `koanf:"store"`
	API     APIConfig     `koanf:"api"`
	Metrics MetricsConfig `koanf:"metrics"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// StoreConfig selects and configures the storage backend.
type StoreConfig struct {
	Driver        string `koanf:"driver"`
	DSN           string `koanf:"dsn"`
	Path          string `koanf:"path"`
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`
	RedisPrefix   string `koanf:"redis_prefix"`
}

// APIConfig configures the HTTP API.
type APIConfig struct {
	Addr string `koanf:"addr"`
}

// MetricsConfig configures the metrics and health server. An empty Addr
// disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// Defaults returns the built-in configuration.
func Defaults() map[string]any {
	return map[string]any{
		"log.format":           "json",
		"log.level":            "info",
		"store.driver":         DriverSQLite,
		"store.dsn":            "",
		"store.path":           xdg.SQLitePath(),
		"store.redis_addr":     "localhost:6379",
		"store.redis_password": "",
		"store.redis_db":       0,
		"store.redis_prefix":   "warden:",
		"api.addr":             "127.0.0.1:8080",
		"metrics.addr":         "127.0.0.1:9100",
	}
}

// flagKeys maps command-line flag names to config keys. Flags not listed are
// not configuration.
var flagKeys = map[string]string{
	"log-format":     "log.format",
	"log-level":      "log.level",
	"store-driver":   "store.driver",
	"store-dsn":      "store.dsn",
	"store-path":     "store.path",
	"redis-addr":     "store.redis_addr",
	"redis-password": "store.redis_password",
	"redis-db":       "store.redis_db",
	"redis-prefix":   "store.redis_prefix",
	"api-addr":       "api.addr",
	"metrics-addr":   "metrics.addr",
}

// RegisterFlags adds the configuration flags to flags.
func RegisterFlags(flags *pflag.FlagSet) {
	d := Defaults()
	flags.String("log-format", d["log.format"].(string), "log format (json or text)")
	flags.String("log-level", d["log.level"].(string), "log level (debug, info, warn, error)")
	flags.String("store-driver", d["store.driver"].(string), "storage backend (memory, postgres, sqlite, redis)")
	flags.String("store-dsn", "", "PostgreSQL connection URL (default: $DATABASE_URL)")
	flags.String("store-path", d["store.path"].(string), "SQLite database path")
	flags.String("redis-addr", d["store.redis_addr"].(string), "Redis address")
	flags.String("redis-password", "", "Redis password")
	flags.Int("redis-db", 0, "Redis database number")
	flags.String("redis-prefix", d["store.redis_prefix"].(string), "Redis key prefix")
	flags.String("api-addr", d["api.addr"].(string), "HTTP API listen address")
	flags.String("metrics-addr", d["metrics.addr"].(string), "metrics/health HTTP address (empty = disabled)")
}

// LoadOptions controls where Load reads from.
type LoadOptions struct {
	// File is an explicit config file. It must exist when set.
	File string
	// DefaultFile is read when File is empty and the file exists.
	DefaultFile string
	// Flags overrides file values for every flag the user changed.
	Flags *pflag.FlagSet
	// Getenv reads environment variables; nil uses os.Getenv.
	Getenv func(string) string
}

// Load builds a Config and validates it.
func Load(opts LoadOptions) (*Config, error) {
	k := koanf.New(".")
	for key, value := range Defaults() {
		if err := k.Set(key, value); err != nil {
			return nil, oops.In("config").Code(CodeLoadFailed).With("key", key).Wrap(err)
		}
	}

	path := opts.File
	if path == "" && opts.DefaultFile != "" {
		if _, err := os.Stat(opts.DefaultFile); err == nil {
			path = opts.DefaultFile
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, oops.In("config").Code(CodeLoadFailed).With("path", opts.DefaultFile).Wrap(err)
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.In("config").Code(CodeLoadFailed).With("path", path).Wrapf(err, "read config file")
		}
	}

	if opts.Flags != nil {
		provider := posflag.ProviderWithValue(opts.Flags, ".", k, func(name, value string) (string, any) {
			key, ok := flagKeys[name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(opts.Flags, opts.Flags.Lookup(name))
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.In("config").Code(CodeLoadFailed).Wrapf(err, "read flags")
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.In("config").Code(CodeLoadFailed).Wrapf(err, "decode config")
	}

	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	if cfg.Store.DSN == "" {
		cfg.Store.DSN = getenv("DATABASE_URL")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if !slices.Contains([]string{"json", "text"}, c.Log.Format) {
		return invalid("log.format", c.Log.Format, "must be 'json' or 'text'")
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, strings.ToLower(c.Log.Level)) {
		return invalid("log.level", c.Log.Level, "must be debug, info, warn or error")
	}

	switch c.Store.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Store.DSN == "" {
			return invalid("store.dsn", "", "is required for the postgres driver (or set DATABASE_URL)")
		}
	case DriverSQLite:
		if c.Store.Path == "" {
			return invalid("store.path", "", "is required for the sqlite driver")
		}
	case DriverRedis:
		if c.Store.RedisAddr == "" {
			return invalid("store.redis_addr", "", "is required for the redis driver")
		}
		if c.Store.RedisDB < 0 {
			return invalid("store.redis_db", c.Store.RedisDB, "must not be negative")
		}
	default:
		return invalid("store.driver", c.Store.Driver, "must be memory, postgres, sqlite or redis")
	}

	if c.API.Addr == "" {
		return invalid("api.addr", "", "is required")
	}
	return nil
}

func invalid(key string, value any, msg string) error {
	return oops.In("config").Code(CodeInvalid).
		With("key", key).
		With("value", value).
		Errorf("%s %s", key, msg)
}
