// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ContactDir Contributors

// Package config loads and validates service configuration.
//
// Sources are merged in increasing precedence: built-in defaults, a YAML
// config file, CONTACTDIR_* environment variables, then command-line flags.
package config

import (
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// envPrefix namespaces environment variable overrides. A double
// underscore separates nesting levels, e.g. CONTACTDIR_DATABASE__URL
// maps to database.url and CONTACTDIR_REDIS__TTL_MINUTES to
// redis.ttl_minutes.
const envPrefix = "CONTACTDIR_"

// Hasher selection values for AuthConfig.Hasher.
const (
	HasherSHA256   = "sha256"
	HasherArgon2id = "argon2id"
)

// Config is the root service configuration.
type Config struct {
	Database DatabaseConfig `koanf:"database" json:"database,omitempty"`
	Redis    RedisConfig    `koanf:"redis" json:"redis,omitempty"`
	Server   ServerConfig   `koanf:"server" json:"server,omitempty"`
	Auth     AuthConfig     `koanf:"auth" json:"auth,omitempty"`
	Log      LogConfig      `koanf:"log" json:"log,omitempty"`
}

// DatabaseConfig configures the PostgreSQL connection.
type DatabaseConfig struct {
	// URL is a postgres:// connection string.
	URL string `koanf:"url" json:"url,omitempty" jsonschema:"description=PostgreSQL connection URL"`
}

// RedisConfig configures the cache connection.
type RedisConfig struct {
	// Addr is the Redis server address in host:port form.
	Addr string `koanf:"addr" json:"addr,omitempty" jsonschema:"description=Redis server address (host:port)"`

	// Prefix namespaces every cache key written by this instance.
	Prefix string `koanf:"prefix" json:"prefix,omitempty" jsonschema:"description=Key prefix for all cache entries"`

	// TTLMinutes is the sliding expiration window for cache entries.
	TTLMinutes int `koanf:"ttl_minutes" json:"ttl_minutes,omitempty" jsonschema:"minimum=1,description=Sliding cache expiry in minutes"`
}

// ServerConfig configures the listening sockets.
type ServerConfig struct {
	// ListenAddr is the HTTP API listen address.
	ListenAddr string `koanf:"listen_addr" json:"listen_addr,omitempty" jsonschema:"description=HTTP API listen address"`

	// ObservabilityAddr serves health checks and Prometheus metrics.
	ObservabilityAddr string `koanf:"observability_addr" json:"observability_addr,omitempty" jsonschema:"description=Health and metrics listen address"`
}

// AuthConfig configures credential hashing.
type AuthConfig struct {
	// Hasher selects the password hashing scheme: sha256 or argon2id.
	Hasher string `koanf:"hasher" json:"hasher,omitempty" jsonschema:"enum=sha256,enum=argon2id,description=Password hashing scheme"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	// Format is "text" or "json".
	Format string `koanf:"format" json:"format,omitempty" jsonschema:"enum=text,enum=json,description=Log output format"`

	// Level is the minimum level: debug, info, warn, or error.
	Level string `koanf:"level" json:"level,omitempty" jsonschema:"enum=debug,enum=info,enum=warn,enum=error,description=Minimum log level"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Database: DatabaseConfig{URL: ""},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			Prefix:     "contactdir:",
			TTLMinutes: 30,
		},
		Server: ServerConfig{
			ListenAddr:        ":8080",
			ObservabilityAddr: ":9090",
		},
		Auth: AuthConfig{Hasher: HasherSHA256},
		Log:  LogConfig{Format: "text", Level: "info"},
	}
}

// Load merges defaults, the optional YAML file at path, CONTACTDIR_*
// environment variables, and flags into a validated Config. An empty path
// skips the file source; flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	defaults := Defaults()
	if err := k.Load(confmap.Provider(map[string]any{
		"database.url":              defaults.Database.URL,
		"redis.addr":                defaults.Redis.Addr,
		"redis.prefix":              defaults.Redis.Prefix,
		"redis.ttl_minutes":         defaults.Redis.TTLMinutes,
		"server.listen_addr":        defaults.Server.ListenAddr,
		"server.observability_addr": defaults.Server.ObservabilityAddr,
		"auth.hasher":               defaults.Auth.Hasher,
		"log.format":                defaults.Log.Format,
		"log.level":                 defaults.Log.Level,
	}, "."), nil); err != nil {
		return nil, oops.Code("CONFIG_DEFAULTS_FAILED").Wrap(err)
	}

	if path != "" {
		raw, err := readFile(path)
		if err != nil {
			return nil, err
		}
		if err := ValidateSchema(raw); err != nil {
			return nil, oops.Code("CONFIG_INVALID").With("path", path).Wrap(err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, oops.Code("CONFIG_ENV_FAILED").Wrap(err)
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_UNMARSHAL_FAILED").Wrap(err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks semantic constraints the schema cannot express.
func (c *Config) Validate() error {
	if c.Redis.TTLMinutes < 1 {
		return oops.Code("CONFIG_INVALID").Errorf("redis.ttl_minutes must be at least 1, got %d", c.Redis.TTLMinutes)
	}
	switch c.Auth.Hasher {
	case HasherSHA256, HasherArgon2id:
	default:
		return oops.Code("CONFIG_INVALID").Errorf("auth.hasher must be %q or %q, got %q", HasherSHA256, HasherArgon2id, c.Auth.Hasher)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return oops.Code("CONFIG_INVALID").Errorf("log.format must be \"text\" or \"json\", got %q", c.Log.Format)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return oops.Code("CONFIG_INVALID").Errorf("log.level must be debug, info, warn, or error, got %q", c.Log.Level)
	}
	return nil
}
