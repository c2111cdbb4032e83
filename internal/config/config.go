// Package config loads server settings from flags and KILLER_* environment
// variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable
const EnvPrefix = "KILLER"

// Storage backends
const (
	StorageMemory = "memory"
	StorageRedis  = "redis"
	StorageSQLite = "sqlite"
)

// Config holds server settings
type Config struct {
	Bind    string
	Port    int
	BaseURL string

	Storage    string
	RedisURL   string
	SQLitePath string

	AMQPURL   string
	AMQPQueue string

	LogLevel        string
	BcryptCost      int
	ShutdownTimeout time.Duration
}

// AddFlags registers server flags on fs, backed by cfg
func AddFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.Bind, "bind", "b", "0.0.0.0", "address to bind to (env: KILLER_BIND)")
	fs.IntVarP(&cfg.Port, "port", "p", 8080, "port to listen on (env: KILLER_PORT)")
	fs.StringVar(&cfg.BaseURL, "base-url", "", "public URL used in join links, defaults to http://localhost:<port> (env: KILLER_BASE_URL)")
	fs.StringVar(&cfg.Storage, "storage", StorageMemory, "storage backend: memory, redis or sqlite (env: KILLER_STORAGE)")
	fs.StringVar(&cfg.RedisURL, "redis-url", "redis://localhost:6379/0", "redis connection URL (env: KILLER_REDIS_URL)")
	fs.StringVar(&cfg.SQLitePath, "sqlite-path", "killer.db", "sqlite database file (env: KILLER_SQLITE_PATH)")
	fs.StringVar(&cfg.AMQPURL, "amqp-url", "", "publish finished games to this AMQP broker, disabled if empty (env: KILLER_AMQP_URL)")
	fs.StringVar(&cfg.AMQPQueue, "amqp-queue", "killer.results", "queue for finished game results (env: KILLER_AMQP_QUEUE)")
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "log level: debug, info, warn or error (env: KILLER_LOG_LEVEL)")
	fs.IntVar(&cfg.BcryptCost, "bcrypt-cost", 10, "bcrypt work factor for player PINs (env: KILLER_BCRYPT_COST)")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", 30*time.Second, "time allowed for graceful shutdown (env: KILLER_SHUTDOWN_TIMEOUT)")
}

// ApplyEnv fills every flag not set on the command line from its
// environment variable
func ApplyEnv(fs *pflag.FlagSet) error {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var errs []error
	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			if err := fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name))); err != nil {
				errs = append(errs, fmt.Errorf("%s_%s: %w", EnvPrefix, strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_")), err))
			}
		}
	})
	return errors.Join(errs...)
}

// Validate checks the settings and fills derived defaults
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	switch c.Storage {
	case StorageMemory:
	case StorageRedis:
		if c.RedisURL == "" {
			return errors.New("--redis-url is required with --storage=redis")
		}
	case StorageSQLite:
		if c.SQLitePath == "" {
			return errors.New("--sqlite-path is required with --storage=sqlite")
		}
	default:
		return fmt.Errorf("invalid storage %q: must be memory, redis or sqlite", c.Storage)
	}
	if c.BaseURL == "" {
		c.BaseURL = fmt.Sprintf("http://localhost:%d", c.Port)
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid base url: %q", c.BaseURL)
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("invalid bcrypt cost (must be between 4-31 inclusive): %d", c.BcryptCost)
	}
	return nil
}

// Level parses LogLevel
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	return level, nil
}

// Addr is the listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Bind, c.Port)
}
