// Package config loads userlist configuration from a YAML file, USERLIST_*
// environment variables and command line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Sternrassler/userlist/internal/user"
	"github.com/Sternrassler/userlist/pkg/client"
	"github.com/Sternrassler/userlist/pkg/logging"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. USERLIST_LISTING_BASE_URL.
const EnvPrefix = "USERLIST"

// Config holds all application configuration.
type Config struct {
	Listing ListingConfig `mapstructure:"listing"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Export  ExportConfig  `mapstructure:"export"`
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ListingConfig describes the remote listing endpoint.
type ListingConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	Resource  string        `mapstructure:"resource"`
	PageSize  int           `mapstructure:"page_size"`
	Sort      string        `mapstructure:"sort"`
	UserAgent string        `mapstructure:"user_agent"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Threshold int           `mapstructure:"threshold"` // scroll distance from the bottom that triggers a load
}

// RedisConfig enables the page cache and rate limit gate.
type RedisConfig struct {
	Addr      string        `mapstructure:"addr"` // empty disables Redis
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	RateLimit bool          `mapstructure:"rate_limit"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`
}

// ExportConfig tunes the batch export.
type ExportConfig struct {
	PageSize    int           `mapstructure:"page_size"`
	Concurrency int           `mapstructure:"concurrency"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// ServerConfig configures the dev listing server.
// Fixture is a YAML file of users; when empty, Users entries are generated.
// RateLimit is requests per minute, 0 disables the headers. Latency is added to
// every page response.
type ServerConfig struct {
	Addr      string        `mapstructure:"addr"`
	Fixture   string        `mapstructure:"fixture"`
	Users     int           `mapstructure:"users"`
	RateLimit int           `mapstructure:"rate_limit"`
	Latency   time.Duration `mapstructure:"latency"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	File   string `mapstructure:"file"`
	Pretty bool   `mapstructure:"pretty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listing: ListingConfig{
			BaseURL:   "http://localhost:8080",
			Resource:  "users",
			PageSize:  10,
			UserAgent: "userlist/1.0",
			Timeout:   30 * time.Second,
			Threshold: 20,
		},
		Redis: RedisConfig{
			CacheTTL: 30 * time.Second,
		},
		Export: ExportConfig{
			PageSize:    50,
			Concurrency: 4,
			Timeout:     15 * time.Second,
		},
		Server: ServerConfig{
			Addr:      ":8080",
			Users:     250,
			RateLimit: 600,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  defaultLogPath(),
		},
	}
}

// defaultLogPath returns where the interactive browser writes its log.
func defaultLogPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "userlist.log"
	}
	return filepath.Join(home, ".local", "share", "userlist", "userlist.log")
}

// defaultConfigPath returns the per-user config directory.
func defaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "userlist")
}

// New returns a viper instance with defaults, search paths and env overrides set.
func New() *viper.Viper {
	v := viper.New()

	def := DefaultConfig()
	v.SetDefault("listing.base_url", def.Listing.BaseURL)
	v.SetDefault("listing.resource", def.Listing.Resource)
	v.SetDefault("listing.page_size", def.Listing.PageSize)
	v.SetDefault("listing.sort", def.Listing.Sort)
	v.SetDefault("listing.user_agent", def.Listing.UserAgent)
	v.SetDefault("listing.timeout", def.Listing.Timeout)
	v.SetDefault("listing.threshold", def.Listing.Threshold)
	v.SetDefault("redis.addr", def.Redis.Addr)
	v.SetDefault("redis.password", def.Redis.Password)
	v.SetDefault("redis.db", def.Redis.DB)
	v.SetDefault("redis.rate_limit", def.Redis.RateLimit)
	v.SetDefault("redis.cache_ttl", def.Redis.CacheTTL)
	v.SetDefault("export.page_size", def.Export.PageSize)
	v.SetDefault("export.concurrency", def.Export.Concurrency)
	v.SetDefault("export.timeout", def.Export.Timeout)
	v.SetDefault("server.addr", def.Server.Addr)
	v.SetDefault("server.fixture", def.Server.Fixture)
	v.SetDefault("server.users", def.Server.Users)
	v.SetDefault("server.rate_limit", def.Server.RateLimit)
	v.SetDefault("server.latency", def.Server.Latency)
	v.SetDefault("logging.level", def.Logging.Level)
	v.SetDefault("logging.file", def.Logging.File)
	v.SetDefault("logging.pretty", def.Logging.Pretty)

	v.SetConfigName("userlist")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath(defaultConfigPath())

	// Environment variable overrides
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// Load reads the config file (path, or userlist.yaml from the search paths)
// into a Config. A missing file in the search paths is not an error; a missing
// explicit path is.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fields every command depends on.
func (c *Config) Validate() error {
	var errs []error

	if c.Listing.BaseURL == "" {
		errs = append(errs, errors.New("listing.base_url is required"))
	}
	if c.Listing.Resource == "" {
		errs = append(errs, errors.New("listing.resource is required"))
	}
	if c.Listing.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("listing.page_size must be > 0 (got %d)", c.Listing.PageSize))
	}
	if c.Export.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("export.page_size must be > 0 (got %d)", c.Export.PageSize))
	}
	if c.Export.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("export.concurrency must be > 0 (got %d)", c.Export.Concurrency))
	}
	if c.Redis.RateLimit && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.rate_limit requires redis.addr"))
	}
	if c.Server.Users < 0 {
		errs = append(errs, fmt.Errorf("server.users must be >= 0 (got %d)", c.Server.Users))
	}
	if !logging.ValidLevel(c.Logging.Level) {
		errs = append(errs, fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
	}

	return errors.Join(errs...)
}

// SortKnown reports whether the configured sort is one the dev server understands.
// Other keys are still forwarded verbatim.
func (c *Config) SortKnown() bool {
	return user.ValidSortKey(c.Listing.Sort)
}

// NewRedisClient returns a client for the configured Redis, or nil when no address is set.
func (c *Config) NewRedisClient() *redis.Client {
	if c.Redis.Addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     c.Redis.Addr,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
	})
}

// ClientConfig builds the listing client configuration. rdb may be nil.
func (c *Config) ClientConfig(rdb *redis.Client) client.Config {
	cfg := client.DefaultConfig(c.Listing.BaseURL, c.Listing.UserAgent)
	cfg.Timeout = c.Listing.Timeout
	cfg.Redis = rdb
	cfg.RateLimit = rdb != nil && c.Redis.RateLimit
	if c.Redis.CacheTTL > 0 {
		cfg.CacheTTL = c.Redis.CacheTTL
	}
	return cfg
}
