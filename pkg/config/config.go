// Package config loads the catalog proxy configuration from the environment,
// optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/palermolight/catalog-client/pkg/cache"
	"github.com/palermolight/catalog-client/pkg/catalog"
	"github.com/palermolight/catalog-client/pkg/client"
	"github.com/palermolight/catalog-client/pkg/logging"
	"github.com/palermolight/catalog-client/pkg/pagination"
)

// Environment variable names.
const (
	EnvAPIURL           = "CATALOG_API_URL"
	EnvPort             = "PORT"
	EnvRedisURL         = "REDIS_URL"
	EnvCacheTTL         = "CACHE_TTL"
	EnvPageSize         = "PAGE_SIZE"
	EnvMaxPages         = "MAX_PAGES"
	EnvPageDelay        = "PAGE_DELAY"
	EnvHTTPTimeout      = "HTTP_TIMEOUT"
	EnvRetryMaxAttempts = "RETRY_MAX_ATTEMPTS"
	EnvLogLevel         = "LOG_LEVEL"
	EnvLogPretty        = "LOG_PRETTY"
	EnvUserAgent        = "USER_AGENT"
)

// Config is the proxy configuration.
type Config struct {
	APIURL    string
	Port      string
	UserAgent string

	// RedisURL selects the Redis cache and basket store. Empty keeps both
	// in memory. Accepts redis:// URLs or a bare host:port.
	RedisURL string

	CacheTTL    time.Duration
	HTTPTimeout time.Duration

	PageSize  int
	MaxPages  int
	PageDelay time.Duration

	// RetryMaxAttempts of 1 disables retries.
	RetryMaxAttempts int

	LogLevel  logging.LogLevel
	LogPretty bool
}

// Load reads the given .env files (default ".env", silently skipped when
// absent) and then builds the Config from the environment. Variables already
// set in the environment take precedence over the files.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load .env: %w", err)
		}
	} else if err := godotenv.Load(files...); err != nil {
		return Config{}, fmt.Errorf("load env files: %w", err)
	}

	return FromEnv()
}

// FromEnv builds the Config from the process environment only.
func FromEnv() (Config, error) {
	cfg := Config{
		APIURL:    strings.TrimSpace(os.Getenv(EnvAPIURL)),
		Port:      getEnv(EnvPort, "8080"),
		UserAgent: getEnv(EnvUserAgent, "catalog-client/1.0"),
		RedisURL:  strings.TrimSpace(os.Getenv(EnvRedisURL)),
		LogLevel:  logging.LogLevel(getEnv(EnvLogLevel, string(logging.LevelInfo))),
	}

	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	var err error
	cfg.CacheTTL, err = getDuration(EnvCacheTTL, cache.DefaultTTL)
	collect(err)
	cfg.HTTPTimeout, err = getDuration(EnvHTTPTimeout, 30*time.Second)
	collect(err)
	cfg.PageDelay, err = getDuration(EnvPageDelay, pagination.DefaultConfig().Delay)
	collect(err)
	cfg.PageSize, err = getInt(EnvPageSize, pagination.DefaultConfig().PageSize)
	collect(err)
	cfg.MaxPages, err = getInt(EnvMaxPages, pagination.DefaultConfig().MaxPages)
	collect(err)
	cfg.RetryMaxAttempts, err = getInt(EnvRetryMaxAttempts, 1)
	collect(err)
	cfg.LogPretty, err = getBool(EnvLogPretty, false)
	collect(err)

	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration values.
func (c Config) Validate() error {
	var errs []error

	if c.APIURL == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvAPIURL))
	} else if u, err := url.Parse(c.APIURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("%s must be an http(s) URL (got %q)", EnvAPIURL, c.APIURL))
	}
	if p, err := strconv.Atoi(c.Port); err != nil || p < 1 || p > 65535 {
		errs = append(errs, fmt.Errorf("%s must be a port number (got %q)", EnvPort, c.Port))
	}
	if c.CacheTTL < 0 {
		errs = append(errs, fmt.Errorf("%s must be >= 0 (got %s)", EnvCacheTTL, c.CacheTTL))
	}
	if c.HTTPTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be > 0 (got %s)", EnvHTTPTimeout, c.HTTPTimeout))
	}
	if c.PageDelay < 0 {
		errs = append(errs, fmt.Errorf("%s must be >= 0 (got %s)", EnvPageDelay, c.PageDelay))
	}
	if c.PageSize < 1 {
		errs = append(errs, fmt.Errorf("%s must be >= 1 (got %d)", EnvPageSize, c.PageSize))
	}
	if c.MaxPages < 1 {
		errs = append(errs, fmt.Errorf("%s must be >= 1 (got %d)", EnvMaxPages, c.MaxPages))
	}
	if c.RetryMaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("%s must be >= 1 (got %d)", EnvRetryMaxAttempts, c.RetryMaxAttempts))
	}
	if _, err := logging.ParseLevel(string(c.LogLevel)); err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", EnvLogLevel, err))
	}
	if c.RedisURL != "" {
		if _, err := c.RedisOptions(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// RedisOptions returns the go-redis options for RedisURL, or nil when Redis
// is not configured.
func (c Config) RedisOptions() (*redis.Options, error) {
	if c.RedisURL == "" {
		return nil, nil
	}
	if strings.Contains(c.RedisURL, "://") {
		opts, err := redis.ParseURL(c.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvRedisURL, err)
		}
		return opts, nil
	}
	return &redis.Options{Addr: c.RedisURL}, nil
}

// ClientConfig returns the catalog API client configuration. The cache store
// is left for the caller to set.
func (c Config) ClientConfig() client.Config {
	cfg := client.DefaultConfig(c.APIURL)
	cfg.CacheTTL = c.CacheTTL
	cfg.Timeout = c.HTTPTimeout
	cfg.UserAgent = c.UserAgent
	return cfg
}

// CatalogConfig returns the product query service configuration.
func (c Config) CatalogConfig() catalog.Config {
	cfg := catalog.DefaultConfig()
	cfg.Pagination = pagination.Config{
		PageSize: c.PageSize,
		MaxPages: c.MaxPages,
		Delay:    c.PageDelay,
	}
	return cfg
}

// RetryConfig returns the retry policy for upstream calls made by the proxy.
func (c Config) RetryConfig() client.RetryConfig {
	cfg := client.DefaultRetryConfig()
	cfg.MaxAttempts = c.RetryMaxAttempts
	return cfg
}

// LoggingConfig returns the logger configuration.
func (c Config) LoggingConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = c.LogLevel
	cfg.Pretty = c.LogPretty
	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, value)
	}
	return d, nil
}

func getInt(key string, defaultValue int) (int, error) {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, value)
	}
	return n, nil
}

func getBool(key string, defaultValue bool) (bool, error) {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s: invalid boolean %q", key, value)
	}
	return b, nil
}
