// Package config loads application configuration from defaults, an
// optional YAML file and environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"

	"github.com/Sternrassler/anilist-browser/pkg/client"
	"github.com/Sternrassler/anilist-browser/pkg/logging"
	"github.com/Sternrassler/anilist-browser/pkg/media"
	"github.com/Sternrassler/anilist-browser/pkg/validation"
)

// Profile storage backends.
const (
	ProfileStorageCookie = "cookie"
	ProfileStorageRedis  = "redis"
	ProfileStorageMemory = "memory"
)

// Config is the application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	AniList  AniListConfig  `yaml:"anilist"`
	Redis    RedisConfig    `yaml:"redis"`
	Profile  ProfileConfig  `yaml:"profile"`
	Logging  LoggingConfig  `yaml:"logging"`
	Prefetch PrefetchConfig `yaml:"prefetch"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port            string        `yaml:"port" validate:"required,numeric"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// RequestTimeout bounds one page request including retries.
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// AniListConfig configures the catalog client.
type AniListConfig struct {
	Endpoint          string        `yaml:"endpoint" validate:"required,http_url"`
	UserAgent         string        `yaml:"user_agent" validate:"required"`
	PerPage           int           `yaml:"per_page" validate:"min=1,max=50"`
	RequestsPerMinute int           `yaml:"requests_per_minute" validate:"min=1"`
	AttemptTimeout    time.Duration `yaml:"attempt_timeout"`
	CacheTTL          time.Duration `yaml:"cache_ttl"`
	MaxAttempts       int           `yaml:"max_attempts" validate:"min=1,max=10"`
}

// RedisConfig configures the optional Redis backend.
type RedisConfig struct {
	// URL is either redis://... or host:port. Empty disables Redis.
	URL string `yaml:"url"`
}

// ProfileConfig configures where visitor profiles are kept.
type ProfileConfig struct {
	Storage string        `yaml:"storage" validate:"oneof=cookie redis memory"`
	TTL     time.Duration `yaml:"ttl"`
}

// LoggingConfig configures zerolog output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// PrefetchConfig configures cache warming.
type PrefetchConfig struct {
	Concurrency int `yaml:"concurrency" validate:"min=1,max=10"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RequestTimeout:  90 * time.Second,
		},
		AniList: AniListConfig{
			Endpoint:          client.DefaultEndpoint,
			UserAgent:         "anilist-browser/0.1.0",
			PerPage:           media.DefaultPerPage,
			RequestsPerMinute: 90,
			AttemptTimeout:    10 * time.Second,
			CacheTTL:          5 * time.Minute,
			MaxAttempts:       3,
		},
		Profile: ProfileConfig{
			Storage: ProfileStorageCookie,
			TTL:     30 * 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level: string(logging.LevelInfo),
		},
		Prefetch: PrefetchConfig{
			Concurrency: 2,
		},
	}
}

// Load builds the configuration. An empty path or a missing file leaves
// the defaults in place; environment variables always apply last.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("ANILIST_ENDPOINT"); v != "" {
		c.AniList.Endpoint = v
	}
	if v := os.Getenv("USER_AGENT"); v != "" {
		c.AniList.UserAgent = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Redis.URL = v
	}
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("PROFILE_STORAGE"); v != "" {
		c.Profile.Storage = v
	}
	if v := os.Getenv("PER_PAGE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PER_PAGE %q: %w", v, err)
		}
		c.AniList.PerPage = n
	}
	if v := os.Getenv("CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid CACHE_TTL %q: %w", v, err)
		}
		c.AniList.CacheTTL = d
	}
	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validation.New().Validate(c); err != nil {
		return err
	}
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	if c.AniList.AttemptTimeout <= 0 {
		return fmt.Errorf("attempt_timeout must be > 0 (got %s)", c.AniList.AttemptTimeout)
	}
	if c.AniList.CacheTTL < 0 {
		return fmt.Errorf("cache_ttl must be >= 0 (got %s)", c.AniList.CacheTTL)
	}
	if c.Profile.Storage == ProfileStorageRedis && c.Redis.URL == "" {
		return fmt.Errorf("profile storage %q requires redis.url", ProfileStorageRedis)
	}
	return nil
}

// RedisOptions parses the Redis URL. It returns nil when Redis is not
// configured.
func (c *Config) RedisOptions() (*redis.Options, error) {
	if c.Redis.URL == "" {
		return nil, nil
	}
	if strings.Contains(c.Redis.URL, "://") {
		opts, err := redis.ParseURL(c.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		return opts, nil
	}
	return &redis.Options{Addr: c.Redis.URL}, nil
}

// ClientConfig maps the catalog settings onto a client configuration.
func (c *Config) ClientConfig(redisClient *redis.Client) client.Config {
	cfg := client.DefaultConfig(redisClient, c.AniList.UserAgent)
	cfg.Endpoint = c.AniList.Endpoint
	cfg.RequestsPerMinute = c.AniList.RequestsPerMinute
	cfg.AttemptTimeout = c.AniList.AttemptTimeout
	cfg.CacheTTL = c.AniList.CacheTTL

	policy := client.DefaultRetryPolicy()
	for class, rc := range policy {
		rc.MaxAttempts = c.AniList.MaxAttempts
		policy[class] = rc
	}
	cfg.Retry = policy
	return cfg
}

// LogConfig maps the logging settings onto a logging configuration.
func (c *Config) LogConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(c.Logging.Level)
	cfg.Pretty = c.Logging.Pretty
	return cfg
}
