// Package config loads service configuration from .env, the environment and defaults.
package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Assistant modes
const (
	AssistantOpenAI = "openai"
	AssistantEcho   = "echo"
)

// Store backends
const (
	BackendFile   = "file"
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// Config holds service configuration
type Config struct {
	Port string `mapstructure:"PORT"`
	Env  string `mapstructure:"APP_ENV"`

	OpenAIAPIKey          string        `mapstructure:"OPENAI_API_KEY"`
	OpenAIBaseURL         string        `mapstructure:"OPENAI_BASE_URL"`
	AssistantID           string        `mapstructure:"ASSISTANT_ID"`
	VectorStoreID         string        `mapstructure:"VECTOR_STORE_ID"`
	AssistantMode         string        `mapstructure:"ASSISTANT_MODE"`
	AssistantTimeout      time.Duration `mapstructure:"ASSISTANT_TIMEOUT"`
	AssistantPollInterval time.Duration `mapstructure:"ASSISTANT_POLL_INTERVAL"`

	CORSOrigins string `mapstructure:"CORS_ORIGINS"`

	StoreBackend   string        `mapstructure:"STORE_BACKEND"`
	UsersFile      string        `mapstructure:"USERS_FILE"`
	SQLitePath     string        `mapstructure:"SQLITE_PATH"`
	PasswordScheme string        `mapstructure:"PASSWORD_SCHEME"`
	BcryptCost     int           `mapstructure:"BCRYPT_COST"`
	SessionTTL     time.Duration `mapstructure:"SESSION_TTL"`

	CacheType     string `mapstructure:"CACHE_TYPE"`
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	RateLimitEnabled        bool          `mapstructure:"RATE_LIMIT_ENABLED"`
	RateLimitCapacity       int           `mapstructure:"RATE_LIMIT_CAPACITY"`
	RateLimitRefillInterval time.Duration `mapstructure:"RATE_LIMIT_REFILL_INTERVAL"`
	TrustedProxies          string        `mapstructure:"TRUSTED_PROXIES"`

	AMQPURL     string `mapstructure:"AMQP_URL"`
	EventsQueue string `mapstructure:"EVENTS_QUEUE"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8001")
	v.SetDefault("APP_ENV", "development")

	v.SetDefault("OPENAI_API_KEY", "")
	v.SetDefault("OPENAI_BASE_URL", "https://api.openai.com/v1")
	v.SetDefault("ASSISTANT_ID", "")
	v.SetDefault("VECTOR_STORE_ID", "")
	v.SetDefault("ASSISTANT_MODE", AssistantOpenAI)
	v.SetDefault("ASSISTANT_TIMEOUT", "60s")
	v.SetDefault("ASSISTANT_POLL_INTERVAL", "1s")

	v.SetDefault("CORS_ORIGINS", "http://localhost:3001,http://localhost:5173")

	v.SetDefault("STORE_BACKEND", BackendFile)
	v.SetDefault("USERS_FILE", "users.json")
	v.SetDefault("SQLITE_PATH", "./docchat.db")
	v.SetDefault("PASSWORD_SCHEME", "sha256")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("SESSION_TTL", "24h")

	v.SetDefault("CACHE_TYPE", "")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("RATE_LIMIT_ENABLED", false)
	v.SetDefault("RATE_LIMIT_CAPACITY", 20)
	v.SetDefault("RATE_LIMIT_REFILL_INTERVAL", "3s")
	v.SetDefault("TRUSTED_PROXIES", "")

	v.SetDefault("AMQP_URL", "")
	v.SetDefault("EVENTS_QUEUE", "docchat.events")
}

// Load reads .env (if present) and the environment on top of the defaults
func Load() (*Config, error) {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks required values and enumerations
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}

	switch c.AssistantMode {
	case AssistantOpenAI:
		if c.OpenAIAPIKey == "" {
			return errors.New("OPENAI_API_KEY is required")
		}
		if c.AssistantID == "" {
			return errors.New("ASSISTANT_ID is required")
		}
	case AssistantEcho:
	default:
		return fmt.Errorf("ASSISTANT_MODE must be %q or %q", AssistantOpenAI, AssistantEcho)
	}

	switch c.StoreBackend {
	case BackendFile:
		if c.UsersFile == "" {
			return errors.New("USERS_FILE is required for the file backend")
		}
	case BackendSQLite:
		if c.SQLitePath == "" {
			return errors.New("SQLITE_PATH is required for the sqlite backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	switch c.PasswordScheme {
	case "sha256", "bcrypt":
	default:
		return fmt.Errorf("unknown PASSWORD_SCHEME %q", c.PasswordScheme)
	}

	if c.SessionTTL <= 0 {
		return errors.New("SESSION_TTL must be positive")
	}
	if c.AssistantTimeout <= 0 || c.AssistantPollInterval <= 0 {
		return errors.New("ASSISTANT_TIMEOUT and ASSISTANT_POLL_INTERVAL must be positive")
	}
	if c.RateLimitEnabled && (c.RateLimitCapacity <= 0 || c.RateLimitRefillInterval <= 0) {
		return errors.New("RATE_LIMIT_CAPACITY and RATE_LIMIT_REFILL_INTERVAL must be positive")
	}
	for _, proxy := range c.TrustedProxyList() {
		if _, _, err := net.ParseCIDR(proxy); err != nil && net.ParseIP(proxy) == nil {
			return fmt.Errorf("TRUSTED_PROXIES entry %q is not an IP or CIDR", proxy)
		}
	}
	return nil
}

// AllowedOrigins splits CORS_ORIGINS
func (c *Config) AllowedOrigins() []string {
	return splitList(c.CORSOrigins)
}

// TrustedProxyList splits TRUSTED_PROXIES
func (c *Config) TrustedProxyList() []string {
	return splitList(c.TrustedProxies)
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// AssistantConfigured reports whether the upstream assistant is identified
func (c *Config) AssistantConfigured() bool {
	return c.AssistantID != ""
}

// VectorStoreConfigured reports whether the document store is identified
func (c *Config) VectorStoreConfigured() bool {
	return c.VectorStoreID != ""
}
