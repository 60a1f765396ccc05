package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
)

const defaultAddr = "0.0.0.0:8080"

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config holds the complete application configuration, loadable from
// environment variables (STOREFRONT_ prefix), flags, or YAML config files.
type Config struct {
	Addr      string `default:"0.0.0.0:8080" usage:"API server listen address"`
	Storage   StorageConfig
	Operator  OperatorConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Graceful  GracefulConfig
}

// StorageConfig selects the key-value backend holding the catalog and cart.
type StorageConfig struct {
	Backend     string `default:"memory" usage:"Storage backend: memory, file, redis or postgres"`
	Prefix      string `default:"storefront/" usage:"Key prefix of the stored documents"`
	Dir         string `default:"data" usage:"Directory of the file backend"`
	RedisAddr   string `usage:"Redis address or redis:// URL (STOREFRONT_STORAGE_REDIS_ADDR or REDIS_URL)" flag:"redis-addr"`
	RedisDB     int    `default:"0" usage:"Redis database number" flag:"redis-db"`
	DatabaseURL string `usage:"PostgreSQL connection URL (STOREFRONT_STORAGE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Quota       int64  `default:"0" usage:"Byte quota of the memory and postgres backends, 0 for none"`
}

// OperatorConfig guards catalog mutations. Leaving KeyHashes empty disables
// the guard.
type OperatorConfig struct {
	Pepper    string   `usage:"HMAC pepper for operator key hashing"`
	KeyHashes []string `usage:"Hex HMAC-SHA256 hashes of accepted operator keys" flag:"operator-key-hashes"`
}

// RateLimitConfig controls the per-client token bucket rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Burst size and requests refilled per window, 0 disables"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig reads a local .env file when present, then loads configuration
// from environment variables, YAML config files and flags.
func LoadConfig() (*Config, error) {
	return loadWithDotEnv(false)
}

// LoadConfigWithoutFlags is LoadConfig for tools that parse their own flags.
func LoadConfigWithoutFlags() (*Config, error) {
	return loadWithDotEnv(true)
}

func loadWithDotEnv(skipFlags bool) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrap(err, "load .env")
	}
	return loadConfig(aconfig.Config{
		EnvPrefix: "STOREFRONT",
		SkipFlags: skipFlags,
		Files:     []string{"config.yaml", "/etc/storefront/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
}

func loadConfig(ac aconfig.Config) (*Config, error) {
	var cfg Config
	if err := aconfig.LoaderFor(&cfg, ac).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's STOREFRONT_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.Storage.DatabaseURL == "" {
		c.Storage.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.Storage.RedisAddr == "" {
		c.Storage.RedisAddr = os.Getenv("REDIS_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}

// Validate checks the settings the selected backend needs.
func (c *Config) Validate() error {
	s := c.Storage
	switch s.Backend {
	case BackendMemory:
	case BackendFile:
		if s.Dir == "" {
			return errors.New("file backend needs a directory: set STOREFRONT_STORAGE_DIR")
		}
	case BackendRedis:
		if s.RedisAddr == "" {
			return errors.New("redis backend needs an address: set STOREFRONT_STORAGE_REDIS_ADDR or REDIS_URL")
		}
	case BackendPostgres:
		if s.DatabaseURL == "" {
			return errors.New("postgres backend needs a database URL: set STOREFRONT_STORAGE_DATABASE_URL or DATABASE_URL")
		}
	default:
		return errors.Errorf("unknown storage backend %q", s.Backend)
	}
	if s.Quota < 0 {
		return errors.New("storage quota must not be negative")
	}
	if len(c.Operator.KeyHashes) > 0 && c.Operator.Pepper == "" {
		return errors.New("operator key hashes need a pepper: set STOREFRONT_OPERATOR_PEPPER")
	}
	return nil
}
