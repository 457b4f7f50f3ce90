package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Session storage backends.
const (
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

type Config struct {
	Port     string `env:"PORT,      default=8080"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	API              APIConfig
	Session          SessionConfig
	Mongo            MongoConfig
	Redis            RedisConfig
	DashboardRefresh time.Duration `env:"DASHBOARD_REFRESH, default=2m"`
}

type APIConfig struct {
	BaseURL          string        `env:"API_BASE_URL,      default=https://laundrypro-backend-production.up.railway.app/api"`
	Timeout          time.Duration `env:"API_TIMEOUT,       default=30s"`
	BootstrapTimeout time.Duration `env:"BOOTSTRAP_TIMEOUT, default=15s"`
}

type SessionConfig struct {
	Backend string        `env:"SESSION_BACKEND, default=file"`
	Dir     string        `env:"SESSION_DIR"`
	Secret  string        `env:"SESSION_SECRET"`
	TTL     time.Duration `env:"SESSION_TTL,     default=0s"`
}

// MongoConfig enables the auth audit trail when URI is set.
type MongoConfig struct {
	URI      string `env:"MONGO_URI"`
	Database string `env:"MONGO_DB, default=laundrypro_portal"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR,     default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,       default=0"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load() *Config {
	cfg, err := LoadFrom(context.Background(), envconfig.OsLookuper())
	if err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return cfg
}

// LoadFrom reads configuration through l and validates it.
func LoadFrom(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, err
	}

	cfg.Session.Backend = strings.ToLower(strings.TrimSpace(cfg.Session.Backend))
	switch cfg.Session.Backend {
	case BackendFile, BackendRedis, BackendMemory:
	default:
		return nil, fmt.Errorf("SESSION_BACKEND must be one of file, redis, memory; got %q", cfg.Session.Backend)
	}
	if cfg.Session.Dir == "" {
		cfg.Session.Dir = defaultSessionDir()
	}
	return &cfg, nil
}

// Development reports whether human-friendly output is wanted.
func (c *Config) Development() bool {
	return c.Env == "development" || c.Env == "dev" || c.Env == "local"
}

func defaultSessionDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "laundrypro")
	}
	return filepath.Join(os.TempDir(), "laundrypro")
}
