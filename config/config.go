package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL" envDefault:"postgresql://postgres@localhost:5432/structura"`
	ServerPort  string `env:"SERVER_PORT" envDefault:"8080"`

	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
	LogJSON    bool   `env:"LOG_JSON" envDefault:"false"`
	DBLogLevel string `env:"DB_LOG_LEVEL" envDefault:"warn"`

	// Bounded retries for serialization failures and lock contention.
	TxMaxRetries uint64        `env:"TX_MAX_RETRIES" envDefault:"3"`
	TxRetryBase  time.Duration `env:"TX_RETRY_BASE" envDefault:"50ms"`

	BcryptCost int `env:"BCRYPT_COST" envDefault:"10"`

	// Formatted as "<limit>-<period>", e.g. "10-M" for ten attempts per minute.
	LoginRateLimit string `env:"LOGIN_RATE_LIMIT" envDefault:"10-M"`
	RedisURL       string `env:"REDIS_URL"`

	// Honor X-Forwarded-For and X-Real-IP. Only safe behind a trusted proxy.
	TrustProxy bool `env:"TRUST_PROXY" envDefault:"false"`

	SeedOwnerEmail    string `env:"SEED_OWNER_EMAIL"`
	SeedOwnerPassword string `env:"SEED_OWNER_PASSWORD"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	// A missing .env file is the normal case outside local development.
	_ = godotenv.Load()
	return Parse()
}

// Parse builds a Config from the process environment only.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
