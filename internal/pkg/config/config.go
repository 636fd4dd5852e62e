package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	LogLevel           string        `env:"LOG_LEVEL" envDefault:"info"`
	HTTPAddr           string        `env:"HTTP_ADDR" envDefault:":8080"`
	AdminAddr          string        `env:"ADMIN_ADDR" envDefault:":9091"`
	SeedFile           string        `env:"SEED_FILE"` // empty: built-in demo deals
	RateLimitRPS       float64       `env:"RATE_LIMIT_RPS" envDefault:"50"`
	RateLimitBurst     int           `env:"RATE_LIMIT_BURST" envDefault:"100"`
	CORSAllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	SSEClientBuffer    int           `env:"SSE_CLIENT_BUFFER" envDefault:"16"`
	ActivityFeedSize   int           `env:"ACTIVITY_FEED_SIZE" envDefault:"50"`
	PIIRedactionFields []string      `env:"PII_REDACTION_FIELDS" envSeparator:"," envDefault:"email,phone"`
	RedisURL           string        `env:"REDIS_URL"`
	ToastChannel       string        `env:"TOAST_CHANNEL" envDefault:"dealboard:toasts"`
	ChangeStream       string        `env:"CHANGE_STREAM" envDefault:"dealboard:changes"`
	ChangeStreamMaxLen int64         `env:"CHANGE_STREAM_MAXLEN" envDefault:"1000"`
	KafkaBrokers       []string      `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic         string        `env:"KAFKA_TOPIC" envDefault:"dealboard.changes"`
	ShutdownTimeout    time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.RateLimitRPS <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be positive, got %v", c.RateLimitRPS)
	}
	if c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_BURST must be positive, got %d", c.RateLimitBurst)
	}
	if c.ActivityFeedSize <= 0 {
		return fmt.Errorf("ACTIVITY_FEED_SIZE must be positive, got %d", c.ActivityFeedSize)
	}
	return nil
}
