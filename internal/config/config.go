package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
)

// CacheBackend selects the remote cache tier implementation
type CacheBackend string

const (
	CacheBackendRedis  CacheBackend = "redis"
	CacheBackendBadger CacheBackend = "badger"
	CacheBackendNone   CacheBackend = "none"
)

// Config holds the engine configuration, read from the environment
type Config struct {
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`

	// Webhook authentication. An empty secret disables verification (development only).
	WebhookSecret   string `env:"WEBHOOK_SECRET"`
	SignatureHeader string `env:"WEBHOOK_SIGNATURE_HEADER" envDefault:"X-Signature"`
	MaxBodyBytes    int64  `env:"WEBHOOK_MAX_BODY_BYTES" envDefault:"1048576"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Cache
	CacheBackend   CacheBackend  `env:"CACHE_BACKEND" envDefault:"redis"`
	RedisURL       string        `env:"REDIS_URL" envDefault:"localhost:6379"`
	RedisPassword  string        `env:"REDIS_PASSWORD"`
	RedisDB        int           `env:"REDIS_DB" envDefault:"0"`
	BadgerPath     string        `env:"BADGER_PATH" envDefault:"~/.callengine/cache"`
	LocalCacheSize int64         `env:"LOCAL_CACHE_SIZE" envDefault:"500"`
	LocalCacheTTL  time.Duration `env:"LOCAL_CACHE_TTL" envDefault:"5m"`
	WarmupTTL      time.Duration `env:"WARMUP_TTL" envDefault:"24h"`

	// Datastore
	DatabasePath string `env:"DATABASE_PATH" envDefault:"~/.callengine/callengine.db"`

	// External search fallback. Empty URL disables the live search tier.
	SearchURL    string  `env:"SEARCH_URL"`
	SearchAPIKey string  `env:"SEARCH_API_KEY"`
	SearchRPS    float64 `env:"SEARCH_RPS" envDefault:"2"`
	SearchBurst  int     `env:"SEARCH_BURST" envDefault:"4"`

	// Alert publishing. Empty URL logs alerts instead of publishing them.
	AMQPURL      string `env:"AMQP_URL"`
	AMQPExchange string `env:"AMQP_EXCHANGE" envDefault:"callengine.events"`

	// Cost accounting
	Currency      string  `env:"COST_CURRENCY" envDefault:"EUR"`
	CostThreshold float64 `env:"COST_ALERT_THRESHOLD" envDefault:"0.50"`
	ReportCron    string  `env:"COST_REPORT_CRON" envDefault:"5 0 * * *"`

	// Telephony and customer resolution
	TransferNumber     string `env:"TRANSFER_NUMBER" envDefault:"+35722000000"`
	DefaultCountryCode string `env:"DEFAULT_COUNTRY_CODE" envDefault:"357"`
	DefaultLanguage    string `env:"DEFAULT_LANGUAGE" envDefault:"en"`

	// Business information served by get_business_info and the cache warmup
	BusinessName    string `env:"BUSINESS_NAME" envDefault:"Our store"`
	BusinessAddress string `env:"BUSINESS_ADDRESS" envDefault:"1 Makariou Avenue, Nicosia"`
	BusinessPhone   string `env:"BUSINESS_PHONE" envDefault:"+35722000000"`
	BusinessHours   string `env:"BUSINESS_HOURS" envDefault:"09:00-19:00"`
	BusinessDays    string `env:"BUSINESS_DAYS" envDefault:"Mon-Sat"`
}

// Load parses the environment into a Config and validates it
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that env parsing cannot
func (c *Config) Validate() error {
	switch c.CacheBackend {
	case CacheBackendRedis, CacheBackendBadger, CacheBackendNone:
	default:
		return fmt.Errorf("invalid CACHE_BACKEND %q", c.CacheBackend)
	}
	if c.LocalCacheSize <= 0 {
		return fmt.Errorf("LOCAL_CACHE_SIZE must be positive, got %d", c.LocalCacheSize)
	}
	if c.CostThreshold < 0 {
		return fmt.Errorf("COST_ALERT_THRESHOLD must not be negative")
	}
	if c.SearchRPS <= 0 {
		return fmt.Errorf("SEARCH_RPS must be positive")
	}
	return nil
}
