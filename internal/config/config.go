package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
	Schedule struct {
		PollCron   string `yaml:"poll_cron"`
		RunOnStart bool   `yaml:"run_on_start"`
	} `yaml:"schedule"`
	Quote struct {
		BaseURL    string        `yaml:"base_url"`
		Timeout    time.Duration `yaml:"timeout"`
		RatePerSec float64       `yaml:"rate_per_sec"`
		Proxy      string        `yaml:"proxy"`
	} `yaml:"quote"`
	Cache struct {
		RedisURL string        `yaml:"redis_url"`
		TTL      time.Duration `yaml:"ttl"`
	} `yaml:"cache"`
	Store struct {
		Driver      string `yaml:"driver"`
		SQLitePath  string `yaml:"sqlite_path"`
		PostgresDSN string `yaml:"postgres_dsn"`
	} `yaml:"store"`
	Queue struct {
		Workers         int           `yaml:"workers"`
		Size            int           `yaml:"size"`
		FetchAttempts   int           `yaml:"fetch_attempts"`
		FetchBackoff    time.Duration `yaml:"fetch_backoff"`
		FetchMaxBackoff time.Duration `yaml:"fetch_max_backoff"`
	} `yaml:"queue"`
	Notify struct {
		WebhookTimeout    time.Duration `yaml:"webhook_timeout"`
		// WebhookMaxRetries caps channel_config.retries. Negative disables retries.
		WebhookMaxRetries int           `yaml:"webhook_max_retries"`
	} `yaml:"notify"`
	Ops struct {
		Addr string `yaml:"addr"`
	} `yaml:"ops"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
// A missing file is not an error; defaults and environment fill the gaps.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("POLL_CRON"); v != "" {
		c.Schedule.PollCron = v
	}
	if v := os.Getenv("RUN_ON_START"); v != "" {
		c.Schedule.RunOnStart = v == "true" || v == "1"
	}
	if v := os.Getenv("QUOTE_BASE_URL"); v != "" {
		c.Quote.BaseURL = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		c.Quote.Proxy = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Cache.RedisURL = v
	}
	if v := os.Getenv("STORE_DRIVER"); v != "" {
		c.Store.Driver = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.Store.SQLitePath = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Store.PostgresDSN = v
	}
	if v := os.Getenv("QUEUE_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse QUEUE_WORKERS: %w", err)
		}
		c.Queue.Workers = n
	}
	if v := os.Getenv("OPS_ADDR"); v != "" {
		c.Ops.Addr = v
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Schedule.PollCron == "" {
		c.Schedule.PollCron = "0 * * * * *"
	}
	if c.Quote.BaseURL == "" {
		c.Quote.BaseURL = "https://api.binance.com"
	}
	if c.Quote.Timeout == 0 {
		c.Quote.Timeout = 10 * time.Second
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = 120 * time.Second
	}
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	if c.Store.Driver == "" {
		c.Store.Driver = "sqlite"
	}
	if c.Store.SQLitePath == "" {
		c.Store.SQLitePath = "data/alerts.db"
	}
	if c.Queue.Workers == 0 {
		c.Queue.Workers = 8
	}
	if c.Queue.Size == 0 {
		c.Queue.Size = 1024
	}
	if c.Queue.FetchAttempts == 0 {
		c.Queue.FetchAttempts = 3
	}
	if c.Queue.FetchBackoff == 0 {
		c.Queue.FetchBackoff = time.Second
	}
	if c.Queue.FetchMaxBackoff == 0 {
		c.Queue.FetchMaxBackoff = 30 * time.Second
	}
	if c.Notify.WebhookTimeout == 0 {
		c.Notify.WebhookTimeout = 5 * time.Second
	}
	if c.Notify.WebhookMaxRetries == 0 {
		c.Notify.WebhookMaxRetries = 3
	}
	if c.Ops.Addr == "" {
		c.Ops.Addr = ":9090"
	}
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "sqlite":
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("store.sqlite_path is required for the sqlite driver")
		}
	case "postgres":
		if c.Store.PostgresDSN == "" {
			return fmt.Errorf("store.postgres_dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("store.driver must be sqlite or postgres, got %q", c.Store.Driver)
	}
	if c.Quote.Timeout <= 0 {
		return fmt.Errorf("quote.timeout must be positive")
	}
	if c.Quote.RatePerSec < 0 {
		return fmt.Errorf("quote.rate_per_sec must not be negative")
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive")
	}
	if c.Queue.Workers <= 0 || c.Queue.Size <= 0 {
		return fmt.Errorf("queue.workers and queue.size must be positive")
	}
	if c.Queue.FetchAttempts < 1 {
		return fmt.Errorf("queue.fetch_attempts must be at least 1")
	}
	return nil
}
