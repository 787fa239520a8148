package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	t.Setenv("QUEUE_WORKERS", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Schedule.PollCron != "0 * * * * *" {
		t.Errorf("poll cron = %q", cfg.Schedule.PollCron)
	}
	if cfg.Quote.Timeout != 10*time.Second {
		t.Errorf("quote timeout = %v", cfg.Quote.Timeout)
	}
	if cfg.Cache.TTL != 120*time.Second {
		t.Errorf("cache ttl = %v", cfg.Cache.TTL)
	}
	if cfg.Queue.FetchAttempts != 3 {
		t.Errorf("fetch attempts = %d", cfg.Queue.FetchAttempts)
	}
	if cfg.Notify.WebhookTimeout != 5*time.Second {
		t.Errorf("webhook timeout = %v", cfg.Notify.WebhookTimeout)
	}
	if cfg.Notify.WebhookMaxRetries != 3 {
		t.Errorf("webhook max retries = %d", cfg.Notify.WebhookMaxRetries)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLoadYAMLAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
log:
  level: debug
quote:
  base_url: http://quotes.local
  timeout: 3s
store:
  driver: Postgres
  postgres_dsn: host=db user=app
queue:
  workers: 2
`
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("QUOTE_BASE_URL", "http://override.local")
	t.Setenv("QUEUE_WORKERS", "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}
	if cfg.Quote.BaseURL != "http://override.local" {
		t.Errorf("base url = %q", cfg.Quote.BaseURL)
	}
	if cfg.Quote.Timeout != 3*time.Second {
		t.Errorf("timeout = %v", cfg.Quote.Timeout)
	}
	if cfg.Store.Driver != "postgres" {
		t.Errorf("driver = %q", cfg.Store.Driver)
	}
	if cfg.Queue.Workers != 2 {
		t.Errorf("workers = %d", cfg.Queue.Workers)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLoadRejectsBadEnv(t *testing.T) {
	t.Setenv("QUEUE_WORKERS", "many")
	if _, err := Load(filepath.Join(t.TempDir(), "none.yaml")); err == nil {
		t.Fatal("expected error for non-numeric QUEUE_WORKERS")
	}
}

func TestValidate(t *testing.T) {
	t.Setenv("QUEUE_WORKERS", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	cfg.Store.Driver = "mysql"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
	cfg.Store.Driver = "postgres"
	cfg.Store.PostgresDSN = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing postgres dsn")
	}
}
