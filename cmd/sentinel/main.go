package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"PriceSentinel/internal/config"
	"PriceSentinel/internal/logging"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	if err := run(cfgPath); err != nil {
		log := logging.New("info", false)
		log.Fatal().Err(err).Msg("PriceSentinel exited")
	}
}

// run returns instead of exiting so every deferred close runs on failure.
func run(cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	log := logging.New(cfg.Log.Level, cfg.Log.Pretty)
	log.Info().Str("config", cfgPath).Msg("PriceSentinel starting")

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	a.start()
	log.Info().Str("poll_cron", cfg.Schedule.PollCron).Msg("PriceSentinel is running. Press Ctrl+C to stop.")

	<-sigCtx.Done()
	log.Info().Msg("shutdown signal received, stopping...")
	a.shutdown(15 * time.Second)
	log.Info().Msg("PriceSentinel stopped")
	return nil
}
