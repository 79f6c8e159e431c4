package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/meridianhq/custflow/internal/apiclient"
	"github.com/meridianhq/custflow/internal/config"
	"github.com/meridianhq/custflow/internal/logging"
	"github.com/meridianhq/custflow/internal/pipeline"
	"github.com/meridianhq/custflow/internal/transform"
	"github.com/meridianhq/custflow/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"api_base_url", cfg.API.BaseURL,
		"max_retries", cfg.API.MaxRetries,
		"run_retention", cfg.Upload.RunRetention,
	)

	// Rules overlay: field mapping and retry overrides from an optional file
	rules, err := config.LoadRules(cfg.Upload.RulesFile)
	if err != nil {
		slog.Error("failed to load rules file", "error", err)
		os.Exit(1)
	}

	retry := apiclient.RetryConfig{
		MaxRetries:       cfg.API.MaxRetries,
		BaseDelay:        cfg.API.BaseDelay,
		MaxDelay:         cfg.API.MaxDelay,
		BackoffFactor:    cfg.API.BackoffFactor,
		RetryStatusCodes: cfg.API.RetryStatusCodes,
	}
	if rules.MaxRetries != nil {
		retry.MaxRetries = *rules.MaxRetries
	}
	if rules.BaseDelay != nil {
		retry.BaseDelay = *rules.BaseDelay
	}
	if rules.MaxDelay != nil {
		retry.MaxDelay = *rules.MaxDelay
	}

	client := apiclient.New(cfg.API.BaseURL, cfg.API.Key, cfg.API.Timeout, retry)

	transformer := transform.New()
	if len(rules.FieldMapping) > 0 {
		transformer = transform.NewWithOverlay(transform.Overlay{FieldMapping: rules.FieldMapping})
		slog.Info("field mapping overrides loaded", "fields", len(rules.FieldMapping))
	}

	p := pipeline.New(client, transformer, cfg.API.BaseURL)
	registry := pipeline.NewRegistry(cfg.Upload.RunRetention)

	server := web.NewServer(cfg, p, registry)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil {
		slog.Info("server stopped", "error", err)
	}
}
