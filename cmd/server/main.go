package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/mosaicly/catalog/internal/config"
	"github.com/mosaicly/catalog/internal/genai"
	"github.com/mosaicly/catalog/internal/importer"
	"github.com/mosaicly/catalog/internal/logging"
	"github.com/mosaicly/catalog/internal/store"
	"github.com/mosaicly/catalog/internal/web"
)

func main() {
	// Load .env if present; real environment variables win.
	if err := godotenv.Load(); err == nil {
		slog.Info("loaded .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		slog.Error("failed to parse database URL", "error", err)
		os.Exit(1)
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime

	ctx := context.Background()
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to database")

	var gen genai.Generator
	if cfg.GenAI.Enabled() {
		gen = genai.NewClient(genai.Config{
			APIKey:      cfg.GenAI.APIKey,
			BaseURL:     cfg.GenAI.BaseURL,
			Model:       cfg.GenAI.Model,
			Temperature: cfg.GenAI.Temperature,
			MaxTokens:   cfg.GenAI.MaxTokens,
		})
		slog.Info("generative augmentation enabled", "model", cfg.GenAI.Model)
	} else {
		slog.Info("generative augmentation disabled: no GENAI_API_KEY")
	}

	imp := importer.New(store.New(pool), gen, slog.Default(), importer.Options{
		ChunkSize:          cfg.Import.ChunkSize,
		AugmentConcurrency: cfg.Import.AugmentConcurrency,
		UpdateConcurrency:  cfg.Import.UpdateConcurrency,
		Timeout:            cfg.Import.Timeout,
	})

	server := web.NewServer(imp, pool, cfg)

	// Serve until interrupted, then drain within the shutdown budget.
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", cfg.Server.Addr())
		errCh <- server.Start(cfg.Server.Addr())
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	case sig := <-stop:
		slog.Info("shutting down", "signal", sig.String())
		shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("graceful shutdown failed", "error", err)
			os.Exit(1)
		}
	}

	slog.Info("server stopped")
}
