// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mouhalis/voiceval/internal/config"
	"github.com/mouhalis/voiceval/internal/execution"
	"github.com/mouhalis/voiceval/internal/llm"
	"github.com/mouhalis/voiceval/internal/logging"
	"github.com/mouhalis/voiceval/internal/persistence/postgres"
	"github.com/mouhalis/voiceval/internal/repository"
	httptransport "github.com/mouhalis/voiceval/internal/transport/http"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	logger := logging.NewLogger(cfg.Env)

	var store repository.Store
	if cfg.DatabaseURL == "" {
		logger.Info("no database configured, using in-memory store")
		store = repository.NewMemoryStore(logger)
	} else {
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db connect failed: %v", err)
		}
		defer pool.Close()

		if cfg.AutoMigrate {
			if err := postgres.EnsureSchema(ctx, pool, logger); err != nil {
				log.Fatalf("db migrate failed: %v", err)
			}
		}

		store = repository.NewPostgres(pool, logger)
	}

	if cfg.GeminiAPIKey == "" {
		logger.Warn("GEMINI_API_KEY is not set, step execution will fail until configured")
	}

	runner, err := llm.NewRunner(ctx, cfg.GeminiAPIKey, cfg.UploadDir, store, logger)
	if err != nil {
		log.Fatalf("llm client init failed: %v", err)
	}

	executor := execution.NewService(ctx, execution.Deps{
		Store:  store,
		Runner: runner,
		Models: cfg.Models,
		Logger: logger,
	})

	handler := httptransport.NewRouter(httptransport.Deps{
		Store:     store,
		Executor:  executor,
		Logger:    logger,
		UploadDir: cfg.UploadDir,
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("api listening",
			"addr", cfg.HTTPAddr,
			"models", cfg.Models,
			"version", Version,
			"commit", Commit,
			"build_date", BuildDate,
		)

		if err := srv.ListenAndServe(); err != nil &&
			err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
}
