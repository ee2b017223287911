package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"previsto/internal/amqp"
	"previsto/internal/cache"
	"previsto/internal/config"
	"previsto/internal/core"
	apphttp "previsto/internal/http"
	applog "previsto/internal/log"
	gsheet "previsto/internal/sheets/google"
	"previsto/internal/services"
	"previsto/internal/storage"
	"previsto/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	reports := services.NewVarianceReportService(repo)

	reportCache := cache.NewLRUCache[core.VarianceReport](cfg.ReportCacheSize, cfg.ReportCacheTTL)
	cacheManager := cache.NewManager()
	cacheManager.Register(reportCache)
	cacheManager.StartCleanup(time.Minute)
	defer cacheManager.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Matched-transaction events warm the same cache the handlers read, so
	// the consumer runs in-process when a broker is configured.
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, reports will be computed on demand", "error", err)
		} else {
			defer amqpClient.Close()

			reportWorker := worker.NewReportWorker(reports, reportCache, nil,
				logger.WithComponent(applog.ComponentWorker))
			go func() {
				if err := reportWorker.Run(ctx, amqpClient); err != nil && err != context.Canceled {
					logger.Error("Report worker stopped", "error", err)
				}
			}()
		}
	} else {
		logger.Info("AMQP disabled - reports are computed on demand")
	}

	// Spreadsheet export stays in previsto-worker; the API only verifies the
	// credentials early so a misconfiguration surfaces at startup.
	if cfg.GoogleSpreadsheetID != "" {
		if _, err := gsheet.NewFromEnv(ctx); err != nil {
			logger.Warn("Google Sheets credentials check failed", "error", err)
		}
	}

	srv := apphttp.NewServer(":"+cfg.Port, reports, reportCache,
		logger.WithComponent(applog.ComponentHTTP))

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting previsto server", "port", cfg.Port, "db", cfg.SQLiteDBPath)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	slog.Info("Server stopped gracefully")
}
