package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"previsto/internal/config"
	"previsto/internal/core"
	applog "previsto/internal/log"
	"previsto/internal/services"
	"previsto/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentPlan)
	applog.SetDefault(logger)

	logger.Info("Starting plan-materializer")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	if len(cfg.MaterializeUserIDs) == 0 {
		logger.Error("No users configured - set MATERIALIZE_USER_IDS")
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	materializer := services.NewPlanMaterializer(repo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("Plan materializer configured",
		"users", len(cfg.MaterializeUserIDs),
		"months_ahead", cfg.MaterializeAhead,
		"sqlite_db", cfg.SQLiteDBPath)

	runAll := func(now time.Time) {
		for _, userID := range cfg.MaterializeUserIDs {
			for ahead := 0; ahead <= cfg.MaterializeAhead; ahead++ {
				month := core.MonthStart(now).AddDate(0, ahead, 0)
				count, err := materializer.MaterializeMonth(ctx, userID, month)
				if err != nil {
					logger.Error("Materialization failed",
						applog.FieldUserID, userID,
						applog.FieldMonthYear, core.MonthLabel(month),
						"error", err)
					continue
				}
				if count > 0 {
					logger.Info("Materialized expected transactions",
						applog.FieldUserID, userID,
						applog.FieldMonthYear, core.MonthLabel(month),
						"created", count)
				}
			}
		}
	}

	logger.Info("Running initial materialization...")
	runAll(time.Now())

	// Once a day is plenty: templates change rarely and EnsureMonthPlan is
	// idempotent.
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				runAll(now)
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("Shutdown signal received", "signal", sig.String())

	cancel()
	logger.Info("Plan materializer stopped gracefully")
}
