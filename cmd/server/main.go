package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ndewijer/portfolio-rebalancer/internal/api"
	"github.com/ndewijer/portfolio-rebalancer/internal/api/middleware"
	"github.com/ndewijer/portfolio-rebalancer/internal/config"
	"github.com/ndewijer/portfolio-rebalancer/internal/database"
	"github.com/ndewijer/portfolio-rebalancer/internal/logging"
	"github.com/ndewijer/portfolio-rebalancer/internal/selector"
	"github.com/ndewijer/portfolio-rebalancer/internal/service"
	"github.com/ndewijer/portfolio-rebalancer/internal/version"
)

// limiterSweepSchedule drops idle rate limiters every minute.
const limiterSweepSchedule = "0 * * * * *"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logging.NewConsole("info").Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger := logging.NewConsole(cfg.Log.Level)

	// Open database connection
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.Database.Path).Msg("Failed to open database")
	}
	defer db.Close()

	applied, err := database.Migrate(context.Background(), db)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to migrate database")
	}
	logger.Info().Str("path", cfg.Database.Path).Int64("schema_version", applied).Msg("Connected to database")

	rates := selector.Rates{
		ShortTerm:    cfg.Engine.Tax.ShortTermRate,
		LongTerm:     cfg.Engine.Tax.LongTermRate,
		LongTermDays: cfg.Engine.Tax.LongTermDays,
	}
	services := service.NewServices(db, rates, cfg.Engine.Performance.BenchmarkTicker, logger)

	scheduler := service.NewSnapshotScheduler(services.Snapshot, logger)
	if err := scheduler.Start(cfg.Engine.Performance.SnapshotSchedule); err != nil {
		logger.Fatal().Err(err).Str("schedule", cfg.Engine.Performance.SnapshotSchedule).Msg("Failed to start snapshot scheduler")
	}

	limiters := middleware.NewLimiterStore(cfg.Engine.RateLimit.RequestsPerSecond, cfg.Engine.RateLimit.Burst)
	idle := time.Duration(cfg.Engine.RateLimit.IdleMinutes) * time.Minute
	if err := scheduler.AddJob("limiter sweep", limiterSweepSchedule, func() {
		if n := limiters.Sweep(idle); n > 0 {
			logger.Debug().Int("dropped", n).Msg("Dropped idle rate limiters")
		}
	}); err != nil {
		logger.Fatal().Err(err).Msg("Failed to schedule limiter sweep")
	}
	router := api.NewRouter(services, limiters, cfg, logger)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info().Str("addr", cfg.Server.Addr).Str("version", version.Version).Msg("Starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	scheduler.Stop()

	logger.Info().Msg("Server exited")
}
