package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/wenwu/saas-platform/esim-storefront/internal/catalog"
	"github.com/wenwu/saas-platform/esim-storefront/internal/config"
	"github.com/wenwu/saas-platform/esim-storefront/internal/db"
	"github.com/wenwu/saas-platform/esim-storefront/internal/http"
	"github.com/wenwu/saas-platform/esim-storefront/internal/logging"
	"github.com/wenwu/saas-platform/esim-storefront/internal/metrics"
	"github.com/wenwu/saas-platform/esim-storefront/internal/service"
	"github.com/wenwu/saas-platform/esim-storefront/internal/store"
)

func main() {
	// .env is optional; real environment wins
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	logger := logging.Init(cfg.Log.Level, cfg.Log.Pretty)
	logger.Info().Msg("Starting Storefront Service...")

	m := metrics.New()

	// Initialize storage
	ctx := context.Background()
	kv, err := db.OpenKV(ctx, cfg, logging.Component(logger, "db"))
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer kv.Close()

	st := store.New(kv,
		store.WithLogger(logging.Component(logger, "store")),
		store.WithMetrics(m),
		store.WithQueueSize(cfg.Store.WriteQueue),
		store.WithWriteTimeout(cfg.Store.WriteTimeout),
	)
	st.Load(ctx)

	// Initialize services
	cat := catalog.Default()
	orderService := service.NewOrderService(cfg, st, cat, m, logging.Component(logger, "orders"))
	profileService := service.NewProfileService(cfg, st, cat, logging.Component(logger, "profile"))
	deviceService := service.NewDeviceService()

	// Periodic resync of the persisted mirror
	var scheduler *cron.Cron
	if cfg.Store.ResyncSchedule != "" {
		scheduler = cron.New()
		_, err := scheduler.AddFunc(cfg.Store.ResyncSchedule, func() {
			st.Resync()
		})
		if err != nil {
			logger.Fatal().Err(err).Str("schedule", cfg.Store.ResyncSchedule).Msg("Invalid resync schedule")
		}
		scheduler.Start()
		logger.Info().Str("schedule", cfg.Store.ResyncSchedule).Msg("Resync scheduled")
	}

	// Initialize HTTP server
	server := http.NewServer(cfg, logging.Component(logger, "http"), m, kv, st, cat,
		orderService, profileService, deviceService)

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Run()
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	if err := waitForStop(quit, serverErr); err != nil {
		logger.Error().Err(err).Msg("Server failed")
		exitCode = 1
	}

	logger.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if scheduler != nil {
		<-scheduler.Stop().Done()
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP shutdown incomplete")
	}
	if err := st.Close(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Pending writes not flushed")
	}

	logger.Info().Msg("Server exited")
	if exitCode != 0 {
		kv.Close()
		os.Exit(exitCode)
	}
}

// waitForStop blocks until a shutdown signal arrives or the server stops on
// its own. Either way the caller runs the normal shutdown so queued writes
// are flushed.
func waitForStop(quit <-chan os.Signal, serverErr <-chan error) error {
	select {
	case <-quit:
		return nil
	case err := <-serverErr:
		if err == nil {
			return errors.New("server stopped unexpectedly")
		}
		return err
	}
}
