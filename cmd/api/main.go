package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tourist-tax-engine/config"
	gatewayClient "tourist-tax-engine/internal/adapter/gateway"
	httpHandler "tourist-tax-engine/internal/adapter/http/handler"
	"tourist-tax-engine/internal/adapter/rabbitmq"
	pgStorage "tourist-tax-engine/internal/adapter/storage/postgres"
	redisStorage "tourist-tax-engine/internal/adapter/storage/redis"
	"tourist-tax-engine/internal/core/ports"
	"tourist-tax-engine/internal/service"
	"tourist-tax-engine/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Tourist Tax Engine")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// Initialize repositories
	reservationRepo := pgStorage.NewReservationRepo(pool)
	paymentRepo := pgStorage.NewPaymentRepo(pool)

	// Initialize Redis stores
	paymentLock := redisStorage.NewPaymentLock(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Initialize event notifier
	var notifier ports.EventNotifier
	if cfg.RabbitMQ.Enabled {
		mq, err := rabbitmq.NewNotifier(cfg.RabbitMQ, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to RabbitMQ")
		}
		defer mq.Close()
		notifier = mq
	} else {
		log.Warn().Msg("RabbitMQ disabled, lifecycle events will not be published")
		notifier = rabbitmq.NopNotifier{}
	}

	// Initialize core services
	gateway := gatewayClient.NewClient(cfg.Gateway, log)
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	calc := service.NewTaxCalculator(service.NewTaxRateTable())
	lifecycleSvc := service.NewLifecycleService(
		reservationRepo,
		paymentRepo,
		gateway,
		notifier,
		paymentLock,
		calc,
		log,
	)

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		LifecycleSvc:   lifecycleSvc,
		TokenSvc:       tokenSvc,
		RateLimitStore: rateLimitStore,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
