package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/streadway/amqp"

	"github.com/sokoni/storefront/internal/adapter/handler"
	"github.com/sokoni/storefront/internal/adapter/notify"
	"github.com/sokoni/storefront/internal/adapter/payment"
	"github.com/sokoni/storefront/internal/adapter/storage"
	"github.com/sokoni/storefront/internal/config"
	"github.com/sokoni/storefront/internal/core/service"
	"github.com/sokoni/storefront/internal/metrics"
)

func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stdout).Level(level).With().
		Timestamp().Str("app", cfg.AppName).Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// MySQL
	db, err := sqlx.Open("mysql", cfg.DSN())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open mysql")
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to ping mysql")
	}
	logger.Info().Msg("connected to mysql")

	if err := runMigrations(cfg); err != nil {
		logger.Fatal().Err(err).Msg("migrations failed")
	}

	// Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		PoolSize: cfg.RedisPoolSize,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}
	logger.Info().Msg("connected to redis")

	// RabbitMQ
	amqpConn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect rabbitmq")
	}
	notifier, err := notify.NewAMQPPublisher(amqpConn, cfg.NotifyExchangeName, cfg.NotifyRoutingKey, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to set up notification publisher")
	}
	logger.Info().Msg("connected to rabbitmq")

	// Adapters
	mysqlAdapter := storage.NewMySQLAdapter(db)
	redisAdapter := storage.NewRedisAdapter(rdb, cfg.RateLimitRequests, cfg.RateLimitWindow)

	cardGateway := payment.NewCardGateway(cfg.CardGatewayURL, cfg.CardGatewayAPIKey, cfg.PaymentTimeout, logger)
	mpesaGateway := payment.NewMpesaGateway(cfg.MpesaGatewayURL, cfg.MpesaShortCode, cfg.MpesaCallbackURL, cfg.PaymentTimeout, logger)
	gateway := payment.NewSelector(cardGateway, mpesaGateway)

	// Services
	checkoutMetrics := metrics.NewCheckoutMetrics()
	serverMetrics := metrics.NewServerMetrics()

	checkoutService := service.NewCheckoutService(
		mysqlAdapter, gateway, notifier, redisAdapter,
		logger, checkoutMetrics, cfg.PaymentTimeout, cfg.Currency,
	)
	cartService := service.NewCartService(mysqlAdapter, logger)
	orderQueries := service.NewOrderQueryService(mysqlAdapter)

	reconciler := service.NewReconciler(
		mysqlAdapter, checkoutService, logger,
		cfg.ReconcileInterval, cfg.ReconcileMinAge, cfg.ReconcileBatch,
	)
	go reconciler.Run(ctx)
	logger.Info().Dur("interval", cfg.ReconcileInterval).Msg("started orphan reconciler")

	// HTTP server
	h := handler.NewHTTPHandler(checkoutService, cartService, orderQueries, logger)
	router := handler.NewRouter(h, redisAdapter, serverMetrics, logger)

	httpServer := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: router,
	}

	go func() {
		logger.Info().Str("port", cfg.HTTPPort).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("HTTP server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	logger.Info().Msg("HTTP server stopped")

	notifier.Close()
	amqpConn.Close()
	rdb.Close()
	db.Close()
	logger.Info().Msg("connections closed")
}

func runMigrations(cfg config.Config) error {
	m, err := migrate.New(
		"file://"+cfg.MigrationsPath,
		fmt.Sprintf("mysql://%s", cfg.DSN()),
	)
	if err != nil {
		return fmt.Errorf("init migrate: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
