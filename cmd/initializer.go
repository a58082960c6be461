package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"iapBack/internal/config"
	"iapBack/internal/events"
	"iapBack/internal/handlers"
	"iapBack/internal/metrics"
	"iapBack/internal/repositories"
	"iapBack/internal/services"
)

type application struct {
	cfg    config.Config
	logger zerolog.Logger
	db     *sql.DB

	subscriptionRepo *repositories.SubscriptionRepository
	iapManager       *services.IAPManager
	iapHandler       *handlers.IAPHandler
	webhookHandler   *handlers.WebhookHandler
	metricsHandler   http.Handler
}

// initializeApp wires repositories, verifiers and handlers. rdb may be nil,
// in which case subscription events are dropped.
func initializeApp(ctx context.Context, cfg config.Config, db *sql.DB, rdb redis.UniversalClient, logger zerolog.Logger) (*application, error) {
	dialect, err := repositories.ParseDialect(cfg.Database.Driver)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	iapMetrics := metrics.NewIAPMetrics(registry)

	// Repositories
	subscriptionRepo := repositories.NewSubscriptionRepository(db, dialect, cfg.IAP.Table, cfg.IAP.UsersTable)
	userRepo := repositories.NewUserRepository(db, dialect, cfg.IAP.UsersTable)

	// Services
	manager := newIAPManager(ctx, cfg, iapMetrics, logger)
	webhookService := services.NewWebhookService(iapMetrics, logger)

	var publisher events.Publisher = events.NopPublisher{}
	if rdb != nil {
		publisher = events.NewRedisPublisher(rdb, cfg.Redis.Channel)
	}

	// Handlers
	return &application{
		cfg:              cfg,
		logger:           logger,
		db:               db,
		subscriptionRepo: subscriptionRepo,
		iapManager:       manager,
		iapHandler:       handlers.NewIAPHandler(manager, subscriptionRepo, userRepo, publisher, cfg.App.Debug, logger),
		webhookHandler:   handlers.NewWebhookHandler(webhookService, logger),
		metricsHandler:   promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
	}, nil
}

func newIAPManager(ctx context.Context, cfg config.Config, observer services.VerificationObserver, logger zerolog.Logger) *services.IAPManager {
	apple := services.NewAppleVerifier(cfg.IAP.Apple, nil, logger)
	google := services.NewGoogleVerifierFromConfig(ctx, cfg.IAP.Google, logger)
	return services.NewIAPManager(apple, google, observer, logger)
}

func openDB(driver, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	if driver == string(repositories.DialectSQLite) {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxIdleConns(35)
		db.SetConnMaxLifetime(30 * time.Minute)
	}
	return db, nil
}

func openRedis(ctx context.Context, cfg config.Config, logger zerolog.Logger) *redis.Client {
	if cfg.Redis.Addr == "" {
		logger.Info().Msg("redis address not set, subscription events disabled")
		return nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis ping failed, events will not be delivered until it is reachable")
	}
	return rdb
}

func addSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Cross-Origin-Resource-Policy", "same-origin")
		next.ServeHTTP(w, r)
	})
}
