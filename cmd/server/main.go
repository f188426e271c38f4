package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/Cryptoprojectsfun/stocktrade/internal/cache"
	"github.com/Cryptoprojectsfun/stocktrade/internal/config"
	"github.com/Cryptoprojectsfun/stocktrade/internal/database"
	"github.com/Cryptoprojectsfun/stocktrade/internal/events"
	"github.com/Cryptoprojectsfun/stocktrade/internal/handlers"
	"github.com/Cryptoprojectsfun/stocktrade/internal/journal"
	"github.com/Cryptoprojectsfun/stocktrade/internal/ledger"
	"github.com/Cryptoprojectsfun/stocktrade/internal/logger"
	"github.com/Cryptoprojectsfun/stocktrade/internal/middleware"
	"github.com/Cryptoprojectsfun/stocktrade/internal/monitoring"
	"github.com/Cryptoprojectsfun/stocktrade/internal/storage"
	"github.com/Cryptoprojectsfun/stocktrade/internal/trade"
	"github.com/Cryptoprojectsfun/stocktrade/internal/vendor"
)

func main() {
	// Local development convenience; a missing .env is fine.
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logCfg := logger.Config{Level: os.Getenv("LOG_LEVEL"), Debug: cfg.App.Debug}
	appLog, err := logger.New(logCfg)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer appLog.Sync()

	metrics := monitoring.NewMetrics("stocktrade")
	health := monitoring.NewHealthChecker()

	// Storage backend for the ledger and journal.
	var (
		store       storage.KV
		redisClient *redis.Client
		db          *sql.DB
	)
	switch cfg.Storage.Driver {
	case "redis":
		redisClient = newRedisClient(cfg)
		store = storage.NewRedisStore(redisClient, cfg.Storage.MaxUpdateRetries)
	case "postgres":
		db, err = sql.Open("postgres", cfg.GetDatabaseURL())
		if err != nil {
			appLog.Fatalw("Failed to open database", "error", err)
		}
		defer db.Close()
		store = storage.NewPostgresStore(database.New(db))
		health.RegisterCheck("database", monitoring.PingCheck("database", db.PingContext))
	default:
		store = storage.NewMemoryStore()
	}

	// Quote cache rides on redis when available, in-process otherwise.
	var quotes cache.QuoteCache
	if redisClient == nil && cfg.Redis.Host != "" {
		redisClient = newRedisClient(cfg)
	}
	if redisClient != nil {
		defer redisClient.Close()
		quotes = cache.NewRedisQuoteCache(redisClient, cfg.Cache.TTL())
		health.RegisterCheck("redis", monitoring.PingCheck("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}))
	} else {
		quotes = cache.NewMemoryQuoteCache(cfg.Cache.TTL())
	}

	breakers := vendor.NewBreakerRegistry(vendor.BreakerConfig{
		ErrorThresholdPct: cfg.Breaker.ErrorThresholdPct,
		Window:            cfg.Breaker.Window(),
		ResetTimeout:      cfg.Breaker.ResetTimeout(),
		MinRequests:       cfg.Breaker.MinRequests,
	}, func(name string, from, to vendor.BreakerState) {
		appLog.LogCircuitTransition(name, string(from), string(to))
		metrics.SetCircuitState(name, string(to))
	})

	provider, err := newProvider(cfg)
	if err != nil {
		appLog.Fatalw("Failed to build vendor provider", "error", err)
	}
	adapter := vendor.NewAdapter(provider, breakers, vendor.AdapterConfig{
		Timeout:     cfg.Vendor.Timeout(),
		MaxRetries:  cfg.Vendor.MaxRetries,
		BaseBackoff: cfg.Vendor.Backoff(),
	}, appLog, metrics)
	health.RegisterCheck("circuit_breakers", monitoring.BreakerCheck(func() map[string]string {
		states := make(map[string]string)
		for name, state := range adapter.BreakerStates() {
			states[name] = string(state)
		}
		return states
	}))

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.Events.Enabled {
		kafkaPublisher := events.NewKafkaPublisher(cfg.Events.Brokers, cfg.Events.Topic)
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
	}

	service := trade.NewService(
		adapter,
		ledger.New(store),
		journal.New(store),
		quotes,
		publisher,
		trade.Config{
			TolerancePct:      cfg.Tolerance.MaxDeviationPct,
			MaxStorageRetries: cfg.Storage.MaxUpdateRetries,
		},
		appLog,
		metrics,
	)

	router := mux.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recovery(appLog))
	router.Use(middleware.SecureHeaders())
	router.Use(middleware.RequestLogger(appLog, metrics))
	router.Use(middleware.APIRateLimit(100, 200))

	router.HandleFunc("/health", health.HTTPHandler()).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	authMiddleware := middleware.NewAuthMiddleware(cfg.Auth.JWTSecret)
	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(authMiddleware.Authenticate)
	handlers.NewTradeHandler(service).RegisterRoutes(api)

	handler := cors.New(cors.Options{
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(router)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		appLog.Infow("Server starting", "port", cfg.App.Port, "provider", provider.Name(), "storage", cfg.Storage.Driver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.Fatalw("Server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLog.Infow("Server shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLog.Fatalw("Server forced to shutdown", "error", err)
	}

	appLog.Infow("Server stopped")
}

func newRedisClient(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

func newProvider(cfg *config.Config) (vendor.Provider, error) {
	switch cfg.Vendor.Provider {
	case "fuse":
		return vendor.NewFuseProvider(cfg.Vendor.BaseURL, cfg.Vendor.APIKey), nil
	case "alpaca":
		return vendor.NewAlpacaProvider(cfg.Vendor.Watchlist), nil
	case "mock":
		return vendor.NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown vendor provider: %s", cfg.Vendor.Provider)
	}
}
