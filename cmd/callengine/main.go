package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/quantumflow/callengine/internal/cache"
	"github.com/quantumflow/callengine/internal/config"
	"github.com/quantumflow/callengine/internal/cost"
	"github.com/quantumflow/callengine/internal/customer"
	"github.com/quantumflow/callengine/internal/datastore"
	"github.com/quantumflow/callengine/internal/events"
	"github.com/quantumflow/callengine/internal/functions"
	"github.com/quantumflow/callengine/internal/logging"
	"github.com/quantumflow/callengine/internal/registry"
	"github.com/quantumflow/callengine/internal/scheduler"
	"github.com/quantumflow/callengine/internal/search"
	"github.com/quantumflow/callengine/internal/webhook"
)

const version = "0.1.0"

func main() {
	// .env is optional; real environment variables take precedence
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("callengine exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting callengine", slog.String("version", version), slog.String("addr", cfg.ListenAddr))

	store, err := datastore.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open datastore: %w", err)
	}
	defer store.Close()

	cacheManager, err := cache.NewManager(&cache.Config{
		LocalSize:     cfg.LocalCacheSize,
		LocalTTL:      cfg.LocalCacheTTL,
		WarmupTTL:     cfg.WarmupTTL,
		RemoteTimeout: 500 * time.Millisecond,
	}, openRemote(cfg, logger), logger)
	if err != nil {
		return fmt.Errorf("failed to create cache: %w", err)
	}
	defer cacheManager.Close()

	publisher := openPublisher(cfg, logger)
	defer publisher.Close()

	var searchClient *search.Client
	if cfg.SearchURL != "" {
		searchClient = search.NewClient(&search.Config{
			URL:     cfg.SearchURL,
			APIKey:  cfg.SearchAPIKey,
			RPS:     cfg.SearchRPS,
			Burst:   cfg.SearchBurst,
			Timeout: 5 * time.Second,
		})
	}

	resolver := customer.NewResolver(&customer.Config{
		CountryCode:  cfg.DefaultCountryCode,
		ProfileTTL:   5 * time.Minute,
		HistoryLimit: 5,
	}, store, cacheManager, logger)

	costService := cost.NewService(&cost.Config{
		Rates:          cost.DefaultRates(),
		Currency:       cfg.Currency,
		AlertThreshold: decimal.NewFromFloat(cfg.CostThreshold),
	}, store, publisher, logger)

	business := functions.BusinessInfo{
		Name:    cfg.BusinessName,
		Address: cfg.BusinessAddress,
		Phone:   cfg.BusinessPhone,
		Hours:   cfg.BusinessHours,
		Days:    cfg.BusinessDays,
	}

	reg := registry.New(cacheManager, store, logger)
	if err := functions.Register(reg, functions.Deps{
		Store:       store,
		Cache:       cacheManager,
		Search:      searchClient,
		Resolver:    resolver,
		Business:    business,
		CountryCode: cfg.DefaultCountryCode,
		Logger:      logger,
	}); err != nil {
		return err
	}
	cacheManager.Warmup(ctx, functions.StaticAnswers(business))

	sched := scheduler.New(cfg.ReportCron, costService, publisher, logger)
	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	gateway := webhook.NewGateway(&webhook.Config{
		SignatureHeader: cfg.SignatureHeader,
		MaxBodyBytes:    cfg.MaxBodyBytes,
		TransferNumber:  cfg.TransferNumber,
		CountryCode:     cfg.DefaultCountryCode,
		DefaultLanguage: cfg.DefaultLanguage,
	}, webhook.Deps{
		Verifier: webhook.NewVerifier(cfg.WebhookSecret, logger),
		Registry: reg,
		Resolver: resolver,
		Cost:     costService,
		Store:    store,
		Cache:    cacheManager,
		Logger:   logger,
	})
	if cfg.WebhookSecret == "" {
		logger.Warn("WEBHOOK_SECRET is empty: signature verification is disabled")
	}

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           webhook.NewRouter(gateway),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("listening", slog.String("addr", cfg.ListenAddr), slog.Any("functions", reg.List()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// openRemote selects the remote cache tier. A tier that cannot be opened
// leaves the cache local-only.
func openRemote(cfg *config.Config, logger *slog.Logger) cache.RemoteStore {
	switch cfg.CacheBackend {
	case config.CacheBackendRedis:
		store, err := cache.NewRedisStore(cache.RedisConfig{
			Addr:     cfg.RedisURL,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			logger.Warn("redis unavailable, caching locally only", slog.String("error", err.Error()))
			return nil
		}
		return store
	case config.CacheBackendBadger:
		store, err := cache.NewBadgerStore(cfg.BadgerPath)
		if err != nil {
			logger.Warn("badger unavailable, caching locally only", slog.String("error", err.Error()))
			return nil
		}
		return store
	default:
		return nil
	}
}

func openPublisher(cfg *config.Config, logger *slog.Logger) events.Publisher {
	if cfg.AMQPURL == "" {
		return events.NewFallback(logger)
	}
	publisher, err := events.NewRabbitPublisher(cfg.AMQPURL, cfg.AMQPExchange, logger)
	if err != nil {
		logger.Warn("broker unavailable, alerts will only be logged", slog.String("error", err.Error()))
		return events.NewFallback(logger)
	}
	return publisher
}
