package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"appsystem/internal/audit"
	"appsystem/internal/httpapi"
	"appsystem/internal/lifecycle"
	"appsystem/internal/metrics"
	"appsystem/internal/shop"
	"appsystem/internal/webhook"
	"appsystem/pkg/config"
	"appsystem/pkg/db"
	"appsystem/pkg/shopware"
)

func main() {
	cfg := config.Load()
	logger := newLogger(cfg)

	if cfg.App.Name == "" || cfg.App.Secret == "" {
		logger.Fatal().Msg("APP_NAME and APP_SECRET are required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("db open")
	}
	defer conn.Close()

	if cfg.MigrationsPath != "" {
		version, err := db.Migrate(cfg.MigrationsPath, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("migrate")
		}
		logger.Info().Uint("schema_version", version).Msg("migrations applied")
	}

	m := metrics.New()
	httpClient := &http.Client{Timeout: cfg.Shopware.HTTPTimeout}
	auth := shopware.NewAuthenticator(
		shopware.WithAuthHTTPClient(httpClient),
		shopware.WithAuthLogger(logger.With().Str("component", "authenticator").Logger()),
		shopware.WithExchangeHook(m.TokenExchange),
	)

	var (
		tokenStore shopware.TokenStore = shopware.NewMemoryTokenStore()
		deduper    webhook.Deduper     = webhook.NewMemoryDeduper(webhook.DefaultDedupeTTL)
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("parse REDIS_URL")
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal().Err(err).Msg("redis ping")
		}
		tokenStore = shopware.NewRedisTokenStore(rdb)
		deduper = webhook.NewRedisDeduper(rdb, webhook.DefaultDedupeTTL)
		logger.Info().Msg("using redis token cache")
	}
	tokens := shopware.NewTokenCache(auth, tokenStore,
		shopware.WithDefaultTokenTTL(cfg.Shopware.TokenTTL),
		shopware.WithTokenCacheLogger(logger.With().Str("component", "token_cache").Logger()),
	)

	webhooks := webhook.NewDispatcher(
		webhook.WithDeduper(deduper),
		webhook.WithMetrics(m),
		webhook.WithLogger(logger.With().Str("component", "webhook").Logger()),
	)
	webhooks.Handle("product.written", webhook.LogWebhook(logger))

	actions := webhook.NewActionButtons(m, logger.With().Str("component", "actionbutton").Logger())
	actions.Handle("order", webhook.FetchEntities(logger))
	actions.Handle("product", webhook.FetchEntities(logger))

	router := httpapi.NewRouter(httpapi.Dependencies{
		Cfg:        cfg,
		Logger:     logger,
		Metrics:    m,
		Shops:      shop.NewRepository(conn),
		Tokens:     tokens,
		Auth:       auth,
		HTTPClient: httpClient,
		Listeners: []lifecycle.Listener{
			lifecycle.LoggingListener{Logger: logger.With().Str("component", "lifecycle").Logger()},
			audit.Listener{Recorder: audit.NewRepository(conn)},
		},
		Webhooks: webhooks,
		Actions:  actions,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("http listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http serve")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}

func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.AppEnv == "dev" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stdout)
	}
	return logger.Level(level).With().Timestamp().Logger()
}
