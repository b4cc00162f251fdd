package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/palermolight/catalog-client/pkg/basket"
	"github.com/palermolight/catalog-client/pkg/cache"
	"github.com/palermolight/catalog-client/pkg/catalog"
	"github.com/palermolight/catalog-client/pkg/client"
	"github.com/palermolight/catalog-client/pkg/config"
	"github.com/palermolight/catalog-client/pkg/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Setup(logging.DefaultConfig())
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	logger := logging.Setup(cfg.LoggingConfig())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clientCfg := cfg.ClientConfig()
	clientCfg.Logger = &logger
	var baskets basket.Store = basket.NewMemoryStore()
	var ready func(context.Context) error

	redisOpts, err := cfg.RedisOptions()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid Redis configuration")
	}
	if redisOpts != nil {
		redisClient := redis.NewClient(redisOpts)
		defer redisClient.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Fatal().Err(err).Str("addr", redisOpts.Addr).Msg("Failed to connect to Redis")
		}
		log.Info().Str("addr", redisOpts.Addr).Msg("Connected to Redis")

		// Redis keeps entries a little past the TTL so stale pages can still
		// be counted; freshness is decided by the client.
		clientCfg.Cache = cache.NewRedisStore(redisClient, 2*cfg.CacheTTL)
		baskets = basket.NewRedisStore(redisClient)
		ready = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	} else {
		log.Info().Msg("REDIS_URL not set, using in-memory cache and baskets")
	}

	catalogClient, err := client.New(clientCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create catalog client")
	}

	catalogCfg := cfg.CatalogConfig()
	catalogCfg.Logger = &logger

	srv := newServer(catalogClient, catalog.NewService(catalogClient, catalogCfg), baskets, cfg.RetryConfig(), logger)
	srv.ready = ready

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server shutdown failed")
		}
	}()

	log.Info().
		Str("addr", httpServer.Addr).
		Str("api", cfg.APIURL).
		Dur("cache_ttl", cfg.CacheTTL).
		Int("retry_attempts", cfg.RetryMaxAttempts).
		Msg("Starting catalog proxy")

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server failed")
	}
	log.Info().Msg("Catalog proxy stopped")
}
