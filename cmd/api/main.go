package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/pawtraits-dev/pawtraits-sub011/internal/adapter/redisrepo"
	"github.com/pawtraits-dev/pawtraits-sub011/internal/adapter/repo"
	"github.com/pawtraits-dev/pawtraits-sub011/internal/domain"
	"github.com/pawtraits-dev/pawtraits-sub011/internal/http/handlers"
	"github.com/pawtraits-dev/pawtraits-sub011/internal/http/httpapi"
	"github.com/pawtraits-dev/pawtraits-sub011/internal/infra"
	"github.com/pawtraits-dev/pawtraits-sub011/internal/infra/geoip"
	"github.com/pawtraits-dev/pawtraits-sub011/internal/middleware"
	"github.com/pawtraits-dev/pawtraits-sub011/internal/portrait"
	"github.com/pawtraits-dev/pawtraits-sub011/internal/providers/studio"
	"github.com/pawtraits-dev/pawtraits-sub011/internal/ratelimit"
	"github.com/pawtraits-dev/pawtraits-sub011/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer pool.Close()

	var limitRepo domain.RateLimitRepository = repo.NewRateLimitRepository(pool)
	if cfg.RateLimitBackend == "redis" {
		rdb, err := infra.NewRedisClient(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect redis")
		}
		defer rdb.Close()
		limitRepo = redisrepo.NewRateLimitRepository(rdb, cfg.RateLimitWindow)
	}

	limiter := ratelimit.NewLimiter(limitRepo, ratelimit.Config{
		MaxRequests: cfg.RateLimitMax,
		Window:      cfg.RateLimitWindow,
	}, logger)

	fileStore, err := storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure storage")
	}

	composer := studio.NewClient(studio.Options{
		BaseURL: cfg.StudioBaseURL,
		APIKey:  cfg.StudioAPIKey,
		Model:   cfg.StudioModel,
		HTTPClient: &http.Client{
			// Compose calls carry their own deadline; this is the outer cap.
			Timeout: cfg.ComposeTimeout + 10*time.Second,
		},
	})

	service := portrait.NewService(portrait.Config{
		MaxAssetBytes:  cfg.MaxAssetBytes,
		ComposeTimeout: cfg.ComposeTimeout,
		MaxConcurrent:  cfg.MaxConcurrentJobs,
	}, repo.NewJobRepository(pool), limiter, composer, fileStore, logger)

	var geoLookup middleware.CountryLookup
	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	} else if resolver != nil {
		defer resolver.Close()
		geoLookup = resolver.CountryCode
	}

	app := &handlers.App{
		Config:    cfg,
		Logger:    logger,
		Portraits: service,
		Limiter:   limiter,
		Assets:    fileStore,
		GeoLookup: geoLookup,
	}

	server := infra.NewHTTPServer(cfg, httpapi.NewRouter(app))

	go func() {
		logger.Info().Msgf("API listening on %s", server.Addr())
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}

	// Let in-flight generation runs reach a terminal persisted state.
	service.Wait()
	logger.Info().Msg("server stopped")
}
