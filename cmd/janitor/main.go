// The janitor periodically deletes rate limit windows past their retention
// horizon. Advisory maintenance: limiter correctness never depends on a run.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/pawtraits-dev/pawtraits-sub011/internal/adapter/redisrepo"
	"github.com/pawtraits-dev/pawtraits-sub011/internal/adapter/repo"
	"github.com/pawtraits-dev/pawtraits-sub011/internal/domain"
	"github.com/pawtraits-dev/pawtraits-sub011/internal/infra"
	"github.com/pawtraits-dev/pawtraits-sub011/internal/ratelimit"
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
		logger.Fatal().Err(err).Msg("janitor: failed to connect database")
	}
	defer pool.Close()

	var limitRepo domain.RateLimitRepository = repo.NewRateLimitRepository(pool)
	if cfg.RateLimitBackend == "redis" {
		rdb, err := infra.NewRedisClient(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("janitor: failed to connect redis")
		}
		defer rdb.Close()
		// Redis windows expire on their own; running the janitor against the
		// redis backend is a no-op but harmless.
		limitRepo = redisrepo.NewRateLimitRepository(rdb, cfg.RateLimitWindow)
	}

	limiter := ratelimit.NewLimiter(limitRepo, ratelimit.Config{
		MaxRequests: cfg.RateLimitMax,
		Window:      cfg.RateLimitWindow,
	}, logger)

	logger.Info().Dur("interval", cfg.CleanupInterval).Msg("janitor: started")

	ticker := time.NewTicker(cfg.CleanupInterval)
	defer ticker.Stop()

	runCleanup(ctx, limiter, logger)
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("janitor: stopped")
			return
		case <-ticker.C:
			runCleanup(ctx, limiter, logger)
		}
	}
}

func runCleanup(ctx context.Context, limiter *ratelimit.Limiter, logger zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	if err := limiter.Cleanup(runCtx); err != nil {
		logger.Error().Err(err).Msg("janitor: cleanup failed")
	}
}
