// Package ratelimit implements a persistent fixed-window rate limit for the
// portrait generation endpoints. The window is a non-overlapping bucket keyed
// by the first request, not a rolling window: a burst just before a boundary
// plus one just after can reach up to twice the nominal rate. That is accepted
// behavior, documented here once.
//
// The limiter fails open: when the backing store errors, requests are allowed.
// The gate protects a convenience feature, not a security boundary.
package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/pawtraits-dev/pawtraits-sub011/internal/domain"
)

// Config carries the limiter settings. Environment or file loading happens
// entirely outside this package.
type Config struct {
	MaxRequests int
	Window      time.Duration
}

const (
	DefaultMaxRequests = 3
	DefaultWindow      = time.Hour

	// Windows older than retentionFactor times the window length are eligible
	// for cleanup.
	retentionFactor = 24
)

func (c Config) withDefaults() Config {
	if c.MaxRequests <= 0 {
		c.MaxRequests = DefaultMaxRequests
	}
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	return c
}

// Decision is the outcome of a limit check.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
	ResetAt    time.Time
}

// Limiter decides, per (client key, endpoint) pair, whether a request may
// proceed. All state lives in the repository so multiple instances share one
// view of the counters.
type Limiter struct {
	repo   domain.RateLimitRepository
	cfg    Config
	logger zerolog.Logger
	now    func() time.Time
}

// NewLimiter constructs a limiter over the given repository. Zero-valued
// config fields fall back to 3 requests per hour.
func NewLimiter(repo domain.RateLimitRepository, cfg Config, logger zerolog.Logger) *Limiter {
	return &Limiter{
		repo:   repo,
		cfg:    cfg.withDefaults(),
		logger: logger,
		now:    time.Now,
	}
}

// CheckLimit reports whether a request for the pair may proceed. The check
// itself never consumes a slot; callers that go on to start the guarded
// operation must follow up with RecordRequest.
func (l *Limiter) CheckLimit(ctx context.Context, clientKey, endpoint string) Decision {
	now := l.now()

	win, err := l.repo.CurrentWindow(ctx, clientKey, endpoint)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return Decision{Allowed: true, Remaining: l.cfg.MaxRequests - 1}
		}
		// Fail open.
		l.logger.Error().Err(err).Str("client_key", clientKey).Str("endpoint", endpoint).
			Msg("ratelimit: check failed, allowing request")
		return Decision{Allowed: true, Remaining: l.cfg.MaxRequests}
	}

	if win.Expired(now, l.cfg.Window) {
		// Stale bucket; the next RecordRequest starts a fresh one.
		return Decision{Allowed: true, Remaining: l.cfg.MaxRequests - 1}
	}

	if win.BlockedUntil != nil && win.BlockedUntil.After(now) {
		return Decision{
			Allowed:    false,
			RetryAfter: win.BlockedUntil.Sub(now),
			ResetAt:    *win.BlockedUntil,
		}
	}

	if win.RequestCount < l.cfg.MaxRequests {
		return Decision{
			Allowed:   true,
			Remaining: l.cfg.MaxRequests - win.RequestCount - 1,
			ResetAt:   win.End(l.cfg.Window),
		}
	}

	// Limit reached; pin the block so later checks short-circuit without
	// recounting. Best effort, the decision stands either way.
	end := win.End(l.cfg.Window)
	if win.BlockedUntil == nil {
		if err := l.repo.SetBlockedUntil(ctx, clientKey, endpoint, end); err != nil {
			l.logger.Warn().Err(err).Str("client_key", clientKey).Msg("ratelimit: failed to persist block")
		}
	}
	return Decision{
		Allowed:    false,
		RetryAfter: end.Sub(now),
		ResetAt:    end,
	}
}

// RecordRequest charges one slot in the current window, creating the window
// if needed. Call it only after CheckLimit allowed the request and the guarded
// operation is committed to; a request rejected for unrelated reasons must not
// consume quota. Storage errors are logged and swallowed (fail open).
func (l *Limiter) RecordRequest(ctx context.Context, clientKey, endpoint string) {
	now := l.now()
	if _, err := l.repo.IncrementWindow(ctx, clientKey, endpoint, now, now.Add(-l.cfg.Window)); err != nil {
		l.logger.Error().Err(err).Str("client_key", clientKey).Str("endpoint", endpoint).
			Msg("ratelimit: record failed")
	}
}

// Remaining reports how many requests the pair has left in its current window.
// Read-only; defaults to the full limit on absence or any storage error.
func (l *Limiter) Remaining(ctx context.Context, clientKey, endpoint string) int {
	now := l.now()

	win, err := l.repo.CurrentWindow(ctx, clientKey, endpoint)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			l.logger.Error().Err(err).Str("client_key", clientKey).Msg("ratelimit: remaining check failed")
		}
		return l.cfg.MaxRequests
	}
	if win.Expired(now, l.cfg.Window) {
		return l.cfg.MaxRequests
	}
	if remaining := l.cfg.MaxRequests - win.RequestCount; remaining > 0 {
		return remaining
	}
	return 0
}

// Cleanup deletes windows beyond the retention horizon. Purely advisory
// maintenance; a missed run never affects limiter decisions.
func (l *Limiter) Cleanup(ctx context.Context) error {
	cutoff := l.now().Add(-time.Duration(retentionFactor) * l.cfg.Window)
	deleted, err := l.repo.DeleteBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	if deleted > 0 {
		l.logger.Info().Int64("deleted", deleted).Msg("ratelimit: cleaned up expired windows")
	}
	return nil
}

// Window exposes the configured window length, for callers that report reset
// times.
func (l *Limiter) Window() time.Duration { return l.cfg.Window }

// MaxRequests exposes the configured per-window limit.
func (l *Limiter) MaxRequests() int { return l.cfg.MaxRequests }
