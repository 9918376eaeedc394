package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pawtraits-dev/pawtraits-sub011/internal/domain"
)

// RateLimitRepositoryPG implements domain.RateLimitRepository on PostgreSQL.
// One row per (client_key, endpoint) pair; an expired bucket is reset in place
// by the upsert rather than accumulating history rows. The single-statement
// upsert is what makes concurrent RecordRequest calls safe: the database
// serializes the increment, so no read-modify-write race can lose a count.
type RateLimitRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewRateLimitRepository creates a rate limit repository backed by PostgreSQL.
func NewRateLimitRepository(pool *pgxpool.Pool) *RateLimitRepositoryPG {
	return &RateLimitRepositoryPG{pool: pool}
}

// CurrentWindow returns the stored window for the pair, expired or not.
func (r *RateLimitRepositoryPG) CurrentWindow(ctx context.Context, clientKey, endpoint string) (*domain.RateLimitWindow, error) {
	query := `
SELECT client_key, endpoint, window_start, request_count, blocked_until
FROM rate_limit_windows
WHERE client_key = $1 AND endpoint = $2;
`
	row := r.pool.QueryRow(ctx, query, clientKey, endpoint)
	var win domain.RateLimitWindow
	if err := row.Scan(&win.ClientKey, &win.Endpoint, &win.WindowStart, &win.RequestCount, &win.BlockedUntil); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &win, nil
}

// IncrementWindow atomically charges one request to the current window,
// starting a fresh bucket when none exists or the stored one has elapsed.
func (r *RateLimitRepositoryPG) IncrementWindow(ctx context.Context, clientKey, endpoint string, now, notBefore time.Time) (*domain.RateLimitWindow, error) {
	query := `
INSERT INTO rate_limit_windows (client_key, endpoint, window_start, request_count, blocked_until)
VALUES ($1, $2, $3, 1, NULL)
ON CONFLICT (client_key, endpoint) DO UPDATE
SET request_count = CASE WHEN rate_limit_windows.window_start <= $4 THEN 1
                         ELSE rate_limit_windows.request_count + 1 END,
    window_start  = CASE WHEN rate_limit_windows.window_start <= $4 THEN $3
                         ELSE rate_limit_windows.window_start END,
    blocked_until = CASE WHEN rate_limit_windows.window_start <= $4 THEN NULL
                         ELSE rate_limit_windows.blocked_until END
RETURNING client_key, endpoint, window_start, request_count, blocked_until;
`
	row := r.pool.QueryRow(ctx, query, clientKey, endpoint, now, notBefore)
	var win domain.RateLimitWindow
	if err := row.Scan(&win.ClientKey, &win.Endpoint, &win.WindowStart, &win.RequestCount, &win.BlockedUntil); err != nil {
		return nil, err
	}
	return &win, nil
}

// SetBlockedUntil pins the deny-until timestamp on the current window.
func (r *RateLimitRepositoryPG) SetBlockedUntil(ctx context.Context, clientKey, endpoint string, until time.Time) error {
	query := `
UPDATE rate_limit_windows
SET blocked_until = $3
WHERE client_key = $1 AND endpoint = $2 AND blocked_until IS NULL;
`
	_, err := r.pool.Exec(ctx, query, clientKey, endpoint, until)
	return err
}

// DeleteBefore removes windows whose start predates cutoff.
func (r *RateLimitRepositoryPG) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
DELETE FROM rate_limit_windows
WHERE window_start < $1;
`
	tag, err := r.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

var _ domain.RateLimitRepository = (*RateLimitRepositoryPG)(nil)
