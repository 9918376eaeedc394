package domain

import (
	"context"
	"time"
)

// JobRepository defines persistence for portrait jobs.
type JobRepository interface {
	Create(ctx context.Context, job *PortraitJob) error
	// UpdateStatus moves the job to the given status, recording an error
	// message when one is provided.
	UpdateStatus(ctx context.Context, jobID string, status JobStatus, errMsg *string) error
	// Complete is the single commit point for a successful run: result asset,
	// preview URL, terminal status and completion time in one write.
	Complete(ctx context.Context, jobID, resultAssetID, previewURL string, completedAt time.Time) error
	GetByID(ctx context.Context, jobID string) (*PortraitJob, error)
	// IncrementAccess bumps the read counter. It never touches status.
	IncrementAccess(ctx context.Context, jobID string) error
}

// RateLimitRepository persists fixed-window counters. Implementations keep at
// most one current window per (clientKey, endpoint) pair and must serialize
// IncrementWindow so concurrent callers never lose increments.
type RateLimitRepository interface {
	// CurrentWindow returns the stored window for the pair, expired or not.
	// ErrNotFound when the pair has never been seen (or was cleaned up).
	CurrentWindow(ctx context.Context, clientKey, endpoint string) (*RateLimitWindow, error)
	// IncrementWindow atomically increments the counter of the window that is
	// current at now, starting a fresh bucket (count 1, start = now) when none
	// exists or the stored one has elapsed. notBefore is the oldest start a
	// window may have and still count (now minus the window length).
	IncrementWindow(ctx context.Context, clientKey, endpoint string, now, notBefore time.Time) (*RateLimitWindow, error)
	// SetBlockedUntil pins the deny-until timestamp on the current window.
	SetBlockedUntil(ctx context.Context, clientKey, endpoint string, until time.Time) error
	// DeleteBefore removes windows whose start predates cutoff. Advisory
	// maintenance; correctness never depends on it.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
