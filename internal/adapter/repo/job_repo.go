package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pawtraits-dev/pawtraits-sub011/internal/domain"
)

// JobRepositoryPG implements domain.JobRepository.
type JobRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewJobRepository creates a new portrait job repository backed by PostgreSQL.
func NewJobRepository(pool *pgxpool.Pool) *JobRepositoryPG {
	return &JobRepositoryPG{pool: pool}
}

// Create inserts a new job record.
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.PortraitJob) error {
	query := `
INSERT INTO portrait_jobs (id, owner_key, status, subject_count, created_at)
VALUES ($1, $2, $3, $4, $5);
`
	_, err := r.pool.Exec(ctx, query,
		job.ID,
		job.OwnerKey,
		job.Status,
		job.SubjectCount,
		job.CreatedAt,
	)
	return err
}

// UpdateStatus moves a job to the given status, optionally recording an error message.
func (r *JobRepositoryPG) UpdateStatus(ctx context.Context, jobID string, status domain.JobStatus, errMsg *string) error {
	query := `
UPDATE portrait_jobs
SET status = $2,
    error_message = COALESCE($3, error_message),
    completed_at = CASE WHEN $2 IN ('complete', 'failed') THEN NOW() ELSE completed_at END
WHERE id = $1;
`
	_, err := r.pool.Exec(ctx, query, jobID, status, errMsg)
	return err
}

// Complete commits the successful outcome in a single write.
func (r *JobRepositoryPG) Complete(ctx context.Context, jobID, resultAssetID, previewURL string, completedAt time.Time) error {
	query := `
UPDATE portrait_jobs
SET status = $2,
    result_asset_id = $3,
    preview_url = $4,
    completed_at = $5
WHERE id = $1;
`
	_, err := r.pool.Exec(ctx, query, jobID, domain.JobStatusComplete, resultAssetID, previewURL, completedAt)
	return err
}

// GetByID fetches a job by its identifier.
func (r *JobRepositoryPG) GetByID(ctx context.Context, jobID string) (*domain.PortraitJob, error) {
	query := `
SELECT id, owner_key, status, subject_count,
       COALESCE(result_asset_id, ''), COALESCE(preview_url, ''), COALESCE(error_message, ''),
       access_count, created_at, completed_at
FROM portrait_jobs
WHERE id = $1;
`
	row := r.pool.QueryRow(ctx, query, jobID)
	var job domain.PortraitJob
	if err := row.Scan(
		&job.ID,
		&job.OwnerKey,
		&job.Status,
		&job.SubjectCount,
		&job.ResultAssetID,
		&job.PreviewURL,
		&job.ErrorMessage,
		&job.AccessCount,
		&job.CreatedAt,
		&job.CompletedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &job, nil
}

// IncrementAccess bumps the access counter without touching status.
func (r *JobRepositoryPG) IncrementAccess(ctx context.Context, jobID string) error {
	query := `
UPDATE portrait_jobs
SET access_count = access_count + 1
WHERE id = $1;
`
	_, err := r.pool.Exec(ctx, query, jobID)
	return err
}

var _ domain.JobRepository = (*JobRepositoryPG)(nil)
