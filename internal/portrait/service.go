// Package portrait orchestrates asynchronous portrait composition: quota
// check, job creation, detached background execution and polled status.
package portrait

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pawtraits-dev/pawtraits-sub011/internal/domain"
	"github.com/pawtraits-dev/pawtraits-sub011/internal/ratelimit"
)

// Endpoint patterns used as the limiter's bucket keys. Each submission shape
// gets its own window.
const (
	EndpointSubmit = "POST /v1/portraits"
	EndpointPair   = "POST /v1/portraits/pair"
)

// Composer produces a portrait from an instruction and source images. It may
// fail, hang or return malformed output; the service treats it as opaque and
// guards it with a timeout.
type Composer interface {
	Compose(ctx context.Context, instruction string, images []domain.InputAsset) ([]byte, error)
}

// AssetStore persists generated bytes and derives fetchable URLs.
type AssetStore interface {
	Store(ctx context.Context, data []byte, mime, jobID string) (string, error)
	URL(assetID string) string
	PreviewURL(assetID, variant string) string
}

// Config carries the service knobs. Zero values get sensible defaults.
type Config struct {
	MaxAssetBytes  int64
	MaxSubjects    int
	ComposeTimeout time.Duration
	// MaxConcurrent caps in-flight background runs. Zero means unbounded:
	// each accepted job gets its own goroutine.
	MaxConcurrent  int
	PreviewVariant string
}

func (c Config) withDefaults() Config {
	if c.MaxAssetBytes <= 0 {
		c.MaxAssetBytes = 8 << 20
	}
	if c.MaxSubjects <= 0 {
		c.MaxSubjects = 4
	}
	if c.ComposeTimeout <= 0 {
		c.ComposeTimeout = 2 * time.Minute
	}
	if c.PreviewVariant == "" {
		c.PreviewVariant = "watermarked"
	}
	return c
}

// SubmitRequest is one portrait submission: a reference artwork, pet photos
// and optional styling hints.
type SubmitRequest struct {
	PetName    string
	Style      string
	Background string
	Notes      string
	Reference  domain.InputAsset
	Subjects   []domain.InputAsset
}

// QuotaError carries retry guidance for a rate-limited submission.
type QuotaError struct {
	RetryAfter time.Duration
	ResetAt    time.Time
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("quota exceeded, retry in %s", e.RetryAfter.Round(time.Second))
}

func (e *QuotaError) Unwrap() error { return domain.ErrQuotaExceeded }

// Service is the job controller. Submissions return as soon as the job row
// exists; a single detached goroutine per job owns every later transition.
type Service struct {
	cfg      Config
	jobs     domain.JobRepository
	limiter  *ratelimit.Limiter
	composer Composer
	assets   AssetStore
	logger   zerolog.Logger

	slots chan struct{}
	wg    sync.WaitGroup
	now   func() time.Time
}

// NewService wires the controller. limiter, composer and assets must be
// non-nil; jobs is the persistence boundary everything flows through.
func NewService(cfg Config, jobs domain.JobRepository, limiter *ratelimit.Limiter, composer Composer, assets AssetStore, logger zerolog.Logger) *Service {
	cfg = cfg.withDefaults()
	s := &Service{
		cfg:      cfg,
		jobs:     jobs,
		limiter:  limiter,
		composer: composer,
		assets:   assets,
		logger:   logger,
		now:      time.Now,
	}
	if cfg.MaxConcurrent > 0 {
		s.slots = make(chan struct{}, cfg.MaxConcurrent)
	}
	return s
}

// Submit validates and accepts a single-pet submission. On success the job is
// persisted as pending, one quota slot is charged, and the background run is
// already launched; the returned job reflects the state at creation.
func (s *Service) Submit(ctx context.Context, ownerKey, clientKey string, req SubmitRequest) (*domain.PortraitJob, error) {
	if err := validateSubmit(req, s.cfg.MaxAssetBytes, 1, s.cfg.MaxSubjects); err != nil {
		return nil, err
	}
	return s.accept(ctx, ownerKey, clientKey, EndpointSubmit, req, BuildInstruction(req))
}

// SubmitPair accepts the two-pet variant: exactly two subject photos and a
// pair instruction template. Everything after acceptance is the same state
// machine as Submit.
func (s *Service) SubmitPair(ctx context.Context, ownerKey, clientKey string, req SubmitRequest) (*domain.PortraitJob, error) {
	if err := validateSubmit(req, s.cfg.MaxAssetBytes, 2, 2); err != nil {
		return nil, err
	}
	return s.accept(ctx, ownerKey, clientKey, EndpointPair, req, BuildPairInstruction(req))
}

func (s *Service) accept(ctx context.Context, ownerKey, clientKey, endpoint string, req SubmitRequest, instruction string) (*domain.PortraitJob, error) {
	if ownerKey == "" {
		return nil, fmt.Errorf("%w: owner key is required", domain.ErrInvalidInput)
	}

	decision := s.limiter.CheckLimit(ctx, clientKey, endpoint)
	if !decision.Allowed {
		return nil, &QuotaError{RetryAfter: decision.RetryAfter, ResetAt: decision.ResetAt}
	}

	job := &domain.PortraitJob{
		ID:           uuid.NewString(),
		OwnerKey:     ownerKey,
		Status:       domain.JobStatusPending,
		SubjectCount: len(req.Subjects),
		CreatedAt:    s.now(),
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create portrait job: %w", err)
	}

	// The request is now accepted for processing, so it pays for its slot.
	s.limiter.RecordRequest(ctx, clientKey, endpoint)

	refs := domain.InputRefs{Reference: req.Reference, Subjects: req.Subjects}
	s.wg.Add(1)
	go s.run(job.ID, instruction, refs)

	return job, nil
}

// run is the single owner of the job's transitions after creation. It is
// detached from the originating request and must itself guarantee the row
// reaches a terminal state; nobody awaits it.
func (s *Service) run(jobID, instruction string, refs domain.InputRefs) {
	defer s.wg.Done()
	if s.slots != nil {
		s.slots <- struct{}{}
		defer func() { <-s.slots }()
	}
	ctx := context.Background()

	if err := s.jobs.UpdateStatus(ctx, jobID, domain.JobStatusGenerating, nil); err != nil {
		s.logger.Error().Err(err).Str("job_id", jobID).Msg("portrait: failed to mark generating")
		s.fail(ctx, jobID, "internal error before generation started")
		return
	}

	images := make([]domain.InputAsset, 0, len(refs.Subjects)+1)
	images = append(images, refs.Reference)
	images = append(images, refs.Subjects...)

	cctx, cancel := context.WithTimeout(ctx, s.cfg.ComposeTimeout)
	data, err := s.composer.Compose(cctx, instruction, images)
	cancel()
	if err != nil {
		msg := "portrait generation failed: " + err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			msg = fmt.Sprintf("portrait generation timed out after %s", s.cfg.ComposeTimeout)
		}
		s.fail(ctx, jobID, msg)
		return
	}
	if len(data) == 0 {
		s.fail(ctx, jobID, "portrait generation returned no image")
		return
	}

	assetID, err := s.assets.Store(ctx, data, http.DetectContentType(data), jobID)
	if err != nil {
		s.fail(ctx, jobID, "failed to store generated portrait: "+err.Error())
		return
	}
	previewURL := s.assets.PreviewURL(assetID, s.cfg.PreviewVariant)

	// Single commit point. If this write is lost the uploaded asset is
	// orphaned and the job reads as failed; recovery is a fresh submission.
	if err := s.jobs.Complete(ctx, jobID, assetID, previewURL, s.now()); err != nil {
		s.logger.Error().Err(err).Str("job_id", jobID).Str("asset_id", assetID).
			Msg("portrait: result commit failed, asset orphaned")
		s.fail(ctx, jobID, "failed to record generated portrait")
		return
	}
	s.logger.Info().Str("job_id", jobID).Str("asset_id", assetID).Msg("portrait: job complete")
}

func (s *Service) fail(ctx context.Context, jobID, msg string) {
	if err := s.jobs.UpdateStatus(ctx, jobID, domain.JobStatusFailed, &msg); err != nil {
		s.logger.Error().Err(err).Str("job_id", jobID).Msg("portrait: failed to record failure")
		return
	}
	s.logger.Warn().Str("job_id", jobID).Str("reason", msg).Msg("portrait: job failed")
}

// Status returns the job as currently persisted. Ownership is enforced by
// exact owner key match; a mismatch is domain.ErrForbidden, distinct from
// domain.ErrNotFound. Reads bump the access counter but never touch status.
func (s *Service) Status(ctx context.Context, jobID, ownerKey string) (*domain.PortraitJob, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.OwnerKey != ownerKey {
		return nil, domain.ErrForbidden
	}
	if err := s.jobs.IncrementAccess(ctx, jobID); err != nil {
		s.logger.Warn().Err(err).Str("job_id", jobID).Msg("portrait: access bump failed")
	}
	return job, nil
}

// Wait blocks until all in-flight background runs have reached a terminal
// state. Used for graceful shutdown and by tests.
func (s *Service) Wait() {
	s.wg.Wait()
}
