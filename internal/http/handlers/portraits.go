package handlers

import (
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pawtraits-dev/pawtraits-sub011/internal/domain"
	"github.com/pawtraits-dev/pawtraits-sub011/internal/middleware"
	"github.com/pawtraits-dev/pawtraits-sub011/internal/portrait"
	"github.com/pawtraits-dev/pawtraits-sub011/pkg/archive"
)

// maxFormMemory caps the in-memory portion of multipart parsing; larger parts
// spill to disk. Per-asset byte limits are enforced by the portrait service.
const maxFormMemory = 32 << 20

type submitResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

type quotaResponse struct {
	Error             string `json:"error"`
	Message           string `json:"message"`
	RetryAfterSeconds int    `json:"retry_after_seconds"`
	ResetAt           string `json:"reset_at"`
}

// Submit accepts a single-pet portrait request: multipart form with a
// "reference" file, one or more "subject" files and optional styling fields.
func (a *App) Submit(w http.ResponseWriter, r *http.Request) {
	a.handleSubmit(w, r, false)
}

// SubmitPair accepts the two-pet variant: exactly two "subject" files.
func (a *App) SubmitPair(w http.ResponseWriter, r *http.Request) {
	a.handleSubmit(w, r, true)
}

func (a *App) handleSubmit(w http.ResponseWriter, r *http.Request, pair bool) {
	ownerKey := middleware.OwnerKeyFromContext(r.Context())
	if ownerKey == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing owner identity")
		return
	}
	clientKey := middleware.ClientKeyFromContext(r.Context())
	if clientKey == "" {
		clientKey = middleware.ClientKey(r)
	}

	req, err := parseSubmitForm(r)
	if err != nil {
		a.error(w, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}

	var job *domain.PortraitJob
	if pair {
		job, err = a.Portraits.SubmitPair(r.Context(), ownerKey, clientKey, req)
	} else {
		job, err = a.Portraits.Submit(r.Context(), ownerKey, clientKey, req)
	}
	if err != nil {
		var quota *portrait.QuotaError
		switch {
		case errors.As(err, &quota):
			retry := int(math.Ceil(quota.RetryAfter.Seconds()))
			w.Header().Set("Retry-After", fmt.Sprintf("%d", retry))
			a.json(w, http.StatusTooManyRequests, quotaResponse{
				Error:             "quota_exceeded",
				Message:           "generation limit reached, try again later",
				RetryAfterSeconds: retry,
				ResetAt:           quota.ResetAt.UTC().Format(time.RFC3339),
			})
		case errors.Is(err, domain.ErrInvalidInput):
			a.error(w, http.StatusBadRequest, "invalid_input", err.Error())
		default:
			a.Logger.Error().Err(err).Msg("portrait submit failed")
			a.error(w, http.StatusInternalServerError, "internal", "failed to accept portrait job")
		}
		return
	}

	a.Logger.Info().
		Str("job_id", job.ID).
		Int("subjects", job.SubjectCount).
		Str("country", middleware.CountryFromContext(r.Context())).
		Msg("portrait job accepted")

	// 202: the job row exists and generation has been kicked off.
	a.json(w, http.StatusAccepted, submitResponse{JobID: job.ID, Status: "generating"})
}

// Status returns the job's current state for polling. Safe to call
// repeatedly; terminal states never change once observed.
func (a *App) Status(w http.ResponseWriter, r *http.Request) {
	ownerKey := middleware.OwnerKeyFromContext(r.Context())
	if ownerKey == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing owner identity")
		return
	}
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "invalid_input", "job_id required")
		return
	}

	job, err := a.Portraits.Status(r.Context(), jobID, ownerKey)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			a.error(w, http.StatusNotFound, "not_found", "job not found")
		case errors.Is(err, domain.ErrForbidden):
			a.error(w, http.StatusForbidden, "forbidden", "job belongs to another owner")
		default:
			a.Logger.Error().Err(err).Str("job_id", jobID).Msg("portrait status failed")
			a.error(w, http.StatusInternalServerError, "internal", "failed to load job")
		}
		return
	}

	view := map[string]any{
		"id":            job.ID,
		"status":        job.Status,
		"subject_count": job.SubjectCount,
		"created_at":    job.CreatedAt,
	}
	if job.Status == domain.JobStatusComplete {
		view["result_url"] = a.Assets.URL(job.ResultAssetID)
		view["preview_url"] = job.PreviewURL
	}
	if job.Status == domain.JobStatusFailed {
		view["error_message"] = job.ErrorMessage
	}
	if job.CompletedAt != nil {
		view["completed_at"] = job.CompletedAt
	}
	a.json(w, http.StatusOK, view)
}

// Remaining reports the caller's remaining submissions in the current window.
// Fail-open like the limiter itself.
func (a *App) Remaining(w http.ResponseWriter, r *http.Request) {
	clientKey := middleware.ClientKeyFromContext(r.Context())
	if clientKey == "" {
		clientKey = middleware.ClientKey(r)
	}
	a.json(w, http.StatusOK, map[string]any{
		"limit":          a.Limiter.MaxRequests(),
		"remaining":      a.Limiter.Remaining(r.Context(), clientKey, portrait.EndpointSubmit),
		"window_seconds": int(a.Limiter.Window().Seconds()),
	})
}

// Download streams a zip of the finished portrait plus a small manifest.
func (a *App) Download(w http.ResponseWriter, r *http.Request) {
	ownerKey := middleware.OwnerKeyFromContext(r.Context())
	if ownerKey == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing owner identity")
		return
	}
	jobID := chi.URLParam(r, "job_id")

	job, err := a.Portraits.Status(r.Context(), jobID, ownerKey)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			a.error(w, http.StatusNotFound, "not_found", "job not found")
		case errors.Is(err, domain.ErrForbidden):
			a.error(w, http.StatusForbidden, "forbidden", "job belongs to another owner")
		default:
			a.error(w, http.StatusInternalServerError, "internal", "failed to load job")
		}
		return
	}
	if job.Status != domain.JobStatusComplete {
		a.error(w, http.StatusConflict, "not_ready", "portrait is not complete")
		return
	}

	data, mime, err := a.Assets.Read(r.Context(), job.ResultAssetID)
	if err != nil {
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("portrait download failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to read portrait asset")
		return
	}

	manifest := fmt.Sprintf("{\"job_id\":%q,\"preview_url\":%q,\"created_at\":%q}\n",
		job.ID, job.PreviewURL, job.CreatedAt.UTC().Format(time.RFC3339))
	payload := archive.Build([]archive.Entry{
		{Filename: "portrait" + archive.ExtensionForMIME(mime), Data: data},
		{Filename: "manifest.json", Data: []byte(manifest)},
	})

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=portrait-%s.zip", job.ID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func parseSubmitForm(r *http.Request) (portrait.SubmitRequest, error) {
	var req portrait.SubmitRequest
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		return req, fmt.Errorf("invalid multipart payload")
	}

	req.PetName = r.FormValue("pet_name")
	req.Style = r.FormValue("style")
	req.Background = r.FormValue("background")
	req.Notes = r.FormValue("notes")

	reference, err := readFormFile(r, "reference")
	if err != nil {
		return req, err
	}
	req.Reference = reference

	if r.MultipartForm != nil {
		names := r.Form["subject_name"]
		for i, header := range r.MultipartForm.File["subject"] {
			asset, err := readFileHeader(header)
			if err != nil {
				return req, err
			}
			if i < len(names) {
				asset.Name = names[i]
			}
			req.Subjects = append(req.Subjects, asset)
		}
	}
	return req, nil
}

func readFormFile(r *http.Request, field string) (domain.InputAsset, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			// Validation in the service reports the missing part precisely.
			return domain.InputAsset{}, nil
		}
		return domain.InputAsset{}, fmt.Errorf("read %s: invalid file part", field)
	}
	defer file.Close()
	return assetFromFile(file, header)
}

func readFileHeader(header *multipart.FileHeader) (domain.InputAsset, error) {
	file, err := header.Open()
	if err != nil {
		return domain.InputAsset{}, fmt.Errorf("read %s: invalid file part", header.Filename)
	}
	defer file.Close()
	return assetFromFile(file, header)
}

func assetFromFile(file multipart.File, header *multipart.FileHeader) (domain.InputAsset, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return domain.InputAsset{}, fmt.Errorf("read %s: %w", header.Filename, err)
	}
	return domain.InputAsset{
		Name: header.Filename,
		MIME: header.Header.Get("Content-Type"),
		Data: data,
	}, nil
}
