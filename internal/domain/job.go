package domain

import "time"

// JobStatus enumerates portrait job lifecycle states.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusGenerating JobStatus = "generating"
	JobStatusComplete   JobStatus = "complete"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether the status admits no further transition.
func (s JobStatus) Terminal() bool {
	return s == JobStatusComplete || s == JobStatusFailed
}

// InputAsset is one uploaded source image. The bytes live in memory only for
// the duration of the background run; they are never persisted on the job row.
type InputAsset struct {
	Name string
	MIME string
	Data []byte
}

// InputRefs groups the images a portrait is composed from: one reference
// artwork and one or more pet photos.
type InputRefs struct {
	Reference InputAsset
	Subjects  []InputAsset
}

// PortraitJob tracks a single asynchronous composition from submission to a
// terminal state. Status only moves forward (pending -> generating ->
// complete|failed); ResultAssetID and PreviewURL are set iff complete,
// ErrorMessage iff failed. After creation the row is mutated only by the one
// background goroutine that owns the run, except for access bookkeeping.
type PortraitJob struct {
	ID            string
	OwnerKey      string
	Status        JobStatus
	SubjectCount  int
	ResultAssetID string
	PreviewURL    string
	ErrorMessage  string
	AccessCount   int
	CreatedAt     time.Time
	CompletedAt   *time.Time
}
