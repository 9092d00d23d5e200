package storage

import (
	"context"

	"github.com/poiesic/docroute/core"
)

// JobRepository is the durable correlation store linking extraction jobs to documents.
// Implementations must be thread-safe and support concurrent access.
type JobRepository interface {
	// SaveJob inserts or replaces a job keyed by JobID.
	// Also indexes the job by its document fingerprint.
	// Sets UpdatedAt automatically.
	SaveJob(ctx context.Context, job *core.ExtractionJob) error

	// GetJob retrieves a job by ID.
	// Returns ErrNotFound if the job doesn't exist.
	GetJob(ctx context.Context, jobID string) (*core.ExtractionJob, error)

	// FindJobByFingerprint retrieves the job submitted for a document fingerprint.
	// Returns ErrNotFound if no job was submitted for it.
	FindJobByFingerprint(ctx context.Context, fingerprint core.Fingerprint) (*core.ExtractionJob, error)

	// ListJobs returns all jobs in the given state, or all jobs when state is empty.
	ListJobs(ctx context.Context, state core.JobState) ([]*core.ExtractionJob, error)

	// Close releases resources held by the repository.
	Close() error
}

// RecordRepository stores routed extraction records.
type RecordRepository interface {
	// UpsertRecord inserts or replaces a record keyed by its ID.
	// Writing the same record twice leaves exactly one copy.
	UpsertRecord(ctx context.Context, record *core.ExtractionRecord) error

	// GetRecord retrieves a record by ID.
	// Returns ErrNotFound if the record doesn't exist.
	GetRecord(ctx context.Context, id string) (*core.ExtractionRecord, error)

	// ListRecords returns all records ordered by ID.
	ListRecords(ctx context.Context) ([]*core.ExtractionRecord, error)

	// Close releases resources held by the repository.
	Close() error
}

// ReviewRepository is a local queue of tasks awaiting human review.
type ReviewRepository interface {
	// SubmitReview inserts or replaces a task keyed by its ID and returns a ticket
	// identifying it. Resubmitting a task returns the same ticket.
	SubmitReview(ctx context.Context, task *core.ReviewTask) (string, error)

	// GetReview retrieves a task by ID.
	// Returns ErrNotFound if the task doesn't exist.
	GetReview(ctx context.Context, id string) (*core.ReviewTask, error)

	// ListReviews returns all queued tasks ordered by ID.
	ListReviews(ctx context.Context) ([]*core.ReviewTask, error)

	// Close releases resources held by the repository.
	Close() error
}
