package completion

import "errors"

var (
	// ErrUnknownJob is returned when a completion event has no correlation
	// record and carries no output location to adopt it from.
	ErrUnknownJob = errors.New("unknown extraction job")

	// ErrJobFailed is returned when the extraction service reports failure.
	ErrJobFailed = errors.New("extraction job failed")

	// ErrConfigRequired is returned when a configuration is not provided.
	ErrConfigRequired = errors.New("config required")

	// ErrJobRepositoryRequired is returned when a job repository is not provided.
	ErrJobRepositoryRequired = errors.New("job repository required")

	// ErrArtifactStoreRequired is returned when an artifact store is not provided.
	ErrArtifactStoreRequired = errors.New("artifact store required")

	// ErrRouterRequired is returned when a router is not provided.
	ErrRouterRequired = errors.New("router required")
)
