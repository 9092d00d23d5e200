package extraction

import "errors"

var (
	// ErrClientRequired is returned when an extraction client is not provided.
	ErrClientRequired = errors.New("extraction client required")

	// ErrJobRepositoryRequired is returned when a job repository is not provided.
	ErrJobRepositoryRequired = errors.New("job repository required")

	// ErrConfigRequired is returned when a configuration is not provided.
	ErrConfigRequired = errors.New("config required")

	// ErrEmptyHandle is returned when the service accepts a job without identifying it.
	ErrEmptyHandle = errors.New("extraction service returned an empty job handle")
)
