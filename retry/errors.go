package retry

import "errors"

var (
	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrInvalidBaseDelay is returned when a policy has a negative base delay
	ErrInvalidBaseDelay = errors.New("base delay cannot be negative")
)
