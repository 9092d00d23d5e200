package replay

import "errors"

var (
	// ErrHandlerRequired is returned when a Runner is created without a handler.
	ErrHandlerRequired = errors.New("completion handler is required")

	// ErrHandlerPanicked reports a handler that panicked on an event.
	ErrHandlerPanicked = errors.New("completion handler panicked")

	// ErrEmptyEvent is returned for a line that decodes to an empty object.
	ErrEmptyEvent = errors.New("event line is empty")
)
