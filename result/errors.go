package result

import "errors"

var (
	// ErrNoOutputLocation is returned when neither the event nor a correlation
	// record says where the result was written.
	ErrNoOutputLocation = errors.New("no output location")

	// ErrUnknownSchemaVersion is returned for an unregistered result schema version.
	ErrUnknownSchemaVersion = errors.New("unknown result schema version")

	// ErrOutsideRoot is returned by FileStore for a reference that escapes its root.
	ErrOutsideRoot = errors.New("artifact path outside store root")
)
