package routing

import "errors"

var (
	// ErrReviewNotConfigured is returned when a record needs review but no
	// review workflow is configured.
	ErrReviewNotConfigured = errors.New("review workflow not configured")

	// ErrStorageSinkRequired is returned when a storage sink is not provided.
	ErrStorageSinkRequired = errors.New("storage sink required")

	// ErrReviewSinkRequired is returned when a review workflow is configured
	// without a review sink to deliver to.
	ErrReviewSinkRequired = errors.New("review sink required")
)
