package badger

import (
	"github.com/poiesic/docroute/core"
)

// Key prefixes for different data types
const (
	jobPrefix            = "job:"
	jobFingerprintPrefix = "jobfp:"
	recordPrefix         = "rec:"
	reviewPrefix         = "rev:"
)

// makeJobKey generates a key for an extraction job by ID.
func makeJobKey(jobID string) []byte {
	return []byte(jobPrefix + jobID)
}

// makeJobFingerprintKey generates the index key mapping a document fingerprint to its job.
// Format: prefix:fingerprint
func makeJobFingerprintKey(fp core.Fingerprint) []byte {
	return []byte(jobFingerprintPrefix + string(fp))
}

// makeRecordKey generates a key for an extraction record by ID.
func makeRecordKey(id string) []byte {
	return []byte(recordPrefix + id)
}

// makeReviewKey generates a key for a review task by ID.
func makeReviewKey(id string) []byte {
	return []byte(reviewPrefix + id)
}
