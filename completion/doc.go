// Package completion handles extraction-job completion notifications.
//
// A Listener correlates the notification with the job recorded at
// submission, locates and fetches the result artifact, parses it into an
// extraction record and hands the record to the router. Handling is
// idempotent: a job that already completed returns its stored outcome, and
// every sink write is keyed by a stable identifier.
package completion
