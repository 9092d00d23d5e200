// Package retry runs operations with bounded exponential backoff.
//
// Do consults core.IsRetryable so that only transient failures and missing
// artifacts are retried; permanent and malformed-result failures return on
// the first attempt.
package retry
