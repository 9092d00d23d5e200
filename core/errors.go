// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"errors"
	"fmt"
)

// Domain validation errors
var (
	// ErrInvalidDocumentEvent indicates a new-document event failed validation.
	ErrInvalidDocumentEvent = errors.New("invalid document event")

	// ErrInvalidCompletionEvent indicates a completion event failed validation.
	ErrInvalidCompletionEvent = errors.New("invalid completion event")

	// ErrEmptyBucket indicates the storage location is empty.
	ErrEmptyBucket = errors.New("bucket cannot be empty")

	// ErrEmptyKey indicates the object key is empty.
	ErrEmptyKey = errors.New("object key cannot be empty")

	// ErrEmptyJobID indicates the job identifier is empty.
	ErrEmptyJobID = errors.New("job id cannot be empty")

	// ErrInvalidJobStatus indicates an unknown terminal job status.
	ErrInvalidJobStatus = errors.New("invalid job status")

	// ErrInvalidConfidence indicates a confidence outside [0,1].
	ErrInvalidConfidence = errors.New("confidence must be between 0 and 1")
)

// TransientError wraps a failure that may succeed on retry:
// throttling, network faults, server-side errors.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient failure in %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError wraps a failure that will not change on retry:
// malformed input, missing configuration, rejected requests.
type PermanentError struct {
	Op  string
	Err error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent failure in %s: %v", e.Op, e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// MissingArtifactError reports that a result artifact is not (yet) visible.
type MissingArtifactError struct {
	Location ObjectRef
	Err      error
}

func (e *MissingArtifactError) Error() string {
	return fmt.Sprintf("result artifact not found: %s", e.Location.URI())
}

func (e *MissingArtifactError) Unwrap() error { return e.Err }

// MalformedResultError reports an unparseable or schema-violating result artifact.
// Payload holds the raw bytes as read.
type MalformedResultError struct {
	Reason  string
	Payload []byte
	Err     error
}

func (e *MalformedResultError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed result: %s: %v", e.Reason, e.Err)
	}
	return "malformed result: " + e.Reason
}

func (e *MalformedResultError) Unwrap() error { return e.Err }

// Transient wraps err as a TransientError. Returns nil if err is nil.
func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Op: op, Err: err}
}

// Permanent wraps err as a PermanentError. Returns nil if err is nil.
func Permanent(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Op: op, Err: err}
}

// IsRetryable reports whether err is worth retrying.
// Only transient failures and missing artifacts qualify; a PermanentError
// anywhere in the chain wins over a transient cause.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var permanent *PermanentError
	if errors.As(err, &permanent) {
		return false
	}
	var malformed *MalformedResultError
	if errors.As(err, &malformed) {
		return false
	}
	var transient *TransientError
	if errors.As(err, &transient) {
		return true
	}
	var missing *MissingArtifactError
	return errors.As(err, &missing)
}

// IsPermanent reports whether err must not be retried by the caller's caller either.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	var permanent *PermanentError
	if errors.As(err, &permanent) {
		return true
	}
	var malformed *MalformedResultError
	return errors.As(err, &malformed)
}
