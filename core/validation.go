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
	"fmt"
	"strings"
)

// ValidateDocumentEvent validates a new-document event.
//
// Validation rules:
//   - Bucket must not be empty
//   - Key must not be empty and must name an object, not a prefix
//
// NOT validated:
//   - EventTime (zero is tolerated; the submitter substitutes the current time)
func ValidateDocumentEvent(event *DocumentEvent) error {
	if event == nil {
		return fmt.Errorf("%w: event is nil", ErrInvalidDocumentEvent)
	}

	if event.Bucket == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocumentEvent, ErrEmptyBucket)
	}

	if event.Key == "" || strings.HasSuffix(event.Key, "/") || DocumentIDFromKey(event.Key) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocumentEvent, ErrEmptyKey)
	}

	return nil
}

// ValidateCompletionEvent validates a job-completion notification.
//
// Validation rules:
//   - JobID must not be empty
//   - Status must be SUCCESS or FAILURE
func ValidateCompletionEvent(event *CompletionEvent) error {
	if event == nil {
		return fmt.Errorf("%w: event is nil", ErrInvalidCompletionEvent)
	}

	if event.JobID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidCompletionEvent, ErrEmptyJobID)
	}

	if err := ValidateJobStatus(event.Status); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCompletionEvent, err)
	}

	return nil
}

// ValidateJobStatus validates that a JobStatus has a known terminal value.
func ValidateJobStatus(status JobStatus) error {
	if status != JobStatusSuccess && status != JobStatusFailure {
		return fmt.Errorf("%w: value %q", ErrInvalidJobStatus, status)
	}
	return nil
}

// ValidateField validates an extracted field's confidence.
func ValidateField(field ExtractedField) error {
	if field.Confidence < 0 || field.Confidence > 1 {
		return fmt.Errorf("%w: field %q has %v", ErrInvalidConfidence, field.Name, field.Confidence)
	}
	return nil
}
