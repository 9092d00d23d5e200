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


package storage

import (
	"encoding/json"
	"fmt"

	"github.com/poiesic/docroute/core"
)

// MarshalJob serializes an ExtractionJob to bytes.
func MarshalJob(job *core.ExtractionJob) ([]byte, error) {
	return marshal(job)
}

// UnmarshalJob deserializes an ExtractionJob from bytes.
func UnmarshalJob(data []byte) (*core.ExtractionJob, error) {
	var job core.ExtractionJob
	if err := unmarshal(data, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// MarshalRecord serializes an ExtractionRecord to bytes.
func MarshalRecord(record *core.ExtractionRecord) ([]byte, error) {
	return marshal(record)
}

// UnmarshalRecord deserializes an ExtractionRecord from bytes.
func UnmarshalRecord(data []byte) (*core.ExtractionRecord, error) {
	var record core.ExtractionRecord
	if err := unmarshal(data, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// MarshalReview serializes a ReviewTask to bytes.
func MarshalReview(task *core.ReviewTask) ([]byte, error) {
	return marshal(task)
}

// UnmarshalReview deserializes a ReviewTask from bytes.
func UnmarshalReview(data []byte) (*core.ReviewTask, error) {
	var task core.ReviewTask
	if err := unmarshal(data, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return data, nil
}

func unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return nil
}
