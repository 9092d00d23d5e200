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


package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docroute/core"
	"github.com/poiesic/docroute/storage"
)

// JobRepository implements storage.JobRepository for BadgerDB.
type JobRepository struct {
	backend *Backend
}

var _ storage.JobRepository = (*JobRepository)(nil)

// NewJobRepository creates a new JobRepository.
func NewJobRepository(backend *Backend) *JobRepository {
	return &JobRepository{
		backend: backend,
	}
}

// Close is a no-op; the backend is owned by the caller.
func (r *JobRepository) Close() error {
	return nil
}

// SaveJob inserts or replaces a job and its fingerprint index entry.
func (r *JobRepository) SaveJob(ctx context.Context, job *core.ExtractionJob) error {
	if job.JobID == "" {
		return storage.ErrEmptyKey
	}
	job.UpdatedAt = time.Now().UTC()
	value, err := storage.MarshalJob(job)
	if err != nil {
		return err
	}

	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeJobKey(job.JobID), value); err != nil {
			return err
		}
		if fp := job.Document.Fingerprint; fp != "" {
			if err := tx.Set(makeJobFingerprintKey(fp), []byte(job.JobID)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// GetJob retrieves a job by ID.
func (r *JobRepository) GetJob(ctx context.Context, jobID string) (*core.ExtractionJob, error) {
	var job *core.ExtractionJob
	err := r.backend.get(makeJobKey(jobID), func(val []byte) error {
		var err error
		job, err = storage.UnmarshalJob(val)
		return err
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// FindJobByFingerprint resolves the fingerprint index and loads the job.
func (r *JobRepository) FindJobByFingerprint(ctx context.Context, fp core.Fingerprint) (*core.ExtractionJob, error) {
	var job *core.ExtractionJob
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var jobID string
		if err := readItem(tx, makeJobFingerprintKey(fp), func(val []byte) error {
			jobID = string(val)
			return nil
		}); err != nil {
			return err
		}
		return readItem(tx, makeJobKey(jobID), func(val []byte) error {
			var err error
			job, err = storage.UnmarshalJob(val)
			return err
		})
	}, false)
	if err != nil {
		return nil, err
	}
	return job, nil
}

// ListJobs returns jobs in the given state, or all jobs when state is empty.
func (r *JobRepository) ListJobs(ctx context.Context, state core.JobState) ([]*core.ExtractionJob, error) {
	var jobs []*core.ExtractionJob
	err := r.backend.scan(jobPrefix, func(val []byte) error {
		job, err := storage.UnmarshalJob(val)
		if err != nil {
			return err
		}
		if state == "" || job.State == state {
			jobs = append(jobs, job)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return jobs, nil
}
