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

// Repositories bundles every BadgerDB repository sharing one backend.
type Repositories struct {
	Backend *Backend
	Jobs    *JobRepository
	Records *RecordRepository
	Reviews *ReviewRepository
}

// OpenRepositories opens a backend at filePath (in memory when filePath is
// empty) and creates all repositories on top of it.
func OpenRepositories(filePath string) (*Repositories, error) {
	backend, err := OpenBackend(filePath, filePath == "")
	if err != nil {
		return nil, err
	}
	return &Repositories{
		Backend: backend,
		Jobs:    NewJobRepository(backend),
		Records: NewRecordRepository(backend),
		Reviews: NewReviewRepository(backend),
	}, nil
}

// NewMemoryRepositories creates in-memory repositories for testing.
// Caller must Close the result when done.
func NewMemoryRepositories() (*Repositories, error) {
	return OpenRepositories("")
}

// Close closes the repositories and then the shared backend.
func (r *Repositories) Close() error {
	r.Reviews.Close()
	r.Records.Close()
	r.Jobs.Close()
	return r.Backend.Close()
}
