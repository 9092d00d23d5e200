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


// Package storage provides the storage abstraction layer for docroute.
//
// This package defines repository interfaces that decouple persistence from
// the submission and completion logic. Two families of backends implement
// them: storage/badger for a local embedded store, and the cloud package for
// DynamoDB-backed tables.
//
// # Architecture
//
//   - JobRepository: the correlation store written at submission time and
//     read by the completion listener
//   - RecordRepository: the local storage sink for routed records
//   - ReviewRepository: the local review queue
//
// # Write Semantics
//
// Every write is an upsert keyed by a stable identifier (job ID, record ID,
// review task ID). Concurrent writers of the same key converge on one value
// and never produce duplicates, so no invocation-level locking is needed.
//
// # Usage
//
// Use in tests with in-memory storage:
//
//	repos, err := badger.NewMemoryRepositories()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer repos.Close()
//
// # Context Support
//
// All repository methods accept context.Context for cancellation
// and timeout support.
package storage
