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


package extraction

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/poiesic/docroute/config"
	"github.com/poiesic/docroute/core"
)

// Client starts extraction jobs. Implementations return immediately once the
// service has accepted the job.
//
// Throttling and network faults are reported as core.TransientError;
// rejected or malformed requests as core.PermanentError.
type Client interface {
	Submit(ctx context.Context, req *Request) (*Handle, error)
}

// Request describes one extraction job.
type Request struct {
	Document       *core.Document
	Target         string         // Extraction project identifier
	Profile        string         // Execution profile identifier
	OutputLocation core.ObjectRef // Where the service should write results
	ClientToken    string         // Idempotency token; identical tokens start one job
}

// Handle identifies a submitted job.
type Handle struct {
	JobID string
	ARN   string
}

var clientTokenNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/poiesic/docroute/client-token"))

// ClientToken derives the idempotency token for a document fingerprint.
func ClientToken(fp core.Fingerprint) string {
	return uuid.NewSHA1(clientTokenNamespace, []byte(fp)).String()
}

// PredictOutputLocation returns the output prefix a job for doc will write under:
// {OutputPrefix}{docID}_{YYYYmmdd_HHMMSS}/ in the configured output bucket.
// The timestamp comes from the ingestion time, so redelivered events predict
// the same location.
func PredictOutputLocation(cfg *config.Config, doc *core.Document) core.ObjectRef {
	name := strings.Join(strings.Fields(doc.ID), "_")
	stamp := doc.IngestedAt.UTC().Format("20060102_150405")
	return core.ObjectRef{
		Bucket: cfg.OutputBucket,
		Key:    cfg.OutputPrefix + name + "_" + stamp + "/",
	}
}
