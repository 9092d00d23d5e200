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


package cloud

import (
	"context"
	"errors"

	awsretry "github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/aws/smithy-go"
	"github.com/poiesic/docroute/core"
)

var (
	// ErrClientRequired indicates a nil SDK client was passed to an adapter.
	ErrClientRequired = errors.New("aws client required")

	// ErrTableRequired indicates an empty DynamoDB table name.
	ErrTableRequired = errors.New("table name required")

	// ErrAccountRequired indicates the default extraction profile cannot be derived.
	ErrAccountRequired = errors.New("account id required to derive extraction profile")

	// ErrMissingDetail indicates a completion event without a usable detail payload.
	ErrMissingDetail = errors.New("event detail missing")
)

// retryableCodes are error codes worth retrying that some services report
// without a server fault.
var retryableCodes = map[string]struct{}{
	"InternalServerException":      {},
	"InternalServerError":          {},
	"InternalFailure":              {},
	"ServiceUnavailable":           {},
	"ServiceUnavailableException":  {},
	"TransactionConflictException": {},
}

// classify maps an SDK error onto the pipeline's error taxonomy.
// Context errors pass through unchanged.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		// No service response: network or transport failure
		return core.Transient(op, err)
	}

	code := apiErr.ErrorCode()
	if _, ok := awsretry.DefaultThrottleErrorCodes[code]; ok {
		return core.Transient(op, err)
	}
	if _, ok := retryableCodes[code]; ok {
		return core.Transient(op, err)
	}
	if apiErr.ErrorFault() == smithy.FaultServer {
		return core.Transient(op, err)
	}
	return core.Permanent(op, err)
}
