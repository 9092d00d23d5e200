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
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	bda "github.com/aws/aws-sdk-go-v2/service/bedrockdataautomationruntime"
	bdatypes "github.com/aws/aws-sdk-go-v2/service/bedrockdataautomationruntime/types"
	"github.com/poiesic/docroute/core"
	"github.com/poiesic/docroute/extraction"
)

// DataAutomationInvoker is the subset of the Bedrock Data Automation runtime client used by BDAClient.
type DataAutomationInvoker interface {
	InvokeDataAutomationAsync(ctx context.Context, params *bda.InvokeDataAutomationAsyncInput, optFns ...func(*bda.Options)) (*bda.InvokeDataAutomationAsyncOutput, error)
}

// BDAClient submits documents to Bedrock Data Automation.
// It implements extraction.Client.
type BDAClient struct {
	api DataAutomationInvoker
}

var _ extraction.Client = (*BDAClient)(nil)

// NewBDAClient wraps a Data Automation runtime client.
func NewBDAClient(api DataAutomationInvoker) (*BDAClient, error) {
	if api == nil {
		return nil, ErrClientRequired
	}
	return &BDAClient{api: api}, nil
}

// Submit starts an asynchronous LIVE-stage invocation with EventBridge
// notification enabled, so completion arrives as an event rather than by polling.
func (c *BDAClient) Submit(ctx context.Context, req *extraction.Request) (*extraction.Handle, error) {
	if req == nil || req.Document == nil {
		return nil, core.Permanent("invoke data automation", errors.New("request has no document"))
	}
	if req.Target == "" {
		return nil, core.Permanent("invoke data automation", errors.New("extraction target required"))
	}
	if req.Profile == "" {
		return nil, core.Permanent("invoke data automation", ErrAccountRequired)
	}

	input := &bda.InvokeDataAutomationAsyncInput{
		DataAutomationProfileArn: aws.String(req.Profile),
		InputConfiguration: &bdatypes.InputConfiguration{
			S3Uri: aws.String(req.Document.Source.URI()),
		},
		OutputConfiguration: &bdatypes.OutputConfiguration{
			S3Uri: aws.String(req.OutputLocation.URI()),
		},
		DataAutomationConfiguration: &bdatypes.DataAutomationConfiguration{
			DataAutomationProjectArn: aws.String(req.Target),
			Stage:                    bdatypes.DataAutomationStageLive,
		},
		NotificationConfiguration: &bdatypes.NotificationConfiguration{
			EventBridgeConfiguration: &bdatypes.EventBridgeConfiguration{
				EventBridgeEnabled: aws.Bool(true),
			},
		},
	}
	if req.ClientToken != "" {
		input.ClientToken = aws.String(req.ClientToken)
	}

	out, err := c.api.InvokeDataAutomationAsync(ctx, input)
	if err != nil {
		return nil, classify("invoke data automation", err)
	}

	arn := aws.ToString(out.InvocationArn)
	if arn == "" {
		return nil, core.Permanent("invoke data automation", fmt.Errorf("no invocation arn for %s", req.Document.Source.URI()))
	}
	return &extraction.Handle{JobID: core.JobIDFromHandle(arn), ARN: arn}, nil
}
