package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	a2i "github.com/aws/aws-sdk-go-v2/service/sagemakera2iruntime"
	a2itypes "github.com/aws/aws-sdk-go-v2/service/sagemakera2iruntime/types"
	"github.com/poiesic/docroute/core"
	"github.com/poiesic/docroute/routing"
)

// HumanLoopStarter is the subset of the SageMaker A2I runtime client used by HumanLoopSink.
type HumanLoopStarter interface {
	StartHumanLoop(ctx context.Context, params *a2i.StartHumanLoopInput, optFns ...func(*a2i.Options)) (*a2i.StartHumanLoopOutput, error)
	DescribeHumanLoop(ctx context.Context, params *a2i.DescribeHumanLoopInput, optFns ...func(*a2i.Options)) (*a2i.DescribeHumanLoopOutput, error)
}

// HumanLoopSink starts an A2I human loop per review task. The task ID is the
// loop name, so a redelivered task hits a name conflict instead of creating
// a second loop.
type HumanLoopSink struct {
	api    HumanLoopStarter
	logger *slog.Logger
}

var _ routing.ReviewSink = (*HumanLoopSink)(nil)

// NewHumanLoopSink wraps an A2I runtime client.
func NewHumanLoopSink(api HumanLoopStarter, logger *slog.Logger) (*HumanLoopSink, error) {
	if api == nil {
		return nil, ErrClientRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HumanLoopSink{api: api, logger: logger}, nil
}

// humanLoopInput is the InputContent shown to reviewers.
type humanLoopInput struct {
	RecordID          string             `json:"invoice_id"`
	JobID             string             `json:"job_id"`
	Fields            map[string]string  `json:"fields"`
	AverageConfidence float64            `json:"average_confidence"`
	FieldConfidences  map[string]float64 `json:"field_confidences"`
	FlaggedFields     []string           `json:"flagged_fields"`
	Reason            string             `json:"reason"`
	InputS3URI        string             `json:"input_s3_uri"`
	OutputS3URI       string             `json:"output_s3_uri"`
}

// SubmitReview starts the human loop for task and returns its ARN.
// A loop that already exists counts as submitted.
func (s *HumanLoopSink) SubmitReview(ctx context.Context, task *core.ReviewTask) (string, error) {
	if task.WorkflowID == "" {
		return "", core.Permanent("start human loop", routing.ErrReviewNotConfigured)
	}
	content, err := json.Marshal(newHumanLoopInput(task))
	if err != nil {
		return "", core.Permanent("start human loop", fmt.Errorf("marshal task %s: %w", task.ID, err))
	}

	out, err := s.api.StartHumanLoop(ctx, &a2i.StartHumanLoopInput{
		HumanLoopName:     aws.String(task.ID),
		FlowDefinitionArn: aws.String(task.WorkflowID),
		HumanLoopInput:    &a2itypes.HumanLoopInput{InputContent: aws.String(string(content))},
	})
	if err == nil {
		return aws.ToString(out.HumanLoopArn), nil
	}

	var conflict *a2itypes.ConflictException
	if !errors.As(err, &conflict) {
		return "", classify("start human loop "+task.ID, err)
	}

	s.logger.Info("human loop already exists", "loop", task.ID)
	existing, err := s.api.DescribeHumanLoop(ctx, &a2i.DescribeHumanLoopInput{HumanLoopName: aws.String(task.ID)})
	if err != nil {
		s.logger.Warn("failed to describe existing human loop", "loop", task.ID, "err", err)
		return task.ID, nil
	}
	return aws.ToString(existing.HumanLoopArn), nil
}

func newHumanLoopInput(task *core.ReviewTask) humanLoopInput {
	in := humanLoopInput{
		RecordID:         task.RecordID,
		JobID:            task.JobID,
		FieldConfidences: task.FieldConfidences,
		FlaggedFields:    task.FlaggedFields,
		Reason:           task.Reason,
	}
	if r := task.Record; r != nil {
		in.Fields = r.Values()
		in.AverageConfidence = r.AggregateConfidence
		in.InputS3URI = r.Document.Source.URI()
		in.OutputS3URI = r.OutputLocation.URI()
	}
	return in
}
