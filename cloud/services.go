package cloud

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/service/bedrockdataautomationruntime"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sagemakera2iruntime"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/poiesic/docroute/config"
)

// Services bundles the AWS-backed adapters for one process.
type Services struct {
	Extraction *BDAClient
	Artifacts  *S3ArtifactStore
	Records    *RecordTable
	Jobs       *JobTable
	Reviews    *HumanLoopSink
}

// NewServices loads the AWS configuration, resolves the account ID when the
// extraction profile must be derived, and builds every adapter.
func NewServices(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Services, error) {
	awsCfg, err := LoadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := ResolveAccountID(ctx, cfg, sts.NewFromConfig(awsCfg)); err != nil {
		return nil, fmt.Errorf("failed to resolve account id: %w", err)
	}

	extraction, err := NewBDAClient(bedrockdataautomationruntime.NewFromConfig(awsCfg))
	if err != nil {
		return nil, err
	}
	artifacts, err := NewS3ArtifactStore(s3.NewFromConfig(awsCfg))
	if err != nil {
		return nil, err
	}
	db := dynamodb.NewFromConfig(awsCfg)
	records, err := NewRecordTable(db, cfg.RecordTable)
	if err != nil {
		return nil, err
	}
	jobs, err := NewJobTable(db, cfg.JobTable)
	if err != nil {
		return nil, err
	}
	reviews, err := NewHumanLoopSink(sagemakera2iruntime.NewFromConfig(awsCfg), logger)
	if err != nil {
		return nil, err
	}

	return &Services{
		Extraction: extraction,
		Artifacts:  artifacts,
		Records:    records,
		Jobs:       jobs,
		Reviews:    reviews,
	}, nil
}
