package cloud

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/poiesic/docroute/config"
)

// LoadAWSConfig loads the shared AWS configuration for cfg.Region.
// SDK-level retries are limited to a single attempt: the pipeline's own
// retry policies decide what is retried and how often.
func LoadAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithRetryMaxAttempts(1),
	)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load aws config: %w", err)
	}
	return awsCfg, nil
}

// CallerIdentity is the subset of the STS client used to discover the account.
type CallerIdentity interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// ResolveAccountID fills cfg.AccountID from the caller identity when neither
// it nor an explicit extraction profile is configured.
func ResolveAccountID(ctx context.Context, cfg *config.Config, client CallerIdentity) error {
	if cfg.AccountID != "" || cfg.ExtractionProfile != "" {
		return nil
	}
	if client == nil {
		return ErrClientRequired
	}
	out, err := client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return classify("get caller identity", err)
	}
	account := aws.ToString(out.Account)
	if account == "" {
		return ErrAccountRequired
	}
	cfg.AccountID = account
	return nil
}
