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


package config

import (
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/poiesic/docroute/retry"
)

// DefaultResultSchemaVersion is the result artifact layout produced by the extraction service.
const DefaultResultSchemaVersion = "bda-custom-output/v1"

// Config holds everything the submission and completion entry points need.
// It is constructed once per process and passed by pointer.
type Config struct {
	// ExtractionTarget identifies the extraction project/blueprint set to apply.
	// Example: "arn:aws:bedrock:us-east-1:123456789012:data-automation-project/abc"
	ExtractionTarget string `koanf:"extraction_target"`

	// ExtractionProfile is the profile used to run the job. When empty it is
	// derived from Region and AccountID.
	ExtractionProfile string `koanf:"extraction_profile"`

	// AccountID is the cloud account owning the default extraction profile.
	AccountID string `koanf:"account_id"`

	// Region is the cloud region for every service client.
	// Default: "us-east-1"
	Region string `koanf:"region"`

	// OutputBucket receives extraction results.
	OutputBucket string `koanf:"output_bucket"`

	// OutputPrefix is prepended to every predicted output location.
	// Default: "output/"
	OutputPrefix string `koanf:"output_prefix"`

	// ConfidenceThreshold separates AUTO_ACCEPT from NEEDS_REVIEW.
	// Must lie strictly between 0 and 1. Default: 0.70
	ConfidenceThreshold float64 `koanf:"confidence_threshold"`

	// ReviewWorkflowID identifies the human-review workflow. Nil means no
	// review path is configured, and NEEDS_REVIEW dispatch fails.
	ReviewWorkflowID *string `koanf:"review_workflow_id"`

	// ReviewLoopPrefix prefixes generated review task names.
	// Default: "invoice-review"
	ReviewLoopPrefix string `koanf:"review_loop_prefix"`

	// BusinessKeyField names the extracted field used as the stable record ID.
	// Records without it fall back to the job ID. Default: "invoice_number"
	BusinessKeyField string `koanf:"business_key_field"`

	// FieldAliases maps service field labels to record field names.
	FieldAliases map[string]string `koanf:"field_aliases"`

	// FieldDefaults supplies display values for absent fields. Defaults are
	// stored but never counted toward aggregate confidence.
	FieldDefaults map[string]string `koanf:"field_defaults"`

	// ResultSchemaVersion selects the result artifact schema.
	// Default: "bda-custom-output/v1"
	ResultSchemaVersion string `koanf:"result_schema_version"`

	// ProcessingTimeout bounds one completion invocation. Default: 60s
	ProcessingTimeout time.Duration `koanf:"processing_timeout"`

	// SubmitRetry bounds retries of the extraction submission call.
	SubmitRetry retry.Policy `koanf:"submit_retry"`

	// ArtifactRetry bounds retries while the result artifact becomes visible.
	ArtifactRetry retry.Policy `koanf:"artifact_retry"`

	// SinkRetry bounds retries of storage and review dispatch.
	SinkRetry retry.Policy `koanf:"sink_retry"`

	// SubmitRatePerSecond throttles submissions per process. Zero disables throttling.
	SubmitRatePerSecond float64 `koanf:"submit_rate_per_second"`

	// TrackPendingReviews also upserts review-routed records into the storage
	// sink with status "pending_review". Default: true
	TrackPendingReviews bool `koanf:"track_pending_reviews"`

	// DatabasePath is the local BadgerDB directory. Empty means in-memory.
	DatabasePath string `koanf:"database_path"`

	// RecordTable is the DynamoDB table for accepted records. Default: "invoices"
	RecordTable string `koanf:"record_table"`

	// JobTable is the DynamoDB table for correlation records. Default: "extraction-jobs"
	JobTable string `koanf:"job_table"`

	// NATSURL enables the NATS review sink when set.
	NATSURL string `koanf:"nats_url"`

	// ReviewSubject is the JetStream subject for review tasks. Default: "docroute.review"
	ReviewSubject string `koanf:"review_subject"`

	// MetricsAddr is the listen address for the metrics endpoint. Default: ":9090"
	MetricsAddr string `koanf:"metrics_addr"`
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithExtractionTarget sets the extraction project identifier.
func WithExtractionTarget(target string) ConfigOption {
	return func(c *Config) {
		c.ExtractionTarget = target
	}
}

// WithOutputBucket sets the bucket receiving extraction results.
func WithOutputBucket(bucket string) ConfigOption {
	return func(c *Config) {
		c.OutputBucket = bucket
	}
}

// WithOutputPrefix sets the output key prefix.
func WithOutputPrefix(prefix string) ConfigOption {
	return func(c *Config) {
		c.OutputPrefix = prefix
	}
}

// WithConfidenceThreshold sets the routing threshold.
func WithConfidenceThreshold(threshold float64) ConfigOption {
	return func(c *Config) {
		c.ConfidenceThreshold = threshold
	}
}

// WithReviewWorkflow sets the review workflow identifier. An empty id clears it.
func WithReviewWorkflow(id string) ConfigOption {
	return func(c *Config) {
		if id == "" {
			c.ReviewWorkflowID = nil
			return
		}
		c.ReviewWorkflowID = &id
	}
}

// WithBusinessKeyField sets the field used as stable record identifier.
func WithBusinessKeyField(field string) ConfigOption {
	return func(c *Config) {
		c.BusinessKeyField = field
	}
}

// WithRegion sets the cloud region.
func WithRegion(region string) ConfigOption {
	return func(c *Config) {
		c.Region = region
	}
}

// WithDatabasePath sets the local BadgerDB directory.
func WithDatabasePath(path string) ConfigOption {
	return func(c *Config) {
		c.DatabasePath = path
	}
}

// WithProcessingTimeout sets the per-invocation completion timeout.
func WithProcessingTimeout(timeout time.Duration) ConfigOption {
	return func(c *Config) {
		c.ProcessingTimeout = timeout
	}
}

// WithArtifactRetry sets the artifact visibility retry policy.
func WithArtifactRetry(policy retry.Policy) ConfigOption {
	return func(c *Config) {
		c.ArtifactRetry = policy
	}
}

// WithSinkRetry sets the sink dispatch retry policy.
func WithSinkRetry(policy retry.Policy) ConfigOption {
	return func(c *Config) {
		c.SinkRetry = policy
	}
}

// WithSubmitRetry sets the submission retry policy.
func WithSubmitRetry(policy retry.Policy) ConfigOption {
	return func(c *Config) {
		c.SubmitRetry = policy
	}
}

// DefaultFieldAliases maps invoice blueprint labels to record field names.
func DefaultFieldAliases() map[string]string {
	return map[string]string{
		"Invoice number":      "invoice_number",
		"VendorSupplier name": "vendor_name",
		"Total amount due":    "total_amount",
		"Tax amount":          "tax_amount",
		"Subtotal":            "subtotal",
		"Invoice date":        "invoice_date",
		"Due date":            "due_date",
		"Currency":            "currency",
	}
}

// DefaultConfig returns a Config with the deployment defaults.
// ExtractionTarget and OutputBucket have no default and must be set.
func DefaultConfig() *Config {
	return &Config{
		Region:              "us-east-1",
		OutputPrefix:        "output/",
		ConfidenceThreshold: 0.70,
		ReviewLoopPrefix:    "invoice-review",
		BusinessKeyField:    "invoice_number",
		FieldAliases:        DefaultFieldAliases(),
		FieldDefaults:       map[string]string{"currency": "USD"},
		ResultSchemaVersion: DefaultResultSchemaVersion,
		ProcessingTimeout:   60 * time.Second,
		SubmitRetry:         retry.Policy{MaxAttempts: 3, BaseDelay: 200 * time.Millisecond, MaxDelay: 2 * time.Second},
		ArtifactRetry:       retry.Policy{MaxAttempts: 5, BaseDelay: 500 * time.Millisecond, MaxDelay: 4 * time.Second},
		SinkRetry:           retry.Policy{MaxAttempts: 3, BaseDelay: 200 * time.Millisecond, MaxDelay: 2 * time.Second},
		TrackPendingReviews: true,
		RecordTable:         "invoices",
		JobTable:            "extraction-jobs",
		ReviewSubject:       "docroute.review",
		MetricsAddr:         ":9090",
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithExtractionTarget(projectARN),
//	    WithOutputBucket("invoices-out"),
//	    WithReviewWorkflow(flowARN),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	out := *c
	if c.ReviewWorkflowID != nil {
		id := *c.ReviewWorkflowID
		out.ReviewWorkflowID = &id
	}
	out.FieldAliases = maps.Clone(c.FieldAliases)
	out.FieldDefaults = maps.Clone(c.FieldDefaults)
	return &out
}

// ReviewWorkflow returns the review workflow identifier and whether one is configured.
func (c *Config) ReviewWorkflow() (string, bool) {
	if c.ReviewWorkflowID == nil {
		return "", false
	}
	return *c.ReviewWorkflowID, true
}

// Profile returns the extraction profile, deriving the managed profile when unset.
func (c *Config) Profile() string {
	if c.ExtractionProfile != "" || c.AccountID == "" {
		return c.ExtractionProfile
	}
	return fmt.Sprintf("arn:aws:bedrock:%s:%s:data-automation-profile/us.data-automation-v1", c.Region, c.AccountID)
}

// Normalize puts the configuration in canonical form.
// Blank optional identifiers become absent and the output prefix gains a trailing slash.
func (c *Config) Normalize() {
	if c.ReviewWorkflowID != nil && strings.TrimSpace(*c.ReviewWorkflowID) == "" {
		c.ReviewWorkflowID = nil
	}
	c.OutputPrefix = strings.TrimLeft(c.OutputPrefix, "/")
	if c.OutputPrefix != "" && !strings.HasSuffix(c.OutputPrefix, "/") {
		c.OutputPrefix += "/"
	}
	if c.ResultSchemaVersion == "" {
		c.ResultSchemaVersion = DefaultResultSchemaVersion
	}
}

// Validate checks that the configuration is valid and complete.
// It normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if c.ExtractionTarget == "" {
		return errors.New("config: ExtractionTarget is required")
	}
	if c.OutputBucket == "" {
		return errors.New("config: OutputBucket is required")
	}
	if c.Region == "" {
		return errors.New("config: Region is required")
	}
	if !(c.ConfidenceThreshold > 0 && c.ConfidenceThreshold < 1) {
		return fmt.Errorf("config: ConfidenceThreshold must be between 0 and 1 (exclusive), got %v", c.ConfidenceThreshold)
	}
	if c.BusinessKeyField == "" {
		return errors.New("config: BusinessKeyField is required")
	}
	if c.ProcessingTimeout <= 0 {
		return errors.New("config: ProcessingTimeout must be positive")
	}
	if c.SubmitRatePerSecond < 0 {
		return errors.New("config: SubmitRatePerSecond cannot be negative")
	}
	for name, policy := range map[string]retry.Policy{
		"SubmitRetry":   c.SubmitRetry,
		"ArtifactRetry": c.ArtifactRetry,
		"SinkRetry":     c.SinkRetry,
	} {
		if err := policy.Validate(); err != nil {
			return fmt.Errorf("config: %s: %w", name, err)
		}
	}
	return nil
}
