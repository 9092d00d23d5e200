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
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/poiesic/docroute/core"
	"github.com/poiesic/docroute/routing"
	"github.com/poiesic/docroute/storage"
)

const (
	// RecordKeyAttribute is the hash key of the record table.
	RecordKeyAttribute = "invoice_id"

	// JobKeyAttribute is the hash key of the job table.
	JobKeyAttribute = "job_id"

	fingerprintKeyPrefix = "fp#"
)

// ItemPutter is the subset of the DynamoDB client used by RecordTable.
type ItemPutter interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// ItemStore is the subset of the DynamoDB client used by JobTable.
type ItemStore interface {
	ItemPutter
	dynamodb.ScanAPIClient
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// FieldAttributePrefix is prepended to an extracted field name that collides
// with a fixed record attribute.
const FieldAttributePrefix = "field_"

// recordItem is the fixed part of a stored record. Field values are added
// as top-level string attributes next to it.
type recordItem struct {
	ID                 string             `dynamodbav:"invoice_id"`
	JobID              string             `dynamodbav:"job_id"`
	Status             string             `dynamodbav:"status"`
	Decision           string             `dynamodbav:"decision"`
	AverageConfidence  float64            `dynamodbav:"average_confidence"`
	HasConfidence      bool               `dynamodbav:"has_confidence"`
	FieldConfidences   map[string]float64 `dynamodbav:"field_confidences"`
	FlaggedFields      []string           `dynamodbav:"flagged_fields,omitempty"`
	InputS3URI         string             `dynamodbav:"input_s3_uri"`
	OutputS3URI        string             `dynamodbav:"output_s3_uri"`
	ProcessedTimestamp string             `dynamodbav:"processed_timestamp"`
	ReviewReason       string             `dynamodbav:"review_reason,omitempty"`
	HumanLoopName      string             `dynamodbav:"human_loop_name,omitempty"`
	HumanLoopARN       string             `dynamodbav:"human_loop_arn,omitempty"`
	ReviewTicket       string             `dynamodbav:"review_ticket,omitempty"`
}

// RecordTable stores routed records in a DynamoDB table keyed by invoice_id.
type RecordTable struct {
	api   ItemPutter
	table string
}

var _ routing.StorageSink = (*RecordTable)(nil)

// NewRecordTable creates a storage sink writing to table.
func NewRecordTable(api ItemPutter, table string) (*RecordTable, error) {
	if api == nil {
		return nil, ErrClientRequired
	}
	if table == "" {
		return nil, ErrTableRequired
	}
	return &RecordTable{api: api, table: table}, nil
}

// UpsertRecord writes record, replacing any item with the same ID.
func (t *RecordTable) UpsertRecord(ctx context.Context, record *core.ExtractionRecord) error {
	if record.ID == "" {
		return core.Permanent("put record", storage.ErrEmptyKey)
	}
	item, err := marshalRecord(record)
	if err != nil {
		return core.Permanent("put record", err)
	}
	_, err = t.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(t.table),
		Item:      item,
	})
	return classify("put record "+record.ID, err)
}

func marshalRecord(record *core.ExtractionRecord) (map[string]ddbtypes.AttributeValue, error) {
	row := recordItem{
		ID:                 record.ID,
		JobID:              record.JobID,
		Status:             record.Status,
		Decision:           string(record.Decision),
		AverageConfidence:  record.AggregateConfidence,
		HasConfidence:      record.HasConfidence,
		FieldConfidences:   record.FieldConfidences(),
		FlaggedFields:      record.FlaggedFields,
		InputS3URI:         record.Document.Source.URI(),
		OutputS3URI:        record.OutputLocation.URI(),
		ProcessedTimestamp: record.ProcessedAt.UTC().Format(time.RFC3339Nano),
		ReviewReason:       record.ReviewReason,
		HumanLoopName:      record.ReviewTaskID,
		ReviewTicket:       record.ReviewTicket,
	}
	if strings.HasPrefix(record.ReviewTicket, "arn:") {
		row.HumanLoopARN = record.ReviewTicket
	}

	item, err := attributevalue.MarshalMap(row)
	if err != nil {
		return nil, fmt.Errorf("marshal record %s: %w", record.ID, err)
	}
	values := record.Values()
	var collided []string
	for name, value := range values {
		if _, taken := item[name]; taken {
			collided = append(collided, name)
			continue
		}
		item[name] = &ddbtypes.AttributeValueMemberS{Value: value}
	}
	sort.Strings(collided)
	for _, name := range collided {
		item[fieldAttribute(item, name)] = &ddbtypes.AttributeValueMemberS{Value: values[name]}
	}
	return item, nil
}

// fieldAttribute returns the attribute name for an extracted field. A field
// whose name is already taken by a fixed attribute is stored under a
// FieldAttributePrefix name instead.
func fieldAttribute(item map[string]ddbtypes.AttributeValue, name string) string {
	attr := name
	for {
		if _, taken := item[attr]; !taken {
			return attr
		}
		attr = FieldAttributePrefix + attr
	}
}

// jobItem is a correlation record as stored. Payload holds the full job.
type jobItem struct {
	JobID       string    `dynamodbav:"job_id"`
	State       string    `dynamodbav:"state"`
	Fingerprint string    `dynamodbav:"fingerprint,omitempty"`
	UpdatedAt   time.Time `dynamodbav:"updated_at"`
	Payload     []byte    `dynamodbav:"payload"`
}

// fingerprintItem points a document fingerprint at the job submitted for it.
type fingerprintItem struct {
	Key   string `dynamodbav:"job_id"`
	JobID string `dynamodbav:"target_job_id"`
}

// JobTable is a storage.JobRepository backed by a DynamoDB table keyed by
// job_id. Fingerprint index entries share the table under an "fp#" key.
type JobTable struct {
	api   ItemStore
	table string
}

var _ storage.JobRepository = (*JobTable)(nil)

// NewJobTable creates a job repository on table.
func NewJobTable(api ItemStore, table string) (*JobTable, error) {
	if api == nil {
		return nil, ErrClientRequired
	}
	if table == "" {
		return nil, ErrTableRequired
	}
	return &JobTable{api: api, table: table}, nil
}

// Close is a no-op; the SDK client holds no resources that need releasing.
func (t *JobTable) Close() error {
	return nil
}

// SaveJob writes the job and its fingerprint index entry in one transaction.
func (t *JobTable) SaveJob(ctx context.Context, job *core.ExtractionJob) error {
	if job.JobID == "" {
		return storage.ErrEmptyKey
	}
	job.UpdatedAt = time.Now().UTC()
	payload, err := storage.MarshalJob(job)
	if err != nil {
		return err
	}
	item, err := attributevalue.MarshalMap(jobItem{
		JobID:       job.JobID,
		State:       string(job.State),
		Fingerprint: string(job.Document.Fingerprint),
		UpdatedAt:   job.UpdatedAt,
		Payload:     payload,
	})
	if err != nil {
		return fmt.Errorf("marshal job %s: %w", job.JobID, err)
	}

	writes := []ddbtypes.TransactWriteItem{
		{Put: &ddbtypes.Put{TableName: aws.String(t.table), Item: item}},
	}
	if fp := job.Document.Fingerprint; fp != "" {
		index, err := attributevalue.MarshalMap(fingerprintItem{
			Key:   fingerprintKeyPrefix + string(fp),
			JobID: job.JobID,
		})
		if err != nil {
			return fmt.Errorf("marshal fingerprint index %s: %w", fp, err)
		}
		writes = append(writes, ddbtypes.TransactWriteItem{
			Put: &ddbtypes.Put{TableName: aws.String(t.table), Item: index},
		})
	}

	_, err = t.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: writes})
	if err != nil {
		return classifyTransaction("save job "+job.JobID, err)
	}
	return nil
}

// GetJob retrieves a job by ID with a strongly consistent read.
func (t *JobTable) GetJob(ctx context.Context, jobID string) (*core.ExtractionJob, error) {
	if jobID == "" {
		return nil, storage.ErrEmptyKey
	}
	item, err := t.get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	var row jobItem
	if err := attributevalue.UnmarshalMap(item, &row); err != nil {
		return nil, fmt.Errorf("unmarshal job %s: %w", jobID, err)
	}
	return storage.UnmarshalJob(row.Payload)
}

// FindJobByFingerprint follows the fingerprint index entry to its job.
func (t *JobTable) FindJobByFingerprint(ctx context.Context, fp core.Fingerprint) (*core.ExtractionJob, error) {
	if fp == "" {
		return nil, storage.ErrNotFound
	}
	item, err := t.get(ctx, fingerprintKeyPrefix+string(fp))
	if err != nil {
		return nil, err
	}
	var index fingerprintItem
	if err := attributevalue.UnmarshalMap(item, &index); err != nil {
		return nil, fmt.Errorf("unmarshal fingerprint index %s: %w", fp, err)
	}
	return t.GetJob(ctx, index.JobID)
}

// ListJobs scans the table for jobs in state, or all jobs when state is empty.
func (t *JobTable) ListJobs(ctx context.Context, state core.JobState) ([]*core.ExtractionJob, error) {
	input := &dynamodb.ScanInput{
		TableName:                aws.String(t.table),
		FilterExpression:         aws.String("attribute_exists(#state)"),
		ExpressionAttributeNames: map[string]string{"#state": "state"},
	}
	if state != "" {
		input.FilterExpression = aws.String("#state = :state")
		input.ExpressionAttributeValues = map[string]ddbtypes.AttributeValue{
			":state": &ddbtypes.AttributeValueMemberS{Value: string(state)},
		}
	}

	var jobs []*core.ExtractionJob
	paginator := dynamodb.NewScanPaginator(t.api, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, classify("scan jobs", err)
		}
		for _, item := range page.Items {
			var row jobItem
			if err := attributevalue.UnmarshalMap(item, &row); err != nil {
				return nil, fmt.Errorf("unmarshal job: %w", err)
			}
			job, err := storage.UnmarshalJob(row.Payload)
			if err != nil {
				return nil, err
			}
			jobs = append(jobs, job)
		}
	}
	return jobs, nil
}

func (t *JobTable) get(ctx context.Context, key string) (map[string]ddbtypes.AttributeValue, error) {
	out, err := t.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(t.table),
		Key: map[string]ddbtypes.AttributeValue{
			JobKeyAttribute: &ddbtypes.AttributeValueMemberS{Value: key},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, classify("get item "+key, err)
	}
	if len(out.Item) == 0 {
		return nil, storage.ErrNotFound
	}
	return out.Item, nil
}

// classifyTransaction treats cancellations caused by conflicts or throttling
// as transient.
func classifyTransaction(op string, err error) error {
	var canceled *ddbtypes.TransactionCanceledException
	if errors.As(err, &canceled) {
		for _, reason := range canceled.CancellationReasons {
			switch aws.ToString(reason.Code) {
			case "TransactionConflict", "ThrottlingError", "ProvisionedThroughputExceeded":
				return core.Transient(op, err)
			}
		}
		return core.Permanent(op, err)
	}
	return classify(op, err)
}
