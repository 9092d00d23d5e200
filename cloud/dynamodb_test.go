package cloud

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/poiesic/docroute/core"
	"github.com/poiesic/docroute/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTable is an in-memory single-table DynamoDB keyed by one string attribute.
type fakeTable struct {
	mu       sync.Mutex
	key      string
	items    map[string]map[string]ddbtypes.AttributeValue
	putErr   error
	txErr    error
	putCalls int
}

func newFakeTable(key string) *fakeTable {
	return &fakeTable{key: key, items: make(map[string]map[string]ddbtypes.AttributeValue)}
}

func (f *fakeTable) keyOf(item map[string]ddbtypes.AttributeValue) string {
	s, _ := item[f.key].(*ddbtypes.AttributeValueMemberS)
	if s == nil {
		return ""
	}
	return s.Value
}

func (f *fakeTable) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.putCalls++
	if f.putErr != nil {
		return nil, f.putErr
	}
	f.items[f.keyOf(params.Item)] = params.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeTable) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &dynamodb.GetItemOutput{Item: f.items[f.keyOf(params.Key)]}, nil
}

func (f *fakeTable) TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.txErr != nil {
		return nil, f.txErr
	}
	for _, write := range params.TransactItems {
		f.items[f.keyOf(write.Put.Item)] = write.Put.Item
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

// Scan supports the two filters JobTable issues.
func (f *fakeTable) Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var want string
	if v, ok := params.ExpressionAttributeValues[":state"].(*ddbtypes.AttributeValueMemberS); ok {
		want = v.Value
	}
	var out []map[string]ddbtypes.AttributeValue
	for _, item := range f.items {
		state, ok := item["state"].(*ddbtypes.AttributeValueMemberS)
		if !ok || (want != "" && state.Value != want) {
			continue
		}
		out = append(out, item)
	}
	return &dynamodb.ScanOutput{Items: out}, nil
}

func storedRecord() *core.ExtractionRecord {
	doc := core.NewDocument(&core.DocumentEvent{Bucket: "invoices", Key: "inv-001.pdf", EventTime: time.Now()})
	return &core.ExtractionRecord{
		ID:       "FOP7Y02017-00242218",
		JobID:    "4e360474",
		Document: *doc,
		OutputLocation: core.ObjectRef{
			Bucket: "results",
			Key:    "output/inv-001_20260105_144214/4e360474/0/",
		},
		Fields: []core.ExtractedField{
			{Name: "invoice_number", Value: "FOP7Y02017-00242218", Confidence: 0.88},
			{Name: "total_amount", Value: "1,250.00", Confidence: 0.5},
		},
		Defaults:            map[string]string{"currency": "USD"},
		AggregateConfidence: 0.69,
		HasConfidence:       true,
		Decision:            core.DecisionNeedsReview,
		Status:              core.StatusPendingReview,
		FlaggedFields:       []string{"total_amount"},
		ReviewReason:        "Low confidence: 69.00%",
		ReviewTaskID:        "invoice-review-fop7y02017-00242218-0123456789ab",
		ReviewTicket:        "arn:aws:sagemaker:us-east-1:123456789012:human-loop/invoice-review-fop7y02017-00242218-0123456789ab",
		ProcessedAt:         time.Date(2026, 1, 5, 14, 42, 30, 0, time.UTC),
	}
}

func TestRecordTable_Upsert(t *testing.T) {
	api := newFakeTable(RecordKeyAttribute)
	table, err := NewRecordTable(api, "invoices")
	require.NoError(t, err)
	ctx := context.Background()

	record := storedRecord()
	require.NoError(t, table.UpsertRecord(ctx, record))
	require.NoError(t, table.UpsertRecord(ctx, record))
	require.Len(t, api.items, 1, "upsert keyed by record id")

	item := api.items[record.ID]
	var row recordItem
	require.NoError(t, attributevalue.UnmarshalMap(item, &row))
	assert.Equal(t, "4e360474", row.JobID)
	assert.Equal(t, core.StatusPendingReview, row.Status)
	assert.InDelta(t, 0.69, row.AverageConfidence, 1e-9)
	assert.Equal(t, map[string]float64{"invoice_number": 0.88, "total_amount": 0.5}, row.FieldConfidences)
	assert.Equal(t, "s3://invoices/inv-001.pdf", row.InputS3URI)
	assert.Equal(t, "s3://results/output/inv-001_20260105_144214/4e360474/0/", row.OutputS3URI)
	assert.Equal(t, "2026-01-05T14:42:30Z", row.ProcessedTimestamp)
	assert.Equal(t, record.ReviewTaskID, row.HumanLoopName)
	assert.Equal(t, record.ReviewTicket, row.HumanLoopARN)

	// field values are stored as strings; defaults fill absent fields
	assert.Equal(t, &ddbtypes.AttributeValueMemberS{Value: "1,250.00"}, item["total_amount"])
	assert.Equal(t, &ddbtypes.AttributeValueMemberS{Value: "USD"}, item["currency"])
	_, isNumber := item["average_confidence"].(*ddbtypes.AttributeValueMemberN)
	assert.True(t, isNumber)
}

func TestRecordTable_NonARNTicket(t *testing.T) {
	api := newFakeTable(RecordKeyAttribute)
	table, err := NewRecordTable(api, "invoices")
	require.NoError(t, err)

	record := storedRecord()
	record.ReviewTicket = "DOCROUTE_REVIEW:7"
	require.NoError(t, table.UpsertRecord(context.Background(), record))

	var row recordItem
	require.NoError(t, attributevalue.UnmarshalMap(api.items[record.ID], &row))
	assert.Empty(t, row.HumanLoopARN)
	assert.Equal(t, "DOCROUTE_REVIEW:7", row.ReviewTicket)
}

func TestRecordTable_FieldNameCollisions(t *testing.T) {
	api := newFakeTable(RecordKeyAttribute)
	table, err := NewRecordTable(api, "invoices")
	require.NoError(t, err)

	record := storedRecord()
	record.Fields = append(record.Fields,
		core.ExtractedField{Name: "status", Value: "PAID", Confidence: 0.9},
		core.ExtractedField{Name: "decision", Value: "approve", Confidence: 0.9},
		core.ExtractedField{Name: "field_status", Value: "open", Confidence: 0.9},
	)
	require.NoError(t, table.UpsertRecord(context.Background(), record))

	item := api.items[record.ID]
	assert.Equal(t, &ddbtypes.AttributeValueMemberS{Value: core.StatusPendingReview}, item["status"], "fixed attributes win")
	assert.Equal(t, &ddbtypes.AttributeValueMemberS{Value: string(core.DecisionNeedsReview)}, item["decision"])
	assert.Equal(t, &ddbtypes.AttributeValueMemberS{Value: "approve"}, item["field_decision"])
	assert.Equal(t, &ddbtypes.AttributeValueMemberS{Value: "open"}, item["field_status"])
	assert.Equal(t, &ddbtypes.AttributeValueMemberS{Value: "PAID"}, item["field_field_status"])
	assert.Equal(t, &ddbtypes.AttributeValueMemberS{Value: "FOP7Y02017-00242218"}, item["invoice_number"])
}

func TestRecordTable_Errors(t *testing.T) {
	api := newFakeTable(RecordKeyAttribute)
	table, err := NewRecordTable(api, "invoices")
	require.NoError(t, err)
	ctx := context.Background()

	err = table.UpsertRecord(ctx, &core.ExtractionRecord{})
	assert.ErrorIs(t, err, storage.ErrEmptyKey)
	assert.Zero(t, api.putCalls)

	api.putErr = &smithy.GenericAPIError{Code: "ProvisionedThroughputExceededException"}
	assert.True(t, core.IsRetryable(table.UpsertRecord(ctx, storedRecord())))

	api.putErr = &smithy.GenericAPIError{Code: "ResourceNotFoundException", Fault: smithy.FaultClient}
	assert.True(t, core.IsPermanent(table.UpsertRecord(ctx, storedRecord())))

	_, err = NewRecordTable(api, "")
	assert.ErrorIs(t, err, ErrTableRequired)
}

func testJob(jobID, key string) *core.ExtractionJob {
	event := &core.DocumentEvent{Bucket: "invoices", Key: key, ETag: "etag-" + key}
	return &core.ExtractionJob{
		JobID:          jobID,
		Handle:         "arn:aws:bedrock:us-east-1:1:data-automation-invocation/" + jobID,
		Document:       *core.NewDocument(event),
		SubmittedAt:    time.Now().UTC(),
		OutputLocation: core.ObjectRef{Bucket: "results", Key: "output/" + jobID + "/"},
		State:          core.JobStateSubmitted,
	}
}

func TestJobTable_SaveGetFind(t *testing.T) {
	api := newFakeTable(JobKeyAttribute)
	jobs, err := NewJobTable(api, "extraction-jobs")
	require.NoError(t, err)
	ctx := context.Background()

	job := testJob("job-1", "inv-001.pdf")
	require.NoError(t, jobs.SaveJob(ctx, job))
	assert.Len(t, api.items, 2, "job item plus fingerprint index")

	got, err := jobs.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, job.OutputLocation, got.OutputLocation)
	assert.Equal(t, "inv-001", got.Document.ID)

	found, err := jobs.FindJobByFingerprint(ctx, job.Document.Fingerprint)
	require.NoError(t, err)
	assert.Equal(t, "job-1", found.JobID)

	_, err = jobs.GetJob(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = jobs.FindJobByFingerprint(ctx, core.FingerprintFromContent("other"))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestJobTable_ListJobs(t *testing.T) {
	api := newFakeTable(JobKeyAttribute)
	jobs, err := NewJobTable(api, "extraction-jobs")
	require.NoError(t, err)
	ctx := context.Background()

	for i, key := range []string{"a.pdf", "b.pdf", "c.pdf"} {
		job := testJob("job-"+key, key)
		if i == 0 {
			job.State = core.JobStateCompleted
		}
		require.NoError(t, jobs.SaveJob(ctx, job))
	}

	all, err := jobs.ListJobs(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3, "fingerprint entries are not jobs")

	completed, err := jobs.ListJobs(ctx, core.JobStateCompleted)
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, "job-a.pdf", completed[0].JobID)
}

func TestJobTable_TransactionErrors(t *testing.T) {
	api := newFakeTable(JobKeyAttribute)
	jobs, err := NewJobTable(api, "extraction-jobs")
	require.NoError(t, err)
	ctx := context.Background()

	api.txErr = &ddbtypes.TransactionCanceledException{
		Message:             aws.String("Transaction cancelled"),
		CancellationReasons: []ddbtypes.CancellationReason{{Code: aws.String("None")}, {Code: aws.String("TransactionConflict")}},
	}
	assert.True(t, core.IsRetryable(jobs.SaveJob(ctx, testJob("job-1", "a.pdf"))))

	api.txErr = &ddbtypes.TransactionCanceledException{
		CancellationReasons: []ddbtypes.CancellationReason{{Code: aws.String("ValidationError")}},
	}
	assert.True(t, core.IsPermanent(jobs.SaveJob(ctx, testJob("job-1", "a.pdf"))))

	assert.ErrorIs(t, jobs.SaveJob(ctx, &core.ExtractionJob{}), storage.ErrEmptyKey)
}
