package cloud

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/poiesic/docroute/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const s3Notification = `{
  "Records": [
    {
      "eventSource": "aws:s3",
      "eventTime": "2026-01-05T14:42:14.000Z",
      "eventName": "ObjectCreated:Put",
      "s3": {
        "bucket": {"name": "rsm-poc"},
        "object": {"key": "Screenshot+2025-12-30+130223.jpg", "size": 1024, "eTag": "0123abcd", "versionId": "v1"}
      }
    },
    {
      "eventSource": "aws:s3",
      "eventTime": "2026-01-05T14:42:15.000Z",
      "eventName": "ObjectRemoved:Delete",
      "s3": {"bucket": {"name": "rsm-poc"}, "object": {"key": "old.pdf"}}
    },
    {
      "eventSource": "aws:s3",
      "eventTime": "2026-01-05T14:42:16.000Z",
      "eventName": "ObjectCreated:Put",
      "s3": {"bucket": {"name": "rsm-poc"}, "object": {"key": "incoming/"}}
    }
  ]
}`

func TestDocumentEvents(t *testing.T) {
	var notification events.S3Event
	require.NoError(t, json.Unmarshal([]byte(s3Notification), &notification))

	docs, err := DocumentEvents(notification)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	doc := docs[0]
	assert.Equal(t, "rsm-poc", doc.Bucket)
	assert.Equal(t, "Screenshot 2025-12-30 130223.jpg", doc.Key)
	assert.Equal(t, "0123abcd", doc.ETag)
	assert.Equal(t, "v1", doc.VersionID)
	assert.Equal(t, time.Date(2026, 1, 5, 14, 42, 14, 0, time.UTC), doc.EventTime)
	assert.NoError(t, core.ValidateDocumentEvent(doc))
}

func TestDocumentEvents_DecodesWhenNotPreDecoded(t *testing.T) {
	notification := events.S3Event{Records: []events.S3EventRecord{{
		S3: events.S3Entity{
			Bucket: events.S3Bucket{Name: "docs"},
			Object: events.S3Object{Key: "a%2Fb+c.pdf"},
		},
	}}}

	docs, err := DocumentEvents(notification)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "a/b c.pdf", docs[0].Key)
}

const jobSucceeded = `{
  "version": "0",
  "id": "3f1b",
  "detail-type": "Bedrock Data Automation Job Succeeded",
  "source": "aws.bedrock",
  "account": "123456789012",
  "time": "2026-01-05T14:42:14Z",
  "region": "us-east-1",
  "resources": [],
  "detail": {
    "job_id": "4e360474-cd07-47d3-88b9-b5b8170b54e8",
    "job_status": "SUCCESS",
    "semantic_modality": "Document",
    "input_s3_object": {"s3_bucket": "rsm-poc", "name": "Screenshot 2025-12-30 130223.jpg"},
    "output_s3_location": {"s3_bucket": "rsm-poc", "name": "output/Screenshot_20260105//4e360474-cd07-47d3-88b9-b5b8170b54e8/0"},
    "job_duration_in_seconds": 16
  }
}`

func TestCompletionEventFromCloudWatch(t *testing.T) {
	var e events.CloudWatchEvent
	require.NoError(t, json.Unmarshal([]byte(jobSucceeded), &e))

	event, err := CompletionEventFromCloudWatch(e)
	require.NoError(t, err)
	assert.Equal(t, "4e360474-cd07-47d3-88b9-b5b8170b54e8", event.JobID)
	assert.Equal(t, core.JobStatusSuccess, event.Status)
	assert.Equal(t, core.ObjectRef{Bucket: "rsm-poc", Key: "Screenshot 2025-12-30 130223.jpg"}, event.SourceDocument)
	require.NotNil(t, event.Output)
	assert.Equal(t, "output/Screenshot_20260105//4e360474-cd07-47d3-88b9-b5b8170b54e8/0", event.Output.Name)
	assert.Equal(t, time.Date(2026, 1, 5, 14, 42, 14, 0, time.UTC), event.Timestamp)
	assert.NoError(t, core.ValidateCompletionEvent(event))
}

func TestCompletionEventFromCloudWatch_Statuses(t *testing.T) {
	tests := []struct {
		raw  string
		want core.JobStatus
	}{
		{"SUCCESS", core.JobStatusSuccess},
		{"CLIENT_ERROR", core.JobStatusFailure},
		{"SERVICE_ERROR", core.JobStatusFailure},
		{"failed", core.JobStatusFailure},
		{"RUNNING", core.JobStatus("RUNNING")},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			detail, err := json.Marshal(map[string]any{"job_id": "j", "job_status": tt.raw})
			require.NoError(t, err)

			event, err := CompletionEventFromCloudWatch(events.CloudWatchEvent{Detail: detail})
			require.NoError(t, err)
			assert.Equal(t, tt.want, event.Status)
			assert.Nil(t, event.Output)
		})
	}
}

func TestCompletionEventFromCloudWatch_BadDetail(t *testing.T) {
	_, err := CompletionEventFromCloudWatch(events.CloudWatchEvent{})
	assert.ErrorIs(t, err, ErrMissingDetail)
	assert.True(t, core.IsPermanent(err))

	_, err = CompletionEventFromCloudWatch(events.CloudWatchEvent{Detail: json.RawMessage(`[1,2]`)})
	assert.True(t, core.IsPermanent(err))
}

func TestNewResponse(t *testing.T) {
	resp := NewResponse(http.StatusOK, map[string]string{"message": "ok"})
	assert.Equal(t, 200, resp.StatusCode)
	assert.JSONEq(t, `{"message":"ok"}`, resp.Body)
}
