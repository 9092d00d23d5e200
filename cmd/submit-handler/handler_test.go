package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/poiesic/docroute"
	"github.com/poiesic/docroute/config"
	"github.com/poiesic/docroute/core"
	"github.com/poiesic/docroute/extraction"
	"github.com/poiesic/docroute/extraction/mock"
	"github.com/poiesic/docroute/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func created(bucket, key, etag string) events.S3EventRecord {
	return events.S3EventRecord{
		EventName: "ObjectCreated:Put",
		EventTime: time.Date(2026, 1, 5, 14, 42, 14, 0, time.UTC),
		S3: events.S3Entity{
			Bucket: events.S3Bucket{Name: bucket},
			Object: events.S3Object{Key: key, URLDecodedKey: key, ETag: etag},
		},
	}
}

func newTestPipeline(t *testing.T, client extraction.Client) *docroute.Pipeline {
	t.Helper()
	cfg := config.NewConfig(
		config.WithExtractionTarget("arn:aws:bedrock:us-east-1:123456789012:data-automation-project/invoices"),
		config.WithOutputBucket("rsm-poc"),
		config.WithSubmitRetry(retry.Policy{MaxAttempts: 2, BaseDelay: time.Millisecond}),
	)
	cfg.AccountID = "123456789012"
	p, err := docroute.Open(cfg, docroute.InMemory(), docroute.WithExtractionClient(client))
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

func decodeBody(t *testing.T, resp string) submitBody {
	t.Helper()
	var body submitBody
	require.NoError(t, json.Unmarshal([]byte(resp), &body))
	return body
}

func TestHandle_SubmitsCreatedObjects(t *testing.T) {
	client := mock.NewClient()
	h := newHandler(newTestPipeline(t, client), nil)

	resp, err := h.Handle(context.Background(), events.S3Event{Records: []events.S3EventRecord{
		created("rsm-poc", "invoices/inv-001.pdf", `"etag-1"`),
		created("rsm-poc", "invoices/inv-002.pdf", `"etag-2"`),
		created("rsm-poc", "invoices/", ""),
	}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp.Body)
	require.Len(t, body.Jobs, 2)
	assert.Equal(t, "s3://rsm-poc/invoices/inv-001.pdf", body.Jobs[0].InputS3URI)
	assert.Equal(t, "s3://rsm-poc/output/inv-001_20260105_144214/", body.Jobs[0].OutputS3URI)
	assert.Contains(t, body.Jobs[0].JobARN, body.Jobs[0].JobID)
	assert.Equal(t, 2, client.CallCount())
}

func TestHandle_RedeliveryDoesNotResubmit(t *testing.T) {
	client := mock.NewClient()
	h := newHandler(newTestPipeline(t, client), nil)
	event := events.S3Event{Records: []events.S3EventRecord{created("rsm-poc", "invoices/inv-001.pdf", "etag-1")}}

	first, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	second, err := h.Handle(context.Background(), event)
	require.NoError(t, err)

	assert.Equal(t, decodeBody(t, first.Body).Jobs, decodeBody(t, second.Body).Jobs)
	assert.Equal(t, 1, client.CallCount())
}

func TestHandle_EmptyNotification(t *testing.T) {
	h := newHandler(newTestPipeline(t, mock.NewClient()), nil)

	resp, err := h.Handle(context.Background(), events.S3Event{})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "no documents to submit", decodeBody(t, resp.Body).Message)
}

func TestHandle_Errors(t *testing.T) {
	event := events.S3Event{Records: []events.S3EventRecord{created("rsm-poc", "invoices/inv-001.pdf", "etag-1")}}

	t.Run("transient failure is returned for retry", func(t *testing.T) {
		client := mock.NewClient()
		client.SubmitFunc = func(ctx context.Context, req *extraction.Request) (*extraction.Handle, error) {
			return nil, core.Transient("invoke", errors.New("throttled"))
		}
		h := newHandler(newTestPipeline(t, client), nil)

		_, err := h.Handle(context.Background(), event)
		require.Error(t, err)
		assert.True(t, core.IsRetryable(err))
		assert.Equal(t, 2, client.CallCount(), "submit retry policy applies first")
	})

	t.Run("permanent failure answers 500", func(t *testing.T) {
		client := mock.NewClient()
		client.SubmitFunc = func(ctx context.Context, req *extraction.Request) (*extraction.Handle, error) {
			return nil, core.Permanent("invoke", errors.New("validation exception"))
		}
		h := newHandler(newTestPipeline(t, client), nil)

		resp, err := h.Handle(context.Background(), event)
		require.NoError(t, err)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Contains(t, resp.Body, "validation exception")
		assert.Equal(t, 1, client.CallCount())
	})

	t.Run("undecodable key answers 500", func(t *testing.T) {
		h := newHandler(newTestPipeline(t, mock.NewClient()), nil)
		bad := events.S3Event{Records: []events.S3EventRecord{{
			EventName: "ObjectCreated:Put",
			S3:        events.S3Entity{Bucket: events.S3Bucket{Name: "rsm-poc"}, Object: events.S3Object{Key: "%zz"}},
		}}}

		resp, err := h.Handle(context.Background(), bad)
		require.NoError(t, err)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	})
}
