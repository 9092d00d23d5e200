package main

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/poiesic/docroute/cloud"
	"github.com/poiesic/docroute/core"
)

// Submitter starts extraction for one document.
type Submitter interface {
	Submit(ctx context.Context, event *core.DocumentEvent) (*core.ExtractionJob, error)
}

type handler struct {
	submitter Submitter
	logger    *slog.Logger
}

func newHandler(s Submitter, logger *slog.Logger) *handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &handler{submitter: s, logger: logger}
}

type submittedJob struct {
	JobID       string `json:"job_id"`
	JobARN      string `json:"job_arn"`
	InputS3URI  string `json:"input_s3_uri"`
	OutputS3URI string `json:"output_s3_uri"`
}

type submitBody struct {
	Message string         `json:"message"`
	Jobs    []submittedJob `json:"jobs"`
}

// Handle submits every created object in e.
//
// Retryable failures are returned as errors so the invocation is retried.
// Anything else is answered with a 500 response, since redelivery would fail
// the same way.
func (h *handler) Handle(ctx context.Context, e events.S3Event) (cloud.Response, error) {
	docs, err := cloud.DocumentEvents(e)
	if err != nil {
		h.logger.Error("invalid s3 notification", "err", err)
		return failure(err), nil
	}

	body := submitBody{Message: "extraction jobs submitted", Jobs: []submittedJob{}}
	for _, doc := range docs {
		job, err := h.submitter.Submit(ctx, doc)
		if err != nil {
			h.logger.Error("error submitting document", "bucket", doc.Bucket, "key", doc.Key, "err", err)
			if core.IsRetryable(err) {
				return cloud.Response{}, err
			}
			return failure(err), nil
		}
		body.Jobs = append(body.Jobs, submittedJob{
			JobID:       job.JobID,
			JobARN:      job.Handle,
			InputS3URI:  job.Document.Source.URI(),
			OutputS3URI: job.OutputLocation.URI(),
		})
	}
	if len(docs) == 0 {
		body.Message = "no documents to submit"
	}
	return cloud.NewResponse(http.StatusOK, body), nil
}

func failure(err error) cloud.Response {
	return cloud.NewResponse(http.StatusInternalServerError, map[string]string{
		"message": "error submitting document: " + err.Error(),
	})
}
