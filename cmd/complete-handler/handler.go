package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/poiesic/docroute/cloud"
	"github.com/poiesic/docroute/completion"
	"github.com/poiesic/docroute/core"
)

// Completer handles one completion notification.
type Completer interface {
	Complete(ctx context.Context, event *core.CompletionEvent) (*completion.Outcome, error)
}

type handler struct {
	completer Completer
	logger    *slog.Logger
}

func newHandler(c Completer, logger *slog.Logger) *handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &handler{completer: c, logger: logger}
}

type completeBody struct {
	Message           string   `json:"message"`
	RecordID          string   `json:"invoice_id,omitempty"`
	JobID             string   `json:"job_id,omitempty"`
	Decision          string   `json:"decision,omitempty"`
	AverageConfidence *float64 `json:"average_confidence,omitempty"`
	FlaggedFields     []string `json:"flagged_fields,omitempty"`
	ReviewTicket      string   `json:"review_ticket,omitempty"`
}

// Handle routes the record produced by the job in e.
//
// Retryable failures are returned as errors so EventBridge redelivers the
// event. Other failures are answered with a 500 response.
func (h *handler) Handle(ctx context.Context, e events.CloudWatchEvent) (cloud.Response, error) {
	event, err := cloud.CompletionEventFromCloudWatch(e)
	if err != nil {
		h.logger.Error("invalid completion event", "id", e.ID, "err", err)
		return failure(err), nil
	}

	outcome, err := h.completer.Complete(ctx, event)
	var malformed *core.MalformedResultError
	switch {
	case err == nil:
	case errors.As(err, &malformed) && outcome != nil:
		h.logger.Warn("malformed result routed to review", "job_id", event.JobID, "reason", malformed.Reason)
	case core.IsRetryable(err):
		h.logger.Error("completion will be retried", "job_id", event.JobID, "err", err)
		return cloud.Response{}, err
	default:
		h.logger.Error("error processing completion", "job_id", event.JobID, "err", err)
		return failure(err), nil
	}

	return cloud.NewResponse(http.StatusOK, newCompleteBody(outcome)), nil
}

func newCompleteBody(o *completion.Outcome) completeBody {
	body := completeBody{
		RecordID:      o.RecordID,
		JobID:         o.JobID,
		Decision:      string(o.Decision),
		FlaggedFields: o.FlaggedFields,
		ReviewTicket:  o.ReviewTicket,
	}
	if o.HasConfidence {
		c := o.AggregateConfidence
		body.AverageConfidence = &c
	}
	switch {
	case o.Replayed:
		body.Message = "job already processed"
	case o.Decision == core.DecisionAutoAccept:
		body.Message = "record stored"
	default:
		body.Message = "record sent for human review"
	}
	return body
}

func failure(err error) cloud.Response {
	return cloud.NewResponse(http.StatusInternalServerError, map[string]string{
		"message": "error processing completion: " + err.Error(),
	})
}
