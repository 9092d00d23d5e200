package routing

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/docroute/config"
	"github.com/poiesic/docroute/core"
	"github.com/poiesic/docroute/metrics"
	"github.com/poiesic/docroute/retry"
)

// StorageSink persists routed records. UpsertRecord must replace any record
// with the same ID.
type StorageSink interface {
	UpsertRecord(ctx context.Context, record *core.ExtractionRecord) error
}

// ReviewSink hands records to a human-review workflow without waiting for
// the outcome. Submitting a task ID twice must not create a second task; the
// returned ticket identifies the queued task.
type ReviewSink interface {
	SubmitReview(ctx context.Context, task *core.ReviewTask) (string, error)
}

// Dispatch reports where a record went.
type Dispatch struct {
	RecordID            string
	Decision            core.Decision
	Status              string
	AggregateConfidence float64
	HasConfidence       bool
	FlaggedFields       []string
	ReviewTaskID        string
	ReviewTicket        string
}

// Router dispatches records to the storage or review sink.
// It is safe for concurrent use.
type Router struct {
	threshold    float64
	workflow     string
	hasWorkflow  bool
	loopPrefix   string
	trackPending bool
	sinkRetry    retry.Policy
	storage      StorageSink
	review       ReviewSink
	metrics      *metrics.Metrics
	logger       *slog.Logger
	now          func() time.Time
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics records decisions in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Router) {
		r.metrics = m
	}
}

// WithClock overrides the review task timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Router) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRouter creates a Router. review may be nil only when cfg has no review
// workflow; records needing review then fail with ErrReviewNotConfigured.
func NewRouter(cfg *config.Config, storage StorageSink, review ReviewSink, opts ...Option) (*Router, error) {
	if storage == nil {
		return nil, ErrStorageSinkRequired
	}
	workflow, hasWorkflow := cfg.ReviewWorkflow()
	if hasWorkflow && review == nil {
		return nil, ErrReviewSinkRequired
	}
	r := &Router{
		threshold:    cfg.ConfidenceThreshold,
		workflow:     workflow,
		hasWorkflow:  hasWorkflow,
		loopPrefix:   cfg.ReviewLoopPrefix,
		trackPending: cfg.TrackPendingReviews,
		sinkRetry:    cfg.SinkRetry,
		storage:      storage,
		review:       review,
		logger:       slog.Default(),
		now:          func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Threshold returns the AUTO_ACCEPT threshold.
func (r *Router) Threshold() float64 {
	return r.threshold
}

// Route computes the record's aggregate confidence and decision, then
// dispatches it. The record is updated in place with the outcome.
//
// Sink calls are retried for transient failures only; the decision is
// computed once and never revisited. A record needing review without a
// configured workflow is still stored with status needs_review, and Route
// returns a permanent ErrReviewNotConfigured.
func (r *Router) Route(ctx context.Context, record *core.ExtractionRecord) (*Dispatch, error) {
	confidence, ok := Aggregate(record.Fields)
	record.AggregateConfidence = confidence
	record.HasConfidence = ok
	record.Decision = Decide(confidence, ok, r.threshold)
	r.metrics.RecordDecision(record.Decision, confidence, ok)

	logger := r.logger.With("record_id", record.ID, "job_id", record.JobID,
		"confidence", confidence, "threshold", r.threshold, "decision", record.Decision)

	if record.Decision == core.DecisionAutoAccept {
		record.Status = core.StatusHighConfidence
		record.FlaggedFields = nil
		record.ReviewReason = ""
		if err := r.store(ctx, record); err != nil {
			return nil, err
		}
		logger.Info("record stored")
		return r.dispatch(record), nil
	}

	record.Status = core.StatusNeedsReview
	record.FlaggedFields = FlagLowConfidence(record.Fields, r.threshold)
	if record.ReviewReason == "" {
		record.ReviewReason = ReviewReason(confidence, ok)
	}

	if !r.hasWorkflow {
		logger.Error("record needs review but no review workflow is configured")
		if err := r.store(ctx, record); err != nil {
			return nil, err
		}
		return r.dispatch(record), core.Permanent("route review", ErrReviewNotConfigured)
	}

	task := r.newTask(record)
	var ticket string
	err := retry.Do(ctx, r.sinkRetry, "submit review", func(ctx context.Context) error {
		t, err := r.review.SubmitReview(ctx, task)
		if err != nil {
			return err
		}
		ticket = t
		return nil
	})
	if err != nil {
		logger.Error("review dispatch failed", "task_id", task.ID, "err", err)
		return nil, err
	}

	record.ReviewTaskID = task.ID
	record.ReviewTicket = ticket
	record.Status = core.StatusPendingReview
	if r.trackPending {
		if err := r.store(ctx, record); err != nil {
			return nil, err
		}
	}
	logger.Info("record sent for review", "task_id", task.ID, "ticket", ticket, "flagged", record.FlaggedFields)
	return r.dispatch(record), nil
}

func (r *Router) store(ctx context.Context, record *core.ExtractionRecord) error {
	return retry.Do(ctx, r.sinkRetry, "store record", func(ctx context.Context) error {
		return r.storage.UpsertRecord(ctx, record)
	})
}

func (r *Router) newTask(record *core.ExtractionRecord) *core.ReviewTask {
	snapshot := *record
	snapshot.RawPayload = nil
	return &core.ReviewTask{
		ID:               ReviewTaskID(r.loopPrefix, record.ID, record.JobID),
		RecordID:         record.ID,
		JobID:            record.JobID,
		WorkflowID:       r.workflow,
		Record:           &snapshot,
		FieldConfidences: record.FieldConfidences(),
		FlaggedFields:    record.FlaggedFields,
		Reason:           record.ReviewReason,
		CreatedAt:        r.now(),
	}
}

func (r *Router) dispatch(record *core.ExtractionRecord) *Dispatch {
	return &Dispatch{
		RecordID:            record.ID,
		Decision:            record.Decision,
		Status:              record.Status,
		AggregateConfidence: record.AggregateConfidence,
		HasConfidence:       record.HasConfidence,
		FlaggedFields:       record.FlaggedFields,
		ReviewTaskID:        record.ReviewTaskID,
		ReviewTicket:        record.ReviewTicket,
	}
}

// maxTaskIDLength bounds task IDs to what review workflows accept as names.
const maxTaskIDLength = 63

// ReviewTaskID derives the review task identifier for a record. The same
// job always yields the same ID, so redelivered completions do not queue a
// second review. IDs contain only lowercase letters, digits and hyphens.
func ReviewTaskID(prefix, recordID, jobID string) string {
	suffix := string(core.FingerprintFromContent(jobID))[:12]
	head := sanitizeName(prefix)
	if id := sanitizeName(recordID); id != "" {
		if head != "" {
			head += "-"
		}
		head += id
	}
	if limit := maxTaskIDLength - len(suffix) - 1; len(head) > limit {
		head = strings.TrimRight(head[:limit], "-")
	}
	if head == "" {
		return suffix
	}
	return head + "-" + suffix
}

// sanitizeName lowercases s and replaces runs of other characters with one hyphen.
func sanitizeName(s string) string {
	var b strings.Builder
	hyphen := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if hyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			hyphen = false
			b.WriteRune(r)
			continue
		}
		hyphen = true
	}
	return b.String()
}
