package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/docroute/config"
	"github.com/poiesic/docroute/core"
	"github.com/poiesic/docroute/metrics"
	"github.com/poiesic/docroute/retry"
	"github.com/poiesic/docroute/storage"
	"golang.org/x/time/rate"
)

// Submitter is the new-document entry point.
// It is stateless apart from the job repository and safe for concurrent use.
type Submitter struct {
	cfg     *config.Config
	client  Client
	jobs    storage.JobRepository
	limiter *rate.Limiter
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Submitter.
type Option func(*Submitter) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Submitter) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithMetrics records submission outcomes in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Submitter) error {
		s.metrics = m
		return nil
	}
}

// WithRateLimit throttles submissions to perSecond, with bursts of one.
// Zero disables throttling.
func WithRateLimit(perSecond float64) Option {
	return func(s *Submitter) error {
		if perSecond < 0 {
			return fmt.Errorf("rate limit cannot be negative: %v", perSecond)
		}
		if perSecond == 0 {
			s.limiter = nil
			return nil
		}
		s.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		return nil
	}
}

// WithClock overrides the submission timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Submitter) error {
		if now != nil {
			s.now = now
		}
		return nil
	}
}

// NewSubmitter creates a Submitter. Rate limiting defaults to cfg.SubmitRatePerSecond.
func NewSubmitter(cfg *config.Config, client Client, jobs storage.JobRepository, opts ...Option) (*Submitter, error) {
	if cfg == nil {
		return nil, ErrConfigRequired
	}
	if client == nil {
		return nil, ErrClientRequired
	}
	if jobs == nil {
		return nil, ErrJobRepositoryRequired
	}

	s := &Submitter{
		cfg:    cfg,
		client: client,
		jobs:   jobs,
		logger: slog.Default(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	if err := WithRateLimit(cfg.SubmitRatePerSecond)(s); err != nil {
		return nil, err
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Submit starts an extraction job for the document announced by event and
// records the correlation between job and predicted output location.
//
// Redelivery of an already submitted event returns the existing job without
// contacting the service again.
func (s *Submitter) Submit(ctx context.Context, event *core.DocumentEvent) (*core.ExtractionJob, error) {
	if err := core.ValidateDocumentEvent(event); err != nil {
		s.metrics.RecordSubmission(metrics.ResultFailed)
		return nil, core.Permanent("validate document event", err)
	}
	if event.EventTime.IsZero() {
		stamped := *event
		stamped.EventTime = s.now()
		event = &stamped
	}
	doc := core.NewDocument(event)
	logger := s.logger.With("document_id", doc.ID, "source", doc.Source.URI())

	existing, err := s.jobs.FindJobByFingerprint(ctx, doc.Fingerprint)
	switch {
	case err == nil:
		logger.Info("document already submitted", "job_id", existing.JobID, "state", existing.State)
		s.metrics.RecordSubmission(metrics.ResultDuplicate)
		return existing, nil
	case !errors.Is(err, storage.ErrNotFound):
		s.metrics.RecordSubmission(metrics.ResultFailed)
		return nil, fmt.Errorf("lookup fingerprint %s: %w", doc.Fingerprint, err)
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			s.metrics.RecordSubmission(metrics.ResultFailed)
			return nil, err
		}
	}

	output := PredictOutputLocation(s.cfg, doc)
	req := &Request{
		Document:       doc,
		Target:         s.cfg.ExtractionTarget,
		Profile:        s.cfg.Profile(),
		OutputLocation: output,
		ClientToken:    ClientToken(doc.Fingerprint),
	}

	var handle *Handle
	err = retry.Do(ctx, s.cfg.SubmitRetry, "extraction submit", func(ctx context.Context) error {
		h, err := s.client.Submit(ctx, req)
		if err != nil {
			return err
		}
		handle = h
		return nil
	})
	if err != nil {
		logger.Error("extraction submission failed", "err", err)
		s.metrics.RecordSubmission(metrics.ResultFailed)
		return nil, err
	}

	jobID := handle.JobID
	if jobID == "" {
		jobID = core.JobIDFromHandle(handle.ARN)
	}
	if jobID == "" {
		s.metrics.RecordSubmission(metrics.ResultFailed)
		return nil, core.Permanent("extraction submit", ErrEmptyHandle)
	}

	job := &core.ExtractionJob{
		JobID:          jobID,
		Handle:         handle.ARN,
		Document:       *doc,
		SubmittedAt:    s.now(),
		OutputLocation: output,
		State:          core.JobStateSubmitted,
	}
	err = retry.Do(ctx, s.cfg.SinkRetry, "save job", func(ctx context.Context) error {
		return s.jobs.SaveJob(ctx, job)
	})
	if err != nil {
		// The job is running; completion can still adopt it from its event.
		logger.Error("failed to persist correlation record", "job_id", jobID, "err", err)
		s.metrics.RecordSubmission(metrics.ResultFailed)
		return nil, fmt.Errorf("save job %s: %w", jobID, err)
	}

	logger.Info("extraction job submitted", "job_id", jobID, "output", output.URI())
	s.metrics.RecordSubmission(metrics.ResultSubmitted)
	return job, nil
}
