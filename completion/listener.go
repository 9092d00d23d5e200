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


package completion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/docroute/config"
	"github.com/poiesic/docroute/core"
	"github.com/poiesic/docroute/metrics"
	"github.com/poiesic/docroute/result"
	"github.com/poiesic/docroute/retry"
	"github.com/poiesic/docroute/routing"
	"github.com/poiesic/docroute/storage"
)

// Outcome summarizes how a completion event was handled.
type Outcome struct {
	JobID               string
	RecordID            string
	Decision            core.Decision
	Status              string
	AggregateConfidence float64
	HasConfidence       bool
	FlaggedFields       []string
	ReviewTicket        string
	Artifact            core.ObjectRef
	Replayed            bool // The job had already completed; nothing was dispatched
}

// Listener is the completion entry point. It keeps no state between calls
// and is safe for concurrent use.
type Listener struct {
	cfg     *config.Config
	jobs    storage.JobRepository
	store   result.ArtifactStore
	parser  *result.Parser
	router  *routing.Router
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Listener.
type Option func(*Listener)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(l *Listener) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithMetrics records completion outcomes in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Listener) {
		l.metrics = m
	}
}

// WithClock overrides the processing timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Listener) {
		if now != nil {
			l.now = now
		}
	}
}

// NewListener creates a Listener. The result parser is built from
// cfg.ResultSchemaVersion and cfg.FieldAliases.
func NewListener(cfg *config.Config, jobs storage.JobRepository, store result.ArtifactStore, router *routing.Router, opts ...Option) (*Listener, error) {
	if cfg == nil {
		return nil, ErrConfigRequired
	}
	if jobs == nil {
		return nil, ErrJobRepositoryRequired
	}
	if store == nil {
		return nil, ErrArtifactStoreRequired
	}
	if router == nil {
		return nil, ErrRouterRequired
	}
	parser, err := result.NewParser(cfg.ResultSchemaVersion, cfg.FieldAliases)
	if err != nil {
		return nil, err
	}
	l := &Listener{
		cfg:    cfg,
		jobs:   jobs,
		store:  store,
		parser: parser,
		router: router,
		logger: slog.Default(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Handle processes one completion event within cfg.ProcessingTimeout.
//
// A FAILURE event marks the job failed and returns a permanent error wrapping
// ErrJobFailed. A malformed result artifact is routed to review and the
// *core.MalformedResultError is returned together with the outcome. Any other
// error leaves the job open so a redelivered event can finish it.
func (l *Listener) Handle(ctx context.Context, event *core.CompletionEvent) (*Outcome, error) {
	started := l.now()
	if err := core.ValidateCompletionEvent(event); err != nil {
		l.metrics.RecordCompletion(metrics.ResultFailed, 0)
		return nil, core.Permanent("validate completion event", err)
	}

	ctx, cancel := context.WithTimeout(ctx, l.cfg.ProcessingTimeout)
	defer cancel()

	logger := l.logger.With("job_id", event.JobID, "status", event.Status)

	outcome, err := l.handle(ctx, logger, event)
	elapsed := l.now().Sub(started)

	var malformedErr *core.MalformedResultError
	switch {
	case outcome != nil && outcome.Replayed:
		l.metrics.RecordCompletion(metrics.ResultReplayed, elapsed)
	case errors.As(err, &malformedErr):
		l.metrics.RecordCompletion(metrics.ResultMalformed, elapsed)
	case err != nil:
		l.metrics.RecordCompletion(metrics.ResultFailed, elapsed)
	default:
		l.metrics.RecordCompletion(metrics.ResultProcessed, elapsed)
	}
	return outcome, err
}

func (l *Listener) handle(ctx context.Context, logger *slog.Logger, event *core.CompletionEvent) (*Outcome, error) {
	job, err := l.correlate(ctx, logger, event)
	if err != nil {
		return nil, err
	}

	if job.State == core.JobStateCompleted && job.Outcome != nil {
		logger.Info("job already completed", "record_id", job.Outcome.RecordID)
		return &Outcome{
			JobID:        job.JobID,
			RecordID:     job.Outcome.RecordID,
			Decision:     job.Outcome.Decision,
			Status:       job.Outcome.Status,
			ReviewTicket: job.Outcome.ReviewTicket,
			Replayed:     true,
		}, nil
	}

	if event.Status == core.JobStatusFailure {
		job.State = core.JobStateFailed
		job.LastError = ErrJobFailed.Error()
		l.save(ctx, logger, job)
		logger.Error("extraction job failed", "source", job.Document.Source.URI())
		return nil, core.Permanent("extraction job "+job.JobID, ErrJobFailed)
	}

	artifact, err := result.Locate(job, event)
	if err != nil {
		l.recordAttempt(ctx, logger, job, err)
		return nil, err
	}

	raw, err := l.fetch(ctx, artifact)
	if err != nil {
		logger.Error("result artifact unavailable", "artifact", artifact.URI(), "err", err)
		l.recordAttempt(ctx, logger, job, err)
		return nil, err
	}

	record := l.newRecord(job, event, artifact)
	parsed, parseErr := l.parser.Parse(raw)
	if parseErr != nil {
		reason := parseErr.Error()
		var malformedErr *core.MalformedResultError
		if errors.As(parseErr, &malformedErr) {
			reason = malformedErr.Reason
		}
		logger.Error("malformed result artifact", "artifact", artifact.URI(), "err", parseErr)
		record.RawPayload = raw
		record.ReviewReason = "Malformed result: " + reason
	} else {
		l.populate(record, parsed)
	}

	dispatch, err := l.router.Route(ctx, record)
	if err != nil {
		l.recordAttempt(ctx, logger, job, err)
		return nil, errors.Join(err, parseErr)
	}

	job.State = core.JobStateCompleted
	job.LastError = ""
	job.Outcome = &core.JobOutcome{
		RecordID:     dispatch.RecordID,
		Decision:     dispatch.Decision,
		Status:       dispatch.Status,
		ReviewTicket: dispatch.ReviewTicket,
	}
	if parseErr != nil {
		job.LastError = parseErr.Error()
	}
	if err := l.saveWithRetry(ctx, job); err != nil {
		// The record is dispatched; a redelivery re-dispatches idempotently.
		logger.Error("failed to mark job completed", "err", err)
		return nil, fmt.Errorf("save job %s: %w", job.JobID, err)
	}

	return &Outcome{
		JobID:               job.JobID,
		RecordID:            dispatch.RecordID,
		Decision:            dispatch.Decision,
		Status:              dispatch.Status,
		AggregateConfidence: dispatch.AggregateConfidence,
		HasConfidence:       dispatch.HasConfidence,
		FlaggedFields:       dispatch.FlaggedFields,
		ReviewTicket:        dispatch.ReviewTicket,
		Artifact:            artifact,
	}, parseErr
}

// correlate loads the job recorded at submission. Unknown jobs are adopted
// when the event says where their output is, and failed ones always so the
// failure is recorded.
func (l *Listener) correlate(ctx context.Context, logger *slog.Logger, event *core.CompletionEvent) (*core.ExtractionJob, error) {
	job, err := l.jobs.GetJob(ctx, event.JobID)
	if err == nil {
		return job, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("lookup job %s: %w", event.JobID, err)
	}
	hasOutput := event.Output != nil && !event.Output.IsZero()
	if !hasOutput && event.Status != core.JobStatusFailure {
		return nil, core.Permanent("lookup job "+event.JobID, ErrUnknownJob)
	}

	logger.Warn("adopting job without correlation record", "source", event.SourceDocument.URI())
	source := event.SourceDocument
	return &core.ExtractionJob{
		JobID: event.JobID,
		Document: core.Document{
			ID:          core.DocumentIDFromKey(source.Key),
			Source:      source,
			IngestedAt:  event.Timestamp,
			Fingerprint: core.FingerprintFromContent(source.Bucket + "\x00" + source.Key + "\x00" + event.JobID),
		},
		SubmittedAt: event.Timestamp,
		State:       core.JobStateSubmitted,
	}, nil
}

func (l *Listener) fetch(ctx context.Context, artifact core.ObjectRef) ([]byte, error) {
	var raw []byte
	err := retry.Do(ctx, l.cfg.ArtifactRetry, "fetch result", func(ctx context.Context) error {
		l.metrics.RecordArtifactFetch()
		data, err := l.store.Fetch(ctx, artifact)
		if err != nil {
			return err
		}
		raw = data
		return nil
	})
	return raw, err
}

func (l *Listener) newRecord(job *core.ExtractionJob, event *core.CompletionEvent, artifact core.ObjectRef) *core.ExtractionRecord {
	doc := job.Document
	if doc.Source.IsZero() {
		doc.Source = event.SourceDocument
		doc.ID = core.DocumentIDFromKey(event.SourceDocument.Key)
	}
	return &core.ExtractionRecord{
		ID:             job.JobID,
		JobID:          job.JobID,
		Document:       doc,
		OutputLocation: core.ObjectRef{Bucket: artifact.Bucket, Key: strings.TrimSuffix(artifact.Key, result.ArtifactPath)},
		ProcessedAt:    l.now(),
	}
}

// populate copies parsed fields into record and resolves its stable ID.
func (l *Listener) populate(record *core.ExtractionRecord, parsed *result.Parsed) {
	record.MatchedSchemaID = parsed.MatchedSchemaID
	record.MatchedSchemaConfidence = parsed.MatchedSchemaConfidence
	record.Classification = parsed.Classification
	record.Fields = parsed.Fields

	if key, ok := record.Field(l.cfg.BusinessKeyField); ok && strings.TrimSpace(key.Value) != "" {
		record.ID = strings.TrimSpace(key.Value)
	}

	for name, value := range l.cfg.FieldDefaults {
		if _, ok := record.Field(name); ok {
			continue
		}
		if record.Defaults == nil {
			record.Defaults = make(map[string]string)
		}
		record.Defaults[name] = value
	}
}

// recordAttempt notes an unfinished attempt on the job. Bookkeeping failures
// are logged; the original error is what the caller sees.
func (l *Listener) recordAttempt(ctx context.Context, logger *slog.Logger, job *core.ExtractionJob, cause error) {
	job.Attempts++
	job.LastError = cause.Error()
	l.save(ctx, logger, job)
}

func (l *Listener) save(ctx context.Context, logger *slog.Logger, job *core.ExtractionJob) {
	if err := l.saveWithRetry(ctx, job); err != nil {
		logger.Warn("failed to update job", "err", err)
	}
}

// saveWithRetry persists job even if ctx has already expired, so a timed-out
// attempt is still recorded.
func (l *Listener) saveWithRetry(ctx context.Context, job *core.ExtractionJob) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.cfg.ProcessingTimeout)
	defer cancel()
	return retry.Do(ctx, l.cfg.SinkRetry, "save job", func(ctx context.Context) error {
		return l.jobs.SaveJob(ctx, job)
	})
}
