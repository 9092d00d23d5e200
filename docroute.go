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


// Package docroute wires the document extraction routing pipeline.
//
// Open assembles a Pipeline from a validated configuration: a local
// BadgerDB holds correlation records, accepted records and the review queue
// unless options substitute other implementations (DynamoDB, S3, A2I,
// JetStream). The Pipeline exposes the two entry points, Submit for new
// documents and Complete for job-completion notifications, plus concurrent
// Replay of recorded completions.
package docroute

import (
	"context"
	"errors"
	"log/slog"

	"github.com/poiesic/docroute/completion"
	"github.com/poiesic/docroute/config"
	"github.com/poiesic/docroute/core"
	"github.com/poiesic/docroute/extraction"
	"github.com/poiesic/docroute/metrics"
	"github.com/poiesic/docroute/replay"
	"github.com/poiesic/docroute/result"
	"github.com/poiesic/docroute/routing"
	"github.com/poiesic/docroute/storage"
	"github.com/poiesic/docroute/storage/badger"
)

var (
	// ErrSubmissionDisabled is returned by Submit when no extraction client was configured.
	ErrSubmissionDisabled = errors.New("no extraction client configured")

	// ErrCompletionDisabled is returned by Complete when no artifact store was configured.
	ErrCompletionDisabled = errors.New("no artifact store configured")
)

// Pipeline is an opened routing pipeline. It is safe for concurrent use.
type Pipeline struct {
	cfg       *config.Config
	repos     *badger.Repositories
	jobs      storage.JobRepository
	submitter *extraction.Submitter
	router    *routing.Router
	listener  *completion.Listener
	logger    *slog.Logger
}

// Option configures a Pipeline.
type Option func(*options)

type options struct {
	client   extraction.Client
	store    result.ArtifactStore
	sink     routing.StorageSink
	review   routing.ReviewSink
	jobs     storage.JobRepository
	metrics  *metrics.Metrics
	logger   *slog.Logger
	inMemory bool
}

// WithExtractionClient enables Submit through client.
func WithExtractionClient(client extraction.Client) Option {
	return func(o *options) {
		o.client = client
	}
}

// WithArtifactStore enables Complete, reading result artifacts from store.
func WithArtifactStore(store result.ArtifactStore) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithStorageSink replaces the local record store as destination for routed records.
func WithStorageSink(sink routing.StorageSink) Option {
	return func(o *options) {
		o.sink = sink
	}
}

// WithReviewSink replaces the local review queue.
func WithReviewSink(sink routing.ReviewSink) Option {
	return func(o *options) {
		o.review = sink
	}
}

// WithJobRepository replaces the local correlation store.
func WithJobRepository(jobs storage.JobRepository) Option {
	return func(o *options) {
		o.jobs = jobs
	}
}

// WithMetrics records pipeline metrics in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// InMemory keeps local state in memory regardless of cfg.DatabasePath.
func InMemory() Option {
	return func(o *options) {
		o.inMemory = true
	}
}

// Open validates cfg and assembles a Pipeline. Close releases the local database.
func Open(cfg *config.Config, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &options{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	path := cfg.DatabasePath
	if o.inMemory {
		path = ""
	}
	repos, err := badger.OpenRepositories(path)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		cfg:    cfg,
		repos:  repos,
		jobs:   repos.Jobs,
		logger: o.logger,
	}
	if o.jobs != nil {
		p.jobs = o.jobs
	}
	var sink routing.StorageSink = repos.Records
	if o.sink != nil {
		sink = o.sink
	}
	var review routing.ReviewSink = repos.Reviews
	if o.review != nil {
		review = o.review
	}

	p.router, err = routing.NewRouter(cfg, sink, review,
		routing.WithLogger(o.logger), routing.WithMetrics(o.metrics))
	if err != nil {
		repos.Close()
		return nil, err
	}

	if o.client != nil {
		p.submitter, err = extraction.NewSubmitter(cfg, o.client, p.jobs,
			extraction.WithLogger(o.logger), extraction.WithMetrics(o.metrics))
		if err != nil {
			repos.Close()
			return nil, err
		}
	}

	if o.store != nil {
		p.listener, err = completion.NewListener(cfg, p.jobs, o.store, p.router,
			completion.WithLogger(o.logger), completion.WithMetrics(o.metrics))
		if err != nil {
			repos.Close()
			return nil, err
		}
	}
	return p, nil
}

// Close closes the local database.
func (p *Pipeline) Close() error {
	if err := p.repos.Close(); err != nil {
		p.logger.Error("error closing local database", "err", err)
		return err
	}
	return nil
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() *config.Config {
	return p.cfg
}

// Submit starts extraction for a new document.
func (p *Pipeline) Submit(ctx context.Context, event *core.DocumentEvent) (*core.ExtractionJob, error) {
	if p.submitter == nil {
		return nil, ErrSubmissionDisabled
	}
	return p.submitter.Submit(ctx, event)
}

// Complete handles one completion notification.
func (p *Pipeline) Complete(ctx context.Context, event *core.CompletionEvent) (*completion.Outcome, error) {
	if p.listener == nil {
		return nil, ErrCompletionDisabled
	}
	return p.listener.Handle(ctx, event)
}

// Replay handles events concurrently and summarizes the results.
func (p *Pipeline) Replay(ctx context.Context, events []*core.CompletionEvent, opts ...replay.Option) (*replay.Summary, error) {
	if p.listener == nil {
		return nil, ErrCompletionDisabled
	}
	runner, err := replay.NewRunner(p.listener, append([]replay.Option{replay.WithLogger(p.logger)}, opts...)...)
	if err != nil {
		return nil, err
	}
	defer runner.Release()
	return runner.Run(ctx, events)
}

// Router returns the router records are dispatched through.
func (p *Pipeline) Router() *routing.Router {
	return p.router
}

// Jobs returns the correlation store in use.
func (p *Pipeline) Jobs() storage.JobRepository {
	return p.jobs
}

// Records returns the local record store.
func (p *Pipeline) Records() storage.RecordRepository {
	return p.repos.Records
}

// Reviews returns the local review queue.
func (p *Pipeline) Reviews() storage.ReviewRepository {
	return p.repos.Reviews
}
