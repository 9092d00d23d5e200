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


package replay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/docroute/completion"
	"github.com/poiesic/docroute/core"
)

// Handler processes one completion event. *completion.Listener implements it.
type Handler interface {
	Handle(ctx context.Context, event *core.CompletionEvent) (*completion.Outcome, error)
}

// Result is the handling result of one event.
type Result struct {
	Index   int
	Event   *core.CompletionEvent
	Outcome *completion.Outcome
	Err     error
}

// Summary aggregates the results of a replay.
type Summary struct {
	Total     int
	Processed int // Routed for the first time
	Replayed  int // Already completed before this run
	Malformed int // Routed to review because the artifact was malformed
	Failed    int
	Results   []Result // In input order
}

// Runner replays completion events on a worker pool.
type Runner struct {
	handler        Handler
	pool           *ants.Pool
	progress       io.Writer
	reportInterval int
	logger         *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner) error

// WithPoolSize sets the number of concurrent workers.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(r *Runner) error {
		if size < 1 {
			size = 1
		}
		pool, err := newPool(size)
		if err != nil {
			return err
		}
		if r.pool != nil {
			r.pool.Release()
		}
		r.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// WithProgress reports progress to w every interval events.
func WithProgress(w io.Writer, interval int) Option {
	return func(r *Runner) error {
		r.progress = w
		r.reportInterval = interval
		return nil
	}
}

// NewRunner creates a Runner around handler. Call Release when done.
func NewRunner(handler Handler, opts ...Option) (*Runner, error) {
	if handler == nil {
		return nil, ErrHandlerRequired
	}

	r := &Runner{
		handler: handler,
		logger:  slog.Default(),
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := newPool(poolSize)
	if err != nil {
		return nil, err
	}
	r.pool = pool

	for _, opt := range opts {
		if err := opt(r); err != nil {
			r.Release()
			return nil, err
		}
	}
	return r, nil
}

func newPool(size int) (*ants.Pool, error) {
	return ants.NewPool(size)
}

// Run handles every event and waits for all of them to finish.
// Individual failures are reported in the summary; Run itself only fails
// when ctx is done before every event was dispatched.
func (r *Runner) Run(ctx context.Context, events []*core.CompletionEvent) (*Summary, error) {
	results := make([]Result, len(events))
	var tracker *ProgressTracker
	if r.progress != nil {
		tracker = NewProgressTracker(r.progress, len(events), r.reportInterval)
		tracker.Start()
	}

	var wg sync.WaitGroup
	var runErr error
	for i, event := range events {
		results[i] = Result{Index: i, Event: event}
		if err := ctx.Err(); err != nil {
			results[i].Err = err
			runErr = err
			continue
		}

		wg.Add(1)
		err := r.pool.Submit(func() {
			defer wg.Done()
			outcome, err := r.handle(ctx, event)
			results[i].Outcome = outcome
			results[i].Err = err
			if err != nil {
				r.logger.Warn("replayed event failed", "job_id", event.JobID, "err", err)
			}
			if tracker != nil {
				tracker.Record(err != nil && outcome == nil)
			}
		})
		if err != nil {
			wg.Done()
			results[i].Err = err
			runErr = err
		}
	}
	wg.Wait()
	if tracker != nil {
		tracker.Finish()
	}

	summary := summarize(results)
	r.logger.Info("replay finished", "total", summary.Total, "processed", summary.Processed,
		"replayed", summary.Replayed, "malformed", summary.Malformed, "failed", summary.Failed)
	return summary, runErr
}

// handle converts a handler panic into an error so one bad event cannot
// stop the run.
func (r *Runner) handle(ctx context.Context, event *core.CompletionEvent) (outcome *completion.Outcome, err error) {
	defer func() {
		if p := recover(); p != nil {
			outcome = nil
			err = fmt.Errorf("%w: %v", ErrHandlerPanicked, p)
		}
	}()
	return r.handler.Handle(ctx, event)
}

func summarize(results []Result) *Summary {
	s := &Summary{Total: len(results), Results: results}
	for _, res := range results {
		var malformed *core.MalformedResultError
		switch {
		case res.Err == nil && res.Outcome != nil && res.Outcome.Replayed:
			s.Replayed++
		case res.Err == nil:
			s.Processed++
		case res.Outcome != nil && errors.As(res.Err, &malformed):
			s.Malformed++
		default:
			s.Failed++
		}
	}
	return s
}

// Release stops the worker pool. The Runner must not be used afterwards.
func (r *Runner) Release() {
	if r.pool != nil {
		r.pool.Release()
	}
}
