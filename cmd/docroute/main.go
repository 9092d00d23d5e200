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


package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/poiesic/docroute"
	"github.com/poiesic/docroute/broker"
	"github.com/poiesic/docroute/cloud"
	"github.com/poiesic/docroute/config"
	"github.com/poiesic/docroute/core"
	"github.com/poiesic/docroute/extraction/mock"
	"github.com/poiesic/docroute/metrics"
	"github.com/poiesic/docroute/replay"
	"github.com/poiesic/docroute/result"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
)

const (
	backendLocal = "local"
	backendAWS   = "aws"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "docroute",
		Usage: "Submit documents for extraction and route the results by confidence",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML configuration file",
				EnvVars: []string{"DOCROUTE_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "backend",
				Usage: "Service backend (local, aws)",
				Value: backendLocal,
			},
			&cli.StringFlag{
				Name:  "artifact-root",
				Usage: "Directory holding result artifacts as <bucket>/<key> (local backend)",
			},
			&cli.BoolFlag{
				Name:  "metrics",
				Usage: "Expose Prometheus metrics on the configured metrics address while running",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "submit",
				Usage:  "Submit a document for extraction",
				Action: submitCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "bucket",
						Aliases:  []string{"b"},
						Usage:    "Bucket holding the document",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "key",
						Aliases:  []string{"k"},
						Usage:    "Object key of the document",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "etag",
						Usage: "Object ETag, used to tell re-uploads apart",
					},
					&cli.StringFlag{
						Name:  "version-id",
						Usage: "Object version ID",
					},
				},
			},
			{
				Name:   "complete",
				Usage:  "Handle one job-completion notification",
				Action: completeCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "job-id",
						Aliases:  []string{"j"},
						Usage:    "Extraction job ID",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "status",
						Usage: "Job status (SUCCESS, FAILURE)",
						Value: string(core.JobStatusSuccess),
					},
					&cli.StringFlag{
						Name:  "output-bucket",
						Usage: "Bucket of the reported output location",
					},
					&cli.StringFlag{
						Name:  "output-name",
						Usage: "Reported output prefix or object name",
					},
				},
			},
			{
				Name:      "replay",
				Usage:     "Replay recorded completion notifications from a JSON-lines file",
				ArgsUsage: "<file|->",
				Action:    replayCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "workers",
						Aliases: []string{"w"},
						Usage:   "Number of concurrent workers (0 = half the CPUs)",
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N events",
						Value: 100,
					},
				},
			},
			{
				Name:   "jobs",
				Usage:  "List correlation records",
				Action: jobsCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "state",
						Usage: "Only list jobs in this state (SUBMITTED, COMPLETED, FAILED)",
					},
				},
			},
			{
				Name:   "records",
				Usage:  "List records stored in the local database",
				Action: recordsCommand,
			},
			{
				Name:   "reviews",
				Usage:  "List review tasks queued in the local database",
				Action: reviewsCommand,
			},
		},
	}
}

func submitCommand(c *cli.Context) error {
	ctx, stop := signalContext()
	defer stop()

	p, closeFn, err := openPipeline(ctx, c)
	if err != nil {
		return err
	}
	defer closeFn()

	job, err := p.Submit(ctx, &core.DocumentEvent{
		Bucket:    c.String("bucket"),
		Key:       c.String("key"),
		ETag:      c.String("etag"),
		VersionID: c.String("version-id"),
	})
	if err != nil {
		return fmt.Errorf("submission failed: %w", err)
	}
	return writeJSON(c.App.Writer, job)
}

func completeCommand(c *cli.Context) error {
	ctx, stop := signalContext()
	defer stop()

	p, closeFn, err := openPipeline(ctx, c)
	if err != nil {
		return err
	}
	defer closeFn()

	event := &core.CompletionEvent{
		JobID:     c.String("job-id"),
		Status:    core.JobStatus(strings.ToUpper(c.String("status"))),
		Timestamp: time.Now().UTC(),
	}
	if c.String("output-bucket") != "" || c.String("output-name") != "" {
		event.Output = &core.Location{Bucket: c.String("output-bucket"), Name: c.String("output-name")}
	}

	outcome, err := p.Complete(ctx, event)
	if outcome != nil {
		if werr := writeJSON(c.App.Writer, outcome); werr != nil {
			return werr
		}
	}
	if err != nil {
		return fmt.Errorf("completion failed: %w", err)
	}
	return nil
}

func replayCommand(c *cli.Context) error {
	ctx, stop := signalContext()
	defer stop()

	if c.NArg() != 1 {
		return errors.New("exactly one event file is required (use - for stdin)")
	}
	if c.Int("workers") < 0 {
		return fmt.Errorf("workers cannot be negative")
	}
	if c.Int("report-interval") <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}

	events, err := readEventFile(c.Args().First(), os.Stdin)
	if err != nil {
		return err
	}

	p, closeFn, err := openPipeline(ctx, c)
	if err != nil {
		return err
	}
	defer closeFn()

	opts := []replay.Option{replay.WithProgress(c.App.ErrWriter, c.Int("report-interval"))}
	if n := c.Int("workers"); n > 0 {
		opts = append(opts, replay.WithPoolSize(n))
	}

	fmt.Fprintf(c.App.ErrWriter, "Events: %d\n", len(events))
	fmt.Fprintln(c.App.ErrWriter)

	summary, err := p.Replay(ctx, events, opts...)
	if err != nil {
		return fmt.Errorf("replay failed: %w", err)
	}
	for _, res := range summary.Results {
		if res.Err != nil {
			slog.Warn("event failed", "index", res.Index, "job_id", res.Event.JobID, "err", res.Err)
		}
	}
	fmt.Fprintf(c.App.Writer, "Total: %d, processed: %d, replayed: %d, malformed: %d, failed: %d\n",
		summary.Total, summary.Processed, summary.Replayed, summary.Malformed, summary.Failed)
	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d events failed", summary.Failed, summary.Total)
	}
	return nil
}

func jobsCommand(c *cli.Context) error {
	ctx, stop := signalContext()
	defer stop()

	p, closeFn, err := openPipeline(ctx, c)
	if err != nil {
		return err
	}
	defer closeFn()

	jobs, err := p.Jobs().ListJobs(ctx, core.JobState(strings.ToUpper(c.String("state"))))
	if err != nil {
		return fmt.Errorf("failed to list jobs: %w", err)
	}
	return writeJSON(c.App.Writer, jobs)
}

func recordsCommand(c *cli.Context) error {
	ctx, stop := signalContext()
	defer stop()

	p, closeFn, err := openPipeline(ctx, c)
	if err != nil {
		return err
	}
	defer closeFn()

	records, err := p.Records().ListRecords(ctx)
	if err != nil {
		return fmt.Errorf("failed to list records: %w", err)
	}
	return writeJSON(c.App.Writer, records)
}

func reviewsCommand(c *cli.Context) error {
	ctx, stop := signalContext()
	defer stop()

	p, closeFn, err := openPipeline(ctx, c)
	if err != nil {
		return err
	}
	defer closeFn()

	reviews, err := p.Reviews().ListReviews(ctx)
	if err != nil {
		return fmt.Errorf("failed to list reviews: %w", err)
	}
	return writeJSON(c.App.Writer, reviews)
}

// openPipeline loads the configuration and assembles a pipeline for the
// selected backend. The returned function releases everything opened here.
func openPipeline(ctx context.Context, c *cli.Context) (*docroute.Pipeline, func(), error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, nil, err
	}

	logger := slog.Default()
	var cleanup []func()
	closeAll := func() {
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
	}

	opts := []docroute.Option{docroute.WithLogger(logger)}

	if c.Bool("metrics") {
		reg := prometheus.NewRegistry()
		opts = append(opts, docroute.WithMetrics(metrics.New(reg)))
		cleanup = append(cleanup, serveMetrics(cfg.MetricsAddr, reg, logger))
	}

	switch backend := c.String("backend"); backend {
	case backendLocal:
		opts = append(opts, docroute.WithExtractionClient(mock.NewClient()))
		if root := c.String("artifact-root"); root != "" {
			opts = append(opts, docroute.WithArtifactStore(result.NewFileStore(root)))
		}
	case backendAWS:
		svc, err := cloud.NewServices(ctx, cfg, logger)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		opts = append(opts, docroute.WithServices(svc))
	default:
		closeAll()
		return nil, nil, fmt.Errorf("invalid backend %q: must be one of %s, %s", backend, backendLocal, backendAWS)
	}

	if cfg.NATSURL != "" {
		sink, closeNATS, err := openReviewBroker(cfg, logger)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		cleanup = append(cleanup, closeNATS)
		opts = append(opts, docroute.WithReviewSink(sink))
	}

	p, err := docroute.Open(cfg, opts...)
	if err != nil {
		closeAll()
		return nil, nil, fmt.Errorf("failed to open pipeline: %w", err)
	}
	cleanup = append(cleanup, func() { p.Close() })
	return p, closeAll, nil
}

// openReviewBroker connects to NATS and makes sure the review stream exists.
func openReviewBroker(cfg *config.Config, logger *slog.Logger) (*broker.ReviewSink, func(), error) {
	nc, err := broker.Connect(cfg.NATSURL)
	if err != nil {
		return nil, nil, err
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("failed to create jetstream context: %w", err)
	}
	if err := broker.EnsureStream(js, broker.DefaultStream, cfg.ReviewSubject); err != nil {
		nc.Close()
		return nil, nil, err
	}
	sink, err := broker.NewReviewSink(js, cfg.ReviewSubject, logger)
	if err != nil {
		nc.Close()
		return nil, nil, err
	}
	return sink, func() { drain(nc, logger) }, nil
}

func drain(nc *nats.Conn, logger *slog.Logger) {
	if err := nc.Drain(); err != nil {
		logger.Warn("failed to drain nats connection", "err", err)
	}
}

// serveMetrics exposes reg on addr until the returned function is called.
func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "err", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

func readEventFile(path string, stdin io.Reader) ([]*core.CompletionEvent, error) {
	if path == "-" {
		return replay.ReadEvents(stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open event file: %w", err)
	}
	defer f.Close()
	events, err := replay.ReadEvents(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return events, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
