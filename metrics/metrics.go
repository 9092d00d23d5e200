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


// Package metrics exposes Prometheus instrumentation for the routing pipeline.
package metrics

import (
	"time"

	"github.com/poiesic/docroute/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for submission and completion handling.
//
// All metrics are prefixed with "docroute_".
//
// Metrics:
//   - docroute_submissions_total{result} - submitted, duplicate or failed
//   - docroute_completions_total{result} - processed, replayed, failed, malformed
//   - docroute_decisions_total{decision} - AUTO_ACCEPT or NEEDS_REVIEW
//   - docroute_aggregate_confidence - histogram of aggregate confidence
//   - docroute_artifact_fetch_attempts_total - artifact fetch attempts
//   - docroute_completion_duration_seconds - completion handling latency
//
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	SubmissionsTotal    *prometheus.CounterVec
	CompletionsTotal    *prometheus.CounterVec
	DecisionsTotal      *prometheus.CounterVec
	AggregateConfidence prometheus.Histogram
	ArtifactFetches     prometheus.Counter
	CompletionDuration  prometheus.Histogram
}

// Result labels.
const (
	ResultSubmitted = "submitted"
	ResultDuplicate = "duplicate"
	ResultFailed    = "failed"
	ResultProcessed = "processed"
	ResultReplayed  = "replayed"
	ResultMalformed = "malformed"
)

// New creates the metrics and registers them with reg.
// A nil reg registers nothing, which suits tests and short-lived tools.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SubmissionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docroute_submissions_total",
				Help: "Total number of extraction submissions by result",
			},
			[]string{"result"},
		),
		CompletionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docroute_completions_total",
				Help: "Total number of completion events handled by result",
			},
			[]string{"result"},
		),
		DecisionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docroute_decisions_total",
				Help: "Total number of routing decisions",
			},
			[]string{"decision"},
		),
		AggregateConfidence: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "docroute_aggregate_confidence",
				Help:    "Aggregate confidence of routed records",
				Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
			},
		),
		ArtifactFetches: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "docroute_artifact_fetch_attempts_total",
				Help: "Total number of result artifact fetch attempts",
			},
		),
		CompletionDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "docroute_completion_duration_seconds",
				Help:    "Duration of completion handling in seconds",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
			},
		),
	}
}

// RecordSubmission counts a submission attempt.
func (m *Metrics) RecordSubmission(result string) {
	if m == nil {
		return
	}
	m.SubmissionsTotal.WithLabelValues(result).Inc()
}

// RecordCompletion counts a handled completion event and its latency.
func (m *Metrics) RecordCompletion(result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.CompletionsTotal.WithLabelValues(result).Inc()
	m.CompletionDuration.Observe(elapsed.Seconds())
}

// RecordDecision counts a routing decision. Records without any confidence
// are counted but not observed in the histogram.
func (m *Metrics) RecordDecision(decision core.Decision, confidence float64, ok bool) {
	if m == nil {
		return
	}
	m.DecisionsTotal.WithLabelValues(string(decision)).Inc()
	if ok {
		m.AggregateConfidence.Observe(confidence)
	}
}

// RecordArtifactFetch counts one artifact fetch attempt.
func (m *Metrics) RecordArtifactFetch() {
	if m == nil {
		return
	}
	m.ArtifactFetches.Inc()
}
