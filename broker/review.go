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


// Package broker publishes review tasks to NATS JetStream.
//
// Each task is published with its ID as the JetStream message ID, so the
// stream's duplicate window absorbs redelivered completions.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/poiesic/docroute/core"
)

// DefaultStream is the stream that captures review subjects.
const DefaultStream = "DOCROUTE_REVIEW"

// DefaultDuplicateWindow is how long JetStream remembers message IDs.
const DefaultDuplicateWindow = time.Hour

// Publisher is the subset of nats.JetStreamContext used by ReviewSink.
type Publisher interface {
	PublishMsg(m *nats.Msg, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// ReviewSink delivers review tasks to a JetStream subject.
type ReviewSink struct {
	js      Publisher
	subject string
	logger  *slog.Logger
}

// NewReviewSink creates a sink publishing to subject.
func NewReviewSink(js Publisher, subject string, logger *slog.Logger) (*ReviewSink, error) {
	if js == nil {
		return nil, errors.New("jetstream publisher required")
	}
	if subject == "" {
		return nil, errors.New("review subject required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ReviewSink{js: js, subject: subject, logger: logger}, nil
}

// SubmitReview publishes task and returns "{stream}:{sequence}" as the ticket.
// Republishing a task inside the duplicate window returns the original ticket.
func (s *ReviewSink) SubmitReview(ctx context.Context, task *core.ReviewTask) (string, error) {
	if task.ID == "" {
		return "", core.Permanent("publish review", errors.New("review task id required"))
	}
	data, err := json.Marshal(task)
	if err != nil {
		return "", core.Permanent("publish review", fmt.Errorf("marshal review task: %w", err))
	}

	msg := nats.NewMsg(s.subject)
	msg.Header.Set(nats.MsgIdHdr, task.ID)
	msg.Data = data

	ack, err := s.js.PublishMsg(msg, nats.Context(ctx))
	if err != nil {
		return "", classify(err)
	}
	if ack.Duplicate {
		s.logger.Debug("review task already published", "task_id", task.ID, "stream", ack.Stream, "seq", ack.Sequence)
	}
	return fmt.Sprintf("%s:%d", ack.Stream, ack.Sequence), nil
}

// classify separates configuration problems from conditions that may clear.
func classify(err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, nats.ErrStreamNotFound), errors.Is(err, nats.ErrBadSubject), errors.Is(err, nats.ErrMaxPayload):
		return core.Permanent("publish review", err)
	default:
		return core.Transient("publish review", err)
	}
}

// Connect dials NATS with reconnect settings suited to a long-running process.
func Connect(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(1*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	return nc, nil
}

// EnsureStream creates the review stream for subject if it does not exist.
func EnsureStream(js nats.JetStreamContext, name, subject string) error {
	_, err := js.StreamInfo(name)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("stream info %s: %w", name, err)
	}
	_, err = js.AddStream(&nats.StreamConfig{
		Name:       name,
		Subjects:   []string{subject},
		Storage:    nats.FileStorage,
		Duplicates: DefaultDuplicateWindow,
	})
	if err != nil {
		return fmt.Errorf("add stream %s: %w", name, err)
	}
	return nil
}
