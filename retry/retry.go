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


package retry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/poiesic/docroute/core"
)

// Policy bounds the retries of a single operation.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int `koanf:"max_attempts"`

	// BaseDelay is the wait before the second attempt; it doubles on each retry.
	BaseDelay time.Duration `koanf:"base_delay"`

	// MaxDelay caps a single wait. Zero means uncapped.
	MaxDelay time.Duration `koanf:"max_delay"`
}

// Validate checks that the policy can be executed.
func (p Policy) Validate() error {
	if p.MaxAttempts <= 0 {
		return ErrInvalidMaxAttempts
	}
	if p.BaseDelay < 0 || p.MaxDelay < 0 {
		return ErrInvalidBaseDelay
	}
	return nil
}

// Do runs operation under the policy, retrying only errors core.IsRetryable accepts.
// op names the operation in debug logs.
// Returns the error from the last attempt if all attempts fail.
func Do(ctx context.Context, policy Policy, op string, operation func(ctx context.Context) error) error {
	if err := policy.Validate(); err != nil {
		return err
	}

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		// Check context before attempting
		select {
		case <-ctx.Done():
			return interrupted(ctx, lastErr)
		default:
		}

		lastErr = operation(ctx)
		if lastErr == nil {
			if attempt > 1 {
				slog.Debug("operation succeeded after retry", "op", op, "attempt", attempt)
			}
			return nil
		}

		if !core.IsRetryable(lastErr) {
			return lastErr
		}

		slog.Debug("operation failed, will retry", "op", op, "attempt", attempt, "maxAttempts", policy.MaxAttempts, "error", lastErr)

		// Don't sleep after the last attempt
		if attempt == policy.MaxAttempts {
			break
		}

		timer := time.NewTimer(policy.delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return interrupted(ctx, lastErr)
		case <-timer.C:
		}
	}

	return lastErr
}

// interrupted reports a context cancellation together with the last failure, if any.
func interrupted(ctx context.Context, lastErr error) error {
	if lastErr == nil {
		return ctx.Err()
	}
	return errors.Join(ctx.Err(), lastErr)
}

// delay computes baseDelay * 2^(attempt-1), capped at MaxDelay.
func (p Policy) delay(attempt int) time.Duration {
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}
