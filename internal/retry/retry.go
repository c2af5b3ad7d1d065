//  Copyright 2026 Google LLC
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.

// Package retry implements retry logic helpers to execute arbitrary functions
// with defined policy.
package retry

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/GoogleCloudPlatform/galog"
)

const (
	// DefaultMaximumBackoff is the backoff cap used when the policy does not
	// define one.
	DefaultMaximumBackoff = time.Minute * 30
)

// Policy represents the struct to configure the retry behavior.
type Policy struct {
	// MaxAttempts represents the maximum number of retry attempts. Zero means
	// retry forever.
	MaxAttempts int
	// BackoffFactor is the multiplier by which retry interval (Jitter) increases
	// after each retry. For constant backoff set Backoff factor to 1.
	BackoffFactor float64
	// Jitter is the interval before the first retry.
	Jitter time.Duration
	// MaximumBackoff is the maximum amount of time to wait between retries. If
	// unset DefaultMaximumBackoff is used.
	MaximumBackoff time.Duration
	// ShouldRetry is an optional override to decide whether an error is
	// retriable. When nil every error is retried.
	ShouldRetry func(error) bool
}

// backoff computes the wait before the next attempt, capped at the policy's
// maximum backoff.
func backoff(attempt int, policy Policy) time.Duration {
	maxBackoff := policy.MaximumBackoff
	if maxBackoff == 0 {
		maxBackoff = DefaultMaximumBackoff
	}

	// Overflown attempt counters are dealt as "too many attempts".
	if attempt < 0 {
		return maxBackoff
	}

	b := float64(policy.Jitter) * math.Pow(policy.BackoffFactor, float64(attempt))
	if math.IsInf(b, 0) || math.IsNaN(b) || b > float64(maxBackoff) {
		return maxBackoff
	}
	return time.Duration(b)
}

// isRetriable returns true if the policy allows retrying on err.
func isRetriable(policy Policy, err error) bool {
	if policy.ShouldRetry == nil {
		return true
	}
	return policy.ShouldRetry(err)
}

// RunWithResponse executes and retries fn on error according to the policy
// and returns the response of the last successful call.
func RunWithResponse[T any](ctx context.Context, policy Policy, fn func() (T, error)) (T, error) {
	var res T
	if fn == nil {
		return res, fmt.Errorf("retry function cannot be nil")
	}

	for attempt := 0; policy.MaxAttempts == 0 || attempt < policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("context cancelled after %d attempts: %w", attempt, err)
		}

		var err error
		res, err = fn()
		if err == nil {
			return res, nil
		}

		if !isRetriable(policy, err) {
			return res, fmt.Errorf("giving up, non retriable error: %w", err)
		}

		if policy.MaxAttempts != 0 && attempt+1 >= policy.MaxAttempts {
			return res, fmt.Errorf("exhausted all (%d) retries, last error: %w", policy.MaxAttempts, err)
		}

		wait := backoff(attempt, policy)
		galog.V(2).Debugf("Attempt %d failed with %v, retrying in %v", attempt+1, err, wait)

		if err := Sleep(ctx, wait); err != nil {
			return res, fmt.Errorf("context cancelled while waiting to retry: %w", err)
		}
	}

	return res, fmt.Errorf("retry loop exited without result")
}

// Run executes and retries fn on error according to the policy.
func Run(ctx context.Context, policy Policy, fn func() error) error {
	if fn == nil {
		return fmt.Errorf("retry function cannot be nil")
	}

	_, err := RunWithResponse(ctx, policy, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// Sleep blocks for d or until ctx is done, in which case it returns the
// context's error.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
