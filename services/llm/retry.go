// Copyright (C) 2026 RAG Eval Project Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// Retry policy constants. Completions are best-effort: a duplicate completion
// caused by a retry after a lost response is acceptable.
const (
	maxCompletionTries = 3
	initialRetryDelay  = 1 * time.Second
	defaultCallTimeout = 60 * time.Second
)

// RetryingClient wraps any LLMClient with the standard call policy:
// per-call timeout, client-side rate limiting, and exponential backoff on
// retryable failures (rate limits, transient upstream errors).
//
// # Thread Safety
//
// Safe for concurrent use; the limiter and inner client carry no per-call
// state.
type RetryingClient struct {
	inner       LLMClient
	limiter     *rate.Limiter
	callTimeout time.Duration
}

// NewRetryingClient wraps inner with the retry policy. requestsPerSecond <= 0
// disables rate limiting; callTimeout <= 0 applies the 60s default.
func NewRetryingClient(inner LLMClient, requestsPerSecond float64, callTimeout time.Duration) *RetryingClient {
	var limiter *rate.Limiter
	if requestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	}
	if callTimeout <= 0 {
		callTimeout = defaultCallTimeout
	}
	return &RetryingClient{
		inner:       inner,
		limiter:     limiter,
		callTimeout: callTimeout,
	}
}

// Complete implements the LLMClient interface.
func (r *RetryingClient) Complete(ctx context.Context, system, user string, params GenerationParams) (string, error) {
	var lastErr error
	retryDelay := initialRetryDelay

	for attempt := 0; attempt < maxCompletionTries; attempt++ {
		if attempt > 0 {
			slog.Info("Retrying LLM completion",
				"attempt", attempt,
				"delay", retryDelay,
				"lastError", lastErr,
			)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(retryDelay):
			}
			retryDelay *= 2
		}

		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return "", err
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
		text, err := r.inner.Complete(callCtx, system, user, params)
		cancel()
		if err == nil {
			return text, nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return "", err
		}
	}
	return "", lastErr
}
