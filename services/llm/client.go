// Copyright (C) 2026 RAG Eval Project Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package llm provides language model clients for answer generation and
// LLM-as-judge scoring.
//
// All backends implement LLMClient. Production code should wrap a backend in
// NewRetryingClient, which adds the retry policy (exponential backoff, max 3
// tries), client-side rate limiting, and the default per-call timeout.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// GenerationParams are optional sampling controls for a single completion.
// Nil fields mean "backend default".
type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// LLMClient defines the standard interface for any LLM backend.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use; clients are shared across
// all technique workers of a request.
type LLMClient interface {
	// Complete issues one chat completion with a system and a user message
	// and returns the generated text.
	//
	// # Errors
	//
	// Failures are classified so the retry wrapper can decide what to do:
	//   - ErrTimeout: the call exceeded its deadline
	//   - ErrRateLimited: the backend throttled us (retryable)
	//   - ErrUpstream: transient backend failure (retryable)
	//   - ErrPermanent: the request will never succeed (bad model, auth)
	Complete(ctx context.Context, system, user string, params GenerationParams) (string, error)
}

// Sentinel error classes for completion failures. Backends wrap these with
// %w so callers can use errors.Is.
var (
	ErrTimeout     = errors.New("llm: request timed out")
	ErrRateLimited = errors.New("llm: rate limited")
	ErrUpstream    = errors.New("llm: upstream error")
	ErrPermanent   = errors.New("llm: permanent error")
)

// IsRetryable reports whether a completion error is worth retrying.
// Timeouts are not retried here: the caller owns the deadline budget.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUpstream)
}

// Float32Ptr is a convenience for building GenerationParams literals.
func Float32Ptr(v float32) *float32 { return &v }

// IntPtr is a convenience for building GenerationParams literals.
func IntPtr(v int) *int { return &v }

// classifyTransport maps a transport-level error to the sentinel taxonomy.
func classifyTransport(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
}
