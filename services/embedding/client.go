// Copyright (C) 2026 RAG Eval Project Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package embedding provides clients that turn text into dense vectors for
// semantic search.
package embedding

import (
	"context"
	"fmt"
	"math"
)

// Client defines the interface for computing text embeddings.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Client interface {
	// Embed computes one vector per input text. All returned vectors have
	// the same dimension. Order matches the input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// CheckDimensions verifies that every vector in vecs has dimension want.
// Call at ingest time so a mismatched embedding model is caught before the
// index accepts inconsistent vectors.
func CheckDimensions(vecs [][]float32, want int) error {
	for i, v := range vecs {
		if len(v) != want {
			return fmt.Errorf("embedding dimension mismatch at index %d: got %d, want %d", i, len(v), want)
		}
	}
	return nil
}

// CosineSimilarity returns the cosine similarity of two vectors, or 0 when
// either vector is zero-length or zero-norm.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
