// Copyright (C) 2026 RAG Eval Project Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package index abstracts the chunk vector store. The production
// implementation is backed by Weaviate; tests use in-memory fakes.
package index

import (
	"context"

	"github.com/hwk-1212/rag-eval-project/services/orchestrator/datatypes"
)

// SearchOptions narrows a similarity search.
type SearchOptions struct {
	// DocumentIDs restricts results to chunks of these documents. Empty
	// means the whole corpus.
	DocumentIDs []string

	// WithVectors asks the index to return each chunk's stored vector.
	// Off by default: vectors are large and only diversity selection
	// needs them.
	WithVectors bool
}

// VectorIndex is the retrieval surface techniques depend on.
//
// # Thread Safety
//
// SimilaritySearch must be safe for concurrent use; writes happen only at
// ingest, outside the query path.
type VectorIndex interface {
	// SimilaritySearch returns up to k chunks ordered by descending
	// similarity. Scores are >= 0, higher is more similar, and stable
	// across repeat calls on an unchanged index.
	SimilaritySearch(ctx context.Context, vector []float32, k int, opts SearchOptions) ([]datatypes.RetrievedChunk, error)

	// Upsert writes embedded chunks, replacing any existing chunk with the
	// same chunk ID.
	Upsert(ctx context.Context, chunks []datatypes.EmbeddedChunk) error

	// DeleteByDocument removes every chunk of the document.
	DeleteByDocument(ctx context.Context, documentID string) error
}
