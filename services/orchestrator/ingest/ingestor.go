// Copyright (C) 2026 RAG Eval Project Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ingest turns raw document text into embedded chunks in the
// vector index.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/textsplitter"

	"github.com/hwk-1212/rag-eval-project/services/embedding"
	"github.com/hwk-1212/rag-eval-project/services/orchestrator/datatypes"
	"github.com/hwk-1212/rag-eval-project/services/orchestrator/index"
)

// Chunking defaults.
const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 100
)

// chunkIDNamespace seeds deterministic chunk IDs so re-ingesting a document
// overwrites its chunks instead of duplicating them.
var chunkIDNamespace = uuid.MustParse("9c2f41cf-5dd1-4761-9e18-2a6cfa1d8b04")

// Ingestor splits, embeds, and indexes documents.
type Ingestor struct {
	index    index.VectorIndex
	embedder embedding.Client
	splitter textsplitter.RecursiveCharacter

	// dimension, when non-zero, is asserted against every embedding batch.
	dimension int
}

// NewIngestor builds an ingestor. chunkSize and chunkOverlap of 0 mean the
// defaults; dimension of 0 disables the dimension check.
func NewIngestor(idx index.VectorIndex, embedder embedding.Client, chunkSize, chunkOverlap, dimension int) *Ingestor {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = DefaultChunkOverlap
	}
	return &Ingestor{
		index:    idx,
		embedder: embedder,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
		),
		dimension: dimension,
	}
}

// IngestText splits text into chunks, embeds them, and upserts them into
// the index under documentID. Returns the number of chunks written.
// Re-ingesting the same documentID replaces its chunks.
func (g *Ingestor) IngestText(ctx context.Context, documentID, text string, metadata map[string]string) (int, error) {
	if documentID == "" {
		return 0, fmt.Errorf("document id is required")
	}
	if strings.TrimSpace(text) == "" {
		return 0, fmt.Errorf("document text is empty")
	}

	pieces, err := g.splitter.SplitText(text)
	if err != nil {
		return 0, fmt.Errorf("splitting document %s: %w", documentID, err)
	}
	if len(pieces) == 0 {
		return 0, fmt.Errorf("document %s produced no chunks", documentID)
	}

	vectors, err := g.embedder.Embed(ctx, pieces)
	if err != nil {
		return 0, fmt.Errorf("embedding document %s: %w", documentID, err)
	}
	if len(vectors) != len(pieces) {
		return 0, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(pieces))
	}
	if g.dimension > 0 {
		if err := embedding.CheckDimensions(vectors, g.dimension); err != nil {
			return 0, fmt.Errorf("document %s: %w", documentID, err)
		}
	}

	chunks := make([]datatypes.EmbeddedChunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = datatypes.EmbeddedChunk{
			Chunk: datatypes.Chunk{
				ChunkID:    chunkID(documentID, i),
				DocumentID: documentID,
				Ordinal:    i,
				Text:       piece,
				Metadata:   metadata,
			},
			Vector: vectors[i],
		}
	}

	if err := g.index.Upsert(ctx, chunks); err != nil {
		return 0, fmt.Errorf("indexing document %s: %w", documentID, err)
	}
	slog.Info("Ingested document", "document_id", documentID, "chunk_count", len(chunks))
	return len(chunks), nil
}

// DeleteDocument removes all chunks of a document from the index.
func (g *Ingestor) DeleteDocument(ctx context.Context, documentID string) error {
	if documentID == "" {
		return fmt.Errorf("document id is required")
	}
	return g.index.DeleteByDocument(ctx, documentID)
}

func chunkID(documentID string, ordinal int) string {
	return uuid.NewSHA1(chunkIDNamespace, []byte(fmt.Sprintf("%s:%d", documentID, ordinal))).String()
}
