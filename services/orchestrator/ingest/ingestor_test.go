// Copyright (C) 2026 RAG Eval Project Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ingest

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hwk-1212/rag-eval-project/services/orchestrator/datatypes"
	"github.com/hwk-1212/rag-eval-project/services/orchestrator/index"
)

// captureIndex records upserts and deletes.
type captureIndex struct {
	upserted []datatypes.EmbeddedChunk
	deleted  []string
	failErr  error
}

func (c *captureIndex) SimilaritySearch(ctx context.Context, vector []float32, k int, opts index.SearchOptions) ([]datatypes.RetrievedChunk, error) {
	return nil, nil
}

func (c *captureIndex) Upsert(ctx context.Context, chunks []datatypes.EmbeddedChunk) error {
	if c.failErr != nil {
		return c.failErr
	}
	c.upserted = append(c.upserted, chunks...)
	return nil
}

func (c *captureIndex) DeleteByDocument(ctx context.Context, documentID string) error {
	c.deleted = append(c.deleted, documentID)
	return nil
}

// dimEmbedder returns a fixed-dimension vector per text.
type dimEmbedder struct {
	dim     int
	failErr error
}

func (d *dimEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if d.failErr != nil {
		return nil, d.failErr
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, d.dim)
		out[i][0] = 1
	}
	return out, nil
}

func TestIngestText_SplitsEmbedsAndUpserts(t *testing.T) {
	idx := &captureIndex{}
	ing := NewIngestor(idx, &dimEmbedder{dim: 4}, 80, 10, 4)

	text := strings.Repeat("Paris is the capital of France. ", 20)
	count, err := ing.IngestText(context.Background(), "doc-1", text, map[string]string{"filename": "paris.txt"})
	require.NoError(t, err)
	assert.Greater(t, count, 1)
	require.Len(t, idx.upserted, count)

	for i, chunk := range idx.upserted {
		assert.Equal(t, "doc-1", chunk.DocumentID)
		assert.Equal(t, i, chunk.Ordinal)
		assert.NotEmpty(t, chunk.Text)
		assert.Len(t, chunk.Vector, 4)
		assert.Equal(t, "paris.txt", chunk.Metadata["filename"])
	}
}

// Re-ingesting the same document yields the same chunk IDs so the index
// overwrites instead of duplicating.
func TestIngestText_DeterministicChunkIDs(t *testing.T) {
	text := strings.Repeat("Stable identifiers matter for idempotent ingest. ", 10)

	first := &captureIndex{}
	_, err := NewIngestor(first, &dimEmbedder{dim: 2}, 100, 0, 0).
		IngestText(context.Background(), "doc-1", text, nil)
	require.NoError(t, err)

	second := &captureIndex{}
	_, err = NewIngestor(second, &dimEmbedder{dim: 2}, 100, 0, 0).
		IngestText(context.Background(), "doc-1", text, nil)
	require.NoError(t, err)

	require.Equal(t, len(first.upserted), len(second.upserted))
	for i := range first.upserted {
		assert.Equal(t, first.upserted[i].ChunkID, second.upserted[i].ChunkID)
	}

	// A different document gets different IDs.
	other := &captureIndex{}
	_, err = NewIngestor(other, &dimEmbedder{dim: 2}, 100, 0, 0).
		IngestText(context.Background(), "doc-2", text, nil)
	require.NoError(t, err)
	assert.NotEqual(t, first.upserted[0].ChunkID, other.upserted[0].ChunkID)
}

func TestIngestText_DimensionMismatch(t *testing.T) {
	ing := NewIngestor(&captureIndex{}, &dimEmbedder{dim: 3}, 0, 0, 4)

	_, err := ing.IngestText(context.Background(), "doc-1", "some text to ingest", nil)
	assert.Error(t, err)
}

func TestIngestText_RejectsEmptyInput(t *testing.T) {
	ing := NewIngestor(&captureIndex{}, &dimEmbedder{dim: 2}, 0, 0, 0)

	_, err := ing.IngestText(context.Background(), "", "text", nil)
	assert.Error(t, err)

	_, err = ing.IngestText(context.Background(), "doc-1", "   \n", nil)
	assert.Error(t, err)
}

func TestIngestText_EmbedderFailure(t *testing.T) {
	ing := NewIngestor(&captureIndex{}, &dimEmbedder{dim: 2, failErr: fmt.Errorf("embedding service down")}, 0, 0, 0)

	_, err := ing.IngestText(context.Background(), "doc-1", "text to ingest", nil)
	assert.Error(t, err)
}

func TestDeleteDocument(t *testing.T) {
	idx := &captureIndex{}
	ing := NewIngestor(idx, &dimEmbedder{dim: 2}, 0, 0, 0)

	require.NoError(t, ing.DeleteDocument(context.Background(), "doc-1"))
	assert.Equal(t, []string{"doc-1"}, idx.deleted)

	assert.Error(t, ing.DeleteDocument(context.Background(), ""))
}
