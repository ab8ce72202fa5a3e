// Copyright (C) 2026 RAG Eval Project Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package index

import (
	"context"
	"sort"
	"sync"

	"github.com/hwk-1212/rag-eval-project/services/embedding"
	"github.com/hwk-1212/rag-eval-project/services/orchestrator/datatypes"
)

// MemoryIndex is a process-local VectorIndex backing the in-memory dev mode
// when no Weaviate is configured. Brute-force cosine similarity; fine for
// small corpora, nothing persists across restarts.
type MemoryIndex struct {
	mu     sync.RWMutex
	chunks map[string]datatypes.EmbeddedChunk
}

// NewMemoryIndex builds an empty index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{chunks: make(map[string]datatypes.EmbeddedChunk)}
}

// SimilaritySearch implements VectorIndex. Ties break on chunk ID so results
// are stable across repeat calls on an unchanged index.
func (m *MemoryIndex) SimilaritySearch(_ context.Context, vector []float32, k int, opts SearchOptions) ([]datatypes.RetrievedChunk, error) {
	if k <= 0 {
		return []datatypes.RetrievedChunk{}, nil
	}

	allowed := make(map[string]bool, len(opts.DocumentIDs))
	for _, id := range opts.DocumentIDs {
		allowed[id] = true
	}

	m.mu.RLock()
	out := make([]datatypes.RetrievedChunk, 0, len(m.chunks))
	for _, c := range m.chunks {
		if len(allowed) > 0 && !allowed[c.DocumentID] {
			continue
		}
		rc := datatypes.RetrievedChunk{
			ChunkID:    c.ChunkID,
			DocumentID: c.DocumentID,
			Text:       c.Text,
			Metadata:   c.Metadata,
			Score:      embedding.CosineSimilarity(vector, c.Vector),
		}
		if opts.WithVectors {
			rc.Vector = c.Vector
		}
		out = append(out, rc)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ChunkID < out[j].ChunkID
	})
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// Upsert implements VectorIndex. A chunk with an existing ID is replaced.
func (m *MemoryIndex) Upsert(_ context.Context, chunks []datatypes.EmbeddedChunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range chunks {
		m.chunks[c.ChunkID] = c
	}
	return nil
}

// DeleteByDocument implements VectorIndex.
func (m *MemoryIndex) DeleteByDocument(_ context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, c := range m.chunks {
		if c.DocumentID == documentID {
			delete(m.chunks, id)
		}
	}
	return nil
}
