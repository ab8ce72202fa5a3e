// Copyright (C) 2026 RAG Eval Project Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package techniques

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hwk-1212/rag-eval-project/services/orchestrator/datatypes"
)

// One chunk matches the query lexically but not semantically, one
// semantically but not lexically, one both ways. The both-matching chunk
// must rank first under equal weights.
func TestFusion_BothMatchRanksFirst(t *testing.T) {
	query := "solar panel efficiency"
	idx := &fakeIndex{chunks: []datatypes.EmbeddedChunk{
		{Chunk: datatypes.Chunk{ChunkID: "lex", DocumentID: "d1", Text: "Solar panel efficiency ratings vary by price."}, Vector: []float32{0, 1, 0}},
		{Chunk: datatypes.Chunk{ChunkID: "sem", DocumentID: "d1", Text: "Photovoltaic cells convert more sunlight when kept cool."}, Vector: []float32{0.97, 0.03, 0}},
		{Chunk: datatypes.Chunk{ChunkID: "both", DocumentID: "d1", Text: "Solar panel efficiency improves with better photovoltaic materials."}, Vector: []float32{0.9, 0.1, 0}},
	}}
	emb := &fakeEmbedder{vectors: map[string][]float32{query: {1, 0, 0}}}
	tk := newTestToolkit(idx, emb, &fakeLLM{})

	res := NewFusion(tk).Answer(context.Background(), query, 3)

	require.True(t, res.Succeeded(), "error: %s %s", res.ErrorKind, res.ErrorMessage)
	require.NotEmpty(t, res.RetrievedChunks)
	assert.Equal(t, "both", res.RetrievedChunks[0].ChunkID)

	merge := findEvent(res.Trace, "fusion_merge")
	require.NotNil(t, merge)
	assert.Equal(t, 3, merge.Details["candidate_count"])
}

func TestFusion_SubScoresRecorded(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{capitalQuery: qvec}}
	tk := newTestToolkit(parisCorpus(), emb, &fakeLLM{})

	res := NewFusion(tk).Answer(context.Background(), capitalQuery, 2)

	require.True(t, res.Succeeded())
	require.Len(t, res.RetrievedChunks, 2)
	for _, c := range res.RetrievedChunks {
		require.Contains(t, c.SubScores, "vector")
		require.Contains(t, c.SubScores, "lexical")
		assert.GreaterOrEqual(t, c.Score, 0.0)
		assert.LessOrEqual(t, c.Score, 1.0)
	}
}

func TestFusion_WeightsShiftRanking(t *testing.T) {
	query := "solar panel efficiency"
	idx := &fakeIndex{chunks: []datatypes.EmbeddedChunk{
		{Chunk: datatypes.Chunk{ChunkID: "lex", DocumentID: "d1", Text: "solar panel efficiency solar panel efficiency"}, Vector: []float32{0, 1, 0}},
		{Chunk: datatypes.Chunk{ChunkID: "sem", DocumentID: "d1", Text: "unrelated words entirely"}, Vector: []float32{1, 0, 0}},
	}}
	emb := &fakeEmbedder{vectors: map[string][]float32{query: {1, 0, 0}}}

	tk := newTestToolkit(idx, emb, &fakeLLM{})
	tk.Options = datatypes.ParseOptions(map[string]any{"vector_weight": 1.0, "lexical_weight": 0.0})
	res := NewFusion(tk).Answer(context.Background(), query, 2)
	require.True(t, res.Succeeded())
	assert.Equal(t, "sem", res.RetrievedChunks[0].ChunkID, "pure vector weighting favors the semantic match")

	tk = newTestToolkit(idx, emb, &fakeLLM{})
	tk.Options = datatypes.ParseOptions(map[string]any{"vector_weight": 0.0, "lexical_weight": 1.0})
	res = NewFusion(tk).Answer(context.Background(), query, 2)
	require.True(t, res.Succeeded())
	assert.Equal(t, "lex", res.RetrievedChunks[0].ChunkID, "pure lexical weighting favors the keyword match")
}
