// Copyright (C) 2026 RAG Eval Project Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOptions_Defaults(t *testing.T) {
	opts := ParseOptions(nil)
	assert.Equal(t, 5, opts.TopK)
	assert.Equal(t, 3, opts.MaxConcurrency)
	assert.Equal(t, 120*time.Second, opts.PerTechniqueTimeout)
	assert.Equal(t, 20, opts.RerankCandidates)
	assert.Equal(t, 0.5, opts.VectorWeight)
	assert.Equal(t, 0.5, opts.LexicalWeight)
	assert.Equal(t, TransformRewrite, opts.TransformationType)
	assert.Equal(t, 3, opts.NumSubqueries)
	assert.Equal(t, 0.15, opts.DiversityTheta)
	assert.Equal(t, 0.7, opts.HydeTemperature)
}

func TestParseOptions_Overrides(t *testing.T) {
	opts := ParseOptions(map[string]any{
		"top_k":                   float64(8), // JSON numbers decode as float64
		"max_concurrency":         4,
		"per_technique_timeout_s": 2.5,
		"vector_weight":           0.7,
		"lexical_weight":          0.3,
		"transformation_type":     "decompose",
		"num_subqueries":          5,
		"hyde_temperature":        0.2,
	})
	assert.Equal(t, 8, opts.TopK)
	assert.Equal(t, 4, opts.MaxConcurrency)
	assert.Equal(t, 2500*time.Millisecond, opts.PerTechniqueTimeout)
	assert.Equal(t, 32, opts.RerankCandidates)
	assert.Equal(t, 0.7, opts.VectorWeight)
	assert.Equal(t, TransformDecompose, opts.TransformationType)
	assert.Equal(t, 5, opts.NumSubqueries)
	assert.Equal(t, 0.2, opts.HydeTemperature)
}

func TestParseOptions_ClampsAndIgnores(t *testing.T) {
	opts := ParseOptions(map[string]any{
		"max_concurrency":     50,
		"transformation_type": "summarize",
		"top_k":               "nine",
		"made_up_key":         true,
	})
	assert.Equal(t, 10, opts.MaxConcurrency, "max_concurrency clamps to 10")
	assert.Equal(t, TransformRewrite, opts.TransformationType, "bad sub-mode falls back")
	assert.Equal(t, 5, opts.TopK, "mistyped value keeps default")

	opts = ParseOptions(map[string]any{"max_concurrency": 0})
	assert.Equal(t, 1, opts.MaxConcurrency, "max_concurrency clamps to 1")
}

func TestParseOptions_RerankFloor(t *testing.T) {
	opts := ParseOptions(map[string]any{"top_k": 3})
	assert.Equal(t, 20, opts.RerankCandidates, "4*top_k below 20 floors at 20")

	opts = ParseOptions(map[string]any{"top_k": 10})
	assert.Equal(t, 40, opts.RerankCandidates)

	opts = ParseOptions(map[string]any{"rerank_candidates": 7})
	assert.Equal(t, 7, opts.RerankCandidates, "explicit value is not floored")
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", Preview("short", 100))
	assert.Equal(t, "abc...", Preview("abcdef", 3))
	assert.Equal(t, "", Preview("abc", 0))
	// Rune-aware truncation must not split multi-byte characters.
	assert.Equal(t, "héll...", Preview("héllo wörld", 4))
}

func TestTopScores(t *testing.T) {
	chunks := []RetrievedChunk{{Score: 0.91239}, {Score: 0.85}, {Score: 0.5}, {Score: 0.1}}
	assert.Equal(t, []float64{0.9124, 0.85, 0.5}, TopScores(chunks, 3))
	assert.Equal(t, []float64{0.9124, 0.85, 0.5, 0.1}, TopScores(chunks, 10))
	assert.Empty(t, TopScores(nil, 3))
}

func TestTechniqueResult_RoundTrip(t *testing.T) {
	orig := TechniqueResult{
		TechniqueName: "fusion",
		Answer:        "Paris is the capital of France.",
		RetrievedChunks: []RetrievedChunk{
			{ChunkID: "c1", Text: "Paris is the capital of France.", Score: 0.93,
				SubScores: map[string]float64{"vector": 0.91, "lexical": 0.88}},
		},
		Trace: []TraceEvent{
			{Sequence: 0, StepName: "init", Message: "starting", Timestamp: time.Now().UTC().Truncate(time.Millisecond)},
			{Sequence: 1, StepName: "retrieve_complete", Details: map[string]any{"result_count": float64(1)}, Timestamp: time.Now().UTC().Truncate(time.Millisecond)},
		},
		RetrievalTime:  0.12,
		GenerationTime: 1.4,
		TotalTime:      1.6,
	}

	data, err := json.Marshal(orig)
	require.NoError(t, err)
	var got TechniqueResult
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, orig, got)
	assert.True(t, got.Succeeded())
}

func TestEvaluationScore_Overall(t *testing.T) {
	var e EvaluationScore
	e.ComputeOverall()
	assert.Nil(t, e.Overall, "no dimensions scored leaves overall nil")

	e.SetDimension("relevance", 8)
	e.SetDimension("coherence", 6)
	e.SetDimension("fluency", 9)
	e.SetDimension("conciseness", 7)
	// Faithfulness intentionally absent: excluded from the mean, not zeroed.
	e.ComputeOverall()
	require.NotNil(t, e.Overall)
	assert.InDelta(t, 7.5, *e.Overall, 1e-9)
	assert.Nil(t, e.Faithfulness)
}

func TestEvaluationScore_ReferenceScores(t *testing.T) {
	var e EvaluationScore
	e.SetReferenceScore("faithfulness", 0.66667)
	e.SetReferenceScore("answer_relevancy", 0.91)
	require.Contains(t, e.Metadata, "reference_scores")
	assert.Equal(t, 0.6667, e.Metadata["reference_scores"]["faithfulness"])
	assert.Equal(t, 0.91, e.Metadata["reference_scores"]["answer_relevancy"])
}

func TestQueryRequest_Validate(t *testing.T) {
	req := QueryRequest{Query: "q", Techniques: []string{"baseline"}}
	assert.NoError(t, req.Validate())
	assert.Error(t, (&QueryRequest{Techniques: []string{"baseline"}}).Validate())
	assert.Error(t, (&QueryRequest{Query: "q"}).Validate())
}
