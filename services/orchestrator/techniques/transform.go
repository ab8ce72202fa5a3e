// Copyright (C) 2026 RAG Eval Project Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package techniques

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/hwk-1212/rag-eval-project/services/llm"
	"github.com/hwk-1212/rag-eval-project/services/orchestrator/datatypes"
)

// Transformation rewrites the query before retrieval. Three sub-modes:
// rewrite (more specific), stepback (broader), decompose (N sub-queries
// retrieved independently and merged). Generation always uses the original
// query.
type Transformation struct {
	tk *Toolkit
}

// NewTransformation builds the query-transformation technique.
func NewTransformation(tk *Toolkit) *Transformation {
	return &Transformation{tk: tk}
}

// Name implements Technique.
func (t *Transformation) Name() string { return NameTransformation }

// Answer implements Technique.
func (t *Transformation) Answer(ctx context.Context, query string, topK int) (res *datatypes.TechniqueResult) {
	start := time.Now()
	res = newResult(NameTransformation)
	tk := t.tk
	defer func() { sealResult(res, tk.Recorder, start, recover()) }()

	mode := tk.Options.TransformationType
	tk.logInit(query, topK, map[string]any{"transformation_type": mode})

	queries, err := t.transform(ctx, query, mode)
	if err != nil {
		tk.fail(res, "transform", err, datatypes.ErrKindLLMFailed)
		return res
	}
	tk.Recorder.Log("transform_queries", "queries transformed", map[string]any{
		"mode":        mode,
		"query_count": len(queries),
		"queries":     strings.Join(queries, " | "),
	})

	tk.Recorder.Log("retrieve_prepare", "retrieving for transformed queries", nil)
	retStart := time.Now()
	chunks, err := t.retrieveMerged(ctx, queries, topK)
	if err != nil {
		tk.fail(res, "retrieve", err, datatypes.ErrKindRetrievalFailed)
		return res
	}
	res.RetrievalTime = time.Since(retStart).Seconds()
	res.RetrievedChunks = stripChunkVectors(chunks)
	tk.logRetrieveComplete(res.RetrievedChunks)

	// The user's question stays the original one; only retrieval saw the
	// transformed queries.
	if err := tk.Generate(ctx, res, query, res.RetrievedChunks); err != nil {
		tk.fail(res, "generate", err, datatypes.ErrKindLLMFailed)
		return res
	}
	return res
}

// transform produces the retrieval queries for the configured sub-mode.
func (t *Transformation) transform(ctx context.Context, query, mode string) ([]string, error) {
	tk := t.tk
	switch mode {
	case datatypes.TransformStepback:
		reply, err := tk.LLM.Complete(ctx, stepbackSystemPrompt, "Generalize this query: "+query, llm.GenerationParams{
			Temperature: llm.Float32Ptr(0.1),
			MaxTokens:   llm.IntPtr(200),
		})
		if err != nil {
			return nil, err
		}
		return []string{orFallback(reply, query)}, nil

	case datatypes.TransformDecompose:
		n := tk.Options.NumSubqueries
		reply, err := tk.LLM.Complete(ctx, decomposeSystemPrompt, buildDecomposePrompt(query, n), llm.GenerationParams{
			Temperature: llm.Float32Ptr(0.2),
			MaxTokens:   llm.IntPtr(500),
		})
		if err != nil {
			return nil, err
		}
		subQueries := parseNumberedList(reply)
		if len(subQueries) == 0 {
			tk.Recorder.Log("decompose_fallback", "no sub-queries parsed, using original query", nil)
			return []string{query}, nil
		}
		if len(subQueries) > n {
			subQueries = subQueries[:n]
		}
		return subQueries, nil

	default: // rewrite
		reply, err := tk.LLM.Complete(ctx, rewriteSystemPrompt, "Rewrite this query: "+query, llm.GenerationParams{
			Temperature: llm.Float32Ptr(0),
			MaxTokens:   llm.IntPtr(200),
		})
		if err != nil {
			return nil, err
		}
		return []string{orFallback(reply, query)}, nil
	}
}

// retrieveMerged searches each query independently and merges the results:
// deduplicate by chunk ID keeping the max score, order by score descending,
// truncate to topK.
func (t *Transformation) retrieveMerged(ctx context.Context, queries []string, topK int) ([]datatypes.RetrievedChunk, error) {
	tk := t.tk
	best := make(map[string]datatypes.RetrievedChunk)
	for _, q := range queries {
		chunks, err := tk.SearchText(ctx, q, topK*2)
		if err != nil {
			return nil, err
		}
		for _, c := range chunks {
			if prev, ok := best[c.ChunkID]; !ok || c.Score > prev.Score {
				best[c.ChunkID] = c
			}
		}
	}

	merged := make([]datatypes.RetrievedChunk, 0, len(best))
	for _, c := range best {
		merged = append(merged, c)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		return merged[i].ChunkID < merged[j].ChunkID
	})
	if len(merged) > topK {
		merged = merged[:topK]
	}
	return merged, nil
}

func orFallback(reply, fallback string) string {
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return fallback
	}
	return reply
}
