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
	"time"

	"github.com/hwk-1212/rag-eval-project/services/llm"
	"github.com/hwk-1212/rag-eval-project/services/orchestrator/datatypes"
	"github.com/hwk-1212/rag-eval-project/services/orchestrator/lexical"
)

// Reranker retrieves a wide candidate set and rescores each candidate with
// a point-wise LLM relevance score before taking the final top-k.
type Reranker struct {
	tk *Toolkit
}

// NewReranker builds the reranking technique.
func NewReranker(tk *Toolkit) *Reranker {
	return &Reranker{tk: tk}
}

// Name implements Technique.
func (t *Reranker) Name() string { return NameReranker }

// Answer implements Technique.
func (t *Reranker) Answer(ctx context.Context, query string, topK int) (res *datatypes.TechniqueResult) {
	start := time.Now()
	res = newResult(NameReranker)
	tk := t.tk
	defer func() { sealResult(res, tk.Recorder, start, recover()) }()

	candidateCount := tk.Options.RerankCandidates
	tk.logInit(query, topK, map[string]any{"rerank_candidates": candidateCount})

	tk.Recorder.Log("retrieve_prepare", "retrieving rerank candidates", nil)
	retStart := time.Now()
	candidates, err := tk.SearchText(ctx, query, candidateCount)
	if err != nil {
		tk.fail(res, "retrieve", err, datatypes.ErrKindRetrievalFailed)
		return res
	}
	res.RetrievalTime = time.Since(retStart).Seconds()

	// Fallback scores for scorer failures: the vector scores min-max
	// normalized over the candidate set, mapped onto the 0-10 band. Index
	// score scales vary by backend, so the raw score is never used directly.
	vectorScores := make([]float64, len(candidates))
	for i := range candidates {
		vectorScores[i] = candidates[i].Score
	}
	fallbackScores := lexical.MinMaxNormalize(vectorScores)

	scoreFailures := 0
	for i := range candidates {
		vectorScore := candidates[i].Score
		rerankScore, err := t.scoreCandidate(ctx, query, candidates[i].Text)
		if err != nil {
			if ctx.Err() != nil {
				tk.fail(res, "rerank", ctx.Err(), datatypes.ErrKindCanceled)
				return res
			}
			// Scorer failure for one candidate is not fatal.
			scoreFailures++
			rerankScore = fallbackScores[i] * 10
		}
		candidates[i].SubScores = map[string]float64{"vector": vectorScore}
		candidates[i].Score = rerankScore
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].SubScores["vector"] > candidates[j].SubScores["vector"]
	})
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}

	tk.Recorder.Log("rerank_after", "candidates rescored", map[string]any{
		"candidate_count": candidateCount,
		"kept":            len(candidates),
		"score_failures":  scoreFailures,
	})

	res.RetrievedChunks = stripChunkVectors(candidates)
	tk.logRetrieveComplete(res.RetrievedChunks)

	if err := tk.Generate(ctx, res, query, res.RetrievedChunks); err != nil {
		tk.fail(res, "generate", err, datatypes.ErrKindLLMFailed)
		return res
	}
	return res
}

// scoreCandidate asks the LLM for a 0-10 relevance score for one passage.
func (t *Reranker) scoreCandidate(ctx context.Context, query, passage string) (float64, error) {
	reply, err := t.tk.LLM.Complete(ctx, rerankSystemPrompt, buildRerankPrompt(query, passage), llm.GenerationParams{
		Temperature: llm.Float32Ptr(0),
		MaxTokens:   llm.IntPtr(8),
	})
	if err != nil {
		return 0, err
	}
	score, ok := firstNumberIn(reply, 0, 10)
	if !ok {
		return 0, &unparsableScoreError{reply: reply}
	}
	return score, nil
}

type unparsableScoreError struct {
	reply string
}

func (e *unparsableScoreError) Error() string {
	return "no score in range 0-10 found in reply: " + datatypes.Preview(e.reply, 80)
}
