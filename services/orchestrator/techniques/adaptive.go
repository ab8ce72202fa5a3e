// Copyright (C) 2026 RAG Eval Project Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package techniques

import (
	"context"
	"strings"
	"time"

	"github.com/hwk-1212/rag-eval-project/services/embedding"
	"github.com/hwk-1212/rag-eval-project/services/llm"
	"github.com/hwk-1212/rag-eval-project/services/orchestrator/datatypes"
)

// Query categories the adaptive technique routes on.
const (
	categoryFactual    = "factual"
	categoryAnalytical = "analytical"
	categoryOpinion    = "opinion"
	categoryContextual = "contextual"
)

// Adaptive classifies the query and routes it to a retrieval strategy:
// factual queries get a rewrite pass, analytical queries are decomposed,
// opinion queries retrieve with a diversity bias, contextual queries fall
// through to the baseline flow.
type Adaptive struct {
	tk *Toolkit
}

// NewAdaptive builds the adaptive technique.
func NewAdaptive(tk *Toolkit) *Adaptive {
	return &Adaptive{tk: tk}
}

// Name implements Technique.
func (t *Adaptive) Name() string { return NameAdaptive }

// Answer implements Technique.
func (t *Adaptive) Answer(ctx context.Context, query string, topK int) (res *datatypes.TechniqueResult) {
	start := time.Now()
	res = newResult(NameAdaptive)
	tk := t.tk
	defer func() { sealResult(res, tk.Recorder, start, recover()) }()

	tk.logInit(query, topK, map[string]any{"diversity_theta": tk.Options.DiversityTheta})

	category := t.classify(ctx, query)
	if ctx.Err() != nil {
		tk.fail(res, "classify", ctx.Err(), datatypes.ErrKindCanceled)
		return res
	}
	tk.Recorder.Log("adaptive_strategy_select", "query classified", map[string]any{
		"category": category,
	})

	tk.Recorder.Log("retrieve_prepare", "running "+category+" strategy", nil)
	retStart := time.Now()
	var chunks []datatypes.RetrievedChunk
	var err error
	switch category {
	case categoryAnalytical:
		chunks, err = t.analyticalRetrieval(ctx, query, topK)
	case categoryOpinion:
		chunks, err = t.diversityRetrieval(ctx, query, topK)
	case categoryContextual:
		chunks, err = tk.SearchText(ctx, query, topK)
	default: // factual
		chunks, err = t.factualRetrieval(ctx, query, topK)
	}
	if err != nil {
		tk.fail(res, "retrieve", err, datatypes.ErrKindRetrievalFailed)
		return res
	}
	res.RetrievalTime = time.Since(retStart).Seconds()
	res.RetrievedChunks = stripChunkVectors(chunks)
	tk.logRetrieveComplete(res.RetrievedChunks)

	if err := tk.Generate(ctx, res, query, res.RetrievedChunks); err != nil {
		tk.fail(res, "generate", err, datatypes.ErrKindLLMFailed)
		return res
	}
	return res
}

// classify returns one of the four categories, defaulting to factual when
// the reply is unusable. Classification failure is never fatal.
func (t *Adaptive) classify(ctx context.Context, query string) string {
	reply, err := t.tk.LLM.Complete(ctx, classifySystemPrompt, buildClassifyPrompt(query), llm.GenerationParams{
		Temperature: llm.Float32Ptr(0),
		MaxTokens:   llm.IntPtr(16),
	})
	if err != nil {
		t.tk.Recorder.Log("classify_fallback", "classification failed, defaulting to factual", nil)
		return categoryFactual
	}
	reply = strings.ToLower(reply)
	for _, category := range []string{categoryFactual, categoryAnalytical, categoryOpinion, categoryContextual} {
		if strings.Contains(reply, category) {
			return category
		}
	}
	t.tk.Recorder.Log("classify_fallback", "no category in reply, defaulting to factual", nil)
	return categoryFactual
}

// factualRetrieval rewrites the query for precision, falling back to the
// original query when the rewrite fails.
func (t *Adaptive) factualRetrieval(ctx context.Context, query string, topK int) ([]datatypes.RetrievedChunk, error) {
	tk := t.tk
	rewritten, err := tk.LLM.Complete(ctx, rewriteSystemPrompt, "Rewrite this query: "+query, llm.GenerationParams{
		Temperature: llm.Float32Ptr(0),
		MaxTokens:   llm.IntPtr(200),
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		rewritten = query
	}
	return tk.SearchText(ctx, orFallback(rewritten, query), topK)
}

// analyticalRetrieval decomposes the query and merges per-sub-query
// results, topping up from the main query when coverage falls short.
func (t *Adaptive) analyticalRetrieval(ctx context.Context, query string, topK int) ([]datatypes.RetrievedChunk, error) {
	tk := t.tk
	reply, err := tk.LLM.Complete(ctx, decomposeSystemPrompt, buildDecomposePrompt(query, 3), llm.GenerationParams{
		Temperature: llm.Float32Ptr(0.3),
		MaxTokens:   llm.IntPtr(300),
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return tk.SearchText(ctx, query, topK)
	}
	subQueries := parseNumberedList(reply)
	if len(subQueries) > 3 {
		subQueries = subQueries[:3]
	}
	if len(subQueries) == 0 {
		return tk.SearchText(ctx, query, topK)
	}

	var merged []datatypes.RetrievedChunk
	seen := make(map[string]struct{})
	for _, sq := range subQueries {
		chunks, err := tk.SearchText(ctx, sq, 2)
		if err != nil {
			return nil, err
		}
		for _, c := range chunks {
			if _, ok := seen[c.ChunkID]; !ok {
				seen[c.ChunkID] = struct{}{}
				merged = append(merged, c)
			}
		}
	}
	if len(merged) < topK {
		chunks, err := tk.SearchText(ctx, query, topK)
		if err != nil {
			return nil, err
		}
		for _, c := range chunks {
			if len(merged) >= topK {
				break
			}
			if _, ok := seen[c.ChunkID]; !ok {
				seen[c.ChunkID] = struct{}{}
				merged = append(merged, c)
			}
		}
	}
	if len(merged) > topK {
		merged = merged[:topK]
	}
	return merged, nil
}

// diversityRetrieval greedily keeps candidates whose cosine distance to
// every already-kept chunk exceeds theta, spreading the context across
// viewpoints instead of stacking near-duplicates.
func (t *Adaptive) diversityRetrieval(ctx context.Context, query string, topK int) ([]datatypes.RetrievedChunk, error) {
	tk := t.tk
	vector, err := tk.EmbedOne(ctx, query)
	if err != nil {
		return nil, err
	}
	candidates, err := tk.Search(ctx, vector, topK*3, true)
	if err != nil {
		return nil, err
	}

	theta := tk.Options.DiversityTheta
	var selected []datatypes.RetrievedChunk
	for _, c := range candidates {
		if len(selected) >= topK {
			break
		}
		diverse := true
		for _, s := range selected {
			if 1-embedding.CosineSimilarity(c.Vector, s.Vector) <= theta {
				diverse = false
				break
			}
		}
		if diverse {
			selected = append(selected, c)
		}
	}
	tk.Recorder.Log("adaptive_diversity_filter", "diversity selection done", map[string]any{
		"candidates": len(candidates),
		"selected":   len(selected),
		"theta":      theta,
	})
	return selected, nil
}
