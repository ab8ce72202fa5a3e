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

	"github.com/hwk-1212/rag-eval-project/services/llm"
	"github.com/hwk-1212/rag-eval-project/services/orchestrator/datatypes"
)

// selfRAGCandidates is how many candidate answers get generated and judged.
const selfRAGCandidates = 2

// Support levels and their weight in the composite score.
var supportScores = map[string]int{"fully": 3, "partially": 1, "none": 0}

// SelfReflective gates every stage on the LLM's own judgment: whether to
// retrieve at all, which retrieved chunks are relevant, and which of
// several candidate answers is best supported and most useful.
type SelfReflective struct {
	tk *Toolkit
}

// NewSelfReflective builds the self-reflective technique.
func NewSelfReflective(tk *Toolkit) *SelfReflective {
	return &SelfReflective{tk: tk}
}

// Name implements Technique.
func (t *SelfReflective) Name() string { return NameSelfReflective }

// Answer implements Technique.
func (t *SelfReflective) Answer(ctx context.Context, query string, topK int) (res *datatypes.TechniqueResult) {
	start := time.Now()
	res = newResult(NameSelfReflective)
	tk := t.tk
	defer func() { sealResult(res, tk.Recorder, start, recover()) }()

	tk.logInit(query, topK, map[string]any{"min_support_score": tk.Options.MinSupportScore})

	needRetrieval, err := t.decideRetrieval(ctx, query)
	if err != nil {
		tk.fail(res, "retrieval_decision", err, datatypes.ErrKindLLMFailed)
		return res
	}
	tk.Recorder.Log("retrieval_decision", "retrieval decision made", map[string]any{
		"retrieve": needRetrieval,
	})

	if !needRetrieval {
		// Pure-LLM answer: no context, empty retrieved_chunks.
		if err := t.generateDirect(ctx, res, query); err != nil {
			tk.fail(res, "generate", err, datatypes.ErrKindLLMFailed)
		}
		return res
	}

	tk.Recorder.Log("retrieve_prepare", "retrieving candidates", nil)
	retStart := time.Now()
	candidates, err := tk.SearchText(ctx, query, topK)
	if err != nil {
		tk.fail(res, "retrieve", err, datatypes.ErrKindRetrievalFailed)
		return res
	}
	res.RetrievalTime = time.Since(retStart).Seconds()

	kept := t.filterRelevant(ctx, query, candidates)
	if ctx.Err() != nil {
		tk.fail(res, "relevance_filter", ctx.Err(), datatypes.ErrKindCanceled)
		return res
	}
	tk.Recorder.Log("self_rag_relevance_filter", "relevance labels assigned", map[string]any{
		"retrieved": len(candidates),
		"kept":      len(kept),
	})
	res.RetrievedChunks = stripChunkVectors(kept)
	tk.logRetrieveComplete(res.RetrievedChunks)

	if err := t.generateBest(ctx, res, query); err != nil {
		tk.fail(res, "generate", err, datatypes.ErrKindLLMFailed)
		return res
	}
	return res
}

// decideRetrieval asks the LLM whether this query needs documents.
func (t *SelfReflective) decideRetrieval(ctx context.Context, query string) (bool, error) {
	reply, err := t.tk.LLM.Complete(ctx, retrievalDecisionSystemPrompt, buildRetrievalDecisionPrompt(query), llm.GenerationParams{
		Temperature: llm.Float32Ptr(0),
		MaxTokens:   llm.IntPtr(8),
	})
	if err != nil {
		return false, err
	}
	return strings.Contains(strings.ToLower(reply), "yes"), nil
}

// filterRelevant labels each candidate and drops the not_relevant ones. A
// labeling failure keeps the chunk: better to over-include than to drop
// evidence on a flaky call.
func (t *SelfReflective) filterRelevant(ctx context.Context, query string, candidates []datatypes.RetrievedChunk) []datatypes.RetrievedChunk {
	kept := make([]datatypes.RetrievedChunk, 0, len(candidates))
	for _, c := range candidates {
		if ctx.Err() != nil {
			return kept
		}
		reply, err := t.tk.LLM.Complete(ctx, relevanceSystemPrompt, buildRelevancePrompt(query, datatypes.Preview(c.Text, 1500)), llm.GenerationParams{
			Temperature: llm.Float32Ptr(0),
			MaxTokens:   llm.IntPtr(8),
		})
		if err != nil || !strings.Contains(strings.ToLower(reply), "not_relevant") {
			kept = append(kept, c)
		}
	}
	return kept
}

// generateDirect answers without any retrieval context.
func (t *SelfReflective) generateDirect(ctx context.Context, res *datatypes.TechniqueResult, query string) error {
	tk := t.tk
	tk.Recorder.Log("generate_prepare_context", "answering without retrieval", map[string]any{
		"doc_count":            0,
		"total_context_length": 0,
	})
	tk.Recorder.Log("generate_llm_call", "calling LLM for direct answer", nil)
	genStart := time.Now()
	answer, err := tk.LLM.Complete(ctx, directAnswerSystemPrompt, "Question: "+query, llm.GenerationParams{
		Temperature: llm.Float32Ptr(0.2),
		MaxTokens:   llm.IntPtr(1024),
	})
	if err != nil {
		return err
	}
	res.GenerationTime = time.Since(genStart).Seconds()
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return errEmptyAnswer
	}
	res.Answer = answer
	tk.Recorder.Log("generate_complete", "answer generated", map[string]any{
		"answer_length":  len(res.Answer),
		"answer_preview": datatypes.Preview(res.Answer, 150),
	})
	return nil
}

// generateBest produces several candidate answers, scores each on support
// and utility, and keeps the winner. Composite = 5*support + utility; ties
// go to the shorter answer.
func (t *SelfReflective) generateBest(ctx context.Context, res *datatypes.TechniqueResult, query string) error {
	tk := t.tk
	contexts := res.ContextTexts()
	contextText := strings.Join(contexts, "\n\n")

	totalLen := 0
	for _, c := range contexts {
		totalLen += len(c)
	}
	tk.Recorder.Log("generate_prepare_context", "context prepared", map[string]any{
		"doc_count":            len(contexts),
		"total_context_length": totalLen,
	})

	bestScore := -1
	var bestAnswer string
	var bestDuration float64

	for i := 0; i < selfRAGCandidates; i++ {
		tk.Recorder.Log("generate_llm_call", "generating candidate answer", map[string]any{"candidate": i + 1})
		genStart := time.Now()
		candidate, err := tk.LLM.Complete(ctx, ragAnswerSystemPrompt, buildAnswerPrompt(query, contexts), llm.GenerationParams{
			Temperature: llm.Float32Ptr(0.7),
			MaxTokens:   llm.IntPtr(1024),
		})
		if err != nil {
			return err
		}
		duration := time.Since(genStart).Seconds()
		candidate = strings.TrimSpace(candidate)

		support := t.assessSupport(ctx, candidate, contextText)
		utility := t.rateUtility(ctx, query, candidate)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		composite := 5*supportScores[support] + utility

		tk.Recorder.Log("self_rag_answer_eval", "candidate scored", map[string]any{
			"candidate":      i + 1,
			"support":        support,
			"utility":        utility,
			"composite":      composite,
			"answer_preview": datatypes.Preview(candidate, 100),
		})

		better := composite > bestScore ||
			(composite == bestScore && len(candidate) < len(bestAnswer))
		if better {
			bestScore = composite
			bestAnswer = candidate
			bestDuration = duration
		}
	}

	if bestScore < tk.Options.MinSupportScore {
		tk.Recorder.Log("self_rag_low_support", "all candidates scored below threshold, answering directly", map[string]any{
			"best_score": bestScore,
		})
		return t.generateDirect(ctx, res, query)
	}

	if bestAnswer == "" {
		return errEmptyAnswer
	}
	res.Answer = bestAnswer
	res.GenerationTime = bestDuration
	tk.Recorder.Log("generate_complete", "best candidate selected", map[string]any{
		"answer_length":  len(res.Answer),
		"answer_preview": datatypes.Preview(res.Answer, 150),
		"composite":      bestScore,
	})
	return nil
}

// assessSupport grades how well the context backs a candidate answer.
func (t *SelfReflective) assessSupport(ctx context.Context, answer, contextText string) string {
	reply, err := t.tk.LLM.Complete(ctx, supportSystemPrompt, buildSupportPrompt(answer, datatypes.Preview(contextText, 1500)), llm.GenerationParams{
		Temperature: llm.Float32Ptr(0),
		MaxTokens:   llm.IntPtr(16),
	})
	if err != nil {
		return "partially"
	}
	reply = strings.ToLower(reply)
	switch {
	case strings.Contains(reply, "fully"):
		return "fully"
	case strings.Contains(reply, "partially"):
		return "partially"
	default:
		return "none"
	}
}

// rateUtility grades a candidate's usefulness on 1-5, defaulting to the
// midpoint when the reply is unusable.
func (t *SelfReflective) rateUtility(ctx context.Context, query, answer string) int {
	reply, err := t.tk.LLM.Complete(ctx, utilitySystemPrompt, buildUtilityPrompt(query, answer), llm.GenerationParams{
		Temperature: llm.Float32Ptr(0),
		MaxTokens:   llm.IntPtr(8),
	})
	if err != nil {
		return 3
	}
	if v, ok := firstNumberIn(reply, 1, 5); ok {
		return int(v)
	}
	return 3
}
