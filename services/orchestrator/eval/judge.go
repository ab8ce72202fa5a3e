// Copyright (C) 2026 RAG Eval Project Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package eval scores persisted QA records. Two evaluators exist: an LLM
// judge scoring fixed quality dimensions on 0-10, and a reference-metric
// evaluator computing claim-level metrics on [0, 1] inside an isolated
// worker pool. The evaluation dispatcher runs both over record batches.
package eval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hwk-1212/rag-eval-project/services/llm"
	"github.com/hwk-1212/rag-eval-project/services/orchestrator/datatypes"
)

// JudgeInput is one (query, answer, contexts) tuple to score. Reference is
// optional; when present the judge also scores correctness.
type JudgeInput struct {
	Query     string
	Answer    string
	Contexts  []string
	Reference string
}

// JudgeResult carries the dimensional scores the judge managed to produce.
// Dimensions that were skipped are absent from the map.
type JudgeResult struct {
	Dimensions  map[string]float64
	Correctness *float64
	Feedback    string
}

// Comparison is the outcome of a head-to-head answer comparison.
type Comparison struct {
	Winner          string  `json:"winner"`
	ScoreDifference float64 `json:"score_difference"`
	Conclusion      string  `json:"conclusion"`
}

// LLMJudge scores answers on the fixed quality dimensions, one completion
// per dimension. Safe for concurrent use; it holds no per-request state.
type LLMJudge struct {
	llm llm.LLMClient
}

// NewLLMJudge returns a judge backed by the given LLM client.
func NewLLMJudge(client llm.LLMClient) *LLMJudge {
	return &LLMJudge{llm: client}
}

// Evaluate scores the input on every judge dimension. Faithfulness is
// skipped when there is no retrieved context to judge against. A dimension
// whose completion fails or yields no parsable number scores 0; Evaluate
// errors only when every attempted dimension failed.
func (j *LLMJudge) Evaluate(ctx context.Context, in JudgeInput) (*JudgeResult, error) {
	result := &JudgeResult{Dimensions: make(map[string]float64)}

	attempted, failed := 0, 0
	for _, dimension := range datatypes.JudgeDimensions {
		if dimension == "faithfulness" && len(in.Contexts) == 0 {
			slog.Debug("Skipping faithfulness, no contexts to judge against")
			continue
		}
		attempted++
		score, err := j.scoreOnce(ctx, dimensionSystemPrompt(dimension),
			buildDimensionPrompt(dimension, in.Query, in.Answer, in.Contexts))
		if err != nil {
			slog.Warn("Judge dimension failed, recording 0", "dimension", dimension, "error", err)
			failed++
			result.Dimensions[dimension] = 0
			continue
		}
		result.Dimensions[dimension] = score
	}
	if attempted > 0 && failed == attempted {
		return nil, fmt.Errorf("all %d judge dimensions failed", attempted)
	}

	if in.Reference != "" {
		user := fmt.Sprintf("Reference answer: %s\n\nAnswer under evaluation: %s\n\nCorrectness score (0-10):",
			in.Reference, in.Answer)
		if score, err := j.scoreOnce(ctx, correctnessJudgePrompt, user); err != nil {
			slog.Warn("Correctness scoring failed", "error", err)
		} else {
			result.Correctness = &score
		}
	}

	result.Feedback = buildFeedback(result.Dimensions)
	return result, nil
}

// CompareAnswers judges two answers to the same query head to head.
func (j *LLMJudge) CompareAnswers(ctx context.Context, query, answer1, answer2, technique1, technique2 string) (*Comparison, error) {
	user := fmt.Sprintf("Question: %s\n\nAnswer 1 (%s):\n%s\n\nAnswer 2 (%s):\n%s\n\nAnswer 1's score (1-10):",
		query, technique1, answer1, technique2, answer2)
	score, err := j.scoreOnce(ctx, compareJudgePrompt, user)
	if err != nil {
		return nil, fmt.Errorf("comparing answers: %w", err)
	}

	cmp := &Comparison{ScoreDifference: score - 4}
	switch {
	case score >= 5:
		cmp.Winner = technique1
		cmp.Conclusion = fmt.Sprintf("%s outperforms %s", technique1, technique2)
	case score == 4:
		cmp.Winner = "tie"
		cmp.Conclusion = fmt.Sprintf("%s and %s are comparable", technique1, technique2)
		cmp.ScoreDifference = 0
	default:
		cmp.Winner = technique2
		cmp.Conclusion = fmt.Sprintf("%s outperforms %s", technique2, technique1)
		cmp.ScoreDifference = 4 - score
	}
	return cmp, nil
}

// RetrievalAssessment summarizes retrieval quality for one record.
type RetrievalAssessment struct {
	// ContextRelevance is the mean judged relevance of the assessed
	// contexts, 0-10.
	ContextRelevance float64 `json:"context_relevance"`
	// RetrievalPrecision is the fraction of assessed contexts scoring >= 6.
	RetrievalPrecision float64 `json:"retrieval_precision"`
	// AvgSimilarity is the mean of the retriever's own scores.
	AvgSimilarity float64 `json:"avg_similarity"`
}

// maxAssessedContexts bounds how many contexts EvaluateRetrieval judges.
const maxAssessedContexts = 3

// EvaluateRetrieval judges the relevance of each retrieved context to the
// query (first three only) and derives retrieval precision from the judged
// scores.
func (j *LLMJudge) EvaluateRetrieval(ctx context.Context, query string, contexts []string, scores []float64) (*RetrievalAssessment, error) {
	assessment := &RetrievalAssessment{}
	if len(scores) > 0 {
		var sum float64
		for _, s := range scores {
			sum += s
		}
		assessment.AvgSimilarity = sum / float64(len(scores))
	}
	if len(contexts) == 0 {
		return assessment, nil
	}

	assessed := firstN(contexts, maxAssessedContexts)
	var sum float64
	relevant := 0
	for _, passage := range assessed {
		if len(passage) > 1000 {
			passage = passage[:1000] + "..."
		}
		user := fmt.Sprintf("Query: %s\n\nDocument passage: %s\n\nRelevance score (0-10):", query, passage)
		score, err := j.scoreOnce(ctx, contextRelevanceJudgePrompt, user)
		if err != nil {
			return nil, fmt.Errorf("judging context relevance: %w", err)
		}
		sum += score
		if score >= 6 {
			relevant++
		}
	}
	assessment.ContextRelevance = sum / float64(len(assessed))
	assessment.RetrievalPrecision = float64(relevant) / float64(len(assessed))
	return assessment, nil
}

// scoreOnce runs one judge completion and extracts the 0-10 score. Replies
// with no in-range number are errors; the caller decides how to degrade.
func (j *LLMJudge) scoreOnce(ctx context.Context, system, user string) (float64, error) {
	reply, err := j.llm.Complete(ctx, system, user, llm.GenerationParams{
		Temperature: llm.Float32Ptr(0),
		MaxTokens:   llm.IntPtr(64),
	})
	if err != nil {
		return 0, err
	}
	score, ok := firstNumberIn(reply, 0, 10)
	if !ok {
		return 0, fmt.Errorf("no score in judge reply %q", datatypes.Preview(reply, 80))
	}
	return score, nil
}

// buildFeedback summarizes the dimensional scores into one line: strong
// dimensions, weak dimensions, and an overall verdict.
func buildFeedback(dimensions map[string]float64) string {
	if len(dimensions) == 0 {
		return ""
	}
	var sum float64
	var strengths, weaknesses []string
	for _, name := range datatypes.JudgeDimensions {
		score, ok := dimensions[name]
		if !ok {
			continue
		}
		sum += score
		if score >= 8 {
			strengths = append(strengths, fmt.Sprintf("%s (%.1f)", name, score))
		} else if score < 5 {
			weaknesses = append(weaknesses, fmt.Sprintf("%s (%.1f)", name, score))
		}
	}
	overall := sum / float64(len(dimensions))

	var parts []string
	switch {
	case overall >= 8:
		parts = append(parts, "Overall: excellent")
	case overall >= 6:
		parts = append(parts, "Overall: good")
	case overall >= 4:
		parts = append(parts, "Overall: fair")
	default:
		parts = append(parts, "Overall: poor")
	}
	if len(strengths) > 0 {
		parts = append(parts, "Strengths: "+strings.Join(strengths, ", "))
	}
	if len(weaknesses) > 0 {
		parts = append(parts, "Needs improvement: "+strings.Join(weaknesses, ", "))
	}
	return strings.Join(parts, " | ")
}
