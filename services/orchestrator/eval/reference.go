// Copyright (C) 2026 RAG Eval Project Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package eval

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hwk-1212/rag-eval-project/services/embedding"
	"github.com/hwk-1212/rag-eval-project/services/llm"
	"github.com/hwk-1212/rag-eval-project/services/orchestrator/datatypes"
)

// defaultJobTimeout bounds one reference evaluation end to end.
const defaultJobTimeout = 300 * time.Second

// backQuestionCount is how many questions answer_relevancy derives from the
// answer before comparing them to the query.
const backQuestionCount = 3

// RefInput is one evaluation job for the reference-metric evaluator.
type RefInput struct {
	Query     string
	Answer    string
	Contexts  []string
	Reference string
}

// ReferenceEvaluator computes claim-level reference metrics on [0, 1]:
// faithfulness and answer_relevancy always, context_precision and
// context_recall when a reference answer is given.
//
// Every evaluation runs on one of a fixed set of long-lived workers, each
// serializing its own jobs. The metric pipeline must never share the
// caller's scheduling context: a job that stalls is cut off by the job
// timeout on its worker without blocking the host server.
type ReferenceEvaluator struct {
	llm        llm.LLMClient
	embedder   embedding.Client
	jobs       chan refJob
	jobTimeout time.Duration
}

type refJob struct {
	ctx   context.Context
	input RefInput
	out   chan refOutcome
}

type refOutcome struct {
	scores map[string]float64
	err    error
}

// NewReferenceEvaluator starts a pool of long-lived evaluation workers.
// workers is clamped to at least 1; jobTimeout of 0 means the 300 s
// default.
func NewReferenceEvaluator(llmClient llm.LLMClient, embedder embedding.Client, workers int, jobTimeout time.Duration) *ReferenceEvaluator {
	if workers < 1 {
		workers = 1
	}
	if jobTimeout <= 0 {
		jobTimeout = defaultJobTimeout
	}
	e := &ReferenceEvaluator{
		llm:        llmClient,
		embedder:   embedder,
		jobs:       make(chan refJob),
		jobTimeout: jobTimeout,
	}
	for i := 0; i < workers; i++ {
		go e.worker(i)
	}
	slog.Info("Reference evaluator pool started", "workers", workers, "job_timeout", jobTimeout)
	return e
}

func (e *ReferenceEvaluator) worker(id int) {
	for job := range e.jobs {
		jobCtx, cancel := context.WithTimeout(job.ctx, e.jobTimeout)
		scores, err := e.evaluateOn(jobCtx, job.input)
		cancel()
		if err != nil {
			slog.Warn("Reference evaluation failed", "worker", id, "error", err)
		}
		job.out <- refOutcome{scores: scores, err: err}
	}
}

// Evaluate submits one job to the pool and waits for its outcome. The
// caller's context bounds the wait; the pool's job timeout bounds the work.
func (e *ReferenceEvaluator) Evaluate(ctx context.Context, in RefInput) (map[string]float64, error) {
	out := make(chan refOutcome, 1)
	select {
	case e.jobs <- refJob{ctx: ctx, input: in, out: out}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case outcome := <-out:
		return outcome.scores, outcome.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// evaluateOn runs the metric pipeline on a worker goroutine.
func (e *ReferenceEvaluator) evaluateOn(ctx context.Context, in RefInput) (map[string]float64, error) {
	scores := make(map[string]float64)

	if len(in.Contexts) > 0 {
		faithfulness, err := e.claimFaithfulness(ctx, in.Answer, in.Contexts)
		if err != nil {
			return nil, fmt.Errorf("faithfulness: %w", err)
		}
		scores["faithfulness"] = faithfulness
	}

	relevancy, err := e.answerRelevancy(ctx, in.Query, in.Answer)
	if err != nil {
		return nil, fmt.Errorf("answer_relevancy: %w", err)
	}
	scores["answer_relevancy"] = relevancy

	// Precision and recall need ground truth; their absence is normal.
	if in.Reference != "" && len(in.Contexts) > 0 {
		precision, err := e.contextPrecision(ctx, in.Query, in.Reference, in.Contexts)
		if err != nil {
			return nil, fmt.Errorf("context_precision: %w", err)
		}
		scores["context_precision"] = precision

		recall, err := e.contextRecall(ctx, in.Reference, in.Contexts)
		if err != nil {
			return nil, fmt.Errorf("context_recall: %w", err)
		}
		scores["context_recall"] = recall
	}
	return scores, nil
}

// claimFaithfulness breaks the answer into atomic claims and returns the
// fraction the contexts support.
func (e *ReferenceEvaluator) claimFaithfulness(ctx context.Context, answer string, contexts []string) (float64, error) {
	reply, err := e.llm.Complete(ctx, claimExtractionPrompt, "Answer:\n"+answer, llm.GenerationParams{
		Temperature: llm.Float32Ptr(0),
		MaxTokens:   llm.IntPtr(512),
	})
	if err != nil {
		return 0, fmt.Errorf("extracting claims: %w", err)
	}
	claims := parseNumberedList(reply)
	if len(claims) == 0 {
		slog.Warn("No claims extracted from answer", "answer_preview", datatypes.Preview(answer, 80))
		return 0, nil
	}

	supported := 0
	for _, claim := range claims {
		verdict, err := e.llm.Complete(ctx, claimVerificationPrompt,
			buildClaimVerificationPrompt(claim, contexts), llm.GenerationParams{
				Temperature: llm.Float32Ptr(0),
				MaxTokens:   llm.IntPtr(8),
			})
		if err != nil {
			return 0, fmt.Errorf("verifying claim: %w", err)
		}
		if parseYesNo(verdict) {
			supported++
		}
	}
	return float64(supported) / float64(len(claims)), nil
}

// answerRelevancy derives back-questions from the answer and returns the
// mean cosine similarity between the query and those questions.
func (e *ReferenceEvaluator) answerRelevancy(ctx context.Context, query, answer string) (float64, error) {
	reply, err := e.llm.Complete(ctx, backQuestionPrompt,
		buildBackQuestionPrompt(answer, backQuestionCount), llm.GenerationParams{
			Temperature: llm.Float32Ptr(0.3),
			MaxTokens:   llm.IntPtr(256),
		})
	if err != nil {
		return 0, fmt.Errorf("generating back-questions: %w", err)
	}
	questions := parseNumberedList(reply)
	if len(questions) > backQuestionCount {
		questions = questions[:backQuestionCount]
	}
	if len(questions) == 0 {
		slog.Warn("No back-questions generated", "answer_preview", datatypes.Preview(answer, 80))
		return 0, nil
	}

	vectors, err := e.embedder.Embed(ctx, append([]string{query}, questions...))
	if err != nil {
		return 0, fmt.Errorf("embedding back-questions: %w", err)
	}
	if len(vectors) != len(questions)+1 {
		return 0, fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(questions)+1)
	}

	queryVec := vectors[0]
	var sum float64
	for _, vec := range vectors[1:] {
		sum += embedding.CosineSimilarity(queryVec, vec)
	}
	return sum / float64(len(questions)), nil
}

// contextPrecision returns the fraction of retrieved passages judged useful
// for arriving at the reference answer.
func (e *ReferenceEvaluator) contextPrecision(ctx context.Context, query, reference string, contexts []string) (float64, error) {
	useful := 0
	for _, passage := range contexts {
		verdict, err := e.llm.Complete(ctx, contextUsefulnessPrompt,
			buildContextUsefulnessPrompt(query, reference, passage), llm.GenerationParams{
				Temperature: llm.Float32Ptr(0),
				MaxTokens:   llm.IntPtr(8),
			})
		if err != nil {
			return 0, fmt.Errorf("judging passage: %w", err)
		}
		if parseYesNo(verdict) {
			useful++
		}
	}
	return float64(useful) / float64(len(contexts)), nil
}

// contextRecall breaks the reference answer into claims and returns the
// fraction the retrieved contexts cover.
func (e *ReferenceEvaluator) contextRecall(ctx context.Context, reference string, contexts []string) (float64, error) {
	reply, err := e.llm.Complete(ctx, claimExtractionPrompt, "Answer:\n"+reference, llm.GenerationParams{
		Temperature: llm.Float32Ptr(0),
		MaxTokens:   llm.IntPtr(512),
	})
	if err != nil {
		return 0, fmt.Errorf("extracting reference claims: %w", err)
	}
	claims := parseNumberedList(reply)
	if len(claims) == 0 {
		return 0, nil
	}

	covered := 0
	for _, claim := range claims {
		verdict, err := e.llm.Complete(ctx, claimVerificationPrompt,
			buildClaimVerificationPrompt(claim, contexts), llm.GenerationParams{
				Temperature: llm.Float32Ptr(0),
				MaxTokens:   llm.IntPtr(8),
			})
		if err != nil {
			return 0, fmt.Errorf("verifying reference claim: %w", err)
		}
		if parseYesNo(verdict) {
			covered++
		}
	}
	return float64(covered) / float64(len(claims)), nil
}
