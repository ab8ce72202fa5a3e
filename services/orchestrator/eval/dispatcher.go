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
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hwk-1212/rag-eval-project/services/orchestrator/datatypes"
	"github.com/hwk-1212/rag-eval-project/services/orchestrator/observability"
	"github.com/hwk-1212/rag-eval-project/services/orchestrator/store"
)

// Evaluator concurrency bounds. The reference-worker pool is sized to the
// same number at process start.
const (
	DefaultEvalConcurrency = 2
	MaxEvalConcurrency     = 5
)

// Dispatcher runs the two evaluators over batches of persisted QA records
// under a bounded concurrency. One Dispatcher serves the whole process.
type Dispatcher struct {
	store       store.Store
	judge       *LLMJudge
	reference   *ReferenceEvaluator
	concurrency int
}

// NewDispatcher wires an evaluation dispatcher. concurrency is clamped to
// [1, MaxEvalConcurrency]; zero means the default.
func NewDispatcher(st store.Store, judge *LLMJudge, reference *ReferenceEvaluator, concurrency int) *Dispatcher {
	if concurrency <= 0 {
		concurrency = DefaultEvalConcurrency
	}
	if concurrency > MaxEvalConcurrency {
		concurrency = MaxEvalConcurrency
	}
	return &Dispatcher{
		store:       st,
		judge:       judge,
		reference:   reference,
		concurrency: concurrency,
	}
}

// EvaluateBatch scores the requested records with the enabled evaluators.
// One evaluator failing on a record does not suppress the other's scores
// for that record, and no record's failure affects another record. Every
// evaluation that produced at least one score is persisted.
func (d *Dispatcher) EvaluateBatch(ctx context.Context, req *datatypes.EvaluateRequest) (*datatypes.EvaluateResponse, error) {
	if len(req.QARecordIDs) == 0 {
		return nil, fmt.Errorf("at least one qa_record_id is required")
	}
	if !req.UseLLM && !req.UseReference {
		return nil, fmt.Errorf("at least one of use_llm and use_reference must be set")
	}

	slog.Info("Evaluating batch",
		"record_count", len(req.QARecordIDs),
		"use_llm", req.UseLLM,
		"use_reference", req.UseReference,
		"concurrency", d.concurrency,
	)

	var mu sync.Mutex
	evaluations := make([]datatypes.EvaluationScore, 0, len(req.QARecordIDs))

	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)
	for _, recordID := range req.QARecordIDs {
		recordID := recordID
		g.Go(func() error {
			eval := d.evaluateRecord(groupCtx, recordID, req)
			mu.Lock()
			evaluations = append(evaluations, *eval)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return &datatypes.EvaluateResponse{
		Evaluations: evaluations,
		Timestamp:   time.Now().UTC(),
	}, nil
}

// evaluateRecord scores one record. Failures land on the returned row as
// error kinds, never as Go errors.
func (d *Dispatcher) evaluateRecord(ctx context.Context, recordID string, req *datatypes.EvaluateRequest) *datatypes.EvaluationScore {
	eval := &datatypes.EvaluationScore{
		ID:         uuid.NewString(),
		QARecordID: recordID,
		CreateTime: time.Now().UTC(),
	}

	record, err := d.store.GetQARecord(ctx, recordID)
	if err != nil {
		eval.ErrorKind = datatypes.ErrKindEvaluatorFailed
		eval.ErrorMessage = fmt.Sprintf("loading record: %v", err)
		return eval
	}
	if !record.Result.Succeeded() {
		eval.ErrorKind = datatypes.ErrKindEvaluatorFailed
		eval.ErrorMessage = fmt.Sprintf("record has no successful answer (technique error: %s)", record.Result.ErrorKind)
		return eval
	}

	query := record.Query
	answer := record.Result.Answer
	contexts := record.Result.ContextTexts()
	reference := req.ReferenceAnswers[recordID]

	var failures []string
	scored := false

	if req.UseLLM {
		judgeStart := time.Now()
		judged, err := d.judge.Evaluate(ctx, JudgeInput{
			Query:     query,
			Answer:    answer,
			Contexts:  contexts,
			Reference: reference,
		})
		if err != nil {
			slog.Warn("LLM judge failed", "record_id", recordID, "error", err)
			failures = append(failures, fmt.Sprintf("llm judge: %v", err))
			observability.DefaultMetrics.ObserveEvaluation("llm_judge", "error", time.Since(judgeStart).Seconds())
		} else {
			observability.DefaultMetrics.ObserveEvaluation("llm_judge", "success", time.Since(judgeStart).Seconds())
			for name, score := range judged.Dimensions {
				eval.SetDimension(name, datatypes.Round4(score))
			}
			if judged.Correctness != nil {
				eval.SetReferenceScore("correctness", *judged.Correctness)
			}
			eval.Feedback = judged.Feedback
			scored = true
		}

		if len(contexts) > 0 {
			similarities := make([]float64, len(record.Result.RetrievedChunks))
			for i, chunk := range record.Result.RetrievedChunks {
				similarities[i] = chunk.Score
			}
			retrieval, err := d.judge.EvaluateRetrieval(ctx, query, contexts, similarities)
			if err != nil {
				slog.Warn("Retrieval assessment failed", "record_id", recordID, "error", err)
			} else {
				eval.SetMetadataScore("retrieval_scores", "context_relevance", retrieval.ContextRelevance)
				eval.SetMetadataScore("retrieval_scores", "retrieval_precision", retrieval.RetrievalPrecision)
				eval.SetMetadataScore("retrieval_scores", "avg_similarity", retrieval.AvgSimilarity)
			}
		}
	}

	if req.UseReference {
		refStart := time.Now()
		refScores, err := d.reference.Evaluate(ctx, RefInput{
			Query:     query,
			Answer:    answer,
			Contexts:  contexts,
			Reference: reference,
		})
		if err != nil {
			slog.Warn("Reference evaluator failed", "record_id", recordID, "error", err)
			failures = append(failures, fmt.Sprintf("reference metrics: %v", err))
			observability.DefaultMetrics.ObserveEvaluation("reference", "error", time.Since(refStart).Seconds())
		} else {
			observability.DefaultMetrics.ObserveEvaluation("reference", "success", time.Since(refStart).Seconds())
			for metric, score := range refScores {
				eval.SetReferenceScore(metric, score)
			}
			scored = true
		}
	}

	eval.ComputeOverall()

	if len(failures) > 0 {
		eval.ErrorKind = datatypes.ErrKindEvaluatorFailed
		eval.ErrorMessage = strings.Join(failures, "; ")
	}
	if !scored {
		return eval
	}

	if err := d.store.SaveEvaluation(ctx, eval); err != nil {
		slog.Error("Failed to persist evaluation", "record_id", recordID, "error", err)
		eval.ErrorKind = datatypes.ErrKindPersistenceFailed
		eval.ErrorMessage = err.Error()
	}
	return eval
}
