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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hwk-1212/rag-eval-project/services/orchestrator/datatypes"
	"github.com/hwk-1212/rag-eval-project/services/orchestrator/store"
)

// batchTestLLM answers judge prompts with a fixed score and drives the
// reference pipeline with minimal scripted replies.
func batchTestLLM(judgeScore string) *fakeLLM {
	return &fakeLLM{fn: func(system, user string) (string, error) {
		switch system {
		case claimExtractionPrompt:
			return "1. a claim.", nil
		case claimVerificationPrompt:
			return "yes", nil
		case backQuestionPrompt:
			return "1. a question?", nil
		case contextUsefulnessPrompt:
			return "yes", nil
		}
		return judgeScore, nil
	}}
}

func seedRecord(t *testing.T, st store.Store, id, answer string) {
	t.Helper()
	record := datatypes.QARecord{
		ID:         id,
		SessionID:  "sess",
		Query:      "What is the capital of France?",
		CreateTime: time.Now().UTC(),
		Result: datatypes.TechniqueResult{
			TechniqueName: "baseline",
			Answer:        answer,
			RetrievedChunks: []datatypes.RetrievedChunk{
				{ChunkID: "c1", Text: "Paris is the capital of France.", Score: 0.9},
			},
		},
	}
	require.NoError(t, st.SaveQARecords(context.Background(), []datatypes.QARecord{record}))
}

func newTestEvalDispatcher(client *fakeLLM, st store.Store) *Dispatcher {
	judge := NewLLMJudge(client)
	reference := NewReferenceEvaluator(client, &fakeEmbedder{defaultVec: []float32{1, 0}}, 2, time.Minute)
	return NewDispatcher(st, judge, reference, 2)
}

func TestEvaluateBatch_LLMJudgeOnly(t *testing.T) {
	st := store.NewMemoryStore()
	seedRecord(t, st, "rec-1", "Paris.")
	d := newTestEvalDispatcher(batchTestLLM("8"), st)

	resp, err := d.EvaluateBatch(context.Background(), &datatypes.EvaluateRequest{
		QARecordIDs: []string{"rec-1"},
		UseLLM:      true,
	})
	require.NoError(t, err)
	require.Len(t, resp.Evaluations, 1)

	eval := resp.Evaluations[0]
	assert.Empty(t, eval.ErrorKind)
	require.NotNil(t, eval.Relevance)
	assert.Equal(t, 8.0, *eval.Relevance)
	require.NotNil(t, eval.Overall)
	assert.Equal(t, 8.0, *eval.Overall)
	assert.NotEmpty(t, eval.Feedback)

	retrieval := eval.Metadata["retrieval_scores"]
	require.NotNil(t, retrieval)
	assert.Equal(t, 8.0, retrieval["context_relevance"])
	assert.Equal(t, 1.0, retrieval["retrieval_precision"])
	assert.Equal(t, 0.9, retrieval["avg_similarity"])

	persisted, err := st.ListEvaluations(context.Background(), "rec-1")
	require.NoError(t, err)
	assert.Len(t, persisted, 1)
}

func TestEvaluateBatch_ReferenceMetrics(t *testing.T) {
	st := store.NewMemoryStore()
	seedRecord(t, st, "rec-1", "Paris is the capital.")
	d := newTestEvalDispatcher(batchTestLLM("8"), st)

	resp, err := d.EvaluateBatch(context.Background(), &datatypes.EvaluateRequest{
		QARecordIDs:      []string{"rec-1"},
		UseReference:     true,
		ReferenceAnswers: map[string]string{"rec-1": "Paris."},
	})
	require.NoError(t, err)
	require.Len(t, resp.Evaluations, 1)

	eval := resp.Evaluations[0]
	assert.Empty(t, eval.ErrorKind)
	refScores := eval.Metadata["reference_scores"]
	require.NotNil(t, refScores)
	assert.Equal(t, 1.0, refScores["faithfulness"])
	assert.Contains(t, refScores, "answer_relevancy")
	assert.Equal(t, 1.0, refScores["context_precision"])
	assert.Equal(t, 1.0, refScores["context_recall"])

	// Dimensional columns stay nil without the LLM judge.
	assert.Nil(t, eval.Relevance)
	assert.Nil(t, eval.Overall)
}

// One evaluator failing does not suppress the other's scores, and the row
// is still persisted.
func TestEvaluateBatch_EvaluatorIsolation(t *testing.T) {
	st := store.NewMemoryStore()
	seedRecord(t, st, "rec-1", "Paris.")

	client := &fakeLLM{fn: func(system, user string) (string, error) {
		if system == claimExtractionPrompt || system == backQuestionPrompt {
			return "", fmt.Errorf("reference backend down")
		}
		return "7", nil
	}}
	d := newTestEvalDispatcher(client, st)

	resp, err := d.EvaluateBatch(context.Background(), &datatypes.EvaluateRequest{
		QARecordIDs:  []string{"rec-1"},
		UseLLM:       true,
		UseReference: true,
	})
	require.NoError(t, err)
	require.Len(t, resp.Evaluations, 1)

	eval := resp.Evaluations[0]
	assert.Equal(t, datatypes.ErrKindEvaluatorFailed, eval.ErrorKind)
	require.NotNil(t, eval.Relevance)
	assert.Equal(t, 7.0, *eval.Relevance)

	persisted, err := st.ListEvaluations(context.Background(), "rec-1")
	require.NoError(t, err)
	assert.Len(t, persisted, 1)
}

// A record one evaluator cannot even load fails alone; the other records in
// the batch are evaluated and persisted normally.
func TestEvaluateBatch_PerRecordIsolation(t *testing.T) {
	st := store.NewMemoryStore()
	seedRecord(t, st, "rec-1", "Paris.")
	d := newTestEvalDispatcher(batchTestLLM("6"), st)

	resp, err := d.EvaluateBatch(context.Background(), &datatypes.EvaluateRequest{
		QARecordIDs: []string{"rec-1", "rec-missing"},
		UseLLM:      true,
	})
	require.NoError(t, err)
	require.Len(t, resp.Evaluations, 2)

	byRecord := make(map[string]datatypes.EvaluationScore)
	for _, e := range resp.Evaluations {
		byRecord[e.QARecordID] = e
	}
	assert.Empty(t, byRecord["rec-1"].ErrorKind)
	assert.Equal(t, datatypes.ErrKindEvaluatorFailed, byRecord["rec-missing"].ErrorKind)

	missing, err := st.ListEvaluations(context.Background(), "rec-missing")
	require.NoError(t, err)
	assert.Empty(t, missing)
}

// Records whose technique run failed are not scored.
func TestEvaluateBatch_SkipsFailedRecords(t *testing.T) {
	st := store.NewMemoryStore()
	record := datatypes.QARecord{
		ID:        "rec-err",
		SessionID: "sess",
		Query:     "q",
		Result: datatypes.TechniqueResult{
			TechniqueName: "hyde",
			ErrorKind:     datatypes.ErrKindLLMFailed,
			ErrorMessage:  "llm: upstream error",
		},
	}
	require.NoError(t, st.SaveQARecords(context.Background(), []datatypes.QARecord{record}))
	d := newTestEvalDispatcher(batchTestLLM("6"), st)

	resp, err := d.EvaluateBatch(context.Background(), &datatypes.EvaluateRequest{
		QARecordIDs: []string{"rec-err"},
		UseLLM:      true,
	})
	require.NoError(t, err)
	require.Len(t, resp.Evaluations, 1)
	assert.Equal(t, datatypes.ErrKindEvaluatorFailed, resp.Evaluations[0].ErrorKind)
}

func TestEvaluateBatch_Validation(t *testing.T) {
	d := newTestEvalDispatcher(batchTestLLM("6"), store.NewMemoryStore())

	_, err := d.EvaluateBatch(context.Background(), &datatypes.EvaluateRequest{UseLLM: true})
	assert.Error(t, err)

	_, err = d.EvaluateBatch(context.Background(), &datatypes.EvaluateRequest{QARecordIDs: []string{"r"}})
	assert.Error(t, err)
}

func TestNewDispatcher_ClampsConcurrency(t *testing.T) {
	st := store.NewMemoryStore()
	judge := NewLLMJudge(batchTestLLM("5"))
	reference := NewReferenceEvaluator(batchTestLLM("5"), &fakeEmbedder{defaultVec: []float32{1}}, 1, time.Minute)

	assert.Equal(t, DefaultEvalConcurrency, NewDispatcher(st, judge, reference, 0).concurrency)
	assert.Equal(t, MaxEvalConcurrency, NewDispatcher(st, judge, reference, 9).concurrency)
}
