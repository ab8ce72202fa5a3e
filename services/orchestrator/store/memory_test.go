// Copyright (C) 2026 RAG Eval Project Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hwk-1212/rag-eval-project/services/orchestrator/datatypes"
)

func TestMemoryStore_SessionLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	session := &datatypes.Session{
		ID:         uuid.NewString(),
		Title:      "comparison run",
		CreateTime: time.Now().UTC(),
		UpdateTime: time.Now().UTC(),
	}
	require.NoError(t, s.CreateSession(ctx, session))

	got, err := s.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.Title, got.Title)

	_, err = s.GetSession(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.TouchSession(ctx, session.ID))
	touched, err := s.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.False(t, touched.UpdateTime.Before(session.UpdateTime))

	sessions, err := s.ListSessions(ctx, 10, 0)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}

// Persisting a TechniqueResult and reloading it yields an equal structure.
func TestMemoryStore_QARecordRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	record := datatypes.QARecord{
		ID:         uuid.NewString(),
		SessionID:  "sess-1",
		Query:      "What is the capital of France?",
		CreateTime: time.Now().UTC(),
		Result: datatypes.TechniqueResult{
			TechniqueName: "fusion",
			Answer:        "Paris.",
			RetrievedChunks: []datatypes.RetrievedChunk{
				{ChunkID: "c1", Text: "Paris is the capital of France.", Score: 0.93,
					SubScores: map[string]float64{"vector": 1, "lexical": 0.86}},
			},
			Trace: []datatypes.TraceEvent{
				{Sequence: 0, StepName: "init", Timestamp: time.Now().UTC()},
			},
			RetrievalTime:  0.1,
			GenerationTime: 0.9,
			TotalTime:      1.1,
		},
	}
	require.NoError(t, s.SaveQARecords(ctx, []datatypes.QARecord{record}))

	got, err := s.GetQARecord(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, record.Result, got.Result)
	assert.Equal(t, record.Query, got.Query)
}

func TestMemoryStore_ListQARecordsBySession(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	base := time.Now().UTC()
	for i, sess := range []string{"a", "a", "b"} {
		require.NoError(t, s.SaveQARecords(ctx, []datatypes.QARecord{{
			ID:         uuid.NewString(),
			SessionID:  sess,
			CreateTime: base.Add(time.Duration(i) * time.Second),
		}}))
	}

	records, err := s.ListQARecords(ctx, "a")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.True(t, records[0].CreateTime.Before(records[1].CreateTime))
}

func TestMemoryStore_DeleteSessionCascades(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.CreateSession(ctx, &datatypes.Session{ID: "sess"}))
	require.NoError(t, s.SaveQARecords(ctx, []datatypes.QARecord{
		{ID: "rec-1", SessionID: "sess"},
		{ID: "rec-2", SessionID: "other"},
	}))
	require.NoError(t, s.SaveEvaluation(ctx, &datatypes.EvaluationScore{ID: "ev", QARecordID: "rec-1"}))

	require.NoError(t, s.DeleteSession(ctx, "sess"))

	_, err := s.GetSession(ctx, "sess")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetQARecord(ctx, "rec-1")
	assert.ErrorIs(t, err, ErrNotFound)
	evals, err := s.ListEvaluations(ctx, "rec-1")
	require.NoError(t, err)
	assert.Empty(t, evals)

	// Other sessions' records survive.
	_, err = s.GetQARecord(ctx, "rec-2")
	assert.NoError(t, err)

	assert.ErrorIs(t, s.DeleteSession(ctx, "sess"), ErrNotFound)
}

func TestMemoryStore_Evaluations(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	eval := datatypes.EvaluationScore{
		ID:         uuid.NewString(),
		QARecordID: "rec-1",
		CreateTime: time.Now().UTC(),
	}
	eval.SetDimension("relevance", 8)
	eval.SetReferenceScore("faithfulness", 0.75)
	eval.ComputeOverall()
	require.NoError(t, s.SaveEvaluation(ctx, &eval))

	got, err := s.ListEvaluations(ctx, "rec-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.NotNil(t, got[0].Relevance)
	assert.Equal(t, 8.0, *got[0].Relevance)
	assert.Equal(t, 0.75, got[0].Metadata["reference_scores"]["faithfulness"])

	empty, err := s.ListEvaluations(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
