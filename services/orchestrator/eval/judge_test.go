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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLLMJudge_ScoresAllDimensions(t *testing.T) {
	client := &fakeLLM{fn: func(system, user string) (string, error) {
		return "8", nil
	}}
	judge := NewLLMJudge(client)

	result, err := judge.Evaluate(context.Background(), JudgeInput{
		Query:    "What is the capital of France?",
		Answer:   "Paris is the capital of France.",
		Contexts: []string{"Paris is the capital and largest city of France."},
	})
	require.NoError(t, err)
	require.Len(t, result.Dimensions, 5)
	for _, name := range []string{"relevance", "faithfulness", "coherence", "fluency", "conciseness"} {
		assert.Equal(t, 8.0, result.Dimensions[name], name)
	}
	assert.Contains(t, result.Feedback, "Overall: excellent")
	assert.Contains(t, result.Feedback, "Strengths:")
	assert.Equal(t, 5, client.callCount())
}

// With no retrieved contexts, faithfulness is skipped rather than scored 0.
func TestLLMJudge_SkipsFaithfulnessWithoutContexts(t *testing.T) {
	client := &fakeLLM{fn: func(system, user string) (string, error) {
		return "7", nil
	}}
	judge := NewLLMJudge(client)

	result, err := judge.Evaluate(context.Background(), JudgeInput{
		Query:  "Hello, who are you?",
		Answer: "I am an assistant.",
	})
	require.NoError(t, err)
	assert.Len(t, result.Dimensions, 4)
	_, hasFaithfulness := result.Dimensions["faithfulness"]
	assert.False(t, hasFaithfulness)
	assert.Equal(t, 4, client.callCount())
}

// A dimension whose reply has no parsable score records 0 without failing
// the other dimensions.
func TestLLMJudge_UnparsableDimensionScoresZero(t *testing.T) {
	client := &fakeLLM{fn: func(system, user string) (string, error) {
		if system == coherenceJudgePrompt {
			return "I cannot rate this.", nil
		}
		return "6", nil
	}}
	judge := NewLLMJudge(client)

	result, err := judge.Evaluate(context.Background(), JudgeInput{
		Query:    "q",
		Answer:   "a",
		Contexts: []string{"ctx"},
	})
	require.NoError(t, err)
	assert.Equal(t, 0.0, result.Dimensions["coherence"])
	assert.Equal(t, 6.0, result.Dimensions["relevance"])
	assert.Contains(t, result.Feedback, "Needs improvement:")
}

func TestLLMJudge_AllDimensionsFailing(t *testing.T) {
	client := &fakeLLM{fn: func(system, user string) (string, error) {
		return "", fmt.Errorf("backend down")
	}}
	judge := NewLLMJudge(client)

	_, err := judge.Evaluate(context.Background(), JudgeInput{Query: "q", Answer: "a"})
	assert.Error(t, err)
}

// A reference answer adds a correctness score on top of the dimensions.
func TestLLMJudge_CorrectnessWithReference(t *testing.T) {
	client := &fakeLLM{fn: func(system, user string) (string, error) {
		if system == correctnessJudgePrompt {
			assert.True(t, strings.Contains(user, "Reference answer: Paris."))
			return "9", nil
		}
		return "7", nil
	}}
	judge := NewLLMJudge(client)

	result, err := judge.Evaluate(context.Background(), JudgeInput{
		Query:     "capital of France?",
		Answer:    "Paris",
		Reference: "Paris.",
	})
	require.NoError(t, err)
	require.NotNil(t, result.Correctness)
	assert.Equal(t, 9.0, *result.Correctness)
}

func TestLLMJudge_CompareAnswers(t *testing.T) {
	cases := []struct {
		reply      string
		winner     string
		difference float64
	}{
		{"7", "baseline", 3},
		{"4", "tie", 0},
		{"2", "fusion", 2},
	}
	for _, tc := range cases {
		client := &fakeLLM{fn: func(system, user string) (string, error) {
			return tc.reply, nil
		}}
		judge := NewLLMJudge(client)

		cmp, err := judge.CompareAnswers(context.Background(), "q", "a1", "a2", "baseline", "fusion")
		require.NoError(t, err)
		assert.Equal(t, tc.winner, cmp.Winner, "reply %s", tc.reply)
		assert.Equal(t, tc.difference, cmp.ScoreDifference, "reply %s", tc.reply)
	}
}

func TestLLMJudge_EvaluateRetrieval(t *testing.T) {
	replies := []string{"9", "8", "3"}
	i := 0
	client := &fakeLLM{fn: func(system, user string) (string, error) {
		require.Equal(t, contextRelevanceJudgePrompt, system)
		reply := replies[i]
		i++
		return reply, nil
	}}
	judge := NewLLMJudge(client)

	assessment, err := judge.EvaluateRetrieval(context.Background(), "q",
		[]string{"ctx1", "ctx2", "ctx3", "ctx4 never judged"},
		[]float64{0.9, 0.8, 0.7})
	require.NoError(t, err)
	assert.InDelta(t, 20.0/3.0, assessment.ContextRelevance, 1e-9)
	assert.InDelta(t, 2.0/3.0, assessment.RetrievalPrecision, 1e-9)
	assert.InDelta(t, 0.8, assessment.AvgSimilarity, 1e-9)
	assert.Equal(t, 3, client.callCount())
}

func TestLLMJudge_EvaluateRetrievalNoContexts(t *testing.T) {
	judge := NewLLMJudge(&fakeLLM{fn: func(system, user string) (string, error) {
		t.Fatal("no judge call expected")
		return "", nil
	}})

	assessment, err := judge.EvaluateRetrieval(context.Background(), "q", nil, nil)
	require.NoError(t, err)
	assert.Zero(t, assessment.ContextRelevance)
	assert.Zero(t, assessment.RetrievalPrecision)
}

func TestBuildFeedback_Empty(t *testing.T) {
	assert.Empty(t, buildFeedback(nil))
}
