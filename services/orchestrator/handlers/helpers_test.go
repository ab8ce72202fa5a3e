// Copyright (C) 2026 RAG Eval Project Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/hwk-1212/rag-eval-project/services/llm"
	"github.com/hwk-1212/rag-eval-project/services/orchestrator/datatypes"
	"github.com/hwk-1212/rag-eval-project/services/orchestrator/dispatch"
	"github.com/hwk-1212/rag-eval-project/services/orchestrator/store"
	"github.com/hwk-1212/rag-eval-project/services/orchestrator/techniques"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// performRequest drives one handler through a router and returns the
// recorded response.
func performRequest(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

// echoTechnique answers instantly with a canned answer.
type echoTechnique struct {
	name string
}

func (e *echoTechnique) Name() string { return e.name }

func (e *echoTechnique) Answer(_ context.Context, query string, _ int) *datatypes.TechniqueResult {
	return &datatypes.TechniqueResult{
		TechniqueName:   e.name,
		Answer:          "echo: " + query,
		RetrievedChunks: []datatypes.RetrievedChunk{},
		Trace:           []datatypes.TraceEvent{},
		TotalTime:       0.01,
	}
}

// echoRegistry holds only the echo technique so handler tests never touch
// real retrieval.
func echoRegistry() *techniques.Registry {
	r := techniques.NewRegistry()
	for _, name := range r.Available() {
		name := name
		r.Register(name, func(tk *techniques.Toolkit) techniques.Technique {
			return &echoTechnique{name: name}
		})
	}
	return r
}

func newTestQueryDispatcher(st store.Store) *dispatch.Dispatcher {
	return dispatch.NewDispatcher(echoRegistry(), nil, nil, nil, st)
}

// cannedLLM replies with a fixed string to every completion.
type cannedLLM struct {
	reply string
	err   error
}

func (c *cannedLLM) Complete(_ context.Context, _, _ string, _ llm.GenerationParams) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	return c.reply, nil
}

// seedSuccessfulRecord stores a session and one answered QA record.
func seedSuccessfulRecord(t *testing.T, st store.Store, sessionID, recordID string) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, st.CreateSession(ctx, &datatypes.Session{
		ID:         sessionID,
		Title:      "test session",
		CreateTime: now,
		UpdateTime: now,
	}))
	require.NoError(t, st.SaveQARecords(ctx, []datatypes.QARecord{{
		ID:         recordID,
		SessionID:  sessionID,
		Query:      "What is the capital of France?",
		CreateTime: now,
		Result: datatypes.TechniqueResult{
			TechniqueName: "baseline",
			Answer:        "Paris is the capital of France.",
			RetrievedChunks: []datatypes.RetrievedChunk{
				{ChunkID: "c1", DocumentID: "d1", Text: "Paris is the capital of France.", Score: 0.9},
			},
			TotalTime: 0.5,
		},
	}}))
}
