// Copyright (C) 2026 RAG Eval Project Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hwk-1212/rag-eval-project/services/orchestrator/datatypes"
	"github.com/hwk-1212/rag-eval-project/services/orchestrator/index"
	"github.com/hwk-1212/rag-eval-project/services/orchestrator/ingest"
)

// recordingIndex captures upserts and deletes for document handler tests.
type recordingIndex struct {
	upserted []datatypes.EmbeddedChunk
	deleted  []string
}

func (r *recordingIndex) SimilaritySearch(_ context.Context, _ []float32, _ int, _ index.SearchOptions) ([]datatypes.RetrievedChunk, error) {
	return nil, nil
}

func (r *recordingIndex) Upsert(_ context.Context, chunks []datatypes.EmbeddedChunk) error {
	r.upserted = append(r.upserted, chunks...)
	return nil
}

func (r *recordingIndex) DeleteByDocument(_ context.Context, documentID string) error {
	r.deleted = append(r.deleted, documentID)
	return nil
}

type fixedEmbedder struct{}

func (fixedEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func documentRouter(idx *recordingIndex) *gin.Engine {
	ingestor := ingest.NewIngestor(idx, fixedEmbedder{}, 100, 10, 2)
	router := gin.New()
	router.POST("/v1/documents", CreateDocument(ingestor))
	router.DELETE("/v1/documents/:documentId", DeleteDocument(ingestor))
	return router
}

func TestCreateDocument(t *testing.T) {
	idx := &recordingIndex{}
	router := documentRouter(idx)

	w := performRequest(t, router, http.MethodPost, "/v1/documents", gin.H{
		"document_id": "doc-1",
		"text":        strings.Repeat("Paris is the capital of France. ", 10),
		"metadata":    map[string]string{"filename": "paris.txt"},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, "doc-1", body["document_id"])
	assert.EqualValues(t, len(idx.upserted), body["chunk_count"])
	assert.NotEmpty(t, idx.upserted)
}

func TestCreateDocument_GeneratesID(t *testing.T) {
	router := documentRouter(&recordingIndex{})

	w := performRequest(t, router, http.MethodPost, "/v1/documents", gin.H{
		"text": "A short document.",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.NotEmpty(t, decodeBody(t, w)["document_id"])
}

func TestCreateDocument_MissingText(t *testing.T) {
	router := documentRouter(&recordingIndex{})

	w := performRequest(t, router, http.MethodPost, "/v1/documents", gin.H{
		"document_id": "doc-1",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteDocumentHandler(t *testing.T) {
	idx := &recordingIndex{}
	router := documentRouter(idx)

	w := performRequest(t, router, http.MethodDelete, "/v1/documents/doc-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"doc-1"}, idx.deleted)
}
