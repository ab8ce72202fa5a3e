// Copyright (C) 2026 RAG Eval Project Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hwk-1212/rag-eval-project/services/orchestrator/dispatch"
	"github.com/hwk-1212/rag-eval-project/services/orchestrator/store"
	"github.com/hwk-1212/rag-eval-project/services/orchestrator/techniques"
)

func testRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	st := store.NewMemoryStore()
	SetupRoutes(router, &Deps{
		Dispatcher: dispatch.NewDispatcher(techniques.NewRegistry(), nil, nil, nil, st),
		Store:      st,
	})
	return router
}

func get(t *testing.T, router *gin.Engine, path string) *httptest.ResponseRecorder {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, path, nil)
	require.NoError(t, err)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSetupRoutes(t *testing.T) {
	router := testRouter(t)

	assert.Equal(t, http.StatusOK, get(t, router, "/health").Code)
	assert.Equal(t, http.StatusOK, get(t, router, "/metrics").Code)
	assert.Equal(t, http.StatusOK, get(t, router, "/v1/techniques").Code)
	assert.Equal(t, http.StatusOK, get(t, router, "/v1/sessions").Code)
	assert.Equal(t, http.StatusNotFound, get(t, router, "/v1/nope").Code)
}
