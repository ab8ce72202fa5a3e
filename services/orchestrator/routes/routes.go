// Copyright (C) 2026 RAG Eval Project Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package routes wires the HTTP endpoints to their handlers.
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hwk-1212/rag-eval-project/services/orchestrator/dispatch"
	"github.com/hwk-1212/rag-eval-project/services/orchestrator/eval"
	"github.com/hwk-1212/rag-eval-project/services/orchestrator/handlers"
	"github.com/hwk-1212/rag-eval-project/services/orchestrator/ingest"
	"github.com/hwk-1212/rag-eval-project/services/orchestrator/store"
)

// Deps bundles the long-lived collaborators the handlers close over.
type Deps struct {
	Dispatcher     *dispatch.Dispatcher
	EvalDispatcher *eval.Dispatcher
	Judge          *eval.LLMJudge
	Store          store.Store
	Ingestor       *ingest.Ingestor
}

// SetupRoutes registers all endpoints on the router.
func SetupRoutes(router *gin.Engine, deps *Deps) {
	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	{
		v1.POST("/query", handlers.HandleQuery(deps.Dispatcher))
		v1.GET("/techniques", handlers.ListTechniques(deps.Dispatcher))

		v1.POST("/documents", handlers.CreateDocument(deps.Ingestor))
		v1.DELETE("/documents/:documentId", handlers.DeleteDocument(deps.Ingestor))

		v1.POST("/evaluations", handlers.HandleEvaluateBatch(deps.EvalDispatcher))
		v1.POST("/evaluations/compare", handlers.HandleCompare(deps.Judge, deps.Store))
		v1.GET("/records/:recordId/evaluations", handlers.ListEvaluations(deps.Store))

		sessions := v1.Group("/sessions")
		{
			sessions.GET("", handlers.ListSessions(deps.Store))
			sessions.GET("/:sessionId/history", handlers.GetSessionHistory(deps.Store))
			sessions.DELETE("/:sessionId", handlers.DeleteSession(deps.Store))
		}
	}
}
