// Copyright (C) 2026 RAG Eval Project Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers implements the HTTP surface of the orchestrator.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/hwk-1212/rag-eval-project/services/orchestrator/datatypes"
	"github.com/hwk-1212/rag-eval-project/services/orchestrator/dispatch"
	"github.com/hwk-1212/rag-eval-project/services/orchestrator/observability"
	"github.com/hwk-1212/rag-eval-project/services/orchestrator/techniques"
)

var tracer = otel.Tracer("rageval.orchestrator.handlers")

// HandleQuery runs one comparison query: the request's techniques fan out
// over the shared document scope and every result comes back in order.
func HandleQuery(dispatcher *dispatch.Dispatcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "HandleQuery")
		defer span.End()

		var request datatypes.QueryRequest
		if err := c.BindJSON(&request); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Failed to bind query request", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		span.SetAttributes(
			attribute.String("session_id", request.SessionID),
			attribute.StringSlice("techniques", request.Techniques),
			attribute.Int("document_count", len(request.DocumentIDs)),
		)
		slog.Info("Received query request",
			"query", datatypes.Preview(request.Query, 100),
			"techniques", request.Techniques,
			"session_id", request.SessionID,
		)

		resp, err := dispatcher.Run(ctx, &request)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			observability.DefaultMetrics.ObserveQuery("rejected")
			if techniques.IsUnknownTechnique(err) {
				c.JSON(http.StatusBadRequest, gin.H{
					"error":      err.Error(),
					"error_kind": datatypes.ErrKindUnknownTechnique,
					"available":  dispatcher.Available(),
				})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		status := "success"
		if resp.PersistenceFailed {
			status = "persistence_failed"
		}
		observability.DefaultMetrics.ObserveQuery(status)
		c.JSON(http.StatusOK, resp)
	}
}

// ListTechniques returns the registered technique names.
func ListTechniques(dispatcher *dispatch.Dispatcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"techniques": dispatcher.Available()})
	}
}
