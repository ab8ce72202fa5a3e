// Copyright (C) 2026 RAG Eval Project Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/hwk-1212/rag-eval-project/services/orchestrator/ingest"
	"github.com/hwk-1212/rag-eval-project/services/orchestrator/observability"
)

// createDocumentRequest carries one document's text for ingestion.
// DocumentID is optional; a missing ID gets a generated UUID.
type createDocumentRequest struct {
	DocumentID string            `json:"document_id"`
	Text       string            `json:"text" binding:"required"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// CreateDocument chunks, embeds, and indexes one document. Re-posting the
// same document ID overwrites its chunks instead of duplicating them.
func CreateDocument(ingestor *ingest.Ingestor) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "CreateDocument")
		defer span.End()

		var request createDocumentRequest
		if err := c.BindJSON(&request); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if request.DocumentID == "" {
			request.DocumentID = uuid.NewString()
		}
		span.SetAttributes(
			attribute.String("document_id", request.DocumentID),
			attribute.Int("text_bytes", len(request.Text)),
		)

		count, err := ingestor.IngestText(ctx, request.DocumentID, request.Text, request.Metadata)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Failed to ingest document", "document_id", request.DocumentID, "error", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}

		observability.DefaultMetrics.ObserveIngestedChunks(count)
		slog.Info("Ingested document", "document_id", request.DocumentID, "chunk_count", count)
		c.JSON(http.StatusCreated, gin.H{
			"document_id": request.DocumentID,
			"chunk_count": count,
		})
	}
}

// DeleteDocument removes every indexed chunk of a document.
func DeleteDocument(ingestor *ingest.Ingestor) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "DeleteDocument")
		defer span.End()

		documentID := c.Param("documentId")
		if err := ingestor.DeleteDocument(ctx, documentID); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Failed to delete document", "document_id", documentID, "error", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": documentID})
	}
}
