// Copyright (C) 2026 RAG Eval Project Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hwk-1212/rag-eval-project/services/orchestrator/datatypes"
	"github.com/hwk-1212/rag-eval-project/services/orchestrator/eval"
	"github.com/hwk-1212/rag-eval-project/services/orchestrator/store"
)

// HandleEvaluateBatch scores a batch of persisted QA records with the
// evaluators the request enables. Per-record failures come back as rows
// with an error kind; the endpoint itself fails only on a bad request.
func HandleEvaluateBatch(dispatcher *eval.Dispatcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "HandleEvaluateBatch")
		defer span.End()

		var request datatypes.EvaluateRequest
		if err := c.BindJSON(&request); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		span.SetAttributes(
			attribute.Int("record_count", len(request.QARecordIDs)),
			attribute.Bool("use_llm", request.UseLLM),
			attribute.Bool("use_reference", request.UseReference),
		)

		resp, err := dispatcher.EvaluateBatch(ctx, &request)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// ListEvaluations returns the stored evaluations of one QA record.
func ListEvaluations(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		recordID := c.Param("recordId")
		evaluations, err := st.ListEvaluations(c.Request.Context(), recordID)
		if err != nil {
			slog.Error("Failed to list evaluations", "record_id", recordID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list evaluations"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"evaluations": evaluations, "count": len(evaluations)})
	}
}

// compareRequest names two persisted QA records to compare head to head.
type compareRequest struct {
	QARecordID1 string `json:"qa_record_id_1" binding:"required"`
	QARecordID2 string `json:"qa_record_id_2" binding:"required"`
}

// HandleCompare asks the judge which of two stored answers better serves
// the query of the first record.
func HandleCompare(judge *eval.LLMJudge, st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "HandleCompare")
		defer span.End()

		var request compareRequest
		if err := c.BindJSON(&request); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		record1, err := loadComparableRecord(ctx, st, request.QARecordID1)
		if err != nil {
			respondRecordError(c, span, request.QARecordID1, err)
			return
		}
		record2, err := loadComparableRecord(ctx, st, request.QARecordID2)
		if err != nil {
			respondRecordError(c, span, request.QARecordID2, err)
			return
		}

		comparison, err := judge.CompareAnswers(ctx,
			record1.Query,
			record1.Result.Answer, record2.Result.Answer,
			record1.Result.TechniqueName, record2.Result.TechniqueName,
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Comparison failed", "error", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "judge unavailable"})
			return
		}
		c.JSON(http.StatusOK, comparison)
	}
}

var errRecordNotComparable = errors.New("record has no successful answer")

func loadComparableRecord(ctx context.Context, st store.Store, id string) (*datatypes.QARecord, error) {
	record, err := st.GetQARecord(ctx, id)
	if err != nil {
		return nil, err
	}
	if !record.Result.Succeeded() {
		return nil, errRecordNotComparable
	}
	return record, nil
}

func respondRecordError(c *gin.Context, span trace.Span, id string, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "qa record not found", "qa_record_id": id})
	case errors.Is(err, errRecordNotComparable):
		c.JSON(http.StatusBadRequest, gin.H{"error": errRecordNotComparable.Error(), "qa_record_id": id})
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load qa record", "qa_record_id": id})
	}
}
