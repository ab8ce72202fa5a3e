// Copyright (C) 2026 RAG Eval Project Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"
)

// Weaviate class names for the persistence layer.
const (
	SessionClassName    = "RagSession"
	QARecordClassName   = "RagQARecord"
	EvaluationClassName = "RagEvaluation"
)

func boolPtr(v bool) *bool { return &v }

// storageClasses returns the non-vectorized persistence classes. These
// classes hold structured rows only; similarity search happens on RagChunk,
// never here.
func storageClasses() []*models.Class {
	filterable := boolPtr(true)
	return []*models.Class{
		{
			Class:       SessionClassName,
			Description: "Comparison session grouping QA records",
			Vectorizer:  "none",
			Properties: []*models.Property{
				{Name: "sessionId", DataType: []string{"text"}, IndexFilterable: filterable, Tokenization: "field"},
				{Name: "title", DataType: []string{"text"}},
				{Name: "createTime", DataType: []string{"date"}},
				{Name: "updateTime", DataType: []string{"date"}},
			},
		},
		{
			Class:       QARecordClassName,
			Description: "One technique result for one query",
			Vectorizer:  "none",
			Properties: []*models.Property{
				{Name: "recordId", DataType: []string{"text"}, IndexFilterable: filterable, Tokenization: "field"},
				{Name: "sessionId", DataType: []string{"text"}, IndexFilterable: filterable, Tokenization: "field"},
				{Name: "techniqueName", DataType: []string{"text"}, IndexFilterable: filterable, Tokenization: "field"},
				{Name: "query", DataType: []string{"text"}},
				{Name: "answer", DataType: []string{"text"}},
				{Name: "retrievedChunksJson", DataType: []string{"text"}},
				{Name: "traceJson", DataType: []string{"text"}},
				{Name: "retrievalTime", DataType: []string{"number"}},
				{Name: "generationTime", DataType: []string{"number"}},
				{Name: "totalTime", DataType: []string{"number"}},
				{Name: "errorKind", DataType: []string{"text"}, IndexFilterable: filterable, Tokenization: "field"},
				{Name: "errorMessage", DataType: []string{"text"}},
				{Name: "createTime", DataType: []string{"date"}},
			},
		},
		{
			Class:       EvaluationClassName,
			Description: "Evaluation scores for a QA record",
			Vectorizer:  "none",
			Properties: []*models.Property{
				{Name: "evaluationId", DataType: []string{"text"}, IndexFilterable: filterable, Tokenization: "field"},
				{Name: "recordId", DataType: []string{"text"}, IndexFilterable: filterable, Tokenization: "field"},
				// Dimensional scores are serialized as one JSON document
				// so nullable dimensions survive the round trip.
				{Name: "scoresJson", DataType: []string{"text"}},
				{Name: "createTime", DataType: []string{"date"}},
			},
		},
	}
}

// EnsureStorageSchema creates the persistence classes that do not exist
// yet. Idempotent.
func EnsureStorageSchema(ctx context.Context, client *weaviate.Client) error {
	for _, class := range storageClasses() {
		_, err := client.Schema().ClassGetter().WithClassName(class.Class).Do(ctx)
		if err == nil {
			continue
		}
		slog.Info("Creating storage schema", "class", class.Class)
		if err := client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
			return fmt.Errorf("creating %s schema: %w", class.Class, err)
		}
	}
	return nil
}
