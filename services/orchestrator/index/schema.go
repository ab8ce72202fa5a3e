// Copyright (C) 2026 RAG Eval Project Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package index

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"
)

// ChunkClassName is the Weaviate class holding embedded document chunks.
const ChunkClassName = "RagChunk"

// GetChunkSchema returns the RagChunk class definition. Vectorizer is
// "none": embeddings are computed by the embedding client and supplied on
// write, never by a Weaviate module.
func GetChunkSchema() *models.Class {
	indexFilterable := new(bool)
	*indexFilterable = true

	indexSearchable := new(bool)
	*indexSearchable = true

	return &models.Class{
		Class:       ChunkClassName,
		Description: "Embedded document chunks for retrieval",
		Vectorizer:  "none",
		Properties: []*models.Property{
			{
				Name:            "chunkId",
				DataType:        []string{"text"},
				Description:     "Stable chunk identifier",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "documentId",
				DataType:        []string{"text"},
				Description:     "Owning document identifier",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:        "ordinal",
				DataType:    []string{"int"},
				Description: "Position of the chunk within its document",
			},
			{
				Name:            "text",
				DataType:        []string{"text"},
				Description:     "Chunk text",
				IndexSearchable: indexSearchable,
				Tokenization:    "word",
			},
			{
				Name:        "metadataJson",
				DataType:    []string{"text"},
				Description: "JSON-encoded chunk metadata",
				Tokenization: "field",
			},
		},
	}
}

// EnsureChunkSchema creates the RagChunk class if missing. Idempotent.
func EnsureChunkSchema(ctx context.Context, client *weaviate.Client) error {
	_, err := client.Schema().ClassGetter().WithClassName(ChunkClassName).Do(ctx)
	if err == nil {
		slog.Debug("RagChunk schema already exists")
		return nil
	}

	slog.Info("Creating RagChunk schema")
	if err := client.Schema().ClassCreator().WithClass(GetChunkSchema()).Do(ctx); err != nil {
		return fmt.Errorf("creating RagChunk schema: %w", err)
	}
	return nil
}
