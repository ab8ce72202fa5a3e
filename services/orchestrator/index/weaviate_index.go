// Copyright (C) 2026 RAG Eval Project Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/hwk-1212/rag-eval-project/services/orchestrator/datatypes"
)

// chunkNamespace seeds deterministic object IDs so that upserting the same
// chunk twice replaces rather than duplicates.
var chunkNamespace = uuid.MustParse("8f0f2a1e-5a9d-4b6f-9c3e-2d7b1a4e6c58")

// WeaviateIndex implements VectorIndex on a Weaviate instance. Vectors are
// supplied by the caller; the class is configured with vectorizer "none".
type WeaviateIndex struct {
	client *weaviate.Client
}

// NewWeaviateIndex connects using WEAVIATE_HOST and WEAVIATE_SCHEME.
func NewWeaviateIndex() (*WeaviateIndex, error) {
	host := os.Getenv("WEAVIATE_HOST")
	if host == "" {
		host = "localhost:8080"
		slog.Warn("WEAVIATE_HOST not set, using default", "host", host)
	}
	scheme := os.Getenv("WEAVIATE_SCHEME")
	if scheme == "" {
		scheme = "http"
	}
	client, err := weaviate.NewClient(weaviate.Config{Host: host, Scheme: scheme})
	if err != nil {
		return nil, fmt.Errorf("creating Weaviate client: %w", err)
	}
	return &WeaviateIndex{client: client}, nil
}

// NewWeaviateIndexWithClient wraps an existing client.
func NewWeaviateIndexWithClient(client *weaviate.Client) (*WeaviateIndex, error) {
	if client == nil {
		return nil, errors.New("client must not be nil")
	}
	return &WeaviateIndex{client: client}, nil
}

// Client exposes the underlying Weaviate client for schema management.
func (w *WeaviateIndex) Client() *weaviate.Client {
	return w.client
}

// SimilaritySearch implements VectorIndex.
func (w *WeaviateIndex) SimilaritySearch(ctx context.Context, vector []float32, k int, opts SearchOptions) ([]datatypes.RetrievedChunk, error) {
	if k <= 0 {
		return []datatypes.RetrievedChunk{}, nil
	}

	additional := "_additional { certainty }"
	if opts.WithVectors {
		additional = "_additional { certainty vector }"
	}
	fields := []graphql.Field{
		{Name: "chunkId"},
		{Name: "documentId"},
		{Name: "text"},
		{Name: "metadataJson"},
		{Name: additional},
	}

	nearVector := w.client.GraphQL().NearVectorArgBuilder().WithVector(vector)

	query := w.client.GraphQL().Get().
		WithClassName(ChunkClassName).
		WithFields(fields...).
		WithNearVector(nearVector).
		WithLimit(k)

	if len(opts.DocumentIDs) > 0 {
		query = query.WithWhere(filters.Where().
			WithPath([]string{"documentId"}).
			WithOperator(filters.ContainsAny).
			WithValueText(opts.DocumentIDs...))
	}

	result, err := query.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("similarity search query error: %s", result.Errors[0].Message)
	}

	return parseChunkResults(result)
}

// Upsert implements VectorIndex using a single batch write. Object IDs are
// derived from chunk IDs, so re-ingesting a document overwrites in place.
func (w *WeaviateIndex) Upsert(ctx context.Context, chunks []datatypes.EmbeddedChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	objects := make([]*models.Object, 0, len(chunks))
	for _, c := range chunks {
		metadataJSON := "{}"
		if len(c.Metadata) > 0 {
			data, err := json.Marshal(c.Metadata)
			if err != nil {
				return fmt.Errorf("marshaling metadata for chunk %s: %w", c.ChunkID, err)
			}
			metadataJSON = string(data)
		}
		objects = append(objects, &models.Object{
			Class: ChunkClassName,
			ID:    strfmt.UUID(uuid.NewSHA1(chunkNamespace, []byte(c.ChunkID)).String()),
			Properties: map[string]interface{}{
				"chunkId":      c.ChunkID,
				"documentId":   c.DocumentID,
				"ordinal":      c.Ordinal,
				"text":         c.Text,
				"metadataJson": metadataJSON,
			},
			Vector: c.Vector,
		})
	}

	resp, err := w.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return fmt.Errorf("batch upsert: %w", err)
	}
	for _, obj := range resp {
		if obj.Result != nil && obj.Result.Errors != nil && len(obj.Result.Errors.Error) > 0 {
			return fmt.Errorf("batch upsert object %s: %s", obj.ID, obj.Result.Errors.Error[0].Message)
		}
	}

	slog.Info("Upserted chunks", "count", len(chunks))
	return nil
}

// DeleteByDocument implements VectorIndex.
func (w *WeaviateIndex) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := w.client.Batch().ObjectsBatchDeleter().
		WithClassName(ChunkClassName).
		WithWhere(filters.Where().
			WithPath([]string{"documentId"}).
			WithOperator(filters.Equal).
			WithValueString(documentID)).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("deleting chunks of document %s: %w", documentID, err)
	}
	slog.Info("Deleted document chunks", "document_id", documentID)
	return nil
}

// parseChunkResults converts a GraphQL response into RetrievedChunks,
// skipping malformed objects.
func parseChunkResults(result *models.GraphQLResponse) ([]datatypes.RetrievedChunk, error) {
	data, ok := result.Data["Get"].(map[string]interface{})
	if !ok {
		return []datatypes.RetrievedChunk{}, nil
	}
	objects, ok := data[ChunkClassName].([]interface{})
	if !ok {
		return []datatypes.RetrievedChunk{}, nil
	}

	chunks := make([]datatypes.RetrievedChunk, 0, len(objects))
	for _, obj := range objects {
		m, ok := obj.(map[string]interface{})
		if !ok {
			continue
		}
		chunk := datatypes.RetrievedChunk{
			ChunkID:    getString(m, "chunkId"),
			DocumentID: getString(m, "documentId"),
			Text:       getString(m, "text"),
		}
		if metaJSON := getString(m, "metadataJson"); metaJSON != "" && metaJSON != "{}" {
			meta := map[string]string{}
			if err := json.Unmarshal([]byte(metaJSON), &meta); err == nil {
				chunk.Metadata = meta
			}
		}
		if additional, ok := m["_additional"].(map[string]interface{}); ok {
			chunk.Score = getFloat64(additional, "certainty")
			if raw, ok := additional["vector"].([]interface{}); ok {
				vec := make([]float32, 0, len(raw))
				for _, v := range raw {
					if f, ok := v.(float64); ok {
						vec = append(vec, float32(f))
					}
				}
				chunk.Vector = vec
			}
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func getFloat64(m map[string]interface{}, key string) float64 {
	if v, ok := m[key]; ok {
		switch n := v.(type) {
		case float64:
			return n
		case float32:
			return float64(n)
		case int:
			return float64(n)
		}
	}
	return 0
}
