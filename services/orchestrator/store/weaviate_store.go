// Copyright (C) 2026 RAG Eval Project Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/hwk-1212/rag-eval-project/services/orchestrator/datatypes"
)

// listLimit caps unbounded list queries.
const listLimit = 500

// storeNamespace seeds deterministic Weaviate object IDs from row IDs.
var storeNamespace = uuid.MustParse("4bb6a4a9-02f1-49da-9f1c-6c8e4de01a3b")

// WeaviateStore implements Store on Weaviate classes RagSession,
// RagQARecord, and RagEvaluation. Nested structures (chunks, traces,
// scores) travel as JSON text properties.
type WeaviateStore struct {
	client *weaviate.Client
}

// NewWeaviateStore wraps an existing client.
func NewWeaviateStore(client *weaviate.Client) (*WeaviateStore, error) {
	if client == nil {
		return nil, errors.New("client must not be nil")
	}
	return &WeaviateStore{client: client}, nil
}

func objectID(rowID string) strfmt.UUID {
	return strfmt.UUID(uuid.NewSHA1(storeNamespace, []byte(rowID)).String())
}

// CreateSession implements Store.
func (s *WeaviateStore) CreateSession(ctx context.Context, session *datatypes.Session) error {
	_, err := s.client.Data().Creator().
		WithClassName(SessionClassName).
		WithID(objectID(session.ID).String()).
		WithProperties(map[string]interface{}{
			"sessionId":  session.ID,
			"title":      session.Title,
			"createTime": session.CreateTime.Format(time.RFC3339),
			"updateTime": session.UpdateTime.Format(time.RFC3339),
		}).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}
	slog.Info("Created session", "session_id", session.ID)
	return nil
}

// GetSession implements Store.
func (s *WeaviateStore) GetSession(ctx context.Context, id string) (*datatypes.Session, error) {
	result, err := s.client.GraphQL().Get().
		WithClassName(SessionClassName).
		WithFields(sessionFields()...).
		WithWhere(filters.Where().
			WithPath([]string{"sessionId"}).
			WithOperator(filters.Equal).
			WithValueString(id)).
		WithLimit(1).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("session query error: %s", result.Errors[0].Message)
	}
	sessions := parseSessions(result)
	if len(sessions) == 0 {
		return nil, ErrNotFound
	}
	return &sessions[0], nil
}

// ListSessions implements Store.
func (s *WeaviateStore) ListSessions(ctx context.Context, limit, offset int) ([]datatypes.Session, error) {
	if limit <= 0 {
		limit = listLimit
	}
	result, err := s.client.GraphQL().Get().
		WithClassName(SessionClassName).
		WithFields(sessionFields()...).
		WithSort(graphql.Sort{Path: []string{"updateTime"}, Order: graphql.Desc}).
		WithLimit(limit).
		WithOffset(offset).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("session list error: %s", result.Errors[0].Message)
	}
	return parseSessions(result), nil
}

// TouchSession implements Store.
func (s *WeaviateStore) TouchSession(ctx context.Context, id string) error {
	if _, err := s.GetSession(ctx, id); err != nil {
		return err
	}
	err := s.client.Data().Updater().
		WithClassName(SessionClassName).
		WithID(objectID(id).String()).
		WithProperties(map[string]interface{}{
			"updateTime": time.Now().UTC().Format(time.RFC3339),
		}).
		WithMerge().
		Do(ctx)
	if err != nil {
		return fmt.Errorf("touching session %s: %w", id, err)
	}
	return nil
}

// DeleteSession implements Store. The session's QA records and their
// evaluations go with it.
func (s *WeaviateStore) DeleteSession(ctx context.Context, id string) error {
	records, err := s.ListQARecords(ctx, id)
	if err != nil {
		return fmt.Errorf("listing records of session %s: %w", id, err)
	}

	if len(records) > 0 {
		recordIDs := make([]string, len(records))
		for i, r := range records {
			recordIDs[i] = r.ID
		}
		_, err = s.client.Batch().ObjectsBatchDeleter().
			WithClassName(EvaluationClassName).
			WithWhere(filters.Where().
				WithPath([]string{"recordId"}).
				WithOperator(filters.ContainsAny).
				WithValueString(recordIDs...)).
			Do(ctx)
		if err != nil {
			return fmt.Errorf("deleting evaluations of session %s: %w", id, err)
		}
	}

	_, err = s.client.Batch().ObjectsBatchDeleter().
		WithClassName(QARecordClassName).
		WithWhere(filters.Where().
			WithPath([]string{"sessionId"}).
			WithOperator(filters.Equal).
			WithValueString(id)).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("deleting records of session %s: %w", id, err)
	}

	if _, err := s.GetSession(ctx, id); err != nil {
		return err
	}
	if err := s.client.Data().Deleter().
		WithClassName(SessionClassName).
		WithID(objectID(id).String()).
		Do(ctx); err != nil {
		return fmt.Errorf("deleting session %s: %w", id, err)
	}
	slog.Info("Deleted session", "session_id", id, "record_count", len(records))
	return nil
}

// SaveQARecords implements Store. All records of one fan-out go through a
// single batch call so a mid-batch connection failure cannot persist half
// the comparison.
func (s *WeaviateStore) SaveQARecords(ctx context.Context, records []datatypes.QARecord) error {
	if len(records) == 0 {
		return nil
	}
	objects := make([]*models.Object, 0, len(records))
	for _, r := range records {
		chunksJSON, err := json.Marshal(r.Result.RetrievedChunks)
		if err != nil {
			return fmt.Errorf("marshaling chunks of record %s: %w", r.ID, err)
		}
		traceJSON, err := json.Marshal(r.Result.Trace)
		if err != nil {
			return fmt.Errorf("marshaling trace of record %s: %w", r.ID, err)
		}
		objects = append(objects, &models.Object{
			Class: QARecordClassName,
			ID:    objectID(r.ID),
			Properties: map[string]interface{}{
				"recordId":            r.ID,
				"sessionId":           r.SessionID,
				"techniqueName":       r.Result.TechniqueName,
				"query":               r.Query,
				"answer":              r.Result.Answer,
				"retrievedChunksJson": string(chunksJSON),
				"traceJson":           string(traceJSON),
				"retrievalTime":       r.Result.RetrievalTime,
				"generationTime":      r.Result.GenerationTime,
				"totalTime":           r.Result.TotalTime,
				"errorKind":           r.Result.ErrorKind,
				"errorMessage":        r.Result.ErrorMessage,
				"createTime":          r.CreateTime.Format(time.RFC3339),
			},
		})
	}

	resp, err := s.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return fmt.Errorf("saving QA records: %w", err)
	}
	for _, obj := range resp {
		if obj.Result != nil && obj.Result.Errors != nil && len(obj.Result.Errors.Error) > 0 {
			return fmt.Errorf("saving QA record %s: %s", obj.ID, obj.Result.Errors.Error[0].Message)
		}
	}
	slog.Info("Saved QA records", "count", len(records))
	return nil
}

// GetQARecord implements Store.
func (s *WeaviateStore) GetQARecord(ctx context.Context, id string) (*datatypes.QARecord, error) {
	result, err := s.client.GraphQL().Get().
		WithClassName(QARecordClassName).
		WithFields(qaRecordFields()...).
		WithWhere(filters.Where().
			WithPath([]string{"recordId"}).
			WithOperator(filters.Equal).
			WithValueString(id)).
		WithLimit(1).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("querying QA record: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("QA record query error: %s", result.Errors[0].Message)
	}
	records := parseQARecords(result)
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return &records[0], nil
}

// ListQARecords implements Store.
func (s *WeaviateStore) ListQARecords(ctx context.Context, sessionID string) ([]datatypes.QARecord, error) {
	result, err := s.client.GraphQL().Get().
		WithClassName(QARecordClassName).
		WithFields(qaRecordFields()...).
		WithWhere(filters.Where().
			WithPath([]string{"sessionId"}).
			WithOperator(filters.Equal).
			WithValueString(sessionID)).
		WithSort(graphql.Sort{Path: []string{"createTime"}, Order: graphql.Asc}).
		WithLimit(listLimit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing QA records: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("QA record list error: %s", result.Errors[0].Message)
	}
	return parseQARecords(result), nil
}

// SaveEvaluation implements Store.
func (s *WeaviateStore) SaveEvaluation(ctx context.Context, eval *datatypes.EvaluationScore) error {
	scoresJSON, err := json.Marshal(eval)
	if err != nil {
		return fmt.Errorf("marshaling evaluation %s: %w", eval.ID, err)
	}
	_, err = s.client.Data().Creator().
		WithClassName(EvaluationClassName).
		WithID(objectID(eval.ID).String()).
		WithProperties(map[string]interface{}{
			"evaluationId": eval.ID,
			"recordId":     eval.QARecordID,
			"scoresJson":   string(scoresJSON),
			"createTime":   eval.CreateTime.Format(time.RFC3339),
		}).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("saving evaluation: %w", err)
	}
	return nil
}

// ListEvaluations implements Store.
func (s *WeaviateStore) ListEvaluations(ctx context.Context, qaRecordID string) ([]datatypes.EvaluationScore, error) {
	result, err := s.client.GraphQL().Get().
		WithClassName(EvaluationClassName).
		WithFields(graphql.Field{Name: "scoresJson"}).
		WithWhere(filters.Where().
			WithPath([]string{"recordId"}).
			WithOperator(filters.Equal).
			WithValueString(qaRecordID)).
		WithLimit(listLimit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing evaluations: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("evaluation list error: %s", result.Errors[0].Message)
	}

	var out []datatypes.EvaluationScore
	for _, m := range rawObjects(result, EvaluationClassName) {
		var eval datatypes.EvaluationScore
		if err := json.Unmarshal([]byte(getString(m, "scoresJson")), &eval); err != nil {
			slog.Warn("Skipping malformed evaluation row", "qa_record_id", qaRecordID, "error", err)
			continue
		}
		out = append(out, eval)
	}
	return out, nil
}

// =============================================================================
// Result parsing
// =============================================================================

func sessionFields() []graphql.Field {
	return []graphql.Field{
		{Name: "sessionId"},
		{Name: "title"},
		{Name: "createTime"},
		{Name: "updateTime"},
	}
}

func qaRecordFields() []graphql.Field {
	return []graphql.Field{
		{Name: "recordId"},
		{Name: "sessionId"},
		{Name: "techniqueName"},
		{Name: "query"},
		{Name: "answer"},
		{Name: "retrievedChunksJson"},
		{Name: "traceJson"},
		{Name: "retrievalTime"},
		{Name: "generationTime"},
		{Name: "totalTime"},
		{Name: "errorKind"},
		{Name: "errorMessage"},
		{Name: "createTime"},
	}
}

func rawObjects(result *models.GraphQLResponse, className string) []map[string]interface{} {
	data, ok := result.Data["Get"].(map[string]interface{})
	if !ok {
		return nil
	}
	objects, ok := data[className].([]interface{})
	if !ok {
		return nil
	}
	out := make([]map[string]interface{}, 0, len(objects))
	for _, obj := range objects {
		if m, ok := obj.(map[string]interface{}); ok {
			out = append(out, m)
		}
	}
	return out
}

func parseSessions(result *models.GraphQLResponse) []datatypes.Session {
	var out []datatypes.Session
	for _, m := range rawObjects(result, SessionClassName) {
		out = append(out, datatypes.Session{
			ID:         getString(m, "sessionId"),
			Title:      getString(m, "title"),
			CreateTime: getTime(m, "createTime"),
			UpdateTime: getTime(m, "updateTime"),
		})
	}
	return out
}

func parseQARecords(result *models.GraphQLResponse) []datatypes.QARecord {
	var out []datatypes.QARecord
	for _, m := range rawObjects(result, QARecordClassName) {
		record := datatypes.QARecord{
			ID:         getString(m, "recordId"),
			SessionID:  getString(m, "sessionId"),
			Query:      getString(m, "query"),
			CreateTime: getTime(m, "createTime"),
			Result: datatypes.TechniqueResult{
				TechniqueName:  getString(m, "techniqueName"),
				Answer:         getString(m, "answer"),
				RetrievalTime:  getFloat64(m, "retrievalTime"),
				GenerationTime: getFloat64(m, "generationTime"),
				TotalTime:      getFloat64(m, "totalTime"),
				ErrorKind:      getString(m, "errorKind"),
				ErrorMessage:   getString(m, "errorMessage"),
			},
		}
		if raw := getString(m, "retrievedChunksJson"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &record.Result.RetrievedChunks); err != nil {
				slog.Warn("Malformed chunks JSON", "record_id", record.ID, "error", err)
			}
		}
		if raw := getString(m, "traceJson"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &record.Result.Trace); err != nil {
				slog.Warn("Malformed trace JSON", "record_id", record.ID, "error", err)
			}
		}
		out = append(out, record)
	}
	return out
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

func getTime(m map[string]interface{}, key string) time.Time {
	if s := getString(m, key); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
