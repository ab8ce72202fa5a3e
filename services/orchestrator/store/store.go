// Copyright (C) 2026 RAG Eval Project Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package store persists sessions, QA records, and evaluations. The
// production backend is Weaviate; MemoryStore backs tests and local runs.
package store

import (
	"context"
	"errors"

	"github.com/hwk-1212/rag-eval-project/services/orchestrator/datatypes"
)

// ErrNotFound is returned when a session, record, or evaluation does not
// exist.
var ErrNotFound = errors.New("not found")

// Store is the persistence surface of the orchestrator.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use: fan-out workers and the
// evaluator pool write through the same store.
type Store interface {
	// CreateSession persists a new session.
	CreateSession(ctx context.Context, session *datatypes.Session) error

	// GetSession fetches a session by ID. Returns ErrNotFound when absent.
	GetSession(ctx context.Context, id string) (*datatypes.Session, error)

	// ListSessions returns sessions newest-first.
	ListSessions(ctx context.Context, limit, offset int) ([]datatypes.Session, error)

	// TouchSession bumps a session's update time.
	TouchSession(ctx context.Context, id string) error

	// DeleteSession removes a session with its QA records and their
	// evaluations. Returns ErrNotFound when the session does not exist.
	DeleteSession(ctx context.Context, id string) error

	// SaveQARecords writes all records of one fan-out as a single batch:
	// either the whole batch is accepted or an error is returned.
	SaveQARecords(ctx context.Context, records []datatypes.QARecord) error

	// GetQARecord fetches a QA record by ID. Returns ErrNotFound when
	// absent.
	GetQARecord(ctx context.Context, id string) (*datatypes.QARecord, error)

	// ListQARecords returns all QA records of a session, oldest-first.
	ListQARecords(ctx context.Context, sessionID string) ([]datatypes.QARecord, error)

	// SaveEvaluation persists one evaluation. Per-record-atomic; no batch
	// guarantee across records.
	SaveEvaluation(ctx context.Context, eval *datatypes.EvaluationScore) error

	// ListEvaluations returns the evaluations of a QA record.
	ListEvaluations(ctx context.Context, qaRecordID string) ([]datatypes.EvaluationScore, error)
}
