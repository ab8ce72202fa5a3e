// Copyright (C) 2026 RAG Eval Project Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hwk-1212/rag-eval-project/services/orchestrator/datatypes"
)

// MemoryStore is an in-process Store for tests and single-node local runs.
type MemoryStore struct {
	mu          sync.RWMutex
	sessions    map[string]datatypes.Session
	qaRecords   map[string]datatypes.QARecord
	evaluations map[string][]datatypes.EvaluationScore
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:    make(map[string]datatypes.Session),
		qaRecords:   make(map[string]datatypes.QARecord),
		evaluations: make(map[string][]datatypes.EvaluationScore),
	}
}

// CreateSession implements Store.
func (s *MemoryStore) CreateSession(_ context.Context, session *datatypes.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = *session
	return nil
}

// GetSession implements Store.
func (s *MemoryStore) GetSession(_ context.Context, id string) (*datatypes.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &session, nil
}

// ListSessions implements Store.
func (s *MemoryStore) ListSessions(_ context.Context, limit, offset int) ([]datatypes.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make([]datatypes.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		all = append(all, session)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].UpdateTime.After(all[j].UpdateTime) })

	if offset >= len(all) {
		return []datatypes.Session{}, nil
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// TouchSession implements Store.
func (s *MemoryStore) TouchSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	session.UpdateTime = time.Now().UTC()
	s.sessions[id] = session
	return nil
}

// DeleteSession implements Store.
func (s *MemoryStore) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(s.sessions, id)
	for recordID, r := range s.qaRecords {
		if r.SessionID == id {
			delete(s.qaRecords, recordID)
			delete(s.evaluations, recordID)
		}
	}
	return nil
}

// SaveQARecords implements Store. The batch is applied atomically under
// one lock acquisition.
func (s *MemoryStore) SaveQARecords(_ context.Context, records []datatypes.QARecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		s.qaRecords[r.ID] = r
	}
	return nil
}

// GetQARecord implements Store.
func (s *MemoryStore) GetQARecord(_ context.Context, id string) (*datatypes.QARecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.qaRecords[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &record, nil
}

// ListQARecords implements Store.
func (s *MemoryStore) ListQARecords(_ context.Context, sessionID string) ([]datatypes.QARecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []datatypes.QARecord
	for _, r := range s.qaRecords {
		if r.SessionID == sessionID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreateTime.Before(out[j].CreateTime) })
	return out, nil
}

// SaveEvaluation implements Store.
func (s *MemoryStore) SaveEvaluation(_ context.Context, eval *datatypes.EvaluationScore) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evaluations[eval.QARecordID] = append(s.evaluations[eval.QARecordID], *eval)
	return nil
}

// ListEvaluations implements Store.
func (s *MemoryStore) ListEvaluations(_ context.Context, qaRecordID string) ([]datatypes.EvaluationScore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	evals := s.evaluations[qaRecordID]
	out := make([]datatypes.EvaluationScore, len(evals))
	copy(out, evals)
	return out, nil
}
