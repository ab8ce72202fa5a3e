// Copyright (C) 2026 RAG Eval Project Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes holds the shared data model of the orchestrator: chunks,
// retrieval results, execution traces, technique results, QA records,
// evaluations, and the per-query configuration surface.
//
// Everything here is plain data. Types marshal to JSON as persisted, so
// adding a field is a schema change — keep structures flat and append-only.
package datatypes

import (
	"fmt"
	"time"
)

// =============================================================================
// Chunks
// =============================================================================

// Chunk is one semantic unit of a document. Chunks are immutable after
// ingest; (DocumentID, Ordinal) is unique within the corpus.
type Chunk struct {
	ChunkID    string            `json:"chunk_id"`
	DocumentID string            `json:"document_id"`
	Ordinal    int               `json:"ordinal"`
	Text       string            `json:"text"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// EmbeddedChunk is a Chunk plus its embedding vector. The vector dimension
// is constant across the index; the ingest path asserts this.
type EmbeddedChunk struct {
	Chunk
	Vector []float32 `json:"vector"`
}

// RetrievedChunk references a chunk produced by a retrieval step. The
// meaning of Score depends on the retriever that produced it (certainty,
// fused score, rerank score); producers record originals in SubScores.
// Request-scoped: persisted only as part of a TechniqueResult.
type RetrievedChunk struct {
	ChunkID    string             `json:"chunk_id"`
	DocumentID string             `json:"document_id,omitempty"`
	Text       string             `json:"text"`
	Metadata   map[string]string  `json:"metadata,omitempty"`
	Score      float64            `json:"score"`
	SubScores  map[string]float64 `json:"sub_scores,omitempty"`

	// Vector is populated only when the search requested vectors (used by
	// diversity selection). Never persisted.
	Vector []float32 `json:"-"`
}

// =============================================================================
// Traces
// =============================================================================

// TraceEvent is one structured step in a technique's execution. Sequence
// numbers are strictly increasing from 0 within one run.
type TraceEvent struct {
	Sequence  int            `json:"sequence"`
	StepName  string         `json:"step_name"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// =============================================================================
// Technique results
// =============================================================================

// Error kinds surfaced on TechniqueResult or evaluation rows. These cross
// the dispatcher boundary as data, never as Go errors.
const (
	ErrKindUnknownTechnique  = "unknown_technique"
	ErrKindRetrievalFailed   = "retrieval_failed"
	ErrKindLLMFailed         = "llm_failed"
	ErrKindTimeout           = "timeout"
	ErrKindCanceled          = "canceled"
	ErrKindEvaluatorFailed   = "evaluator_failed"
	ErrKindPersistenceFailed = "persistence_failed"
	ErrKindInternal          = "internal_error"
)

// TechniqueResult is the outcome of one technique on one query.
//
// Invariant: ErrorKind empty implies Answer non-empty. The retrieved chunks
// are the final evidence the answer is grounded on, not intermediate
// candidates. Durations are seconds of wall clock.
type TechniqueResult struct {
	TechniqueName   string           `json:"technique_name"`
	Answer          string           `json:"answer"`
	RetrievedChunks []RetrievedChunk `json:"retrieved_chunks"`
	Trace           []TraceEvent     `json:"trace"`
	RetrievalTime   float64          `json:"retrieval_time"`
	GenerationTime  float64          `json:"generation_time"`
	TotalTime       float64          `json:"total_time"`
	ErrorKind       string           `json:"error_kind,omitempty"`
	ErrorMessage    string           `json:"error_message,omitempty"`
}

// Succeeded reports whether the run produced a usable answer.
func (r *TechniqueResult) Succeeded() bool {
	return r.ErrorKind == ""
}

// ContextTexts returns the retrieved chunk texts in final context order.
func (r *TechniqueResult) ContextTexts() []string {
	texts := make([]string, len(r.RetrievedChunks))
	for i, c := range r.RetrievedChunks {
		texts[i] = c.Text
	}
	return texts
}

// =============================================================================
// Sessions and QA records
// =============================================================================

// Session groups QA records into a conversation thread.
type Session struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	CreateTime time.Time `json:"create_time"`
	UpdateTime time.Time `json:"update_time"`
}

// QARecord is a persisted TechniqueResult bound to a session and query.
type QARecord struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	Query      string    `json:"query"`
	CreateTime time.Time `json:"create_time"`

	Result TechniqueResult `json:"result"`
}

// =============================================================================
// Fan-out request/response
// =============================================================================

// QueryRequest is the orchestrator's unit of work: one query fanned out over
// a list of techniques against a shared document set.
type QueryRequest struct {
	SessionID   string         `json:"session_id,omitempty"`
	Query       string         `json:"query" binding:"required"`
	DocumentIDs []string       `json:"document_ids"`
	Techniques  []string       `json:"techniques" binding:"required"`
	RagConfig   map[string]any `json:"rag_config,omitempty"`
}

// Validate checks the request invariants the handler must reject on.
func (q *QueryRequest) Validate() error {
	if q.Query == "" {
		return fmt.Errorf("query is required")
	}
	if len(q.Techniques) == 0 {
		return fmt.Errorf("at least one technique is required")
	}
	return nil
}

// QueryResponse is the fan-out output returned to the caller.
type QueryResponse struct {
	SessionID         string            `json:"session_id"`
	Query             string            `json:"query"`
	Results           []TechniqueResult `json:"results"`
	RecordIDs         []string          `json:"record_ids,omitempty"`
	PersistenceFailed bool              `json:"persistence_failed,omitempty"`
	Timestamp         time.Time         `json:"timestamp"`
}

// =============================================================================
// Helpers
// =============================================================================

// Preview truncates s to at most max runes for logs and trace details.
func Preview(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

// TopScores returns the first n chunk scores rounded to 4 decimals, for
// retrieve_complete trace details.
func TopScores(chunks []RetrievedChunk, n int) []float64 {
	if n > len(chunks) {
		n = len(chunks)
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = Round4(chunks[i].Score)
	}
	return out
}

// Round4 rounds to 4 decimal places.
func Round4(v float64) float64 {
	const shift = 10000
	if v >= 0 {
		return float64(int64(v*shift+0.5)) / shift
	}
	return float64(int64(v*shift-0.5)) / shift
}
