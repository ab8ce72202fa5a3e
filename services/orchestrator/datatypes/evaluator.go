// Copyright (C) 2026 RAG Eval Project Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import "time"

// Dimension names used by the LLM judge. Order here is the reporting order.
var JudgeDimensions = []string{"relevance", "faithfulness", "coherence", "fluency", "conciseness"}

// EvaluationScore is one persisted evaluation of a QARecord. Dimensional
// scores are nil when the dimension was skipped (e.g. faithfulness with no
// retrieved context) or the evaluator never ran.
type EvaluationScore struct {
	ID         string    `json:"id"`
	QARecordID string    `json:"qa_record_id"`
	CreateTime time.Time `json:"create_time"`

	Relevance    *float64 `json:"relevance"`
	Faithfulness *float64 `json:"faithfulness"`
	Coherence    *float64 `json:"coherence"`
	Fluency      *float64 `json:"fluency"`
	Conciseness  *float64 `json:"conciseness"`
	Overall      *float64 `json:"overall"`

	Feedback string `json:"feedback,omitempty"`

	// Metadata carries secondary scores keyed by producer, e.g.
	// reference_scores.faithfulness and reference_scores.answer_relevancy.
	Metadata map[string]map[string]float64 `json:"metadata,omitempty"`

	ErrorKind    string `json:"error_kind,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// SetDimension assigns a named dimensional score.
func (e *EvaluationScore) SetDimension(name string, v float64) {
	switch name {
	case "relevance":
		e.Relevance = &v
	case "faithfulness":
		e.Faithfulness = &v
	case "coherence":
		e.Coherence = &v
	case "fluency":
		e.Fluency = &v
	case "conciseness":
		e.Conciseness = &v
	}
}

// Dimension returns the named dimensional score, nil when absent.
func (e *EvaluationScore) Dimension(name string) *float64 {
	switch name {
	case "relevance":
		return e.Relevance
	case "faithfulness":
		return e.Faithfulness
	case "coherence":
		return e.Coherence
	case "fluency":
		return e.Fluency
	case "conciseness":
		return e.Conciseness
	}
	return nil
}

// ComputeOverall sets Overall to the unweighted mean of the dimensions that
// are present. Overall stays nil when no dimension was scored.
func (e *EvaluationScore) ComputeOverall() {
	var sum float64
	var n int
	for _, name := range JudgeDimensions {
		if v := e.Dimension(name); v != nil {
			sum += *v
			n++
		}
	}
	if n == 0 {
		e.Overall = nil
		return
	}
	mean := Round4(sum / float64(n))
	e.Overall = &mean
}

// SetMetadataScore records a secondary score under a named metadata group.
func (e *EvaluationScore) SetMetadataScore(group, metric string, v float64) {
	if e.Metadata == nil {
		e.Metadata = make(map[string]map[string]float64)
	}
	scores, ok := e.Metadata[group]
	if !ok {
		scores = make(map[string]float64)
		e.Metadata[group] = scores
	}
	scores[metric] = Round4(v)
}

// SetReferenceScore records a reference-metric value under the
// reference_scores metadata group.
func (e *EvaluationScore) SetReferenceScore(metric string, v float64) {
	e.SetMetadataScore("reference_scores", metric, v)
}

// EvaluateRequest asks the evaluation dispatcher to score a batch of
// persisted QA records.
type EvaluateRequest struct {
	QARecordIDs      []string          `json:"qa_record_ids" binding:"required"`
	UseLLM           bool              `json:"use_llm"`
	UseReference     bool              `json:"use_reference"`
	ReferenceAnswers map[string]string `json:"reference_answers,omitempty"`
	EvalConfig       map[string]any    `json:"eval_config,omitempty"`
}

// EvaluateResponse carries one EvaluationScore per requested record. Order
// is not guaranteed; match on QARecordID.
type EvaluateResponse struct {
	Evaluations []EvaluationScore `json:"evaluations"`
	Timestamp   time.Time         `json:"timestamp"`
}
