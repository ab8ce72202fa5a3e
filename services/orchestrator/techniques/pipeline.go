// Copyright (C) 2026 RAG Eval Project Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package techniques

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hwk-1212/rag-eval-project/services/llm"
	"github.com/hwk-1212/rag-eval-project/services/orchestrator/datatypes"
	"github.com/hwk-1212/rag-eval-project/services/orchestrator/index"
)

// newResult initializes the result shell every technique fills in.
func newResult(name string) *datatypes.TechniqueResult {
	return &datatypes.TechniqueResult{
		TechniqueName:   name,
		RetrievedChunks: []datatypes.RetrievedChunk{},
	}
}

// sealResult is deferred by every Answer implementation: it converts panics
// into internal_error results and attaches the trace and total time.
func sealResult(res *datatypes.TechniqueResult, rec *Recorder, start time.Time, recovered any) {
	if recovered != nil {
		slog.Error("Technique panicked", "technique", res.TechniqueName, "panic", recovered)
		rec.Log("internal_error", fmt.Sprintf("panic: %v", recovered), nil)
		res.ErrorKind = datatypes.ErrKindInternal
		res.ErrorMessage = fmt.Sprintf("panic: %v", recovered)
		res.Answer = ""
	}
	res.Trace = rec.Snapshot()
	res.TotalTime = time.Since(start).Seconds()
}

// fail records a <stage>_error trace event and stamps the result with the
// classified error kind. Cancellation always wins over the stage kind.
func (tk *Toolkit) fail(res *datatypes.TechniqueResult, stage string, err error, stageKind string) {
	kind := stageKind
	if errors.Is(err, context.Canceled) {
		kind = datatypes.ErrKindCanceled
	}
	tk.Recorder.Log(stage+"_error", err.Error(), nil)
	res.ErrorKind = kind
	res.ErrorMessage = err.Error()
	res.Answer = ""
}

// EmbedOne embeds a single text.
func (tk *Toolkit) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vectors, err := tk.Embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for 1 text", len(vectors))
	}
	return vectors[0], nil
}

// Search runs a similarity search scoped to the request's documents.
func (tk *Toolkit) Search(ctx context.Context, vector []float32, k int, withVectors bool) ([]datatypes.RetrievedChunk, error) {
	return tk.Index.SimilaritySearch(ctx, vector, k, index.SearchOptions{
		DocumentIDs: tk.DocumentIDs,
		WithVectors: withVectors,
	})
}

// SearchText embeds text and searches in one step.
func (tk *Toolkit) SearchText(ctx context.Context, text string, k int) ([]datatypes.RetrievedChunk, error) {
	vector, err := tk.EmbedOne(ctx, text)
	if err != nil {
		return nil, err
	}
	return tk.Search(ctx, vector, k, false)
}

// logInit records the init event every run starts with.
func (tk *Toolkit) logInit(query string, topK int, configKeys map[string]any) {
	details := map[string]any{
		"query_preview": datatypes.Preview(query, 100),
		"top_k":         topK,
	}
	for k, v := range configKeys {
		details[k] = v
	}
	tk.Recorder.Log("init", "technique run started", details)
}

// logRetrieveComplete records the retrieve_complete event for the retrieval
// that produced the final context.
func (tk *Toolkit) logRetrieveComplete(chunks []datatypes.RetrievedChunk) {
	tk.Recorder.Log("retrieve_complete", "final context assembled", map[string]any{
		"result_count": len(chunks),
		"top_scores":   datatypes.TopScores(chunks, 3),
	})
}

// errEmptyAnswer classifies a completion that came back blank. A result
// without an error kind must carry a non-empty answer, so blank generations
// surface as llm_failed.
var errEmptyAnswer = errors.New("llm returned an empty answer")

// Generate runs the final completion against the assembled context and
// fills Answer and GenerationTime on the result. The query is always the
// caller's original question, whatever queries retrieval used.
func (tk *Toolkit) Generate(ctx context.Context, res *datatypes.TechniqueResult, query string, chunks []datatypes.RetrievedChunk) error {
	contexts := make([]string, len(chunks))
	totalLen := 0
	for i, c := range chunks {
		contexts[i] = c.Text
		totalLen += len(c.Text)
	}
	tk.Recorder.Log("generate_prepare_context", "context prepared", map[string]any{
		"doc_count":            len(chunks),
		"total_context_length": totalLen,
	})

	system := ragAnswerSystemPrompt
	user := buildAnswerPrompt(query, contexts)
	tk.Recorder.Log("generate_llm_call", "calling LLM for final answer", nil)

	genStart := time.Now()
	answer, err := tk.LLM.Complete(ctx, system, user, llm.GenerationParams{
		Temperature: llm.Float32Ptr(0.2),
		MaxTokens:   llm.IntPtr(1024),
	})
	if err != nil {
		return err
	}
	res.GenerationTime = time.Since(genStart).Seconds()
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return errEmptyAnswer
	}
	res.Answer = answer

	tk.Recorder.Log("generate_complete", "answer generated", map[string]any{
		"answer_length":  len(res.Answer),
		"answer_preview": datatypes.Preview(res.Answer, 150),
	})
	return nil
}

// stripChunkVectors drops vectors before chunks land on a result.
func stripChunkVectors(chunks []datatypes.RetrievedChunk) []datatypes.RetrievedChunk {
	for i := range chunks {
		chunks[i].Vector = nil
	}
	return chunks
}
