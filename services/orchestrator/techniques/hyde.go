// Copyright (C) 2026 RAG Eval Project Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package techniques

import (
	"context"
	"strings"
	"time"

	"github.com/hwk-1212/rag-eval-project/services/llm"
	"github.com/hwk-1212/rag-eval-project/services/orchestrator/datatypes"
)

// Hyde retrieves with a hypothetical answer document instead of the raw
// query: the LLM drafts a plausible answer paragraph, that paragraph is
// embedded and searched, and the final answer is generated against the
// original question.
type Hyde struct {
	tk *Toolkit
}

// NewHyde builds the hypothetical-document-embedding technique.
func NewHyde(tk *Toolkit) *Hyde {
	return &Hyde{tk: tk}
}

// Name implements Technique.
func (t *Hyde) Name() string { return NameHyde }

// Answer implements Technique.
func (t *Hyde) Answer(ctx context.Context, query string, topK int) (res *datatypes.TechniqueResult) {
	start := time.Now()
	res = newResult(NameHyde)
	tk := t.tk
	defer func() { sealResult(res, tk.Recorder, start, recover()) }()

	temperature := tk.Options.HydeTemperature
	tk.logInit(query, topK, map[string]any{"hyde_temperature": temperature})

	hypothesis, err := tk.LLM.Complete(ctx, hydeSystemPrompt, buildHydePrompt(query), llm.GenerationParams{
		Temperature: llm.Float32Ptr(float32(temperature)),
		MaxTokens:   llm.IntPtr(512),
	})
	if err != nil {
		tk.fail(res, "hyde_generate", err, datatypes.ErrKindLLMFailed)
		return res
	}
	hypothesis = strings.TrimSpace(hypothesis)
	if hypothesis == "" {
		hypothesis = query
	}
	tk.Recorder.Log("hyde_document", "hypothetical document generated", map[string]any{
		"hypothesis_preview": datatypes.Preview(hypothesis, 200),
		"hypothesis_length":  len(hypothesis),
	})

	tk.Recorder.Log("retrieve_prepare", "embedding hypothetical document", nil)
	retStart := time.Now()
	chunks, err := tk.SearchText(ctx, hypothesis, topK)
	if err != nil {
		tk.fail(res, "retrieve", err, datatypes.ErrKindRetrievalFailed)
		return res
	}
	res.RetrievalTime = time.Since(retStart).Seconds()
	res.RetrievedChunks = stripChunkVectors(chunks)
	tk.logRetrieveComplete(res.RetrievedChunks)

	// Generation uses the original question, not the hypothesis.
	if err := tk.Generate(ctx, res, query, res.RetrievedChunks); err != nil {
		tk.fail(res, "generate", err, datatypes.ErrKindLLMFailed)
		return res
	}
	return res
}
