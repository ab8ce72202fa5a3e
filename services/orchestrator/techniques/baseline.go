// Copyright (C) 2026 RAG Eval Project Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package techniques

import (
	"context"
	"time"

	"github.com/hwk-1212/rag-eval-project/services/orchestrator/datatypes"
)

// Baseline is the reference pipeline: embed the query, similarity-search,
// generate from the ordered contexts. Every other technique is measured
// against it.
type Baseline struct {
	tk *Toolkit
}

// NewBaseline builds the baseline technique.
func NewBaseline(tk *Toolkit) *Baseline {
	return &Baseline{tk: tk}
}

// Name implements Technique.
func (t *Baseline) Name() string { return NameBaseline }

// Answer implements Technique.
func (t *Baseline) Answer(ctx context.Context, query string, topK int) (res *datatypes.TechniqueResult) {
	start := time.Now()
	res = newResult(NameBaseline)
	tk := t.tk
	defer func() { sealResult(res, tk.Recorder, start, recover()) }()

	tk.logInit(query, topK, nil)

	tk.Recorder.Log("retrieve_prepare", "embedding query", nil)
	retStart := time.Now()
	chunks, err := tk.SearchText(ctx, query, topK)
	if err != nil {
		tk.fail(res, "retrieve", err, datatypes.ErrKindRetrievalFailed)
		return res
	}
	res.RetrievalTime = time.Since(retStart).Seconds()
	res.RetrievedChunks = stripChunkVectors(chunks)
	tk.logRetrieveComplete(res.RetrievedChunks)

	if err := tk.Generate(ctx, res, query, res.RetrievedChunks); err != nil {
		tk.fail(res, "generate", err, datatypes.ErrKindLLMFailed)
		return res
	}
	return res
}
