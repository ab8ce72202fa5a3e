// Copyright (C) 2026 RAG Eval Project Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package techniques

import (
	"context"
	"sort"
	"time"

	"github.com/hwk-1212/rag-eval-project/services/orchestrator/datatypes"
	"github.com/hwk-1212/rag-eval-project/services/orchestrator/lexical"
)

// Fusion merges vector similarity with BM25 lexical scores over the same
// candidate set. The lexical index is built per request over the vector
// candidates and thrown away afterwards.
type Fusion struct {
	tk *Toolkit
}

// NewFusion builds the fusion technique.
func NewFusion(tk *Toolkit) *Fusion {
	return &Fusion{tk: tk}
}

// Name implements Technique.
func (t *Fusion) Name() string { return NameFusion }

// Answer implements Technique.
func (t *Fusion) Answer(ctx context.Context, query string, topK int) (res *datatypes.TechniqueResult) {
	start := time.Now()
	res = newResult(NameFusion)
	tk := t.tk
	defer func() { sealResult(res, tk.Recorder, start, recover()) }()

	wVec := tk.Options.VectorWeight
	wLex := tk.Options.LexicalWeight
	tk.logInit(query, topK, map[string]any{
		"vector_weight":  wVec,
		"lexical_weight": wLex,
	})

	widerK := topK
	if widerK < 10 {
		widerK = 10
	}

	tk.Recorder.Log("retrieve_prepare", "retrieving fusion candidates", map[string]any{"wider_k": widerK})
	retStart := time.Now()
	candidates, err := tk.SearchText(ctx, query, widerK)
	if err != nil {
		tk.fail(res, "retrieve", err, datatypes.ErrKindRetrievalFailed)
		return res
	}
	res.RetrievalTime = time.Since(retStart).Seconds()

	// Both rankings cover the same candidate set, so normalization is
	// positional: index i in every slice is candidates[i].
	texts := make([]string, len(candidates))
	vectorScores := make([]float64, len(candidates))
	for i, c := range candidates {
		texts[i] = c.Text
		vectorScores[i] = c.Score
	}
	lexicalScores := lexical.New(texts).Scores(query)

	normVec := lexical.MinMaxNormalize(vectorScores)
	normLex := lexical.MinMaxNormalize(lexicalScores)

	overlap := 0
	for i := range candidates {
		if normVec[i] > 0 && normLex[i] > 0 {
			overlap++
		}
		fused := wVec*normVec[i] + wLex*normLex[i]
		candidates[i].SubScores = map[string]float64{
			"vector":  datatypes.Round4(normVec[i]),
			"lexical": datatypes.Round4(normLex[i]),
		}
		candidates[i].Score = datatypes.Round4(fused)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}

	tk.Recorder.Log("fusion_merge", "score distributions fused", map[string]any{
		"candidate_count": len(texts),
		"overlap":         overlap,
		"kept":            len(candidates),
	})

	res.RetrievedChunks = stripChunkVectors(candidates)
	tk.logRetrieveComplete(res.RetrievedChunks)

	if err := tk.Generate(ctx, res, query, res.RetrievedChunks); err != nil {
		tk.fail(res, "generate", err, datatypes.ErrKindLLMFailed)
		return res
	}
	return res
}
