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
	"sync"

	"github.com/hwk-1212/rag-eval-project/services/embedding"
	"github.com/hwk-1212/rag-eval-project/services/llm"
	"github.com/hwk-1212/rag-eval-project/services/orchestrator/datatypes"
	"github.com/hwk-1212/rag-eval-project/services/orchestrator/index"
)

// fakeIndex ranks stored chunks by cosine similarity against the query
// vector, mirroring the production index contract.
type fakeIndex struct {
	mu      sync.Mutex
	chunks  []datatypes.EmbeddedChunk
	failErr error
	calls   int
}

func (f *fakeIndex) SimilaritySearch(_ context.Context, vector []float32, k int, opts index.SearchOptions) ([]datatypes.RetrievedChunk, error) {
	f.mu.Lock()
	f.calls++
	failErr := f.failErr
	f.mu.Unlock()
	if failErr != nil {
		return nil, failErr
	}
	if k <= 0 {
		return []datatypes.RetrievedChunk{}, nil
	}

	allowed := map[string]bool{}
	for _, id := range opts.DocumentIDs {
		allowed[id] = true
	}

	var out []datatypes.RetrievedChunk
	for _, c := range f.chunks {
		if len(allowed) > 0 && !allowed[c.DocumentID] {
			continue
		}
		rc := datatypes.RetrievedChunk{
			ChunkID:    c.ChunkID,
			DocumentID: c.DocumentID,
			Text:       c.Text,
			Score:      embedding.CosineSimilarity(vector, c.Vector),
		}
		if opts.WithVectors {
			rc.Vector = c.Vector
		}
		out = append(out, rc)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (f *fakeIndex) Upsert(_ context.Context, chunks []datatypes.EmbeddedChunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chunks = append(f.chunks, chunks...)
	return nil
}

func (f *fakeIndex) DeleteByDocument(_ context.Context, documentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.chunks[:0]
	for _, c := range f.chunks {
		if c.DocumentID != documentID {
			kept = append(kept, c)
		}
	}
	f.chunks = kept
	return nil
}

// fakeEmbedder returns preset vectors by exact text, falling back to the
// default vector for anything unscripted.
type fakeEmbedder struct {
	vectors    map[string][]float32
	defaultVec []float32
	failErr    error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.failErr != nil {
		return nil, f.failErr
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := f.vectors[t]; ok {
			out[i] = v
		} else {
			out[i] = f.defaultVec
		}
	}
	return out, nil
}

type llmCall struct {
	system string
	user   string
}

// fakeLLM routes each completion through fn and records the call.
type fakeLLM struct {
	mu    sync.Mutex
	fn    func(system, user string) (string, error)
	calls []llmCall
}

func (f *fakeLLM) Complete(ctx context.Context, system, user string, _ llm.GenerationParams) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.mu.Lock()
	f.calls = append(f.calls, llmCall{system: system, user: user})
	fn := f.fn
	f.mu.Unlock()
	if fn == nil {
		return "fixed answer", nil
	}
	return fn(system, user)
}

func (f *fakeLLM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeLLM) lastCall() llmCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return llmCall{}
	}
	return f.calls[len(f.calls)-1]
}

// parisCorpus is the three-chunk corpus shared across pipeline tests. The
// query vector for "What is the capital of France?" is qvec.
var qvec = []float32{1, 0, 0}

func parisCorpus() *fakeIndex {
	return &fakeIndex{chunks: []datatypes.EmbeddedChunk{
		{Chunk: datatypes.Chunk{ChunkID: "c1", DocumentID: "d1", Text: "Paris is the capital of France."}, Vector: []float32{0.95, 0.05, 0}},
		{Chunk: datatypes.Chunk{ChunkID: "c2", DocumentID: "d1", Text: "Berlin is in Germany."}, Vector: []float32{0, 1, 0}},
		{Chunk: datatypes.Chunk{ChunkID: "c3", DocumentID: "d1", Text: "The Seine runs through Paris."}, Vector: []float32{0.8, 0.2, 0}},
	}}
}

func newTestToolkit(idx index.VectorIndex, emb embedding.Client, model llm.LLMClient) *Toolkit {
	return &Toolkit{
		Index:    idx,
		Embedder: emb,
		LLM:      model,
		Recorder: NewRecorder(),
		Options:  datatypes.ParseOptions(nil),
	}
}

func findEvent(events []datatypes.TraceEvent, step string) *datatypes.TraceEvent {
	for i := range events {
		if events[i].StepName == step {
			return &events[i]
		}
	}
	return nil
}
