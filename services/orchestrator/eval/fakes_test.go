// Copyright (C) 2026 RAG Eval Project Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package eval

import (
	"context"
	"sync"

	"github.com/hwk-1212/rag-eval-project/services/llm"
)

type llmCall struct {
	system string
	user   string
}

// fakeLLM scripts completions through fn and records every call.
type fakeLLM struct {
	mu    sync.Mutex
	fn    func(system, user string) (string, error)
	calls []llmCall
}

func (f *fakeLLM) Complete(ctx context.Context, system, user string, params llm.GenerationParams) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.mu.Lock()
	f.calls = append(f.calls, llmCall{system: system, user: user})
	f.mu.Unlock()
	return f.fn(system, user)
}

func (f *fakeLLM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakeEmbedder returns scripted vectors by text, falling back to defaultVec.
type fakeEmbedder struct {
	vectors    map[string][]float32
	defaultVec []float32
	failErr    error
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.failErr != nil {
		return nil, f.failErr
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if v, ok := f.vectors[text]; ok {
			out[i] = v
			continue
		}
		out[i] = f.defaultVec
	}
	return out, nil
}
