// Copyright (C) 2026 RAG Eval Project Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package techniques implements the retrieval-augmented generation
// strategies the orchestrator compares against each other. Every technique
// follows the same contract: embed/search/complete as needed, record a
// structured trace, and always return a TechniqueResult — failures are data,
// never propagated errors.
package techniques

import (
	"context"
	"fmt"
	"sort"

	"github.com/hwk-1212/rag-eval-project/services/embedding"
	"github.com/hwk-1212/rag-eval-project/services/llm"
	"github.com/hwk-1212/rag-eval-project/services/orchestrator/datatypes"
	"github.com/hwk-1212/rag-eval-project/services/orchestrator/index"
)

// Registered technique names.
const (
	NameBaseline       = "baseline"
	NameReranker       = "reranker"
	NameFusion         = "fusion"
	NameHyde           = "hyde"
	NameTransformation = "query_transformation"
	NameAdaptive       = "adaptive"
	NameSelfReflective = "self_reflective"
)

// Technique answers one query against the request's document set.
//
// Answer must always return a result: any internal failure is captured as
// ErrorKind on the result with the trace recorded so far. Implementations
// observe ctx between outbound calls and return ErrKindCanceled when it is
// done.
type Technique interface {
	Name() string
	Answer(ctx context.Context, query string, topK int) *datatypes.TechniqueResult
}

// Toolkit bundles the capabilities a technique runs with. One Toolkit is
// built per technique per request; nothing in it is shared mutable state
// except the index and clients, which are concurrency-safe.
type Toolkit struct {
	Index       index.VectorIndex
	Embedder    embedding.Client
	LLM         llm.LLMClient
	Recorder    *Recorder
	DocumentIDs []string
	Options     datatypes.QueryOptions
}

// UnknownTechniqueError reports a technique name not present in the
// registry. The request is rejected before any technique runs.
type UnknownTechniqueError struct {
	Name string
}

func (e *UnknownTechniqueError) Error() string {
	return fmt.Sprintf("unknown technique: %q", e.Name)
}

// IsUnknownTechnique reports whether err is an UnknownTechniqueError.
func IsUnknownTechnique(err error) bool {
	_, ok := err.(*UnknownTechniqueError)
	return ok
}

// Factory constructs a technique bound to a toolkit. Construction does no
// I/O.
type Factory func(tk *Toolkit) Technique

// Registry maps technique names to factories.
//
// # Thread Safety
//
// Register is for startup wiring only; concurrent use after that is
// read-only and safe.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns a registry with all built-in techniques registered.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register(NameBaseline, func(tk *Toolkit) Technique { return NewBaseline(tk) })
	r.Register(NameReranker, func(tk *Toolkit) Technique { return NewReranker(tk) })
	r.Register(NameFusion, func(tk *Toolkit) Technique { return NewFusion(tk) })
	r.Register(NameHyde, func(tk *Toolkit) Technique { return NewHyde(tk) })
	r.Register(NameTransformation, func(tk *Toolkit) Technique { return NewTransformation(tk) })
	r.Register(NameAdaptive, func(tk *Toolkit) Technique { return NewAdaptive(tk) })
	r.Register(NameSelfReflective, func(tk *Toolkit) Technique { return NewSelfReflective(tk) })
	return r
}

// Register adds or replaces a factory.
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// Available returns the registered technique names, sorted.
func (r *Registry) Available() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Construct builds the named technique. Unknown names return an
// UnknownTechniqueError.
func (r *Registry) Construct(name string, tk *Toolkit) (Technique, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, &UnknownTechniqueError{Name: name}
	}
	return f(tk), nil
}
