// Copyright (C) 2026 RAG Eval Project Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"log/slog"
	"time"
)

// Transformation sub-modes for the query-transformation technique.
const (
	TransformRewrite   = "rewrite"
	TransformStepback  = "stepback"
	TransformDecompose = "decompose"
)

// QueryOptions is the parsed per-query configuration. Build it with
// ParseOptions; zero values are never valid defaults.
type QueryOptions struct {
	TopK                int
	MaxConcurrency      int
	PerTechniqueTimeout time.Duration

	RerankCandidates   int
	VectorWeight       float64
	LexicalWeight      float64
	TransformationType string
	NumSubqueries      int
	MinSupportScore    int
	DiversityTheta     float64
	HydeTemperature    float64
}

// ParseOptions builds QueryOptions from a raw rag_config map. Unknown keys
// are ignored. Recognized keys with out-of-range or mistyped values fall
// back to the default and log a warning; a malformed config never fails a
// request.
func ParseOptions(raw map[string]any) QueryOptions {
	opts := QueryOptions{
		TopK:                5,
		MaxConcurrency:      3,
		PerTechniqueTimeout: 120 * time.Second,
		VectorWeight:        0.5,
		LexicalWeight:       0.5,
		TransformationType:  TransformRewrite,
		NumSubqueries:       3,
		MinSupportScore:     1,
		DiversityTheta:      0.15,
		HydeTemperature:     0.7,
	}

	if v, ok := intValue(raw, "top_k"); ok && v >= 0 {
		opts.TopK = v
	}
	if v, ok := intValue(raw, "max_concurrency"); ok {
		if v < 1 {
			v = 1
		}
		if v > 10 {
			v = 10
		}
		opts.MaxConcurrency = v
	}
	if v, ok := floatValue(raw, "per_technique_timeout_s"); ok && v > 0 {
		opts.PerTechniqueTimeout = time.Duration(v * float64(time.Second))
	}
	if v, ok := intValue(raw, "rerank_candidates"); ok && v > 0 {
		opts.RerankCandidates = v
	}
	if v, ok := floatValue(raw, "vector_weight"); ok && v >= 0 {
		opts.VectorWeight = v
	}
	if v, ok := floatValue(raw, "lexical_weight"); ok && v >= 0 {
		opts.LexicalWeight = v
	}
	if v, ok := raw["transformation_type"].(string); ok {
		switch v {
		case TransformRewrite, TransformStepback, TransformDecompose:
			opts.TransformationType = v
		default:
			slog.Warn("Unrecognized transformation_type, using rewrite", "value", v)
		}
	}
	if v, ok := intValue(raw, "num_subqueries"); ok && v > 0 {
		opts.NumSubqueries = v
	}
	if v, ok := intValue(raw, "min_support_score"); ok && v >= 0 {
		opts.MinSupportScore = v
	}
	if v, ok := floatValue(raw, "diversity_theta"); ok && v > 0 {
		opts.DiversityTheta = v
	}
	if v, ok := floatValue(raw, "hyde_temperature"); ok && v >= 0 {
		opts.HydeTemperature = v
	}

	// The wider candidate set for reranking defaults relative to top_k.
	if opts.RerankCandidates == 0 {
		opts.RerankCandidates = 4 * opts.TopK
		if opts.RerankCandidates < 20 {
			opts.RerankCandidates = 20
		}
	}
	return opts
}

// intValue reads key as an int, accepting JSON's float64 decoding.
func intValue(raw map[string]any, key string) (int, bool) {
	v, ok := raw[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	}
	slog.Warn("Ignoring non-numeric config value", "key", key)
	return 0, false
}

func floatValue(raw map[string]any, key string) (float64, bool) {
	v, ok := raw[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	slog.Warn("Ignoring non-numeric config value", "key", key)
	return 0, false
}
