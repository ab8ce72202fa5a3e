// Copyright (C) 2026 RAG Eval Project Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package lexical provides a request-scoped BM25 index used by the fusion
// technique. Indexes are built over a handful of candidate chunks per query
// and discarded immediately, so there is no on-disk state and no locking:
// build once, score many, throw away.
package lexical

import (
	"math"
	"strings"
	"unicode"
)

// Okapi BM25 parameters.
const (
	k1 = 1.5
	b  = 0.75
)

// BM25 is an in-memory Okapi BM25 index over a fixed document set.
//
// # Thread Safety
//
// Immutable after New; safe for concurrent Scores calls.
type BM25 struct {
	docTokens [][]string
	docLens   []int
	avgDocLen float64
	// idf is precomputed per term over the corpus.
	idf map[string]float64
}

// New builds an index over the given documents. Order is preserved: scores
// returned by Scores are positional.
func New(docs []string) *BM25 {
	idx := &BM25{
		docTokens: make([][]string, len(docs)),
		docLens:   make([]int, len(docs)),
		idf:       make(map[string]float64),
	}

	docFreq := make(map[string]int)
	totalLen := 0
	for i, doc := range docs {
		tokens := Tokenize(doc)
		idx.docTokens[i] = tokens
		idx.docLens[i] = len(tokens)
		totalLen += len(tokens)

		seen := make(map[string]struct{}, len(tokens))
		for _, t := range tokens {
			if _, ok := seen[t]; !ok {
				seen[t] = struct{}{}
				docFreq[t]++
			}
		}
	}
	if len(docs) > 0 {
		idx.avgDocLen = float64(totalLen) / float64(len(docs))
	}

	n := float64(len(docs))
	for term, df := range docFreq {
		// Okapi IDF with +1 smoothing keeps common terms non-negative.
		idx.idf[term] = math.Log(1 + (n-float64(df)+0.5)/(float64(df)+0.5))
	}
	return idx
}

// Scores returns one BM25 score per indexed document for the query.
func (idx *BM25) Scores(query string) []float64 {
	queryTokens := Tokenize(query)
	scores := make([]float64, len(idx.docTokens))
	if len(queryTokens) == 0 || idx.avgDocLen == 0 {
		return scores
	}

	for i, tokens := range idx.docTokens {
		tf := make(map[string]int, len(tokens))
		for _, t := range tokens {
			tf[t]++
		}
		lenNorm := 1 - b + b*float64(idx.docLens[i])/idx.avgDocLen
		var score float64
		for _, q := range queryTokens {
			f := float64(tf[q])
			if f == 0 {
				continue
			}
			score += idx.idf[q] * f * (k1 + 1) / (f + k1*lenNorm)
		}
		scores[i] = score
	}
	return scores
}

// Tokenize lowercases and splits text into unicode-aware tokens: runs of
// letters or digits form one token, while CJK ideographs become one token
// per rune since they carry word-level meaning without delimiters.
func Tokenize(text string) []string {
	var tokens []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}

	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.Is(unicode.Han, r):
			flush()
			tokens = append(tokens, string(r))
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			current.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return tokens
}

// MinMaxNormalize rescales scores to [0, 1]. A constant distribution maps
// every entry with a positive score to 1 and the rest to 0, so a single
// candidate still counts as a full match.
func MinMaxNormalize(scores []float64) []float64 {
	out := make([]float64, len(scores))
	if len(scores) == 0 {
		return out
	}
	min, max := scores[0], scores[0]
	for _, s := range scores[1:] {
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
	}
	if max == min {
		for i, s := range scores {
			if s > 0 {
				out[i] = 1
			}
		}
		return out
	}
	for i, s := range scores {
		out[i] = (s - min) / (max - min)
	}
	return out
}
