// Copyright (C) 2026 RAG Eval Project Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package eval

import (
	"fmt"
	"strings"
)

// Per-dimension judge rubrics. Each asks for a single 0-10 number so the
// tolerant parser can extract the score.

const relevanceJudgePrompt = `You are an expert answer-quality judge. Rate how relevant the answer is to the question.

Scoring (0-10):
- 10: perfectly answers the question
- 7-9: answers the main part of the question
- 4-6: partially answers the question
- 1-3: barely addresses the question
- 0: completely irrelevant

Return only a single number between 0 and 10.`

const faithfulnessJudgePrompt = `You are an expert answer-faithfulness judge. Rate whether the answer is grounded in the provided context.

Scoring (0-10):
- 10: entirely grounded in the context, no extra information
- 7-9: mostly grounded, minor reasonable inference
- 4-6: partially grounded, some outside knowledge
- 1-3: mostly not grounded in the context
- 0: not grounded at all or contradicts the context

Return only a single number between 0 and 10.`

const coherenceJudgePrompt = `You are an expert text-coherence judge. Rate the logical coherence and structure of the answer.

Scoring (0-10):
- 10: very clear logic, excellent structure
- 7-9: clear logic, good structure
- 4-6: mostly clear, average structure
- 1-3: confusing logic, poor structure
- 0: incoherent

Return only a single number between 0 and 10.`

const fluencyJudgePrompt = `You are an expert text-fluency judge. Rate the language fluency and readability of the answer.

Scoring (0-10):
- 10: very fluent, excellent to read
- 7-9: fluent, easy to read
- 4-6: mostly fluent, minor flaws
- 1-3: not fluent, hard to read
- 0: unreadable

Return only a single number between 0 and 10.`

const concisenessJudgePrompt = `You are an expert text-conciseness judge. Rate whether the answer is concise and free of redundancy.

Scoring (0-10):
- 10: very concise, no redundancy
- 7-9: fairly concise, little redundancy
- 4-6: mostly concise, some redundancy
- 1-3: wordy, much redundancy
- 0: extremely verbose

Return only a single number between 0 and 10.`

const correctnessJudgePrompt = `You are an expert answer-correctness judge. Compare the answer against the reference answer and rate its correctness.

Scoring (0-10):
- 10: matches the reference or improves on it
- 7-9: mostly matches the reference, minor differences
- 4-6: partially correct
- 1-3: mostly incorrect
- 0: completely wrong

Return only a single number between 0 and 10.`

const contextRelevanceJudgePrompt = `You are an expert document-relevance judge. Rate how relevant the document passage is to the query.

Scoring (0-10):
- 10: perfect match, directly answers the query
- 7-9: highly relevant, contains key information
- 4-6: moderately relevant, contains some information
- 1-3: weakly relevant, little related information
- 0: completely irrelevant

Return only a single number between 0 and 10.`

const compareJudgePrompt = `You are an expert answer-comparison judge. Compare the quality of two answers to the same question.

Scoring (1-10, for answer 1):
- 10: dramatically better than answer 2
- 7-9: clearly better than answer 2
- 5-6: slightly better than answer 2
- 4: about the same
- 1-3: worse than answer 2

Return only answer 1's score (1-10).`

// Reference-metric prompts.

const claimExtractionPrompt = `You are an information-extraction assistant. Break the given answer into short, atomic factual claims. Each claim must be a standalone statement verifiable on its own.

Return the claims as a numbered list, one claim per line. Return nothing else.`

const claimVerificationPrompt = `You decide whether a claim is supported by the given context. Answer "yes" if the context supports the claim, "no" if it does not or the context says nothing about it.

Answer with only yes or no.`

const backQuestionPrompt = `You generate questions an answer could be responding to. Given an answer, write questions that this answer would directly address.

Return the questions as a numbered list, one question per line. Return nothing else.`

const contextUsefulnessPrompt = `You decide whether a context passage is useful for arriving at the reference answer to a question. Answer "yes" if the passage contributes information the reference answer uses, "no" otherwise.

Answer with only yes or no.`

func buildDimensionPrompt(dimension, query, answer string, contexts []string) string {
	var b strings.Builder
	switch dimension {
	case "relevance":
		fmt.Fprintf(&b, "Question: %s\n\nAnswer: %s\n\nRelevance score (0-10):", query, answer)
	case "faithfulness":
		combined := strings.Join(firstN(contexts, 3), "\n\n")
		if len(combined) > 2000 {
			combined = combined[:2000] + "..."
		}
		fmt.Fprintf(&b, "Context:\n%s\n\nAnswer: %s\n\nFaithfulness score (0-10):", combined, answer)
	case "coherence":
		fmt.Fprintf(&b, "Answer: %s\n\nCoherence score (0-10):", answer)
	case "fluency":
		fmt.Fprintf(&b, "Answer: %s\n\nFluency score (0-10):", answer)
	case "conciseness":
		fmt.Fprintf(&b, "Answer: %s\n\nConciseness score (0-10):", answer)
	}
	return b.String()
}

func dimensionSystemPrompt(dimension string) string {
	switch dimension {
	case "relevance":
		return relevanceJudgePrompt
	case "faithfulness":
		return faithfulnessJudgePrompt
	case "coherence":
		return coherenceJudgePrompt
	case "fluency":
		return fluencyJudgePrompt
	case "conciseness":
		return concisenessJudgePrompt
	}
	return ""
}

func buildClaimVerificationPrompt(claim string, contexts []string) string {
	return fmt.Sprintf("Context:\n%s\n\nClaim: %s\n\nSupported (yes/no):",
		strings.Join(contexts, "\n\n"), claim)
}

func buildBackQuestionPrompt(answer string, n int) string {
	return fmt.Sprintf("Answer:\n%s\n\nWrite exactly %d questions this answer responds to.", answer, n)
}

func buildContextUsefulnessPrompt(query, reference, passage string) string {
	return fmt.Sprintf("Question: %s\n\nReference answer: %s\n\nPassage:\n%s\n\nUseful (yes/no):",
		query, reference, passage)
}

func firstN(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}
