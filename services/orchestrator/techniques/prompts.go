// Copyright (C) 2026 RAG Eval Project Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package techniques

import (
	"fmt"
	"strings"
)

const ragAnswerSystemPrompt = `You are a helpful assistant that answers questions using the provided context. Base your answer on the context; if the context does not contain the answer, say so. Be clear, accurate, and concise.`

// buildAnswerPrompt formats the retrieval context and question into the
// final generation prompt. Documents are numbered in context order.
func buildAnswerPrompt(query string, contexts []string) string {
	if len(contexts) == 0 {
		return fmt.Sprintf("Question: %s\n\nAnswer the question as best you can.", query)
	}
	var sb strings.Builder
	sb.WriteString("Answer the question using the following context.\n\nContext:\n")
	for i, c := range contexts {
		fmt.Fprintf(&sb, "[Document %d]\n%s\n\n", i+1, c)
	}
	fmt.Fprintf(&sb, "Question: %s", query)
	return sb.String()
}

// Hypothetical-document generation.
const hydeSystemPrompt = `You generate hypothetical answer passages for search. Given a question, write one plausible, detailed paragraph that could answer it, including relevant terminology. Do not hedge about whether the answer is correct.`

func buildHydePrompt(query string) string {
	return fmt.Sprintf("Write a hypothetical answer paragraph for this question:\n\n%s", query)
}

// Point-wise reranking.
const rerankSystemPrompt = `You rate how relevant a passage is to a query on a scale of 0 to 10, where 0 means completely irrelevant and 10 means it directly answers the query. Respond with a single integer only.`

func buildRerankPrompt(query, passage string) string {
	return fmt.Sprintf("Query: %s\n\nPassage:\n%s\n\nRelevance score (0-10):", query, passage)
}

// Query transformations.
const rewriteSystemPrompt = `You optimize search queries. Rewrite the user's query to be more specific and detailed, adding key terms and concepts that help retrieve accurate information. Keep it concise. Output only the rewritten query, no explanation.`

const stepbackSystemPrompt = `You optimize search strategy. Turn the user's specific query into a broader, more general version that helps retrieve background information while preserving its meaning. Output only the generalized query, no explanation.`

const decomposeSystemPrompt = `You break down complex questions. Split the user's query into simpler sub-questions, each focused on a different aspect of the original.`

func buildDecomposePrompt(query string, n int) string {
	return fmt.Sprintf(`Decompose this query into %d simpler sub-questions. Output them as a numbered list, one per line:
1. [first sub-question]
2. [second sub-question]
...

Query: %s`, n, query)
}

// Adaptive classification and strategies.
const classifySystemPrompt = `You are a query classification expert. Classify the given query into exactly one of these categories:
- factual: asks for specific, verifiable information
- analytical: requires synthesis or deep explanation
- opinion: asks about subjective matters or seeks multiple viewpoints
- contextual: depends on the user's specific situation

Respond with the category name only.`

func buildClassifyPrompt(query string) string {
	return fmt.Sprintf("Classify this query: %s", query)
}

// Self-reflective prompts.
const retrievalDecisionSystemPrompt = `You decide whether a query needs document retrieval. Answer "Yes" for factual questions, requests for specific information, or queries about events, people, or concepts. Answer "No" for greetings, opinions, hypotheticals, or simple common-sense questions. Answer only "Yes" or "No".`

func buildRetrievalDecisionPrompt(query string) string {
	return fmt.Sprintf("Query: %s\n\nDoes this query need document retrieval?", query)
}

const relevanceSystemPrompt = `You judge whether a document is relevant to a query. A document is relevant when it contains information that helps answer the query. Answer only "fully_relevant", "partially_relevant", or "not_relevant".`

func buildRelevancePrompt(query, passage string) string {
	return fmt.Sprintf("Query: %s\n\nDocument:\n%s\n\nHow relevant is this document to the query?", query, passage)
}

const supportSystemPrompt = `You judge whether a response is grounded in the given context. Answer only one of:
- "fully" - everything in the response follows from the context
- "partially" - some of the response is supported by the context
- "none" - the response contains information not found in the context`

func buildSupportPrompt(response, context string) string {
	return fmt.Sprintf("Context:\n%s\n\nResponse:\n%s\n\nHow well does the context support the response?", context, response)
}

const utilitySystemPrompt = `You rate how useful a response is for a query, considering accuracy, completeness, and helpfulness. Rate from 1 (useless) to 5 (extremely useful). Respond with a single digit from 1 to 5 only.`

func buildUtilityPrompt(query, response string) string {
	return fmt.Sprintf("Query: %s\n\nResponse:\n%s\n\nUsefulness (1-5):", query, response)
}

const directAnswerSystemPrompt = `You are a helpful assistant. Give a clear, accurate, and informative answer to the question.`
