// Copyright (C) 2026 RAG Eval Project Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hwk-1212/rag-eval-project/services/orchestrator/datatypes"
)

var (
	querySessionID   string
	queryTechniques  []string
	queryDocumentIDs []string
	queryTopK        int
)

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Fan a question out over retrieval techniques and compare the answers",
	Long: `Sends one question to the orchestrator, which runs every requested
technique against the same documents and returns all answers with their
retrieval traces. Exit code 0 when every technique succeeded, 1 when some
failed, 2 when the request itself was rejected.`,
	Args: cobra.MinimumNArgs(1),
	Run:  runQuery,
}

func runQuery(_ *cobra.Command, args []string) {
	request := datatypes.QueryRequest{
		SessionID:   querySessionID,
		Query:       strings.Join(args, " "),
		DocumentIDs: queryDocumentIDs,
		Techniques:  queryTechniques,
	}
	if queryTopK > 0 {
		request.RagConfig = map[string]any{"top_k": queryTopK}
	}

	var resp datatypes.QueryResponse
	if err := postJSON("/v1/query", request, &resp); err != nil {
		fmt.Fprintln(os.Stderr, "Query failed:", err)
		os.Exit(2)
	}

	failed := 0
	for _, result := range resp.Results {
		fmt.Printf("=== %s (%.2fs) ===\n", result.TechniqueName, result.TotalTime)
		if result.Succeeded() {
			fmt.Println(result.Answer)
		} else {
			failed++
			fmt.Printf("FAILED [%s]: %s\n", result.ErrorKind, result.ErrorMessage)
		}
		fmt.Println()
	}
	fmt.Printf("session: %s\n", resp.SessionID)
	if len(resp.RecordIDs) > 0 {
		fmt.Printf("records: %s\n", strings.Join(resp.RecordIDs, ", "))
	}
	if resp.PersistenceFailed {
		fmt.Fprintln(os.Stderr, "warning: results were not persisted")
	}

	if failed > 0 {
		os.Exit(1)
	}
}
