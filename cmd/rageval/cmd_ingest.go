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
	"path/filepath"

	"github.com/spf13/cobra"
)

var ingestDocumentID string

var ingestCmd = &cobra.Command{
	Use:   "ingest [file...]",
	Short: "Chunk, embed, and index local text files",
	Long: `Uploads each file to the orchestrator as one document. Re-ingesting
a file with the same --id overwrites its chunks instead of duplicating them.`,
	Args: cobra.MinimumNArgs(1),
	Run:  runIngest,
}

func runIngest(_ *cobra.Command, args []string) {
	if ingestDocumentID != "" && len(args) > 1 {
		fmt.Fprintln(os.Stderr, "--id can only be used with a single file")
		os.Exit(2)
	}

	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Failed to read file:", err)
			os.Exit(2)
		}

		body := map[string]any{
			"text":     string(data),
			"metadata": map[string]string{"filename": filepath.Base(path)},
		}
		if ingestDocumentID != "" {
			body["document_id"] = ingestDocumentID
		}

		var resp struct {
			DocumentID string `json:"document_id"`
			ChunkCount int    `json:"chunk_count"`
		}
		if err := postJSON("/v1/documents", body, &resp); err != nil {
			fmt.Fprintln(os.Stderr, "Ingest failed:", err)
			os.Exit(2)
		}
		fmt.Printf("%s -> document %s (%d chunks)\n", path, resp.DocumentID, resp.ChunkCount)
	}
}
