// Copyright (C) 2026 RAG Eval Project Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/hwk-1212/rag-eval-project/services/orchestrator"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the orchestrator server",
	Long: `Starts the HTTP server: query fan-out, document ingest, evaluation,
and session management. Backends (Weaviate, the LLM, the embedder) are
configured via config.yaml and environment variables.`,
	Run: runServe,
}

func runServe(_ *cobra.Command, _ []string) {
	service, err := orchestrator.New(config.Server)
	if err != nil {
		log.Fatalf("Failed to assemble the orchestrator: %v", err)
	}
	if err := service.Run(); err != nil {
		log.Fatalf("Server exited: %v", err)
	}
}
