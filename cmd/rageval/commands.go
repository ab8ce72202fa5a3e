// Copyright (C) 2026 RAG Eval Project Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/hwk-1212/rag-eval-project/services/orchestrator"
)

// Config is the CLI configuration, read from config.yaml.
type Config struct {
	// ServerURL is where the client commands reach the orchestrator.
	ServerURL string `yaml:"server_url"`

	// Server configures the in-process orchestrator for the serve command.
	Server orchestrator.Config `yaml:"server"`
}

func (c *Config) serverURL() string {
	if c.ServerURL != "" {
		return c.ServerURL
	}
	return "http://localhost:12210"
}

var rootCmd = &cobra.Command{
	Use:   "rageval",
	Short: "A CLI for the RAG technique comparison service",
	Long: `rageval runs and talks to the RAG evaluation orchestrator: fan a
query out over retrieval techniques, score the stored answers, and manage
sessions and documents.`,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVar(&querySessionID, "session", "", "session ID to append to (new session when empty)")
	queryCmd.Flags().StringSliceVar(&queryTechniques, "techniques", []string{"baseline"}, "techniques to fan out over")
	queryCmd.Flags().StringSliceVar(&queryDocumentIDs, "documents", nil, "document IDs to restrict retrieval to")
	queryCmd.Flags().IntVar(&queryTopK, "top-k", 0, "chunks per technique (0 uses the server default)")

	rootCmd.AddCommand(evaluateCmd)
	evaluateCmd.Flags().BoolVar(&evalUseLLM, "llm", true, "run the LLM judge")
	evaluateCmd.Flags().BoolVar(&evalUseReference, "reference", false, "run the reference metrics")
	evaluateCmd.Flags().StringVar(&evalReferencesPath, "references", "", "YAML file mapping record IDs to reference answers")

	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(listSessionsCmd)
	sessionsCmd.AddCommand(sessionHistoryCmd)
	sessionsCmd.AddCommand(deleteSessionCmd)

	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().StringVar(&ingestDocumentID, "id", "", "document ID (generated when empty)")
}

var httpClient = &http.Client{Timeout: 10 * time.Minute}

// postJSON sends a request body and decodes the JSON response into out.
// Non-2xx statuses come back as errors carrying the server's message.
func postJSON(path string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := httpClient.Post(config.serverURL()+path, "application/json", bytes.NewReader(raw))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func getJSON(path string, out any) error {
	resp, err := httpClient.Get(config.serverURL() + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func deleteJSON(path string, out any) error {
	req, err := http.NewRequest(http.MethodDelete, config.serverURL()+path, nil)
	if err != nil {
		return err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out any) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var serverErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &serverErr) == nil && serverErr.Error != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, serverErr.Error)
		}
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

func printJSON(v any) {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Println(v)
		return
	}
	fmt.Println(string(raw))
}
