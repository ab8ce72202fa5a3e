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

	"github.com/spf13/cobra"

	"github.com/hwk-1212/rag-eval-project/services/orchestrator/datatypes"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage query sessions",
}

var listSessionsCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions, newest first",
	Run: func(_ *cobra.Command, _ []string) {
		var resp struct {
			Sessions []datatypes.Session `json:"sessions"`
			Count    int                 `json:"count"`
		}
		if err := getJSON("/v1/sessions", &resp); err != nil {
			fmt.Fprintln(os.Stderr, "Failed to list sessions:", err)
			os.Exit(2)
		}
		for _, s := range resp.Sessions {
			fmt.Printf("%s  %s  %s\n", s.ID, s.UpdateTime.Format("2006-01-02 15:04"), s.Title)
		}
		fmt.Printf("%d session(s)\n", resp.Count)
	},
}

var sessionHistoryCmd = &cobra.Command{
	Use:   "history [session-id]",
	Short: "Show a session's QA records",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		var resp struct {
			Session datatypes.Session    `json:"session"`
			Records []datatypes.QARecord `json:"records"`
		}
		if err := getJSON("/v1/sessions/"+args[0]+"/history", &resp); err != nil {
			fmt.Fprintln(os.Stderr, "Failed to load history:", err)
			os.Exit(2)
		}
		fmt.Printf("session %s: %s\n\n", resp.Session.ID, resp.Session.Title)
		for _, record := range resp.Records {
			fmt.Printf("[%s] %s\n", record.ID, record.Query)
			if record.Result.Succeeded() {
				fmt.Printf("  %s: %s\n", record.Result.TechniqueName, datatypes.Preview(record.Result.Answer, 200))
			} else {
				fmt.Printf("  %s: FAILED [%s]\n", record.Result.TechniqueName, record.Result.ErrorKind)
			}
		}
	},
}

var deleteSessionCmd = &cobra.Command{
	Use:   "delete [session-id]",
	Short: "Delete a session with its records and evaluations",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		if err := deleteJSON("/v1/sessions/"+args[0], nil); err != nil {
			fmt.Fprintln(os.Stderr, "Failed to delete session:", err)
			os.Exit(2)
		}
		fmt.Println("deleted", args[0])
	},
}
