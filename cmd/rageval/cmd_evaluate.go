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
	"gopkg.in/yaml.v3"

	"github.com/hwk-1212/rag-eval-project/services/orchestrator/datatypes"
)

var (
	evalUseLLM         bool
	evalUseReference   bool
	evalReferencesPath string
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate [record-id...]",
	Short: "Score stored QA records with the LLM judge and reference metrics",
	Long: `Asks the orchestrator to evaluate persisted QA records. The LLM
judge scores answer quality dimensions; reference metrics compute
faithfulness and relevancy, plus precision/recall when --references supplies
ground-truth answers.`,
	Args: cobra.MinimumNArgs(1),
	Run:  runEvaluate,
}

func runEvaluate(_ *cobra.Command, args []string) {
	request := datatypes.EvaluateRequest{
		QARecordIDs:  args,
		UseLLM:       evalUseLLM,
		UseReference: evalUseReference,
	}

	if evalReferencesPath != "" {
		data, err := os.ReadFile(evalReferencesPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Failed to read references file:", err)
			os.Exit(2)
		}
		if err := yaml.Unmarshal(data, &request.ReferenceAnswers); err != nil {
			fmt.Fprintln(os.Stderr, "Failed to parse references file:", err)
			os.Exit(2)
		}
	}

	var resp datatypes.EvaluateResponse
	if err := postJSON("/v1/evaluations", request, &resp); err != nil {
		fmt.Fprintln(os.Stderr, "Evaluation failed:", err)
		os.Exit(2)
	}

	failed := 0
	for _, eval := range resp.Evaluations {
		if eval.ErrorKind != "" {
			failed++
		}
	}
	printJSON(resp.Evaluations)
	if failed > 0 {
		fmt.Fprintf(os.Stderr, "%d of %d evaluations reported errors\n", failed, len(resp.Evaluations))
		os.Exit(1)
	}
}
