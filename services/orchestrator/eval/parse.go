// Copyright (C) 2026 RAG Eval Project Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package eval

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	numberPattern       = regexp.MustCompile(`-?\d+(\.\d+)?`)
	numberedLinePattern = regexp.MustCompile(`^\s*\d+[.)]\s*(.+)$`)
)

// firstNumberIn extracts the first number in [lo, hi] from an LLM reply,
// ignoring any surrounding prose.
func firstNumberIn(s string, lo, hi float64) (float64, bool) {
	for _, match := range numberPattern.FindAllString(s, -1) {
		v, err := strconv.ParseFloat(match, 64)
		if err != nil {
			continue
		}
		if v >= lo && v <= hi {
			return v, true
		}
	}
	return 0, false
}

// parseNumberedList extracts the items of a numbered list from an LLM
// reply, one per line.
func parseNumberedList(s string) []string {
	var items []string
	for _, line := range strings.Split(s, "\n") {
		if m := numberedLinePattern.FindStringSubmatch(line); m != nil {
			item := strings.TrimSpace(m[1])
			if item != "" {
				items = append(items, item)
			}
		}
	}
	return items
}

// parseYesNo reads a yes/no verdict from an LLM reply. Anything that does
// not start with yes counts as no.
func parseYesNo(s string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(s)), "yes")
}
