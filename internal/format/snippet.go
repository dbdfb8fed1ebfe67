// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package format

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tsgraph/engine/internal/model"
)

const (
	// DefaultSmallFunctionThreshold is the line count at or under which a
	// node's whole snippet is shown, no windowing (§4.10).
	DefaultSmallFunctionThreshold = 15
	// baseContextBudget is divided by the number of nodes being rendered
	// to get the per-node context-lines budget: fewer nodes shown, more
	// room to give each one (§4.10).
	baseContextBudget = 24
	minContextLines   = 2
)

// ContextLinesFor computes the context-lines budget for a render showing
// nodeCount nodes.
func ContextLinesFor(nodeCount int) int {
	if nodeCount <= 0 {
		nodeCount = 1
	}
	c := baseContextBudget / nodeCount
	if c < minContextLines {
		c = minContextLines
	}
	return c
}

// callSitesFor picks the LineRanges relevant to node: CALLS edges whose
// Source or Target is node's ID.
func callSitesFor(node model.Node, edges []model.Edge) []model.LineRange {
	var out []model.LineRange
	for _, e := range edges {
		if e.Type != model.EdgeCalls {
			continue
		}
		if e.Source != node.ID && e.Target != node.ID {
			continue
		}
		out = append(out, e.CallSites...)
	}
	return out
}

type lineWindow struct{ start, end int }

// ExtractSnippet renders node's snippet per §4.10: the whole body when it
// is small enough, else windows of ±contextLines around each relevant
// call-site range, merged where they touch, with omitted gaps marked and
// call-site lines prefixed with "> ".
func ExtractSnippet(node model.Node, edges []model.Edge, contextLines, smallThreshold int) string {
	if smallThreshold <= 0 {
		smallThreshold = DefaultSmallFunctionThreshold
	}
	lines := strings.Split(node.Snippet, "\n")
	if len(lines) <= smallThreshold {
		return node.Snippet
	}

	sites := callSitesFor(node, edges)
	if len(sites) == 0 {
		return node.Snippet
	}

	var windows []lineWindow
	for _, cs := range sites {
		start, end := cs.StartLine-contextLines, cs.EndLine+contextLines
		if start < node.StartLine {
			start = node.StartLine
		}
		if end > node.EndLine {
			end = node.EndLine
		}
		if start > end {
			continue
		}
		windows = append(windows, lineWindow{start, end})
	}
	if len(windows) == 0 {
		return node.Snippet
	}
	windows = mergeWindows(windows)

	callSiteLines := make(map[int]bool)
	for _, cs := range sites {
		for ln := cs.StartLine; ln <= cs.EndLine; ln++ {
			callSiteLines[ln] = true
		}
	}

	var sb strings.Builder
	prevEnd := node.StartLine - 1
	for _, w := range windows {
		if w.start > prevEnd+1 {
			fmt.Fprintf(&sb, "... %d lines omitted ...\n", w.start-prevEnd-1)
		}
		for ln := w.start; ln <= w.end; ln++ {
			idx := ln - node.StartLine
			if idx < 0 || idx >= len(lines) {
				continue
			}
			prefix := "  "
			if callSiteLines[ln] {
				prefix = "> "
			}
			sb.WriteString(prefix)
			sb.WriteString(lines[idx])
			sb.WriteString("\n")
		}
		prevEnd = w.end
	}
	if node.EndLine > prevEnd {
		fmt.Fprintf(&sb, "... %d lines omitted ...\n", node.EndLine-prevEnd)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// mergeWindows sorts and merges overlapping or touching windows.
func mergeWindows(windows []lineWindow) []lineWindow {
	sort.Slice(windows, func(i, j int) bool { return windows[i].start < windows[j].start })
	merged := windows[:1]
	for _, w := range windows[1:] {
		last := &merged[len(merged)-1]
		if w.start <= last.end+1 {
			if w.end > last.end {
				last.end = w.end
			}
			continue
		}
		merged = append(merged, w)
	}
	return merged
}
