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
	"strconv"
	"strings"
	"testing"

	"github.com/tsgraph/engine/internal/model"
)

func buildLines(n int) string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = "line" + strconv.Itoa(i+1)
	}
	return strings.Join(lines, "\n")
}

func TestExtractSnippet_SmallFunctionReturnsWhole(t *testing.T) {
	node := model.Node{StartLine: 1, EndLine: 5, Snippet: buildLines(5)}
	got := ExtractSnippet(node, nil, 3, 15)
	if got != node.Snippet {
		t.Errorf("expected whole snippet for a small function, got %q", got)
	}
}

func TestExtractSnippet_LargeFunctionNoCallSitesReturnsWhole(t *testing.T) {
	node := model.Node{StartLine: 1, EndLine: 30, Snippet: buildLines(30)}
	got := ExtractSnippet(node, nil, 3, 15)
	if got != node.Snippet {
		t.Errorf("expected whole snippet when no call sites exist, got %q", got)
	}
}

func TestExtractSnippet_LargeFunctionWindowsAroundCallSites(t *testing.T) {
	node := model.Node{ID: "f", StartLine: 1, EndLine: 30, Snippet: buildLines(30)}
	edges := []model.Edge{
		{Source: "f", Target: "g", Type: model.EdgeCalls, CallSites: []model.LineRange{{StartLine: 20, EndLine: 20}}},
	}
	got := ExtractSnippet(node, edges, 2, 15)
	if !strings.Contains(got, "> line20") {
		t.Errorf("expected call-site line marked with '> ', got %q", got)
	}
	if !strings.Contains(got, "lines omitted") {
		t.Errorf("expected an omitted-lines marker, got %q", got)
	}
	if strings.Contains(got, "line1\n") {
		t.Errorf("expected line 1 to be outside the window and omitted, got %q", got)
	}
}

func TestExtractSnippet_OverlappingWindowsMerge(t *testing.T) {
	node := model.Node{ID: "f", StartLine: 1, EndLine: 30, Snippet: buildLines(30)}
	edges := []model.Edge{
		{Source: "f", Target: "g", Type: model.EdgeCalls, CallSites: []model.LineRange{
			{StartLine: 10, EndLine: 10},
			{StartLine: 13, EndLine: 13},
		}},
	}
	got := ExtractSnippet(node, edges, 2, 15)
	// Windows [8,12] and [11,15] overlap and should merge into one run
	// with no "omitted" marker between line12 and line13.
	idx12 := strings.Index(got, "line12")
	idx13 := strings.Index(got, "line13")
	between := got[idx12:idx13]
	if strings.Contains(between, "omitted") {
		t.Errorf("expected merged window with no gap between line12 and line13, got %q", got)
	}
}
