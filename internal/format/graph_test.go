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
	"strings"
	"testing"

	"github.com/tsgraph/engine/internal/model"
)

func namesFor(ids ...string) map[string]string {
	m := make(map[string]string, len(ids))
	for _, id := range ids {
		m[id] = id
	}
	return m
}

func TestBuildDiagram_LinearChainCollapsesOntoOneLine(t *testing.T) {
	nodes := []model.Node{{ID: "A"}, {ID: "B"}, {ID: "C"}}
	edges := []model.Edge{
		{Source: "A", Target: "B", Type: model.EdgeCalls},
		{Source: "B", Target: "C", Type: model.EdgeCalls},
	}
	d := BuildDiagram(nodes, edges, namesFor("A", "B", "C"))
	if len(d.Lines) != 1 {
		t.Fatalf("expected one collapsed line, got %+v", d.Lines)
	}
	if !strings.Contains(d.Lines[0], "A") || !strings.Contains(d.Lines[0], "B") || !strings.Contains(d.Lines[0], "C") {
		t.Errorf("expected chain A->B->C on one line, got %q", d.Lines[0])
	}
	if len(d.NodeOrder) != 3 {
		t.Errorf("expected all 3 nodes in nodeOrder, got %+v", d.NodeOrder)
	}
}

func TestBuildDiagram_BranchStartsNewLine(t *testing.T) {
	nodes := []model.Node{{ID: "A"}, {ID: "B"}, {ID: "C"}}
	edges := []model.Edge{
		{Source: "A", Target: "B", Type: model.EdgeCalls},
		{Source: "A", Target: "C", Type: model.EdgeCalls},
	}
	d := BuildDiagram(nodes, edges, namesFor("A", "B", "C"))
	if len(d.Lines) != 2 {
		t.Fatalf("expected two lines for a branch, got %+v", d.Lines)
	}
	for _, line := range d.Lines {
		if !strings.HasPrefix(line, "A") {
			t.Errorf("expected every branch line to repeat the source, got %q", line)
		}
	}
}

func TestBuildDiagram_BranchWithChainedChildOmitsBareRootLine(t *testing.T) {
	nodes := []model.Node{{ID: "root"}, {ID: "left"}, {ID: "right"}, {ID: "rightChild"}}
	edges := []model.Edge{
		{Source: "root", Target: "left", Type: model.EdgeCalls},
		{Source: "root", Target: "right", Type: model.EdgeCalls},
		{Source: "right", Target: "rightChild", Type: model.EdgeCalls},
	}
	d := BuildDiagram(nodes, edges, namesFor("root", "left", "right", "rightChild"))
	if len(d.Lines) != 2 {
		t.Fatalf("expected two lines, got %+v", d.Lines)
	}
	for _, line := range d.Lines {
		if line == "root" {
			t.Errorf("expected no bare standalone root line, got %+v", d.Lines)
		}
	}
}

func TestBuildDiagram_CycleWithNoRootStillCovered(t *testing.T) {
	nodes := []model.Node{{ID: "A"}, {ID: "B"}}
	edges := []model.Edge{
		{Source: "A", Target: "B", Type: model.EdgeCalls},
		{Source: "B", Target: "A", Type: model.EdgeCalls},
	}
	d := BuildDiagram(nodes, edges, namesFor("A", "B"))
	if len(d.NodeOrder) != 2 {
		t.Errorf("expected both cycle members covered, got %+v", d.NodeOrder)
	}
	if len(d.Lines) == 0 {
		t.Errorf("expected at least one line for the cycle")
	}
}

func TestBuildDiagram_SharedTargetBreaksChain(t *testing.T) {
	// A->C and B->C: C has two incoming edges, so neither chain collapses
	// through it.
	nodes := []model.Node{{ID: "A"}, {ID: "B"}, {ID: "C"}}
	edges := []model.Edge{
		{Source: "A", Target: "C", Type: model.EdgeCalls},
		{Source: "B", Target: "C", Type: model.EdgeCalls},
	}
	d := BuildDiagram(nodes, edges, namesFor("A", "B", "C"))
	if len(d.Lines) != 2 {
		t.Fatalf("expected a separate line per root given a shared target, got %+v", d.Lines)
	}
}
