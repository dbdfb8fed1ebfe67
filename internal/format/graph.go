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

	"github.com/tsgraph/engine/internal/model"
)

// Diagram is the rendered graph layout: the text lines plus the
// first-appearance node order §4.10 calls nodeOrder.
type Diagram struct {
	Lines     []string
	NodeOrder []string
}

// BuildDiagram implements §4.10's graph-layout algorithm: DFS from roots
// (nodes with no incoming edge in the subgraph), collapsing single-child
// single-parent chains onto one line, starting a new line per branch, and
// picking a pseudo-root for any cycle left over once every root is
// exhausted.
func BuildDiagram(nodes []model.Node, edges []model.Edge, names map[string]string) Diagram {
	present := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		present[n.ID] = true
	}

	outEdges := make(map[string][]model.Edge)
	inDegree := make(map[string]int)
	for _, e := range edges {
		if !present[e.Source] || !present[e.Target] {
			continue
		}
		outEdges[e.Source] = append(outEdges[e.Source], e)
		inDegree[e.Target]++
	}
	for id := range outEdges {
		sortOutEdges(outEdges[id])
	}

	d := &diagramBuilder{
		names:    names,
		outEdges: outEdges,
		inDegree: inDegree,
		visited:  make(map[string]bool),
	}

	allIDs := sortedNodeIDs(nodes)
	var roots []string
	for _, id := range allIDs {
		if inDegree[id] == 0 {
			roots = append(roots, id)
		}
	}
	for _, root := range roots {
		if !d.visited[root] {
			d.walk(root, d.displayName(root))
		}
	}
	// Every remaining unvisited node is reachable only from a cycle; pick
	// one as a pseudo-root and continue until none are left (§4.10 rule 4).
	for {
		next := ""
		for _, id := range allIDs {
			if !d.visited[id] {
				next = id
				break
			}
		}
		if next == "" {
			break
		}
		d.walk(next, d.displayName(next))
	}

	return Diagram{Lines: d.lines, NodeOrder: d.order}
}

type diagramBuilder struct {
	names    map[string]string
	outEdges map[string][]model.Edge
	inDegree map[string]int
	visited  map[string]bool
	lines    []string
	order    []string
}

func (d *diagramBuilder) displayName(id string) string {
	if n, ok := d.names[id]; ok {
		return n
	}
	return id
}

func (d *diagramBuilder) markVisited(id string) {
	if d.visited[id] {
		return
	}
	d.visited[id] = true
	d.order = append(d.order, id)
}

func arrow(e model.Edge, target string) string {
	return fmt.Sprintf(" --%s--> %s", e.Type, target)
}

// walk extends lineSoFar from node, collapsing a solitary single-parent
// child onto the same line and starting fresh lines for every branch or
// for a chain step into a node that already has more than one parent.
func (d *diagramBuilder) walk(node, lineSoFar string) {
	d.markVisited(node)

	outs := d.outEdges[node]
	if len(outs) == 0 {
		d.lines = append(d.lines, lineSoFar)
		return
	}

	if len(outs) == 1 {
		e := outs[0]
		next := lineSoFar + arrow(e, d.displayName(e.Target))
		if d.visited[e.Target] || d.inDegree[e.Target] != 1 {
			d.lines = append(d.lines, next)
			if !d.visited[e.Target] && len(d.outEdges[e.Target]) > 0 {
				d.walk(e.Target, d.displayName(e.Target))
				return
			}
			d.markVisited(e.Target)
			return
		}
		d.walk(e.Target, next)
		return
	}

	if lineSoFar != d.displayName(node) {
		d.lines = append(d.lines, lineSoFar)
	}
	for _, e := range outs {
		branchLine := d.displayName(node) + arrow(e, d.displayName(e.Target))
		if d.visited[e.Target] {
			d.lines = append(d.lines, branchLine)
			continue
		}
		d.walk(e.Target, branchLine)
	}
}

// sortOutEdges orders a node's outgoing edges deterministically: by the
// fixed edge-type ordinal, then by target ID.
func sortOutEdges(edges []model.Edge) {
	sort.Slice(edges, func(i, j int) bool {
		oi, oj := model.EdgeTypeOrdinal(edges[i].Type), model.EdgeTypeOrdinal(edges[j].Type)
		if oi != oj {
			return oi < oj
		}
		return edges[i].Target < edges[j].Target
	})
}
