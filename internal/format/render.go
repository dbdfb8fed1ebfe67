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
	"github.com/tsgraph/engine/internal/query"
)

// Format selects the rendered text shape (§6's `format?` request field).
type Format string

const (
	FormatMCP     Format = "mcp"
	FormatMermaid Format = "mermaid"
)

// Options customizes a render. Zero value renders "mcp" with default
// thresholds.
type Options struct {
	Format                 Format
	SmallFunctionThreshold int // 0 = DefaultSmallFunctionThreshold
}

// Render turns a query.Result into the text format §6's request contract
// promises every query operation returns. A Message-only result (a
// resolution failure) renders as just that message, per §7's "a failed
// resolution renders a helpful message ... and returns success with that
// text" policy.
func Render(result query.Result, opts Options) string {
	if len(result.Nodes) == 0 {
		if result.Message != "" {
			return result.Message
		}
		return "No results."
	}

	nodesByID := make(map[string]model.Node, len(result.Nodes))
	for _, n := range result.Nodes {
		nodesByID[n.ID] = n
	}
	aliasMap := BuildAliasMap(result.AliasEdges, nodesByID)
	names := DisplayNames(result.Nodes, aliasMap)

	switch opts.Format {
	case FormatMermaid:
		return renderMermaid(result, names)
	default:
		return renderMCP(result, names, nodesByID, opts)
	}
}

func renderMCP(result query.Result, names map[string]string, nodesByID map[string]model.Node, opts Options) string {
	diagram := BuildDiagram(result.Nodes, result.Edges, names)
	contextLines := ContextLinesFor(len(result.Nodes))

	var sb strings.Builder
	if result.Message != "" {
		sb.WriteString(result.Message)
		sb.WriteString("\n\n")
	}

	sb.WriteString("## Graph\n\n```\n")
	for _, line := range diagram.Lines {
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	sb.WriteString("```\n\n## Nodes\n\n")

	for _, id := range diagram.NodeOrder {
		n, ok := nodesByID[id]
		if !ok {
			continue
		}
		fmt.Fprintf(&sb, "### %s (%s)\n", names[id], n.Type)
		fmt.Fprintf(&sb, "%s:%d-%d\n\n", n.FilePath, n.StartLine, n.EndLine)
		snippet := ExtractSnippet(n, result.Edges, contextLines, opts.SmallFunctionThreshold)
		if snippet != "" {
			sb.WriteString("```\n")
			sb.WriteString(snippet)
			sb.WriteString("\n```\n")
		}
		sb.WriteString("\n")
	}

	if result.MaxNodes > 0 && len(result.Nodes) >= result.MaxNodes {
		fmt.Fprintf(&sb, "_Showing up to %d nodes; refine the query to see more._\n", result.MaxNodes)
	}

	return strings.TrimRight(sb.String(), "\n") + "\n"
}

// renderMermaid emits one mermaid "graph TD" block per connected
// component of the result subgraph (§4.10).
func renderMermaid(result query.Result, names map[string]string) string {
	components := connectedComponents(result.Nodes, result.Edges)

	var sb strings.Builder
	if result.Message != "" {
		sb.WriteString(result.Message)
		sb.WriteString("\n\n")
	}

	for i, comp := range components {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("```mermaid\ngraph TD\n")
		mermaidAlias := make(map[string]string, len(comp.nodeIDs))
		for j, id := range comp.nodeIDs {
			mermaidAlias[id] = fmt.Sprintf("N%d", j)
			fmt.Fprintf(&sb, "  %s[%q]\n", mermaidAlias[id], names[id])
		}
		for _, e := range comp.edges {
			fmt.Fprintf(&sb, "  %s -->|%s| %s\n", mermaidAlias[e.Source], e.Type, mermaidAlias[e.Target])
		}
		sb.WriteString("```\n")
	}
	return strings.TrimRight(sb.String(), "\n") + "\n"
}

type component struct {
	nodeIDs []string
	edges   []model.Edge
}

// connectedComponents splits the subgraph into weakly-connected pieces,
// each rendered as its own mermaid diagram.
func connectedComponents(nodes []model.Node, edges []model.Edge) []component {
	present := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		present[n.ID] = true
	}
	adj := make(map[string][]string)
	edgesByNode := make(map[string][]model.Edge)
	for _, e := range edges {
		if !present[e.Source] || !present[e.Target] {
			continue
		}
		adj[e.Source] = append(adj[e.Source], e.Target)
		adj[e.Target] = append(adj[e.Target], e.Source)
		edgesByNode[e.Source] = append(edgesByNode[e.Source], e)
	}

	allIDs := make([]string, len(nodes))
	for i, n := range nodes {
		allIDs[i] = n.ID
	}
	sort.Strings(allIDs)

	visited := make(map[string]bool, len(nodes))
	var components []component
	for _, start := range allIDs {
		if visited[start] {
			continue
		}
		var ids []string
		queue := []string{start}
		visited[start] = true
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			ids = append(ids, cur)
			for _, next := range adj[cur] {
				if !visited[next] {
					visited[next] = true
					queue = append(queue, next)
				}
			}
		}
		sort.Strings(ids)

		var compEdges []model.Edge
		inComp := make(map[string]bool, len(ids))
		for _, id := range ids {
			inComp[id] = true
		}
		for _, id := range ids {
			for _, e := range edgesByNode[id] {
				if inComp[e.Target] {
					compEdges = append(compEdges, e)
				}
			}
		}
		components = append(components, component{nodeIDs: ids, edges: compEdges})
	}
	return components
}
