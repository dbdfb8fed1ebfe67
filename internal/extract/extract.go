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

package extract

import (
	"github.com/tsgraph/engine/internal/model"
	"github.com/tsgraph/engine/internal/sourcetree"
)

// Result is the output of extracting one file: a node set and an edge set.
// Every edge in Edges references nodes by ID only; the extractor never
// looks anything up in a graph store.
type Result struct {
	Nodes []model.Node
	Edges []model.Edge
}

// Extract walks file (already parsed by an external AST parser into the
// sourcetree IR) under ctx and returns its node and edge sets (§4.2).
func Extract(ctx Context, file *sourcetree.File) Result {
	builder, _ := buildNodes(ctx, file)
	edges := buildEdges(ctx, file, builder)
	return Result{Nodes: builder.nodes, Edges: edges}
}

// ExportedSymbols returns the name -> node ID map of every node this file
// contributes that a cross-file ProjectRegistry should expose to other
// files' import maps. Only exported, top-level-addressable symbols are
// listed: methods and object-literal members are reached through their
// owner's dotted name instead, matching how import statements reference
// module members.
func ExportedSymbols(result Result) map[string]string {
	out := make(map[string]string)
	for _, n := range result.Nodes {
		switch n.Type {
		case model.NodeFunction, model.NodeClass, model.NodeInterface, model.NodeTypeAlias, model.NodeVariable:
			if n.Exported {
				out[n.Name] = n.ID
			}
		}
	}
	return out
}
