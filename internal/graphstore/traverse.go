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

package graphstore

import (
	"encoding/json"
	"fmt"

	"github.com/tsgraph/engine/internal/model"
)

// DefaultMaxDepth bounds query_dependencies/query_dependents when the
// caller does not supply one (§4.1).
const DefaultMaxDepth = 100

// edgesOfTypes returns every edge whose type is in types and whose source
// and target both have a surviving node row - the join that keeps dangling
// edges (one endpoint deleted, the other not yet swept) from ever being
// observable to a query (§3.2 invariant).
func (s *Store) edgesOfTypes(types []model.EdgeType) ([]model.Edge, error) {
	typeStrs := make([]any, len(types))
	for i, t := range types {
		typeStrs[i] = string(t)
	}
	res, err := s.db.RunReadOnly(
		`?[source, target, type, call_count, call_sites, reference_context, context] :=
			*cie_edge{source, target, type, call_count, call_sites, reference_context, context},
			*cie_node{id: source}, *cie_node{id: target},
			type in $types`,
		map[string]any{"types": typeStrs})
	if err != nil {
		return nil, fmt.Errorf("scan edges: %w", err)
	}
	out := make([]model.Edge, 0, len(res.Rows))
	for _, row := range res.Rows {
		e, err := decodeEdgeRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func decodeEdgeRow(row []any) (model.Edge, error) {
	if len(row) < 7 {
		return model.Edge{}, fmt.Errorf("decode edge: expected 7 columns, got %d", len(row))
	}
	e := model.Edge{
		Source:           str(row[0]),
		Target:           str(row[1]),
		Type:             model.EdgeType(str(row[2])),
		CallCount:        toInt(row[3]),
		ReferenceContext: model.ReferenceContext(str(row[5])),
		Context:          model.UsesTypeContext(str(row[6])),
	}
	switch v := row[4].(type) {
	case string:
		if v != "" {
			_ = json.Unmarshal([]byte(v), &e.CallSites)
		}
	case []any:
		raw, _ := json.Marshal(v)
		_ = json.Unmarshal(raw, &e.CallSites)
	}
	return e, nil
}

func normalizeEdgeTypes(types []model.EdgeType) []model.EdgeType {
	if len(types) == 0 {
		return model.DefaultTraversalEdgeTypes
	}
	return types
}

// Traversal is the shared shape for query_dependencies and
// query_dependents: the reachable edge set plus the nodes it touches.
type Traversal struct {
	Edges []model.Edge
	Nodes []model.Node
}

// QueryDependencies performs a forward BFS from rootID, following only
// edges whose type is in edgeTypes (DefaultTraversalEdgeTypes if empty),
// up to maxDepth hops (DefaultMaxDepth if <= 0). It returns every distinct
// edge in the reachable subgraph and the nodes those edges touch,
// including rootID itself when it resolves.
func (s *Store) QueryDependencies(rootID string, edgeTypes []model.EdgeType, maxDepth int) (Traversal, error) {
	return s.bfs(rootID, edgeTypes, maxDepth, func(e model.Edge) (string, string) { return e.Source, e.Target })
}

// QueryDependents is the reverse of QueryDependencies: it follows edges
// backward from rootID, finding everything that (transitively) depends on
// it.
func (s *Store) QueryDependents(rootID string, edgeTypes []model.EdgeType, maxDepth int) (Traversal, error) {
	return s.bfs(rootID, edgeTypes, maxDepth, func(e model.Edge) (string, string) { return e.Target, e.Source })
}

func (s *Store) bfs(rootID string, edgeTypes []model.EdgeType, maxDepth int, dir func(model.Edge) (from, to string)) (Traversal, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	edges, err := s.edgesOfTypes(normalizeEdgeTypes(edgeTypes))
	if err != nil {
		return Traversal{}, err
	}

	adjacency := make(map[string][]model.Edge)
	for _, e := range edges {
		from, _ := dir(e)
		adjacency[from] = append(adjacency[from], e)
	}

	visited := map[string]int{rootID: 0}
	frontier := []string{rootID}
	seenEdges := make(map[string]model.Edge)

	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, node := range frontier {
			for _, e := range adjacency[node] {
				seenEdges[e.Key()] = e
				_, to := dir(e)
				if _, ok := visited[to]; !ok {
					visited[to] = depth + 1
					next = append(next, to)
				}
			}
		}
		frontier = next
	}

	resultEdges := make([]model.Edge, 0, len(seenEdges))
	touched := map[string]struct{}{rootID: {}}
	for _, e := range seenEdges {
		resultEdges = append(resultEdges, e)
		touched[e.Source] = struct{}{}
		touched[e.Target] = struct{}{}
	}

	ids := make([]string, 0, len(touched))
	for id := range touched {
		ids = append(ids, id)
	}
	nodes, err := s.GetNodes(ids)
	if err != nil {
		return Traversal{}, err
	}
	return Traversal{Edges: resultEdges, Nodes: nodes}, nil
}
