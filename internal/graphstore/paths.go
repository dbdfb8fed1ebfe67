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
	"fmt"
	"sort"

	"github.com/tsgraph/engine/internal/model"
)

// DefaultMaxPaths bounds query_paths when the caller does not supply one
// (§4.1).
const DefaultMaxPaths = 3

// Path is one simple (node-disjoint) route from a source to a target.
type Path struct {
	Edges []model.Edge
}

// QueryPaths enumerates up to maxPaths simple paths from fromID to toID,
// shortest first, following only edges whose type is in edgeTypes
// (DefaultTraversalEdgeTypes if empty) and never exceeding maxDepth hops
// (DefaultMaxDepth if <= 0). Paths of equal length are ordered by the
// lexicographically-smallest sequence of model.EdgeTypeOrdinal values
// along the path, then by source node ID, for a deterministic result
// independent of map iteration order.
func (s *Store) QueryPaths(fromID, toID string, edgeTypes []model.EdgeType, maxDepth, maxPaths int) ([]Path, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	if maxPaths <= 0 {
		maxPaths = DefaultMaxPaths
	}
	edges, err := s.edgesOfTypes(normalizeEdgeTypes(edgeTypes))
	if err != nil {
		return nil, fmt.Errorf("query paths: %w", err)
	}

	adjacency := make(map[string][]model.Edge)
	for _, e := range edges {
		adjacency[e.Source] = append(adjacency[e.Source], e)
	}
	for _, list := range adjacency {
		sort.SliceStable(list, func(i, j int) bool {
			if model.EdgeTypeOrdinal(list[i].Type) != model.EdgeTypeOrdinal(list[j].Type) {
				return model.EdgeTypeOrdinal(list[i].Type) < model.EdgeTypeOrdinal(list[j].Type)
			}
			return list[i].Target < list[j].Target
		})
	}

	// Enumerate every simple path within maxDepth before ranking - a
	// count-based cutoff mid-DFS would keep whatever depth-first discovery
	// order happens to fill the quota first, not the shortest paths.
	var found []Path
	visiting := map[string]bool{fromID: true}
	var walk func(current string, trail []model.Edge)
	walk = func(current string, trail []model.Edge) {
		if len(trail) > maxDepth {
			return
		}
		if current == toID && len(trail) > 0 {
			cp := make([]model.Edge, len(trail))
			copy(cp, trail)
			found = append(found, Path{Edges: cp})
			return
		}
		for _, e := range adjacency[current] {
			if visiting[e.Target] {
				continue
			}
			visiting[e.Target] = true
			walk(e.Target, append(trail, e))
			visiting[e.Target] = false
		}
	}
	walk(fromID, nil)

	sort.SliceStable(found, func(i, j int) bool {
		if len(found[i].Edges) != len(found[j].Edges) {
			return len(found[i].Edges) < len(found[j].Edges)
		}
		return pathKey(found[i]) < pathKey(found[j])
	})
	if len(found) > maxPaths {
		found = found[:maxPaths]
	}
	return found, nil
}

func pathKey(p Path) string {
	key := ""
	for _, e := range p.Edges {
		key += fmt.Sprintf("%03d|", model.EdgeTypeOrdinal(e.Type))
	}
	for _, e := range p.Edges {
		key += e.Source + "|"
	}
	return key
}

// ConnectSeeds finds, for each pair of distinct seed IDs, a meeting point
// reachable from both via forward traversal - used by the query engine
// (C10) when a caller supplies multiple candidate starting symbols and
// wants the graph region connecting them (§4.10 connect_seeds). It
// performs one bounded BFS per seed and returns nodes reached by more than
// one seed, ordered by how many seeds reach them (descending) then by ID.
func (s *Store) ConnectSeeds(seedIDs []string, edgeTypes []model.EdgeType, maxDepth int) ([]string, error) {
	if len(seedIDs) < 2 {
		return nil, nil
	}
	reachCounts := make(map[string]int)
	for _, seed := range seedIDs {
		res, err := s.QueryDependencies(seed, edgeTypes, maxDepth)
		if err != nil {
			return nil, err
		}
		seen := map[string]bool{seed: true}
		for _, n := range res.Nodes {
			if !seen[n.ID] {
				seen[n.ID] = true
			}
		}
		for id := range seen {
			reachCounts[id]++
		}
	}
	var meeting []string
	for id, count := range reachCounts {
		if count > 1 {
			meeting = append(meeting, id)
		}
	}
	sort.SliceStable(meeting, func(i, j int) bool {
		if reachCounts[meeting[i]] != reachCounts[meeting[j]] {
			return reachCounts[meeting[i]] > reachCounts[meeting[j]]
		}
		return meeting[i] < meeting[j]
	})
	return meeting, nil
}
