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

// Package query implements C10: the three public traversal operations
// (dependencies_of, dependents_of, paths_between) and the connect_seeds
// helper, composing C9's symbol resolution with C2's graph traversal
// primitives.
package query

import (
	"fmt"
	"time"

	"github.com/tsgraph/engine/internal/graphstore"
	"github.com/tsgraph/engine/internal/metrics"
	"github.com/tsgraph/engine/internal/model"
	"github.com/tsgraph/engine/internal/resolve"
)

// Store is the subset of graphstore.Store the query engine needs.
type Store interface {
	GetNode(id string) (model.Node, bool, error)
	QueryDependencies(rootID string, edgeTypes []model.EdgeType, maxDepth int) (graphstore.Traversal, error)
	QueryDependents(rootID string, edgeTypes []model.EdgeType, maxDepth int) (graphstore.Traversal, error)
	QueryPaths(fromID, toID string, edgeTypes []model.EdgeType, maxDepth, maxPaths int) ([]graphstore.Path, error)
	ConnectSeeds(seedIDs []string, edgeTypes []model.EdgeType, maxDepth int) ([]string, error)
	AliasEdgesFor(nodeIDs []string) ([]model.Edge, error)
}

// DefaultConnectDepth is connect_seeds' default BFS bound (§4.9).
const DefaultConnectDepth = 4

// Result is the QueryResult §4.10 describes: the edges and node metadata
// of the subgraph to render, plus an optional message (disambiguation,
// not-found, or an informational note).
type Result struct {
	Edges      []model.Edge
	Nodes      []model.Node
	AliasEdges []model.Edge // ALIAS_FOR edges touching Nodes; the formatter's alias_map source
	MaxNodes   int
	Message    string
}

// attachAliasEdges fills in r.AliasEdges from r.Nodes. A no-op for empty
// or message-only results, since there is nothing to alias-substitute.
func (e *Engine) attachAliasEdges(r Result) (Result, error) {
	if len(r.Nodes) == 0 {
		return r, nil
	}
	ids := make([]string, len(r.Nodes))
	for i, n := range r.Nodes {
		ids[i] = n.ID
	}
	aliasEdges, err := e.Store.AliasEdgesFor(ids)
	if err != nil {
		return Result{}, err
	}
	r.AliasEdges = aliasEdges
	return r, nil
}

// Engine wires C9 symbol resolution to C2 traversal for the three public
// operations.
type Engine struct {
	Store    Store
	Resolver *resolve.Resolver
}

// target is a resolved (or not) symbol reference the query operations
// share.
type target struct {
	nodeID      string
	node        model.Node
	keepInInput bool // file path was auto-resolved; keep the root in output
	message     string
	failed      bool
}

func (e *Engine) resolve(fileHint, symbol string) (target, error) {
	res, err := e.Resolver.Resolve(symbol, fileHint)
	if err != nil {
		return target{}, err
	}
	switch res.Outcome {
	case resolve.OutcomeOK:
		n, ok, err := e.Store.GetNode(res.NodeID)
		if err != nil {
			return target{}, err
		}
		if !ok {
			return target{failed: true, message: fmt.Sprintf("resolved node %q no longer exists", res.NodeID)}, nil
		}
		return target{nodeID: res.NodeID, node: n, keepInInput: res.FilePathWasResolved}, nil
	case resolve.OutcomeAmbiguous:
		msg := "ambiguous symbol '" + symbol + "': "
		for i, c := range res.Candidates {
			if i > 0 {
				msg += ", "
			}
			msg += c.NodeID
		}
		return target{failed: true, message: msg}, nil
	default:
		return target{failed: true, message: res.Message}, nil
	}
}

// DependenciesOf implements §4.9 operation 1.
func (e *Engine) DependenciesOf(fileHint, symbol string, edgeTypes []model.EdgeType, maxDepth, maxNodes int) (Result, error) {
	start := time.Now()
	r, err := e.dependenciesOf(fileHint, symbol, edgeTypes, maxDepth, maxNodes)
	metrics.ObserveQuery("dependencies_of", start, err)
	return r, err
}

func (e *Engine) dependenciesOf(fileHint, symbol string, edgeTypes []model.EdgeType, maxDepth, maxNodes int) (Result, error) {
	r, err := e.traverse(fileHint, symbol, edgeTypes, maxDepth, maxNodes, e.Store.QueryDependencies)
	if err != nil {
		return Result{}, err
	}
	return e.attachAliasEdges(r)
}

// DependentsOf implements §4.9 operation 2 (symmetric reverse traversal).
func (e *Engine) DependentsOf(fileHint, symbol string, edgeTypes []model.EdgeType, maxDepth, maxNodes int) (Result, error) {
	start := time.Now()
	r, err := e.dependentsOf(fileHint, symbol, edgeTypes, maxDepth, maxNodes)
	metrics.ObserveQuery("dependents_of", start, err)
	return r, err
}

func (e *Engine) dependentsOf(fileHint, symbol string, edgeTypes []model.EdgeType, maxDepth, maxNodes int) (Result, error) {
	r, err := e.traverse(fileHint, symbol, edgeTypes, maxDepth, maxNodes, e.Store.QueryDependents)
	if err != nil {
		return Result{}, err
	}
	return e.attachAliasEdges(r)
}

func (e *Engine) traverse(
	fileHint, symbol string,
	edgeTypes []model.EdgeType,
	maxDepth, maxNodes int,
	run func(rootID string, edgeTypes []model.EdgeType, maxDepth int) (graphstore.Traversal, error),
) (Result, error) {
	t, err := e.resolve(fileHint, symbol)
	if err != nil {
		return Result{}, err
	}
	if t.failed {
		return Result{MaxNodes: maxNodes, Message: t.message}, nil
	}

	trav, err := run(t.nodeID, edgeTypes, maxDepth)
	if err != nil {
		return Result{}, err
	}

	if len(trav.Edges) == 0 && t.node.Type == model.NodeClass {
		fallback, err := e.Resolver.ClassMethodFallback(t.node, func(methodID string) bool {
			mt, err := run(methodID, edgeTypes, maxDepth)
			return err == nil && len(mt.Edges) > 0
		})
		if err != nil {
			return Result{}, err
		}
		switch fallback.Outcome {
		case resolve.ClassMethodResolved:
			trav, err = run(fallback.NodeID, edgeTypes, maxDepth)
			if err != nil {
				return Result{}, err
			}
			return finishTraversal(trav, fallback.NodeID, true, maxNodes, fallback.Message), nil
		case resolve.ClassMethodAmbiguous:
			return Result{MaxNodes: maxNodes, Message: fallback.Message}, nil
		}
	}

	return finishTraversal(trav, t.nodeID, t.keepInInput, maxNodes, ""), nil
}

func finishTraversal(trav graphstore.Traversal, rootID string, keepRoot bool, maxNodes int, message string) Result {
	nodes := trav.Nodes
	if !keepRoot {
		filtered := make([]model.Node, 0, len(nodes))
		for _, n := range nodes {
			if n.ID != rootID {
				filtered = append(filtered, n)
			}
		}
		nodes = filtered
	}
	return Result{Edges: trav.Edges, Nodes: nodes, MaxNodes: maxNodes, Message: message}
}

// PathsBetween implements §4.9 operation 3. When no forward path exists,
// it retries in reverse in case the caller supplied from/to swapped.
func (e *Engine) PathsBetween(fromFile, fromSymbol, toFile, toSymbol string, edgeTypes []model.EdgeType, maxDepth, maxNodes int) (Result, error) {
	start := time.Now()
	r, err := e.pathsBetween(fromFile, fromSymbol, toFile, toSymbol, edgeTypes, maxDepth, maxNodes)
	metrics.ObserveQuery("paths_between", start, err)
	return r, err
}

func (e *Engine) pathsBetween(fromFile, fromSymbol, toFile, toSymbol string, edgeTypes []model.EdgeType, maxDepth, maxNodes int) (Result, error) {
	from, err := e.resolve(fromFile, fromSymbol)
	if err != nil {
		return Result{}, err
	}
	if from.failed {
		return Result{MaxNodes: maxNodes, Message: from.message}, nil
	}
	to, err := e.resolve(toFile, toSymbol)
	if err != nil {
		return Result{}, err
	}
	if to.failed {
		return Result{MaxNodes: maxNodes, Message: to.message}, nil
	}
	if from.nodeID == to.nodeID {
		return Result{MaxNodes: maxNodes, Message: "from and to resolve to the same node"}, nil
	}

	paths, err := e.Store.QueryPaths(from.nodeID, to.nodeID, edgeTypes, maxDepth, 1)
	if err != nil {
		return Result{}, err
	}
	if len(paths) == 0 {
		paths, err = e.Store.QueryPaths(to.nodeID, from.nodeID, edgeTypes, maxDepth, 1)
		if err != nil {
			return Result{}, err
		}
	}
	if len(paths) == 0 {
		return Result{MaxNodes: maxNodes, Message: fmt.Sprintf("no path between %s and %s", fromSymbol, toSymbol)}, nil
	}

	edges := paths[0].Edges
	ids := map[string]struct{}{}
	for _, edge := range edges {
		ids[edge.Source] = struct{}{}
		ids[edge.Target] = struct{}{}
	}
	nodes := make([]model.Node, 0, len(ids))
	for id := range ids {
		n, ok, err := e.Store.GetNode(id)
		if err != nil {
			return Result{}, err
		}
		if ok {
			nodes = append(nodes, n)
		}
	}
	return e.attachAliasEdges(Result{Edges: edges, Nodes: nodes, MaxNodes: maxNodes})
}

// ConnectSeeds implements §4.9's connect_seeds composition: it finds
// meeting points reached by more than one seed, then collects every edge
// on a shortest path from any seed to any meeting point.
func (e *Engine) ConnectSeeds(seedIDs []string, edgeTypes []model.EdgeType, maxDepth int) (Result, error) {
	start := time.Now()
	r, err := e.connectSeeds(seedIDs, edgeTypes, maxDepth)
	metrics.ObserveQuery("connect_seeds", start, err)
	return r, err
}

func (e *Engine) connectSeeds(seedIDs []string, edgeTypes []model.EdgeType, maxDepth int) (Result, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultConnectDepth
	}
	meetings, err := e.Store.ConnectSeeds(seedIDs, edgeTypes, maxDepth)
	if err != nil {
		return Result{}, err
	}
	if len(meetings) == 0 {
		return Result{}, nil
	}

	edgeSet := make(map[string]model.Edge)
	nodeIDs := make(map[string]struct{})
	for _, seed := range seedIDs {
		nodeIDs[seed] = struct{}{}
		for _, meeting := range meetings {
			if seed == meeting {
				continue
			}
			paths, err := e.Store.QueryPaths(seed, meeting, edgeTypes, maxDepth, 1)
			if err != nil {
				return Result{}, err
			}
			if len(paths) == 0 {
				continue
			}
			for _, edge := range paths[0].Edges {
				edgeSet[edge.Key()] = edge
				nodeIDs[edge.Source] = struct{}{}
				nodeIDs[edge.Target] = struct{}{}
			}
		}
	}

	edges := make([]model.Edge, 0, len(edgeSet))
	for _, e := range edgeSet {
		edges = append(edges, e)
	}
	nodes := make([]model.Node, 0, len(nodeIDs))
	for id := range nodeIDs {
		n, ok, err := e.Store.GetNode(id)
		if err != nil {
			return Result{}, err
		}
		if ok {
			nodes = append(nodes, n)
		}
	}
	return e.attachAliasEdges(Result{Edges: edges, Nodes: nodes})
}
