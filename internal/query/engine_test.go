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

package query

import (
	"strings"
	"testing"

	"github.com/tsgraph/engine/internal/graphstore"
	"github.com/tsgraph/engine/internal/model"
	"github.com/tsgraph/engine/internal/resolve"
)

// fakeStore backs both resolve.Store and query.Store with a tiny
// in-memory adjacency list, in the same hand-rolled style as
// internal/resolve's fakeStore.
type fakeStore struct {
	nodes []model.Node
	edges []model.Edge // directed Source -> Target
}

var _ resolve.Store = (*fakeStore)(nil)
var _ Store = (*fakeStore)(nil)

func (f *fakeStore) FindNodesBySymbol(symbol string) ([]model.Node, error) {
	var out []model.Node
	for _, n := range f.nodes {
		if strings.EqualFold(n.Name, symbol) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeStore) NodesInFile(filePath string) ([]model.Node, error) {
	var out []model.Node
	for _, n := range f.nodes {
		if n.FilePath == filePath {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeStore) GetNode(id string) (model.Node, bool, error) {
	for _, n := range f.nodes {
		if n.ID == id {
			return n, true, nil
		}
	}
	return model.Node{}, false, nil
}

func (f *fakeStore) nodeByID(id string) (model.Node, bool) {
	n, ok, _ := f.GetNode(id)
	return n, ok
}

// QueryDependencies does a one-hop-only forward scan; enough to exercise
// the engine without reimplementing BFS.
func (f *fakeStore) QueryDependencies(rootID string, edgeTypes []model.EdgeType, maxDepth int) (graphstore.Traversal, error) {
	var trav graphstore.Traversal
	for _, e := range f.edges {
		if e.Source != rootID {
			continue
		}
		trav.Edges = append(trav.Edges, e)
		if n, ok := f.nodeByID(e.Target); ok {
			trav.Nodes = append(trav.Nodes, n)
		}
	}
	if root, ok := f.nodeByID(rootID); ok {
		trav.Nodes = append(trav.Nodes, root)
	}
	return trav, nil
}

func (f *fakeStore) QueryDependents(rootID string, edgeTypes []model.EdgeType, maxDepth int) (graphstore.Traversal, error) {
	var trav graphstore.Traversal
	for _, e := range f.edges {
		if e.Target != rootID {
			continue
		}
		trav.Edges = append(trav.Edges, e)
		if n, ok := f.nodeByID(e.Source); ok {
			trav.Nodes = append(trav.Nodes, n)
		}
	}
	if root, ok := f.nodeByID(rootID); ok {
		trav.Nodes = append(trav.Nodes, root)
	}
	return trav, nil
}

// QueryPaths returns the single direct edge fromID->toID, if any.
func (f *fakeStore) QueryPaths(fromID, toID string, edgeTypes []model.EdgeType, maxDepth, maxPaths int) ([]graphstore.Path, error) {
	for _, e := range f.edges {
		if e.Source == fromID && e.Target == toID {
			return []graphstore.Path{{Edges: []model.Edge{e}}}, nil
		}
	}
	return nil, nil
}

// AliasEdgesFor returns nothing; none of the fixtures below exercise
// ALIAS_FOR substitution.
func (f *fakeStore) AliasEdgesFor(nodeIDs []string) ([]model.Edge, error) {
	return nil, nil
}

// ConnectSeeds returns every node reachable as a direct target from more
// than one seed.
func (f *fakeStore) ConnectSeeds(seedIDs []string, edgeTypes []model.EdgeType, maxDepth int) ([]string, error) {
	reachedBy := make(map[string]map[string]bool)
	for _, seed := range seedIDs {
		for _, e := range f.edges {
			if e.Source != seed {
				continue
			}
			if reachedBy[e.Target] == nil {
				reachedBy[e.Target] = make(map[string]bool)
			}
			reachedBy[e.Target][seed] = true
		}
	}
	var meetings []string
	for target, seeds := range reachedBy {
		if len(seeds) > 1 {
			meetings = append(meetings, target)
		}
	}
	return meetings, nil
}

func svcFixture() *fakeStore {
	return &fakeStore{
		nodes: []model.Node{
			{ID: "a.ts:Function:greet", Name: "greet", FilePath: "a.ts", Type: model.NodeFunction},
			{ID: "a.ts:Function:farewell", Name: "farewell", FilePath: "a.ts", Type: model.NodeFunction},
			{ID: "a.ts:Class:Svc", Name: "Svc", FilePath: "a.ts", Type: model.NodeClass},
			{ID: "a.ts:Method:Svc.save", Name: "save", FilePath: "a.ts", Type: model.NodeMethod},
			{ID: "a.ts:Method:Svc.load", Name: "load", FilePath: "a.ts", Type: model.NodeMethod},
			{ID: "b.ts:Function:helper", Name: "helper", FilePath: "b.ts", Type: model.NodeFunction},
		},
		edges: []model.Edge{
			{Source: "a.ts:Function:greet", Target: "b.ts:Function:helper", Type: model.EdgeCalls},
			{Source: "a.ts:Method:Svc.save", Target: "b.ts:Function:helper", Type: model.EdgeCalls},
		},
	}
}

func newEngine(s *fakeStore) *Engine {
	return &Engine{Store: s, Resolver: &resolve.Resolver{Store: s}}
}

func TestDependenciesOf_SimpleTraversal(t *testing.T) {
	e := newEngine(svcFixture())

	res, err := e.DependenciesOf("a.ts", "greet", nil, 10, 100)
	if err != nil {
		t.Fatalf("DependenciesOf failed: %v", err)
	}
	if len(res.Edges) != 1 || res.Edges[0].Target != "b.ts:Function:helper" {
		t.Errorf("unexpected edges: %+v", res.Edges)
	}
	for _, n := range res.Nodes {
		if n.ID == "a.ts:Function:greet" {
			t.Errorf("root should not appear in nodes when resolved by file hint exact match: %+v", res.Nodes)
		}
	}
}

func TestDependenciesOf_UnknownSymbolReturnsMessage(t *testing.T) {
	e := newEngine(svcFixture())

	res, err := e.DependenciesOf("a.ts", "nope", nil, 10, 100)
	if err != nil {
		t.Fatalf("DependenciesOf failed: %v", err)
	}
	if res.Message == "" {
		t.Errorf("expected a not-found message, got %+v", res)
	}
}

func TestDependenciesOf_ClassMethodFallbackResolves(t *testing.T) {
	e := newEngine(svcFixture())

	res, err := e.DependenciesOf("a.ts", "Svc", nil, 10, 100)
	if err != nil {
		t.Fatalf("DependenciesOf failed: %v", err)
	}
	if len(res.Edges) != 1 || res.Edges[0].Source != "a.ts:Method:Svc.save" {
		t.Errorf("expected fallback to Svc.save's single edge, got %+v", res.Edges)
	}
	if !strings.Contains(res.Message, "Svc.save") {
		t.Errorf("expected fallback message naming Svc.save, got %q", res.Message)
	}
}

func TestDependenciesOf_ClassMethodFallbackAmbiguous(t *testing.T) {
	s := svcFixture()
	// Give Svc.load an edge too, so both methods connect.
	s.edges = append(s.edges, model.Edge{Source: "a.ts:Method:Svc.load", Target: "b.ts:Function:helper", Type: model.EdgeCalls})
	e := newEngine(s)

	res, err := e.DependenciesOf("a.ts", "Svc", nil, 10, 100)
	if err != nil {
		t.Fatalf("DependenciesOf failed: %v", err)
	}
	if len(res.Edges) != 0 || !strings.Contains(res.Message, "ambiguous") {
		t.Errorf("expected ambiguous fallback message, got %+v", res)
	}
}

func TestDependentsOf_SimpleTraversal(t *testing.T) {
	e := newEngine(svcFixture())

	res, err := e.DependentsOf("b.ts", "helper", nil, 10, 100)
	if err != nil {
		t.Fatalf("DependentsOf failed: %v", err)
	}
	if len(res.Edges) != 2 {
		t.Errorf("expected both callers of helper, got %+v", res.Edges)
	}
}

func TestPathsBetween_DirectForwardPath(t *testing.T) {
	e := newEngine(svcFixture())

	res, err := e.PathsBetween("a.ts", "greet", "b.ts", "helper", nil, 10, 100)
	if err != nil {
		t.Fatalf("PathsBetween failed: %v", err)
	}
	if len(res.Edges) != 1 || len(res.Nodes) != 2 {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestPathsBetween_RetriesInReverse(t *testing.T) {
	e := newEngine(svcFixture())

	// Swapped from/to: only b.ts:helper -> (nothing), but a.ts:greet -> b.ts:helper
	// exists, so passing (helper, greet) should retry in reverse and find it.
	res, err := e.PathsBetween("b.ts", "helper", "a.ts", "greet", nil, 10, 100)
	if err != nil {
		t.Fatalf("PathsBetween failed: %v", err)
	}
	if len(res.Edges) != 1 {
		t.Errorf("expected reverse retry to find the edge, got %+v", res)
	}
}

func TestPathsBetween_SameNodeIsAnError(t *testing.T) {
	e := newEngine(svcFixture())

	res, err := e.PathsBetween("a.ts", "greet", "a.ts", "greet", nil, 10, 100)
	if err != nil {
		t.Fatalf("PathsBetween failed: %v", err)
	}
	if !strings.Contains(res.Message, "same node") {
		t.Errorf("expected same-node message, got %+v", res)
	}
}

func TestPathsBetween_NoPathFound(t *testing.T) {
	e := newEngine(svcFixture())

	res, err := e.PathsBetween("a.ts", "farewell", "b.ts", "helper", nil, 10, 100)
	if err != nil {
		t.Fatalf("PathsBetween failed: %v", err)
	}
	if !strings.Contains(res.Message, "no path") {
		t.Errorf("expected no-path message, got %+v", res)
	}
}

func TestConnectSeeds_FindsMeetingPointAndUnionsEdges(t *testing.T) {
	e := newEngine(svcFixture())

	res, err := e.ConnectSeeds([]string{"a.ts:Function:greet", "a.ts:Method:Svc.save"}, nil, 0)
	if err != nil {
		t.Fatalf("ConnectSeeds failed: %v", err)
	}
	if len(res.Edges) != 2 {
		t.Errorf("expected both seed->helper edges, got %+v", res.Edges)
	}
	foundHelper := false
	for _, n := range res.Nodes {
		if n.ID == "b.ts:Function:helper" {
			foundHelper = true
		}
	}
	if !foundHelper {
		t.Errorf("expected meeting-point node in result, got %+v", res.Nodes)
	}
}

func TestConnectSeeds_NoMeetingPointIsEmpty(t *testing.T) {
	e := newEngine(svcFixture())

	res, err := e.ConnectSeeds([]string{"a.ts:Function:greet"}, nil, 0)
	if err != nil {
		t.Fatalf("ConnectSeeds failed: %v", err)
	}
	if len(res.Edges) != 0 || len(res.Nodes) != 0 {
		t.Errorf("expected empty result for a single seed, got %+v", res)
	}
}
