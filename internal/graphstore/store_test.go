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

//go:build cgo

package graphstore

import (
	"testing"

	"github.com/tsgraph/engine/internal/model"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open("mem", "")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleNode(id, name, filePath string) model.Node {
	return model.Node{
		ID:       id,
		Type:     model.NodeFunction,
		Name:     name,
		FilePath: filePath,
		Exported: true,
	}
}

func TestAddNodes_UpsertReplaces(t *testing.T) {
	store := setupTestStore(t)

	n := sampleNode("a.ts:Function:foo", "foo", "a.ts")
	if err := store.AddNodes([]model.Node{n}); err != nil {
		t.Fatalf("AddNodes failed: %v", err)
	}

	n.ReturnType = "string"
	if err := store.AddNodes([]model.Node{n}); err != nil {
		t.Fatalf("AddNodes (re-add) failed: %v", err)
	}

	got, ok, err := store.GetNode(n.ID)
	if err != nil {
		t.Fatalf("GetNode failed: %v", err)
	}
	if !ok {
		t.Fatal("expected node to be found")
	}
	if got.ReturnType != "string" {
		t.Errorf("expected upsert to replace return type, got %q", got.ReturnType)
	}
}

func TestAllNodes_ReturnsEveryNode(t *testing.T) {
	store := setupTestStore(t)

	a := sampleNode("a.ts:Function:foo", "foo", "a.ts")
	b := sampleNode("b.ts:Function:bar", "bar", "b.ts")
	if err := store.AddNodes([]model.Node{a, b}); err != nil {
		t.Fatalf("AddNodes failed: %v", err)
	}

	got, err := store.AllNodes()
	if err != nil {
		t.Fatalf("AllNodes failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(got))
	}
}

func TestAllNodes_EmptyStore(t *testing.T) {
	store := setupTestStore(t)
	got, err := store.AllNodes()
	if err != nil {
		t.Fatalf("AllNodes failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no nodes, got %d", len(got))
	}
}

func TestGetNodes_EmptyInput(t *testing.T) {
	store := setupTestStore(t)
	nodes, err := store.GetNodes(nil)
	if err != nil {
		t.Fatalf("GetNodes(nil) failed: %v", err)
	}
	if len(nodes) != 0 {
		t.Errorf("expected empty result, got %d nodes", len(nodes))
	}
}

func TestRemoveFileNodes_RemovesIncidentEdges(t *testing.T) {
	store := setupTestStore(t)

	a := sampleNode("a.ts:Function:foo", "foo", "a.ts")
	b := sampleNode("b.ts:Function:bar", "bar", "b.ts")
	if err := store.AddNodes([]model.Node{a, b}); err != nil {
		t.Fatalf("AddNodes failed: %v", err)
	}
	edge := model.Edge{Source: a.ID, Target: b.ID, Type: model.EdgeCalls, CallCount: 1}
	if err := store.AddEdges([]model.Edge{edge}); err != nil {
		t.Fatalf("AddEdges failed: %v", err)
	}

	if err := store.RemoveFileNodes("a.ts"); err != nil {
		t.Fatalf("RemoveFileNodes failed: %v", err)
	}

	if _, ok, _ := store.GetNode(a.ID); ok {
		t.Error("expected node a to be removed")
	}
	if _, ok, _ := store.GetNode(b.ID); !ok {
		t.Error("expected node b to survive")
	}

	res, err := store.QueryDependents(b.ID, nil, 0)
	if err != nil {
		t.Fatalf("QueryDependents failed: %v", err)
	}
	if len(res.Edges) != 0 {
		t.Errorf("expected no surviving edges touching removed node, got %d", len(res.Edges))
	}
}

func TestQueryDependencies_MultiHop(t *testing.T) {
	store := setupTestStore(t)

	a := sampleNode("a.ts:Function:a", "a", "a.ts")
	b := sampleNode("a.ts:Function:b", "b", "a.ts")
	c := sampleNode("a.ts:Function:c", "c", "a.ts")
	if err := store.AddNodes([]model.Node{a, b, c}); err != nil {
		t.Fatalf("AddNodes failed: %v", err)
	}
	edges := []model.Edge{
		{Source: a.ID, Target: b.ID, Type: model.EdgeCalls},
		{Source: b.ID, Target: c.ID, Type: model.EdgeCalls},
	}
	if err := store.AddEdges(edges); err != nil {
		t.Fatalf("AddEdges failed: %v", err)
	}

	res, err := store.QueryDependencies(a.ID, nil, 0)
	if err != nil {
		t.Fatalf("QueryDependencies failed: %v", err)
	}
	if len(res.Edges) != 2 {
		t.Errorf("expected 2 reachable edges, got %d", len(res.Edges))
	}

	shallow, err := store.QueryDependencies(a.ID, nil, 1)
	if err != nil {
		t.Fatalf("QueryDependencies (depth 1) failed: %v", err)
	}
	if len(shallow.Edges) != 1 {
		t.Errorf("expected 1 edge at depth 1, got %d", len(shallow.Edges))
	}
}

func TestQueryPaths_ShortestFirstDespiteDFSDiscoveryOrder(t *testing.T) {
	store := setupTestStore(t)

	a := sampleNode("a.ts:Function:a", "a", "a.ts")
	b := sampleNode("a.ts:Function:b", "b", "a.ts")
	c := sampleNode("a.ts:Function:c", "c", "a.ts")
	m := sampleNode("a.ts:Function:m", "m", "a.ts")
	d := sampleNode("a.ts:Function:d", "d", "a.ts")
	if err := store.AddNodes([]model.Node{a, b, c, m, d}); err != nil {
		t.Fatalf("AddNodes failed: %v", err)
	}
	// Adjacency at a sorts b before c, so a naive depth-bounded DFS that
	// stops as soon as it fills maxPaths would discover the longer a->b->m->d
	// route before the shorter a->c->d one.
	edges := []model.Edge{
		{Source: a.ID, Target: b.ID, Type: model.EdgeCalls},
		{Source: b.ID, Target: m.ID, Type: model.EdgeCalls},
		{Source: m.ID, Target: d.ID, Type: model.EdgeCalls},
		{Source: a.ID, Target: c.ID, Type: model.EdgeCalls},
		{Source: c.ID, Target: d.ID, Type: model.EdgeCalls},
	}
	if err := store.AddEdges(edges); err != nil {
		t.Fatalf("AddEdges failed: %v", err)
	}

	got, err := store.QueryPaths(a.ID, d.ID, nil, 0, 1)
	if err != nil {
		t.Fatalf("QueryPaths failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected exactly 1 path, got %d", len(got))
	}
	if len(got[0].Edges) != 2 {
		t.Fatalf("expected the shorter 2-edge path a->c->d, got %d edges", len(got[0].Edges))
	}
	if got[0].Edges[0].Target != c.ID {
		t.Errorf("expected the path to go through c, got first hop to %q", got[0].Edges[0].Target)
	}
}

func TestFindNodesBySymbol_ExactBeforeFuzzy(t *testing.T) {
	store := setupTestStore(t)
	exact := sampleNode("a.ts:Function:Widget", "Widget", "a.ts")
	fuzzy := sampleNode("b.ts:Function:widgetFactory", "widgetFactory", "b.ts")
	if err := store.AddNodes([]model.Node{fuzzy, exact}); err != nil {
		t.Fatalf("AddNodes failed: %v", err)
	}

	got, err := store.FindNodesBySymbol("Widget")
	if err != nil {
		t.Fatalf("FindNodesBySymbol failed: %v", err)
	}
	if len(got) == 0 || got[0].ID != exact.ID {
		t.Errorf("expected exact match first, got %+v", got)
	}
}
