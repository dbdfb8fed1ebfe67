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

	"github.com/tsgraph/engine/internal/cozodb"
	"github.com/tsgraph/engine/internal/model"
)

// Store is the C2 graph store: a CozoDB-backed set of typed nodes and
// edges, with upsert semantics and recursive reachability queries.
type Store struct {
	db *cozodb.DB
}

// Open opens (creating if necessary) a graph store at path using engine
// ("mem", "sqlite", or "rocksdb"). A schema-version mismatch is reported
// via ErrSchemaMismatch so the caller can decide whether to wipe and
// reindex (§6).
func Open(engine, path string) (*Store, error) {
	db, err := cozodb.Open(engine, path, nil)
	if err != nil {
		return nil, fmt.Errorf("open cozodb: %w", err)
	}
	mismatch, err := EnsureSchema(&db)
	if err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	if mismatch {
		return &Store{db: &db}, ErrSchemaMismatch
	}
	return &Store{db: &db}, nil
}

// ErrSchemaMismatch is returned by Open when the on-disk schema version
// does not match SchemaVersion. The returned *Store is still usable for
// ClearAll followed by a fresh EnsureSchema-driven reindex.
var ErrSchemaMismatch = fmt.Errorf("graphstore: schema version mismatch, reindex required")

// Close releases the underlying database handle.
func (s *Store) Close() error {
	s.db.Close()
	return nil
}

type variantPayload struct {
	Params       []model.Param `json:"params,omitempty"`
	ReturnType   string        `json:"return_type,omitempty"`
	Async        bool          `json:"async,omitempty"`
	Extends      string        `json:"extends,omitempty"`
	ExtendsList  []string      `json:"extends_list,omitempty"`
	Implements   []string      `json:"implements,omitempty"`
	Visibility   string        `json:"visibility,omitempty"`
	Static       bool          `json:"static,omitempty"`
	AliasedType  string        `json:"aliased_type,omitempty"`
	VariableType string        `json:"variable_type,omitempty"`
	Const        bool          `json:"const,omitempty"`
}

func encodeNode(n model.Node) ([]any, error) {
	payload := variantPayload{
		Params: n.Params, ReturnType: n.ReturnType, Async: n.Async,
		Extends: n.Extends, ExtendsList: n.ExtendsList, Implements: n.Implements,
		Visibility: string(n.Visibility), Static: n.Static,
		AliasedType: n.AliasedType, VariableType: n.VariableType, Const: n.Const,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal node payload for %s: %w", n.ID, err)
	}
	return []any{
		n.ID, string(n.Type), n.Name, n.Package, n.FilePath,
		n.StartLine, n.EndLine, n.Exported, n.ContentHash, n.Snippet,
		json.RawMessage(raw),
	}, nil
}

func decodeNode(row []any) (model.Node, error) {
	if len(row) < 11 {
		return model.Node{}, fmt.Errorf("decode node: expected 11 columns, got %d", len(row))
	}
	n := model.Node{
		ID:          str(row[0]),
		Type:        model.NodeType(str(row[1])),
		Name:        str(row[2]),
		Package:     str(row[3]),
		FilePath:    str(row[4]),
		StartLine:   toInt(row[5]),
		EndLine:     toInt(row[6]),
		Exported:    toBool(row[7]),
		ContentHash: str(row[8]),
		Snippet:     str(row[9]),
	}
	var payload variantPayload
	if raw, ok := row[10].(string); ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return model.Node{}, fmt.Errorf("unmarshal node payload for %s: %w", n.ID, err)
		}
	} else if m, ok := row[10].(map[string]any); ok {
		raw, _ := json.Marshal(m)
		if err := json.Unmarshal(raw, &payload); err != nil {
			return model.Node{}, fmt.Errorf("unmarshal node payload for %s: %w", n.ID, err)
		}
	}
	n.Params = payload.Params
	n.ReturnType = payload.ReturnType
	n.Async = payload.Async
	n.Extends = payload.Extends
	n.ExtendsList = payload.ExtendsList
	n.Implements = payload.Implements
	n.Visibility = model.Visibility(payload.Visibility)
	n.Static = payload.Static
	n.AliasedType = payload.AliasedType
	n.VariableType = payload.VariableType
	n.Const = payload.Const
	return n, nil
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func toInt(v any) int {
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	}
	return 0
}

func toBool(v any) bool {
	b, _ := v.(bool)
	return b
}

// AddNodes upserts a batch of nodes in a single transaction. Re-adding a
// node with the same ID replaces it entirely (§3.2 upsert semantics).
func (s *Store) AddNodes(nodes []model.Node) error {
	if len(nodes) == 0 {
		return nil
	}
	rows := make([]any, 0, len(nodes))
	for _, n := range nodes {
		row, err := encodeNode(n)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}
	script := `?[id, type, name, package, file_path, start_line, end_line, exported, content_hash, snippet, payload] <- $rows
		:put cie_node { id => type, name, package, file_path, start_line, end_line, exported, content_hash, snippet, payload }`
	_, err := s.db.Run(script, map[string]any{"rows": rows})
	if err != nil {
		return fmt.Errorf("add nodes: %w", err)
	}
	return nil
}

func encodeEdge(e model.Edge) ([]any, error) {
	sitesRaw, err := json.Marshal(e.CallSites)
	if err != nil {
		return nil, fmt.Errorf("marshal call sites: %w", err)
	}
	return []any{
		e.Source, e.Target, string(e.Type),
		e.CallCount, json.RawMessage(sitesRaw), string(e.ReferenceContext), string(e.Context),
	}, nil
}

// AddEdges upserts a batch of edges in a single transaction. Re-adding an
// edge with the same (source, target, type) replaces its metadata
// (call_count, call_sites, context) rather than duplicating the edge.
func (s *Store) AddEdges(edges []model.Edge) error {
	if len(edges) == 0 {
		return nil
	}
	rows := make([]any, 0, len(edges))
	for _, e := range edges {
		row, err := encodeEdge(e)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}
	script := `?[source, target, type, call_count, call_sites, reference_context, context] <- $rows
		:put cie_edge { source, target, type => call_count, call_sites, reference_context, context }`
	_, err := s.db.Run(script, map[string]any{"rows": rows})
	if err != nil {
		return fmt.Errorf("add edges: %w", err)
	}
	return nil
}

// RemoveFileNodes removes every node whose file_path equals filePath, then
// every edge incident to one of those nodes, as two separate statements.
// Between them (or after a crash between them) those edges are dangling in
// the stored relation; see DESIGN.md for the chosen dangling-edge policy
// (eager sweep, not lazy join-filtering, for removal - traversal reads
// still defensively join against cie_node so a dangling edge is never
// returned).
func (s *Store) RemoveFileNodes(filePath string) error {
	ids, err := s.nodeIDsForFile(filePath)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	idRows := make([]any, len(ids))
	for i, id := range ids {
		idRows[i] = []any{id}
	}
	if _, err := s.db.Run(`?[id] <- $ids :rm cie_node { id }`, map[string]any{"ids": idRows}); err != nil {
		return fmt.Errorf("remove file nodes: %w", err)
	}
	if err := s.removeEdgesTouching(ids); err != nil {
		return err
	}
	return nil
}

// NodeIDsForFile returns every node ID currently recorded for filePath.
// Used by callers (the search index removal step of the ingestion
// pipeline) that need the same ID set RemoveFileNodes operates on.
func (s *Store) NodeIDsForFile(filePath string) ([]string, error) {
	return s.nodeIDsForFile(filePath)
}

// NodesInFile returns every node currently recorded for filePath. Used by
// the symbol resolver (C9) both for the exact file+symbol lookup and for
// composing "available symbols in this file" not-found messages.
func (s *Store) NodesInFile(filePath string) ([]model.Node, error) {
	ids, err := s.nodeIDsForFile(filePath)
	if err != nil {
		return nil, err
	}
	return s.GetNodes(ids)
}

// AliasEdgesFor returns every ALIAS_FOR edge touching at least one of the
// given node IDs. Used by the output formatter (C11) to build the
// alias_map it substitutes into rendered display names; ALIAS_FOR is in
// DefaultTraversalEdgeTypes, but a traversal only carries the ALIAS_FOR
// edges of its own reachable subgraph (and none when a narrower edge-type
// set is passed), so they are fetched separately.
func (s *Store) AliasEdgesFor(nodeIDs []string) ([]model.Edge, error) {
	all, err := s.edgesOfTypes([]model.EdgeType{model.EdgeAliasFor})
	if err != nil {
		return nil, err
	}
	want := make(map[string]bool, len(nodeIDs))
	for _, id := range nodeIDs {
		want[id] = true
	}
	out := make([]model.Edge, 0, len(all))
	for _, e := range all {
		if want[e.Source] || want[e.Target] {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) nodeIDsForFile(filePath string) ([]string, error) {
	res, err := s.db.RunReadOnly(`?[id] := *cie_node{id, file_path: $fp}`, map[string]any{"fp": filePath})
	if err != nil {
		return nil, fmt.Errorf("list file nodes: %w", err)
	}
	ids := make([]string, 0, len(res.Rows))
	for _, row := range res.Rows {
		ids = append(ids, str(row[0]))
	}
	return ids, nil
}

func (s *Store) removeEdgesTouching(ids []string) error {
	idSet := make([]any, len(ids))
	for i, id := range ids {
		idSet[i] = id
	}
	res, err := s.db.RunReadOnly(
		`?[source, target, type] := *cie_edge{source, target, type}, (source in $ids or target in $ids)`,
		map[string]any{"ids": idSet})
	if err != nil {
		return fmt.Errorf("find incident edges: %w", err)
	}
	if len(res.Rows) == 0 {
		return nil
	}
	rows := make([]any, 0, len(res.Rows))
	for _, r := range res.Rows {
		rows = append(rows, []any{r[0], r[1], r[2]})
	}
	_, err = s.db.Run(`?[source, target, type] <- $rows :rm cie_edge { source, target, type }`,
		map[string]any{"rows": rows})
	if err != nil {
		return fmt.Errorf("remove incident edges: %w", err)
	}
	return nil
}

// ClearAll empties the node and edge relations (used by full reindex).
func (s *Store) ClearAll() error {
	if _, err := s.db.Run(`?[id] := *cie_node{id} :rm cie_node { id }`, nil); err != nil {
		return fmt.Errorf("clear nodes: %w", err)
	}
	if _, err := s.db.Run(`?[source, target, type] := *cie_edge{source, target, type} :rm cie_edge { source, target, type }`, nil); err != nil {
		return fmt.Errorf("clear edges: %w", err)
	}
	return nil
}

// GetNode returns the node with the given ID, or ok=false if absent.
func (s *Store) GetNode(id string) (model.Node, bool, error) {
	nodes, err := s.GetNodes([]string{id})
	if err != nil || len(nodes) == 0 {
		return model.Node{}, false, err
	}
	return nodes[0], true, nil
}

// GetNodes looks up multiple node IDs in one query. Missing IDs are simply
// absent from the result (no error). An empty input returns an empty
// result without a round trip (§8 boundary behavior).
func (s *Store) GetNodes(ids []string) ([]model.Node, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	idRows := make([]any, len(ids))
	for i, id := range ids {
		idRows[i] = id
	}
	res, err := s.db.RunReadOnly(
		`?[id, type, name, package, file_path, start_line, end_line, exported, content_hash, snippet, payload] :=
			*cie_node{id, type, name, package, file_path, start_line, end_line, exported, content_hash, snippet, payload},
			id in $ids`,
		map[string]any{"ids": idRows})
	if err != nil {
		return nil, fmt.Errorf("get nodes: %w", err)
	}
	out := make([]model.Node, 0, len(res.Rows))
	for _, row := range res.Rows {
		n, err := decodeNode(row)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// AllNodes returns every node currently in the store. Used by CLI
// entry points that start a search or serve process against an
// already-indexed graph store and need to rebuild the in-memory search
// index (C6), which this package never persists itself.
func (s *Store) AllNodes() ([]model.Node, error) {
	res, err := s.db.RunReadOnly(
		`?[id, type, name, package, file_path, start_line, end_line, exported, content_hash, snippet, payload] :=
			*cie_node{id, type, name, package, file_path, start_line, end_line, exported, content_hash, snippet, payload}`,
		nil)
	if err != nil {
		return nil, fmt.Errorf("list all nodes: %w", err)
	}
	out := make([]model.Node, 0, len(res.Rows))
	for _, row := range res.Rows {
		n, err := decodeNode(row)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}
