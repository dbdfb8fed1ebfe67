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
	"strings"

	"github.com/tsgraph/engine/internal/model"
)

// maxSymbolMatches bounds find_nodes_by_symbol's result size (§4.1).
const maxSymbolMatches = 10

// symbolPathOf extracts the `{symbolPath}` component of a
// `{file_path}:{type}:{symbolPath}` node ID (§3.1); file_path is always
// forward-slash normalized and never contains a colon, so the first two
// colons unambiguously delimit it.
func symbolPathOf(id string) string {
	parts := strings.SplitN(id, ":", 3)
	if len(parts) == 3 {
		return parts[2]
	}
	return ""
}

// hasSymbolSegment reports whether any dot-delimited segment of
// symbolPath equals symbol exactly (§4.1's "symbol-path segment equals
// symbol" clause).
func hasSymbolSegment(symbolPath, symbol string) bool {
	if symbolPath == "" {
		return false
	}
	for _, seg := range strings.Split(symbolPath, ".") {
		if seg == symbol {
			return true
		}
	}
	return false
}

// FindNodesBySymbol resolves a bare or dotted symbol name to candidate
// nodes. Matching order per §4.1: case-insensitive name match first,
// then a symbol-path that ends with ".{symbol}" (method lookup by
// class-qualified name), then a symbol-path with a segment equal to
// symbol. Results are capped at maxSymbolMatches and sorted by (rank,
// then file path, then start line) for determinism.
func (s *Store) FindNodesBySymbol(symbol string) ([]model.Node, error) {
	res, err := s.db.RunReadOnly(
		`?[id, type, name, package, file_path, start_line, end_line, exported, content_hash, snippet, payload] :=
			*cie_node{id, type, name, package, file_path, start_line, end_line, exported, content_hash, snippet, payload}`,
		nil)
	if err != nil {
		return nil, fmt.Errorf("find nodes by symbol: %w", err)
	}

	type candidate struct {
		node model.Node
		rank int
	}
	suffix := "." + symbol

	var candidates []candidate
	for _, row := range res.Rows {
		n, err := decodeNode(row)
		if err != nil {
			return nil, err
		}
		sp := symbolPathOf(n.ID)
		switch {
		case n.Name == symbol:
			candidates = append(candidates, candidate{n, 0})
		case strings.EqualFold(n.Name, symbol):
			candidates = append(candidates, candidate{n, 1})
		case sp != "" && strings.HasSuffix(sp, suffix):
			candidates = append(candidates, candidate{n, 2})
		case hasSymbolSegment(sp, symbol):
			candidates = append(candidates, candidate{n, 3})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].rank != candidates[j].rank {
			return candidates[i].rank < candidates[j].rank
		}
		if candidates[i].node.FilePath != candidates[j].node.FilePath {
			return candidates[i].node.FilePath < candidates[j].node.FilePath
		}
		return candidates[i].node.StartLine < candidates[j].node.StartLine
	})

	out := make([]model.Node, 0, maxSymbolMatches)
	for _, c := range candidates {
		if len(out) >= maxSymbolMatches {
			break
		}
		out = append(out, c.node)
	}
	return out, nil
}
