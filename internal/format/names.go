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

// Package format implements C11: rendering a query.Result as the "mcp" or
// "mermaid" text format described by §4.10 - graph layout, display-name
// disambiguation, and call-site-aware snippet extraction.
package format

import (
	"sort"
	"strings"

	"github.com/tsgraph/engine/internal/model"
)

// BuildAliasMap turns the ALIAS_FOR edges touching a result's nodes into a
// substitution table: synthetic "ReturnType<typeof X>" type names map to
// the name of the type alias declared for them.
func BuildAliasMap(aliasEdges []model.Edge, nodesByID map[string]model.Node) map[string]string {
	out := make(map[string]string, len(aliasEdges))
	for _, e := range aliasEdges {
		if e.Type != model.EdgeAliasFor {
			continue
		}
		aliasNode, ok := nodesByID[e.Source]
		if !ok {
			continue
		}
		syntheticNode, ok := nodesByID[e.Target]
		if !ok {
			continue
		}
		out[syntheticNode.Name] = aliasNode.Name
	}
	return out
}

// applyAlias substitutes a "ReturnType<typeof X>" occurrence - bare, or as
// the leading dotted segment of a qualified name - with its alias.
func applyAlias(name string, aliasMap map[string]string) string {
	for synthetic, alias := range aliasMap {
		if name == synthetic {
			return alias
		}
		prefix := synthetic + "."
		if strings.HasPrefix(name, prefix) {
			return alias + "." + strings.TrimPrefix(name, prefix)
		}
	}
	return name
}

// DisplayNames computes a unique display name per node ID per §4.10:
// start from the (alias-substituted) node name; disambiguate collisions
// first by node type, then by minimal unique file-path suffix, then by
// both.
func DisplayNames(nodes []model.Node, aliasMap map[string]string) map[string]string {
	base := make(map[string]string, len(nodes))
	groups := make(map[string][]model.Node)
	for _, n := range nodes {
		name := applyAlias(n.Name, aliasMap)
		base[n.ID] = name
		groups[name] = append(groups[name], n)
	}

	out := make(map[string]string, len(nodes))
	for name, group := range groups {
		if len(group) == 1 {
			out[group[0].ID] = name
			continue
		}

		typesDiffer := false
		for _, n := range group[1:] {
			if n.Type != group[0].Type {
				typesDiffer = true
				break
			}
		}

		if !typesDiffer {
			assignFileSuffixLabels(out, group, name)
			continue
		}

		byLabel := make(map[string][]model.Node)
		for _, n := range group {
			label := name + " (" + string(n.Type) + ")"
			byLabel[label] = append(byLabel[label], n)
		}
		for label, sub := range byLabel {
			if len(sub) == 1 {
				out[sub[0].ID] = label
				continue
			}
			assignFileSuffixLabels(out, sub, label)
		}
	}
	return out
}

// assignFileSuffixLabels disambiguates a collision group sharing baseLabel
// by appending the fewest trailing file-path segments that make every
// member's path unique within the group.
func assignFileSuffixLabels(out map[string]string, group []model.Node, baseLabel string) {
	paths := make([]string, len(group))
	for i, n := range group {
		paths[i] = n.FilePath
	}
	suffixes := minimalUniqueSuffixes(paths)
	for i, n := range group {
		out[n.ID] = baseLabel + " (" + suffixes[i] + ")"
	}
}

// minimalUniqueSuffixes returns, for each path, the shortest trailing
// run of "/"-separated segments that distinguishes it from every other
// path in the slice. Falls back to the full path when even that does
// not separate two identical paths.
func minimalUniqueSuffixes(paths []string) []string {
	split := make([][]string, len(paths))
	maxSegs := 0
	for i, p := range paths {
		split[i] = strings.Split(p, "/")
		if len(split[i]) > maxSegs {
			maxSegs = len(split[i])
		}
	}

	for k := 1; k <= maxSegs; k++ {
		suffixes := make([]string, len(paths))
		seen := make(map[string]int, len(paths))
		for i, segs := range split {
			suffixes[i] = trailingSegments(segs, k)
			seen[suffixes[i]]++
		}
		unique := true
		for _, count := range seen {
			if count > 1 {
				unique = false
				break
			}
		}
		if unique {
			return suffixes
		}
	}
	return paths
}

func trailingSegments(segs []string, k int) string {
	if k >= len(segs) {
		return strings.Join(segs, "/")
	}
	return strings.Join(segs[len(segs)-k:], "/")
}

// sortedNodeIDs returns node IDs in deterministic lexical order.
func sortedNodeIDs(nodes []model.Node) []string {
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	sort.Strings(ids)
	return ids
}
