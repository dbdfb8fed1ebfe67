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

// Package ids implements the canonical node-ID scheme shared by every
// other package in the engine: deterministic, collision-free within a
// single indexed repository, and a pure function of its inputs.
package ids

import "strings"

// NormalizePath converts a possibly Windows-style path into the forward-slash
// form every node ID and manifest entry uses.
func NormalizePath(path string) string {
	return strings.ReplaceAll(path, "\\", "/")
}

// NodeID builds the canonical `{path}:{type}:{symbolPath}` identifier for a
// node. filePath is normalized; nodeType and symbolPath are used verbatim
// (callers are expected to have already normalized whitespace in symbolPath).
func NodeID(filePath string, nodeType string, symbolPath string) string {
	return NormalizePath(filePath) + ":" + nodeType + ":" + symbolPath
}

// SyntheticTypeName builds the name of the anonymous return-object type
// synthesized for a factory function, e.g. "ReturnType<typeof createStore>".
func SyntheticTypeName(factoryName string) string {
	return "ReturnType<typeof " + factoryName + ">"
}

// MethodSymbolPath builds the dotted symbol path for a member of a parent
// symbol, e.g. ("UserService", "save") -> "UserService.save".
func MethodSymbolPath(parent, member string) string {
	return parent + "." + member
}

// ParsedSymbolPath is the result of splitting a dotted symbol path into its
// segments, e.g. "UserService.save" -> ["UserService", "save"].
type ParsedSymbolPath struct {
	Segments []string
}

// ParseSymbolPath splits a dotted symbol path into segments. It is a pure
// function: the same input always yields the same segments, and it performs
// no lookups against any store.
func ParseSymbolPath(symbolPath string) ParsedSymbolPath {
	if symbolPath == "" {
		return ParsedSymbolPath{}
	}
	return ParsedSymbolPath{Segments: strings.Split(symbolPath, ".")}
}

// LastSegment returns the final dotted segment of a symbol path, which is
// the node's display Name per the data model (the part after the last dot,
// or the whole string if there is no dot).
func (p ParsedSymbolPath) LastSegment() string {
	if len(p.Segments) == 0 {
		return ""
	}
	return p.Segments[len(p.Segments)-1]
}

// ParentSegment returns everything up to but excluding the last segment,
// e.g. "UserService.save" -> "UserService". Empty if there is no parent.
func (p ParsedSymbolPath) ParentSegment() string {
	if len(p.Segments) < 2 {
		return ""
	}
	return strings.Join(p.Segments[:len(p.Segments)-1], ".")
}

// IsMethodOf reports whether the symbol path's name segment equals name and
// its parent segment equals parent.
func (p ParsedSymbolPath) IsMethodOf(parent, name string) bool {
	return p.ParentSegment() == parent && p.LastSegment() == name
}
