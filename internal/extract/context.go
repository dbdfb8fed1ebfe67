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

// Package extract walks a parsed source file (internal/sourcetree) and
// emits the node set and edge set of internal/model (spec C3). It depends
// only on sourcetree and internal/ids/internal/model; it never consults the
// graph store.
package extract

// ProjectRegistry resolves an imported symbol, as seen from a given file, to
// the node ID that defines it elsewhere in the project. It is built and
// owned by the ingestion orchestrator (C7), which accumulates each file's
// exported symbols as it extracts them; the extractor never queries the
// graph store directly, only this registry. A nil registry (or one that
// never resolves) degrades gracefully: cross-file edges are simply not
// produced and the extractor falls back to within-file resolution only.
type ProjectRegistry interface {
	ResolveImport(fromFile, fromModule, symbolName string) (nodeID string, ok bool)
}

// Context is the extraction context for one file.
type Context struct {
	FilePath string
	Package  string
	Registry ProjectRegistry
}

// builtinGenericWrappers is the fixed set of generic/wrapper types TAKES and
// RETURNS edge extraction descends into rather than stopping at (§4.2.2).
var builtinGenericWrappers = map[string]bool{
	"Array": true, "Map": true, "Set": true, "Promise": true, "Date": true,
	"RegExp": true, "Error": true, "Function": true, "Object": true,
	"String": true, "Number": true, "Boolean": true, "Symbol": true,
	"BigInt": true, "WeakMap": true, "WeakSet": true,
}

// primitiveKeywords is the fixed set of primitive type keywords TAKES and
// RETURNS edge extraction skips entirely.
var primitiveKeywords = map[string]bool{
	"string": true, "number": true, "boolean": true, "void": true,
	"undefined": true, "null": true, "never": true, "unknown": true,
	"any": true, "object": true, "bigint": true, "symbol": true, "this": true,
}

func isBuiltinGenericWrapper(name string) bool { return builtinGenericWrappers[name] }
func isPrimitiveKeyword(name string) bool      { return primitiveKeywords[name] }
