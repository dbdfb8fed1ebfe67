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

package extract

import "github.com/tsgraph/engine/internal/sourcetree"

// importEntry records one imported local name and whether it was imported
// type-only (either via `import type { X }` or `import { type X }`).
type importEntry struct {
	fromModule   string
	exportedName string
	typeOnly     bool
}

// importMap maps a local name (as used in this file) to its import entry.
type importMap map[string]importEntry

func buildImportMap(file *sourcetree.File) importMap {
	m := make(importMap)
	for _, decl := range file.Imports {
		for _, sym := range decl.Symbols {
			m[sym.LocalName] = importEntry{
				fromModule:   decl.FromModule,
				exportedName: sym.ExportedName,
				typeOnly:     decl.TypeOnly || sym.TypeOnly,
			}
		}
	}
	return m
}

// typeMap resolves a type name visible in the file to a node ID, preferring
// locally declared interfaces/type aliases/classes, falling back to the
// import map plus an optional project registry (§4.2.2).
type typeMap struct {
	ctx      Context
	local    map[string]string
	imports  importMap
}

func newTypeMap(ctx Context, local map[string]string, imports importMap) *typeMap {
	return &typeMap{ctx: ctx, local: local, imports: imports}
}

// resolve looks up a bare type/callee name (no generic arguments, no dots)
// and returns its node ID if known.
func (t *typeMap) resolve(name string) (string, bool) {
	if id, ok := t.local[name]; ok {
		return id, true
	}
	imp, ok := t.imports[name]
	if !ok {
		return "", false
	}
	if t.ctx.Registry == nil {
		return "", false
	}
	return t.ctx.Registry.ResolveImport(t.ctx.FilePath, imp.fromModule, imp.exportedName)
}

// isTypeOnlyImport reports whether name was brought in via a type-only
// import (affects whether it should be treated purely as a type reference).
func (t *typeMap) isTypeOnlyImport(name string) bool {
	imp, ok := t.imports[name]
	return ok && imp.typeOnly
}
