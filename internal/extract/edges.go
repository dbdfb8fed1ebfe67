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

import (
	"strings"

	"github.com/tsgraph/engine/internal/model"
	"github.com/tsgraph/engine/internal/sourcetree"
)

// callableIndex resolves a callee expression to a node ID, using locally
// defined callables first (§4.2.2 point 1) and falling back to the typeMap
// (local types + import map + project registry, point 2).
type callableIndex struct {
	byName      map[string]string // bare top-level function name -> ID
	byQualified map[string]string // "Owner.member" -> ID (class/object/factory methods)
	tm          *typeMap
}

func newCallableIndex(b *nodeBuilder, tm *typeMap) *callableIndex {
	idx := &callableIndex{byName: make(map[string]string), byQualified: make(map[string]string), tm: tm}
	for _, n := range b.nodes {
		if n.Type != model.NodeFunction && n.Type != model.NodeMethod {
			continue
		}
		if strings.Contains(n.Name, ".") {
			// already-qualified synthetic names are not expected here; Name
			// is the last segment (see §3.2). Qualification is tracked via
			// the node ID's symbol path instead.
		}
		symbolPath := n.ID[strings.LastIndex(n.ID, ":")+1:]
		if strings.Contains(symbolPath, ".") {
			idx.byQualified[symbolPath] = n.ID
		} else {
			idx.byName[symbolPath] = n.ID
		}
	}
	return idx
}

// resolve resolves a callee expression like "foo", "obj.method", or
// "this.method" (ownerClass is the enclosing class/object name, empty for
// top-level functions).
func (idx *callableIndex) resolve(ownerClass, callee string) (string, bool) {
	if !strings.Contains(callee, ".") {
		if id, ok := idx.byName[callee]; ok {
			return id, true
		}
		if id, ok := idx.tm.resolve(callee); ok {
			return id, true
		}
		return "", false
	}

	parts := strings.SplitN(callee, ".", 2)
	prefix, member := parts[0], parts[1]
	if strings.Contains(member, ".") {
		member = member[strings.LastIndex(member, ".")+1:]
	}

	if prefix == "this" && ownerClass != "" {
		if id, ok := idx.byQualified[ownerClass+"."+member]; ok {
			return id, true
		}
		return "", false
	}
	if id, ok := idx.byQualified[prefix+"."+member]; ok {
		return id, true
	}
	// Qualified call through an imported namespace/object, e.g.
	// "importedThing.method" where importedThing is an imported binding.
	if id, ok := idx.tm.resolve(prefix); ok {
		return id, true
	}
	return "", false
}

// buildEdges runs the edge-extraction pass (§4.2.2) over the nodes produced
// by buildNodes, using the file's import map and (optionally) the project
// registry for cross-file resolution.
func buildEdges(ctx Context, file *sourcetree.File, b *nodeBuilder) []model.Edge {
	imports := buildImportMap(file)
	tm := newTypeMap(ctx, b.localTypes, imports)
	callables := newCallableIndex(b, tm)

	var edges []model.Edge

	for _, fn := range file.Functions {
		id := b.id(model.NodeFunction, fn.Name)
		edges = append(edges, emitTakesReturns(id, fn.Params, fn.ReturnType.Text, tm)...)
		edges = append(edges, emitBodyEdges(id, "", callables, fn.Body)...)
	}

	for _, cl := range file.Classes {
		classID := b.id(model.NodeClass, cl.Name)
		if cl.Extends != "" {
			if targetID, ok := tm.resolve(normalizeTypeText(cl.Extends)); ok {
				edges = append(edges, model.Edge{Source: classID, Target: targetID, Type: model.EdgeExtends})
			}
		}
		for _, impl := range cl.Implements {
			if targetID, ok := tm.resolve(normalizeTypeText(impl)); ok {
				edges = append(edges, model.Edge{Source: classID, Target: targetID, Type: model.EdgeImplements})
			}
		}
		for _, p := range cl.Properties {
			edges = append(edges, emitHasProperty(classID, p, tm)...)
		}
		for _, m := range cl.Methods {
			methodID := b.id(model.NodeMethod, cl.Name+"."+m.Name)
			edges = append(edges, emitTakesReturns(methodID, m.Params, m.ReturnType.Text, tm)...)
			edges = append(edges, emitBodyEdges(methodID, cl.Name, callables, m.Body)...)
		}
	}

	for _, iface := range file.Interfaces {
		ifaceID := b.id(model.NodeInterface, iface.Name)
		for _, ext := range iface.Extends {
			if targetID, ok := tm.resolve(normalizeTypeText(ext)); ok {
				edges = append(edges, model.Edge{Source: ifaceID, Target: targetID, Type: model.EdgeExtends})
			}
		}
		for _, p := range iface.Properties {
			edges = append(edges, emitHasProperty(ifaceID, p, tm)...)
		}
	}

	for _, ta := range file.TypeAlias {
		aliasID := b.id(model.NodeTypeAlias, ta.Name)
		if factoryName, ok := returnTypeOfFactoryAlias(ta.AliasedTo.Text); ok {
			if syntheticID, ok := b.factoryReturnID[factoryName]; ok {
				edges = append(edges, model.Edge{Source: aliasID, Target: syntheticID, Type: model.EdgeAliasFor})
			}
		}
	}

	for _, v := range file.Variables {
		switch {
		case v.IsFunction && v.Function != nil:
			id := b.id(model.NodeFunction, v.Name)
			edges = append(edges, emitTakesReturns(id, v.Function.Params, v.Function.ReturnType.Text, tm)...)
			edges = append(edges, emitBodyEdges(id, "", callables, v.Function.Body)...)

		case v.Factory != nil:
			if v.Function != nil {
				id := b.id(model.NodeFunction, v.Name)
				edges = append(edges, emitTakesReturns(id, v.Function.Params, v.Function.ReturnType.Text, tm)...)
				edges = append(edges, emitBodyEdges(id, "", callables, v.Function.Body)...)
				// Factory functions without an explicit return type emit a
				// RETURNS edge to the synthetic node (§4.2.2).
				if normalizeTypeText(v.Function.ReturnType.Text) == "" {
					if syntheticID, ok := b.factoryReturnID[v.Name]; ok {
						edges = append(edges, model.Edge{Source: id, Target: syntheticID, Type: model.EdgeReturns})
					}
				}
			}
			synthName := "ReturnType<typeof " + v.Name + ">"
			synthOwner := synthName
			for _, m := range v.Factory.Methods {
				methodID := b.id(model.NodeFunction, synthOwner+"."+m.Name)
				edges = append(edges, emitTakesReturns(methodID, m.Params, m.ReturnType.Text, tm)...)
				edges = append(edges, emitBodyEdges(methodID, synthOwner, callables, m.Body)...)
			}

		case len(v.ObjectLit) > 0:
			for _, m := range v.ObjectLit {
				methodID := b.id(model.NodeFunction, v.Name+"."+m.Name)
				edges = append(edges, emitTakesReturns(methodID, m.Params, m.ReturnType.Text, tm)...)
				edges = append(edges, emitBodyEdges(methodID, v.Name, callables, m.Body)...)
			}

		default:
			varID := b.id(model.NodeVariable, v.Name)
			if t := normalizeTypeText(v.Type.Text); t != "" {
				if targetID, ok := tm.resolve(baseTypeName(t)); ok {
					edges = append(edges, model.Edge{Source: varID, Target: targetID, Type: model.EdgeHasType})
				}
			}
		}
	}

	return dedupeEdges(edges)
}

// baseTypeName strips generic arguments and array/optional markers to get
// the head name used for type-map lookups, e.g. "Array<Foo>" -> "Array",
// "Foo[]" -> "Foo", "Foo | null" -> "Foo" (first union member).
func baseTypeName(t string) string {
	t = strings.TrimSpace(t)
	t = strings.TrimSuffix(t, "[]")
	if head, _, ok := genericHead(t); ok {
		return head
	}
	if i := strings.IndexAny(t, "|&"); i >= 0 {
		return strings.TrimSpace(t[:i])
	}
	return t
}

// emitTakesReturns emits TAKES edges for each parameter type and a RETURNS
// edge for the return type, descending into generic wrappers and skipping
// primitive keywords (§4.2.2).
func emitTakesReturns(nodeID string, params []sourcetree.Param, returnType string, tm *typeMap) []model.Edge {
	var edges []model.Edge
	for _, p := range params {
		edges = append(edges, resolveTypeRefEdges(nodeID, model.EdgeTakes, p.Type, tm)...)
	}
	edges = append(edges, resolveTypeRefEdges(nodeID, model.EdgeReturns, returnType, tm)...)
	return edges
}

func resolveTypeRefEdges(sourceID string, edgeType model.EdgeType, typeText string, tm *typeMap) []model.Edge {
	typeText = normalizeTypeText(typeText)
	if typeText == "" {
		return nil
	}
	var edges []model.Edge
	var walk func(t string)
	walk = func(t string) {
		t = strings.TrimSpace(strings.TrimSuffix(t, "[]"))
		if t == "" {
			return
		}
		if strings.ContainsAny(t, "|&") {
			for _, part := range strings.FieldsFunc(t, func(r rune) bool { return r == '|' || r == '&' }) {
				walk(part)
			}
			return
		}
		head, inner, hasGeneric := genericHead(t)
		if hasGeneric && isBuiltinGenericWrapper(head) {
			for _, arg := range splitGenericArgs(inner) {
				walk(arg)
			}
			return
		}
		if isPrimitiveKeyword(head) {
			return
		}
		if targetID, ok := tm.resolve(head); ok {
			edges = append(edges, model.Edge{Source: sourceID, Target: targetID, Type: edgeType})
		}
	}
	walk(typeText)
	return edges
}

func emitHasProperty(ownerID string, p sourcetree.PropertyDecl, tm *typeMap) []model.Edge {
	return resolveTypeRefEdges(ownerID, model.EdgeHasProperty, p.Type.Text, tm)
}

// emitBodyEdges emits CALLS (aggregated per target with call sites),
// REFERENCES, and INCLUDES edges from a function-like body.
func emitBodyEdges(sourceID, ownerClass string, callables *callableIndex, body sourcetree.Body) []model.Edge {
	var edges []model.Edge

	callTargets := make(map[string]*model.Edge)
	var order []string
	for _, call := range body.Calls {
		targetID, ok := callables.resolve(ownerClass, call.Callee)
		if !ok {
			continue
		}
		e, exists := callTargets[targetID]
		if !exists {
			e = &model.Edge{Source: sourceID, Target: targetID, Type: model.EdgeCalls}
			callTargets[targetID] = e
			order = append(order, targetID)
		}
		e.CallCount++
		e.CallSites = append(e.CallSites, model.LineRange{StartLine: call.Range.StartLine, EndLine: call.Range.EndLine})
	}
	for _, targetID := range order {
		edges = append(edges, *callTargets[targetID])
	}

	for _, ref := range body.References {
		targetID, ok := callables.resolve(ownerClass, ref.Name)
		if !ok {
			continue
		}
		edges = append(edges, model.Edge{
			Source: sourceID, Target: targetID, Type: model.EdgeReferences,
			ReferenceContext: model.ReferenceContext(ref.Context),
		})
	}

	for _, comp := range body.Components {
		targetID, ok := callables.tm.resolve(comp.Name)
		if !ok {
			continue
		}
		edges = append(edges, model.Edge{Source: sourceID, Target: targetID, Type: model.EdgeIncludes})
	}

	return edges
}

func dedupeEdges(edges []model.Edge) []model.Edge {
	seen := make(map[string]bool, len(edges))
	out := edges[:0]
	for _, e := range edges {
		k := e.Key()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, e)
	}
	return out
}
