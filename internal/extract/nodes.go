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
	"github.com/tsgraph/engine/internal/ids"
	"github.com/tsgraph/engine/internal/model"
	"github.com/tsgraph/engine/internal/sourcetree"
)

// nodeBuilder accumulates the node set for one file extraction and keeps the
// side-tables (type map, synthetic-factory index) the edge pass needs.
type nodeBuilder struct {
	ctx   Context
	nodes []model.Node

	// localTypes maps a type name visible in this file to its node ID:
	// interfaces, type aliases, classes (populated as phase 1 of the type
	// map per §4.2.2).
	localTypes map[string]string

	// factoryReturnID maps a factory function's name to the node ID of the
	// SyntheticType node representing its ReturnType<typeof X>.
	factoryReturnID map[string]string
}

func newNodeBuilder(ctx Context) *nodeBuilder {
	return &nodeBuilder{
		ctx:             ctx,
		localTypes:      make(map[string]string),
		factoryReturnID: make(map[string]string),
	}
}

func (b *nodeBuilder) id(nodeType model.NodeType, symbolPath string) string {
	return ids.NodeID(b.ctx.FilePath, string(nodeType), symbolPath)
}

func isExported(name string) bool {
	return len(name) > 0 && name[0] >= 'A' && name[0] <= 'Z'
}

// buildNodes performs the full top-down node-extraction pass (§4.2.1) and
// returns the builder (its nodes plus the local type map the edge pass
// needs) and a map keyed by every factory name, whose values are always
// nil; Extract discards that second result.
func buildNodes(ctx Context, file *sourcetree.File) (*nodeBuilder, map[string][]string) {
	b := newNodeBuilder(ctx)

	// Phase 1: top-level functions.
	for _, fn := range file.Functions {
		b.addFunction(fn.Name, fn)
	}

	// Phase 2: classes, then their methods and properties.
	for _, cl := range file.Classes {
		b.addClass(cl)
	}

	// Phase 3: interfaces, then their properties.
	for _, iface := range file.Interfaces {
		b.addInterface(iface)
	}

	// Phase 4: type aliases.
	for _, ta := range file.TypeAlias {
		b.addTypeAlias(ta)
	}

	// Phase 5: top-level variables (a function-valued initializer becomes a
	// Function node instead of a Variable node), and phase 6: object-literal
	// methods / factory-return methods.
	for _, v := range file.Variables {
		b.addVariable(v)
	}

	// objectMethodParents lists each factory name with a nil method list;
	// the edge pass resolves methods through node IDs instead.
	objectMethodParents := make(map[string][]string)
	for parent := range b.factoryReturnID {
		objectMethodParents[parent] = nil
	}

	return b, objectMethodParents
}

func (b *nodeBuilder) addFunction(name string, fn sourcetree.FunctionDecl) {
	id := b.id(model.NodeFunction, name)
	b.nodes = append(b.nodes, model.Node{
		ID:         id,
		Type:       model.NodeFunction,
		Name:       name,
		Package:    b.ctx.Package,
		FilePath:   b.ctx.FilePath,
		StartLine:  fn.Range.StartLine,
		EndLine:    fn.Range.EndLine,
		Exported:   fn.Exported || isExported(name),
		Params:     convertParams(fn.Params),
		ReturnType: normalizeTypeText(fn.ReturnType.Text),
		Async:      fn.Async,
	})
}

func convertParams(params []sourcetree.Param) []model.Param {
	if len(params) == 0 {
		return nil
	}
	out := make([]model.Param, len(params))
	for i, p := range params {
		out[i] = model.Param{Name: p.Name, Type: normalizeTypeText(p.Type)}
	}
	return out
}

func (b *nodeBuilder) addClass(cl sourcetree.ClassDecl) {
	classID := b.id(model.NodeClass, cl.Name)
	implements := make([]string, len(cl.Implements))
	for i, n := range cl.Implements {
		implements[i] = normalizeTypeText(n)
	}
	b.nodes = append(b.nodes, model.Node{
		ID:         classID,
		Type:       model.NodeClass,
		Name:       cl.Name,
		Package:    b.ctx.Package,
		FilePath:   b.ctx.FilePath,
		StartLine:  cl.Range.StartLine,
		EndLine:    cl.Range.EndLine,
		Exported:   cl.Exported || isExported(cl.Name),
		Extends:    normalizeTypeText(cl.Extends),
		Implements: implements,
	})
	b.localTypes[cl.Name] = classID

	for _, m := range cl.Methods {
		b.addMethod(cl.Name, m)
	}
}

func (b *nodeBuilder) addMethod(className string, m sourcetree.MethodDecl) {
	symbolPath := ids.MethodSymbolPath(className, m.Name)
	visibility := model.Visibility(m.Visibility)
	if visibility == "" {
		visibility = model.VisibilityPublic
	}
	b.nodes = append(b.nodes, model.Node{
		ID:         b.id(model.NodeMethod, symbolPath),
		Type:       model.NodeMethod,
		Name:       m.Name,
		Package:    b.ctx.Package,
		FilePath:   b.ctx.FilePath,
		StartLine:  m.Range.StartLine,
		EndLine:    m.Range.EndLine,
		Exported:   isExported(className),
		Params:     convertParams(m.Params),
		ReturnType: normalizeTypeText(m.ReturnType.Text),
		Async:      m.Async,
		Visibility: visibility,
		Static:     m.Static,
	})
}

func (b *nodeBuilder) addInterface(iface sourcetree.InterfaceDecl) {
	id := b.id(model.NodeInterface, iface.Name)
	extends := make([]string, len(iface.Extends))
	for i, n := range iface.Extends {
		extends[i] = normalizeTypeText(n)
	}
	b.nodes = append(b.nodes, model.Node{
		ID:          id,
		Type:        model.NodeInterface,
		Name:        iface.Name,
		Package:     b.ctx.Package,
		FilePath:    b.ctx.FilePath,
		StartLine:   iface.Range.StartLine,
		EndLine:     iface.Range.EndLine,
		Exported:    iface.Exported || isExported(iface.Name),
		ExtendsList: extends,
	})
	b.localTypes[iface.Name] = id
}

func (b *nodeBuilder) addTypeAlias(ta sourcetree.TypeAliasDecl) {
	id := b.id(model.NodeTypeAlias, ta.Name)
	b.nodes = append(b.nodes, model.Node{
		ID:          id,
		Type:        model.NodeTypeAlias,
		Name:        ta.Name,
		Package:     b.ctx.Package,
		FilePath:    b.ctx.FilePath,
		StartLine:   ta.Range.StartLine,
		EndLine:     ta.Range.EndLine,
		Exported:    ta.Exported || isExported(ta.Name),
		AliasedType: normalizeTypeText(ta.AliasedTo.Text),
	})
	b.localTypes[ta.Name] = id
}

func (b *nodeBuilder) addVariable(v sourcetree.VariableDecl) {
	switch {
	case v.IsFunction && v.Function != nil:
		// Function-valued initializer: emit a Function node instead of a
		// Variable node (§4.2.1).
		fn := *v.Function
		fn.Name = v.Name
		b.addFunction(v.Name, fn)
		return

	case v.Factory != nil:
		// Factory function: arrow/function-expression returning an object
		// literal. Emit the factory as a Function, plus a SyntheticType for
		// its return object, plus one Function node per returned method.
		if v.Function != nil {
			fn := *v.Function
			fn.Name = v.Name
			b.addFunction(v.Name, fn)
		}
		syntheticName := ids.SyntheticTypeName(v.Name)
		syntheticID := b.id(model.NodeSyntheticType, syntheticName)
		b.nodes = append(b.nodes, model.Node{
			ID:        syntheticID,
			Type:      model.NodeSyntheticType,
			Name:      syntheticName,
			Package:   b.ctx.Package,
			FilePath:  b.ctx.FilePath,
			StartLine: v.Factory.Range.StartLine,
			EndLine:   v.Factory.Range.EndLine,
			Exported:  isExported(v.Name),
		})
		b.factoryReturnID[v.Name] = syntheticID
		b.localTypes[syntheticName] = syntheticID
		for _, m := range v.Factory.Methods {
			b.addObjectMethod(syntheticName, m)
		}
		return

	case len(v.ObjectLit) > 0:
		// Plain object-literal variable: emit one Function node per method
		// property, named parentName.methodName, but no Variable node for
		// the object itself (it carries no independent type information
		// beyond its methods, mirroring the factory case).
		for _, m := range v.ObjectLit {
			b.addObjectMethod(v.Name, m)
		}
		return
	}

	id := b.id(model.NodeVariable, v.Name)
	b.nodes = append(b.nodes, model.Node{
		ID:           id,
		Type:         model.NodeVariable,
		Name:         v.Name,
		Package:      b.ctx.Package,
		FilePath:     b.ctx.FilePath,
		StartLine:    v.Range.StartLine,
		EndLine:      v.Range.EndLine,
		Exported:     v.Exported || isExported(v.Name),
		Const:        v.Const,
		VariableType: normalizeTypeText(v.Type.Text),
	})
	b.localTypes[v.Name] = id
}

func (b *nodeBuilder) addObjectMethod(parentName string, m sourcetree.ObjectMethod) {
	symbolPath := ids.MethodSymbolPath(parentName, m.Name)
	b.nodes = append(b.nodes, model.Node{
		ID:         b.id(model.NodeFunction, symbolPath),
		Type:       model.NodeFunction,
		Name:       m.Name,
		Package:    b.ctx.Package,
		FilePath:   b.ctx.FilePath,
		StartLine:  m.Range.StartLine,
		EndLine:    m.Range.EndLine,
		Exported:   isExported(parentName),
		Params:     convertParams(m.Params),
		ReturnType: normalizeTypeText(m.ReturnType.Text),
		Async:      m.Async,
	})
}
