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

// Package treesitter is the concrete go-tree-sitter adapter that populates
// the sourcetree IR from real TypeScript/TSX source, implementing
// ingest.Parser. It is the only package in this module that imports
// go-tree-sitter directly; every other package works against the neutral
// sourcetree shape.
package treesitter

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/tsgraph/engine/internal/sourcetree"
)

// Parser parses .ts/.tsx files with go-tree-sitter, pooling one
// *sitter.Parser per grammar since parsers are not safe for concurrent
// use (mirrors the teacher's TreeSitterParser language pools).
type Parser struct {
	tsPool  sync.Pool
	tsxPool sync.Pool
}

// New creates a Parser ready to use.
func New() *Parser {
	p := &Parser{}
	p.tsPool.New = func() any {
		parser := sitter.NewParser()
		parser.SetLanguage(typescript.GetLanguage())
		return parser
	}
	p.tsxPool.New = func() any {
		parser := sitter.NewParser()
		parser.SetLanguage(tsx.GetLanguage())
		return parser
	}
	return p
}

// ParseFile implements ingest.Parser: reads filePath, parses it with the
// grammar its extension selects, and returns the populated sourcetree.File
// plus the raw file content (ingest needs the content to cut snippets).
func (p *Parser) ParseFile(filePath string) (*sourcetree.File, string, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", filePath, err)
	}

	pool := &p.tsPool
	if strings.HasSuffix(filePath, ".tsx") {
		pool = &p.tsxPool
	}
	parserObj := pool.Get()
	parser, ok := parserObj.(*sitter.Parser)
	if !ok {
		return nil, "", fmt.Errorf("parser pool returned unexpected type for %s", filePath)
	}
	defer pool.Put(parser)

	tree, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, "", fmt.Errorf("tree-sitter parse %s: %w", filePath, err)
	}
	defer tree.Close()

	file := walkFile(tree.RootNode(), content)
	return file, string(content), nil
}

// Hash is a content-addressed identifier for a file, not used by ParseFile
// itself but handy for callers wanting to skip unchanged files without a
// full reparse.
func Hash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func walkFile(root *sitter.Node, src []byte) *sourcetree.File {
	f := &sourcetree.File{}
	for i := 0; i < int(root.ChildCount()); i++ {
		walkTopLevel(root.Child(i), src, f)
	}
	return f
}

// walkTopLevel dispatches one top-level statement into f. export
// declarations are unwrapped first so "export function foo()" and
// "function foo()" share one extraction path, with Exported recording the
// difference.
func walkTopLevel(n *sitter.Node, src []byte, f *sourcetree.File) {
	if n == nil {
		return
	}
	exported := false
	target := n
	if n.Type() == "export_statement" {
		exported = true
		decl := n.ChildByFieldName("declaration")
		if decl == nil {
			// export { a, b } or export default <expr> with no declaration
			// child to recurse into; nothing more to extract here.
			return
		}
		target = decl
	}

	switch target.Type() {
	case "function_declaration":
		f.Functions = append(f.Functions, extractFunction(target, src, exported))
	case "class_declaration":
		f.Classes = append(f.Classes, extractClass(target, src, exported))
	case "interface_declaration":
		f.Interfaces = append(f.Interfaces, extractInterface(target, src, exported))
	case "type_alias_declaration":
		f.TypeAlias = append(f.TypeAlias, extractTypeAlias(target, src, exported))
	case "lexical_declaration", "variable_declaration":
		for _, v := range extractVariables(target, src, exported) {
			f.Variables = append(f.Variables, v)
		}
	case "import_statement":
		if imp, ok := extractImport(target, src); ok {
			f.Imports = append(f.Imports, imp)
		}
	}
}

func rangeOf(n *sitter.Node) sourcetree.Range {
	return sourcetree.Range{
		StartLine: int(n.StartPoint().Row) + 1,
		EndLine:   int(n.EndPoint().Row) + 1,
	}
}

func text(n *sitter.Node, src []byte) string {
	if n == nil {
		return ""
	}
	return string(src[n.StartByte():n.EndByte()])
}

func normalizeType(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\t", " ")
	return strings.TrimSpace(strings.Join(strings.Fields(s), " "))
}

func extractParams(paramsNode *sitter.Node, src []byte) []sourcetree.Param {
	if paramsNode == nil {
		return nil
	}
	var params []sourcetree.Param
	for i := 0; i < int(paramsNode.ChildCount()); i++ {
		c := paramsNode.Child(i)
		switch c.Type() {
		case "required_parameter", "optional_parameter":
			nameNode := c.ChildByFieldName("pattern")
			typeNode := c.ChildByFieldName("type")
			params = append(params, sourcetree.Param{
				Name: text(nameNode, src),
				Type: normalizeType(text(typeNode, src)),
			})
		case "identifier":
			params = append(params, sourcetree.Param{Name: text(c, src)})
		}
	}
	return params
}

func extractReturnType(n *sitter.Node, src []byte) sourcetree.TypeRef {
	rt := n.ChildByFieldName("return_type")
	return sourcetree.TypeRef{Text: normalizeType(text(rt, src))}
}

func isAsync(n *sitter.Node, src []byte) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c.Type() == "async" || text(c, src) == "async" {
			return true
		}
		if c.Type() == "function" || c.Type() == "identifier" {
			break
		}
	}
	return false
}

func extractFunction(n *sitter.Node, src []byte, exported bool) sourcetree.FunctionDecl {
	nameNode := n.ChildByFieldName("name")
	bodyNode := n.ChildByFieldName("body")
	return sourcetree.FunctionDecl{
		Name:       text(nameNode, src),
		Params:     extractParams(n.ChildByFieldName("parameters"), src),
		ReturnType: extractReturnType(n, src),
		Async:      isAsync(n, src),
		Exported:   exported,
		Range:      rangeOf(n),
		Body:       extractBody(bodyNode, src),
	}
}

func extractClass(n *sitter.Node, src []byte, exported bool) sourcetree.ClassDecl {
	cls := sourcetree.ClassDecl{
		Name:     text(n.ChildByFieldName("name"), src),
		Exported: exported,
		Range:    rangeOf(n),
	}
	heritage := n.ChildByFieldName("heritage")
	for i := 0; heritage != nil && i < int(heritage.ChildCount()); i++ {
		c := heritage.Child(i)
		switch c.Type() {
		case "class_heritage", "extends_clause":
			for j := 0; j < int(c.ChildCount()); j++ {
				id := c.Child(j)
				if id.Type() == "identifier" || id.Type() == "type_identifier" || id.Type() == "nested_identifier" {
					cls.Extends = text(id, src)
				}
			}
		case "implements_clause":
			for j := 0; j < int(c.ChildCount()); j++ {
				id := c.Child(j)
				if id.Type() == "type_identifier" || id.Type() == "identifier" {
					cls.Implements = append(cls.Implements, text(id, src))
				}
			}
		}
	}

	body := n.ChildByFieldName("body")
	for i := 0; body != nil && i < int(body.ChildCount()); i++ {
		member := body.Child(i)
		switch member.Type() {
		case "method_definition":
			cls.Methods = append(cls.Methods, extractMethod(member, src))
		case "public_field_definition":
			cls.Properties = append(cls.Properties, extractProperty(member, src))
		}
	}
	return cls
}

func extractMethod(n *sitter.Node, src []byte) sourcetree.MethodDecl {
	visibility := "public"
	static := false
	for i := 0; i < int(n.ChildCount()); i++ {
		switch text(n.Child(i), src) {
		case "private":
			visibility = "private"
		case "protected":
			visibility = "protected"
		case "static":
			static = true
		}
	}
	return sourcetree.MethodDecl{
		Name:       text(n.ChildByFieldName("name"), src),
		Params:     extractParams(n.ChildByFieldName("parameters"), src),
		ReturnType: extractReturnType(n, src),
		Async:      isAsync(n, src),
		Static:     static,
		Visibility: visibility,
		Range:      rangeOf(n),
		Body:       extractBody(n.ChildByFieldName("body"), src),
	}
}

func extractProperty(n *sitter.Node, src []byte) sourcetree.PropertyDecl {
	return sourcetree.PropertyDecl{
		Name:  text(n.ChildByFieldName("name"), src),
		Type:  sourcetree.TypeRef{Text: normalizeType(text(n.ChildByFieldName("type"), src))},
		Range: rangeOf(n),
	}
}

func extractInterface(n *sitter.Node, src []byte, exported bool) sourcetree.InterfaceDecl {
	iface := sourcetree.InterfaceDecl{
		Name:     text(n.ChildByFieldName("name"), src),
		Exported: exported,
		Range:    rangeOf(n),
	}
	extendsClause := n.ChildByFieldName("extends_types")
	if extendsClause == nil {
		// Fall back to a scan for an extends_type_clause among children;
		// grammar versions differ on whether this is a named field.
		for i := 0; i < int(n.ChildCount()); i++ {
			c := n.Child(i)
			if c.Type() == "extends_type_clause" {
				extendsClause = c
			}
		}
	}
	for i := 0; extendsClause != nil && i < int(extendsClause.ChildCount()); i++ {
		c := extendsClause.Child(i)
		if c.Type() == "type_identifier" || c.Type() == "identifier" {
			iface.Extends = append(iface.Extends, text(c, src))
		}
	}

	body := n.ChildByFieldName("body")
	for i := 0; body != nil && i < int(body.ChildCount()); i++ {
		member := body.Child(i)
		if member.Type() == "property_signature" {
			iface.Properties = append(iface.Properties, sourcetree.PropertyDecl{
				Name:  text(member.ChildByFieldName("name"), src),
				Type:  sourcetree.TypeRef{Text: normalizeType(text(member.ChildByFieldName("type"), src))},
				Range: rangeOf(member),
			})
		}
	}
	return iface
}

func extractTypeAlias(n *sitter.Node, src []byte, exported bool) sourcetree.TypeAliasDecl {
	decl := sourcetree.TypeAliasDecl{
		Name:     text(n.ChildByFieldName("name"), src),
		Exported: exported,
		Range:    rangeOf(n),
	}
	value := n.ChildByFieldName("value")
	aliased := normalizeType(text(value, src))
	decl.AliasedTo = sourcetree.TypeRef{Text: aliased}
	if ref, ok := factoryRef(aliased); ok {
		decl.IsFactory = true
		decl.FactoryRef = ref
	}
	return decl
}

// factoryRef recognizes the `ReturnType<typeof X>` synthetic a factory
// function's inferred type alias takes.
func factoryRef(aliased string) (string, bool) {
	const prefix = "ReturnType<typeof "
	if !strings.HasPrefix(aliased, prefix) || !strings.HasSuffix(aliased, ">") {
		return "", false
	}
	return strings.TrimSuffix(strings.TrimPrefix(aliased, prefix), ">"), true
}

// extractVariables records arrow/function initializers as IsFunction
// declarations and object literals as ObjectLit. It never sets
// VariableDecl.Factory, so a factory's returned object literal yields no
// SyntheticType node and no factory-method nodes downstream.
func extractVariables(n *sitter.Node, src []byte, exported bool) []sourcetree.VariableDecl {
	isConst := false
	for i := 0; i < int(n.ChildCount()); i++ {
		if text(n.Child(i), src) == "const" {
			isConst = true
		}
	}

	var decls []sourcetree.VariableDecl
	for i := 0; i < int(n.ChildCount()); i++ {
		d := n.Child(i)
		if d.Type() != "variable_declarator" {
			continue
		}
		nameNode := d.ChildByFieldName("name")
		typeNode := d.ChildByFieldName("type")
		valueNode := d.ChildByFieldName("value")
		name := text(nameNode, src)

		decl := sourcetree.VariableDecl{
			Name:     name,
			Const:    isConst,
			Type:     sourcetree.TypeRef{Text: normalizeType(text(typeNode, src))},
			Exported: exported,
			Range:    rangeOf(d),
		}

		if valueNode != nil {
			switch valueNode.Type() {
			case "arrow_function", "function_expression", "function":
				fn := sourcetree.FunctionDecl{
					Name:       name,
					Params:     extractParams(valueNode.ChildByFieldName("parameters"), src),
					ReturnType: extractReturnType(valueNode, src),
					Async:      isAsync(valueNode, src),
					Exported:   exported,
					Range:      rangeOf(d),
					Body:       extractBody(arrowBody(valueNode), src),
				}
				decl.IsFunction = true
				decl.Function = &fn
			case "object":
				decl.ObjectLit = extractObjectMethods(valueNode, src)
			}
		}
		decls = append(decls, decl)
	}
	return decls
}

// arrowBody returns the node to walk for calls/references inside an arrow
// function, handling both block bodies ({ ... }) and expression bodies
// (=> expr) uniformly.
func arrowBody(fn *sitter.Node) *sitter.Node {
	if b := fn.ChildByFieldName("body"); b != nil {
		return b
	}
	return fn
}

// extractObjectMethods pulls method-shorthand/arrow/function properties out
// of an object literal, e.g. `const api = { getUser() {...}, list: () =>
// {...} }`. Plain data properties are not represented here; they carry no
// executable body for the extractor to build edges from.
func extractObjectMethods(obj *sitter.Node, src []byte) []sourcetree.ObjectMethod {
	var methods []sourcetree.ObjectMethod
	for i := 0; i < int(obj.ChildCount()); i++ {
		c := obj.Child(i)
		switch c.Type() {
		case "method_definition":
			methods = append(methods, sourcetree.ObjectMethod{
				Name:       text(c.ChildByFieldName("name"), src),
				Params:     extractParams(c.ChildByFieldName("parameters"), src),
				ReturnType: extractReturnType(c, src),
				Async:      isAsync(c, src),
				Range:      rangeOf(c),
				Body:       extractBody(c.ChildByFieldName("body"), src),
			})
		case "pair":
			key := c.ChildByFieldName("key")
			val := c.ChildByFieldName("value")
			if val == nil {
				continue
			}
			switch val.Type() {
			case "arrow_function", "function_expression", "function":
				methods = append(methods, sourcetree.ObjectMethod{
					Name:       text(key, src),
					Params:     extractParams(val.ChildByFieldName("parameters"), src),
					ReturnType: extractReturnType(val, src),
					Async:      isAsync(val, src),
					Range:      rangeOf(c),
					Body:       extractBody(arrowBody(val), src),
				})
			}
		}
	}
	return methods
}

func extractImport(n *sitter.Node, src []byte) (sourcetree.ImportDecl, bool) {
	sourceNode := n.ChildByFieldName("source")
	if sourceNode == nil {
		return sourcetree.ImportDecl{}, false
	}
	from := strings.Trim(text(sourceNode, src), `"'`)
	imp := sourcetree.ImportDecl{FromModule: from, Range: rangeOf(n)}

	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		switch c.Type() {
		case "import_clause":
			walkImportClause(c, src, &imp)
		case "type":
			imp.TypeOnly = true
		}
	}
	return imp, true
}

func walkImportClause(n *sitter.Node, src []byte, imp *sourcetree.ImportDecl) {
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		switch c.Type() {
		case "identifier":
			// Default import: `import Foo from "..."`.
			imp.Symbols = append(imp.Symbols, sourcetree.ImportedSymbol{
				LocalName: text(c, src), ExportedName: "default",
			})
		case "namespace_import":
			imp.Symbols = append(imp.Symbols, sourcetree.ImportedSymbol{
				LocalName: strings.TrimSpace(strings.TrimPrefix(text(c, src), "*")),
			})
		case "named_imports":
			for j := 0; j < int(c.ChildCount()); j++ {
				spec := c.Child(j)
				if spec.Type() != "import_specifier" {
					continue
				}
				nameNode := spec.ChildByFieldName("name")
				aliasNode := spec.ChildByFieldName("alias")
				exported := text(nameNode, src)
				local := exported
				if aliasNode != nil {
					local = text(aliasNode, src)
				}
				typeOnly := false
				for k := 0; k < int(spec.ChildCount()); k++ {
					if text(spec.Child(k), src) == "type" {
						typeOnly = true
					}
				}
				imp.Symbols = append(imp.Symbols, sourcetree.ImportedSymbol{
					LocalName: local, ExportedName: exported, TypeOnly: typeOnly,
				})
			}
		}
	}
}

// extractBody walks a function-like body for call expressions, non-call
// identifier references, and capitalized JSX element usages (§4.2's CALLS,
// REFERENCES, and INCLUDES edge sources). Declarations and call-target
// identifiers are excluded so the same name is never reported as both a
// call and a reference.
func extractBody(n *sitter.Node, src []byte) sourcetree.Body {
	var b sourcetree.Body
	if n == nil {
		return b
	}
	walkBody(n, src, &b)
	return b
}

func walkBody(n *sitter.Node, src []byte, b *sourcetree.Body) {
	if n == nil {
		return
	}

	switch n.Type() {
	case "call_expression":
		if fn := n.ChildByFieldName("function"); fn != nil {
			if callee := calleeName(fn, src); callee != "" {
				b.Calls = append(b.Calls, sourcetree.CallExpr{Callee: callee, Range: rangeOf(n)})
			}
		}
		// Still recurse into arguments: they may contain their own calls,
		// callbacks, or JSX usages.
		if args := n.ChildByFieldName("arguments"); args != nil {
			for i := 0; i < int(args.ChildCount()); i++ {
				walkReferenceOrRecurse(args.Child(i), src, b, "callback")
			}
		}
		return
	case "jsx_opening_element", "jsx_self_closing_element":
		if name := n.ChildByFieldName("name"); name != nil {
			if t := text(name, src); t != "" && t[0] >= 'A' && t[0] <= 'Z' {
				b.Components = append(b.Components, sourcetree.ComponentUsage{Name: t, Range: rangeOf(n)})
			}
		}
	case "return_statement":
		for i := 0; i < int(n.ChildCount()); i++ {
			walkReferenceOrRecurse(n.Child(i), src, b, "return")
		}
		return
	case "pair":
		if val := n.ChildByFieldName("value"); val != nil {
			walkReferenceOrRecurse(val, src, b, "property")
		}
		if key := n.ChildByFieldName("key"); key != nil {
			walkBody(key, src, b)
		}
		return
	case "array":
		for i := 0; i < int(n.ChildCount()); i++ {
			walkReferenceOrRecurse(n.Child(i), src, b, "array")
		}
		return
	case "assignment_expression":
		if right := n.ChildByFieldName("right"); right != nil {
			walkReferenceOrRecurse(right, src, b, "assignment")
		}
		if left := n.ChildByFieldName("left"); left != nil {
			walkBody(left, src, b)
		}
		return
	}

	for i := 0; i < int(n.ChildCount()); i++ {
		walkBody(n.Child(i), src, b)
	}
}

// walkReferenceOrRecurse records node as a bare-identifier reference under
// context if it is one, otherwise recurses into it looking for nested
// calls/references/components.
func walkReferenceOrRecurse(n *sitter.Node, src []byte, b *sourcetree.Body, context string) {
	if n == nil {
		return
	}
	if n.Type() == "identifier" {
		b.References = append(b.References, sourcetree.Reference{
			Name: text(n, src), Context: context, Range: rangeOf(n),
		})
		return
	}
	walkBody(n, src, b)
}

func calleeName(n *sitter.Node, src []byte) string {
	switch n.Type() {
	case "identifier":
		return text(n, src)
	case "member_expression":
		prop := n.ChildByFieldName("property")
		if prop == nil {
			return ""
		}
		if obj := n.ChildByFieldName("object"); obj != nil && (obj.Type() == "identifier" || obj.Type() == "this") {
			return text(obj, src) + "." + text(prop, src)
		}
		return text(prop, src)
	}
	return ""
}
