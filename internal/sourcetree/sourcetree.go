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

// Package sourcetree is the boundary the extractor consumes. It models "a
// parsed source tree" (spec.md §6's external collaborator) as plain data:
// top-level functions, classes, interfaces, type aliases, variables, and
// import declarations, each with line ranges and enough structural detail
// for the extractor to build nodes and edges without ever importing a
// specific parser library. A concrete adapter (internal/extract/treesitter)
// populates this shape from a real AST; tests populate it by hand.
package sourcetree

// Range is a 1-indexed inclusive source line range.
type Range struct {
	StartLine int
	EndLine   int
}

// TypeRef is a type reference as it appears in source, already normalized
// (newlines/tabs collapsed to single spaces, trimmed).
type TypeRef struct {
	Text string
}

// Param is a function/method parameter.
type Param struct {
	Name string
	Type string // empty when unannotated
}

// CallExpr is one textual call-site of an identifier or member expression.
type CallExpr struct {
	// Callee is the textual callee, e.g. "foo", "obj.method", "this.helper".
	Callee string
	Range  Range
}

// Reference is a non-call use of an identifier: as a callback argument, a
// property value, an array element, a return value, an assignment RHS, or a
// bare member access.
type Reference struct {
	Name    string
	Context string // one of: callback, property, array, return, assignment, access
	Range   Range
}

// ComponentUsage is a capitalized identifier used in JSX/TSX element
// position, e.g. "<UserCard ... />".
type ComponentUsage struct {
	Name  string
	Range Range
}

// Body is the executable/member content of a function-like or
// object-literal construct, already walked for calls/references/component
// usages so the extractor does not need a second AST pass per node.
type Body struct {
	Calls      []CallExpr
	References []Reference
	Components []ComponentUsage
}

// FunctionDecl is a top-level function declaration.
type FunctionDecl struct {
	Name       string
	Params     []Param
	ReturnType TypeRef // empty Text if no explicit annotation
	Async      bool
	Exported   bool
	Range      Range
	Body       Body
}

// ObjectMethod is a method-shorthand, function-expression, or arrow-function
// property of an object literal bound to a variable (either a plain object
// variable or a factory function's returned object literal).
type ObjectMethod struct {
	Name       string
	Params     []Param
	ReturnType TypeRef
	Async      bool
	Range      Range
	Body       Body
}

// FactoryReturn describes the object literal returned by a factory function
// (an arrow/function-expression variable initializer whose body is, or
// ends in, a returned object literal).
type FactoryReturn struct {
	Range   Range // the literal's own span
	Methods []ObjectMethod
}

// VariableDecl is a top-level variable/const declaration. An arrow/function
// expression initializer is carried here too, with IsFunction set and
// Function populated; the extractor emits a Function node for it instead
// of a Variable node.
type VariableDecl struct {
	Name       string
	Const      bool
	Type       TypeRef // explicit annotation, if any
	Exported   bool
	Range      Range
	IsFunction bool           // true when the initializer is itself a function (skip as Variable)
	Function   *FunctionDecl  // populated when IsFunction, name already set to the variable's name
	ObjectLit  []ObjectMethod // populated when the initializer is a plain object literal
	Factory    *FactoryReturn // populated when the initializer is a factory function
}

// MethodDecl is a method of a Class.
type MethodDecl struct {
	Name       string
	Params     []Param
	ReturnType TypeRef
	Async      bool
	Static     bool
	Visibility string // public (default), private, protected
	Range      Range
	Body       Body
}

// PropertyDecl is a class/interface property, used for HAS_PROPERTY edges.
type PropertyDecl struct {
	Name  string
	Type  TypeRef
	Range Range
}

// ClassDecl is a class declaration.
type ClassDecl struct {
	Name       string
	Extends    string   // normalized base-class name, empty if none
	Implements []string // normalized interface names
	Exported   bool
	Range      Range
	Methods    []MethodDecl
	Properties []PropertyDecl
}

// InterfaceDecl is an interface declaration.
type InterfaceDecl struct {
	Name       string
	Extends    []string
	Exported   bool
	Range      Range
	Properties []PropertyDecl
}

// TypeAliasDecl is a `type X = ...` declaration.
type TypeAliasDecl struct {
	Name       string
	AliasedTo  TypeRef
	Exported   bool
	Range      Range
	IsFactory  bool   // true when AliasedTo denotes a ReturnType<typeof X> synthetic
	FactoryRef string // the X in ReturnType<typeof X>, populated when IsFactory
}

// ImportedSymbol is one name brought in by an import declaration.
type ImportedSymbol struct {
	// LocalName is the name used in this file (after `as` aliasing, if any).
	LocalName string
	// ExportedName is the name as declared by the source module (often equal
	// to LocalName; differs for `import { Foo as Bar }`).
	ExportedName string
	TypeOnly     bool
}

// ImportDecl is one `import ... from "..."` statement.
type ImportDecl struct {
	FromModule string
	Symbols    []ImportedSymbol
	TypeOnly   bool // `import type { ... }`, makes every symbol type-only
	Range      Range
}

// File is the full parsed shape of one source file, in top-down extraction
// order: functions, classes, interfaces, type aliases, variables.
type File struct {
	Functions  []FunctionDecl
	Classes    []ClassDecl
	Interfaces []InterfaceDecl
	TypeAlias  []TypeAliasDecl
	Variables  []VariableDecl
	Imports    []ImportDecl
}
