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

// Package model holds the node/edge data model shared by extraction,
// storage, search, and query. Nodes are a tagged sum: a common header plus
// a variant-specific payload (see DESIGN.md for the storage encoding).
package model

// NodeType discriminates the node variants of §3.2.
type NodeType string

const (
	NodeFunction      NodeType = "Function"
	NodeClass         NodeType = "Class"
	NodeMethod        NodeType = "Method"
	NodeInterface     NodeType = "Interface"
	NodeTypeAlias     NodeType = "TypeAlias"
	NodeVariable      NodeType = "Variable"
	NodeSyntheticType NodeType = "SyntheticType"
)

// Visibility is the member-visibility of a Method.
type Visibility string

const (
	VisibilityPublic    Visibility = "public"
	VisibilityPrivate   Visibility = "private"
	VisibilityProtected Visibility = "protected"
)

// Param is one entry of a function/method parameter list.
type Param struct {
	Name string
	Type string // optional; empty when the source has no type annotation
}

// Node is a symbol-level entity. Common fields are always populated;
// variant-specific fields are zero-valued when not applicable to Type.
type Node struct {
	ID          string
	Type        NodeType
	Name        string
	Package     string
	FilePath    string
	StartLine   int
	EndLine     int
	Exported    bool
	ContentHash string
	Snippet     string

	// Variant payload. Only the fields relevant to Type are meaningful.
	Params       []Param    // Function, Method
	ReturnType   string     // Function, Method
	Async        bool       // Function, Method
	Extends      string     // Class -> class name; Interface -> extends list joined elsewhere
	ExtendsList  []string   // Interface (multiple extends)
	Implements   []string   // Class
	Visibility   Visibility // Method
	Static       bool       // Method
	AliasedType  string     // TypeAlias
	VariableType string     // Variable
	Const        bool       // Variable
}

// EdgeType enumerates every relationship kind in the glossary. CONTAINS and
// IMPORTS are extraction-only per the REDESIGN FLAG resolution in
// DESIGN.md; they are never part of the default traversal set.
type EdgeType string

const (
	EdgeCalls       EdgeType = "CALLS"
	EdgeReferences  EdgeType = "REFERENCES"
	EdgeExtends     EdgeType = "EXTENDS"
	EdgeImplements  EdgeType = "IMPLEMENTS"
	EdgeTakes       EdgeType = "TAKES"
	EdgeReturns     EdgeType = "RETURNS"
	EdgeHasType     EdgeType = "HAS_TYPE"
	EdgeHasProperty EdgeType = "HAS_PROPERTY"
	EdgeUsesType    EdgeType = "USES_TYPE" // legacy superset, not emitted by the extractor directly
	EdgeIncludes    EdgeType = "INCLUDES"
	EdgeAliasFor    EdgeType = "ALIAS_FOR"
	EdgeContains    EdgeType = "CONTAINS" // extraction-only, file -> symbol
	EdgeImports     EdgeType = "IMPORTS"  // extraction-only, file -> file
)

// DefaultTraversalEdgeTypes is the edge-type set query_dependencies and
// query_dependents use when the caller does not supply one (§4.1).
var DefaultTraversalEdgeTypes = []EdgeType{
	EdgeCalls, EdgeReferences, EdgeExtends, EdgeImplements, EdgeTakes,
	EdgeReturns, EdgeHasType, EdgeHasProperty, EdgeIncludes, EdgeAliasFor,
}

// edgeTypeOrdinal fixes a deterministic ordering over edge types, used to
// break ties when more than one edge connects the same pair of nodes along
// a reported path (§4.1 query_paths).
var edgeTypeOrdinal = map[EdgeType]int{
	EdgeCalls: 0, EdgeReferences: 1, EdgeExtends: 2, EdgeImplements: 3,
	EdgeTakes: 4, EdgeReturns: 5, EdgeHasType: 6, EdgeHasProperty: 7,
	EdgeUsesType: 8, EdgeIncludes: 9, EdgeAliasFor: 10, EdgeContains: 11,
	EdgeImports: 12,
}

// EdgeTypeOrdinal returns the fixed ordinal used for deterministic
// tie-breaking; unknown types sort last.
func EdgeTypeOrdinal(t EdgeType) int {
	if o, ok := edgeTypeOrdinal[t]; ok {
		return o
	}
	return len(edgeTypeOrdinal)
}

// ReferenceContext is recorded on REFERENCES edges.
type ReferenceContext string

const (
	RefCallback   ReferenceContext = "callback"
	RefProperty   ReferenceContext = "property"
	RefArray      ReferenceContext = "array"
	RefReturn     ReferenceContext = "return"
	RefAssignment ReferenceContext = "assignment"
	RefAccess     ReferenceContext = "access"
)

// UsesTypeContext is recorded on USES_TYPE edges (legacy superset).
type UsesTypeContext string

const (
	UsesParameter UsesTypeContext = "parameter"
	UsesReturn    UsesTypeContext = "return"
	UsesProperty  UsesTypeContext = "property"
	UsesVariable  UsesTypeContext = "variable"
)

// LineRange is a 1-indexed inclusive source range, used for call sites.
type LineRange struct {
	StartLine int
	EndLine   int
}

// Edge is a directed, typed relationship between two node IDs. It has no
// intrinsic ID: the (Source, Target, Type) triple is its identity.
type Edge struct {
	Source string
	Target string
	Type   EdgeType

	// Optional per-type metadata.
	CallCount        int              // CALLS
	CallSites        []LineRange      // CALLS
	Context          UsesTypeContext  // USES_TYPE
	ReferenceContext ReferenceContext // REFERENCES
}

// Key returns the (source, target, type) identity tuple as a string,
// suitable for deduplication in in-memory traversal results.
func (e Edge) Key() string {
	return e.Source + "\x00" + e.Target + "\x00" + string(e.Type)
}
