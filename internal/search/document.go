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

// Package search implements C6: a hybrid BM25 + cosine-similarity index
// over node documents.
package search

import (
	"strings"
	"unicode"
)

// Document is one indexed unit: a node's searchable text plus its
// embedding vector, if one was computed.
type Document struct {
	ID        string
	Symbol    string
	File      string
	NodeType  string
	Content   string
	Embedding []float32
}

// DefaultBatchSize is the default insertion batch size (§4.5).
const DefaultBatchSize = 500

// splitSubTokens expands camelCase, PascalCase, and separator-delimited
// identifiers into their sub-tokens, then lowercases everything, so the
// BM25 tokenizer (which is assumed not to split on case changes) sees
// "getUserName" as "getusername get user name".
func splitSubTokens(s string) []string {
	var tokens []string
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, strings.ToLower(current.String()))
			current.Reset()
		}
	}
	runes := []rune(s)
	for i, r := range runes {
		switch {
		case r == '_' || r == '-' || unicode.IsSpace(r) || r == '.' || r == '/':
			flush()
		case unicode.IsUpper(r) && i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])):
			flush()
			current.WriteRune(r)
		case unicode.IsUpper(r) && i > 0 && i+1 < len(runes) && unicode.IsLower(runes[i+1]) && unicode.IsUpper(runes[i-1]):
			flush()
			current.WriteRune(r)
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return tokens
}

// preprocess tokenizes a field into the whole original lowercase word plus
// its split sub-tokens, so both "getUserName" and "get"/"user"/"name"
// remain searchable.
func preprocess(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune("(){}[];:,\"'`<>=+*&|!?", r)
	})
	var tokens []string
	for _, f := range fields {
		lower := strings.ToLower(f)
		if lower != "" {
			tokens = append(tokens, lower)
		}
		tokens = append(tokens, splitSubTokens(f)...)
	}
	return tokens
}
