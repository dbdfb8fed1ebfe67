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
	"regexp"
	"strings"
)

var wsRun = regexp.MustCompile(`[ \t\n\r]+`)

// normalizeTypeText collapses newlines, tabs, and runs of whitespace into a
// single space and trims both ends, while preserving string/template
// literal contents verbatim (it never looks inside quotes/backticks; the
// collapse only touches whitespace runs outside of them).
func normalizeTypeText(s string) string {
	var b strings.Builder
	inString := byte(0)
	i := 0
	for i < len(s) {
		c := s[i]
		if inString != 0 {
			b.WriteByte(c)
			if c == '\\' && i+1 < len(s) {
				b.WriteByte(s[i+1])
				i += 2
				continue
			}
			if c == inString {
				inString = 0
			}
			i++
			continue
		}
		switch c {
		case '"', '\'', '`':
			inString = c
			b.WriteByte(c)
			i++
		case ' ', '\t', '\n', '\r':
			// collapse the whole whitespace run into a single space
			j := i
			for j < len(s) && (s[j] == ' ' || s[j] == '\t' || s[j] == '\n' || s[j] == '\r') {
				j++
			}
			b.WriteByte(' ')
			i = j
		default:
			b.WriteByte(c)
			i++
		}
	}
	return strings.TrimSpace(b.String())
}

// splitGenericArgs splits the inner content of `Outer<A, B, C>` into its
// top-level comma-separated arguments, respecting nested angle brackets.
func splitGenericArgs(inner string) []string {
	var args []string
	depth := 0
	start := 0
	for i, r := range inner {
		switch r {
		case '<':
			depth++
		case '>':
			depth--
		case ',':
			if depth == 0 {
				args = append(args, strings.TrimSpace(inner[start:i]))
				start = i + 1
			}
		}
	}
	if start < len(inner) {
		args = append(args, strings.TrimSpace(inner[start:]))
	}
	return args
}

// genericHead splits "Outer<Inner>" into ("Outer", "Inner", true), or
// returns (typeText, "", false) when there is no generic argument list.
func genericHead(typeText string) (head, inner string, ok bool) {
	t := strings.TrimSpace(typeText)
	open := strings.IndexByte(t, '<')
	if open < 0 || !strings.HasSuffix(t, ">") {
		return t, "", false
	}
	return strings.TrimSpace(t[:open]), t[open+1 : len(t)-1], true
}

// returnTypeOfFactoryAlias recognizes `ReturnType<typeof factoryName>` and
// extracts factoryName; used by TypeAlias ALIAS_FOR detection.
func returnTypeOfFactoryAlias(typeText string) (factoryName string, ok bool) {
	head, inner, hasGeneric := genericHead(typeText)
	if !hasGeneric || head != "ReturnType" {
		return "", false
	}
	inner = strings.TrimSpace(inner)
	const prefix = "typeof "
	if !strings.HasPrefix(inner, prefix) {
		return "", false
	}
	return strings.TrimSpace(inner[len(prefix):]), true
}
