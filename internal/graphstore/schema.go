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

// Package graphstore implements C2: typed nodes and edges over an embedded
// CozoDB (Datalog) database, with upsert semantics, file-scoped removal, and
// recursive-reachability traversal queries.
package graphstore

import "github.com/tsgraph/engine/internal/cozodb"

// SchemaVersion is the current on-disk schema version (§6). A stored
// version that does not match triggers a full reindex by the caller; the
// store itself only detects and reports the mismatch.
const SchemaVersion = 1

const schemaDDL = `
:create cie_node {
	id: String
	=>
	type: String,
	name: String,
	package: String,
	file_path: String,
	start_line: Int,
	end_line: Int,
	exported: Bool,
	content_hash: String,
	snippet: String,
	payload: Json,
}
` + `
:create cie_edge {
	source: String,
	target: String,
	type: String,
	=>
	call_count: Int default 0,
	call_sites: Json default [],
	context: String default '',
	reference_context: String default '',
}
` + `
:create cie_meta {
	key: String
	=>
	value: String,
}
`

// EnsureSchema creates the relations if they do not already exist and
// records SchemaVersion. Returns (mismatch=true) when an existing database
// carries a different version, in which case the caller (the ingestion
// orchestrator) must perform a full reindex per §1/§6.
func EnsureSchema(db *cozodb.DB) (mismatch bool, err error) {
	existing, err := db.RunReadOnly(`?[value] := *cie_meta{key: "schema_version", value}`, nil)
	if err == nil && len(existing.Rows) > 0 {
		if v, ok := existing.Rows[0][0].(string); ok && v != itoa(SchemaVersion) {
			return true, nil
		}
		return false, nil
	}

	for _, stmt := range splitDDL(schemaDDL) {
		if _, runErr := db.Run(stmt, nil); runErr != nil {
			return false, runErr
		}
	}
	_, err = db.Run(`?[key, value] <- [["schema_version", $v]] :put cie_meta { key => value }`,
		map[string]any{"v": itoa(SchemaVersion)})
	return false, err
}

func splitDDL(ddl string) []string {
	var stmts []string
	start := 0
	for i := 0; i+1 < len(ddl); i++ {
		if ddl[i] == '}' && ddl[i+1] == '\n' && i+2 < len(ddl) && ddl[i+2] == ':' {
			stmts = append(stmts, ddl[start:i+1])
			start = i + 2
		}
	}
	stmts = append(stmts, ddl[start:])
	var out []string
	for _, s := range stmts {
		if trimmed := trimSpace(s); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func trimSpace(s string) string {
	start, end := 0, len(s)
	for start < end && isSpace(s[start]) {
		start++
	}
	for end > start && isSpace(s[end-1]) {
		end--
	}
	return s[start:end]
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' || c == '\n' || c == '\r' }

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
