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

package main

import (
	"fmt"
	"os"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/tsgraph/engine/internal/format"
	"github.com/tsgraph/engine/internal/model"
	"github.com/tsgraph/engine/internal/query"
)

func parseEdgeTypes(csv string) []model.EdgeType {
	if csv == "" {
		return model.DefaultTraversalEdgeTypes
	}
	parts := strings.Split(csv, ",")
	out := make([]model.EdgeType, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, model.EdgeType(strings.ToUpper(p)))
		}
	}
	return out
}

func runQuery(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	op := fs.String("op", "dependencies_of", "dependencies_of | dependents_of | paths_between")
	file := fs.String("file", "", "File-path hint for the symbol")
	toFile := fs.String("to-file", "", "File-path hint for the second symbol (paths_between)")
	toSymbol := fs.String("to", "", "Second symbol name (paths_between)")
	edgeTypesFlag := fs.String("edge-types", "", "Comma-separated edge types (default: every traversal edge type)")
	maxDepth := fs.Int("max-depth", 5, "Maximum traversal depth")
	maxNodes := fs.Int("max-nodes", 200, "Maximum nodes returned")
	outFormat := fs.String("format", "mcp", "mcp | mermaid")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: tsgraph query <symbol> [--op dependencies_of|dependents_of|paths_between] [--file PATH] [--to SYMBOL] [--to-file PATH]\n")
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(2)
	}
	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		os.Exit(2)
	}
	symbol := rest[0]

	a, err := buildApp(configPath, false)
	if err != nil {
		fatal(globals, err)
	}
	defer a.Close()

	edgeTypes := parseEdgeTypes(*edgeTypesFlag)

	var result query.Result
	switch *op {
	case "dependencies_of":
		result, err = a.engine.DependenciesOf(*file, symbol, edgeTypes, *maxDepth, *maxNodes)
	case "dependents_of":
		result, err = a.engine.DependentsOf(*file, symbol, edgeTypes, *maxDepth, *maxNodes)
	case "paths_between":
		result, err = a.engine.PathsBetween(*file, symbol, *toFile, *toSymbol, edgeTypes, *maxDepth, *maxNodes)
	default:
		fatal(globals, fmt.Errorf("unknown --op %q", *op))
	}
	if err != nil {
		fatal(globals, err)
	}

	opts := format.Options{Format: format.Format(*outFormat)}
	fmt.Println(format.Render(result, opts))
}
