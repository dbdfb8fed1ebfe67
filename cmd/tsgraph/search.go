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
	"context"
	"fmt"
	"os"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/tsgraph/engine/internal/search"
)

func runSearch(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	mode := fs.String("mode", "hybrid", "fulltext | vector | hybrid")
	nodeTypes := fs.String("node-types", "", "Comma-separated node type filter")
	fileGlob := fs.String("file-glob", "", "Restrict results to files matching this glob")
	limit := fs.Int("limit", search.DefaultLimit, "Maximum results returned")
	threshold := fs.Float64("similarity-threshold", 0, "Minimum cosine similarity (vector/hybrid modes)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: tsgraph search <query> [--mode fulltext|vector|hybrid] [--limit N]\n")
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(2)
	}
	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		os.Exit(2)
	}
	query := strings.Join(rest, " ")

	a, err := buildApp(configPath, false)
	if err != nil {
		fatal(globals, err)
	}
	defer a.Close()

	if err := a.rebuildSearchIndex(); err != nil {
		fatal(globals, err)
	}

	var types []string
	if *nodeTypes != "" {
		types = strings.Split(*nodeTypes, ",")
	}
	filters := search.Filters{NodeTypes: types, FileGlob: *fileGlob, Limit: *limit}

	var results []search.Result
	switch *mode {
	case "fulltext":
		results = a.index.Fulltext(query, filters)
	case "vector":
		vec, embedErr := a.pool.EmbedQuery(context.Background(), query)
		if embedErr != nil {
			fatal(globals, fmt.Errorf("embed query: %w", embedErr))
		}
		results = a.index.Vector(vec, *threshold, filters)
	case "hybrid":
		vec, embedErr := a.pool.EmbedQuery(context.Background(), query)
		if embedErr != nil {
			fatal(globals, fmt.Errorf("embed query: %w", embedErr))
		}
		results = a.index.Hybrid(query, vec, *threshold, filters)
	default:
		fatal(globals, fmt.Errorf("unknown --mode %q", *mode))
	}

	printSearchResults(results, globals)
}

func printSearchResults(results []search.Result, globals GlobalFlags) {
	if globals.JSON {
		fmt.Print("[")
		for i, r := range results {
			if i > 0 {
				fmt.Print(",")
			}
			fmt.Printf(`{"id":%q,"symbol":%q,"file":%q,"type":%q,"score":%f}`,
				r.Document.ID, r.Document.Symbol, r.Document.File, r.Document.NodeType, r.Score)
		}
		fmt.Println("]")
		return
	}
	if len(results) == 0 {
		fmt.Println("No results.")
		return
	}
	for _, r := range results {
		fmt.Printf("%.4f  %-8s %-30s %s\n", r.Score, r.Document.NodeType, r.Document.Symbol, r.Document.File)
	}
}
