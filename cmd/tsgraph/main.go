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

// Package main implements the tsgraph CLI: a thin wrapper over
// internal/config, internal/ingest and internal/query that indexes a
// TypeScript/TSX project into a code graph and answers traversal and
// search queries against it.
//
// Usage:
//
//	tsgraph init                 Write .tsgraph/config.yaml
//	tsgraph index                Index every configured package
//	tsgraph watch                Index, then keep watching for changes
//	tsgraph query <symbol>       Run dependencies_of/dependents_of/paths_between
//	tsgraph search <query>       Run a hybrid BM25+vector search
//	tsgraph reindex              Reindex just the files a git delta touched
//	tsgraph serve                Serve query/search/metrics over HTTP
package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/fatih/color"
)

var (
	version = "dev"
	commit  = "unknown"
)

// GlobalFlags holds flags every subcommand shares.
type GlobalFlags struct {
	JSON    bool
	NoColor bool
	Verbose int
	Quiet   bool
}

func (g GlobalFlags) logInfo(format string, args ...interface{}) {
	if !g.Quiet && g.Verbose >= 1 {
		fmt.Fprintf(os.Stderr, "[INFO] "+format+"\n", args...)
	}
}

func (g GlobalFlags) logError(format string, args ...interface{}) {
	if !g.Quiet {
		fmt.Fprintf(os.Stderr, "[ERROR] "+format+"\n", args...)
	}
}

// fatal prints err and exits 1, or emits a minimal JSON error object when
// globals.JSON is set, mirroring the teacher's errors.FatalError shape
// without the package it lived in (absent from this pack).
func fatal(globals GlobalFlags, err error) {
	if globals.JSON {
		fmt.Printf(`{"error":%q}`+"\n", err.Error())
	} else if globals.NoColor {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	} else {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("Error:"), err)
	}
	os.Exit(1)
}

func main() {
	var (
		showVersion = flag.BoolP("version", "V", false, "Show version and exit")
		configPath  = flag.StringP("config", "c", "", "Path to .tsgraph/config.yaml (default: discovered from cwd)")
		jsonOutput  = flag.Bool("json", false, "Output in JSON format")
		noColor     = flag.Bool("no-color", false, "Disable color output")
		verbose     = flag.CountP("verbose", "v", "Increase verbosity (-v info, -vv debug)")
		quiet       = flag.BoolP("quiet", "q", false, "Suppress non-essential output")
	)

	flag.SetInterspersed(false)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `tsgraph - code graph indexer for TypeScript/TSX

Usage:
  tsgraph <command> [options]

Commands:
  init       Write .tsgraph/config.yaml in the current directory
  index      Index every configured package
  watch      Index once, then watch for changes and reindex incrementally
  reindex    Reindex only the files changed between two git refs
  query      dependencies_of / dependents_of / paths_between a symbol
  search     Hybrid BM25 + vector search over indexed nodes
  serve      Serve query/search/metrics over HTTP

Global Options:
  --json            Output in JSON format
  --no-color        Disable color output (respects NO_COLOR)
  -v, --verbose     Increase verbosity (-v info, -vv debug)
  -q, --quiet       Suppress non-essential output
  -c, --config      Path to .tsgraph/config.yaml
  -V, --version     Show version and exit

Environment Variables:
  OLLAMA_BASE_URL     Ollama base URL (default: http://localhost:11434)
  OLLAMA_EMBED_MODEL  Embedding model name (default: nomic-embed-text)

For detailed command help: tsgraph <command> --help

`)
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("tsgraph version %s (%s)\n", version, commit)
		os.Exit(0)
	}

	if os.Getenv("NO_COLOR") != "" {
		*noColor = true
	}
	if *quiet && *verbose > 0 {
		fmt.Fprintln(os.Stderr, "Error: cannot use --quiet and --verbose together")
		os.Exit(1)
	}
	if *jsonOutput {
		*quiet = true
	}
	color.NoColor = *noColor || color.NoColor

	globals := GlobalFlags{JSON: *jsonOutput, NoColor: *noColor, Verbose: *verbose, Quiet: *quiet}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	command, cmdArgs := args[0], args[1:]

	switch command {
	case "init":
		runInit(cmdArgs, globals)
	case "index":
		runIndex(cmdArgs, *configPath, globals)
	case "watch":
		runWatch(cmdArgs, *configPath, globals)
	case "reindex":
		runReindex(cmdArgs, *configPath, globals)
	case "query":
		runQuery(cmdArgs, *configPath, globals)
	case "search":
		runSearch(cmdArgs, *configPath, globals)
	case "serve":
		runServe(cmdArgs, *configPath, globals)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}
