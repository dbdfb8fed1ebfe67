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

	flag "github.com/spf13/pflag"
	"github.com/schollz/progressbar/v3"

	"github.com/tsgraph/engine/internal/ingest"
)

func runIndex(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	full := fs.Bool("full", false, "Clear the graph store and search index before indexing")
	mock := fs.Bool("mock-embeddings", false, "Use the deterministic mock embedding backend instead of Ollama")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: tsgraph index [--full] [--mock-embeddings]\n")
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(2)
	}

	a, err := buildApp(configPath, *mock)
	if err != nil {
		fatal(globals, err)
	}
	defer a.Close()

	if *full {
		if err := a.store.ClearAll(); err != nil {
			fatal(globals, fmt.Errorf("clear graph store: %w", err))
		}
	}

	packages := a.cfg.IngestPackages()
	for i, pkg := range packages {
		files, err := discoverFiles(pkg.CompilationRootPath, a.cfg.Watch.Include, a.cfg.Watch.Exclude)
		if err != nil {
			fatal(globals, fmt.Errorf("discover files for package %s: %w", pkg.Name, err))
		}
		packages[i].Files = files
		globals.logInfo("package %s: %d files", pkg.Name, len(files))
	}

	var bar *progressbar.ProgressBar
	if !globals.Quiet {
		total := 0
		for _, pkg := range packages {
			total += len(pkg.Files)
		}
		bar = progressbar.Default(int64(total), "indexing")
	}

	result := a.pipeline.IngestProject(context.Background(), packages)
	if bar != nil {
		_ = bar.Add(len(result.Files))
		_ = bar.Finish()
	}

	ingest.AppendIndexLog(a.dotDir, fmt.Sprintf(
		"index run: %d files, %d failed, %d nodes, %d edges",
		len(result.Files), result.FailedFiles, result.TotalNodes, result.TotalEdges))

	if globals.JSON {
		fmt.Printf(`{"files":%d,"failed":%d,"nodes":%d,"edges":%d}`+"\n",
			len(result.Files), result.FailedFiles, result.TotalNodes, result.TotalEdges)
		return
	}

	fmt.Printf("indexed %d files (%d failed): %d nodes, %d edges\n",
		len(result.Files), result.FailedFiles, result.TotalNodes, result.TotalEdges)
	if result.FailedFiles > 0 {
		for _, fr := range result.Files {
			if fr.Error != nil {
				fmt.Fprintf(os.Stderr, "  %s: %v\n", fr.FilePath, fr.Error)
			}
		}
		os.Exit(1)
	}
}
