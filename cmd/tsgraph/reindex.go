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
	"path/filepath"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/tsgraph/engine/internal/gitdelta"
)

func manifestPath(dotDir, pkgName string) string {
	return filepath.Join(dotDir, "manifest-"+pkgName+".json")
}

func runReindex(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("reindex", flag.ExitOnError)
	base := fs.String("base", "", "Base git ref (required)")
	head := fs.String("head", "HEAD", "Head git ref")
	pkgFlag := fs.String("package", "", "Name of the configured package to reindex (default: the first one)")
	exclude := fs.String("exclude", "", "Comma-separated exclude globs")
	maxSize := fs.Int64("max-file-size", 0, "Skip files larger than this many bytes (0 = no limit)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: tsgraph reindex --base REF [--head REF] [--package NAME]\n")
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(2)
	}
	if *base == "" {
		fs.Usage()
		os.Exit(2)
	}

	a, err := buildApp(configPath, false)
	if err != nil {
		fatal(globals, err)
	}
	defer a.Close()

	pkg, err := a.findPackage(*pkgFlag)
	if err != nil {
		fatal(globals, err)
	}

	opts := gitdelta.FilterOptions{MaxFileSize: *maxSize}
	if *exclude != "" {
		opts.ExcludeGlobs = strings.Split(*exclude, ",")
	}

	summary, err := gitdelta.ReindexDelta(context.Background(), a.pipeline, pkg.CompilationRootPath,
		manifestPath(a.dotDir, pkg.Name), pkg.Name, opts, *base, *head)
	if err != nil {
		fatal(globals, err)
	}

	if globals.JSON {
		fmt.Printf(`{"reindexed":%d,"removed":%d,"failed":%d}`+"\n",
			len(summary.Reindexed), len(summary.Removed), len(summary.Failed))
		return
	}
	fmt.Printf("%s..%s: %d reindexed, %d removed, %d failed\n",
		summary.BaseSHA, summary.HeadSHA, len(summary.Reindexed), len(summary.Removed), len(summary.Failed))
	for path, ferr := range summary.Failed {
		fmt.Fprintf(os.Stderr, "  %s: %v\n", path, ferr)
	}
}
