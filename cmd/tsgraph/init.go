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
	"path/filepath"

	flag "github.com/spf13/pflag"

	"github.com/tsgraph/engine/internal/config"
)

func runInit(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	name := fs.String("name", "", "Package name (default: current directory name)")
	root := fs.String("root", ".", "Compilation root path for the default package")
	force := fs.Bool("force", false, "Overwrite an existing config file")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: tsgraph init [--name NAME] [--root PATH] [--force]\n")
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(2)
	}

	cwd, err := os.Getwd()
	if err != nil {
		fatal(globals, fmt.Errorf("getwd: %w", err))
	}

	path := filepath.Join(cwd, config.DefaultConfigDir, config.DefaultConfigFile)
	if _, statErr := os.Stat(path); statErr == nil && !*force {
		fatal(globals, fmt.Errorf("%s already exists (use --force to overwrite)", path))
	}

	pkgName := *name
	if pkgName == "" {
		pkgName = filepath.Base(cwd)
	}

	cfg := config.Default()
	cfg.Packages = []config.Package{{Name: pkgName, CompilationRootPath: *root}}
	cfg.Embedding.Preset = "nomic-embed-text"
	cfg.Embedding.Dimensions = 768
	cfg.Embedding.QueryPrefix = "search_query: "
	cfg.Embedding.DocumentPrefix = "search_document: "
	cfg.Watch.Include = []string{"**/*.ts", "**/*.tsx"}
	cfg.Watch.Exclude = []string{"**/*.test.ts", "**/*.test.tsx", "**/*.d.ts"}

	if err := config.Save(cfg, path); err != nil {
		fatal(globals, fmt.Errorf("write config: %w", err))
	}

	if globals.JSON {
		fmt.Printf(`{"config":%q}`+"\n", path)
		return
	}
	fmt.Printf("wrote %s\n", path)
}
