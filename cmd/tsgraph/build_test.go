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
	"os"
	"path/filepath"
	"testing"

	"github.com/tsgraph/engine/internal/config"
)

func TestHasSourceExtension(t *testing.T) {
	if !hasSourceExtension("src/a.ts") {
		t.Error("expected .ts to match")
	}
	if !hasSourceExtension("src/a.tsx") {
		t.Error("expected .tsx to match")
	}
	if hasSourceExtension("src/a.json") {
		t.Error("expected .json to be rejected")
	}
}

func TestGlobMatches_ExcludeWinsOverInclude(t *testing.T) {
	if !globMatches("src/a.ts", []string{"**/*.ts"}, []string{"**/*.test.ts"}) {
		t.Error("expected src/a.ts to match include")
	}
	if globMatches("src/a.test.ts", []string{"**/*.ts"}, []string{"**/*.test.ts"}) {
		t.Error("expected src/a.test.ts to be excluded")
	}
}

func TestGlobMatches_NoIncludeMeansEverythingPasses(t *testing.T) {
	if !globMatches("src/a.ts", nil, []string{"**/vendor/**"}) {
		t.Error("expected no-include to default to allow")
	}
	if globMatches("vendor/lib.ts", nil, []string{"**/vendor/**"}) {
		t.Error("expected vendor path to be excluded")
	}
}

func TestSkipDir(t *testing.T) {
	for _, name := range []string{".git", "node_modules", "vendor", "dist", "build", ".cache", "bin", dotDirName, ".hidden"} {
		if !skipDir(name) {
			t.Errorf("expected %q to be skipped", name)
		}
	}
	if skipDir("src") {
		t.Error("expected src to not be skipped")
	}
	if skipDir(".") {
		t.Error("expected . to not be skipped")
	}
}

func TestDiscoverFiles_WalksAndFilters(t *testing.T) {
	root := t.TempDir()
	mustWrite := func(rel string) {
		full := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(full, []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	mustWrite("src/a.ts")
	mustWrite("src/a.test.ts")
	mustWrite("src/b.json")
	mustWrite("node_modules/dep/index.ts")

	files, err := discoverFiles(root, nil, []string{"**/*.test.ts"})
	if err != nil {
		t.Fatalf("discoverFiles failed: %v", err)
	}
	if len(files) != 1 || files[0] != "src/a.ts" {
		t.Errorf("expected only src/a.ts, got %v", files)
	}
}

func TestFindPackage_DefaultsToFirstWhenNameEmpty(t *testing.T) {
	a := &app{cfg: &config.Config{Packages: []config.Package{{Name: "one"}, {Name: "two"}}}}
	pkg, err := a.findPackage("")
	if err != nil {
		t.Fatalf("findPackage failed: %v", err)
	}
	if pkg.Name != "one" {
		t.Errorf("expected first package, got %q", pkg.Name)
	}
}

func TestFindPackage_ByName(t *testing.T) {
	a := &app{cfg: &config.Config{Packages: []config.Package{{Name: "one"}, {Name: "two"}}}}
	pkg, err := a.findPackage("two")
	if err != nil {
		t.Fatalf("findPackage failed: %v", err)
	}
	if pkg.Name != "two" {
		t.Errorf("expected two, got %q", pkg.Name)
	}
}

func TestFindPackage_UnknownName(t *testing.T) {
	a := &app{cfg: &config.Config{Packages: []config.Package{{Name: "one"}}}}
	if _, err := a.findPackage("missing"); err == nil {
		t.Error("expected error for unknown package name")
	}
}

func TestFindPackage_NoneConfigured(t *testing.T) {
	a := &app{cfg: &config.Config{}}
	if _, err := a.findPackage(""); err == nil {
		t.Error("expected error when no packages configured")
	}
}
