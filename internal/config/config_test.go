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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_FillsDefaultsForUnsetFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	doc := "packages:\n  - name: app\n    compilation_root_path: src\nstorage:\n  type: sqlite\nembedding:\n  preset: nomic-embed-text\n"
	if err := os.WriteFile(path, []byte(doc), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Path != defaultStoragePath {
		t.Errorf("expected default storage path, got %q", cfg.Storage.Path)
	}
	if cfg.Watch.Duration() != 300*time.Millisecond {
		t.Errorf("expected default 300ms debounce, got %v", cfg.Watch.Duration())
	}
	if cfg.Embedding.PoolSize != defaultPoolSize {
		t.Errorf("expected default pool size %d, got %d", defaultPoolSize, cfg.Embedding.PoolSize)
	}
}

func TestLoad_ExplicitValuesOverrideDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	doc := "packages:\n  - name: app\n    compilation_root_path: src\n" +
		"storage:\n  type: sqlite\n  path: custom.db\n" +
		"watch:\n  debounce: 750\n" +
		"embedding:\n  preset: nomic-embed-text\n  pool_size: 8\n"
	if err := os.WriteFile(path, []byte(doc), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Path != "custom.db" {
		t.Errorf("expected custom.db, got %q", cfg.Storage.Path)
	}
	if cfg.Watch.Duration() != 750*time.Millisecond {
		t.Errorf("expected 750ms debounce, got %v", cfg.Watch.Duration())
	}
	if cfg.Embedding.PoolSize != 8 {
		t.Errorf("expected pool size 8, got %d", cfg.Embedding.PoolSize)
	}
}

func TestLoad_MissingEmbeddingIdentificationFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	doc := "storage:\n  type: sqlite\n"
	if err := os.WriteFile(path, []byte(doc), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Error("expected an error when neither preset nor repo+filename are set")
	}
}

func TestLoad_PackageMissingCompilationRootFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	doc := "packages:\n  - name: app\n" +
		"storage:\n  type: sqlite\n" +
		"embedding:\n  preset: nomic-embed-text\n"
	if err := os.WriteFile(path, []byte(doc), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Error("expected an error for a package missing compilation_root_path")
	}
}

func TestSaveThenLoad_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultConfigDir, DefaultConfigFile)

	cfg := Default()
	cfg.Packages = []Package{{Name: "app", CompilationRootPath: "src"}}
	cfg.Embedding.Preset = "nomic-embed-text"

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded.Packages) != 1 || loaded.Packages[0].Name != "app" {
		t.Errorf("expected round-tripped package, got %+v", loaded.Packages)
	}
}

func TestFind_WalksUpToParentDirectory(t *testing.T) {
	root := t.TempDir()
	cfg := Default()
	cfg.Embedding.Preset = "nomic-embed-text"
	configPath := filepath.Join(root, DefaultConfigDir, DefaultConfigFile)
	if err := Save(cfg, configPath); err != nil {
		t.Fatalf("Save: %v", err)
	}

	nested := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(nested, 0750); err != nil {
		t.Fatal(err)
	}

	found, err := Find(nested)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if found != configPath {
		t.Errorf("expected %q, got %q", configPath, found)
	}
}

func TestFind_NoConfigAnywhereReturnsError(t *testing.T) {
	if _, err := Find(t.TempDir()); err == nil {
		t.Error("expected an error when no config file exists")
	}
}

func TestIngestPackages_AdaptsFields(t *testing.T) {
	cfg := Default()
	cfg.Packages = []Package{{Name: "app", CompilationRootPath: "src"}}
	out := cfg.IngestPackages()
	if len(out) != 1 || out[0].Name != "app" || out[0].CompilationRootPath != "src" {
		t.Errorf("unexpected adapted packages: %+v", out)
	}
}
