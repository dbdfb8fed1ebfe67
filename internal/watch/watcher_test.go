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

package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestMatches_ExtensionFilter(t *testing.T) {
	w := &Watcher{Extensions: []string{".ts", ".tsx"}}
	if !w.matches("src/a.ts") {
		t.Error("expected .ts to match")
	}
	if w.matches("src/a.json") {
		t.Error("expected .json to be rejected")
	}
}

func TestMatches_ExcludeWinsOverInclude(t *testing.T) {
	w := &Watcher{Include: []string{"**/*.ts"}, Exclude: []string{"**/*.test.ts"}}
	if !w.matches("src/a.ts") {
		t.Error("expected src/a.ts to match include")
	}
	if w.matches("src/a.test.ts") {
		t.Error("expected src/a.test.ts to be excluded")
	}
}

func TestMatches_NoIncludeMeansEverythingPasses(t *testing.T) {
	w := &Watcher{Exclude: []string{"**/vendor/**"}}
	if !w.matches("src/a.ts") {
		t.Error("expected no-include to default to allow")
	}
	if w.matches("vendor/lib.ts") {
		t.Error("expected vendor path to be excluded")
	}
}

type fakeReindexer struct {
	resolveOK  bool
	reindexed  []string
	removed    []string
	reindexErr error
}

func (f *fakeReindexer) Resolve(path string) bool { return f.resolveOK }

func (f *fakeReindexer) Reindex(_ context.Context, path string) error {
	f.reindexed = append(f.reindexed, path)
	return f.reindexErr
}

func (f *fakeReindexer) Remove(path string) error {
	f.removed = append(f.removed, path)
	return nil
}

var _ Reindexer = (*fakeReindexer)(nil)

func TestRunReindex_ResolvesRemovesAndReindexesThenUpdatesManifest(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "a.ts"), []byte("x"), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	rz := &fakeReindexer{resolveOK: true}
	w := &Watcher{
		Root:         root,
		ManifestPath: filepath.Join(root, ".cache", "manifest.json"),
		Reindexer:    rz,
		manifest:     New(),
		inProgress:   make(map[string]bool),
		timers:       make(map[string]*time.Timer),
	}

	w.runReindex(context.Background(), "a.ts")

	if len(rz.removed) != 1 || rz.removed[0] != "a.ts" {
		t.Errorf("expected a.ts removed first, got %v", rz.removed)
	}
	if len(rz.reindexed) != 1 || rz.reindexed[0] != "a.ts" {
		t.Errorf("expected a.ts reindexed, got %v", rz.reindexed)
	}
	if _, ok := w.manifest.Get("a.ts"); !ok {
		t.Error("expected manifest updated after successful reindex")
	}
}

func TestRecordReconciled_UpdatesAndPersistsManifest(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "a.ts"), []byte("x"), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	manifestPath := filepath.Join(root, ".cache", "manifest.json")
	w := &Watcher{Root: root, ManifestPath: manifestPath, manifest: New()}

	if err := w.RecordReconciled("a.ts"); err != nil {
		t.Fatalf("RecordReconciled failed: %v", err)
	}
	if _, ok := w.manifest.Get("a.ts"); !ok {
		t.Error("expected manifest to contain a.ts")
	}

	reloaded, err := Load(manifestPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, ok := reloaded.Get("a.ts"); !ok {
		t.Error("expected persisted manifest to contain a.ts")
	}
}

func TestRecordReconciled_MissingFileErrors(t *testing.T) {
	root := t.TempDir()
	w := &Watcher{Root: root, ManifestPath: filepath.Join(root, ".cache", "manifest.json"), manifest: New()}

	if err := w.RecordReconciled("missing.ts"); err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestRecordRemoved_ClearsAndPersistsManifest(t *testing.T) {
	root := t.TempDir()
	manifestPath := filepath.Join(root, ".cache", "manifest.json")
	m := New()
	m.Set("a.ts", FileRecord{MTimeNS: 1, SizeBytes: 1})
	w := &Watcher{Root: root, ManifestPath: manifestPath, manifest: m}

	if err := w.RecordRemoved("a.ts"); err != nil {
		t.Fatalf("RecordRemoved failed: %v", err)
	}
	if _, ok := w.manifest.Get("a.ts"); ok {
		t.Error("expected a.ts to be removed from manifest")
	}

	reloaded, err := Load(manifestPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, ok := reloaded.Get("a.ts"); ok {
		t.Error("expected persisted manifest to no longer contain a.ts")
	}
}

func TestRunReindex_SkipsWhenAlreadyInProgress(t *testing.T) {
	root := t.TempDir()
	rz := &fakeReindexer{resolveOK: true}
	w := &Watcher{
		Root:       root,
		Reindexer:  rz,
		manifest:   New(),
		inProgress: map[string]bool{"a.ts": true},
		timers:     make(map[string]*time.Timer),
	}

	w.runReindex(context.Background(), "a.ts")

	if len(rz.reindexed) != 0 {
		t.Errorf("expected no reindex while already in progress, got %v", rz.reindexed)
	}
}
