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
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/tsgraph/engine/internal/metrics"
)

// skipDirs mirrors the teacher's watchSkipDirs: directories never worth
// a recursive watch subscription.
var skipDirs = map[string]bool{
	".git": true, "node_modules": true, "vendor": true,
	"dist": true, "build": true, ".cache": true, "bin": true,
}

// DefaultDebounce is §6's watch.debounce default.
const DefaultDebounce = 300 * time.Millisecond

// Reindexer performs the per-file work a debounced batch or a startup
// reconciliation schedules. Resolve reports whether path belongs to a
// configured compilation unit (§4.8's "validate that the file belongs to
// the compilation unit" step); Reindex removes the file's prior nodes
// and runs C7's pipeline; Remove clears a deleted file's prior data.
type Reindexer interface {
	Resolve(path string) (ok bool)
	Reindex(ctx context.Context, path string) error
	Remove(path string) error
}

// Watcher is a debounced, manifest-synchronized fsnotify watcher
// implementing §4.8.
type Watcher struct {
	Root         string
	ManifestPath string
	Include      []string
	Exclude      []string
	Debounce     time.Duration
	Extensions   []string // source-file extensions events are filtered to, e.g. ".ts", ".tsx"

	Reindexer Reindexer

	manifest *Manifest
	fsw      *fsnotify.Watcher

	mu         sync.Mutex
	timers     map[string]*time.Timer
	inProgress map[string]bool
	pending    map[string]bool // paths whose debounce fired while their previous reindex was still running
}

// Reconciliation inspects the manifest and the live filesystem for
// every extension-matching file under root, returning startup actions
// per §4.8's first paragraph.
func (w *Watcher) Reconciliation() ([]ReconcileItem, error) {
	manifest, err := Load(w.ManifestPath)
	if err != nil {
		return nil, err
	}
	w.manifest = manifest

	current := make(map[string]FileRecord)
	err = filepath.Walk(w.Root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if skipDirs[info.Name()] || (strings.HasPrefix(info.Name(), ".") && info.Name() != ".") {
				return filepath.SkipDir
			}
			return nil
		}
		rel, relErr := filepath.Rel(w.Root, path)
		if relErr != nil {
			return nil
		}
		if !w.matches(rel) {
			return nil
		}
		current[rel] = FileRecord{MTimeNS: info.ModTime().UnixNano(), SizeBytes: info.Size()}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", w.Root, err)
	}

	return manifest.Reconcile(current), nil
}

// Start subscribes to every non-skipped directory under Root and runs
// the debounced event loop until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify: %w", err)
	}
	w.fsw = fsw
	w.timers = make(map[string]*time.Timer)
	w.inProgress = make(map[string]bool)
	w.pending = make(map[string]bool)
	if w.Debounce <= 0 {
		w.Debounce = DefaultDebounce
	}
	if w.manifest == nil {
		w.manifest = New()
	}

	_ = filepath.Walk(w.Root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsPermission(err) {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		base := filepath.Base(path)
		if skipDirs[base] || (strings.HasPrefix(base, ".") && base != ".") {
			return filepath.SkipDir
		}
		_ = fsw.Add(path)
		return nil
	})

	go w.loop(ctx)
	return nil
}

// Stop closes the underlying fsnotify watcher, ending the event loop.
func (w *Watcher) Stop() error {
	if w.fsw == nil {
		return nil
	}
	return w.fsw.Close()
}

func (w *Watcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, ev)
		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, ev fsnotify.Event) {
	rel, err := filepath.Rel(w.Root, ev.Name)
	if err != nil || !w.matches(rel) {
		return
	}

	if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		w.cancelTimer(rel)
		w.handleRemoval(rel)
		return
	}
	if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}
	w.scheduleDebounced(ctx, rel)
}

// scheduleDebounced restarts rel's debounce timer (§4.8: "incoming
// events restart a timer ... on timer fire, ... processed as a batch").
// Each path gets its own timer so unrelated paths are never held back
// by a busy one.
func (w *Watcher) scheduleDebounced(ctx context.Context, rel string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[rel]; ok {
		t.Stop()
	}
	w.timers[rel] = time.AfterFunc(w.Debounce, func() {
		w.runReindex(ctx, rel)
	})
}

func (w *Watcher) cancelTimer(rel string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[rel]; ok {
		t.Stop()
		delete(w.timers, rel)
	}
}

// runReindex serializes reindex work per path: two concurrent reindexes
// of the same path are forbidden (§4.8's concurrency rule). A fire that
// lands while the path's previous reindex is still running marks the path
// pending, and the path is reindexed once more after the running reindex
// finishes, so a change made mid-reindex is not lost.
func (w *Watcher) runReindex(ctx context.Context, rel string) {
	w.mu.Lock()
	if w.inProgress[rel] {
		if w.pending != nil {
			w.pending[rel] = true
		}
		w.mu.Unlock()
		return
	}
	w.inProgress[rel] = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		delete(w.inProgress, rel)
		rerun := w.pending[rel]
		delete(w.pending, rel)
		w.mu.Unlock()
		if rerun && ctx.Err() == nil {
			go w.runReindex(ctx, rel)
		}
	}()

	if _, err := os.Stat(filepath.Join(w.Root, rel)); os.IsNotExist(err) {
		return // a separate unlink handler already removed it
	}
	if !w.Reindexer.Resolve(rel) {
		return
	}
	if err := w.Reindexer.Remove(rel); err != nil {
		metrics.ObserveWatchReindex(err)
		return
	}
	if err := w.Reindexer.Reindex(ctx, rel); err != nil {
		metrics.ObserveWatchReindex(err)
		return
	}

	info, err := os.Stat(filepath.Join(w.Root, rel))
	if err != nil {
		metrics.ObserveWatchReindex(err)
		return
	}
	w.manifest.Set(rel, FileRecord{MTimeNS: info.ModTime().UnixNano(), SizeBytes: info.Size()})
	_ = w.manifest.Save(w.ManifestPath)
	metrics.ObserveWatchReindex(nil)
}

// handleRemoval bypasses the debouncer per §4.8: deletion events perform
// an immediate remove and manifest update.
func (w *Watcher) handleRemoval(rel string) {
	_ = w.Reindexer.Remove(rel)
	w.manifest.Remove(rel)
	_ = w.manifest.Save(w.ManifestPath)
}

// RecordReconciled updates the manifest for a path the caller has just
// reindexed outside the debounced event loop (the startup reconciliation
// pass Reconciliation schedules) and persists the manifest immediately,
// the same bookkeeping runReindex does for a live fsnotify event.
func (w *Watcher) RecordReconciled(rel string) error {
	info, err := os.Stat(filepath.Join(w.Root, rel))
	if err != nil {
		return fmt.Errorf("stat %s: %w", rel, err)
	}
	w.manifest.Set(rel, FileRecord{MTimeNS: info.ModTime().UnixNano(), SizeBytes: info.Size()})
	return w.manifest.Save(w.ManifestPath)
}

// RecordRemoved updates the manifest for a path reconciliation found
// missing on disk and persists the manifest immediately.
func (w *Watcher) RecordRemoved(rel string) error {
	w.manifest.Remove(rel)
	return w.manifest.Save(w.ManifestPath)
}

func (w *Watcher) matches(rel string) bool {
	rel = filepath.ToSlash(rel)
	if len(w.Extensions) > 0 {
		ok := false
		for _, ext := range w.Extensions {
			if strings.HasSuffix(rel, ext) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	for _, pattern := range w.Exclude {
		if m, _ := doublestar.Match(pattern, rel); m {
			return false
		}
	}
	if len(w.Include) == 0 {
		return true
	}
	for _, pattern := range w.Include {
		if m, _ := doublestar.Match(pattern, rel); m {
			return true
		}
	}
	return false
}
