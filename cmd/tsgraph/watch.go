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
	"os/signal"
	"path/filepath"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/tsgraph/engine/internal/config"
	"github.com/tsgraph/engine/internal/ingest"
	"github.com/tsgraph/engine/internal/watch"
)

// cliReindexer adapts one configured package's ingest.Pipeline to
// watch.Reindexer: Resolve reapplies the same include/exclude rule
// Watcher.matches already checked (paths outside the watched root never
// reach here, so this only needs to re-derive the package-relative
// path), Reindex clears and re-ingests a single file, Remove clears it.
type cliReindexer struct {
	pipeline *ingest.Pipeline
	pkg      config.Package
}

func (r *cliReindexer) Resolve(path string) bool { return true }

func (r *cliReindexer) Reindex(ctx context.Context, path string) error {
	if err := r.pipeline.RemoveFile(path); err != nil {
		return fmt.Errorf("remove prior: %w", err)
	}
	result := r.pipeline.IngestFile(ctx, path, r.pkg.Name, nil)
	return result.Error
}

func (r *cliReindexer) Remove(path string) error {
	return r.pipeline.RemoveFile(path)
}

func runWatch(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	mock := fs.Bool("mock-embeddings", false, "Use the deterministic mock embedding backend instead of Ollama")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: tsgraph watch [--mock-embeddings]\n")
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(2)
	}

	a, err := buildApp(configPath, *mock)
	if err != nil {
		fatal(globals, err)
	}
	defer a.Close()

	if len(a.cfg.Packages) == 0 {
		fatal(globals, fmt.Errorf("no packages configured"))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	watchers := make([]*watch.Watcher, 0, len(a.cfg.Packages))
	for _, pkg := range a.cfg.Packages {
		root, err := filepath.Abs(pkg.CompilationRootPath)
		if err != nil {
			fatal(globals, fmt.Errorf("resolve package %s root: %w", pkg.Name, err))
		}

		w := &watch.Watcher{
			Root:         root,
			ManifestPath: manifestPath(a.dotDir, pkg.Name),
			Include:      a.cfg.Watch.Include,
			Exclude:      a.cfg.Watch.Exclude,
			Debounce:     a.cfg.Watch.Duration(),
			Extensions:   sourceExtensions,
			Reindexer:    &cliReindexer{pipeline: a.pipeline, pkg: pkg},
		}

		items, err := w.Reconciliation()
		if err != nil {
			fatal(globals, fmt.Errorf("reconcile package %s: %w", pkg.Name, err))
		}
		globals.logInfo("package %s: %d files to reconcile", pkg.Name, len(items))
		for _, item := range items {
			applyReconcileItem(ctx, w, a.pipeline, pkg, item, globals)
		}

		if err := w.Start(ctx); err != nil {
			fatal(globals, fmt.Errorf("start watcher for package %s: %w", pkg.Name, err))
		}
		watchers = append(watchers, w)
	}

	if !globals.Quiet {
		fmt.Printf("watching %d package(s); press ctrl-c to stop\n", len(watchers))
	}

	<-ctx.Done()
	for _, w := range watchers {
		_ = w.Stop()
	}
}

func applyReconcileItem(ctx context.Context, w *watch.Watcher, pipeline *ingest.Pipeline, pkg config.Package, item watch.ReconcileItem, globals GlobalFlags) {
	reindexer := &cliReindexer{pipeline: pipeline, pkg: pkg}
	switch item.Action {
	case watch.ActionRemove:
		if err := reindexer.Remove(item.Path); err != nil {
			globals.logError("reconcile remove %s: %v", item.Path, err)
			return
		}
		if err := w.RecordRemoved(item.Path); err != nil {
			globals.logError("record removed %s: %v", item.Path, err)
		}
	default:
		if err := reindexer.Reindex(ctx, item.Path); err != nil {
			globals.logError("reconcile reindex %s: %v", item.Path, err)
			return
		}
		if err := w.RecordReconciled(item.Path); err != nil {
			globals.logError("record reconciled %s: %v", item.Path, err)
		}
	}
}
