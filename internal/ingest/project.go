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

package ingest

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/tsgraph/engine/internal/extract"
)

// Package is one configured compilation unit (§6 "packages: list of
// {name, compilation_root_path}").
type Package struct {
	Name                string
	CompilationRootPath string
	Files               []string // relative_path entries scoped to this root
}

// ProjectResult aggregates every file's outcome across a full-project
// ingestion run.
type ProjectResult struct {
	Files       []FileResult
	TotalNodes  int
	TotalEdges  int
	FailedFiles int
}

// sequentialThreshold mirrors the teacher's parseFilesParallel: small
// file sets are processed on the calling goroutine rather than paying
// worker-pool setup cost.
const sequentialThreshold = 10

// parallelWorkers bounds the errgroup's concurrent file pipelines.
const parallelWorkers = 8

// IngestProject iterates every configured package's files, building a
// project-wide symbol registry as files complete so later files can
// resolve imports from earlier ones, then running IngestFile for each
// file. External files pulled in transitively by imports but outside a
// package's compilation root are never included in pkg.Files by the
// caller, so they are implicitly excluded here too.
func (p *Pipeline) IngestProject(ctx context.Context, packages []Package) ProjectResult {
	registry := newProjectRegistry()

	var result ProjectResult
	var mu sync.Mutex
	for _, pkg := range packages {
		AppendIndexLog(p.DotDir, "reindex project package "+pkg.Name+" starting")
		fileResults := p.ingestPackageFiles(ctx, pkg, registry)
		mu.Lock()
		for _, fr := range fileResults {
			result.Files = append(result.Files, fr)
			result.TotalNodes += fr.NodesAdded
			result.TotalEdges += fr.EdgesAdded
			if fr.Error != nil {
				result.FailedFiles++
			}
		}
		mu.Unlock()
	}
	return result
}

// IngestFiles runs the pipeline over an arbitrary file set that isn't
// tied to a configured Package, building a registry scoped to just this
// run. Used by gitdelta's ReindexDelta (C15) to reindex only the files a
// git delta touched, without requiring the caller to assemble a full
// Package.
func (p *Pipeline) IngestFiles(ctx context.Context, pkgName string, files []string) []FileResult {
	registry := newProjectRegistry()
	return p.ingestPackageFiles(ctx, Package{Name: pkgName, Files: files}, registry)
}

func (p *Pipeline) ingestPackageFiles(ctx context.Context, pkg Package, registry *projectRegistry) []FileResult {
	if len(pkg.Files) < sequentialThreshold {
		results := make([]FileResult, 0, len(pkg.Files))
		for _, file := range pkg.Files {
			fr := p.IngestFile(ctx, file, pkg.Name, registry)
			registry.absorb(file, fr)
			results = append(results, fr)
		}
		return results
	}

	results := make([]FileResult, len(pkg.Files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelWorkers)
	var mu sync.Mutex
	for i, file := range pkg.Files {
		i, file := i, file
		g.Go(func() error {
			fr := p.IngestFile(gctx, file, pkg.Name, registry)
			mu.Lock()
			results[i] = fr
			mu.Unlock()
			registry.absorb(file, fr)
			return nil // per-file errors are collected in FileResult, not propagated
		})
	}
	_ = g.Wait()
	return results
}

// projectRegistry implements extract.ProjectRegistry by accumulating the
// exported-symbol map of every file ingested so far in this run. Later
// files resolve imports against it; earlier files never see it update
// retroactively, matching the "ordering guarantees" in §5 (nodes exist
// before their file's own edges reference them, but cross-file edges to
// not-yet-ingested files are simply unresolved, not erroneous).
type projectRegistry struct {
	mu      sync.RWMutex
	exports map[string]map[string]string // fromModule (file path) -> symbolName -> nodeID
}

func newProjectRegistry() *projectRegistry {
	return &projectRegistry{exports: make(map[string]map[string]string)}
}

// ResolveImport implements extract.ProjectRegistry.
func (r *projectRegistry) ResolveImport(fromFile, fromModule, symbolName string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	symbols, ok := r.exports[fromModule]
	if !ok {
		return "", false
	}
	id, ok := symbols[symbolName]
	return id, ok
}

var _ extract.ProjectRegistry = (*projectRegistry)(nil)

// absorb records a successfully-ingested file's exported-symbol map so
// later files' ResolveImport calls can see it.
func (r *projectRegistry) absorb(fromModule string, fr FileResult) {
	if fr.Error != nil || len(fr.ExportedSymbols) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exports[fromModule] = fr.ExportedSymbols
}
