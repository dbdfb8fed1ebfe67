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
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/tsgraph/engine/internal/config"
	"github.com/tsgraph/engine/internal/embedbackend"
	"github.com/tsgraph/engine/internal/embedcache"
	"github.com/tsgraph/engine/internal/embedpool"
	"github.com/tsgraph/engine/internal/extract/treesitter"
	"github.com/tsgraph/engine/internal/fakeembed"
	"github.com/tsgraph/engine/internal/graphstore"
	"github.com/tsgraph/engine/internal/ingest"
	"github.com/tsgraph/engine/internal/query"
	"github.com/tsgraph/engine/internal/resolve"
	"github.com/tsgraph/engine/internal/search"
)

// sourceExtensions bounds every file-discovery walk and the watcher to
// the two grammars internal/extract/treesitter supports.
var sourceExtensions = []string{".ts", ".tsx"}

// dotDirName is where the embedding cache and the watch manifest
// live, alongside config.DefaultConfigFile.
const dotDirName = config.DefaultConfigDir

// app bundles every long-lived collaborator a subcommand needs, built
// once from a resolved Config.
type app struct {
	cfg      *config.Config
	dotDir   string
	store    *graphstore.Store
	cache    *embedcache.Cache
	pool     *embedpool.Pool
	index    *search.Index
	pipeline *ingest.Pipeline
	engine   query.Engine
}

// resolveConfigPath finds the active config file: the explicit flag, or
// a discovered .tsgraph/config.yaml walking up from cwd.
func resolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getwd: %w", err)
	}
	return config.Find(cwd)
}

// buildApp loads config and wires every collaborator index/watch/query/
// search/serve share. mock selects the deterministic fakeembed.Backend
// (for CI and offline use) over the default Ollama HTTP backend.
func buildApp(configPath string, mock bool) (*app, error) {
	path, err := resolveConfigPath(configPath)
	if err != nil {
		return nil, fmt.Errorf("locate config: %w", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}

	dotDir := filepath.Join(filepath.Dir(path), dotDirName)
	if filepath.Base(filepath.Dir(path)) == dotDirName {
		dotDir = filepath.Dir(path)
	}
	if err := os.MkdirAll(dotDir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dotDir, err)
	}

	store, err := graphstore.Open(cfg.Storage.Type, cfg.Storage.Path)
	if err != nil && err != graphstore.ErrSchemaMismatch {
		return nil, fmt.Errorf("open graph store: %w", err)
	}
	if err == graphstore.ErrSchemaMismatch {
		if clearErr := store.ClearAll(); clearErr != nil {
			return nil, fmt.Errorf("clear stale schema: %w", clearErr)
		}
	}

	cachePath := filepath.Join(dotDir, "embed_cache.bin")
	cache, err := embedcache.Open(cachePath)
	if err != nil {
		return nil, fmt.Errorf("open embed cache %s: %w", cachePath, err)
	}

	backend := embedBackend(mock, cfg)
	pool := embedpool.New(backend, cfg.EmbedPreset(), cfg.Embedding.PoolSize)
	if err := pool.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize embedding pool: %w", err)
	}

	idx := search.New()

	pipeline := &ingest.Pipeline{
		Parser: treesitter.New(),
		Store:  store,
		Index:  idx,
		Cache:  cache,
		Pool:   pool,
		DotDir: dotDir,
	}

	engine := query.Engine{
		Store:    store,
		Resolver: &resolve.Resolver{Store: store},
	}

	return &app{
		cfg:      cfg,
		dotDir:   dotDir,
		store:    store,
		cache:    cache,
		pool:     pool,
		index:    idx,
		pipeline: pipeline,
		engine:   engine,
	}, nil
}

func embedBackend(mock bool, cfg *config.Config) embedpool.Backend {
	if mock {
		return &fakeembed.Backend{Dimensions: cfg.Embedding.Dimensions}
	}
	return embedbackend.NewOllama(os.Getenv("OLLAMA_BASE_URL"), ollamaModel())
}

func ollamaModel() string {
	if m := os.Getenv("OLLAMA_EMBED_MODEL"); m != "" {
		return m
	}
	return "nomic-embed-text"
}

// rebuildSearchIndex repopulates a.index from every node currently in
// the graph store, recovering each node's embedding vector from the
// content-addressed embed cache (the same cache the ingestion pipeline
// writes to, keyed by embedcache.Hash of the node's snippet) rather than
// re-embedding. The search index itself is in-memory only (C6), so any
// process that queries or searches without having just run index in the
// same run needs this before Hybrid/Fulltext/Vector see any documents.
func (a *app) rebuildSearchIndex() error {
	nodes, err := a.store.AllNodes()
	if err != nil {
		return fmt.Errorf("list nodes: %w", err)
	}
	docs := make([]search.Document, 0, len(nodes))
	for _, n := range nodes {
		vec, _ := a.cache.Get(n.ContentHash)
		docs = append(docs, search.Document{
			ID:        n.ID,
			Symbol:    n.Name,
			File:      n.FilePath,
			NodeType:  string(n.Type),
			Content:   n.Snippet,
			Embedding: vec,
		})
	}
	a.index.Insert(docs)
	return nil
}

// findPackage returns the named configured package, or the first one
// when name is empty. Used by subcommands (reindex, watch) that operate
// on exactly one package at a time.
func (a *app) findPackage(name string) (config.Package, error) {
	if len(a.cfg.Packages) == 0 {
		return config.Package{}, fmt.Errorf("no packages configured")
	}
	if name == "" {
		return a.cfg.Packages[0], nil
	}
	for _, p := range a.cfg.Packages {
		if p.Name == name {
			return p, nil
		}
	}
	return config.Package{}, fmt.Errorf("no configured package named %q", name)
}

func (a *app) Close() {
	a.pool.Dispose()
	_ = a.cache.Close()
	_ = a.store.Close()
}

// discoverFiles walks root collecting every source file whose relative
// path passes the include/exclude globs, the same matching rule
// internal/watch.Watcher applies to live fsnotify events (§4.8).
func discoverFiles(root string, include, exclude []string) ([]string, error) {
	var files []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			base := info.Name()
			if skipDir(base) {
				return filepath.SkipDir
			}
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if !hasSourceExtension(rel) {
			return nil
		}
		if !globMatches(rel, include, exclude) {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return files, nil
}

func skipDir(base string) bool {
	switch base {
	case ".git", "node_modules", "vendor", "dist", "build", ".cache", "bin", dotDirName:
		return true
	}
	return strings.HasPrefix(base, ".") && base != "."
}

func hasSourceExtension(rel string) bool {
	for _, ext := range sourceExtensions {
		if strings.HasSuffix(rel, ext) {
			return true
		}
	}
	return false
}

func globMatches(rel string, include, exclude []string) bool {
	for _, pattern := range exclude {
		if m, _ := doublestar.Match(pattern, rel); m {
			return false
		}
	}
	if len(include) == 0 {
		return true
	}
	for _, pattern := range include {
		if m, _ := doublestar.Match(pattern, rel); m {
			return true
		}
	}
	return false
}
