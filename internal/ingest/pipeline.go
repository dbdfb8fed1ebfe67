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

// Package ingest implements C7: the per-file ingestion pipeline (extract,
// snippet, embed with fallback, write) and project-wide orchestration
// over it.
package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tsgraph/engine/internal/embedcache"
	"github.com/tsgraph/engine/internal/embedpool"
	"github.com/tsgraph/engine/internal/extract"
	"github.com/tsgraph/engine/internal/graphstore"
	"github.com/tsgraph/engine/internal/metrics"
	"github.com/tsgraph/engine/internal/model"
	"github.com/tsgraph/engine/internal/search"
	"github.com/tsgraph/engine/internal/sourcetree"
)

// minSnippetLength is the floor the progressive-truncation fallback
// halves down to before giving up on snippet content entirely (§4.7).
const minSnippetLength = 100

// Parser parses one source file into the neutral sourcetree IR. The
// concrete implementation (a go-tree-sitter adapter) lives outside this
// package; ingest only depends on this interface, per §6's "must never
// depend on a specific library surface" rule carried through from C3.
type Parser interface {
	ParseFile(filePath string) (*sourcetree.File, string, error) // returns (tree, file content, error)
}

// Pipeline wires together the extractor, the embedding pool and cache,
// and the graph/search stores into the per-file ingestion pipeline.
type Pipeline struct {
	Parser Parser
	Store  *graphstore.Store
	Index  *search.Index
	Cache  *embedcache.Cache
	Pool   *embedpool.Pool
	DotDir string // for AppendIndexLog; empty disables logging
}

// FileResult is the per-file outcome §4.2.3 and §4.7 require.
type FileResult struct {
	FilePath   string
	NodesAdded int
	EdgesAdded int
	Error      error

	// ExportedSymbols is this file's name -> node ID map for symbols a
	// ProjectRegistry should expose to other files (see
	// extract.ExportedSymbols). Empty when Error is set.
	ExportedSymbols map[string]string
}

// IngestFile runs the full per-file pipeline: extract, snippet, embed
// (with fallback), write nodes, write search documents, write edges.
// Callers reindexing a file are responsible for first calling
// RemoveFile to clear its prior data.
func (p *Pipeline) IngestFile(ctx context.Context, filePath, pkg string, registry extract.ProjectRegistry) FileResult {
	start := time.Now()
	result := p.ingestFile(ctx, filePath, pkg, registry)
	metrics.ObserveIngest(start, result.NodesAdded, result.EdgesAdded, result.Error)
	return result
}

func (p *Pipeline) ingestFile(ctx context.Context, filePath, pkg string, registry extract.ProjectRegistry) FileResult {
	tree, content, err := p.Parser.ParseFile(filePath)
	if err != nil {
		AppendIndexLog(p.DotDir, fmt.Sprintf("reindex failed %s: parse: %v", filePath, err))
		return FileResult{FilePath: filePath, Error: fmt.Errorf("parse %s: %w", filePath, err)}
	}

	extractCtx := extract.Context{FilePath: filePath, Package: pkg, Registry: registry}
	result := extract.Extract(extractCtx, tree)

	lines := strings.Split(content, "\n")
	docs := make([]search.Document, 0, len(result.Nodes))
	for i := range result.Nodes {
		n := &result.Nodes[i]
		n.Snippet = snippetFor(lines, n.StartLine, n.EndLine)

		embedResult, err := p.embedWithFallback(ctx, *n)
		if err != nil {
			AppendIndexLog(p.DotDir, fmt.Sprintf("reindex failed %s: embed %s: %v", filePath, n.ID, err))
			return FileResult{FilePath: filePath, Error: fmt.Errorf("embed %s: %w", n.ID, err)}
		}
		n.ContentHash = embedResult.contentHash

		docs = append(docs, search.Document{
			ID:        n.ID,
			Symbol:    n.Name,
			File:      n.FilePath,
			NodeType:  string(n.Type),
			Content:   n.Snippet,
			Embedding: embedResult.vector,
		})
	}

	if err := p.Store.AddNodes(result.Nodes); err != nil {
		AppendIndexLog(p.DotDir, fmt.Sprintf("reindex failed %s: write nodes: %v", filePath, err))
		return FileResult{FilePath: filePath, Error: fmt.Errorf("write nodes: %w", err)}
	}
	p.Index.Insert(docs)
	if err := p.Store.AddEdges(result.Edges); err != nil {
		AppendIndexLog(p.DotDir, fmt.Sprintf("reindex failed %s: write edges: %v", filePath, err))
		return FileResult{FilePath: filePath, Error: fmt.Errorf("write edges: %w", err)}
	}

	AppendIndexLog(p.DotDir, fmt.Sprintf("reindex %s: %d nodes, %d edges", filePath, len(result.Nodes), len(result.Edges)))
	return FileResult{
		FilePath:        filePath,
		NodesAdded:      len(result.Nodes),
		EdgesAdded:      len(result.Edges),
		ExportedSymbols: extract.ExportedSymbols(result),
	}
}

// RemoveFile clears a file's prior nodes (and every edge incident to
// them, per graphstore.Store.RemoveFileNodes) and its search documents. Callers
// reindexing a changed file call this first (§4.7).
func (p *Pipeline) RemoveFile(filePath string) error {
	ids, err := p.nodeIDsForFile(filePath)
	if err != nil {
		return err
	}
	if err := p.Store.RemoveFileNodes(filePath); err != nil {
		return fmt.Errorf("remove file nodes: %w", err)
	}
	p.Index.Remove(ids)
	return nil
}

func (p *Pipeline) nodeIDsForFile(filePath string) ([]string, error) {
	return p.Store.NodeIDsForFile(filePath)
}

type embedOutcome struct {
	vector      []float32
	contentHash string
}

// embedWithFallback implements §4.7's ordered fallback ladder: full
// content, then (for classes) a structurally-stripped signature-only
// version, then progressively halved snippets down to minSnippetLength,
// then metadata-only. Each attempt probes the cache by content hash
// before calling the pool, and writes fresh embeds back to the cache.
func (p *Pipeline) embedWithFallback(ctx context.Context, n model.Node) (embedOutcome, error) {
	attempts := fallbackAttempts(n)
	var lastErr error
	for _, content := range attempts {
		vec, hash, err := p.embedOne(ctx, n, content)
		if err == nil {
			return embedOutcome{vector: vec, contentHash: hash}, nil
		}
		var overflow *embedpool.OverflowError
		if !isOverflow(err, &overflow) {
			return embedOutcome{}, err
		}
		lastErr = err
	}
	return embedOutcome{}, fmt.Errorf("embed_with_fallback: all attempts overflowed: %w", lastErr)
}

func (p *Pipeline) embedOne(ctx context.Context, n model.Node, content string) ([]float32, string, error) {
	hash := embedcache.Hash(content)
	if vec, ok := p.Cache.Get(hash); ok {
		return vec, hash, nil
	}
	vec, err := p.Pool.EmbedDocument(ctx, content)
	if err != nil {
		return nil, "", err
	}
	p.Cache.Set(hash, vec)
	return vec, hash, nil
}

func isOverflow(err error, target **embedpool.OverflowError) bool {
	if oe, ok := err.(*embedpool.OverflowError); ok {
		*target = oe
		return true
	}
	return false
}

// fallbackAttempts builds the ordered content strings §4.7 specifies.
func fallbackAttempts(n model.Node) []string {
	full := embedpool.ComposeDocument(string(n.Type), n.Name, n.FilePath, n.Snippet)
	attempts := []string{full}

	if n.Type == model.NodeClass {
		stripped := classSignatureOnly(n)
		attempts = append(attempts, embedpool.ComposeDocument(string(n.Type), n.Name, n.FilePath, stripped))
	}

	snippet := n.Snippet
	for len(snippet) > minSnippetLength {
		snippet = snippet[:len(snippet)/2]
		attempts = append(attempts, embedpool.ComposeDocument(string(n.Type), n.Name, n.FilePath, snippet))
	}

	attempts = append(attempts, fmt.Sprintf("// %s: %s\n// File: %s", n.Type, n.Name, n.FilePath))
	return attempts
}

// classSignatureOnly reduces a class snippet to its declaration line plus
// extends/implements text, dropping method bodies - a structurally
// stripped version for the second fallback rung.
func classSignatureOnly(n model.Node) string {
	var b strings.Builder
	fmt.Fprintf(&b, "class %s", n.Name)
	if n.Extends != "" {
		fmt.Fprintf(&b, " extends %s", n.Extends)
	}
	if len(n.Implements) > 0 {
		fmt.Fprintf(&b, " implements %s", strings.Join(n.Implements, ", "))
	}
	return b.String()
}

// snippetFor extracts lines[startLine-1 .. endLine] (1-indexed inclusive,
// §4.7 step 2), clamped to the available line range.
func snippetFor(lines []string, startLine, endLine int) string {
	if startLine < 1 {
		startLine = 1
	}
	if endLine > len(lines) {
		endLine = len(lines)
	}
	if startLine > endLine || startLine > len(lines) {
		return ""
	}
	return strings.Join(lines[startLine-1:endLine], "\n")
}
