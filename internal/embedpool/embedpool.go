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

// Package embedpool implements C4: a bounded pool of inference contexts
// over a single loaded embedding model, with FIFO queueing and
// cancellation-quiescent embed_query/embed_document calls.
package embedpool

import (
	"context"
	"fmt"
	"runtime"
	"sync"
)

// Backend is the inference backend the pool manages contexts over - the
// external collaborator named in §6 ("loads a model from disk and exposes
// create_context({threads}) and context.embed(text) -> vector").
type Backend interface {
	// LoadModel loads the model weights once, before any context is created.
	LoadModel() error
	// CreateContext creates one inference context with the given thread
	// affinity.
	CreateContext(threads int) (Context, error)
}

// Context is one inference context: stateful, not safe for concurrent use,
// and owned by exactly one in-flight request at a time.
type Context interface {
	Embed(text string) ([]float32, error)
	Dispose()
}

// OverflowError is the recognizable context-overflow error class (§4.3).
// Callers (the ingestion orchestrator, C7) type-assert for it to drive the
// progressive-truncation fallback.
type OverflowError struct {
	InputLen int
	Message  string
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("embedpool: context overflow (input length %d): %s", e.InputLen, e.Message)
}

// Preset names a model configuration: dimensions, and the query/document
// prefixes prepended to content before embedding (§6 embedding.preset).
type Preset struct {
	Name           string
	Dimensions     int
	QueryPrefix    string
	DocumentPrefix string
}

// Pool is the embedding pool: N independent inference contexts sharing one
// loaded model, scheduled free-list-first with a FIFO wait queue.
type Pool struct {
	backend Backend
	preset  Preset
	size    int

	mu       sync.Mutex
	ready    bool
	disposed bool
	free     []Context
	waiters  []chan Context
}

// New constructs a pool of size contexts (default 4 when size <= 0) over
// backend, using preset for prefixes and dimensions. It does not load the
// model or create contexts; call Initialize for that (lazy initialize per
// §4.3's contract).
func New(backend Backend, preset Preset, size int) *Pool {
	if size <= 0 {
		size = 4
	}
	return &Pool{backend: backend, preset: preset, size: size}
}

// Ready reports whether Initialize has completed successfully and Dispose
// has not yet been called.
func (p *Pool) Ready() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ready
}

// Initialize loads the model and creates p.size contexts, computing each
// context's thread affinity as max(1, floor(cpu_count / size)) (§4.3). If
// context creation fails partway through, every context created so far is
// disposed before the error propagates.
func (p *Pool) Initialize() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ready {
		return nil
	}
	if err := p.backend.LoadModel(); err != nil {
		return fmt.Errorf("embedpool: load model: %w", err)
	}

	threads := cpuThreadsPerContext(p.size)
	created := make([]Context, 0, p.size)
	for i := 0; i < p.size; i++ {
		ctx, err := p.backend.CreateContext(threads)
		if err != nil {
			for _, c := range created {
				c.Dispose()
			}
			return fmt.Errorf("embedpool: create context %d/%d: %w", i+1, p.size, err)
		}
		created = append(created, ctx)
	}

	p.free = created
	p.ready = true
	return nil
}

func cpuThreadsPerContext(size int) int {
	n := runtime.NumCPU() / size
	if n < 1 {
		n = 1
	}
	return n
}

// Dispose releases every context. Safe to call once the pool is idle;
// contexts currently on loan are disposed as they are released.
func (p *Pool) Dispose() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.free {
		c.Dispose()
	}
	p.free = nil
	p.disposed = true
	p.ready = false
}

// acquire blocks until a context is free or ctx is cancelled. It
// implements free-list-first, FIFO-queue-second scheduling: a waiter
// receives a context via direct handoff from release, never by being woken
// to re-scan the free list.
func (p *Pool) acquire(ctx context.Context) (Context, error) {
	p.mu.Lock()
	if p.disposed {
		p.mu.Unlock()
		return nil, fmt.Errorf("embedpool: pool is disposed")
	}
	if n := len(p.free); n > 0 {
		c := p.free[n-1]
		p.free = p.free[:n-1]
		p.mu.Unlock()
		return c, nil
	}
	wait := make(chan Context, 1)
	p.waiters = append(p.waiters, wait)
	p.mu.Unlock()

	select {
	case c := <-wait:
		return c, nil
	case <-ctx.Done():
		p.abandon(wait)
		return nil, ctx.Err()
	}
}

// abandon removes a waiter that was cancelled before being handed a
// context. If a context was handed to it in the race between cancellation
// and release, it is pushed back onto the free list rather than lost.
func (p *Pool) abandon(wait chan Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, w := range p.waiters {
		if w == wait {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			break
		}
	}
	select {
	case c := <-wait:
		p.free = append(p.free, c)
	default:
	}
}

func (p *Pool) release(c Context) {
	p.mu.Lock()
	if len(p.waiters) > 0 {
		wait := p.waiters[0]
		p.waiters = p.waiters[1:]
		p.mu.Unlock()
		wait <- c // direct handoff: c stays logically busy, never touches the free list
		return
	}
	if p.disposed {
		p.mu.Unlock()
		c.Dispose()
		return
	}
	p.free = append(p.free, c)
	p.mu.Unlock()
}

// embed acquires a context, embeds text with it, and releases the context
// on every exit path - including cancellation, per the §5 scoped-
// acquisition discipline.
func (p *Pool) embed(ctx context.Context, text string) ([]float32, error) {
	c, err := p.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer p.release(c)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	return c.Embed(text)
}

// EmbedQuery embeds a search query, prepending the preset's query prefix.
func (p *Pool) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return p.embed(ctx, p.preset.QueryPrefix+text)
}

// EmbedDocument embeds a document (already content-composed per §4.3's
// "// {node_type}: {name}\n// File: {file_path}\n\n{snippet}" template),
// prepending the preset's document prefix.
func (p *Pool) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	return p.embed(ctx, p.preset.DocumentPrefix+text)
}

// ComposeDocument builds the content string §4.3 specifies for a node
// before prefixing and embedding.
func ComposeDocument(nodeType, name, filePath, snippet string) string {
	return fmt.Sprintf("// %s: %s\n// File: %s\n\n%s", nodeType, name, filePath, snippet)
}
