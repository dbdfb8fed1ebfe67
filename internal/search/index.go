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

package search

import (
	"sort"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/tsgraph/engine/internal/metrics"
)

// Mode selects which half (or both) of the hybrid search runs.
type Mode string

const (
	ModeFulltext Mode = "fulltext"
	ModeVector   Mode = "vector"
	ModeHybrid   Mode = "hybrid"
)

// DefaultLimit is the default result-count cap (§4.5).
const DefaultLimit = 10

// Filters narrows a query to a subset of documents before scoring.
type Filters struct {
	NodeTypes []string // empty = no filter
	FileGlob  string   // empty = no filter
	Limit     int      // <= 0 = DefaultLimit
}

// Result is one scored document.
type Result struct {
	Document Document
	Score    float64
}

// Index is the hybrid search index: one BM25 inverted index plus a flat
// map of documents for vector scoring, mutated only through batched
// inserts (§5: "the search index is written in batches; batches do not
// interleave").
type Index struct {
	mu   sync.Mutex
	bm25 *bm25Index
	docs map[string]Document
}

// New creates an empty index.
func New() *Index {
	return &Index{bm25: newBM25Index(), docs: make(map[string]Document)}
}

// Insert upserts docs in batches of at most DefaultBatchSize, each batch
// taking the index lock once so concurrent queries never observe a
// partially-written batch.
func (idx *Index) Insert(docs []Document) {
	for start := 0; start < len(docs); start += DefaultBatchSize {
		end := start + DefaultBatchSize
		if end > len(docs) {
			end = len(docs)
		}
		idx.insertBatch(docs[start:end])
	}
}

func (idx *Index) insertBatch(batch []Document) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, d := range batch {
		idx.bm25.add(d)
		idx.docs[d.ID] = d
	}
}

// Remove deletes documents by ID, e.g. when their owning file is
// reindexed or removed.
func (idx *Index) Remove(ids []string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, id := range ids {
		idx.bm25.remove(id)
		delete(idx.docs, id)
	}
}

func normalizeFilters(f Filters) Filters {
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	return f
}

func (idx *Index) passesFilter(d Document, f Filters) bool {
	if len(f.NodeTypes) > 0 {
		match := false
		for _, t := range f.NodeTypes {
			if t == d.NodeType {
				match = true
				break
			}
		}
		if !match {
			return false
		}
	}
	if f.FileGlob != "" {
		ok, err := doublestar.Match(f.FileGlob, d.File)
		if err != nil || !ok {
			return false
		}
	}
	return true
}

// Fulltext runs a BM25-only search for query, returning the top
// f.Limit results by raw BM25 score.
func (idx *Index) Fulltext(query string, f Filters) []Result {
	f = normalizeFilters(f)
	idx.mu.Lock()
	defer idx.mu.Unlock()

	var results []Result
	for docID := range idx.bm25.candidates(query) {
		d, ok := idx.docs[docID]
		if !ok || !idx.passesFilter(d, f) {
			continue
		}
		results = append(results, Result{Document: d, Score: idx.bm25.score(query, docID)})
	}
	sortDesc(results)
	return capResults(results, f.Limit)
}

// Vector runs a cosine-similarity-only search for queryVector, filtering
// out matches below similarityThreshold before returning the top
// f.Limit results.
func (idx *Index) Vector(queryVector []float32, similarityThreshold float64, f Filters) []Result {
	f = normalizeFilters(f)
	idx.mu.Lock()
	defer idx.mu.Unlock()

	var results []Result
	for _, d := range idx.docs {
		if len(d.Embedding) == 0 || !idx.passesFilter(d, f) {
			continue
		}
		cos := cosineSimilarity(queryVector, d.Embedding)
		if cos < similarityThreshold {
			continue
		}
		results = append(results, Result{Document: d, Score: cos})
	}
	sortDesc(results)
	return capResults(results, f.Limit)
}

// Hybrid runs fulltext and vector search independently, merges per
// document, and combines scores with combineScore (§4.5). A document that
// only matched one of the two searches is scored as if its missing half
// contributed 0.
func (idx *Index) Hybrid(query string, queryVector []float32, similarityThreshold float64, f Filters) []Result {
	start := time.Now()
	defer func() { metrics.ObserveSearch(start, nil) }()
	f = normalizeFilters(f)
	idx.mu.Lock()
	bm25Candidates := idx.bm25.candidates(query)
	bm25Scores := make(map[string]float64, len(bm25Candidates))
	var maxBM25 float64
	for docID := range bm25Candidates {
		d, ok := idx.docs[docID]
		if !ok || !idx.passesFilter(d, f) {
			continue
		}
		s := idx.bm25.score(query, docID)
		bm25Scores[docID] = s
		if s > maxBM25 {
			maxBM25 = s
		}
	}

	cosineScores := make(map[string]float64)
	if len(queryVector) > 0 {
		for id, d := range idx.docs {
			if len(d.Embedding) == 0 || !idx.passesFilter(d, f) {
				continue
			}
			cos := cosineSimilarity(queryVector, d.Embedding)
			if cos >= similarityThreshold {
				cosineScores[id] = cos
			}
		}
	}
	docs := idx.docs
	idx.mu.Unlock()

	merged := make(map[string]bool, len(bm25Scores)+len(cosineScores))
	for id := range bm25Scores {
		merged[id] = true
	}
	for id := range cosineScores {
		merged[id] = true
	}

	results := make([]Result, 0, len(merged))
	for id := range merged {
		d, ok := docs[id]
		if !ok {
			continue
		}
		score := combineScore(bm25Scores[id], maxBM25, cosineScores[id])
		results = append(results, Result{Document: d, Score: score})
	}
	sortDesc(results)
	return capResults(results, f.Limit)
}

func sortDesc(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Document.ID < results[j].Document.ID
	})
}

func capResults(results []Result, limit int) []Result {
	if len(results) > limit {
		return results[:limit]
	}
	return results
}
