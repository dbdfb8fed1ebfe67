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

import "math"

// BM25 tuning constants, standard Okapi defaults.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// bm25Index is an in-memory inverted index over the preprocessed tokens
// of each document's symbol and content fields.
type bm25Index struct {
	postings  map[string]map[string]int // term -> docID -> term frequency
	docLength map[string]int
	totalLen  int
	docCount  int
}

func newBM25Index() *bm25Index {
	return &bm25Index{
		postings:  make(map[string]map[string]int),
		docLength: make(map[string]int),
	}
}

func (b *bm25Index) add(doc Document) {
	b.remove(doc.ID)
	tokens := append(preprocess(doc.Symbol), preprocess(doc.Content)...)
	freq := make(map[string]int)
	for _, t := range tokens {
		freq[t]++
	}
	for term, count := range freq {
		bucket, ok := b.postings[term]
		if !ok {
			bucket = make(map[string]int)
			b.postings[term] = bucket
		}
		bucket[doc.ID] = count
	}
	b.docLength[doc.ID] = len(tokens)
	b.totalLen += len(tokens)
	b.docCount++
}

func (b *bm25Index) remove(docID string) {
	if length, ok := b.docLength[docID]; ok {
		b.totalLen -= length
		b.docCount--
		delete(b.docLength, docID)
		for term, bucket := range b.postings {
			if _, ok := bucket[docID]; ok {
				delete(bucket, docID)
				if len(bucket) == 0 {
					delete(b.postings, term)
				}
			}
		}
	}
}

func (b *bm25Index) avgDocLength() float64 {
	if b.docCount == 0 {
		return 0
	}
	return float64(b.totalLen) / float64(b.docCount)
}

// score computes the raw (unnormalized) Okapi BM25 score of query against
// docID.
func (b *bm25Index) score(query string, docID string) float64 {
	avgLen := b.avgDocLength()
	if avgLen == 0 {
		return 0
	}
	docLen := float64(b.docLength[docID])
	var total float64
	for _, term := range preprocess(query) {
		bucket, ok := b.postings[term]
		if !ok {
			continue
		}
		tf, ok := bucket[docID]
		if !ok {
			continue
		}
		n := len(bucket)
		idf := math.Log(1 + (float64(b.docCount)-float64(n)+0.5)/(float64(n)+0.5))
		num := float64(tf) * (bm25K1 + 1)
		den := float64(tf) + bm25K1*(1-bm25B+bm25B*docLen/avgLen)
		total += idf * num / den
	}
	return total
}

// candidates returns every document ID containing at least one query term.
func (b *bm25Index) candidates(query string) map[string]bool {
	out := make(map[string]bool)
	for _, term := range preprocess(query) {
		bucket, ok := b.postings[term]
		if !ok {
			continue
		}
		for docID := range bucket {
			out[docID] = true
		}
	}
	return out
}
