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
	"math"
	"testing"
)

func TestCombineScore_ZeroMaxBM25UsesVectorOnly(t *testing.T) {
	got := combineScore(0, 0, 0.8)
	want := 0.8 * VectorWeight
	if got != want {
		t.Errorf("combineScore(0,0,0.8) = %v, want %v", got, want)
	}
}

func TestCombineScore_NormalizesAgainstMax(t *testing.T) {
	got := combineScore(5, 10, 0.0)
	want := math.Pow(0.5, BM25Compression) * BM25Weight
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("combineScore(5,10,0) = %v, want %v", got, want)
	}
}

func TestCombineScore_FullMatchAtMax(t *testing.T) {
	got := combineScore(10, 10, 1.0)
	want := BM25Weight + VectorWeight
	if got != want {
		t.Errorf("expected max score %v when bm25==max and cos==1, got %v", want, got)
	}
}

func TestSplitSubTokens_CamelCase(t *testing.T) {
	got := splitSubTokens("getUserName")
	want := []string{"get", "user", "name"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSplitSubTokens_Acronym(t *testing.T) {
	got := splitSubTokens("parseHTTPRequest")
	joined := ""
	for _, t := range got {
		joined += t + " "
	}
	if joined != "parse http request " {
		t.Errorf("got %q", joined)
	}
}

func TestFulltext_FindsByCamelCaseSubToken(t *testing.T) {
	idx := New()
	idx.Insert([]Document{
		{ID: "1", Symbol: "getUserName", Content: "function getUserName() {}", NodeType: "Function", File: "a.ts"},
		{ID: "2", Symbol: "render", Content: "function render() {}", NodeType: "Function", File: "b.ts"},
	})

	results := idx.Fulltext("user", Filters{})
	if len(results) != 1 || results[0].Document.ID != "1" {
		t.Errorf("expected doc 1 to match 'user' via camelCase split, got %+v", results)
	}
}

func TestVector_ThresholdFiltersLowSimilarity(t *testing.T) {
	idx := New()
	idx.Insert([]Document{
		{ID: "a", Embedding: []float32{1, 0}, NodeType: "Function", File: "a.ts"},
		{ID: "b", Embedding: []float32{0, 1}, NodeType: "Function", File: "b.ts"},
	})

	results := idx.Vector([]float32{1, 0}, 0.5, Filters{})
	if len(results) != 1 || results[0].Document.ID != "a" {
		t.Errorf("expected only orthogonal-filtered doc 'a', got %+v", results)
	}
}

func TestHybrid_MergesBothModes(t *testing.T) {
	idx := New()
	idx.Insert([]Document{
		{ID: "text-only", Symbol: "fetchUser", Content: "fetch user data", NodeType: "Function", File: "a.ts"},
		{ID: "vector-only", Symbol: "zz", Content: "zz", Embedding: []float32{1, 0}, NodeType: "Function", File: "b.ts"},
	})

	results := idx.Hybrid("fetch user", []float32{1, 0}, 0.1, Filters{})
	ids := map[string]bool{}
	for _, r := range results {
		ids[r.Document.ID] = true
	}
	if !ids["text-only"] || !ids["vector-only"] {
		t.Errorf("expected both text-only and vector-only matches merged, got %+v", results)
	}
}

func TestFilters_NodeTypeAndGlob(t *testing.T) {
	idx := New()
	idx.Insert([]Document{
		{ID: "1", Symbol: "foo", Content: "foo", NodeType: "Function", File: "src/a.ts"},
		{ID: "2", Symbol: "foo", Content: "foo", NodeType: "Class", File: "src/b.ts"},
		{ID: "3", Symbol: "foo", Content: "foo", NodeType: "Function", File: "test/c.ts"},
	})

	results := idx.Fulltext("foo", Filters{NodeTypes: []string{"Function"}, FileGlob: "src/**"})
	if len(results) != 1 || results[0].Document.ID != "1" {
		t.Errorf("expected only doc 1 to pass both filters, got %+v", results)
	}
}

func TestInsert_LargeBatchSplitsWithoutLoss(t *testing.T) {
	idx := New()
	docs := make([]Document, 0, 1200)
	for i := 0; i < 1200; i++ {
		docs = append(docs, Document{ID: itoaTest(i), Symbol: "sym", Content: "content", NodeType: "Function", File: "a.ts"})
	}
	idx.Insert(docs)

	results := idx.Fulltext("sym", Filters{Limit: 2000})
	if len(results) != 1200 {
		t.Errorf("expected all 1200 docs indexed across batches, got %d", len(results))
	}
}

func itoaTest(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
