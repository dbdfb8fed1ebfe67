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

package embedbackend

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func fakeOllamaServer(t *testing.T, vector []float32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(embeddingResponse{Embedding: vector})
	}))
}

func TestLoadModel_SucceedsWhenServerResponds(t *testing.T) {
	srv := fakeOllamaServer(t, []float32{0.1, 0.2, 0.3})
	defer srv.Close()

	b := NewOllama(srv.URL, "nomic-embed-text")
	if err := b.LoadModel(); err != nil {
		t.Fatalf("expected LoadModel to succeed, got %v", err)
	}
}

func TestCreateContext_EmbedReturnsServerVector(t *testing.T) {
	want := []float32{1, 2, 3, 4}
	srv := fakeOllamaServer(t, want)
	defer srv.Close()

	b := NewOllama(srv.URL, "nomic-embed-text")
	ctx, err := b.CreateContext(1)
	if err != nil {
		t.Fatalf("CreateContext failed: %v", err)
	}
	got, err := ctx.Embed("some source snippet")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d dims, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("dim %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}

func TestEmbed_EmptyResponseIsAnError(t *testing.T) {
	srv := fakeOllamaServer(t, nil)
	defer srv.Close()

	b := NewOllama(srv.URL, "nomic-embed-text")
	ctx, _ := b.CreateContext(1)
	if _, err := ctx.Embed("x"); err == nil {
		t.Fatal("expected an error for an empty embedding response")
	}
}

func TestEmbed_NonOKStatusIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	b := NewOllama(srv.URL, "nomic-embed-text")
	ctx, _ := b.CreateContext(1)
	if _, err := ctx.Embed("x"); err == nil {
		t.Fatal("expected an error for a non-200 response")
	}
}
