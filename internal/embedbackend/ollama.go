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

// Package embedbackend implements the embedpool.Backend the CLI wires up
// by default: an HTTP client against an Ollama-compatible /api/embeddings
// endpoint, the "ollama" embedding provider the teacher's ingestion config
// documents (OLLAMA_BASE_URL, OLLAMA_EMBED_MODEL) but does not ship a
// concrete client for.
package embedbackend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/tsgraph/engine/internal/embedpool"
)

// DefaultBaseURL is Ollama's default local listen address.
const DefaultBaseURL = "http://localhost:11434"

// Ollama is an embedpool.Backend backed by a running Ollama server. Model
// loading is implicit in Ollama's own lazy model management, so LoadModel
// only verifies the server is reachable and the model responds.
type Ollama struct {
	BaseURL string
	Model   string
	Client  *http.Client
}

// NewOllama builds an Ollama backend, defaulting BaseURL and the HTTP
// client's timeout.
func NewOllama(baseURL, model string) *Ollama {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Ollama{
		BaseURL: baseURL,
		Model:   model,
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// LoadModel issues a throwaway embedding request to confirm the server and
// model are reachable before the pool starts handing out contexts.
func (o *Ollama) LoadModel() error {
	_, err := o.embed(context.Background(), "ping")
	if err != nil {
		return fmt.Errorf("ollama backend %s (%s): %w", o.BaseURL, o.Model, err)
	}
	return nil
}

// CreateContext returns a Context wrapping this backend. Ollama has no
// stateful per-context handle, so every context shares the same HTTP
// client; the threads argument is ignored, and the pool's size alone
// bounds how many concurrent requests are in flight.
func (o *Ollama) CreateContext(threads int) (embedpool.Context, error) {
	return &ollamaContext{backend: o}, nil
}

type ollamaContext struct {
	backend *Ollama
}

func (c *ollamaContext) Embed(text string) ([]float32, error) {
	return c.backend.embed(context.Background(), text)
}

func (c *ollamaContext) Dispose() {}

type embeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embeddingResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (o *Ollama) embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embeddingRequest{Model: o.Model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.BaseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}

	var out embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(out.Embedding) == 0 {
		return nil, fmt.Errorf("ollama returned an empty embedding")
	}
	return out.Embedding, nil
}
