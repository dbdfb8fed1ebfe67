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
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"

	flag "github.com/spf13/pflag"

	"github.com/tsgraph/engine/internal/format"
	"github.com/tsgraph/engine/internal/metrics"
	"github.com/tsgraph/engine/internal/model"
	"github.com/tsgraph/engine/internal/query"
	"github.com/tsgraph/engine/internal/search"
)

// runServe exposes query and search as JSON endpoints plus the
// Prometheus /metrics handler. This HTTP surface is external to the
// core per spec.md §6 ("server.port ... external to core"); it exists
// only so a long-lived process can answer repeated queries/searches
// against one in-memory search index without re-parsing on every call,
// and so /metrics has something to be mounted on.
func runServe(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	port := fs.Int("port", 0, "Listen port (default: server.port from config, or 8080)")
	mock := fs.Bool("mock-embeddings", false, "Use the deterministic mock embedding backend instead of Ollama")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: tsgraph serve [--port N]\n")
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(2)
	}

	a, err := buildApp(configPath, *mock)
	if err != nil {
		fatal(globals, err)
	}
	defer a.Close()

	if err := a.rebuildSearchIndex(); err != nil {
		fatal(globals, err)
	}

	listenPort := *port
	if listenPort == 0 {
		listenPort = a.cfg.Server.Port
	}
	if listenPort == 0 {
		listenPort = 8080
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/query", a.handleQuery)
	mux.HandleFunc("/search", a.handleSearch)
	mux.Handle("/metrics", metrics.Handler())

	addr := ":" + strconv.Itoa(listenPort)
	if !globals.Quiet {
		fmt.Printf("listening on %s\n", addr)
	}
	if err := http.ListenAndServe(addr, mux); err != nil {
		fatal(globals, fmt.Errorf("serve: %w", err))
	}
}

type queryRequest struct {
	Op        string   `json:"op"`
	File      string   `json:"file"`
	Symbol    string   `json:"symbol"`
	ToFile    string   `json:"to_file"`
	ToSymbol  string   `json:"to_symbol"`
	EdgeTypes []string `json:"edge_types"`
	MaxDepth  int      `json:"max_depth"`
	MaxNodes  int      `json:"max_nodes"`
	Format    string   `json:"format"`
}

func (a *app) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.MaxDepth == 0 {
		req.MaxDepth = 5
	}
	if req.MaxNodes == 0 {
		req.MaxNodes = 200
	}

	edgeTypes := model.DefaultTraversalEdgeTypes
	if len(req.EdgeTypes) > 0 {
		edgeTypes = make([]model.EdgeType, len(req.EdgeTypes))
		for i, et := range req.EdgeTypes {
			edgeTypes[i] = model.EdgeType(et)
		}
	}

	var result query.Result
	var err error
	switch req.Op {
	case "dependencies_of":
		result, err = a.engine.DependenciesOf(req.File, req.Symbol, edgeTypes, req.MaxDepth, req.MaxNodes)
	case "dependents_of":
		result, err = a.engine.DependentsOf(req.File, req.Symbol, edgeTypes, req.MaxDepth, req.MaxNodes)
	case "paths_between":
		result, err = a.engine.PathsBetween(req.File, req.Symbol, req.ToFile, req.ToSymbol, edgeTypes, req.MaxDepth, req.MaxNodes)
	default:
		http.Error(w, fmt.Sprintf("unknown op %q", req.Op), http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	outFormat := format.FormatMCP
	if req.Format != "" {
		outFormat = format.Format(req.Format)
	}
	rendered := format.Render(result, format.Options{Format: outFormat})

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"result": rendered})
}

type searchRequest struct {
	Query               string   `json:"query"`
	Mode                string   `json:"mode"`
	NodeTypes           []string `json:"node_types"`
	FileGlob            string   `json:"file_glob"`
	Limit               int      `json:"limit"`
	SimilarityThreshold float64  `json:"similarity_threshold"`
}

func (a *app) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Mode == "" {
		req.Mode = "hybrid"
	}
	if req.Limit == 0 {
		req.Limit = search.DefaultLimit
	}
	filters := search.Filters{NodeTypes: req.NodeTypes, FileGlob: req.FileGlob, Limit: req.Limit}

	var results []search.Result
	switch req.Mode {
	case "fulltext":
		results = a.index.Fulltext(req.Query, filters)
	case "vector":
		vec, err := a.pool.EmbedQuery(r.Context(), req.Query)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		results = a.index.Vector(vec, req.SimilarityThreshold, filters)
	case "hybrid":
		vec, err := a.pool.EmbedQuery(r.Context(), req.Query)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		results = a.index.Hybrid(req.Query, vec, req.SimilarityThreshold, filters)
	default:
		http.Error(w, fmt.Sprintf("unknown mode %q", req.Mode), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(results)
}
