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

// Package metrics implements C14: ingestion and query counters and
// latency histograms, exposed on an internal /metrics handle owned by
// the CLI rather than the core.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// FilesIngestedTotal counts per-file ingestion outcomes (§4.7/§4.2.3:
	// per-file errors are collected, not fatal to the run).
	FilesIngestedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tsgraph_files_ingested_total",
		Help: "Files processed by the ingestion pipeline, by outcome.",
	}, []string{"result"})

	// NodesIndexedTotal and EdgesIndexedTotal accumulate the write volume
	// a successful IngestFile call reports (§3.2's node/edge entities).
	NodesIndexedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tsgraph_nodes_indexed_total",
		Help: "Graph nodes written by the ingestion pipeline.",
	})
	EdgesIndexedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tsgraph_edges_indexed_total",
		Help: "Graph edges written by the ingestion pipeline.",
	})

	// IngestFileDurationSeconds is per-file pipeline latency: extract,
	// snippet, embed-with-fallback, and the three store/index writes.
	IngestFileDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tsgraph_ingest_file_duration_seconds",
		Help:    "Per-file ingestion pipeline latency.",
		Buckets: prometheus.DefBuckets,
	})

	// QueriesTotal and QueryDurationSeconds cover the four request-contract
	// operations §6 names: dependencies_of, dependents_of, paths_between,
	// and connect_seeds (search_graph's hybrid-search leg is instrumented
	// separately by SearchQueriesTotal, since it never touches the query
	// engine).
	QueriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tsgraph_queries_total",
		Help: "Query engine operations, by operation and outcome.",
	}, []string{"operation", "result"})
	QueryDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tsgraph_query_duration_seconds",
		Help:    "Query engine operation latency, by operation.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	// SearchQueriesTotal and SearchDurationSeconds cover C6's hybrid
	// search_graph(topic) leg.
	SearchQueriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tsgraph_search_queries_total",
		Help: "Hybrid search_graph(topic) calls, by outcome.",
	}, []string{"result"})
	SearchDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tsgraph_search_duration_seconds",
		Help:    "Hybrid search_graph(topic) latency.",
		Buckets: prometheus.DefBuckets,
	})

	// WatchReindexTotal counts reindex attempts the live watcher (§4.8)
	// triggers, separately from ingestion attempts driven by a full
	// project run or a gitdelta ReindexDelta call.
	WatchReindexTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tsgraph_watch_reindex_total",
		Help: "Live-watcher-triggered reindex attempts, by outcome.",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(
		FilesIngestedTotal,
		NodesIndexedTotal,
		EdgesIndexedTotal,
		IngestFileDurationSeconds,
		QueriesTotal,
		QueryDurationSeconds,
		SearchQueriesTotal,
		SearchDurationSeconds,
		WatchReindexTotal,
	)
}

// Handler exposes every collector registered above for an HTTP /metrics
// endpoint. The CLI decides whether and where to mount it (§6:
// "server.port ... external to core").
func Handler() http.Handler {
	return promhttp.Handler()
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveIngest records one file's ingestion outcome and latency, and
// (on success) the nodes and edges it added.
func ObserveIngest(start time.Time, nodeCount, edgeCount int, err error) {
	FilesIngestedTotal.WithLabelValues(resultLabel(err)).Inc()
	IngestFileDurationSeconds.Observe(time.Since(start).Seconds())
	if err == nil {
		NodesIndexedTotal.Add(float64(nodeCount))
		EdgesIndexedTotal.Add(float64(edgeCount))
	}
}

// ObserveQuery records one query engine operation's outcome and latency.
func ObserveQuery(operation string, start time.Time, err error) {
	QueriesTotal.WithLabelValues(operation, resultLabel(err)).Inc()
	QueryDurationSeconds.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// ObserveSearch records one hybrid search_graph(topic) call's outcome
// and latency.
func ObserveSearch(start time.Time, err error) {
	SearchQueriesTotal.WithLabelValues(resultLabel(err)).Inc()
	SearchDurationSeconds.Observe(time.Since(start).Seconds())
}

// ObserveWatchReindex records a live-watcher-triggered reindex attempt's
// outcome.
func ObserveWatchReindex(err error) {
	WatchReindexTotal.WithLabelValues(resultLabel(err)).Inc()
}
