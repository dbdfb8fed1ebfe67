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

package metrics

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveIngest_SuccessIncrementsNodesAndEdges(t *testing.T) {
	before := testutil.ToFloat64(NodesIndexedTotal)
	beforeEdges := testutil.ToFloat64(EdgesIndexedTotal)
	ObserveIngest(time.Now(), 3, 5, nil)
	if got := testutil.ToFloat64(NodesIndexedTotal) - before; got != 3 {
		t.Errorf("expected 3 more nodes counted, got %v", got)
	}
	if got := testutil.ToFloat64(EdgesIndexedTotal) - beforeEdges; got != 5 {
		t.Errorf("expected 5 more edges counted, got %v", got)
	}
	if got := testutil.ToFloat64(FilesIngestedTotal.WithLabelValues("ok")); got < 1 {
		t.Errorf("expected files_ingested_total{result=ok} to be incremented, got %v", got)
	}
}

func TestObserveIngest_ErrorSkipsNodeAndEdgeCounts(t *testing.T) {
	beforeNodes := testutil.ToFloat64(NodesIndexedTotal)
	beforeEdges := testutil.ToFloat64(EdgesIndexedTotal)
	ObserveIngest(time.Now(), 7, 9, errors.New("boom"))
	if got := testutil.ToFloat64(NodesIndexedTotal); got != beforeNodes {
		t.Errorf("expected node count unchanged on error, got %v vs before %v", got, beforeNodes)
	}
	if got := testutil.ToFloat64(EdgesIndexedTotal); got != beforeEdges {
		t.Errorf("expected edge count unchanged on error, got %v vs before %v", got, beforeEdges)
	}
	if got := testutil.ToFloat64(FilesIngestedTotal.WithLabelValues("error")); got < 1 {
		t.Errorf("expected files_ingested_total{result=error} to be incremented, got %v", got)
	}
}

func TestObserveQuery_LabelsByOperationAndResult(t *testing.T) {
	before := testutil.ToFloat64(QueriesTotal.WithLabelValues("dependencies_of", "ok"))
	ObserveQuery("dependencies_of", time.Now(), nil)
	if got := testutil.ToFloat64(QueriesTotal.WithLabelValues("dependencies_of", "ok")) - before; got != 1 {
		t.Errorf("expected exactly one increment, got %v", got)
	}
}

func TestHandler_ServesPrometheusFormat(t *testing.T) {
	ObserveWatchReindex(nil)
	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, req)
	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !contains(rec.Body.String(), "tsgraph_watch_reindex_total") {
		t.Error("expected the watch reindex metric to appear in the exposition output")
	}
}

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && indexOf(haystack, needle) >= 0
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}
