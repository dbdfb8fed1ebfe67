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
	"reflect"
	"testing"

	"github.com/tsgraph/engine/internal/model"
)

func TestParseEdgeTypes_EmptyDefaultsToTraversalSet(t *testing.T) {
	got := parseEdgeTypes("")
	if !reflect.DeepEqual(got, model.DefaultTraversalEdgeTypes) {
		t.Errorf("expected default traversal edge types, got %v", got)
	}
}

func TestParseEdgeTypes_SplitsTrimsAndUppercases(t *testing.T) {
	got := parseEdgeTypes("calls, imports ,extends")
	want := []model.EdgeType{"CALLS", "IMPORTS", "EXTENDS"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestParseEdgeTypes_SkipsEmptyEntries(t *testing.T) {
	got := parseEdgeTypes("calls,,imports")
	want := []model.EdgeType{"CALLS", "IMPORTS"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}
