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

package resolve

import (
	"strings"
	"testing"

	"github.com/tsgraph/engine/internal/model"
)

type fakeStore struct {
	nodes []model.Node
}

func (f *fakeStore) FindNodesBySymbol(symbol string) ([]model.Node, error) {
	var out []model.Node
	for _, n := range f.nodes {
		if strings.EqualFold(n.Name, symbol) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeStore) NodesInFile(filePath string) ([]model.Node, error) {
	var out []model.Node
	for _, n := range f.nodes {
		if n.FilePath == filePath {
			out = append(out, n)
		}
	}
	return out, nil
}

func TestResolve_ExactFileAndSymbolMatch(t *testing.T) {
	store := &fakeStore{nodes: []model.Node{
		{ID: "a.ts:Function:greet", Name: "greet", FilePath: "a.ts", Type: model.NodeFunction},
	}}
	r := &Resolver{Store: store}

	res, err := r.Resolve("greet", "a.ts")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if res.Outcome != OutcomeOK || res.NodeID != "a.ts:Function:greet" {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestResolve_UniqueNameMatchWithoutFileHint(t *testing.T) {
	store := &fakeStore{nodes: []model.Node{
		{ID: "a.ts:Function:greet", Name: "greet", FilePath: "a.ts", Type: model.NodeFunction},
	}}
	r := &Resolver{Store: store}

	res, err := r.Resolve("greet", "")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if res.Outcome != OutcomeOK || res.FilePathWasResolved {
		t.Errorf("expected unresolved-file-path OK, got %+v", res)
	}
}

func TestResolve_AmbiguousWhenMultipleFilesMatch(t *testing.T) {
	store := &fakeStore{nodes: []model.Node{
		{ID: "a.ts:Function:greet", Name: "greet", FilePath: "a.ts", Type: model.NodeFunction},
		{ID: "b.ts:Function:greet", Name: "greet", FilePath: "b.ts", Type: model.NodeFunction},
	}}
	r := &Resolver{Store: store}

	res, err := r.Resolve("greet", "")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if res.Outcome != OutcomeAmbiguous || len(res.Candidates) != 2 {
		t.Errorf("expected ambiguous with 2 candidates, got %+v", res)
	}
}

func TestResolve_NotFoundUnindexedFile(t *testing.T) {
	store := &fakeStore{}
	r := &Resolver{Store: store}

	res, err := r.Resolve("greet", "missing.ts")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if res.Outcome != OutcomeNotFound || !strings.Contains(res.Message, "is not indexed") {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestResolve_NotFoundSuggestsOtherFiles(t *testing.T) {
	store := &fakeStore{nodes: []model.Node{
		{ID: "a.ts:Function:unrelated", Name: "unrelated", FilePath: "a.ts", Type: model.NodeFunction},
		{ID: "b.ts:Function:Greet", Name: "Greet", FilePath: "b.ts", Type: model.NodeFunction},
	}}
	r := &Resolver{Store: store}

	res, err := r.Resolve("greet", "a.ts")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if res.Outcome != OutcomeNotFound || !strings.Contains(res.Message, "b.ts") {
		t.Errorf("expected suggestion pointing at b.ts, got %+v", res)
	}
}

func TestResolve_NotFoundListsAvailableSymbols(t *testing.T) {
	store := &fakeStore{nodes: []model.Node{
		{ID: "a.ts:Function:greet", Name: "greet", FilePath: "a.ts", Type: model.NodeFunction},
		{ID: "a.ts:Function:farewell", Name: "farewell", FilePath: "a.ts", Type: model.NodeFunction},
	}}
	r := &Resolver{Store: store}

	res, err := r.Resolve("grert", "a.ts")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if res.Outcome != OutcomeNotFound || !strings.Contains(res.Message, "greet") {
		t.Errorf("expected available symbols listing greet, got %+v", res)
	}
}

func TestClassMethodFallback_SingleConnectedMethodResolves(t *testing.T) {
	store := &fakeStore{nodes: []model.Node{
		{ID: "a.ts:Method:Svc.save", Name: "save", FilePath: "a.ts", Type: model.NodeMethod},
		{ID: "a.ts:Method:Svc.load", Name: "load", FilePath: "a.ts", Type: model.NodeMethod},
	}}
	r := &Resolver{Store: store}
	class := model.Node{ID: "a.ts:Class:Svc", Name: "Svc", FilePath: "a.ts", Type: model.NodeClass}

	res, err := r.ClassMethodFallback(class, func(id string) bool { return id == "a.ts:Method:Svc.save" })
	if err != nil {
		t.Fatalf("ClassMethodFallback failed: %v", err)
	}
	if res.Outcome != ClassMethodResolved || res.NodeID != "a.ts:Method:Svc.save" {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestClassMethodFallback_MultipleConnectedIsAmbiguous(t *testing.T) {
	store := &fakeStore{nodes: []model.Node{
		{ID: "a.ts:Method:Svc.save", Name: "save", FilePath: "a.ts", Type: model.NodeMethod},
		{ID: "a.ts:Method:Svc.load", Name: "load", FilePath: "a.ts", Type: model.NodeMethod},
	}}
	r := &Resolver{Store: store}
	class := model.Node{ID: "a.ts:Class:Svc", Name: "Svc", FilePath: "a.ts", Type: model.NodeClass}

	res, err := r.ClassMethodFallback(class, func(id string) bool { return true })
	if err != nil {
		t.Fatalf("ClassMethodFallback failed: %v", err)
	}
	if res.Outcome != ClassMethodAmbiguous {
		t.Errorf("expected ambiguous, got %+v", res)
	}
}
