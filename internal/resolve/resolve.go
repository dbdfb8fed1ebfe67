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

// Package resolve implements C9: turning a bare symbol name (plus an
// optional file hint) into a node ID, or a helpful error when that is
// not possible.
package resolve

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tsgraph/engine/internal/model"
)

// Outcome is the discriminant of a Result (§4.6: "one of {ok, ambiguous,
// not_found}").
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeAmbiguous
	OutcomeNotFound
)

// Candidate is one of several matches reported on an ambiguous result.
type Candidate struct {
	NodeID   string
	FilePath string
}

// Result is the resolver's output for a single symbol lookup.
type Result struct {
	Outcome Outcome

	// OK
	NodeID              string
	FilePathWasResolved bool // true when file_path was given but ignored in favor of a unique name match

	// Ambiguous
	Candidates []Candidate

	// NotFound
	Message string
}

// Store is the subset of graphstore.Store the resolver needs.
type Store interface {
	FindNodesBySymbol(symbol string) ([]model.Node, error)
	NodesInFile(filePath string) ([]model.Node, error)
}

// Resolver implements C9's resolution order against a Store.
type Resolver struct {
	Store Store
}

// Resolve implements §4.6's resolution order:
//  1. exact ID match (file_path given, a node named symbol exists in it)
//  2. unique name match via find_nodes_by_symbol
//  3. ambiguous (multiple name matches)
//  4. not_found, with a composed message
func (r *Resolver) Resolve(symbol, filePath string) (Result, error) {
	if filePath != "" {
		inFile, err := r.Store.NodesInFile(filePath)
		if err != nil {
			return Result{}, fmt.Errorf("resolve %q: %w", symbol, err)
		}
		for _, n := range inFile {
			if n.Name == symbol {
				return Result{Outcome: OutcomeOK, NodeID: n.ID}, nil
			}
		}
	}

	matches, err := r.Store.FindNodesBySymbol(symbol)
	if err != nil {
		return Result{}, fmt.Errorf("resolve %q: %w", symbol, err)
	}
	exact := exactNameMatches(matches, symbol)

	switch len(exact) {
	case 1:
		return Result{
			Outcome:             OutcomeOK,
			NodeID:              exact[0].ID,
			FilePathWasResolved: filePath != "",
		}, nil
	case 0:
		// fall through to not-found composition below
	default:
		candidates := make([]Candidate, len(exact))
		for i, n := range exact {
			candidates[i] = Candidate{NodeID: n.ID, FilePath: n.FilePath}
		}
		return Result{Outcome: OutcomeAmbiguous, Candidates: candidates}, nil
	}

	return r.composeNotFound(symbol, filePath)
}

func exactNameMatches(matches []model.Node, symbol string) []model.Node {
	var out []model.Node
	for _, n := range matches {
		if n.Name == symbol {
			out = append(out, n)
		}
	}
	return out
}

// composeNotFound implements §4.6's three-way not-found message:
// unindexed file, symbol-found-elsewhere, or symbol-absent-from-file.
func (r *Resolver) composeNotFound(symbol, filePath string) (Result, error) {
	var inFile []model.Node
	if filePath != "" {
		var err error
		inFile, err = r.Store.NodesInFile(filePath)
		if err != nil {
			return Result{}, fmt.Errorf("resolve %q: %w", symbol, err)
		}
		if len(inFile) == 0 {
			return Result{
				Outcome: OutcomeNotFound,
				Message: fmt.Sprintf("File '%s' is not indexed.", filePath),
			}, nil
		}
	}

	caseInsensitive, err := r.Store.FindNodesBySymbol(symbol)
	if err != nil {
		return Result{}, fmt.Errorf("resolve %q: %w", symbol, err)
	}
	otherFiles := distinctOtherFiles(caseInsensitive, symbol, filePath)
	if len(otherFiles) > 0 {
		sortByEditDistance(otherFiles, filePath)
		return Result{
			Outcome: OutcomeNotFound,
			Message: fmt.Sprintf("Symbol '%s' not found at %s. Found '%s' in: %s.",
				symbol, filePath, symbol, strings.Join(otherFiles, ", ")),
		}, nil
	}

	names := availableNames(inFile)
	sortByEditDistance(names, symbol)
	return Result{
		Outcome: OutcomeNotFound,
		Message: fmt.Sprintf("Symbol '%s' not found at %s. Available symbols in this file: %s.",
			symbol, filePath, strings.Join(names, ", ")),
	}, nil
}

func distinctOtherFiles(matches []model.Node, symbol, excludeFile string) []string {
	seen := make(map[string]bool)
	var files []string
	for _, n := range matches {
		if !strings.EqualFold(n.Name, symbol) {
			continue
		}
		if n.FilePath == excludeFile {
			continue
		}
		if !seen[n.FilePath] {
			seen[n.FilePath] = true
			files = append(files, n.FilePath)
		}
	}
	return files
}

func availableNames(nodes []model.Node) []string {
	seen := make(map[string]bool)
	var names []string
	for _, n := range nodes {
		if !seen[n.Name] {
			seen[n.Name] = true
			names = append(names, n.Name)
		}
	}
	sort.Strings(names)
	return names
}

// sortByEditDistance orders items by Levenshtein distance to target,
// breaking ties alphabetically for determinism.
func sortByEditDistance(items []string, target string) {
	sort.SliceStable(items, func(i, j int) bool {
		di, dj := levenshteinDistance(items[i], target), levenshteinDistance(items[j], target)
		if di != dj {
			return di < dj
		}
		return items[i] < items[j]
	})
}

// levenshteinDistance computes the edit distance between two strings.
func levenshteinDistance(a, b string) int {
	if a == b {
		return 0
	}
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost
			curr[j] = minInt(del, minInt(ins, sub))
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
