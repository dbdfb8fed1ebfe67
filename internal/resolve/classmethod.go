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
	"fmt"
	"sort"
	"strings"

	"github.com/tsgraph/engine/internal/ids"
	"github.com/tsgraph/engine/internal/model"
)

// ClassMethodOutcome is the discriminant of a ClassMethodFallbackResult.
type ClassMethodOutcome int

const (
	// ClassMethodResolved means exactly one method of the class connects
	// via the queried relation; the query engine should retry against it.
	ClassMethodResolved ClassMethodOutcome = iota
	// ClassMethodAmbiguous means more than one method connects; the query
	// engine stops and surfaces Message.
	ClassMethodAmbiguous
	// ClassMethodNone means no method of the class connects; the
	// original empty traversal result stands.
	ClassMethodNone
)

// ClassMethodFallbackResult is the query engine's verdict after probing a
// Class node's methods.
type ClassMethodFallbackResult struct {
	Outcome ClassMethodOutcome
	NodeID  string
	Message string
}

// ClassMethodFallback implements §4.6's class-method fallback: when
// resolving class yields no traversal results, look up its methods and
// ask connected (supplied by the query engine, since only it knows which
// relation is being traversed) which of them participate in that
// relation.
func (r *Resolver) ClassMethodFallback(class model.Node, connected func(methodID string) bool) (ClassMethodFallbackResult, error) {
	inFile, err := r.Store.NodesInFile(class.FilePath)
	if err != nil {
		return ClassMethodFallbackResult{}, fmt.Errorf("class method fallback for %s: %w", class.Name, err)
	}

	var methods []model.Node
	for _, n := range inFile {
		if n.Type != model.NodeMethod {
			continue
		}
		if n.ID != ids.NodeID(class.FilePath, string(model.NodeMethod), ids.MethodSymbolPath(class.Name, n.Name)) {
			continue
		}
		methods = append(methods, n)
	}
	sort.Slice(methods, func(i, j int) bool { return methods[i].Name < methods[j].Name })

	var candidates []model.Node
	for _, m := range methods {
		if connected(m.ID) {
			candidates = append(candidates, m)
		}
	}

	switch len(candidates) {
	case 0:
		return ClassMethodFallbackResult{Outcome: ClassMethodNone}, nil
	case 1:
		return ClassMethodFallbackResult{
			Outcome: ClassMethodResolved,
			NodeID:  candidates[0].ID,
			Message: fmt.Sprintf("Resolved '%s' to %s", class.Name, ids.MethodSymbolPath(class.Name, candidates[0].Name)),
		}, nil
	default:
		names := make([]string, len(candidates))
		for i, c := range candidates {
			names[i] = ids.MethodSymbolPath(class.Name, c.Name)
		}
		return ClassMethodFallbackResult{
			Outcome: ClassMethodAmbiguous,
			Message: fmt.Sprintf("'%s' is ambiguous among: %s", class.Name, strings.Join(names, ", ")),
		}, nil
	}
}
