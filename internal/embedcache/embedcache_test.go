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

package embedcache

import (
	"path/filepath"
	"testing"
)

func TestSetGet_RoundTrip(t *testing.T) {
	c, err := Open(filepath.Join(t.TempDir(), "cache.bin"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	h := Hash("hello world")
	c.Set(h, []float32{0.1, 0.2, 0.3})

	got, ok := c.Get(h)
	if !ok {
		t.Fatal("expected hit")
	}
	if len(got) != 3 || got[1] != 0.2 {
		t.Errorf("unexpected vector: %+v", got)
	}
}

func TestGetBatch_PartialHits(t *testing.T) {
	c, err := Open(filepath.Join(t.TempDir(), "cache.bin"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	c.Set("a", []float32{1})
	c.Set("b", []float32{2})

	got := c.GetBatch([]string{"a", "b", "missing"})
	if len(got) != 2 {
		t.Errorf("expected 2 hits, got %d", len(got))
	}
}

func TestClose_PersistsAndReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.bin")
	c, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	c.Set("key1", []float32{1.5, -2.25, 0})
	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	got, ok := reopened.Get("key1")
	if !ok {
		t.Fatal("expected persisted value to survive reopen")
	}
	if len(got) != 3 || got[0] != 1.5 || got[1] != -2.25 {
		t.Errorf("unexpected vector after reopen: %+v", got)
	}
}

func TestHash_Deterministic(t *testing.T) {
	if Hash("same input") != Hash("same input") {
		t.Error("expected Hash to be deterministic")
	}
	if Hash("a") == Hash("b") {
		t.Error("expected different inputs to hash differently")
	}
}
