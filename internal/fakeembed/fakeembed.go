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

// Package fakeembed is the deterministic, model-free embedding backend
// named in §4.4: it hashes its input, seeds a linear-congruential
// generator from the hash, and produces a reproducible unit vector -
// standing in for a real inference backend in tests and local
// development without a downloaded model.
package fakeembed

import (
	"math"

	"github.com/tsgraph/engine/internal/embedcache"
	"github.com/tsgraph/engine/internal/embedpool"
)

// Backend is a deterministic embedpool.Backend. OverflowAt, when > 0,
// causes EmbedDocument/EmbedQuery calls whose final text exceeds that
// length to return an *embedpool.OverflowError, simulating the real
// backend's context-overflow failure mode.
type Backend struct {
	Dimensions int
	OverflowAt int
}

// LoadModel is a no-op: there is no model to load.
func (b *Backend) LoadModel() error { return nil }

// CreateContext returns a context bound to this backend's configuration.
func (b *Backend) CreateContext(threads int) (embedpool.Context, error) {
	dims := b.Dimensions
	if dims <= 0 {
		dims = 64
	}
	return &fakeContext{dimensions: dims, overflowAt: b.OverflowAt}, nil
}

type fakeContext struct {
	dimensions int
	overflowAt int
}

// Embed hashes text, seeds a linear-congruential generator with the
// resulting 64-bit value, and draws dimensions pseudo-random floats that
// are then L2-normalized into a unit vector, so the same input always
// produces the same vector.
func (c *fakeContext) Embed(text string) ([]float32, error) {
	if c.overflowAt > 0 && len(text) > c.overflowAt {
		return nil, &embedpool.OverflowError{
			InputLen: len(text),
			Message:  "simulated context overflow",
		}
	}

	hash := embedcache.Hash(text)
	seed := seedFromHex(hash)
	vec := make([]float32, c.dimensions)
	var sumSq float64
	for i := range vec {
		seed = lcgNext(seed)
		// Map the top bits to [-1, 1).
		v := float64(seed>>11) / float64(1<<53) * 2 - 1
		vec[i] = float32(v)
		sumSq += v * v
	}
	norm := math.Sqrt(sumSq)
	if norm > 0 {
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
	}
	return vec, nil
}

func (c *fakeContext) Dispose() {}

// seedFromHex takes the first 16 hex characters of a content hash as a
// 64-bit seed.
func seedFromHex(hexHash string) uint64 {
	var seed uint64
	n := len(hexHash)
	if n > 16 {
		n = 16
	}
	for i := 0; i < n; i++ {
		seed = seed<<4 | uint64(hexDigit(hexHash[i]))
	}
	return seed | 1 // forces the low bit, so the seed is never zero
}

func hexDigit(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	}
	return 0
}

// lcgNext advances a 64-bit linear-congruential generator using Knuth's
// MMIX multiplier and increment.
func lcgNext(seed uint64) uint64 {
	const (
		multiplier = 6364136223846793005
		increment  = 1442695040888963407
	)
	return seed*multiplier + increment
}
