// Copyright 2024 The Alpmap Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package alpmap

import (
	"math/bits"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashSplit(t *testing.T) {
	testCases := []struct {
		h  uint64
		h1 uintptr
		h2 uint8
	}{
		{0, 0, 0},
		{0x7f, 0, 0x7f},
		{0x80, 1, 0},
		{0xff, 1, 0x7f},
		{1 << 7, 1, 0},
		{^uint64(0), uintptr(^uint64(0) >> 7), 0x7f},
	}
	for _, c := range testCases {
		require.Equal(t, c.h1, h1(c.h), "h1(%#x)", c.h)
		require.Equal(t, c.h2, h2(c.h), "h2(%#x)", c.h)
	}
}

func TestMix(t *testing.T) {
	// The finalizer must be injective on any sample we throw at it, and
	// flipping a single input bit should flip roughly half the output
	// bits.
	seen := make(map[uint64]struct{})
	for i := uint64(1); i <= 10000; i++ {
		m := mix(i)
		_, dup := seen[m]
		require.False(t, dup, "mix(%d) collides", i)
		seen[m] = struct{}{}
	}

	var total int
	const samples = 1000
	for i := uint64(0); i < samples; i++ {
		h := mix(i * 0x9e3779b97f4a7c15)
		for bit := 0; bit < 64; bit++ {
			flipped := mix(i*0x9e3779b97f4a7c15 ^ (1 << bit))
			total += bits.OnesCount64(h ^ flipped)
		}
	}
	avg := float64(total) / float64(samples*64)
	require.InDelta(t, 32.0, avg, 2.0)
}

func TestDefaultHash(t *testing.T) {
	fn := defaultHashFn[string]()
	require.Equal(t, fn("hello"), fn("hello"))

	seen := make(map[uint64]struct{})
	for i := 0; i < 1000; i++ {
		seen[fn(strconv.Itoa(i))] = struct{}{}
	}
	require.Equal(t, 1000, len(seen))

	// Each set gets its own seed.
	other := defaultHashFn[string]()
	var same int
	for i := 0; i < 100; i++ {
		if fn(strconv.Itoa(i)) == other(strconv.Itoa(i)) {
			same++
		}
	}
	require.Less(t, same, 100)
}
