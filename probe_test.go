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
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProbeSeq(t *testing.T) {
	genSeq := func(n int, selector, mask uintptr, scheme ProbeScheme) []uintptr {
		seq := makeProbeSeq(selector, mask, scheme)
		vals := make([]uintptr, n)
		for i := 0; i < n; i++ {
			vals[i] = seq.offset
			seq = seq.next()
		}
		return vals
	}
	genGroups := func(n uintptr) []uintptr {
		var vals []uintptr
		for i := uintptr(0); i < n; i++ {
			vals = append(vals, i)
		}
		return vals
	}

	// The Abseil probeSeq test cases.
	expected := []uintptr{0, 1, 3, 6, 10, 15, 5, 12, 4, 13, 7, 2, 14, 11, 9, 8}
	require.Equal(t, expected, genSeq(16, 0, 15, QuadraticProbing))
	require.Equal(t, expected, genSeq(16, 16, 15, QuadraticProbing))

	require.Equal(t, genGroups(16), genSeq(16, 0, 15, LinearProbing))
	require.Equal(t, []uintptr{14, 15, 0, 1}, genSeq(4, 14, 15, LinearProbing))

	// Verify that both schemes touch all of the groups no matter what the
	// start offset is.
	for _, scheme := range []ProbeScheme{QuadraticProbing, LinearProbing} {
		for i := uintptr(0); i < 16; i++ {
			vals := genSeq(16, i, 15, scheme)
			sort.Slice(vals, func(i, j int) bool {
				return vals[i] < vals[j]
			})
			require.Equal(t, genGroups(16), vals)
		}
	}
}

func TestNextPow2(t *testing.T) {
	testCases := []struct {
		v        uintptr
		expected uintptr
	}{
		{1, 1},
		{2, 2},
		{3, 4},
		{4, 4},
		{5, 8},
		{8, 8},
		{9, 16},
		{1000, 1024},
		{1024, 1024},
	}
	for _, c := range testCases {
		require.EqualValues(t, c.expected, nextPow2(c.v), "nextPow2(%d)", c.v)
	}
}

func TestCapacityForEntries(t *testing.T) {
	testCases := []struct {
		n         int
		num, den  uintptr
		groupSize uintptr
		expected  uintptr
	}{
		{0, 7, 8, 16, 16},
		{1, 7, 8, 16, 16},
		{14, 7, 8, 16, 16},
		{15, 7, 8, 16, 32},
		{100, 7, 8, 16, 128},
		{112, 7, 8, 16, 128},
		{113, 7, 8, 16, 256},
		{1, 7, 8, 8, 8},
		{16, 7, 8, 8, 32},
		{8, 1, 2, 16, 16},
		{9, 1, 2, 16, 32},
	}
	for _, c := range testCases {
		got := capacityForEntries(c.n, c.num, c.den, c.groupSize)
		require.EqualValues(t, c.expected, got, "capacityForEntries(%d, %d/%d, %d)",
			c.n, c.num, c.den, c.groupSize)
		// The requested count must fit under the threshold.
		if c.n > 0 {
			require.GreaterOrEqual(t, got*c.num/c.den, uintptr(c.n))
		}
	}
}
