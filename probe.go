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

import "math/bits"

// ProbeScheme selects the order in which groups are visited after a
// collision.
type ProbeScheme uint8

const (
	// QuadraticProbing advances by triangular-number strides:
	// g(i) = g0 + i*(i+1)/2 (mod groupCount). Consecutive probes spread
	// further apart than linear probing, which reduces primary clustering
	// at the cost of locality.
	QuadraticProbing ProbeScheme = iota

	// LinearProbing advances one group at a time: g(i) = g0 + i
	// (mod groupCount).
	LinearProbing
)

// probeSeq maintains the state for a probe sequence over group indices.
// The quadratic sequence is the triangular progression
//
//	g(i) := (i^2 + i)/2 + g0 (mod mask+1)
//
// realized incrementally by adding i on the i-th step. Because the group
// count is a power of two, (i^2+i)/2 is a bijection in Z/(2^m) and the
// sequence visits every group exactly once before repeating; the linear
// sequence is trivially a full permutation. Either way a probe loop bounded
// by the group count is guaranteed to terminate, even on a table holding
// nothing but tombstones. See
// https://en.wikipedia.org/wiki/Quadratic_probing.
type probeSeq struct {
	mask   uintptr
	offset uintptr
	index  uintptr
	linear bool
}

func makeProbeSeq(selector, mask uintptr, scheme ProbeScheme) probeSeq {
	return probeSeq{
		mask:   mask,
		offset: selector & mask,
		linear: scheme == LinearProbing,
	}
}

func (s probeSeq) next() probeSeq {
	s.index++
	if s.linear {
		s.offset = (s.offset + 1) & s.mask
	} else {
		s.offset = (s.offset + s.index) & s.mask
	}
	return s
}

// nextPow2 returns the smallest power of two >= v, for v >= 1.
func nextPow2(v uintptr) uintptr {
	return uintptr(1) << bits.Len64(uint64(v-1))
}

// capacityForEntries returns the smallest valid slot capacity (a
// power-of-two group count times the group size) able to hold n entries
// without exceeding the num/den load-factor threshold.
func capacityForEntries(n int, num, den, groupSize uintptr) uintptr {
	if n <= 0 {
		n = 1
	}
	slots := (uintptr(n)*den + num - 1) / num
	groups := nextPow2((slots + groupSize - 1) / groupSize)
	return groups * groupSize
}
