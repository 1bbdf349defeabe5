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
	"unsafe"
)

const (
	bitsetLSB = 0x0101010101010101
	bitsetMSB = 0x8080808080808080

	// packMagic gathers the per-byte MSBs of a word (shifted down to the
	// low bit of each byte) into the top byte of the product. It is the
	// sum of 1<<(7*j) for j in [1,8], so the bit at position 8*i lands at
	// position 56+i and no two source bits collide.
	packMagic = 0x0102040810204080
)

// register holds the control bytes of one group as loaded by a backend.
// Wide16 fills both words; Wide8 only uses lo.
type register struct {
	lo, hi uint64
}

// bitmask is a set of lanes within a group: bit i is set if lane i matched.
// This is the movemask-style representation, one bit per lane, which allows
// "find next match" iteration via trailing-zero counts. A uint64 is wide
// enough for any backend lane count we support (capped at 64).
type bitmask uint64

// any reports whether at least one lane matched.
func (b bitmask) any() bool {
	return b != 0
}

// first returns the index of the first matching lane. Only valid if any()
// is true; returns 64 on an empty mask.
func (b bitmask) first() uint32 {
	return uint32(bits.TrailingZeros64(uint64(b)))
}

// remove clears the first matching lane and returns the result.
func (b bitmask) remove() bitmask {
	return b & (b - 1)
}

// Backend is the vectorized group-scanning contract. A backend wraps one
// group of control bytes in a register and exposes comparison primitives
// that return lane bitmasks. The container's probing logic assumes only
// this contract, never a particular lane width beyond groupSize.
//
// Backends are stateless zero-sized types used as a type parameter so that
// every call devirtualizes at instantiation; the scan primitives must be
// inlinable for the table to perform.
type Backend interface {
	// groupSize returns the lane width: the number of contiguous control
	// bytes scanned per probe step.
	groupSize() uintptr

	// load reads groupSize contiguous control bytes starting at p.
	load(p unsafe.Pointer) register

	// match returns the lanes whose control byte equals value.
	match(r register, value uint8) bitmask

	// matchEmpty returns the lanes holding ctrlEmpty. Deleted and sentinel
	// lanes are never reported.
	matchEmpty(r register) bitmask

	// matchFull returns the lanes holding a fingerprint (top bit clear).
	matchFull(r register) bitmask
}

// swarMatchByte returns a word with the MSB set in every byte of w that
// equals v.
//
// NB: this produces false positive matches when a byte equal to v^0x01
// immediately follows a true match (the borrow from the subtraction
// propagates into it). A false positive can only flag a byte whose value is
// v^0x01, which for any 7-bit fingerprint is another full control byte, and
// for ctrlDeleted would have to be the sentinel, which never appears inside
// a group. The subsequent key comparisons make the stray lanes harmless.
func swarMatchByte(w uint64, v uint8) uint64 {
	x := w ^ (bitsetLSB * uint64(v))
	return ((x - bitsetLSB) &^ x) & bitsetMSB
}

// swarMatchEmpty returns a word with the MSB set in every ctrlEmpty byte.
// Empty is 1000_0000 while deleted and sentinel are 1111_111?, so a byte is
// empty iff bit 7 is set and bit 1 is not. This form is exact, with no
// false positives.
func swarMatchEmpty(w uint64) uint64 {
	return (w &^ (w << 6)) & bitsetMSB
}

// swarMatchFull returns a word with the MSB set in every full byte. Full
// bytes are exactly those with the top bit clear.
func swarMatchFull(w uint64) uint64 {
	return ^w & bitsetMSB
}

// packMSB compresses a per-byte MSB mask into one bit per byte, the same
// shape _mm_movemask_epi8 produces for a 64-bit lane subset.
func packMSB(w uint64) bitmask {
	return bitmask(((w >> 7) * packMagic) >> 56)
}

// Wide16 is the fixed 16-lane backend. It mirrors the 128-bit
// compare-and-movemask sequence (PCMPEQB + PMOVMSKB) using two 64-bit SWAR
// words, which keeps it portable while preserving the 16-byte group shape
// the control array is laid out for.
type Wide16 struct{}

func (Wide16) groupSize() uintptr { return 16 }

func (Wide16) load(p unsafe.Pointer) register {
	return register{
		lo: *(*uint64)(p),
		hi: *(*uint64)(unsafe.Add(p, 8)),
	}
}

func (Wide16) match(r register, value uint8) bitmask {
	return packMSB(swarMatchByte(r.lo, value)) | packMSB(swarMatchByte(r.hi, value))<<8
}

func (Wide16) matchEmpty(r register) bitmask {
	return packMSB(swarMatchEmpty(r.lo)) | packMSB(swarMatchEmpty(r.hi))<<8
}

func (Wide16) matchFull(r register) bitmask {
	return packMSB(swarMatchFull(r.lo)) | packMSB(swarMatchFull(r.hi))<<8
}

// Wide8 is the portable backend: its lane width is the native machine word,
// 8 bytes, scanned with SIMD-within-a-register bit tricks (the generic path
// of Abseil's swiss tables and of Go ports such as cockroachdb/swiss).
type Wide8 struct{}

func (Wide8) groupSize() uintptr { return 8 }

func (Wide8) load(p unsafe.Pointer) register {
	return register{lo: *(*uint64)(p)}
}

func (Wide8) match(r register, value uint8) bitmask {
	return packMSB(swarMatchByte(r.lo, value))
}

func (Wide8) matchEmpty(r register) bitmask {
	return packMSB(swarMatchEmpty(r.lo))
}

func (Wide8) matchFull(r register) bitmask {
	return packMSB(swarMatchFull(r.lo))
}
