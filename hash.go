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

import "hash/maphash"

// HashFn hashes a key to a 64-bit digest. The container derives both the
// probe start group and the per-slot fingerprint from this digest, so a
// weak function degrades probe lengths; see HashPolicy for the mitigation.
type HashFn[K comparable] func(key K) uint64

// EqualFn reports whether two keys are equal. When a custom EqualFn is
// configured the hash function must be consistent with it: equal keys must
// produce equal digests.
type EqualFn[K comparable] func(a, b K) bool

// defaultHashFn hashes through the runtime's maphash with a per-set random
// seed, matching the quality of Go's builtin map hashing.
func defaultHashFn[K comparable]() HashFn[K] {
	seed := maphash.MakeSeed()
	return func(key K) uint64 {
		return maphash.Comparable(seed, key)
	}
}

// HashPolicy selects how raw digests are conditioned before being split
// into a group selector and a fingerprint.
type HashPolicy uint8

const (
	// MixingHash runs the digest through a 64-bit avalanche before the
	// split. This compensates for low-quality or adversarial hash
	// functions whose low bits cluster, which would otherwise pile keys
	// into a few groups. It is the right default for variable-length keys
	// such as strings.
	MixingHash HashPolicy = iota

	// IdentityHash uses the digest's bits directly. Appropriate when the
	// hash function is already well distributed, or for deterministic,
	// reproducible collision testing with a caller-controlled function.
	IdentityHash
)

// mix is the 64-bit finalizer from MurmurHash3 (fmix64). Every input bit
// affects every output bit.
func mix(h uint64) uint64 {
	h ^= h >> 33
	h *= 0xff51afd7ed558ccd
	h ^= h >> 33
	h *= 0xc4ceb9fe1a85ec53
	h ^= h >> 33
	return h
}

// h1 extracts the group selector portion of a digest: everything above the
// fingerprint bits. Callers reduce it modulo the group count.
func h1(h uint64) uintptr {
	return uintptr(h >> 7)
}

// h2 extracts the fingerprint portion of a digest: the low 7 bits, which
// fit the non-top-bit range of a control byte.
func h2(h uint64) uint8 {
	return uint8(h & 0x7f)
}
