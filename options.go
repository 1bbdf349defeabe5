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

import "fmt"

// HashStorage selects whether the full digest is cached per slot.
type HashStorage uint8

const (
	// NoStoreHash recomputes the digest from the key whenever it is
	// needed (rehashing, equality pre-checks). Saves 8 bytes per slot,
	// costs CPU on collision-heavy or rehash-heavy workloads.
	NoStoreHash HashStorage = iota

	// StoreHash caches the post-policy digest alongside each slot.
	// Rehashing and the equality pre-check use the cached value instead
	// of recomputing it.
	StoreHash
)

// CloneFn deep-copies a single element during Clone. Returning an error
// aborts the clone: the partially built destination is released and the
// source is left untouched.
type CloneFn[K comparable] func(key K) (K, error)

type config[K comparable] struct {
	hash    HashFn[K]
	eq      EqualFn[K]
	alloc   Allocator[K]
	cloner  CloneFn[K]
	policy  HashPolicy
	probing ProbeScheme
	storage HashStorage
	lfNum   uintptr
	lfDen   uintptr
}

func defaultConfig[K comparable]() config[K] {
	return config[K]{
		alloc:   defaultAllocator[K]{},
		policy:  MixingHash,
		probing: QuadraticProbing,
		storage: NoStoreHash,
		lfNum:   7,
		lfDen:   8,
	}
}

// Option configures a set at construction time.
type Option[K comparable] func(*config[K])

// WithHash specifies the hash function. The default hashes through the
// runtime's maphash with a per-set random seed.
func WithHash[K comparable](hash HashFn[K]) Option[K] {
	return func(c *config[K]) {
		c.hash = hash
	}
}

// WithEqual specifies the key equality function. The default is ==.
func WithEqual[K comparable](eq EqualFn[K]) Option[K] {
	return func(c *config[K]) {
		c.eq = eq
	}
}

// WithAllocator specifies the Allocator used for control and slot storage.
func WithAllocator[K comparable](alloc Allocator[K]) Option[K] {
	return func(c *config[K]) {
		c.alloc = alloc
	}
}

// WithHashPolicy selects how digests are conditioned before the
// selector/fingerprint split. The default is MixingHash, which is the safe
// choice for variable-length keys; IdentityHash is appropriate for small
// fixed-width keys where the caller controls the hash function.
func WithHashPolicy[K comparable](policy HashPolicy) Option[K] {
	return func(c *config[K]) {
		c.policy = policy
	}
}

// WithHashStorage selects whether digests are cached per slot. The default
// is NoStoreHash.
func WithHashStorage[K comparable](storage HashStorage) Option[K] {
	return func(c *config[K]) {
		c.storage = storage
	}
}

// WithProbing selects the probe sequence over groups. The default is
// QuadraticProbing.
func WithProbing[K comparable](scheme ProbeScheme) Option[K] {
	return func(c *config[K]) {
		c.probing = scheme
	}
}

// WithLoadFactor sets the maximum occupancy ratio num/den that triggers
// growth. The ratio must lie in (0, 1); practical values are 3/4 through
// 9/10. The default is 7/8.
func WithLoadFactor[K comparable](num, den int) Option[K] {
	if num <= 0 || den <= 0 || num >= den {
		panic(fmt.Sprintf("alpmap: invalid load factor %d/%d", num, den))
	}
	return func(c *config[K]) {
		c.lfNum = uintptr(num)
		c.lfDen = uintptr(den)
	}
}

// WithCloner specifies a per-element deep-copy function used by Clone.
func WithCloner[K comparable](cloner CloneFn[K]) Option[K] {
	return func(c *config[K]) {
		c.cloner = cloner
	}
}

// Allocator specifies an interface for allocating and releasing the memory
// backing a set. The default allocator uses Go's builtin make and lets the
// GC reclaim memory; its Alloc methods never fail.
//
// If the allocator manually manages memory then Close must be called on the
// set to guarantee the Free methods run.
type Allocator[K comparable] interface {
	// AllocSlots returns a slice equivalent to make([]K, n).
	AllocSlots(n int) ([]K, error)

	// AllocControls returns a slice equivalent to make([]uint8, n).
	AllocControls(n int) ([]uint8, error)

	// AllocHashes returns a slice equivalent to make([]uint64, n). Only
	// called under StoreHash.
	AllocHashes(n int) ([]uint64, error)

	// FreeSlots releases a slice previously returned by AllocSlots.
	FreeSlots(v []K)

	// FreeControls releases a slice previously returned by AllocControls.
	FreeControls(v []uint8)

	// FreeHashes releases a slice previously returned by AllocHashes.
	FreeHashes(v []uint64)
}

type defaultAllocator[K comparable] struct{}

func (defaultAllocator[K]) AllocSlots(n int) ([]K, error) {
	return make([]K, n), nil
}

func (defaultAllocator[K]) AllocControls(n int) ([]uint8, error) {
	return make([]uint8, n), nil
}

func (defaultAllocator[K]) AllocHashes(n int) ([]uint64, error) {
	return make([]uint64, n), nil
}

func (defaultAllocator[K]) FreeSlots(v []K) {}

func (defaultAllocator[K]) FreeControls(v []uint8) {}

func (defaultAllocator[K]) FreeHashes(v []uint64) {}
