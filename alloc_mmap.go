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

//go:build unix

package alpmap

import "github.com/philpearl/mmap"

// MmapAllocator backs a set's storage with anonymous mmap regions instead
// of the Go heap. The garbage collector never scans or moves the arrays,
// which matters for very large sets of pointer-free keys. A set using this
// allocator must be Closed, and K must not contain pointers, since the
// collector will not see them.
type MmapAllocator[K comparable] struct{}

func (MmapAllocator[K]) AllocSlots(n int) ([]K, error) {
	return mmap.Alloc[K](n)
}

func (MmapAllocator[K]) AllocControls(n int) ([]uint8, error) {
	return mmap.Alloc[uint8](n)
}

func (MmapAllocator[K]) AllocHashes(n int) ([]uint64, error) {
	return mmap.Alloc[uint64](n)
}

func (MmapAllocator[K]) FreeSlots(v []K) {
	_ = mmap.Free(v)
}

func (MmapAllocator[K]) FreeControls(v []uint8) {
	_ = mmap.Free(v)
}

func (MmapAllocator[K]) FreeHashes(v []uint64) {
	_ = mmap.Free(v)
}
