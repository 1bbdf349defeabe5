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

import "unsafe"

// Iterator walks the elements of a set one group at a time, pulling a
// full-lane bitmask per group and draining it lane by lane. The sentinel
// tail of the control array bounds the walk, so no capacity comparison is
// needed in the hot path. Order is unspecified.
//
// An Iterator is invalidated by any mutation of the set.
type Iterator[K comparable, B Backend] struct {
	ctrls unsafeSlice[uint8]
	slots unsafeSlice[K]
	// base is the index of the first control byte of the current group.
	base uintptr
	// match holds the not-yet-consumed full lanes of the current group.
	match bitmask
	cur   uintptr
	done  bool
}

// Iter returns an iterator positioned before the first element; call Next
// to advance onto it.
func (s *SetOf[K, B]) Iter() Iterator[K, B] {
	return Iterator[K, B]{
		ctrls: s.ctrls,
		slots: s.slots,
		// emptyCtrls carries no sentinel, so an unallocated set is
		// exhausted from the start.
		done: s.capacity == 0,
	}
}

// Next advances to the next element, reporting false when the set is
// exhausted.
func (it *Iterator[K, B]) Next() bool {
	var b B
	gs := b.groupSize()
	if it.done {
		return false
	}
	for {
		if it.match.any() {
			it.cur = it.base - gs + uintptr(it.match.first())
			it.match = it.match.remove()
			return true
		}
		if *it.ctrls.At(it.base) == ctrlSentinel {
			it.done = true
			return false
		}
		r := b.load(unsafe.Pointer(it.ctrls.At(it.base)))
		it.match = b.matchFull(r)
		it.base += gs
	}
}

// Key returns the element the iterator is positioned on. It must not be
// called before the first Next or after Next has returned false.
func (it *Iterator[K, B]) Key() K {
	return *it.slots.At(it.cur)
}
