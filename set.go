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

// Package alpmap implements an open-addressing hash set in the style of
// Swiss Tables as described in https://abseil.io/about/design/swisstables.
// See also https://faultlore.com/blah/hashbrown-tldr/.
//
// The key design choice of Swiss tables is a separate metadata array with
// one control byte per slot. The top bit distinguishes vacant states
// (empty, deleted, sentinel) from full slots; for a full slot the low 7
// bits hold a fingerprint of the key's hash. The metadata array lets a
// lookup examine a whole group of slots at once with a vectorized compare
// and only touch the slot array for fingerprint matches, which keeps the
// common probe step inside one or two cache lines.
//
// Layout differs from cockroachdb/swiss in one deliberate way: groups here
// are aligned, non-overlapping runs of groupSize control bytes, probed by
// group index, rather than overlapping windows with a mirrored prefix.
// The control array is capacity+groupSize bytes: ctrls[capacity] is a
// sentinel that bounds iteration, and the bytes after it are sentinel
// padding so whole-group loads at the boundary stay in bounds. A probe
// sequence over group indices visits every group exactly once (see
// probeSeq), and a scan terminates only at a group containing an empty
// lane. Deleted lanes (tombstones) never stop the scan, because an
// insertion may have pushed a colliding key past a slot that was
// tombstoned later.
//
// Deletion writes a tombstone unless the slot's group still contains an
// empty lane. In that case no probe sequence can ever have continued past
// this group while it was full (groups that contain an empty byte have
// always contained one, since erase only converts to empty under the same
// condition), so the slot reverts directly to empty and the table keeps
// its growth budget.
//
// Growth doubles the group count and reinserts the live elements,
// discarding tombstones; when tombstones dominate, the table is instead
// rehashed in place using Abseil's convert-and-redistribute algorithm.
// Either path leaves the table untouched if allocation fails.
//
// A SetOf is NOT goroutine-safe. Lookups and iteration may run
// concurrently with each other, but not with any mutating operation.
package alpmap

import (
	"errors"
	"fmt"
	"strings"
	"unsafe"
)

const debug = false

const (
	ctrlEmpty    = 0x80
	ctrlDeleted  = 0xFE
	ctrlSentinel = 0xFF
)

// ErrNotFound is returned by key-based operations when the key is not in
// the set. It is the only domain error the container produces; allocation
// failures are reported as distinct, wrapped allocator errors.
var ErrNotFound = errors.New("alpmap: not found")

// SetOf is an unordered set of keys with Emplace, Find, Erase, and
// iteration operations, generic over the group-scanning backend B. Most
// callers want the Set or PortableSet aliases, which fix the backend.
//
// The zero value is not usable; construct with New, NewWithCapacity, or
// NewOf.
type SetOf[K comparable, B Backend] struct {
	hash   HashFn[K]
	eq     EqualFn[K]
	alloc  Allocator[K]
	cloner CloneFn[K]

	// ctrls is capacity+groupSize bytes; ctrls[capacity] is ctrlSentinel
	// and the tail beyond it is sentinel padding. When the set has no
	// storage, ctrls points at emptyCtrls, which is never modified and
	// lets Find and Erase probe without a nil check.
	ctrls unsafeSlice[uint8]
	// slots is capacity in length.
	slots unsafeSlice[K]
	// hashes is capacity in length and only allocated under StoreHash.
	hashes unsafeSlice[uint64]

	// capacity is the total slot count: groupCount * groupSize, where
	// groupCount is always a power of two. Zero until first allocation.
	capacity uintptr
	// groupMask is groupCount-1.
	groupMask uintptr
	// used is the number of full slots (the element count).
	used int
	// growthLeft is the number of slots that can still be filled without
	// rehashing: threshold - used - tombstones. Tombstones are excluded
	// from the budget so that a table churned by erase/insert pairs
	// rehashes instead of degenerating into endless probe chains.
	growthLeft int

	policy  HashPolicy
	probing ProbeScheme
	storage HashStorage
	lfNum   uintptr
	lfDen   uintptr
}

// Set is a SetOf scanned with the fixed 16-lane backend.
type Set[K comparable] = SetOf[K, Wide16]

// PortableSet is a SetOf scanned with the 8-lane word-at-a-time backend.
type PortableSet[K comparable] = SetOf[K, Wide8]

var emptyCtrls = func() unsafeSlice[uint8] {
	v := make([]uint8, 16)
	for i := range v {
		v[i] = ctrlEmpty
	}
	return makeUnsafeSlice(v)
}()

// New constructs an empty Set. Nothing is allocated until the first
// insertion.
func New[K comparable](opts ...Option[K]) *Set[K] {
	// Capacity zero cannot allocate and therefore cannot fail.
	s, _ := NewOf[K, Wide16](0, opts...)
	return s
}

// NewWithCapacity constructs a Set sized so that capacity elements fit
// without rehashing. The group count is rounded up to the next power of
// two sufficient under the configured load factor.
func NewWithCapacity[K comparable](capacity int, opts ...Option[K]) (*Set[K], error) {
	return NewOf[K, Wide16](capacity, opts...)
}

// NewOf constructs a set with an explicit backend choice.
func NewOf[K comparable, B Backend](capacity int, opts ...Option[K]) (*SetOf[K, B], error) {
	cfg := defaultConfig[K]()
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.hash == nil {
		cfg.hash = defaultHashFn[K]()
	}

	s := &SetOf[K, B]{
		hash:    cfg.hash,
		eq:      cfg.eq,
		alloc:   cfg.alloc,
		cloner:  cfg.cloner,
		ctrls:   emptyCtrls,
		policy:  cfg.policy,
		probing: cfg.probing,
		storage: cfg.storage,
		lfNum:   cfg.lfNum,
		lfDen:   cfg.lfDen,
	}
	if capacity > 0 {
		var b B
		if err := s.resize(capacityForEntries(capacity, s.lfNum, s.lfDen, b.groupSize())); err != nil {
			return nil, err
		}
	}
	s.checkInvariants()
	return s, nil
}

// Close releases the set's memory back to its configured allocator. It is
// unnecessary to close a set using the default allocator. Using a set
// after Close is invalid, though Close itself is idempotent.
func (s *SetOf[K, B]) Close() {
	var b B
	if s.capacity > 0 {
		s.alloc.FreeSlots(s.slots.Slice(0, s.capacity))
		s.alloc.FreeControls(s.ctrls.Slice(0, s.capacity+b.groupSize()))
		if s.storage == StoreHash {
			s.alloc.FreeHashes(s.hashes.Slice(0, s.capacity))
		}
		s.capacity = 0
		s.groupMask = 0
		s.used = 0
		s.growthLeft = 0
	}
	s.ctrls = emptyCtrls
	s.slots = unsafeSlice[K]{}
	s.hashes = unsafeSlice[uint64]{}
	s.alloc = nil
}

// Len returns the number of elements in the set.
func (s *SetOf[K, B]) Len() int {
	return s.used
}

// Cap returns the current slot capacity. It is zero for an unallocated set
// and otherwise a power-of-two multiple of the backend's group size.
func (s *SetOf[K, B]) Cap() int {
	return int(s.capacity)
}

// Cursor identifies the location of an element found by Find or Emplace.
// A cursor is invalidated by any operation that rehashes the set;
// dereferencing a stale or erased cursor is undefined.
type Cursor struct {
	i uintptr
}

// hashKey produces the post-policy digest for key.
func (s *SetOf[K, B]) hashKey(key K) uint64 {
	h := s.hash(key)
	if s.policy == MixingHash {
		h = mix(h)
	}
	return h
}

func (s *SetOf[K, B]) keyEqual(key K, slot *K) bool {
	if s.eq == nil {
		return key == *slot
	}
	return s.eq(key, *slot)
}

// probeEnds reports whether a group terminates the probe sequence. Only an
// empty lane ends probing; deleted lanes keep the scan alive. Encoding the
// rule here keeps the lookup and insert paths from drifting apart.
func probeEnds[B Backend](r register) bool {
	var b B
	return b.matchEmpty(r).any()
}

// matchVacant returns the lanes available for insertion: empty or deleted.
func matchVacant[B Backend](r register) bitmask {
	var b B
	return b.matchEmpty(r) | b.match(r, ctrlDeleted)
}

// findSlot walks the probe sequence for h and returns the slot index
// holding key. The loop is bounded by the group count: the probe sequence
// is a permutation of the groups, so even a table with no empty slots
// (e.g. fully tombstoned) terminates after visiting every group once.
func (s *SetOf[K, B]) findSlot(h uint64, key K) (uintptr, bool) {
	var b B
	gs := b.groupSize()
	fp := h2(h)
	seq := makeProbeSeq(h1(h), s.groupMask, s.probing)
	if debug {
		fmt.Printf("find(%v): fp=%02x start=%d\n", key, fp, seq.offset)
	}

	for n := uintptr(0); n <= s.groupMask; n++ {
		base := seq.offset * gs
		r := b.load(unsafe.Pointer(s.ctrls.At(base)))

		for match := b.match(r, fp); match.any(); match = match.remove() {
			i := base + uintptr(match.first())
			if s.storage == StoreHash && *s.hashes.At(i) != h {
				continue
			}
			if s.keyEqual(key, s.slots.At(i)) {
				return i, true
			}
		}

		if probeEnds[B](r) {
			return 0, false
		}
		seq = seq.next()
	}
	return 0, false
}

// Find returns a cursor to key's element, or ok=false if key is absent.
func (s *SetOf[K, B]) Find(key K) (Cursor, bool) {
	i, ok := s.findSlot(s.hashKey(key), key)
	return Cursor{i: i}, ok
}

// Contains reports whether key is in the set.
func (s *SetOf[K, B]) Contains(key K) bool {
	_, ok := s.findSlot(s.hashKey(key), key)
	return ok
}

// Get returns the stored element equal to key, or ErrNotFound.
func (s *SetOf[K, B]) Get(key K) (K, error) {
	if i, ok := s.findSlot(s.hashKey(key), key); ok {
		return *s.slots.At(i), nil
	}
	var zero K
	return zero, ErrNotFound
}

// KeyAt returns the element at a cursor previously returned by Find or
// Emplace.
func (s *SetOf[K, B]) KeyAt(c Cursor) K {
	return *s.slots.At(c.i)
}

// Emplace inserts key if no equal key is present. It returns a cursor to
// the resident element (the existing one when inserted is false) and
// reports whether an insertion happened. The only possible error is an
// allocation failure from the configured allocator, in which case the set
// is unchanged.
func (s *SetOf[K, B]) Emplace(key K) (Cursor, bool, error) {
	h := s.hashKey(key)
	if i, ok := s.findSlot(h, key); ok {
		return Cursor{i: i}, false, nil
	}

	// The table may be overcrowded (or fully unallocated). Rehash before
	// placing the new element so the probe below is guaranteed a vacant
	// slot.
	if s.growthLeft == 0 {
		if err := s.rehash(); err != nil {
			return Cursor{}, false, err
		}
	}
	i := s.uncheckedEmplace(h, key)
	s.checkInvariants()
	return Cursor{i: i}, true, nil
}

// uncheckedEmplace places a key known not to be in the table at the first
// vacant (empty or deleted) slot along its probe sequence. Reusing the
// first tombstone encountered, rather than probing on to an empty slot,
// bounds table growth under erase/insert churn. The caller must guarantee
// growthLeft > 0, which implies an empty slot exists and the probe
// terminates.
func (s *SetOf[K, B]) uncheckedEmplace(h uint64, key K) uintptr {
	var b B
	gs := b.groupSize()
	seq := makeProbeSeq(h1(h), s.groupMask, s.probing)
	for ; ; seq = seq.next() {
		base := seq.offset * gs
		r := b.load(unsafe.Pointer(s.ctrls.At(base)))
		if match := matchVacant[B](r); match.any() {
			i := base + uintptr(match.first())
			if *s.ctrls.At(i) == ctrlEmpty {
				s.growthLeft--
			}
			*s.ctrls.At(i) = h2(h)
			*s.slots.At(i) = key
			if s.storage == StoreHash {
				*s.hashes.At(i) = h
			}
			s.used++
			if debug {
				fmt.Printf("emplace(%v): index=%d used=%d growth-left=%d\n",
					key, i, s.used, s.growthLeft)
			}
			return i
		}
	}
}

// Erase removes key from the set, returning the number of elements removed
// (0 or 1). Storage is never shrunk.
func (s *SetOf[K, B]) Erase(key K) int {
	i, ok := s.findSlot(s.hashKey(key), key)
	if !ok {
		return 0
	}
	s.eraseSlot(i)
	s.checkInvariants()
	return 1
}

// TryErase removes key from the set, or returns ErrNotFound if it is
// absent.
func (s *SetOf[K, B]) TryErase(key K) error {
	if s.Erase(key) == 0 {
		return ErrNotFound
	}
	return nil
}

// EraseAt removes the element at a cursor previously returned by Find or
// Emplace. Erasing a stale or already-erased cursor is undefined.
func (s *SetOf[K, B]) EraseAt(c Cursor) {
	s.eraseSlot(c.i)
	s.checkInvariants()
}

func (s *SetOf[K, B]) eraseSlot(i uintptr) {
	var b B
	var zero K
	*s.slots.At(i) = zero
	if s.storage == StoreHash {
		*s.hashes.At(i) = 0
	}
	s.used--

	// If the slot's group still holds an empty lane the group was never
	// full, so no probe sequence has ever continued past it and the slot
	// can revert to empty. Otherwise a tombstone preserves the probe
	// chains that may run through this group.
	base := i &^ (b.groupSize() - 1)
	r := b.load(unsafe.Pointer(s.ctrls.At(base)))
	if b.matchEmpty(r).any() {
		*s.ctrls.At(i) = ctrlEmpty
		s.growthLeft++
	} else {
		*s.ctrls.At(i) = ctrlDeleted
	}
	if debug {
		fmt.Printf("erase: index=%d used=%d growth-left=%d\n", i, s.used, s.growthLeft)
	}
}

// Clear removes all elements. Tombstones are discarded and every control
// byte reverts to empty; storage capacity is retained.
func (s *SetOf[K, B]) Clear() {
	if s.capacity == 0 {
		return
	}
	ctrls := s.ctrls.Slice(0, s.capacity)
	for i := range ctrls {
		ctrls[i] = ctrlEmpty
	}
	clear(s.slots.Slice(0, s.capacity))
	if s.storage == StoreHash {
		clear(s.hashes.Slice(0, s.capacity))
	}
	s.used = 0
	s.growthLeft = int(s.threshold(s.capacity))
	s.checkInvariants()
}

// Reserve grows the set so that n elements fit under the load-factor
// threshold without rehashing. It never shrinks; if the current capacity
// already suffices it is a no-op.
func (s *SetOf[K, B]) Reserve(n int) error {
	var b B
	need := capacityForEntries(n, s.lfNum, s.lfDen, b.groupSize())
	if need <= s.capacity {
		return nil
	}
	return s.resize(need)
}

// threshold returns the growth budget for a given capacity: the maximum
// number of non-empty (full + deleted) slots before a rehash is forced.
func (s *SetOf[K, B]) threshold(capacity uintptr) uintptr {
	t := capacity * s.lfNum / s.lfDen
	if t == 0 {
		t = 1
	}
	return t
}

// rehash restores the growth budget, either by dropping tombstones in
// place or by doubling. Rehashing in place is significantly faster than
// resizing because elements mostly stay where they are, so it is preferred
// whenever the tombstones it reclaims amount to a third of capacity; the
// heuristic follows cockroachdb/swiss.
func (s *SetOf[K, B]) rehash() error {
	var b B
	if s.capacity == 0 {
		return s.resize(b.groupSize())
	}
	recoverable := int(s.threshold(s.capacity)) - s.used
	if s.capacity > b.groupSize() && recoverable >= int(s.capacity/3) {
		s.rehashInPlace()
		return nil
	}
	return s.resize(2 * s.capacity)
}

// resize reallocates the table at newCapacity (snapped up to a power-of-two
// group count) and reinserts every live element, discarding tombstones.
// Allocation failure leaves the set in its prior state; reinsertion itself
// cannot fail, so the old storage is released only after the new table is
// fully built.
func (s *SetOf[K, B]) resize(newCapacity uintptr) error {
	var b B
	gs := b.groupSize()
	groups := nextPow2((newCapacity + gs - 1) / gs)
	newCapacity = groups * gs

	newCtrls, err := s.alloc.AllocControls(int(newCapacity + gs))
	if err != nil {
		return fmt.Errorf("alpmap: alloc controls: %w", err)
	}
	newSlots, err := s.alloc.AllocSlots(int(newCapacity))
	if err != nil {
		s.alloc.FreeControls(newCtrls)
		return fmt.Errorf("alpmap: alloc slots: %w", err)
	}
	var newHashes []uint64
	if s.storage == StoreHash {
		newHashes, err = s.alloc.AllocHashes(int(newCapacity))
		if err != nil {
			s.alloc.FreeSlots(newSlots)
			s.alloc.FreeControls(newCtrls)
			return fmt.Errorf("alpmap: alloc hashes: %w", err)
		}
	}

	for i := uintptr(0); i < newCapacity; i++ {
		newCtrls[i] = ctrlEmpty
	}
	for i := newCapacity; i < newCapacity+gs; i++ {
		newCtrls[i] = ctrlSentinel
	}

	oldCtrls, oldSlots, oldHashes := s.ctrls, s.slots, s.hashes
	oldCapacity := s.capacity

	s.ctrls = makeUnsafeSlice(newCtrls)
	s.slots = makeUnsafeSlice(newSlots)
	s.hashes = makeUnsafeSlice(newHashes)
	s.capacity = newCapacity
	s.groupMask = groups - 1
	s.used = 0
	s.growthLeft = int(s.threshold(newCapacity))

	if debug {
		fmt.Printf("resize: capacity=%d->%d growth-left=%d\n",
			oldCapacity, newCapacity, s.growthLeft)
	}

	for i := uintptr(0); i < oldCapacity; i++ {
		c := *oldCtrls.At(i)
		if c&0x80 != 0 {
			continue
		}
		key := *oldSlots.At(i)
		var h uint64
		if s.storage == StoreHash {
			h = *oldHashes.At(i)
		} else {
			h = s.hashKey(key)
		}
		s.uncheckedEmplace(h, key)
	}

	if oldCapacity > 0 {
		s.alloc.FreeSlots(oldSlots.Slice(0, oldCapacity))
		s.alloc.FreeControls(oldCtrls.Slice(0, oldCapacity+gs))
		if s.storage == StoreHash {
			s.alloc.FreeHashes(oldHashes.Slice(0, oldCapacity))
		}
	}

	s.checkInvariants()
	return nil
}

// rehashInPlace drops every tombstone without reallocating. We first mark
// every deleted slot as empty and every full slot as deleted. Marking the
// deleted slots as empty has effectively dropped the tombstones, but it
// fouls up the probe invariant; marking the full slots as deleted leaves a
// marker to locate the previously full slots. We then walk the marked
// slots and move each element to the first vacant slot its probe sequence
// reaches, which reestablishes the invariant.
func (s *SetOf[K, B]) rehashInPlace() {
	var b B
	gs := b.groupSize()

	for i := uintptr(0); i < s.capacity; i += 8 {
		convertNonFullToEmptyAndFullToDeleted(s.ctrls.At(i))
	}

	// As this loop proceeds there are no deleted slots in [0, i): each
	// marked slot is either finalized in place, moved into an empty slot
	// (possibly in [0, i)), or swapped with a later marked slot which is
	// then reprocessed at index i.
	for i := uintptr(0); i < s.capacity; i++ {
		if *s.ctrls.At(i) != ctrlDeleted {
			continue
		}

		key := s.slots.At(i)
		var h uint64
		if s.storage == StoreHash {
			h = *s.hashes.At(i)
		} else {
			h = s.hashKey(*key)
		}

		seq := makeProbeSeq(h1(h), s.groupMask, s.probing)
		var target uintptr
		for ; ; seq = seq.next() {
			base := seq.offset * gs
			r := b.load(unsafe.Pointer(s.ctrls.At(base)))
			if match := matchVacant[B](r); match.any() {
				target = base + uintptr(match.first())
				break
			}
		}

		if target/gs == i/gs {
			// The first vacant slot on the probe sequence falls in the
			// element's current group, so the element is already in its
			// best probe position.
			*s.ctrls.At(i) = h2(h)
			continue
		}

		if *s.ctrls.At(target) == ctrlEmpty {
			*s.ctrls.At(target) = h2(h)
			*s.slots.At(target) = *key
			var zero K
			*key = zero
			if s.storage == StoreHash {
				*s.hashes.At(target) = h
				*s.hashes.At(i) = 0
			}
			*s.ctrls.At(i) = ctrlEmpty
			continue
		}

		// The target slot holds another displaced element. Swap the two
		// and reprocess index i, which now holds the displaced element.
		*s.ctrls.At(target) = h2(h)
		t := s.slots.At(target)
		*key, *t = *t, *key
		if s.storage == StoreHash {
			hi, ht := s.hashes.At(i), s.hashes.At(target)
			*hi, *ht = *ht, *hi
		}
		i--
	}

	s.growthLeft = int(s.threshold(s.capacity)) - s.used

	if debug {
		fmt.Printf("rehash-in-place: used=%d growth-left=%d\n", s.used, s.growthLeft)
	}
	s.checkInvariants()
}

// Clone returns a deep copy of the set, sharing the hash function and seed
// so control bytes can be copied verbatim. If a cloner is configured and
// fails on the k-th element, the partially built destination is released
// through the allocator, the source is untouched, and the error is
// returned wrapped.
func (s *SetOf[K, B]) Clone() (*SetOf[K, B], error) {
	var b B
	gs := b.groupSize()

	c := &SetOf[K, B]{
		hash:    s.hash,
		eq:      s.eq,
		alloc:   s.alloc,
		cloner:  s.cloner,
		ctrls:   emptyCtrls,
		policy:  s.policy,
		probing: s.probing,
		storage: s.storage,
		lfNum:   s.lfNum,
		lfDen:   s.lfDen,
	}
	if s.capacity == 0 {
		return c, nil
	}

	newCtrls, err := s.alloc.AllocControls(int(s.capacity + gs))
	if err != nil {
		return nil, fmt.Errorf("alpmap: alloc controls: %w", err)
	}
	newSlots, err := s.alloc.AllocSlots(int(s.capacity))
	if err != nil {
		s.alloc.FreeControls(newCtrls)
		return nil, fmt.Errorf("alpmap: alloc slots: %w", err)
	}
	var newHashes []uint64
	if s.storage == StoreHash {
		newHashes, err = s.alloc.AllocHashes(int(s.capacity))
		if err != nil {
			s.alloc.FreeSlots(newSlots)
			s.alloc.FreeControls(newCtrls)
			return nil, fmt.Errorf("alpmap: alloc hashes: %w", err)
		}
	}

	copy(newCtrls, s.ctrls.Slice(0, s.capacity+gs))
	if s.storage == StoreHash {
		copy(newHashes, s.hashes.Slice(0, s.capacity))
	}

	if s.cloner == nil {
		copy(newSlots, s.slots.Slice(0, s.capacity))
	} else {
		for i := uintptr(0); i < s.capacity; i++ {
			if *s.ctrls.At(i)&0x80 != 0 {
				continue
			}
			k, err := s.cloner(*s.slots.At(i))
			if err != nil {
				// Tear down exactly what has been built so far. The
				// already-cloned prefix lives in newSlots, so releasing
				// the arrays releases it.
				s.alloc.FreeSlots(newSlots)
				s.alloc.FreeControls(newCtrls)
				if s.storage == StoreHash {
					s.alloc.FreeHashes(newHashes)
				}
				return nil, fmt.Errorf("alpmap: clone element: %w", err)
			}
			newSlots[i] = k
		}
	}

	c.ctrls = makeUnsafeSlice(newCtrls)
	c.slots = makeUnsafeSlice(newSlots)
	c.hashes = makeUnsafeSlice(newHashes)
	c.capacity = s.capacity
	c.groupMask = s.groupMask
	c.used = s.used
	c.growthLeft = s.growthLeft
	c.checkInvariants()
	return c, nil
}

// Swap exchanges the contents of two sets in constant time.
func (s *SetOf[K, B]) Swap(other *SetOf[K, B]) {
	*s, *other = *other, *s
}

// All calls yield for each element in the set until yield returns false.
// It is usable as a range-over-func iterator:
//
//	for k := range s.All {
//	    ...
//	}
//
// The capacity and storage are snapshotted up front, so the set may be
// mutated during iteration, though there is no guarantee the mutations are
// visible to it.
func (s *SetOf[K, B]) All(yield func(key K) bool) {
	capacity, ctrls, slots := s.capacity, s.ctrls, s.slots
	for i := uintptr(0); i < capacity; i++ {
		if *ctrls.At(i)&ctrlEmpty != ctrlEmpty {
			if !yield(*slots.At(i)) {
				return
			}
		}
	}
}

func (s *SetOf[K, B]) checkInvariants() {
	if invariants {
		var b B
		gs := b.groupSize()
		if s.capacity > 0 {
			for i := s.capacity; i < s.capacity+gs; i++ {
				if c := *s.ctrls.At(i); c != ctrlSentinel {
					panic(fmt.Sprintf("invariant failed: ctrl(%d): expected sentinel, found %02x\n%s",
						i, c, s.debugString()))
				}
			}
		}

		var used, deleted int
		for i := uintptr(0); i < s.capacity; i++ {
			switch c := *s.ctrls.At(i); c {
			case ctrlDeleted:
				deleted++
			case ctrlEmpty:
			case ctrlSentinel:
				panic(fmt.Sprintf("invariant failed: ctrl(%d): unexpected sentinel", i))
			default:
				key := *s.slots.At(i)
				h := s.hashKey(key)
				if h2(h) != c {
					panic(fmt.Sprintf("invariant failed: slot(%d): ctrl %02x does not match fingerprint %02x\n%s",
						i, c, h2(h), s.debugString()))
				}
				if j, ok := s.findSlot(h, key); !ok || j != i {
					panic(fmt.Sprintf("invariant failed: slot(%d): %v not found at its slot\n%s",
						i, key, s.debugString()))
				}
				used++
			}
		}

		if used != s.used {
			panic(fmt.Sprintf("invariant failed: found %d used slots, but used count is %d\n%s",
				used, s.used, s.debugString()))
		}
		if s.capacity > 0 {
			growthLeft := int(s.threshold(s.capacity)) - used - deleted
			if growthLeft != s.growthLeft {
				panic(fmt.Sprintf("invariant failed: found %d growthLeft, but expected %d\n%s",
					s.growthLeft, growthLeft, s.debugString()))
			}
		}
	}
}

func (s *SetOf[K, B]) debugString() string {
	var b B
	var buf strings.Builder
	fmt.Fprintf(&buf, "capacity=%d  used=%d  growth-left=%d\n", s.capacity, s.used, s.growthLeft)
	for i := uintptr(0); i < s.capacity+b.groupSize(); i++ {
		switch c := *s.ctrls.At(i); c {
		case ctrlEmpty:
			fmt.Fprintf(&buf, "  %4d: empty\n", i)
		case ctrlDeleted:
			fmt.Fprintf(&buf, "  %4d: deleted\n", i)
		case ctrlSentinel:
			fmt.Fprintf(&buf, "  %4d: sentinel\n", i)
		default:
			if i < s.capacity {
				fmt.Fprintf(&buf, "  %4d: %v [ctrl=%02x]\n", i, *s.slots.At(i), c)
			} else {
				fmt.Fprintf(&buf, "  %4d: [ctrl=%02x]\n", i, c)
			}
		}
	}
	return buf.String()
}

// convertNonFullToEmptyAndFullToDeleted rewrites 8 control bytes at once:
// empty, deleted, and sentinel bytes become empty, and full bytes become
// deleted. We select the MSB, invert, add 1 if the MSB was set, and zero
// the low bit:
//
//   - MSB set (empty, deleted, sentinel):
//     v:             1000 0000
//     ^v:            0111 1111
//     ^v + (v >> 7): 1000 0000
//     &^ lsb:        1000 0000  = empty
//
//   - MSB clear (full):
//     v:             0000 0000
//     ^v:            1111 1111
//     ^v + (v >> 7): 1111 1111
//     &^ lsb:        1111 1110  = deleted
func convertNonFullToEmptyAndFullToDeleted(c *uint8) {
	p := (*uint64)(unsafe.Pointer(c))
	v := *p & bitsetMSB
	*p = (^v + (v >> 7)) &^ bitsetLSB
}

// unsafeSlice provides semi-ergonomic limited slice-like functionality
// without bounds checking for fixed sized slices.
type unsafeSlice[T any] struct {
	ptr unsafe.Pointer
}

func makeUnsafeSlice[T any](s []T) unsafeSlice[T] {
	return unsafeSlice[T]{ptr: unsafe.Pointer(unsafe.SliceData(s))}
}

// At returns a pointer to the element at index i.
func (s unsafeSlice[T]) At(i uintptr) *T {
	var t T
	return (*T)(unsafe.Add(s.ptr, unsafe.Sizeof(t)*i))
}

// Slice returns a Go slice akin to slice[start:end] for a Go builtin slice.
func (s unsafeSlice[T]) Slice(start, end uintptr) []T {
	return unsafe.Slice((*T)(s.ptr), end)[start:end]
}
