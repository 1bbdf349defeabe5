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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIterator(t *testing.T) {
	t.Run("wide16", testIterator[Wide16])
	t.Run("wide8", testIterator[Wide8])
}

func testIterator[B Backend](t *testing.T) {
	collect := func(s *SetOf[int, B]) map[int]struct{} {
		r := make(map[int]struct{})
		for it := s.Iter(); it.Next(); {
			k := it.Key()
			_, dup := r[k]
			require.False(t, dup, "duplicate key %d", k)
			r[k] = struct{}{}
		}
		return r
	}

	t.Run("empty", func(t *testing.T) {
		s, err := NewOf[int, B](0)
		require.NoError(t, err)
		require.Empty(t, collect(s))

		// Allocated but empty.
		require.NoError(t, s.Reserve(10))
		require.Empty(t, collect(s))
	})

	t.Run("single", func(t *testing.T) {
		s, err := NewOf[int, B](0)
		require.NoError(t, err)
		mustEmplace(t, s, 42)
		require.Equal(t, map[int]struct{}{42: {}}, collect(s))
	})

	// Counts around the group and growth boundaries.
	for _, count := range []int{7, 8, 9, 14, 15, 16, 17, 100} {
		t.Run("", func(t *testing.T) {
			s, err := NewOf[int, B](0)
			require.NoError(t, err)
			e := make(map[int]struct{})
			for i := 0; i < count; i++ {
				mustEmplace(t, s, i)
				e[i] = struct{}{}
			}
			require.Equal(t, e, collect(s))
		})
	}

	t.Run("tombstones", func(t *testing.T) {
		s, err := NewOf[int, B](0)
		require.NoError(t, err)
		e := make(map[int]struct{})
		for i := 0; i < 100; i++ {
			mustEmplace(t, s, i)
			e[i] = struct{}{}
		}
		for i := 1; i < 100; i += 2 {
			require.EqualValues(t, 1, s.Erase(i))
			delete(e, i)
		}
		require.Equal(t, e, collect(s))
	})
}

func TestIteratorExhausted(t *testing.T) {
	s := New[int]()
	mustEmplace(t, s, 1)
	it := s.Iter()
	require.True(t, it.Next())
	require.False(t, it.Next())
	// Next stays false once exhausted.
	require.False(t, it.Next())
}

func TestAllEarlyStop(t *testing.T) {
	s := New[int]()
	for i := 0; i < 100; i++ {
		mustEmplace(t, s, i)
	}
	var n int
	s.All(func(k int) bool {
		n++
		return n < 10
	})
	require.Equal(t, 10, n)
}

func TestAllRange(t *testing.T) {
	s := New[int]()
	e := make(map[int]struct{})
	for i := 0; i < 50; i++ {
		mustEmplace(t, s, i)
		e[i] = struct{}{}
	}
	got := make(map[int]struct{})
	for k := range s.All {
		got[k] = struct{}{}
	}
	require.Equal(t, e, got)
}
