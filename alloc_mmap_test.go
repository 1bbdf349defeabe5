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

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMmapAllocator(t *testing.T) {
	run := func(t *testing.T, opts ...Option[int]) {
		opts = append(opts, WithAllocator[int](MmapAllocator[int]{}))
		s := New[int](opts...)
		defer s.Close()

		for i := 0; i < 1000; i++ {
			require.True(t, mustEmplace(t, s, i))
		}
		require.EqualValues(t, 1000, s.Len())
		for i := 0; i < 1000; i++ {
			require.True(t, s.Contains(i))
		}
		for i := 0; i < 1000; i += 2 {
			require.EqualValues(t, 1, s.Erase(i))
		}
		require.EqualValues(t, 500, s.Len())
		require.Equal(t, 500, len(s.toBuiltinSet()))
	}

	t.Run("basic", func(t *testing.T) { run(t) })
	t.Run("storeHash", func(t *testing.T) {
		run(t, WithHashStorage[int](StoreHash))
	})
}
