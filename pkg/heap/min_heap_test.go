package heap

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(h *IndexedMinHeap[uint32, uint32]) []uint32 {
	var out []uint32
	for {
		v, k, ok := h.Min()
		if !ok {
			return out
		}
		out = append(out, v)
		h.Remove(k)
	}
}

func TestInsertMinRemove(t *testing.T) {
	h := New[uint32, uint32](8)
	_, _, ok := h.Min()
	assert.False(t, ok)

	h.Insert(5, 1)
	h.Insert(3, 2)
	h.Insert(9, 3)
	h.Insert(1, 4)

	v, k, ok := h.Min()
	require.True(t, ok)
	assert.Equal(t, uint32(1), v)
	assert.Equal(t, uint32(4), k)
	assert.Equal(t, 4, h.Len())

	assert.True(t, h.Remove(2))
	assert.False(t, h.Remove(2))
	assert.False(t, h.Contains(2))
	assert.Equal(t, []uint32{1, 5, 9}, drain(h))
}

func TestDecreaseKey(t *testing.T) {
	h := New[uint32, uint32](4)
	h.Insert(10, 1)
	h.Insert(4, 2)

	require.NoError(t, h.DecreaseKey(1, 7))
	v, k, _ := h.Min()
	assert.Equal(t, uint32(3), v)
	assert.Equal(t, uint32(1), k)

	require.NoError(t, h.DecreaseKey(1, 0), "zero delta is a no-op")
	assert.ErrorIs(t, h.DecreaseKey(1, 4), ErrNegativeValue)
	assert.ErrorIs(t, h.DecreaseKey(99, 1), ErrKeyNotFound)

	got, ok := h.Value(1)
	require.True(t, ok)
	assert.Equal(t, uint32(3), got, "failed decrease leaves the value intact")
}

func TestInsertExistingKeyReplaces(t *testing.T) {
	h := New[int, string](2)
	h.Insert(5, "a")
	h.Insert(7, "b")
	h.Insert(9, "a")
	v, k, _ := h.Min()
	assert.Equal(t, 7, v)
	assert.Equal(t, "b", k)
	assert.Equal(t, 2, h.Len())
}

func TestRandomizedAgainstSort(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	h := New[uint32, uint32](0)
	live := map[uint32]uint32{}

	for i := uint32(0); i < 2000; i++ {
		val := uint32(rng.Intn(1000)) + 50
		h.Insert(val, i)
		live[i] = val
	}
	for i := uint32(0); i < 2000; i += 3 {
		require.True(t, h.Remove(i))
		delete(live, i)
	}
	for i := uint32(1); i < 2000; i += 5 {
		if _, ok := live[i]; !ok {
			continue
		}
		d := uint32(rng.Intn(50))
		require.NoError(t, h.DecreaseKey(i, d))
		live[i] -= d
	}

	want := make([]uint32, 0, len(live))
	for _, v := range live {
		want = append(want, v)
	}
	sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })
	assert.Equal(t, want, drain(h))
}

func TestClearAndReset(t *testing.T) {
	h := New[uint32, uint32](2)
	h.Insert(1, 1)
	h.Clear()
	assert.Equal(t, 0, h.Len())
	assert.False(t, h.Contains(1))

	h.Insert(2, 2)
	h.Reset(16)
	assert.Equal(t, 0, h.Len())
	h.Insert(3, 3)
	v, _, ok := h.Min()
	assert.True(t, ok)
	assert.Equal(t, uint32(3), v)
}

func BenchmarkDecreaseKey(b *testing.B) {
	const n = 1 << 14
	h := New[uint32, uint32](n)
	for i := uint32(0); i < n; i++ {
		h.Insert(1<<30, i)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = h.DecreaseKey(uint32(i)%n, 1)
	}
}
