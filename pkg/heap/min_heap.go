package heap

import (
	"errors"

	"golang.org/x/exp/constraints"
)

var (
	// ErrKeyNotFound is returned when an operation names a key that is not in the heap
	ErrKeyNotFound = errors.New("heap: key not found")
	// ErrNegativeValue is returned when a decrease would take a value below zero
	ErrNegativeValue = errors.New("heap: value cannot be negative")
)

// Number is the value type a heap can be ordered by
type Number interface {
	constraints.Integer | constraints.Float
}

type entry[V Number, K comparable] struct {
	value V
	key   K
}

// IndexedMinHeap is a binary min-heap of (value, key) pairs with a key → slot
// index, giving O(log n) decrease-key and removal by key.
type IndexedMinHeap[V Number, K comparable] struct {
	heap  []entry[V, K]
	index map[K]int
}

// New creates a heap with room for capacity entries
func New[V Number, K comparable](capacity int) *IndexedMinHeap[V, K] {
	return &IndexedMinHeap[V, K]{
		heap:  make([]entry[V, K], 0, capacity),
		index: make(map[K]int, capacity),
	}
}

// Len returns the number of entries
func (h *IndexedMinHeap[V, K]) Len() int { return len(h.heap) }

// Contains reports whether key is in the heap
func (h *IndexedMinHeap[V, K]) Contains(key K) bool {
	_, ok := h.index[key]
	return ok
}

// Value returns the current value of key
func (h *IndexedMinHeap[V, K]) Value(key K) (V, bool) {
	i, ok := h.index[key]
	if !ok {
		var zero V
		return zero, false
	}
	return h.heap[i].value, true
}

// Insert adds key with the given value. Inserting a present key replaces its value.
func (h *IndexedMinHeap[V, K]) Insert(value V, key K) {
	if i, ok := h.index[key]; ok {
		old := h.heap[i].value
		h.heap[i].value = value
		if value < old {
			h.up(i)
		} else {
			h.down(i)
		}
		return
	}
	h.heap = append(h.heap, entry[V, K]{value: value, key: key})
	i := len(h.heap) - 1
	h.index[key] = i
	h.up(i)
}

// Min returns the smallest entry without removing it
func (h *IndexedMinHeap[V, K]) Min() (V, K, bool) {
	if len(h.heap) == 0 {
		var v V
		var k K
		return v, k, false
	}
	return h.heap[0].value, h.heap[0].key, true
}

// Remove deletes key and reports whether it was present
func (h *IndexedMinHeap[V, K]) Remove(key K) bool {
	i, ok := h.index[key]
	if !ok {
		return false
	}
	last := len(h.heap) - 1
	delete(h.index, key)
	if i != last {
		h.heap[i] = h.heap[last]
		h.index[h.heap[i].key] = i
	}
	h.heap = h.heap[:last]
	if i < last {
		h.down(h.up(i))
	}
	return true
}

// DecreaseKey lowers the value of key by delta
func (h *IndexedMinHeap[V, K]) DecreaseKey(key K, delta V) error {
	if delta == 0 {
		return nil
	}
	i, ok := h.index[key]
	if !ok {
		return ErrKeyNotFound
	}
	if h.heap[i].value < delta {
		return ErrNegativeValue
	}
	h.heap[i].value -= delta
	h.up(i)
	return nil
}

// Clear removes every entry and keeps the allocated storage
func (h *IndexedMinHeap[V, K]) Clear() {
	h.heap = h.heap[:0]
	clear(h.index)
}

// Reset removes every entry and makes room for capacity entries
func (h *IndexedMinHeap[V, K]) Reset(capacity int) {
	if cap(h.heap) < capacity {
		h.heap = make([]entry[V, K], 0, capacity)
	} else {
		h.heap = h.heap[:0]
	}
	h.index = make(map[K]int, capacity)
}

func (h *IndexedMinHeap[V, K]) swap(i, j int) {
	h.heap[i], h.heap[j] = h.heap[j], h.heap[i]
	h.index[h.heap[i].key] = i
	h.index[h.heap[j].key] = j
}

func (h *IndexedMinHeap[V, K]) up(i int) int {
	for i > 0 {
		p := (i - 1) / 2
		if !(h.heap[i].value < h.heap[p].value) {
			break
		}
		h.swap(i, p)
		i = p
	}
	return i
}

func (h *IndexedMinHeap[V, K]) down(i int) {
	n := len(h.heap)
	for {
		l := 2*i + 1
		if l >= n {
			return
		}
		m := i
		if h.heap[l].value < h.heap[m].value {
			m = l
		}
		if r := l + 1; r < n && h.heap[r].value < h.heap[m].value {
			m = r
		}
		if m == i {
			return
		}
		h.swap(i, m)
		i = m
	}
}
