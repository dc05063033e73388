package bitset

import "math/bits"

// BitSet is a dense set of vertex ids over a fixed universe [0, n).
// It has a single writer; concurrent readers are fine only while nobody writes.
type BitSet struct {
	words []uint64
	n     uint32
}

// New creates an empty set able to hold ids in [0, n)
func New(n uint32) *BitSet {
	return &BitSet{
		words: make([]uint64, (uint64(n)+63)/64),
		n:     n,
	}
}

// Len returns the size of the universe
func (b *BitSet) Len() uint32 { return b.n }

// Set adds v. Setting an already present id is a no-op.
func (b *BitSet) Set(v uint32) {
	b.words[v>>6] |= 1 << (v & 63)
}

// Clear removes v
func (b *BitSet) Clear(v uint32) {
	b.words[v>>6] &^= 1 << (v & 63)
}

// Test reports whether v is in the set
func (b *BitSet) Test(v uint32) bool {
	return b.words[v>>6]&(1<<(v&63)) != 0
}

// Count returns the number of ids in the set
func (b *BitSet) Count() uint64 {
	var c uint64
	for _, w := range b.words {
		c += uint64(bits.OnesCount64(w))
	}
	return c
}

// Reset clears every bit but keeps the universe size
func (b *BitSet) Reset() {
	for i := range b.words {
		b.words[i] = 0
	}
}

// NextSet returns the smallest id >= from that is in the set
func (b *BitSet) NextSet(from uint32) (uint32, bool) {
	if from >= b.n {
		return 0, false
	}
	i := int(from >> 6)
	w := b.words[i] >> (from & 63)
	if w != 0 {
		return from + uint32(bits.TrailingZeros64(w)), true
	}
	for i++; i < len(b.words); i++ {
		if b.words[i] != 0 {
			return uint32(i)<<6 + uint32(bits.TrailingZeros64(b.words[i])), true
		}
	}
	return 0, false
}

// Iterator walks the set bits in ascending order.
type Iterator struct {
	set  *BitSet
	next uint32
	done bool
}

// Iter returns an iterator positioned before the first set id
func (b *BitSet) Iter() *Iterator {
	return &Iterator{set: b}
}

// Peek returns the current id without advancing
func (it *Iterator) Peek() (uint32, bool) {
	if it.done {
		return 0, false
	}
	v, ok := it.set.NextSet(it.next)
	if !ok {
		it.done = true
		return 0, false
	}
	it.next = v
	return v, true
}

// Next returns the current id and advances past it
func (it *Iterator) Next() (uint32, bool) {
	v, ok := it.Peek()
	if !ok {
		return 0, false
	}
	if v == it.set.n-1 {
		it.done = true
	} else {
		it.next = v + 1
	}
	return v, true
}

// Reset rewinds the iterator to the beginning
func (it *Iterator) Reset() {
	it.next = 0
	it.done = false
}
