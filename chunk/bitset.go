/*
Copyright © 2026 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/
package chunk

import "bytes"

// bitSet records which entry points reach a module. Its string form is the
// key that groups modules into chunks.
type bitSet struct {
	entries []byte
}

func newBitSet(bitCount int) bitSet {
	return bitSet{make([]byte, (bitCount+7)/8)}
}

func (bs bitSet) hasBit(bit int) bool {
	return bs.entries[bit/8]&(1<<(bit&7)) != 0
}

func (bs bitSet) setBit(bit int) {
	bs.entries[bit/8] |= 1 << (bit & 7)
}

func (bs bitSet) equals(other bitSet) bool {
	return bytes.Equal(bs.entries, other.entries)
}

func (bs bitSet) String() string {
	return string(bs.entries)
}

// orderedSet is a set that iterates in insertion order.
type orderedSet[T comparable] struct {
	items []T
	index map[T]bool
}

func newOrderedSet[T comparable](items ...T) *orderedSet[T] {
	s := &orderedSet[T]{index: map[T]bool{}}
	for _, item := range items {
		s.add(item)
	}
	return s
}

func (s *orderedSet[T]) add(item T) bool {
	if s.index[item] {
		return false
	}
	s.index[item] = true
	s.items = append(s.items, item)
	return true
}

func (s *orderedSet[T]) has(item T) bool {
	return s.index[item]
}

func (s *orderedSet[T]) len() int {
	return len(s.items)
}
