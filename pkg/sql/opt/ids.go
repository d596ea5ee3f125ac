// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package opt

import (
	"strconv"
	"strings"

	"github.com/bits-and-blooms/bitset"
	"github.com/cockroachdb/errors"
)

// ColumnID uniquely identifies a column within a query.
type ColumnID int32

// ScanID identifies a dynamic scan of a partitioned relation. Partition
// selectors and partition consumers are matched by ScanID.
type ScanID int32

// SelectorID identifies a partition selector that resolves a ScanID.
type SelectorID int32

// CTEID identifies a common table expression shared by one producer and any
// number of consumers.
type CTEID int32

// ID is the constraint satisfied by the small integer identifiers above.
type ID interface {
	~int32
}

// IDSet is a set of small non-negative identifiers. IDSet values are
// immutable: every operation that changes the set returns or installs a new
// bitmap, so copies of an IDSet never observe each other's changes.
type IDSet[T ID] struct {
	bits *bitset.BitSet
}

// ColSet efficiently stores an unordered set of column ids.
type ColSet = IDSet[ColumnID]

// ScanIDSet is a set of dynamic scan ids.
type ScanIDSet = IDSet[ScanID]

// SelectorSet is a set of partition selector ids.
type SelectorSet = IDSet[SelectorID]

// MakeIDSet returns a set initialized with the given ids.
func MakeIDSet[T ID](ids ...T) IDSet[T] {
	var s IDSet[T]
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// MakeColSet returns a set initialized with the given columns.
func MakeColSet(cols ...ColumnID) ColSet { return MakeIDSet(cols...) }

func checkID[T ID](id T) uint {
	if id < 0 {
		panic(errors.AssertionFailedf("negative id %d", int32(id)))
	}
	return uint(id)
}

// Add adds an id to the set.
func (s *IDSet[T]) Add(id T) {
	i := checkID(id)
	if s.bits != nil && s.bits.Test(i) {
		return
	}
	var b *bitset.BitSet
	if s.bits == nil {
		b = bitset.New(i + 1)
	} else {
		b = s.bits.Clone()
	}
	s.bits = b.Set(i)
}

// Remove removes an id from the set.
func (s *IDSet[T]) Remove(id T) {
	i := checkID(id)
	if s.bits == nil || !s.bits.Test(i) {
		return
	}
	s.bits = s.bits.Clone().Clear(i)
}

// Contains returns true if the set contains the id.
func (s IDSet[T]) Contains(id T) bool {
	return s.bits != nil && id >= 0 && s.bits.Test(uint(id))
}

// Next returns the smallest id in the set that is at least startVal.
func (s IDSet[T]) Next(startVal T) (T, bool) {
	if s.bits == nil {
		return 0, false
	}
	i, ok := s.bits.NextSet(checkID(startVal))
	return T(i), ok
}

// Empty returns true if the set is empty.
func (s IDSet[T]) Empty() bool { return s.bits == nil || s.bits.None() }

// Len returns the number of ids in the set.
func (s IDSet[T]) Len() int {
	if s.bits == nil {
		return 0
	}
	return int(s.bits.Count())
}

// Union returns the union of s and other.
func (s IDSet[T]) Union(other IDSet[T]) IDSet[T] {
	switch {
	case other.Empty():
		return s
	case s.Empty():
		return other
	}
	return IDSet[T]{bits: s.bits.Union(other.bits)}
}

// Intersection returns the intersection of s and other.
func (s IDSet[T]) Intersection(other IDSet[T]) IDSet[T] {
	if s.Empty() || other.Empty() {
		return IDSet[T]{}
	}
	return IDSet[T]{bits: s.bits.Intersection(other.bits)}
}

// Difference returns the ids of s that are not in other.
func (s IDSet[T]) Difference(other IDSet[T]) IDSet[T] {
	if s.Empty() || other.Empty() {
		return s
	}
	return IDSet[T]{bits: s.bits.Difference(other.bits)}
}

// Intersects returns true if s has any ids in common with other.
func (s IDSet[T]) Intersects(other IDSet[T]) bool {
	if s.Empty() || other.Empty() {
		return false
	}
	return s.bits.IntersectionCardinality(other.bits) > 0
}

// SubsetOf returns true if s is a subset of other.
func (s IDSet[T]) SubsetOf(other IDSet[T]) bool {
	if s.Empty() {
		return true
	}
	if other.Empty() {
		return false
	}
	return other.bits.IsSuperSet(s.bits)
}

// Equals returns true if the two sets contain the same ids.
func (s IDSet[T]) Equals(other IDSet[T]) bool {
	return s.SubsetOf(other) && other.SubsetOf(s)
}

// ForEach calls a function for each id in the set, in increasing order.
func (s IDSet[T]) ForEach(f func(id T)) {
	if s.bits == nil {
		return
	}
	for i, ok := s.bits.NextSet(0); ok; i, ok = s.bits.NextSet(i + 1) {
		f(T(i))
	}
}

// Ordered returns the ids of the set in increasing order.
func (s IDSet[T]) Ordered() []T {
	res := make([]T, 0, s.Len())
	s.ForEach(func(id T) { res = append(res, id) })
	return res
}

// String returns a list representation of the set, for example "(1,3,4)".
func (s IDSet[T]) String() string {
	var buf strings.Builder
	buf.WriteByte('(')
	first := true
	s.ForEach(func(id T) {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		buf.WriteString(strconv.Itoa(int(id)))
	})
	buf.WriteByte(')')
	return buf.String()
}
