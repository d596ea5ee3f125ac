// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package physical

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optcost/pkg/sql/opt"
	"github.com/cockroachdb/optcost/pkg/sql/opt/cat"
	"github.com/google/btree"
)

// PartPropType is the role of a partition propagation entry.
type PartPropType uint8

const (
	// PartConsumer marks a dynamic scan that still needs a partition
	// selector above it.
	PartConsumer PartPropType = iota + 1
	// PartPropagator marks a partition selector that resolves the dynamic
	// scan with the same scan id.
	PartPropagator
)

func (t PartPropType) String() string {
	switch t {
	case PartConsumer:
		return "consumer"
	case PartPropagator:
		return "propagator"
	}
	return "unknown"
}

// SafeValue implements the redact.SafeValue interface.
func (PartPropType) SafeValue() {}

// PartitionFilter is the predicate a partition selector evaluates to choose
// partitions: an equality between the partitioning column of the scanned
// relation and a column available to the selector.
type PartitionFilter struct {
	PartKey opt.ColumnID
	Key     opt.ColumnID
}

func (f *PartitionFilter) String() string {
	return fmt.Sprintf("@%d = @%d", f.PartKey, f.Key)
}

// PartitionPropagationEntry is one entry of a PartitionPropagationSpec.
type PartitionPropagationEntry struct {
	ScanID  opt.ScanID
	Type    PartPropType
	RootRel cat.TableID
	// Selectors are the partition selectors expected to resolve a
	// consumer. Only set on the required side.
	Selectors opt.SelectorSet
	// Filter is the selection predicate of a propagator. Only set on the
	// required side.
	Filter *PartitionFilter
}

func partPropEntryLess(a, b PartitionPropagationEntry) bool { return a.ScanID < b.ScanID }

// PartitionPropagationSpec tracks the dynamic scans and partition selectors
// of a plan by scan id. On the required side it describes which consumers a
// subtree must contain and which selectors it must provide; on the derived
// side it describes the unresolved consumers and the selectors of the
// subtree. A nil *PartitionPropagationSpec is empty.
//
// Specs are immutable once handed to another component. All combination
// functions allocate a new spec.
type PartitionPropagationSpec struct {
	entries *btree.BTreeG[PartitionPropagationEntry]
}

// NewPartitionPropagationSpec returns an empty spec.
func NewPartitionPropagationSpec() *PartitionPropagationSpec {
	return &PartitionPropagationSpec{entries: btree.NewG(btreeDegree, partPropEntryLess)}
}

func (s *PartitionPropagationSpec) empty() bool {
	return s == nil || s.entries == nil || s.entries.Len() == 0
}

// Len returns the number of entries.
func (s *PartitionPropagationSpec) Len() int {
	if s.empty() {
		return 0
	}
	return s.entries.Len()
}

// Lookup returns the entry for the scan id.
func (s *PartitionPropagationSpec) Lookup(id opt.ScanID) (PartitionPropagationEntry, bool) {
	if s.empty() {
		return PartitionPropagationEntry{}, false
	}
	return s.entries.Get(PartitionPropagationEntry{ScanID: id})
}

// Contains returns true if the spec has an entry for the scan id.
func (s *PartitionPropagationSpec) Contains(id opt.ScanID) bool {
	_, ok := s.Lookup(id)
	return ok
}

// ForEach calls f for each entry in increasing scan id order.
func (s *PartitionPropagationSpec) ForEach(f func(e PartitionPropagationEntry)) {
	if s.empty() {
		return
	}
	s.entries.Ascend(func(e PartitionPropagationEntry) bool {
		f(e)
		return true
	})
}

// ScanIDs returns the scan ids of the entries of the given type.
func (s *PartitionPropagationSpec) ScanIDs(typ PartPropType) opt.ScanIDSet {
	var res opt.ScanIDSet
	s.ForEach(func(e PartitionPropagationEntry) {
		if e.Type == typ {
			res.Add(e.ScanID)
		}
	})
	return res
}

// Insert adds an entry. If the scan id is already present with the same
// type, the selector ids are merged; the first filter wins. Inserting a
// different type for an existing scan id is an assertion failure.
func (s *PartitionPropagationSpec) Insert(
	id opt.ScanID,
	typ PartPropType,
	rootRel cat.TableID,
	selectors opt.SelectorSet,
	filter *PartitionFilter,
) {
	if s.entries == nil {
		s.entries = btree.NewG(btreeDegree, partPropEntryLess)
	}
	e := PartitionPropagationEntry{
		ScanID: id, Type: typ, RootRel: rootRel, Selectors: selectors, Filter: filter,
	}
	if prev, ok := s.entries.Get(e); ok {
		if prev.Type != typ {
			panic(errors.AssertionFailedf(
				"scan %d inserted as %s into spec that has it as %s", id, typ, prev.Type))
		}
		if prev.RootRel != rootRel {
			panic(errors.AssertionFailedf(
				"scan %d has root relations %d and %d", id, prev.RootRel, rootRel))
		}
		e.Selectors = prev.Selectors.Union(selectors)
		if prev.Filter != nil {
			e.Filter = prev.Filter
		}
	}
	s.entries.ReplaceOrInsert(e)
}

func (s *PartitionPropagationSpec) insertEntry(e PartitionPropagationEntry) {
	s.Insert(e.ScanID, e.Type, e.RootRel, e.Selectors, e.Filter)
}

// InsertAll merges the entries of other into s. Entries of the same type
// merge their selectors. A consumer and a propagator of the same scan id
// resolve each other, so both are dropped.
func (s *PartitionPropagationSpec) InsertAll(other *PartitionPropagationSpec) {
	var resolved opt.ScanIDSet
	s.insertAll(other, &resolved)
}

// insertAll is InsertAll where resolved collects the scan ids cancelled so
// far. Later entries of a resolved scan id are dropped as well.
func (s *PartitionPropagationSpec) insertAll(
	other *PartitionPropagationSpec, resolved *opt.ScanIDSet,
) {
	other.ForEach(func(e PartitionPropagationEntry) {
		if resolved.Contains(e.ScanID) {
			return
		}
		if prev, ok := s.Lookup(e.ScanID); ok && prev.Type != e.Type {
			s.entries.Delete(prev)
			resolved.Add(e.ScanID)
			return
		}
		s.insertEntry(e)
	})
}

// InsertAllowedConsumers copies the consumer entries of other whose scan id
// is in allowed.
func (s *PartitionPropagationSpec) InsertAllowedConsumers(
	other *PartitionPropagationSpec, allowed opt.ScanIDSet,
) {
	other.ForEach(func(e PartitionPropagationEntry) {
		if e.Type == PartConsumer && allowed.Contains(e.ScanID) {
			s.insertEntry(e)
		}
	})
}

// InsertAllExcept copies every entry of other except the one for the given
// scan id.
func (s *PartitionPropagationSpec) InsertAllExcept(other *PartitionPropagationSpec, id opt.ScanID) {
	other.ForEach(func(e PartitionPropagationEntry) {
		if e.ScanID != id {
			s.insertEntry(e)
		}
	})
}

// CombinePartitionPropagation returns the union of the given specs, with
// consumers and propagators of the same scan id cancelling each other. A
// cancelled scan id stays absent whatever the later specs hold. None of the
// inputs is modified.
func CombinePartitionPropagation(specs ...*PartitionPropagationSpec) *PartitionPropagationSpec {
	res := NewPartitionPropagationSpec()
	var resolved opt.ScanIDSet
	for _, spec := range specs {
		res.insertAll(spec, &resolved)
	}
	return res
}

// Satisfies returns true if every entry of required is present in s with
// the same type.
func (s *PartitionPropagationSpec) Satisfies(required *PartitionPropagationSpec) bool {
	ok := true
	required.ForEach(func(r PartitionPropagationEntry) {
		if e, found := s.Lookup(r.ScanID); !found || e.Type != r.Type {
			ok = false
		}
	})
	return ok
}

// Missing returns the entries of required that s does not satisfy.
func (s *PartitionPropagationSpec) Missing(
	required *PartitionPropagationSpec,
) []PartitionPropagationEntry {
	var res []PartitionPropagationEntry
	required.ForEach(func(r PartitionPropagationEntry) {
		if e, found := s.Lookup(r.ScanID); !found || e.Type != r.Type {
			res = append(res, r)
		}
	})
	return res
}

// ContainsAnyConsumers returns true if the spec has a consumer entry.
func (s *PartitionPropagationSpec) ContainsAnyConsumers() bool {
	found := false
	s.ForEach(func(e PartitionPropagationEntry) {
		found = found || e.Type == PartConsumer
	})
	return found
}

// IsUnsupportedCombination returns true if the required spec cannot be
// delivered correctly. A consumer resolved by more than one selector is
// ambiguous. If the operator that receives the requirement materializes its
// input, a consumer whose selector is defined above it is also unsupported,
// because the materialized rows are not rescanned when the selector picks
// new partitions.
func (s *PartitionPropagationSpec) IsUnsupportedCombination(materializing bool) bool {
	unsupported := false
	s.ForEach(func(e PartitionPropagationEntry) {
		if e.Type != PartConsumer {
			return
		}
		if e.Selectors.Len() > 1 || (materializing && !e.Selectors.Empty()) {
			unsupported = true
		}
	})
	return unsupported
}

// Equals returns true if both specs have the same entries.
func (s *PartitionPropagationSpec) Equals(other *PartitionPropagationSpec) bool {
	if s.Len() != other.Len() {
		return false
	}
	eq := true
	s.ForEach(func(e PartitionPropagationEntry) {
		o, ok := other.Lookup(e.ScanID)
		if !ok || o.Type != e.Type || o.RootRel != e.RootRel || !o.Selectors.Equals(e.Selectors) {
			eq = false
		}
	})
	return eq
}

// String returns the spec in the form
// "{5:consumer(rel=1, sel=(9)), 6:propagator(rel=2, filter=@3 = @7)}".
func (s *PartitionPropagationSpec) String() string {
	var buf strings.Builder
	buf.WriteByte('{')
	first := true
	s.ForEach(func(e PartitionPropagationEntry) {
		if !first {
			buf.WriteString(", ")
		}
		first = false
		buf.WriteString(strconv.Itoa(int(e.ScanID)))
		buf.WriteByte(':')
		buf.WriteString(e.Type.String())
		fmt.Fprintf(&buf, "(rel=%d", e.RootRel)
		if !e.Selectors.Empty() {
			fmt.Fprintf(&buf, ", sel=%s", e.Selectors)
		}
		if e.Filter != nil {
			fmt.Fprintf(&buf, ", filter=%s", e.Filter)
		}
		buf.WriteByte(')')
	})
	buf.WriteByte('}')
	return buf.String()
}
