// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package physical

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optcost/pkg/sql/opt"
	"github.com/cockroachdb/redact"
	"github.com/google/btree"
)

// btreeDegree is the degree of the btrees that keep property entries
// ordered by id.
const btreeDegree = 8

// CTEType distinguishes the producer of a CTE from its consumers.
type CTEType uint8

const (
	// CTEProducer marks the subtree that computes a CTE.
	CTEProducer CTEType = iota + 1
	// CTEConsumer marks a reference to a CTE.
	CTEConsumer
)

func (t CTEType) String() string {
	switch t {
	case CTEProducer:
		return "producer"
	case CTEConsumer:
		return "consumer"
	}
	return "unknown"
}

// SafeValue implements the redact.SafeValue interface.
func (CTEType) SafeValue() {}

type cteMapEntry struct {
	id  opt.CTEID
	typ CTEType
	// producer holds the derived properties of the producer's child. Only
	// set for producer entries.
	producer *Derived
}

func cteMapEntryLess(a, b cteMapEntry) bool { return a.id < b.id }

// CTEMap records, for a subtree, which CTEs are produced or consumed in it
// without being resolved within the subtree. A nil *CTEMap is empty.
//
// A CTEMap is immutable once built: CombineCTEMaps and the other
// constructors allocate a new map rather than modifying their inputs.
type CTEMap struct {
	entries *btree.BTreeG[cteMapEntry]
}

// NewCTEMap returns an empty map.
func NewCTEMap() *CTEMap {
	return &CTEMap{entries: btree.NewG(btreeDegree, cteMapEntryLess)}
}

// Insert adds an entry for the given CTE. Producer entries must carry the
// derived properties of the producer's child, and an id may only be
// inserted once.
func (m *CTEMap) Insert(id opt.CTEID, typ CTEType, producer *Derived) {
	if typ == CTEProducer && producer == nil {
		panic(errors.AssertionFailedf("producer entry for CTE %d without plan properties", id))
	}
	if typ == CTEConsumer {
		producer = nil
	}
	if m.entries == nil {
		m.entries = btree.NewG(btreeDegree, cteMapEntryLess)
	}
	if prev, ok := m.entries.ReplaceOrInsert(cteMapEntry{id: id, typ: typ, producer: producer}); ok {
		if prev.typ == CTEProducer && typ == CTEProducer {
			panic(errors.AssertionFailedf("multiple producers for CTE %d", id))
		}
		panic(errors.AssertionFailedf("CTE %d inserted twice into map", id))
	}
}

// Len returns the number of entries of the map.
func (m *CTEMap) Len() int {
	if m == nil || m.entries == nil {
		return 0
	}
	return m.entries.Len()
}

// Lookup returns the type of the entry for the CTE, if there is one.
func (m *CTEMap) Lookup(id opt.CTEID) (CTEType, bool) {
	if m == nil || m.entries == nil {
		return 0, false
	}
	e, ok := m.entries.Get(cteMapEntry{id: id})
	return e.typ, ok
}

// ProducerProps returns the derived properties of the producer of the CTE,
// or nil if the map has no producer entry for it.
func (m *CTEMap) ProducerProps(id opt.CTEID) *Derived {
	if m == nil || m.entries == nil {
		return nil
	}
	e, ok := m.entries.Get(cteMapEntry{id: id})
	if !ok {
		return nil
	}
	return e.producer
}

// ForEach calls f for each entry of the map, in increasing id order.
func (m *CTEMap) ForEach(f func(id opt.CTEID, typ CTEType, producer *Derived)) {
	if m == nil || m.entries == nil {
		return
	}
	m.entries.Ascend(func(e cteMapEntry) bool {
		f(e.id, e.typ, e.producer)
		return true
	})
}

// Equals returns true if both maps contain the same ids with the same types.
func (m *CTEMap) Equals(other *CTEMap) bool {
	if m.Len() != other.Len() {
		return false
	}
	eq := true
	m.ForEach(func(id opt.CTEID, typ CTEType, _ *Derived) {
		if otherTyp, ok := other.Lookup(id); !ok || otherTyp != typ {
			eq = false
		}
	})
	return eq
}

// AdditionalProducers returns the ids of the producer entries of the map
// that the requirement does not mention.
func (m *CTEMap) AdditionalProducers(req *CTERequirement) []opt.CTEID {
	var res []opt.CTEID
	m.ForEach(func(id opt.CTEID, typ CTEType, _ *Derived) {
		if _, _, ok := req.Lookup(id); !ok && typ == CTEProducer {
			res = append(res, id)
		}
	})
	return res
}

// String returns the map in the form "{1:producer, 2:consumer}".
func (m *CTEMap) String() string {
	var buf strings.Builder
	buf.WriteByte('{')
	first := true
	m.ForEach(func(id opt.CTEID, typ CTEType, _ *Derived) {
		if !first {
			buf.WriteString(", ")
		}
		first = false
		buf.WriteString(strconv.Itoa(int(id)))
		buf.WriteByte(':')
		buf.WriteString(typ.String())
	})
	buf.WriteByte('}')
	return buf.String()
}

// SafeFormat implements the redact.SafeFormatter interface.
func (m *CTEMap) SafeFormat(w redact.SafePrinter, _ rune) {
	w.SafeString(redact.SafeString(m.String()))
}

// CombineCTEMaps returns the entries of a and b that are not resolved
// against each other. An id that is a producer on one side and a consumer on
// the other cancels and is dropped from the result. Neither input is
// modified.
func CombineCTEMaps(a, b *CTEMap) *CTEMap {
	res := NewCTEMap()
	addUnresolved(a, b, res)
	addUnresolved(b, a, res)
	return res
}

func addUnresolved(first, second, res *CTEMap) {
	first.ForEach(func(id opt.CTEID, typ CTEType, producer *Derived) {
		otherTyp, ok := second.Lookup(id)
		if ok && otherTyp != typ {
			// A producer and a consumer of the same CTE resolve each other.
			return
		}
		if ok && typ == CTEProducer {
			panic(errors.AssertionFailedf("multiple producers for CTE %d", id))
		}
		if _, done := res.Lookup(id); done {
			return
		}
		res.Insert(id, typ, producer)
	})
}
