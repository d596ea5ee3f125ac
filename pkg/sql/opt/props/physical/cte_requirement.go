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
	"github.com/google/btree"
)

type cteReqEntry struct {
	id       opt.CTEID
	typ      CTEType
	required bool
	// producer optionally carries the derived properties of the CTE's
	// producer, so that a consumer below can copy them.
	producer *Derived
}

func cteReqEntryLess(a, b cteReqEntry) bool { return a.id < b.id }

// CTERequirement lists the CTE entries that the CTE map of a plan must, or
// may, contain. A nil *CTERequirement is empty: it accepts only plans whose
// CTE maps contain no consumers.
type CTERequirement struct {
	entries *btree.BTreeG[cteReqEntry]
}

// NewCTERequirement returns an empty requirement.
func NewCTERequirement() *CTERequirement {
	return &CTERequirement{entries: btree.NewG(btreeDegree, cteReqEntryLess)}
}

// Insert adds an entry to the requirement. An id may only be inserted once.
func (r *CTERequirement) Insert(id opt.CTEID, typ CTEType, required bool, producer *Derived) {
	e := cteReqEntry{id: id, typ: typ, required: required, producer: producer}
	if r.entries == nil {
		r.entries = btree.NewG(btreeDegree, cteReqEntryLess)
	}
	if _, ok := r.entries.ReplaceOrInsert(e); ok {
		panic(errors.AssertionFailedf("CTE %d inserted twice into requirement", id))
	}
}

// InsertConsumer adds a required consumer entry for the CTE. The producer
// properties are taken from the producer entry of the given map, which
// must exist.
func (r *CTERequirement) InsertConsumer(id opt.CTEID, producers *CTEMap) {
	props := producers.ProducerProps(id)
	if props == nil {
		panic(errors.AssertionFailedf("producer of CTE %d not found in %s", id, producers))
	}
	r.Insert(id, CTEConsumer, true /* required */, props)
}

// Len returns the number of entries.
func (r *CTERequirement) Len() int {
	if r == nil || r.entries == nil {
		return 0
	}
	return r.entries.Len()
}

// Lookup returns the type and required flag of the entry for the CTE.
func (r *CTERequirement) Lookup(id opt.CTEID) (typ CTEType, required bool, ok bool) {
	if r == nil || r.entries == nil {
		return 0, false, false
	}
	e, ok := r.entries.Get(cteReqEntry{id: id})
	return e.typ, e.required, ok
}

// ContainsRequirement returns true if the requirement has an entry of the
// given type for the CTE.
func (r *CTERequirement) ContainsRequirement(id opt.CTEID, typ CTEType) bool {
	t, _, ok := r.Lookup(id)
	return ok && t == typ
}

// ProducerProps returns the producer properties carried by the entry for
// the CTE, or nil.
func (r *CTERequirement) ProducerProps(id opt.CTEID) *Derived {
	if r == nil || r.entries == nil {
		return nil
	}
	e, _ := r.entries.Get(cteReqEntry{id: id})
	return e.producer
}

// ProducerContext returns the producer properties carried by the
// requirement, keyed by CTE id. Consumers copy their derived properties
// from this context.
func (r *CTERequirement) ProducerContext() ProducerProps {
	var res ProducerProps
	r.forEach(func(e cteReqEntry) {
		if e.producer != nil {
			if res == nil {
				res = make(ProducerProps)
			}
			res[e.id] = e.producer
		}
	})
	return res
}

func (r *CTERequirement) forEach(f func(e cteReqEntry)) {
	if r == nil || r.entries == nil {
		return
	}
	r.entries.Ascend(func(e cteReqEntry) bool {
		f(e)
		return true
	})
}

// SatisfiedBy returns true if the map satisfies the requirement: every
// required entry is present in the map with the same type, and every
// consumer in the map is known to the requirement.
func (r *CTERequirement) SatisfiedBy(m *CTEMap) bool {
	ok := true
	r.forEach(func(e cteReqEntry) {
		if !e.required {
			return
		}
		if typ, found := m.Lookup(e.id); !found || typ != e.typ {
			ok = false
		}
	})
	if !ok {
		return false
	}
	m.ForEach(func(id opt.CTEID, typ CTEType, _ *Derived) {
		if typ == CTEConsumer && !r.ContainsRequirement(id, CTEConsumer) {
			ok = false
		}
	})
	return ok
}

// AllOptional returns a copy of the requirement in which every entry is
// optional.
func (r *CTERequirement) AllOptional() *CTERequirement {
	res := NewCTERequirement()
	r.forEach(func(e cteReqEntry) {
		res.Insert(e.id, e.typ, false /* required */, e.producer)
	})
	return res
}

// Without returns a copy of the requirement without the entry for the CTE.
func (r *CTERequirement) Without(id opt.CTEID) *CTERequirement {
	res := NewCTERequirement()
	r.forEach(func(e cteReqEntry) {
		if e.id != id {
			res.Insert(e.id, e.typ, e.required, e.producer)
		}
	})
	return res
}

// Unresolved returns the requirement that remains after the entries of the
// given map have been produced elsewhere. Entries resolved by the map
// become optional; all other entries keep their required flag. Resolved
// entries are kept so that a consumer that also appears in the map is still
// known to the narrowed requirement.
func (r *CTERequirement) Unresolved(m *CTEMap) *CTERequirement {
	res := NewCTERequirement()
	r.forEach(func(e cteReqEntry) {
		_, resolved := m.Lookup(e.id)
		res.Insert(e.id, e.typ, e.required && !resolved, e.producer)
	})
	return res
}

// UnresolvedSequence is the variant of Unresolved used for the last child
// of a Sequence. Producers found in m, the combined map of the earlier
// children, require their consumers in the last child. The producer
// properties of those consumers are taken from producers, the map of the
// Sequence's first child.
func (r *CTERequirement) UnresolvedSequence(m, producers *CTEMap) *CTERequirement {
	res := NewCTERequirement()
	r.forEach(func(e cteReqEntry) {
		drvd, found := m.Lookup(e.id)
		switch {
		case e.required && found:
			if e.typ != CTEConsumer || drvd != CTEConsumer {
				panic(errors.AssertionFailedf("required %s of CTE %d resolved by %s", e.typ, e.id, drvd))
			}
			// Already found, so the last child need not provide it.
			res.Insert(e.id, e.typ, false /* required */, e.producer)
		case !e.required && found && e.typ == CTEProducer:
			if drvd != CTEProducer {
				panic(errors.AssertionFailedf("optional producer of CTE %d resolved by %s", e.id, drvd))
			}
			// Found a producer, so its consumer is now required.
			res.InsertConsumer(e.id, producers)
		default:
			res.Insert(e.id, e.typ, e.required, e.producer)
		}
	})
	for _, id := range m.AdditionalProducers(r) {
		res.InsertConsumer(id, producers)
	}
	return res
}

// Equals returns true if both requirements have the same entries.
func (r *CTERequirement) Equals(other *CTERequirement) bool {
	if r.Len() != other.Len() {
		return false
	}
	eq := true
	r.forEach(func(e cteReqEntry) {
		typ, required, ok := other.Lookup(e.id)
		if !ok || typ != e.typ || required != e.required {
			eq = false
		}
	})
	return eq
}

// String returns the requirement in the form "{1:consumer, 2:producer?}",
// where optional entries are suffixed with '?'.
func (r *CTERequirement) String() string {
	var buf strings.Builder
	buf.WriteByte('{')
	first := true
	r.forEach(func(e cteReqEntry) {
		if !first {
			buf.WriteString(", ")
		}
		first = false
		buf.WriteString(strconv.Itoa(int(e.id)))
		buf.WriteByte(':')
		buf.WriteString(e.typ.String())
		if !e.required {
			buf.WriteByte('?')
		}
	})
	buf.WriteByte('}')
	return buf.String()
}
