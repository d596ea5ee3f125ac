// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package physical

import (
	"strings"

	"github.com/cockroachdb/optcost/pkg/sql/opt"
)

// Derived are the physical properties delivered by a chosen plan. They are
// computed bottom-up once the children of an expression are fixed, and are
// never modified afterwards, so a Derived value may be shared by the CTE
// maps of any number of parents.
type Derived struct {
	// Ordering is the order of the rows produced by the plan.
	Ordering OrderSpec

	// CTEs records the CTE producers and consumers of the plan that are not
	// resolved within it.
	CTEs *CTEMap

	// PartitionPropagation records the unresolved dynamic scans and the
	// partition selectors of the plan.
	PartitionPropagation *PartitionPropagationSpec
}

// Satisfies returns true if the derived properties satisfy the required
// ones. Each property is checked independently.
func (d *Derived) Satisfies(required *Required) bool {
	return d.Ordering.Satisfies(required.Ordering) &&
		d.PartitionPropagation.Satisfies(required.PartitionPropagation) &&
		required.CTEs.SatisfiedBy(d.CTEs)
}

func (d *Derived) String() string {
	var buf strings.Builder
	buf.WriteString("[ordering: ")
	buf.WriteString(d.Ordering.String())
	buf.WriteString("] [ctes: ")
	buf.WriteString(d.CTEs.String())
	buf.WriteString("] [partition-propagation: ")
	buf.WriteString(d.PartitionPropagation.String())
	buf.WriteByte(']')
	return buf.String()
}

// ProducerProps maps a CTE id to the derived properties of its producer's
// child. CTE consumers derive their properties from this context rather
// than from children.
type ProducerProps map[opt.CTEID]*Derived
