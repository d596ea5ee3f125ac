// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package physical contains the physical properties of plans: the
// properties a parent requires of a subtree, and the properties a chosen
// subtree actually delivers.
package physical

import (
	"strings"

	"github.com/cockroachdb/optcost/pkg/sql/opt"
)

// Required properties are interesting characteristics of an expression that
// impact its layout, presentation, or location, but not its logical content.
// Examples include row order, CTE resolution and partition selection.
// Physical properties exist outside of the relational algebra, and arise
// from both the SQL query itself (e.g. the non-relational ORDER BY operator)
// and by the selection of specific implementations during optimization
// (e.g. a merge join requires the inputs to be sorted in a particular
// order).
//
// Required properties are derived top-to-bottom: a parent computes the
// properties required of each child for one of its optimization requests.
type Required struct {
	// Cols is the set of columns the parent reads from the expression.
	Cols opt.ColSet

	// Ordering specifies the sort order of result rows. If Ordering is empty,
	// then no particular ordering is required.
	Ordering OrderSpec

	// CTEs lists the CTE producers and consumers the expression must, or
	// may, contain without resolving them.
	CTEs *CTERequirement

	// PartitionPropagation lists the dynamic scans the expression must
	// contain and the partition selectors it must provide.
	PartitionPropagation *PartitionPropagationSpec
}

// MinRequired are the default physical properties that require nothing and
// provide nothing.
var MinRequired = &Required{}

// Defined is true if any physical property is defined. If none is defined,
// then this is an instance of MinRequired.
func (p *Required) Defined() bool {
	return !p.Ordering.Empty() || p.CTEs.Len() > 0 || p.PartitionPropagation.Len() > 0
}

// Equals returns true if the two physical properties are identical.
func (p *Required) Equals(rhs *Required) bool {
	return p.Cols.Equals(rhs.Cols) &&
		p.Ordering.Equals(rhs.Ordering) &&
		p.CTEs.Equals(rhs.CTEs) &&
		p.PartitionPropagation.Equals(rhs.PartitionPropagation)
}

func (p *Required) String() string {
	var buf strings.Builder
	output := func(name string, fn func()) {
		if buf.Len() != 0 {
			buf.WriteByte(' ')
		}
		buf.WriteByte('[')
		buf.WriteString(name)
		buf.WriteString(": ")
		fn()
		buf.WriteByte(']')
	}
	if !p.Cols.Empty() {
		output("cols", func() { buf.WriteString(p.Cols.String()) })
	}
	if !p.Ordering.Empty() {
		output("ordering", func() { buf.WriteString(p.Ordering.String()) })
	}
	if p.CTEs.Len() > 0 {
		output("ctes", func() { buf.WriteString(p.CTEs.String()) })
	}
	if p.PartitionPropagation.Len() > 0 {
		output("partition-propagation", func() { buf.WriteString(p.PartitionPropagation.String()) })
	}
	// Handle empty properties case.
	if buf.Len() == 0 {
		return "[]"
	}
	return buf.String()
}
