// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/optcost/pkg/sql/opt"
	"github.com/cockroachdb/optcost/pkg/sql/opt/memo"
	"github.com/cockroachdb/optcost/pkg/sql/opt/props"
)

// ChildCostingInfo is the part of a costed child that its parent's formula
// reads.
type ChildCostingInfo struct {
	Op      opt.Operator
	Private interface{}
	Rows    float64
	Width   float64
	Rebinds float64
	Cost    memo.Cost
	Stats   props.Statistics
}

// CostingInfo holds the cardinalities of an expression and of its chosen
// children. It is built fresh for every cost computation.
type CostingInfo struct {
	Op      opt.Operator
	Private interface{}
	Rows    float64
	Width   float64
	Rebinds float64
	Stats   props.Statistics

	Children []ChildCostingInfo
}

// ChildCount returns the number of children.
func (ci *CostingInfo) ChildCount() int {
	return len(ci.Children)
}

// Child returns the ith child.
func (ci *CostingInfo) Child(i int) *ChildCostingInfo {
	return &ci.Children[i]
}

func (ci *CostingInfo) String() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "%s [rows=%g, width=%g, rebinds=%g]", ci.Op, ci.Rows, ci.Width, ci.Rebinds)
	for i := range ci.Children {
		c := &ci.Children[i]
		fmt.Fprintf(&buf, "\n  %s [rows=%g, width=%g, rebinds=%g, cost=%s]",
			c.Op, c.Rows, c.Width, c.Rebinds, c.Cost)
	}
	return buf.String()
}

// makeCostingInfo builds the costing info of an expression from its own
// statistics and the best contexts of its children, which must be costed.
func makeCostingInfo(e *memo.Expr, stats props.Statistics, children []*CostContext) *CostingInfo {
	ci := &CostingInfo{
		Op:       e.Op(),
		Private:  e.Private(),
		Rows:     stats.RowCount(),
		Width:    stats.Width(opt.ColSet{}),
		Rebinds:  stats.Rebinds(),
		Stats:    stats,
		Children: make([]ChildCostingInfo, len(children)),
	}
	for i, c := range children {
		cs := c.Stats()
		ci.Children[i] = ChildCostingInfo{
			Op:      c.Expr().Op(),
			Private: c.Expr().Private(),
			Rows:    cs.RowCount(),
			Width:   cs.Width(opt.ColSet{}),
			Rebinds: cs.Rebinds(),
			Cost:    c.Cost(),
			Stats:   cs,
		}
	}
	return ci
}
