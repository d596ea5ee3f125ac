// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform

import (
	"math"

	"github.com/cockroachdb/optcost/pkg/sql/opt"
	"github.com/cockroachdb/optcost/pkg/sql/opt/memo"
)

// Joins cost their children as outer (child 0) and inner (child 1).
const (
	outerChild = 0
	innerChild = 1
)

// hashJoinUnits are the units of one of the two hash join formulas.
type hashJoinUnits struct {
	tableColumn, tableWidth, hashing, feedColumn, feedWidth, output CostUnit
}

var inMemoryHashJoinUnits = hashJoinUnits{
	tableColumn: UnitHJHashTableColumn,
	tableWidth:  UnitHJHashTableWidth,
	hashing:     UnitHJHashingTupWidth,
	feedColumn:  UnitHJFeedingTupColumn,
	feedWidth:   UnitHJFeedingTupWidth,
	output:      UnitHJOutputTup,
}

var spillingHashJoinUnits = hashJoinUnits{
	tableColumn: UnitHJHashTableColumnSpilling,
	tableWidth:  UnitHJHashTableWidthSpilling,
	hashing:     UnitHJHashingTupWidthSpilling,
	feedColumn:  UnitHJFeedingTupColumnSpilling,
	feedWidth:   UnitHJFeedingTupWidthSpilling,
	output:      UnitHJOutputTupSpilling,
}

// feedingCost is the cost of streaming the outer rows through the join
// condition.
func (c *coster) feedingCost(ci *CostingInfo, joinCols float64, colUnit, widthUnit CostUnit) float64 {
	outer := ci.Child(outerChild)
	return joinCols*outer.Rows*c.unit(colUnit) + outer.Width*outer.Rows*c.unit(widthUnit)
}

// outputCost is the cost of assembling the joined rows from the inner
// columns (extraction) and returning them.
func (c *coster) outputCost(ci *CostingInfo, withExtraction bool, outputUnit CostUnit) float64 {
	cost := ci.Rows * ci.Width * c.unit(outputUnit)
	if withExtraction {
		cost += ci.Rows * ci.Child(innerChild).Width * c.unit(outputUnit)
	}
	return cost
}

// computeHashJoinCost builds a hash table from the inner rows and probes it
// with the outer rows. If the hash table does not fit in memory, it spills
// and the spilling units apply.
func (c *coster) computeHashJoinCost(ci *CostingInfo) memo.Cost {
	p := ci.Private.(*memo.JoinPrivate)
	inner := ci.Child(innerChild)
	joinCols := float64(p.NumJoinCols())

	units := inMemoryHashJoinUnits
	var initCost float64
	if inner.Rows*inner.Width > c.unit(UnitHJSpillingMemThreshold) {
		units = spillingHashJoinUnits
		initCost = c.unit(UnitHJHashTableInitFactor)
	}

	build := inner.Rows * (joinCols*c.unit(units.tableColumn) + inner.Width*c.unit(units.tableWidth))
	feed := c.feedingCost(ci, joinCols, units.feedColumn, units.feedWidth)
	probe := inner.Width * inner.Rows * c.unit(units.hashing)
	output := c.outputCost(ci, false /* withExtraction */, units.output)

	local := (initCost + build + feed + probe + output) * c.hashJoinSkew(p)
	cost := memo.Cost(ci.Rebinds * local)
	cost.Add(c.computeChildrenCost(ci))
	return cost
}

// hashJoinSkew is the penalty of a skewed build side, where a few keys hold
// most rows. It is neutral unless skew costing is enabled.
func (c *coster) hashJoinSkew(p *memo.JoinPrivate) float64 {
	if !c.params.EnableHashJoinSkew {
		return 1
	}
	return math.Max(1, math.Min(p.SkewRatio, c.unit(UnitPenalizeHJSkewUpperLimit)))
}

func (c *coster) computeMergeJoinCost(ci *CostingInfo) memo.Cost {
	p := ci.Private.(*memo.JoinPrivate)
	outer, inner := ci.Child(outerChild), ci.Child(innerChild)
	joinCols := float64(p.NumJoinCols())

	feed := c.feedingCost(ci, joinCols, UnitHJFeedingTupColumn, UnitHJFeedingTupWidth)
	match := (inner.Rows + outer.Rows) * joinCols * c.unit(UnitFilterCol)
	output := c.outputCost(ci, true /* withExtraction */, UnitHJOutputTup)

	cost := memo.Cost(ci.Rebinds * (feed + match + output))
	cost.Add(c.computeChildrenCost(ci))
	return cost
}

// computeNLJoinCost rescans the inner side for every outer row. A risky
// row estimate penalizes the join at least as much as the equivalent index
// nested-loop join, so a risky plain nested-loop join is never preferred
// over it.
func (c *coster) computeNLJoinCost(ci *CostingInfo) memo.Cost {
	p := ci.Private.(*memo.JoinPrivate)
	outer, inner := ci.Child(outerChild), ci.Child(innerChild)
	joinCols := float64(p.NumJoinCols())

	feed := c.feedingCost(ci, joinCols, UnitHJFeedingTupColumn, UnitHJFeedingTupWidth)
	rescan := outer.Rows*inner.Rows*inner.Width*c.unit(UnitTableScan) +
		outer.Rows*inner.Rows*joinCols*c.unit(UnitFilterCol) +
		c.unit(UnitInitScanFactor)
	output := c.outputCost(ci, true /* withExtraction */, UnitHJOutputTup)

	penalty := c.unit(UnitNLJFactor)
	if risk := ci.Stats.EstimationRisk(); risk > c.unit(UnitIndexJoinAllowedRiskThreshold) {
		penalty = math.Max(penalty, risk)
	}

	cost := memo.Cost(ci.Rebinds * (feed + rescan + output) * penalty)
	cost.Add(c.computeChildrenCost(ci))
	return cost
}

// computeIndexNLJoinCost bills only the outer rows and the output. The
// index probes are billed by the inner index scan. Outer join estimates are
// considered reliable, so only the inner join is penalized for risk.
func (c *coster) computeIndexNLJoinCost(ci *CostingInfo) memo.Cost {
	p := ci.Private.(*memo.JoinPrivate)
	joinCols := float64(p.NumJoinCols())

	feed := c.feedingCost(ci, joinCols, UnitHJFeedingTupColumn, UnitHJFeedingTupWidth)
	output := c.outputCost(ci, false /* withExtraction */, UnitHJOutputTup)
	local := ci.Rebinds * (feed + output)
	if ci.Op == opt.InnerIndexNLJoinOp {
		if risk := ci.Stats.EstimationRisk(); risk > c.unit(UnitIndexJoinAllowedRiskThreshold) {
			local *= risk
		}
	}

	cost := memo.Cost(local)
	cost.Add(c.computeChildrenCost(ci))
	return cost
}
