// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform

import (
	"math"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optcost/pkg/sql/opt"
	"github.com/cockroachdb/optcost/pkg/sql/opt/cat"
	"github.com/cockroachdb/optcost/pkg/sql/opt/memo"
	"github.com/cockroachdb/redact"
)

// Coster is used by the optimizer to assign a cost to a candidate expression
// that can provide a set of required physical properties. If a candidate
// expression has a lower cost than any other expression in the memo group,
// then it becomes the new best expression for the group.
//
// The set of costing formulas maintained by the coster for the set of all
// operators constitute the "cost model". A given cost model can be designed
// to maximize any optimization goal, such as:
//
//  1. Max aggregate cluster throughput (txns/sec across cluster)
//  2. Min transaction latency (time to commit txns)
//  3. Min latency to first row (time to get first row of txns)
//  4. Min memory usage
//  5. Some weighted combination of #1 - #4
//
// The cost model in this file targets #1 as the optimization goal. However,
// note that #2 is implicitly important to that goal, since overall cluster
// throughput will suffer if there are lock contention issues caused by
// high transaction latency.
//
// Costs are relative: a cost of 2 is twice as expensive as a cost of 1, but
// has no unit. Every formula scales its local cost by the number of rebinds
// of the expression.
type Coster interface {
	// ComputeCost returns the estimated cost of executing the expression
	// described by ci, including the costs of its children. Invalid input or
	// configuration panics with an assertion error.
	ComputeCost(op opt.Operator, ci *CostingInfo) memo.Cost
}

// coster encapsulates the default cost model for the optimizer.
type coster struct {
	params  *CostParams
	catalog cat.Catalog
}

var _ Coster = &coster{}

// MakeDefaultCoster creates an instance of the default coster. The catalog
// is used to look up the storage of scanned relations and their indexes.
func MakeDefaultCoster(params *CostParams, catalog cat.Catalog) Coster {
	return &coster{params: params, catalog: catalog}
}

// appendOnlyFilterPenalty is the factor applied to the index filter unit of
// append-only relations, which reach tuples through a block directory.
const appendOnlyFilterPenalty = 100

// visibilityEpsilon makes an index-only scan slightly more expensive than an
// index scan that reads the same columns.
const visibilityEpsilon = 1e-6

// bitmapSizeFactor converts bytes to the unit of the bitmap IO constants.
const bitmapSizeFactor = 0.001

// ComputeCost is part of the Coster interface.
func (c *coster) ComputeCost(op opt.Operator, ci *CostingInfo) memo.Cost {
	if ci == nil {
		panic(errors.AssertionFailedf("no costing info for %s", redact.Safe(op)))
	}
	if op != ci.Op {
		panic(errors.AssertionFailedf("costing %s with info of %s", redact.Safe(op), redact.Safe(ci.Op)))
	}
	if n := op.Arity(); (n == opt.VariadicArity && ci.ChildCount() == 0) ||
		(n != opt.VariadicArity && ci.ChildCount() != n) {
		panic(errors.AssertionFailedf(
			"%s costed with %d children", redact.Safe(op), redact.Safe(ci.ChildCount())))
	}

	var cost memo.Cost
	switch op {
	case opt.TableScanOp, opt.DynamicTableScanOp, opt.ExternalScanOp:
		cost = c.computeTableScanCost(ci)

	case opt.IndexScanOp, opt.DynamicIndexScanOp:
		cost = c.computeIndexScanCost(ci, false /* indexOnly */)

	case opt.IndexOnlyScanOp:
		cost = c.computeIndexScanCost(ci, true /* indexOnly */)

	case opt.BitmapTableScanOp:
		cost = c.computeBitmapScanCost(ci)

	case opt.FilterOp:
		cost = c.computeFilterCost(ci)

	case opt.ComputeScalarOp, opt.LimitOp, opt.PartitionSelectorOp, opt.SpoolOp,
		opt.AssertOp, opt.ConstTableGetOp, opt.TVFOp, opt.SequenceOp:
		cost = c.computeUnaryCost(ci)

	case opt.SortOp:
		cost = c.computeSortCost(ci)

	case opt.HashAggOp:
		cost = c.computeHashAggCost(ci)

	case opt.StreamAggOp, opt.ScalarAggOp:
		cost = c.computeStreamAggCost(ci)

	case opt.InnerHashJoinOp, opt.LeftOuterHashJoinOp, opt.LeftSemiHashJoinOp,
		opt.LeftAntiSemiHashJoinOp, opt.RightOuterHashJoinOp:
		cost = c.computeHashJoinCost(ci)

	case opt.MergeJoinOp:
		cost = c.computeMergeJoinCost(ci)

	case opt.InnerNLJoinOp, opt.LeftOuterNLJoinOp, opt.LeftSemiNLJoinOp,
		opt.LeftAntiSemiNLJoinOp, opt.CorrelatedInnerNLJoinOp:
		cost = c.computeNLJoinCost(ci)

	case opt.InnerIndexNLJoinOp, opt.LeftOuterIndexNLJoinOp:
		cost = c.computeIndexNLJoinCost(ci)

	case opt.SequenceProjectOp:
		cost = c.computeWindowCost(ci)

	case opt.CTEProducerOp:
		cost = c.computeCTEProducerCost(ci)

	case opt.CTEConsumerOp:
		cost = c.computeCTEConsumerCost(ci)

	case opt.UnionAllOp:
		cost = c.computeUnionAllCost(ci)

	case opt.ParallelUnionAllOp:
		cost = c.computeParallelUnionAllCost(ci)

	case opt.GatherMotionOp:
		cost = c.computeMotionCost(ci, UnitGatherSend, UnitGatherRecv, 1)

	case opt.RedistributeMotionOp:
		cost = c.computeMotionCost(ci, UnitRedistributeSend, UnitRedistributeRecv, 1)

	case opt.BroadcastMotionOp:
		cost = c.computeMotionCost(ci, UnitBroadcastSend, UnitBroadcastRecv, c.params.Segments)

	default:
		panic(errors.AssertionFailedf("can't cost op: %s", redact.Safe(op)))
	}

	if cost < 0 || math.IsNaN(float64(cost)) {
		panic(errors.AssertionFailedf("%s has invalid cost %v", redact.Safe(op), redact.Safe(float64(cost))))
	}
	return cost
}

func (c *coster) unit(u CostUnit) float64 {
	return c.params.unit(u)
}

// computeChildrenCost sums the costs of the children. A scan does not bill
// the output of its rows, so the parent that consumes them does. A Filter
// bills the rows that pass it rather than the rows of the scan.
func (c *coster) computeChildrenCost(ci *CostingInfo) memo.Cost {
	var cost memo.Cost
	for i := range ci.Children {
		cost.Add(c.childCost(ci, i))
	}
	return cost
}

// childCost returns the cost of the ith child, including the scan output
// surcharge.
func (c *coster) childCost(ci *CostingInfo, i int) memo.Cost {
	child := ci.Child(i)
	cost := child.Cost
	if !opt.IsScanOp(child.Op) {
		return cost
	}
	rebinds, rows, width := child.Rebinds, child.Rows, child.Width
	if ci.Op == opt.FilterOp {
		rebinds, rows, width = ci.Rebinds, ci.Rows, ci.Width
	}
	cost.Add(memo.Cost(rebinds * rows * width * c.unit(UnitOutputTup)))
	return cost
}

// computeUnaryCost is the formula shared by operators that process each row
// of their input once.
func (c *coster) computeUnaryCost(ci *CostingInfo) memo.Cost {
	local := ci.Rebinds * ci.Rows * ci.Width * c.unit(UnitTupDefaultProc)
	if p, ok := ci.Private.(*memo.ComputeScalarPrivate); ok && p.HasScalarFunc {
		local += ci.Rebinds * ci.Rows * c.unit(UnitScalarFunc)
	}
	cost := memo.Cost(local)
	cost.Add(c.computeChildrenCost(ci))
	return cost
}

func (c *coster) computeTableScanCost(ci *CostingInfo) memo.Cost {
	return memo.Cost(ci.Rebinds * (c.unit(UnitInitScanFactor) + ci.Rows*ci.Width*c.unit(UnitTableScan)))
}

func (c *coster) computeFilterCost(ci *CostingInfo) memo.Cost {
	p := ci.Private.(*memo.FilterPrivate)
	input := ci.Child(0)
	cost := memo.Cost(ci.Rebinds * input.Rows * float64(p.Cols.Len()) * c.unit(UnitFilterCol))
	cost.Add(c.computeChildrenCost(ci))
	return cost
}

func (c *coster) computeSortCost(ci *CostingInfo) memo.Cost {
	rows := math.Max(ci.Rows, 2)
	cost := memo.Cost(ci.Rebinds * rows * math.Log2(rows) * ci.Width * c.unit(UnitSortTupWidth))
	cost.Add(c.computeChildrenCost(ci))
	return cost
}

func (c *coster) computeWindowCost(ci *CostingInfo) memo.Cost {
	p := ci.Private.(*memo.WindowPrivate)
	input := ci.Child(0)
	cost := memo.Cost(ci.Rebinds * float64(p.NumSortCols()) * input.Rows * input.Width *
		c.unit(UnitTupDefaultProc))
	cost.Add(c.computeChildrenCost(ci))
	return cost
}

// computeCTEProducerCost adds the cost of the materialization that is
// planned below the producer when its input is a Spool or a Sort.
func (c *coster) computeCTEProducerCost(ci *CostingInfo) memo.Cost {
	cost := c.computeUnaryCost(ci)
	if op := ci.Child(0).Op; op == opt.SpoolOp || op == opt.SortOp {
		cost.Add(memo.Cost(ci.Rebinds * ci.Rows * ci.Width * c.unit(UnitMaterialize)))
	}
	return cost
}

// computeCTEConsumerCost costs a consumer as a scan of the materialized
// rows.
func (c *coster) computeCTEConsumerCost(ci *CostingInfo) memo.Cost {
	perByte := c.unit(UnitTableScan) + c.unit(UnitOutputTup)
	return memo.Cost(ci.Rebinds * (c.unit(UnitInitScanFactor) + ci.Rows*ci.Width*perByte))
}

func (c *coster) computeUnionAllCost(ci *CostingInfo) memo.Cost {
	var inputBytes float64
	for i := range ci.Children {
		inputBytes += ci.Children[i].Rows * ci.Children[i].Width
	}
	cost := memo.Cost(ci.Rebinds * inputBytes * c.unit(UnitTupDefaultProc))
	cost.Add(c.computeChildrenCost(ci))
	return cost
}

// computeParallelUnionAllCost bills only the most expensive child, since
// the children run concurrently.
func (c *coster) computeParallelUnionAllCost(ci *CostingInfo) memo.Cost {
	var inputBytes float64
	var maxChild memo.Cost
	for i := range ci.Children {
		inputBytes += ci.Children[i].Rows * ci.Children[i].Width
		maxChild = maxChild.Max(c.childCost(ci, i))
	}
	cost := memo.Cost(ci.Rebinds * inputBytes * c.unit(UnitTupDefaultProc))
	cost.Add(maxChild)
	return cost
}

func (c *coster) computeMotionCost(
	ci *CostingInfo, send, recv CostUnit, fanout float64,
) memo.Cost {
	perByte := c.unit(send) + c.unit(recv)
	cost := memo.Cost(ci.Rebinds * ci.Rows * ci.Width * perByte * fanout)
	cost.Add(c.computeChildrenCost(ci))
	return cost
}

// computeHashAggCost bills hashing the input on the grouping columns and
// returning the groups. Aggregate functions are not billed, since every
// aggregation strategy evaluates them the same way.
func (c *coster) computeHashAggCost(ci *CostingInfo) memo.Cost {
	p := ci.Private.(*memo.AggregatePrivate)
	input := ci.Child(0)
	groupingCols := float64(p.GroupingCols.Len())
	local := input.Rows*groupingCols*c.unit(UnitHashAggInputTupColumn) +
		input.Rows*groupingCols*input.Width*c.unit(UnitHashAggInputTupWidth) +
		ci.Rows*ci.Width*c.unit(UnitHashAggOutputTupWidth)
	cost := memo.Cost(ci.Rebinds * local)
	cost.Add(c.computeChildrenCost(ci))
	return cost
}

// computeStreamAggCost relies on sorted input, so grouping columns are not
// hashed.
func (c *coster) computeStreamAggCost(ci *CostingInfo) memo.Cost {
	input := ci.Child(0)
	local := input.Rows*input.Width*c.unit(UnitTupDefaultProc) +
		ci.Rows*ci.Width*c.unit(UnitHashAggOutputTupWidth)
	cost := memo.Cost(ci.Rebinds * local)
	cost.Add(c.computeChildrenCost(ci))
	return cost
}
