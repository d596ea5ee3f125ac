// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package ordering

import (
	"github.com/cockroachdb/optcost/pkg/sql/opt/memo"
	"github.com/cockroachdb/optcost/pkg/sql/opt/props/physical"
)

// computeScalarBuildChildReqOrdering passes the ordering through only if it
// refers to input columns. An ordering on a computed column has to be
// enforced above the ComputeScalar.
func computeScalarBuildChildReqOrdering(
	parent *memo.Expr, required physical.OrderSpec, childIdx int,
) physical.OrderSpec {
	cols := required.ColSet()
	if cols.Intersects(parent.DefinedCols()) ||
		!cols.SubsetOf(parent.Child(childIdx).Relational().OutputCols) {
		return nil
	}
	return required
}

func limitBuildChildReqOrdering(
	parent *memo.Expr, required physical.OrderSpec, childIdx int,
) physical.OrderSpec {
	return parent.Private().(*memo.LimitPrivate).Ordering
}

func sortBuildDerivedOrdering(
	expr *memo.Expr, children []*physical.Derived, ctx physical.ProducerProps,
) physical.OrderSpec {
	return expr.Private().(*memo.SortPrivate).Ordering
}

func streamAggBuildChildReqOrdering(
	parent *memo.Expr, required physical.OrderSpec, childIdx int,
) physical.OrderSpec {
	return physical.Asc(parent.Private().(*memo.AggregatePrivate).GroupingCols.Ordered()...)
}

// windowBuildChildReqOrdering sorts on the partition columns followed by
// the order of the first window specification.
func windowBuildChildReqOrdering(
	parent *memo.Expr, required physical.OrderSpec, childIdx int,
) physical.OrderSpec {
	p := parent.Private().(*memo.WindowPrivate)
	res := physical.Asc(p.PartitionCols.Ordered()...)
	if len(p.OrderSpecs) > 0 {
		res = append(res, p.OrderSpecs[0]...)
	}
	if len(res) == 0 {
		return nil
	}
	return res
}

// sequenceBuildChildReqOrdering passes the ordering to the last child, which
// produces the rows of the Sequence.
func sequenceBuildChildReqOrdering(
	parent *memo.Expr, required physical.OrderSpec, childIdx int,
) physical.OrderSpec {
	if childIdx == parent.ChildCount()-1 {
		return required
	}
	return nil
}

func gatherBuildChildReqOrdering(
	parent *memo.Expr, required physical.OrderSpec, childIdx int,
) physical.OrderSpec {
	return parent.Private().(*memo.MotionPrivate).MergeOrdering
}

func gatherBuildDerivedOrdering(
	expr *memo.Expr, children []*physical.Derived, ctx physical.ProducerProps,
) physical.OrderSpec {
	return expr.Private().(*memo.MotionPrivate).MergeOrdering
}

func indexScanBuildDerivedOrdering(
	expr *memo.Expr, children []*physical.Derived, ctx physical.ProducerProps,
) physical.OrderSpec {
	return expr.Private().(*memo.IndexScanPrivate).KeyOrdering
}

// cteConsumerBuildDerivedOrdering copies the ordering of the producer,
// mapped to the consumer's columns. The mapped prefix is kept if a producer
// column is not exposed by the consumer.
func cteConsumerBuildDerivedOrdering(
	expr *memo.Expr, children []*physical.Derived, ctx physical.ProducerProps,
) physical.OrderSpec {
	p := expr.Private().(*memo.CTEConsumerPrivate)
	producer, ok := ctx[p.ID]
	if !ok || producer == nil {
		return nil
	}
	prefix := producer.Ordering
	for i, e := range prefix {
		if _, ok := p.ColMap[e.Col]; !ok {
			prefix = prefix[:i]
			break
		}
	}
	if len(prefix) == 0 {
		return nil
	}
	return prefix.Remap(p.ColMap)
}
