// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package partprop implements the partition propagation contract of every
// physical operator. A dynamic scan reads only the partitions chosen at run
// time by a partition selector with the same scan id. The selector must sit
// above the scan, or on the build side of a hash join whose probe side
// contains the scan.
package partprop

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optcost/pkg/sql/opt"
	"github.com/cockroachdb/optcost/pkg/sql/opt/memo"
	"github.com/cockroachdb/optcost/pkg/sql/opt/props/physical"
	"github.com/cockroachdb/redact"
)

// BuildChildRequired returns the partition propagation spec required of the
// given child. subReq is the partition propagation sub-request of the
// optimization request.
func BuildChildRequired(
	parent *memo.Expr, required *physical.PartitionPropagationSpec, childIdx, subReq int,
) *physical.PartitionPropagationSpec {
	if childIdx < 0 || childIdx >= parent.ChildCount() {
		panic(errors.AssertionFailedf("%s has no child %d", redact.Safe(parent.Op()), childIdx))
	}
	if n := parent.Requests().Count(memo.PartitionPropagationRequests); subReq < 0 || subReq >= n {
		panic(errors.AssertionFailedf(
			"partition propagation request %d out of range for %s with %d requests",
			subReq, redact.Safe(parent.Op()), n))
	}
	return funcMap[parent.Op()].buildChildReqPartProp(parent, required, childIdx, subReq)
}

// BuildDerived returns the partition propagation spec the expression
// derives from its children. Consumers of a CTE find the properties of its
// producer in ctx.
func BuildDerived(
	expr *memo.Expr, children []*physical.Derived, ctx physical.ProducerProps,
) *physical.PartitionPropagationSpec {
	if len(children) != expr.ChildCount() {
		panic(errors.AssertionFailedf(
			"%s has %d children, got %d derived", redact.Safe(expr.Op()), expr.ChildCount(), len(children)))
	}
	return funcMap[expr.Op()].buildDerivedPartProp(expr, children, ctx)
}

// Enforcement returns EnforcementUnnecessary if the derived spec satisfies
// the required one. Missing propagators are provided by placing a partition
// selector above the expression. A missing consumer cannot be provided.
func Enforcement(
	expr *memo.Expr, required, derived *physical.PartitionPropagationSpec,
) physical.EnforcementType {
	missing := derived.Missing(required)
	if len(missing) == 0 {
		return physical.EnforcementUnnecessary
	}
	for _, e := range missing {
		if e.Type == physical.PartConsumer {
			return physical.EnforcementProhibited
		}
	}
	return physical.EnforcementRequired
}

type funcs struct {
	buildChildReqPartProp func(
		parent *memo.Expr, required *physical.PartitionPropagationSpec, childIdx, subReq int,
	) *physical.PartitionPropagationSpec

	buildDerivedPartProp func(
		expr *memo.Expr, children []*physical.Derived, ctx physical.ProducerProps,
	) *physical.PartitionPropagationSpec
}

var funcMap [opt.NumOperators]funcs

func init() {
	for op := opt.Operator(1); op < opt.NumOperators; op++ {
		funcMap[op] = funcs{
			buildChildReqPartProp: defaultBuildChildReqPartProp,
			buildDerivedPartProp:  combineChildrenDerivedPartProp,
		}
		switch {
		case opt.IsDynamicScanOp(op):
			funcMap[op].buildDerivedPartProp = dynamicScanBuildDerivedPartProp
		case opt.IsHashJoinOp(op):
			funcMap[op].buildChildReqPartProp = hashJoinBuildChildReqPartProp
		}
	}
	funcMap[opt.PartitionSelectorOp] = funcs{
		buildChildReqPartProp: selectorBuildChildReqPartProp,
		buildDerivedPartProp:  selectorBuildDerivedPartProp,
	}
	funcMap[opt.CTEConsumerOp] = funcs{
		buildChildReqPartProp: nil, // no children
		buildDerivedPartProp:  consumerBuildDerivedPartProp,
	}
}

// visibleScans returns the scan ids consumed by the given child and by no
// other child of the expression. A scan consumed by several children cannot
// be resolved in any one of them.
func visibleScans(expr *memo.Expr, childIdx int) opt.ScanIDSet {
	res := expr.Child(childIdx).Relational().Partitions.ScanIDs()
	for i := 0; i < expr.ChildCount(); i++ {
		if i != childIdx {
			res = res.Difference(expr.Child(i).Relational().Partitions.ScanIDs())
		}
	}
	return res
}

// defaultBuildChildReqPartProp pushes the required consumers down to the
// child that contains their scan. Propagators are never pushed down.
func defaultBuildChildReqPartProp(
	parent *memo.Expr, required *physical.PartitionPropagationSpec, childIdx, subReq int,
) *physical.PartitionPropagationSpec {
	res := physical.NewPartitionPropagationSpec()
	res.InsertAllowedConsumers(required, visibleScans(parent, childIdx))
	return res
}

func combineChildrenDerivedPartProp(
	expr *memo.Expr, children []*physical.Derived, ctx physical.ProducerProps,
) *physical.PartitionPropagationSpec {
	specs := make([]*physical.PartitionPropagationSpec, len(children))
	for i, c := range children {
		specs[i] = c.PartitionPropagation
	}
	return physical.CombinePartitionPropagation(specs...)
}

func dynamicScanBuildDerivedPartProp(
	expr *memo.Expr, children []*physical.Derived, ctx physical.ProducerProps,
) *physical.PartitionPropagationSpec {
	res := physical.NewPartitionPropagationSpec()
	switch p := expr.Private().(type) {
	case *memo.DynamicScanPrivate:
		res.Insert(p.ScanID, physical.PartConsumer, p.Table, opt.SelectorSet{}, nil)
	case *memo.IndexScanPrivate:
		res.Insert(p.ScanID, physical.PartConsumer, p.Table, opt.SelectorSet{}, nil)
	default:
		panic(errors.AssertionFailedf("unexpected private %T for %s", p, redact.Safe(expr.Op())))
	}
	return res
}

// selectorBuildChildReqPartProp requires the selector's own dynamic scan
// from its child, resolved by this selector.
func selectorBuildChildReqPartProp(
	parent *memo.Expr, required *physical.PartitionPropagationSpec, childIdx, subReq int,
) *physical.PartitionPropagationSpec {
	p := parent.Private().(*memo.PartitionSelectorPrivate)
	visible := visibleScans(parent, childIdx)
	visible.Remove(p.ScanID)
	res := physical.NewPartitionPropagationSpec()
	res.InsertAllowedConsumers(required, visible)
	res.Insert(p.ScanID, physical.PartConsumer, p.RootRel, opt.MakeIDSet(p.SelectorID), nil)
	return res
}

// selectorBuildDerivedPartProp replaces the child's entry for the
// selector's scan with a propagator.
func selectorBuildDerivedPartProp(
	expr *memo.Expr, children []*physical.Derived, ctx physical.ProducerProps,
) *physical.PartitionPropagationSpec {
	p := expr.Private().(*memo.PartitionSelectorPrivate)
	res := physical.NewPartitionPropagationSpec()
	res.InsertAllExcept(children[0].PartitionPropagation, p.ScanID)
	res.Insert(p.ScanID, physical.PartPropagator, p.RootRel, opt.SelectorSet{}, p.Filter)
	return res
}

// consumerBuildDerivedPartProp copies the spec of the CTE producer.
func consumerBuildDerivedPartProp(
	expr *memo.Expr, children []*physical.Derived, ctx physical.ProducerProps,
) *physical.PartitionPropagationSpec {
	producer, ok := ctx[expr.Private().(*memo.CTEConsumerPrivate).ID]
	if !ok || producer == nil {
		return physical.NewPartitionPropagationSpec()
	}
	return physical.CombinePartitionPropagation(producer.PartitionPropagation)
}
