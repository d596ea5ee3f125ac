// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package ordering implements the sort order contract of every physical
// operator: the order required of each child, the order the operator
// derives from its children and whether a Sort enforcer is needed.
package ordering

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optcost/pkg/sql/opt"
	"github.com/cockroachdb/optcost/pkg/sql/opt/memo"
	"github.com/cockroachdb/optcost/pkg/sql/opt/props/physical"
	"github.com/cockroachdb/redact"
)

// BuildChildRequired returns the ordering that must be required of the
// given child in order to satisfy a required ordering. subReq is the order
// sub-request of the optimization request.
func BuildChildRequired(
	parent *memo.Expr, required physical.OrderSpec, childIdx, subReq int,
) physical.OrderSpec {
	if childIdx < 0 || childIdx >= parent.ChildCount() {
		panic(errors.AssertionFailedf("%s has no child %d", redact.Safe(parent.Op()), childIdx))
	}
	if n := parent.Requests().Count(memo.OrderRequests); subReq < 0 || subReq >= n {
		panic(errors.AssertionFailedf(
			"order request %d out of range for %s with %d requests", subReq, redact.Safe(parent.Op()), n))
	}
	return funcMap[parent.Op()].buildChildReqOrdering(parent, required, childIdx)
}

// BuildDerived returns the ordering the expression provides, given the
// derived properties of its children. Consumers of a CTE find the
// properties of its producer in ctx.
func BuildDerived(
	expr *memo.Expr, children []*physical.Derived, ctx physical.ProducerProps,
) physical.OrderSpec {
	if len(children) != expr.ChildCount() {
		panic(errors.AssertionFailedf(
			"%s has %d children, got %d derived", redact.Safe(expr.Op()), expr.ChildCount(), len(children)))
	}
	return funcMap[expr.Op()].buildDerivedOrdering(expr, children, ctx)
}

// Enforcement decides whether a Sort must be placed above the expression
// to provide the required ordering.
func Enforcement(
	expr *memo.Expr, required, derived physical.OrderSpec,
) physical.EnforcementType {
	return funcMap[expr.Op()].enforcement(expr, required, derived)
}

type funcs struct {
	buildChildReqOrdering func(
		parent *memo.Expr, required physical.OrderSpec, childIdx int,
	) physical.OrderSpec

	buildDerivedOrdering func(
		expr *memo.Expr, children []*physical.Derived, ctx physical.ProducerProps,
	) physical.OrderSpec

	enforcement func(
		expr *memo.Expr, required, derived physical.OrderSpec,
	) physical.EnforcementType
}

var funcMap [opt.NumOperators]funcs

func init() {
	for op := opt.Operator(1); op < opt.NumOperators; op++ {
		funcMap[op] = funcs{
			buildChildReqOrdering: noChildReqOrdering,
			buildDerivedOrdering:  noDerivedOrdering,
			enforcement:           defaultEnforcement,
		}
	}
	for _, op := range []opt.Operator{
		opt.FilterOp, opt.PartitionSelectorOp, opt.AssertOp, opt.CTEProducerOp,
	} {
		funcMap[op] = funcs{
			buildChildReqOrdering: passThroughChildReqOrdering,
			buildDerivedOrdering:  firstChildDerivedOrdering,
			enforcement:           defaultEnforcement,
		}
	}
	funcMap[opt.SpoolOp] = funcs{
		buildChildReqOrdering: passThroughChildReqOrdering,
		buildDerivedOrdering:  firstChildDerivedOrdering,
		enforcement:           spoolEnforcement,
	}
	funcMap[opt.ComputeScalarOp] = funcs{
		buildChildReqOrdering: computeScalarBuildChildReqOrdering,
		buildDerivedOrdering:  firstChildDerivedOrdering,
		enforcement:           defaultEnforcement,
	}
	funcMap[opt.LimitOp] = funcs{
		buildChildReqOrdering: limitBuildChildReqOrdering,
		buildDerivedOrdering:  firstChildDerivedOrdering,
		enforcement:           defaultEnforcement,
	}
	funcMap[opt.SortOp] = funcs{
		buildChildReqOrdering: noChildReqOrdering,
		buildDerivedOrdering:  sortBuildDerivedOrdering,
		enforcement:           sortEnforcement,
	}
	funcMap[opt.StreamAggOp] = funcs{
		buildChildReqOrdering: streamAggBuildChildReqOrdering,
		buildDerivedOrdering:  firstChildDerivedOrdering,
		enforcement:           defaultEnforcement,
	}
	funcMap[opt.SequenceProjectOp] = funcs{
		buildChildReqOrdering: windowBuildChildReqOrdering,
		buildDerivedOrdering:  firstChildDerivedOrdering,
		enforcement:           defaultEnforcement,
	}
	funcMap[opt.SequenceOp] = funcs{
		buildChildReqOrdering: sequenceBuildChildReqOrdering,
		buildDerivedOrdering:  lastChildDerivedOrdering,
		enforcement:           defaultEnforcement,
	}
	funcMap[opt.GatherMotionOp] = funcs{
		buildChildReqOrdering: gatherBuildChildReqOrdering,
		buildDerivedOrdering:  gatherBuildDerivedOrdering,
		enforcement:           defaultEnforcement,
	}
	funcMap[opt.CTEConsumerOp] = funcs{
		buildChildReqOrdering: noChildReqOrdering,
		buildDerivedOrdering:  cteConsumerBuildDerivedOrdering,
		enforcement:           defaultEnforcement,
	}
	for op := opt.Operator(1); op < opt.NumOperators; op++ {
		switch {
		case opt.IsIndexScanOp(op):
			funcMap[op].buildDerivedOrdering = indexScanBuildDerivedOrdering
		case opt.IsMergeJoinOp(op):
			funcMap[op].buildChildReqOrdering = mergeJoinBuildChildReqOrdering
			funcMap[op].buildDerivedOrdering = firstChildDerivedOrdering
		case opt.IsNLJoinOp(op), opt.IsIndexNLJoinOp(op):
			funcMap[op].buildChildReqOrdering = nlJoinBuildChildReqOrdering
			funcMap[op].buildDerivedOrdering = firstChildDerivedOrdering
		}
	}
}

func noChildReqOrdering(
	parent *memo.Expr, required physical.OrderSpec, childIdx int,
) physical.OrderSpec {
	return nil
}

func passThroughChildReqOrdering(
	parent *memo.Expr, required physical.OrderSpec, childIdx int,
) physical.OrderSpec {
	return required
}

func noDerivedOrdering(
	expr *memo.Expr, children []*physical.Derived, ctx physical.ProducerProps,
) physical.OrderSpec {
	return nil
}

func firstChildDerivedOrdering(
	expr *memo.Expr, children []*physical.Derived, ctx physical.ProducerProps,
) physical.OrderSpec {
	return children[0].Ordering
}

func lastChildDerivedOrdering(
	expr *memo.Expr, children []*physical.Derived, ctx physical.ProducerProps,
) physical.OrderSpec {
	return children[len(children)-1].Ordering
}

// defaultEnforcement requires a Sort unless the derived ordering already
// satisfies the required one.
func defaultEnforcement(
	expr *memo.Expr, required, derived physical.OrderSpec,
) physical.EnforcementType {
	if derived.Satisfies(required) {
		return physical.EnforcementUnnecessary
	}
	return physical.EnforcementRequired
}

// sortEnforcement never stacks a Sort on a Sort with a different order.
func sortEnforcement(
	expr *memo.Expr, required, derived physical.OrderSpec,
) physical.EnforcementType {
	if derived.Satisfies(required) {
		return physical.EnforcementUnnecessary
	}
	return physical.EnforcementProhibited
}

// spoolEnforcement leaves it to the caller whether to sort above or below
// the Spool.
func spoolEnforcement(
	expr *memo.Expr, required, derived physical.OrderSpec,
) physical.EnforcementType {
	if derived.Satisfies(required) {
		return physical.EnforcementUnnecessary
	}
	return physical.EnforcementOptional
}
