// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package cteprops implements the CTE contract of every physical operator:
// which CTE producers and consumers are required of each child, which
// unresolved producers and consumers an operator derives from its children
// and whether the requirement is met.
//
// CTE requirements cannot be enforced. A plan that does not resolve its CTE
// requirement is rejected, never repaired.
package cteprops

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optcost/pkg/sql/opt"
	"github.com/cockroachdb/optcost/pkg/sql/opt/memo"
	"github.com/cockroachdb/optcost/pkg/sql/opt/props/physical"
	"github.com/cockroachdb/redact"
)

// BuildChildRequired returns the CTE requirement of the given child. prior
// holds the derived properties of the children that execute before it, in
// execution order; the requirement of the last child to execute depends on
// what the earlier children already produced or consumed.
func BuildChildRequired(
	parent *memo.Expr,
	required *physical.CTERequirement,
	childIdx int,
	prior []*physical.Derived,
) *physical.CTERequirement {
	if childIdx < 0 || childIdx >= parent.ChildCount() {
		panic(errors.AssertionFailedf("%s has no child %d", redact.Safe(parent.Op()), childIdx))
	}
	return funcMap[parent.Op()].buildChildReqCTEs(parent, required, childIdx, prior)
}

// BuildDerived returns the unresolved CTE producers and consumers of the
// expression, given the derived properties of its children.
func BuildDerived(expr *memo.Expr, children []*physical.Derived) *physical.CTEMap {
	if len(children) != expr.ChildCount() {
		panic(errors.AssertionFailedf(
			"%s has %d children, got %d derived", redact.Safe(expr.Op()), expr.ChildCount(), len(children)))
	}
	return funcMap[expr.Op()].buildDerivedCTEs(expr, children)
}

// Enforcement returns EnforcementUnnecessary if the derived map satisfies
// the requirement and EnforcementProhibited otherwise.
func Enforcement(
	expr *memo.Expr, required *physical.CTERequirement, derived *physical.CTEMap,
) physical.EnforcementType {
	if required.SatisfiedBy(derived) {
		return physical.EnforcementUnnecessary
	}
	return physical.EnforcementProhibited
}

type funcs struct {
	buildChildReqCTEs func(
		parent *memo.Expr, required *physical.CTERequirement, childIdx int, prior []*physical.Derived,
	) *physical.CTERequirement

	buildDerivedCTEs func(expr *memo.Expr, children []*physical.Derived) *physical.CTEMap
}

var funcMap [opt.NumOperators]funcs

func init() {
	for op := opt.Operator(1); op < opt.NumOperators; op++ {
		funcMap[op] = funcs{
			buildChildReqCTEs: naryBuildChildReqCTEs,
			buildDerivedCTEs:  combineChildrenDerivedCTEs,
		}
	}
	funcMap[opt.SequenceOp] = funcs{
		buildChildReqCTEs: sequenceBuildChildReqCTEs,
		buildDerivedCTEs:  combineChildrenDerivedCTEs,
	}
	funcMap[opt.CTEProducerOp] = funcs{
		buildChildReqCTEs: producerBuildChildReqCTEs,
		buildDerivedCTEs:  producerBuildDerivedCTEs,
	}
	funcMap[opt.CTEConsumerOp] = funcs{
		buildChildReqCTEs: nil, // no children
		buildDerivedCTEs:  consumerBuildDerivedCTEs,
	}
}

// combinePrior combines the CTE maps of the given derived properties.
func combinePrior(prior []*physical.Derived) *physical.CTEMap {
	res := physical.NewCTEMap()
	for _, d := range prior {
		res = physical.CombineCTEMaps(res, d.CTEs)
	}
	return res
}

func isLastExecuted(parent *memo.Expr, childIdx int) bool {
	order := parent.ExecOrder()
	return order[len(order)-1] == childIdx
}

// naryBuildChildReqCTEs makes every entry optional for children that
// execute before the last one. The last child must provide whatever the
// earlier children did not resolve.
func naryBuildChildReqCTEs(
	parent *memo.Expr, required *physical.CTERequirement, childIdx int, prior []*physical.Derived,
) *physical.CTERequirement {
	if !isLastExecuted(parent, childIdx) {
		return required.AllOptional()
	}
	return required.Unresolved(combinePrior(prior))
}

// sequenceBuildChildReqCTEs is like naryBuildChildReqCTEs, except that
// producers found in the earlier children require their consumers in the
// last child.
func sequenceBuildChildReqCTEs(
	parent *memo.Expr, required *physical.CTERequirement, childIdx int, prior []*physical.Derived,
) *physical.CTERequirement {
	if !isLastExecuted(parent, childIdx) {
		return required.AllOptional()
	}
	m := combinePrior(prior)
	return required.UnresolvedSequence(m, m)
}

// producerBuildChildReqCTEs removes the producer's own CTE from the
// requirement: the subtree that computes a CTE cannot reference it.
func producerBuildChildReqCTEs(
	parent *memo.Expr, required *physical.CTERequirement, childIdx int, prior []*physical.Derived,
) *physical.CTERequirement {
	return required.Without(parent.Private().(*memo.CTEProducerPrivate).ID)
}

func combineChildrenDerivedCTEs(expr *memo.Expr, children []*physical.Derived) *physical.CTEMap {
	return combinePrior(children)
}

// producerBuildDerivedCTEs adds the producer entry, which carries the
// properties of the producer's child so that consumers can copy them.
func producerBuildDerivedCTEs(expr *memo.Expr, children []*physical.Derived) *physical.CTEMap {
	own := physical.NewCTEMap()
	own.Insert(expr.Private().(*memo.CTEProducerPrivate).ID, physical.CTEProducer, children[0])
	return physical.CombineCTEMaps(own, children[0].CTEs)
}

func consumerBuildDerivedCTEs(expr *memo.Expr, children []*physical.Derived) *physical.CTEMap {
	res := physical.NewCTEMap()
	res.Insert(expr.Private().(*memo.CTEConsumerPrivate).ID, physical.CTEConsumer, nil)
	return res
}
