// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package memo holds the search space of physical plan alternatives that
// the cost model and the physical property contracts operate on.
//
// A memo is a forest of groups. Every group holds logically equivalent
// physical expressions that share one set of logical properties. The
// children of an expression are groups, not expressions: which member of a
// child group is used is decided per required property set by the search,
// outside this package.
package memo

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optcost/pkg/sql/opt"
	"github.com/cockroachdb/optcost/pkg/sql/opt/cat"
	"github.com/cockroachdb/optcost/pkg/sql/opt/props"
)

// GroupID identifies a group within its memo. Group ids start at 1.
type GroupID int32

// ExprID identifies an expression within its memo. Expression ids start at
// 1 and are unique across groups.
type ExprID int32

// Memo stores the groups and expressions of a search space.
type Memo struct {
	catalog cat.Catalog
	groups  []*Group
	numExpr ExprID
	cteInfo CTEInfo
}

// New returns an empty memo that looks up tables and indexes in the given
// catalog.
func New(catalog cat.Catalog) *Memo {
	m := &Memo{catalog: catalog}
	m.cteInfo.init()
	return m
}

// Catalog returns the catalog of the memo.
func (m *Memo) Catalog() cat.Catalog {
	return m.catalog
}

// CTEInfo returns the CTE producer and consumer registry of the memo.
func (m *Memo) CTEInfo() *CTEInfo {
	return &m.cteInfo
}

// NumGroups returns the number of groups in the memo.
func (m *Memo) NumGroups() int {
	return len(m.groups)
}

// Group returns the group with the given id.
func (m *Memo) Group(id GroupID) *Group {
	return m.groups[id-1]
}

// NewGroup adds an empty group with the given logical properties.
func (m *Memo) NewGroup(rel *props.Relational) *Group {
	if rel == nil || rel.Stats == nil {
		panic(errors.AssertionFailedf("group requires logical properties with statistics"))
	}
	g := &Group{id: GroupID(len(m.groups) + 1), rel: rel}
	m.groups = append(m.groups, g)
	return g
}

// AddExpr adds a physical expression to the group. The number of children
// must match the arity of the operator and the private must have the type
// the operator expects.
func (m *Memo) AddExpr(
	grp *Group, op opt.Operator, private interface{}, children ...*Group,
) *Expr {
	if op == opt.UnknownOp || op >= opt.NumOperators {
		panic(errors.AssertionFailedf("invalid operator %d", op))
	}
	switch arity := op.Arity(); arity {
	case opt.VariadicArity:
		if len(children) == 0 {
			panic(errors.AssertionFailedf("%s requires at least one child", op))
		}
	default:
		if len(children) != arity {
			panic(errors.AssertionFailedf("%s expects %d children, got %d", op, arity, len(children)))
		}
	}
	checkPrivate(op, private)

	m.numExpr++
	e := &Expr{
		op:       op,
		private:  private,
		children: children,
		group:    grp,
		id:       m.numExpr,
	}
	e.requests.Init()
	setDefaultRequestCounts(e)

	switch op {
	case opt.CTEProducerOp:
		m.cteInfo.addProducer(private.(*CTEProducerPrivate).ID, e)
	case opt.CTEConsumerOp:
		m.cteInfo.addConsumer(private.(*CTEConsumerPrivate).ID)
	}
	grp.exprs = append(grp.exprs, e)
	return e
}

// setDefaultRequestCounts sets the per-dimension request counts each
// operator uses unless overridden.
func setDefaultRequestCounts(e *Expr) {
	switch e.op {
	case opt.FilterOp, opt.ComputeScalarOp, opt.CorrelatedInnerNLJoinOp, opt.UnionAllOp:
		e.requests.SetCount(DistributionRequests, 2)
	case opt.ParallelUnionAllOp:
		e.requests.SetCount(DistributionRequests, 3)
	}
	if opt.IsHashJoinOp(e.op) {
		// Request 0 attempts dynamic partition elimination, request 1 does
		// not.
		e.requests.SetCount(PartitionPropagationRequests, 2)
	}
}

// Group is a set of logically equivalent expressions.
type Group struct {
	id    GroupID
	rel   *props.Relational
	exprs []*Expr
}

// ID returns the id of the group.
func (g *Group) ID() GroupID { return g.id }

// Relational returns the logical properties shared by all group members.
func (g *Group) Relational() *props.Relational { return g.rel }

// Exprs returns the members of the group in insertion order.
func (g *Group) Exprs() []*Expr { return g.exprs }

// FirstExpr returns the first expression added to the group, or nil if the
// group is empty.
func (g *Group) FirstExpr() *Expr {
	if len(g.exprs) == 0 {
		return nil
	}
	return g.exprs[0]
}

func (g *Group) String() string {
	return fmt.Sprintf("G%d", g.id)
}
