// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package optplan

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optcost/pkg/sql/opt"
	"github.com/cockroachdb/optcost/pkg/sql/opt/memo"
	"github.com/cockroachdb/optcost/pkg/sql/opt/props"
	"github.com/cockroachdb/optcost/pkg/sql/opt/props/physical"
	"github.com/cockroachdb/optcost/pkg/sql/opt/xform"
	"github.com/cockroachdb/optcost/pkg/util/log"
)

// Entry is one cost context of a built plan.
type Entry struct {
	Context *xform.CostContext
	// Depth is the distance from the root.
	Depth int
	// height is the distance from the deepest leaf below.
	height int
}

// Result is a built plan: the memo with one group per node, and the cost
// context of every node.
type Result struct {
	Catalog   *Catalog
	Memo      *memo.Memo
	Optimizer *xform.Optimizer
	Root      *xform.CostContext

	// Entries lists the contexts of the plan in pre-order, children by child
	// index.
	Entries []Entry
}

// Build builds the plan with the given cost parameters. Required properties
// flow top-down from the root, and children are visited in execution order,
// so the CTE requirement of a child reflects the children executed before
// it.
func Build(ctx context.Context, p *Plan, params *xform.CostParams) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, opt.CatchOptimizerError(r)
		}
	}()

	catalog, err := NewCatalogFromSpec(p.Catalog)
	if err != nil {
		return nil, err
	}
	b := builder{mem: memo.New(catalog), exprs: make(map[*Node]*memo.Expr)}
	rootExpr, err := b.buildExpr(p.Root)
	if err != nil {
		return nil, err
	}
	ordering, err := parseOrdering(p.Required.Ordering)
	if err != nil {
		return nil, err
	}
	required := &physical.Required{Cols: opt.MakeColSet(p.Required.Cols...), Ordering: ordering}

	res = &Result{
		Catalog:   catalog,
		Memo:      b.mem,
		Optimizer: xform.New(b.mem, params, nil /* metrics */),
	}
	b.res = res
	res.Root, res.Entries = b.buildContext(p.Root, rootExpr, required, 0)
	log.VEventf(ctx, 1, "built plan with %d groups", b.mem.NumGroups())
	return res, nil
}

type builder struct {
	mem   *memo.Memo
	exprs map[*Node]*memo.Expr
	res   *Result
}

func (b *builder) buildExpr(n *Node) (*memo.Expr, error) {
	op, err := opt.ParseOperator(n.Op)
	if err != nil {
		return nil, err
	}
	if arity := op.Arity(); (arity == opt.VariadicArity && len(n.Children) == 0) ||
		(arity != opt.VariadicArity && len(n.Children) != arity) {
		return nil, errors.Newf("%s has %d children", op, len(n.Children))
	}
	children := make([]*memo.Group, len(n.Children))
	var partitions props.PartitionInfo
	joinDepth := 0
	if opt.IsJoinOp(op) {
		joinDepth = 1
	}
	for i, c := range n.Children {
		e, err := b.buildExpr(c)
		if err != nil {
			return nil, err
		}
		children[i] = e.Group()
		partitions = partitions.Union(e.Relational().Partitions)
		joinDepth += e.Relational().JoinDepth
	}
	if n.JoinDepth > 0 {
		joinDepth = n.JoinDepth
	}

	private, err := n.Private.buildPrivate(op)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", op)
	}
	own := make([]props.PartitionConsumer, 0, len(n.Partitions)+1)
	for _, s := range n.Partitions {
		own = append(own, props.PartitionConsumer{ScanID: s.ScanID, RootRel: s.Rel, PartKey: s.PartKey})
	}
	switch t := private.(type) {
	case *memo.DynamicScanPrivate:
		own = append(own, props.PartitionConsumer{ScanID: t.ScanID, RootRel: t.Table, PartKey: t.PartKey})
	case *memo.IndexScanPrivate:
		if opt.IsDynamicScanOp(op) {
			own = append(own, props.PartitionConsumer{ScanID: t.ScanID, RootRel: t.Table, PartKey: t.PartKey})
		}
	}
	partitions = props.MakePartitionInfo(own...).Union(partitions)

	width := n.Width
	if width == 0 {
		width = float64(len(n.Cols) * props.DefaultColumnWidth)
	}
	grp := b.mem.NewGroup(&props.Relational{
		OutputCols: opt.MakeColSet(n.Cols...),
		Partitions: partitions,
		JoinDepth:  joinDepth,
		Stats: &props.BasicStatistics{
			Rows:       n.Rows,
			RowWidth:   width,
			NumRebinds: n.Rebinds,
			Distinct:   n.Distinct,
			Risk:       n.Risk,
		},
	})
	e := b.mem.AddExpr(grp, op, private, children...)
	if len(n.RequestCounts) > 0 {
		if len(n.RequestCounts) != 4 {
			return nil, errors.Newf("%s: request_counts needs 4 values, got %d", op, len(n.RequestCounts))
		}
		c := n.RequestCounts
		e.SetRequestCounts(c[0], c[1], c[2], c[3])
	}
	if n.Request < 0 || n.Request >= e.Requests().NumRequests() {
		return nil, errors.Newf("%s: request %d out of range [0, %d)", op, n.Request, e.Requests().NumRequests())
	}
	b.exprs[n] = e
	return e, nil
}

// buildContext builds the context of the node and of its descendants, and
// returns it with the entries of its subtree in pre-order. Children are
// built in execution order but listed by child index.
func (b *builder) buildContext(
	n *Node, e *memo.Expr, required *physical.Required, depth int,
) (*xform.CostContext, []Entry) {
	children := make([]*xform.CostContext, e.ChildCount())
	subtrees := make([][]Entry, e.ChildCount())
	var prior []*physical.Derived
	height := 0
	for _, i := range e.ExecOrder() {
		childReq := b.res.Optimizer.BuildChildRequired(e, required, n.Request, i, prior)
		child, entries := b.buildContext(n.Children[i], b.exprs[n.Children[i]], childReq, depth+1)
		children[i], subtrees[i] = child, entries
		prior = append(prior, child.Derived())
		if h := entries[0].height + 1; h > height {
			height = h
		}
	}
	cc := xform.NewCostContext(e, required, n.Request, children)
	entries := []Entry{{Context: cc, Depth: depth, height: height}}
	for _, sub := range subtrees {
		entries = append(entries, sub...)
	}
	return cc, entries
}

// Cost costs every context of the plan bottom-up. Contexts of the same
// height are independent and are costed concurrently. Every costed context
// is then ratcheted as the best alternative of its group.
func (r *Result) Cost(ctx context.Context) error {
	var levels [][]*xform.CostContext
	for _, e := range r.Entries {
		for len(levels) <= e.height {
			levels = append(levels, nil)
		}
		levels[e.height] = append(levels[e.height], e.Context)
	}
	for _, level := range levels {
		if err := r.Optimizer.ComputeCosts(ctx, level); err != nil {
			return err
		}
	}
	for _, e := range r.Entries {
		if _, err := r.Optimizer.RatchetCost(ctx, e.Context); err != nil {
			return err
		}
	}
	return nil
}
