// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform

import (
	"context"
	"fmt"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optcost/pkg/sql/opt"
	"github.com/cockroachdb/optcost/pkg/sql/opt/memo"
	"github.com/cockroachdb/optcost/pkg/sql/opt/props"
	"github.com/cockroachdb/optcost/pkg/sql/opt/props/physical"
	"github.com/cockroachdb/optcost/pkg/util/leaktest"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

// opCoster costs each operator with a fixed value plus the costs of the
// children.
func opCoster(costs map[opt.Operator]memo.Cost) Coster {
	return costerFunc(func(op opt.Operator, ci *CostingInfo) memo.Cost {
		cost := costs[op]
		for i := range ci.Children {
			cost.Add(ci.Children[i].Cost)
		}
		return cost
	})
}

func TestRatchetCost(t *testing.T) {
	ctx := context.Background()
	m := memo.New(nil)
	o := New(m, DefaultCostParams(), nil /* metrics */)
	o.SetCoster(opCoster(map[opt.Operator]memo.Cost{
		opt.TVFOp:   1,
		opt.SortOp:  10,
		opt.SpoolOp: 5,
		opt.LimitOp: 20,
	}))

	leaf := newLeaf(m, 100, 1)
	grp := newTestGroup(m, 100, 1)
	newAlt := func(op opt.Operator, private interface{}) *CostContext {
		return NewCostContext(m.AddExpr(grp, op, private, leaf.Expr().Group()), nil, 0, []*CostContext{leaf})
	}
	sort := newAlt(opt.SortOp, &memo.SortPrivate{Ordering: physical.Asc(1)})
	spool := newAlt(opt.SpoolOp, &memo.SpoolPrivate{})
	limit := newAlt(opt.LimitOp, &memo.LimitPrivate{Count: 10})

	require.Nil(t, o.BestContext(grp, nil))

	// Ratcheting an uncosted context is an assertion failure.
	_, err := o.RatchetCost(ctx, sort)
	require.True(t, errors.IsAssertionFailure(err))

	require.NoError(t, o.ComputeCost(ctx, leaf))
	require.NoError(t, o.ComputeCosts(ctx, []*CostContext{sort, spool, limit}))
	require.Equal(t, memo.Cost(11), sort.Cost())
	require.Equal(t, 4.0, testutil.ToFloat64(o.Metrics().Costed))

	isBest, err := o.RatchetCost(ctx, sort)
	require.NoError(t, err)
	require.True(t, isBest)
	require.Same(t, sort, o.BestContext(grp, nil))

	// The cheaper spool replaces the sort, which is pruned.
	isBest, err = o.RatchetCost(ctx, spool)
	require.NoError(t, err)
	require.True(t, isBest)
	require.Same(t, spool, o.BestContext(grp, physical.MinRequired))
	require.Equal(t, CostContextPruned, sort.State())

	// The more expensive limit is pruned itself.
	isBest, err = o.RatchetCost(ctx, limit)
	require.NoError(t, err)
	require.False(t, isBest)
	require.Equal(t, CostContextPruned, limit.State())
	require.Same(t, spool, o.BestContext(grp, nil))
	require.Equal(t, 2.0, testutil.ToFloat64(o.Metrics().Pruned))

	// A pruned context cannot compete again.
	_, err = o.RatchetCost(ctx, sort)
	require.Error(t, err)

	// Contexts for other required properties are kept apart.
	ordered := &physical.Required{Ordering: physical.Asc(1)}
	sorted := NewCostContext(sort.Expr(), ordered, 0, []*CostContext{leaf})
	require.NoError(t, o.ComputeCost(ctx, sorted))
	isBest, err = o.RatchetCost(ctx, sorted)
	require.NoError(t, err)
	require.True(t, isBest)
	require.Same(t, sorted, o.BestContext(grp, &physical.Required{Ordering: physical.Asc(1)}))
	require.Same(t, spool, o.BestContext(grp, nil))

	// A context that does not deliver its required ordering is rejected.
	unsorted := NewCostContext(spool.Expr(), ordered, 0, []*CostContext{leaf})
	require.NoError(t, o.ComputeCost(ctx, unsorted))
	isBest, err = o.RatchetCost(ctx, unsorted)
	require.NoError(t, err)
	require.False(t, isBest)
	require.Equal(t, 1.0, testutil.ToFloat64(o.Metrics().Invalid))
	require.Same(t, sorted, o.BestContext(grp, ordered))
}

// TestRatchetBestAgain checks that ratcheting the best context a second
// time keeps it best and does not prune it.
func TestRatchetBestAgain(t *testing.T) {
	ctx := context.Background()
	m := memo.New(nil)
	o := New(m, DefaultCostParams(), MakeMetrics())
	o.SetCoster(opCoster(map[opt.Operator]memo.Cost{opt.TVFOp: 1, opt.SpoolOp: 5}))

	leaf := newLeaf(m, 100, 1)
	grp := newTestGroup(m, 100, 1)
	spool := NewCostContext(
		m.AddExpr(grp, opt.SpoolOp, &memo.SpoolPrivate{}, leaf.Expr().Group()), nil, 0, []*CostContext{leaf})
	require.NoError(t, o.ComputeCosts(ctx, []*CostContext{leaf}))
	require.NoError(t, o.ComputeCost(ctx, spool))

	for i := 0; i < 2; i++ {
		isBest, err := o.RatchetCost(ctx, spool)
		require.NoError(t, err)
		require.True(t, isBest)
		require.Same(t, spool, o.BestContext(grp, nil))
		require.Equal(t, CostContextCosted, spool.State())
	}
	require.Equal(t, 0.0, testutil.ToFloat64(o.Metrics().Pruned))
}

func TestComputeCostFailureMetric(t *testing.T) {
	ctx := context.Background()
	m := memo.New(nil)
	o := New(m, DefaultCostParams().WithUnit(UnitTupDefaultProc, 0), MakeMetrics())
	leaf := newLeaf(m, 10, 1)
	require.Error(t, o.ComputeCost(ctx, leaf))
	require.Equal(t, 1.0, testutil.ToFloat64(o.Metrics().Failed))
	require.Equal(t, 0.0, testutil.ToFloat64(o.Metrics().Costed))
}

// TestComputeCostsConcurrently costs many independent contexts, and then
// their parents, with the default coster.
func TestComputeCostsConcurrently(t *testing.T) {
	defer leaktest.AfterTest(t)()
	ctx := context.Background()
	m := memo.New(nil)
	o := New(m, DefaultCostParams(), nil /* metrics */)

	const n = 100
	leaves := make([]*CostContext, n)
	parents := make([]*CostContext, n)
	for i := range leaves {
		leaves[i] = newLeaf(m, float64(i+1), opt.ColumnID(i+1))
		sort := m.AddExpr(newTestGroup(m, float64(i+1), opt.ColumnID(i+1)), opt.SortOp,
			&memo.SortPrivate{Ordering: physical.Asc(opt.ColumnID(i + 1))}, leaves[i].Expr().Group())
		parents[i] = NewCostContext(sort, nil, 0, []*CostContext{leaves[i]})
	}
	require.NoError(t, o.ComputeCosts(ctx, leaves))
	require.NoError(t, o.ComputeCosts(ctx, parents))
	for i := range parents {
		require.Equal(t, CostContextCosted, parents[i].State(), "%d", i)
		if i > 0 {
			require.True(t, parents[i-1].Cost().Less(parents[i].Cost()), "%d", i)
		}
	}
	require.Equal(t, float64(2*n), testutil.ToFloat64(o.Metrics().Costed))

	// Parents of uncosted children fail without stopping the others.
	orphans := make([]*CostContext, 3)
	for i := range orphans {
		leaf := newLeaf(m, 1, 1)
		e := m.AddExpr(newTestGroup(m, 1, 1), opt.SpoolOp, &memo.SpoolPrivate{}, leaf.Expr().Group())
		orphans[i] = NewCostContext(e, nil, 0, []*CostContext{leaf})
	}
	err := o.ComputeCosts(ctx, orphans)
	require.Error(t, err)
	require.True(t, errors.IsAssertionFailure(err))

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	require.ErrorIs(t, o.ComputeCosts(canceled, []*CostContext{newLeaf(m, 1, 1)}), context.Canceled)
}

func TestBuildChildRequired(t *testing.T) {
	m := memo.New(nil)
	o := New(m, DefaultCostParams(), nil /* metrics */)

	parts := props.MakePartitionInfo(props.PartitionConsumer{ScanID: 5, RootRel: 1, PartKey: 1})
	outer := m.NewGroup(&props.Relational{
		OutputCols: opt.MakeColSet(1, 2),
		Partitions: parts,
		Stats:      &props.BasicStatistics{Rows: 1000, RowWidth: 16},
	})
	inner := newTestGroup(m, 10, 4, 5)
	joinGrp := m.NewGroup(&props.Relational{
		OutputCols: opt.MakeColSet(1, 2, 4, 5),
		Partitions: parts,
		Stats:      &props.BasicStatistics{Rows: 1000, RowWidth: 32},
	})
	join := m.AddExpr(joinGrp, opt.InnerHashJoinOp, &memo.JoinPrivate{
		OuterKeys: []opt.ColumnID{1}, InnerKeys: []opt.ColumnID{4},
	}, outer, inner)

	required := &physical.Required{Cols: opt.MakeColSet(2, 5)}
	sel := join.ID()

	// Request 0 attempts dynamic partition elimination.
	innerReq := o.BuildChildRequired(join, required, 0, 1, nil)
	require.Equal(t, "(4,5)", innerReq.Cols.String())
	require.Equal(t,
		fmt.Sprintf("{5:propagator(rel=1, sel=(%d), filter=@1 = @4)}", sel),
		innerReq.PartitionPropagation.String())
	outerReq := o.BuildChildRequired(join, required, 0, 0, nil)
	require.Equal(t, "(1,2)", outerReq.Cols.String())
	require.Equal(t, fmt.Sprintf("{5:consumer(rel=1, sel=(%d))}", sel), outerReq.PartitionPropagation.String())

	// Request 1 does not.
	require.Equal(t, "{}", o.BuildChildRequired(join, required, 1, 0, nil).PartitionPropagation.String())
	require.Panics(t, func() { o.BuildChildRequired(join, required, 2, 0, nil) })

	// Without a required set, nothing is required beyond the join keys.
	require.Equal(t, "(4)", o.BuildChildRequired(join, nil, 1, 1, nil).Cols.String())
}

func TestMetricsRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := MakeMetrics()
	require.NoError(t, metrics.Register(reg))
	require.Error(t, MakeMetrics().Register(reg))

	metrics.Costed.Inc()
	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, len(families))
	for i, f := range families {
		names[i] = f.GetName()
	}
	require.ElementsMatch(t, []string{
		"optcost_cost_context_costed_total",
		"optcost_cost_context_failed_total",
		"optcost_cost_context_invalid_total",
		"optcost_cost_context_pruned_total",
	}, names)
}
