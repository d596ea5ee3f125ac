// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package ordering

import (
	"testing"

	"github.com/cockroachdb/optcost/pkg/sql/opt"
	"github.com/cockroachdb/optcost/pkg/sql/opt/memo"
	"github.com/cockroachdb/optcost/pkg/sql/opt/props"
	"github.com/cockroachdb/optcost/pkg/sql/opt/props/physical"
	"github.com/stretchr/testify/require"
)

type testMemo struct {
	*memo.Memo
}

func (tm testMemo) group(cols ...opt.ColumnID) *memo.Group {
	return tm.NewGroup(&props.Relational{
		OutputCols: opt.MakeColSet(cols...),
		Stats:      &props.BasicStatistics{Rows: 10, RowWidth: 8},
	})
}

func ord(t *testing.T, s string) physical.OrderSpec {
	o, err := physical.ParseOrderSpec(s)
	require.NoError(t, err)
	return o
}

func derived(o physical.OrderSpec) *physical.Derived {
	return &physical.Derived{Ordering: o}
}

func TestBuildChildRequired(t *testing.T) {
	tm := testMemo{memo.New(nil)}
	in := tm.group(1, 2, 3)
	in2 := tm.group(4, 5)
	out := tm.group(1, 2, 3, 4, 5, 6)

	testCases := []struct {
		name     string
		expr     *memo.Expr
		required string
		childIdx int
		expected string
	}{
		{
			name:     "filter",
			expr:     tm.AddExpr(out, opt.FilterOp, &memo.FilterPrivate{}, in),
			required: "+1,-2",
			expected: "+1,-2",
		},
		{
			name: "compute-scalar-input-cols",
			expr: tm.AddExpr(out, opt.ComputeScalarOp, &memo.ComputeScalarPrivate{
				Defined: opt.MakeColSet(6),
			}, in),
			required: "+1",
			expected: "+1",
		},
		{
			name: "compute-scalar-defined-col",
			expr: tm.AddExpr(out, opt.ComputeScalarOp, &memo.ComputeScalarPrivate{
				Defined: opt.MakeColSet(6),
			}, in),
			required: "+1,+6",
			expected: "",
		},
		{
			name:     "limit",
			expr:     tm.AddExpr(out, opt.LimitOp, &memo.LimitPrivate{Ordering: physical.Asc(3)}, in),
			required: "+1",
			expected: "+3",
		},
		{
			name:     "sort",
			expr:     tm.AddExpr(out, opt.SortOp, &memo.SortPrivate{Ordering: physical.Asc(1)}, in),
			required: "+1",
			expected: "",
		},
		{
			name:     "hash-agg",
			expr:     tm.AddExpr(out, opt.HashAggOp, &memo.AggregatePrivate{GroupingCols: opt.MakeColSet(2)}, in),
			required: "+2",
			expected: "",
		},
		{
			name:     "stream-agg",
			expr:     tm.AddExpr(out, opt.StreamAggOp, &memo.AggregatePrivate{GroupingCols: opt.MakeColSet(3, 1)}, in),
			required: "",
			expected: "+1,+3",
		},
		{
			name: "merge-join-outer",
			expr: tm.AddExpr(out, opt.MergeJoinOp, &memo.JoinPrivate{
				OuterKeys: []opt.ColumnID{2, 1}, InnerKeys: []opt.ColumnID{5, 4},
			}, in, in2),
			expected: "+2,+1",
		},
		{
			name: "merge-join-inner",
			expr: tm.AddExpr(out, opt.MergeJoinOp, &memo.JoinPrivate{
				OuterKeys: []opt.ColumnID{2, 1}, InnerKeys: []opt.ColumnID{5, 4},
			}, in, in2),
			childIdx: 1,
			expected: "+5,+4",
		},
		{
			name:     "nl-join-outer-covered",
			expr:     tm.AddExpr(out, opt.InnerNLJoinOp, &memo.JoinPrivate{}, in, in2),
			required: "+1",
			expected: "+1",
		},
		{
			name:     "nl-join-outer-not-covered",
			expr:     tm.AddExpr(out, opt.LeftOuterIndexNLJoinOp, &memo.JoinPrivate{}, in, in2),
			required: "+1,+4",
			expected: "",
		},
		{
			name:     "nl-join-inner",
			expr:     tm.AddExpr(out, opt.InnerNLJoinOp, &memo.JoinPrivate{}, in, in2),
			required: "+4",
			childIdx: 1,
			expected: "",
		},
		{
			name:     "hash-join",
			expr:     tm.AddExpr(out, opt.InnerHashJoinOp, &memo.JoinPrivate{}, in, in2),
			required: "+1",
			expected: "",
		},
		{
			name: "window",
			expr: tm.AddExpr(out, opt.SequenceProjectOp, &memo.WindowPrivate{
				PartitionCols: opt.MakeColSet(1),
				OrderSpecs:    []physical.OrderSpec{{{SortOp: physical.SortGreater, Col: 2, Nulls: physical.NullsFirst}}},
			}, in),
			expected: "+1,-2",
		},
		{
			name:     "sequence-first",
			expr:     tm.AddExpr(out, opt.SequenceOp, nil, in, in2),
			required: "+4",
			expected: "",
		},
		{
			name:     "sequence-last",
			expr:     tm.AddExpr(out, opt.SequenceOp, nil, in, in2),
			required: "+4",
			childIdx: 1,
			expected: "+4",
		},
		{
			name:     "gather-merge",
			expr:     tm.AddExpr(out, opt.GatherMotionOp, &memo.MotionPrivate{MergeOrdering: physical.Asc(2)}, in),
			required: "+2",
			expected: "+2",
		},
		{
			name:     "redistribute",
			expr:     tm.AddExpr(out, opt.RedistributeMotionOp, &memo.MotionPrivate{HashCols: opt.MakeColSet(1)}, in),
			required: "+2",
			expected: "",
		},
		{
			name:     "cte-producer",
			expr:     tm.AddExpr(out, opt.CTEProducerOp, &memo.CTEProducerPrivate{ID: 1}, in),
			required: "+3",
			expected: "+3",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res := BuildChildRequired(tc.expr, ord(t, tc.required), tc.childIdx, 0 /* subReq */)
			require.Equal(t, tc.expected, res.String())
		})
	}

	filter := testCases[0].expr
	require.Panics(t, func() { BuildChildRequired(filter, nil, 1, 0) })
	require.Panics(t, func() { BuildChildRequired(filter, nil, 0, 1) })
}

func TestBuildDerived(t *testing.T) {
	tm := testMemo{memo.New(nil)}
	in := tm.group(1, 2)
	in2 := tm.group(3, 4)
	out := tm.group(1, 2, 3, 4)

	child := derived(physical.Asc(1))
	child2 := derived(physical.Asc(3))

	filter := tm.AddExpr(out, opt.FilterOp, &memo.FilterPrivate{}, in)
	require.Equal(t, "+1", BuildDerived(filter, []*physical.Derived{child}, nil).String())

	sort := tm.AddExpr(out, opt.SortOp, &memo.SortPrivate{Ordering: physical.Asc(2)}, in)
	require.Equal(t, "+2", BuildDerived(sort, []*physical.Derived{child}, nil).String())

	hj := tm.AddExpr(out, opt.InnerHashJoinOp, &memo.JoinPrivate{}, in, in2)
	require.Equal(t, "", BuildDerived(hj, []*physical.Derived{child, child2}, nil).String())

	mj := tm.AddExpr(out, opt.MergeJoinOp, &memo.JoinPrivate{}, in, in2)
	require.Equal(t, "+1", BuildDerived(mj, []*physical.Derived{child, child2}, nil).String())

	seq := tm.AddExpr(out, opt.SequenceOp, nil, in, in2)
	require.Equal(t, "+3", BuildDerived(seq, []*physical.Derived{child, child2}, nil).String())

	idx := tm.AddExpr(out, opt.IndexScanOp, &memo.IndexScanPrivate{KeyOrdering: ord(t, "-2,+1")})
	require.Equal(t, "-2,+1", BuildDerived(idx, nil, nil).String())

	scan := tm.AddExpr(out, opt.TableScanOp, &memo.ScanPrivate{})
	require.Equal(t, "", BuildDerived(scan, nil, nil).String())

	require.Panics(t, func() { BuildDerived(filter, nil, nil) })
}

func TestCTEConsumerDerived(t *testing.T) {
	tm := testMemo{memo.New(nil)}
	out := tm.group(11, 12)
	consumer := tm.AddExpr(out, opt.CTEConsumerOp, &memo.CTEConsumerPrivate{
		ID:     1,
		ColMap: map[opt.ColumnID]opt.ColumnID{1: 11, 2: 12},
	})

	// Without producer properties the consumer provides no ordering.
	require.Equal(t, "", BuildDerived(consumer, nil, nil).String())

	ctx := physical.ProducerProps{1: derived(ord(t, "+2,-1"))}
	require.Equal(t, "+12,-11", BuildDerived(consumer, nil, ctx).String())

	// Columns the consumer does not expose end the ordering.
	ctx = physical.ProducerProps{1: derived(ord(t, "+2,+3,+1"))}
	require.Equal(t, "+12", BuildDerived(consumer, nil, ctx).String())
	ctx = physical.ProducerProps{1: derived(ord(t, "+3"))}
	require.Equal(t, "", BuildDerived(consumer, nil, ctx).String())
}

func TestEnforcement(t *testing.T) {
	tm := testMemo{memo.New(nil)}
	in := tm.group(1, 2)
	out := tm.group(1, 2)

	filter := tm.AddExpr(out, opt.FilterOp, &memo.FilterPrivate{}, in)
	sort := tm.AddExpr(out, opt.SortOp, &memo.SortPrivate{Ordering: physical.Asc(1)}, in)
	spool := tm.AddExpr(out, opt.SpoolOp, &memo.SpoolPrivate{}, in)

	testCases := []struct {
		expr              *memo.Expr
		required, derived string
		expected          physical.EnforcementType
	}{
		{filter, "", "", physical.EnforcementUnnecessary},
		{filter, "+1", "+1,+2", physical.EnforcementUnnecessary},
		{filter, "+1,+2", "+1", physical.EnforcementRequired},
		{sort, "+1", "+1", physical.EnforcementUnnecessary},
		{sort, "+2", "+1", physical.EnforcementProhibited},
		{spool, "+2", "", physical.EnforcementOptional},
		{spool, "+2", "+2", physical.EnforcementUnnecessary},
	}
	for _, tc := range testCases {
		res := Enforcement(tc.expr, ord(t, tc.required), ord(t, tc.derived))
		require.Equal(t, tc.expected, res, "%s required=%s derived=%s", tc.expr, tc.required, tc.derived)
	}
}
