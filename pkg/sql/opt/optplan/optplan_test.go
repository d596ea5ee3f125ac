// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package optplan

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/optcost/pkg/sql/opt"
	"github.com/cockroachdb/optcost/pkg/sql/opt/cat"
	"github.com/cockroachdb/optcost/pkg/sql/opt/props/physical"
	"github.com/cockroachdb/optcost/pkg/sql/opt/xform"
	"github.com/cockroachdb/optcost/pkg/testutils/floatcmp"
	"github.com/cockroachdb/optcost/pkg/util/leaktest"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func loadPlan(t *testing.T, name string) *Plan {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	p, err := Parse(data)
	require.NoError(t, err)
	return p
}

func buildAndCost(t *testing.T, name string, params *xform.CostParams) *Result {
	t.Helper()
	ctx := context.Background()
	res, err := Build(ctx, loadPlan(t, name), params)
	require.NoError(t, err)
	require.NoError(t, res.Cost(ctx))
	return res
}

// findOp returns the first context of the plan, in pre-order, with the
// given operator.
func findOp(t *testing.T, res *Result, op opt.Operator, skip int) *xform.CostContext {
	t.Helper()
	for _, e := range res.Entries {
		if e.Context.Expr().Op() == op {
			if skip == 0 {
				return e.Context
			}
			skip--
		}
	}
	t.Fatalf("no %s in plan", op)
	return nil
}

func TestParseErrors(t *testing.T) {
	_, err := Parse([]byte("catalog: {}\n"))
	require.EqualError(t, err, "plan has no root")

	_, err = Parse([]byte("plan: {op: tvf, bogus: 1}\n"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "bogus")

	_, err = Parse([]byte("plan: [\n"))
	require.Error(t, err)
}

func TestBuildErrors(t *testing.T) {
	ctx := context.Background()
	params := xform.DefaultCostParams()
	testCases := []struct {
		plan string
		err  string
	}{
		{
			plan: "plan: {op: scan}",
			err:  `unknown operator "scan"`,
		},
		{
			plan: "plan: {op: filter}",
			err:  "filter has 0 children",
		},
		{
			plan: "plan: {op: union-all}",
			err:  "union-all has 0 children",
		},
		{
			plan: "plan: {op: sort, private: {ordering: 'x1'}, children: [{op: tvf}]}",
			err:  `sort: ordering "x1"`,
		},
		{
			plan: "plan: {op: inner-hash-join, private: {outer_keys: [1]}, children: [{op: tvf}, {op: tvf}]}",
			err:  "inner-hash-join: 1 outer keys and 0 inner keys",
		},
		{
			plan: "plan: {op: hash-agg, private: {stage: four}, children: [{op: tvf}]}",
			err:  `hash-agg: unknown aggregate stage "four"`,
		},
		{
			plan: "plan: {op: tvf, request: 3}",
			err:  "tvf: request 3 out of range [0, 1)",
		},
		{
			plan: "plan: {op: tvf, request_counts: [1, 2]}",
			err:  "tvf: request_counts needs 4 values, got 2",
		},
		{
			plan: "catalog: {indexes: [{id: 1, table: 2}]}\nplan: {op: tvf}",
			err:  "index 1: unknown table 2",
		},
		{
			plan: "catalog: {tables: [{id: 1, name: t, storage: columnar}]}\nplan: {op: tvf}",
			err:  `table t: unknown storage "columnar"`,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.plan, func(t *testing.T) {
			p, err := Parse([]byte(tc.plan))
			require.NoError(t, err)
			_, err = Build(ctx, p, params)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.err)
		})
	}
}

func TestCatalog(t *testing.T) {
	c := NewCatalog()
	require.NoError(t, c.AddTable(TableSpec{ID: 2, Name: "b", Storage: "ao"}))
	require.NoError(t, c.AddTable(TableSpec{ID: 1, Name: "a", Rows: 10, Pages: 2, AllVisiblePages: 1}))
	require.Error(t, c.AddTable(TableSpec{ID: 1, Name: "dup"}))
	require.Error(t, c.AddTable(TableSpec{ID: 3, Name: "c", Pages: 1, AllVisiblePages: 2}))
	require.NoError(t, c.AddIndex(IndexSpec{ID: 7, Table: 1, Type: "bitmap", KeyCols: []opt.ColumnID{3}}))
	require.Error(t, c.AddIndex(IndexSpec{ID: 8, Table: 1, Type: "hash"}))

	require.Equal(t, []cat.TableID{1, 2}, c.TableIDs())
	b, ok := c.Table(2)
	require.True(t, ok)
	require.Equal(t, cat.AppendOnlyStorage, b.Storage())
	_, ok = c.Table(3)
	require.False(t, ok)

	idx, ok := c.Index(7)
	require.True(t, ok)
	require.Equal(t, cat.BitmapIndex, idx.Type())
	require.Equal(t, 1, idx.KeyColumnCount())
	require.Equal(t, opt.ColumnID(3), idx.KeyColumn(0))
}

// TestFilterOverScan checks that the scan output below a filter is billed
// for the rows that pass the filter.
func TestFilterOverScan(t *testing.T) {
	params := xform.DefaultCostParams()
	res := buildAndCost(t, "filter_scan.yaml", params)
	require.Len(t, res.Entries, 2)

	scan := params.Unit(xform.UnitInitScanFactor) + 1e6*20*params.Unit(xform.UnitTableScan)
	filter := 1e6 * 1 * params.Unit(xform.UnitFilterCol)
	output := 100 * 20 * params.Unit(xform.UnitOutputTup)
	expected := scan + filter + output

	require.True(t, floatcmp.EqualApprox(expected, float64(res.Root.Cost()), 1e-12, 0),
		"expected %g, got %s", expected, res.Root.Cost())
	require.True(t, floatcmp.EqualApprox(scan, float64(res.Root.Child(0).Cost()), 1e-12, 0))
	require.Equal(t, res.Root, res.Optimizer.BestContext(res.Root.Expr().Group(), res.Root.Required()))
}

func TestIndexScan(t *testing.T) {
	params := xform.DefaultCostParams()
	res := buildAndCost(t, "index_scan.yaml", params)

	u := params.Unit
	perRow := 2*u(xform.UnitIndexFilter) + 24*u(xform.UnitIndexScanTup) + 4*u(xform.UnitIndexOnlyScanTup)
	// Key column 2 is not constrained: position weight 1/2, 10 distinct
	// values out of 100000 rows.
	unused := 50 * (0.5 * 10 / 100000) * u(xform.UnitIndexFilter)
	expected := 50*perRow + u(xform.UnitIndexScanTupRandomFactor) + unused
	require.True(t, floatcmp.EqualApprox(expected, float64(res.Root.Cost()), 1e-12, 0),
		"expected %g, got %s", expected, res.Root.Cost())

	// The index key order satisfies the required ordering.
	require.Equal(t, "+1,+2", res.Root.Derived().Ordering.String())
	require.True(t, res.Root.IsValid(context.Background()))
}

func TestCTEPlan(t *testing.T) {
	ctx := context.Background()
	res := buildAndCost(t, "cte.yaml", xform.DefaultCostParams())
	require.Len(t, res.Entries, 7)
	require.Equal(t, 2, res.Memo.CTEInfo().ConsumersCount(1))

	join := findOp(t, res, opt.InnerHashJoinOp, 0)
	require.Equal(t, "{1:consumer}", join.Required().CTEs.String())

	// The hash join builds its inner side first, so neither consumer is
	// required on its own.
	outer, inner := join.Child(0), join.Child(1)
	require.Equal(t, "{1:consumer?}", outer.Required().CTEs.String())
	require.Equal(t, "{1:consumer?}", inner.Required().CTEs.String())

	// Consumers copy the order of the producer, renamed to their columns.
	require.Equal(t, "+11", outer.Derived().Ordering.String())
	require.Equal(t, "+12", inner.Derived().Ordering.String())

	require.Equal(t, "{}", res.Root.Derived().CTEs.String())
	for _, e := range res.Entries {
		require.Equal(t, xform.CostContextCosted, e.Context.State(), "%s", e.Context)
		require.True(t, e.Context.IsValid(ctx), "%s", e.Context)
	}
	require.Equal(t, 0, res.Entries[0].Depth)
	require.Equal(t, 3, res.Entries[3].Depth)

	// Entries follow child indexes even where the join runs its inner side
	// first.
	require.Same(t, join, res.Entries[4].Context)
	require.Same(t, outer, res.Entries[5].Context)
	require.Same(t, inner, res.Entries[6].Context)
}

// TestSelectorOverEagerSpool checks that an eager spool between a partition
// selector and its dynamic scan is rejected, and that a streaming spool is
// not.
func TestSelectorOverEagerSpool(t *testing.T) {
	defer leaktest.AfterTest(t)()
	ctx := context.Background()

	p := loadPlan(t, "selector_spool.yaml")
	res, err := Build(ctx, p, xform.DefaultCostParams())
	require.NoError(t, err)
	require.NoError(t, res.Cost(ctx))
	spool := res.Root.Child(0)
	require.Equal(t, "{5:consumer(rel=1, sel=(9))}", spool.Required().PartitionPropagation.String())
	require.True(t, spool.Required().PartitionPropagation.IsUnsupportedCombination(true))
	require.False(t, spool.IsValid(ctx))
	require.Equal(t, float64(1), testutil.ToFloat64(res.Optimizer.Metrics().Invalid))
	require.Nil(t, res.Optimizer.BestContext(spool.Expr().Group(), spool.Required()))

	p.Root.Children[0].Private.Eager = false
	res, err = Build(ctx, p, xform.DefaultCostParams())
	require.NoError(t, err)
	require.NoError(t, res.Cost(ctx))
	spool = res.Root.Child(0)
	require.True(t, spool.IsValid(ctx))
	require.Same(t, spool, res.Optimizer.BestContext(spool.Expr().Group(), spool.Required()))
}

func TestRootRequired(t *testing.T) {
	p := loadPlan(t, "index_scan.yaml")
	res, err := Build(context.Background(), p, xform.DefaultCostParams())
	require.NoError(t, err)
	require.True(t, res.Root.Required().Equals(&physical.Required{Ordering: physical.Asc(1)}))
}
