// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform

import (
	"math"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optcost/pkg/settings"
	"github.com/cockroachdb/optcost/pkg/sql/opt"
	"github.com/cockroachdb/optcost/pkg/sql/opt/cat"
	"github.com/cockroachdb/optcost/pkg/sql/opt/memo"
	"github.com/cockroachdb/optcost/pkg/sql/opt/props"
	"github.com/cockroachdb/optcost/pkg/sql/opt/props/physical"
	"github.com/cockroachdb/optcost/pkg/testutils/floatcmp"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
)

type testTable struct {
	id      cat.TableID
	storage cat.StorageType
	rows    float64
	pages   float64
	visible float64
}

func (t *testTable) ID() cat.TableID { return t.id }
func (t *testTable) Name() string { return "t" }
func (t *testTable) Storage() cat.StorageType { return t.storage }
func (t *testTable) RowCount() float64 { return t.rows }
func (t *testTable) Pages() float64 { return t.pages }
func (t *testTable) AllVisiblePages() float64 { return t.visible }

type testIndex struct {
	id       cat.IndexID
	table    cat.TableID
	typ      cat.IndexType
	keyCols  []opt.ColumnID
	included float64
}

func (i *testIndex) ID() cat.IndexID { return i.id }
func (i *testIndex) Table() cat.TableID { return i.table }
func (i *testIndex) Type() cat.IndexType { return i.typ }
func (i *testIndex) KeyColumnCount() int { return len(i.keyCols) }
func (i *testIndex) KeyColumn(n int) opt.ColumnID { return i.keyCols[n] }
func (i *testIndex) IncludedColumnWidth() float64 { return i.included }

type testCatalog struct {
	tables  map[cat.TableID]*testTable
	indexes map[cat.IndexID]*testIndex
}

func (c *testCatalog) Table(id cat.TableID) (cat.Table, bool) {
	t, ok := c.tables[id]
	return t, ok
}

func (c *testCatalog) Index(id cat.IndexID) (cat.Index, bool) {
	i, ok := c.indexes[id]
	return i, ok
}

// newTestCatalog returns a catalog with a heap table 1 and an append-only
// table 2. Table 1 has btree index 10 on (1,2) and bitmap index 11 on (1).
// Table 2 has btree index 20 on (1).
func newTestCatalog() *testCatalog {
	return &testCatalog{
		tables: map[cat.TableID]*testTable{
			1: {id: 1, storage: cat.HeapStorage, rows: 100000, pages: 1000, visible: 800},
			2: {id: 2, storage: cat.AppendOnlyStorage, rows: 100000},
		},
		indexes: map[cat.IndexID]*testIndex{
			10: {id: 10, table: 1, typ: cat.BtreeIndex, keyCols: []opt.ColumnID{1, 2}},
			11: {id: 11, table: 1, typ: cat.BitmapIndex, keyCols: []opt.ColumnID{1}},
			20: {id: 20, table: 2, typ: cat.BtreeIndex, keyCols: []opt.ColumnID{1}},
		},
	}
}

func testStats(rows, width float64) *props.BasicStatistics {
	return &props.BasicStatistics{Rows: rows, RowWidth: width}
}

func makeInfo(op opt.Operator, private interface{}, rows, width float64, children ...ChildCostingInfo) *CostingInfo {
	return &CostingInfo{
		Op:       op,
		Private:  private,
		Rows:     rows,
		Width:    width,
		Rebinds:  1,
		Stats:    testStats(rows, width),
		Children: children,
	}
}

func makeChild(op opt.Operator, rows, width float64, cost memo.Cost) ChildCostingInfo {
	return ChildCostingInfo{Op: op, Rows: rows, Width: width, Rebinds: 1, Cost: cost, Stats: testStats(rows, width)}
}

// testPrivate returns a valid private of the operator.
func testPrivate(op opt.Operator) interface{} {
	switch op {
	case opt.TableScanOp, opt.ExternalScanOp:
		return &memo.ScanPrivate{Table: 1, Cols: opt.MakeColSet(1, 2)}
	case opt.DynamicTableScanOp:
		return &memo.DynamicScanPrivate{
			ScanPrivate: memo.ScanPrivate{Table: 1, Cols: opt.MakeColSet(1, 2)}, ScanID: 1, PartKey: 1,
		}
	case opt.IndexScanOp, opt.DynamicIndexScanOp, opt.IndexOnlyScanOp:
		return &memo.IndexScanPrivate{Table: 1, Index: 10, Cols: opt.MakeColSet(1, 2), PredicateCols: opt.MakeColSet(1)}
	case opt.BitmapTableScanOp:
		return &memo.BitmapScanPrivate{Table: 1, Index: 11, Cols: opt.MakeColSet(1, 2), Cond: memo.BitmapCond{
			UsedCols: opt.MakeColSet(1),
		}}
	case opt.FilterOp:
		return &memo.FilterPrivate{Cols: opt.MakeColSet(1)}
	case opt.ComputeScalarOp:
		return &memo.ComputeScalarPrivate{Used: opt.MakeColSet(1), Defined: opt.MakeColSet(3)}
	case opt.LimitOp:
		return &memo.LimitPrivate{Count: 10}
	case opt.PartitionSelectorOp:
		return &memo.PartitionSelectorPrivate{ScanID: 1, RootRel: 1, SelectorID: 1}
	case opt.SpoolOp:
		return &memo.SpoolPrivate{}
	case opt.SortOp:
		return &memo.SortPrivate{Ordering: physical.Asc(1)}
	case opt.HashAggOp, opt.StreamAggOp, opt.ScalarAggOp:
		return &memo.AggregatePrivate{GroupingCols: opt.MakeColSet(1)}
	case opt.SequenceProjectOp:
		return &memo.WindowPrivate{PartitionCols: opt.MakeColSet(1), OrderSpecs: []physical.OrderSpec{physical.Asc(2)}}
	case opt.CTEProducerOp:
		return &memo.CTEProducerPrivate{ID: 1, Cols: []opt.ColumnID{1}}
	case opt.CTEConsumerOp:
		return &memo.CTEConsumerPrivate{ID: 1, ColMap: map[opt.ColumnID]opt.ColumnID{1: 11}}
	case opt.GatherMotionOp, opt.BroadcastMotionOp, opt.RedistributeMotionOp:
		return &memo.MotionPrivate{HashCols: opt.MakeColSet(1)}
	}
	if opt.IsJoinOp(op) {
		return &memo.JoinPrivate{OuterKeys: []opt.ColumnID{1}, InnerKeys: []opt.ColumnID{3}}
	}
	return nil
}

func testInfo(op opt.Operator) *CostingInfo {
	n := op.Arity()
	if n == opt.VariadicArity {
		n = 2
	}
	children := make([]ChildCostingInfo, n)
	for i := range children {
		children[i] = makeChild(opt.TVFOp, 1000, 16, 10)
	}
	return makeInfo(op, testPrivate(op), 100, 16, children...)
}

// TestCosterCoversEveryOperator checks that every operator has a formula
// and that every formula includes the costs of the children.
func TestCosterCoversEveryOperator(t *testing.T) {
	c := MakeDefaultCoster(DefaultCostParams(), newTestCatalog())
	for op := opt.Operator(1); op < opt.NumOperators; op++ {
		t.Run(op.String(), func(t *testing.T) {
			ci := testInfo(op)
			var cost memo.Cost
			require.NotPanics(t, func() { cost = c.ComputeCost(op, ci) })
			require.Greater(t, float64(cost), 0.0)
			var children memo.Cost
			for i := range ci.Children {
				children.Add(ci.Children[i].Cost)
			}
			if op == opt.ParallelUnionAllOp {
				children = ci.Children[0].Cost
			}
			require.GreaterOrEqual(t, float64(cost), float64(children))
		})
	}
}

func TestCosterAssertions(t *testing.T) {
	c := MakeDefaultCoster(DefaultCostParams(), newTestCatalog())
	expectAssertion := func(t *testing.T, f func()) {
		t.Helper()
		defer func() {
			r := recover()
			require.NotNil(t, r)
			err, ok := r.(error)
			require.True(t, ok)
			require.True(t, errors.IsAssertionFailure(err), "%v", err)
		}()
		f()
	}

	expectAssertion(t, func() { c.ComputeCost(opt.FilterOp, nil) })
	expectAssertion(t, func() { c.ComputeCost(opt.SortOp, testInfo(opt.FilterOp)) })

	// Wrong number of children.
	ci := testInfo(opt.FilterOp)
	ci.Children = nil
	expectAssertion(t, func() { c.ComputeCost(opt.FilterOp, ci) })
	ci = testInfo(opt.UnionAllOp)
	ci.Children = nil
	expectAssertion(t, func() { c.ComputeCost(opt.UnionAllOp, ci) })

	// Index scans need a catalog that knows the index.
	noCatalog := MakeDefaultCoster(DefaultCostParams(), nil)
	expectAssertion(t, func() { noCatalog.ComputeCost(opt.IndexScanOp, testInfo(opt.IndexScanOp)) })
	ci = testInfo(opt.IndexScanOp)
	ci.Private = &memo.IndexScanPrivate{Table: 2, Index: 10}
	expectAssertion(t, func() { c.ComputeCost(opt.IndexScanOp, ci) })
	ci.Private = &memo.IndexScanPrivate{Table: 1, Index: 99}
	expectAssertion(t, func() { c.ComputeCost(opt.IndexScanOp, ci) })

	// Every unit must be positive.
	zero := MakeDefaultCoster(DefaultCostParams().WithUnit(UnitSortTupWidth, 0), nil)
	expectAssertion(t, func() { zero.ComputeCost(opt.SortOp, testInfo(opt.SortOp)) })
	nan := MakeDefaultCoster(DefaultCostParams().WithUnit(UnitSortTupWidth, math.NaN()), nil)
	expectAssertion(t, func() { nan.ComputeCost(opt.SortOp, testInfo(opt.SortOp)) })
}

// TestScanOutputBilledByFilter checks that a filter bills the output of the
// scan below it for the rows that pass the filter.
func TestScanOutputBilledByFilter(t *testing.T) {
	params := DefaultCostParams()
	c := MakeDefaultCoster(params, nil)

	scanInfo := makeInfo(opt.TableScanOp, testPrivate(opt.TableScanOp), 1e6, 20)
	scanCost := c.ComputeCost(opt.TableScanOp, scanInfo)
	expectedScan := params.Unit(UnitInitScanFactor) + 1e6*20*params.Unit(UnitTableScan)
	require.True(t, floatcmp.EqualApprox(expectedScan, float64(scanCost), 1e-12, 0))

	filterInfo := makeInfo(opt.FilterOp, &memo.FilterPrivate{Cols: opt.MakeColSet(1)}, 100, 20,
		makeChild(opt.TableScanOp, 1e6, 20, scanCost))
	cost := c.ComputeCost(opt.FilterOp, filterInfo)
	expected := expectedScan + 1e6*params.Unit(UnitFilterCol) + 100*20*params.Unit(UnitOutputTup)
	require.True(t, floatcmp.EqualApprox(expected, float64(cost), 1e-12, 0), "expected %g, got %s", expected, cost)

	// Above any other operator the scan output is billed in full.
	sortInfo := makeInfo(opt.SortOp, &memo.SortPrivate{Ordering: physical.Asc(1)}, 1e6, 20,
		makeChild(opt.TableScanOp, 1e6, 20, scanCost))
	sortCost := c.ComputeCost(opt.SortOp, sortInfo)
	rows := 1e6
	expectedSort := expectedScan + 1e6*20*params.Unit(UnitOutputTup) +
		rows*math.Log2(rows)*20*params.Unit(UnitSortTupWidth)
	require.True(t, floatcmp.EqualApprox(expectedSort, float64(sortCost), 1e-12, 0))
}

func TestRebindsScaleLocalCost(t *testing.T) {
	c := MakeDefaultCoster(DefaultCostParams(), nil)
	ci := makeInfo(opt.TableScanOp, testPrivate(opt.TableScanOp), 1000, 8)
	once := c.ComputeCost(opt.TableScanOp, ci)
	ci.Rebinds = 3
	require.True(t, floatcmp.EqualApprox(3*float64(once), float64(c.ComputeCost(opt.TableScanOp, ci)), 1e-12, 0))
}

func TestSortCost(t *testing.T) {
	c := MakeDefaultCoster(DefaultCostParams(), nil)
	sortCost := func(rows, width float64) memo.Cost {
		return c.ComputeCost(opt.SortOp, makeInfo(opt.SortOp, testPrivate(opt.SortOp), rows, width,
			makeChild(opt.TVFOp, rows, width, 0)))
	}

	// Fewer than two rows are costed as two.
	require.Equal(t, sortCost(2, 8), sortCost(1, 8))
	require.Equal(t, sortCost(2, 8), sortCost(0, 8))

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)
	properties.Property("sort cost grows with rows and width", prop.ForAll(
		func(rows, more, width float64) bool {
			return !sortCost(rows+more, width).Less(sortCost(rows, width)) &&
				!sortCost(rows, width+more).Less(sortCost(rows, width))
		},
		gen.Float64Range(0, 1e9), gen.Float64Range(0, 1e6), gen.Float64Range(1, 1000),
	))
	properties.TestingRun(t)
}

// TestHashJoinSpill checks the cost across the spilling threshold of the
// build side.
func TestHashJoinSpill(t *testing.T) {
	params := DefaultCostParams()
	c := MakeDefaultCoster(params, nil)
	threshold := params.Unit(UnitHJSpillingMemThreshold)
	const width = 8
	hashJoinCost := func(innerRows float64) memo.Cost {
		ci := makeInfo(opt.InnerHashJoinOp, testPrivate(opt.InnerHashJoinOp), 1000, 16,
			makeChild(opt.TVFOp, 1000, width, 0),
			makeChild(opt.TVFOp, innerRows, width, 0))
		return c.ComputeCost(opt.InnerHashJoinOp, ci)
	}

	atThreshold := hashJoinCost(threshold / width)
	aboveThreshold := hashJoinCost(threshold/width + 1)
	require.True(t, atThreshold.Less(aboveThreshold))
	// The spilling hash table pays its initialization factor.
	require.Greater(t, float64(aboveThreshold-atThreshold), params.Unit(UnitHJHashTableInitFactor))

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)
	properties.Property("hash join cost grows with the build side", prop.ForAll(
		func(rows, more float64) bool {
			return !hashJoinCost(rows + more).Less(hashJoinCost(rows))
		},
		gen.Float64Range(0, 2*threshold/width), gen.Float64Range(0, threshold/width),
	))
	properties.TestingRun(t)
}

func TestHashJoinSkew(t *testing.T) {
	params := DefaultCostParams()
	skewed := func(p *CostParams, ratio float64) memo.Cost {
		ci := makeInfo(opt.InnerHashJoinOp, &memo.JoinPrivate{
			OuterKeys: []opt.ColumnID{1}, InnerKeys: []opt.ColumnID{3}, SkewRatio: ratio,
		}, 1000, 16, makeChild(opt.TVFOp, 1000, 8, 0), makeChild(opt.TVFOp, 1000, 8, 0))
		return MakeDefaultCoster(p, nil).ComputeCost(opt.InnerHashJoinOp, ci)
	}
	base := skewed(params, 0)
	require.Equal(t, base, skewed(params, 5), "skew is ignored unless enabled")

	enabled := *params
	enabled.EnableHashJoinSkew = true
	require.Equal(t, base, skewed(&enabled, 0.5))
	require.True(t, floatcmp.EqualApprox(5*float64(base), float64(skewed(&enabled, 5)), 1e-12, 0))
	limit := params.Unit(UnitPenalizeHJSkewUpperLimit)
	require.True(t, floatcmp.EqualApprox(limit*float64(base), float64(skewed(&enabled, 1000)), 1e-12, 0))
}

// TestNLJoinRisk checks that a risky nested-loop join is never cheaper than
// the index nested-loop join with the same inputs.
func TestNLJoinRisk(t *testing.T) {
	params := DefaultCostParams()
	c := MakeDefaultCoster(params, nil)
	joinCost := func(op opt.Operator, risk float64) memo.Cost {
		ci := makeInfo(op, testPrivate(op), 100, 16,
			makeChild(opt.TVFOp, 100, 8, 0), makeChild(opt.TVFOp, 10, 8, 0))
		ci.Stats.(*props.BasicStatistics).Risk = risk
		return c.ComputeCost(op, ci)
	}
	for _, risk := range []float64{0, 1, 5, 100} {
		require.False(t, joinCost(opt.InnerNLJoinOp, risk).Less(joinCost(opt.InnerIndexNLJoinOp, risk)),
			"risk %g", risk)
	}
	threshold := params.Unit(UnitIndexJoinAllowedRiskThreshold)
	require.Equal(t, joinCost(opt.InnerIndexNLJoinOp, 0), joinCost(opt.InnerIndexNLJoinOp, threshold))
	require.True(t, joinCost(opt.InnerIndexNLJoinOp, 0).Less(joinCost(opt.InnerIndexNLJoinOp, 2*threshold)))
	// Outer join estimates are trusted.
	require.Equal(t, joinCost(opt.LeftOuterIndexNLJoinOp, 0), joinCost(opt.LeftOuterIndexNLJoinOp, 2*threshold))
}

func TestIndexScanCost(t *testing.T) {
	params := DefaultCostParams()
	c := MakeDefaultCoster(params, newTestCatalog())
	u := params.Unit
	scan := func(op opt.Operator, p *memo.IndexScanPrivate) memo.Cost {
		ci := makeInfo(op, p, 10, 8)
		return c.ComputeCost(op, ci)
	}

	// All key columns are constrained.
	full := &memo.IndexScanPrivate{Table: 1, Index: 10, PredicateCols: opt.MakeColSet(1, 2)}
	perRow := 2*u(UnitIndexFilter) + 8*u(UnitIndexScanTup)
	expected := 10*perRow + u(UnitIndexScanTupRandomFactor)
	require.True(t, floatcmp.EqualApprox(expected, float64(scan(opt.IndexScanOp, full)), 1e-12, 0))

	// An unconstrained leading column costs more than an unconstrained
	// trailing one.
	leading := &memo.IndexScanPrivate{Table: 1, Index: 10, PredicateCols: opt.MakeColSet(2)}
	trailing := &memo.IndexScanPrivate{Table: 1, Index: 10, PredicateCols: opt.MakeColSet(1)}
	require.True(t, scan(opt.IndexScanOp, trailing).Less(scan(opt.IndexScanOp, leading)))
	require.True(t, scan(opt.IndexScanOp, full).Less(scan(opt.IndexScanOp, trailing)))

	// An index-only scan only fetches invisible pages from the heap.
	visible := 1 - 800.0/1000 + visibilityEpsilon
	indexOnly := 10*(2*u(UnitIndexFilter)+8*u(UnitIndexScanTup)*visible) + u(UnitIndexScanTupRandomFactor)
	require.True(t, floatcmp.EqualApprox(indexOnly, float64(scan(opt.IndexOnlyScanOp, full)), 1e-12, 0))
	require.True(t, scan(opt.IndexOnlyScanOp, full).Less(scan(opt.IndexScanOp, full)))

	// Residual predicates are billed per row and column.
	residual := &memo.IndexScanPrivate{
		Table: 1, Index: 10, PredicateCols: opt.MakeColSet(1, 2), ResidualCols: opt.MakeColSet(3, 4),
	}
	require.True(t, floatcmp.EqualApprox(
		expected+10*2*u(UnitFilterCol), float64(scan(opt.IndexScanOp, residual)), 1e-12, 0))

	// Append-only relations filter through the block directory.
	ao := &memo.IndexScanPrivate{Table: 2, Index: 20, PredicateCols: opt.MakeColSet(1)}
	aoExpected := 10*(appendOnlyFilterPenalty*u(UnitIndexFilter)+8*u(UnitIndexScanTup)) +
		u(UnitIndexScanTupRandomFactor)
	require.True(t, floatcmp.EqualApprox(aoExpected, float64(scan(opt.IndexScanOp, ao)), 1e-12, 0))
}

func TestBitmapScanCost(t *testing.T) {
	legacy := DefaultCostParams()
	sv := settings.MakeValues()
	require.NoError(t, sv.LoadYAML([]byte("sql.opt.cost.model: calibrated\n")))
	calibrated := MakeCostParams(sv)
	require.Equal(t, CalibratedCostModel, calibrated.Model)

	u := legacy.Unit
	bitmap := func(params *CostParams, index cat.IndexID, cond memo.BitmapCond, rows float64) memo.Cost {
		ci := makeInfo(opt.BitmapTableScanOp, &memo.BitmapScanPrivate{Table: 1, Index: index, Cond: cond}, rows, 8)
		ci.Stats.(*props.BasicStatistics).Distinct = map[opt.ColumnID]float64{1: 50, 2: 1000}
		return MakeDefaultCoster(params, newTestCatalog()).ComputeCost(opt.BitmapTableScanOp, ci)
	}
	linear := func(rows float64, keys float64) float64 {
		return rows*(keys*u(UnitIndexFilter)+8*u(UnitIndexScanTup)) + u(UnitIndexScanTupRandomFactor)
	}

	// Combined conditions and multi-column probes use the linear formula.
	and := memo.BitmapCond{Kind: memo.BitmapAnd, UsedCols: opt.MakeColSet(1, 2)}
	require.True(t, floatcmp.EqualApprox(linear(100, 2), float64(bitmap(legacy, 11, and, 100)), 1e-12, 0))
	multi := memo.BitmapCond{UsedCols: opt.MakeColSet(1, 2)}
	require.True(t, floatcmp.EqualApprox(linear(100, 2), float64(bitmap(calibrated, 11, multi, 100)), 1e-12, 0))

	// An IN list over a btree index is linear in the legacy model only.
	inList := memo.BitmapCond{UsedCols: opt.MakeColSet(1), IsInList: true}
	require.True(t, floatcmp.EqualApprox(linear(100, 1), float64(bitmap(legacy, 10, inList, 100)), 1e-12, 0))

	// A single-column probe with 50 distinct values uses the small NDV
	// units.
	probe := memo.BitmapCond{UsedCols: opt.MakeColSet(1)}
	size := 100 * 8 * bitmapSizeFactor
	legacyProbe := size*u(UnitBitmapIOSmallNDV) + 50*u(UnitBitmapPageSmallNDV)
	require.True(t, floatcmp.EqualApprox(legacyProbe, float64(bitmap(legacy, 11, probe, 100)), 1e-12, 0))

	// An outer reference equality matches a single key.
	outerRef := memo.BitmapCond{UsedCols: opt.MakeColSet(1), OuterRefEquality: true}
	require.True(t, floatcmp.EqualApprox(size*u(UnitBitmapIOSmallNDV)+u(UnitBitmapPageSmallNDV),
		float64(bitmap(legacy, 11, outerRef, 100)), 1e-12, 0))

	// Many distinct values use the large NDV units.
	large := memo.BitmapCond{UsedCols: opt.MakeColSet(2)}
	require.True(t, floatcmp.EqualApprox(size*u(UnitBitmapIOLargeNDV)+1000*u(UnitBitmapPageLargeNDV),
		float64(bitmap(legacy, 11, large, 100)), 1e-12, 0))

	// The calibrated model bills bitmap pages and the union of the per-key
	// bitmaps of a heap table.
	calibratedProbe := size*u(UnitBitmapIOSmallNDV) + 50*u(UnitBitmapPage) + u(UnitBitmapScanRebind) +
		49*100000*u(UnitBitmapUnion) + u(UnitInitScanFactor)
	require.True(t, floatcmp.EqualApprox(calibratedProbe, float64(bitmap(calibrated, 11, probe, 100)), 1e-12, 0))

	// A btree probe returns row ids, so nothing scales with the keys.
	btreeProbe := size*u(UnitBitmapIOSmallNDV) + u(UnitBitmapScanRebind) + u(UnitInitScanFactor)
	require.True(t, floatcmp.EqualApprox(btreeProbe, float64(bitmap(calibrated, 10, probe, 100)), 1e-12, 0))
}

func TestMotionCost(t *testing.T) {
	params := DefaultCostParams()
	motion := func(p *CostParams, op opt.Operator) memo.Cost {
		ci := makeInfo(op, testPrivate(op), 1000, 10, makeChild(opt.TVFOp, 1000, 10, 5))
		return MakeDefaultCoster(p, nil).ComputeCost(op, ci)
	}
	u := params.Unit
	gather := 5 + 1000*10*(u(UnitGatherSend)+u(UnitGatherRecv))
	require.True(t, floatcmp.EqualApprox(gather, float64(motion(params, opt.GatherMotionOp)), 1e-12, 0))

	// A broadcast sends every row to every segment.
	segments := *params
	segments.Segments = 4
	broadcast := func(n float64) float64 {
		return 5 + 1000*10*(u(UnitBroadcastSend)+u(UnitBroadcastRecv))*n
	}
	require.True(t, floatcmp.EqualApprox(broadcast(1), float64(motion(params, opt.BroadcastMotionOp)), 1e-12, 0))
	require.True(t, floatcmp.EqualApprox(broadcast(4), float64(motion(&segments, opt.BroadcastMotionOp)), 1e-12, 0))
}

func TestParallelUnionAllBillsSlowestChild(t *testing.T) {
	c := MakeDefaultCoster(DefaultCostParams(), nil)
	children := []ChildCostingInfo{
		makeChild(opt.TVFOp, 10, 8, 100),
		makeChild(opt.TVFOp, 10, 8, 300),
		makeChild(opt.TVFOp, 10, 8, 200),
	}
	serial := c.ComputeCost(opt.UnionAllOp, makeInfo(opt.UnionAllOp, nil, 30, 8, children...))
	parallel := c.ComputeCost(opt.ParallelUnionAllOp, makeInfo(opt.ParallelUnionAllOp, nil, 30, 8, children...))
	require.True(t, floatcmp.EqualApprox(float64(serial)-300, float64(parallel), 1e-12, 0))
}

func TestCTEProducerMaterialization(t *testing.T) {
	params := DefaultCostParams()
	c := MakeDefaultCoster(params, nil)
	producer := func(childOp opt.Operator) memo.Cost {
		ci := makeInfo(opt.CTEProducerOp, testPrivate(opt.CTEProducerOp), 100, 8,
			makeChild(childOp, 100, 8, 10))
		return c.ComputeCost(opt.CTEProducerOp, ci)
	}
	materialize := 100 * 8 * params.Unit(UnitMaterialize)
	require.True(t, floatcmp.EqualApprox(
		float64(producer(opt.TVFOp))+materialize, float64(producer(opt.SpoolOp)), 1e-12, 0))
	require.Equal(t, producer(opt.SpoolOp), producer(opt.SortOp))
}

func TestScalarFuncSurcharge(t *testing.T) {
	params := DefaultCostParams()
	c := MakeDefaultCoster(params, nil)
	project := func(scalarFunc bool) memo.Cost {
		ci := makeInfo(opt.ComputeScalarOp, &memo.ComputeScalarPrivate{HasScalarFunc: scalarFunc}, 100, 8,
			makeChild(opt.TVFOp, 100, 8, 0))
		return c.ComputeCost(opt.ComputeScalarOp, ci)
	}
	require.True(t, floatcmp.EqualApprox(
		float64(project(false))+100*params.Unit(UnitScalarFunc), float64(project(true)), 1e-12, 0))
}
