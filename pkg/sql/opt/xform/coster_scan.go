// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform

import (
	"math"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optcost/pkg/sql/opt"
	"github.com/cockroachdb/optcost/pkg/sql/opt/cat"
	"github.com/cockroachdb/optcost/pkg/sql/opt/memo"
)

func (c *coster) lookupIndex(tabID cat.TableID, idxID cat.IndexID) (cat.Table, cat.Index) {
	if c.catalog == nil {
		panic(errors.AssertionFailedf("index scans cannot be costed without a catalog"))
	}
	tab, ok := c.catalog.Table(tabID)
	if !ok {
		panic(errors.AssertionFailedf("table %d not found", tabID))
	}
	idx, ok := c.catalog.Index(idxID)
	if !ok {
		panic(errors.AssertionFailedf("index %d not found", idxID))
	}
	if idx.Table() != tabID {
		panic(errors.AssertionFailedf("index %d belongs to table %d, not %d", idxID, idx.Table(), tabID))
	}
	return tab, idx
}

// computeIndexScanCost bills each row fetched through the index for its key
// comparisons, the heap fetch (only for invisible pages of an index-only
// scan) and the included columns. Key columns that the predicate does not
// constrain are traversed for nothing, which is billed in proportion to
// their position and selectivity.
func (c *coster) computeIndexScanCost(ci *CostingInfo, indexOnly bool) memo.Cost {
	p := ci.Private.(*memo.IndexScanPrivate)
	tab, idx := c.lookupIndex(p.Table, p.Index)

	filterUnit := c.unit(UnitIndexFilter)
	visibleFrac := 1.0
	if tab.Storage() == cat.AppendOnlyStorage {
		filterUnit *= appendOnlyFilterPenalty
		visibleFrac = 0
	} else if pages := tab.Pages(); pages > 0 {
		visibleFrac = 1 - tab.AllVisiblePages()/pages + visibilityEpsilon
	}

	fetchWidth := ci.Width * c.unit(UnitIndexScanTup)
	if indexOnly {
		fetchWidth *= visibleFrac
	}
	keys := float64(idx.KeyColumnCount())
	perRow := keys*filterUnit + fetchWidth + idx.IncludedColumnWidth()*c.unit(UnitIndexOnlyScanTup)

	residual := ci.Rows * float64(p.ResidualCols.Len()) * c.unit(UnitFilterCol)
	unused := ci.Rows * c.unusedIndexColumnWeight(ci, p.PredicateCols, tab, idx) * filterUnit

	return memo.Cost(ci.Rebinds * (ci.Rows*perRow + c.unit(UnitIndexScanTupRandomFactor) + residual + unused))
}

// unusedIndexColumnWeight walks the key columns of the index from the most
// significant. Every column that the predicate does not reference adds its
// position weight times its selectivity.
func (c *coster) unusedIndexColumnWeight(
	ci *CostingInfo, predicateCols opt.ColSet, tab cat.Table, idx cat.Index,
) float64 {
	tableRows := tab.RowCount()
	n := idx.KeyColumnCount()
	if tableRows <= 0 || n == 0 {
		return 0
	}
	var weight float64
	for i := 0; i < n; i++ {
		col := idx.KeyColumn(i)
		if predicateCols.Contains(col) {
			continue
		}
		ndv := math.Min(ci.Stats.DistinctCount(col), tableRows)
		weight += float64(n-i) / float64(n) * ndv / tableRows
	}
	return weight
}

// computeBitmapScanCost picks one of three formulas by the shape of the
// bitmap condition.
func (c *coster) computeBitmapScanCost(ci *CostingInfo) memo.Cost {
	p := ci.Private.(*memo.BitmapScanPrivate)
	tab, idx := c.lookupIndex(p.Table, p.Index)
	cond := &p.Cond

	linear := cond.Kind != memo.BitmapIndexProbe || cond.UsedCols.Len() > 1 ||
		(c.params.Model == LegacyCostModel && cond.IsInList && idx.Type() == cat.BtreeIndex && ci.Rows > 2)
	if linear {
		keys := math.Max(float64(cond.UsedCols.Len()), 1)
		perRow := keys*c.unit(UnitIndexFilter) + ci.Width*c.unit(UnitIndexScanTup)
		return memo.Cost(ci.Rebinds * (ci.Rows*perRow + c.unit(UnitIndexScanTupRandomFactor)))
	}

	ndv := 1.0
	if !cond.OuterRefEquality {
		if col, ok := cond.UsedCols.Next(0); ok {
			ndv = math.Max(ci.Stats.DistinctCount(col), 1)
		}
	}
	size := ci.Rows * ci.Width * bitmapSizeFactor

	ioUnit, pageUnit := c.unit(UnitBitmapIOLargeNDV), c.unit(UnitBitmapPageLargeNDV)
	if ndv <= c.unit(UnitBitmapNDVThreshold) {
		ioUnit, pageUnit = c.unit(UnitBitmapIOSmallNDV), c.unit(UnitBitmapPageSmallNDV)
	}
	if c.params.Model == LegacyCostModel {
		return memo.Cost(ci.Rebinds * (size*ioUnit + ndv*pageUnit))
	}

	// A btree probe returns row ids rather than one bitmap per key, so
	// nothing scales with the number of keys.
	var pageCost, unionCost float64
	if idx.Type() == cat.BitmapIndex {
		pageCost = ndv * c.unit(UnitBitmapPage)
		if tab.Storage() == cat.HeapStorage {
			unionCost = (ndv - 1) * tab.RowCount() * c.unit(UnitBitmapUnion)
		}
	}
	initScan := c.unit(UnitInitScanFactor) / ci.Rebinds
	return memo.Cost(ci.Rebinds*(size*ioUnit+pageCost+c.unit(UnitBitmapScanRebind)+unionCost) + initScan)
}
