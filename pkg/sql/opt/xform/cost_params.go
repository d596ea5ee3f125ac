// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optcost/pkg/settings"
	"github.com/cockroachdb/redact"
)

// CostUnit identifies one calibrated constant of the cost model.
type CostUnit int

const (
	UnitInitScanFactor CostUnit = iota
	UnitTableScan
	UnitIndexFilter
	UnitIndexScanTup
	UnitIndexScanTupRandomFactor
	UnitIndexOnlyScanTup

	UnitFilterCol
	UnitOutputTup
	UnitTupDefaultProc
	UnitScalarFunc
	UnitSortTupWidth
	UnitMaterialize

	UnitHashAggInputTupColumn
	UnitHashAggInputTupWidth
	UnitHashAggOutputTupWidth

	UnitHJSpillingMemThreshold
	UnitHJHashTableInitFactor
	UnitHJHashTableColumn
	UnitHJHashTableWidth
	UnitHJHashingTupWidth
	UnitHJFeedingTupColumn
	UnitHJFeedingTupWidth
	UnitHJOutputTup
	UnitHJHashTableColumnSpilling
	UnitHJHashTableWidthSpilling
	UnitHJHashingTupWidthSpilling
	UnitHJFeedingTupColumnSpilling
	UnitHJFeedingTupWidthSpilling
	UnitHJOutputTupSpilling

	UnitNLJFactor
	UnitIndexJoinAllowedRiskThreshold
	UnitPenalizeHJSkewUpperLimit

	UnitBitmapIOLargeNDV
	UnitBitmapPageLargeNDV
	UnitBitmapIOSmallNDV
	UnitBitmapPageSmallNDV
	UnitBitmapPage
	UnitBitmapNDVThreshold
	UnitBitmapScanRebind
	UnitBitmapUnion

	UnitGatherSend
	UnitGatherRecv
	UnitRedistributeSend
	UnitRedistributeRecv
	UnitBroadcastSend
	UnitBroadcastRecv

	numCostUnits
)

type costUnitDef struct {
	name  string
	desc  string
	value float64
}

// costUnitDefs lists the setting name suffix, description and default of
// every cost unit. The hash join spilling units are never smaller than the
// in-memory ones, so the cost cannot drop when the build side spills.
var costUnitDefs = [numCostUnits]costUnitDef{
	UnitInitScanFactor:           {"init_scan_factor", "fixed cost of starting a scan", 431},
	UnitTableScan:                {"table_scan_cost_unit", "cost of scanning one byte of a table", 5.50e-07},
	UnitIndexFilter:              {"index_filter_cost_unit", "cost of comparing one index key column", 1.65e-04},
	UnitIndexScanTup:             {"index_scan_tup_cost_unit", "cost of fetching one byte of a row through an index", 3.66e-06},
	UnitIndexScanTupRandomFactor: {"index_scan_tup_random_factor", "random IO penalty of an index scan", 6},
	UnitIndexOnlyScanTup:         {"index_only_scan_tup_cost_unit", "cost of reading one byte of an index leaf", 1e-06},

	UnitFilterCol:      {"filter_col_cost_unit", "cost of evaluating a predicate column for one row", 3.29e-05},
	UnitOutputTup:      {"output_tup_cost_unit", "cost of returning one byte of a scanned row", 1e-06},
	UnitTupDefaultProc: {"tup_default_proc_cost_unit", "default cost of processing one byte of a row", 1e-06},
	UnitScalarFunc:     {"scalar_func_cost_unit", "cost of calling a scalar function once", 1e-04},
	UnitSortTupWidth:   {"sort_tup_width_cost_unit", "cost of one sort comparison per byte", 5.67e-06},
	UnitMaterialize:    {"materialize_cost_unit", "cost of materializing one byte", 4.68e-06},

	UnitHashAggInputTupColumn: {"hash_agg_input_tup_column_cost_unit", "cost of hashing one grouping column", 1.67e-06},
	UnitHashAggInputTupWidth:  {"hash_agg_input_tup_width_cost_unit", "cost of hashing one byte of an input row", 1.16e-06},
	UnitHashAggOutputTupWidth: {"hash_agg_output_tup_width_cost_unit", "cost of returning one byte of an aggregate row", 2.5e-07},

	UnitHJSpillingMemThreshold:     {"hj_spilling_mem_threshold", "size in bytes above which the hash table spills", 52428800},
	UnitHJHashTableInitFactor:      {"hj_hash_table_init_cost_factor", "fixed cost of a spilling hash table", 500},
	UnitHJHashTableColumn:          {"hj_hash_table_column_cost_unit", "cost of inserting one key column", 5e-05},
	UnitHJHashTableWidth:           {"hj_hash_table_width_cost_unit", "cost of inserting one byte", 3e-06},
	UnitHJHashingTupWidth:          {"hj_hashing_tup_width_cost_unit", "cost of probing with one byte", 1.97e-08},
	UnitHJFeedingTupColumn:         {"hj_feeding_tup_column_cost_unit", "cost of feeding one key column", 1.9e-07},
	UnitHJFeedingTupWidth:          {"hj_feeding_tup_width_cost_unit", "cost of feeding one byte", 8.69e-09},
	UnitHJOutputTup:                {"hj_output_tup_cost_unit", "cost of returning one joined row", 4.5e-07},
	UnitHJHashTableColumnSpilling:  {"hj_hash_table_column_cost_unit_spilling", "spilling variant of hj_hash_table_column_cost_unit", 1e-04},
	UnitHJHashTableWidthSpilling:   {"hj_hash_table_width_cost_unit_spilling", "spilling variant of hj_hash_table_width_cost_unit", 6e-06},
	UnitHJHashingTupWidthSpilling:  {"hj_hashing_tup_width_cost_unit_spilling", "spilling variant of hj_hashing_tup_width_cost_unit", 3.9e-08},
	UnitHJFeedingTupColumnSpilling: {"hj_feeding_tup_column_cost_unit_spilling", "spilling variant of hj_feeding_tup_column_cost_unit", 3.9e-07},
	UnitHJFeedingTupWidthSpilling:  {"hj_feeding_tup_width_cost_unit_spilling", "spilling variant of hj_feeding_tup_width_cost_unit", 1.74e-08},
	UnitHJOutputTupSpilling:        {"hj_output_tup_cost_unit_spilling", "spilling variant of hj_output_tup_cost_unit", 9e-07},

	UnitNLJFactor:                     {"nlj_factor", "penalty of nested-loop joins", 1},
	UnitIndexJoinAllowedRiskThreshold: {"index_join_allowed_risk_threshold", "estimation risk above which joins are penalized", 3},
	UnitPenalizeHJSkewUpperLimit:      {"penalize_hj_skew_upper_limit", "largest hash join skew penalty", 10},

	UnitBitmapIOLargeNDV:   {"bitmap_io_cost_large_ndv", "bitmap IO cost per byte for many distinct keys", 0.0082},
	UnitBitmapPageLargeNDV: {"bitmap_page_cost_large_ndv", "bitmap page cost for many distinct keys", 83},
	UnitBitmapIOSmallNDV:   {"bitmap_io_cost_small_ndv", "bitmap IO cost per byte for few distinct keys", 0.0135},
	UnitBitmapPageSmallNDV: {"bitmap_page_cost_small_ndv", "bitmap page cost for few distinct keys", 204},
	UnitBitmapPage:         {"bitmap_page_cost", "bitmap page cost per distinct key", 10},
	UnitBitmapNDVThreshold: {"bitmap_ndv_threshold", "distinct key count separating the bitmap formulas", 200},
	UnitBitmapScanRebind:   {"bitmap_scan_rebind_cost", "cost of rescanning a bitmap", 0.06},
	UnitBitmapUnion:        {"bitmap_union_cost_unit", "cost of OR-ing one row of two bitmaps", 1e-06},

	UnitGatherSend:       {"gather_send", "cost of sending one byte to the coordinator", 4.58e-06},
	UnitGatherRecv:       {"gather_recv", "cost of receiving one byte on the coordinator", 2.2e-06},
	UnitRedistributeSend: {"redistribute_send", "cost of sending one byte to a hashed segment", 2.33e-06},
	UnitRedistributeRecv: {"redistribute_recv", "cost of receiving one redistributed byte", 8e-07},
	UnitBroadcastSend:    {"broadcast_send", "cost of sending one byte to every segment", 4.965e-05},
	UnitBroadcastRecv:    {"broadcast_recv", "cost of receiving one broadcast byte", 1.35e-06},
}

// Key returns the name of the setting that holds the unit.
func (u CostUnit) Key() string {
	return "sql.opt.cost." + costUnitDefs[u].name
}

func (u CostUnit) String() string {
	if u < 0 || u >= numCostUnits {
		return "unknown"
	}
	return costUnitDefs[u].name
}

// SafeValue implements the redact.SafeValue interface.
func (CostUnit) SafeValue() {}

// CostModel selects between the original and the calibrated variants of the
// formulas that differ between them.
type CostModel int64

const (
	// LegacyCostModel is the original model.
	LegacyCostModel CostModel = iota
	// CalibratedCostModel uses the calibrated bitmap scan formula.
	CalibratedCostModel
)

var costUnitSettings = func() (res [numCostUnits]*settings.FloatSetting) {
	for u := CostUnit(0); u < numCostUnits; u++ {
		res[u] = settings.RegisterFloatSetting(
			u.Key(), costUnitDefs[u].desc, costUnitDefs[u].value, settings.PositiveFloat,
		)
	}
	return res
}()

var costModelSetting = settings.RegisterEnumSetting(
	"sql.opt.cost.model",
	"cost model used to cost plans",
	"legacy",
	map[int64]string{
		int64(LegacyCostModel):     "legacy",
		int64(CalibratedCostModel): "calibrated",
	},
)

var preferThreeStageDistinctAgg = settings.RegisterBoolSetting(
	"sql.opt.cost.prefer_three_stage_distinct_agg",
	"prefer a three-stage distinct aggregate over a two-stage one of equal cost",
	false,
)

var hashJoinSkewEnabled = settings.RegisterBoolSetting(
	"sql.opt.cost.hash_join_skew.enabled",
	"penalize hash joins whose build side has a skewed key distribution",
	false,
)

var segmentsSetting = settings.RegisterFloatSetting(
	"sql.opt.cost.segments",
	"number of segments a broadcast motion sends each row to",
	1,
	settings.PositiveFloat,
)

// CostParams is an immutable snapshot of the cost units and flags, taken
// when costing starts.
type CostParams struct {
	units [numCostUnits]float64

	Model                       CostModel
	Segments                    float64
	PreferThreeStageDistinctAgg bool
	EnableHashJoinSkew          bool
}

// MakeCostParams snapshots the cost settings of sv.
func MakeCostParams(sv *settings.Values) *CostParams {
	p := &CostParams{
		Model:                       CostModel(costModelSetting.Get(sv)),
		Segments:                    segmentsSetting.Get(sv),
		PreferThreeStageDistinctAgg: preferThreeStageDistinctAgg.Get(sv),
		EnableHashJoinSkew:          hashJoinSkewEnabled.Get(sv),
	}
	for u := range p.units {
		p.units[u] = costUnitSettings[u].Get(sv)
	}
	return p
}

// DefaultCostParams returns the parameters of an unmodified setting set.
func DefaultCostParams() *CostParams {
	return MakeCostParams(settings.MakeValues())
}

// Unit returns the value of the given cost unit.
func (p *CostParams) Unit(u CostUnit) float64 {
	return p.units[u]
}

// WithUnit returns a copy of p with the given unit replaced. The value is
// not validated, so that tests can exercise invalid configurations.
func (p *CostParams) WithUnit(u CostUnit, v float64) *CostParams {
	res := *p
	res.units[u] = v
	return &res
}

// unit returns the value of the given cost unit. Every unit must be strictly
// positive.
func (p *CostParams) unit(u CostUnit) float64 {
	v := p.units[u]
	if !(v > 0) {
		panic(errors.AssertionFailedf("cost unit %s must be positive, got %v", u, redact.Safe(v)))
	}
	return v
}
