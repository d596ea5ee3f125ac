// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package optplan

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optcost/pkg/sql/opt"
	"github.com/cockroachdb/optcost/pkg/sql/opt/cat"
	"github.com/cockroachdb/optcost/pkg/sql/opt/memo"
	"github.com/cockroachdb/optcost/pkg/sql/opt/props/physical"
)

// PrivateSpec holds the operator-specific fields of a node. Each operator
// reads the fields it needs and ignores the others.
type PrivateSpec struct {
	Table cat.TableID    `yaml:"table"`
	Index cat.IndexID    `yaml:"index"`
	Cols  []opt.ColumnID `yaml:"cols"`

	ScanID  opt.ScanID   `yaml:"scan_id"`
	PartKey opt.ColumnID `yaml:"part_key"`

	PredicateCols []opt.ColumnID `yaml:"predicate_cols"`
	ResidualCols  []opt.ColumnID `yaml:"residual_cols"`
	Ordering      string         `yaml:"ordering"`

	Cond BitmapCondSpec `yaml:"cond"`

	Used       []opt.ColumnID `yaml:"used"`
	Defined    []opt.ColumnID `yaml:"defined"`
	ScalarFunc bool           `yaml:"scalar_func"`

	Count int64 `yaml:"count"`
	Eager bool  `yaml:"eager"`

	Rel        cat.TableID    `yaml:"rel"`
	SelectorID opt.SelectorID `yaml:"selector_id"`
	Filter     *FilterSpec    `yaml:"filter"`

	GroupingCols []opt.ColumnID `yaml:"grouping_cols"`
	AggCols      []opt.ColumnID `yaml:"agg_cols"`
	Local        bool           `yaml:"local"`
	Stage        string         `yaml:"stage"`
	SplitSource  int            `yaml:"split_source"`

	OuterKeys []opt.ColumnID `yaml:"outer_keys"`
	InnerKeys []opt.ColumnID `yaml:"inner_keys"`
	CondCols  []opt.ColumnID `yaml:"cond_cols"`
	SkewRatio float64        `yaml:"skew_ratio"`

	PartitionCols []opt.ColumnID `yaml:"partition_cols"`
	Orderings     []string       `yaml:"orderings"`

	ID     opt.CTEID                     `yaml:"id"`
	ColMap map[opt.ColumnID]opt.ColumnID `yaml:"col_map"`

	HashCols []opt.ColumnID `yaml:"hash_cols"`
}

// BitmapCondSpec describes the condition of a bitmap table scan.
type BitmapCondSpec struct {
	Kind             string         `yaml:"kind"`
	UsedCols         []opt.ColumnID `yaml:"used_cols"`
	InList           bool           `yaml:"in_list"`
	OuterRefEquality bool           `yaml:"outer_ref_equality"`
}

// FilterSpec is the partition filter of a partition selector.
type FilterSpec struct {
	PartKey opt.ColumnID `yaml:"part_key"`
	Key     opt.ColumnID `yaml:"key"`
}

func parseOrdering(s string) (physical.OrderSpec, error) {
	o, err := physical.ParseOrderSpec(s)
	if err != nil {
		return nil, errors.Wrapf(err, "ordering %q", s)
	}
	return o, nil
}

func parseAggStage(s string) (memo.AggStage, error) {
	switch s {
	case "", "none":
		return memo.AggNotSplit, nil
	case "two-stage":
		return memo.AggTwoStage, nil
	case "three-stage":
		return memo.AggThreeStage, nil
	}
	return 0, errors.Newf("unknown aggregate stage %q", s)
}

func parseBitmapCondKind(s string) (memo.BitmapCondKind, error) {
	switch s {
	case "", "probe":
		return memo.BitmapIndexProbe, nil
	case "and":
		return memo.BitmapAnd, nil
	case "or":
		return memo.BitmapOr, nil
	}
	return 0, errors.Newf("unknown bitmap condition %q", s)
}

// buildPrivate returns the memo private of the operator.
func (s *PrivateSpec) buildPrivate(op opt.Operator) (interface{}, error) {
	cols := opt.MakeColSet(s.Cols...)
	switch op {
	case opt.TableScanOp, opt.ExternalScanOp:
		return &memo.ScanPrivate{Table: s.Table, Cols: cols}, nil

	case opt.DynamicTableScanOp:
		return &memo.DynamicScanPrivate{
			ScanPrivate: memo.ScanPrivate{Table: s.Table, Cols: cols},
			ScanID:      s.ScanID,
			PartKey:     s.PartKey,
		}, nil

	case opt.IndexScanOp, opt.DynamicIndexScanOp, opt.IndexOnlyScanOp:
		ordering, err := parseOrdering(s.Ordering)
		if err != nil {
			return nil, err
		}
		return &memo.IndexScanPrivate{
			Table:         s.Table,
			Index:         s.Index,
			Cols:          cols,
			PredicateCols: opt.MakeColSet(s.PredicateCols...),
			ResidualCols:  opt.MakeColSet(s.ResidualCols...),
			KeyOrdering:   ordering,
			ScanID:        s.ScanID,
			PartKey:       s.PartKey,
		}, nil

	case opt.BitmapTableScanOp:
		kind, err := parseBitmapCondKind(s.Cond.Kind)
		if err != nil {
			return nil, err
		}
		return &memo.BitmapScanPrivate{
			Table: s.Table,
			Index: s.Index,
			Cols:  cols,
			Cond: memo.BitmapCond{
				Kind:             kind,
				UsedCols:         opt.MakeColSet(s.Cond.UsedCols...),
				IsInList:         s.Cond.InList,
				OuterRefEquality: s.Cond.OuterRefEquality,
			},
		}, nil

	case opt.FilterOp:
		return &memo.FilterPrivate{Cols: cols}, nil

	case opt.ComputeScalarOp:
		return &memo.ComputeScalarPrivate{
			Used:          opt.MakeColSet(s.Used...),
			Defined:       opt.MakeColSet(s.Defined...),
			HasScalarFunc: s.ScalarFunc,
		}, nil

	case opt.LimitOp:
		ordering, err := parseOrdering(s.Ordering)
		if err != nil {
			return nil, err
		}
		return &memo.LimitPrivate{Ordering: ordering, Count: s.Count}, nil

	case opt.SortOp:
		ordering, err := parseOrdering(s.Ordering)
		if err != nil {
			return nil, err
		}
		return &memo.SortPrivate{Ordering: ordering}, nil

	case opt.SpoolOp:
		return &memo.SpoolPrivate{Eager: s.Eager}, nil

	case opt.PartitionSelectorOp:
		p := &memo.PartitionSelectorPrivate{ScanID: s.ScanID, RootRel: s.Rel, SelectorID: s.SelectorID}
		if s.Filter != nil {
			p.Filter = &physical.PartitionFilter{PartKey: s.Filter.PartKey, Key: s.Filter.Key}
		}
		return p, nil

	case opt.HashAggOp, opt.StreamAggOp, opt.ScalarAggOp:
		stage, err := parseAggStage(s.Stage)
		if err != nil {
			return nil, err
		}
		return &memo.AggregatePrivate{
			GroupingCols: opt.MakeColSet(s.GroupingCols...),
			AggCols:      opt.MakeColSet(s.AggCols...),
			Local:        s.Local,
			Stage:        stage,
			SplitSource:  s.SplitSource,
		}, nil

	case opt.SequenceProjectOp:
		p := &memo.WindowPrivate{PartitionCols: opt.MakeColSet(s.PartitionCols...)}
		for _, o := range s.Orderings {
			ordering, err := parseOrdering(o)
			if err != nil {
				return nil, err
			}
			p.OrderSpecs = append(p.OrderSpecs, ordering)
		}
		return p, nil

	case opt.CTEProducerOp:
		return &memo.CTEProducerPrivate{ID: s.ID, Cols: s.Cols}, nil

	case opt.CTEConsumerOp:
		return &memo.CTEConsumerPrivate{ID: s.ID, ColMap: s.ColMap}, nil

	case opt.GatherMotionOp, opt.BroadcastMotionOp, opt.RedistributeMotionOp:
		ordering, err := parseOrdering(s.Ordering)
		if err != nil {
			return nil, err
		}
		return &memo.MotionPrivate{MergeOrdering: ordering, HashCols: opt.MakeColSet(s.HashCols...)}, nil

	case opt.SequenceOp, opt.AssertOp, opt.UnionAllOp, opt.ParallelUnionAllOp,
		opt.ConstTableGetOp, opt.TVFOp:
		return nil, nil
	}

	if opt.IsJoinOp(op) {
		if len(s.OuterKeys) != len(s.InnerKeys) {
			return nil, errors.Newf("%d outer keys and %d inner keys", len(s.OuterKeys), len(s.InnerKeys))
		}
		return &memo.JoinPrivate{
			OuterKeys: s.OuterKeys,
			InnerKeys: s.InnerKeys,
			CondCols:  opt.MakeColSet(s.CondCols...),
			SkewRatio: s.SkewRatio,
		}, nil
	}
	return nil, errors.Newf("no private for %s", op)
}
