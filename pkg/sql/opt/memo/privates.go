// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package memo

import (
	"fmt"
	"reflect"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optcost/pkg/sql/opt"
	"github.com/cockroachdb/optcost/pkg/sql/opt/cat"
	"github.com/cockroachdb/optcost/pkg/sql/opt/props/physical"
)

// ScanPrivate is the private of TableScan and ExternalScan.
type ScanPrivate struct {
	Table cat.TableID
	Cols  opt.ColSet
}

// DynamicScanPrivate is the private of DynamicTableScan. The partitions it
// reads are chosen at run time by the PartitionSelector with the same
// ScanID.
type DynamicScanPrivate struct {
	ScanPrivate
	ScanID  opt.ScanID
	PartKey opt.ColumnID
}

// IndexScanPrivate is the private of the index scan family.
type IndexScanPrivate struct {
	Table cat.TableID
	Index cat.IndexID
	Cols  opt.ColSet

	// PredicateCols are the columns referenced by the index condition.
	PredicateCols opt.ColSet

	// ResidualCols are the columns of predicates that cannot be evaluated
	// against the index and are checked on every fetched row.
	ResidualCols opt.ColSet

	// KeyOrdering is the order in which the index returns rows.
	KeyOrdering physical.OrderSpec

	// ScanID and PartKey are only set for DynamicIndexScan.
	ScanID  opt.ScanID
	PartKey opt.ColumnID
}

// BitmapCondKind is the shape of a bitmap scan index condition.
type BitmapCondKind uint8

const (
	// BitmapIndexProbe is a single predicate probing one index.
	BitmapIndexProbe BitmapCondKind = iota
	// BitmapAnd intersects the bitmaps of several probes.
	BitmapAnd
	// BitmapOr unions the bitmaps of several probes.
	BitmapOr
)

func (k BitmapCondKind) String() string {
	switch k {
	case BitmapIndexProbe:
		return "probe"
	case BitmapAnd:
		return "and"
	case BitmapOr:
		return "or"
	}
	return fmt.Sprintf("bitmap-cond(%d)", k)
}

// BitmapCond describes the index condition of a bitmap table scan.
type BitmapCond struct {
	Kind BitmapCondKind

	// UsedCols are the index columns referenced by the condition.
	UsedCols opt.ColSet

	// IsInList is true if the condition is an IN predicate.
	IsInList bool

	// OuterRefEquality is true if the condition compares the index column to
	// an outer reference, in which case a single value is probed per rebind.
	OuterRefEquality bool
}

// BitmapScanPrivate is the private of BitmapTableScan.
type BitmapScanPrivate struct {
	Table cat.TableID
	Index cat.IndexID
	Cols  opt.ColSet
	Cond  BitmapCond
}

// FilterPrivate is the private of Filter. Cols are the columns referenced by
// the filter predicate.
type FilterPrivate struct {
	Cols opt.ColSet
}

// ComputeScalarPrivate is the private of ComputeScalar.
type ComputeScalarPrivate struct {
	// Used are the input columns referenced by the projections.
	Used opt.ColSet
	// Defined are the columns computed by the projections.
	Defined opt.ColSet
	// HasScalarFunc is true if any projection calls a scalar function.
	HasScalarFunc bool
}

// LimitPrivate is the private of Limit.
type LimitPrivate struct {
	Ordering physical.OrderSpec
	Count    int64
}

// SortPrivate is the private of Sort.
type SortPrivate struct {
	Ordering physical.OrderSpec
}

// SpoolPrivate is the private of Spool.
type SpoolPrivate struct {
	// Eager spools read their entire input before returning the first row.
	Eager bool
}

// PartitionSelectorPrivate is the private of PartitionSelector.
type PartitionSelectorPrivate struct {
	ScanID     opt.ScanID
	RootRel    cat.TableID
	SelectorID opt.SelectorID
	Filter     *physical.PartitionFilter
}

// AggStage identifies the role of an aggregate produced by splitting a
// distinct aggregation into several stages.
type AggStage uint8

const (
	// AggNotSplit is an aggregate that was not produced by a split.
	AggNotSplit AggStage = iota
	// AggTwoStage is part of a two-stage distinct aggregation.
	AggTwoStage
	// AggThreeStage is part of a three-stage distinct aggregation.
	AggThreeStage
)

func (s AggStage) String() string {
	switch s {
	case AggNotSplit:
		return "none"
	case AggTwoStage:
		return "two-stage"
	case AggThreeStage:
		return "three-stage"
	}
	return fmt.Sprintf("agg-stage(%d)", s)
}

// AggregatePrivate is the private of the aggregate operators.
type AggregatePrivate struct {
	GroupingCols opt.ColSet
	// AggCols are the input columns referenced by aggregate functions.
	AggCols opt.ColSet
	// Local is true for the first phase of a local/global split.
	Local bool
	Stage AggStage
	// SplitSource identifies the split transform that produced this plan.
	// Only plans with the same non-zero source compete on the stage count.
	SplitSource int
}

// JoinPrivate is the private of every join operator.
type JoinPrivate struct {
	// OuterKeys and InnerKeys are the equality columns of the join
	// condition, pairwise.
	OuterKeys []opt.ColumnID
	InnerKeys []opt.ColumnID
	// CondCols are all columns referenced by the join condition.
	CondCols opt.ColSet
	// SkewRatio is the sampled skew of the inner keys. 0 when unknown.
	SkewRatio float64
}

// NumJoinCols returns the number of columns in the join condition.
func (p *JoinPrivate) NumJoinCols() int {
	if n := p.CondCols.Len(); n > 0 {
		return n
	}
	return len(p.OuterKeys) + len(p.InnerKeys)
}

// WindowPrivate is the private of SequenceProject.
type WindowPrivate struct {
	PartitionCols opt.ColSet
	// OrderSpecs are the orderings of every window specification.
	OrderSpecs []physical.OrderSpec
}

// NumSortCols returns the number of sort columns across all window
// specifications.
func (p *WindowPrivate) NumSortCols() int {
	n := 0
	for _, o := range p.OrderSpecs {
		n += len(o)
	}
	return n
}

// CTEProducerPrivate is the private of CTEProducer.
type CTEProducerPrivate struct {
	ID   opt.CTEID
	Cols []opt.ColumnID
}

// CTEConsumerPrivate is the private of CTEConsumer.
type CTEConsumerPrivate struct {
	ID opt.CTEID
	// ColMap maps producer columns to the consumer columns that expose them.
	ColMap map[opt.ColumnID]opt.ColumnID
}

// MotionPrivate is the private of the motion operators.
type MotionPrivate struct {
	// MergeOrdering is the order a Gather preserves by merging its sorted
	// input streams. Empty for other motions.
	MergeOrdering physical.OrderSpec
	// HashCols are the distribution columns of a Redistribute.
	HashCols opt.ColSet
}

// privateTypes is the private type expected by each operator. A nil entry
// means the operator takes no private.
var privateTypes = [opt.NumOperators]reflect.Type{
	opt.TableScanOp:        reflect.TypeOf((*ScanPrivate)(nil)),
	opt.ExternalScanOp:     reflect.TypeOf((*ScanPrivate)(nil)),
	opt.DynamicTableScanOp: reflect.TypeOf((*DynamicScanPrivate)(nil)),
	opt.IndexScanOp:        reflect.TypeOf((*IndexScanPrivate)(nil)),
	opt.DynamicIndexScanOp: reflect.TypeOf((*IndexScanPrivate)(nil)),
	opt.IndexOnlyScanOp:    reflect.TypeOf((*IndexScanPrivate)(nil)),
	opt.BitmapTableScanOp:  reflect.TypeOf((*BitmapScanPrivate)(nil)),

	opt.FilterOp:            reflect.TypeOf((*FilterPrivate)(nil)),
	opt.ComputeScalarOp:     reflect.TypeOf((*ComputeScalarPrivate)(nil)),
	opt.LimitOp:             reflect.TypeOf((*LimitPrivate)(nil)),
	opt.PartitionSelectorOp: reflect.TypeOf((*PartitionSelectorPrivate)(nil)),
	opt.SpoolOp:             reflect.TypeOf((*SpoolPrivate)(nil)),
	opt.SortOp:              reflect.TypeOf((*SortPrivate)(nil)),

	opt.HashAggOp:   reflect.TypeOf((*AggregatePrivate)(nil)),
	opt.StreamAggOp: reflect.TypeOf((*AggregatePrivate)(nil)),
	opt.ScalarAggOp: reflect.TypeOf((*AggregatePrivate)(nil)),

	opt.SequenceProjectOp: reflect.TypeOf((*WindowPrivate)(nil)),
	opt.CTEProducerOp:     reflect.TypeOf((*CTEProducerPrivate)(nil)),
	opt.CTEConsumerOp:     reflect.TypeOf((*CTEConsumerPrivate)(nil)),

	opt.GatherMotionOp:       reflect.TypeOf((*MotionPrivate)(nil)),
	opt.BroadcastMotionOp:    reflect.TypeOf((*MotionPrivate)(nil)),
	opt.RedistributeMotionOp: reflect.TypeOf((*MotionPrivate)(nil)),
}

func init() {
	for op := opt.Operator(1); op < opt.NumOperators; op++ {
		if opt.IsJoinOp(op) {
			privateTypes[op] = reflect.TypeOf((*JoinPrivate)(nil))
		}
	}
}

// checkPrivate panics if the private does not have the type expected by the
// operator. Operators without a private type accept nil only.
func checkPrivate(op opt.Operator, private interface{}) {
	expected := privateTypes[op]
	if expected == nil {
		if private != nil {
			panic(errors.AssertionFailedf("%s does not take a private, got %T", op, private))
		}
		return
	}
	if private == nil || reflect.TypeOf(private) != expected || reflect.ValueOf(private).IsNil() {
		panic(errors.AssertionFailedf("%s expects private %s, got %T", op, expected, private))
	}
}
