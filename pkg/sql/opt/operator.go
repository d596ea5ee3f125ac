// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package opt

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Operator describes the type of operation that a physical memo expression
// performs. The set of operators is closed; every component that dispatches
// on Operator must handle all of them.
type Operator uint16

const (
	// UnknownOp is an unset operator.
	UnknownOp Operator = iota

	// -- Scans --

	// TableScanOp reads every row of a heap or append-only table.
	TableScanOp
	// DynamicTableScanOp reads the partitions of a partitioned table that
	// were selected at runtime by a PartitionSelector.
	DynamicTableScanOp
	// ExternalScanOp reads an external (foreign) table.
	ExternalScanOp
	// IndexScanOp probes an index and fetches matching heap rows.
	IndexScanOp
	// DynamicIndexScanOp is the partitioned counterpart of IndexScanOp.
	DynamicIndexScanOp
	// IndexOnlyScanOp answers the query from the index alone where the
	// visibility information allows it.
	IndexOnlyScanOp
	// BitmapTableScanOp builds a bitmap from one or more index probes and
	// fetches the matching heap pages.
	BitmapTableScanOp

	// -- Unary operators --

	FilterOp
	ComputeScalarOp
	LimitOp
	PartitionSelectorOp
	SpoolOp
	AssertOp
	SortOp

	// -- Aggregations --

	HashAggOp
	StreamAggOp
	ScalarAggOp

	// -- Joins --

	InnerHashJoinOp
	LeftOuterHashJoinOp
	LeftSemiHashJoinOp
	LeftAntiSemiHashJoinOp
	RightOuterHashJoinOp
	MergeJoinOp
	InnerNLJoinOp
	LeftOuterNLJoinOp
	LeftSemiNLJoinOp
	LeftAntiSemiNLJoinOp
	CorrelatedInnerNLJoinOp
	InnerIndexNLJoinOp
	LeftOuterIndexNLJoinOp

	// -- Windows, sequences and CTEs --

	SequenceProjectOp
	SequenceOp
	CTEProducerOp
	CTEConsumerOp

	// -- Set operations --

	UnionAllOp
	ParallelUnionAllOp

	// -- Motions --

	GatherMotionOp
	BroadcastMotionOp
	RedistributeMotionOp

	// -- Leaves --

	ConstTableGetOp
	TVFOp

	// NumOperators tracks the total count of operators.
	NumOperators
)

// ChildExecOrder is the order in which the children of an operator start
// producing rows.
type ChildExecOrder uint8

const (
	// LeftToRight children are executed in index order.
	LeftToRight ChildExecOrder = iota
	// RightToLeft children are executed in reverse index order. Hash joins
	// build their inner (right) side before probing with the outer side.
	RightToLeft
)

// VariadicArity is the arity of operators that accept any number of
// children (at least one).
const VariadicArity = -1

type opFlags uint32

const (
	scanFlag opFlags = 1 << iota
	dynamicScanFlag
	indexScanFlag
	joinFlag
	hashJoinFlag
	mergeJoinFlag
	nlJoinFlag
	indexNLJoinFlag
	aggFlag
	motionFlag
	unionFlag
)

// operatorInfo stores static information about an operator.
type operatorInfo struct {
	// name of the operator, used when printing expressions.
	name      string
	arity     int
	flags     opFlags
	execOrder ChildExecOrder
}

// operatorTab stores static information about all operators.
var operatorTab = [NumOperators]operatorInfo{
	UnknownOp: {name: "unknown"},

	TableScanOp:        {name: "table-scan", flags: scanFlag},
	DynamicTableScanOp: {name: "dynamic-table-scan", flags: scanFlag | dynamicScanFlag},
	ExternalScanOp:     {name: "external-scan", flags: scanFlag},
	IndexScanOp:        {name: "index-scan", flags: scanFlag | indexScanFlag},
	DynamicIndexScanOp: {name: "dynamic-index-scan", flags: scanFlag | dynamicScanFlag | indexScanFlag},
	IndexOnlyScanOp:    {name: "index-only-scan", flags: scanFlag | indexScanFlag},
	BitmapTableScanOp:  {name: "bitmap-table-scan", flags: scanFlag},

	FilterOp:            {name: "filter", arity: 1},
	ComputeScalarOp:     {name: "compute-scalar", arity: 1},
	LimitOp:             {name: "limit", arity: 1},
	PartitionSelectorOp: {name: "partition-selector", arity: 1},
	SpoolOp:             {name: "spool", arity: 1},
	AssertOp:            {name: "assert", arity: 1},
	SortOp:              {name: "sort", arity: 1},

	HashAggOp:   {name: "hash-agg", arity: 1, flags: aggFlag},
	StreamAggOp: {name: "stream-agg", arity: 1, flags: aggFlag},
	ScalarAggOp: {name: "scalar-agg", arity: 1, flags: aggFlag},

	InnerHashJoinOp:         {name: "inner-hash-join", arity: 2, flags: joinFlag | hashJoinFlag, execOrder: RightToLeft},
	LeftOuterHashJoinOp:     {name: "left-outer-hash-join", arity: 2, flags: joinFlag | hashJoinFlag, execOrder: RightToLeft},
	LeftSemiHashJoinOp:      {name: "left-semi-hash-join", arity: 2, flags: joinFlag | hashJoinFlag, execOrder: RightToLeft},
	LeftAntiSemiHashJoinOp:  {name: "left-anti-semi-hash-join", arity: 2, flags: joinFlag | hashJoinFlag, execOrder: RightToLeft},
	RightOuterHashJoinOp:    {name: "right-outer-hash-join", arity: 2, flags: joinFlag | hashJoinFlag, execOrder: RightToLeft},
	MergeJoinOp:             {name: "merge-join", arity: 2, flags: joinFlag | mergeJoinFlag},
	InnerNLJoinOp:           {name: "inner-nl-join", arity: 2, flags: joinFlag | nlJoinFlag},
	LeftOuterNLJoinOp:       {name: "left-outer-nl-join", arity: 2, flags: joinFlag | nlJoinFlag},
	LeftSemiNLJoinOp:        {name: "left-semi-nl-join", arity: 2, flags: joinFlag | nlJoinFlag},
	LeftAntiSemiNLJoinOp:    {name: "left-anti-semi-nl-join", arity: 2, flags: joinFlag | nlJoinFlag},
	CorrelatedInnerNLJoinOp: {name: "correlated-inner-nl-join", arity: 2, flags: joinFlag | nlJoinFlag},
	InnerIndexNLJoinOp:      {name: "inner-index-nl-join", arity: 2, flags: joinFlag | indexNLJoinFlag},
	LeftOuterIndexNLJoinOp:  {name: "left-outer-index-nl-join", arity: 2, flags: joinFlag | indexNLJoinFlag},

	SequenceProjectOp: {name: "sequence-project", arity: 1},
	SequenceOp:        {name: "sequence", arity: VariadicArity},
	CTEProducerOp:     {name: "cte-producer", arity: 1},
	CTEConsumerOp:     {name: "cte-consumer"},

	UnionAllOp:         {name: "union-all", arity: VariadicArity, flags: unionFlag},
	ParallelUnionAllOp: {name: "parallel-union-all", arity: VariadicArity, flags: unionFlag},

	GatherMotionOp:       {name: "gather-motion", arity: 1, flags: motionFlag},
	BroadcastMotionOp:    {name: "broadcast-motion", arity: 1, flags: motionFlag},
	RedistributeMotionOp: {name: "redistribute-motion", arity: 1, flags: motionFlag},

	ConstTableGetOp: {name: "const-table-get"},
	TVFOp:           {name: "tvf"},
}

var operatorByName = func() map[string]Operator {
	m := make(map[string]Operator, NumOperators)
	for op := Operator(1); op < NumOperators; op++ {
		m[operatorTab[op].name] = op
	}
	return m
}()

func (op Operator) String() string {
	if op >= NumOperators {
		return fmt.Sprintf("operator(%d)", op)
	}
	return operatorTab[op].name
}

// SafeValue implements the redact.SafeValue interface.
func (Operator) SafeValue() {}

// ParseOperator returns the operator with the given printed name.
func ParseOperator(name string) (Operator, error) {
	if op, ok := operatorByName[name]; ok {
		return op, nil
	}
	return UnknownOp, errors.Newf("unknown operator %q", name)
}

// Arity returns the number of children of the operator, or VariadicArity.
func (op Operator) Arity() int { return operatorTab[op].arity }

// ExecOrder returns the order in which the operator executes its children.
func (op Operator) ExecOrder() ChildExecOrder { return operatorTab[op].execOrder }

// IsScanOp returns true for operators that read a base relation.
func IsScanOp(op Operator) bool { return operatorTab[op].flags&scanFlag != 0 }

// IsDynamicScanOp returns true for scans of partitioned relations whose
// partitions are chosen by a PartitionSelector.
func IsDynamicScanOp(op Operator) bool { return operatorTab[op].flags&dynamicScanFlag != 0 }

// IsIndexScanOp returns true for scans whose output order is fixed by an
// index.
func IsIndexScanOp(op Operator) bool { return operatorTab[op].flags&indexScanFlag != 0 }

// IsJoinOp returns true for binary join operators.
func IsJoinOp(op Operator) bool { return operatorTab[op].flags&joinFlag != 0 }

// IsHashJoinOp returns true for hash joins.
func IsHashJoinOp(op Operator) bool { return operatorTab[op].flags&hashJoinFlag != 0 }

// IsMergeJoinOp returns true for merge joins.
func IsMergeJoinOp(op Operator) bool { return operatorTab[op].flags&mergeJoinFlag != 0 }

// IsNLJoinOp returns true for plain nested-loop joins.
func IsNLJoinOp(op Operator) bool { return operatorTab[op].flags&nlJoinFlag != 0 }

// IsIndexNLJoinOp returns true for index nested-loop joins.
func IsIndexNLJoinOp(op Operator) bool { return operatorTab[op].flags&indexNLJoinFlag != 0 }

// IsAggOp returns true for aggregations.
func IsAggOp(op Operator) bool { return operatorTab[op].flags&aggFlag != 0 }

// IsMotionOp returns true for operators that move rows between segments.
func IsMotionOp(op Operator) bool { return operatorTab[op].flags&motionFlag != 0 }

// IsUnionOp returns true for the union-all variants.
func IsUnionOp(op Operator) bool { return operatorTab[op].flags&unionFlag != 0 }
