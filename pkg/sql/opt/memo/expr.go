// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package memo

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optcost/pkg/sql/opt"
	"github.com/cockroachdb/optcost/pkg/sql/opt/props"
	"github.com/cockroachdb/optcost/pkg/util/syncutil"
)

// Expr is a physical operator in a memo group. Its children are groups.
type Expr struct {
	op       opt.Operator
	private  interface{}
	children []*Group
	group    *Group
	id       ExprID
	requests RequestEnumerator

	// reqCols memoizes ChildRequiredCols. Expressions may be costed by
	// several goroutines at once.
	reqCols struct {
		syncutil.Mutex
		cache map[reqColsKey]opt.ColSet
	}
}

type reqColsKey struct {
	cols      string
	childIdx  int
	scalarIdx int
}

// Op returns the operator of the expression.
func (e *Expr) Op() opt.Operator { return e.op }

// Private returns the operator-specific data of the expression.
func (e *Expr) Private() interface{} { return e.private }

// ID returns the memo-wide id of the expression.
func (e *Expr) ID() ExprID { return e.id }

// Group returns the group the expression belongs to.
func (e *Expr) Group() *Group { return e.group }

// Relational returns the logical properties of the expression's group.
func (e *Expr) Relational() *props.Relational { return e.group.rel }

// ChildCount returns the number of children.
func (e *Expr) ChildCount() int { return len(e.children) }

// Child returns the nth child group.
func (e *Expr) Child(nth int) *Group { return e.children[nth] }

// Requests returns the request enumerator of the expression.
func (e *Expr) Requests() *RequestEnumerator { return &e.requests }

// SetRequestCounts overrides the default request counts of the expression.
func (e *Expr) SetRequestCounts(order, distribution, rewindability, partProp int) {
	e.requests.SetCounts(order, distribution, rewindability, partProp)
}

// ExecOrder returns the child indexes in the order the children execute.
func (e *Expr) ExecOrder() []int {
	res := make([]int, len(e.children))
	for i := range res {
		if e.op.ExecOrder() == opt.RightToLeft {
			res[i] = len(res) - 1 - i
		} else {
			res[i] = i
		}
	}
	return res
}

// IsEagerSpool returns true if the expression is a Spool that reads its
// entire input before returning rows.
func (e *Expr) IsEagerSpool() bool {
	if e.op != opt.SpoolOp {
		return false
	}
	return e.private.(*SpoolPrivate).Eager
}

// NumScalars returns the number of scalar components of the expression.
func (e *Expr) NumScalars() int {
	switch e.private.(type) {
	case *FilterPrivate, *ComputeScalarPrivate, *JoinPrivate, *AggregatePrivate,
		*WindowPrivate, *SortPrivate, *LimitPrivate, *PartitionSelectorPrivate, *MotionPrivate:
		return 1
	}
	return 0
}

// ScalarCols returns the columns referenced by the scalar component with
// the given index.
func (e *Expr) ScalarCols(scalarIdx int) opt.ColSet {
	if scalarIdx < 0 || scalarIdx >= e.NumScalars() {
		panic(errors.AssertionFailedf("%s has no scalar %d", e.op, scalarIdx))
	}
	switch t := e.private.(type) {
	case *FilterPrivate:
		return t.Cols
	case *ComputeScalarPrivate:
		return t.Used
	case *JoinPrivate:
		return t.CondCols.Union(opt.MakeColSet(t.OuterKeys...)).Union(opt.MakeColSet(t.InnerKeys...))
	case *AggregatePrivate:
		return t.GroupingCols.Union(t.AggCols)
	case *WindowPrivate:
		cols := t.PartitionCols
		for _, o := range t.OrderSpecs {
			cols = cols.Union(o.ColSet())
		}
		return cols
	case *SortPrivate:
		return t.Ordering.ColSet()
	case *LimitPrivate:
		return t.Ordering.ColSet()
	case *PartitionSelectorPrivate:
		if t.Filter == nil {
			return opt.ColSet{}
		}
		return opt.MakeColSet(t.Filter.Key)
	case *MotionPrivate:
		return t.HashCols.Union(t.MergeOrdering.ColSet())
	}
	panic(errors.AssertionFailedf("unhandled private %T", e.private))
}

// DefinedCols returns the output columns the expression computes itself,
// rather than passing through from a child.
func (e *Expr) DefinedCols() opt.ColSet {
	defined := e.Relational().OutputCols
	for _, child := range e.children {
		defined = defined.Difference(child.rel.OutputCols)
	}
	if cs, ok := e.private.(*ComputeScalarPrivate); ok {
		defined = defined.Union(cs.Defined)
	}
	return defined
}

// ChildRequiredCols returns the columns that must be required of the child
// at childIdx to provide the required columns of the expression. If
// scalarIdx is not negative, the columns referenced by that scalar component
// are required as well. Columns the expression defines itself are never
// required of a child. The result is memoized per (required, childIdx,
// scalarIdx).
func (e *Expr) ChildRequiredCols(required opt.ColSet, childIdx, scalarIdx int) opt.ColSet {
	if childIdx < 0 || childIdx >= len(e.children) {
		panic(errors.AssertionFailedf("%s has no child %d", e.op, childIdx))
	}
	key := reqColsKey{cols: required.String(), childIdx: childIdx, scalarIdx: scalarIdx}

	e.reqCols.Lock()
	defer e.reqCols.Unlock()
	if cols, ok := e.reqCols.cache[key]; ok {
		return cols
	}

	cols := required
	if scalarIdx >= 0 {
		cols = cols.Union(e.ScalarCols(scalarIdx))
	}
	cols = cols.Difference(e.DefinedCols())
	cols = cols.Intersection(e.children[childIdx].rel.OutputCols)

	if e.reqCols.cache == nil {
		e.reqCols.cache = make(map[reqColsKey]opt.ColSet)
	}
	e.reqCols.cache[key] = cols
	return cols
}

func (e *Expr) String() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "%s#%d", e.op, e.id)
	if len(e.children) > 0 {
		buf.WriteByte('(')
		for i, c := range e.children {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString(c.String())
		}
		buf.WriteByte(')')
	}
	return buf.String()
}
