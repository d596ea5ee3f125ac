// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package ordering

import (
	"github.com/cockroachdb/optcost/pkg/sql/opt/memo"
	"github.com/cockroachdb/optcost/pkg/sql/opt/props/physical"
)

// mergeJoinBuildChildReqOrdering requires both inputs sorted on their
// equality columns, pairwise.
func mergeJoinBuildChildReqOrdering(
	parent *memo.Expr, required physical.OrderSpec, childIdx int,
) physical.OrderSpec {
	p := parent.Private().(*memo.JoinPrivate)
	if childIdx == 0 {
		return physical.Asc(p.OuterKeys...)
	}
	return physical.Asc(p.InnerKeys...)
}

// nlJoinBuildChildReqOrdering passes the ordering to the outer child if the
// outer child produces all of its columns. Nested loop joins preserve the
// order of their outer input.
func nlJoinBuildChildReqOrdering(
	parent *memo.Expr, required physical.OrderSpec, childIdx int,
) physical.OrderSpec {
	if childIdx != 0 {
		return nil
	}
	if !required.ColSet().SubsetOf(parent.Child(0).Relational().OutputCols) {
		return nil
	}
	return required
}
