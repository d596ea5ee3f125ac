// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package partprop

import (
	"github.com/cockroachdb/optcost/pkg/sql/opt"
	"github.com/cockroachdb/optcost/pkg/sql/opt/memo"
	"github.com/cockroachdb/optcost/pkg/sql/opt/props/physical"
)

// dpeRequest is the partition propagation sub-request in which a hash join
// attempts dynamic partition elimination. The other request propagates
// only what is required from above.
const dpeRequest = 0

// allowsDPE returns true for the hash joins that can skip partitions of
// their outer (probe) side that have no match on the inner (build) side.
// Joins that return every outer row cannot.
func allowsDPE(op opt.Operator) bool {
	switch op {
	case opt.InnerHashJoinOp, opt.LeftSemiHashJoinOp, opt.RightOuterHashJoinOp:
		return true
	}
	return false
}

// hashJoinBuildChildReqPartProp places a partition selector on the inner
// side for every dynamic scan of the outer side partitioned on an outer
// join key. The selector evaluates the partition key against the matching
// inner key while the hash table is built, and the outer scan reads only
// the selected partitions.
func hashJoinBuildChildReqPartProp(
	parent *memo.Expr, required *physical.PartitionPropagationSpec, childIdx, subReq int,
) *physical.PartitionPropagationSpec {
	res := defaultBuildChildReqPartProp(parent, required, childIdx, subReq)
	if subReq != dpeRequest || !allowsDPE(parent.Op()) {
		return res
	}

	p := parent.Private().(*memo.JoinPrivate)
	selector := opt.SelectorID(parent.ID())
	innerScans := parent.Child(1).Relational().Partitions.ScanIDs()
	for _, c := range parent.Child(0).Relational().Partitions {
		if required.Contains(c.ScanID) || innerScans.Contains(c.ScanID) {
			continue
		}
		keyIdx := -1
		for i, col := range p.OuterKeys {
			if col == c.PartKey && i < len(p.InnerKeys) {
				keyIdx = i
				break
			}
		}
		if keyIdx < 0 {
			continue
		}
		if childIdx == 0 {
			res.Insert(c.ScanID, physical.PartConsumer, c.RootRel, opt.MakeIDSet(selector), nil)
		} else {
			res.Insert(c.ScanID, physical.PartPropagator, c.RootRel, opt.MakeIDSet(selector),
				&physical.PartitionFilter{PartKey: c.PartKey, Key: p.InnerKeys[keyIdx]})
		}
	}
	return res
}
