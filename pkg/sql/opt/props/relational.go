// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package props contains the logical properties shared by every expression
// of a memo group, along with the statistics interface consumed by the
// cost model.
package props

import (
	"sort"

	"github.com/cockroachdb/optcost/pkg/sql/opt"
	"github.com/cockroachdb/optcost/pkg/sql/opt/cat"
)

// Relational holds the logical properties of a relational group.
type Relational struct {
	// OutputCols is the set of columns produced by the group.
	OutputCols opt.ColSet

	// Partitions lists the dynamic scans that the group consumes.
	Partitions PartitionInfo

	// JoinDepth is the number of joins below and including the group's
	// root. Deeper join trees carry less reliable cardinality estimates.
	JoinDepth int

	// Stats is the cardinality estimate of the group.
	Stats Statistics
}

// PartitionConsumer describes one dynamic scan of a partitioned relation.
type PartitionConsumer struct {
	ScanID  opt.ScanID
	RootRel cat.TableID
	// PartKey is the partitioning column of the relation, as seen in the
	// scan's output.
	PartKey opt.ColumnID
}

// PartitionInfo is the set of partition consumers of a subtree, ordered by
// scan id.
type PartitionInfo []PartitionConsumer

// MakePartitionInfo returns the given consumers ordered by scan id.
func MakePartitionInfo(consumers ...PartitionConsumer) PartitionInfo {
	res := make(PartitionInfo, len(consumers))
	copy(res, consumers)
	sort.Slice(res, func(i, j int) bool { return res[i].ScanID < res[j].ScanID })
	return res
}

// ScanIDs returns the scan ids of the consumers.
func (p PartitionInfo) ScanIDs() opt.ScanIDSet {
	var s opt.ScanIDSet
	for i := range p {
		s.Add(p[i].ScanID)
	}
	return s
}

// Lookup returns the consumer with the given scan id.
func (p PartitionInfo) Lookup(id opt.ScanID) (PartitionConsumer, bool) {
	i := sort.Search(len(p), func(i int) bool { return p[i].ScanID >= id })
	if i < len(p) && p[i].ScanID == id {
		return p[i], true
	}
	return PartitionConsumer{}, false
}

// Union returns the consumers of both p and other. When both contain the
// same scan id, the entry of p is kept.
func (p PartitionInfo) Union(other PartitionInfo) PartitionInfo {
	if len(other) == 0 {
		return p
	}
	if len(p) == 0 {
		return other
	}
	res := make(PartitionInfo, 0, len(p)+len(other))
	i, j := 0, 0
	for i < len(p) || j < len(other) {
		switch {
		case j >= len(other) || (i < len(p) && p[i].ScanID < other[j].ScanID):
			res = append(res, p[i])
			i++
		case i >= len(p) || other[j].ScanID < p[i].ScanID:
			res = append(res, other[j])
			j++
		default:
			res = append(res, p[i])
			i++
			j++
		}
	}
	return res
}
