// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package memo

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// RequestDimension is one of the independent physical property dimensions
// an operator may vary when it requests properties from its children.
type RequestDimension uint8

const (
	// OrderRequests counts the sort order alternatives.
	OrderRequests RequestDimension = iota
	// DistributionRequests counts the data distribution alternatives.
	DistributionRequests
	// RewindabilityRequests counts the rewindability alternatives.
	RewindabilityRequests
	// PartitionPropagationRequests counts the partition propagation
	// alternatives.
	PartitionPropagationRequests

	numRequestDimensions
)

func (d RequestDimension) String() string {
	switch d {
	case OrderRequests:
		return "order"
	case DistributionRequests:
		return "distribution"
	case RewindabilityRequests:
		return "rewindability"
	case PartitionPropagationRequests:
		return "partition-propagation"
	}
	return fmt.Sprintf("dimension(%d)", d)
}

// Request is the tuple of per-dimension sub-request indexes encoded by one
// optimization request number.
type Request struct {
	Order                int
	Distribution         int
	Rewindability        int
	PartitionPropagation int
}

func (r Request) String() string {
	return fmt.Sprintf("(%d,%d,%d,%d)", r.Order, r.Distribution, r.Rewindability, r.PartitionPropagation)
}

// RequestEnumerator maps optimization request numbers to Request tuples.
// Each dimension has a request count, defaulting to 1. The table is laid
// out in row-major order: the order index varies slowest and the partition
// propagation index varies fastest.
//
// The zero value is not ready for use; call Init first.
type RequestEnumerator struct {
	counts [numRequestDimensions]int
	table  []Request
}

// Init sets every request count to 1.
func (e *RequestEnumerator) Init() {
	for i := range e.counts {
		e.counts[i] = 1
	}
	e.rebuild()
}

// SetCount sets the number of requests for one dimension and rebuilds the
// enumeration table.
func (e *RequestEnumerator) SetCount(dim RequestDimension, count int) {
	if count < 1 {
		panic(errors.AssertionFailedf("%s request count must be positive: %d", dim, count))
	}
	e.counts[dim] = count
	e.rebuild()
}

// SetCounts sets all four request counts at once.
func (e *RequestEnumerator) SetCounts(order, distribution, rewindability, partProp int) {
	for dim, count := range [numRequestDimensions]int{order, distribution, rewindability, partProp} {
		if count < 1 {
			panic(errors.AssertionFailedf(
				"%s request count must be positive: %d", RequestDimension(dim), count))
		}
		e.counts[dim] = count
	}
	e.rebuild()
}

// Count returns the number of requests for the given dimension.
func (e *RequestEnumerator) Count(dim RequestDimension) int {
	return e.counts[dim]
}

// NumRequests returns the total number of optimization requests, which is
// the product of the per-dimension counts.
func (e *RequestEnumerator) NumRequests() int {
	return len(e.table)
}

// Lookup returns the sub-request tuple for the given request number.
func (e *RequestEnumerator) Lookup(n int) Request {
	if n < 0 || n >= len(e.table) {
		panic(errors.AssertionFailedf("request %d out of range [0, %d)", n, len(e.table)))
	}
	return e.table[n]
}

func (e *RequestEnumerator) rebuild() {
	total := 1
	for _, c := range e.counts {
		total *= c
	}
	e.table = make([]Request, 0, total)
	for o := 0; o < e.counts[OrderRequests]; o++ {
		for d := 0; d < e.counts[DistributionRequests]; d++ {
			for r := 0; r < e.counts[RewindabilityRequests]; r++ {
				for p := 0; p < e.counts[PartitionPropagationRequests]; p++ {
					e.table = append(e.table, Request{
						Order:                o,
						Distribution:         d,
						Rewindability:        r,
						PartitionPropagation: p,
					})
				}
			}
		}
	}
}
