// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package memo

import (
	"math"
	"strconv"
)

// Cost is the best-effort approximation of the actual cost of executing a
// particular operator tree. It has no units; costs are only meaningful when
// compared to each other.
type Cost float64

// MaxCost is the maximum possible estimated cost. It's used to suppress
// alternatives that should never be chosen.
var MaxCost = Cost(math.Inf(+1))

// Less returns true if this cost is lower than the given cost.
func (c Cost) Less(other Cost) bool {
	// Two plans with the same cost can have slightly different floating point
	// results (e.g. same subcosts being added up in a different order). So we
	// treat plans with very similar cost as equal.
	//
	// We use "units of least precision" for similarity: this is the number of
	// representable floating point numbers in-between the two values. This is
	// better than a fixed epsilon because the allowed error is proportional to
	// the magnitude of the numbers. Because the mantissa is in the low bits, we
	// can just use the bit representations as integers.
	const ulpTolerance = 1000
	return math.Float64bits(float64(c))+ulpTolerance <= math.Float64bits(float64(other))
}

// Equal returns true if neither cost is less than the other.
func (c Cost) Equal(other Cost) bool {
	return !c.Less(other) && !other.Less(c)
}

// Add adds the other cost to this cost.
func (c *Cost) Add(other Cost) {
	*c += other
}

// Max returns the larger of the two costs.
func (c Cost) Max(other Cost) Cost {
	if c.Less(other) {
		return other
	}
	return c
}

func (c Cost) String() string {
	return strconv.FormatFloat(float64(c), 'g', 6, 64)
}
