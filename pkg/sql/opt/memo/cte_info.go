// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package memo

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optcost/pkg/sql/opt"
)

// CTEInfo records the CTE producers of a memo and how many consumer
// expressions reference each of them.
type CTEInfo struct {
	producers map[opt.CTEID]*Expr
	consumers map[opt.CTEID]int
}

func (c *CTEInfo) init() {
	c.producers = make(map[opt.CTEID]*Expr)
	c.consumers = make(map[opt.CTEID]int)
}

// addProducer registers the producer expression of a CTE. A CTE has at most
// one producer expression per memo.
func (c *CTEInfo) addProducer(id opt.CTEID, e *Expr) {
	if prev, ok := c.producers[id]; ok && prev != e {
		panic(errors.AssertionFailedf("CTE %d already has a producer", id))
	}
	c.producers[id] = e
}

func (c *CTEInfo) addConsumer(id opt.CTEID) {
	c.consumers[id]++
}

// Producer returns the producer expression of the CTE, or nil if none was
// added.
func (c *CTEInfo) Producer(id opt.CTEID) *Expr {
	return c.producers[id]
}

// ConsumersCount returns the number of consumer expressions that reference
// the CTE.
func (c *CTEInfo) ConsumersCount(id opt.CTEID) int {
	return c.consumers[id]
}

// ProducerIDs returns the ids of all CTEs with a producer, in increasing
// order.
func (c *CTEInfo) ProducerIDs() []opt.CTEID {
	var ids opt.IDSet[opt.CTEID]
	for id := range c.producers {
		ids.Add(id)
	}
	return ids.Ordered()
}
