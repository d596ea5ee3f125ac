// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/logtags"
	"github.com/cockroachdb/optcost/pkg/sql/opt"
	"github.com/cockroachdb/optcost/pkg/sql/opt/cteprops"
	"github.com/cockroachdb/optcost/pkg/sql/opt/memo"
	"github.com/cockroachdb/optcost/pkg/sql/opt/ordering"
	"github.com/cockroachdb/optcost/pkg/sql/opt/partprop"
	"github.com/cockroachdb/optcost/pkg/sql/opt/props"
	"github.com/cockroachdb/optcost/pkg/sql/opt/props/physical"
	"github.com/cockroachdb/optcost/pkg/util/log"
	"github.com/cockroachdb/optcost/pkg/util/syncutil"
	"github.com/cockroachdb/redact"
)

// costingFailureLog limits the warnings of failed costings. A
// misconfigured unit fails every context that uses it.
var costingFailureLog = log.Every(time.Second)

// CostContextState is the lifecycle state of a CostContext.
type CostContextState uint8

const (
	// CostContextUncosted contexts have not been costed yet, or failed to.
	CostContextUncosted CostContextState = iota
	// CostContextCosted contexts carry a cost.
	CostContextCosted
	// CostContextPruned contexts lost to a better alternative.
	CostContextPruned
)

func (s CostContextState) String() string {
	switch s {
	case CostContextUncosted:
		return "uncosted"
	case CostContextCosted:
		return "costed"
	case CostContextPruned:
		return "pruned"
	}
	return "unknown"
}

// SafeValue implements the redact.SafeValue interface.
func (CostContextState) SafeValue() {}

// CostContext is one alternative of a memo group for a set of required
// properties: an expression, the request it answers and the best context of
// each of its children. Its statistics and derived properties are computed
// at most once.
type CostContext struct {
	expr     *memo.Expr
	required *physical.Required
	request  int
	children []*CostContext

	statsOnce sync.Once
	stats     props.Statistics

	derivedOnce  sync.Once
	derived      *physical.Derived
	// derivedPanic is the value recovered from a failed derivation.
	derivedPanic interface{}

	mu struct {
		syncutil.Mutex
		state CostContextState
		cost  memo.Cost
	}
}

// NewCostContext returns an uncosted context. children holds the best
// context of each child of expr, in child order. A nil required means no
// required properties.
func NewCostContext(
	expr *memo.Expr, required *physical.Required, request int, children []*CostContext,
) *CostContext {
	if len(children) != expr.ChildCount() {
		panic(errors.AssertionFailedf(
			"%s has %d children, got %d contexts",
			redact.Safe(expr.Op()), redact.Safe(expr.ChildCount()), redact.Safe(len(children))))
	}
	if n := expr.Requests().NumRequests(); request < 0 || request >= n {
		panic(errors.AssertionFailedf(
			"request %d out of range for %s with %d requests",
			redact.Safe(request), redact.Safe(expr.Op()), redact.Safe(n)))
	}
	if required == nil {
		required = physical.MinRequired
	}
	return &CostContext{expr: expr, required: required, request: request, children: children}
}

// Expr returns the costed expression.
func (c *CostContext) Expr() *memo.Expr { return c.expr }

// Required returns the properties the context must deliver.
func (c *CostContext) Required() *physical.Required { return c.required }

// Request returns the optimization request number of the expression.
func (c *CostContext) Request() int { return c.request }

// ChildCount returns the number of child contexts.
func (c *CostContext) ChildCount() int { return len(c.children) }

// Child returns the context of the nth child.
func (c *CostContext) Child(nth int) *CostContext { return c.children[nth] }

// State returns the lifecycle state of the context.
func (c *CostContext) State() CostContextState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mu.state
}

// Cost returns the cost of the context, or MaxCost if it is not costed.
func (c *CostContext) Cost() memo.Cost {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mu.state == CostContextUncosted {
		return memo.MaxCost
	}
	return c.mu.cost
}

// Stats returns the statistics of the expression's group.
func (c *CostContext) Stats() props.Statistics {
	c.statsOnce.Do(func() {
		c.stats = c.expr.Relational().Stats
	})
	return c.stats
}

// Derived returns the physical properties delivered by the expression with
// the chosen children. CTE consumers copy the properties of their producer
// from the CTE requirement.
func (c *CostContext) Derived() *physical.Derived {
	c.derivedOnce.Do(func() {
		defer func() {
			// A failed derivation fails every later call the same way.
			if r := recover(); r != nil {
				c.derivedPanic = r
			}
		}()
		children := make([]*physical.Derived, len(c.children))
		for i, child := range c.children {
			children[i] = child.Derived()
		}
		producers := c.required.CTEs.ProducerContext()
		c.derived = &physical.Derived{
			Ordering:             ordering.BuildDerived(c.expr, children, producers),
			CTEs:                 cteprops.BuildDerived(c.expr, children),
			PartitionPropagation: partprop.BuildDerived(c.expr, children, producers),
		}
	})
	if c.derivedPanic != nil {
		panic(c.derivedPanic)
	}
	return c.derived
}

// Enforcement combines the enforcement decisions of every property of the
// context.
func (c *CostContext) Enforcement() physical.EnforcementType {
	d := c.Derived()
	return ordering.Enforcement(c.expr, c.required.Ordering, d.Ordering).
		Combine(cteprops.Enforcement(c.expr, c.required.CTEs, d.CTEs)).
		Combine(partprop.Enforcement(c.expr, c.required.PartitionPropagation, d.PartitionPropagation))
}

// ComputeCost costs the context with the given coster. Every child context
// must already be costed. On failure the context stays uncosted and the
// assertion is returned as an error. Costing a costed context again is a
// no-op.
func (c *CostContext) ComputeCost(ctx context.Context, coster Coster) (err error) {
	ctx = logtags.AddTag(ctx, "expr", c.expr.String())
	defer func() {
		if r := recover(); r != nil {
			err = opt.CatchOptimizerError(r)
			if costingFailureLog.ShouldLog() {
				log.Warningf(ctx, "costing failed: %v", err)
			}
		}
	}()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mu.state != CostContextUncosted {
		return nil
	}
	for i, child := range c.children {
		if s := child.State(); s == CostContextUncosted {
			panic(errors.AssertionFailedf("child %d of %s is %s", redact.Safe(i), redact.Safe(c.expr.Op()), s))
		}
	}
	ci := makeCostingInfo(c.expr, c.Stats(), c.children)
	cost := coster.ComputeCost(c.expr.Op(), ci)
	c.mu.cost = cost
	c.mu.state = CostContextCosted
	if log.V(2) {
		log.VEventf(ctx, 2, "costed request %d: %s", c.request, cost)
	}
	return nil
}

// IsValid returns true if the costed context may be chosen as the best
// alternative of its group: its derived properties satisfy the required
// ones, and an eager spool does not hide a dynamic scan from a partition
// selector above it.
func (c *CostContext) IsValid(ctx context.Context) bool {
	if c.State() != CostContextCosted {
		return false
	}
	if c.expr.IsEagerSpool() && c.required.PartitionPropagation.IsUnsupportedCombination(true /* materializing */) {
		log.VEventf(ctx, 2, "%s: eager spool below partition selector", c.expr)
		return false
	}
	if d := c.Derived(); !d.Satisfies(c.required) {
		log.VEventf(ctx, 2, "%s: derived %s does not satisfy required %s", c.expr, d, c.required)
		return false
	}
	return true
}

// IsBetterThan returns true if c is cheaper than other. Contexts of equal
// cost are ordered by three rules, in priority order:
//
//  1. If configured, a three-stage distinct aggregate beats the two-stage
//     aggregate produced by the same split.
//  2. Of two joins with the same outer and inner row estimates, the one
//     whose inner child has fewer joins below it wins, since its hash table
//     or broadcast size is more reliable.
//  3. A streaming spool beats an eager one.
//
// Otherwise neither context is better.
func (c *CostContext) IsBetterThan(other *CostContext, params *CostParams) bool {
	cost, otherCost := c.Cost(), other.Cost()
	if cost.Less(otherCost) {
		return true
	}
	if otherCost.Less(cost) {
		return false
	}

	if params.PreferThreeStageDistinctAgg {
		if better, ok := compareAggStages(c, other); ok {
			return better
		}
	}
	if better, ok := compareJoinDepths(c, other); ok {
		return better
	}
	if c.expr.Op() == opt.SpoolOp && other.expr.Op() == opt.SpoolOp {
		return !c.expr.IsEagerSpool() && other.expr.IsEagerSpool()
	}
	return false
}

// compareAggStages returns ok if both contexts are aggregates of different
// stage counts produced by the same split.
func compareAggStages(c, other *CostContext) (better, ok bool) {
	a, aok := c.expr.Private().(*memo.AggregatePrivate)
	b, bok := other.expr.Private().(*memo.AggregatePrivate)
	if !aok || !bok || a.SplitSource == 0 || a.SplitSource != b.SplitSource {
		return false, false
	}
	switch {
	case a.Stage == memo.AggThreeStage && b.Stage == memo.AggTwoStage:
		return true, true
	case a.Stage == memo.AggTwoStage && b.Stage == memo.AggThreeStage:
		return false, true
	}
	return false, false
}

// compareJoinDepths returns ok if both contexts are joins with equal row
// estimates on both sides and different inner join depths.
func compareJoinDepths(c, other *CostContext) (better, ok bool) {
	if !opt.IsJoinOp(c.expr.Op()) || !opt.IsJoinOp(other.expr.Op()) {
		return false, false
	}
	for _, i := range [...]int{outerChild, innerChild} {
		if c.children[i].Stats().RowCount() != other.children[i].Stats().RowCount() {
			return false, false
		}
	}
	depth := c.children[innerChild].expr.Relational().JoinDepth
	otherDepth := other.children[innerChild].expr.Relational().JoinDepth
	if depth == otherDepth {
		return false, false
	}
	return depth < otherDepth, true
}

// Prune marks a costed context as having lost to a better alternative.
func (c *CostContext) Prune() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mu.state != CostContextCosted {
		panic(errors.AssertionFailedf("cannot prune %s context", c.mu.state))
	}
	c.mu.state = CostContextPruned
}

func (c *CostContext) String() string {
	return redact.Sprintf("%s req=%d %s", redact.Safe(c.expr.String()), c.request, c.State()).StripMarkers()
}
