// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package xform costs the alternatives of a memo and chooses the best one of
// every group for each set of required physical properties.
package xform

import (
	"context"
	"runtime"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/logtags"
	"github.com/cockroachdb/optcost/pkg/sql/opt"
	"github.com/cockroachdb/optcost/pkg/sql/opt/cteprops"
	"github.com/cockroachdb/optcost/pkg/sql/opt/memo"
	"github.com/cockroachdb/optcost/pkg/sql/opt/ordering"
	"github.com/cockroachdb/optcost/pkg/sql/opt/partprop"
	"github.com/cockroachdb/optcost/pkg/sql/opt/props/physical"
	"github.com/cockroachdb/optcost/pkg/util/log"
	"github.com/cockroachdb/redact"
	"golang.org/x/sync/errgroup"
)

// Optimizer computes the required properties of children, costs cost
// contexts and keeps the best valid context of every group for each set of
// required properties.
type Optimizer struct {
	mem     *memo.Memo
	params  *CostParams
	coster  Coster
	metrics *Metrics
	state   optState
}

// New returns an optimizer for the given memo. If metrics is nil, fresh
// unregistered metrics are used.
func New(mem *memo.Memo, params *CostParams, metrics *Metrics) *Optimizer {
	if metrics == nil {
		metrics = MakeMetrics()
	}
	o := &Optimizer{
		mem:     mem,
		params:  params,
		coster:  MakeDefaultCoster(params, mem.Catalog()),
		metrics: metrics,
	}
	o.state.init()
	return o
}

// Memo returns the memo being optimized.
func (o *Optimizer) Memo() *memo.Memo { return o.mem }

// Params returns the cost parameters.
func (o *Optimizer) Params() *CostParams { return o.params }

// Metrics returns the outcome counters of the optimizer.
func (o *Optimizer) Metrics() *Metrics { return o.metrics }

// Coster returns the coster used to cost contexts.
func (o *Optimizer) Coster() Coster { return o.coster }

// SetCoster overrides the coster used to cost contexts.
func (o *Optimizer) SetCoster(coster Coster) { o.coster = coster }

// BuildChildRequired returns the physical properties required of the child
// at childIdx for the given optimization request of parent. prior holds the
// derived properties of the children that execute before it, in execution
// order.
func (o *Optimizer) BuildChildRequired(
	parent *memo.Expr, required *physical.Required, request, childIdx int, prior []*physical.Derived,
) *physical.Required {
	if required == nil {
		required = physical.MinRequired
	}
	req := parent.Requests().Lookup(request)
	scalarIdx := -1
	if parent.NumScalars() > 0 {
		scalarIdx = 0
	}
	return &physical.Required{
		Cols:     parent.ChildRequiredCols(required.Cols, childIdx, scalarIdx),
		Ordering: ordering.BuildChildRequired(parent, required.Ordering, childIdx, req.Order),
		CTEs:     cteprops.BuildChildRequired(parent, required.CTEs, childIdx, prior),
		PartitionPropagation: partprop.BuildChildRequired(
			parent, required.PartitionPropagation, childIdx, req.PartitionPropagation,
		),
	}
}

// ComputeCost costs one context. Its children must be costed.
func (o *Optimizer) ComputeCost(ctx context.Context, cc *CostContext) error {
	if err := cc.ComputeCost(ctx, o.coster); err != nil {
		o.metrics.Failed.Inc()
		return err
	}
	o.metrics.Costed.Inc()
	return nil
}

// ComputeCosts costs independent contexts concurrently. None of the
// contexts may be a descendant of another. The first error is returned
// once every started costing has finished.
func (o *Optimizer) ComputeCosts(ctx context.Context, contexts []*CostContext) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, cc := range contexts {
		cc := cc
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return o.ComputeCost(ctx, cc)
		})
	}
	return g.Wait()
}

// RatchetCost makes a costed context the best context of its group for its
// required properties if it is valid and better than the current best. The
// losing context is pruned. RatchetCost returns true if cc became the best
// context.
func (o *Optimizer) RatchetCost(ctx context.Context, cc *CostContext) (isBest bool, err error) {
	ctx = logtags.AddTag(ctx, "group", cc.Expr().Group().ID())
	defer func() {
		if r := recover(); r != nil {
			isBest, err = false, opt.CatchOptimizerError(r)
			log.Warningf(ctx, "ratchet failed: %v", err)
		}
	}()

	if s := cc.State(); s != CostContextCosted {
		panic(errors.AssertionFailedf("cannot ratchet %s context", s))
	}
	if !cc.IsValid(ctx) {
		o.metrics.Invalid.Inc()
		return false, nil
	}
	isBest, loser := o.state.ratchet(cc, o.params)
	if loser != nil {
		loser.Prune()
		o.metrics.Pruned.Inc()
	}
	log.VEventf(ctx, 3, "%s: best=%t cost=%s", redact.Safe(cc.Expr().String()), isBest, cc.Cost())
	return isBest, nil
}

// BestContext returns the best valid context of the group for the required
// properties, or nil if no context was ratcheted.
func (o *Optimizer) BestContext(grp *memo.Group, required *physical.Required) *CostContext {
	if required == nil {
		required = physical.MinRequired
	}
	state := o.state.lookupOptState(grp.ID(), required)
	if state == nil {
		return nil
	}
	o.state.mu.Lock()
	defer o.state.mu.Unlock()
	return state.best
}
