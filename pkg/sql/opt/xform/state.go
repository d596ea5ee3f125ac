// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform

import (
	"github.com/cockroachdb/optcost/pkg/sql/opt/memo"
	"github.com/cockroachdb/optcost/pkg/sql/opt/props/physical"
	"github.com/cockroachdb/optcost/pkg/util/syncutil"
)

// optState contains the best cost context of every group that is being
// optimized, per set of required properties.
type optState struct {
	mu struct {
		syncutil.Mutex
		stateMap map[groupStateKey]*groupState
	}
}

func (o *optState) init() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.mu.stateMap = make(map[groupStateKey]*groupState)
}

// groupStateKey associates groupState with a group that is being optimized
// with respect to a set of physical properties. Required properties are
// compared by value, so the key holds their printed form.
type groupStateKey struct {
	group    memo.GroupID
	required string
}

func makeGroupStateKey(grp memo.GroupID, required *physical.Required) groupStateKey {
	return groupStateKey{group: grp, required: required.String()}
}

// groupState is the state of one group optimized for one set of required
// properties.
type groupState struct {
	// best is the lowest cost valid context in the group for the required
	// properties.
	best *CostContext

	// required is the set of physical properties that must be provided by
	// the best context. A context that cannot provide these properties
	// cannot be the best context, no matter how low its cost.
	required *physical.Required

	// candidates is the number of valid contexts ratcheted against best.
	candidates int
}

// lookupOptState looks up the state associated with the given group and
// properties. If no state exists yet, then lookupOptState returns nil.
func (o *optState) lookupOptState(grp memo.GroupID, required *physical.Required) *groupState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.mu.stateMap[makeGroupStateKey(grp, required)]
}

// ratchet makes candidate the best context of its group if it is better
// than the current best. It returns the context that lost, if any.
func (o *optState) ratchet(
	candidate *CostContext, params *CostParams,
) (isBest bool, loser *CostContext) {
	key := makeGroupStateKey(candidate.Expr().Group().ID(), candidate.Required())

	o.mu.Lock()
	defer o.mu.Unlock()
	state := o.ensureOptStateLocked(key, candidate.Required())
	state.candidates++
	if state.best == nil {
		state.best = candidate
		return true, nil
	}
	if candidate == state.best {
		return true, nil
	}
	if candidate.IsBetterThan(state.best, params) {
		loser, state.best = state.best, candidate
		return true, loser
	}
	return false, candidate
}

// ensureOptStateLocked returns the state of the key, creating it if needed.
// o.mu must be held.
func (o *optState) ensureOptStateLocked(
	key groupStateKey, required *physical.Required,
) *groupState {
	o.mu.AssertHeld()
	state, ok := o.mu.stateMap[key]
	if !ok {
		state = &groupState{required: required}
		o.mu.stateMap[key] = state
	}
	return state
}
