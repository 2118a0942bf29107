package optimize

import "decomp/internal/cfg"

// Pass is a single rewrite pass over a function, matching the shape shared
// by internal/rewrite and internal/optimize: mutate in place, report
// whether anything changed.
type Pass func(fn *cfg.Function) bool

// RunToFixedPoint repeatedly applies every pass to fn, in order, until a
// full round leaves nothing changed. This is the driver spec §4.5-§4.7
// describe as running rewrites, propagation, and dead-code elimination
// over each function "until nothing changes"; function discovery (C7) and
// the pattern recognizers (C5) are folded in by the caller passing their
// entry points alongside these.
func RunToFixedPoint(fn *cfg.Function, passes ...Pass) {
	LocalVariableElimination(fn)
	for {
		changed := false
		for _, p := range passes {
			if p(fn) {
				changed = true
			}
		}
		if !changed {
			return
		}
	}
}

// StandardPasses is the propagation/DCE/cleanup portion of the fixed-point
// driver; callers typically run it interleaved with internal/rewrite's and
// internal/funcdisc's passes.
func StandardPasses() []Pass {
	return []Pass{
		PropagateFunction,
		EliminateDeadAssigns,
		UnusedVariableElimination,
		MergeBasicBlocks,
	}
}
