// Package optimize implements spec §4.6/§4.7 (C6): propagation of
// definitions to uses and dead-code elimination, plus the BB-merging and
// unused-variable cleanup passes that ride alongside them in the
// fixed-point driver.
package optimize

import (
	"sort"

	"decomp/internal/cfg"
	"decomp/internal/dataflow"
	"decomp/internal/expr"
)

// PropagateFunction attempts, for every identifier used anywhere in fn, to
// replace it with its unique reaching definition (spec §4.6), reporting
// whether anything changed.
func PropagateFunction(fn *cfg.Function) bool {
	changed := false
	var pending []pendingReplacement
	var removals []pendingRemoval
	for _, b := range fn.Nodes() {
		for i, instr := range b.Instructions {
			propagateInstruction(fn, b, i, instr, &changed, &pending, &removals)
		}
		if b.Terminator != nil {
			propagateInstruction(fn, b, len(b.Instructions), b.Terminator, &changed, &pending, &removals)
		}
	}
	// Applied only after the full scan, the same collect-then-apply shape
	// as the originating propagation pass: replacing a use instruction
	// mid-scan would perturb the very indices the scan is iterating over.
	for _, p := range pending {
		p.block.ReplaceInstructionAt(p.idx, p.instr)
	}
	applyRemovals(removals)
	return changed
}

// pendingReplacement defers a whole-instruction swap (spec §4.6 step 4)
// discovered by tryPropagateVMCall.
type pendingReplacement struct {
	block *cfg.BasicBlock
	idx   int
	instr *cfg.Instruction
}

// pendingRemoval defers dropping a vmcall/call definition that tryPropagateVMCall
// folded into its one use site, so the call isn't left behind to execute a
// second time.
type pendingRemoval struct {
	block *cfg.BasicBlock
	idx   int
}

// applyRemovals drops the indices recorded in removals, highest index first
// per block, so removing one entry never shifts the index another entry in
// the same block still needs.
func applyRemovals(removals []pendingRemoval) {
	byBlock := map[*cfg.BasicBlock][]int{}
	for _, r := range removals {
		byBlock[r.block] = append(byBlock[r.block], r.idx)
	}
	for b, idxs := range byBlock {
		sort.Sort(sort.Reverse(sort.IntSlice(idxs)))
		for _, idx := range idxs {
			b.Instructions = append(b.Instructions[:idx], b.Instructions[idx+1:]...)
		}
	}
}

func propagateInstruction(fn *cfg.Function, useBlock *cfg.BasicBlock, useIdx int, instr *cfg.Instruction, changed *bool, pending *[]pendingReplacement, removals *[]pendingRemoval) {
	if repl, defBlock, defIdx, ok := tryPropagateVMCall(fn, useBlock, useIdx, instr); ok {
		*pending = append(*pending, pendingReplacement{block: useBlock, idx: useIdx, instr: repl})
		*removals = append(*removals, pendingRemoval{block: defBlock, idx: defIdx})
		*changed = true
		return
	}
	propagateInstructionArgs(fn, useBlock, useIdx, instr, changed)
}

// tryPropagateVMCall implements spec §4.6 step 4: when instr's Args are, in
// order, exactly the results of one vmcall/call definition, and that
// definition's results are used nowhere else in fn, the whole use
// instruction is replaced by a fresh vmcall/call carrying the definition's
// own args and the use instruction's own original results, and the original
// definition is dropped — moving the call to its use site rather than
// inlining one sub-expression at a time the way tryPropagate does for
// ordinary assigns. Leaving the original definition behind would execute
// its side effect a second time, which is exactly what this whole-
// instruction rewrite exists to avoid.
func tryPropagateVMCall(fn *cfg.Function, useBlock *cfg.BasicBlock, useIdx int, instr *cfg.Instruction) (*cfg.Instruction, *cfg.BasicBlock, int, bool) {
	if len(instr.Args) == 0 {
		return nil, nil, 0, false
	}
	var def *cfg.Instruction
	var defBlock *cfg.BasicBlock
	var defIdx int
	for i, a := range instr.Args {
		if !expr.IsIdentifier(a) {
			return nil, nil, 0, false
		}
		db, di, d, ok := getCertainDefinition(useBlock, useIdx, a)
		if !ok || (d.Kind != cfg.InstrVMCall && d.Kind != cfg.InstrCall) {
			return nil, nil, 0, false
		}
		if def == nil {
			def, defBlock, defIdx = d, db, di
		} else if d != def {
			return nil, nil, 0, false
		}
		if i >= len(def.Results) || !dataflow.MustBeEqual(def.Results[i], a, defBlock == useBlock) {
			return nil, nil, 0, false
		}
	}
	if len(instr.Args) != len(def.Results) {
		return nil, nil, 0, false
	}
	if !pathIsSafe(fn, defBlock, defIdx, def, useBlock, useIdx) {
		return nil, nil, 0, false
	}
	if !onlyUseIsHere(defBlock, defIdx, def, useBlock, useIdx) {
		return nil, nil, 0, false
	}

	args := make([]expr.Expression, len(def.Args))
	for i, a := range def.Args {
		args[i] = a.Copy()
	}
	results := make([]expr.Expression, len(instr.Results))
	for i, r := range instr.Results {
		results[i] = r.Copy()
	}
	if def.Kind == cfg.InstrVMCall {
		return cfg.NewVMCall(results, def.Loc.VMCall, args), defBlock, defIdx, true
	}
	return cfg.NewCall(results, def.Loc.Callee, args), defBlock, defIdx, true
}

// onlyUseIsHere reports whether every one of def's results is used at
// exactly useBlock/useIdx and nowhere else in fn, forward from def's
// program point. A vmcall/call result read at more than one site cannot be
// folded into any single use without duplicating the call.
func onlyUseIsHere(defBlock *cfg.BasicBlock, defIdx int, def *cfg.Instruction, useBlock *cfg.BasicBlock, useIdx int) bool {
	ex := dataflow.NewExplorer()
	for _, r := range def.Results {
		if !expr.IsIdentifier(r) {
			continue
		}
		single := true
		err := ex.Explore(dataflow.ProgramPoint{Block: defBlock, Instr: defIdx}, r, dataflow.Forward, dataflow.Handlers{
			OnMayUse: func(at dataflow.ProgramPoint) dataflow.HandlerResult {
				if at.Block == useBlock && at.Instr == useIdx {
					return dataflow.Continue
				}
				single = false
				return dataflow.StopExploringAltogether
			},
		})
		if err != nil || !single {
			return false
		}
	}
	return true
}

func propagateInstructionArgs(fn *cfg.Function, useBlock *cfg.BasicBlock, useIdx int, instr *cfg.Instruction, changed *bool) {
	for i, a := range instr.Args {
		instr.Args[i] = expr.Transform(a, func(node expr.Expression) expr.Expression {
			if !expr.IsIdentifier(node) {
				return node
			}
			if repl, ok := tryPropagate(fn, useBlock, useIdx, node); ok {
				*changed = true
				return repl
			}
			return node
		})
	}
}

// tryPropagate attempts to substitute id (used at useBlock/useIdx) with its
// unique reaching definition's RHS.
func tryPropagate(fn *cfg.Function, useBlock *cfg.BasicBlock, useIdx int, id expr.Expression) (expr.Expression, bool) {
	defBlock, defIdx, def, ok := getCertainDefinition(useBlock, useIdx, id)
	if !ok {
		return nil, false
	}
	if _, isUnused := def.Args[0].(expr.UnusedValue); isUnused {
		// spec §4.6 step 5: UnusedValue is never propagated.
		return nil, false
	}

	if def.Kind == cfg.InstrVMCall || def.Kind == cfg.InstrCall {
		// spec §4.6 step 4 handles this case as a whole-instruction
		// replacement (tryPropagateVMCall, applied from PropagateFunction);
		// inlining the call at this expression-level substitution site
		// would duplicate its side effects, so it is left untouched here.
		return nil, false
	}

	rhs := def.Args[0]
	if containsStack(rhs) && defBlock != useBlock {
		// spec §4.6 step 3 requires rebasing Stack(o) by the accumulated sp
		// offset when propagation crosses blocks. Doing that correctly needs
		// a single concrete path's summed sp_delta; with branching CFGs the
		// "accumulated offset" is path-dependent, so cross-block propagation
		// of a Stack-containing RHS is conservatively skipped rather than
		// risking a wrong rebasing.
		return nil, false
	}

	if !pathIsSafe(fn, defBlock, defIdx, def, useBlock, useIdx) {
		return nil, false
	}
	return rhs.Copy(), true
}

func containsStack(e expr.Expression) bool {
	found := false
	expr.Walk(e, func(n expr.Expression) {
		if _, ok := n.(*expr.Stack); ok {
			found = true
		}
	})
	return found
}

// getCertainDefinition implements spec §4.6 step 1: walk backward from the
// use point until every path has hit a must_define of id, and fail if any
// path instead hits a may_define that isn't also a must_define, or never
// resolves to exactly one instruction.
func getCertainDefinition(useBlock *cfg.BasicBlock, useIdx int, id expr.Expression) (*cfg.BasicBlock, int, *cfg.Instruction, bool) {
	type found struct {
		block *cfg.BasicBlock
		idx   int
		instr *cfg.Instruction
	}
	defs := map[*cfg.Instruction]found{}
	seen := map[*cfg.BasicBlock]bool{}

	var walk func(b *cfg.BasicBlock, fromIdx int) bool
	walk = func(b *cfg.BasicBlock, fromIdx int) bool {
		sameBB := b == useBlock
		for idx := fromIdx; idx >= 0; idx-- {
			instr := b.Instructions[idx]
			if len(instr.Results) == 0 || !expr.IsIdentifier(instr.Results[0]) {
				continue
			}
			lhs := instr.Results[0]
			switch {
			case dataflow.MustBeEqual(lhs, id, sameBB):
				defs[instr] = found{b, idx, instr}
				return true
			case dataflow.MayBeEqual(lhs, id, sameBB):
				return false
			}
		}
		if seen[b] {
			return true
		}
		seen[b] = true
		if len(b.Predecessors) == 0 {
			// Reached function entry without a definition: id is live-in
			// (a parameter, or a Stack slot from the caller's frame) and
			// there is nothing to propagate from on this path.
			return false
		}
		ok := true
		for _, p := range b.Predecessors {
			if !walk(p, len(p.Instructions)-1) {
				ok = false
			}
		}
		return ok
	}

	if !walk(useBlock, useIdx-1) || len(defs) != 1 {
		return nil, 0, nil, false
	}
	for _, f := range defs {
		return f.block, f.idx, f.instr, true
	}
	return nil, 0, nil, false
}

// pathIsSafe implements spec §4.6 step 2: no sub-identifier of the RHS may
// be redefined between def and use, the LHS may not be used anywhere in
// between, and an unmodeled call's Mem/Storage side effects block
// propagation just like an explicit redefinition would.
func pathIsSafe(fn *cfg.Function, defBlock *cfg.BasicBlock, defIdx int, def *cfg.Instruction, useBlock *cfg.BasicBlock, useIdx int) bool {
	lhss := def.Results
	var rhsIDs []expr.Expression
	for _, a := range def.Args {
		expr.Walk(a, func(n expr.Expression) {
			if expr.IsIdentifier(n) {
				rhsIDs = append(rhsIDs, n)
			}
		})
	}

	hazard := func(instr *cfg.Instruction, sameBB bool) bool {
		for _, r := range instr.Results {
			if !expr.IsIdentifier(r) {
				continue
			}
			for _, rid := range rhsIDs {
				if dataflow.MayBeEqual(r, rid, sameBB) {
					return true
				}
			}
		}
		if isNonPureCall(instr) {
			for _, rid := range rhsIDs {
				if isMemOrStorageKind(rid) {
					return true
				}
			}
		}
		for _, a := range instr.Args {
			var used []expr.Expression
			expr.Walk(a, func(n expr.Expression) {
				if expr.IsIdentifier(n) {
					used = append(used, n)
				}
			})
			for _, u := range used {
				for _, lhs := range lhss {
					if dataflow.MayBeEqual(u, lhs, sameBB) {
						return true
					}
				}
			}
		}
		return false
	}

	if defBlock == useBlock {
		for idx := defIdx + 1; idx < useIdx; idx++ {
			if hazard(defBlock.Instructions[idx], true) {
				return false
			}
		}
		return true
	}

	between := blocksBetween(fn, defBlock, useBlock)
	if between == nil {
		// def and use are not connected by any path this simplified
		// approximation can establish; refuse rather than guess.
		return false
	}
	for idx := defIdx + 1; idx < len(defBlock.Instructions); idx++ {
		if hazard(defBlock.Instructions[idx], false) {
			return false
		}
	}
	for idx := 0; idx < useIdx; idx++ {
		if hazard(useBlock.Instructions[idx], false) {
			return false
		}
	}
	for b := range between {
		if b == defBlock || b == useBlock {
			continue
		}
		for _, instr := range b.Instructions {
			if hazard(instr, false) {
				return false
			}
		}
	}
	return true
}

// blocksBetween returns the set of blocks that lie on some path from def to
// use (inclusive), or nil if use is not reachable from def at all.
func blocksBetween(fn *cfg.Function, def, use *cfg.BasicBlock) map[*cfg.BasicBlock]bool {
	forward := map[*cfg.BasicBlock]bool{}
	var fwd func(b *cfg.BasicBlock)
	fwd = func(b *cfg.BasicBlock) {
		if forward[b] {
			return
		}
		forward[b] = true
		for _, s := range b.Successors {
			fwd(s)
		}
	}
	fwd(def)
	if !forward[use] {
		return nil
	}

	backward := map[*cfg.BasicBlock]bool{}
	var bwd func(b *cfg.BasicBlock)
	bwd = func(b *cfg.BasicBlock) {
		if backward[b] {
			return
		}
		backward[b] = true
		for _, p := range b.Predecessors {
			bwd(p)
		}
	}
	bwd(use)

	between := map[*cfg.BasicBlock]bool{}
	for b := range forward {
		if backward[b] {
			between[b] = true
		}
	}
	return between
}

func isNonPureCall(instr *cfg.Instruction) bool {
	return instr.Kind == cfg.InstrCall || instr.Kind == cfg.InstrVMCall
}

func isMemOrStorageKind(e expr.Expression) bool {
	switch e.(type) {
	case *expr.Mem, *expr.Storage, *expr.NamedStorageAccess:
		return true
	default:
		return false
	}
}
