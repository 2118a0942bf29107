// Package funcdisc implements function discovery (spec §4.8, C7): inferring
// internal functions from return-address call patterns, and external
// functions from the dispatcher's selector-comparison pattern.
package funcdisc

import (
	"decomp/internal/cfg"
	"decomp/internal/expr"
)

// DiscoverInternal scans fn's reachable nodes for a block that looks like a
// call target and, if one is found and every check in spec §4.8 passes,
// splits it into a new internal function owned by contract. Returns the new
// function and true on success. Callers loop this alongside the rest of the
// fixed-point driver until it stops finding candidates.
func DiscoverInternal(contract *cfg.Contract, fn *cfg.Function) (*cfg.Function, bool) {
	for _, h := range fn.Nodes() {
		if h == fn.HeaderNode {
			continue
		}
		if len(h.Predecessors) < 2 {
			continue
		}
		if newFn, ok := tryMakeCallTarget(contract, fn, h); ok {
			return newFn, true
		}
	}
	return nil, false
}

// tryMakeCallTarget attempts to turn h into the header of a freshly
// discovered internal function (spec §4.8 steps 1-8).
func tryMakeCallTarget(contract *cfg.Contract, owner *cfg.Function, h *cfg.BasicBlock) (*cfg.Function, bool) {
	reach := cfg.Reachable(h)
	reachSet := make(map[*cfg.BasicBlock]bool, len(reach))
	for _, b := range reach {
		reachSet[b] = true
	}

	// Step 2 rejections.
	for _, f := range contract.Functions {
		if f.HeaderNode != nil && f.HeaderNode != h && reachSet[f.HeaderNode] {
			return nil, false
		}
	}
	var exteriorPreds []*cfg.BasicBlock
	for _, b := range reach {
		for _, p := range b.Predecessors {
			if reachSet[p] {
				continue
			}
			if b != h {
				// A node other than h is reached from outside the subgraph.
				return nil, false
			}
			if !isSimpleDirectJump(p) {
				return nil, false
			}
			exteriorPreds = append(exteriorPreds, p)
		}
	}
	if len(exteriorPreds) == 0 {
		return nil, false
	}
	if containsCalldataload(reach) {
		return nil, false
	}

	// Step 1: indirect-jump returns reachable from h, with their net sp
	// deltas relative to h.
	deltas, ok := blockEntryDeltas(h, reachSet)
	if !ok {
		return nil, false
	}
	retEdges := collectIndirectJumpDeltas(reach, deltas)
	if len(retEdges) == 0 {
		return nil, false
	}
	retDelta := retEdges[0].delta
	for _, e := range retEdges[1:] {
		if e.delta != retDelta {
			return nil, false
		}
	}

	// Step 3: minimum sp offset touched by any Stack expression in reach,
	// translated into h-entry-relative terms — the return-address slot.
	minOffset := minStackOffset(reach, deltas)
	if minOffset > 0 {
		return nil, false
	}
	retSlot := minOffset

	// Step 4: resolve the return-address slot in every exterior predecessor.
	returnTargets := make(map[*cfg.BasicBlock]uint64, len(exteriorPreds))
	defPoints := make(map[string]bool)
	for _, p := range exteriorPreds {
		lit, defKey, ok := resolveStackVar(p, retSlot)
		if !ok {
			return nil, false
		}
		returnTargets[p] = lit
		defPoints[defKey] = true
	}
	if len(defPoints) == 1 && len(exteriorPreds) > 1 {
		// A single common definition point is better served by letting
		// propagation run further before we commit to splitting a function.
		return nil, false
	}

	numParams := -retDelta
	if numParams < 0 {
		return nil, false
	}
	numRetvals := numParams + h.SPDelta + 1
	if numRetvals < 0 {
		numRetvals = 0
	}

	newFn := cfg.NewFunction(h.Address)
	for i := 0; i < numParams; i++ {
		newFn.Params = append(newFn.Params, &expr.Stack{Offset: -i})
	}
	newFn.NumRetvals = numRetvals
	newFn.HeaderNode = h

	// Move h's arena ownership, and everything reachable, from owner to
	// newFn.
	for _, b := range reach {
		detach(owner, b)
		newFn.AdoptBlock(b)
	}

	// Step 6: synthesize call sites in every exterior predecessor. Offsets
	// use p's own exit-relative local addressing directly: the args that
	// used to sit just below the return-address slot become the call's
	// arguments, and the call's results take over the top few slots the
	// old push sequence used to occupy. The old literal pushes stay in
	// p.Instructions as dead code for a later DCE pass to remove.
	for _, p := range exteriorPreds {
		target := returnTargets[p]
		retBlock := findOrSynthesizeReturnBlock(owner, target)
		results := make([]expr.Expression, numRetvals)
		for i := range results {
			results[i] = &expr.Stack{Offset: i}
		}
		args := make([]expr.Expression, numParams)
		for i := range args {
			args[i] = &expr.Stack{Offset: -1 - i}
		}
		p.Terminator = cfg.NewCall(results, newFn, args)
		p.SPDelta = numRetvals - (numParams + 1)
		for _, s := range append([]*cfg.BasicBlock{}, p.Successors...) {
			p.RemoveSuccessor(s)
		}
		p.AddSuccessor(retBlock)
	}

	// Step 7: rewrite every reachable indirect jump to a ret, dropping its
	// outgoing edges. Each returning block's own exit-relative addressing
	// already puts its top numRetvals slots at 0, -1, ..., -(numRetvals-1).
	for _, e := range retEdges {
		values := make([]expr.Expression, numRetvals)
		for i := range values {
			values[i] = &expr.Stack{Offset: -(numRetvals - 1) + i}
		}
		e.block.Terminator = cfg.NewRet(values)
		for _, s := range append([]*cfg.BasicBlock{}, e.block.Successors...) {
			e.block.RemoveSuccessor(s)
		}
	}

	// Step 8: flatten stack slots to locals.
	if !Flatten(newFn) {
		return nil, false
	}

	contract.AddFunction(newFn)
	return newFn, true
}

func detach(owner *cfg.Function, b *cfg.BasicBlock) {
	owner.DetachBlock(b)
}

// isSimpleDirectJump reports whether p's terminator is an ordinary
// unconditional jump to a literal target (spec §4.8 step 2).
func isSimpleDirectJump(p *cfg.BasicBlock) bool {
	return p.Terminator != nil && p.Terminator.Kind == cfg.InstrJump && !p.HasImpreciseSuccessor()
}

func containsCalldataload(reach []*cfg.BasicBlock) bool {
	found := false
	for _, b := range reach {
		for _, instr := range b.Instructions {
			for _, a := range instr.Args {
				expr.Walk(a, func(e expr.Expression) {
					if pc, ok := e.(*expr.PureFunctionCall); ok && pc.Name == "calldataload" {
						found = true
					}
				})
			}
		}
	}
	return found
}

type retEdge struct {
	block *cfg.BasicBlock
	delta int
}

// blockEntryDeltas computes, for every block in reach, its net sp delta
// relative to h's entry (h itself is 0). Two paths reaching the same block
// with different deltas is a reject (spec §4.8 implicitly requires a
// consistent sp to even talk about "the" return-address slot).
func blockEntryDeltas(h *cfg.BasicBlock, reachSet map[*cfg.BasicBlock]bool) (map[*cfg.BasicBlock]int, bool) {
	deltas := map[*cfg.BasicBlock]int{h: 0}
	order := []*cfg.BasicBlock{h}
	for i := 0; i < len(order); i++ {
		b := order[i]
		d := deltas[b]
		for _, s := range b.Successors {
			if !reachSet[s] {
				continue
			}
			nd := d + b.SPDelta
			if existing, seen := deltas[s]; seen {
				if existing != nd {
					return nil, false
				}
				continue
			}
			deltas[s] = nd
			order = append(order, s)
		}
	}
	return deltas, true
}

// collectIndirectJumpDeltas records, for each terminating indirect jump (a
// Jump whose target is not a literal) in reach, its net sp delta from h to
// that jump (spec §4.8 step 1).
func collectIndirectJumpDeltas(reach []*cfg.BasicBlock, deltas map[*cfg.BasicBlock]int) []retEdge {
	var edges []retEdge
	for _, b := range reach {
		if b.Terminator != nil && b.Terminator.Kind == cfg.InstrJump && b.HasImpreciseSuccessor() {
			edges = append(edges, retEdge{block: b, delta: deltas[b] + b.SPDelta})
		}
	}
	return edges
}

// minStackOffset finds the lowest Stack offset referenced anywhere in reach,
// translated from each block's own exit-relative local addressing into
// h-entry-relative terms via deltas.
func minStackOffset(reach []*cfg.BasicBlock, deltas map[*cfg.BasicBlock]int) int {
	min := 0
	for _, b := range reach {
		base := deltas[b] + b.SPDelta
		walk := func(e expr.Expression) {
			expr.Walk(e, func(sub expr.Expression) {
				if s, ok := sub.(*expr.Stack); ok {
					if abs := base + s.Offset; abs < min {
						min = abs
					}
				}
			})
		}
		for _, instr := range b.Instructions {
			for _, r := range instr.Results {
				walk(r)
			}
			for _, a := range instr.Args {
				walk(a)
			}
		}
		if b.Terminator != nil {
			for _, a := range b.Terminator.Args {
				walk(a)
			}
			if b.Terminator.Loc != nil && b.Terminator.Loc.Expr != nil {
				walk(b.Terminator.Loc.Expr)
			}
		}
	}
	return min
}

// resolveStackVar walks backward in p from its terminator, looking for a
// literal assignment to the given slot (spec §4.8 step 4's
// resolve_stackvar). slot is h-entry-relative, which — since p jumps
// directly to h — is exactly p's own exit-relative local addressing too.
// Returns the literal and a definition-site key used to detect "all
// resolved at one common program point".
func resolveStackVar(p *cfg.BasicBlock, slot int) (uint64, string, bool) {
	target := slot
	for i := len(p.Instructions) - 1; i >= 0; i-- {
		instr := p.Instructions[i]
		if instr.Kind != cfg.InstrAssign || len(instr.Results) != 1 {
			continue
		}
		s, ok := instr.Results[0].(*expr.Stack)
		if !ok || s.Offset != target {
			continue
		}
		lit, ok := instr.Args[0].(*expr.Lit)
		if !ok {
			return 0, "", false
		}
		return lit.Value.Uint64(), blockKey(p, i), true
	}
	return 0, "", false
}

func blockKey(b *cfg.BasicBlock, idx int) string {
	return b.String() + "#" + itoa(idx)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [12]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// findOrSynthesizeReturnBlock finds the existing block at address target
// within owner, or (if none starts exactly there — e.g. the literal lands
// mid-block) synthesizes a thin jump block as a safe fallback.
func findOrSynthesizeReturnBlock(owner *cfg.Function, target uint64) *cfg.BasicBlock {
	for _, b := range owner.Nodes() {
		if b.Address == target {
			return b
		}
	}
	bb := owner.NewBlock(target)
	bb.Terminator = cfg.NewJump(expr.LitUint64(target))
	return bb
}
