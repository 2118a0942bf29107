package cfg

import (
	"fmt"

	"decomp/internal/expr"
)

// BasicBlock is a maximal straight-line instruction sequence ending in a
// single terminator (spec §3, §GLOSSARY). Successors[0] is always the
// "true"/direct-jump target; for a JCond terminator, Successors[1] is the
// fall-through (false) branch.
//
// Invariants (spec I1-I4), re-checked by SanityCheck after every pass:
//
//	I1: Terminator, if present, is jump/jcond/ret/a terminating vmcall;
//	    no instruction of those kinds remains in Instructions once lifting
//	    has completed.
//	I2: predecessor/successor edges are always mutual.
//	I3: NextBB is the textually-following block, used only during lifting.
//	I4: addresses are unique per function.
type BasicBlock struct {
	Address      uint64
	Instructions []*Instruction
	Terminator   *Instruction
	SPDelta      int
	Predecessors []*BasicBlock
	Successors   []*BasicBlock
	NextBB       *BasicBlock
	Function     *Function
}

func (b *BasicBlock) String() string { return fmt.Sprintf("bb_%x", b.Address) }

// HasImpreciseSuccessor reports whether this block's terminator targets a
// non-literal address (spec GLOSSARY: "imprecise successor").
func (b *BasicBlock) HasImpreciseSuccessor() bool {
	if b.Terminator == nil || b.Terminator.Loc == nil {
		return false
	}
	target := b.Terminator.Loc.Expr
	if target == nil {
		return false
	}
	_, literal := target.(*expr.Lit)
	return !literal
}

// AddSuccessor wires b -> s and s's predecessor edge back to b (spec I2).
func (b *BasicBlock) AddSuccessor(s *BasicBlock) {
	b.Successors = append(b.Successors, s)
	s.Predecessors = append(s.Predecessors, b)
	b.invalidateFunctionCache()
}

// RemoveSuccessor removes the edge b -> s (and the matching predecessor
// edge), if present.
func (b *BasicBlock) RemoveSuccessor(s *BasicBlock) {
	b.Successors = removeBlock(b.Successors, s)
	s.Predecessors = removeBlock(s.Predecessors, b)
	b.invalidateFunctionCache()
}

// ReplaceSuccessor rewires an existing edge b -> old into b -> new,
// preserving position (so branch-index-sensitive callers, e.g. JCond's
// true/false ordering, keep working).
func (b *BasicBlock) ReplaceSuccessor(old, new *BasicBlock) {
	found := false
	for i, s := range b.Successors {
		if s == old {
			b.Successors[i] = new
			found = true
		}
	}
	if !found {
		return
	}
	old.Predecessors = removeBlock(old.Predecessors, b)
	new.Predecessors = append(new.Predecessors, b)
	b.invalidateFunctionCache()
}

func removeBlock(blocks []*BasicBlock, target *BasicBlock) []*BasicBlock {
	out := blocks[:0]
	for _, bb := range blocks {
		if bb != target {
			out = append(out, bb)
		}
	}
	return out
}

// Merge concatenates succ into b: requires b has exactly one outgoing edge
// (to succ) and succ has exactly one incoming edge (from b) — spec §4.2.
// b inherits succ's instructions, terminator, sp_delta (summed) and
// outgoing edges; succ is left with no edges, for the caller to drop from
// the function's arena.
func (b *BasicBlock) Merge(succ *BasicBlock) error {
	if len(b.Successors) != 1 || b.Successors[0] != succ {
		return fmt.Errorf("cfg: Merge requires b's only successor to be succ")
	}
	if len(succ.Predecessors) != 1 || succ.Predecessors[0] != b {
		return fmt.Errorf("cfg: Merge requires succ's only predecessor to be b")
	}

	b.Instructions = append(b.Instructions, succ.Instructions...)
	b.Terminator = succ.Terminator
	b.SPDelta += succ.SPDelta

	b.Successors = nil
	for _, s := range succ.Successors {
		s.Predecessors = removeBlock(s.Predecessors, succ)
		b.AddSuccessor(s)
	}
	succ.Successors = nil
	succ.Predecessors = nil
	b.invalidateFunctionCache()
	return nil
}

// AdjustSPDelta adds delta to b.SPDelta and decrements the offset of every
// Stack expression referenced by b's instructions by the same amount,
// using object identity to avoid adjusting any one Stack node twice (spec
// §4.2) — relevant because the same logical rewrite can otherwise walk
// over a shared sub-expression more than once.
func (b *BasicBlock) AdjustSPDelta(delta int) {
	b.SPDelta += delta
	seen := make(map[*expr.Stack]bool)
	adjust := func(e expr.Expression) {
		expr.Walk(e, func(sub expr.Expression) {
			if s, ok := sub.(*expr.Stack); ok && !seen[s] {
				s.Offset -= delta
				seen[s] = true
			}
		})
	}
	for _, instr := range b.Instructions {
		for _, r := range instr.Results {
			adjust(r)
		}
		for _, a := range instr.Args {
			adjust(a)
		}
	}
	if b.Terminator != nil {
		for _, a := range b.Terminator.Args {
			adjust(a)
		}
		if b.Terminator.Loc != nil && b.Terminator.Loc.Expr != nil {
			adjust(b.Terminator.Loc.Expr)
		}
	}
}

// ReplaceInstructionAt swaps the instruction at idx (as addressed by
// dataflow.ProgramPoint: an index into Instructions, or len(Instructions)
// for the Terminator) for instr, used by passes that must replace a whole
// instruction rather than rewrite one of its operands in place (spec §4.6
// step 4).
func (b *BasicBlock) ReplaceInstructionAt(idx int, instr *Instruction) {
	if idx == len(b.Instructions) {
		b.Terminator = instr
		return
	}
	b.Instructions[idx] = instr
}

// Copy produces a disjoint clone of b (instructions deep-copied,
// SPDelta/Address preserved, edges and Function left for the caller to
// fix up — spec §4.2: "callers must fix successors").
func (b *BasicBlock) Copy() *BasicBlock {
	cp := &BasicBlock{Address: b.Address, SPDelta: b.SPDelta}
	cp.Instructions = make([]*Instruction, len(b.Instructions))
	for i, instr := range b.Instructions {
		cp.Instructions[i] = instr.Copy()
	}
	if b.Terminator != nil {
		cp.Terminator = b.Terminator.Copy()
	}
	return cp
}

func (b *BasicBlock) invalidateFunctionCache() {
	if b.Function != nil {
		b.Function.InvalidateNodes()
	}
}
