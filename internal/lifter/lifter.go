// Package lifter implements spec §4.3 (C3): converting the linear
// low-level op sequence produced by internal/decode into a graph of
// high-level-instruction basic blocks, using a virtual stack to track
// where each value lives.
package lifter

import (
	"decomp/internal/cfg"
	"decomp/internal/decode"
	"decomp/internal/expr"
)

// Lift builds a contract whose loader function (address 0) holds the full
// basic-block graph lifted from ops (spec §4.3). Function discovery
// (internal/funcdisc) later splits external/internal functions out of this
// initial graph.
func Lift(ops []decode.Op, bytecode []byte) *cfg.Contract {
	contract := cfg.NewContract(bytecode)
	loader := contract.Loader()

	if len(ops) == 0 {
		loader.HeaderNode = loader.NewBlock(0)
		loader.HeaderNode.Terminator = cfg.NewVMCall(nil, "stop", nil)
		return contract
	}

	groups := splitBlocks(ops)
	blocks := make([]*cfg.BasicBlock, len(groups))
	lifted := make([]liftResult, len(groups))

	for i, g := range groups {
		addr := g[0].PC
		bb := loader.NewBlock(addr)

		// First pass (spec §4.3 step 2): lift starting at sp=0 purely to
		// learn the block's net stack-pointer delta.
		_, delta := liftBlockOnce(expr.NewVarDispenser(), g, 0)

		// Second pass: re-lift starting at sp=-delta so offsets end up
		// block-relative to the entry sp rather than to zero.
		res, sp := liftBlockOnce(loader.Vars, g, -delta)
		bb.Instructions = res.instrs
		bb.SPDelta = sp - (-delta)
		blocks[i] = bb
		lifted[i] = res
	}

	for i, bb := range blocks {
		if i+1 < len(blocks) {
			bb.NextBB = blocks[i+1]
		}
	}

	loader.HeaderNode = blocks[0]

	byAddr := make(map[uint64]*cfg.BasicBlock, len(blocks))
	for _, bb := range blocks {
		byAddr[bb.Address] = bb
	}

	revertSink := newRevertSink(loader)

	for i, bb := range blocks {
		wireTerminator(bb, lifted[i], byAddr, revertSink)
	}

	return contract
}

// wireTerminator fills in bb.Terminator and its successor edges from the
// operands liftBlockOnce already extracted for the block's final op (spec
// §4.3 "init_terminators"): for direct jumps it adds an edge to the
// target address; for an indirect or unresolvable target it redirects to
// the shared revert sink; jcond always gets both edges; terminating
// vmcalls get no successors; fall-through blocks get a synthesized jump.
func wireTerminator(bb *cfg.BasicBlock, res liftResult, byAddr map[uint64]*cfg.BasicBlock, revertSink *cfg.BasicBlock) {
	switch res.term {
	case termJump:
		bb.Terminator = cfg.NewJump(res.termTarget)
		bb.AddSuccessor(resolveTarget(res.termTarget, byAddr, revertSink))

	case termJCond:
		bb.Terminator = cfg.NewJCond(res.termCond, res.termTarget)
		bb.AddSuccessor(resolveTarget(res.termTarget, byAddr, revertSink))
		if bb.NextBB != nil {
			bb.AddSuccessor(bb.NextBB)
		} else {
			bb.AddSuccessor(revertSink)
		}

	case termVMCall:
		bb.Terminator = cfg.NewVMCall(nil, res.termVMCall, res.termArgs)

	case termFallthrough:
		if bb.NextBB != nil {
			bb.Terminator = cfg.NewJump(expr.LitUint64(bb.NextBB.Address))
			bb.AddSuccessor(bb.NextBB)
		} else {
			// Code fell off the end of the contract: treat as an implicit
			// stop, matching how execution running past the last byte of
			// code halts as if it hit a STOP.
			bb.Terminator = cfg.NewVMCall(nil, "stop", nil)
		}
	}
}

func resolveTarget(target expr.Expression, byAddr map[uint64]*cfg.BasicBlock, revertSink *cfg.BasicBlock) *cfg.BasicBlock {
	if lit, ok := target.(*expr.Lit); ok {
		if dst, ok := byAddr[lit.Value.Uint64()]; ok {
			return dst
		}
	}
	return revertSink
}

// newRevertSink synthesizes the single shared block that jumps to an
// invalid or non-literal target are redirected to (spec §4.3 failure
// mode: "jump to unknown address -> redirected to the revert sink").
func newRevertSink(fn *cfg.Function) *cfg.BasicBlock {
	bb := fn.NewBlock(revertSinkAddress)
	bb.Terminator = cfg.NewVMCall(nil, "revert", nil)
	return bb
}

// revertSinkAddress is a value no real bytecode offset can collide with.
const revertSinkAddress = ^uint64(0)

// splitBlocks partitions ops into maximal runs that form one basic block
// each: a new block starts at ops[0], at every JUMPDEST, and at the first
// op after any block-ending op (spec §4.3: "BBs are split by the decoder").
func splitBlocks(ops []decode.Op) [][]decode.Op {
	isStart := make([]bool, len(ops))
	isStart[0] = true
	for i, op := range ops {
		if op.Code == decode.JUMPDEST {
			isStart[i] = true
		}
		if endsBlock(op.Code) && i+1 < len(ops) {
			isStart[i+1] = true
		}
	}
	var groups [][]decode.Op
	start := 0
	for i := 1; i < len(ops); i++ {
		if isStart[i] {
			groups = append(groups, ops[start:i])
			start = i
		}
	}
	groups = append(groups, ops[start:])
	return groups
}

func endsBlock(op decode.Opcode) bool {
	switch op {
	case decode.JUMP, decode.JUMPI, decode.STOP, decode.RETURN, decode.REVERT,
		decode.INVALID, decode.SELFDESTRUCT:
		return true
	}
	return !decode.IsValidOpcode(op)
}
