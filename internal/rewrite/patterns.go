package rewrite

import (
	"decomp/internal/cfg"
	"decomp/internal/expr"
)

// RecognizeNamedStorage rewrites `Storage(sha3(key ++ slot))` (Solidity
// mapping access) and `Storage(sha3(slot) + index)` (dynamic array access)
// into `NamedStorageAccess` nodes (spec §4.5/C5 "pattern recognizers
// (mapping/array accesses)"), reporting whether anything changed.
func RecognizeNamedStorage(fn *cfg.Function) bool {
	changed := false
	rewriteRoot := func(root expr.Expression) expr.Expression {
		out := expr.Transform(root, recognizeStorageAccess)
		if !expr.StructuralEquals(out, root) {
			changed = true
		}
		return out
	}
	for _, b := range fn.Nodes() {
		for _, instr := range b.Instructions {
			for i, a := range instr.Args {
				instr.Args[i] = rewriteRoot(a)
			}
		}
	}
	return changed
}

func recognizeStorageAccess(e expr.Expression) expr.Expression {
	st, ok := e.(*expr.Storage)
	if !ok {
		return e
	}
	if access, ok := matchMappingAccess(st.Addr); ok {
		return access
	}
	if access, ok := matchArrayAccess(st.Addr); ok {
		return access
	}
	return e
}

// matchMappingAccess recognizes `sha3({key, slot})`: a 2-element byte
// sequence hashed, where the slot element is a literal base storage slot.
func matchMappingAccess(addr expr.Expression) (*expr.NamedStorageAccess, bool) {
	call, ok := addr.(*expr.PureFunctionCall)
	if !ok || call.Name != "sha3" || len(call.Args) != 1 {
		return nil, false
	}
	seq, ok := call.Args[0].(*expr.Sequence)
	if !ok || len(seq.Elems) != 2 {
		return nil, false
	}
	key := seq.Elems[0]
	slotLit, ok := seq.Elems[1].(*expr.Lit)
	if !ok {
		return nil, false
	}
	return &expr.NamedStorageAccess{
		Kind:   expr.NamedStorageMapping,
		Num:    int(slotLit.Value.Uint64()),
		Offset: key.Copy(),
	}, true
}

// matchArrayAccess recognizes `sha3(slot) + index`: the base slot of a
// dynamic array hashed to find its data region, offset by the element
// index.
func matchArrayAccess(addr expr.Expression) (*expr.NamedStorageAccess, bool) {
	add, ok := addr.(*expr.BinaryOp)
	if !ok || add.Op != expr.OpAdd {
		return nil, false
	}
	if access, ok := matchArrayBase(add.Left, add.Right); ok {
		return access, true
	}
	return matchArrayBase(add.Right, add.Left)
}

func matchArrayBase(base, index expr.Expression) (*expr.NamedStorageAccess, bool) {
	call, ok := base.(*expr.PureFunctionCall)
	if !ok || call.Name != "sha3" || len(call.Args) != 1 {
		return nil, false
	}
	slotLit, ok := call.Args[0].(*expr.Lit)
	if !ok {
		return nil, false
	}
	return &expr.NamedStorageAccess{
		Kind:   expr.NamedStorageArray,
		Num:    int(slotLit.Value.Uint64()),
		Offset: index.Copy(),
	}, true
}

// RecognizeAsserts rewrites a jcond whose taken branch is nothing but a
// single-predecessor revert sink into a straight-line `assert` instruction
// (spec §4.5/C5 "assert reconstruction"), dropping the now-unreachable
// revert block from the function's arena.
func RecognizeAsserts(fn *cfg.Function) bool {
	changed := false
	for _, b := range fn.Nodes() {
		if b.Terminator == nil || b.Terminator.Kind != cfg.InstrJCond {
			continue
		}
		if len(b.Successors) != 2 || len(b.Terminator.Args) != 1 {
			continue
		}
		cond := b.Terminator.Args[0]
		trueTarget, falseTarget := b.Successors[0], b.Successors[1]

		if isRevertSink(trueTarget) {
			assertArg := &expr.UnaryOp{Op: expr.OpNot, X: cond.Copy()}
			collapseToAssert(fn, b, assertArg, trueTarget, falseTarget)
			changed = true
			continue
		}
		if isRevertSink(falseTarget) {
			assertArg := cond.Copy()
			collapseToAssert(fn, b, assertArg, falseTarget, trueTarget)
			changed = true
		}
	}
	return changed
}

// isRevertSink reports whether b is nothing but a single-predecessor
// terminating revert: safe to fold into its only predecessor as an assert.
func isRevertSink(b *cfg.BasicBlock) bool {
	if len(b.Instructions) != 0 || len(b.Predecessors) != 1 || len(b.Successors) != 0 {
		return false
	}
	t := b.Terminator
	return t != nil && t.Kind == cfg.InstrVMCall && t.Loc != nil &&
		(t.Loc.VMCall == "revert" || t.Loc.VMCall == "invalid")
}

func collapseToAssert(fn *cfg.Function, b *cfg.BasicBlock, assertArg expr.Expression, sink, continuation *cfg.BasicBlock) {
	b.Instructions = append(b.Instructions, cfg.NewAssert(assertArg))
	b.RemoveSuccessor(sink)
	b.RemoveSuccessor(continuation)
	b.Terminator = cfg.NewJump(expr.LitUint64(continuation.Address))
	b.AddSuccessor(continuation)
	fn.DropBlock(sink)
}
