package funcdisc

import (
	"decomp/internal/cfg"
	"decomp/internal/expr"
)

// ExternalFunctionDiscovery runs on the loader (address 0, spec §4.8's
// closing paragraph): it looks for the dispatcher pattern
// jcond(Eq(selector, Lit), target), and for each distinct target, clones
// the reachable subgraph into a new external function, splicing a call
// stub into the dispatcher in its place. Returns the functions it
// discovered.
func ExternalFunctionDiscovery(contract *cfg.Contract) []*cfg.Function {
	loader := contract.Loader()
	claimed := make(map[*cfg.BasicBlock]bool)
	var discovered []*cfg.Function

	for _, b := range loader.Nodes() {
		target, ok := dispatchTarget(b)
		if !ok {
			continue
		}
		if claimed[target] {
			continue
		}
		fn, ok := cloneExternalFunction(contract, loader, target, claimed)
		if !ok {
			continue
		}
		spliceCallStub(loader, b, target, fn)
		discovered = append(discovered, fn)
	}
	return discovered
}

// dispatchTarget recognizes jcond(Eq(selector, Lit), target) and returns the
// true-branch block.
func dispatchTarget(b *cfg.BasicBlock) (*cfg.BasicBlock, bool) {
	if b.Terminator == nil || b.Terminator.Kind != cfg.InstrJCond {
		return nil, false
	}
	if len(b.Terminator.Args) != 1 {
		return nil, false
	}
	cmp, ok := b.Terminator.Args[0].(*expr.BinaryOp)
	if !ok || cmp.Op != expr.OpEq {
		return nil, false
	}
	_, leftLit := cmp.Left.(*expr.Lit)
	_, rightLit := cmp.Right.(*expr.Lit)
	if !leftLit && !rightLit {
		return nil, false
	}
	if len(b.Successors) == 0 {
		return nil, false
	}
	return b.Successors[0], true
}

// cloneExternalFunction clones the subgraph reachable from target (skipping
// anything already claimed by an earlier external function) into a brand
// new External function registered on contract.
func cloneExternalFunction(contract *cfg.Contract, loader *cfg.Function, target *cfg.BasicBlock, claimed map[*cfg.BasicBlock]bool) (*cfg.Function, bool) {
	reach := cfg.Reachable(target)
	clones := make(map[*cfg.BasicBlock]*cfg.BasicBlock, len(reach))
	for _, b := range reach {
		if claimed[b] {
			// Subgraphs for distinct selectors should not overlap; if they
			// do, the dispatcher pattern wasn't as clean as assumed and we
			// bail rather than produce a function with stolen blocks.
			return nil, false
		}
		clones[b] = b.Copy()
	}
	for _, b := range reach {
		cp := clones[b]
		for _, s := range b.Successors {
			if cs, inside := clones[s]; inside {
				cp.AddSuccessor(cs)
			} else {
				cp.AddSuccessor(s)
			}
		}
	}

	fn := cfg.NewFunction(target.Address)
	fn.External = true
	fn.HeaderNode = clones[target]
	for _, cp := range clones {
		fn.AdoptBlock(cp)
	}
	contract.AddFunction(fn)

	for _, b := range reach {
		claimed[b] = true
	}
	return fn, true
}

// spliceCallStub replaces the dispatcher's edge to target with a small
// stub block that issues a call to fn and then halts: control never
// returns from a top-level external function call in this model, since the
// function's own return/revert/stop instruction ends the transaction.
func spliceCallStub(loader *cfg.Function, dispatcher *cfg.BasicBlock, target *cfg.BasicBlock, fn *cfg.Function) {
	stub := loader.NewBlock(stubAddress(target.Address))
	stub.Terminator = cfg.NewVMCall(nil, "stop", nil)
	callInstr := cfg.NewCall(nil, fn, nil)
	stub.Instructions = append(stub.Instructions, callInstr)
	// The original subgraph's blocks stay in loader's arena but become
	// unreachable from loader.HeaderNode once this edge is redirected;
	// SanityCheckFunction only walks reachable nodes, so they're inert.
	dispatcher.ReplaceSuccessor(target, stub)
}

// stubAddress derives a synthetic address for the call-stub block, distinct
// from any real bytecode offset (spec §3 I4: addresses are unique per
// function).
func stubAddress(target uint64) uint64 { return target | (uint64(1) << 63) }
