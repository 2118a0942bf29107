package cfg

import "fmt"

// SanityCheckFunction verifies spec §8 invariants 1-3 and 6 for f, as every
// pass is required to do after its changes (spec §5). Invariants 4
// (expression aliasing), 5 (nodes cache), 9 (AST address preservation) and
// 10 (post-flattening) are checked where they're meaningful: 4 and 5 here
// too, 9/10 in internal/astgen and internal/funcdisc respectively.
func SanityCheckFunction(f *Function) error {
	nodes := Reachable(f.HeaderNode)
	seenAddr := make(map[uint64]*BasicBlock)

	for _, b := range nodes {
		// I2: predecessor/successor edges are mutual.
		for _, s := range b.Successors {
			if !containsBlock(s.Predecessors, b) {
				return fmt.Errorf("cfg: %s lists %s as a successor, but %s does not list %s as a predecessor", b, s, s, b)
			}
		}
		for _, p := range b.Predecessors {
			if !containsBlock(p.Successors, b) {
				return fmt.Errorf("cfg: %s lists %s as a predecessor, but %s does not list %s as a successor", b, p, p, b)
			}
		}

		// I4: addresses unique per function.
		if other, ok := seenAddr[b.Address]; ok && other != b {
			return fmt.Errorf("cfg: duplicate block address %x", b.Address)
		}
		seenAddr[b.Address] = b

		// I1: no jump/jcond left in the instruction list after lifting.
		for _, instr := range b.Instructions {
			if instr.Kind == InstrJump || instr.Kind == InstrJCond {
				return fmt.Errorf("cfg: %s has a %s instruction outside its terminator", b, instr.Kind)
			}
		}

		// Property 6: imprecise successors always have at least one edge.
		if b.HasImpreciseSuccessor() && len(b.Successors) == 0 {
			return fmt.Errorf("cfg: %s has an imprecise successor but no outgoing edges", b)
		}
	}

	// Property 5: cached node list (if valid) matches a fresh DFS.
	if f.nodesCacheValid {
		if len(f.nodesCache) != len(nodes) {
			return fmt.Errorf("cfg: cached node list is stale (size %d, fresh DFS has %d)", len(f.nodesCache), len(nodes))
		}
		fresh := make(map[*BasicBlock]bool, len(nodes))
		for _, n := range nodes {
			fresh[n] = true
		}
		for _, n := range f.nodesCache {
			if !fresh[n] {
				return fmt.Errorf("cfg: cached node list contains a block no longer reachable")
			}
		}
	}

	return CheckNoAliasedExpressions(nodes)
}

func containsBlock(blocks []*BasicBlock, target *BasicBlock) bool {
	for _, b := range blocks {
		if b == target {
			return true
		}
	}
	return false
}
