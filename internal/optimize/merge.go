package optimize

import "decomp/internal/cfg"

// MergeBasicBlocks folds a block ending in an unconditional jump into its
// sole successor whenever that successor has no other predecessor (spec
// §4.7 "BBMerging"), reporting whether anything changed.
//
// Predecessors/Successors are normally kept consistent by AddSuccessor and
// RemoveSuccessor, but this pass runs after propagation and DCE have been
// free to mutate the graph, so it re-derives predecessor counts directly
// from every block's Successors list rather than trusting a single block's
// Predecessors field in isolation.
func MergeBasicBlocks(fn *cfg.Function) bool {
	changed := false
	for _, b := range fn.Nodes() {
		if b.Terminator == nil || b.Terminator.Kind != cfg.InstrJump {
			continue
		}
		if len(b.Successors) != 1 {
			continue
		}
		succ := b.Successors[0]
		if succ == b {
			continue
		}
		if countPredecessors(fn, succ) != 1 {
			continue
		}
		if err := b.Merge(succ); err != nil {
			continue
		}
		fn.DropBlock(succ)
		changed = true
	}
	return changed
}

func countPredecessors(fn *cfg.Function, target *cfg.BasicBlock) int {
	count := 0
	for _, n := range fn.Nodes() {
		for _, s := range n.Successors {
			if s == target {
				count++
			}
		}
	}
	return count
}
