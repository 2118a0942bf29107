// Package structure turns a flat CFG into loops and conditional follow
// points (spec §4.9-§4.10, C8): the interval algorithm recovers loop
// bodies and their exits, and a filtered reach-set intersection recovers
// where each if/else rejoins.
package structure

import "decomp/internal/cfg"

// DFSNumbers assigns each block reachable from header a preorder DFS
// number, visiting successors in their stored order. Used both to bound
// a loop's provisional body (spec §4.9) and to pick a conservative
// "smallest DFS number" follow candidate (spec §4.10).
func DFSNumbers(header *cfg.BasicBlock) (order []*cfg.BasicBlock, number map[*cfg.BasicBlock]int) {
	number = make(map[*cfg.BasicBlock]int)
	var visit func(b *cfg.BasicBlock)
	visit = func(b *cfg.BasicBlock) {
		if _, seen := number[b]; seen {
			return
		}
		number[b] = len(order)
		order = append(order, b)
		for _, s := range b.Successors {
			visit(s)
		}
	}
	visit(header)
	return order, number
}
