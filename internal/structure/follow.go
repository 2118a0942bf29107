package structure

import "decomp/internal/cfg"

// ConditionalFollows computes, for every block terminating in a jcond
// with two successors, the node where its two branches rejoin (spec
// §4.10). Blocks for which no follow can be determined are absent from
// the result map.
func ConditionalFollows(fn *cfg.Function, loops []*cfg.Loop) map[*cfg.BasicBlock]*cfg.BasicBlock {
	_, dfsNum := DFSNumbers(fn.HeaderNode)
	loopOf := innermostLoops(fn, loops)

	follows := make(map[*cfg.BasicBlock]*cfg.BasicBlock)
	for _, b := range fn.Nodes() {
		if b.Terminator == nil || b.Terminator.Kind != cfg.InstrJCond {
			continue
		}
		if len(b.Successors) != 2 {
			continue
		}
		trueT, falseT := b.Successors[0], b.Successors[1]
		enclosing := loopOf[b]

		reachT := reachUnder(trueT, fn.HeaderNode, enclosing, loopOf)
		reachF := reachUnder(falseT, fn.HeaderNode, enclosing, loopOf)

		inter := intersectBlocks(reachT, reachF)
		if len(inter) == 0 {
			tEnd, fEnd := isEndpoint(trueT), isEndpoint(falseT)
			switch {
			case tEnd && !fEnd:
				follows[b] = falseT
			case fEnd && !tEnd:
				follows[b] = trueT
			}
			continue
		}

		var best *cfg.BasicBlock
		for n := range inter {
			if best == nil || dfsNum[n] < dfsNum[best] {
				best = n
			}
		}
		follows[b] = best
	}
	return follows
}

// isEndpoint reports whether n is a dead-end branch with no downstream
// join to consider (spec §4.10's "exactly one branch is an end-point").
func isEndpoint(n *cfg.BasicBlock) bool {
	return len(n.Successors) == 0 && len(n.Predecessors) == 1
}

// innermostLoops maps every block to the smallest loop body containing
// it, so nested loops pick the tightest enclosing loop for filtering.
func innermostLoops(fn *cfg.Function, loops []*cfg.Loop) map[*cfg.BasicBlock]*cfg.Loop {
	result := make(map[*cfg.BasicBlock]*cfg.Loop)
	for _, b := range fn.Nodes() {
		var best *cfg.Loop
		for _, l := range loops {
			if !l.Contains(b) {
				continue
			}
			if best == nil || len(l.Body) < len(best.Body) {
				best = l
			}
		}
		if best != nil {
			result[b] = best
		}
	}
	return result
}

// reachUnder computes the set of nodes reachable from start without
// crossing: an edge back to currentHeader, an edge leaving the enclosing
// loop (becomes a break, not traversed), an edge back to the enclosing
// loop's own header (becomes a continue, not traversed), or an imprecise
// successor. An edge into another loop's header is redirected through
// that loop's follow instead (spec §4.10).
func reachUnder(start, currentHeader *cfg.BasicBlock, enclosing *cfg.Loop, loopOf map[*cfg.BasicBlock]*cfg.Loop) map[*cfg.BasicBlock]bool {
	visited := map[*cfg.BasicBlock]bool{}
	var visit func(b *cfg.BasicBlock)
	visit = func(b *cfg.BasicBlock) {
		if visited[b] {
			return
		}
		visited[b] = true
		if b.HasImpreciseSuccessor() {
			return
		}
		for _, s := range b.Successors {
			if s == currentHeader {
				continue
			}
			if enclosing != nil {
				if s == enclosing.Header {
					continue
				}
				if !enclosing.Contains(s) && s != enclosing.Follow {
					continue
				}
			}
			if ol, ok := loopOf[s]; ok && ol != enclosing && s == ol.Header {
				if ol.Follow != nil {
					visit(ol.Follow)
				}
				continue
			}
			visit(s)
		}
	}
	visit(start)
	return visited
}

func intersectBlocks(a, b map[*cfg.BasicBlock]bool) map[*cfg.BasicBlock]bool {
	out := map[*cfg.BasicBlock]bool{}
	small, big := a, b
	if len(b) < len(a) {
		small, big = b, a
	}
	for n := range small {
		if big[n] {
			out[n] = true
		}
	}
	return out
}
