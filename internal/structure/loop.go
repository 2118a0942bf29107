package structure

import "decomp/internal/cfg"

// makeLoopFromInterval attempts to carve a loop out of candidates — the
// block set of one interval discovered with header as its header (spec
// §4.9's make_loop_from_interval). Returns false if candidates contains
// no back edge to header (an interval with no loop in it) or if the body
// can't be closed off safely.
func makeLoopFromInterval(fn *cfg.Function, header *cfg.BasicBlock, candidates map[*cfg.BasicBlock]bool, dfsNum map[*cfg.BasicBlock]int) (*cfg.Loop, bool) {
	var latching []*cfg.BasicBlock
	for b := range candidates {
		for _, s := range b.Successors {
			if s == header {
				latching = append(latching, b)
				break
			}
		}
	}
	if len(latching) == 0 {
		return nil, false
	}

	deepest := dfsNum[header]
	for _, l := range latching {
		if n := dfsNum[l]; n > deepest {
			deepest = n
		}
	}

	body := map[*cfg.BasicBlock]bool{header: true}
	for b := range candidates {
		n, ok := dfsNum[b]
		if !ok || n < dfsNum[header] || n > deepest {
			continue
		}
		if canReachAny(b, latching, candidates) {
			body[b] = true
		}
	}

	for b := range body {
		if b.HasImpreciseSuccessor() {
			return nil, false
		}
	}

	for {
		outside := outsideSuccessors(body)
		if len(outside) == 0 {
			return finishLoop(header, nil, body)
		}
		if len(outside) == 1 {
			var follow *cfg.BasicBlock
			for f := range outside {
				follow = f
			}
			return finishLoop(header, follow, body)
		}

		expanded := false
		for n := range outside {
			if n.HasImpreciseSuccessor() {
				// An indirect-jump target among the outside set may
				// resolve once function discovery splits more of the
				// dispatcher off; don't commit to a loop shape yet.
				return nil, false
			}
			if !candidates[n] {
				continue
			}
			allIn := len(n.Predecessors) > 0
			for _, p := range n.Predecessors {
				if !body[p] {
					allIn = false
					break
				}
			}
			if allIn {
				body[n] = true
				expanded = true
			}
		}
		if !expanded {
			return nil, false
		}
	}
}

// canReachAny reports whether b can reach any node in targets using only
// edges that stay within candidates (the interval under consideration).
func canReachAny(b *cfg.BasicBlock, targets []*cfg.BasicBlock, candidates map[*cfg.BasicBlock]bool) bool {
	targetSet := make(map[*cfg.BasicBlock]bool, len(targets))
	for _, t := range targets {
		targetSet[t] = true
	}
	visited := map[*cfg.BasicBlock]bool{}
	var visit func(n *cfg.BasicBlock) bool
	visit = func(n *cfg.BasicBlock) bool {
		if targetSet[n] {
			return true
		}
		if visited[n] {
			return false
		}
		visited[n] = true
		for _, s := range n.Successors {
			if !candidates[s] {
				continue
			}
			if visit(s) {
				return true
			}
		}
		return false
	}
	return visit(b)
}

func outsideSuccessors(body map[*cfg.BasicBlock]bool) map[*cfg.BasicBlock]bool {
	outside := map[*cfg.BasicBlock]bool{}
	for b := range body {
		for _, s := range b.Successors {
			if !body[s] {
				outside[s] = true
			}
		}
	}
	return outside
}

func finishLoop(header, follow *cfg.BasicBlock, body map[*cfg.BasicBlock]bool) (*cfg.Loop, bool) {
	l := &cfg.Loop{Header: header, Follow: follow, Body: body}
	if cfg.SanityCheckLoop(l) != nil {
		return nil, false
	}
	return l, true
}
