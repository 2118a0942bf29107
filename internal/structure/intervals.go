package structure

import "decomp/internal/cfg"

// inode is a node of the working graph the interval algorithm collapses
// one level at a time: initially one per basic block, later one per
// discovered interval (spec §4.9 step a-c).
type inode struct {
	blocks map[*cfg.BasicBlock]bool // original blocks folded into this node
	header *cfg.BasicBlock          // representative original header block
	preds  []*inode
	succs  []*inode
}

func (n *inode) addSucc(s *inode) {
	for _, x := range n.succs {
		if x == s {
			return
		}
	}
	n.succs = append(n.succs, s)
	s.preds = append(s.preds, n)
}

// buildLeafGraph makes one inode per block reachable from fn.HeaderNode,
// preserving the original edges.
func buildLeafGraph(fn *cfg.Function) (nodes []*inode, entry *inode) {
	byBlock := make(map[*cfg.BasicBlock]*inode)
	for _, b := range fn.Nodes() {
		n := &inode{blocks: map[*cfg.BasicBlock]bool{b: true}, header: b}
		byBlock[b] = n
		nodes = append(nodes, n)
	}
	for _, b := range fn.Nodes() {
		n := byBlock[b]
		for _, s := range b.Successors {
			if sn, ok := byBlock[s]; ok {
				n.addSucc(sn)
			}
		}
	}
	entry = byBlock[fn.HeaderNode]
	return nodes, entry
}

// computeIntervals partitions nodes into intervals per the classic
// Allen/Cocke algorithm (spec §4.9 step a): I(h) grows to include every
// node whose every predecessor (within nodes) is already in I(h).
func computeIntervals(nodes []*inode, entry *inode) []*inode {
	inSet := make(map[*inode]bool, len(nodes))
	for _, n := range nodes {
		inSet[n] = true
	}

	assigned := make(map[*inode]bool)
	var headers []*inode
	headers = append(headers, entry)
	seenHeader := map[*inode]bool{entry: true}

	var intervals []*inode
	for i := 0; i < len(headers); i++ {
		h := headers[i]
		if assigned[h] {
			continue
		}
		body := map[*inode]bool{h: true}
		assigned[h] = true
		for {
			added := false
			for _, n := range nodes {
				if body[n] || !inSet[n] {
					continue
				}
				if len(n.preds) == 0 {
					continue
				}
				all := true
				for _, p := range n.preds {
					if !body[p] {
						all = false
						break
					}
				}
				if all {
					body[n] = true
					assigned[n] = true
					added = true
				}
			}
			if !added {
				break
			}
		}

		iv := &inode{blocks: map[*cfg.BasicBlock]bool{}, header: h.header}
		for n := range body {
			for b := range n.blocks {
				iv.blocks[b] = true
			}
		}
		intervals = append(intervals, iv)

		for n := range body {
			for _, s := range n.succs {
				if !body[s] && !seenHeader[s] {
					seenHeader[s] = true
					headers = append(headers, s)
				}
			}
		}
	}
	return intervals
}

// collapse builds the derived graph: one node per interval, with an edge
// between two intervals iff some block in the source interval has a
// successor block in the destination interval (spec §4.9 step c).
func collapse(fn *cfg.Function, intervals []*inode) (nodes []*inode, entry *inode) {
	owner := make(map[*cfg.BasicBlock]*inode)
	for _, iv := range intervals {
		for b := range iv.blocks {
			owner[b] = iv
		}
	}
	for _, iv := range intervals {
		for b := range iv.blocks {
			for _, s := range b.Successors {
				dst, ok := owner[s]
				if !ok || dst == iv {
					continue
				}
				iv.addSucc(dst)
			}
		}
	}
	return intervals, owner[fn.HeaderNode]
}

// maxCollapseIterations bounds the derived-graph collapse loop so an
// irreducible region (commonly induced by an indirect jump that the
// imprecise-successor check elsewhere refuses to fold into a loop body)
// can't spin forever (spec §4.9 step 3's stated escape hatch).
const maxCollapseIterations = 20

// FindLoops recovers every loop in fn via the bounded interval-collapse
// algorithm, attempting make_loop_from_interval (spec §4.9) on every
// interval that contains a back edge to its own header. Discovered loops
// are deduplicated by header.
func FindLoops(fn *cfg.Function) []*cfg.Loop {
	_, dfsNum := DFSNumbers(fn.HeaderNode)

	var loops []*cfg.Loop
	seen := make(map[*cfg.BasicBlock]bool)

	nodes, entry := buildLeafGraph(fn)
	for iter := 0; iter < maxCollapseIterations && len(nodes) > 1; iter++ {
		intervals := computeIntervals(nodes, entry)

		for _, iv := range intervals {
			if seen[iv.header] {
				continue
			}
			if l, ok := makeLoopFromInterval(fn, iv.header, iv.blocks, dfsNum); ok {
				seen[iv.header] = true
				loops = append(loops, l)
			}
		}

		if len(intervals) == len(nodes) {
			// No further collapsing is possible at this level (every
			// interval is a single node) — stop rather than loop forever.
			break
		}
		nodes, entry = collapse(fn, intervals)
	}
	return loops
}
