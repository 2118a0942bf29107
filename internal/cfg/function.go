package cfg

import "decomp/internal/expr"

// Function is a contract function (spec §3): `{ address, header_node,
// params, num_retvals, external, flattened }`. Its node set is
// reachable(header_node).
//
// The block arena (allBlocks) is owned here, matching spec §9's "arena
// allocation: the Function owns all its BBs via stable indices" — edges
// are ordinary Go pointers rather than index pairs (Go's GC makes the
// cycle-collection rationale moot) but ownership is still centralized here
// so Copy() of a reachable subgraph is a simple map-based remap and the
// function can invalidate its cached node list in one place.
type Function struct {
	Address    uint64
	HeaderNode *BasicBlock
	Params     []expr.Expression
	NumRetvals int
	External   bool
	Flattened  bool

	// Vars mints locals flattened into this function by function discovery
	// (spec §4.8 step 8). Not part of the Function struct named in §3, but
	// the natural place for the "explicit monotonic counter" §9 asks for:
	// each function gets its own counter rather than a single global one.
	Vars *expr.VarDispenser

	allBlocks       []*BasicBlock
	nodesCache      []*BasicBlock
	nodesCacheValid bool
}

// NewFunction creates an (initially headerless) function.
func NewFunction(address uint64) *Function {
	return &Function{Address: address, Vars: expr.NewVarDispenser()}
}

// NewBlock allocates a fresh basic block owned by this function's arena.
func (f *Function) NewBlock(address uint64) *BasicBlock {
	bb := &BasicBlock{Address: address, Function: f}
	f.allBlocks = append(f.allBlocks, bb)
	f.InvalidateNodes()
	return bb
}

// AdoptBlock takes ownership of an externally-constructed block (e.g. one
// produced by BasicBlock.Copy during function discovery's subgraph
// cloning).
func (f *Function) AdoptBlock(bb *BasicBlock) {
	bb.Function = f
	f.allBlocks = append(f.allBlocks, bb)
	f.InvalidateNodes()
}

// DropBlock removes bb from the arena. Callers must have already removed
// all of bb's incoming/outgoing edges (spec §3 Lifecycle: "removing a BB
// from its function requires removing all incoming/outgoing edges").
func (f *Function) DropBlock(bb *BasicBlock) {
	if len(bb.Predecessors) != 0 || len(bb.Successors) != 0 {
		panic("cfg: DropBlock called on a block that still has edges")
	}
	f.detach(bb)
}

// DetachBlock removes bb from the arena without requiring its edges to be
// cleared first — unlike DropBlock, it is meant for function discovery
// (spec §4.8), which moves a whole reachable subgraph, edges intact, from
// one function's arena into a newly synthesized one via AdoptBlock.
func (f *Function) DetachBlock(bb *BasicBlock) { f.detach(bb) }

func (f *Function) detach(bb *BasicBlock) {
	out := f.allBlocks[:0]
	for _, b := range f.allBlocks {
		if b != bb {
			out = append(out, b)
		}
	}
	f.allBlocks = out
	f.InvalidateNodes()
}

// InvalidateNodes drops the cached reachable-node list (spec §5: "the
// graph exposes an invalidation hook and a cached node list, and passes
// that add or remove blocks must invalidate it").
func (f *Function) InvalidateNodes() { f.nodesCacheValid = false }

// Nodes returns every block reachable from HeaderNode, in DFS preorder,
// refreshing the cache if it was invalidated since the last call (spec
// §5, TestableProperty 5).
func (f *Function) Nodes() []*BasicBlock {
	if f.nodesCacheValid {
		return f.nodesCache
	}
	f.nodesCache = Reachable(f.HeaderNode)
	f.nodesCacheValid = true
	return f.nodesCache
}

// Reachable returns every block reachable from start (including start
// itself) via successor edges, in DFS preorder.
func Reachable(start *BasicBlock) []*BasicBlock {
	if start == nil {
		return nil
	}
	seen := map[*BasicBlock]bool{start: true}
	order := []*BasicBlock{start}
	stack := []*BasicBlock{start}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, s := range cur.Successors {
			if !seen[s] {
				seen[s] = true
				order = append(order, s)
				stack = append(stack, s)
			}
		}
	}
	return order
}
