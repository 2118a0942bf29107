package astgen

import (
	"decomp/internal/cfg"
	"decomp/internal/expr"
)

// loopCtx is a stack of the loops currently being structured around the
// node being built, innermost first, so an edge back to any enclosing
// loop's header or out to its follow resolves to Continue/Break even
// when it comes from several levels of nested if/loop inside that body.
type loopCtx struct {
	loop   *cfg.Loop
	parent *loopCtx
}

func (c *loopCtx) match(b *cfg.BasicBlock) Node {
	for lc := c; lc != nil; lc = lc.parent {
		if b == lc.loop.Header {
			return &Continue{}
		}
		if b == lc.loop.Follow {
			return &Break{}
		}
	}
	return nil
}

type converter struct {
	headerOf map[*cfg.BasicBlock]*cfg.Loop
	follows  map[*cfg.BasicBlock]*cfg.BasicBlock
	done     map[*cfg.BasicBlock]bool
	labels   map[*cfg.BasicBlock]string
	stats    *Stats
}

// Convert lowers fn's structured graph into a Block (spec §4.11 steps
// 1-8). loops and follows are the outputs of internal/structure's
// FindLoops and ConditionalFollows.
func Convert(fn *cfg.Function, loops []*cfg.Loop, follows map[*cfg.BasicBlock]*cfg.BasicBlock) (Block, *Stats) {
	c := &converter{
		headerOf: make(map[*cfg.BasicBlock]*cfg.Loop, len(loops)),
		follows:  follows,
		done:     make(map[*cfg.BasicBlock]bool),
		labels:   make(map[*cfg.BasicBlock]string),
		stats:    &Stats{},
	}
	for _, l := range loops {
		c.headerOf[l.Header] = l
	}
	body := c.buildBlock(fn.HeaderNode, nil, nil, false)
	c.stats.FuncsWithGoto = c.stats.NumGotos > 0
	return body, c.stats
}

// buildBlock walks the CFG starting at start, appending statements until
// it falls off the structured region: stop is reached, an enclosing
// loop's header/follow is hit (Continue/Break), or a dead end. enterAsHeader
// suppresses the loop-header check for exactly the first block visited —
// used when a caller has already decided to build that block's own body
// as a Loop's Header and must not recurse into building the Loop node a
// second time for itself.
func (c *converter) buildBlock(start, stop *cfg.BasicBlock, lctx *loopCtx, enterAsHeader bool) Block {
	var out Block
	b := start
	first := true
	for b != nil && b != stop {
		skipSpecial := first && enterAsHeader
		if !skipSpecial {
			if node := lctx.match(b); node != nil {
				out = append(out, node)
				return out
			}
			if c.done[b] {
				c.stats.NumGotos++
				out = append(out, &Goto{Label: c.labelFor(b)})
				return out
			}
			if l, isHeader := c.headerOf[b]; isHeader {
				loopNode := c.buildLoop(l, lctx)
				out = append(out, loopNode)
				out = append(out, loopNode.Follow...)
				return out
			}
		}
		first = false
		c.done[b] = true

		nodes, next := c.buildStatement(b, lctx)
		out = append(out, nodes...)
		b = next
	}
	return out
}

// buildLoop structures l starting from its header, rewriting back-edges
// to Continue and exits to Follow inside the body (spec step 6), and
// returns the Loop node with the follow's content already built into its
// Follow field.
func (c *converter) buildLoop(l *cfg.Loop, lctx *loopCtx) *Loop {
	child := &loopCtx{loop: l, parent: lctx}
	body := c.buildBlock(l.Header, nil, child, true)
	var follow Block
	if l.Follow != nil {
		follow = c.buildBlock(l.Follow, nil, lctx, false)
	}
	return &Loop{Header: body, Follow: follow}
}

// buildStatement converts one basic block's own content (step 1, folding
// in its terminator per step 8) into one or more AST nodes, and reports
// which block structurally follows it, if any (nil for a dead end, an
// indirect jump, or an already-branched IfElse whose follow content is
// already included in the returned nodes).
func (c *converter) buildStatement(b *cfg.BasicBlock, lctx *loopCtx) ([]Node, *cfg.BasicBlock) {
	seq := &Sequence{Origin: b, Instrs: append([]*cfg.Instruction{}, b.Instructions...), SPDelta: b.SPDelta}
	term := b.Terminator
	if term == nil {
		return []Node{seq}, nil
	}

	switch term.Kind {
	case cfg.InstrJump:
		if b.HasImpreciseSuccessor() {
			jmp := &IndirectJump{Dest: term.Loc.Expr, Successors: append([]*cfg.BasicBlock{}, b.Successors...)}
			return []Node{seq, jmp}, nil
		}
		// Step 4: a direct jump that agrees with the block's single
		// successor carries no structural meaning of its own.
		if len(b.Successors) == 1 {
			return []Node{seq}, b.Successors[0]
		}
		return []Node{seq}, nil

	case cfg.InstrJCond:
		var follow *cfg.BasicBlock
		if lctx == nil || lctx.loop.Header != b {
			// A loop's own header never needs a conditional follow:
			// loop structuring has already arranged for one branch to
			// close with Continue and the other with Break.
			follow = c.follows[b]
		}
		var trueB, falseB *cfg.BasicBlock
		if len(b.Successors) == 2 {
			trueB, falseB = b.Successors[0], b.Successors[1]
		}
		trueList := c.buildBlock(trueB, follow, lctx, false)
		falseList := c.buildBlock(falseB, follow, lctx, false)
		var followList Block
		if follow != nil {
			followList = c.buildBlock(follow, nil, lctx, false)
		}
		var cond expr.Expression
		if len(term.Args) > 0 {
			cond = term.Args[0]
		}
		ifNode := &IfElse{Cond: cond, True: trueList, False: falseList, Follow: followList}
		nodes := []Node{seq, ifNode}
		nodes = append(nodes, followList...)
		return nodes, nil

	case cfg.InstrRet:
		seq.Instrs = append(seq.Instrs, term)
		return []Node{seq}, nil

	case cfg.InstrVMCall:
		seq.Instrs = append(seq.Instrs, term)
		if cfg.IsTerminatingVMCall(term.Loc.VMCall) {
			return []Node{seq}, nil
		}
		if len(b.Successors) == 1 {
			return []Node{seq}, b.Successors[0]
		}
		return []Node{seq}, nil

	case cfg.InstrCall:
		seq.Instrs = append(seq.Instrs, term)
		if len(b.Successors) == 1 {
			return []Node{seq}, b.Successors[0]
		}
		return []Node{seq}, nil

	default:
		return []Node{seq}, nil
	}
}

func (c *converter) labelFor(b *cfg.BasicBlock) string {
	if l, ok := c.labels[b]; ok {
		return l
	}
	l := b.String()
	c.labels[b] = l
	return l
}
