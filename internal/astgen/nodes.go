// Package astgen lowers a structured control-flow graph (after C8's loop
// and conditional recovery) into a statement tree (spec §4.11, C9):
// Sequence/IfElse/IndirectJump/Loop/Break/Continue, falling back to a
// labeled Goto only where structuring could not express the control flow.
package astgen

import (
	"decomp/internal/cfg"
	"decomp/internal/expr"
)

// Node is one statement in a Block. The concrete types below are exactly
// the node kinds named in spec §4.11.
type Node interface {
	isNode()
}

// Block is an ordered statement list; sequencing in this AST is plain
// slice adjacency rather than an explicit "next" field on every node,
// the same shape internal/ast used for a function body.
type Block []Node

// Sequence carries one basic block's straight-line instructions (spec:
// "a BB's instruction list plus sp_delta"). Step 8 folds call/ret/
// terminating-vmcall terminators into Instrs, so by the time conversion
// finishes a Sequence never has an associated BasicBlock.Terminator left
// dangling outside it.
type Sequence struct {
	Origin  *cfg.BasicBlock
	Instrs  []*cfg.Instruction
	SPDelta int
}

// IfElse is a structured conditional (spec: "IfElse(cond, true, false,
// follow)"). Follow duplicates the tail already appended after this node
// in the enclosing Block (step 7 forbids emitting it twice); it is kept
// on the node itself only so a reader/emitter can see where the branches
// were judged to rejoin without re-deriving it.
type IfElse struct {
	Cond   expr.Expression
	True   Block
	False  Block
	Follow Block
}

// IndirectJump marks an unresolved computed jump (spec: "IndirectJump(dest,
// successors)"). Structuring cannot continue past one: Successors lists
// whatever candidate targets earlier passes attached to the block, purely
// for diagnostics.
type IndirectJump struct {
	Dest       expr.Expression
	Successors []*cfg.BasicBlock
}

// Loop is a structured loop (spec: "Loop(header, follow)"). Header holds
// the loop body starting from its header block, with back-edges to that
// header already rewritten to Continue and loop-exit edges to Follow
// already rewritten to Break (step 6). Follow is nil for an endless loop.
type Loop struct {
	Header Block
	Follow Block
}

// Break and Continue are the two loop-relative jumps a Loop's body can
// contain in place of an edge to the follow or back to the header.
type Break struct{}
type Continue struct{}

// Goto is the structuring fallback (spec: "a node encountered a second
// time is emitted as goto <label>"). Label identifies the revisited
// block; the emitter is responsible for also emitting that block's
// content once, labeled, wherever its first visit occurred.
type Goto struct {
	Label string
}

func (*Sequence) isNode()     {}
func (*IfElse) isNode()       {}
func (*IndirectJump) isNode() {}
func (*Loop) isNode()         {}
func (*Break) isNode()        {}
func (*Continue) isNode()     {}
func (*Goto) isNode()         {}

// Stats is the statistics side-channel spec §6 asks the emitter to
// surface; astgen populates the goto-related fields since it is the pass
// that decides when structuring gives up.
type Stats struct {
	NumGotos      int
	FuncsWithGoto bool
}
