package structure

import (
	"testing"

	"decomp/internal/cfg"
	"decomp/internal/expr"
)

// buildWhileLoop builds header -(true)-> body -> header (back edge),
// header -(false)-> follow -> stop. A textbook while loop.
func buildWhileLoop(t *testing.T) (*cfg.Function, *cfg.BasicBlock, *cfg.BasicBlock, *cfg.BasicBlock) {
	t.Helper()
	fn := cfg.NewFunction(0)
	header := fn.NewBlock(0x10)
	body := fn.NewBlock(0x20)
	follow := fn.NewBlock(0x30)
	fn.HeaderNode = header

	header.Terminator = cfg.NewJCond(expr.LitUint64(1), expr.LitUint64(0x20))
	header.AddSuccessor(body)
	header.AddSuccessor(follow)

	body.Terminator = cfg.NewJump(expr.LitUint64(0x10))
	body.AddSuccessor(header)

	follow.Terminator = cfg.NewVMCall(nil, "stop", nil)

	return fn, header, body, follow
}

func TestFindLoopsRecoversWhileLoop(t *testing.T) {
	fn, header, body, follow := buildWhileLoop(t)

	loops := FindLoops(fn)
	if len(loops) != 1 {
		t.Fatalf("expected exactly one loop, got %d", len(loops))
	}
	l := loops[0]
	if l.Header != header {
		t.Errorf("expected header %v, got %v", header, l.Header)
	}
	if !l.Contains(header) || !l.Contains(body) {
		t.Error("expected loop body to contain header and body block")
	}
	if l.Contains(follow) {
		t.Error("expected follow block to not be in the loop body")
	}
	if l.Follow != follow {
		t.Errorf("expected follow %v, got %v", follow, l.Follow)
	}
	if err := cfg.SanityCheckLoop(l); err != nil {
		t.Errorf("loop failed sanity check: %v", err)
	}
}

func TestFindLoopsNoLoopInAcyclicGraph(t *testing.T) {
	fn := cfg.NewFunction(0)
	a := fn.NewBlock(0x10)
	b := fn.NewBlock(0x20)
	fn.HeaderNode = a
	a.Terminator = cfg.NewJump(expr.LitUint64(0x20))
	a.AddSuccessor(b)
	b.Terminator = cfg.NewVMCall(nil, "stop", nil)

	loops := FindLoops(fn)
	if len(loops) != 0 {
		t.Errorf("expected no loops in an acyclic graph, got %d", len(loops))
	}
}

// buildDiamond builds header -(true)-> left -> join, header -(false)->
// right -> join, join -> stop: a plain if/else that rejoins at join.
func buildDiamond(t *testing.T) (*cfg.Function, *cfg.BasicBlock, *cfg.BasicBlock) {
	t.Helper()
	fn := cfg.NewFunction(0)
	header := fn.NewBlock(0x10)
	left := fn.NewBlock(0x20)
	right := fn.NewBlock(0x30)
	join := fn.NewBlock(0x40)
	fn.HeaderNode = header

	header.Terminator = cfg.NewJCond(expr.LitUint64(1), expr.LitUint64(0x20))
	header.AddSuccessor(left)
	header.AddSuccessor(right)

	left.Terminator = cfg.NewJump(expr.LitUint64(0x40))
	left.AddSuccessor(join)

	right.Terminator = cfg.NewJump(expr.LitUint64(0x40))
	right.AddSuccessor(join)

	join.Terminator = cfg.NewVMCall(nil, "stop", nil)

	return fn, header, join
}

func TestConditionalFollowsFindsDiamondJoin(t *testing.T) {
	fn, header, join := buildDiamond(t)

	follows := ConditionalFollows(fn, nil)
	got, ok := follows[header]
	if !ok {
		t.Fatal("expected a follow to be found for the header block")
	}
	if got != join {
		t.Errorf("expected follow %v, got %v", join, got)
	}
}

func TestConditionalFollowsEndpointBranch(t *testing.T) {
	// header -(true)-> deadend (no successors) ; header -(false)-> rest,
	// rest has its own successors so there's nothing for deadend to
	// rejoin with: the endpoint rule should pick rest as the follow.
	fn := cfg.NewFunction(0)
	header := fn.NewBlock(0x10)
	deadend := fn.NewBlock(0x20)
	rest := fn.NewBlock(0x30)
	tail := fn.NewBlock(0x40)
	fn.HeaderNode = header

	header.Terminator = cfg.NewJCond(expr.LitUint64(1), expr.LitUint64(0x20))
	header.AddSuccessor(deadend)
	header.AddSuccessor(rest)

	deadend.Terminator = cfg.NewVMCall(nil, "revert", nil)

	rest.Terminator = cfg.NewJump(expr.LitUint64(0x40))
	rest.AddSuccessor(tail)

	tail.Terminator = cfg.NewVMCall(nil, "stop", nil)

	follows := ConditionalFollows(fn, nil)
	if got := follows[header]; got != rest {
		t.Errorf("expected follow %v (endpoint rule), got %v", rest, got)
	}
}
